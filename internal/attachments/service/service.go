package service

import (
	"context"
	"io"
	"path"
	"strings"

	"crm_backend/internal/adapters/storage"
	"crm_backend/internal/attachments/repository"
	"crm_backend/internal/attachments/transport"
	"crm_backend/platform/apperr"
	"crm_backend/platform/logger"
	"crm_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	msgActivityNotFound = "activity not found"
	msgFileNotFound     = "file not found in storage"
	maxExtensionLength  = 16
)

// ObjectStore is the part of object storage the attachments service needs.
type ObjectStore interface {
	PutObject(ctx context.Context, bucket, key, contentType string, reader io.Reader, size int64) error
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	DeleteObject(ctx context.Context, bucket, key string) error
}

// Upload is a file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Download is an attachment ready to stream. The caller closes Body.
type Download struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// Service stores activity attachments in object storage.
type Service struct {
	repo        repository.Repository
	store       ObjectStore
	bucket      string
	maxFileSize int64
	log         *logger.Logger
}

// New creates an attachments service writing to bucket. A maxFileSize of zero
// or less disables the size limit.
func New(repo repository.Repository, store ObjectStore, bucket string, maxFileSize int64, log *logger.Logger) *Service {
	return &Service{repo: repo, store: store, bucket: bucket, maxFileSize: maxFileSize, log: log}
}

// Upload stores a file under an activity owned by userID.
func (s *Service) Upload(ctx context.Context, userID, activityID uuid.UUID, in Upload) (transport.AttachmentResponse, error) {
	if err := storage.CheckFileSize(in.Size, s.maxFileSize); err != nil {
		return transport.AttachmentResponse{}, apperr.BadRequest(err.Error())
	}
	if err := s.requireActivity(ctx, userID, activityID); err != nil {
		return transport.AttachmentResponse{}, err
	}

	id := uuid.Must(uuid.NewV7())
	storedFilename := id.String() + extension(in.Filename)
	key := ObjectKey(userID, activityID, storedFilename)
	contentType := storage.NormalizeContentType(in.ContentType)

	if err := s.store.PutObject(ctx, s.bucket, key, contentTypeOrDefault(contentType), in.Body, in.Size); err != nil {
		return transport.AttachmentResponse{}, err
	}

	originalFilename := in.Filename
	if originalFilename == "" {
		originalFilename = sanitize.UnnamedFile
	}
	var mimeType *string
	if contentType != "" {
		mimeType = &contentType
	}

	att, err := s.repo.Create(ctx, repository.Attachment{
		ID:               id,
		ActivityID:       activityID,
		OriginalFilename: originalFilename,
		StoredFilename:   storedFilename,
		FileKey:          key,
		FileSize:         in.Size,
		MimeType:         mimeType,
	})
	if err != nil {
		if delErr := s.store.DeleteObject(context.WithoutCancel(ctx), s.bucket, key); delErr != nil {
			s.log.Error("failed to remove object after metadata insert failed", "key", key, "error", delErr)
		}
		return transport.AttachmentResponse{}, err
	}

	s.log.Info("attachment uploaded", "attachmentId", att.ID, "activityId", activityID, "size", att.FileSize)
	return toResponse(att), nil
}

// Download opens an attachment for streaming under its sanitised original filename.
func (s *Service) Download(ctx context.Context, userID, activityID, id uuid.UUID) (Download, error) {
	att, err := s.repo.Get(ctx, userID, activityID, id)
	if err != nil {
		return Download{}, err
	}

	body, err := s.store.GetObject(ctx, s.bucket, att.FileKey)
	if err != nil {
		if storage.IsNotFound(err) {
			return Download{}, apperr.NotFound(msgFileNotFound)
		}
		return Download{}, err
	}

	contentType := storage.DefaultContentType
	if att.MimeType != nil && *att.MimeType != "" {
		contentType = *att.MimeType
	}

	return Download{
		Filename:    sanitize.Filename(att.OriginalFilename),
		ContentType: contentType,
		Size:        att.FileSize,
		Body:        body,
	}, nil
}

// Delete removes an attachment. The row is removed even when the object
// cannot be deleted from storage.
func (s *Service) Delete(ctx context.Context, userID, activityID, id uuid.UUID) error {
	att, err := s.repo.Get(ctx, userID, activityID, id)
	if err != nil {
		return err
	}

	if err := s.store.DeleteObject(ctx, s.bucket, att.FileKey); err != nil {
		s.log.Warn("failed to delete attachment object", "key", att.FileKey, "error", err)
	}

	if err := s.repo.Delete(ctx, userID, activityID, id); err != nil {
		return err
	}

	s.log.Info("attachment deleted", "attachmentId", id, "activityId", activityID)
	return nil
}

func (s *Service) requireActivity(ctx context.Context, userID, activityID uuid.UUID) error {
	owned, err := s.repo.ActivityOwnedBy(ctx, userID, activityID)
	if err != nil {
		return err
	}
	if !owned {
		return apperr.NotFound(msgActivityNotFound)
	}
	return nil
}

// ObjectKey is the storage key of an attachment: {owner}/{activity}/{stored filename}.
func ObjectKey(userID, activityID uuid.UUID, storedFilename string) string {
	return path.Join(userID.String(), activityID.String(), storedFilename)
}

// extension returns the lowercased extension of name when it is short and
// made of safe characters, otherwise "".
func extension(name string) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(name, `\`, "/")))
	if len(ext) < 2 || len(ext) > maxExtensionLength {
		return ""
	}
	if sanitize.Filename(ext) != ext {
		return ""
	}
	return ext
}

func contentTypeOrDefault(contentType string) string {
	if contentType == "" {
		return storage.DefaultContentType
	}
	return contentType
}

func toResponse(a repository.Attachment) transport.AttachmentResponse {
	return transport.AttachmentResponse{
		ID:               a.ID,
		ActivityID:       a.ActivityID,
		OriginalFilename: a.OriginalFilename,
		StoredFilename:   a.StoredFilename,
		FileSize:         a.FileSize,
		MimeType:         a.MimeType,
		UploadedAt:       a.UploadedAt,
	}
}
