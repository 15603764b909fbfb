package storage

import (
	"fmt"
	"mime"
	"strings"
)

// DefaultContentType is served when an object was stored without a MIME type.
const DefaultContentType = "application/octet-stream"

// ValidateFileSize checks if the file size is within limits.
func (s *MinIOService) ValidateFileSize(sizeBytes int64) error {
	return CheckFileSize(sizeBytes, s.maxFileSize)
}

// CheckFileSize rejects negative sizes and sizes above max. A max of zero or
// less disables the upper bound.
func CheckFileSize(sizeBytes, max int64) error {
	if sizeBytes < 0 {
		return fmt.Errorf("file size must not be negative")
	}
	if max > 0 && sizeBytes > max {
		return fmt.Errorf("file size %d bytes exceeds maximum allowed size of %d bytes", sizeBytes, max)
	}
	return nil
}

// NormalizeContentType strips parameters and lowercases a MIME type. Anything
// unparsable yields an empty string.
func NormalizeContentType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(mediaType)
}
