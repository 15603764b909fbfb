package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
)

func TestCheckFileSize(t *testing.T) {
	assert.NoError(t, CheckFileSize(0, 10))
	assert.NoError(t, CheckFileSize(10, 10))
	assert.Error(t, CheckFileSize(11, 10))
	assert.Error(t, CheckFileSize(-1, 10))
	assert.NoError(t, CheckFileSize(1<<40, 0))
}

func TestNormalizeContentType(t *testing.T) {
	tests := map[string]string{
		"":                          "",
		"application/PDF":           "application/pdf",
		"text/plain; charset=utf-8": "text/plain",
		"not a type;;":              "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeContentType(in), in)
	}
}

func TestIsNotFound(t *testing.T) {
	assert.False(t, IsNotFound(nil))
	assert.True(t, IsNotFound(ErrObjectNotFound))
	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", ErrObjectNotFound)))
	assert.True(t, IsNotFound(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.False(t, IsNotFound(minio.ErrorResponse{Code: "AccessDenied"}))
	assert.False(t, IsNotFound(errors.New("boom")))
}
