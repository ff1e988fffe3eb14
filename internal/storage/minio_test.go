package storage

import (
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"

	"github.com/Limmita2/FaseWatch/internal/identity"
)

func TestBlobError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		notFound    bool
		unavailable bool
	}{
		{"missing key", minio.ErrorResponse{Code: "NoSuchKey"}, true, false},
		{"missing bucket", minio.ErrorResponse{Code: "NoSuchBucket"}, false, false},
		{"bad credentials", minio.ErrorResponse{Code: "InvalidAccessKeyId"}, false, false},
		{"server error", minio.ErrorResponse{Code: "InternalError"}, false, true},
		{"network", errors.New("dial tcp: connection refused"), false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := blobError("get object", "photos/x.jpg", tt.err)
			assert.Equal(t, tt.notFound, errors.Is(err, identity.ErrNotFound))
			assert.Equal(t, tt.unavailable, errors.Is(err, identity.ErrUnavailable))
			assert.Contains(t, err.Error(), "photos/x.jpg")
		})
	}
}
