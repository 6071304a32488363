package services

import (
	"context"
	"testing"
	"time"

	"talk-n-share/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		S3Bucket:           "talk-attachments",
		AttachmentURLTTL:   15 * time.Minute,
		AWSRegion:          "us-east-1",
		AWSAccessKeyID:     "AKIDEXAMPLE",
		AWSSecretAccessKey: "wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY",
		MinIOAccessKey:     "minioadmin",
		MinIOSecretKey:     "minioadmin",
	}
}

func TestPresignGet_S3(t *testing.T) {
	svc, err := NewAttachmentService(testConfig())
	require.NoError(t, err)

	signed, err := svc.PresignGet(context.Background(), "sessions/s1/photo.png")
	require.NoError(t, err)
	assert.Contains(t, signed, "talk-attachments")
	assert.Contains(t, signed, "sessions/s1/photo.png")
	assert.Contains(t, signed, "X-Amz-Signature=")
	assert.Contains(t, signed, "X-Amz-Expires=900")
}

func TestPresignGet_MinIO(t *testing.T) {
	cfg := testConfig()
	cfg.MinIOEndpoint = "localhost:9000"
	svc, err := NewAttachmentService(cfg)
	require.NoError(t, err)

	signed, err := svc.PresignGet(context.Background(), "sessions/s1/photo.png")
	require.NoError(t, err)
	assert.Contains(t, signed, "http://localhost:9000/talk-attachments/sessions/s1/photo.png")
	assert.Contains(t, signed, "X-Amz-Signature=")
}

func TestPresignGet_RejectsBadKeys(t *testing.T) {
	svc, err := NewAttachmentService(testConfig())
	require.NoError(t, err)

	_, err = svc.PresignGet(context.Background(), "../secrets")
	assert.Error(t, err)
}

func TestValidAttachmentKey(t *testing.T) {
	assert.True(t, ValidAttachmentKey("a/b/c.jpg"))
	assert.False(t, ValidAttachmentKey(""))
	assert.False(t, ValidAttachmentKey("/abs/path"))
	assert.False(t, ValidAttachmentKey("a/../b"))
	assert.False(t, ValidAttachmentKey("a//b"))
	assert.False(t, ValidAttachmentKey(`a\b`))
}
