package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"talk-n-share/internal/config"

	"github.com/aws/aws-sdk-go/aws"
	awscredentials "github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const maxAttachmentKeyLen = 512

// AttachmentService hands out short-lived download links for message
// attachments. Uploading happens elsewhere; messages only carry object keys.
type AttachmentService struct {
	bucket      string
	ttl         time.Duration
	s3Client    *s3.S3
	minioClient *minio.Client
	useMinIO    bool
}

func NewAttachmentService(cfg *config.Config) (*AttachmentService, error) {
	service := &AttachmentService{bucket: cfg.S3Bucket, ttl: cfg.AttachmentURLTTL}

	if cfg.MinIOEndpoint != "" {
		service.useMinIO = true
		minioClient, err := minio.New(cfg.MinIOEndpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
			Secure: cfg.MinIOUseSSL,
			Region: cfg.AWSRegion,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create MinIO client: %w", err)
		}
		service.minioClient = minioClient
		return service, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.AWSRegion),
		Credentials: awscredentials.NewStaticCredentials(
			cfg.AWSAccessKeyID,
			cfg.AWSSecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	service.s3Client = s3.New(sess)
	return service, nil
}

// PresignGet returns a time-limited GET URL for key.
func (s *AttachmentService) PresignGet(ctx context.Context, key string) (string, error) {
	if !ValidAttachmentKey(key) {
		return "", fmt.Errorf("invalid attachment key %q", key)
	}
	if s.useMinIO {
		return s.presignMinIO(ctx, key)
	}
	return s.presignS3(key)
}

func (s *AttachmentService) presignMinIO(ctx context.Context, key string) (string, error) {
	u, err := s.minioClient.PresignedGetObject(ctx, s.bucket, key, s.ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign MinIO object: %w", err)
	}
	return u.String(), nil
}

func (s *AttachmentService) presignS3(key string) (string, error) {
	req, _ := s.s3Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	signed, err := req.Presign(s.ttl)
	if err != nil {
		return "", fmt.Errorf("failed to presign S3 object: %w", err)
	}
	return signed, nil
}

// ValidAttachmentKey accepts relative object keys without path traversal.
func ValidAttachmentKey(key string) bool {
	if key == "" || len(key) > maxAttachmentKeyLen {
		return false
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}
