// Package archive copies uploaded source files and generated reports to
// S3-compatible object storage.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archiver stores objects. Implementations must be safe for concurrent use.
type Archiver interface {
	Put(ctx context.Context, key, contentType string, body []byte) error
	Enabled() bool
}

// Noop discards everything. Used when no bucket is configured.
type Noop struct{}

func (Noop) Put(ctx context.Context, key, contentType string, body []byte) error { return nil }
func (Noop) Enabled() bool                                                       { return false }

// Config holds S3 settings.
type Config struct {
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	Region          string
	// URLExpiryMinutes bounds presigned download links. Default: 15.
	URLExpiryMinutes int
}

// S3Archiver writes objects with PutObject.
type S3Archiver struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucket        string
	urlExpiry     time.Duration
}

// New returns an S3Archiver, or Noop when cfg.Bucket is empty.
func New(cfg Config) (Archiver, error) {
	if cfg.Bucket == "" {
		return Noop{}, nil
	}
	return NewS3Archiver(cfg)
}

// NewS3Archiver creates an archiver for cfg.
func NewS3Archiver(cfg Config) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, errors.New("access key ID and secret are required")
	}
	if cfg.Region == "" {
		cfg.Region = "auto"
	}
	if cfg.URLExpiryMinutes <= 0 {
		cfg.URLExpiryMinutes = 15
	}

	opts := s3.Options{
		Region: cfg.Region,
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}
	client := s3.New(opts)

	return &S3Archiver{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucket:        cfg.Bucket,
		urlExpiry:     time.Duration(cfg.URLExpiryMinutes) * time.Minute,
	}, nil
}

func (a *S3Archiver) Enabled() bool { return true }

// Put uploads body under key.
func (a *S3Archiver) Put(ctx context.Context, key, contentType string, body []byte) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
		Body:          bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("failed to archive %s: %w", key, err)
	}
	return nil
}

// DownloadURL returns a presigned GET URL for key.
func (a *S3Archiver) DownloadURL(ctx context.Context, key string) (string, error) {
	req, err := a.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = a.urlExpiry
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign request: %w", err)
	}
	return req.URL, nil
}

// UploadKey builds uploads/<user>/<session>/<file>.
func UploadKey(userID, sessionID, filename string) string {
	name := sanitizeFilename(path.Base(filename))
	if name == "" {
		name = "upload"
	}
	return fmt.Sprintf("uploads/%s/%s/%s", sanitizePathComponent(userID), sanitizePathComponent(sessionID), name)
}

// ReportKey builds reports/<user>/<session>.<ext>.
func ReportKey(userID, sessionID, ext string) string {
	return fmt.Sprintf("reports/%s/%s.%s", sanitizePathComponent(userID), sanitizePathComponent(sessionID), sanitizePathComponent(ext))
}

// sanitizePathComponent keeps alphanumerics, hyphens and underscores.
func sanitizePathComponent(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func sanitizeFilename(s string) string {
	ext := path.Ext(s)
	base := sanitizePathComponent(strings.TrimSuffix(s, ext))
	if base == "" {
		return ""
	}
	return base + "." + sanitizePathComponent(strings.TrimPrefix(ext, "."))
}
