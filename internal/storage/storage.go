// Package storage archives generated CSV exports, either to a local
// directory or to S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Provider stores a finished export and returns where it landed.
type Provider interface {
	Put(ctx context.Context, filename string, data []byte) (location string, err error)
}

// FromEnv picks a provider from EXPORT_BACKEND: "s3" or "local"
// (the default).
func FromEnv() (Provider, error) {
	switch os.Getenv("EXPORT_BACKEND") {
	case "s3":
		return NewS3()
	case "local", "":
		dir := os.Getenv("EXPORT_DIR")
		if dir == "" {
			dir = "exports"
		}
		return NewLocal(dir)
	default:
		return nil, fmt.Errorf("unknown export backend: %s", os.Getenv("EXPORT_BACKEND"))
	}
}

// Local writes exports under a directory on disk.
type Local struct {
	dir string
}

func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	return &Local{dir: dir}, nil
}

func (l *Local) Put(ctx context.Context, filename string, data []byte) (string, error) {
	// uuid prefix keeps same-second exports from clobbering each other
	path := filepath.Join(l.dir, uuid.New().String()+"_"+filepath.Base(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// S3 uploads exports to an S3-compatible bucket.
type S3 struct {
	client   *s3.Client
	bucket   string
	endpoint string
}

func NewS3() (*S3, error) {
	endpoint := os.Getenv("AWS_ENDPOINT_URL_S3")
	accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
	bucket := os.Getenv("BUCKET_NAME")

	if endpoint == "" || accessKey == "" || secretKey == "" || bucket == "" {
		return nil, fmt.Errorf("missing S3 configuration")
	}

	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &S3{client: client, bucket: bucket, endpoint: endpoint}, nil
}

func (s *S3) Put(ctx context.Context, filename string, data []byte) (string, error) {
	key := fmt.Sprintf("exports/%s/%s", uuid.New().String(), filename)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
	return url, nil
}
