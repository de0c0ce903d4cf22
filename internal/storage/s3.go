package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Store persists generated artifacts and hands out retrievable URLs.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// URL returns either a public object URL or a time-limited signed URL,
	// depending on how the bucket is configured.
	URL(ctx context.Context, key string) (string, error)
}

// S3Store talks to an S3-compatible bucket (Supabase storage in production).
type S3Store struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	baseURL       string
	bucket        string
	public        bool
	signedTTL     time.Duration
}

// NewS3Store creates a Store backed by the given bucket. When public is
// false, URL returns presigned GET links valid for signedTTL.
func NewS3Store(client *s3.Client, baseURL, bucket string, public bool, signedTTL time.Duration) *S3Store {
	return &S3Store{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		baseURL:       strings.TrimRight(baseURL, "/"),
		bucket:        bucket,
		public:        public,
		signedTTL:     signedTTL,
	}
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) URL(ctx context.Context, key string) (string, error) {
	if s.public {
		return fmt.Sprintf("%s/%s/%s", s.baseURL, s.bucket, key), nil
	}
	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.signedTTL))
	if err != nil {
		return "", fmt.Errorf("presign object %s: %w", key, err)
	}
	return req.URL, nil
}
