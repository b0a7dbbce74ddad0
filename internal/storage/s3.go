package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Store persists generated images in an S3 bucket and issues presigned GET
// URLs for them.
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	region  string
	expiry  time.Duration
}

// NewS3Store builds an S3Store using the default AWS credential chain.
func NewS3Store(ctx context.Context, bucket, region string, expiry time.Duration) (*S3Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("storage: s3 bucket is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
		region:  region,
		expiry:  expiry,
	}, nil
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(cleanKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("storage: put %s: %w", cleanKey, err)
	}
	return cleanKey, nil
}

func (s *S3Store) SignedURL(ctx context.Context, key string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("storage: presign %s: %w", key, err)
	}
	return req.URL, nil
}

// PublicURL builds the virtual-hosted object URL. It only resolves for
// buckets with public read access; callers use it as a last resort.
func (s *S3Store) PublicURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

var (
	_ ObjectStore = (*S3Store)(nil)
	_ PublicURLer = (*S3Store)(nil)
)
