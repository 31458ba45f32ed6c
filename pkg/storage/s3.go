// Package storage resolves stored tutor image references to URLs served
// from S3.
package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// S3Config holds S3 client configuration.
type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	ImagesBucket    string
	// ImagesPrefix is prepended to bare file names, e.g. "uploads".
	ImagesPrefix string
	// PublicImages serves unsigned object URLs when the bucket is public.
	PublicImages         bool
	PresignExpireMinutes int
}

// S3 resolves image keys against the images bucket.
type S3 struct {
	presign *s3.PresignClient
	cfg     S3Config
	logger  *zap.Logger
}

// NewS3 creates an S3 client using credentials from config or the
// environment, falling back to the default credential chain.
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	if cfg.ImagesBucket == "" {
		return nil, fmt.Errorf("images bucket not configured")
	}
	accessKey := cfg.AccessKeyID
	secretKey := cfg.SecretAccessKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey, secretKey, "",
		)))
		logger.Info("S3 client using static credentials", zap.String("region", cfg.Region), zap.String("images_bucket", cfg.ImagesBucket))
	} else {
		logger.Warn("S3 client using default credential chain (AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY not set)")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3{
		presign: s3.NewPresignClient(s3.NewFromConfig(awsCfg)),
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// ImageKey maps a stored image reference to its object key.
func (s *S3) ImageKey(image string) string {
	key := strings.TrimPrefix(strings.TrimSpace(image), "/")
	if s.cfg.ImagesPrefix == "" || strings.Contains(key, "/") {
		return key
	}
	return path.Join(s.cfg.ImagesPrefix, key)
}

// ResolveImageURL returns a URL for image. Absolute URLs and empty values are
// returned unchanged; on signing failure the reference is returned as stored.
func (s *S3) ResolveImageURL(ctx context.Context, image string) string {
	if image == "" || strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://") {
		return image
	}
	key := s.ImageKey(image)
	if s.cfg.PublicImages {
		return s.PublicObjectURL(s.cfg.ImagesBucket, key)
	}
	url, err := s.PresignedDownloadURL(ctx, s.cfg.ImagesBucket, key, s.PresignExpire())
	if err != nil {
		s.logger.Warn("presign tutor image", zap.String("key", key), zap.Error(err))
		return image
	}
	return url
}

// PresignedDownloadURL returns a pre-signed GET URL.
func (s *S3) PresignedDownloadURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}

// PresignExpire returns the configured presign duration.
func (s *S3) PresignExpire() time.Duration {
	if s.cfg.PresignExpireMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(s.cfg.PresignExpireMinutes) * time.Minute
}

// PublicObjectURL returns the public URL for an object (no signing; use when bucket is public).
func (s *S3) PublicObjectURL(bucket, key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, s.cfg.Region, key)
}
