package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 stores objects in an S3 bucket. The bucket argument of Store names the
// S3 bucket.
type S3 struct {
	client     putObjectAPI
	region     string
	publicBase string
}

// NewS3 builds an S3 store from the default AWS credential chain.
func NewS3(ctx context.Context, region, publicBaseURL string) (*S3, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}
	return &S3{client: s3.NewFromConfig(cfg), region: region, publicBase: publicBaseURL}, nil
}

func (s *S3) Store(ctx context.Context, bucket, filename string, data []byte) (string, error) {
	if _, err := cleanKey(bucket, filename); err != nil {
		return "", err
	}
	contentType := http.DetectContentType(data)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(filename),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("%w: put s3://%s/%s: %v", ErrWrite, bucket, filename, err)
	}

	log.Info().
		Str("bucket", bucket).
		Str("key", filename).
		Str("content_type", contentType).
		Msg("Object uploaded to S3")

	if s.publicBase != "" {
		return joinURL(s.publicBase, filename), nil
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, s.region, filename), nil
}
