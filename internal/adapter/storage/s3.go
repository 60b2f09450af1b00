package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3manager "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3Options struct {
	Region    string
	AccessKey string
	SecretKey string
	// Endpoint overrides the S3 endpoint for S3-compatible stores. Path-style
	// addressing is used when it is set.
	Endpoint string
}

// S3Fetcher reads backup artifacts directly from the bucket the backup API
// writes to.
type S3Fetcher struct {
	client     *s3.Client
	downloader *s3manager.Downloader
}

// NewS3 creates an S3Fetcher. Static keys are used when given, otherwise the
// default AWS credential chain applies.
func NewS3(ctx context.Context, opts S3Options) (*S3Fetcher, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Fetcher{
		client:     client,
		downloader: s3manager.NewDownloader(client),
	}, nil
}

// Fetch downloads s3://bucket/key into w and returns the number of bytes.
func (s *S3Fetcher) Fetch(ctx context.Context, bucket, key string, w io.WriterAt) (int64, error) {
	n, err := s.downloader.Download(ctx, w, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to download s3://%s/%s: %w", bucket, key, err)
	}
	return n, nil
}
