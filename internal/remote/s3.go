package remote

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

var _ Backend = (*S3)(nil)

func NewS3(ctx context.Context, bucket, region, prefix, endpoint string, maxRetryAttempts int) (*S3, error) {
	var configOpts []func(*awsconfig.LoadOptions) error
	configOpts = append(configOpts, awsconfig.WithRegion(region))

	if maxRetryAttempts > 0 {
		configOpts = append(configOpts,
			awsconfig.WithRetryMaxAttempts(maxRetryAttempts),
			awsconfig.WithRetryMode(aws.RetryModeStandard),
		)
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if endpoint != "" {
		if accessKey := os.Getenv("AWS_ACCESS_KEY_ID"); accessKey != "" {
			if secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY"); secretKey != "" {
				cfg.Credentials = credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")
			}
		}
	}

	var client *s3.Client
	if endpoint != "" {
		client = s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
		slog.Info("S3 client initialized with custom endpoint", "endpoint", endpoint)
	} else {
		client = s3.NewFromConfig(cfg)
	}

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 64 * 1024 * 1024
		u.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenSupported
	})

	return &S3{
		client:   client,
		uploader: uploader,
		bucket:   bucket,
		prefix:   prefix,
	}, nil
}

func (s *S3) key(remotePath string) string {
	return path.Join(filepath.ToSlash(s.prefix), filepath.ToSlash(remotePath))
}

func (s *S3) Upload(ctx context.Context, localPath, remotePath, checksumHash string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	key := s.key(remotePath)
	input := &s3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		Body:     file,
		Metadata: map[string]string{"blake3": checksumHash},
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	slog.Info("Uploaded to S3", "bucket", s.bucket, "key", key)
	return nil
}

func (s *S3) Download(ctx context.Context, remotePath, localPath string) error {
	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create local file: %w", err)
	}
	defer file.Close()

	key := s.key(remotePath)
	downloader := manager.NewDownloader(s.client)
	numBytes, err := downloader.Download(ctx, file, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to download from S3: %w", err)
	}

	slog.Info("Downloaded from S3", "bucket", s.bucket, "key", key, "bytes", numBytes)
	return nil
}

func (s *S3) List(ctx context.Context, prefix string) ([]string, error) {
	keyPrefix := s.key(prefix)

	var names []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(keyPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects under %s: %w", keyPrefix, err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			names = append(names, path.Base(*obj.Key))
		}
	}
	return names, nil
}

func (s *S3) Delete(ctx context.Context, remotePath string) error {
	key := s.key(remotePath)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

func (s *S3) VerifyCredentials(ctx context.Context) error {
	slog.Info("Verifying AWS credentials and bucket access", "bucket", s.bucket)

	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to verify AWS credentials or bucket access: %w", err)
	}

	slog.Info("AWS credentials verified successfully", "bucket", s.bucket)
	return nil
}
