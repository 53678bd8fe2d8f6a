package backup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	appcfg "github.com/codename/server/internal/config"
)

// S3Store wraps the AWS SDK client for backup uploads and downloads.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Store builds a store from config. Returns nil when S3 is not
// configured, which disables remote backups without failing startup.
func NewS3Store(opts appcfg.S3Config) (*S3Store, error) {
	bucket := strings.TrimSpace(opts.Bucket)
	region := strings.TrimSpace(opts.Region)
	accessKey := strings.TrimSpace(opts.AccessKeyID)
	secretKey := strings.TrimSpace(opts.SecretAccessKey)

	if bucket == "" && accessKey == "" {
		return nil, nil
	}
	if bucket == "" || region == "" || accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("incomplete s3 config: bucket/region/access_key_id/secret_access_key are required")
	}

	s3Opts := s3.Options{
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
	}
	if endpoint := strings.TrimSpace(opts.Endpoint); endpoint != "" {
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "https://" + endpoint
		}
		s3Opts.BaseEndpoint = aws.String(endpoint)
		s3Opts.UsePathStyle = true
	}

	return &S3Store{
		client: s3.New(s3Opts),
		bucket: bucket,
		prefix: strings.Trim(strings.TrimSpace(opts.KeyPrefix), "/"),
	}, nil
}

func (u *S3Store) Upload(ctx context.Context, key string, payload []byte) error {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(u.objectKey(key)),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	return nil
}

func (u *S3Store) Download(ctx context.Context, key string) ([]byte, error) {
	out, err := u.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(u.objectKey(key)),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 download: %w", err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (u *S3Store) objectKey(key string) string {
	if u.prefix == "" {
		return key
	}
	return path.Join(u.prefix, key)
}
