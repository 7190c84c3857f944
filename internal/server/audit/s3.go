package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/relativit/relativit/internal/server/models"
)

// S3Sink appends audit entries as individual JSON objects to an
// S3-compatible bucket. Objects are written once and never overwritten, so
// the bucket is append-only by construction.
type S3Sink struct {
	client *s3.Client
	bucket string
}

// S3Options carries the connection settings for the audit bucket.
type S3Options struct {
	AccessKey    string
	SecretKey    string
	Bucket       string
	Region       string
	BaseEndpoint string
}

// NewS3Sink builds an S3Sink from static credentials (MinIO-style
// deployments included via BaseEndpoint).
func NewS3Sink(ctx context.Context, opts S3Options) (*S3Sink, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("loading s3 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = awsv2.String(opts.BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	return &S3Sink{client: client, bucket: opts.Bucket}, nil
}

func (s *S3Sink) Append(ctx context.Context, entry *models.AuditLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling audit entry: %w", err)
	}

	key := fmt.Sprintf("audit/%s/%s.json", entry.CreatedAt.Format("2006/01/02"), entry.ID)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      awsv2.String(s.bucket),
		Key:         awsv2.String(key),
		Body:        bytes.NewReader(body),
		ContentType: awsv2.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("putting audit object: %w", err)
	}
	return nil
}
