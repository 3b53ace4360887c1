package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var (
	loadDefaultAWSConfig  = config.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3Config addresses an S3-compatible bucket used as a mail drop.
type S3Config struct {
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
	Bucket       string
}

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Dispatcher stores each message as a JSON object in a bucket, where a
// separate mailer picks it up.
type S3Dispatcher struct {
	client putObjectAPI
	bucket string
	now    func() time.Time
}

func NewS3Dispatcher(ctx context.Context, c S3Config) (*S3Dispatcher, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")),
	)
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if c.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(c.BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	return &S3Dispatcher{client: client, bucket: c.Bucket, now: time.Now}, nil
}

func (d *S3Dispatcher) Send(ctx context.Context, m Message) error {
	if m.SentAt.IsZero() {
		m.SentAt = d.now().UTC()
	}

	body, err := json.Marshal(m)
	if err != nil {
		return err
	}

	_, err = d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(objectKey(m.Kind, m.SentAt)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put notification: %w", err)
	}
	return nil
}

func objectKey(kind string, t time.Time) string {
	return fmt.Sprintf("outbox/%s/%d/%02d/%02d/%v.json", kind, t.Year(), t.Month(), t.Day(), uuid.New())
}
