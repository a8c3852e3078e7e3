package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3API is the subset of *s3.Client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store stores objects in an S3 bucket.
//
// Example usage:
//
//	client := publish.NewS3Client(publish.S3ConfigFromEnv())
//	store := publish.NewS3Store(client, "my-bucket", "pages/", 10<<20)
type S3Store struct {
	client  S3API
	bucket  string
	prefix  string
	maxSize int64
}

// NewS3Store creates an S3 store.
//
// Parameters:
//   - client: an *s3.Client or anything implementing S3API
//   - bucket: S3 bucket name
//   - prefix: key prefix for objects (e.g., "pages/")
//   - maxSize: maximum object size in bytes (0 = no limit)
func NewS3Store(client S3API, bucket, prefix string, maxSize int64) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix, maxSize: maxSize}
}

// Put buffers the object and uploads it with PutObject.
func (s *S3Store) Put(ctx context.Context, name, contentType string, r io.Reader) (*Object, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, newLimitReader(r, s.maxSize)); err != nil {
		return nil, err
	}
	size := int64(buf.Len())
	key := s.prefix + name

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(buf.Bytes()),
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
		Metadata: map[string]string{
			"publisher": "atomdom",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("publish: s3 put %s: %w", key, err)
	}

	return &Object{
		Name:        name,
		ContentType: contentType,
		Size:        size,
		Modified:    time.Now().UTC(),
		Location:    s.location(key),
	}, nil
}

// Get opens an object with GetObject.
func (s *S3Store) Get(ctx context.Context, name string) (*Object, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	key := s.prefix + name

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("publish: s3 get %s: %w", key, err)
	}

	obj := &Object{
		Name:        name,
		ContentType: aws.ToString(out.ContentType),
		Size:        aws.ToInt64(out.ContentLength),
		Location:    s.location(key),
		Body:        out.Body,
	}
	if out.LastModified != nil {
		obj.Modified = *out.LastModified
	}
	return obj, nil
}

// Delete removes an object with DeleteObject.
func (s *S3Store) Delete(ctx context.Context, name string) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	key := s.prefix + name

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("publish: s3 delete %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) location(key string) string {
	return "s3://" + s.bucket + "/" + key
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}

// S3Config configures NewS3Client.
type S3Config struct {
	// Region is the bucket region (default: "us-east-1").
	Region string

	// Endpoint overrides the S3 endpoint, for S3-compatible servers.
	// Setting it switches to path-style addressing.
	Endpoint string

	// Static credentials. Requests are unsigned when AccessKeyID is empty.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// S3ConfigFromEnv reads the standard AWS environment variables.
func S3ConfigFromEnv() S3Config {
	return s3ConfigFrom(os.Getenv)
}

func s3ConfigFrom(getenv func(string) string) S3Config {
	cfg := S3Config{
		Region:          getenv("AWS_REGION"),
		Endpoint:        getenv("AWS_ENDPOINT_URL_S3"),
		AccessKeyID:     getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: getenv("AWS_SECRET_ACCESS_KEY"),
		SessionToken:    getenv("AWS_SESSION_TOKEN"),
	}
	if cfg.Region == "" {
		cfg.Region = getenv("AWS_DEFAULT_REGION")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = getenv("AWS_ENDPOINT_URL")
	}
	return cfg
}

// NewS3Client builds an S3 client from cfg.
func NewS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:      cfg.Region,
		Credentials: aws.AnonymousCredentials{},
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	if cfg.AccessKeyID != "" {
		creds := aws.Credentials{
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			SessionToken:    cfg.SessionToken,
			Source:          "atomdom",
		}
		opts.Credentials = aws.NewCredentialsCache(aws.CredentialsProviderFunc(
			func(context.Context) (aws.Credentials, error) { return creds, nil },
		))
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}
	return s3.New(opts)
}
