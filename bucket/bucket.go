package bucket

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/voltlake/go-aws/awsconfig"
)

// LoadState describes the outcome of a Load call.
type LoadState string

const (
	StateOK                 LoadState = "ok"
	StateNotExisting        LoadState = "not_existing"
	StatePreconditionFailed LoadState = "precondition_failed"
)

type Config struct {
	// Region overrides AWS_REGION / the library default region.
	Region string
}

type LoadOptions struct {
	// IfUnmodifiedSince makes the load conditional: when the object changed
	// after this time, Load returns StatePreconditionFailed instead of data.
	IfUnmodifiedSince time.Time
}

// Bucket wraps one S3 bucket. Keys ending in ".gz" are transparently
// gzip-compressed on store and decompressed on load.
type Bucket struct {
	name   string
	region string
	client *s3.Client
	mu     sync.Mutex
}

func New(bucketName string, config ...Config) *Bucket {
	cfg := Config{}
	if len(config) > 0 {
		cfg = config[0]
	}

	return &Bucket{
		name:   bucketName,
		region: awsconfig.Region(cfg.Region),
	}
}

func (b *Bucket) init(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client != nil {
		return nil
	}

	cfg, err := awsconfig.Get(ctx, b.region)
	if err != nil {
		return err
	}

	b.client = s3.NewFromConfig(cfg)

	return nil
}

// Load reads an object. A missing key and a failed precondition are reported
// through the LoadState, not as errors.
func (b *Bucket) Load(ctx context.Context, key string, options ...LoadOptions) ([]byte, LoadState, error) {
	if err := b.init(ctx); err != nil {
		return nil, "", err
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(key),
	}

	if len(options) > 0 && !options[0].IfUnmodifiedSince.IsZero() {
		input.IfUnmodifiedSince = aws.Time(options[0].IfUnmodifiedSince)
	}

	output, err := b.client.GetObject(ctx, input)
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, StateNotExisting, nil
		}

		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed" {
			return nil, StatePreconditionFailed, nil
		}

		return nil, "", fmt.Errorf("failed to load %q from bucket %s: %w", key, b.name, err)
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %q from bucket %s: %w", key, b.name, err)
	}

	if isGzipKey(key) {
		data, err = gunzip(data)
		if err != nil {
			return nil, "", fmt.Errorf("failed to decompress %q: %w", key, err)
		}
	}

	return data, StateOK, nil
}

// Store writes an object, creating the bucket on first use if it does not
// exist yet.
func (b *Bucket) Store(ctx context.Context, key string, data []byte) error {
	if err := b.init(ctx); err != nil {
		return err
	}

	body := data
	if isGzipKey(key) {
		var err error
		body, err = gzipData(data)
		if err != nil {
			return fmt.Errorf("failed to compress %q: %w", key, err)
		}
	}

	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	})

	// PutObject has no modeled NoSuchBucket type; the error only carries the
	// service code.
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchBucket" {
		if err = b.create(ctx); err != nil {
			return err
		}

		_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(b.name),
			Key:    aws.String(key),
			Body:   bytes.NewReader(body),
		})
	}

	if err != nil {
		return fmt.Errorf("failed to store %q in bucket %s: %w", key, b.name, err)
	}

	return nil
}

func (b *Bucket) create(ctx context.Context) error {
	_, err := b.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(b.name),
		CreateBucketConfiguration: &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(b.region),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", b.name, err)
	}

	return nil
}

// Delete removes an object from the bucket.
func (b *Bucket) Delete(ctx context.Context, key string) error {
	if err := b.init(ctx); err != nil {
		return err
	}

	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %q from bucket %s: %w", key, b.name, err)
	}

	return nil
}

// Exists checks whether an object is present in the bucket.
func (b *Bucket) Exists(ctx context.Context, key string) (bool, error) {
	if err := b.init(ctx); err != nil {
		return false, err
	}

	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *s3types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check if %q exists in bucket %s: %w", key, b.name, err)
	}

	return true, nil
}

func isGzipKey(key string) bool {
	return strings.HasSuffix(key, ".gz")
}

func gzipData(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}
