// AWS S3 blob backend for NoteStash.
//
// Blob content is uploaded to an upstream S3 (or S3-compatible) bucket via
// the AWS SDK for Go v2. The note catalog stays local -- this backend handles
// raw bytes only. Refs map to upstream keys as {prefix}{ref}.
//
// Credentials are resolved via the standard AWS credential chain (env vars,
// ~/.aws/credentials, IAM role, etc.) unless static credentials are
// configured.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/notestash/notestash/internal/uid"
)

// S3API defines the subset of the AWS S3 client interface that the backend
// uses. This allows mocking in tests.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Options configures the S3 blob backend.
type S3Options struct {
	Bucket string
	Region string
	// Prefix is the key prefix for all blobs in the upstream bucket.
	Prefix string
	// EndpointURL overrides the S3 endpoint (MinIO, localstack).
	EndpointURL string
	// UsePathStyle forces path-style addressing.
	UsePathStyle bool
	// Static credentials; when empty the default chain is used.
	AccessKeyID     string
	SecretAccessKey string
}

// S3 implements the Store interface against an upstream S3 bucket.
type S3 struct {
	// Bucket is the upstream S3 bucket name.
	Bucket string
	// Prefix is the key prefix for all blobs in the upstream bucket.
	Prefix string
	// client is the AWS S3 client (satisfying the S3API interface).
	client S3API
}

// NewS3 creates an S3 blob store configured to write to the given bucket.
// It initializes the AWS SDK client and verifies the upstream bucket is
// accessible so an unreachable backend fails startup rather than the first
// upload.
func NewS3(ctx context.Context, opts S3Options) (*S3, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))

	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if opts.EndpointURL != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.EndpointURL)
		})
	}
	if opts.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(cfg, s3Opts...)

	s := &S3{
		Bucket: opts.Bucket,
		Prefix: opts.Prefix,
		client: client,
	}

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(opts.Bucket),
	}); err != nil {
		return nil, fmt.Errorf("cannot access upstream S3 bucket %q: %w", opts.Bucket, err)
	}

	slog.Info("S3 blob backend initialized", "bucket", opts.Bucket, "region", opts.Region, "prefix", opts.Prefix)
	return s, nil
}

// NewS3WithClient creates an S3 blob store with a pre-configured client.
// This is primarily used for testing with mock clients.
func NewS3WithClient(bucket, prefix string, client S3API) *S3 {
	return &S3{
		Bucket: bucket,
		Prefix: prefix,
		client: client,
	}
}

// Kind reports the backend kind.
func (s *S3) Kind() Kind { return KindS3 }

// s3Key maps a ref to an upstream S3 key.
func (s *S3) s3Key(ref string) string {
	return s.Prefix + ref
}

// Put uploads blob content to the upstream bucket in a single round trip.
// size must be the exact content length when known; for the multipart upload
// path it always is, so the reader streams straight through to the SDK.
func (s *S3) Put(ctx context.Context, r io.Reader, size int64, contentType, suggestedName string) (string, int64, error) {
	ref := uid.New() + "-" + sanitizeName(suggestedName)

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(s.s3Key(ref)),
		Body:        r,
		ContentType: aws.String(contentType),
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", 0, fmt.Errorf("uploading to S3: %w", err)
	}

	written := size
	if written < 0 {
		// Size unknown up front: ask the upstream what landed.
		head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.Bucket),
			Key:    aws.String(s.s3Key(ref)),
		})
		if err == nil && head.ContentLength != nil {
			written = *head.ContentLength
		}
	}

	return ref, written, nil
}

// Get retrieves blob content from the upstream bucket. The returned
// ReadCloser streams directly from the SDK response body.
func (s *S3) Get(ctx context.Context, ref string) (io.ReadCloser, int64, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.s3Key(ref)),
	})
	if err != nil {
		if isAWSNotFound(err) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("getting blob from S3: %w", err)
	}

	var size int64
	if resp.ContentLength != nil {
		size = *resp.ContentLength
	}
	return resp.Body, size, nil
}

// Delete removes the blob from the upstream bucket. S3 DeleteObject does not
// error on missing keys, so absence is detected with a HeadObject first to
// honor the Store contract.
func (s *S3) Delete(ctx context.Context, ref string) error {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.s3Key(ref)),
	})
	if err != nil {
		if isAWSNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("checking blob existence in S3: %w", err)
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.s3Key(ref)),
	}); err != nil {
		return fmt.Errorf("deleting blob from S3: %w", err)
	}
	return nil
}

// HealthCheck verifies that the upstream S3 bucket is accessible.
func (s *S3) HealthCheck(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.Bucket),
	})
	return err
}

// isAWSNotFound checks if an AWS error is a 404/NoSuchKey/NotFound error.
func isAWSNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if code == "NoSuchKey" || code == "NotFound" || code == "404" || code == "NoSuchBucket" {
			return true
		}
	}
	// Also check for types.NoSuchKey.
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	// Check HTTP status code via ResponseError.
	var respErr interface{ HTTPStatusCode() int }
	if errors.As(err, &respErr) {
		if respErr.HTTPStatusCode() == 404 {
			return true
		}
	}
	return false
}

// Ensure S3 implements Store at compile time.
var _ Store = (*S3)(nil)
