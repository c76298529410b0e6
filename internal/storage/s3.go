// Package storage's S3 backend proxies the Storage contract to a remote
// S3-compatible bucket via the AWS SDK for Go v2.
package storage

import (
	"bytes"
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

	gwerrors "github.com/replicagate/replicagate/internal/errors"
)

// S3API is the subset of the AWS S3 client the backend uses, narrowed so
// tests can substitute a mock.
type S3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Backend is a Storage implementation backed by an upstream S3 bucket. It
// is one handle in the replication engine's backend vector.
type S3Backend struct {
	name   string
	bucket string
	client S3API
}

// NewS3Backend constructs an S3Backend named name, proxying to bucket in
// region. endpointURL and usePathStyle support S3-compatible services
// (e.g. MinIO); accessKeyID/secretAccessKey override the default AWS
// credential chain when both are non-empty. HeadBucket is called once to
// verify the upstream bucket is reachable before returning.
func NewS3Backend(ctx context.Context, name, bucket, region, endpointURL string, usePathStyle bool, accessKeyID, secretAccessKey string) (*S3Backend, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	loadOpts = append(loadOpts, awsconfig.WithRegion(region))

	if accessKeyID != "" && secretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for backend %q: %w", name, err)
	}

	var s3Opts []func(*s3.Options)
	if endpointURL != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpointURL)
		})
	}
	if usePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(cfg, s3Opts...)

	b := &S3Backend{name: name, bucket: bucket, client: client}

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return nil, fmt.Errorf("backend %q: cannot access upstream bucket %q: %w", name, bucket, err)
	}

	slog.Info("s3 backend initialized", "backend", name, "bucket", bucket, "region", region)
	return b, nil
}

// NewS3BackendWithClient constructs an S3Backend around a pre-built client,
// for tests that substitute a mock S3API.
func NewS3BackendWithClient(name, bucket string, client S3API) *S3Backend {
	return &S3Backend{name: name, bucket: bucket, client: client}
}

func (b *S3Backend) Name() string { return b.name }

func (b *S3Backend) HeadBucket(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.bucket)})
	if err != nil {
		if isS3NotFound(err) {
			return gwerrors.ErrNoSuchBucket
		}
		return gwerrors.ErrInternalError.WithDetail(fmt.Sprintf("head_bucket on %q: %v", b.name, err))
	}
	return nil
}

func (b *S3Backend) ListObjects(ctx context.Context, prefix string, maxKeys int) ([]ObjectMetadata, error) {
	if maxKeys <= 0 || maxKeys > 1000 {
		maxKeys = 1000
	}

	out, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(b.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(int32(maxKeys)),
	})
	if err != nil {
		return nil, gwerrors.ErrInternalError.WithDetail(fmt.Sprintf("list_objects on %q: %v", b.name, err))
	}

	result := make([]ObjectMetadata, 0, len(out.Contents))
	for _, obj := range out.Contents {
		meta := ObjectMetadata{ContentType: DefaultContentType}
		if obj.Key != nil {
			meta.Key = *obj.Key
		}
		if obj.Size != nil {
			meta.Size = *obj.Size
		}
		if obj.ETag != nil {
			meta.ETag = *obj.ETag
		}
		if obj.LastModified != nil {
			meta.LastModified = obj.LastModified.UTC()
		}
		result = append(result, meta)
	}
	return result, nil
}

func (b *S3Backend) HeadObject(ctx context.Context, key string) (ObjectMetadata, error) {
	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(b.bucket), Key: aws.String(key)})
	if err != nil {
		if isS3NotFound(err) {
			return ObjectMetadata{}, gwerrors.ErrNoSuchKey
		}
		return ObjectMetadata{}, gwerrors.ErrInternalError.WithDetail(fmt.Sprintf("head_object on %q: %v", b.name, err))
	}

	meta := ObjectMetadata{Key: key, ContentType: DefaultContentType}
	if out.ContentLength != nil {
		meta.Size = *out.ContentLength
	}
	if out.ETag != nil {
		meta.ETag = *out.ETag
	}
	if out.LastModified != nil {
		meta.LastModified = out.LastModified.UTC()
	}
	if out.ContentType != nil {
		meta.ContentType = *out.ContentType
	}
	return meta, nil
}

func (b *S3Backend) GetObject(ctx context.Context, key string) (io.ReadCloser, ObjectMetadata, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(b.bucket), Key: aws.String(key)})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ObjectMetadata{}, gwerrors.ErrNoSuchKey
		}
		return nil, ObjectMetadata{}, gwerrors.ErrInternalError.WithDetail(fmt.Sprintf("get_object on %q: %v", b.name, err))
	}

	meta := ObjectMetadata{Key: key, ContentType: DefaultContentType}
	if out.ContentLength != nil {
		meta.Size = *out.ContentLength
	}
	if out.ETag != nil {
		meta.ETag = *out.ETag
	}
	if out.LastModified != nil {
		meta.LastModified = out.LastModified.UTC()
	}
	if out.ContentType != nil {
		meta.ContentType = *out.ContentType
	}
	return out.Body, meta, nil
}

func (b *S3Backend) PutObject(ctx context.Context, key string, body io.Reader) (string, error) {
	// The upstream SDK call needs a seekable body with a known length for
	// retry support, so the stream is buffered here -- per backend, not
	// across the whole fan-out, which is where the no-buffering rule binds.
	data, err := io.ReadAll(body)
	if err != nil {
		return "", gwerrors.ErrInternalError.WithDetail(fmt.Sprintf("reading body for %q: %v", b.name, err))
	}

	out, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", gwerrors.ErrInternalError.WithDetail(fmt.Sprintf("put_object on %q: %v", b.name, err))
	}

	if out.ETag != nil {
		return *out.ETag, nil
	}
	return computeETag(data), nil
}

func (b *S3Backend) DeleteObject(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(b.bucket), Key: aws.String(key)})
	if err != nil {
		return gwerrors.ErrInternalError.WithDetail(fmt.Sprintf("delete_object on %q: %v", b.name, err))
	}
	return nil
}

// isS3NotFound reports whether err represents a missing key or bucket,
// checking the smithy API error code, the typed NoSuchKey error, and the
// raw HTTP status as a fallback -- S3-compatible services are inconsistent
// about which of the three they populate.
func isS3NotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "404", "NoSuchBucket":
			return true
		}
	}

	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}

	var respErr interface{ HTTPStatusCode() int }
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404 {
		return true
	}

	return false
}

var _ Storage = (*S3Backend)(nil)
