package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
	"github.com/savaki/stage-pipeline/internal/errors"
)

// S3API is the subset of *s3.Client used by S3Gateway.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// notFoundCodes are the error codes S3 returns for a missing key. S3 answers
// a copy from a missing source with InvalidArgument rather than NoSuchKey.
var notFoundCodes = map[string]bool{
	"NoSuchKey":       true,
	"InvalidArgument": true,
	"NotFound":        true,
}

// S3Gateway implements Store on Amazon S3.
type S3Gateway struct {
	client S3API
}

// NewS3Gateway returns a gateway backed by client.
func NewS3Gateway(client S3API) *S3Gateway {
	return &S3Gateway{client: client}
}

func (g *S3Gateway) Read(ctx context.Context, bucket, key string) (data []byte, err error) {
	logger := zerolog.Ctx(ctx)

	defer func(begin time.Time) {
		logger.Info().
			Int("length", len(data)).
			Err(err).
			Str("bucket", bucket).
			Str("key", key).
			Dur("duration", time.Since(begin)).
			Msg("Read S3 object")
	}(time.Now())

	result, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, translate(err, "failed to get object %s from bucket %s", key, bucket)
	}
	//goland:noinspection GoUnhandledErrorResult
	defer result.Body.Close()

	data, err = io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read object content: %w", errors.ErrStorage, err)
	}

	return data, nil
}

func (g *S3Gateway) Write(ctx context.Context, bucket, key string, data []byte) error {
	_, err := g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return translate(err, "failed to put object %s in bucket %s", key, bucket)
	}

	zerolog.Ctx(ctx).Info().
		Str("bucket", bucket).
		Str("key", key).
		Int("length", len(data)).
		Msg("Wrote S3 object")
	return nil
}

// Move copies and then deletes. If the delete fails after a successful copy
// the object is live at both keys; that is logged and left for the
// reconciler, and the move still counts as done.
func (g *S3Gateway) Move(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	logger := zerolog.Ctx(ctx)

	if srcBucket == dstBucket && srcKey == dstKey {
		ok, err := g.Exists(ctx, srcBucket, srcKey)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s/%s", errors.ErrFileNotFound, srcBucket, srcKey)
		}
		return nil
	}

	_, err := g.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(dstBucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(copySource(srcBucket, srcKey)),
	})
	if err != nil {
		return translate(err, "failed to copy %s/%s to %s/%s", srcBucket, srcKey, dstBucket, dstKey)
	}

	_, err = g.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(srcBucket),
		Key:    aws.String(srcKey),
	})
	if err != nil {
		logger.Warn().
			Err(err).
			Str("src_bucket", srcBucket).
			Str("src_key", srcKey).
			Str("dst_bucket", dstBucket).
			Str("dst_key", dstKey).
			Msg("Copied object but failed to delete source; object is live at both keys")
		return nil
	}

	logger.Info().
		Str("src_bucket", srcBucket).
		Str("src_key", srcKey).
		Str("dst_bucket", dstBucket).
		Str("dst_key", dstKey).
		Msg("Moved S3 object")
	return nil
}

func (g *S3Gateway) List(ctx context.Context, bucket, prefix string) ([]Object, error) {
	var objects []Object

	paginator := s3.NewListObjectsV2Paginator(g.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, translate(err, "failed to list %s in bucket %s", prefix, bucket)
		}
		for _, item := range page.Contents {
			objects = append(objects, Object{
				Key:          aws.ToString(item.Key),
				Size:         aws.ToInt64(item.Size),
				LastModified: aws.ToTime(item.LastModified),
			})
		}
	}

	return objects, nil
}

func (g *S3Gateway) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := g.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, translate(err, "failed to head object %s in bucket %s", key, bucket)
	}
	return true, nil
}

// IsNotFound reports whether err is one of the backend's missing-key errors.
func IsNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return notFoundCodes[apiErr.ErrorCode()]
	}
	return false
}

// translate maps backend errors onto ErrFileNotFound or ErrStorage.
func translate(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if IsNotFound(err) {
		return fmt.Errorf("%w: %s: %w", errors.ErrFileNotFound, msg, err)
	}
	return fmt.Errorf("%w: %s: %w", errors.ErrStorage, msg, err)
}

func copySource(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return bucket + "/" + strings.Join(segments, "/")
}
