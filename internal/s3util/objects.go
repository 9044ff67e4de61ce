// Package s3util provides the S3 object helpers shared by the template image
// store and the Lambda handlers.
package s3util

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"
)

// ObjectAPI is the subset of the S3 client used here. *s3.Client satisfies it.
type ObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ErrTooLarge is returned when an object exceeds the read limit.
var ErrTooLarge = errors.New("object exceeds size limit")

// GetObjectBytes reads a whole object into memory, refusing objects larger
// than limit bytes (limit <= 0 means no limit). It returns the body and the
// stored Content-Type.
func GetObjectBytes(ctx context.Context, client ObjectAPI, bucket, key string, limit int64) ([]byte, string, error) {
	log.Debug().Str("bucket", bucket).Str("key", key).Msg("Downloading from S3")
	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket, Key: &key,
	})
	if err != nil {
		return nil, "", fmt.Errorf("S3 GetObject %s: %w", key, err)
	}
	defer result.Body.Close()

	var body io.Reader = result.Body
	if limit > 0 {
		body = io.LimitReader(result.Body, limit+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, "", fmt.Errorf("read S3 object %s: %w", key, err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, "", fmt.Errorf("S3 object %s: %w", key, ErrTooLarge)
	}

	contentType := ""
	if result.ContentType != nil {
		contentType = *result.ContentType
	}
	return data, contentType, nil
}

// PutObjectBytes uploads data with the project cost-allocation tag.
func PutObjectBytes(ctx context.Context, client ObjectAPI, bucket, key string, data []byte, contentType string) error {
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
		Tagging:     ProjectTagging(),
	})
	if err != nil {
		return fmt.Errorf("S3 PutObject %s: %w", key, err)
	}
	log.Debug().Str("bucket", bucket).Str("key", key).Int("bytes", len(data)).Msg("Uploaded to S3")
	return nil
}

// IsNotFound reports whether err is an S3 missing-key error.
func IsNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *s3types.NotFound
	return errors.As(err, &nf)
}
