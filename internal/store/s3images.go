package store

import (
	"context"
	"fmt"

	"github.com/berthelol/reference-images/internal/filehandler"
	"github.com/berthelol/reference-images/internal/s3util"
)

// templatePrefix is the S3 key prefix of template images.
const templatePrefix = "templates/"

// S3Images stores template image bytes at templates/{id}.
type S3Images struct {
	client s3util.ObjectAPI
	bucket string
}

var _ ImageStore = (*S3Images)(nil)

// NewS3Images returns an image store over bucket.
func NewS3Images(client s3util.ObjectAPI, bucket string) *S3Images {
	return &S3Images{client: client, bucket: bucket}
}

func (s *S3Images) key(id string) string { return templatePrefix + id }

func (s *S3Images) GetImage(ctx context.Context, id string) (filehandler.Image, error) {
	data, contentType, err := s3util.GetObjectBytes(ctx, s.client, s.bucket, s.key(id), filehandler.MaxImageBytes)
	if err != nil {
		if s3util.IsNotFound(err) {
			return filehandler.Image{}, fmt.Errorf("image of template %s: %w", id, ErrNotFound)
		}
		return filehandler.Image{}, err
	}
	img := filehandler.NewImage(data)
	if contentType != "" && contentType != "application/octet-stream" {
		img.MIMEType = contentType
	}
	return img, nil
}

func (s *S3Images) PutImage(ctx context.Context, id string, img filehandler.Image) error {
	return s3util.PutObjectBytes(ctx, s.client, s.bucket, s.key(id), img.Data, img.MIMEType)
}
