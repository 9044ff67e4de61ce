package filehandler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/berthelol/reference-images/internal/s3util"
)

// MaxImageBytes caps a single fetched or uploaded image.
const MaxImageBytes = 20 << 20

// Loader resolves image references (data URLs, http(s) URLs, s3:// URLs,
// local paths) into in-memory images.
type Loader struct {
	HTTPClient *http.Client
	// S3 serves s3://bucket/key references. Nil rejects them.
	S3 s3util.ObjectAPI
	// AllowLocal permits plain filesystem paths. Only the CLI enables it.
	AllowLocal bool
}

// NewLoader returns a Loader with a bounded HTTP client.
func NewLoader() *Loader {
	return &Loader{HTTPClient: &http.Client{Timeout: 30 * time.Second}}
}

// Load resolves one image reference.
func (l *Loader) Load(ctx context.Context, ref string) (Image, error) {
	switch {
	case strings.HasPrefix(ref, "data:"):
		return ParseDataURL(ref)
	case strings.HasPrefix(ref, "https://"), strings.HasPrefix(ref, "http://"):
		return l.fetch(ctx, ref)
	case strings.HasPrefix(ref, "s3://"):
		return l.fetchS3(ctx, ref)
	case l.AllowLocal:
		return ReadImageFile(ref)
	default:
		return Image{}, fmt.Errorf("unsupported image reference: expected a data URL or an http(s) URL")
	}
}

// LoadAll resolves every reference in order, failing on the first error.
func (l *Loader) LoadAll(ctx context.Context, refs []string) ([]Image, error) {
	images := make([]Image, 0, len(refs))
	for i, ref := range refs {
		img, err := l.Load(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		images = append(images, img)
	}
	return images, nil
}

func (l *Loader) fetch(ctx context.Context, url string) (Image, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Image{}, fmt.Errorf("failed to create request: %w", err)
	}
	client := l.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Image{}, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Image{}, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes+1))
	if err != nil {
		return Image{}, fmt.Errorf("failed to read image body: %w", err)
	}
	if len(data) > MaxImageBytes {
		return Image{}, fmt.Errorf("image exceeds %d bytes", MaxImageBytes)
	}
	if len(data) == 0 {
		return Image{}, fmt.Errorf("downloaded image is empty")
	}

	img := NewImage(data)
	log.Debug().
		Str("url", url).
		Int("bytes", len(data)).
		Str("mime", img.MIMEType).
		Dur("duration", time.Since(start)).
		Msg("Image downloaded")
	return img, nil
}

func (l *Loader) fetchS3(ctx context.Context, ref string) (Image, error) {
	if l.S3 == nil {
		return Image{}, fmt.Errorf("s3 image references are not enabled")
	}
	bucket, key, ok := strings.Cut(strings.TrimPrefix(ref, "s3://"), "/")
	if !ok || bucket == "" || key == "" {
		return Image{}, fmt.Errorf("malformed s3 reference %q", ref)
	}
	data, _, err := s3util.GetObjectBytes(ctx, l.S3, bucket, key, MaxImageBytes)
	if err != nil {
		return Image{}, err
	}
	if len(data) == 0 {
		return Image{}, fmt.Errorf("s3 object %s is empty", key)
	}
	// Stored Content-Type is not trusted; sniff like every other source.
	return NewImage(data), nil
}

// ReadImageFile loads an image from disk. The extension decides the MIME type
// when it is a known image extension.
func ReadImageFile(path string) (Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("failed to read image file: %w", err)
	}
	if len(data) == 0 {
		return Image{}, fmt.Errorf("image file %s is empty", path)
	}
	if mimeType, ok := SupportedImageExtensions[strings.ToLower(filepath.Ext(path))]; ok {
		return Image{Data: data, MIMEType: mimeType}, nil
	}
	return NewImage(data), nil
}

// WriteImageFile writes img to path, creating parent directories.
func WriteImageFile(path string, img Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, img.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	return nil
}
