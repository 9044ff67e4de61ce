package filehandler

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif" // GIF headers are read when rejecting GIF templates
	"image/jpeg"
	"image/png"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // registers the WebP decoder for image.Decode
)

// MIME types of the image formats the pipelines accept or produce.
const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEWebP = "image/webp"
	MIMEGIF  = "image/gif"
	MIMESVG  = "image/svg+xml"
)

// SupportedImageExtensions maps file extensions to image MIME types.
var SupportedImageExtensions = map[string]string{
	".jpg":  MIMEJPEG,
	".jpeg": MIMEJPEG,
	".png":  MIMEPNG,
	".webp": MIMEWebP,
	".gif":  MIMEGIF,
	".svg":  MIMESVG,
}

// ExtensionFor returns the canonical file extension for an image MIME type.
func ExtensionFor(mimeType string) string {
	switch mimeType {
	case MIMEJPEG:
		return ".jpg"
	case MIMEPNG:
		return ".png"
	case MIMEGIF:
		return ".gif"
	case MIMESVG:
		return ".svg"
	default:
		return ".webp"
	}
}

// Image is an in-memory image payload as it crosses the model boundary.
type Image struct {
	Data     []byte
	MIMEType string
}

// NewImage wraps raw bytes, sniffing the MIME type from the content.
func NewImage(data []byte) Image {
	return Image{Data: data, MIMEType: DetectMIMEType(data)}
}

// IsZero reports whether the image carries no data.
func (img Image) IsZero() bool {
	return len(img.Data) == 0
}

// DetectMIMEType sniffs the image format. Unknown content falls back to
// image/webp, the format templates are stored in.
func DetectMIMEType(data []byte) string {
	if isSVG(data) {
		return MIMESVG
	}
	ct := http.DetectContentType(data)
	switch ct {
	case MIMEJPEG, MIMEPNG, MIMEGIF, MIMEWebP:
		return ct
	}
	return MIMEWebP
}

func isSVG(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	s := strings.ToLower(strings.TrimSpace(string(head)))
	if strings.HasPrefix(s, "<svg") {
		return true
	}
	return strings.HasPrefix(s, "<?xml") && strings.Contains(s, "<svg")
}

// DataURL encodes the image as a base64 data URL.
func (img Image) DataURL() string {
	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = DetectMIMEType(img.Data)
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// ParseDataURL decodes a base64 data URL ("data:image/png;base64,....").
// The MIME type in the header wins over sniffing when present.
func ParseDataURL(s string) (Image, error) {
	if !strings.HasPrefix(s, "data:") {
		return Image{}, fmt.Errorf("not a data URL")
	}
	header, payload, ok := strings.Cut(s[len("data:"):], ",")
	if !ok {
		return Image{}, fmt.Errorf("malformed data URL: missing comma")
	}
	if !strings.HasSuffix(header, ";base64") {
		return Image{}, fmt.Errorf("malformed data URL: only base64 payloads are supported")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, fmt.Errorf("failed to decode data URL payload: %w", err)
	}
	if len(data) == 0 {
		return Image{}, fmt.Errorf("data URL has an empty payload")
	}
	mimeType := strings.TrimSuffix(header, ";base64")
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = DetectMIMEType(data)
	}
	return Image{Data: data, MIMEType: mimeType}, nil
}

// Dimensions decodes only the image header and returns width and height.
func (img Image) Dimensions() (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode image header: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// Resize scales the image so neither side exceeds maxDimension, keeping the
// aspect ratio. Images already within bounds are returned unchanged. The
// result is PNG when the source was PNG and JPEG otherwise.
func (img Image) Resize(maxDimension int) (Image, error) {
	src, format, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return Image{}, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := src.Bounds()
	origWidth, origHeight := bounds.Dx(), bounds.Dy()
	if origWidth <= maxDimension && origHeight <= maxDimension {
		return img, nil
	}

	newWidth, newHeight := scaledDimensions(origWidth, origHeight, maxDimension)
	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	out := Image{MIMEType: MIMEJPEG}
	if format == "png" {
		out.MIMEType = MIMEPNG
		err = png.Encode(&buf, resized)
	} else {
		err = jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 90})
	}
	if err != nil {
		return Image{}, fmt.Errorf("failed to encode resized image: %w", err)
	}
	out.Data = buf.Bytes()

	log.Debug().
		Int("origWidth", origWidth).
		Int("origHeight", origHeight).
		Int("newWidth", newWidth).
		Int("newHeight", newHeight).
		Int("outputBytes", len(out.Data)).
		Msg("Image resized")

	return out, nil
}

// scaledDimensions fits width x height into a maxDimension square.
func scaledDimensions(width, height, maxDimension int) (int, int) {
	if width <= maxDimension && height <= maxDimension {
		return width, height
	}
	if width > height {
		return maxDimension, int(float64(height) * float64(maxDimension) / float64(width))
	}
	return int(float64(width) * float64(maxDimension) / float64(height)), maxDimension
}
