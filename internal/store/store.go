// Package store persists the reference-template library: template images,
// their reference descriptors and taxonomy tags.
//
// Generation pipelines only read (TemplateStore). Ingestion writes templates
// and tags (TemplateWriter, TagStore). A stored descriptor is never updated in
// place; re-ingesting a template replaces the whole record.
//
// Backends:
//   - DynamoStore: single-table DynamoDB (TEMPLATE#{id} / META), descriptor as a zstd blob
//   - S3Images: template image bytes in S3, joined to a descriptor store by Composite
//   - PostgresStore: images, tags, image_tags and proposed_tags tables
//   - LocalStore: a directory of {id}.json + {id}.{ext} files for the CLI
//   - CachedStore: read-through in-memory cache in front of any TemplateStore
package store

import (
	"context"
	"errors"
	"time"

	"github.com/berthelol/reference-images/internal/descriptor"
	"github.com/berthelol/reference-images/internal/filehandler"
	"github.com/berthelol/reference-images/internal/taxonomy"
)

// ErrNotFound is returned (wrapped) when a template, descriptor or image does
// not exist.
var ErrNotFound = errors.New("not found")

// Template is one library entry. Descriptor is nil when extraction has not
// produced one yet.
type Template struct {
	ID          string
	Source      string
	Width       int
	Height      int
	AspectRatio string
	Description string
	Descriptor  *descriptor.Descriptor
	Image       filehandler.Image
	CreatedAt   time.Time
}

// ImageTag is one validated taxonomy tag attached to a template.
type ImageTag struct {
	TagID      string
	Confidence float64
}

// ProposedTag is a model-suggested tag awaiting review.
type ProposedTag struct {
	Name        string
	ParentTagID string
	Reasoning   string
}

// TemplateStore is the read side used by the generation pipelines.
type TemplateStore interface {
	// GetReferenceDescriptor returns the stored descriptor of id. It wraps
	// ErrNotFound when the template or its descriptor is missing.
	GetReferenceDescriptor(ctx context.Context, id string) (*descriptor.Descriptor, error)
	// GetTemplateImage returns the template image bytes of id. It wraps
	// ErrNotFound when missing.
	GetTemplateImage(ctx context.Context, id string) (filehandler.Image, error)
}

// TemplateWriter persists ingested templates.
type TemplateWriter interface {
	PutTemplate(ctx context.Context, t *Template) error
}

// TagStore reads the taxonomy and records tag assignments.
type TagStore interface {
	ListTags(ctx context.Context) (taxonomy.Taxonomy, error)
	PutImageTags(ctx context.Context, templateID string, tags []ImageTag) error
	PutProposedTags(ctx context.Context, templateID string, tags []ProposedTag) error
}

// ImageStore holds template image bytes keyed by template ID.
type ImageStore interface {
	GetImage(ctx context.Context, id string) (filehandler.Image, error)
	PutImage(ctx context.Context, id string, img filehandler.Image) error
}

// MetadataStore holds everything about a template except its image bytes.
type MetadataStore interface {
	GetReferenceDescriptor(ctx context.Context, id string) (*descriptor.Descriptor, error)
	PutTemplateMeta(ctx context.Context, t *Template) error
}

// Library is a complete read/write store.
type Library interface {
	TemplateStore
	TemplateWriter
	TagStore
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
