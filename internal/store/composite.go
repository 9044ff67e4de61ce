package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/berthelol/reference-images/internal/descriptor"
	"github.com/berthelol/reference-images/internal/filehandler"
	"github.com/berthelol/reference-images/internal/taxonomy"
)

// Composite joins a metadata store with an image store, e.g. DynamoDB + S3.
// Tags are served by Tags when set.
type Composite struct {
	Meta   MetadataStore
	Images ImageStore
	Tags   TagStore
}

var _ Library = (*Composite)(nil)

func (c *Composite) GetReferenceDescriptor(ctx context.Context, id string) (*descriptor.Descriptor, error) {
	return c.Meta.GetReferenceDescriptor(ctx, id)
}

func (c *Composite) GetTemplateImage(ctx context.Context, id string) (filehandler.Image, error) {
	return c.Images.GetImage(ctx, id)
}

// PutTemplate writes the image first so a readable META record always has
// its image.
func (c *Composite) PutTemplate(ctx context.Context, t *Template) error {
	if !t.Image.IsZero() {
		if err := c.Images.PutImage(ctx, t.ID, t.Image); err != nil {
			return fmt.Errorf("store template image: %w", err)
		}
	}
	if err := c.Meta.PutTemplateMeta(ctx, t); err != nil {
		return fmt.Errorf("store template metadata: %w", err)
	}
	return nil
}

var errNoTagStore = errors.New("store: no tag store configured")

func (c *Composite) ListTags(ctx context.Context) (taxonomy.Taxonomy, error) {
	if c.Tags == nil {
		return taxonomy.Taxonomy{}, errNoTagStore
	}
	return c.Tags.ListTags(ctx)
}

func (c *Composite) PutImageTags(ctx context.Context, templateID string, tags []ImageTag) error {
	if c.Tags == nil {
		return errNoTagStore
	}
	return c.Tags.PutImageTags(ctx, templateID, tags)
}

func (c *Composite) PutProposedTags(ctx context.Context, templateID string, tags []ProposedTag) error {
	if c.Tags == nil {
		return errNoTagStore
	}
	return c.Tags.PutProposedTags(ctx, templateID, tags)
}
