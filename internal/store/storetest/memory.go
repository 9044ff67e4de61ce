// Package storetest provides an in-memory template library for tests.
package storetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/berthelol/reference-images/internal/descriptor"
	"github.com/berthelol/reference-images/internal/filehandler"
	"github.com/berthelol/reference-images/internal/store"
	"github.com/berthelol/reference-images/internal/taxonomy"
)

// Memory is a store.Library held in maps. Reads count calls so tests can
// assert what a run touched.
type Memory struct {
	mu        sync.Mutex
	Templates map[string]*store.Template
	Taxonomy  taxonomy.Taxonomy
	Tags      map[string][]store.ImageTag
	Proposed  map[string][]store.ProposedTag
	Reads     int
}

var _ store.Library = (*Memory)(nil)

// NewMemory returns an empty library.
func NewMemory() *Memory {
	return &Memory{
		Templates: map[string]*store.Template{},
		Tags:      map[string][]store.ImageTag{},
		Proposed:  map[string][]store.ProposedTag{},
	}
}

// Add stores a template with a descriptor and image.
func (m *Memory) Add(id string, d *descriptor.Descriptor, img filehandler.Image) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Templates[id] = &store.Template{ID: id, Descriptor: d, Image: img}
}

func (m *Memory) GetReferenceDescriptor(ctx context.Context, id string) (*descriptor.Descriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reads++
	t, ok := m.Templates[id]
	if !ok || t.Descriptor == nil {
		return nil, fmt.Errorf("descriptor of template %s: %w", id, store.ErrNotFound)
	}
	return t.Descriptor.Clone()
}

func (m *Memory) GetTemplateImage(ctx context.Context, id string) (filehandler.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reads++
	t, ok := m.Templates[id]
	if !ok || t.Image.IsZero() {
		return filehandler.Image{}, fmt.Errorf("image of template %s: %w", id, store.ErrNotFound)
	}
	return t.Image, nil
}

func (m *Memory) PutTemplate(ctx context.Context, t *store.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.Templates[t.ID] = &cp
	return nil
}

func (m *Memory) ListTags(ctx context.Context) (taxonomy.Taxonomy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Taxonomy, nil
}

func (m *Memory) PutImageTags(ctx context.Context, templateID string, tags []store.ImageTag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Tags[templateID] = tags
	return nil
}

func (m *Memory) PutProposedTags(ctx context.Context, templateID string, tags []store.ProposedTag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Proposed[templateID] = append(m.Proposed[templateID], tags...)
	return nil
}

// Template returns a stored template or nil.
func (m *Memory) Template(id string) *store.Template {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Templates[id]
}
