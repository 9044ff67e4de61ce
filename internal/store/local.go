package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/berthelol/reference-images/internal/descriptor"
	"github.com/berthelol/reference-images/internal/filehandler"
	"github.com/berthelol/reference-images/internal/taxonomy"
)

// LocalStore keeps templates in a directory:
//
//	{id}.json          reference descriptor
//	{id}.{png,jpg...}  template image
//	{id}.meta.json     template metadata and tags
//	taxonomy.json      tag table
type LocalStore struct {
	dir string
	mu  sync.Mutex // serializes metadata read-modify-write
}

var _ Library = (*LocalStore)(nil)

// NewLocalStore returns a store rooted at dir, creating it if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

// Dir returns the root directory.
func (s *LocalStore) Dir() string { return s.dir }

type localMeta struct {
	ID          string        `json:"id"`
	Source      string        `json:"source,omitempty"`
	Width       int           `json:"width"`
	Height      int           `json:"height"`
	AspectRatio string        `json:"aspectRatio"`
	Description string        `json:"description,omitempty"`
	ImageFile   string        `json:"imageFile,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	Tags        []ImageTag    `json:"tags,omitempty"`
	Proposed    []ProposedTag `json:"proposedTags,omitempty"`
}

func (s *LocalStore) path(name string) string { return filepath.Join(s.dir, name) }

func validID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return fmt.Errorf("invalid template id %q", id)
	}
	return nil
}

func (s *LocalStore) GetReferenceDescriptor(ctx context.Context, id string) (*descriptor.Descriptor, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(id + ".json"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("descriptor of template %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}
	return descriptor.Parse(data)
}

func (s *LocalStore) GetTemplateImage(ctx context.Context, id string) (filehandler.Image, error) {
	if err := validID(id); err != nil {
		return filehandler.Image{}, err
	}
	meta, err := s.readMeta(id)
	if err == nil && meta.ImageFile != "" {
		return filehandler.ReadImageFile(s.path(meta.ImageFile))
	}
	for ext := range filehandler.SupportedImageExtensions {
		p := s.path(id + ext)
		if _, statErr := os.Stat(p); statErr == nil {
			return filehandler.ReadImageFile(p)
		}
	}
	return filehandler.Image{}, fmt.Errorf("image of template %s: %w", id, ErrNotFound)
}

func (s *LocalStore) PutTemplate(ctx context.Context, t *Template) error {
	if err := validID(t.ID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, _ := s.readMeta(t.ID)
	meta.ID = t.ID
	meta.Source = t.Source
	meta.Width, meta.Height = t.Width, t.Height
	meta.AspectRatio = t.AspectRatio
	meta.Description = t.Description
	meta.CreatedAt = t.CreatedAt
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}

	if !t.Image.IsZero() {
		meta.ImageFile = t.ID + filehandler.ExtensionFor(t.Image.MIMEType)
		if err := filehandler.WriteImageFile(s.path(meta.ImageFile), t.Image); err != nil {
			return err
		}
	}
	if t.Descriptor != nil {
		data, err := t.Descriptor.MarshalIndent()
		if err != nil {
			return fmt.Errorf("encode descriptor: %w", err)
		}
		if err := os.WriteFile(s.path(t.ID+".json"), data, 0o644); err != nil {
			return fmt.Errorf("write descriptor: %w", err)
		}
	}
	if err := s.writeMeta(meta); err != nil {
		return err
	}
	log.Debug().Str("templateId", t.ID).Str("dir", s.dir).Msg("Template stored locally")
	return nil
}

// --- Tags ---

func (s *LocalStore) ListTags(ctx context.Context) (taxonomy.Taxonomy, error) {
	data, err := os.ReadFile(s.path("taxonomy.json"))
	if errors.Is(err, os.ErrNotExist) {
		return taxonomy.Taxonomy{}, nil
	}
	if err != nil {
		return taxonomy.Taxonomy{}, fmt.Errorf("read taxonomy: %w", err)
	}
	var tax taxonomy.Taxonomy
	if err := json.Unmarshal(data, &tax); err != nil {
		return taxonomy.Taxonomy{}, fmt.Errorf("decode taxonomy: %w", err)
	}
	return taxonomy.New(tax.Categories), nil
}

// PutTaxonomy replaces taxonomy.json.
func (s *LocalStore) PutTaxonomy(tax taxonomy.Taxonomy) error {
	data, err := json.MarshalIndent(tax, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path("taxonomy.json"), data, 0o644)
}

func (s *LocalStore) PutImageTags(ctx context.Context, templateID string, tags []ImageTag) error {
	return s.updateMeta(templateID, func(m *localMeta) { m.Tags = tags })
}

func (s *LocalStore) PutProposedTags(ctx context.Context, templateID string, tags []ProposedTag) error {
	return s.updateMeta(templateID, func(m *localMeta) { m.Proposed = append(m.Proposed, tags...) })
}

// ImageTags returns the stored tags of a template.
func (s *LocalStore) ImageTags(templateID string) ([]ImageTag, error) {
	m, err := s.readMeta(templateID)
	if err != nil {
		return nil, err
	}
	return m.Tags, nil
}

func (s *LocalStore) updateMeta(id string, fn func(*localMeta)) error {
	if err := validID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, _ := s.readMeta(id)
	m.ID = id
	fn(&m)
	return s.writeMeta(m)
}

func (s *LocalStore) readMeta(id string) (localMeta, error) {
	var m localMeta
	data, err := os.ReadFile(s.path(id + ".meta.json"))
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(data, &m)
	return m, err
}

func (s *LocalStore) writeMeta(m localMeta) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := os.WriteFile(s.path(m.ID+".meta.json"), data, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}
