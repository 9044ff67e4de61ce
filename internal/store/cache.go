package store

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/berthelol/reference-images/internal/descriptor"
	"github.com/berthelol/reference-images/internal/filehandler"
)

// Default cache lifetimes. Stored descriptors are immutable, so entries only
// expire to bound memory in long-lived processes.
const (
	DefaultCacheTTL     = 15 * time.Minute
	defaultCacheCleanup = 5 * time.Minute
)

// CachedStore is a read-through cache in front of a TemplateStore. Misses
// (ErrNotFound) are not cached. Callers receive clones of cached descriptors
// and may modify them freely.
type CachedStore struct {
	next  TemplateStore
	cache *gocache.Cache
}

var _ TemplateStore = (*CachedStore)(nil)

// NewCachedStore wraps next. ttl <= 0 selects DefaultCacheTTL.
func NewCachedStore(next TemplateStore, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedStore{next: next, cache: gocache.New(ttl, defaultCacheCleanup)}
}

func (c *CachedStore) GetReferenceDescriptor(ctx context.Context, id string) (*descriptor.Descriptor, error) {
	key := "desc:" + id
	if v, ok := c.cache.Get(key); ok {
		log.Debug().Str("templateId", id).Msg("Descriptor cache hit")
		return v.(*descriptor.Descriptor).Clone()
	}
	d, err := c.next.GetReferenceDescriptor(ctx, id)
	if err != nil {
		return nil, err
	}
	cached, err := d.Clone()
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, cached)
	return d, nil
}

func (c *CachedStore) GetTemplateImage(ctx context.Context, id string) (filehandler.Image, error) {
	key := "img:" + id
	if v, ok := c.cache.Get(key); ok {
		return v.(filehandler.Image), nil
	}
	img, err := c.next.GetTemplateImage(ctx, id)
	if err != nil {
		return filehandler.Image{}, err
	}
	c.cache.SetDefault(key, img)
	return img, nil
}

// Invalidate drops cached entries for id, e.g. after re-ingestion.
func (c *CachedStore) Invalidate(id string) {
	c.cache.Delete("desc:" + id)
	c.cache.Delete("img:" + id)
}
