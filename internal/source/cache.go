package source

import (
	"context"
	"image"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache keeps recently decoded images keyed by Image.Key. Concurrent decodes
// of the same key are collapsed into one.
type Cache struct {
	mu    sync.Mutex
	items map[string]image.Image
	order []string
	limit int
	group singleflight.Group
}

// NewCache returns a cache holding at most limit decoded images.
func NewCache(limit int) *Cache {
	if limit < 1 {
		limit = 1
	}
	return &Cache{items: make(map[string]image.Image), limit: limit}
}

// Decode returns the cached pixels for img or decodes them.
func (c *Cache) Decode(ctx context.Context, img Image) (image.Image, error) {
	key := img.Key()

	c.mu.Lock()
	if cached, ok := c.items[key]; ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		c.mu.Lock()
		cached, ok := c.items[key]
		c.mu.Unlock()
		if ok {
			return cached, nil
		}

		decoded, err := img.Decode(ctx)
		if err != nil {
			return nil, err
		}
		c.put(key, decoded)
		return decoded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(image.Image), nil
}

func (c *Cache) put(key string, img image.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[key]; ok {
		return
	}
	c.items[key] = img
	c.order = append(c.order, key)
	for len(c.order) > c.limit {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.items, oldest)
	}
}

// Forget drops a cached entry, e.g. after the underlying file changed.
func (c *Cache) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[key]; !ok {
		return
	}
	delete(c.items, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of cached images.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
