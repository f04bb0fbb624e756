// Package cache is the read cache in front of listing lookups. Entries are
// JSON-encoded listings keyed by the listing key; every listing mutation
// deletes the entry.
package cache

import (
	"encoding/json"
	"time"

	"github.com/cryptoxpress/cxmarket/schema"
)

type Cache struct {
	Cache ICache
}

type ICache interface {
	Set(key string, entry []byte) error

	Get(key string) ([]byte, error)

	Delete(key string) error
}

func NewLocalCache(allKeysExpTime time.Duration) (*Cache, error) {
	cache, err := NewBigCache(allKeysExpTime)
	if err != nil {
		return nil, err
	}
	return &Cache{Cache: cache}, nil
}

// GetListing returns the cached listing; the bool is false on miss or a
// stale entry that fails to decode.
func (c *Cache) GetListing(key string) (schema.Listing, bool) {
	if c == nil {
		return schema.Listing{}, false
	}
	data, err := c.Cache.Get(key)
	if err != nil {
		return schema.Listing{}, false
	}
	l := schema.Listing{}
	if err := json.Unmarshal(data, &l); err != nil {
		return schema.Listing{}, false
	}
	return l, true
}

func (c *Cache) SetListing(l schema.Listing) {
	if c == nil {
		return
	}
	data, err := json.Marshal(l)
	if err != nil {
		return
	}
	_ = c.Cache.Set(l.Key(), data)
}

func (c *Cache) InvalidateListing(key string) {
	if c == nil {
		return
	}
	_ = c.Cache.Delete(key)
}
