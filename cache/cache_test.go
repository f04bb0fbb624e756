package cache

import (
	"math/big"
	"testing"
	"time"

	"github.com/cryptoxpress/cxmarket/schema"
	"github.com/stretchr/testify/assert"
)

func TestListingCache(t *testing.T) {
	c, err := NewLocalCache(time.Minute)
	assert.NoError(t, err)

	l := schema.Listing{
		Initialized:    true,
		NFTContract:    schema.HexToAddress("0x01"),
		Owner:          schema.HexToAddress("0x02"),
		TokenID:        7,
		ListingType:    schema.ListingFixedPrice,
		ListedQuantity: 3,
		Price:          big.NewInt(1000),
	}

	_, ok := c.GetListing(l.Key())
	assert.False(t, ok)

	c.SetListing(l)
	got, ok := c.GetListing(l.Key())
	assert.True(t, ok)
	assert.Equal(t, l.TokenID, got.TokenID)
	assert.Equal(t, 0, l.Price.Cmp(got.Price))

	c.InvalidateListing(l.Key())
	_, ok = c.GetListing(l.Key())
	assert.False(t, ok)
}

func TestNilCache(t *testing.T) {
	var c *Cache
	c.SetListing(schema.Listing{})
	c.InvalidateListing("k")
	_, ok := c.GetListing("k")
	assert.False(t, ok)
}
