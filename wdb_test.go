package cxmarket

import (
	"math/big"
	"testing"

	"github.com/cryptoxpress/cxmarket/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWdb(t *testing.T) *Wdb {
	w := NewSqliteDb(t.TempDir())
	require.NoError(t, w.Migrate())
	return w
}

func TestWdbListingRoundTrip(t *testing.T) {
	w := newTestWdb(t)

	l := schema.Listing{
		Initialized:    true,
		NFTContract:    schema.HexToAddress("0x01"),
		Owner:          schema.HexToAddress("0x02"),
		TokenID:        7,
		ListingType:    schema.ListingAuction,
		ListedQuantity: 3,
		Price:          big.NewInt(1234),
		PaymentToken:   schema.NativeToken,
		StartTime:      100,
		EndTime:        200,
	}
	require.NoError(t, w.SaveListing(l))

	// saving the same key again updates in place
	l.ListedQuantity = 2
	l.ApprovedBidder = schema.HexToAddress("0x03")
	l.ApprovedBidAmount = big.NewInt(1500)
	l.ApprovedBidQuantity = 1
	require.NoError(t, w.SaveListing(l))

	listings, err := w.GetListings()
	require.NoError(t, err)
	require.Len(t, listings, 1)
	got := listings[0]
	assert.Equal(t, uint64(2), got.ListedQuantity)
	assert.Equal(t, 0, got.Price.Cmp(big.NewInt(1234)))
	assert.Equal(t, 0, got.ApprovedBidAmount.Cmp(big.NewInt(1500)))
	assert.Equal(t, schema.ListingAuction, got.ListingType)

	// delisted rows are filtered out of reloads
	l.Initialized = false
	require.NoError(t, w.SaveListing(l))
	listings, err = w.GetListings()
	require.NoError(t, err)
	assert.Len(t, listings, 0)
}

func TestWdbSales(t *testing.T) {
	w := newTestWdb(t)

	sale := schema.Sale{
		NFTContract:  schema.HexToAddress("0x01"),
		TokenID:      7,
		Quantity:     2,
		Buyer:        schema.HexToAddress("0x02"),
		Seller:       schema.HexToAddress("0x03"),
		PaymentToken: schema.NativeToken,
		Price:        big.NewInt(1000),
		Total:        big.NewInt(2000),
		Commission:   big.NewInt(50),
		Royalty:      big.NewInt(200),
	}
	require.NoError(t, w.InsertSale("evt-1", sale))
	// duplicate event ids are dropped, not duplicated
	require.NoError(t, w.InsertSale("evt-1", sale))

	total, err := w.CountSales()
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	rows, err := w.GetSales(10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2000", rows[0].Total)
	assert.Equal(t, "evt-1", rows[0].EventID)
}

func TestWdbNonces(t *testing.T) {
	w := newTestWdb(t)
	signer := schema.HexToAddress("0x05")

	n, err := w.GetNonce(signer)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)

	require.NoError(t, w.SaveNonce(signer, 1))
	require.NoError(t, w.SaveNonce(signer, 2))
	n, err = w.GetNonce(signer)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
}

func TestWdbBans(t *testing.T) {
	w := newTestWdb(t)

	require.NoError(t, w.SaveBan(schema.BanKindAccount, "0xabc", 0, true))
	require.NoError(t, w.SaveBan(schema.BanKindToken, "0xdef", 7, true))
	require.NoError(t, w.SaveBan(schema.BanKindToken, "0xdef", 7, false))

	bans, err := w.GetBans()
	require.NoError(t, err)
	require.Len(t, bans, 1)
	assert.Equal(t, schema.BanKindAccount, bans[0].Kind)
}

func TestWdbNilSafe(t *testing.T) {
	var w *Wdb
	assert.NoError(t, w.Migrate())
	assert.NoError(t, w.SaveListing(schema.Listing{}))
	assert.NoError(t, w.SaveNonce(schema.Account{}, 1))
	n, err := w.GetNonce(schema.Account{})
	assert.NoError(t, err)
	assert.Zero(t, n)
}
