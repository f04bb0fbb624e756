package schema

import (
	"time"

	"gorm.io/datatypes"
)

// ListingRow is the durable mirror of one Listing. The in-memory table is
// authoritative inside a call; rows are written after every committed
// mutation and reloaded on startup.
type ListingRow struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	NFTContract string `gorm:"index:idx_listing_key,unique" json:"nftContract"`
	Owner       string `gorm:"index:idx_listing_key,unique" json:"owner"`
	TokenID     uint64 `gorm:"index:idx_listing_key,unique" json:"tokenId"`

	ListingType  uint8  `json:"listingType"`
	Quantity     uint64 `json:"quantity"`
	Price        string `json:"price"` // decimal string, wei scale
	PaymentToken string `json:"paymentToken"`
	StartTime    int64  `json:"startTime"`
	EndTime      int64  `json:"endTime"`

	Bidder      string `json:"bidder"`
	BidAmount   string `json:"bidAmount"`
	BidQuantity uint64 `json:"bidQuantity"`

	Initialized bool `json:"initialized"`
}

// SaleRow is an append-only settlement record, one per Sold event.
type SaleRow struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	EventID     string `gorm:"unique" json:"eventId"` // uuid
	NFTContract string `gorm:"index:idx_sale_token" json:"nftContract"`
	TokenID     uint64 `gorm:"index:idx_sale_token" json:"tokenId"`
	Buyer       string `gorm:"index" json:"buyer"`
	Seller      string `gorm:"index" json:"seller"`

	PaymentToken string         `json:"paymentToken"`
	Total        string         `json:"total"`
	Commission   string         `json:"commission"`
	Royalty      string         `json:"royalty"`
	Breakdown    datatypes.JSON `json:"breakdown"` // json.Marshal(Sale)
}

// NonceRow persists the relay's per-signer counter.
type NonceRow struct {
	Signer    string    `gorm:"primarykey" json:"signer"`
	Nonce     uint64    `json:"nonce"`
	UpdatedAt time.Time `json:"updatedAt"`
}

const (
	BanKindAccount  = "account"
	BanKindContract = "contract"
	BanKindToken    = "token"
)

// BanRow persists one ban flag. Key layout per kind:
// account -> Subject=account hex; contract -> Subject=contract hex;
// token -> Subject=contract hex + TokenID.
type BanRow struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UpdatedAt time.Time `json:"updatedAt"`

	Kind    string `gorm:"index:idx_ban,unique" json:"kind"`
	Subject string `gorm:"index:idx_ban,unique" json:"subject"`
	TokenID uint64 `gorm:"index:idx_ban,unique" json:"tokenId"`
	Banned  bool   `json:"banned"`
}

// PaymentTokenRow persists the allow list of ERC20-style payment tokens.
type PaymentTokenRow struct {
	Token     string    `gorm:"primarykey" json:"token"`
	Allowed   bool      `json:"allowed"`
	UpdatedAt time.Time `json:"updatedAt"`
}
