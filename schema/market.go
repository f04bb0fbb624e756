package schema

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Account identifies a user, contract or ledger. The zero value doubles as
// the native payment token sentinel, same as the on-chain zero address.
type Account = common.Address

var NativeToken = Account{}

func HexToAddress(s string) Account {
	return common.HexToAddress(s)
}

type ListingType uint8

const (
	ListingNone ListingType = iota
	ListingFixedPrice
	ListingAuction
)

const (
	DenominatorBps       = 10000
	MaxRoyaltyBps        = 5000
	DefaultCommissionBps = 250
)

// Listing is one sell offer, keyed by (nftContract, owner, tokenId).
// Initialized distinguishes "never listed" from a delisted record.
type Listing struct {
	Initialized bool        `json:"initialized"`
	NFTContract Account     `json:"nftContract"`
	Owner       Account     `json:"owner"`
	TokenID     uint64      `json:"tokenId"`
	ListingType ListingType `json:"listingType"`

	ListedQuantity uint64   `json:"listedQuantity"`
	Price          *big.Int `json:"price"`
	PaymentToken   Account  `json:"paymentToken"`
	StartTime      int64    `json:"startTime"` // unix seconds, 0 = unbounded
	EndTime        int64    `json:"endTime"`   // unix seconds, 0 = unbounded

	// auction only; one live approved bid at a time
	ApprovedBidder      Account  `json:"approvedBidder"`
	ApprovedBidAmount   *big.Int `json:"approvedBidAmount"`
	ApprovedBidQuantity uint64   `json:"approvedBidQuantity"`
}

func (l Listing) Key() string {
	return ListingKey(l.NFTContract, l.Owner, l.TokenID)
}

func ListingKey(nftContract, owner Account, tokenID uint64) string {
	return fmt.Sprintf("%s-%s-%d", nftContract.Hex(), owner.Hex(), tokenID)
}

// Clone deep-copies the big.Int fields so a snapshot can be restored after
// a failed settlement.
func (l Listing) Clone() Listing {
	cp := l
	if l.Price != nil {
		cp.Price = new(big.Int).Set(l.Price)
	}
	if l.ApprovedBidAmount != nil {
		cp.ApprovedBidAmount = new(big.Int).Set(l.ApprovedBidAmount)
	}
	return cp
}

type ListPayload struct {
	TokenID      uint64      `json:"tokenId"`
	NFTContract  Account     `json:"nftContract"`
	Price        *big.Int    `json:"price"`
	PaymentToken Account     `json:"paymentToken"`
	ListQuantity uint64      `json:"listQuantity"`
	ListingType  ListingType `json:"listingType"`
	StartTime    int64       `json:"startTime"`
	EndTime      int64       `json:"endTime"`
}

type BuyPayload struct {
	TokenID     uint64  `json:"tokenId"`
	NFTContract Account `json:"nftContract"`
	Quantity    uint64  `json:"quantity"`
	FromAddress Account `json:"fromAddress"` // seller
}

// AssetTransfer is the single call shape a DelegateProxy forwards.
type AssetTransfer struct {
	From     Account `json:"from"`
	To       Account `json:"to"`
	TokenID  uint64  `json:"tokenId"`
	Quantity uint64  `json:"quantity"`
}

// CallKind mirrors the wire surface of the proxy. Only CallDirect has an
// in-process meaning; delegated-context calls belong to the EVM world and
// are rejected.
type CallKind uint8

const (
	CallDirect CallKind = iota
	CallDelegate
)

type RoyaltyInfo struct {
	Receiver Account  `json:"receiver"`
	Amount   *big.Int `json:"amount"`
}

// Sale is the settlement breakdown emitted with every Sold event.
type Sale struct {
	NFTContract  Account  `json:"nftContract"`
	TokenID      uint64   `json:"tokenId"`
	Quantity     uint64   `json:"quantity"`
	Buyer        Account  `json:"buyer"`
	Seller       Account  `json:"seller"`
	PaymentToken Account  `json:"paymentToken"`
	Price        *big.Int `json:"price"` // per unit
	Total        *big.Int `json:"total"`
	Commission   *big.Int `json:"commission"`
	Royalty      *big.Int `json:"royalty"`
	RoyaltyRecv  Account  `json:"royaltyReceiver"`
	SoldAt       int64    `json:"soldAt"`
}
