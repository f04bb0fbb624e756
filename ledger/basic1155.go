package ledger

import (
	"sync"

	"github.com/cryptoxpress/cxmarket/schema"
)

// Basic1155 is a minimal external multi-token ledger: balances and explicit
// operator approvals, nothing else. It knows no registry and exposes no
// royalty record, which is exactly what most third-party contracts look
// like from the marketplace's side.
type Basic1155 struct {
	mu sync.Mutex

	id        schema.Account
	balances  map[uint64]map[schema.Account]uint64
	approvals map[schema.Account]map[schema.Account]bool
}

func NewBasic1155() *Basic1155 {
	return &Basic1155{
		id:        newLedgerID("basic1155"),
		balances:  make(map[uint64]map[schema.Account]uint64),
		approvals: make(map[schema.Account]map[schema.Account]bool),
	}
}

func (b *Basic1155) Address() schema.Account { return b.id }

func (b *Basic1155) Mint(to schema.Account, tokenID, quantity uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	holders, ok := b.balances[tokenID]
	if !ok {
		holders = make(map[schema.Account]uint64)
		b.balances[tokenID] = holders
	}
	holders[to] += quantity
}

func (b *Basic1155) BalanceOf(account schema.Account, tokenID uint64) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[tokenID][account]
}

func (b *Basic1155) SetApprovalForAll(caller, operator schema.Account, approved bool) error {
	if operator == (schema.Account{}) {
		return ErrZeroAddress
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	inner, ok := b.approvals[caller]
	if !ok {
		inner = make(map[schema.Account]bool)
		b.approvals[caller] = inner
	}
	inner[operator] = approved
	return nil
}

func (b *Basic1155) IsApprovedForAll(holder, operator schema.Account) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.approvals[holder][operator]
}

func (b *Basic1155) TransferByOperator(operator schema.Account, xfer schema.AssetTransfer) error {
	if xfer.To == (schema.Account{}) {
		return ErrZeroAddress
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	holders, ok := b.balances[xfer.TokenID]
	if !ok {
		return ErrTokenNotFound
	}
	if operator != xfer.From && !b.approvals[xfer.From][operator] {
		return ErrOperatorDenied
	}
	if holders[xfer.From] < xfer.Quantity {
		return ErrInsufficientBalance
	}
	holders[xfer.From] -= xfer.Quantity
	holders[xfer.To] += xfer.Quantity
	return nil
}
