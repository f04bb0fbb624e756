package ledger

import (
	"math/big"
	"sync"

	"github.com/cryptoxpress/cxmarket/schema"
)

// NFT is the single-owner variant: every token id maps to exactly one
// holder and quantities are fixed at 1. A burned id may be minted again.
// Minting carries the same owner-or-collaborator gate as MultiToken.
type NFT struct {
	mu sync.Mutex

	id       schema.Account
	owner    schema.Account
	registry RegistryView

	collaborators map[schema.Account]bool
	holders       map[uint64]schema.Account
	minters       map[uint64]schema.Account
	uris          map[uint64]string
	frozen        map[uint64]bool
	royalties     map[uint64]royaltyRecord
	approvals     map[schema.Account]map[schema.Account]bool
}

func NewNFT(owner schema.Account, registry RegistryView) *NFT {
	return &NFT{
		id:            newLedgerID("nft"),
		owner:         owner,
		registry:      registry,
		collaborators: make(map[schema.Account]bool),
		holders:       make(map[uint64]schema.Account),
		minters:       make(map[uint64]schema.Account),
		uris:          make(map[uint64]string),
		frozen:        make(map[uint64]bool),
		royalties:     make(map[uint64]royaltyRecord),
		approvals:     make(map[schema.Account]map[schema.Account]bool),
	}
}

func (n *NFT) Address() schema.Account { return n.id }

func (n *NFT) AddCollaborator(caller, collaborator schema.Account) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if caller != n.owner {
		return ErrNotLedgerOwner
	}
	if collaborator == (schema.Account{}) {
		return ErrZeroAddress
	}
	n.collaborators[collaborator] = true
	return nil
}

func (n *NFT) RemoveCollaborator(caller, collaborator schema.Account) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if caller != n.owner {
		return ErrNotLedgerOwner
	}
	delete(n.collaborators, collaborator)
	return nil
}

func (n *NFT) SafeMint(caller, to schema.Account, tokenID uint64, uri string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if caller != n.owner && !n.collaborators[caller] {
		return ErrNotCollaborator
	}
	return n.mint(caller, to, tokenID, uri)
}

func (n *NFT) SafeMintBatch(caller, to schema.Account, tokenIDs []uint64, uris []string) error {
	if len(tokenIDs) != len(uris) {
		return ErrTokenNotFound
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if caller != n.owner && !n.collaborators[caller] {
		return ErrNotCollaborator
	}
	for _, id := range tokenIDs {
		if _, ok := n.holders[id]; ok {
			return ErrTokenExists
		}
	}
	for i, id := range tokenIDs {
		if err := n.mint(caller, to, id, uris[i]); err != nil {
			return err
		}
	}
	return nil
}

// mint requires n.mu held.
func (n *NFT) mint(caller, to schema.Account, tokenID uint64, uri string) error {
	if to == (schema.Account{}) {
		return ErrZeroAddress
	}
	if _, ok := n.holders[tokenID]; ok {
		return ErrTokenExists
	}
	n.holders[tokenID] = to
	n.minters[tokenID] = caller
	n.uris[tokenID] = uri
	return nil
}

func (n *NFT) Burn(caller schema.Account, tokenID uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	holder, ok := n.holders[tokenID]
	if !ok {
		return ErrTokenNotFound
	}
	if holder != caller {
		return ErrInsufficientBalance
	}
	delete(n.holders, tokenID)
	delete(n.frozen, tokenID)
	delete(n.uris, tokenID)
	return nil
}

func (n *NFT) OwnerOf(tokenID uint64) (schema.Account, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	holder, ok := n.holders[tokenID]
	if !ok {
		return schema.Account{}, ErrTokenNotFound
	}
	return holder, nil
}

// BalanceOf keeps the quantity surface uniform with MultiToken.
func (n *NFT) BalanceOf(account schema.Account, tokenID uint64) uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.holders[tokenID] == account {
		return 1
	}
	return 0
}

func (n *NFT) URI(tokenID uint64) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.holders[tokenID]; !ok {
		return "", ErrTokenNotFound
	}
	return n.uris[tokenID], nil
}

func (n *NFT) SetURI(caller schema.Account, tokenID uint64, uri string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.holders[tokenID]; !ok {
		return ErrTokenNotFound
	}
	if n.frozen[tokenID] {
		return ErrURIFrozen
	}
	if caller != n.owner && caller != n.minters[tokenID] {
		return ErrNotTokenMinter
	}
	n.uris[tokenID] = uri
	return nil
}

func (n *NFT) FreezeURI(caller schema.Account, tokenID uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.holders[tokenID]; !ok {
		return ErrTokenNotFound
	}
	if caller != n.owner && caller != n.minters[tokenID] {
		return ErrNotTokenMinter
	}
	n.frozen[tokenID] = true
	return nil
}

func (n *NFT) SetRoyalty(caller schema.Account, tokenID uint64, receiver schema.Account, bps uint32) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.holders[tokenID]; !ok {
		return ErrTokenNotFound
	}
	if caller != n.minters[tokenID] {
		return ErrNotTokenMinter
	}
	if bps > schema.MaxRoyaltyBps {
		return ErrRoyaltyTooHigh
	}
	if prev, ok := n.royalties[tokenID]; ok && bps > prev.bps {
		return ErrRoyaltyIncrease
	}
	n.royalties[tokenID] = royaltyRecord{receiver: receiver, bps: bps}
	return nil
}

func (n *NFT) RoyaltyInfo(tokenID uint64, salePrice *big.Int) (schema.Account, *big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	rec, ok := n.royalties[tokenID]
	if !ok {
		return schema.Account{}, new(big.Int), nil
	}
	amount := new(big.Int).Mul(salePrice, big.NewInt(int64(rec.bps)))
	amount.Div(amount, big.NewInt(schema.DenominatorBps))
	return rec.receiver, amount, nil
}

func (n *NFT) SetApprovalForAll(caller, operator schema.Account, approved bool) error {
	if operator == (schema.Account{}) {
		return ErrZeroAddress
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	inner, ok := n.approvals[caller]
	if !ok {
		inner = make(map[schema.Account]bool)
		n.approvals[caller] = inner
	}
	inner[operator] = approved
	return nil
}

func (n *NFT) IsApprovedForAll(holder, operator schema.Account) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.approvedLocked(holder, operator)
}

// approvedLocked requires n.mu held.
func (n *NFT) approvedLocked(holder, operator schema.Account) bool {
	if n.approvals[holder][operator] {
		return true
	}
	if n.registry != nil && n.registry.Proxies(holder) == operator {
		return true
	}
	return false
}

func (n *NFT) TransferByOperator(operator schema.Account, xfer schema.AssetTransfer) error {
	if xfer.To == (schema.Account{}) {
		return ErrZeroAddress
	}
	if xfer.Quantity != 1 {
		return ErrInsufficientBalance
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	holder, ok := n.holders[xfer.TokenID]
	if !ok {
		return ErrTokenNotFound
	}
	if holder != xfer.From {
		return ErrInsufficientBalance
	}
	if operator != xfer.From && !n.approvedLocked(xfer.From, operator) {
		return ErrOperatorDenied
	}
	n.holders[xfer.TokenID] = xfer.To
	return nil
}
