package ledger

import (
	"math/big"
	"sync"

	"github.com/cryptoxpress/cxmarket/schema"
	"github.com/tidwall/gjson"
)

type royaltyRecord struct {
	receiver schema.Account
	bps      uint32
}

// MultiToken is the multi-quantity NFT ledger. Only the ledger owner and its
// collaborators may mint; the account that mints a token stays its minter and
// controls that token's royalty record. When built with a registry view, the
// holder's current registry proxy is honored as an operator without explicit
// approval.
type MultiToken struct {
	mu sync.Mutex

	id       schema.Account
	owner    schema.Account
	registry RegistryView

	collaborators map[schema.Account]bool
	exists        map[uint64]bool
	minters       map[uint64]schema.Account
	balances      map[uint64]map[schema.Account]uint64
	uris          map[uint64]string
	frozen        map[uint64]bool
	royalties     map[uint64]royaltyRecord
	approvals     map[schema.Account]map[schema.Account]bool

	forwarder schema.Account
}

// NewMultiToken builds a registry-aware ledger; pass nil to model an
// external contract that knows nothing about proxies.
func NewMultiToken(owner schema.Account, registry RegistryView) *MultiToken {
	return &MultiToken{
		id:            newLedgerID("multitoken"),
		owner:         owner,
		registry:      registry,
		collaborators: make(map[schema.Account]bool),
		exists:        make(map[uint64]bool),
		minters:       make(map[uint64]schema.Account),
		balances:      make(map[uint64]map[schema.Account]uint64),
		uris:          make(map[uint64]string),
		frozen:        make(map[uint64]bool),
		royalties:     make(map[uint64]royaltyRecord),
		approvals:     make(map[schema.Account]map[schema.Account]bool),
	}
}

func (m *MultiToken) Address() schema.Account { return m.id }
func (m *MultiToken) Owner() schema.Account   { return m.owner }

func (m *MultiToken) AddCollaborator(caller, collaborator schema.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if caller != m.owner {
		return ErrNotLedgerOwner
	}
	if collaborator == (schema.Account{}) {
		return ErrZeroAddress
	}
	m.collaborators[collaborator] = true
	return nil
}

func (m *MultiToken) RemoveCollaborator(caller, collaborator schema.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if caller != m.owner {
		return ErrNotLedgerOwner
	}
	delete(m.collaborators, collaborator)
	return nil
}

func (m *MultiToken) IsCollaborator(account schema.Account) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collaborators[account]
}

// Mint creates a fresh token id and credits the full quantity to `to`.
// Ledger owner or collaborator only; the caller becomes the token's minter.
func (m *MultiToken) Mint(caller, to schema.Account, tokenID, quantity uint64, uri string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if caller != m.owner && !m.collaborators[caller] {
		return ErrNotCollaborator
	}
	return m.mint(caller, to, tokenID, quantity, uri)
}

// MintBatch is all or nothing: one colliding token id fails the whole batch
// before any balance moves.
func (m *MultiToken) MintBatch(caller, to schema.Account, tokenIDs, quantities []uint64, uris []string) error {
	if len(tokenIDs) != len(quantities) || len(tokenIDs) != len(uris) {
		return ErrTokenNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if caller != m.owner && !m.collaborators[caller] {
		return ErrNotCollaborator
	}
	for _, id := range tokenIDs {
		if m.exists[id] {
			return ErrTokenExists
		}
	}
	for i, id := range tokenIDs {
		if err := m.mint(caller, to, id, quantities[i], uris[i]); err != nil {
			return err
		}
	}
	return nil
}

// mint requires m.mu held.
func (m *MultiToken) mint(caller, to schema.Account, tokenID, quantity uint64, uri string) error {
	if to == (schema.Account{}) {
		return ErrZeroAddress
	}
	if m.exists[tokenID] {
		return ErrTokenExists
	}
	m.exists[tokenID] = true
	m.minters[tokenID] = caller
	m.uris[tokenID] = uri
	m.balances[tokenID] = map[schema.Account]uint64{to: quantity}
	return nil
}

func (m *MultiToken) Burn(caller schema.Account, tokenID, quantity uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.exists[tokenID] {
		return ErrTokenNotFound
	}
	holders := m.balances[tokenID]
	if holders[caller] < quantity {
		return ErrInsufficientBalance
	}
	holders[caller] -= quantity
	return nil
}

func (m *MultiToken) BalanceOf(account schema.Account, tokenID uint64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[tokenID][account]
}

func (m *MultiToken) MinterOf(tokenID uint64) (schema.Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	minter, ok := m.minters[tokenID]
	return minter, ok
}

func (m *MultiToken) URI(tokenID uint64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.exists[tokenID] {
		return "", ErrTokenNotFound
	}
	return m.uris[tokenID], nil
}

// SetURI updates token metadata. Ledger owner, a collaborator, or the
// token's minter; refused once frozen.
func (m *MultiToken) SetURI(caller schema.Account, tokenID uint64, uri string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.exists[tokenID] {
		return ErrTokenNotFound
	}
	if m.frozen[tokenID] {
		return ErrURIFrozen
	}
	if caller != m.owner && !m.collaborators[caller] && caller != m.minters[tokenID] {
		return ErrNotCollaborator
	}
	m.uris[tokenID] = uri
	return nil
}

// FreezeURI makes the token's metadata permanent. Minter or ledger owner.
func (m *MultiToken) FreezeURI(caller schema.Account, tokenID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.exists[tokenID] {
		return ErrTokenNotFound
	}
	if caller != m.owner && caller != m.minters[tokenID] {
		return ErrNotTokenMinter
	}
	m.frozen[tokenID] = true
	return nil
}

// SetRoyalty records the token's royalty. Minter only; bps capped and,
// once set, only decreasable.
func (m *MultiToken) SetRoyalty(caller schema.Account, tokenID uint64, receiver schema.Account, bps uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.exists[tokenID] {
		return ErrTokenNotFound
	}
	if caller != m.minters[tokenID] {
		return ErrNotTokenMinter
	}
	if bps > schema.MaxRoyaltyBps {
		return ErrRoyaltyTooHigh
	}
	if prev, ok := m.royalties[tokenID]; ok && bps > prev.bps {
		return ErrRoyaltyIncrease
	}
	m.royalties[tokenID] = royaltyRecord{receiver: receiver, bps: bps}
	return nil
}

// RoyaltyInfo computes the royalty leg for a sale price, truncating.
func (m *MultiToken) RoyaltyInfo(tokenID uint64, salePrice *big.Int) (schema.Account, *big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.exists[tokenID] {
		return schema.Account{}, nil, ErrTokenNotFound
	}
	rec, ok := m.royalties[tokenID]
	if !ok {
		return schema.Account{}, new(big.Int), nil
	}
	amount := new(big.Int).Mul(salePrice, big.NewInt(int64(rec.bps)))
	amount.Div(amount, big.NewInt(schema.DenominatorBps))
	return rec.receiver, amount, nil
}

func (m *MultiToken) SetApprovalForAll(caller, operator schema.Account, approved bool) error {
	if operator == (schema.Account{}) {
		return ErrZeroAddress
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	inner, ok := m.approvals[caller]
	if !ok {
		inner = make(map[schema.Account]bool)
		m.approvals[caller] = inner
	}
	inner[operator] = approved
	return nil
}

// IsApprovedForAll is true for explicit approvals and, on registry-aware
// ledgers, for the holder's current registry proxy. A proxy abandoned by an
// override stops matching immediately.
func (m *MultiToken) IsApprovedForAll(holder, operator schema.Account) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.approvedLocked(holder, operator)
}

// approvedLocked requires m.mu held.
func (m *MultiToken) approvedLocked(holder, operator schema.Account) bool {
	if m.approvals[holder][operator] {
		return true
	}
	if m.registry != nil && m.registry.Proxies(holder) == operator {
		return true
	}
	return false
}

// TransferByOperator moves quantity of a token on behalf of its holder.
// The operator must be the holder or approved for all of the holder's
// tokens.
func (m *MultiToken) TransferByOperator(operator schema.Account, xfer schema.AssetTransfer) error {
	if xfer.To == (schema.Account{}) {
		return ErrZeroAddress
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.exists[xfer.TokenID] {
		return ErrTokenNotFound
	}
	if operator != xfer.From && !m.approvedLocked(xfer.From, operator) {
		return ErrOperatorDenied
	}
	holders := m.balances[xfer.TokenID]
	if holders[xfer.From] < xfer.Quantity {
		return ErrInsufficientBalance
	}
	holders[xfer.From] -= xfer.Quantity
	holders[xfer.To] += xfer.Quantity
	return nil
}

func (m *MultiToken) SetTrustedForwarder(forwarder schema.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forwarder = forwarder
}

func (m *MultiToken) HandleMetaTx(forwarder, signer schema.Account, data []byte) error {
	m.mu.Lock()
	trusted := m.forwarder == forwarder && m.forwarder != (schema.Account{})
	m.mu.Unlock()

	caller := forwarder
	if trusted {
		caller = signer
	}

	method := gjson.GetBytes(data, "method").String()
	params := gjson.GetBytes(data, "params")
	switch method {
	case "setApprovalForAll":
		operator := schema.HexToAddress(params.Get("operator").String())
		return m.SetApprovalForAll(caller, operator, params.Get("approved").Bool())
	case "transfer":
		return m.TransferByOperator(caller, schema.AssetTransfer{
			From:     caller,
			To:       schema.HexToAddress(params.Get("to").String()),
			TokenID:  params.Get("tokenId").Uint(),
			Quantity: params.Get("quantity").Uint(),
		})
	default:
		return schema.ErrNotImplement
	}
}
