// Package ledger provides the in-process asset and payment ledgers the
// marketplace trades against: a fungible payment token, a native-value
// bank, and single- and multi-quantity NFT ledgers.
package ledger

import (
	"encoding/binary"
	"errors"
	"sync/atomic"

	"github.com/cryptoxpress/cxmarket/schema"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/inconshreveable/log15"
)

var log = log15.New("module", "ledger")

var (
	ErrZeroAddress         = errors.New("zero_address")
	ErrAlreadyInitialized  = errors.New("ledger_already_initialized")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrInsufficientAllow   = errors.New("insufficient_allowance")
	ErrTokenExists         = errors.New("token_already_exists")
	ErrTokenNotFound       = errors.New("token_not_found")
	ErrNotTokenMinter      = errors.New("caller_not_token_minter")
	ErrNotLedgerOwner      = errors.New("caller_not_ledger_owner")
	ErrNotCollaborator     = errors.New("caller_not_owner_or_collaborator")
	ErrURIFrozen           = errors.New("token_uri_frozen")
	ErrRoyaltyTooHigh      = errors.New("royalty_bps_over_limit")
	ErrRoyaltyIncrease     = errors.New("royalty_bps_only_decreasable")
	ErrOperatorDenied      = errors.New("operator_not_approved")
)

// RegistryView is the slice of the registry a registry-aware ledger needs:
// the current proxy id of an owner. Ledgers built without one behave like
// external contracts and require explicit operator approval.
type RegistryView interface {
	Proxies(account schema.Account) schema.Account
}

var ledgerSeq uint64

// newLedgerID mints a stable process-unique ledger identity.
func newLedgerID(tag string) schema.Account {
	seq := atomic.AddUint64(&ledgerSeq, 1)
	var sq [8]byte
	binary.BigEndian.PutUint64(sq[:], seq)
	hash := crypto.Keccak256([]byte(tag), sq[:])
	var id schema.Account
	copy(id[:], hash[12:])
	return id
}
