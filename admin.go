package cxmarket

import (
	"github.com/cryptoxpress/cxmarket/schema"
)

// Owner-gated market administration. Everything here takes effect on the
// next call into the engine; in-flight settlements keep the values they
// started with.

func (e *Engine) Pause(caller schema.Account) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.owner {
		return ErrNotMarketOwner
	}
	e.paused = true
	log.Info("market paused")
	return nil
}

func (e *Engine) Unpause(caller schema.Account) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.owner {
		return ErrNotMarketOwner
	}
	e.paused = false
	log.Info("market unpaused")
	return nil
}

func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

func (e *Engine) BanAccount(caller, account schema.Account, banned bool) error {
	return e.setBan(caller, schema.BanKindAccount, account.Hex(), 0, banned)
}

func (e *Engine) BanNFTContract(caller, nftContract schema.Account, banned bool) error {
	return e.setBan(caller, schema.BanKindContract, nftContract.Hex(), 0, banned)
}

func (e *Engine) BanToken(caller, nftContract schema.Account, tokenID uint64, banned bool) error {
	return e.setBan(caller, schema.BanKindToken, nftContract.Hex(), tokenID, banned)
}

func (e *Engine) setBan(caller schema.Account, kind, subject string, tokenID uint64, banned bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.owner {
		return ErrNotMarketOwner
	}
	key := banKey(kind, subject, tokenID)
	if banned {
		e.bans[key] = true
	} else {
		delete(e.bans, key)
	}
	if err := e.wdb.SaveBan(kind, subject, tokenID, banned); err != nil {
		log.Error("persist ban failed", "key", key, "err", err)
	}
	log.Info("ban updated", "key", key, "banned", banned)
	return nil
}

// AllowPaymentToken adds an ERC20-style token to the allow list. The native
// token needs no entry.
func (e *Engine) AllowPaymentToken(caller, token schema.Account, ledger PaymentLedger) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.owner {
		return ErrNotMarketOwner
	}
	if token == schema.NativeToken || ledger == nil {
		return ErrInvalidPaymentToken
	}
	e.payments[token] = ledger
	if err := e.wdb.SavePaymentToken(token, true); err != nil {
		log.Error("persist payment token failed", "token", token.Hex(), "err", err)
	}
	return nil
}

func (e *Engine) RemovePaymentToken(caller, token schema.Account) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.owner {
		return ErrNotMarketOwner
	}
	delete(e.payments, token)
	if err := e.wdb.SavePaymentToken(token, false); err != nil {
		log.Error("persist payment token failed", "token", token.Hex(), "err", err)
	}
	return nil
}

// RegisterAssetLedger wires an NFT ledger under its contract address.
func (e *Engine) RegisterAssetLedger(caller, nftContract schema.Account, ledger AssetLedger) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.owner {
		return ErrNotMarketOwner
	}
	if ledger == nil {
		return ErrBadRequest
	}
	e.assets[nftContract] = ledger
	return nil
}

// SetCommission updates the market cut. bps is capped by the denominator;
// a zero receiver routes commission to the owner.
func (e *Engine) SetCommission(caller schema.Account, bps uint32, receiver schema.Account) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.owner {
		return ErrNotMarketOwner
	}
	if bps > schema.DenominatorBps {
		return ErrBadRequest
	}
	if receiver == (schema.Account{}) {
		receiver = e.owner
	}
	e.commissionBps = bps
	e.commissionRecv = receiver
	log.Info("commission updated", "bps", bps, "receiver", receiver.Hex())
	return nil
}

func (e *Engine) CommissionBps() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.commissionBps
}

// SetRegistry swaps the authentication registry the settlement path
// consults.
func (e *Engine) SetRegistry(caller schema.Account, registry *Registry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.owner {
		return ErrNotMarketOwner
	}
	if registry == nil {
		return ErrBadRequest
	}
	e.registry = registry
	return nil
}

// SetTrustedForwarder nominates the relay whose forwarded calls carry the
// signer as caller.
func (e *Engine) SetTrustedForwarder(caller, forwarder schema.Account) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.owner {
		return ErrNotMarketOwner
	}
	e.forwarder = forwarder
	return nil
}

// LiveListingCount feeds the stats gauge. Cleared records stay in the table
// for detail lookups but don't count as live.
func (e *Engine) LiveListingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, l := range e.listings {
		if l.Initialized {
			n++
		}
	}
	return n
}

// Listings snapshots the live table for the API.
func (e *Engine) Listings() []schema.Listing {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]schema.Listing, 0, len(e.listings))
	for _, l := range e.listings {
		if l.Initialized {
			out = append(out, l.Clone())
		}
	}
	return out
}
