package cxmarket

import (
	"sync"

	"github.com/cryptoxpress/cxmarket/schema"
)

// AssetTransferor is the ledger-side surface a proxy drives. Implemented by
// every asset ledger that wants proxy-mediated transfers; the operator is
// the proxy's own id so registry-aware ledgers can honor it without a
// per-account approval.
type AssetTransferor interface {
	TransferByOperator(operator schema.Account, xfer schema.AssetTransfer) error
}

// DelegateProxy is an account's standing capability: a transfer forwarded
// through it succeeds only while the owner has not revoked access and the
// calling delegate is still authorized in the registry. It holds no assets
// itself.
type DelegateProxy struct {
	mu sync.Mutex

	addr     schema.Account
	user     schema.Account
	registry *Registry

	revoked     bool
	initialized bool
}

// NewDelegateProxy returns a blank proxy awaiting Initialize. The registry
// factory methods produce initialized proxies directly; this path exists
// for callers assembling one by hand.
func NewDelegateProxy(addr schema.Account) *DelegateProxy {
	return &DelegateProxy{addr: addr}
}

// Initialize binds the proxy to its owner and registry. One shot.
func (p *DelegateProxy) Initialize(user schema.Account, registry *Registry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		return ErrProxyInitialized
	}
	p.user = user
	p.registry = registry
	p.initialized = true
	return nil
}

// User returns the owning account.
func (p *DelegateProxy) User() schema.Account {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.user
}

// Address returns the proxy's own id, the operator identity ledgers see.
func (p *DelegateProxy) Address() schema.Account {
	return p.addr
}

// Revoked reports the owner's kill switch.
func (p *DelegateProxy) Revoked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.revoked
}

// SetRevoke flips the owner's kill switch. Owner only; cutting off every
// delegate at once without touching registry state.
func (p *DelegateProxy) SetRevoke(caller schema.Account, revoke bool) error {
	p.mu.Lock()
	if !p.initialized {
		p.mu.Unlock()
		return ErrProxyAccessDenied
	}
	if caller != p.user {
		p.mu.Unlock()
		return ErrNotProxyOwner
	}
	p.revoked = revoke
	reg := p.registry
	p.mu.Unlock()

	if reg != nil {
		reg.noteProxyState(p)
	}
	log.Debug("proxy revoke set", "proxy", p.addr.Hex(), "revoked", revoke)
	return nil
}

// TransferProxyOwnership hands the proxy to a new owner account. Owner only,
// zero address refused, and the new owner must not already hold a proxy; the
// registry mapping moves with the proxy so the change survives a restart.
func (p *DelegateProxy) TransferProxyOwnership(caller, newOwner schema.Account) error {
	p.mu.Lock()
	if !p.initialized {
		p.mu.Unlock()
		return ErrProxyAccessDenied
	}
	if caller != p.user {
		p.mu.Unlock()
		return ErrNotProxyOwner
	}
	if newOwner == (schema.Account{}) {
		p.mu.Unlock()
		return ErrBadRequest
	}
	oldOwner := p.user
	reg := p.registry
	p.mu.Unlock()

	if reg != nil {
		if err := reg.reassignProxy(p, oldOwner, newOwner); err != nil {
			return err
		}
	}
	p.mu.Lock()
	p.user = newOwner
	p.mu.Unlock()
	log.Debug("proxy ownership transferred", "proxy", p.addr.Hex(), "to", newOwner.Hex())
	return nil
}

// Execute forwards an asset transfer to target on behalf of the owner.
// The caller passes the gate when it is the owner, or a delegate that is
// currently authorized while the owner has not revoked. Only direct calls
// are supported; the delegated kind was dropped along with shared-context
// execution.
func (p *DelegateProxy) Execute(caller schema.Account, target AssetTransferor, kind schema.CallKind, xfer schema.AssetTransfer) error {
	if kind != schema.CallDirect {
		return ErrCallKindUnsupported
	}

	p.mu.Lock()
	if !p.initialized {
		p.mu.Unlock()
		return ErrProxyAccessDenied
	}
	user, revoked, reg := p.user, p.revoked, p.registry
	p.mu.Unlock()

	allowed := caller == user || (!revoked && reg != nil && reg.Contracts(caller))
	if !allowed {
		return ErrProxyAccessDenied
	}
	return target.TransferByOperator(p.addr, xfer)
}
