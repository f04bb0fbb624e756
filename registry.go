package cxmarket

import (
	"encoding/binary"
	"encoding/json"
	"sync"
	"time"

	"github.com/cryptoxpress/cxmarket/kvdb"
	"github.com/cryptoxpress/cxmarket/schema"
	"github.com/ethereum/go-ethereum/crypto"
)

const initialGrantKey = "initial-grant"

// Registry is the process-wide authentication table plus the per-account
// proxy factory. Constructed once at startup and injected into the engine
// and every proxy; never a bare global.
type Registry struct {
	mu       sync.Mutex
	governor schema.Account
	store    kvdb.KeyValueDB // nil = memory only

	auth    map[schema.Account]*schema.AuthorizationRecord
	records map[schema.Account]schema.ProxyRecord
	proxies map[schema.Account]*DelegateProxy

	initialGranted bool

	now func() time.Time
}

func NewRegistry(governor schema.Account, store kvdb.KeyValueDB) (*Registry, error) {
	r := &Registry{
		governor: governor,
		store:    store,
		auth:     make(map[schema.Account]*schema.AuthorizationRecord),
		records:  make(map[schema.Account]schema.ProxyRecord),
		proxies:  make(map[schema.Account]*DelegateProxy),
		now:      time.Now,
	}
	if store != nil {
		if err := r.load(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) load() error {
	keys, err := r.store.GetAllKey(schema.AuthRecordBucket)
	if err != nil {
		return err
	}
	for _, k := range keys {
		data, err := r.store.Get(schema.AuthRecordBucket, k)
		if err != nil {
			return err
		}
		rec := &schema.AuthorizationRecord{}
		if err := json.Unmarshal(data, rec); err != nil {
			return err
		}
		r.auth[rec.Delegate] = rec
	}

	keys, err = r.store.GetAllKey(schema.ProxyRecordBucket)
	if err != nil {
		return err
	}
	for _, k := range keys {
		data, err := r.store.Get(schema.ProxyRecordBucket, k)
		if err != nil {
			return err
		}
		rec := schema.ProxyRecord{}
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		r.records[rec.Owner] = rec
		r.proxies[rec.Owner] = restoreProxy(rec, r)
	}

	r.initialGranted = r.store.Exist(schema.RegistryMetaBucket, initialGrantKey)
	log.Info("registry loaded", "authRecords", len(r.auth), "proxies", len(r.records))
	return nil
}

func (r *Registry) Governor() schema.Account {
	return r.governor
}

// StartGrantAuthentication begins the time-locked grant for a delegate.
// Legal only from the Unset state.
func (r *Registry) StartGrantAuthentication(caller, delegate schema.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.governor {
		return ErrNotGovernor
	}
	if rec, ok := r.auth[delegate]; ok && rec.State != schema.AuthUnset {
		return ErrAlreadyGrantedOrPending
	}
	rec := &schema.AuthorizationRecord{
		Delegate:     delegate,
		State:        schema.AuthPending,
		PendingSince: r.now().Unix(),
	}
	if err := r.saveAuth(rec); err != nil {
		return err
	}
	r.auth[delegate] = rec
	log.Info("grant authentication started", "delegate", delegate.Hex(), "since", rec.PendingSince)
	return nil
}

// EndGrantAuthentication finalizes a pending grant once the full delay has
// elapsed. At exactly since+delay the grant succeeds; one second earlier it
// does not.
func (r *Registry) EndGrantAuthentication(caller, delegate schema.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.governor {
		return ErrNotGovernor
	}
	rec, ok := r.auth[delegate]
	if !ok || rec.State != schema.AuthPending {
		return ErrGrantNotPending
	}
	if r.now().Unix() < rec.PendingSince+schema.GrantAuthDelaySeconds {
		return ErrGrantDelayNotElapsed
	}
	updated := *rec
	updated.State = schema.AuthAuthorized
	if err := r.saveAuth(&updated); err != nil {
		return err
	}
	*rec = updated
	log.Info("grant authentication finished", "delegate", delegate.Hex())
	return nil
}

// RevokeAuthentication disables an authorized delegate. Any time, governor only.
func (r *Registry) RevokeAuthentication(caller, delegate schema.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.governor {
		return ErrNotGovernor
	}
	rec, ok := r.auth[delegate]
	if !ok || rec.State != schema.AuthAuthorized {
		return ErrNotAuthorized
	}
	updated := *rec
	updated.State = schema.AuthRevoked
	if err := r.saveAuth(&updated); err != nil {
		return err
	}
	*rec = updated
	log.Info("authentication revoked", "delegate", delegate.Hex())
	return nil
}

// GrantInitialAuthentication seeds the first trusted contract, bypassing the
// delay. Callable exactly once per registry instance, not once per delegate.
func (r *Registry) GrantInitialAuthentication(caller, delegate schema.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.governor {
		return ErrNotGovernor
	}
	if r.initialGranted {
		return ErrInitialGrantDone
	}
	rec := &schema.AuthorizationRecord{
		Delegate: delegate,
		State:    schema.AuthAuthorized,
	}
	if err := r.saveAuth(rec); err != nil {
		return err
	}
	if r.store != nil {
		if err := r.store.Put(schema.RegistryMetaBucket, initialGrantKey, []byte(delegate.Hex())); err != nil {
			return err
		}
	}
	r.auth[delegate] = rec
	r.initialGranted = true
	log.Info("initial authentication granted", "delegate", delegate.Hex())
	return nil
}

// Contracts reports whether a delegate is currently authorized.
func (r *Registry) Contracts(delegate schema.Account) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.auth[delegate]
	return ok && rec.State == schema.AuthAuthorized
}

// Pending returns the pending-since timestamp, 0 when not pending.
func (r *Registry) Pending(delegate schema.Account) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.auth[delegate]
	if !ok || rec.State != schema.AuthPending {
		return 0
	}
	return rec.PendingSince
}

// RegisterProxy creates the caller's proxy. First registration wins.
func (r *Registry) RegisterProxy(caller schema.Account) (*DelegateProxy, error) {
	return r.register(caller, false)
}

// RegisterProxyFor creates a proxy on behalf of target; fails if target
// already has one.
func (r *Registry) RegisterProxyFor(caller, target schema.Account) (*DelegateProxy, error) {
	return r.register(target, false)
}

// RegisterProxyOverride always creates a fresh proxy and silently replaces
// any existing mapping. The old proxy instance is abandoned, not destroyed;
// whoever still references it directly can keep driving it.
func (r *Registry) RegisterProxyOverride(caller schema.Account) (*DelegateProxy, error) {
	return r.register(caller, true)
}

func (r *Registry) register(owner schema.Account, override bool) (*DelegateProxy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, exists := r.records[owner]
	if exists && !override {
		return nil, ErrProxyExists
	}
	seq := uint64(0)
	if exists {
		seq = prev.Seq + 1
	}
	rec := schema.ProxyRecord{
		Owner: owner,
		Proxy: deriveProxyID(owner, seq),
		Seq:   seq,
	}
	if err := r.saveProxyRecord(rec); err != nil {
		return nil, err
	}
	p := restoreProxy(rec, r)
	r.records[owner] = rec
	r.proxies[owner] = p
	log.Info("proxy registered", "owner", owner.Hex(), "proxy", rec.Proxy.Hex(), "override", override)
	return p, nil
}

// Proxies returns the current proxy id for an account; zero when none.
func (r *Registry) Proxies(account schema.Account) schema.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[account].Proxy
}

// ProxyOf returns the live proxy object for an account.
func (r *Registry) ProxyOf(account schema.Account) (*DelegateProxy, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.proxies[account]
	return p, ok
}

// reassignProxy moves a proxy's durable record from oldOwner to newOwner.
// Called by TransferProxyOwnership before the proxy flips its user field; a
// proxy abandoned by an override has no durable record to move.
func (r *Registry) reassignProxy(p *DelegateProxy, oldOwner, newOwner schema.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[oldOwner]
	if !ok || rec.Proxy != p.Address() {
		return nil
	}
	if _, taken := r.records[newOwner]; taken {
		return ErrProxyExists
	}
	rec.Owner = newOwner
	if err := r.saveProxyRecord(rec); err != nil {
		return err
	}
	if r.store != nil {
		if err := r.store.Delete(schema.ProxyRecordBucket, oldOwner.Hex()); err != nil {
			log.Error("drop old proxy record failed", "owner", oldOwner.Hex(), "err", err)
		}
	}
	delete(r.records, oldOwner)
	delete(r.proxies, oldOwner)
	r.records[newOwner] = rec
	r.proxies[newOwner] = p
	log.Info("proxy ownership reassigned", "proxy", rec.Proxy.Hex(), "from", oldOwner.Hex(), "to", newOwner.Hex())
	return nil
}

// noteProxyState persists owner/revoked changes made through the proxy's own
// methods, but only while the proxy is still the account's current mapping.
func (r *Registry) noteProxyState(p *DelegateProxy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[p.User()]
	if !ok || rec.Proxy != p.Address() {
		return // abandoned by an override; nothing durable to update
	}
	rec.Revoked = p.Revoked()
	if err := r.saveProxyRecord(rec); err != nil {
		log.Error("persist proxy state failed", "proxy", p.Address().Hex(), "err", err)
		return
	}
	r.records[p.User()] = rec
}

func (r *Registry) saveAuth(rec *schema.AuthorizationRecord) error {
	if r.store == nil {
		return nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.store.Put(schema.AuthRecordBucket, rec.Delegate.Hex(), data)
}

func (r *Registry) saveProxyRecord(rec schema.ProxyRecord) error {
	if r.store == nil {
		return nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.store.Put(schema.ProxyRecordBucket, rec.Owner.Hex(), data)
}

func deriveProxyID(owner schema.Account, seq uint64) schema.Account {
	var sq [8]byte
	binary.BigEndian.PutUint64(sq[:], seq)
	hash := crypto.Keccak256(owner.Bytes(), sq[:])
	var id schema.Account
	copy(id[:], hash[12:])
	return id
}

func restoreProxy(rec schema.ProxyRecord, r *Registry) *DelegateProxy {
	p := &DelegateProxy{
		addr:        rec.Proxy,
		user:        rec.Owner,
		registry:    r,
		revoked:     rec.Revoked,
		initialized: true,
	}
	return p
}
