package cxmarket

import (
	"encoding/binary"
	"sync"

	"github.com/cryptoxpress/cxmarket/schema"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
)

// ForwardTarget is anything the relay can forward a signed call into. The
// target decides whether the signer counts as caller by comparing the
// forwarder identity against its trusted relay.
type ForwardTarget interface {
	Address() schema.Account
	HandleMetaTx(forwarder, signer schema.Account, data []byte) error
}

// Relay executes signed off-chain requests so signers never pay for their
// own calls. One strictly monotonic nonce per signer; a nonce is consumed
// by a valid request even when the inner call fails, so a failed call can
// never be replayed.
type Relay struct {
	mu sync.Mutex

	id      schema.Account
	chainID uint64
	targets map[schema.Account]ForwardTarget
	nonces  map[schema.Account]uint64
	loaded  map[schema.Account]bool

	wdb *Wdb
}

func NewRelay(chainID uint64, wdb *Wdb) *Relay {
	var chain [8]byte
	binary.BigEndian.PutUint64(chain[:], chainID)
	hash := crypto.Keccak256([]byte("metatx-relay"), chain[:])
	var id schema.Account
	copy(id[:], hash[12:])
	return &Relay{
		id:      id,
		chainID: chainID,
		targets: make(map[schema.Account]ForwardTarget),
		nonces:  make(map[schema.Account]uint64),
		loaded:  make(map[schema.Account]bool),
		wdb:     wdb,
	}
}

// Address is the forwarder identity targets compare against their trusted
// relay.
func (r *Relay) Address() schema.Account { return r.id }

func (r *Relay) ChainID() uint64 { return r.chainID }

func (r *Relay) RegisterTarget(t ForwardTarget) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets[t.Address()] = t
}

// GetNonce returns the next nonce the signer must use.
func (r *Relay) GetNonce(signer schema.Account) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nonceLocked(signer)
}

// nonceLocked requires r.mu held; lazily hydrates from the store.
func (r *Relay) nonceLocked(signer schema.Account) uint64 {
	if !r.loaded[signer] {
		n, err := r.wdb.GetNonce(signer)
		if err != nil {
			log.Error("load relay nonce failed", "signer", signer.Hex(), "err", err)
		}
		r.nonces[signer] = n
		r.loaded[signer] = true
	}
	return r.nonces[signer]
}

// Verify checks that sig is the signer's personal-message signature over
// the request's canonical encoding.
func (r *Relay) Verify(req schema.ForwardRequest, sig []byte) bool {
	signer, err := recoverSigner(req.SigningMessage(r.chainID), sig)
	if err != nil {
		return false
	}
	return signer == req.From
}

// Execute verifies, consumes the nonce, and forwards. The inner call's
// error comes back to the relayer, but by then the nonce is already spent.
func (r *Relay) Execute(req schema.ForwardRequest, sig []byte) error {
	if !r.Verify(req, sig) {
		return ErrInvalidSignature
	}

	r.mu.Lock()
	current := r.nonceLocked(req.From)
	if req.Nonce != current {
		r.mu.Unlock()
		return ErrNonceMismatch
	}
	target, ok := r.targets[req.To]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownTarget
	}
	r.nonces[req.From] = current + 1
	if err := r.wdb.SaveNonce(req.From, current+1); err != nil {
		log.Error("persist relay nonce failed", "signer", req.From.Hex(), "err", err)
	}
	r.mu.Unlock()

	if err := target.HandleMetaTx(r.id, req.From, req.Data); err != nil {
		log.Debug("relayed call failed", "signer", req.From.Hex(), "to", req.To.Hex(), "err", err)
		return err
	}
	return nil
}

func recoverSigner(msg, sig []byte) (schema.Account, error) {
	if len(sig) != 65 {
		return schema.Account{}, ErrInvalidSignature
	}
	cp := make([]byte, 65)
	copy(cp, sig)
	if cp[64] >= 27 {
		cp[64] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash(msg), cp)
	if err != nil {
		return schema.Account{}, ErrInvalidSignature
	}
	return crypto.PubkeyToAddress(*pub), nil
}
