package ledger

import (
	"math/big"
	"sync"

	"github.com/cryptoxpress/cxmarket/schema"
	"github.com/tidwall/gjson"
)

// Token is the fungible payment ledger. Supply is minted once, to whoever
// calls Initialize first; everything after that is plain transfer and
// allowance bookkeeping.
type Token struct {
	mu sync.Mutex

	id       schema.Account
	name     string
	symbol   string
	decimals uint8

	initialized bool
	totalSupply *big.Int
	balances    map[schema.Account]*big.Int
	allowances  map[schema.Account]map[schema.Account]*big.Int

	forwarder schema.Account
}

func NewToken(name, symbol string, decimals uint8) *Token {
	return &Token{
		id:          newLedgerID("token:" + symbol),
		name:        name,
		symbol:      symbol,
		decimals:    decimals,
		totalSupply: new(big.Int),
		balances:    make(map[schema.Account]*big.Int),
		allowances:  make(map[schema.Account]map[schema.Account]*big.Int),
	}
}

// NewXpress is the marketplace's house payment token.
func NewXpress() *Token {
	return NewToken("Xpress", "XPRESS", 18)
}

func (t *Token) Address() schema.Account { return t.id }
func (t *Token) Name() string            { return t.name }
func (t *Token) Symbol() string          { return t.symbol }
func (t *Token) Decimals() uint8         { return t.decimals }

// Initialize mints the full supply to the caller. One shot.
func (t *Token) Initialize(caller schema.Account, totalSupply *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.initialized {
		return ErrAlreadyInitialized
	}
	if totalSupply == nil || totalSupply.Sign() < 0 {
		return ErrInsufficientBalance
	}
	t.totalSupply = new(big.Int).Set(totalSupply)
	t.balances[caller] = new(big.Int).Set(totalSupply)
	t.initialized = true
	log.Info("token initialized", "symbol", t.symbol, "supply", totalSupply.String(), "holder", caller.Hex())
	return nil
}

func (t *Token) TotalSupply() *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return new(big.Int).Set(t.totalSupply)
}

func (t *Token) BalanceOf(account schema.Account) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := t.balances[account]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (t *Token) Transfer(caller, to schema.Account, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.move(caller, to, amount)
}

func (t *Token) Approve(caller, spender schema.Account, amount *big.Int) error {
	if spender == (schema.Account{}) {
		return ErrZeroAddress
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	inner, ok := t.allowances[caller]
	if !ok {
		inner = make(map[schema.Account]*big.Int)
		t.allowances[caller] = inner
	}
	inner[spender] = new(big.Int).Set(amount)
	return nil
}

func (t *Token) Allowance(owner, spender schema.Account) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if inner, ok := t.allowances[owner]; ok {
		if a, ok := inner[spender]; ok {
			return new(big.Int).Set(a)
		}
	}
	return new(big.Int)
}

// TransferFrom spends the caller's allowance on the owner's balance.
func (t *Token) TransferFrom(caller, from, to schema.Account, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if caller != from {
		inner := t.allowances[from]
		allowed, ok := inner[caller]
		if !ok || allowed.Cmp(amount) < 0 {
			return ErrInsufficientAllow
		}
		if err := t.move(from, to, amount); err != nil {
			return err
		}
		allowed.Sub(allowed, amount)
		return nil
	}
	return t.move(from, to, amount)
}

// move requires t.mu held.
func (t *Token) move(from, to schema.Account, amount *big.Int) error {
	if to == (schema.Account{}) {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInsufficientBalance
	}
	bal, ok := t.balances[from]
	if !ok || bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	bal.Sub(bal, amount)
	dst, ok := t.balances[to]
	if !ok {
		dst = new(big.Int)
		t.balances[to] = dst
	}
	dst.Add(dst, amount)
	return nil
}

// SetTrustedForwarder nominates the relay whose forwarded calls carry the
// original signer as caller.
func (t *Token) SetTrustedForwarder(forwarder schema.Account) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.forwarder = forwarder
}

// HandleMetaTx executes a relayed call envelope. The signer counts as
// caller only when the forwarding relay is the trusted one; otherwise the
// relay's own identity is the caller, same as an untrusted forwarder
// hitting a contract.
func (t *Token) HandleMetaTx(forwarder, signer schema.Account, data []byte) error {
	t.mu.Lock()
	trusted := t.forwarder == forwarder && t.forwarder != (schema.Account{})
	t.mu.Unlock()

	caller := forwarder
	if trusted {
		caller = signer
	}

	method := gjson.GetBytes(data, "method").String()
	params := gjson.GetBytes(data, "params")
	switch method {
	case "transfer":
		to := schema.HexToAddress(params.Get("to").String())
		amount, ok := new(big.Int).SetString(params.Get("amount").String(), 10)
		if !ok {
			return ErrInsufficientBalance
		}
		return t.Transfer(caller, to, amount)
	case "approve":
		spender := schema.HexToAddress(params.Get("spender").String())
		amount, ok := new(big.Int).SetString(params.Get("amount").String(), 10)
		if !ok {
			return ErrInsufficientBalance
		}
		return t.Approve(caller, spender, amount)
	default:
		return schema.ErrNotImplement
	}
}
