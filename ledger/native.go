package ledger

import (
	"math/big"
	"sync"

	"github.com/cryptoxpress/cxmarket/schema"
)

// NativeBank models native-value balances. Deposits are credited out of
// band (faucet style in tests); transfers are unconditional debits.
type NativeBank struct {
	mu       sync.Mutex
	balances map[schema.Account]*big.Int
}

func NewNativeBank() *NativeBank {
	return &NativeBank{balances: make(map[schema.Account]*big.Int)}
}

func (n *NativeBank) BalanceOf(account schema.Account) *big.Int {
	n.mu.Lock()
	defer n.mu.Unlock()
	if b, ok := n.balances[account]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// Deposit credits an account, creating it if needed.
func (n *NativeBank) Deposit(account schema.Account, amount *big.Int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	b, ok := n.balances[account]
	if !ok {
		b = new(big.Int)
		n.balances[account] = b
	}
	b.Add(b, amount)
}

func (n *NativeBank) Transfer(from, to schema.Account, amount *big.Int) error {
	if to == (schema.Account{}) {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInsufficientBalance
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	bal, ok := n.balances[from]
	if !ok || bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	bal.Sub(bal, amount)
	dst, ok := n.balances[to]
	if !ok {
		dst = new(big.Int)
		n.balances[to] = dst
	}
	dst.Add(dst, amount)
	return nil
}
