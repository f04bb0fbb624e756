package ledger

import (
	"math/big"
	"testing"

	"github.com/cryptoxpress/cxmarket/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRegistry struct {
	proxies map[schema.Account]schema.Account
}

func (s *stubRegistry) Proxies(account schema.Account) schema.Account {
	return s.proxies[account]
}

func TestMultiTokenMint(t *testing.T) {
	m := NewMultiToken(alice, nil)

	// minting is owner-or-collaborator only
	assert.ErrorIs(t, m.Mint(bob, carol, 1, 10, "ipfs://one"), ErrNotCollaborator)
	assert.ErrorIs(t, m.MintBatch(bob, carol, []uint64{1}, []uint64{10}, []string{""}), ErrNotCollaborator)
	require.NoError(t, m.AddCollaborator(alice, bob))

	require.NoError(t, m.Mint(bob, carol, 1, 10, "ipfs://one"))
	assert.Equal(t, uint64(10), m.BalanceOf(carol, 1))
	minter, ok := m.MinterOf(1)
	require.True(t, ok)
	assert.Equal(t, bob, minter)

	assert.ErrorIs(t, m.Mint(bob, carol, 1, 5, "ipfs://dup"), ErrTokenExists)
	assert.ErrorIs(t, m.Mint(bob, schema.Account{}, 2, 5, ""), ErrZeroAddress)
}

func TestMultiTokenMintBatchAtomic(t *testing.T) {
	m := NewMultiToken(alice, nil)
	require.NoError(t, m.AddCollaborator(alice, bob))
	require.NoError(t, m.Mint(bob, bob, 2, 1, "ipfs://two"))

	// id 2 collides, so nothing from the batch lands
	err := m.MintBatch(bob, carol, []uint64{1, 2, 3}, []uint64{5, 5, 5}, []string{"a", "b", "c"})
	assert.ErrorIs(t, err, ErrTokenExists)
	assert.Equal(t, uint64(0), m.BalanceOf(carol, 1))
	assert.Equal(t, uint64(0), m.BalanceOf(carol, 3))

	require.NoError(t, m.MintBatch(bob, carol, []uint64{1, 3}, []uint64{5, 7}, []string{"a", "c"}))
	assert.Equal(t, uint64(5), m.BalanceOf(carol, 1))
	assert.Equal(t, uint64(7), m.BalanceOf(carol, 3))
}

func TestMultiTokenBurn(t *testing.T) {
	m := NewMultiToken(alice, nil)
	require.NoError(t, m.AddCollaborator(alice, bob))
	require.NoError(t, m.Mint(bob, bob, 1, 10, ""))

	assert.ErrorIs(t, m.Burn(carol, 1, 1), ErrInsufficientBalance)
	require.NoError(t, m.Burn(bob, 1, 4))
	assert.Equal(t, uint64(6), m.BalanceOf(bob, 1))
	assert.ErrorIs(t, m.Burn(bob, 2, 1), ErrTokenNotFound)
}

func TestMultiTokenURI(t *testing.T) {
	m := NewMultiToken(alice, nil)
	require.NoError(t, m.AddCollaborator(alice, bob))
	require.NoError(t, m.Mint(bob, bob, 1, 1, "ipfs://v1"))

	uri, err := m.URI(1)
	require.NoError(t, err)
	assert.Equal(t, "ipfs://v1", uri)

	// strangers cannot touch metadata
	assert.ErrorIs(t, m.SetURI(carol, 1, "ipfs://evil"), ErrNotCollaborator)

	// collaborators can, once added by the ledger owner
	assert.ErrorIs(t, m.AddCollaborator(bob, carol), ErrNotLedgerOwner)
	require.NoError(t, m.AddCollaborator(alice, carol))
	require.NoError(t, m.SetURI(carol, 1, "ipfs://v2"))

	// freeze is forever
	assert.ErrorIs(t, m.FreezeURI(carol, 1), ErrNotTokenMinter)
	require.NoError(t, m.FreezeURI(bob, 1))
	assert.ErrorIs(t, m.SetURI(bob, 1, "ipfs://v3"), ErrURIFrozen)

	uri, err = m.URI(1)
	require.NoError(t, err)
	assert.Equal(t, "ipfs://v2", uri)
}

func TestMultiTokenRoyalty(t *testing.T) {
	m := NewMultiToken(alice, nil)
	require.NoError(t, m.AddCollaborator(alice, bob))
	require.NoError(t, m.Mint(bob, bob, 1, 1, ""))

	// minter only
	assert.ErrorIs(t, m.SetRoyalty(carol, 1, carol, 100), ErrNotTokenMinter)
	// capped
	assert.ErrorIs(t, m.SetRoyalty(bob, 1, bob, schema.MaxRoyaltyBps+1), ErrRoyaltyTooHigh)

	require.NoError(t, m.SetRoyalty(bob, 1, bob, 1000))
	recv, amount, err := m.RoyaltyInfo(1, big.NewInt(2000))
	require.NoError(t, err)
	assert.Equal(t, bob, recv)
	assert.Equal(t, 0, amount.Cmp(big.NewInt(200)))

	// once set, only decreasable
	assert.ErrorIs(t, m.SetRoyalty(bob, 1, bob, 1500), ErrRoyaltyIncrease)
	require.NoError(t, m.SetRoyalty(bob, 1, bob, 500))

	// tokens without a record pay zero
	require.NoError(t, m.Mint(bob, bob, 2, 1, ""))
	_, amount, err = m.RoyaltyInfo(2, big.NewInt(2000))
	require.NoError(t, err)
	assert.Equal(t, 0, amount.Sign())

	_, _, err = m.RoyaltyInfo(9, big.NewInt(2000))
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestMultiTokenOperators(t *testing.T) {
	m := NewMultiToken(alice, nil)
	require.NoError(t, m.AddCollaborator(alice, bob))
	require.NoError(t, m.Mint(bob, bob, 1, 10, ""))

	xfer := schema.AssetTransfer{From: bob, To: carol, TokenID: 1, Quantity: 3}

	assert.ErrorIs(t, m.TransferByOperator(carol, xfer), ErrOperatorDenied)

	// holders move their own tokens freely
	require.NoError(t, m.TransferByOperator(bob, xfer))
	assert.Equal(t, uint64(3), m.BalanceOf(carol, 1))

	require.NoError(t, m.SetApprovalForAll(bob, carol, true))
	require.NoError(t, m.TransferByOperator(carol, xfer))
	assert.Equal(t, uint64(6), m.BalanceOf(carol, 1))

	require.NoError(t, m.SetApprovalForAll(bob, carol, false))
	assert.ErrorIs(t, m.TransferByOperator(carol, xfer), ErrOperatorDenied)

	assert.ErrorIs(t, m.TransferByOperator(bob, schema.AssetTransfer{From: bob, To: carol, TokenID: 1, Quantity: 100}), ErrInsufficientBalance)
}

func TestMultiTokenRegistryProxyAutoApproval(t *testing.T) {
	proxyID := schema.HexToAddress("0x4000000000000000000000000000000000000099")
	reg := &stubRegistry{proxies: map[schema.Account]schema.Account{bob: proxyID}}
	m := NewMultiToken(alice, reg)
	require.NoError(t, m.AddCollaborator(alice, bob))
	require.NoError(t, m.Mint(bob, bob, 1, 10, ""))

	// the registry proxy needs no explicit approval
	assert.True(t, m.IsApprovedForAll(bob, proxyID))
	require.NoError(t, m.TransferByOperator(proxyID, schema.AssetTransfer{From: bob, To: carol, TokenID: 1, Quantity: 2}))

	// an override swaps the honored operator immediately
	newProxy := schema.HexToAddress("0x4000000000000000000000000000000000000100")
	reg.proxies[bob] = newProxy
	assert.False(t, m.IsApprovedForAll(bob, proxyID))
	assert.True(t, m.IsApprovedForAll(bob, newProxy))
	assert.ErrorIs(t, m.TransferByOperator(proxyID, schema.AssetTransfer{From: bob, To: carol, TokenID: 1, Quantity: 2}), ErrOperatorDenied)
}
