package ledger

import (
	"math/big"
	"testing"

	"github.com/cryptoxpress/cxmarket/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNFTMintAndBurn(t *testing.T) {
	n := NewNFT(alice, nil)

	// same owner-or-collaborator mint gate as the multi-quantity ledger
	assert.ErrorIs(t, n.SafeMint(bob, bob, 1, "ipfs://one"), ErrNotCollaborator)
	require.NoError(t, n.AddCollaborator(alice, bob))
	require.NoError(t, n.AddCollaborator(alice, carol))

	require.NoError(t, n.SafeMint(bob, bob, 1, "ipfs://one"))
	holder, err := n.OwnerOf(1)
	require.NoError(t, err)
	assert.Equal(t, bob, holder)
	assert.Equal(t, uint64(1), n.BalanceOf(bob, 1))

	assert.ErrorIs(t, n.SafeMint(bob, bob, 1, ""), ErrTokenExists)

	assert.ErrorIs(t, n.Burn(carol, 1), ErrInsufficientBalance)
	require.NoError(t, n.Burn(bob, 1))
	_, err = n.OwnerOf(1)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	// a burned id can be minted again
	require.NoError(t, n.SafeMint(carol, carol, 1, "ipfs://again"))
	holder, err = n.OwnerOf(1)
	require.NoError(t, err)
	assert.Equal(t, carol, holder)
}

func TestNFTMintBatchAtomic(t *testing.T) {
	n := NewNFT(alice, nil)
	require.NoError(t, n.AddCollaborator(alice, bob))
	require.NoError(t, n.SafeMint(bob, bob, 2, ""))

	err := n.SafeMintBatch(bob, carol, []uint64{1, 2}, []string{"a", "b"})
	assert.ErrorIs(t, err, ErrTokenExists)
	_, err = n.OwnerOf(1)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	require.NoError(t, n.SafeMintBatch(bob, carol, []uint64{1, 3}, []string{"a", "c"}))
	assert.Equal(t, uint64(1), n.BalanceOf(carol, 1))
	assert.Equal(t, uint64(1), n.BalanceOf(carol, 3))
}

func TestNFTTransferByOperator(t *testing.T) {
	n := NewNFT(alice, nil)
	require.NoError(t, n.AddCollaborator(alice, bob))
	require.NoError(t, n.SafeMint(bob, bob, 1, ""))

	// single-owner quantities are fixed at 1
	assert.ErrorIs(t, n.TransferByOperator(bob, schema.AssetTransfer{From: bob, To: carol, TokenID: 1, Quantity: 2}), ErrInsufficientBalance)

	assert.ErrorIs(t, n.TransferByOperator(carol, schema.AssetTransfer{From: bob, To: carol, TokenID: 1, Quantity: 1}), ErrOperatorDenied)

	require.NoError(t, n.SetApprovalForAll(bob, carol, true))
	require.NoError(t, n.TransferByOperator(carol, schema.AssetTransfer{From: bob, To: carol, TokenID: 1, Quantity: 1}))
	holder, err := n.OwnerOf(1)
	require.NoError(t, err)
	assert.Equal(t, carol, holder)

	// old holder can no longer move it
	assert.ErrorIs(t, n.TransferByOperator(bob, schema.AssetTransfer{From: bob, To: alice, TokenID: 1, Quantity: 1}), ErrInsufficientBalance)
}

func TestNFTRoyalty(t *testing.T) {
	n := NewNFT(alice, nil)
	require.NoError(t, n.AddCollaborator(alice, bob))
	require.NoError(t, n.SafeMint(bob, bob, 1, ""))

	require.NoError(t, n.SetRoyalty(bob, 1, bob, 1000))
	assert.ErrorIs(t, n.SetRoyalty(bob, 1, bob, 2000), ErrRoyaltyIncrease)

	recv, amount, err := n.RoyaltyInfo(1, big.NewInt(5000))
	require.NoError(t, err)
	assert.Equal(t, bob, recv)
	assert.Equal(t, 0, amount.Cmp(big.NewInt(500)))
}
