package cxmarket

import (
	"testing"

	"github.com/cryptoxpress/cxmarket/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLedger struct {
	calls []schema.AssetTransfer
	ops   []schema.Account
}

func (r *recordingLedger) TransferByOperator(operator schema.Account, xfer schema.AssetTransfer) error {
	r.ops = append(r.ops, operator)
	r.calls = append(r.calls, xfer)
	return nil
}

func TestProxyExecuteGate(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.GrantInitialAuthentication(testGovernor, testDelegate))

	p, err := r.RegisterProxy(testUserA)
	require.NoError(t, err)

	target := &recordingLedger{}
	xfer := schema.AssetTransfer{From: testUserA, To: testUserB, TokenID: 1, Quantity: 1}

	// owner passes
	require.NoError(t, p.Execute(testUserA, target, schema.CallDirect, xfer))
	// authorized delegate passes, operating as the proxy id
	require.NoError(t, p.Execute(testDelegate, target, schema.CallDirect, xfer))
	assert.Equal(t, []schema.Account{p.Address(), p.Address()}, target.ops)

	// strangers fail
	assert.ErrorIs(t, p.Execute(testUserB, target, schema.CallDirect, xfer), ErrProxyAccessDenied)
	assert.ErrorIs(t, p.Execute(testUserB, target, schema.CallDirect, xfer), ErrAuthorization)

	// delegated-context calls are not supported
	assert.ErrorIs(t, p.Execute(testUserA, target, schema.CallDelegate, xfer), ErrCallKindUnsupported)
	assert.Len(t, target.calls, 2)
}

func TestProxyRevoke(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.GrantInitialAuthentication(testGovernor, testDelegate))
	p, err := r.RegisterProxy(testUserA)
	require.NoError(t, err)

	target := &recordingLedger{}
	xfer := schema.AssetTransfer{From: testUserA, To: testUserB, TokenID: 1, Quantity: 1}

	assert.ErrorIs(t, p.SetRevoke(testUserB, true), ErrNotProxyOwner)
	require.NoError(t, p.SetRevoke(testUserA, true))

	// revoke cuts off delegates but never the owner
	assert.ErrorIs(t, p.Execute(testDelegate, target, schema.CallDirect, xfer), ErrProxyAccessDenied)
	require.NoError(t, p.Execute(testUserA, target, schema.CallDirect, xfer))

	require.NoError(t, p.SetRevoke(testUserA, false))
	require.NoError(t, p.Execute(testDelegate, target, schema.CallDirect, xfer))
}

func TestProxyRevocationFollowsRegistry(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.GrantInitialAuthentication(testGovernor, testDelegate))
	p, err := r.RegisterProxy(testUserA)
	require.NoError(t, err)

	target := &recordingLedger{}
	xfer := schema.AssetTransfer{From: testUserA, To: testUserB, TokenID: 1, Quantity: 1}
	require.NoError(t, p.Execute(testDelegate, target, schema.CallDirect, xfer))

	// revoking the delegate in the registry closes every proxy at once
	require.NoError(t, r.RevokeAuthentication(testGovernor, testDelegate))
	assert.ErrorIs(t, p.Execute(testDelegate, target, schema.CallDirect, xfer), ErrProxyAccessDenied)
}

func TestProxyOwnershipTransfer(t *testing.T) {
	r := newTestRegistry(t)
	p, err := r.RegisterProxy(testUserA)
	require.NoError(t, err)

	assert.ErrorIs(t, p.TransferProxyOwnership(testUserB, testUserB), ErrNotProxyOwner)
	assert.ErrorIs(t, p.TransferProxyOwnership(testUserA, schema.Account{}), ErrBadRequest)

	require.NoError(t, p.TransferProxyOwnership(testUserA, testUserB))
	assert.Equal(t, testUserB, p.User())

	// the registry mapping moves with the proxy
	assert.Equal(t, p.Address(), r.Proxies(testUserB))
	assert.Equal(t, schema.Account{}, r.Proxies(testUserA))

	// a transfer to an account that already holds a proxy is refused
	_, err = r.RegisterProxy(testUserA)
	require.NoError(t, err)
	assert.ErrorIs(t, p.TransferProxyOwnership(testUserB, testUserA), ErrProxyExists)
	assert.Equal(t, testUserB, p.User())

	target := &recordingLedger{}
	xfer := schema.AssetTransfer{From: testUserB, To: testUserA, TokenID: 1, Quantity: 1}
	assert.ErrorIs(t, p.Execute(testUserA, target, schema.CallDirect, xfer), ErrProxyAccessDenied)
	require.NoError(t, p.Execute(testUserB, target, schema.CallDirect, xfer))
}

func TestProxyInitializeOnce(t *testing.T) {
	r := newTestRegistry(t)
	p := NewDelegateProxy(schema.HexToAddress("0xbeef"))

	// uninitialized proxies refuse everything
	assert.ErrorIs(t, p.Execute(testUserA, &recordingLedger{}, schema.CallDirect, schema.AssetTransfer{}), ErrProxyAccessDenied)

	require.NoError(t, p.Initialize(testUserA, r))
	assert.ErrorIs(t, p.Initialize(testUserB, r), ErrProxyInitialized)
	assert.Equal(t, testUserA, p.User())
}
