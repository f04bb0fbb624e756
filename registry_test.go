package cxmarket

import (
	"testing"
	"time"

	"github.com/cryptoxpress/cxmarket/kvdb"
	"github.com/cryptoxpress/cxmarket/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testGovernor = schema.HexToAddress("0x1000000000000000000000000000000000000001")
	testDelegate = schema.HexToAddress("0x1000000000000000000000000000000000000002")
	testUserA    = schema.HexToAddress("0x1000000000000000000000000000000000000003")
	testUserB    = schema.HexToAddress("0x1000000000000000000000000000000000000004")
)

func newTestRegistry(t *testing.T) *Registry {
	r, err := NewRegistry(testGovernor, nil)
	require.NoError(t, err)
	return r
}

func TestGrantAuthenticationDelay(t *testing.T) {
	r := newTestRegistry(t)
	base := time.Unix(1_700_000_000, 0)
	now := base
	r.now = func() time.Time { return now }

	assert.ErrorIs(t, r.StartGrantAuthentication(testUserA, testDelegate), ErrNotGovernor)

	require.NoError(t, r.StartGrantAuthentication(testGovernor, testDelegate))
	assert.Equal(t, base.Unix(), r.Pending(testDelegate))
	assert.False(t, r.Contracts(testDelegate))

	// starting again while pending fails
	assert.ErrorIs(t, r.StartGrantAuthentication(testGovernor, testDelegate), ErrAlreadyGrantedOrPending)

	// one second before the delay elapses
	now = base.Add(time.Duration(schema.GrantAuthDelaySeconds)*time.Second - time.Second)
	assert.ErrorIs(t, r.EndGrantAuthentication(testGovernor, testDelegate), ErrGrantDelayNotElapsed)
	assert.False(t, r.Contracts(testDelegate))

	// at exactly since+delay
	now = base.Add(time.Duration(schema.GrantAuthDelaySeconds) * time.Second)
	require.NoError(t, r.EndGrantAuthentication(testGovernor, testDelegate))
	assert.True(t, r.Contracts(testDelegate))
	assert.Zero(t, r.Pending(testDelegate))

	// authorized delegates cannot be re-granted
	assert.ErrorIs(t, r.StartGrantAuthentication(testGovernor, testDelegate), ErrAlreadyGrantedOrPending)

	require.NoError(t, r.RevokeAuthentication(testGovernor, testDelegate))
	assert.False(t, r.Contracts(testDelegate))
}

func TestEndGrantWithoutPending(t *testing.T) {
	r := newTestRegistry(t)
	assert.ErrorIs(t, r.EndGrantAuthentication(testGovernor, testDelegate), ErrGrantNotPending)
	assert.ErrorIs(t, r.RevokeAuthentication(testGovernor, testDelegate), ErrNotAuthorized)
}

func TestGrantInitialAuthentication(t *testing.T) {
	r := newTestRegistry(t)

	assert.ErrorIs(t, r.GrantInitialAuthentication(testUserA, testDelegate), ErrNotGovernor)

	require.NoError(t, r.GrantInitialAuthentication(testGovernor, testDelegate))
	assert.True(t, r.Contracts(testDelegate))

	// once per registry instance, not once per delegate
	other := schema.HexToAddress("0x1000000000000000000000000000000000000005")
	assert.ErrorIs(t, r.GrantInitialAuthentication(testGovernor, other), ErrInitialGrantDone)
	assert.False(t, r.Contracts(other))
}

func TestRegisterProxy(t *testing.T) {
	r := newTestRegistry(t)

	p1, err := r.RegisterProxy(testUserA)
	require.NoError(t, err)
	assert.Equal(t, testUserA, p1.User())
	assert.Equal(t, p1.Address(), r.Proxies(testUserA))

	_, err = r.RegisterProxy(testUserA)
	assert.ErrorIs(t, err, ErrProxyExists)

	// on behalf of another account
	p2, err := r.RegisterProxyFor(testUserA, testUserB)
	require.NoError(t, err)
	assert.Equal(t, testUserB, p2.User())
	_, err = r.RegisterProxyFor(testGovernor, testUserB)
	assert.ErrorIs(t, err, ErrProxyExists)

	assert.Equal(t, schema.Account{}, r.Proxies(testGovernor))
}

func TestRegisterProxyOverride(t *testing.T) {
	r := newTestRegistry(t)

	p1, err := r.RegisterProxy(testUserA)
	require.NoError(t, err)

	p2, err := r.RegisterProxyOverride(testUserA)
	require.NoError(t, err)
	assert.NotEqual(t, p1.Address(), p2.Address())
	assert.Equal(t, p2.Address(), r.Proxies(testUserA))

	// the old proxy object is abandoned but still usable by direct reference
	assert.Equal(t, testUserA, p1.User())

	live, ok := r.ProxyOf(testUserA)
	require.True(t, ok)
	assert.Equal(t, p2.Address(), live.Address())
}

func TestRegistryPersistence(t *testing.T) {
	dir := t.TempDir()
	store, err := kvdb.NewBoltDB(dir)
	require.NoError(t, err)

	r1, err := NewRegistry(testGovernor, store)
	require.NoError(t, err)
	require.NoError(t, r1.GrantInitialAuthentication(testGovernor, testDelegate))
	p, err := r1.RegisterProxy(testUserA)
	require.NoError(t, err)
	require.NoError(t, p.SetRevoke(testUserA, true))
	require.NoError(t, store.Close())

	store, err = kvdb.NewBoltDB(dir)
	require.NoError(t, err)
	defer store.Close()

	r2, err := NewRegistry(testGovernor, store)
	require.NoError(t, err)
	assert.True(t, r2.Contracts(testDelegate))
	assert.Equal(t, p.Address(), r2.Proxies(testUserA))

	restored, ok := r2.ProxyOf(testUserA)
	require.True(t, ok)
	assert.True(t, restored.Revoked())

	// initial grant stays spent across restarts
	assert.ErrorIs(t, r2.GrantInitialAuthentication(testGovernor, testUserB), ErrInitialGrantDone)
}

func TestProxyOwnershipPersistence(t *testing.T) {
	dir := t.TempDir()
	store, err := kvdb.NewBoltDB(dir)
	require.NoError(t, err)

	r1, err := NewRegistry(testGovernor, store)
	require.NoError(t, err)
	p, err := r1.RegisterProxy(testUserA)
	require.NoError(t, err)
	require.NoError(t, p.TransferProxyOwnership(testUserA, testUserB))

	// a revoke by the new owner lands on the moved record
	require.NoError(t, p.SetRevoke(testUserB, true))
	require.NoError(t, store.Close())

	store, err = kvdb.NewBoltDB(dir)
	require.NoError(t, err)
	defer store.Close()

	r2, err := NewRegistry(testGovernor, store)
	require.NoError(t, err)
	assert.Equal(t, p.Address(), r2.Proxies(testUserB))
	assert.Equal(t, schema.Account{}, r2.Proxies(testUserA))

	restored, ok := r2.ProxyOf(testUserB)
	require.True(t, ok)
	assert.Equal(t, testUserB, restored.User())
	assert.True(t, restored.Revoked())
}
