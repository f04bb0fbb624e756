package cxmarket

import (
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/cryptoxpress/cxmarket/ledger"
	"github.com/cryptoxpress/cxmarket/schema"
	"github.com/everFinance/goether"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPrivHex = "88834ac18009182c07d116fe4a7903c0bcc8a66190f0967b719b2b3974a69c2f"

var errStubCall = errors.New("stub call failed")

type stubTarget struct {
	addr      schema.Account
	forwarder schema.Account
	callers   []schema.Account
	fail      bool
}

func (s *stubTarget) Address() schema.Account { return s.addr }

func (s *stubTarget) HandleMetaTx(forwarder, signer schema.Account, data []byte) error {
	caller := forwarder
	if forwarder == s.forwarder && s.forwarder != (schema.Account{}) {
		caller = signer
	}
	s.callers = append(s.callers, caller)
	if s.fail {
		return errStubCall
	}
	return nil
}

func signedRequest(t *testing.T, signer *goether.Signer, relay *Relay, to schema.Account, nonce uint64) (schema.ForwardRequest, []byte) {
	data, err := json.Marshal(schema.CallEnvelope{Method: "ping", Params: map[string]any{}})
	require.NoError(t, err)
	req := schema.ForwardRequest{From: signer.Address, To: to, Data: data, Nonce: nonce}
	sig, err := signer.SignMsg(req.SigningMessage(relay.ChainID()))
	require.NoError(t, err)
	return req, sig
}

func TestRelayExecute(t *testing.T) {
	signer, err := goether.NewSigner(testPrivHex)
	require.NoError(t, err)

	relay := NewRelay(1, nil)
	target := &stubTarget{addr: schema.HexToAddress("0x3000000000000000000000000000000000000001")}
	target.forwarder = relay.Address()
	relay.RegisterTarget(target)

	req, sig := signedRequest(t, signer, relay, target.addr, 0)
	require.NoError(t, relay.Execute(req, sig))
	assert.Equal(t, uint64(1), relay.GetNonce(signer.Address))
	// trusted forwarder: the target saw the signer as caller
	assert.Equal(t, []schema.Account{signer.Address}, target.callers)

	// replaying the same signed request fails on the nonce
	assert.ErrorIs(t, relay.Execute(req, sig), ErrNonceMismatch)

	// tampering breaks the signature
	req2, sig2 := signedRequest(t, signer, relay, target.addr, 1)
	req2.Data = []byte(`{"method":"other"}`)
	assert.ErrorIs(t, relay.Execute(req2, sig2), ErrInvalidSignature)

	// unknown target
	req3, sig3 := signedRequest(t, signer, relay, schema.HexToAddress("0xdead"), 1)
	assert.ErrorIs(t, relay.Execute(req3, sig3), ErrUnknownTarget)
	assert.Equal(t, uint64(1), relay.GetNonce(signer.Address))
}

func TestRelayNonceConsumedOnFailure(t *testing.T) {
	signer, err := goether.NewSigner(testPrivHex)
	require.NoError(t, err)

	relay := NewRelay(1, nil)
	target := &stubTarget{addr: schema.HexToAddress("0x3000000000000000000000000000000000000001"), fail: true}
	target.forwarder = relay.Address()
	relay.RegisterTarget(target)

	req, sig := signedRequest(t, signer, relay, target.addr, 0)
	assert.ErrorIs(t, relay.Execute(req, sig), errStubCall)

	// the nonce is spent even though the inner call failed
	assert.Equal(t, uint64(1), relay.GetNonce(signer.Address))
	assert.ErrorIs(t, relay.Execute(req, sig), ErrNonceMismatch)
}

func TestRelayUntrustedForwarder(t *testing.T) {
	signer, err := goether.NewSigner(testPrivHex)
	require.NoError(t, err)

	relay := NewRelay(1, nil)
	// the target trusts some other forwarder
	target := &stubTarget{
		addr:      schema.HexToAddress("0x3000000000000000000000000000000000000001"),
		forwarder: schema.HexToAddress("0x3000000000000000000000000000000000000099"),
	}
	relay.RegisterTarget(target)

	req, sig := signedRequest(t, signer, relay, target.addr, 0)
	require.NoError(t, relay.Execute(req, sig))

	// the signer identity is not honored; the target saw the relay itself
	assert.Equal(t, []schema.Account{relay.Address()}, target.callers)
}

func TestRelayDifferentChainID(t *testing.T) {
	signer, err := goether.NewSigner(testPrivHex)
	require.NoError(t, err)

	relay := NewRelay(5, nil)
	target := &stubTarget{addr: schema.HexToAddress("0x3000000000000000000000000000000000000001")}
	relay.RegisterTarget(target)

	// signed for chain 1, submitted to chain 5
	data, _ := json.Marshal(schema.CallEnvelope{Method: "ping"})
	req := schema.ForwardRequest{From: signer.Address, To: target.addr, Data: data, Nonce: 0}
	sig, err := signer.SignMsg(req.SigningMessage(1))
	require.NoError(t, err)
	assert.ErrorIs(t, relay.Execute(req, sig), ErrInvalidSignature)
}

func TestRelayedEngineCalls(t *testing.T) {
	signer, err := goether.NewSigner(testPrivHex)
	require.NoError(t, err)
	seller := signer.Address

	registry, err := NewRegistry(mktOwner, nil)
	require.NoError(t, err)
	bank := ledger.NewNativeBank()
	engine := NewEngine(mktOwner, registry, bank, nil, nil, nil)
	require.NoError(t, registry.GrantInitialAuthentication(mktOwner, engine.Address()))
	nfts := ledger.NewMultiToken(mktOwner, registry)
	require.NoError(t, engine.RegisterAssetLedger(mktOwner, nfts.Address(), nfts))
	_, err = registry.RegisterProxy(seller)
	require.NoError(t, err)
	require.NoError(t, nfts.AddCollaborator(mktOwner, mktCreator))
	require.NoError(t, nfts.Mint(mktCreator, seller, 1, 5, "ipfs://meta"))

	relay := NewRelay(1, nil)
	relay.RegisterTarget(engine)
	require.NoError(t, engine.SetTrustedForwarder(mktOwner, relay.Address()))

	list := schema.CallEnvelope{Method: "list", Params: map[string]any{
		"tokenId":      1,
		"nftContract":  nfts.Address().Hex(),
		"price":        "1000",
		"paymentToken": schema.NativeToken.Hex(),
		"listQuantity": 5,
		"listingType":  uint8(schema.ListingFixedPrice),
	}}
	data, err := json.Marshal(list)
	require.NoError(t, err)
	req := schema.ForwardRequest{From: seller, To: engine.Address(), Data: data, Nonce: 0}
	sig, err := signer.SignMsg(req.SigningMessage(relay.ChainID()))
	require.NoError(t, err)
	require.NoError(t, relay.Execute(req, sig))

	got, err := engine.GetListingDetails(nfts.Address(), seller, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), got.ListedQuantity)

	// a buyer can settle against the relayed listing
	f := bank
	f.Deposit(mktBuyer, big.NewInt(1000))
	_, err = engine.Buy(mktBuyer, schema.BuyPayload{TokenID: 1, NFTContract: nfts.Address(), Quantity: 1, FromAddress: seller}, big.NewInt(1000))
	require.NoError(t, err)

	// with the forwarder no longer trusted the engine sees the relay as
	// caller, and the relay owns no assets to list
	require.NoError(t, engine.SetTrustedForwarder(mktOwner, schema.HexToAddress("0x9999")))
	req2 := schema.ForwardRequest{From: seller, To: engine.Address(), Data: data, Nonce: 1}
	sig2, err := signer.SignMsg(req2.SigningMessage(relay.ChainID()))
	require.NoError(t, err)
	assert.ErrorIs(t, relay.Execute(req2, sig2), ErrSellerInsufficientAsset)
}
