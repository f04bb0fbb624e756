package schema

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/crypto"
)

// ForwardRequest is a signed off-chain intent executed by the relay on the
// signer's behalf. Data carries a JSON call envelope (see CallEnvelope).
type ForwardRequest struct {
	From  Account `json:"from"`
	To    Account `json:"to"`
	Data  []byte  `json:"data"`
	Nonce uint64  `json:"nonce"`
}

// SigningMessage is the canonical byte string the signer commits to:
// keccak256(chainId || from || to || nonce || keccak256(data)). The signature
// itself is an Ethereum personal-message signature over these 32 bytes, so
// goether.Signer.SignMsg output verifies directly.
func (r ForwardRequest) SigningMessage(chainID uint64) []byte {
	var chain [8]byte
	binary.BigEndian.PutUint64(chain[:], chainID)
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], r.Nonce)
	return crypto.Keccak256(
		chain[:],
		r.From.Bytes(),
		r.To.Bytes(),
		nonce[:],
		crypto.Keccak256(r.Data),
	)
}

// CallEnvelope is the method dispatch format relayed targets understand.
// Params stays raw; each target decodes its own payload type.
type CallEnvelope struct {
	Method string `json:"method"`
	Params any    `json:"params"`
}
