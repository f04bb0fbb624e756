// Package sdk is the client side of the market: a plain HTTP client plus a
// goether-backed signer that produces relay-ready meta transactions.
package sdk

import (
	"encoding/json"

	"github.com/cryptoxpress/cxmarket/schema"
	"github.com/everFinance/goether"
)

type SDK struct {
	Cli *MarketCli

	chainID uint64
	signer  *goether.Signer
}

func NewSDK(marketUrl, priKey string) (*SDK, error) {
	signer, err := goether.NewSigner(priKey)
	if err != nil {
		return nil, err
	}
	cli := NewMarketCli(marketUrl)
	info, err := cli.GetInfo()
	if err != nil {
		return nil, err
	}
	return &SDK{
		Cli:     cli,
		chainID: info.ChainID,
		signer:  signer,
	}, nil
}

func (s *SDK) Address() schema.Account {
	return s.signer.Address
}

// SignForward builds and signs a forward request for the given target and
// call envelope, fetching the signer's current nonce from the relay.
func (s *SDK) SignForward(to schema.Account, envelope schema.CallEnvelope) (schema.ForwardRequest, []byte, error) {
	data, err := json.Marshal(envelope)
	if err != nil {
		return schema.ForwardRequest{}, nil, err
	}
	nonce, err := s.Cli.GetRelayNonce(s.signer.Address)
	if err != nil {
		return schema.ForwardRequest{}, nil, err
	}
	req := schema.ForwardRequest{
		From:  s.signer.Address,
		To:    to,
		Data:  data,
		Nonce: nonce,
	}
	sig, err := s.signer.SignMsg(req.SigningMessage(s.chainID))
	if err != nil {
		return schema.ForwardRequest{}, nil, err
	}
	return req, sig, nil
}

// SendForward signs and submits in one step.
func (s *SDK) SendForward(to schema.Account, envelope schema.CallEnvelope) error {
	req, sig, err := s.SignForward(to, envelope)
	if err != nil {
		return err
	}
	return s.Cli.ExecuteRelay(req, sig)
}

func jsonRaw(b []byte) json.RawMessage {
	return json.RawMessage(b)
}
