package sdk

import (
	"errors"
	"fmt"

	"github.com/cryptoxpress/cxmarket/schema"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"gopkg.in/h2non/gentleman.v2"
	"gopkg.in/h2non/gentleman.v2/plugins/body"
)

// MarketCli is the plain HTTP client for the market API.
type MarketCli struct {
	SCli *gentleman.Client
}

func NewMarketCli(marketUrl string) *MarketCli {
	return &MarketCli{
		SCli: gentleman.New().URL(marketUrl),
	}
}

type InfoResp struct {
	Owner         string `json:"owner"`
	Engine        string `json:"engine"`
	Relay         string `json:"relay"`
	ChainID       uint64 `json:"chainId"`
	Paused        bool   `json:"paused"`
	CommissionBps uint32 `json:"commissionBps"`
}

func (m *MarketCli) GetInfo() (InfoResp, error) {
	req := m.SCli.Get()
	req.Path("/info")
	resp, err := req.Send()
	if err != nil {
		return InfoResp{}, err
	}
	defer resp.Close()
	if !resp.Ok {
		return InfoResp{}, errors.New(fmt.Sprintf("resp failed: %s", resp.String()))
	}
	info := InfoResp{}
	err = resp.JSON(&info)
	return info, err
}

type ListingResp struct {
	NFTContract  string `json:"nftContract"`
	Owner        string `json:"owner"`
	TokenID      uint64 `json:"tokenId"`
	ListingType  uint8  `json:"listingType"`
	Quantity     uint64 `json:"quantity"`
	Price        string `json:"price"`
	PaymentToken string `json:"paymentToken"`
	StartTime    int64  `json:"startTime"`
	EndTime      int64  `json:"endTime"`
	Bidder       string `json:"bidder"`
	BidAmount    string `json:"bidAmount"`
	BidQuantity  uint64 `json:"bidQuantity"`
}

func (m *MarketCli) GetListing(nftContract, owner string, tokenID uint64) (ListingResp, error) {
	req := m.SCli.Get()
	req.AddPath(fmt.Sprintf("/market/listing/%s/%s/%d", nftContract, owner, tokenID))
	resp, err := req.Send()
	if err != nil {
		return ListingResp{}, err
	}
	defer resp.Close()
	if !resp.Ok {
		return ListingResp{}, errors.New(fmt.Sprintf("resp failed: %s", resp.String()))
	}
	listing := ListingResp{}
	err = resp.JSON(&listing)
	return listing, err
}

func (m *MarketCli) GetListings() ([]ListingResp, error) {
	req := m.SCli.Get()
	req.Path("/market/listings")
	resp, err := req.Send()
	if err != nil {
		return nil, err
	}
	defer resp.Close()
	if !resp.Ok {
		return nil, errors.New(fmt.Sprintf("resp failed: %s", resp.String()))
	}
	listings := make([]ListingResp, 0)
	err = resp.JSON(&listings)
	return listings, err
}

func (m *MarketCli) GetRelayNonce(signer schema.Account) (uint64, error) {
	req := m.SCli.Get()
	req.AddPath(fmt.Sprintf("/relay/nonce/%s", signer.Hex()))
	resp, err := req.Send()
	if err != nil {
		return 0, err
	}
	defer resp.Close()
	if !resp.Ok {
		return 0, errors.New(fmt.Sprintf("resp failed: %s", resp.String()))
	}
	out := struct {
		Nonce uint64 `json:"nonce"`
	}{}
	err = resp.JSON(&out)
	return out.Nonce, err
}

type relayExecuteReq struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Data  any    `json:"data"`
	Nonce uint64 `json:"nonce"`
	Sig   string `json:"sig"`
}

// ExecuteRelay posts a signed forward request.
func (m *MarketCli) ExecuteRelay(req schema.ForwardRequest, sig []byte) error {
	payload := relayExecuteReq{
		From:  req.From.Hex(),
		To:    req.To.Hex(),
		Data:  jsonRaw(req.Data),
		Nonce: req.Nonce,
		Sig:   hexutil.Encode(sig),
	}
	hReq := m.SCli.Post()
	hReq.Path("/relay/execute")
	hReq.Use(body.JSON(payload))
	resp, err := hReq.Send()
	if err != nil {
		return err
	}
	defer resp.Close()
	if !resp.Ok {
		return errors.New(fmt.Sprintf("resp failed: %s", resp.String()))
	}
	return nil
}

func (m *MarketCli) RegisterProxy(caller schema.Account, override bool) (string, error) {
	payload := map[string]any{
		"caller":   caller.Hex(),
		"override": override,
	}
	req := m.SCli.Post()
	req.Path("/registry/proxy")
	req.Use(body.JSON(payload))
	resp, err := req.Send()
	if err != nil {
		return "", err
	}
	defer resp.Close()
	if !resp.Ok {
		return "", errors.New(fmt.Sprintf("resp failed: %s", resp.String()))
	}
	out := struct {
		Proxy string `json:"proxy"`
	}{}
	err = resp.JSON(&out)
	return out.Proxy, err
}
