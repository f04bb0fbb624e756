package cxmarket

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/cryptoxpress/cxmarket/common"
	"github.com/cryptoxpress/cxmarket/schema"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
)

func (m *Market) runAPI(port string) {
	r := gin.Default()
	m.router = r
	r.Use(common.CORSMiddleware())
	if !strings.Contains(port, ":") {
		port = ":" + port
	}
	v1 := r.Group("/")
	v1.Use(common.LimiterMiddleware(600, "M", nil))
	{
		v1.GET("/info", m.getInfo)

		v1.GET("/market/listings", m.getListings)
		v1.GET("/market/listing/:contract/:owner/:tokenId", m.getListing)
		v1.POST("/market/list", m.postList)
		v1.POST("/market/listBatch", m.postListBatch)
		v1.POST("/market/delist", m.postDelist)
		v1.POST("/market/buy", m.postBuy)
		v1.POST("/market/bid", m.postBid)

		v1.GET("/relay/nonce/:signer", m.getRelayNonce)
		v1.POST("/relay/execute", m.postRelayExecute)

		v1.GET("/registry/proxy/:account", m.getProxy)
		v1.POST("/registry/proxy", m.postRegisterProxy)
	}
	common.NewMetricServer()
	if err := r.Run(port); err != nil {
		panic(err)
	}
}

func (m *Market) getInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"owner":         m.owner.Hex(),
		"engine":        m.engine.Address().Hex(),
		"relay":         m.relay.Address().Hex(),
		"chainId":       m.relay.ChainID(),
		"paused":        m.engine.Paused(),
		"commissionBps": m.engine.CommissionBps(),
	})
}

type listingResp struct {
	NFTContract  string `json:"nftContract"`
	Owner        string `json:"owner"`
	TokenID      uint64 `json:"tokenId"`
	ListingType  uint8  `json:"listingType"`
	Quantity     uint64 `json:"quantity"`
	Price        string `json:"price"`
	PaymentToken string `json:"paymentToken"`
	StartTime    int64  `json:"startTime"`
	EndTime      int64  `json:"endTime"`
	Bidder       string `json:"bidder,omitempty"`
	BidAmount    string `json:"bidAmount,omitempty"`
	BidQuantity  uint64 `json:"bidQuantity,omitempty"`
}

func toListingResp(l schema.Listing) listingResp {
	resp := listingResp{
		NFTContract:  l.NFTContract.Hex(),
		Owner:        l.Owner.Hex(),
		TokenID:      l.TokenID,
		ListingType:  uint8(l.ListingType),
		Quantity:     l.ListedQuantity,
		PaymentToken: l.PaymentToken.Hex(),
		StartTime:    l.StartTime,
		EndTime:      l.EndTime,
		BidQuantity:  l.ApprovedBidQuantity,
	}
	if l.Price != nil {
		resp.Price = l.Price.String()
	}
	if l.ApprovedBidder != (schema.Account{}) {
		resp.Bidder = l.ApprovedBidder.Hex()
	}
	if l.ApprovedBidAmount != nil {
		resp.BidAmount = l.ApprovedBidAmount.String()
	}
	return resp
}

func (m *Market) getListings(c *gin.Context) {
	listings := m.engine.Listings()
	resp := make([]listingResp, 0, len(listings))
	for _, l := range listings {
		resp = append(resp, toListingResp(l))
	}
	c.JSON(http.StatusOK, resp)
}

func (m *Market) getListing(c *gin.Context) {
	tokenID, err := strconv.ParseUint(c.Param("tokenId"), 10, 64)
	if err != nil {
		errorResponse(c, err.Error())
		return
	}
	l, err := m.engine.GetListingDetails(
		schema.HexToAddress(c.Param("contract")),
		schema.HexToAddress(c.Param("owner")),
		tokenID,
	)
	if err != nil {
		c.JSON(http.StatusNotFound, schema.RespErr{Err: err.Error()})
		return
	}
	c.JSON(http.StatusOK, toListingResp(l))
}

type listReq struct {
	Caller       string `json:"caller"`
	TokenID      uint64 `json:"tokenId"`
	NFTContract  string `json:"nftContract"`
	Price        string `json:"price"`
	PaymentToken string `json:"paymentToken"`
	ListQuantity uint64 `json:"listQuantity"`
	ListingType  uint8  `json:"listingType"`
	StartTime    int64  `json:"startTime"`
	EndTime      int64  `json:"endTime"`
}

func (r listReq) payload() (schema.ListPayload, error) {
	price, ok := new(big.Int).SetString(r.Price, 10)
	if !ok {
		return schema.ListPayload{}, ErrBadRequest
	}
	return schema.ListPayload{
		TokenID:      r.TokenID,
		NFTContract:  schema.HexToAddress(r.NFTContract),
		Price:        price,
		PaymentToken: schema.HexToAddress(r.PaymentToken),
		ListQuantity: r.ListQuantity,
		ListingType:  schema.ListingType(r.ListingType),
		StartTime:    r.StartTime,
		EndTime:      r.EndTime,
	}, nil
}

func (m *Market) postList(c *gin.Context) {
	req := listReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, err.Error())
		return
	}
	payload, err := req.payload()
	if err != nil {
		errorResponse(c, err.Error())
		return
	}
	if err := m.engine.List(schema.HexToAddress(req.Caller), payload); err != nil {
		marketErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (m *Market) postListBatch(c *gin.Context) {
	reqs := make([]listReq, 0)
	if err := c.ShouldBindJSON(&reqs); err != nil {
		errorResponse(c, err.Error())
		return
	}
	if len(reqs) == 0 {
		errorResponse(c, "empty batch")
		return
	}
	caller := schema.HexToAddress(reqs[0].Caller)
	payloads := make([]schema.ListPayload, 0, len(reqs))
	for _, r := range reqs {
		p, err := r.payload()
		if err != nil {
			errorResponse(c, err.Error())
			return
		}
		payloads = append(payloads, p)
	}
	if err := m.engine.ListBatch(caller, payloads); err != nil {
		marketErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

type delistReq struct {
	Caller      string `json:"caller"`
	NFTContract string `json:"nftContract"`
	TokenID     uint64 `json:"tokenId"`
}

func (m *Market) postDelist(c *gin.Context) {
	req := delistReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, err.Error())
		return
	}
	if err := m.engine.Delist(schema.HexToAddress(req.Caller), schema.HexToAddress(req.NFTContract), req.TokenID); err != nil {
		marketErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

type buyReq struct {
	Caller      string `json:"caller"`
	TokenID     uint64 `json:"tokenId"`
	NFTContract string `json:"nftContract"`
	Quantity    uint64 `json:"quantity"`
	FromAddress string `json:"fromAddress"`
	Value       string `json:"value"`
}

func (m *Market) postBuy(c *gin.Context) {
	req := buyReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, err.Error())
		return
	}
	value := new(big.Int)
	if req.Value != "" {
		if _, ok := value.SetString(req.Value, 10); !ok {
			errorResponse(c, "invalid value")
			return
		}
	}
	sale, err := m.engine.Buy(schema.HexToAddress(req.Caller), schema.BuyPayload{
		TokenID:     req.TokenID,
		NFTContract: schema.HexToAddress(req.NFTContract),
		Quantity:    req.Quantity,
		FromAddress: schema.HexToAddress(req.FromAddress),
	}, value)
	if err != nil {
		marketErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

type bidReq struct {
	Caller      string `json:"caller"`
	NFTContract string `json:"nftContract"`
	TokenID     uint64 `json:"tokenId"`
	Bidder      string `json:"bidder"`
	BidAmount   string `json:"bidAmount"`
	BidQuantity uint64 `json:"bidQuantity"`
}

func (m *Market) postBid(c *gin.Context) {
	req := bidReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, err.Error())
		return
	}
	amount, ok := new(big.Int).SetString(req.BidAmount, 10)
	if !ok {
		errorResponse(c, "invalid bid amount")
		return
	}
	err := m.engine.UpdateApprovedBidder(
		schema.HexToAddress(req.Caller),
		schema.HexToAddress(req.NFTContract),
		req.TokenID,
		schema.HexToAddress(req.Bidder),
		amount,
		req.BidQuantity,
	)
	if err != nil {
		marketErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (m *Market) getRelayNonce(c *gin.Context) {
	signer := schema.HexToAddress(c.Param("signer"))
	c.JSON(http.StatusOK, gin.H{"nonce": m.relay.GetNonce(signer)})
}

type relayReq struct {
	From  string          `json:"from"`
	To    string          `json:"to"`
	Data  json.RawMessage `json:"data"`
	Nonce uint64          `json:"nonce"`
	Sig   string          `json:"sig"` // 0x-prefixed 65-byte signature
}

func (m *Market) postRelayExecute(c *gin.Context) {
	req := relayReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, err.Error())
		return
	}
	sig, err := hexutil.Decode(req.Sig)
	if err != nil {
		errorResponse(c, err.Error())
		return
	}
	err = m.relay.Execute(schema.ForwardRequest{
		From:  schema.HexToAddress(req.From),
		To:    schema.HexToAddress(req.To),
		Data:  req.Data,
		Nonce: req.Nonce,
	}, sig)
	if err != nil {
		marketErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (m *Market) getProxy(c *gin.Context) {
	account := schema.HexToAddress(c.Param("account"))
	proxy := m.registry.Proxies(account)
	if proxy == (schema.Account{}) {
		c.JSON(http.StatusNotFound, schema.RespErr{Err: ErrProxyNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"proxy": proxy.Hex()})
}

type registerProxyReq struct {
	Caller   string `json:"caller"`
	Target   string `json:"target"`   // optional; register on behalf of
	Override bool   `json:"override"` // replace an existing proxy
}

func (m *Market) postRegisterProxy(c *gin.Context) {
	req := registerProxyReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, err.Error())
		return
	}
	caller := schema.HexToAddress(req.Caller)
	var proxy *DelegateProxy
	var err error
	switch {
	case req.Override:
		proxy, err = m.registry.RegisterProxyOverride(caller)
	case req.Target != "":
		proxy, err = m.registry.RegisterProxyFor(caller, schema.HexToAddress(req.Target))
	default:
		proxy, err = m.registry.RegisterProxy(caller)
	}
	if err != nil {
		marketErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proxy": proxy.Address().Hex()})
}

func marketErrorResponse(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrListingNotFound) || errors.Is(err, ErrProxyNotFound):
		c.JSON(http.StatusNotFound, schema.RespErr{Err: err.Error()})
	case errors.Is(err, ErrAuthorization), errors.Is(err, ErrListing), errors.Is(err, ErrRelay), errors.Is(err, ErrBadRequest):
		errorResponse(c, err.Error())
	default:
		internalErrorResponse(c, err.Error())
	}
}

func errorResponse(c *gin.Context, err string) {
	// client error
	c.JSON(http.StatusBadRequest, schema.RespErr{
		Err: err,
	})
}

func internalErrorResponse(c *gin.Context, err string) {
	c.JSON(http.StatusInternalServerError, schema.RespErr{
		Err: err,
	})
}
