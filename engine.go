package cxmarket

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/cryptoxpress/cxmarket/cache"
	"github.com/cryptoxpress/cxmarket/schema"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// AssetLedger is the NFT-side surface the engine settles against.
type AssetLedger interface {
	AssetTransferor
	BalanceOf(account schema.Account, tokenID uint64) uint64
}

// PaymentLedger is the fungible-token surface. TransferFrom spends the
// caller's allowance; Transfer spends the caller's own balance.
type PaymentLedger interface {
	BalanceOf(account schema.Account) *big.Int
	TransferFrom(caller, from, to schema.Account, amount *big.Int) error
	Transfer(caller, to schema.Account, amount *big.Int) error
}

// NativeLedger is the native-value surface used when the payment token is
// the zero address.
type NativeLedger interface {
	BalanceOf(account schema.Account) *big.Int
	Transfer(from, to schema.Account, amount *big.Int) error
}

// Engine is the trading core: the listing table and the settlement path.
// All money movement is buyer-funded at settlement; the engine holds
// nothing between trades except excess native value, which is kept.
type Engine struct {
	mu sync.Mutex

	id             schema.Account
	owner          schema.Account
	registry       *Registry
	native         NativeLedger
	royalty        RoyaltyAdapter
	forwarder      schema.Account
	commissionBps  uint32
	commissionRecv schema.Account

	paused   bool
	listings map[string]*schema.Listing
	settling map[string]bool
	payments map[schema.Account]PaymentLedger
	assets   map[schema.Account]AssetLedger
	bans     map[string]bool

	wdb    *Wdb
	cache  *cache.Cache
	events *EventBus

	now func() time.Time
}

func NewEngine(owner schema.Account, registry *Registry, native NativeLedger, wdb *Wdb, listingCache *cache.Cache, events *EventBus) *Engine {
	e := &Engine{
		id:             deriveProxyID(owner, ^uint64(0)),
		owner:          owner,
		registry:       registry,
		native:         native,
		commissionBps:  schema.DefaultCommissionBps,
		commissionRecv: owner,
		listings:       make(map[string]*schema.Listing),
		settling:       make(map[string]bool),
		payments:       make(map[schema.Account]PaymentLedger),
		assets:         make(map[schema.Account]AssetLedger),
		bans:           make(map[string]bool),
		wdb:            wdb,
		cache:          listingCache,
		events:         events,
		now:            time.Now,
	}
	if err := e.loadState(); err != nil {
		log.Error("load engine state failed", "err", err)
	}
	return e
}

// Address is the engine's delegate identity: the registry authorizes it,
// seller proxies see it as caller, payment ledgers see it as spender.
func (e *Engine) Address() schema.Account { return e.id }

func (e *Engine) Owner() schema.Account { return e.owner }

func (e *Engine) loadState() error {
	listings, err := e.wdb.GetListings()
	if err != nil {
		return err
	}
	for i := range listings {
		l := listings[i]
		e.listings[l.Key()] = &l
	}
	bans, err := e.wdb.GetBans()
	if err != nil {
		return err
	}
	for _, b := range bans {
		e.bans[banKey(b.Kind, b.Subject, b.TokenID)] = true
	}
	if len(listings) > 0 || len(bans) > 0 {
		log.Info("engine state loaded", "listings", len(listings), "bans", len(bans))
	}
	return nil
}

func banKey(kind, subject string, tokenID uint64) string {
	if kind == schema.BanKindToken {
		return fmt.Sprintf("%s:%s:%d", kind, subject, tokenID)
	}
	return kind + ":" + subject
}

// bannedLocked requires e.mu held.
func (e *Engine) bannedLocked(account, nftContract schema.Account, tokenID uint64) bool {
	return e.bans[banKey(schema.BanKindAccount, account.Hex(), 0)] ||
		e.bans[banKey(schema.BanKindContract, nftContract.Hex(), 0)] ||
		e.bans[banKey(schema.BanKindToken, nftContract.Hex(), tokenID)]
}

// paymentAllowedLocked requires e.mu held. The native token is always
// accepted; everything else must be on the allow list.
func (e *Engine) paymentAllowedLocked(token schema.Account) bool {
	if token == schema.NativeToken {
		return true
	}
	_, ok := e.payments[token]
	return ok
}

// List places or replaces the caller's sell offer for one token.
func (e *Engine) List(caller schema.Account, p schema.ListPayload) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.validateListLocked(caller, p); err != nil {
		return err
	}
	e.storeListingLocked(caller, p)
	return nil
}

// ListBatch is all or nothing: every payload is validated before the first
// one is stored.
func (e *Engine) ListBatch(caller schema.Account, payloads []schema.ListPayload) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range payloads {
		if err := e.validateListLocked(caller, p); err != nil {
			return err
		}
	}
	for _, p := range payloads {
		e.storeListingLocked(caller, p)
	}
	return nil
}

// validateListLocked requires e.mu held.
func (e *Engine) validateListLocked(caller schema.Account, p schema.ListPayload) error {
	if e.paused {
		return ErrMarketPaused
	}
	if e.settling[schema.ListingKey(p.NFTContract, caller, p.TokenID)] {
		return ErrReentrantCall
	}
	if e.bannedLocked(caller, p.NFTContract, p.TokenID) {
		return ErrBanned
	}
	if p.Price == nil || p.Price.Sign() <= 0 || p.ListQuantity == 0 {
		return ErrZeroPriceOrQuantity
	}
	if p.ListingType != schema.ListingFixedPrice && p.ListingType != schema.ListingAuction {
		return ErrInvalidListingType
	}
	if !e.paymentAllowedLocked(p.PaymentToken) {
		return ErrInvalidPaymentToken
	}
	asset, ok := e.assets[p.NFTContract]
	if !ok || asset.BalanceOf(caller, p.TokenID) < p.ListQuantity {
		return ErrSellerInsufficientAsset
	}
	return nil
}

// storeListingLocked requires e.mu held. Relisting the same token replaces
// the record, dropping any approved bid.
func (e *Engine) storeListingLocked(caller schema.Account, p schema.ListPayload) {
	l := &schema.Listing{
		Initialized:    true,
		NFTContract:    p.NFTContract,
		Owner:          caller,
		TokenID:        p.TokenID,
		ListingType:    p.ListingType,
		ListedQuantity: p.ListQuantity,
		Price:          new(big.Int).Set(p.Price),
		PaymentToken:   p.PaymentToken,
		StartTime:      p.StartTime,
		EndTime:        p.EndTime,
	}
	e.listings[l.Key()] = l
	e.persistListingLocked(*l)
	e.events.Emit(EventListed, *l, nil)
	log.Debug("token listed", "key", l.Key(), "price", l.Price.String(), "qty", l.ListedQuantity)
}

// persistListingLocked requires e.mu held.
func (e *Engine) persistListingLocked(l schema.Listing) {
	if err := e.wdb.SaveListing(l); err != nil {
		log.Error("persist listing failed", "key", l.Key(), "err", err)
	}
	e.cache.InvalidateListing(l.Key())
}

// Delist clears the caller's listing. Deliberately exempt from pause so
// sellers can always withdraw; the cleared record stays readable so callers
// can tell a delisted token from one never listed.
func (e *Engine) Delist(caller, nftContract schema.Account, tokenID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := schema.ListingKey(nftContract, caller, tokenID)
	if e.settling[key] {
		return ErrReentrantCall
	}
	l, ok := e.listings[key]
	if !ok || !l.Initialized {
		return ErrListingNotFound
	}
	l.Initialized = false
	l.ListedQuantity = 0
	l.ListingType = schema.ListingNone
	l.Price = new(big.Int)
	l.ApprovedBidder = schema.Account{}
	l.ApprovedBidAmount = nil
	l.ApprovedBidQuantity = 0
	gone := l.Clone()
	e.persistListingLocked(gone)
	e.events.Emit(EventDelisted, gone, nil)
	log.Debug("token delisted", "key", key)
	return nil
}

// UpdateApprovedBidder records the single live bid on an auction listing.
// Listing owner only; a later call replaces the previous bid.
func (e *Engine) UpdateApprovedBidder(caller, nftContract schema.Account, tokenID uint64, bidder schema.Account, bidAmount *big.Int, bidQuantity uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.paused {
		return ErrMarketPaused
	}
	key := schema.ListingKey(nftContract, caller, tokenID)
	if e.settling[key] {
		return ErrReentrantCall
	}
	l, ok := e.listings[key]
	if !ok || !l.Initialized {
		return ErrListingNotFound
	}
	if l.ListingType != schema.ListingAuction {
		return ErrInvalidListingType
	}
	if bidder == (schema.Account{}) || e.bannedLocked(bidder, nftContract, tokenID) {
		return ErrBanned
	}
	if bidAmount == nil || bidAmount.Sign() <= 0 || bidQuantity == 0 {
		return ErrZeroPriceOrQuantity
	}
	if bidQuantity > l.ListedQuantity {
		return ErrQuantityExceedsListing
	}
	l.ApprovedBidder = bidder
	l.ApprovedBidAmount = new(big.Int).Set(bidAmount)
	l.ApprovedBidQuantity = bidQuantity
	e.persistListingLocked(*l)
	log.Debug("approved bidder updated", "key", key, "bidder", bidder.Hex(), "amount", bidAmount.String())
	return nil
}

// GetListingDetails returns a copy of the listing record. A delisted or
// sold-out token still has a record with Initialized false; only a token
// never listed is not found.
func (e *Engine) GetListingDetails(nftContract, owner schema.Account, tokenID uint64) (schema.Listing, error) {
	key := schema.ListingKey(nftContract, owner, tokenID)
	if l, ok := e.cache.GetListing(key); ok {
		return l, nil
	}
	e.mu.Lock()
	l, ok := e.listings[key]
	if !ok {
		e.mu.Unlock()
		return schema.Listing{}, ErrListingNotFound
	}
	cp := l.Clone()
	e.mu.Unlock()

	e.cache.SetListing(cp)
	return cp, nil
}

// Buy settles a purchase against a live listing. value is the attached
// native amount; it is ignored for token-priced listings and any excess
// over the total is kept, not refunded.
func (e *Engine) Buy(caller schema.Account, p schema.BuyPayload, value *big.Int) (*schema.Sale, error) {
	if value == nil {
		value = new(big.Int)
	}
	key := schema.ListingKey(p.NFTContract, p.FromAddress, p.TokenID)

	e.mu.Lock()
	if e.paused {
		e.mu.Unlock()
		return nil, ErrMarketPaused
	}
	l, ok := e.listings[key]
	if !ok || !l.Initialized {
		e.mu.Unlock()
		return nil, ErrListingNotFound
	}
	if e.bannedLocked(caller, p.NFTContract, p.TokenID) || e.bannedLocked(p.FromAddress, p.NFTContract, p.TokenID) {
		e.mu.Unlock()
		return nil, ErrBanned
	}
	if p.Quantity == 0 {
		e.mu.Unlock()
		return nil, ErrZeroPriceOrQuantity
	}
	if p.Quantity > l.ListedQuantity {
		e.mu.Unlock()
		return nil, ErrQuantityExceedsListing
	}
	now := e.now().Unix()
	if l.StartTime != 0 && now < l.StartTime {
		e.mu.Unlock()
		return nil, ErrListingNotStarted
	}
	if l.EndTime != 0 && now >= l.EndTime {
		e.mu.Unlock()
		return nil, ErrListingExpired
	}

	unit := l.Price
	if l.ListingType == schema.ListingAuction {
		if caller != l.ApprovedBidder {
			e.mu.Unlock()
			return nil, ErrNotApprovedBidder
		}
		if p.Quantity != l.ApprovedBidQuantity {
			e.mu.Unlock()
			return nil, ErrBidQuantityMismatch
		}
		unit = l.ApprovedBidAmount
	}
	total := new(big.Int).Mul(unit, new(big.Int).SetUint64(p.Quantity))

	var payment PaymentLedger
	if l.PaymentToken == schema.NativeToken {
		if value.Cmp(total) < 0 {
			e.mu.Unlock()
			return nil, ErrInsufficientValue
		}
		if e.native == nil || e.native.BalanceOf(caller).Cmp(value) < 0 {
			e.mu.Unlock()
			return nil, ErrBuyerInsufficientFunds
		}
	} else {
		payment = e.payments[l.PaymentToken]
		if payment == nil {
			e.mu.Unlock()
			return nil, ErrInvalidPaymentToken
		}
		if payment.BalanceOf(caller).Cmp(total) < 0 {
			e.mu.Unlock()
			return nil, ErrBuyerInsufficientFunds
		}
	}
	asset, ok := e.assets[p.NFTContract]
	if !ok {
		e.mu.Unlock()
		return nil, ErrAssetTransferFailed
	}
	if asset.BalanceOf(p.FromAddress, p.TokenID) < p.Quantity {
		e.mu.Unlock()
		return nil, ErrSellerInsufficientAsset
	}

	if e.settling[key] {
		e.mu.Unlock()
		return nil, ErrReentrantCall
	}
	e.settling[key] = true

	// Commit the listing mutation before any external call; the snapshot
	// restores it if settlement fails.
	snapshot := l.Clone()
	l.ListedQuantity -= p.Quantity
	l.ApprovedBidder = schema.Account{}
	l.ApprovedBidAmount = nil
	l.ApprovedBidQuantity = 0
	if l.ListedQuantity == 0 {
		l.Initialized = false
		l.ListingType = schema.ListingNone
	}
	committed := l.Clone()
	seller := snapshot.Owner
	paymentToken := snapshot.PaymentToken
	registry := e.registry
	commissionBps, commissionRecv := e.commissionBps, e.commissionRecv
	e.mu.Unlock()

	restore := func() {
		e.mu.Lock()
		back := snapshot.Clone()
		e.listings[key] = &back
		delete(e.settling, key)
		e.cache.InvalidateListing(key)
		e.mu.Unlock()
	}

	sale, err := e.settle(settleParams{
		key:            key,
		buyer:          caller,
		seller:         seller,
		asset:          asset,
		payment:        payment,
		paymentToken:   paymentToken,
		nftContract:    p.NFTContract,
		tokenID:        p.TokenID,
		quantity:       p.Quantity,
		unit:           unit,
		total:          total,
		value:          value,
		registry:       registry,
		commissionBps:  commissionBps,
		commissionRecv: commissionRecv,
	})
	if err != nil {
		restore()
		return nil, err
	}

	e.mu.Lock()
	delete(e.settling, key)
	e.persistListingLocked(committed)
	e.mu.Unlock()

	eventID := uuid.NewString()
	if err := e.wdb.InsertSale(eventID, *sale); err != nil {
		log.Error("persist sale failed", "key", key, "err", err)
	}
	e.events.EmitWithID(eventID, EventSold, committed, sale)
	observeSale(sale)
	log.Info("token sold", "key", key, "buyer", caller.Hex(), "total", total.String())
	return sale, nil
}

type settleParams struct {
	key            string
	buyer, seller  schema.Account
	asset          AssetLedger
	payment        PaymentLedger
	paymentToken   schema.Account
	nftContract    schema.Account
	tokenID        uint64
	quantity       uint64
	unit, total    *big.Int
	value          *big.Int
	registry       *Registry
	commissionBps  uint32
	commissionRecv schema.Account
}

// settle runs the external legs: capture payment into the engine, move the
// asset through the seller's proxy, then pay out. Capture-first makes the
// payout legs infallible, so a failure anywhere refunds the buyer in full.
func (e *Engine) settle(sp settleParams) (*schema.Sale, error) {
	native := sp.paymentToken == schema.NativeToken

	// capture
	if native {
		if err := e.native.Transfer(sp.buyer, e.id, sp.value); err != nil {
			return nil, ErrBuyerInsufficientFunds
		}
	} else {
		if err := sp.payment.TransferFrom(e.id, sp.buyer, e.id, sp.total); err != nil {
			return nil, ErrPaymentTransferFailed
		}
	}
	refund := func() {
		var err error
		if native {
			err = e.native.Transfer(e.id, sp.buyer, sp.value)
		} else {
			err = sp.payment.Transfer(e.id, sp.buyer, sp.total)
		}
		if err != nil {
			log.Error("refund after failed settlement failed", "key", sp.key, "err", err)
		}
	}

	// asset leg through the seller's proxy
	proxy, ok := sp.registry.ProxyOf(sp.seller)
	if !ok {
		refund()
		return nil, ErrAssetTransferFailed
	}
	xfer := schema.AssetTransfer{From: sp.seller, To: sp.buyer, TokenID: sp.tokenID, Quantity: sp.quantity}
	if err := proxy.Execute(e.id, sp.asset, schema.CallDirect, xfer); err != nil {
		refund()
		return nil, ErrAssetTransferFailed
	}

	// breakdown, integer-truncated
	commission := new(big.Int).Mul(sp.total, big.NewInt(int64(sp.commissionBps)))
	commission.Div(commission, big.NewInt(schema.DenominatorBps))

	royalty := e.royalty.Resolve(sp.asset, sp.tokenID, sp.total)
	if royalty.Receiver == sp.seller || royalty.Receiver == (schema.Account{}) {
		royalty = schema.RoyaltyInfo{Amount: new(big.Int)}
	}

	proceeds := new(big.Int).Sub(sp.total, commission)
	proceeds.Sub(proceeds, royalty.Amount)

	// payouts from the engine's captured balance
	payOut := func(to schema.Account, amount *big.Int) {
		if amount.Sign() <= 0 || to == (schema.Account{}) {
			return
		}
		var err error
		if native {
			err = e.native.Transfer(e.id, to, amount)
		} else {
			err = sp.payment.Transfer(e.id, to, amount)
		}
		if err != nil {
			log.Error("settlement payout failed", "key", sp.key, "to", to.Hex(), "err", err)
		}
	}
	payOut(sp.commissionRecv, commission)
	payOut(royalty.Receiver, royalty.Amount)
	payOut(sp.seller, proceeds)

	return &schema.Sale{
		NFTContract:  sp.nftContract,
		TokenID:      sp.tokenID,
		Quantity:     sp.quantity,
		Buyer:        sp.buyer,
		Seller:       sp.seller,
		PaymentToken: sp.paymentToken,
		Price:        new(big.Int).Set(sp.unit),
		Total:        sp.total,
		Commission:   commission,
		Royalty:      royalty.Amount,
		RoyaltyRecv:  royalty.Receiver,
		SoldAt:       e.now().Unix(),
	}, nil
}

// HandleMetaTx dispatches a relayed call envelope. The signer is honored
// as caller only when the forwarding relay is the trusted one.
func (e *Engine) HandleMetaTx(forwarder, signer schema.Account, data []byte) error {
	e.mu.Lock()
	trusted := e.forwarder == forwarder && e.forwarder != (schema.Account{})
	e.mu.Unlock()

	caller := forwarder
	if trusted {
		caller = signer
	}

	method := gjson.GetBytes(data, "method").String()
	params := gjson.GetBytes(data, "params")
	switch method {
	case "list":
		p, err := parseListPayload(params)
		if err != nil {
			return err
		}
		return e.List(caller, p)
	case "delist":
		return e.Delist(caller, schema.HexToAddress(params.Get("nftContract").String()), params.Get("tokenId").Uint())
	case "buy":
		p := schema.BuyPayload{
			TokenID:     params.Get("tokenId").Uint(),
			NFTContract: schema.HexToAddress(params.Get("nftContract").String()),
			Quantity:    params.Get("quantity").Uint(),
			FromAddress: schema.HexToAddress(params.Get("fromAddress").String()),
		}
		value := new(big.Int)
		if v := params.Get("value").String(); v != "" {
			if _, ok := value.SetString(v, 10); !ok {
				return ErrBadRequest
			}
		}
		_, err := e.Buy(caller, p, value)
		return err
	case "updateApprovedBidder":
		amount, ok := new(big.Int).SetString(params.Get("bidAmount").String(), 10)
		if !ok {
			return ErrBadRequest
		}
		return e.UpdateApprovedBidder(
			caller,
			schema.HexToAddress(params.Get("nftContract").String()),
			params.Get("tokenId").Uint(),
			schema.HexToAddress(params.Get("bidder").String()),
			amount,
			params.Get("bidQuantity").Uint(),
		)
	default:
		return schema.ErrNotImplement
	}
}

func parseListPayload(params gjson.Result) (schema.ListPayload, error) {
	price, ok := new(big.Int).SetString(params.Get("price").String(), 10)
	if !ok {
		return schema.ListPayload{}, ErrBadRequest
	}
	return schema.ListPayload{
		TokenID:      params.Get("tokenId").Uint(),
		NFTContract:  schema.HexToAddress(params.Get("nftContract").String()),
		Price:        price,
		PaymentToken: schema.HexToAddress(params.Get("paymentToken").String()),
		ListQuantity: params.Get("listQuantity").Uint(),
		ListingType:  schema.ListingType(params.Get("listingType").Uint()),
		StartTime:    params.Get("startTime").Int(),
		EndTime:      params.Get("endTime").Int(),
	}, nil
}
