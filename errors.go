package cxmarket

import (
	"errors"
	"fmt"
)

// Four umbrella categories; every concrete condition wraps one of them so
// callers can errors.Is either the exact condition or the category.
var (
	ErrAuthorization = errors.New("authorization_error")
	ErrListing       = errors.New("listing_error")
	ErrRelay         = errors.New("relay_error")
	ErrBadRequest    = errors.New("bad_request")
)

// registry / proxy
var (
	ErrAlreadyGrantedOrPending = fmt.Errorf("%w: contract_already_allowed_or_pending", ErrAuthorization)
	ErrGrantNotPending         = fmt.Errorf("%w: contract_not_pending_or_already_approved", ErrAuthorization)
	ErrNotAuthorized           = fmt.Errorf("%w: contract_not_authorized", ErrAuthorization)
	ErrGrantDelayNotElapsed    = fmt.Errorf("%w: grant_delay_not_elapsed", ErrAuthorization)
	ErrInitialGrantDone        = fmt.Errorf("%w: initial_authentication_already_set", ErrAuthorization)
	ErrNotGovernor             = fmt.Errorf("%w: caller_not_registry_governor", ErrAuthorization)
	ErrProxyExists             = fmt.Errorf("%w: user_already_has_proxy", ErrAuthorization)
	ErrProxyNotFound           = fmt.Errorf("%w: user_has_no_proxy", ErrAuthorization)
	ErrProxyInitialized        = fmt.Errorf("%w: proxy_already_initialized", ErrAuthorization)
	ErrNotProxyOwner           = fmt.Errorf("%w: caller_not_proxy_owner", ErrAuthorization)
	ErrProxyAccessDenied       = fmt.Errorf("%w: caller_not_proxy_owner_or_authorized_delegate", ErrAuthorization)
	ErrCallKindUnsupported     = fmt.Errorf("%w: delegate_call_kind_unsupported", ErrAuthorization)
	ErrNotMarketOwner          = fmt.Errorf("%w: caller_not_market_owner", ErrAuthorization)
)

// listing / trade
var (
	ErrZeroPriceOrQuantity     = fmt.Errorf("%w: price_and_quantity_must_be_positive", ErrListing)
	ErrInvalidPaymentToken     = fmt.Errorf("%w: invalid_payment_token", ErrListing)
	ErrBanned                  = fmt.Errorf("%w: token_contract_or_account_banned", ErrListing)
	ErrInvalidListingType      = fmt.Errorf("%w: invalid_listing_type", ErrListing)
	ErrSellerInsufficientAsset = fmt.Errorf("%w: seller_insufficient_asset_balance", ErrListing)
	ErrListingNotFound         = fmt.Errorf("%w: listing_not_found", ErrListing)
	ErrListingExpired          = fmt.Errorf("%w: listing_expired", ErrListing)
	ErrListingNotStarted       = fmt.Errorf("%w: listing_not_started", ErrListing)
	ErrBuyerInsufficientFunds  = fmt.Errorf("%w: buyer_insufficient_payment_balance", ErrListing)
	ErrInsufficientValue       = fmt.Errorf("%w: insufficient_funds_sent", ErrListing)
	ErrNotApprovedBidder       = fmt.Errorf("%w: caller_not_approved_bidder", ErrListing)
	ErrBidQuantityMismatch     = fmt.Errorf("%w: quantity_not_approved_bid_quantity", ErrListing)
	ErrAssetTransferFailed     = fmt.Errorf("%w: asset_transfer_failed", ErrListing)
	ErrPaymentTransferFailed   = fmt.Errorf("%w: payment_transfer_failed", ErrListing)
	ErrMarketPaused            = fmt.Errorf("%w: market_paused", ErrListing)
	ErrReentrantCall           = fmt.Errorf("%w: listing_settlement_in_flight", ErrListing)
	ErrNotListingOwner         = fmt.Errorf("%w: caller_not_listing_owner", ErrListing)
	ErrRoyaltyLookup           = fmt.Errorf("%w: royalty_lookup_failed", ErrListing)
	ErrQuantityExceedsListing  = fmt.Errorf("%w: quantity_exceeds_listed_quantity", ErrListing)
)

// relay
var (
	ErrInvalidSignature = fmt.Errorf("%w: invalid_signature", ErrRelay)
	ErrNonceMismatch    = fmt.Errorf("%w: nonce_mismatch", ErrRelay)
	ErrUnknownTarget    = fmt.Errorf("%w: unknown_forward_target", ErrRelay)
)
