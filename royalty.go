package cxmarket

import (
	"math/big"

	"github.com/cryptoxpress/cxmarket/schema"
)

// RoyaltySource is the optional ledger-side royalty query, mirroring the
// receiver-plus-amount convention. Ledgers that never pay royalties simply
// don't implement it.
type RoyaltySource interface {
	RoyaltyInfo(tokenID uint64, salePrice *big.Int) (schema.Account, *big.Int, error)
}

// RoyaltyAdapter resolves the royalty leg of a sale. A contract that does
// not expose royalties, errors out, or reports something unpayable yields a
// zero royalty; settlement never fails on this leg.
type RoyaltyAdapter struct{}

func (RoyaltyAdapter) Resolve(ledger interface{}, tokenID uint64, salePrice *big.Int) schema.RoyaltyInfo {
	src, ok := ledger.(RoyaltySource)
	if !ok {
		return schema.RoyaltyInfo{Amount: new(big.Int)}
	}
	receiver, amount, err := safeRoyaltyInfo(src, tokenID, salePrice)
	if err != nil {
		log.Debug("royalty lookup failed, degrading to zero", "tokenId", tokenID, "err", err)
		return schema.RoyaltyInfo{Amount: new(big.Int)}
	}
	if amount == nil || amount.Sign() <= 0 {
		return schema.RoyaltyInfo{Amount: new(big.Int)}
	}
	limit := new(big.Int).Mul(salePrice, big.NewInt(schema.MaxRoyaltyBps))
	limit.Div(limit, big.NewInt(schema.DenominatorBps))
	if amount.Cmp(limit) > 0 {
		return schema.RoyaltyInfo{Receiver: receiver, Amount: limit}
	}
	return schema.RoyaltyInfo{Receiver: receiver, Amount: new(big.Int).Set(amount)}
}

func safeRoyaltyInfo(src RoyaltySource, tokenID uint64, salePrice *big.Int) (receiver schema.Account, amount *big.Int, err error) {
	defer func() {
		if r := recover(); r != nil {
			receiver, amount, err = schema.Account{}, nil, ErrRoyaltyLookup
		}
	}()
	return src.RoyaltyInfo(tokenID, salePrice)
}
