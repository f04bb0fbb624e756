package cxmarket

import (
	"encoding/json"
	"math/big"
	"path"

	"github.com/cryptoxpress/cxmarket/schema"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const sqliteName = "market.sqlite"

// Wdb is the relational write-through store: listings, sales, nonces, bans
// and the payment token allow list. The engine treats a nil *Wdb as
// memory-only, so every method is nil-safe.
type Wdb struct {
	Db *gorm.DB
}

func NewWdb(dsn string) *Wdb {
	logLevel := logger.Error
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:          logger.Default.LogMode(logLevel),
		CreateBatchSize: 200,
	})
	if err != nil {
		panic(err)
	}
	log.Info("connect db success")
	return &Wdb{Db: db}
}

func NewSqliteDb(dbDir string) *Wdb {
	db, err := gorm.Open(sqlite.Open(path.Join(dbDir, sqliteName)), &gorm.Config{
		Logger:          logger.Default.LogMode(logger.Error),
		CreateBatchSize: 200,
	})
	if err != nil {
		panic(err)
	}
	log.Info("connect sqlite db success")
	return &Wdb{Db: db}
}

func (w *Wdb) Migrate() error {
	if w == nil {
		return nil
	}
	return w.Db.AutoMigrate(&schema.ListingRow{}, &schema.SaleRow{}, &schema.NonceRow{}, &schema.BanRow{}, &schema.PaymentTokenRow{})
}

func (w *Wdb) SaveListing(l schema.Listing) error {
	if w == nil {
		return nil
	}
	row := listingToRow(l)
	return w.Db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "nft_contract"}, {Name: "owner"}, {Name: "token_id"}},
		UpdateAll: true,
	}).Create(&row).Error
}

func (w *Wdb) GetListings() ([]schema.Listing, error) {
	if w == nil {
		return nil, nil
	}
	rows := make([]schema.ListingRow, 0)
	if err := w.Db.Where("initialized = ?", true).Find(&rows).Error; err != nil {
		return nil, err
	}
	listings := make([]schema.Listing, 0, len(rows))
	for _, row := range rows {
		listings = append(listings, rowToListing(row))
	}
	return listings, nil
}

func (w *Wdb) InsertSale(eventID string, sale schema.Sale) error {
	if w == nil {
		return nil
	}
	breakdown, err := json.Marshal(sale)
	if err != nil {
		return err
	}
	row := schema.SaleRow{
		EventID:      eventID,
		NFTContract:  sale.NFTContract.Hex(),
		TokenID:      sale.TokenID,
		Buyer:        sale.Buyer.Hex(),
		Seller:       sale.Seller.Hex(),
		PaymentToken: sale.PaymentToken.Hex(),
		Total:        sale.Total.String(),
		Commission:   sale.Commission.String(),
		Royalty:      sale.Royalty.String(),
		Breakdown:    breakdown,
	}
	return w.Db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

func (w *Wdb) GetSales(limit int) ([]schema.SaleRow, error) {
	if w == nil {
		return nil, nil
	}
	rows := make([]schema.SaleRow, 0, limit)
	err := w.Db.Order("id desc").Limit(limit).Find(&rows).Error
	return rows, err
}

func (w *Wdb) CountSales() (int64, error) {
	if w == nil {
		return 0, nil
	}
	var total int64
	err := w.Db.Model(&schema.SaleRow{}).Count(&total).Error
	return total, err
}

func (w *Wdb) GetNonce(signer schema.Account) (uint64, error) {
	if w == nil {
		return 0, nil
	}
	row := schema.NonceRow{}
	err := w.Db.Where("signer = ?", signer.Hex()).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return 0, nil
	}
	return row.Nonce, err
}

func (w *Wdb) SaveNonce(signer schema.Account, nonce uint64) error {
	if w == nil {
		return nil
	}
	row := schema.NonceRow{Signer: signer.Hex(), Nonce: nonce}
	return w.Db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "signer"}},
		UpdateAll: true,
	}).Create(&row).Error
}

func (w *Wdb) SaveBan(kind, subject string, tokenID uint64, banned bool) error {
	if w == nil {
		return nil
	}
	row := schema.BanRow{Kind: kind, Subject: subject, TokenID: tokenID, Banned: banned}
	return w.Db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kind"}, {Name: "subject"}, {Name: "token_id"}},
		UpdateAll: true,
	}).Create(&row).Error
}

func (w *Wdb) GetBans() ([]schema.BanRow, error) {
	if w == nil {
		return nil, nil
	}
	rows := make([]schema.BanRow, 0)
	err := w.Db.Where("banned = ?", true).Find(&rows).Error
	return rows, err
}

func (w *Wdb) SavePaymentToken(token schema.Account, allowed bool) error {
	if w == nil {
		return nil
	}
	row := schema.PaymentTokenRow{Token: token.Hex(), Allowed: allowed}
	return w.Db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		UpdateAll: true,
	}).Create(&row).Error
}

func listingToRow(l schema.Listing) schema.ListingRow {
	row := schema.ListingRow{
		NFTContract:  l.NFTContract.Hex(),
		Owner:        l.Owner.Hex(),
		TokenID:      l.TokenID,
		ListingType:  uint8(l.ListingType),
		Quantity:     l.ListedQuantity,
		PaymentToken: l.PaymentToken.Hex(),
		StartTime:    l.StartTime,
		EndTime:      l.EndTime,
		Bidder:       l.ApprovedBidder.Hex(),
		BidQuantity:  l.ApprovedBidQuantity,
		Initialized:  l.Initialized,
	}
	if l.Price != nil {
		row.Price = l.Price.String()
	}
	if l.ApprovedBidAmount != nil {
		row.BidAmount = l.ApprovedBidAmount.String()
	}
	return row
}

func rowToListing(row schema.ListingRow) schema.Listing {
	l := schema.Listing{
		Initialized:         row.Initialized,
		NFTContract:         schema.HexToAddress(row.NFTContract),
		Owner:               schema.HexToAddress(row.Owner),
		TokenID:             row.TokenID,
		ListingType:         schema.ListingType(row.ListingType),
		ListedQuantity:      row.Quantity,
		PaymentToken:        schema.HexToAddress(row.PaymentToken),
		StartTime:           row.StartTime,
		EndTime:             row.EndTime,
		ApprovedBidder:      schema.HexToAddress(row.Bidder),
		ApprovedBidQuantity: row.BidQuantity,
	}
	if row.Price != "" {
		l.Price, _ = new(big.Int).SetString(row.Price, 10)
	}
	if row.BidAmount != "" {
		l.ApprovedBidAmount, _ = new(big.Int).SetString(row.BidAmount, 10)
	}
	return l
}
