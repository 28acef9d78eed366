package gormstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"alphadesk/internal/portfolio"
	"alphadesk/internal/store/model"
	"alphadesk/internal/types"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// Store persists the ledger document in SQLite via Gorm. Every mutation
// runs in a single transaction, so a reader after a crash sees either the
// pre- or post-mutation state.
type Store struct {
	db *gorm.DB
}

// New opens (or creates) the database at path and migrates the schema.
func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: db path cannot be empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	// The DSN uses modernc.org/sqlite pragma syntax and the build runs with
	// CGO_ENABLED=0, so route the dialector to the pure-Go "sqlite" driver.
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	models := []interface{}{
		&model.PortfolioModel{},
		&model.PositionModel{},
		&model.TradeRecordModel{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: a little read parallelism, low lock contention.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Load reconstructs the ledger document. A database with no portfolio row
// yields (nil, nil): the ledger seeds a fresh account in that case.
func (s *Store) Load(ctx context.Context) (*portfolio.State, error) {
	var row model.PortfolioModel
	err := s.db.WithContext(ctx).First(&row, "id = ?", 1).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading portfolio row: %w", err)
	}

	cash, err := decimal.NewFromString(row.CashBalance)
	if err != nil {
		return nil, fmt.Errorf("corrupt cash balance %q: %w", row.CashBalance, err)
	}
	state := &portfolio.State{
		CashBalance: cash,
		Holdings:    make(map[string]portfolio.Position),
		LastUpdated: time.Unix(0, row.LastUpdated),
	}

	var positions []model.PositionModel
	if err := s.db.WithContext(ctx).Find(&positions).Error; err != nil {
		return nil, fmt.Errorf("loading positions: %w", err)
	}
	for _, p := range positions {
		avg, err := decimal.NewFromString(p.AvgPrice)
		if err != nil {
			return nil, fmt.Errorf("corrupt avg price for %s: %w", p.Ticker, err)
		}
		state.Holdings[p.Ticker] = portfolio.Position{Ticker: p.Ticker, Quantity: p.Quantity, AvgPrice: avg}
	}

	var trades []model.TradeRecordModel
	if err := s.db.WithContext(ctx).Order("id asc").Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("loading trade history: %w", err)
	}
	for _, t := range trades {
		rec, err := tradeFromModel(t)
		if err != nil {
			return nil, err
		}
		state.TradeHistory = append(state.TradeHistory, rec)
	}
	return state, nil
}

// Save writes the current document and appends the new trade records in one
// transaction. Existing trade rows are never touched.
func (s *Store) Save(ctx context.Context, state *portfolio.State, appended []portfolio.TradeRecord) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := model.PortfolioModel{
			ID:          1,
			CashBalance: state.CashBalance.String(),
			LastUpdated: state.LastUpdated.UnixNano(),
		}
		if err := tx.Save(&row).Error; err != nil {
			return fmt.Errorf("saving portfolio row: %w", err)
		}
		if err := tx.Where("1 = 1").Delete(&model.PositionModel{}).Error; err != nil {
			return fmt.Errorf("clearing positions: %w", err)
		}
		for _, pos := range state.Holdings {
			p := model.PositionModel{Ticker: pos.Ticker, Quantity: pos.Quantity, AvgPrice: pos.AvgPrice.String()}
			if err := tx.Create(&p).Error; err != nil {
				return fmt.Errorf("saving position %s: %w", pos.Ticker, err)
			}
		}
		for _, rec := range appended {
			t := tradeToModel(rec)
			if err := tx.Create(&t).Error; err != nil {
				return fmt.Errorf("appending trade record: %w", err)
			}
		}
		return nil
	})
}

func tradeToModel(rec portfolio.TradeRecord) model.TradeRecordModel {
	out := model.TradeRecordModel{
		Timestamp: rec.Timestamp.UnixNano(),
		Ticker:    rec.Ticker,
		Action:    string(rec.Action),
		Quantity:  rec.Quantity,
		Price:     rec.Price.String(),
		TotalCost: rec.TotalCost.String(),
	}
	if rec.RealizedPnL != nil {
		pnl := rec.RealizedPnL.String()
		out.RealizedPnL = &pnl
	}
	return out
}

func tradeFromModel(t model.TradeRecordModel) (portfolio.TradeRecord, error) {
	price, err := decimal.NewFromString(t.Price)
	if err != nil {
		return portfolio.TradeRecord{}, fmt.Errorf("corrupt trade price %q: %w", t.Price, err)
	}
	total, err := decimal.NewFromString(t.TotalCost)
	if err != nil {
		return portfolio.TradeRecord{}, fmt.Errorf("corrupt trade total %q: %w", t.TotalCost, err)
	}
	rec := portfolio.TradeRecord{
		Timestamp: time.Unix(0, t.Timestamp),
		Ticker:    t.Ticker,
		Action:    types.Action(t.Action),
		Quantity:  t.Quantity,
		Price:     price,
		TotalCost: total,
	}
	if t.RealizedPnL != nil {
		pnl, err := decimal.NewFromString(*t.RealizedPnL)
		if err != nil {
			return portfolio.TradeRecord{}, fmt.Errorf("corrupt realized pnl %q: %w", *t.RealizedPnL, err)
		}
		rec.RealizedPnL = &pnl
	}
	return rec, nil
}
