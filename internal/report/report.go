// Package report persists a finished backtest run's account state and
// fill history to Postgres via gorm, so results survive past the
// process that produced them.
package report

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"main/internal/exchange"
	"main/internal/schema"
	"main/pkg/conn"
)

// Run is one completed backtest's summary row.
type Run struct {
	ID           uuid.UUID `gorm:"primaryKey"`
	SymbolID     uint32    `gorm:"not null"`
	AssetKind    uint8     `gorm:"not null"`
	StartedAt    time.Time `gorm:"type:timestamptz;not null"`
	FinishedAt   time.Time `gorm:"type:timestamptz"`
	FinalQty     int64
	FinalBalance float64
	RealizedPnL  float64
	Fees         float64
	CreatedAt    time.Time `gorm:"type:timestamptz"`
}

// TableName pins the gorm table name so it doesn't pluralize off the
// Go type name.
func (Run) TableName() string { return "backtest_runs" }

// FillRecord is one execution belonging to a Run.
type FillRecord struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	RunID      uuid.UUID `gorm:"index;not null"`
	OrderID    uint64    `gorm:"not null"`
	Side       uint32    `gorm:"not null"`
	PriceTicks int64     `gorm:"not null"`
	Qty        int64     `gorm:"not null"`
	Fee        float64
	Maker      bool
	ExchTsNano int64 `gorm:"not null"`
}

func (FillRecord) TableName() string { return "backtest_fills" }

// Store persists run summaries and their fills.
type Store struct {
	db *gorm.DB
}

// NewStore opens a Postgres connection and ensures the report tables
// exist.
func NewStore(option conn.Option) (*Store, error) {
	client, err := conn.New(option)
	if err != nil {
		return nil, err
	}
	return newStore(client.DB())
}

func newStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Run{}, &FillRecord{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// RunSummary is everything a finished run needs recorded.
type RunSummary struct {
	ID           uuid.UUID
	SymbolID     uint32
	AssetKind    schema.AssetKind
	StartedAt    time.Time
	FinishedAt   time.Time
	FinalQty     schema.Quantity
	FinalBalance float64
	RealizedPnL  float64
	Fees         float64
	Fills        []exchange.Fill
}

// SaveRun writes a run summary and its fills in a single transaction.
func (s *Store) SaveRun(summary RunSummary) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		run := Run{
			ID:           summary.ID,
			SymbolID:     summary.SymbolID,
			AssetKind:    uint8(summary.AssetKind),
			StartedAt:    summary.StartedAt,
			FinishedAt:   summary.FinishedAt,
			FinalQty:     int64(summary.FinalQty),
			FinalBalance: summary.FinalBalance,
			RealizedPnL:  summary.RealizedPnL,
			Fees:         summary.Fees,
		}
		if err := tx.Create(&run).Error; err != nil {
			return err
		}
		if len(summary.Fills) == 0 {
			return nil
		}
		records := make([]FillRecord, len(summary.Fills))
		for i, f := range summary.Fills {
			records[i] = FillRecord{
				RunID:      summary.ID,
				OrderID:    uint64(f.OrderID),
				Side:       uint32(f.Side),
				PriceTicks: int64(f.PriceTicks),
				Qty:        int64(f.Qty),
				Fee:        f.Fee,
				Maker:      f.Maker,
				ExchTsNano: f.ExchTsNano,
			}
		}
		return tx.CreateInBatches(records, 500).Error
	})
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
