// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"nifty-signals/internal/models"
)

// DataStore defines the interface for data persistence. All timestamps are
// stored in UTC; trading dates are exchange-local calendar days.
type DataStore interface {
	// Price snapshots
	SavePriceSnapshot(ctx context.Context, snap *models.PriceSnapshot) error
	LatestPrice(ctx context.Context, underlying models.Underlying) (*models.PriceSnapshot, error)
	PricesBetween(ctx context.Context, underlying models.Underlying, from, to time.Time) ([]models.PriceSnapshot, error)

	// Option chain
	SaveChainRows(ctx context.Context, rows []models.OptionChainRow) (int, error)
	OITotalsBetween(ctx context.Context, underlying models.Underlying, from, to time.Time) ([]models.OITotals, error)
	TopOIMovers(ctx context.Context, underlying models.Underlying, limit int) (*models.OIMovers, error)
	LatestStrikeQuote(ctx context.Context, underlying models.Underlying, strike float64, expiry, since time.Time) (*models.OptionChainRow, error)

	// Expiry settings
	GetExpirySetting(ctx context.Context, underlying models.Underlying) (*models.ExpirySetting, error)
	SaveExpirySetting(ctx context.Context, setting *models.ExpirySetting) error

	// Index constituents
	UpsertIndexStocks(ctx context.Context, stocks []models.IndexStock) error
	GetIndexStocks(ctx context.Context, tradingDate time.Time) ([]models.IndexStock, error)

	// Strategy
	SaveStrategyEntry(ctx context.Context, entry *models.StrategyEntry) (int64, error)
	SaveEntryWithExecution(ctx context.Context, entry *models.StrategyEntry, exec *models.StrategyExecution) error
	SaveLtpTick(ctx context.Context, tick *models.StrategyLtpTick) error
	LtpTicks(ctx context.Context, entryID int64) ([]models.StrategyLtpTick, error)
	SaveExecution(ctx context.Context, exec *models.StrategyExecution) (int64, error)
	UpdateExecution(ctx context.Context, exec *models.StrategyExecution) error
	ActiveExecution(ctx context.Context, underlying models.Underlying, tradingDate time.Time) (*models.StrategyExecution, error)
	ExecutionsForDay(ctx context.Context, underlying models.Underlying, tradingDate time.Time) ([]models.StrategyExecution, error)
	TriggeredCountForDay(ctx context.Context, underlying models.Underlying, tradingDate time.Time) (int, error)

	// Lifecycle
	Close() error
}

// tradingDateKey formats a trading date as the canonical DATE column value.
func tradingDateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
