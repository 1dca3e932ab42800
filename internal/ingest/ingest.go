// Package ingest is the validation boundary for market data entering the
// snapshot store. Everything downstream trusts what this package admits.
package ingest

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	apperrors "nifty-signals/internal/errors"
	"nifty-signals/internal/logging"
	"nifty-signals/internal/models"
	"nifty-signals/pkg/marketclock"
)

// SnapshotWriter is the slice of the store the ingestor writes through.
type SnapshotWriter interface {
	SavePriceSnapshot(ctx context.Context, snap *models.PriceSnapshot) error
	SaveChainRows(ctx context.Context, rows []models.OptionChainRow) (int, error)
	UpsertIndexStocks(ctx context.Context, stocks []models.IndexStock) error
	GetIndexStocks(ctx context.Context, tradingDate time.Time) ([]models.IndexStock, error)
	GetExpirySetting(ctx context.Context, underlying models.Underlying) (*models.ExpirySetting, error)
	SaveExpirySetting(ctx context.Context, setting *models.ExpirySetting) error
}

// StockQuote is a raw constituent quote before influence is computed.
type StockQuote struct {
	Symbol      string
	CompanyName string
	Sector      string
	Weightage   float64
	Price       float64
	Volume      int64
}

// Ingestor validates and persists incoming market data.
type Ingestor struct {
	store  SnapshotWriter
	clock  marketclock.Clock
	logger zerolog.Logger
}

// NewIngestor creates an Ingestor.
func NewIngestor(store SnapshotWriter, clock marketclock.Clock, logger zerolog.Logger) *Ingestor {
	if clock == nil {
		clock = marketclock.SystemClock{}
	}
	return &Ingestor{store: store, clock: clock, logger: logger}
}

// IngestPrice validates and appends one index price observation. A zero
// timestamp defaults to now.
func (i *Ingestor) IngestPrice(ctx context.Context, snap *models.PriceSnapshot) error {
	if !validUnderlying(snap.Underlying) {
		return apperrors.NewValidationError("underlying", snap.Underlying, "unknown underlying")
	}
	if snap.Price <= 0 {
		return apperrors.NewValidationError("price", snap.Price, "must be positive")
	}
	if snap.Timestamp.IsZero() {
		snap.Timestamp = i.clock.Now()
	}
	snap.Timestamp = snap.Timestamp.UTC()

	if err := i.store.SavePriceSnapshot(ctx, snap); err != nil {
		return err
	}
	logging.LogIngest(i.logger, "price", string(snap.Underlying), 1)
	return nil
}

// IngestChainRows validates a chain batch and persists it. Rows missing an
// expiry get the resolved expiry for their underlying. Rows with no
// meaningful OI on either side are dropped by the store; if every row is
// dropped the batch reports ErrNoMeaningfulOI.
func (i *Ingestor) IngestChainRows(ctx context.Context, rows []models.OptionChainRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	now := i.clock.Now()
	for idx := range rows {
		r := &rows[idx]
		if !validUnderlying(r.Underlying) {
			return 0, apperrors.NewValidationError("underlying", r.Underlying, "unknown underlying")
		}
		if r.Strike <= 0 {
			return 0, apperrors.NewValidationError("strike", r.Strike, "must be positive")
		}
		if r.Timestamp.IsZero() {
			r.Timestamp = now
		}
		r.Timestamp = r.Timestamp.UTC()
		if r.Expiry.IsZero() {
			r.Expiry = i.ResolveExpiry(ctx, r.Underlying)
		}
	}

	saved, err := i.store.SaveChainRows(ctx, rows)
	if err != nil {
		return saved, err
	}
	if saved == 0 {
		return 0, apperrors.ErrNoMeaningfulOI
	}

	logging.LogIngest(i.logger, "option_chain", string(rows[0].Underlying), saved)
	return saved, nil
}

// IngestStockQuotes turns raw constituent quotes into index-stock rows with
// influence computed against the day's opening price. The opening price is
// captured on the first quote of the trading day and kept stable afterward.
func (i *Ingestor) IngestStockQuotes(ctx context.Context, quotes []StockQuote) error {
	if len(quotes) == 0 {
		return nil
	}

	now := i.clock.Now()
	day := marketclock.TradingDate(now)

	existing, err := i.store.GetIndexStocks(ctx, day)
	if err != nil {
		return err
	}
	openings := make(map[string]float64, len(existing))
	for _, st := range existing {
		openings[st.Symbol] = st.OpeningPrice
	}

	stocks := make([]models.IndexStock, 0, len(quotes))
	for _, q := range quotes {
		if q.Symbol == "" {
			return apperrors.NewValidationError("symbol", q.Symbol, "must not be empty")
		}
		if q.Price <= 0 {
			return apperrors.NewValidationError("price", q.Price, "must be positive")
		}

		opening, ok := openings[q.Symbol]
		if !ok || opening <= 0 {
			opening = q.Price
		}

		st := models.IndexStock{
			Symbol:       q.Symbol,
			CompanyName:  q.CompanyName,
			Sector:       q.Sector,
			Weightage:    q.Weightage,
			CurrentPrice: q.Price,
			OpeningPrice: opening,
			PriceChange:  q.Price - opening,
			Volume:       q.Volume,
			TradingDate:  day,
			LastUpdated:  now.UTC(),
		}
		if opening > 0 {
			st.ChangePercent = st.PriceChange / opening * 100
		}
		st.Influence = st.ChangePercent * st.Weightage / 100
		stocks = append(stocks, st)
	}

	if err := i.store.UpsertIndexStocks(ctx, stocks); err != nil {
		return err
	}
	logging.LogIngest(i.logger, "index_stocks", string(models.UnderlyingNifty), len(stocks))
	return nil
}

// ResolveExpiry returns the configured expiry for an underlying, falling
// back to the next Thursday when no override is stored.
func (i *Ingestor) ResolveExpiry(ctx context.Context, underlying models.Underlying) time.Time {
	setting, err := i.store.GetExpirySetting(ctx, underlying)
	if err == nil && !setting.CurrentExpiry.IsZero() {
		return setting.CurrentExpiry
	}
	return marketclock.NextThursday(i.clock.Now())
}

// SetExpiry stores an expiry override after validating it.
func (i *Ingestor) SetExpiry(ctx context.Context, underlying models.Underlying, current, next time.Time) error {
	if !validUnderlying(underlying) {
		return apperrors.NewValidationError("underlying", underlying, "unknown underlying")
	}
	if current.IsZero() {
		return apperrors.NewValidationError("current_expiry", current, "must be set")
	}
	if !next.IsZero() && next.Before(current) {
		return apperrors.NewValidationError("next_expiry", next, "must not precede current expiry")
	}
	return i.store.SaveExpirySetting(ctx, &models.ExpirySetting{
		Underlying:    underlying,
		CurrentExpiry: current,
		NextExpiry:    next,
	})
}

func validUnderlying(u models.Underlying) bool {
	return u == models.UnderlyingNifty || u == models.UnderlyingBankNifty
}
