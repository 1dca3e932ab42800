package strategy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"nifty-signals/internal/config"
	apperrors "nifty-signals/internal/errors"
	"nifty-signals/internal/logging"
	"nifty-signals/internal/models"
	"nifty-signals/pkg/marketclock"
)

// StrategyStore is the slice of the store the lifecycle manager owns writes
// through. No other component writes strategy rows.
type StrategyStore interface {
	LatestPrice(ctx context.Context, underlying models.Underlying) (*models.PriceSnapshot, error)
	SaveEntryWithExecution(ctx context.Context, entry *models.StrategyEntry, exec *models.StrategyExecution) error
	SaveLtpTick(ctx context.Context, tick *models.StrategyLtpTick) error
	LtpTicks(ctx context.Context, entryID int64) ([]models.StrategyLtpTick, error)
	UpdateExecution(ctx context.Context, exec *models.StrategyExecution) error
	ActiveExecution(ctx context.Context, underlying models.Underlying, tradingDate time.Time) (*models.StrategyExecution, error)
	ExecutionsForDay(ctx context.Context, underlying models.Underlying, tradingDate time.Time) ([]models.StrategyExecution, error)
	TriggeredCountForDay(ctx context.Context, underlying models.Underlying, tradingDate time.Time) (int, error)
}

// Manager drives the per-tick position lifecycle. Ticks for the same
// underlying and trading day are serialized: the cap and single-active-trade
// invariants are check-then-act.
type Manager struct {
	store    StrategyStore
	engine   *BreakoutEngine
	sessions marketclock.Sessions
	params   config.StrategyConfig
	clock    marketclock.Clock
	logger   zerolog.Logger

	mu       sync.Mutex
	dayLocks map[string]*sync.Mutex
}

// NewManager creates a Manager.
func NewManager(store StrategyStore, engine *BreakoutEngine, sessions marketclock.Sessions, params config.StrategyConfig, clock marketclock.Clock, logger zerolog.Logger) *Manager {
	if clock == nil {
		clock = marketclock.SystemClock{}
	}
	return &Manager{
		store:    store,
		engine:   engine,
		sessions: sessions,
		params:   params,
		clock:    clock,
		logger:   logger,
		dayLocks: make(map[string]*sync.Mutex),
	}
}

// Tick runs one lifecycle evaluation for an underlying. It never panics and
// never leaves a partially written execution: any missing data aborts the
// tick with a structured result before mutations begin.
func (m *Manager) Tick(ctx context.Context, underlying models.Underlying) models.TickResult {
	now := m.clock.Now()

	if !m.sessions.InMarketHours(now) {
		return models.TickResult{Action: models.ActionMonitoring, Message: "Outside market hours"}
	}

	day := marketclock.TradingDate(now)
	lock := m.lockFor(underlying, day)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return models.TickResult{Action: models.ActionError, Message: "tick cancelled: " + err.Error()}
	}

	active, err := m.store.ActiveExecution(ctx, underlying, day)
	switch {
	case err == nil:
		return m.tickActive(ctx, active, now)
	case apperrors.Is(err, apperrors.ErrNoData):
		return m.tickIdle(ctx, underlying, day, now)
	default:
		m.logger.Error().Err(err).Str("underlying", string(underlying)).Msg("active execution query failed")
		return models.TickResult{Action: models.ActionError, Message: "store read failed: " + err.Error()}
	}
}

// tickActive monitors or closes the open position.
func (m *Manager) tickActive(ctx context.Context, exec *models.StrategyExecution, now time.Time) models.TickResult {
	price, err := m.store.LatestPrice(ctx, exec.Underlying)
	if err != nil {
		return models.TickResult{Action: models.ActionError, Message: "no current price", Execution: exec}
	}

	sellLtp, buyLtp, err := m.engine.LegQuotes(ctx, exec.Underlying, exec.SellStrike, exec.BuyStrike, exec.OptionType, now)
	if err != nil {
		return models.TickResult{Action: models.ActionError, Message: "no option quotes", Execution: exec}
	}

	pnl := ComputePnL(exec.SellLtpEntry, exec.BuyLtpEntry, sellLtp, buyLtp, exec.TotalQuantity, exec.CapitalUsed)

	closing := (exec.TriggerType == models.TriggerLowBreak && price.Price > exec.RangeHigh) ||
		(exec.TriggerType == models.TriggerHighBreak && price.Price < exec.RangeLow)

	if err := ctx.Err(); err != nil {
		return models.TickResult{Action: models.ActionError, Message: "tick cancelled: " + err.Error(), Execution: exec}
	}

	tick := &models.StrategyLtpTick{
		EntryID:       exec.EntryID,
		Timestamp:     now.UTC(),
		NiftyPrice:    price.Price,
		SellLtp:       sellLtp,
		BuyLtp:        buyLtp,
		NetPremium:    sellLtp - buyLtp,
		SellPnl:       pnl.SellPnl,
		BuyPnl:        pnl.BuyPnl,
		TotalPnl:      pnl.TotalPnl,
		PnlPercentage: pnl.Percentage,
		Closing:       closing,
	}
	if err := m.store.SaveLtpTick(ctx, tick); err != nil {
		return models.TickResult{Action: models.ActionError, Message: "tick write failed: " + err.Error(), Execution: exec}
	}

	exec.Timestamp = now.UTC()
	exec.CurrentPrice = price.Price
	exec.SellLtpCurrent = sellLtp
	exec.BuyLtpCurrent = buyLtp
	exec.NetPremiumCurrent = sellLtp - buyLtp
	exec.CurrentPnl = pnl.TotalPnl
	exec.PnlPercentage = pnl.Percentage

	if closing {
		exec.Status = models.TradeClosed
		exec.CloseReason = fmt.Sprintf("price crossed back through range (%s)", exec.TriggerType)
		exec.ClosedAt = now.UTC()
	}

	if err := m.store.UpdateExecution(ctx, exec); err != nil {
		return models.TickResult{Action: models.ActionError, Message: "execution update failed: " + err.Error(), Execution: exec}
	}

	if closing {
		logging.LogTrade(m.logger, string(exec.Underlying), string(exec.TriggerType), exec.SellStrike, exec.BuyStrike, pnl.TotalPnl)
		return models.TickResult{
			Action:    models.ActionTradeClosed,
			Message:   fmt.Sprintf("Closed at P&L %.2f (%.2f%%)", pnl.TotalPnl, pnl.Percentage),
			Execution: exec,
		}
	}

	return models.TickResult{
		Action:    models.ActionPnlUpdated,
		Message:   fmt.Sprintf("P&L %.2f (%.2f%%)", pnl.TotalPnl, pnl.Percentage),
		Execution: exec,
	}
}

// tickIdle looks for a fresh entry, respecting the daily cap and cutoff.
func (m *Manager) tickIdle(ctx context.Context, underlying models.Underlying, day, now time.Time) models.TickResult {
	count, err := m.store.TriggeredCountForDay(ctx, underlying, day)
	if err != nil {
		return models.TickResult{Action: models.ActionError, Message: "trade count query failed: " + err.Error()}
	}
	if count >= m.params.MaxTradesPerDay {
		return models.TickResult{
			Action:  models.ActionLimitReached,
			Message: fmt.Sprintf("Daily trade limit reached (%d/%d)", count, m.params.MaxTradesPerDay),
		}
	}

	if m.sessions.PastEntryCutoff(now) {
		return models.TickResult{Action: models.ActionTimeCutoff, Message: "Past entry cutoff, no new trades"}
	}

	r, err := m.engine.GetOpeningRange(ctx, underlying, now)
	if err != nil {
		return models.TickResult{Action: models.ActionError, Message: "range query failed: " + err.Error()}
	}
	if r == nil {
		return models.TickResult{Action: models.ActionMonitoring, Message: "No opening range yet"}
	}

	price, err := m.store.LatestPrice(ctx, underlying)
	if err != nil {
		return models.TickResult{Action: models.ActionError, Message: "no current price"}
	}

	proposal, err := m.engine.ProposePosition(ctx, underlying, *r, price.Price, now)
	if err != nil {
		return models.TickResult{Action: models.ActionError, Message: "proposal failed: " + err.Error()}
	}
	if !proposal.Triggered {
		return models.TickResult{Action: models.ActionMonitoring, Message: "Price inside range"}
	}

	if err := ctx.Err(); err != nil {
		return models.TickResult{Action: models.ActionError, Message: "tick cancelled: " + err.Error()}
	}

	entry := &models.StrategyEntry{
		EntryDate:       day,
		EntryTime:       now.UTC(),
		Underlying:      underlying,
		RangeHigh:       r.High,
		RangeLow:        r.Low,
		PriceAtStart:    r.PriceAtStart,
		PriceAtEnd:      r.PriceAtEnd,
		TriggerType:     proposal.TriggerType,
		TriggerPrice:    price.Price,
		SellStrike:      proposal.SellStrike,
		BuyStrike:       proposal.BuyStrike,
		OptionType:      proposal.OptionType,
		SellLtpEntry:    proposal.SellLtp,
		BuyLtpEntry:     proposal.BuyLtp,
		NetPremiumEntry: proposal.NetPremium,
		Lots:            proposal.Lots,
		QuantityPerLot:  proposal.QuantityPerLot,
		TotalQuantity:   proposal.TotalQuantity,
		CapitalUsed:     proposal.CapitalUsed,
	}
	exec := &models.StrategyExecution{
		ExecutionDate:     day,
		Timestamp:         now.UTC(),
		Underlying:        underlying,
		RangeHigh:         r.High,
		RangeLow:          r.Low,
		CurrentPrice:      price.Price,
		Triggered:         true,
		TriggerType:       proposal.TriggerType,
		SellStrike:        proposal.SellStrike,
		BuyStrike:         proposal.BuyStrike,
		OptionType:        proposal.OptionType,
		SellLtpEntry:      proposal.SellLtp,
		BuyLtpEntry:       proposal.BuyLtp,
		NetPremiumEntry:   proposal.NetPremium,
		SellLtpCurrent:    proposal.SellLtp,
		BuyLtpCurrent:     proposal.BuyLtp,
		NetPremiumCurrent: proposal.NetPremium,
		CapitalUsed:       proposal.CapitalUsed,
		Lots:              proposal.Lots,
		QuantityPerLot:    proposal.QuantityPerLot,
		TotalQuantity:     proposal.TotalQuantity,
		Status:            models.TradeOpen,
	}
	// Entry and execution land together or not at all.
	if err := m.store.SaveEntryWithExecution(ctx, entry, exec); err != nil {
		return models.TickResult{Action: models.ActionError, Message: "trade write failed: " + err.Error()}
	}

	logging.LogTrade(m.logger, string(underlying), string(proposal.TriggerType), proposal.SellStrike, proposal.BuyStrike, 0)
	return models.TickResult{
		Action: models.ActionNewTrade,
		Message: fmt.Sprintf("%s: sell %.0f / buy %.0f %s",
			proposal.TriggerType, proposal.SellStrike, proposal.BuyStrike, proposal.OptionType),
		Execution: exec,
	}
}

// Status assembles the presentation view of the strategy for today.
func (m *Manager) Status(ctx context.Context, underlying models.Underlying) (*models.StrategyStatus, error) {
	now := m.clock.Now()
	day := marketclock.TradingDate(now)

	status := &models.StrategyStatus{
		MaxTradesPerDay: m.params.MaxTradesPerDay,
		InMarketHours:   m.sessions.InMarketHours(now),
		InEntryWindow:   !m.sessions.PastEntryCutoff(now),
		LastUpdated:     now,
	}

	if r, err := m.engine.GetOpeningRange(ctx, underlying, now); err == nil {
		status.Range = r
	}

	if price, err := m.store.LatestPrice(ctx, underlying); err == nil {
		status.CurrentPrice = price.Price
		status.PriceTimestamp = price.Timestamp
	}

	if active, err := m.store.ActiveExecution(ctx, underlying, day); err == nil {
		status.ActiveExecution = active
	} else if !apperrors.Is(err, apperrors.ErrNoData) {
		return nil, err
	}

	count, err := m.store.TriggeredCountForDay(ctx, underlying, day)
	if err != nil {
		return nil, err
	}
	status.TodayTradeCount = count

	return status, nil
}

// History returns the execution timeline for a trading day.
func (m *Manager) History(ctx context.Context, underlying models.Underlying, date time.Time) (*models.StrategyHistory, error) {
	execs, err := m.store.ExecutionsForDay(ctx, underlying, marketclock.TradingDate(date))
	if err != nil {
		return nil, err
	}

	h := &models.StrategyHistory{
		Executions:   execs,
		TotalRecords: len(execs),
	}
	for _, e := range execs {
		if e.IsActive() {
			h.ActiveTrades++
		} else {
			h.ClosedTrades++
		}
	}

	if r, err := m.engine.GetOpeningRange(ctx, underlying, date); err == nil {
		h.Range = r
	}

	return h, nil
}

// Timeline returns the monitoring ticks for one entry, oldest first.
func (m *Manager) Timeline(ctx context.Context, entryID int64) ([]models.StrategyLtpTick, error) {
	return m.store.LtpTicks(ctx, entryID)
}

func (m *Manager) lockFor(underlying models.Underlying, day time.Time) *sync.Mutex {
	key := string(underlying) + "/" + day.Format("2006-01-02")
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.dayLocks[key]; ok {
		return l
	}
	l := &sync.Mutex{}
	m.dayLocks[key] = l
	return l
}
