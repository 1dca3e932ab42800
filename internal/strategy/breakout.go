// Package strategy implements the opening-range credit-spread strategy: range
// capture, breakout detection, and the per-tick position lifecycle.
package strategy

import (
	"context"
	"math"
	"time"

	"nifty-signals/internal/config"
	apperrors "nifty-signals/internal/errors"
	"nifty-signals/internal/models"
	"nifty-signals/pkg/marketclock"
)

// MarketReader is the slice of the store the breakout engine needs.
type MarketReader interface {
	PricesBetween(ctx context.Context, underlying models.Underlying, from, to time.Time) ([]models.PriceSnapshot, error)
	LatestStrikeQuote(ctx context.Context, underlying models.Underlying, strike float64, expiry, since time.Time) (*models.OptionChainRow, error)
	GetExpirySetting(ctx context.Context, underlying models.Underlying) (*models.ExpirySetting, error)
}

// BreakoutEngine captures the opening range and turns range breaks into
// credit-spread proposals.
type BreakoutEngine struct {
	market   MarketReader
	sessions marketclock.Sessions
	params   config.StrategyConfig
}

// NewBreakoutEngine creates a BreakoutEngine.
func NewBreakoutEngine(market MarketReader, sessions marketclock.Sessions, params config.StrategyConfig) *BreakoutEngine {
	return &BreakoutEngine{market: market, sessions: sessions, params: params}
}

// GetOpeningRange returns the opening range for the trading day containing
// date, or nil if no snapshots fall inside the window. A range is never
// fabricated.
func (e *BreakoutEngine) GetOpeningRange(ctx context.Context, underlying models.Underlying, date time.Time) (*models.RangeData, error) {
	start, end := e.sessions.RangeWindow.BoundsOn(date)

	snaps, err := e.market.PricesBetween(ctx, underlying, start, end)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, nil
	}

	r := &models.RangeData{
		High:         snaps[0].BarHigh(),
		Low:          snaps[0].BarLow(),
		PriceAtStart: snaps[0].Price,
		PriceAtEnd:   snaps[len(snaps)-1].Price,
		WindowStart:  start,
		WindowEnd:    end,
	}
	for _, s := range snaps[1:] {
		r.High = math.Max(r.High, s.BarHigh())
		r.Low = math.Min(r.Low, s.BarLow())
	}
	return r, nil
}

// DetectBreakout classifies the current price against the range. Touching a
// boundary is not a break.
func DetectBreakout(high, low, currentPrice float64) (models.TriggerType, bool) {
	switch {
	case currentPrice < low:
		return models.TriggerLowBreak, true
	case currentPrice > high:
		return models.TriggerHighBreak, true
	default:
		return "", false
	}
}

// ProposePosition resolves a detected breakout into a concrete spread with
// entry LTPs from the latest chain rows of now's trading day and expiry.
// Missing quotes for either leg, including a day with no chain data yet,
// produce a DataError so the caller can abort the tick cleanly.
func (e *BreakoutEngine) ProposePosition(ctx context.Context, underlying models.Underlying, r models.RangeData, currentPrice float64, now time.Time) (*models.PositionProposal, error) {
	trigger, ok := DetectBreakout(r.High, r.Low, currentPrice)
	if !ok {
		return &models.PositionProposal{}, nil
	}

	step := e.params.StrikeStep
	var sellStrike, buyStrike float64
	var leg models.OptionType
	if trigger == models.TriggerLowBreak {
		// Price broke below: cap the upside with a CE credit spread.
		sellStrike = marketclock.RoundToStep(r.High+e.params.SellStrikeOffset, step)
		buyStrike = marketclock.RoundToStep(sellStrike+e.params.SpreadWidth, step)
		leg = models.OptionCE
	} else {
		sellStrike = marketclock.RoundToStep(r.Low-e.params.SellStrikeOffset, step)
		buyStrike = marketclock.RoundToStep(sellStrike-e.params.SpreadWidth, step)
		leg = models.OptionPE
	}

	expiry := e.currentExpiry(ctx, underlying, now)
	since := marketclock.MidnightIST(now)
	sellLtp, err := e.legLtp(ctx, underlying, sellStrike, leg, expiry, since)
	if err != nil {
		return nil, err
	}
	buyLtp, err := e.legLtp(ctx, underlying, buyStrike, leg, expiry, since)
	if err != nil {
		return nil, err
	}

	totalQty := e.params.TotalQuantity()
	return &models.PositionProposal{
		Triggered:      true,
		TriggerType:    trigger,
		OptionType:     leg,
		SellStrike:     sellStrike,
		BuyStrike:      buyStrike,
		SellLtp:        sellLtp,
		BuyLtp:         buyLtp,
		NetPremium:     sellLtp - buyLtp,
		Lots:           e.params.Lots,
		QuantityPerLot: e.params.QuantityPerLot,
		TotalQuantity:  totalQty,
		CapitalUsed:    math.Abs(buyStrike-sellStrike) * float64(totalQty),
	}, nil
}

// LegQuotes returns the current LTPs for an open position's two legs,
// scoped to now's trading day and expiry. Positions open and close within
// one session, so the expiry at monitoring time is the entry expiry.
func (e *BreakoutEngine) LegQuotes(ctx context.Context, underlying models.Underlying, sellStrike, buyStrike float64, leg models.OptionType, now time.Time) (sellLtp, buyLtp float64, err error) {
	expiry := e.currentExpiry(ctx, underlying, now)
	since := marketclock.MidnightIST(now)
	sellLtp, err = e.legLtp(ctx, underlying, sellStrike, leg, expiry, since)
	if err != nil {
		return 0, 0, err
	}
	buyLtp, err = e.legLtp(ctx, underlying, buyStrike, leg, expiry, since)
	if err != nil {
		return 0, 0, err
	}
	return sellLtp, buyLtp, nil
}

// currentExpiry resolves the expiry in play: the stored override when one
// exists, otherwise the next Thursday.
func (e *BreakoutEngine) currentExpiry(ctx context.Context, underlying models.Underlying, now time.Time) time.Time {
	setting, err := e.market.GetExpirySetting(ctx, underlying)
	if err == nil && !setting.CurrentExpiry.IsZero() {
		return setting.CurrentExpiry
	}
	return marketclock.NextThursday(now)
}

func (e *BreakoutEngine) legLtp(ctx context.Context, underlying models.Underlying, strike float64, leg models.OptionType, expiry, since time.Time) (float64, error) {
	quote, err := e.market.LatestStrikeQuote(ctx, underlying, strike, expiry, since)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNoData) {
			return 0, apperrors.NewDataError("option_chain", string(underlying),
				"no quote for strike", err)
		}
		return 0, err
	}
	if leg == models.OptionCE {
		return quote.CELtp, nil
	}
	return quote.PELtp, nil
}
