// Package signal combines index moves, OI trends, and constituent stock
// influence into one bounded market signal.
package signal

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"nifty-signals/internal/models"
	"nifty-signals/pkg/marketclock"
)

// PriceReader is the slice of the store the scorer needs for index prices.
type PriceReader interface {
	PricesBetween(ctx context.Context, underlying models.Underlying, from, to time.Time) ([]models.PriceSnapshot, error)
}

// StockReader provides the day's index constituents.
type StockReader interface {
	GetIndexStocks(ctx context.Context, tradingDate time.Time) ([]models.IndexStock, error)
}

// OIAnalyzer provides per-underlying OI trend scores.
type OIAnalyzer interface {
	AnalyzeOIChange(ctx context.Context, underlying models.Underlying, asOfDate time.Time) models.OIAnalysis
}

// Scorer computes the composite market signal. Pure reader, safe for
// concurrent use.
type Scorer struct {
	prices PriceReader
	stocks StockReader
	oi     OIAnalyzer
	clock  marketclock.Clock
	logger zerolog.Logger
}

// NewScorer creates a Scorer.
func NewScorer(prices PriceReader, stocks StockReader, oi OIAnalyzer, clock marketclock.Clock, logger zerolog.Logger) *Scorer {
	if clock == nil {
		clock = marketclock.SystemClock{}
	}
	return &Scorer{prices: prices, stocks: stocks, oi: oi, clock: clock, logger: logger}
}

// ComputeSignal computes the five-factor composite signal for asOfDate.
// Missing inputs contribute zero and are flagged unavailable; only when every
// factor is unavailable does the label become NO DATA.
func (s *Scorer) ComputeSignal(ctx context.Context, asOfDate time.Time) models.SignalResult {
	var b models.SignalBreakdown

	b.NiftyChange = s.dailyChangeFactor(ctx, models.UnderlyingNifty, asOfDate)
	b.BankNiftyChange = s.dailyChangeFactor(ctx, models.UnderlyingBankNifty, asOfDate)
	b.NiftyOI = oiFactor("nifty_oi", s.oi.AnalyzeOIChange(ctx, models.UnderlyingNifty, asOfDate))
	b.BankNiftyOI = oiFactor("banknifty_oi", s.oi.AnalyzeOIChange(ctx, models.UnderlyingBankNifty, asOfDate))
	b.StockInfluence = s.stockInfluenceFactor(ctx, asOfDate)

	var score float64
	available := false
	for _, f := range b.Factors() {
		score += f.Score
		available = available || f.Available
	}
	score = clamp(score, -100, 100)

	label := labelFor(score)
	if !available {
		label = models.LabelNoData
	}

	return models.SignalResult{
		Score:     score,
		Label:     label,
		ColorHint: colorFor(label),
		Breakdown: b,
		AsOf:      s.clock.Now(),
	}
}

// StockInfluence aggregates per-stock weighted moves for asOfDate.
func (s *Scorer) StockInfluence(ctx context.Context, asOfDate time.Time) (models.StockInfluenceSummary, error) {
	stocks, err := s.stocks.GetIndexStocks(ctx, marketclock.TradingDate(asOfDate))
	if err != nil {
		return models.StockInfluenceSummary{}, err
	}

	var sum models.StockInfluenceSummary
	sum.TotalStocks = len(stocks)
	for _, st := range stocks {
		sum.NetInfluence += st.Influence
		switch {
		case st.Influence > 0:
			sum.PositiveInfluence += st.Influence
			sum.Gainers++
		case st.Influence < 0:
			sum.NegativeInfluence += st.Influence
			sum.Losers++
		default:
			sum.Unchanged++
		}
	}
	return sum, nil
}

func (s *Scorer) dailyChangeFactor(ctx context.Context, underlying models.Underlying, asOfDate time.Time) models.SignalFactor {
	name := "nifty_change"
	if underlying == models.UnderlyingBankNifty {
		name = "banknifty_change"
	}

	dayStart := marketclock.MidnightIST(asOfDate)
	dayEnd := dayStart.Add(24 * time.Hour)

	snaps, err := s.prices.PricesBetween(ctx, underlying, dayStart, dayEnd)
	if err != nil {
		s.logger.Warn().Err(err).Str("underlying", string(underlying)).Msg("price query failed")
		return models.SignalFactor{Name: name}
	}
	if len(snaps) == 0 {
		return models.SignalFactor{Name: name}
	}

	first := snaps[0].Price
	latest := snaps[len(snaps)-1].Price
	if first == 0 {
		return models.SignalFactor{Name: name}
	}

	changePct := (latest - first) / first * 100
	return models.SignalFactor{
		Name:      name,
		Input:     changePct,
		Score:     ScorePercent(changePct),
		Available: true,
	}
}

func (s *Scorer) stockInfluenceFactor(ctx context.Context, asOfDate time.Time) models.SignalFactor {
	sum, err := s.StockInfluence(ctx, asOfDate)
	if err != nil {
		s.logger.Warn().Err(err).Msg("stock influence query failed")
		return models.SignalFactor{Name: "stock_influence"}
	}
	if sum.TotalStocks == 0 {
		return models.SignalFactor{Name: "stock_influence"}
	}

	return models.SignalFactor{
		Name:      "stock_influence",
		Input:     sum.NetInfluence,
		Score:     scoreInfluence(sum.NetInfluence),
		Available: true,
	}
}

func oiFactor(name string, analysis models.OIAnalysis) models.SignalFactor {
	return models.SignalFactor{
		Name:      name,
		Input:     analysis.NetChangePercent,
		Score:     float64(analysis.Score),
		Available: analysis.SampleSize > 0,
	}
}

// ScorePercent maps a daily percentage change onto [-40, 40]. Small moves
// around zero scale linearly; larger moves hit fixed steps.
func ScorePercent(p float64) float64 {
	switch {
	case p > 2:
		return 40
	case p > 0.5:
		return 20
	case p > 0.1:
		return 10
	case p >= -0.1:
		return math.Round(p * 50)
	case p > -0.5:
		return -10
	case p > -2:
		return -20
	default:
		return -40
	}
}

func scoreInfluence(net float64) float64 {
	switch {
	case net > 2:
		return 40
	case net > 1:
		return 25
	case net > 0.5:
		return 15
	case net < -2:
		return -40
	case net < -1:
		return -25
	case net < -0.5:
		return -15
	default:
		return 0
	}
}

func labelFor(score float64) models.SignalLabel {
	switch {
	case score >= 100:
		return models.LabelStrongBuy
	case score >= 40:
		return models.LabelBuy
	case score >= 15:
		return models.LabelNeutralUp
	case score >= -15:
		return models.LabelNeutral
	case score >= -40:
		return models.LabelNeutralDn
	case score >= -100:
		return models.LabelSell
	default:
		return models.LabelStrongSell
	}
}

func colorFor(label models.SignalLabel) string {
	switch label {
	case models.LabelStrongBuy, models.LabelBuy:
		return "green"
	case models.LabelSell, models.LabelStrongSell:
		return "red"
	case models.LabelNoData:
		return "gray"
	default:
		return "yellow"
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
