// Package oitrend analyzes open-interest buildup across the option chain and
// classifies which side is dominant.
package oitrend

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"nifty-signals/internal/models"
	"nifty-signals/pkg/marketclock"
)

const windowSize = 10

// ChainReader is the slice of the store the analyzer needs.
type ChainReader interface {
	OITotalsBetween(ctx context.Context, underlying models.Underlying, from, to time.Time) ([]models.OITotals, error)
	TopOIMovers(ctx context.Context, underlying models.Underlying, limit int) (*models.OIMovers, error)
}

// Analyzer computes OI trend scores from stored chain snapshots. It is a
// pure reader and safe for concurrent use.
type Analyzer struct {
	chain  ChainReader
	clock  marketclock.Clock
	logger zerolog.Logger
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(chain ChainReader, clock marketclock.Clock, logger zerolog.Logger) *Analyzer {
	if clock == nil {
		clock = marketclock.SystemClock{}
	}
	return &Analyzer{chain: chain, clock: clock, logger: logger}
}

// AnalyzeOIChange computes the OI trend for one underlying over the rows of
// asOfDate's trading day. Query failures degrade to the neutral result with
// the error embedded in the interpretation; they never propagate.
func (a *Analyzer) AnalyzeOIChange(ctx context.Context, underlying models.Underlying, asOfDate time.Time) models.OIAnalysis {
	now := a.clock.Now()
	dayStart := marketclock.MidnightIST(asOfDate)

	totals, err := a.chain.OITotalsBetween(ctx, underlying, dayStart, now)
	if err != nil {
		a.logger.Warn().Err(err).Str("underlying", string(underlying)).Msg("OI query failed")
		return neutralResult(underlying, now, "OI query failed: "+err.Error())
	}
	if len(totals) == 0 {
		return neutralResult(underlying, now, "No OI data available")
	}

	result := models.OIAnalysis{
		Underlying: underlying,
		CETotal:    totals[0].CEOi,
		PETotal:    totals[0].PEOi,
		SampleSize: len(totals),
		AsOf:       now,
	}
	if result.CETotal > 0 {
		result.PCR = float64(result.PETotal) / float64(result.CETotal)
	}

	var ceChange, peChange, recentCE, recentPE float64
	if len(totals) == 1 {
		// Single snapshot: trust the stored write-time diffs.
		ceChange = float64(totals[0].CEOiChange)
		peChange = float64(totals[0].PEOiChange)
		recentCE = float64(totals[0].CEOi)
		recentPE = float64(totals[0].PEOi)
	} else {
		recent := totals[:min(windowSize, len(totals))]
		var older []models.OITotals
		if len(totals) >= windowSize {
			older = totals[len(totals)-windowSize:]
		} else {
			older = totals[len(totals)/2:]
		}

		recentCE, recentPE = avgOI(recent)
		olderCE, olderPE := avgOI(older)
		ceChange = recentCE - olderCE
		peChange = recentPE - olderPE
	}

	if recentCE > 0 {
		result.CEChangePercent = ceChange / recentCE * 100
	}
	if recentPE > 0 {
		result.PEChangePercent = peChange / recentPE * 100
	}
	result.NetChangePercent = result.PEChangePercent - result.CEChangePercent
	result.Percentage = math.Max(math.Abs(result.CEChangePercent), math.Abs(result.PEChangePercent))

	classify(&result)
	return result
}

// TopMovers returns the strikes with the largest OI swings at the latest
// snapshot. A missing chain returns an empty result, not an error.
func (a *Analyzer) TopMovers(ctx context.Context, underlying models.Underlying, limit int) *models.OIMovers {
	movers, err := a.chain.TopOIMovers(ctx, underlying, limit)
	if err != nil {
		a.logger.Debug().Err(err).Str("underlying", string(underlying)).Msg("OI movers unavailable")
		return &models.OIMovers{}
	}
	return movers
}

func classify(r *models.OIAnalysis) {
	totalActivity := math.Abs(r.CEChangePercent) + math.Abs(r.PEChangePercent)
	net := math.Abs(r.NetChangePercent)

	switch {
	case totalActivity < 1:
		r.Score, r.Dominant = 0, models.DominanceNeutral
		r.Interpretation = "Low Change Activity"
	case net < 2:
		r.Score, r.Dominant = 0, models.DominanceNeutral
		r.Interpretation = "Balanced Changes"
	case r.CEChangePercent > r.PEChangePercent:
		// CE building faster is bearish
		r.Dominant = models.DominanceCE
		switch {
		case net > 10:
			r.Score, r.Strength = -30, "ce_strong"
		case net > 5:
			r.Score, r.Strength = -20, "ce_moderate"
		default:
			r.Score, r.Strength = -10, "ce_mild"
		}
		r.Interpretation = "Call OI building faster (bearish)"
	default:
		r.Dominant = models.DominancePE
		switch {
		case net > 10:
			r.Score, r.Strength = 30, "pe_strong"
		case net > 5:
			r.Score, r.Strength = 20, "pe_moderate"
		default:
			r.Score, r.Strength = 10, "pe_mild"
		}
		r.Interpretation = "Put OI building faster (bullish)"
	}
}

func neutralResult(underlying models.Underlying, asOf time.Time, interpretation string) models.OIAnalysis {
	return models.OIAnalysis{
		Underlying:     underlying,
		Dominant:       models.DominanceNeutral,
		Interpretation: interpretation,
		AsOf:           asOf,
	}
}

func avgOI(rows []models.OITotals) (ce, pe float64) {
	if len(rows) == 0 {
		return 0, 0
	}
	var ceSum, peSum int64
	for _, r := range rows {
		ceSum += r.CEOi
		peSum += r.PEOi
	}
	return float64(ceSum) / float64(len(rows)), float64(peSum) / float64(len(rows))
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
