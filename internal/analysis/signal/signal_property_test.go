package signal

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"nifty-signals/internal/models"
)

func TestProperty_ScorePercentBounded(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	parameters.Rng.Seed(time.Now().UnixNano())
	parameters.MaxShrinkCount = 0

	properties := gopter.NewProperties(parameters)

	properties.Property("score stays within [-40, 40]", prop.ForAll(
		func(pct float64) bool {
			s := ScorePercent(pct)
			return s >= -40 && s <= 40
		},
		gen.Float64Range(-50, 50),
	))

	properties.Property("score is monotone in the change", prop.ForAll(
		func(a, b float64) bool {
			if a > b {
				a, b = b, a
			}
			return ScorePercent(a) <= ScorePercent(b)
		},
		gen.Float64Range(-10, 10),
		gen.Float64Range(-10, 10),
	))

	properties.Property("sign follows the change", prop.ForAll(
		func(pct float64) bool {
			s := ScorePercent(pct)
			switch {
			case pct > 0.1:
				return s > 0
			case pct < -0.1:
				return s < 0
			default:
				return true
			}
		},
		gen.Float64Range(-10, 10),
	))

	properties.TestingRun(t)
}

func TestProperty_CompositeScoreBounded(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())
	parameters.MaxShrinkCount = 0

	properties := gopter.NewProperties(parameters)

	properties.Property("composite score is clamped to [-100, 100]", prop.ForAll(
		func(niftyPct, bankPct, influence float64, niftyOI, bankOI int) bool {
			prices := &fakePrices{snaps: map[models.Underlying][]models.PriceSnapshot{}}
			for u, day := range priceDay(models.UnderlyingNifty, 100, 100*(1+niftyPct/100)) {
				prices.snaps[u] = day
			}
			for u, day := range priceDay(models.UnderlyingBankNifty, 100, 100*(1+bankPct/100)) {
				prices.snaps[u] = day
			}
			oi := &fakeOI{analyses: map[models.Underlying]models.OIAnalysis{
				models.UnderlyingNifty:     {Score: niftyOI, SampleSize: 5},
				models.UnderlyingBankNifty: {Score: bankOI, SampleSize: 5},
			}}
			stocks := &fakeStocks{stocks: []models.IndexStock{{Symbol: "X", Influence: influence}}}

			result := testScorer(prices, stocks, oi).ComputeSignal(context.Background(), time.Now())
			return result.Score >= -100 && result.Score <= 100 && result.Label != models.LabelNoData
		},
		gen.Float64Range(-8, 8),
		gen.Float64Range(-8, 8),
		gen.Float64Range(-5, 5),
		gen.IntRange(-30, 30),
		gen.IntRange(-30, 30),
	))

	properties.TestingRun(t)
}
