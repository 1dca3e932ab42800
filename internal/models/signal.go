package models

import "time"

// OIDominance classifies which side of the chain is building faster.
type OIDominance string

const (
	DominanceNeutral OIDominance = "NEUTRAL"
	DominanceCE      OIDominance = "CE_BUILDING"
	DominancePE      OIDominance = "PE_BUILDING"
)

// OIAnalysis is the result of the OI trend analysis for one underlying.
// Score is always one of {-30, -20, -10, 0, 10, 20, 30}.
type OIAnalysis struct {
	Underlying Underlying

	CETotal int64
	PETotal int64

	CEChangePercent  float64
	PEChangePercent  float64
	NetChangePercent float64
	Percentage       float64 // max(|ce%|, |pe%|), display only

	PCR float64 // total PE OI / total CE OI, 0 when CE OI is 0

	Dominant       OIDominance
	Score          int
	Strength       string // e.g. "pe_strong", "ce_mild"
	Interpretation string

	SampleSize int
	AsOf       time.Time
}

// SignalLabel is the discrete label for a composite signal score.
type SignalLabel string

const (
	LabelStrongBuy  SignalLabel = "STRONG BUY"
	LabelBuy        SignalLabel = "BUY"
	LabelNeutralUp  SignalLabel = "NEUTRAL+"
	LabelNeutral    SignalLabel = "NEUTRAL"
	LabelNeutralDn  SignalLabel = "NEUTRAL-"
	LabelSell       SignalLabel = "SELL"
	LabelStrongSell SignalLabel = "STRONG SELL"
	LabelNoData     SignalLabel = "NO DATA"
)

// SignalFactor is one weighted factor of the composite signal.
type SignalFactor struct {
	Name      string
	Input     float64 // raw input (% change, OI score, net influence)
	Score     float64 // contribution to the composite
	Available bool
}

// SignalBreakdown holds the five factors of the composite signal.
type SignalBreakdown struct {
	NiftyChange     SignalFactor
	BankNiftyChange SignalFactor
	NiftyOI         SignalFactor
	BankNiftyOI     SignalFactor
	StockInfluence  SignalFactor
}

// Factors returns the breakdown as a slice in scoring order.
func (b SignalBreakdown) Factors() []SignalFactor {
	return []SignalFactor{
		b.NiftyChange, b.BankNiftyChange, b.NiftyOI, b.BankNiftyOI, b.StockInfluence,
	}
}

// SignalResult is the composite market signal. Score is clamped to
// [-100, 100]; Label is NO DATA when every factor was unavailable.
type SignalResult struct {
	Score     float64
	Label     SignalLabel
	ColorHint string
	Breakdown SignalBreakdown
	AsOf      time.Time
}

// StockInfluenceSummary aggregates constituent stock moves for a day.
type StockInfluenceSummary struct {
	NetInfluence      float64
	PositiveInfluence float64
	NegativeInfluence float64
	Gainers           int
	Losers            int
	Unchanged         int
	TotalStocks       int
}

// OITotals is the chain-wide OI aggregate for one ingest timestamp.
type OITotals struct {
	Timestamp  time.Time
	CEOi       int64
	PEOi       int64
	CEOiChange int64
	PEOiChange int64
}

// OIMovers groups the top OI changes by side and direction for display.
type OIMovers struct {
	CEIncreases []OptionChainRow
	CEDecreases []OptionChainRow
	PEIncreases []OptionChainRow
	PEDecreases []OptionChainRow
	LastUpdated time.Time
}
