package models

import "time"

// StrategyEntry captures the immutable facts at the moment a breakout is
// detected. It is the cost basis of the trade and is never mutated.
type StrategyEntry struct {
	ID        int64
	EntryDate time.Time // trading date (exchange-local calendar day)
	EntryTime time.Time // UTC

	Underlying Underlying

	RangeHigh    float64
	RangeLow     float64
	PriceAtStart float64
	PriceAtEnd   float64

	TriggerType  TriggerType
	TriggerPrice float64

	SellStrike float64
	BuyStrike  float64
	OptionType OptionType

	SellLtpEntry    float64
	BuyLtpEntry     float64
	NetPremiumEntry float64

	Lots           int
	QuantityPerLot int
	TotalQuantity  int
	CapitalUsed    float64
}

// StrategyLtpTick is one periodic observation of current LTPs and derived
// P&L for an open position. Append-only, one row per monitoring tick.
type StrategyLtpTick struct {
	ID      int64
	EntryID int64

	Timestamp  time.Time // UTC
	NiftyPrice float64

	SellLtp    float64
	BuyLtp     float64
	NetPremium float64

	SellPnl       float64
	BuyPnl        float64
	TotalPnl      float64
	PnlPercentage float64

	Closing bool // true on the tick that records the closing state
}

// StrategyExecution is the live, denormalized mirror of a StrategyEntry used
// for fast active-trade queries. Mutable while Status is TradeOpen; once
// closed it is never touched again.
type StrategyExecution struct {
	ID            int64
	EntryID       int64
	ExecutionDate time.Time // trading date
	Timestamp     time.Time // UTC, last mutation

	Underlying Underlying

	RangeHigh    float64
	RangeLow     float64
	CurrentPrice float64

	Triggered   bool
	TriggerType TriggerType

	SellStrike float64
	BuyStrike  float64
	OptionType OptionType

	SellLtpEntry    float64
	BuyLtpEntry     float64
	NetPremiumEntry float64

	SellLtpCurrent    float64
	BuyLtpCurrent     float64
	NetPremiumCurrent float64

	CurrentPnl    float64
	CapitalUsed   float64
	PnlPercentage float64

	Lots           int
	QuantityPerLot int
	TotalQuantity  int

	Status      TradeStatus
	CloseReason string
	ClosedAt    time.Time // zero while open
}

// IsActive reports whether the execution is still open.
func (e StrategyExecution) IsActive() bool {
	return e.Status == TradeOpen
}

// PositionProposal is the outcome of breakout detection: the spread a
// trigger implies, with entry LTPs resolved from the latest chain rows.
type PositionProposal struct {
	Triggered   bool
	TriggerType TriggerType
	OptionType  OptionType

	SellStrike float64
	BuyStrike  float64

	SellLtp    float64
	BuyLtp     float64
	NetPremium float64

	Lots           int
	QuantityPerLot int
	TotalQuantity  int
	CapitalUsed    float64
}

// TickAction is the structured outcome of one lifecycle tick.
type TickAction string

const (
	ActionMonitoring   TickAction = "MONITORING"
	ActionNewTrade     TickAction = "NEW_TRADE"
	ActionPnlUpdated   TickAction = "PNL_UPDATED"
	ActionTradeClosed  TickAction = "TRADE_CLOSED"
	ActionLimitReached TickAction = "LIMIT_REACHED"
	ActionTimeCutoff   TickAction = "TIME_CUTOFF"
	ActionError        TickAction = "ERROR"
)

// TickResult is returned to the scheduler collaborator from every tick.
type TickResult struct {
	Action    TickAction
	Message   string
	Execution *StrategyExecution // present for NEW_TRADE/PNL_UPDATED/TRADE_CLOSED
}

// StrategyStatus is the presentation view of the strategy for a day.
type StrategyStatus struct {
	Range           *RangeData
	CurrentPrice    float64
	PriceTimestamp  time.Time
	ActiveExecution *StrategyExecution
	TodayTradeCount int
	MaxTradesPerDay int
	InMarketHours   bool
	InEntryWindow   bool
	LastUpdated     time.Time
}

// StrategyHistory is the per-day execution timeline for display.
type StrategyHistory struct {
	Executions   []StrategyExecution
	Range        *RangeData
	TotalRecords int
	ActiveTrades int
	ClosedTrades int
}
