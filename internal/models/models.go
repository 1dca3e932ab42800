// Package models provides domain models for the signal and strategy engine.
package models

import (
	"time"
)

// Underlying identifies an index an option chain derives from.
type Underlying string

const (
	UnderlyingNifty     Underlying = "NIFTY"
	UnderlyingBankNifty Underlying = "BANKNIFTY"
)

// OptionType represents an option leg.
type OptionType string

const (
	OptionCE OptionType = "CE"
	OptionPE OptionType = "PE"
)

// TriggerType represents the direction of a range breakout.
type TriggerType string

const (
	TriggerLowBreak  TriggerType = "LOW_BREAK"
	TriggerHighBreak TriggerType = "HIGH_BREAK"
)

// TradeStatus is the lifecycle state of a strategy execution.
type TradeStatus string

const (
	TradeOpen   TradeStatus = "OPEN"
	TradeClosed TradeStatus = "CLOSED"
)

// MarketStatus represents the current market session status.
type MarketStatus string

const (
	MarketOpen    MarketStatus = "OPEN"
	MarketPreOpen MarketStatus = "PRE_OPEN"
	MarketClosed  MarketStatus = "CLOSED"
)

// PriceSnapshot is one observation of an index price. Rows are append-only;
// duplicates at the same timestamp are tolerated and resolved by timestamp
// then insertion order.
type PriceSnapshot struct {
	ID            int64
	Underlying    Underlying
	Price         float64
	Open          float64
	High          float64
	Low           float64
	Close         float64
	Change        float64
	ChangePercent float64
	Timestamp     time.Time // UTC
}

// BarHigh returns the bar high, falling back to the observed price.
func (p PriceSnapshot) BarHigh() float64 {
	if p.High > 0 {
		return p.High
	}
	return p.Price
}

// BarLow returns the bar low, falling back to the observed price.
func (p PriceSnapshot) BarLow() float64 {
	if p.Low > 0 {
		return p.Low
	}
	return p.Price
}

// OptionChainRow is one observation of a single strike's CE and PE legs.
// OI-change and price-change are computed once at write time by diffing the
// most recent prior row for the same underlying+strike+expiry and stored as
// durable facts.
type OptionChainRow struct {
	ID         int64
	Underlying Underlying
	Strike     float64
	Expiry     time.Time // date, UTC midnight

	CEOi            int64
	CEOiChange      int64
	CEVolume        int64
	CELtp           float64
	CEChange        float64
	CEChangePercent float64

	PEOi            int64
	PEOiChange      int64
	PEVolume        int64
	PELtp           float64
	PEChange        float64
	PEChangePercent float64

	Timestamp time.Time // UTC
}

// ExpirySetting is the per-underlying override of the option-chain expiry.
type ExpirySetting struct {
	Underlying    Underlying
	CurrentExpiry time.Time
	NextExpiry    time.Time // zero when unset
	UpdatedAt     time.Time
}

// IndexStock is a constituent stock of the NIFTY index with its weightage
// and today's influence on the index.
type IndexStock struct {
	Symbol        string
	CompanyName   string
	Sector        string
	Weightage     float64 // percent weight in the index
	CurrentPrice  float64
	OpeningPrice  float64 // captured at first quote of the trading day
	PriceChange   float64
	ChangePercent float64
	Influence     float64 // (ChangePercent * Weightage) / 100
	Volume        int64
	TradingDate   time.Time
	LastUpdated   time.Time
}

// RangeData is the opening range of the index for a trading day.
type RangeData struct {
	High          float64
	Low           float64
	PriceAtStart  float64
	PriceAtEnd    float64
	WindowStart   time.Time
	WindowEnd     time.Time
}

// Size returns the width of the range.
func (r RangeData) Size() float64 {
	return r.High - r.Low
}
