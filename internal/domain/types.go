// Package domain defines the core data types shared across the tradebench
// platform: OHLCV bars, trading signals, and their enumerations.
package domain

import "time"

// Timeframe identifies the sampling interval of a bar.
type Timeframe string

// Supported timeframes.
const (
	TimeframeDay    Timeframe = "1d"
	TimeframeHour   Timeframe = "1h"
	TimeframeMinute Timeframe = "1m"
)

// Market identifies which market a bar belongs to.
type Market string

// Market constants.
const (
	MarketUS     Market = "us"
	MarketCrypto Market = "crypto"
)

// Bar is a single OHLCV observation for a symbol at a timeframe. Bars are
// immutable once constructed; identity is (Symbol, Timestamp, Timeframe).
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Timeframe Timeframe
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Name      string // optional display name from the provider
}

// Direction is the action requested by a strategy signal.
type Direction string

// Signal directions.
const (
	DirectionLong    Direction = "LONG"
	DirectionShort   Direction = "SHORT"
	DirectionNeutral Direction = "NEUTRAL"
	DirectionExit    Direction = "EXIT"
)

// Signal is produced fresh by a strategy on every bar. Strategies keep their
// own indicator memory; the signal itself carries no state.
type Signal struct {
	Direction  Direction
	Confidence float64
	Reason     string
}
