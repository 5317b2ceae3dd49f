package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// TradeDuration classifies the holding horizon derived from the scan name.
type TradeDuration string

const (
	DurationIntraday   TradeDuration = "INTRADAY"
	DurationPositional TradeDuration = "POSITIONAL"
	DurationShortTerm  TradeDuration = "SHORTTERM"
	DurationLongTerm   TradeDuration = "LONGTERM"
)

// TradeDurationFromScanName infers the duration from scan-name keywords,
// defaulting to INTRADAY.
func TradeDurationFromScanName(scanName string) TradeDuration {
	upper := strings.ToUpper(scanName)
	switch {
	case strings.Contains(upper, "INTRADAY"):
		return DurationIntraday
	case strings.Contains(upper, "POSITIONAL"):
		return DurationPositional
	case strings.Contains(upper, "SHORT"):
		return DurationShortTerm
	case strings.Contains(upper, "LONG"):
		return DurationLongTerm
	default:
		return DurationIntraday
	}
}

// Timeframe returns the candle timeframe used for a duration's indicators.
func (d TradeDuration) Timeframe() string {
	switch d {
	case DurationPositional:
		return "1d"
	case DurationShortTerm:
		return "1w"
	case DurationLongTerm:
		return "1M"
	default:
		return "75m"
	}
}

// RecommendationStatus is the lifecycle state of a recommendation.
type RecommendationStatus string

const (
	StatusActive RecommendationStatus = "ACTIVE"
	StatusClosed RecommendationStatus = "CLOSED"
)

// CloseReason records why a recommendation was closed.
type CloseReason string

const (
	CloseOppositeSignal CloseReason = "OPPOSITE_SIGNAL"
	CloseStoplossHit    CloseReason = "STOPLOSS_HIT"
	CloseManual         CloseReason = "MANUAL"
)

// TradeRecommendation is a derived decision record keyed by
// (symbol, direction, trade duration). At most one ACTIVE record is intended
// per key; the engine serializes creation per key to hold that invariant.
type TradeRecommendation struct {
	ID            uint                 `json:"id" gorm:"primaryKey"`
	Symbol        string               `json:"symbol" gorm:"index;not null"`
	Exchange      string               `json:"exchange"`
	Direction     Direction            `json:"direction" gorm:"not null"`
	TradeDuration TradeDuration        `json:"trade_duration" gorm:"not null"`
	Timeframe     string               `json:"timeframe"`
	EntryPrice    float64              `json:"entry_price"`
	Target1       float64              `json:"target1"`
	Target2       float64              `json:"target2"`
	Target3       float64              `json:"target3"`
	Stoploss1     float64              `json:"stoploss1"`
	Stoploss2     float64              `json:"stoploss2"`
	HardStoploss  float64              `json:"hard_stoploss"`
	Status        RecommendationStatus `json:"status" gorm:"index;default:'ACTIVE'"`
	CloseReason   CloseReason          `json:"close_reason,omitempty"`
	RuleVersion   string               `json:"rule_version"`
	Metadata      datatypes.JSON       `json:"metadata,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
	ClosedAt      *time.Time           `json:"closed_at,omitempty"`
}
