package models

import (
	"fmt"
	"time"
)

// RawAlert represents one scanner webhook payload. Stocks and TriggerPrices
// are parallel comma-joined lists; TriggeredAt is a free-text "H:MM am/pm".
type RawAlert struct {
	Stocks        string `json:"stocks"`
	TriggerPrices string `json:"trigger_prices"`
	TriggeredAt   string `json:"triggered_at"`
	ScanName      string `json:"scan_name"`
	ScanURL       string `json:"scan_url,omitempty"`
	AlertName     string `json:"alert_name,omitempty"`
}

// Direction is the binary classification of an alert or recommendation.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == DirectionBuy {
		return DirectionSell
	}
	return DirectionBuy
}

// MapDirection collapses the wider scanner action vocabulary onto BUY/SELL.
func MapDirection(action string) Direction {
	switch action {
	case "BUY", "LONG_BUY":
		return DirectionBuy
	case "SELL", "SHORT_SELL", "EXIT", "SQUAREOFF_LONG", "COVER_SHORT":
		return DirectionSell
	default:
		return DirectionBuy
	}
}

// AlertEvent is one (symbol, price, timestamp) signal expanded from a RawAlert.
// Immutable after creation except for SinceDays, which is derived at
// persistence time.
type AlertEvent struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Symbol    string    `json:"symbol" gorm:"index;not null"`
	Price     float64   `json:"price"`
	AlertDate time.Time `json:"alert_date" gorm:"index"`
	ScanName  string    `json:"scan_name"`
	Direction Direction `json:"direction"`
	SinceDays int       `json:"since_days"`
	CreatedAt time.Time `json:"created_at"`
}

// Message renders the event in the notification channel format.
func (e AlertEvent) Message() string {
	return fmt.Sprintf("%s :: %s @ %.2f ON %s :: FOR :: %s",
		e.Direction, e.Symbol, e.Price, e.AlertDate.Format("2006-01-02 15:04"), e.ScanName)
}

// Candle is one OHLC bar, ordered oldest-first when in a slice.
type Candle struct {
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
	Time  time.Time `json:"time,omitempty"`
}
