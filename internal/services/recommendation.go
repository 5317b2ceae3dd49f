package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/algofinserve/stock-alerts/internal/indicator"
	"github.com/algofinserve/stock-alerts/internal/marketdata"
	"github.com/algofinserve/stock-alerts/internal/models"
	"github.com/algofinserve/stock-alerts/internal/store"
	"go.uber.org/zap"
)

const (
	ruleVersion          = "v1-supertrend-75low"
	defaultExchange      = "NSE"
	supertrendATRPeriod  = 11
	supertrendMultiplier = 20.0
	supertrendTimeframe  = "15m"
	supertrendCandles    = 50
	stoplossTimeframe    = "75m"
	fallbackStopPct      = 0.02
)

// keyedMutex serializes work per string key. It guards the
// lookup-close-create window so two concurrent alerts for the same
// (symbol, direction-agnostic key) cannot both pass the existence check.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// RecommendationEngine turns persisted alert events into deduplicated trade
// recommendations with indicator-derived stoploss and target levels.
type RecommendationEngine struct {
	store  store.Store
	market marketdata.Provider
	logger *zap.Logger
	keys   keyedMutex
}

// NewRecommendationEngine creates an engine over the given collaborators.
func NewRecommendationEngine(st store.Store, market marketdata.Provider, logger *zap.Logger) *RecommendationEngine {
	return &RecommendationEngine{
		store:  st,
		market: market,
		logger: logger,
	}
}

type calculation struct {
	Stoploss   float64  `json:"stoploss"`
	Target1    float64  `json:"target1"`
	Target2    float64  `json:"target2"`
	Target3    float64  `json:"target3"`
	Risk       float64  `json:"risk"`
	PrevLow    *float64 `json:"prev_low"`
	PrevHigh   *float64 `json:"prev_high"`
	Supertrend *float64 `json:"supertrend"`
	Degraded   bool     `json:"degraded,omitempty"`
}

// HandleAlert is idempotent per (symbol, direction, duration): a repeat
// same-direction signal returns the existing ACTIVE recommendation. An
// opposite-direction signal closes the opposing record before creating the
// new one. Indicator failures degrade to a fallback stoploss; a
// recommendation is always produced for a valid alert.
func (e *RecommendationEngine) HandleAlert(ctx context.Context, ev models.AlertEvent) (*models.TradeRecommendation, error) {
	direction := models.MapDirection(string(ev.Direction))
	duration := models.TradeDurationFromScanName(ev.ScanName)

	unlock := e.keys.lock(fmt.Sprintf("%s|%s", ev.Symbol, duration))
	defer unlock()

	existing, err := e.store.ActiveRecommendation(ev.Symbol, direction, duration)
	if err != nil {
		return nil, fmt.Errorf("active recommendation lookup failed: %w", err)
	}
	if existing != nil {
		e.logger.Info("active recommendation exists, reusing",
			zap.String("symbol", ev.Symbol),
			zap.String("direction", string(direction)),
			zap.String("duration", string(duration)))
		return existing, nil
	}

	if err := e.closeOpposite(ev.Symbol, direction, duration); err != nil {
		return nil, err
	}

	calc := e.calculate(ctx, ev.Symbol, ev.Price, direction)
	metadata, _ := json.Marshal(calc)

	rec := &models.TradeRecommendation{
		Symbol:        ev.Symbol,
		Exchange:      defaultExchange,
		Direction:     direction,
		TradeDuration: duration,
		Timeframe:     duration.Timeframe(),
		EntryPrice:    ev.Price,
		Target1:       calc.Target1,
		Target2:       calc.Target2,
		Target3:       calc.Target3,
		Stoploss1:     calc.Stoploss,
		Stoploss2:     calc.Stoploss,
		HardStoploss:  calc.Stoploss,
		Status:        models.StatusActive,
		RuleVersion:   ruleVersion,
		Metadata:      metadata,
	}
	if err := e.store.SaveRecommendation(rec); err != nil {
		return nil, fmt.Errorf("failed to save recommendation: %w", err)
	}

	e.logger.Info("trade recommendation created",
		zap.Uint("id", rec.ID),
		zap.String("symbol", rec.Symbol),
		zap.String("direction", string(direction)),
		zap.String("duration", string(duration)),
		zap.Float64("entry", rec.EntryPrice),
		zap.Float64("stoploss", rec.Stoploss1))
	return rec, nil
}

func (e *RecommendationEngine) closeOpposite(symbol string, direction models.Direction, duration models.TradeDuration) error {
	opposite, err := e.store.ActiveRecommendation(symbol, direction.Opposite(), duration)
	if err != nil {
		return fmt.Errorf("opposite recommendation lookup failed: %w", err)
	}
	if opposite == nil {
		return nil
	}

	now := time.Now()
	opposite.Status = models.StatusClosed
	opposite.CloseReason = models.CloseOppositeSignal
	opposite.ClosedAt = &now
	if err := e.store.SaveRecommendation(opposite); err != nil {
		return fmt.Errorf("failed to close opposite recommendation: %w", err)
	}

	e.logger.Info("closed opposite recommendation",
		zap.Uint("id", opposite.ID),
		zap.String("symbol", symbol),
		zap.String("direction", string(direction.Opposite())),
		zap.String("duration", string(duration)))
	return nil
}

// calculate derives stoploss and targets. BUY stop is
// min(prev 75m low, Supertrend(11,20) on 15m); SELL mirrors with max and the
// prev high. Missing indicators fall back to 2% off the alert price.
func (e *RecommendationEngine) calculate(ctx context.Context, symbol string, entry float64, direction models.Direction) calculation {
	calc := calculation{}

	if low, err := e.market.PrevCandleLow(ctx, symbol, stoplossTimeframe); err == nil {
		calc.PrevLow = &low
	} else {
		e.logger.Warn("prev candle low unavailable", zap.String("symbol", symbol), zap.Error(err))
	}
	if high, err := e.market.PrevCandleHigh(ctx, symbol, stoplossTimeframe); err == nil {
		calc.PrevHigh = &high
	} else {
		e.logger.Warn("prev candle high unavailable", zap.String("symbol", symbol), zap.Error(err))
	}
	if candles, err := e.market.Candles(ctx, symbol, supertrendTimeframe, supertrendCandles); err == nil {
		if st, ok := indicator.Supertrend(candles, supertrendATRPeriod, supertrendMultiplier); ok {
			calc.Supertrend = &st
		}
	} else {
		e.logger.Warn("supertrend candles unavailable", zap.String("symbol", symbol), zap.Error(err))
	}

	if direction == models.DirectionBuy {
		switch {
		case calc.PrevLow != nil && calc.Supertrend != nil:
			calc.Stoploss = min(*calc.PrevLow, *calc.Supertrend)
		case calc.PrevLow != nil:
			calc.Stoploss = *calc.PrevLow
		case calc.Supertrend != nil:
			calc.Stoploss = *calc.Supertrend
		default:
			calc.Stoploss = entry * (1 - fallbackStopPct)
			calc.Degraded = true
		}
	} else {
		switch {
		case calc.PrevHigh != nil && calc.Supertrend != nil:
			calc.Stoploss = max(*calc.PrevHigh, *calc.Supertrend)
		case calc.PrevHigh != nil:
			calc.Stoploss = *calc.PrevHigh
		case calc.Supertrend != nil:
			calc.Stoploss = *calc.Supertrend
		default:
			calc.Stoploss = entry * (1 + fallbackStopPct)
			calc.Degraded = true
		}
	}
	if calc.Degraded {
		e.logger.Warn("using fallback stoploss",
			zap.String("symbol", symbol),
			zap.String("direction", string(direction)),
			zap.Float64("stoploss", calc.Stoploss))
	}

	calc.Risk = math.Abs(entry - calc.Stoploss)
	if direction == models.DirectionBuy {
		calc.Target1 = entry + calc.Risk*1.25
		calc.Target2 = entry + calc.Risk*1.5
		calc.Target3 = entry + calc.Risk*2.0
	} else {
		calc.Target1 = entry - calc.Risk*1.25
		calc.Target2 = entry - calc.Risk*1.5
		calc.Target3 = entry - calc.Risk*2.0
	}
	return calc
}

// ActiveRecommendations lists ACTIVE records, optionally for one symbol.
func (e *RecommendationEngine) ActiveRecommendations(symbol string) ([]models.TradeRecommendation, error) {
	return e.store.ActiveRecommendations(symbol)
}

// CloseRecommendation closes one recommendation with the given reason.
// Closing an unknown or already-closed id is a no-op.
func (e *RecommendationEngine) CloseRecommendation(id uint, reason models.CloseReason) error {
	rec, err := e.store.RecommendationByID(id)
	if err != nil {
		return err
	}
	if rec == nil || rec.Status == models.StatusClosed {
		return nil
	}

	now := time.Now()
	rec.Status = models.StatusClosed
	rec.CloseReason = reason
	rec.ClosedAt = &now
	if err := e.store.SaveRecommendation(rec); err != nil {
		return fmt.Errorf("failed to close recommendation %d: %w", id, err)
	}

	e.logger.Info("recommendation closed",
		zap.Uint("id", id), zap.String("reason", string(reason)))
	return nil
}
