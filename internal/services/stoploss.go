package services

import (
	"context"
	"fmt"
	"time"

	"github.com/algofinserve/stock-alerts/internal/marketdata"
	"github.com/algofinserve/stock-alerts/internal/models"
	"github.com/algofinserve/stock-alerts/internal/store"
	"go.uber.org/zap"
)

// StoplossMonitorConfig configures the periodic breach check.
type StoplossMonitorConfig struct {
	Interval      time.Duration
	ForceRun      bool // ignore market hours; used for testing
	MarketOpen    string
	MarketClose   string
	SymbolTimeout time.Duration
}

// StoplossMonitor periodically re-evaluates every ACTIVE recommendation's
// stoploss against the latest price and closes breached ones.
type StoplossMonitor struct {
	store  store.Store
	market marketdata.Provider
	engine *RecommendationEngine
	cfg    StoplossMonitorConfig
	logger *zap.Logger

	openMinutes  int
	closeMinutes int

	now func() time.Time
}

// NewStoplossMonitor creates a monitor over the given collaborators. The
// market window is validated here; a window the loop cannot interpret must
// not silently disable the gate.
func NewStoplossMonitor(st store.Store, market marketdata.Provider, engine *RecommendationEngine, cfg StoplossMonitorConfig, logger *zap.Logger) (*StoplossMonitor, error) {
	open, err := time.Parse("15:04", cfg.MarketOpen)
	if err != nil {
		return nil, fmt.Errorf("invalid market open %q: %w", cfg.MarketOpen, err)
	}
	closeAt, err := time.Parse("15:04", cfg.MarketClose)
	if err != nil {
		return nil, fmt.Errorf("invalid market close %q: %w", cfg.MarketClose, err)
	}

	return &StoplossMonitor{
		store:        st,
		market:       market,
		engine:       engine,
		cfg:          cfg,
		logger:       logger,
		openMinutes:  open.Hour()*60 + open.Minute(),
		closeMinutes: closeAt.Hour()*60 + closeAt.Minute(),
		now:          time.Now,
	}, nil
}

// Run is the long-lived monitor loop, gated to market hours unless forced.
func (m *StoplossMonitor) Run(ctx context.Context) {
	m.logger.Info("stoploss monitor started",
		zap.Duration("interval", m.cfg.Interval), zap.Bool("force_run", m.cfg.ForceRun))

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !m.cfg.ForceRun && !m.inMarketHours(m.now()) {
				continue
			}
			m.runCycle(ctx)
		}
	}
}

func (m *StoplossMonitor) runCycle(ctx context.Context) {
	recs, err := m.store.ActiveRecommendations("")
	if err != nil {
		m.logger.Error("failed to load active recommendations", zap.Error(err))
		return
	}

	for _, rec := range recs {
		m.checkBreach(ctx, rec)
	}
}

// CheckSymbol performs the breach check for one symbol outside the schedule.
func (m *StoplossMonitor) CheckSymbol(ctx context.Context, symbol string) error {
	recs, err := m.store.ActiveRecommendations(symbol)
	if err != nil {
		return fmt.Errorf("failed to load recommendations for %s: %w", symbol, err)
	}

	m.logger.Info("manual stoploss check",
		zap.String("symbol", symbol), zap.Int("active", len(recs)))
	for _, rec := range recs {
		m.checkBreach(ctx, rec)
	}
	return nil
}

// checkBreach fetches the current price under a per-symbol timeout so one
// hung fetch cannot stall the whole cycle. Missing price data means no breach
// this cycle; the next cycle re-checks.
func (m *StoplossMonitor) checkBreach(ctx context.Context, rec models.TradeRecommendation) {
	fetchCtx, cancel := context.WithTimeout(ctx, m.cfg.SymbolTimeout)
	defer cancel()

	price, err := m.market.CurrentPrice(fetchCtx, rec.Symbol)
	if err != nil {
		m.logger.Warn("price unavailable, skipping this cycle",
			zap.String("symbol", rec.Symbol), zap.Error(err))
		return
	}

	var breached bool
	if rec.Direction == models.DirectionBuy {
		breached = price <= rec.Stoploss1
	} else {
		breached = price >= rec.Stoploss1
	}
	if !breached {
		return
	}

	m.logger.Info("stoploss breached",
		zap.Uint("id", rec.ID),
		zap.String("symbol", rec.Symbol),
		zap.String("direction", string(rec.Direction)),
		zap.Float64("price", price),
		zap.Float64("stoploss", rec.Stoploss1))

	if err := m.engine.CloseRecommendation(rec.ID, models.CloseStoplossHit); err != nil {
		m.logger.Error("failed to close breached recommendation",
			zap.Uint("id", rec.ID), zap.Error(err))
	}
}

// inMarketHours reports whether t falls inside the configured local-time
// window, boundaries included.
func (m *StoplossMonitor) inMarketHours(t time.Time) bool {
	minutes := t.Hour()*60 + t.Minute()
	return minutes >= m.openMinutes && minutes <= m.closeMinutes
}
