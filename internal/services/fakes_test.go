package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/algofinserve/stock-alerts/internal/messaging"
	"github.com/algofinserve/stock-alerts/internal/models"
	"github.com/algofinserve/stock-alerts/internal/store"
)

// fakeStore is an in-memory store.Store for service tests.
type fakeStore struct {
	mu     sync.Mutex
	alerts []models.AlertEvent
	recs   []models.TradeRecommendation

	nextAlertID uint
	nextRecID   uint
}

func newFakeStore() *fakeStore { return &fakeStore{} }

func (f *fakeStore) SaveAlert(ev *models.AlertEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ev.ID == 0 {
		f.nextAlertID++
		ev.ID = f.nextAlertID
		ev.CreatedAt = time.Now()
		f.alerts = append(f.alerts, *ev)
		return nil
	}
	for i := range f.alerts {
		if f.alerts[i].ID == ev.ID {
			f.alerts[i] = *ev
			return nil
		}
	}
	f.alerts = append(f.alerts, *ev)
	return nil
}

func (f *fakeStore) AlertsBySymbol(symbol string) ([]models.AlertEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AlertEvent
	for _, ev := range f.alerts {
		if ev.Symbol == symbol {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AlertDate.After(out[j].AlertDate) })
	return out, nil
}

func (f *fakeStore) RecentAlerts(limit, offset int) ([]models.AlertEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.AlertEvent, len(f.alerts))
	copy(out, f.alerts)
	sort.Slice(out, func(i, j int) bool { return out[i].AlertDate.After(out[j].AlertDate) })
	if offset < len(out) {
		out = out[offset:]
	} else {
		out = nil
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) StockHistory(symbol string, days, limit int) ([]models.AlertEvent, error) {
	events, _ := f.AlertsBySymbol(symbol)
	if days > 0 {
		after := time.Now().AddDate(0, 0, -days)
		var kept []models.AlertEvent
		for _, ev := range events {
			if ev.AlertDate.After(after) {
				kept = append(kept, ev)
			}
		}
		events = kept
	}
	if limit > 0 && limit < len(events) {
		events = events[:limit]
	}
	return events, nil
}

func (f *fakeStore) AllAlerts() ([]models.AlertEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.AlertEvent, len(f.alerts))
	copy(out, f.alerts)
	sort.Slice(out, func(i, j int) bool { return out[i].AlertDate.Before(out[j].AlertDate) })
	return out, nil
}

func (f *fakeStore) UpdateSinceDays(id uint, sinceDays int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.alerts {
		if f.alerts[i].ID == id {
			f.alerts[i].SinceDays = sinceDays
			return nil
		}
	}
	return nil
}

func (f *fakeStore) SaveRecommendation(rec *models.TradeRecommendation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec.ID == 0 {
		f.nextRecID++
		rec.ID = f.nextRecID
		rec.CreatedAt = time.Now()
		f.recs = append(f.recs, *rec)
		return nil
	}
	for i := range f.recs {
		if f.recs[i].ID == rec.ID {
			f.recs[i] = *rec
			return nil
		}
	}
	f.recs = append(f.recs, *rec)
	return nil
}

func (f *fakeStore) RecommendationByID(id uint) (*models.TradeRecommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.recs {
		if rec.ID == id {
			r := rec
			return &r, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ActiveRecommendation(symbol string, dir models.Direction, d models.TradeDuration) (*models.TradeRecommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.recs {
		if rec.Symbol == symbol && rec.Direction == dir && rec.TradeDuration == d && rec.Status == models.StatusActive {
			r := rec
			return &r, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ActiveRecommendations(symbol string) ([]models.TradeRecommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.TradeRecommendation
	for _, rec := range f.recs {
		if rec.Status != models.StatusActive {
			continue
		}
		if symbol != "" && rec.Symbol != symbol {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeStore) Transaction(fn func(store.Store) error) error {
	return fn(f)
}

// fakeMarket is a configurable marketdata.Provider.
type fakeMarket struct {
	prevLow  float64
	prevHigh float64
	price    float64
	candles  []models.Candle

	lowErr     error
	highErr    error
	priceErr   error
	candlesErr error
}

func (m *fakeMarket) PrevCandleLow(ctx context.Context, symbol, timeframe string) (float64, error) {
	return m.prevLow, m.lowErr
}

func (m *fakeMarket) PrevCandleHigh(ctx context.Context, symbol, timeframe string) (float64, error) {
	return m.prevHigh, m.highErr
}

func (m *fakeMarket) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	return m.price, m.priceErr
}

func (m *fakeMarket) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	return m.candles, m.candlesErr
}

// fakeNotifier records enqueued messages in order.
type fakeNotifier struct {
	mu       sync.Mutex
	channels []messaging.Channel
	texts    []string
}

func (n *fakeNotifier) Enqueue(c messaging.Channel, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.channels = append(n.channels, c)
	n.texts = append(n.texts, text)
}
