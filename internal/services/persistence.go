package services

import (
	"context"
	"sort"
	"time"

	"github.com/algofinserve/stock-alerts/internal/models"
	"github.com/algofinserve/stock-alerts/internal/store"
	"go.uber.org/zap"
)

// AlertHandler receives each event after it has been durably stored. The
// recommendation engine implements it.
type AlertHandler interface {
	HandleAlert(ctx context.Context, ev models.AlertEvent) (*models.TradeRecommendation, error)
}

// BatchConsumer drains the persistence queue in size- and time-bounded
// batches. Bounded batching amortizes write cost under burst load while the
// initial blocking take keeps single-item latency low when idle.
type BatchConsumer struct {
	queue     <-chan models.AlertEvent
	store     store.Store
	handler   AlertHandler // optional
	batchSize int
	drainWait time.Duration
	logger    *zap.Logger
}

// NewBatchConsumer creates a consumer for the persistence queue. handler may
// be nil when recommendation generation is disabled.
func NewBatchConsumer(queue <-chan models.AlertEvent, st store.Store, handler AlertHandler, batchSize int, drainWait time.Duration, logger *zap.Logger) *BatchConsumer {
	return &BatchConsumer{
		queue:     queue,
		store:     st,
		handler:   handler,
		batchSize: batchSize,
		drainWait: drainWait,
		logger:    logger,
	}
}

// Run is the long-lived consumer loop. A batch write failure is logged and
// the loop moves on; nothing here is fatal to the process.
func (c *BatchConsumer) Run(ctx context.Context) {
	c.logger.Info("persistence consumer started",
		zap.Int("batch_size", c.batchSize), zap.Duration("drain_wait", c.drainWait))
	for {
		select {
		case <-ctx.Done():
			return
		case first := <-c.queue:
			batch := c.drain(first)
			if err := c.writeBatch(ctx, batch); err != nil {
				c.logger.Error("batch write failed, continuing with next batch",
					zap.Int("batch", len(batch)), zap.Error(err))
			}
		}
	}
}

// drain captures a burst: after the blocking take it polls with a short
// bound so a quiet queue never delays the batch.
func (c *BatchConsumer) drain(first models.AlertEvent) []models.AlertEvent {
	batch := []models.AlertEvent{first}
	for len(batch) < c.batchSize {
		select {
		case ev := <-c.queue:
			batch = append(batch, ev)
		case <-time.After(c.drainWait):
			return batch
		}
	}
	return batch
}

// writeBatch persists a batch in one transaction. Events are written oldest
// first so each since-days computation sees its earlier batch siblings in
// history, keeping per-symbol streaks consistent within a burst.
func (c *BatchConsumer) writeBatch(ctx context.Context, batch []models.AlertEvent) error {
	sort.Slice(batch, func(i, j int) bool {
		return batch[i].AlertDate.Before(batch[j].AlertDate)
	})

	err := c.store.Transaction(func(tx store.Store) error {
		for i := range batch {
			history, err := tx.AlertsBySymbol(batch[i].Symbol)
			if err != nil {
				return err
			}
			batch[i].SinceDays = SinceDays(history, batch[i])
			if err := tx.SaveAlert(&batch[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.logger.Debug("batch persisted", zap.Int("events", len(batch)))

	if c.handler != nil {
		for _, ev := range batch {
			if _, err := c.handler.HandleAlert(ctx, ev); err != nil {
				c.logger.Error("recommendation handling failed",
					zap.String("symbol", ev.Symbol), zap.Error(err))
			}
		}
	}
	return nil
}

// SinceDays computes the consecutive-day streak for ev against its persisted
// history (which excludes ev itself): the count of calendar days, walking
// backward from ev's day with the day itself included, in which only ev's
// direction alerted, minus one. A day with both directions or a gap day ends
// the streak.
func SinceDays(history []models.AlertEvent, ev models.AlertEvent) int {
	type daySummary struct {
		same, opposite bool
	}
	days := make(map[string]*daySummary)
	mark := func(e models.AlertEvent) {
		key := e.AlertDate.Format("2006-01-02")
		d, ok := days[key]
		if !ok {
			d = &daySummary{}
			days[key] = d
		}
		if e.Direction == ev.Direction {
			d.same = true
		} else {
			d.opposite = true
		}
	}
	for _, e := range history {
		mark(e)
	}
	mark(ev)

	streak := 0
	for day := ev.AlertDate; ; day = day.AddDate(0, 0, -1) {
		d, ok := days[day.Format("2006-01-02")]
		if !ok || !d.same || d.opposite {
			break
		}
		streak++
	}

	if streak <= 1 {
		return 0
	}
	return streak - 1
}

// RecomputeSinceDays rewrites the streak field for every stored event, each
// computed against history strictly older than the event. Maintenance
// operation; used after policy changes or backfills.
func (c *BatchConsumer) RecomputeSinceDays() error {
	all, err := c.store.AllAlerts()
	if err != nil {
		return err
	}

	bySymbol := make(map[string][]models.AlertEvent)
	for _, ev := range all {
		bySymbol[ev.Symbol] = append(bySymbol[ev.Symbol], ev)
	}

	for _, events := range bySymbol {
		// AllAlerts returns oldest first; history for event i is events[:i].
		for i, ev := range events {
			sinceDays := SinceDays(events[:i], ev)
			if sinceDays == ev.SinceDays {
				continue
			}
			if err := c.store.UpdateSinceDays(ev.ID, sinceDays); err != nil {
				return err
			}
		}
	}

	c.logger.Info("since-days recomputed", zap.Int("events", len(all)))
	return nil
}
