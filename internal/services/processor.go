package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/algofinserve/stock-alerts/internal/messaging"
	"github.com/algofinserve/stock-alerts/internal/models"
	"go.uber.org/zap"
)

// Notifier enqueues a formatted message onto a channel's lane. The messaging
// dispatcher is the production implementation.
type Notifier interface {
	Enqueue(c messaging.Channel, text string)
}

// Processor expands one RawAlert into per-symbol events and fans each out to
// the persistence queue and the notification lane for its channel. Enqueues
// block when a queue is full; an overloaded consumer slows its own producers
// rather than growing memory unboundedly.
type Processor struct {
	index      *AlertIndex
	dbQueue    chan<- models.AlertEvent
	dispatcher Notifier
	logger     *zap.Logger

	// now is swapped out in tests to pin the derived date.
	now func() time.Time
}

// NewProcessor creates a fan-out processor over the given queues and index.
func NewProcessor(index *AlertIndex, dbQueue chan<- models.AlertEvent, dispatcher Notifier, logger *zap.Logger) *Processor {
	return &Processor{
		index:      index,
		dbQueue:    dbQueue,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// Process expands raw into one AlertEvent per symbol. A malformed time field
// or mismatched stock/price lists fails the whole alert; the ingestion
// boundary surfaces the error synchronously and nothing is enqueued.
func (p *Processor) Process(raw models.RawAlert, direction models.Direction, eod bool) error {
	events, err := p.expand(raw, direction)
	if err != nil {
		return err
	}

	channel := messaging.ChannelFor(direction, eod)
	for _, ev := range events {
		repeat := p.index.Append(ev)

		text := ev.Message()
		// Repeat marker is presentation-only; persistence and
		// recommendations see the event unchanged.
		if repeat {
			text = "R::" + text
		}
		p.dispatcher.Enqueue(channel, text)
		p.dbQueue <- ev
	}

	p.logger.Info("alert fanned out",
		zap.String("scan", raw.ScanName),
		zap.String("direction", string(direction)),
		zap.Bool("eod", eod),
		zap.Int("symbols", len(events)))
	return nil
}

// expand validates the parallel lists and builds the per-symbol events.
func (p *Processor) expand(raw models.RawAlert, direction models.Direction) ([]models.AlertEvent, error) {
	symbols := splitList(raw.Stocks)
	prices := splitList(raw.TriggerPrices)
	if len(symbols) == 0 {
		return nil, fmt.Errorf("alert has no stocks")
	}
	if len(symbols) != len(prices) {
		return nil, fmt.Errorf("stocks/trigger_prices length mismatch: %d vs %d", len(symbols), len(prices))
	}

	triggeredAt, err := ParseTriggerTime(raw.TriggeredAt, p.now())
	if err != nil {
		return nil, fmt.Errorf("bad triggered_at %q: %w", raw.TriggeredAt, err)
	}

	events := make([]models.AlertEvent, 0, len(symbols))
	for i, symbol := range symbols {
		price, err := strconv.ParseFloat(prices[i], 64)
		if err != nil {
			return nil, fmt.Errorf("bad trigger price %q for %s: %w", prices[i], symbol, err)
		}
		events = append(events, models.AlertEvent{
			Symbol:    symbol,
			Price:     price,
			AlertDate: triggeredAt,
			ScanName:  raw.ScanName,
			Direction: direction,
		})
	}
	return events, nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// ParseTriggerTime parses the scanner's free-text "H:MM am/pm" clock against
// the reference date. "12:05 pm" is hour 12, "12:05 am" is hour 0.
func ParseTriggerTime(s string, ref time.Time) (time.Time, error) {
	clock, err := time.Parse("3:04 pm", strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(ref.Year(), ref.Month(), ref.Day(),
		clock.Hour(), clock.Minute(), 0, 0, ref.Location()), nil
}
