package messaging

import (
	"context"
	"time"

	"github.com/algofinserve/stock-alerts/internal/models"
	"go.uber.org/zap"
)

// Channel identifies a logical notification channel, each bound to one chat.
type Channel string

const (
	ChannelBuy     Channel = "buy"
	ChannelSell    Channel = "sell"
	ChannelBuyEOD  Channel = "buy_eod"
	ChannelSellEOD Channel = "sell_eod"
)

// ChannelFor maps an alert's direction and urgency onto its channel.
func ChannelFor(direction models.Direction, eod bool) Channel {
	switch {
	case direction == models.DirectionBuy && eod:
		return ChannelBuyEOD
	case direction == models.DirectionBuy:
		return ChannelBuy
	case eod:
		return ChannelSellEOD
	default:
		return ChannelSell
	}
}

const sendWait = 5 * time.Second

type lane struct {
	chatID string
	queue  chan string
}

// Dispatcher owns one bounded text queue and one consumer loop per channel.
// Lanes are fully independent: a rate-limited destination stalls only its own
// queue, applying backpressure to producers of that channel alone.
type Dispatcher struct {
	lanes  map[Channel]*lane
	pool   *SenderPool
	logger *zap.Logger
}

// NewDispatcher builds the four lanes with their configured chat ids and
// queue capacities.
func NewDispatcher(pool *SenderPool, chats map[Channel]string, capacity, capacityEOD int, logger *zap.Logger) *Dispatcher {
	capFor := func(c Channel) int {
		if c == ChannelBuyEOD || c == ChannelSellEOD {
			return capacityEOD
		}
		return capacity
	}

	lanes := make(map[Channel]*lane, len(chats))
	for c, chatID := range chats {
		lanes[c] = &lane{chatID: chatID, queue: make(chan string, capFor(c))}
	}

	return &Dispatcher{lanes: lanes, pool: pool, logger: logger}
}

// Start launches one consumer goroutine per lane. Loops run until ctx is
// cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for c, l := range d.lanes {
		go d.run(ctx, c, l)
	}
	d.logger.Info("messaging dispatcher started", zap.Int("lanes", len(d.lanes)))
}

// Enqueue blocks once the channel's queue is full; this is the intended
// backpressure on the producer.
func (d *Dispatcher) Enqueue(c Channel, text string) {
	l, ok := d.lanes[c]
	if !ok {
		d.logger.Error("unknown notification channel", zap.String("channel", string(c)))
		return
	}
	l.queue <- text
}

func (d *Dispatcher) run(ctx context.Context, c Channel, l *lane) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-l.queue:
			if !d.pool.SendAndWait(l.chatID, msg, sendWait) {
				d.logger.Warn("lane send not confirmed",
					zap.String("channel", string(c)), zap.String("chat_id", l.chatID))
			}
		}
	}
}
