package messaging

import (
	"errors"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// SenderPool load-balances submissions round-robin over a fixed set of
// senders. Several concurrent senders with rotated credentials raise
// effective throughput without violating any single token's rate limit.
type SenderPool struct {
	senders []*Sender
	rr      atomic.Uint64
	stats   *Stats
	logger  *zap.Logger
}

// NewSenderPool builds a pool of size max(3, NumCPU) unless size is given.
// At least one token is required; token rotation has nothing to rotate over
// otherwise.
func NewSenderPool(apiBase string, tokens []string, size int, logger *zap.Logger) (*SenderPool, error) {
	if len(tokens) == 0 {
		return nil, errors.New("no telegram tokens configured")
	}
	if size <= 0 {
		size = runtime.NumCPU()
		if size < 3 {
			size = 3
		}
	}

	stats := &Stats{}
	tokenIdx := &atomic.Uint64{}
	senders := make([]*Sender, size)
	for i := range senders {
		senders[i] = NewSender(apiBase, tokens, tokenIdx, stats, logger)
	}

	return &SenderPool{
		senders: senders,
		stats:   stats,
		logger:  logger,
	}, nil
}

// Stats exposes the pool's delivery counters.
func (p *SenderPool) Stats() *Stats { return p.stats }

func (p *SenderPool) next() *Sender {
	idx := p.rr.Add(1) - 1
	return p.senders[idx%uint64(len(p.senders))]
}

// SendAsync submits fire-and-forget.
func (p *SenderPool) SendAsync(chatID, text string) {
	s := p.next()
	go s.Send(chatID, text)
}

// SendAndWait blocks the caller up to timeout. On timeout it returns false
// while the underlying send keeps running in the background; the message is
// never dropped and never duplicated, only the returned status is
// approximate.
func (p *SenderPool) SendAndWait(chatID, text string, timeout time.Duration) bool {
	s := p.next()
	done := make(chan bool, 1)
	go func() {
		done <- s.Send(chatID, text)
	}()

	select {
	case ok := <-done:
		return ok
	case <-time.After(timeout):
		p.logger.Warn("send wait timed out, delivery continues in background",
			zap.String("chat_id", chatID))
		return false
	}
}
