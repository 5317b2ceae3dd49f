package messaging

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const defaultAPIBase = "https://api.telegram.org"

var retryAfterPattern = regexp.MustCompile(`"retry_after":(\d+)`)

// Stats counts terminal send outcomes across a sender pool.
type Stats struct {
	success atomic.Int64
	failed  atomic.Int64
}

// Success returns the number of messages confirmed delivered.
func (s *Stats) Success() int64 { return s.success.Load() }

// Failed returns the number of messages dropped after retry.
func (s *Stats) Failed() int64 { return s.failed.Load() }

// Sender delivers one text message to one chat, rotating round-robin among
// interchangeable bot tokens to spread load across per-token rate limits.
type Sender struct {
	client   *resty.Client
	apiBase  string
	tokens   []string
	tokenIdx *atomic.Uint64 // shared across the pool so rotation is global
	stats    *Stats
	logger   *zap.Logger

	// retryWait sleeps before the rate-limit retry; swapped out in tests.
	retryWait func(d time.Duration)
}

// NewSender creates a sender over the given tokens. tokenIdx and stats are
// shared by all senders in a pool.
func NewSender(apiBase string, tokens []string, tokenIdx *atomic.Uint64, stats *Stats, logger *zap.Logger) *Sender {
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	return &Sender{
		client:    resty.New().SetTimeout(10 * time.Second),
		apiBase:   apiBase,
		tokens:    tokens,
		tokenIdx:  tokenIdx,
		stats:     stats,
		logger:    logger,
		retryWait: time.Sleep,
	}
}

func (s *Sender) nextToken() string {
	idx := s.tokenIdx.Add(1) - 1
	return s.tokens[idx%uint64(len(s.tokens))]
}

// Send posts text to chatID, retrying exactly once with the next credential on
// rate-limit or transient failure. Returns whether delivery was confirmed.
func (s *Sender) Send(chatID, text string) bool {
	status, retryAfter, err := s.post(s.nextToken(), chatID, text)
	if err == nil && status == http.StatusOK {
		s.stats.success.Add(1)
		return true
	}

	if status == http.StatusTooManyRequests {
		s.logger.Info("telegram rate limited, retrying",
			zap.String("chat_id", chatID), zap.Int("retry_after_s", retryAfter))
		s.retryWait(time.Duration(retryAfter) * time.Second)
	} else {
		s.logger.Warn("telegram send failed, retrying with next credential",
			zap.String("chat_id", chatID), zap.Int("status", status), zap.Error(err))
	}

	status, _, err = s.post(s.nextToken(), chatID, text)
	if err == nil && status == http.StatusOK {
		s.stats.success.Add(1)
		return true
	}

	// No further retries: the message is counted and dropped to bound memory.
	s.stats.failed.Add(1)
	s.logger.Error("telegram send failed after retry",
		zap.String("chat_id", chatID), zap.Int("status", status), zap.Error(err))
	return false
}

// post issues one sendMessage call and classifies the result. retryAfter is
// only meaningful on a 429 response and defaults to one second.
func (s *Sender) post(token, chatID, text string) (status, retryAfter int, err error) {
	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, token)
	resp, err := s.client.R().
		SetFormData(map[string]string{
			"chat_id": chatID,
			"text":    text,
		}).
		Post(url)
	if err != nil {
		return 0, 1, fmt.Errorf("telegram API request failed: %w", err)
	}

	status = resp.StatusCode()
	if status == http.StatusTooManyRequests {
		return status, extractRetryAfter(resp.String()), nil
	}
	if status != http.StatusOK {
		return status, 1, fmt.Errorf("telegram API returned status %d: %s", status, resp.String())
	}
	return status, 0, nil
}

func extractRetryAfter(body string) int {
	m := retryAfterPattern.FindStringSubmatch(body)
	if m == nil {
		return 1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 1
	}
	return n
}
