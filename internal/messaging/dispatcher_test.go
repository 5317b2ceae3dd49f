package messaging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/algofinserve/stock-alerts/internal/models"
)

func TestChannelFor(t *testing.T) {
	assert.Equal(t, ChannelBuy, ChannelFor(models.DirectionBuy, false))
	assert.Equal(t, ChannelSell, ChannelFor(models.DirectionSell, false))
	assert.Equal(t, ChannelBuyEOD, ChannelFor(models.DirectionBuy, true))
	assert.Equal(t, ChannelSellEOD, ChannelFor(models.DirectionSell, true))
}

func testChats() map[Channel]string {
	return map[Channel]string{
		ChannelBuy:     "@buy",
		ChannelSell:    "@sell",
		ChannelBuyEOD:  "@buy_eod",
		ChannelSellEOD: "@sell_eod",
	}
}

func TestEnqueueBackpressure(t *testing.T) {
	pool, err := NewSenderPool("", []string{"tok"}, 1, zap.NewNop())
	require.NoError(t, err)
	d := NewDispatcher(pool, testChats(), 1, 1, zap.NewNop())

	// First enqueue fills the buy lane, second must block.
	d.Enqueue(ChannelBuy, "first")

	blocked := make(chan struct{})
	go func() {
		d.Enqueue(ChannelBuy, "second")
		close(blocked)
	}()

	select {
	case <-blocked:
		t.Fatal("enqueue on a full lane should block")
	case <-time.After(50 * time.Millisecond):
	}

	// A stalled lane must not affect its siblings.
	done := make(chan struct{})
	go func() {
		d.Enqueue(ChannelSell, "independent")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sell lane should accept while buy lane is full")
	}

	// Draining one message unblocks the producer.
	assert.Equal(t, "first", <-d.lanes[ChannelBuy].queue)
	select {
	case <-blocked:
	case <-time.After(time.Second):
		t.Fatal("enqueue should resume after the lane drains")
	}
}

func TestDispatcherDelivers(t *testing.T) {
	var mu sync.Mutex
	got := map[string][]string{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		mu.Lock()
		got[r.FormValue("chat_id")] = append(got[r.FormValue("chat_id")], r.FormValue("text"))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := NewSenderPool(server.URL, []string{"tok"}, 2, zap.NewNop())
	require.NoError(t, err)
	d := NewDispatcher(pool, testChats(), 10, 10, zap.NewNop())
	d.Start(ctx)

	d.Enqueue(ChannelBuy, "BUY :: TCS @ 3500.00")
	d.Enqueue(ChannelSellEOD, "SELL :: INFY @ 1500.00")

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got["@buy"]) == 1 && len(got["@sell_eod"]) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"BUY :: TCS @ 3500.00"}, got["@buy"])
	assert.Equal(t, []string{"SELL :: INFY @ 1500.00"}, got["@sell_eod"])
}
