package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/algofinserve/stock-alerts/internal/models"
)

var baseDay = time.Date(2025, 3, 10, 10, 0, 0, 0, time.Local)

func eventOnDay(symbol string, dayOffset int, dir models.Direction) models.AlertEvent {
	return models.AlertEvent{
		Symbol:    symbol,
		Price:     100,
		AlertDate: baseDay.AddDate(0, 0, dayOffset),
		ScanName:  "Intraday Breakout",
		Direction: dir,
	}
}

func TestSinceDays(t *testing.T) {
	t.Run("first alert has no streak", func(t *testing.T) {
		assert.Equal(t, 0, SinceDays(nil, eventOnDay("TCS", 0, models.DirectionBuy)))
	})

	t.Run("three consecutive same-direction days", func(t *testing.T) {
		history := []models.AlertEvent{
			eventOnDay("TCS", 1, models.DirectionBuy),
			eventOnDay("TCS", 0, models.DirectionBuy),
		}
		assert.Equal(t, 2, SinceDays(history, eventOnDay("TCS", 2, models.DirectionBuy)))
	})

	t.Run("multiple alerts on one day count once", func(t *testing.T) {
		history := []models.AlertEvent{
			eventOnDay("TCS", 1, models.DirectionBuy),
			eventOnDay("TCS", 1, models.DirectionBuy),
			eventOnDay("TCS", 0, models.DirectionBuy),
		}
		assert.Equal(t, 2, SinceDays(history, eventOnDay("TCS", 2, models.DirectionBuy)))
	})

	t.Run("opposite direction on the same day breaks the streak", func(t *testing.T) {
		history := []models.AlertEvent{
			eventOnDay("TCS", 1, models.DirectionBuy),
			eventOnDay("TCS", 2, models.DirectionSell),
		}
		assert.Equal(t, 0, SinceDays(history, eventOnDay("TCS", 2, models.DirectionBuy)))
	})

	t.Run("gap day terminates the streak", func(t *testing.T) {
		history := []models.AlertEvent{
			eventOnDay("TCS", 0, models.DirectionBuy),
		}
		assert.Equal(t, 0, SinceDays(history, eventOnDay("TCS", 2, models.DirectionBuy)))
	})

	t.Run("streak resets after a direction flip day", func(t *testing.T) {
		history := []models.AlertEvent{
			eventOnDay("TCS", 0, models.DirectionBuy),
			eventOnDay("TCS", 1, models.DirectionSell),
			eventOnDay("TCS", 2, models.DirectionBuy),
		}
		// Day 1 had only SELL, so the BUY streak at day 3 is days 2-3 only.
		assert.Equal(t, 1, SinceDays(history, eventOnDay("TCS", 3, models.DirectionBuy)))
	})
}

func TestWriteBatch(t *testing.T) {
	t.Run("burst over several days stores incremental streaks", func(t *testing.T) {
		st := newFakeStore()
		c := NewBatchConsumer(nil, st, nil, 50, time.Millisecond, zap.NewNop())

		// Deliberately out of order; the batch is sorted before writing so
		// each event sees its earlier siblings as history.
		batch := []models.AlertEvent{
			eventOnDay("TCS", 2, models.DirectionBuy),
			eventOnDay("TCS", 0, models.DirectionBuy),
			eventOnDay("TCS", 1, models.DirectionBuy),
		}
		require.NoError(t, c.writeBatch(context.Background(), batch))

		all, err := st.AllAlerts()
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, 0, all[0].SinceDays)
		assert.Equal(t, 1, all[1].SinceDays)
		assert.Equal(t, 2, all[2].SinceDays)
	})

	t.Run("handler runs after the batch is durable", func(t *testing.T) {
		st := newFakeStore()
		var handled atomic.Int32
		handler := alertHandlerFunc(func(ctx context.Context, ev models.AlertEvent) (*models.TradeRecommendation, error) {
			// Every event is already queryable when its handler runs.
			events, err := st.AlertsBySymbol(ev.Symbol)
			require.NoError(t, err)
			require.NotEmpty(t, events)
			handled.Add(1)
			return nil, nil
		})

		c := NewBatchConsumer(nil, st, handler, 50, time.Millisecond, zap.NewNop())
		batch := []models.AlertEvent{
			eventOnDay("TCS", 0, models.DirectionBuy),
			eventOnDay("INFY", 0, models.DirectionSell),
		}
		require.NoError(t, c.writeBatch(context.Background(), batch))
		assert.EqualValues(t, 2, handled.Load())
	})
}

type alertHandlerFunc func(ctx context.Context, ev models.AlertEvent) (*models.TradeRecommendation, error)

func (f alertHandlerFunc) HandleAlert(ctx context.Context, ev models.AlertEvent) (*models.TradeRecommendation, error) {
	return f(ctx, ev)
}

func TestBatchConsumerRun(t *testing.T) {
	st := newFakeStore()
	queue := make(chan models.AlertEvent, 100)
	c := NewBatchConsumer(queue, st, nil, 10, 5*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	for i := 0; i < 25; i++ {
		queue <- models.AlertEvent{
			Symbol:    "TCS",
			Price:     float64(100 + i),
			AlertDate: baseDay.Add(time.Duration(i) * time.Minute),
			Direction: models.DirectionBuy,
		}
	}

	assert.Eventually(t, func() bool {
		all, _ := st.AllAlerts()
		return len(all) == 25
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRecomputeSinceDays(t *testing.T) {
	st := newFakeStore()
	for _, ev := range []models.AlertEvent{
		eventOnDay("TCS", 0, models.DirectionBuy),
		eventOnDay("TCS", 1, models.DirectionBuy),
		eventOnDay("TCS", 2, models.DirectionBuy),
		eventOnDay("INFY", 2, models.DirectionSell),
	} {
		ev.SinceDays = 9 // deliberately wrong
		e := ev
		require.NoError(t, st.SaveAlert(&e))
	}

	c := NewBatchConsumer(nil, st, nil, 50, time.Millisecond, zap.NewNop())
	require.NoError(t, c.RecomputeSinceDays())

	all, err := st.AllAlerts()
	require.NoError(t, err)
	bySymbolDay := map[string]int{}
	for _, ev := range all {
		bySymbolDay[ev.Symbol+ev.AlertDate.Format("2006-01-02")] = ev.SinceDays
	}
	assert.Equal(t, 0, bySymbolDay["TCS"+baseDay.Format("2006-01-02")])
	assert.Equal(t, 1, bySymbolDay["TCS"+baseDay.AddDate(0, 0, 1).Format("2006-01-02")])
	assert.Equal(t, 2, bySymbolDay["TCS"+baseDay.AddDate(0, 0, 2).Format("2006-01-02")])
	assert.Equal(t, 0, bySymbolDay["INFY"+baseDay.AddDate(0, 0, 2).Format("2006-01-02")])
}
