package services

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/algofinserve/stock-alerts/internal/models"
)

func indexEvent(symbol, scan string, dir models.Direction, price float64) models.AlertEvent {
	return models.AlertEvent{
		Symbol:    symbol,
		Price:     price,
		AlertDate: time.Date(2025, 3, 14, 9, 30, 0, 0, time.Local),
		ScanName:  scan,
		Direction: dir,
	}
}

func TestAlertIndex(t *testing.T) {
	t.Run("repeat detection is per symbol and direction", func(t *testing.T) {
		x := NewAlertIndex()
		assert.False(t, x.Append(indexEvent("TCS", "Breakout", models.DirectionBuy, 100)))
		assert.True(t, x.Append(indexEvent("TCS", "Breakout", models.DirectionBuy, 101)))
		assert.False(t, x.Append(indexEvent("TCS", "Breakout", models.DirectionSell, 99)))
		assert.False(t, x.Append(indexEvent("INFY", "Breakout", models.DirectionBuy, 1500)))

		assert.Len(t, x.BySymbol("TCS", models.DirectionBuy), 2)
		assert.Len(t, x.BySymbol("TCS", models.DirectionSell), 1)
	})

	t.Run("concurrent appends keep every event", func(t *testing.T) {
		x := NewAlertIndex()
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				x.Append(indexEvent("TCS", "Breakout", models.DirectionBuy, 100))
			}()
		}
		wg.Wait()
		assert.Len(t, x.BySymbol("TCS", models.DirectionBuy), 50)
	})

	t.Run("clear drops everything", func(t *testing.T) {
		x := NewAlertIndex()
		x.Append(indexEvent("TCS", "Breakout", models.DirectionBuy, 100))
		x.Clear()
		assert.Empty(t, x.BySymbol("TCS", models.DirectionBuy))
		assert.False(t, x.Append(indexEvent("TCS", "Breakout", models.DirectionBuy, 100)))
	})
}

func TestReportGenerate(t *testing.T) {
	x := NewAlertIndex()
	x.Append(indexEvent("TCS", "Breakout", models.DirectionBuy, 100))
	x.Append(indexEvent("TCS", "Momentum", models.DirectionBuy, 102))
	x.Append(indexEvent("TCS", "Breakout", models.DirectionBuy, 104))
	x.Append(indexEvent("INFY", "Breakout", models.DirectionSell, 1500))

	dir := t.TempDir()
	g := NewReportGenerator(x, dir, zap.NewNop())

	path, err := g.Generate()
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, []string{"symbol", "direction", "alerts", "first_price", "last_price", "scans"}, records[0])
	// Rows rank by alert count, then symbol.
	assert.Equal(t, []string{"TCS", "BUY", "3", "100.00", "104.00", "2"}, records[1])
	assert.Equal(t, []string{"INFY", "SELL", "1", "1500.00", "1500.00", "1"}, records[2])

	// Generation resets the index for the next run.
	assert.Empty(t, x.BySymbol("TCS", models.DirectionBuy))
}
