package marketdata

import (
	"context"

	"github.com/algofinserve/stock-alerts/internal/models"
)

// Provider is the market data contract the recommendation engine and the
// stoploss monitor depend on. Candles are returned oldest-first.
type Provider interface {
	PrevCandleLow(ctx context.Context, symbol, timeframe string) (float64, error)
	PrevCandleHigh(ctx context.Context, symbol, timeframe string) (float64, error)
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
	Candles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error)
}
