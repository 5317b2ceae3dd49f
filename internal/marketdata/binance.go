package marketdata

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/algofinserve/stock-alerts/internal/models"
)

// BinanceProvider serves market data from Binance spot klines. Useful when the
// scanner watches crypto symbols instead of the exchange feed the REST
// provider fronts.
type BinanceProvider struct {
	client *binance.Client
}

// NewBinanceProvider creates a provider; keys may be empty for public market
// data endpoints.
func NewBinanceProvider(apiKey, secretKey string) *BinanceProvider {
	return &BinanceProvider{
		client: binance.NewClient(apiKey, secretKey),
	}
}

// binanceInterval maps internal timeframes onto the closest Binance kline
// interval. Binance has no 75m bars; 1h is the nearest intraday granularity.
func binanceInterval(timeframe string) string {
	switch timeframe {
	case "75m":
		return "1h"
	case "15m", "1d", "1w", "1M":
		return timeframe
	default:
		return "1h"
	}
}

func (p *BinanceProvider) klines(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	klines, err := p.client.NewKlinesService().
		Symbol(symbol).
		Interval(binanceInterval(timeframe)).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines failed for %s: %w", symbol, err)
	}

	candles := make([]models.Candle, 0, len(klines))
	for _, k := range klines {
		open, _ := strconv.ParseFloat(k.Open, 64)
		high, _ := strconv.ParseFloat(k.High, 64)
		low, _ := strconv.ParseFloat(k.Low, 64)
		closePrice, _ := strconv.ParseFloat(k.Close, 64)
		candles = append(candles, models.Candle{
			Open:  open,
			High:  high,
			Low:   low,
			Close: closePrice,
			Time:  time.Unix(k.OpenTime/1000, 0),
		})
	}
	return candles, nil
}

// PrevCandleLow returns the low of the last completed candle.
func (p *BinanceProvider) PrevCandleLow(ctx context.Context, symbol, timeframe string) (float64, error) {
	candles, err := p.klines(ctx, symbol, timeframe, 2)
	if err != nil {
		return 0, err
	}
	if len(candles) < 2 {
		return 0, fmt.Errorf("no completed candle for %s %s", symbol, timeframe)
	}
	return candles[len(candles)-2].Low, nil
}

// PrevCandleHigh returns the high of the last completed candle.
func (p *BinanceProvider) PrevCandleHigh(ctx context.Context, symbol, timeframe string) (float64, error) {
	candles, err := p.klines(ctx, symbol, timeframe, 2)
	if err != nil {
		return 0, err
	}
	if len(candles) < 2 {
		return 0, fmt.Errorf("no completed candle for %s %s", symbol, timeframe)
	}
	return candles[len(candles)-2].High, nil
}

// CurrentPrice returns the latest listed price for a symbol.
func (p *BinanceProvider) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	prices, err := p.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("binance price failed for %s: %w", symbol, err)
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("no price listed for %s", symbol)
	}
	return strconv.ParseFloat(prices[0].Price, 64)
}

// Candles returns up to limit candles, oldest first.
func (p *BinanceProvider) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	return p.klines(ctx, symbol, timeframe, limit)
}
