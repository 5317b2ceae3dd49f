package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/algofinserve/stock-alerts/internal/models"
	"github.com/go-resty/resty/v2"
)

// RESTProvider fetches market data from the companion market-data service.
type RESTProvider struct {
	client  *resty.Client
	baseURL string
}

// NewRESTProvider creates a provider against the given base URL.
func NewRESTProvider(baseURL string) *RESTProvider {
	return &RESTProvider{
		client:  resty.New().SetTimeout(10 * time.Second),
		baseURL: baseURL,
	}
}

type candleResponse struct {
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
	Time  int64   `json:"time"`
}

type ltpResponse struct {
	LTP float64 `json:"ltp"`
}

func (p *RESTProvider) prevCandle(ctx context.Context, symbol, timeframe string) (*candleResponse, error) {
	var candle candleResponse
	url := fmt.Sprintf("%s/api/ohlc/%s/%s/previous", p.baseURL, symbol, timeframe)
	resp, err := p.client.R().
		SetContext(ctx).
		SetResult(&candle).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("market data request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("market data returned status %d: %s", resp.StatusCode(), resp.String())
	}
	return &candle, nil
}

// PrevCandleLow returns the previous completed candle's low.
func (p *RESTProvider) PrevCandleLow(ctx context.Context, symbol, timeframe string) (float64, error) {
	candle, err := p.prevCandle(ctx, symbol, timeframe)
	if err != nil {
		return 0, err
	}
	return candle.Low, nil
}

// PrevCandleHigh returns the previous completed candle's high.
func (p *RESTProvider) PrevCandleHigh(ctx context.Context, symbol, timeframe string) (float64, error) {
	candle, err := p.prevCandle(ctx, symbol, timeframe)
	if err != nil {
		return 0, err
	}
	return candle.High, nil
}

// CurrentPrice returns the last traded price for a symbol.
func (p *RESTProvider) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	var ltp ltpResponse
	url := fmt.Sprintf("%s/api/ltp/%s", p.baseURL, symbol)
	resp, err := p.client.R().
		SetContext(ctx).
		SetResult(&ltp).
		Get(url)
	if err != nil {
		return 0, fmt.Errorf("ltp request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("ltp returned status %d: %s", resp.StatusCode(), resp.String())
	}
	return ltp.LTP, nil
}

// Candles returns up to limit historical candles, oldest first.
func (p *RESTProvider) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	var raw []candleResponse
	url := fmt.Sprintf("%s/api/ohlc/%s/%s", p.baseURL, symbol, timeframe)
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("limit", fmt.Sprintf("%d", limit)).
		SetResult(&raw).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("ohlc request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("ohlc returned status %d: %s", resp.StatusCode(), resp.String())
	}

	candles := make([]models.Candle, 0, len(raw))
	for _, c := range raw {
		candles = append(candles, models.Candle{
			Open:  c.Open,
			High:  c.High,
			Low:   c.Low,
			Close: c.Close,
			Time:  time.Unix(c.Time, 0),
		})
	}
	return candles, nil
}
