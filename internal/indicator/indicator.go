package indicator

import (
	"math"

	"github.com/algofinserve/stock-alerts/internal/models"
)

// ATR computes the Average True Range over the trailing period as a simple
// moving average of true ranges. Candles are ordered oldest-first. The second
// return is false when there is not enough history.
func ATR(candles []models.Candle, period int) (float64, bool) {
	if period <= 0 || len(candles) < period+1 {
		return 0, false
	}

	sum := 0.0
	for i := 1; i <= period; i++ {
		cur, prev := candles[i], candles[i-1]
		tr := cur.High - cur.Low
		tr = math.Max(tr, math.Abs(cur.High-prev.Close))
		tr = math.Max(tr, math.Abs(cur.Low-prev.Close))
		sum += tr
	}
	return sum / float64(period), true
}

// Supertrend computes the latest Supertrend value from an ordered candle
// sequence using a fixed ATR over the leading window. The second return is
// false when there is not enough history.
func Supertrend(candles []models.Candle, atrPeriod int, multiplier float64) (float64, bool) {
	if len(candles) < atrPeriod+1 {
		return 0, false
	}

	atr, ok := ATR(candles, atrPeriod)
	if !ok {
		return 0, false
	}

	st := make([]float64, len(candles))
	uptrend := make([]bool, len(candles))

	first := candles[0]
	st[0] = (first.High + first.Low) / 2
	uptrend[0] = first.Close > st[0]

	for i := 1; i < len(candles); i++ {
		c := candles[i]
		mid := (c.High + c.Low) / 2
		upper := mid + multiplier*atr
		lower := mid - multiplier*atr

		// Band continuation: carry the previous value forward when a band
		// tightens past it or price has already closed through it.
		if upper < st[i-1] || c.Close > st[i-1] {
			upper = st[i-1]
		}
		if lower > st[i-1] || c.Close < st[i-1] {
			lower = st[i-1]
		}

		switch {
		case uptrend[i-1] && c.Close <= lower:
			uptrend[i] = false
			st[i] = lower
		case !uptrend[i-1] && c.Close >= upper:
			uptrend[i] = true
			st[i] = upper
		default:
			uptrend[i] = uptrend[i-1]
			if uptrend[i] {
				st[i] = lower
			} else {
				st[i] = upper
			}
		}
	}

	return st[len(st)-1], true
}
