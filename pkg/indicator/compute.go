package indicator

import (
	"strings"

	"github.com/quantnest/executor/pkg/models"
)

// Compute evaluates ref over candles (oldest first). The second result is false when the
// series is too short for the indicator.
func Compute(ref models.IndicatorReference, candles []Candle) (float64, bool) {
	if len(candles) == 0 {
		return 0, false
	}

	closes := make([]float64, len(candles))
	for i, candle := range candles {
		closes[i] = candle.Close
	}

	period := ref.Period()

	switch strings.ToLower(ref.Indicator) {
	case "price":
		return closes[len(closes)-1], true
	case "volume":
		return candles[len(candles)-1].Volume, true
	case "sma":
		return SMA(closes, period)
	case "ema":
		return EMA(closes, period)
	case "rsi":
		return RSI(closes, period)
	case "pct_change":
		return PctChange(closes, period)
	default:
		return 0, false
	}
}

// SMA is the mean of the last period closes.
func SMA(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period {
		return 0, false
	}

	sum := 0.0
	for _, c := range closes[len(closes)-period:] {
		sum += c
	}

	return sum / float64(period), true
}

// EMA seeds with the SMA of the first period closes and smooths with 2/(period+1).
func EMA(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period {
		return 0, false
	}

	ema, _ := SMA(closes[:period], period)
	k := 2.0 / float64(period+1)

	for _, c := range closes[period:] {
		ema = c*k + ema*(1-k)
	}

	return ema, true
}

// RSI uses Wilder smoothing and needs period+1 closes.
func RSI(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period+1 {
		return 0, false
	}

	var gain, loss float64

	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gain += delta
		} else {
			loss -= delta
		}
	}

	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]

		var up, down float64
		if delta > 0 {
			up = delta
		} else {
			down = -delta
		}

		avgGain = (avgGain*float64(period-1) + up) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + down) / float64(period)
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, true
		}

		return 100, true
	}

	rs := avgGain / avgLoss

	return 100 - 100/(1+rs), true
}

// PctChange is the percentage change of the last close against the close period candles earlier.
func PctChange(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period+1 {
		return 0, false
	}

	base := closes[len(closes)-1-period]
	if base == 0 {
		return 0, false
	}

	return (closes[len(closes)-1] - base) / base * 100, true
}
