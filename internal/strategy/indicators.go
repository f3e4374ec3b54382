package strategy

import (
	"math"

	"github.com/ermakus/freqtrade/internal/domain"
)

// Indicator outputs are aligned to the input; warm-up indices hold NaN.

func closes(c []domain.Candle) []float64 {
	out := make([]float64, len(c))
	for i := range c {
		out[i] = c[i].Close
	}
	return out
}

func nans(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// SMA returns the n-period simple moving average of x.
func SMA(x []float64, n int) []float64 {
	out := nans(len(x))
	if n <= 0 {
		return out
	}
	var sum float64
	valid := 0
	for i := range x {
		if math.IsNaN(x[i]) {
			sum, valid = 0, 0
			continue
		}
		sum += x[i]
		valid++
		if valid > n {
			sum -= x[i-n]
			valid = n
		}
		if valid == n {
			out[i] = sum / float64(n)
		}
	}
	return out
}

// EMA returns the n-period exponential moving average seeded with the SMA
// of the first n values.
func EMA(x []float64, n int) []float64 {
	out := nans(len(x))
	if n <= 0 || len(x) < n {
		return out
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += x[i]
	}
	out[n-1] = sum / float64(n)
	k := 2.0 / float64(n+1)
	for i := n; i < len(x); i++ {
		out[i] = x[i]*k + out[i-1]*(1-k)
	}
	return out
}

// RSI returns the n-period Relative Strength Index using Wilder's smoothing.
func RSI(x []float64, n int) []float64 {
	out := nans(len(x))
	if n <= 0 || len(x) <= n {
		return out
	}
	var gain, loss float64
	for i := 1; i <= n; i++ {
		if d := x[i] - x[i-1]; d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	gain /= float64(n)
	loss /= float64(n)
	out[n] = rsiValue(gain, loss)

	for i := n + 1; i < len(x); i++ {
		d := x[i] - x[i-1]
		up, down := 0.0, 0.0
		if d > 0 {
			up = d
		} else {
			down = -d
		}
		gain = (gain*float64(n-1) + up) / float64(n)
		loss = (loss*float64(n-1) + down) / float64(n)
		out[i] = rsiValue(gain, loss)
	}
	return out
}

func rsiValue(gain, loss float64) float64 {
	if loss == 0 {
		if gain == 0 {
			return 50
		}
		return 100
	}
	return 100 - 100/(1+gain/loss)
}

// StochF returns the fast stochastic %K over kPeriod and its dPeriod SMA (%D).
func StochF(c []domain.Candle, kPeriod, dPeriod int) (fastK, fastD []float64) {
	fastK = nans(len(c))
	if kPeriod <= 0 {
		return fastK, nans(len(c))
	}
	for i := kPeriod - 1; i < len(c); i++ {
		hh, ll := c[i].High, c[i].Low
		for j := i - kPeriod + 1; j < i; j++ {
			hh = math.Max(hh, c[j].High)
			ll = math.Min(ll, c[j].Low)
		}
		if hh == ll {
			fastK[i] = 0
			continue
		}
		fastK[i] = 100 * (c[i].Close - ll) / (hh - ll)
	}
	return fastK, SMA(fastK, dPeriod)
}

// DMI returns ADX, +DI and -DI over n periods using Wilder's smoothing.
func DMI(c []domain.Candle, n int) (adx, plusDI, minusDI []float64) {
	adx, plusDI, minusDI = nans(len(c)), nans(len(c)), nans(len(c))
	if n <= 0 || len(c) <= n {
		return
	}

	var trSum, pdmSum, mdmSum float64
	dx := nans(len(c))
	for i := 1; i < len(c); i++ {
		upMove := c[i].High - c[i-1].High
		downMove := c[i-1].Low - c[i].Low
		pdm, mdm := 0.0, 0.0
		if upMove > downMove && upMove > 0 {
			pdm = upMove
		}
		if downMove > upMove && downMove > 0 {
			mdm = downMove
		}
		tr := math.Max(c[i].High-c[i].Low,
			math.Max(math.Abs(c[i].High-c[i-1].Close), math.Abs(c[i].Low-c[i-1].Close)))

		if i <= n {
			trSum += tr
			pdmSum += pdm
			mdmSum += mdm
			if i < n {
				continue
			}
		} else {
			trSum = trSum - trSum/float64(n) + tr
			pdmSum = pdmSum - pdmSum/float64(n) + pdm
			mdmSum = mdmSum - mdmSum/float64(n) + mdm
		}

		if trSum == 0 {
			plusDI[i], minusDI[i], dx[i] = 0, 0, 0
			continue
		}
		plusDI[i] = 100 * pdmSum / trSum
		minusDI[i] = 100 * mdmSum / trSum
		if sum := plusDI[i] + minusDI[i]; sum != 0 {
			dx[i] = 100 * math.Abs(plusDI[i]-minusDI[i]) / sum
		} else {
			dx[i] = 0
		}
	}

	// ADX: mean of the first n DX values, then Wilder smoothing.
	first := 2*n - 1
	if first >= len(c) {
		return
	}
	var sum float64
	for i := n; i <= first; i++ {
		sum += dx[i]
	}
	adx[first] = sum / float64(n)
	for i := first + 1; i < len(c); i++ {
		adx[i] = (adx[i-1]*float64(n-1) + dx[i]) / float64(n)
	}
	return
}

// CCI returns the n-period Commodity Channel Index.
func CCI(c []domain.Candle, n int) []float64 {
	out := nans(len(c))
	if n <= 0 {
		return out
	}
	tp := make([]float64, len(c))
	for i := range c {
		tp[i] = (c[i].High + c[i].Low + c[i].Close) / 3
	}
	sma := SMA(tp, n)
	for i := n - 1; i < len(c); i++ {
		var md float64
		for j := i - n + 1; j <= i; j++ {
			md += math.Abs(tp[j] - sma[i])
		}
		md /= float64(n)
		if md == 0 {
			out[i] = 0
			continue
		}
		out[i] = (tp[i] - sma[i]) / (0.015 * md)
	}
	return out
}

// crossedAbove reports whether x moved from <= level to > level at index i.
func crossedAbove(x []float64, level float64, i int) bool {
	if i < 1 || i >= len(x) {
		return false
	}
	return x[i-1] <= level && x[i] > level
}

// finite reports whether every value is a real number.
func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
