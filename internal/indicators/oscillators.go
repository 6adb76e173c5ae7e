package indicators

import "math"

// RSI is Wilder's relative strength index over period p.
func RSI(x []float64, p int) []float64 {
	if p <= 0 {
		return nil
	}
	n := len(x)
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	if n <= p {
		return out
	}

	var gain, loss float64
	for i := 1; i <= p; i++ {
		d := x[i] - x[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(p)
	avgLoss := loss / float64(p)
	out[p] = rsiValue(avgGain, avgLoss)

	for i := p + 1; i < n; i++ {
		d := x[i] - x[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*float64(p-1) + g) / float64(p)
		avgLoss = (avgLoss*float64(p-1) + l) / float64(p)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACD returns the MACD line, signal line and histogram for the given
// fast/slow/signal periods.
func MACD(x []float64, fast, slow, signal int) (line, sig, hist []float64) {
	emaFast := EMA(x, fast)
	emaSlow := EMA(x, slow)
	n := len(x)

	line = make([]float64, n)
	for i := 0; i < n; i++ {
		line[i] = emaFast[i] - emaSlow[i]
	}

	// Signal line is an EMA of the MACD line starting where the line is
	// defined.
	sig = make([]float64, n)
	hist = make([]float64, n)
	start := -1
	for i := 0; i < n; i++ {
		if !math.IsNaN(line[i]) {
			start = i
			break
		}
		sig[i] = math.NaN()
		hist[i] = math.NaN()
	}
	if start == -1 || n-start < signal {
		for i := 0; i < n; i++ {
			sig[i] = math.NaN()
			hist[i] = math.NaN()
		}
		return line, sig, hist
	}
	sigTail := EMA(line[start:], signal)
	for i := start; i < n; i++ {
		sig[i] = sigTail[i-start]
		hist[i] = line[i] - sig[i]
	}
	return line, sig, hist
}

// Stoch is the stochastic oscillator: %K over kp periods smoothed by
// smooth, %D as SMA(dp) of %K.
func Stoch(high, low, close []float64, kp, smooth, dp int) (k, d []float64) {
	n := len(close)
	raw := make([]float64, n)
	hh := RollingMax(high, kp)
	ll := RollingMin(low, kp)
	for i := 0; i < n; i++ {
		if math.IsNaN(hh[i]) || math.IsNaN(ll[i]) || hh[i] == ll[i] {
			raw[i] = math.NaN()
			continue
		}
		raw[i] = 100 * (close[i] - ll[i]) / (hh[i] - ll[i])
	}
	k = smoothNaN(raw, smooth)
	d = smoothNaN(k, dp)
	return k, d
}

// smoothNaN applies SMA(p) starting from the first non-NaN value.
func smoothNaN(x []float64, p int) []float64 {
	n := len(x)
	out := make([]float64, n)
	start := -1
	for i := 0; i < n; i++ {
		out[i] = math.NaN()
		if start == -1 && !math.IsNaN(x[i]) {
			start = i
		}
	}
	if start == -1 || p <= 0 {
		return out
	}
	tail := SMA(x[start:], p)
	for i := start; i < n; i++ {
		out[i] = tail[i-start]
	}
	return out
}

// ATR is Wilder's average true range over period p.
func ATR(high, low, close []float64, p int) []float64 {
	n := len(close)
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	if p <= 0 || n <= p {
		return out
	}

	tr := make([]float64, n)
	tr[0] = high[0] - low[0]
	for i := 1; i < n; i++ {
		r1 := high[i] - low[i]
		r2 := math.Abs(high[i] - close[i-1])
		r3 := math.Abs(low[i] - close[i-1])
		tr[i] = math.Max(r1, math.Max(r2, r3))
	}

	var sum float64
	for i := 1; i <= p; i++ {
		sum += tr[i]
	}
	atr := sum / float64(p)
	out[p] = atr
	for i := p + 1; i < n; i++ {
		atr = (atr*float64(p-1) + tr[i]) / float64(p)
		out[i] = atr
	}
	return out
}

// VWAP is the cumulative volume-weighted average price over the window,
// using the typical price (H+L+C)/3.
func VWAP(high, low, close, volume []float64) []float64 {
	n := len(close)
	out := make([]float64, n)
	var sumPV, sumV float64
	for i := 0; i < n; i++ {
		tp := (high[i] + low[i] + close[i]) / 3.0
		sumPV += tp * volume[i]
		sumV += volume[i]
		if sumV == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sumPV / sumV
	}
	return out
}

// ReturnsVolatility is the population standard deviation of simple
// percentage returns over the last p bars; the risk sizer feeds it into
// stop placement. Returns 0 when there is not enough history.
func ReturnsVolatility(close []float64, p int) float64 {
	if p <= 1 || len(close) < p+1 {
		return 0
	}
	rets := make([]float64, 0, p)
	for i := len(close) - p; i < len(close); i++ {
		if close[i-1] == 0 {
			continue
		}
		rets = append(rets, close[i]/close[i-1]-1)
	}
	if len(rets) == 0 {
		return 0
	}
	var sum float64
	for _, r := range rets {
		sum += r
	}
	mean := sum / float64(len(rets))
	var v float64
	for _, r := range rets {
		v += (r - mean) * (r - mean)
	}
	return math.Sqrt(v / float64(len(rets)))
}
