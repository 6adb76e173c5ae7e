// Package indicators implements the technical indicators the bundled
// strategies build their windows from. All functions take and return
// float64 slices aligned index-for-index with the input bars; warmup
// slots are NaN so a consumer can tell "no value yet" from zero.
package indicators

import "math"

// SMA is the simple moving average over the last p points.
func SMA(x []float64, p int) []float64 {
	if p <= 0 {
		return nil
	}
	out := make([]float64, len(x))
	var sum float64
	for i := range x {
		sum += x[i]
		if i < p-1 {
			out[i] = math.NaN()
			continue
		}
		if i >= p {
			sum -= x[i-p]
		}
		out[i] = sum / float64(p)
	}
	return out
}

// EMA is the exponential moving average with smoothing 2/(p+1), seeded
// with SMA(p).
func EMA(x []float64, p int) []float64 {
	if p <= 0 {
		return nil
	}
	out := make([]float64, len(x))
	if len(x) < p {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	k := 2.0 / float64(p+1)
	var seed float64
	for i := 0; i < p; i++ {
		seed += x[i]
		if i < p-1 {
			out[i] = math.NaN()
		}
	}
	out[p-1] = seed / float64(p)
	for i := p; i < len(x); i++ {
		out[i] = (x[i]-out[i-1])*k + out[i-1]
	}
	return out
}

// MeanStd returns the rolling mean and population standard deviation
// over window p.
func MeanStd(x []float64, p int) (mean, std []float64) {
	if p <= 0 {
		return nil, nil
	}
	n := len(x)
	mean = make([]float64, n)
	std = make([]float64, n)

	var sum, sum2 float64
	for i := 0; i < n; i++ {
		sum += x[i]
		sum2 += x[i] * x[i]
		if i < p-1 {
			mean[i] = math.NaN()
			std[i] = math.NaN()
			continue
		}
		if i >= p {
			sum -= x[i-p]
			sum2 -= x[i-p] * x[i-p]
		}
		m := sum / float64(p)
		v := sum2/float64(p) - m*m
		if v < 0 {
			v = 0
		}
		mean[i] = m
		std[i] = math.Sqrt(v)
	}
	return mean, std
}

// RollingMax returns the highest value of the last p points.
func RollingMax(x []float64, p int) []float64 {
	return rollingExtreme(x, p, func(a, b float64) bool { return a > b })
}

// RollingMin returns the lowest value of the last p points.
func RollingMin(x []float64, p int) []float64 {
	return rollingExtreme(x, p, func(a, b float64) bool { return a < b })
}

func rollingExtreme(x []float64, p int, better func(a, b float64) bool) []float64 {
	if p <= 0 {
		return nil
	}
	out := make([]float64, len(x))
	for i := range x {
		if i < p-1 {
			out[i] = math.NaN()
			continue
		}
		best := x[i-p+1]
		for j := i - p + 2; j <= i; j++ {
			if better(x[j], best) {
				best = x[j]
			}
		}
		out[i] = best
	}
	return out
}

// ROC is the rate of change over p periods, as a fraction.
func ROC(x []float64, p int) []float64 {
	if p <= 0 {
		return nil
	}
	out := make([]float64, len(x))
	for i := range x {
		if i < p || x[i-p] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = (x[i] - x[i-p]) / x[i-p]
	}
	return out
}
