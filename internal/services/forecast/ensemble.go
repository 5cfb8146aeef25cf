package forecast

import (
	"fmt"
	"math"
)

// MaxSimulations bounds the number of independently trained paths per request.
const MaxSimulations = 10

// Ensemble returns the per-step mean and population standard deviation of equal-length paths.
func Ensemble(paths [][]float64) (mean, std []float64, err error) {
	if len(paths) == 0 {
		return nil, nil, fmt.Errorf("ensemble: no paths")
	}
	days := len(paths[0])
	for i, p := range paths {
		if len(p) != days {
			return nil, nil, fmt.Errorf("ensemble: path %d has %d steps, want %d", i, len(p), days)
		}
	}
	n := float64(len(paths))
	mean = make([]float64, days)
	std = make([]float64, days)
	for d := 0; d < days; d++ {
		sum := 0.0
		for _, p := range paths {
			sum += p[d]
		}
		m := sum / n
		ss := 0.0
		for _, p := range paths {
			ss += (p[d] - m) * (p[d] - m)
		}
		mean[d] = m
		std[d] = math.Sqrt(ss / n)
	}
	return mean, std, nil
}
