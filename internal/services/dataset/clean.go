package dataset

import "math"

// FillNonFinite replaces NaN/±Inf per column by forward fill, then back fill, then zero.
// It returns a cleaned copy and whether anything was replaced.
func FillNonFinite(rows [][]float64) ([][]float64, bool) {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = append([]float64(nil), r...)
	}
	if len(out) == 0 {
		return out, false
	}

	changed := false
	cols := len(out[0])
	for j := 0; j < cols; j++ {
		last, have := 0.0, false
		for i := range out {
			if isFinite(out[i][j]) {
				last, have = out[i][j], true
				continue
			}
			changed = true
			if have {
				out[i][j] = last
			}
		}
		next, have := 0.0, false
		for i := len(out) - 1; i >= 0; i-- {
			if isFinite(out[i][j]) {
				next, have = out[i][j], true
				continue
			}
			if have {
				out[i][j] = next
			} else {
				out[i][j] = 0
			}
		}
	}
	return out, changed
}

// AllFinite reports whether every value of rows is finite.
func AllFinite(rows [][]float64) bool {
	for _, r := range rows {
		for _, v := range r {
			if !isFinite(v) {
				return false
			}
		}
	}
	return true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
