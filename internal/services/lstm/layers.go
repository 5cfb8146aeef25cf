package lstm

import (
	"math"
	"math/rand/v2"
)

// param is one trainable tensor stored row-major with its Adam moments.
type param struct {
	name       string
	idx        int
	rows, cols int
	w          []float64
	m, v       []float64
}

func newParam(name string, rows, cols int) *param {
	n := rows * cols
	return &param{name: name, rows: rows, cols: cols, w: make([]float64, n), m: make([]float64, n), v: make([]float64, n)}
}

// gradSet holds one gradient buffer per parameter, indexed by param.idx.
type gradSet [][]float64

func newGradSet(params []*param) gradSet {
	g := make(gradSet, len(params))
	for i, p := range params {
		g[i] = make([]float64, len(p.w))
	}
	return g
}

func (g gradSet) zero() {
	for _, b := range g {
		clear(b)
	}
}

func (g gradSet) add(o gradSet) {
	for i, b := range g {
		for j, v := range o[i] {
			b[j] += v
		}
	}
}

func glorotUniform(p *param, fanIn, fanOut int, rng *rand.Rand) {
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	for i := range p.w {
		p.w[i] = (rng.Float64()*2 - 1) * limit
	}
}

// orthogonal fills p (rows >= cols) with orthonormal columns via Gram-Schmidt on a normal draw.
func orthogonal(p *param, rng *rand.Rand) {
	for i := range p.w {
		p.w[i] = rng.NormFloat64()
	}
	r, c := p.rows, p.cols
	for j := 0; j < c; j++ {
		for k := 0; k < j; k++ {
			dot := 0.0
			for i := 0; i < r; i++ {
				dot += p.w[i*c+j] * p.w[i*c+k]
			}
			for i := 0; i < r; i++ {
				p.w[i*c+j] -= dot * p.w[i*c+k]
			}
		}
		norm := 0.0
		for i := 0; i < r; i++ {
			norm += p.w[i*c+j] * p.w[i*c+j]
		}
		norm = math.Sqrt(norm)
		if norm == 0 {
			continue
		}
		for i := 0; i < r; i++ {
			p.w[i*c+j] /= norm
		}
	}
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// lstmLayer gates are laid out i, f, g, o in blocks of units rows.
type lstmLayer struct {
	in, units int
	kernel    *param // 4u x in
	recurrent *param // 4u x u
	bias      *param // 4u
}

type lstmStep struct {
	x, hPrev, cPrev []float64
	i, f, g, o      []float64
	tc              []float64
}

func newLSTMLayer(name string, in, units int) *lstmLayer {
	return &lstmLayer{
		in:        in,
		units:     units,
		kernel:    newParam(name+"/kernel", 4*units, in),
		recurrent: newParam(name+"/recurrent_kernel", 4*units, units),
		bias:      newParam(name+"/bias", 4*units, 1),
	}
}

func (l *lstmLayer) params() []*param { return []*param{l.kernel, l.recurrent, l.bias} }

func (l *lstmLayer) init(rng *rand.Rand) {
	glorotUniform(l.kernel, l.in, 4*l.units, rng)
	orthogonal(l.recurrent, rng)
	clear(l.bias.w)
	for k := l.units; k < 2*l.units; k++ {
		l.bias.w[k] = 1
	}
}

// forward runs the sequence from zero state and returns every hidden state.
func (l *lstmLayer) forward(xs [][]float64) ([][]float64, []lstmStep) {
	u, in := l.units, l.in
	W, U, b := l.kernel.w, l.recurrent.w, l.bias.w
	hs := make([][]float64, len(xs))
	steps := make([]lstmStep, len(xs))
	h := make([]float64, u)
	c := make([]float64, u)
	z := make([]float64, 4*u)
	for t, x := range xs {
		for r := 0; r < 4*u; r++ {
			s := b[r]
			wr := W[r*in : (r+1)*in]
			for j, xv := range x {
				s += wr[j] * xv
			}
			ur := U[r*u : (r+1)*u]
			for j, hv := range h {
				s += ur[j] * hv
			}
			z[r] = s
		}
		st := lstmStep{
			x: x, hPrev: h, cPrev: c,
			i: make([]float64, u), f: make([]float64, u), g: make([]float64, u), o: make([]float64, u),
			tc: make([]float64, u),
		}
		nh := make([]float64, u)
		nc := make([]float64, u)
		for k := 0; k < u; k++ {
			st.i[k] = sigmoid(z[k])
			st.f[k] = sigmoid(z[u+k])
			st.g[k] = math.Tanh(z[2*u+k])
			st.o[k] = sigmoid(z[3*u+k])
			nc[k] = st.f[k]*c[k] + st.i[k]*st.g[k]
			st.tc[k] = math.Tanh(nc[k])
			nh[k] = st.o[k] * st.tc[k]
		}
		steps[t] = st
		hs[t] = nh
		h, c = nh, nc
	}
	return hs, steps
}

// backward propagates dhs (nil rows mean no gradient from above at that step) through time,
// accumulating into g. Input gradients are returned only when wantDx is set.
func (l *lstmLayer) backward(steps []lstmStep, dhs [][]float64, g gradSet, wantDx bool) [][]float64 {
	u, in := l.units, l.in
	W, U := l.kernel.w, l.recurrent.w
	gW, gU, gb := g[l.kernel.idx], g[l.recurrent.idx], g[l.bias.idx]

	var dxs [][]float64
	if wantDx {
		dxs = make([][]float64, len(steps))
	}
	dhNext := make([]float64, u)
	dcNext := make([]float64, u)
	dz := make([]float64, 4*u)
	for t := len(steps) - 1; t >= 0; t-- {
		st := steps[t]
		for k := 0; k < u; k++ {
			dh := dhNext[k]
			if dhs[t] != nil {
				dh += dhs[t][k]
			}
			do := dh * st.tc[k]
			dc := dh*st.o[k]*(1-st.tc[k]*st.tc[k]) + dcNext[k]
			dz[k] = dc * st.g[k] * st.i[k] * (1 - st.i[k])
			dz[u+k] = dc * st.cPrev[k] * st.f[k] * (1 - st.f[k])
			dz[2*u+k] = dc * st.i[k] * (1 - st.g[k]*st.g[k])
			dz[3*u+k] = do * st.o[k] * (1 - st.o[k])
			dcNext[k] = dc * st.f[k]
		}

		var dx []float64
		if wantDx {
			dx = make([]float64, in)
		}
		dhPrev := make([]float64, u)
		for r := 0; r < 4*u; r++ {
			d := dz[r]
			if d == 0 {
				continue
			}
			gb[r] += d
			wr, gwr := W[r*in:(r+1)*in], gW[r*in:(r+1)*in]
			for j, xv := range st.x {
				gwr[j] += d * xv
				if wantDx {
					dx[j] += d * wr[j]
				}
			}
			ur, gur := U[r*u:(r+1)*u], gU[r*u:(r+1)*u]
			for j, hv := range st.hPrev {
				gur[j] += d * hv
				dhPrev[j] += d * ur[j]
			}
		}
		dhNext = dhPrev
		if wantDx {
			dxs[t] = dx
		}
	}
	return dxs
}

type denseLayer struct {
	in, out int
	relu    bool
	kernel  *param // out x in
	bias    *param // out
}

func newDenseLayer(name string, in, out int, relu bool) *denseLayer {
	return &denseLayer{
		in:     in,
		out:    out,
		relu:   relu,
		kernel: newParam(name+"/kernel", out, in),
		bias:   newParam(name+"/bias", out, 1),
	}
}

func (d *denseLayer) params() []*param { return []*param{d.kernel, d.bias} }

func (d *denseLayer) init(rng *rand.Rand) {
	glorotUniform(d.kernel, d.in, d.out, rng)
	clear(d.bias.w)
}

func (d *denseLayer) forward(x []float64) []float64 {
	y := make([]float64, d.out)
	for r := 0; r < d.out; r++ {
		s := d.bias.w[r]
		wr := d.kernel.w[r*d.in : (r+1)*d.in]
		for j, xv := range x {
			s += wr[j] * xv
		}
		if d.relu && s < 0 {
			s = 0
		}
		y[r] = s
	}
	return y
}

// backward takes the layer input x and output y; the relu mask is recovered from y.
func (d *denseLayer) backward(x, y, dy []float64, g gradSet) []float64 {
	gW, gb := g[d.kernel.idx], g[d.bias.idx]
	dx := make([]float64, d.in)
	for r := 0; r < d.out; r++ {
		dr := dy[r]
		if d.relu && y[r] <= 0 {
			continue
		}
		if dr == 0 {
			continue
		}
		gb[r] += dr
		wr, gwr := d.kernel.w[r*d.in:(r+1)*d.in], gW[r*d.in:(r+1)*d.in]
		for j, xv := range x {
			gwr[j] += dr * xv
			dx[j] += dr * wr[j]
		}
	}
	return dx
}

// dropMask draws an inverted-dropout mask; nil means keep everything.
func dropMask(n int, rate float64, rng *rand.Rand) []float64 {
	if rate <= 0 || rng == nil {
		return nil
	}
	keep := 1 / (1 - rate)
	mask := make([]float64, n)
	for i := range mask {
		if rng.Float64() >= rate {
			mask[i] = keep
		}
	}
	return mask
}

func applyMask(x, mask []float64) []float64 {
	if mask == nil {
		return x
	}
	out := make([]float64, len(x))
	for i := range x {
		out[i] = x[i] * mask[i]
	}
	return out
}
