package lstm

import "math"

type adam struct {
	lr, beta1, beta2, eps float64
	t                     int
}

func newAdam(cfg Config) *adam {
	return &adam{lr: cfg.LearningRate, beta1: cfg.Beta1, beta2: cfg.Beta2, eps: cfg.Epsilon}
}

// step applies one bias-corrected Adam update.
func (a *adam) step(params []*param, g gradSet) {
	a.t++
	t := float64(a.t)
	alpha := a.lr * math.Sqrt(1-math.Pow(a.beta2, t)) / (1 - math.Pow(a.beta1, t))
	for _, p := range params {
		grad := g[p.idx]
		for j := range p.w {
			gj := grad[j]
			p.m[j] += (gj - p.m[j]) * (1 - a.beta1)
			p.v[j] += (gj*gj - p.v[j]) * (1 - a.beta2)
			p.w[j] -= alpha * p.m[j] / (math.Sqrt(p.v[j]) + a.eps)
		}
	}
}
