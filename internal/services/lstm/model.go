package lstm

import (
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"sync"

	"StockSense/internal/domain/models"
)

// Model is a stacked LSTM regressor. Predict and Evaluate are safe for concurrent use;
// Fit must not run concurrently with anything else on the same model.
type Model struct {
	cfg    Config
	lstm1  *lstmLayer
	lstm2  *lstmLayer
	dense1 *denseLayer
	dense2 *denseLayer
	params []*param
	opt    *adam
}

// New builds a freshly initialized network.
func New(cfg Config) (*Model, error) {
	m, err := build(cfg)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, 0x5eed))
	m.lstm1.init(rng)
	m.lstm2.init(rng)
	m.dense1.init(rng)
	m.dense2.init(rng)
	return m, nil
}

func build(cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Model{
		cfg:    cfg,
		lstm1:  newLSTMLayer("lstm_1", cfg.Features, cfg.Units1),
		lstm2:  newLSTMLayer("lstm_2", cfg.Units1, cfg.Units2),
		dense1: newDenseLayer("dense_1", cfg.Units2, cfg.DenseUnits, true),
		dense2: newDenseLayer("dense_2", cfg.DenseUnits, 1, false),
		opt:    newAdam(cfg),
	}
	m.params = append(m.params, m.lstm1.params()...)
	m.params = append(m.params, m.lstm2.params()...)
	m.params = append(m.params, m.dense1.params()...)
	m.params = append(m.params, m.dense2.params()...)
	for i, p := range m.params {
		p.idx = i
	}
	return m, nil
}

// Config returns the configuration the model was built with.
func (m *Model) Config() Config { return m.cfg }

// ParamCount returns the number of trainable scalars.
func (m *Model) ParamCount() int {
	n := 0
	for _, p := range m.params {
		n += len(p.w)
	}
	return n
}

type trace struct {
	steps1 []lstmStep
	mask1  [][]float64
	steps2 []lstmStep
	h2     []float64
	mask2  []float64
	a2     []float64
	d1     []float64
	out    float64
}

// forward evaluates one window. A nil rng disables dropout.
func (m *Model) forward(window [][]float64, rng *rand.Rand) *trace {
	tr := &trace{}
	h1, steps1 := m.lstm1.forward(window)
	tr.steps1 = steps1
	a1 := h1
	if rng != nil && m.cfg.Dropout > 0 {
		tr.mask1 = make([][]float64, len(h1))
		a1 = make([][]float64, len(h1))
		for t := range h1 {
			tr.mask1[t] = dropMask(len(h1[t]), m.cfg.Dropout, rng)
			a1[t] = applyMask(h1[t], tr.mask1[t])
		}
	}
	h2s, steps2 := m.lstm2.forward(a1)
	tr.steps2 = steps2
	tr.h2 = h2s[len(h2s)-1]
	tr.mask2 = dropMask(len(tr.h2), m.cfg.Dropout, rng)
	tr.a2 = applyMask(tr.h2, tr.mask2)
	tr.d1 = m.dense1.forward(tr.a2)
	tr.out = m.dense2.forward(tr.d1)[0]
	return tr
}

func (m *Model) backward(tr *trace, dOut float64, g gradSet) {
	dd1 := m.dense2.backward(tr.d1, []float64{tr.out}, []float64{dOut}, g)
	da2 := m.dense1.backward(tr.a2, tr.d1, dd1, g)
	dh2 := applyMask(da2, tr.mask2)

	dhs2 := make([][]float64, len(tr.steps2))
	dhs2[len(dhs2)-1] = dh2
	da1 := m.lstm2.backward(tr.steps2, dhs2, g, true)
	if tr.mask1 != nil {
		for t := range da1 {
			da1[t] = applyMask(da1[t], tr.mask1[t])
		}
	}
	m.lstm1.backward(tr.steps1, da1, g, false)
}

func (m *Model) checkWindow(window [][]float64) error {
	if len(window) != m.cfg.Lookback {
		return fmt.Errorf("lstm: %w: window has %d steps, model expects %d", models.ErrFeatureContract, len(window), m.cfg.Lookback)
	}
	for _, row := range window {
		if len(row) != m.cfg.Features {
			return fmt.Errorf("lstm: %w: row has %d features, model expects %d", models.ErrFeatureContract, len(row), m.cfg.Features)
		}
	}
	return nil
}

// Predict returns the scaled next-step output for one (lookback x features) window.
func (m *Model) Predict(window [][]float64) (float64, error) {
	if err := m.checkWindow(window); err != nil {
		return 0, err
	}
	return m.forward(window, nil).out, nil
}

// PredictBatch evaluates many windows in parallel.
func (m *Model) PredictBatch(X [][][]float64) ([]float64, error) {
	for _, w := range X {
		if err := m.checkWindow(w); err != nil {
			return nil, err
		}
	}
	out := make([]float64, len(X))
	parallel(len(X), func(worker, i int) {
		out[i] = m.forward(X[i], nil).out
	})
	return out, nil
}

// Evaluate returns the mean squared error and the mean absolute error over X, y.
func (m *Model) Evaluate(X [][][]float64, y []float64) (loss, mae float64, err error) {
	if len(X) != len(y) {
		return 0, 0, fmt.Errorf("lstm evaluate: %w: %d windows, %d targets", models.ErrInvalidInput, len(X), len(y))
	}
	if len(X) == 0 {
		return 0, 0, fmt.Errorf("lstm evaluate: %w: no samples", models.ErrInsufficientData)
	}
	pred, err := m.PredictBatch(X)
	if err != nil {
		return 0, 0, err
	}
	for i, p := range pred {
		d := p - y[i]
		loss += d * d
		mae += math.Abs(d)
	}
	n := float64(len(y))
	return loss / n, mae / n, nil
}

// gradient accumulates the mean-squared-error gradient of the samples at idx into g
// and returns the summed squared and absolute errors. stepKey seeds the dropout masks.
func (m *Model) gradient(X [][][]float64, y []float64, idx []int, stepKey uint64, train bool, bufs []gradSet) (sq, abs float64) {
	workers := len(bufs)
	if workers > len(idx) {
		workers = len(idx)
	}
	scale := 2 / float64(len(idx))
	sqs := make([]float64, workers)
	abss := make([]float64, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		bufs[w].zero()
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for p := w; p < len(idx); p += workers {
				i := idx[p]
				var rng *rand.Rand
				if train {
					rng = rand.New(rand.NewPCG(m.cfg.Seed^stepKey, uint64(i)))
				}
				tr := m.forward(X[i], rng)
				d := tr.out - y[i]
				sqs[w] += d * d
				abss[w] += math.Abs(d)
				m.backward(tr, scale*d, bufs[w])
			}
		}(w)
	}
	wg.Wait()
	for w := 1; w < workers; w++ {
		bufs[0].add(bufs[w])
	}
	for w := 0; w < workers; w++ {
		sq += sqs[w]
		abs += abss[w]
	}
	return sq, abs
}

func (m *Model) gradBuffers() []gradSet {
	n := runtime.GOMAXPROCS(0)
	bufs := make([]gradSet, n)
	for i := range bufs {
		bufs[i] = newGradSet(m.params)
	}
	return bufs
}

func (m *Model) weights() [][]float64 {
	out := make([][]float64, len(m.params))
	for i, p := range m.params {
		out[i] = append([]float64(nil), p.w...)
	}
	return out
}

func (m *Model) setWeights(ws [][]float64) {
	for i, p := range m.params {
		copy(p.w, ws[i])
	}
}

func parallel(n int, fn func(worker, i int)) {
	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := w; i < n; i += workers {
				fn(w, i)
			}
		}(w)
	}
	wg.Wait()
}
