package lstm

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"StockSense/internal/domain/models"
)

// FitOptions controls one training run.
type FitOptions struct {
	Epochs    int
	BatchSize int
	// ValidationSplit is the fraction taken from the tail of the training samples.
	ValidationSplit float64
	// Patience stops training after this many epochs without a lower training loss
	// and restores the best weights. Zero disables early stopping.
	Patience int
	Shuffle  bool
	OnEpoch  func(EpochStats)
}

// EpochStats is reported after every epoch.
type EpochStats struct {
	Epoch   int
	Loss    float64
	MAE     float64
	ValLoss float64
	ValMAE  float64
}

// History is the per-epoch record of a run.
type History struct {
	Loss      []float64
	MAE       []float64
	ValLoss   []float64
	BestEpoch int
	EpochsRun int
	// Stopped is set when early stopping ended the run; Restored when the best weights were reloaded.
	Stopped  bool
	Restored bool
}

// FinalLoss returns the training loss of the weights the model ended with.
func (h *History) FinalLoss() float64 {
	if len(h.Loss) == 0 {
		return math.NaN()
	}
	if h.Restored {
		return h.Loss[h.BestEpoch]
	}
	return h.Loss[len(h.Loss)-1]
}

// FinalValLoss mirrors FinalLoss for the validation tail; NaN without validation.
func (h *History) FinalValLoss() float64 {
	if len(h.ValLoss) == 0 {
		return math.NaN()
	}
	if h.Restored {
		return h.ValLoss[h.BestEpoch]
	}
	return h.ValLoss[len(h.ValLoss)-1]
}

type earlyStopper struct {
	patience  int
	best      float64
	bestEpoch int
	wait      int
}

func newEarlyStopper(patience int) *earlyStopper {
	return &earlyStopper{patience: patience, best: math.Inf(1), bestEpoch: -1}
}

// observe records the loss of epoch and reports whether it improved and whether to stop.
func (e *earlyStopper) observe(epoch int, loss float64) (improved, stop bool) {
	if loss < e.best {
		e.best, e.bestEpoch, e.wait = loss, epoch, 0
		return true, false
	}
	e.wait++
	return false, e.patience > 0 && e.wait >= e.patience
}

// Fit trains the model on X, y with mini-batch Adam. The context is checked before every batch.
func (m *Model) Fit(ctx context.Context, X [][][]float64, y []float64, opts FitOptions) (*History, error) {
	if len(X) != len(y) {
		return nil, fmt.Errorf("lstm fit: %w: %d windows, %d targets", models.ErrInvalidInput, len(X), len(y))
	}
	for _, w := range X {
		if err := m.checkWindow(w); err != nil {
			return nil, err
		}
	}
	if opts.Epochs <= 0 {
		opts.Epochs = 1
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}

	n := len(X)
	splitAt := n
	if opts.ValidationSplit > 0 && opts.ValidationSplit < 1 {
		splitAt = int(float64(n) * (1 - opts.ValidationSplit))
	}
	if splitAt == 0 {
		return nil, fmt.Errorf("lstm fit: %w: no training samples", models.ErrInsufficientData)
	}
	trX, trY := X[:splitAt], y[:splitAt]
	valX, valY := X[splitAt:], y[splitAt:]

	order := make([]int, len(trX))
	for i := range order {
		order[i] = i
	}

	hist := &History{BestEpoch: -1}
	stopper := newEarlyStopper(opts.Patience)
	var best [][]float64
	bufs := m.gradBuffers()

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		if opts.Shuffle {
			rng := rand.New(rand.NewPCG(m.cfg.Seed, uint64(epoch)+1))
			rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		}

		var sq, abs float64
		for start := 0; start < len(order); start += opts.BatchSize {
			if err := ctx.Err(); err != nil {
				return hist, fmt.Errorf("lstm fit: epoch %d: %w", epoch+1, err)
			}
			end := min(start+opts.BatchSize, len(order))
			s, a := m.gradient(trX, trY, order[start:end], uint64(m.opt.t+1)<<32, true, bufs)
			sq += s
			abs += a
			m.opt.step(m.params, bufs[0])
		}

		stats := EpochStats{
			Epoch: epoch + 1,
			Loss:  sq / float64(len(order)),
			MAE:   abs / float64(len(order)),
		}
		if math.IsNaN(stats.Loss) || math.IsInf(stats.Loss, 0) {
			return hist, fmt.Errorf("lstm fit: %w: loss diverged at epoch %d", models.ErrTrainingFailed, epoch+1)
		}
		hist.Loss = append(hist.Loss, stats.Loss)
		hist.MAE = append(hist.MAE, stats.MAE)
		if len(valX) > 0 {
			vl, vm, err := m.Evaluate(valX, valY)
			if err != nil {
				return hist, err
			}
			stats.ValLoss, stats.ValMAE = vl, vm
			hist.ValLoss = append(hist.ValLoss, vl)
		}
		hist.EpochsRun = epoch + 1
		if opts.OnEpoch != nil {
			opts.OnEpoch(stats)
		}

		improved, stop := stopper.observe(epoch, stats.Loss)
		if improved {
			hist.BestEpoch = epoch
			if opts.Patience > 0 {
				best = m.weights()
			}
		}
		if stop {
			hist.Stopped = true
			break
		}
	}

	if opts.Patience > 0 && best != nil && hist.BestEpoch != len(hist.Loss)-1 {
		m.setWeights(best)
		hist.Restored = true
	}
	return hist, nil
}
