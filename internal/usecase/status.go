package usecase

import (
	"context"
	"fmt"

	"StockSense/internal/domain/models"
	domrepo "StockSense/internal/domain/repository"
)

// PendingCounter reports the number of queued jobs.
type PendingCounter interface {
	Pending(ctx context.Context) (int64, error)
}

// StatusUseCase reports the last bulk run of every market.
type StatusUseCase struct {
	markets   []string
	summaries domrepo.SummaryStore
	store     domrepo.ModelStore
	queue     PendingCounter
}

// NewStatusUseCase creates a StatusUseCase. queue may be nil.
func NewStatusUseCase(markets []string, summaries domrepo.SummaryStore, store domrepo.ModelStore, queue PendingCounter) *StatusUseCase {
	return &StatusUseCase{markets: markets, summaries: summaries, store: store, queue: queue}
}

// Status loads every market summary. total_models comes from the store when it can count,
// otherwise from the successful counts of the summaries.
func (uc *StatusUseCase) Status(ctx context.Context) (*models.TrainingStatus, error) {
	st := &models.TrainingStatus{Markets: make(map[string]*models.Summary, len(uc.markets))}
	fromSummaries := 0
	for _, m := range uc.markets {
		s, ok, err := uc.summaries.LoadSummary(ctx, m)
		if err != nil {
			return nil, fmt.Errorf("training status %s: %w", m, err)
		}
		if !ok {
			continue
		}
		st.Markets[m] = s
		fromSummaries += s.Successful
	}
	st.TotalModels = fromSummaries

	if c, ok := uc.store.(domrepo.ModelCounter); ok {
		n, err := c.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("training status: count models: %w", err)
		}
		st.TotalModels = n
	}
	if uc.queue != nil {
		if n, err := uc.queue.Pending(ctx); err == nil {
			st.QueuePending = n
		}
	}
	return st, nil
}
