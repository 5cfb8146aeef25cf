package repository

import (
	"context"
	"fmt"

	"StockSense/internal/domain/models"
	domrepo "StockSense/internal/domain/repository"
)

// StaticUniverse serves symbol lists from configuration.
type StaticUniverse struct {
	markets  map[string][]string
	fallback domrepo.Universe
}

func NewStaticUniverse(markets map[string][]string) *StaticUniverse {
	return &StaticUniverse{markets: markets}
}

// WithFallback resolves unlisted markets, and markets configured with an empty symbol list, through f.
func (u *StaticUniverse) WithFallback(f domrepo.Universe) *StaticUniverse {
	u.fallback = f
	return u
}

func (u *StaticUniverse) Symbols(ctx context.Context, market string) ([]string, error) {
	syms, ok := u.markets[market]
	if len(syms) == 0 && u.fallback != nil {
		return u.fallback.Symbols(ctx, market)
	}
	if !ok {
		return nil, fmt.Errorf("%w: unknown market %q", models.ErrInvalidInput, market)
	}
	return append([]string(nil), syms...), nil
}
