package services

import (
	"context"
	"errors"

	"github.com/food-truck-finder/backend/internal/models"
	"github.com/food-truck-finder/backend/internal/observability"
)

// retryOnConflict runs fn, a full read-modify-write, until it stops failing
// with a version conflict or attempts run out. The last conflict is returned
// when every attempt collided.
func retryOnConflict(ctx context.Context, attempts int, entity string, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if !errors.Is(err, models.ErrConflict) {
			return err
		}
		observability.WriteConflicts.WithLabelValues(entity).Inc()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return err
}
