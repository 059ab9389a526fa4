package repositories

import (
	"context"
	"errors"
	"fmt"

	"booklend/internal/core/domain"

	"gorm.io/gorm"
)

// translate maps a gorm error onto the engine's error kinds. Not-found
// becomes notFound; everything else means the store could not serve the call.
func translate(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if notFound != nil && errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrCollaboratorUnavailable, err)
	}
	return fmt.Errorf("%w: store: %v", domain.ErrCollaboratorUnavailable, err)
}
