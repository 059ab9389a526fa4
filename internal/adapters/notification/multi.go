package notification

import (
	"context"
	"errors"

	"booklend/internal/core/domain"
	"booklend/internal/core/services"
)

// Multi delivers every notification to all of its notifiers. All notifiers
// are tried; the returned error joins the failures. Redelivery resends to
// every notifier, so delivery is at least once per notifier.
type Multi []services.Notifier

func (m Multi) Notify(ctx context.Context, n domain.Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ services.Notifier = Multi(nil)
	_ services.Notifier = (*MessageNotifier)(nil)
	_ services.Notifier = (*WebhookNotifier)(nil)
	_ services.Notifier = (*LogNotifier)(nil)
)
