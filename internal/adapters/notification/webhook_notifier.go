package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"booklend/internal/core/domain"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrWebhookRejected is returned when the receiver answers with a non-2xx status
var ErrWebhookRejected = errors.New("webhook rejected")

// WebhookConfig configures the outbound webhook
type WebhookConfig struct {
	URL     string
	Timeout time.Duration
	// consecutive failures before the breaker opens
	TripAfter uint32
	// how long the breaker stays open before letting a probe through
	CoolDown time.Duration
}

type webhookPayload struct {
	Event         domain.EventKind `json:"event"`
	TransactionID string           `json:"transaction_id"`
	RecipientID   string           `json:"recipient_id"`
	Status        domain.Status    `json:"status"`
	ActorID       string           `json:"actor_id,omitempty"`
	Message       string           `json:"message"`
	SentAt        time.Time        `json:"sent_at"`
}

// WebhookNotifier posts notifications as JSON to an external receiver. Calls
// go through a circuit breaker so an unreachable receiver fails fast and the
// notification ends up in the outbox.
type WebhookNotifier struct {
	client  *resty.Client
	url     string
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

// NewWebhookNotifier creates a webhook notifier
func NewWebhookNotifier(cfg WebhookConfig, log *zap.Logger) *WebhookNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.TripAfter == 0 {
		cfg.TripAfter = 5
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = 30 * time.Second
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "booklend-webhook/1.0")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "notify-webhook",
		MaxRequests: 1,
		Timeout:     cfg.CoolDown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.TripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &WebhookNotifier{client: client, url: cfg.URL, breaker: breaker, log: log}
}

// Notify posts the notification to the configured URL
func (w *WebhookNotifier) Notify(ctx context.Context, n domain.Notification) error {
	payload := webhookPayload{
		Event:         n.Kind,
		TransactionID: n.TransactionID,
		RecipientID:   n.RecipientID,
		Status:        n.Status,
		ActorID:       n.ActorID,
		Message:       Text(n),
		SentAt:        time.Now().UTC(),
	}

	_, err := w.breaker.Execute(func() (interface{}, error) {
		resp, err := w.client.R().
			SetContext(ctx).
			SetBody(payload).
			Post(w.url)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("%w: status %d", ErrWebhookRejected, resp.StatusCode())
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("%w: webhook: %v", domain.ErrCollaboratorUnavailable, err)
	}
	return nil
}

// State reports the breaker state
func (w *WebhookNotifier) State() gobreaker.State {
	return w.breaker.State()
}
