package notification

import (
	"context"

	"booklend/internal/core/domain"

	"go.uber.org/zap"
)

// LogNotifier writes notifications to the log. Used with the in-memory store
// where there is no messages table.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (l *LogNotifier) Notify(_ context.Context, n domain.Notification) error {
	l.log.Info("notification",
		zap.String("recipient_id", n.RecipientID),
		zap.String("transaction_id", n.TransactionID),
		zap.String("kind", string(n.Kind)),
		zap.String("status", string(n.Status)),
		zap.String("text", Text(n)),
	)
	return nil
}
