package lifecycle

import (
	"context"
	"log/slog"

	"github.com/ronycse16b/soulcraft-orders/internal/models"
)

// TransitionEvent describes one committed status change for downstream
// notification channels.
type TransitionEvent struct {
	OrderID     int64
	OrderNumber string
	From        models.OrderStatus
	To          models.OrderStatus
	Note        string
	ChangedBy   int64
}

// Notifier is informed after a transition commits. Implementations must
// treat delivery as best effort; the transition is already durable.
type Notifier interface {
	Notify(ctx context.Context, event TransitionEvent) error
}

// NopNotifier discards every event.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, TransitionEvent) error { return nil }

// LogNotifier writes each event to the structured log. Stands in for the
// external notification dispatcher.
type LogNotifier struct {
	Log *slog.Logger
}

func (n LogNotifier) Notify(_ context.Context, event TransitionEvent) error {
	n.Log.Info("order transition notification",
		"order_number", event.OrderNumber,
		"from", event.From,
		"to", event.To,
		"changed_by", event.ChangedBy,
	)
	return nil
}
