// Package lifecycle orchestrates order status changes end-to-end: actor
// authorization, transition validation, the atomic store write, and
// post-commit notification.
package lifecycle

import (
	"context"
	"log/slog"

	"github.com/ronycse16b/soulcraft-orders/internal/auth"
	"github.com/ronycse16b/soulcraft-orders/internal/models"
	"github.com/ronycse16b/soulcraft-orders/internal/policy"
	"github.com/ronycse16b/soulcraft-orders/internal/store"
)

// transitionRoles is the role set allowed to drive the order board.
var transitionRoles = []models.Role{models.RoleAdmin, models.RoleModerator}

// OrderStore is the slice of the store the lifecycle engine mutates through.
type OrderStore interface {
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	ApplyStatus(ctx context.Context, id int64, expectedVersion int, change store.StatusChange) (*models.Order, error)
}

type Service struct {
	store    OrderStore
	notifier Notifier
	log      *slog.Logger
}

func NewService(store OrderStore, notifier Notifier, log *slog.Logger) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Service{store: store, notifier: notifier, log: log}
}

// Transition drives one status change. The first three steps, load,
// authorize, validate, mutate nothing; only the store write touches durable
// state, atomically and guarded by the version the order was read at. A
// concurrent writer advancing the version surfaces as ErrStatusConflict and
// the caller reloads and retries.
func (s *Service) Transition(ctx context.Context, orderID int64, requested models.OrderStatus, note string, actor auth.Actor) (*models.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := auth.Authorize(actor, transitionRoles, models.PermUpdate); err != nil {
		return nil, err
	}

	if err := policy.Validate(order.Status, requested, note); err != nil {
		return nil, err
	}

	actorID := actor.ID
	updated, err := s.store.ApplyStatus(ctx, orderID, order.Version, store.StatusChange{
		Status:    requested,
		Note:      note,
		ChangedBy: &actorID,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order status changed",
		"order_id", updated.ID,
		"order_number", updated.OrderNumber,
		"from", order.Status,
		"to", updated.Status,
		"changed_by", actorID,
	)

	// Fire-and-forget: a failed notification never rolls back the
	// transition, and it outlives the request context.
	event := TransitionEvent{
		OrderID:     updated.ID,
		OrderNumber: updated.OrderNumber,
		From:        order.Status,
		To:          updated.Status,
		Note:        note,
		ChangedBy:   actorID,
	}
	go func(ctx context.Context) {
		if err := s.notifier.Notify(ctx, event); err != nil {
			s.log.Warn("transition notification failed",
				"order_id", event.OrderID, "to", event.To, "err", err)
		}
	}(context.WithoutCancel(ctx))

	return updated, nil
}
