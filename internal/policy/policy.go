// Package policy decides which order status transitions are legal and which
// target statuses demand a justification note. The table is a fixed constant
// of the business: it is never mutated at runtime.
package policy

import (
	"fmt"
	"strings"

	"github.com/ronycse16b/soulcraft-orders/internal/models"
)

var (
	ErrIllegalTransition = fmt.Errorf("illegal status transition")
	ErrMissingReason     = fmt.Errorf("status change requires a reason")
)

// transitions maps each status to the set of statuses reachable from it.
// A status listed as its own successor means the admin board may reselect
// the current value; such a no-op still appends a history entry.
var transitions = map[models.OrderStatus]map[models.OrderStatus]bool{
	models.StatusPending: {
		models.StatusProcessing: true,
		models.StatusCancelled:  true,
	},
	models.StatusProcessing: {
		models.StatusProcessing: true,
		models.StatusConfirmed:  true,
		models.StatusCancelled:  true,
	},
	models.StatusConfirmed: {
		models.StatusConfirmed: true,
		models.StatusShipped:   true,
		models.StatusHold:      true,
		models.StatusCancelled: true,
	},
	models.StatusShipped: {
		models.StatusShipped:   true,
		models.StatusDelivered: true,
		models.StatusFailed:    true,
		models.StatusReturn:    true,
	},
	models.StatusHold: {
		models.StatusHold:      true,
		models.StatusConfirmed: true,
		models.StatusCancelled: true,
		models.StatusShipped:   true,
	},
	models.StatusCancelled: {
		models.StatusCancelled: true,
		models.StatusHold:      true,
		models.StatusConfirmed: true,
	},
	models.StatusDelivered: {
		models.StatusDelivered: true,
		models.StatusReturn:    true,
	},
	models.StatusFailed: {
		models.StatusFailed: true,
	},
	models.StatusReturn: {
		models.StatusReturn: true,
	},
}

// reasonRequired lists the target statuses that must carry a non-blank note.
var reasonRequired = map[models.OrderStatus]bool{
	models.StatusCancelled: true,
	models.StatusHold:      true,
	models.StatusFailed:    true,
	models.StatusReturn:    true,
}

// CanTransition reports whether from -> to is in the allowed table. The
// table is closed: anything not listed, including unknown statuses, is
// rejected.
func CanTransition(from, to models.OrderStatus) bool {
	next := transitions[from]
	return next != nil && next[to]
}

// RequiresReason reports whether entering the given status demands a note.
func RequiresReason(to models.OrderStatus) bool {
	return reasonRequired[to]
}

// AllowedNext returns the statuses reachable from the given status, in
// display order. The result is a copy; callers may not reach the table.
func AllowedNext(from models.OrderStatus) []models.OrderStatus {
	next := transitions[from]
	if len(next) == 0 {
		return nil
	}
	out := make([]models.OrderStatus, 0, len(next))
	for _, s := range models.AllStatuses {
		if next[s] {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks a requested transition against the table and the
// reason-required rule. It returns nil when the transition may proceed,
// ErrIllegalTransition when the target is unreachable from the current
// status, and ErrMissingReason when the target needs a note and none (or
// only whitespace) was supplied.
func Validate(current, requested models.OrderStatus, note string) error {
	if !CanTransition(current, requested) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current, requested)
	}
	if RequiresReason(requested) && strings.TrimSpace(note) == "" {
		return fmt.Errorf("%w: %s", ErrMissingReason, requested)
	}
	return nil
}
