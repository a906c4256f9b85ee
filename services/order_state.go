package services

import (
	"fmt"
	"slices"

	"venue-backend/models"
)

// orderTransitions lists every edge an actor may request. Paid is reachable only
// through the payment recorder, see actorTransitionAllowed.
var orderTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusCreated: {
		models.OrderStatusConfirmed,
		models.OrderStatusActive,
		models.OrderStatusReadyToPay,
		models.OrderStatusCancelled,
	},
	models.OrderStatusConfirmed: {
		models.OrderStatusActive,
		models.OrderStatusReadyToPay,
		models.OrderStatusCancelled,
	},
	models.OrderStatusActive: {
		models.OrderStatusReadyToPay,
	},
	models.OrderStatusReadyToPay: {
		models.OrderStatusPaid,
	},
	models.OrderStatusPaid: {
		models.OrderStatusCompleted,
	},
}

var cancellableStatuses = []models.OrderStatus{
	models.OrderStatusCreated,
	models.OrderStatusConfirmed,
}

var itemLockedStatuses = []models.OrderStatus{
	models.OrderStatusPaid,
	models.OrderStatusCompleted,
	models.OrderStatusCancelled,
}

// CanTransition reports whether the table has an edge from -> to.
func CanTransition(from, to models.OrderStatus) bool {
	return slices.Contains(orderTransitions[from], to)
}

// IsCancellable reports whether an order in status s may be cancelled.
func IsCancellable(s models.OrderStatus) bool {
	return slices.Contains(cancellableStatuses, s)
}

// AcceptsItems reports whether line items may be added in status s.
func AcceptsItems(s models.OrderStatus) bool {
	return !slices.Contains(itemLockedStatuses, s)
}

// NextStatuses returns the statuses an actor may move an order to from s.
func NextStatuses(s models.OrderStatus) []models.OrderStatus {
	out := make([]models.OrderStatus, 0, len(orderTransitions[s]))
	for _, to := range orderTransitions[s] {
		if to == models.OrderStatusPaid {
			continue
		}
		out = append(out, to)
	}
	return out
}

// validateTransition is the single guard checked before every status write.
func validateTransition(from, to models.OrderStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, to)
	}
	if to == models.OrderStatusCancelled {
		if IsCancellable(from) {
			return nil
		}
		return fmt.Errorf("%w (status %s)", ErrNotCancellable, from)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// actorTransitionAllowed is validateTransition minus the payment edge, which only
// PaymentService may drive.
func actorTransitionAllowed(from, to models.OrderStatus) error {
	if to == models.OrderStatusPaid {
		return fmt.Errorf("%w: %s -> %s is set by recording a payment", ErrInvalidTransition, from, to)
	}
	return validateTransition(from, to)
}

// slotKey is the value of Order.SlotKey for a live order.
func slotKey(roomID uint, dateKey string, slot models.TimeSlot) string {
	return fmt.Sprintf("%d|%s|%s", roomID, dateKey, slot)
}
