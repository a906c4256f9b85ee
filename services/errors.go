package services

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// DomainError is a business-rule failure meant to be shown to the actor as is.
// Sentinels below are compared with errors.Is; callers may wrap them with more context.
type DomainError struct {
	Code    string
	Message string

	// kind is a broader sentinel this error also matches under errors.Is.
	kind *DomainError
}

func (e *DomainError) Error() string { return e.Message }

func (e *DomainError) Is(target error) bool {
	return e.kind != nil && target == error(e.kind)
}

var (
	ErrRoomUnavailable    = &DomainError{Code: "room_unavailable", Message: "room is already booked for this date and slot"}
	ErrRoomInvalid        = &DomainError{Code: "room_invalid", Message: "room does not exist or is not active"}
	ErrEmployeeInvalid    = &DomainError{Code: "employee_invalid", Message: "employee does not exist or is not active"}
	ErrOrderNotFound      = &DomainError{Code: "order_not_found", Message: "order not found"}
	ErrOrderNotModifiable = &DomainError{Code: "order_not_modifiable", Message: "items cannot be added to the order at its current stage"}
	ErrInvalidTransition  = &DomainError{Code: "invalid_transition", Message: "status change is not allowed"}
	ErrNotCancellable     = &DomainError{Code: "not_cancellable", Message: "cannot cancel at current stage", kind: ErrInvalidTransition}
	ErrOrderAlreadyPaid   = &DomainError{Code: "order_already_paid", Message: "order is already paid"}
	ErrOrderCancelled     = &DomainError{Code: "order_cancelled", Message: "order is cancelled"}
	ErrOrderNotPayable    = &DomainError{Code: "order_not_payable", Message: "order is not ready to pay"}
	ErrProductInvalid     = &DomainError{Code: "product_invalid", Message: "product does not exist or is not available"}
	ErrCategoryInvalid    = &DomainError{Code: "category_invalid", Message: "category does not exist or is not active"}
	ErrEmptyCart          = &DomainError{Code: "empty_cart", Message: "cart is empty, add at least one item"}
	ErrNoRoomsAvailable   = &DomainError{Code: "no_rooms_available", Message: "no rooms are free for this date and slot, pick another date"}
	ErrSessionNotFound    = &DomainError{Code: "session_not_found", Message: "no booking in progress, start a new one"}
	ErrStepOutOfOrder     = &DomainError{Code: "step_out_of_order", Message: "this step is not expected now"}
	ErrInvalidCredentials = &DomainError{Code: "invalid_credentials", Message: "invalid credentials"}
	ErrNotFound           = &DomainError{Code: "not_found", Message: "record not found"}
	ErrConflict           = &DomainError{Code: "conflict", Message: "record already exists"}
)

// ErrValidation marks bad input shape. The actor is re-prompted; nothing is written.
var ErrValidation = errors.New("validation")

// AsDomainError unwraps err to its DomainError, if any.
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// ValidationMessage strips the "validation: " prefix for display.
func ValidationMessage(err error) string {
	return strings.TrimPrefix(err.Error(), ErrValidation.Error()+": ")
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

const mysqlDuplicateEntry = 1062

// uniqueViolation reports whether err is a unique-constraint failure and, if so,
// which constraint fired. The constraint name is matched against the column it
// guards, which both MySQL ("Duplicate entry ... for key 'orders.uq_orders_slot_key'")
// and SQLite ("UNIQUE constraint failed: orders.slot_key") mention.
func uniqueViolation(err error, columns ...string) (string, bool) {
	if err == nil {
		return "", false
	}
	msg := err.Error()
	var myErr *mysql.MySQLError
	dup := errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
	if !dup {
		dup = errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(msg, "Duplicate entry") ||
			strings.Contains(msg, "UNIQUE constraint failed")
	}
	if !dup {
		return "", false
	}
	for _, col := range columns {
		if strings.Contains(msg, col) {
			return col, true
		}
	}
	return "", true
}
