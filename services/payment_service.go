package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"venue-backend/models"
)

// PaymentService records payments. It does not talk to any payment provider;
// a payment here is the fact that money was received.
type PaymentService struct {
	DB      *gorm.DB
	Catalog Catalog
	Logger  *zap.Logger
	Clock   func() time.Time
}

func NewPaymentService(db *gorm.DB, catalog Catalog, logger *zap.Logger) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{DB: db, Catalog: catalog, Logger: logger, Clock: time.Now}
}

func (s *PaymentService) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock().UTC()
}

type PaymentInput struct {
	OrderID    uint
	Method     models.PaymentMethod
	EmployeeID uint
	Notes      string
}

// ProcessPayment snapshots the order total into a Payment and moves the order
// to Paid. Both writes share one transaction; the unique index on
// payments.order_id makes a second payment for the same order impossible.
func (s *PaymentService) ProcessPayment(ctx context.Context, in PaymentInput) (*models.Payment, error) {
	if !in.Method.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrValidation, in.Method)
	}
	emp, err := s.Catalog.GetEmployee(ctx, in.EmployeeID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: employee %d", ErrEmployeeInvalid, in.EmployeeID)
		}
		return nil, err
	}
	if !emp.Active {
		return nil, fmt.Errorf("%w: %s is deactivated", ErrEmployeeInvalid, emp.FullName)
	}

	now := s.now()
	var payment models.Payment
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, in.OrderID)
		if err != nil {
			return err
		}
		if err := payable(order.Status); err != nil {
			return err
		}

		payment = models.Payment{
			OrderID:      order.ID,
			Amount:       order.Total,
			Method:       in.Method,
			ReceivedByID: emp.ID,
			Status:       models.PaymentStatusCompleted,
			PaidAt:       now,
			Notes:        strings.TrimSpace(in.Notes),
			CreatedAt:    now,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}

		if err := applyTransition(tx, order, models.OrderStatusPaid, emp.ID, now, nil); err != nil {
			if errors.Is(err, ErrInvalidTransition) {
				return ErrOrderAlreadyPaid
			}
			return err
		}
		return nil
	})
	if err != nil {
		if _, dup := uniqueViolation(err, "order_id"); dup {
			return nil, ErrOrderAlreadyPaid
		}
		if _, isDomain := AsDomainError(err); isDomain {
			return nil, err
		}
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	s.Logger.Info("payment recorded",
		zap.Uint("order_id", payment.OrderID),
		zap.Uint("payment_id", payment.ID),
		zap.String("amount", payment.Amount.StringFixed(2)),
		zap.String("method", string(payment.Method)),
		zap.Uint("received_by", payment.ReceivedByID),
	)
	return &payment, nil
}

func (s *PaymentService) GetPaymentByOrder(ctx context.Context, orderID uint) (*models.Payment, error) {
	var p models.Payment
	if err := s.DB.WithContext(ctx).Where("order_id = ?", orderID).First(&p).Error; err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: payment for order %d", ErrNotFound, orderID)
		}
		return nil, fmt.Errorf("failed to load payment for order %d: %w", orderID, err)
	}
	return &p, nil
}

func payable(status models.OrderStatus) error {
	switch status {
	case models.OrderStatusPaid, models.OrderStatusCompleted:
		return ErrOrderAlreadyPaid
	case models.OrderStatusCancelled:
		return ErrOrderCancelled
	case models.OrderStatusReadyToPay:
		return nil
	}
	return fmt.Errorf("%w (status %s)", ErrOrderNotPayable, status)
}
