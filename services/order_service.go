package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"venue-backend/models"
	"venue-backend/utils"
)

// maxOrderNumberAttempts is the first try plus one retry with a fresh number.
const maxOrderNumberAttempts = 2

// OrderService owns the order state machine, line items and totals.
type OrderService struct {
	DB      *gorm.DB
	Ledger  *LedgerService
	Catalog Catalog
	Logger  *zap.Logger
	Clock   func() time.Time
}

func NewOrderService(db *gorm.DB, ledger *LedgerService, catalog Catalog, logger *zap.Logger) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{DB: db, Ledger: ledger, Catalog: catalog, Logger: logger, Clock: time.Now}
}

func (s *OrderService) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock().UTC()
}

type CreateOrderInput struct {
	RoomID      uint
	EmployeeID  uint
	ClientName  string
	ClientPhone string
	GuestCount  int
	Date        time.Time
	Slot        models.TimeSlot
	Notes       string
}

func (in *CreateOrderInput) normalize() error {
	in.ClientName = strings.TrimSpace(in.ClientName)
	in.ClientPhone = strings.TrimSpace(in.ClientPhone)
	in.Notes = strings.TrimSpace(in.Notes)
	switch {
	case in.ClientName == "":
		return fmt.Errorf("%w: client name is required", ErrValidation)
	case in.ClientPhone == "":
		return fmt.Errorf("%w: client phone is required", ErrValidation)
	case in.GuestCount <= 0:
		return fmt.Errorf("%w: guest count must be a positive integer", ErrValidation)
	case !in.Slot.Valid():
		return fmt.Errorf("%w: unknown time slot %q", ErrValidation, in.Slot)
	case in.Date.IsZero():
		return fmt.Errorf("%w: booking date is required", ErrValidation)
	}
	return nil
}

// CreateOrder books a room slot. The availability check and the insert run in
// one transaction; a concurrent winner is detected through the slot_key unique
// index and reported as ErrRoomUnavailable.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if err := s.requireActiveEmployee(ctx, in.EmployeeID); err != nil {
		return nil, err
	}
	date := s.Ledger.NormalizeDate(in.Date)
	key := slotKey(in.RoomID, utils.DateKey(date), in.Slot)

	var order models.Order
	var err error
	for attempt := 0; attempt < maxOrderNumberAttempts; attempt++ {
		now := s.now()
		err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			ok, room, err := s.Ledger.availableTx(tx, in.RoomID, date, in.Slot)
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: room %d", ErrRoomInvalid, in.RoomID)
			}
			if err != nil {
				return err
			}
			if !room.IsActive() {
				return fmt.Errorf("%w: room %d is %s", ErrRoomInvalid, room.ID, room.Status)
			}
			if !ok {
				return ErrRoomUnavailable
			}

			number, err := s.Ledger.orderNumberTx(tx, now, attempt)
			if err != nil {
				return err
			}
			order = models.Order{
				OrderNumber: number,
				RoomID:      in.RoomID,
				EmployeeID:  in.EmployeeID,
				ClientName:  in.ClientName,
				ClientPhone: in.ClientPhone,
				GuestCount:  in.GuestCount,
				BookingDate: date,
				TimeSlot:    in.Slot,
				Status:      models.OrderStatusCreated,
				SlotKey:     &key,
				Total:       decimal.Zero,
				Notes:       in.Notes,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := tx.Create(&order).Error; err != nil {
				return err
			}
			return recordEvent(tx, order.ID, "", models.OrderStatusCreated, in.EmployeeID, now, map[string]any{
				"orderNumber": number,
				"roomId":      in.RoomID,
				"date":        utils.DateKey(date),
				"slot":        in.Slot,
			})
		})
		if err == nil {
			break
		}
		col, dup := uniqueViolation(err, "slot_key", "order_number")
		if dup && col == "slot_key" {
			return nil, ErrRoomUnavailable
		}
		if dup && col == "order_number" && attempt+1 < maxOrderNumberAttempts {
			s.Logger.Warn("order number collision, retrying", zap.String("order_number", order.OrderNumber))
			continue
		}
		if dup {
			return nil, fmt.Errorf("failed to allocate order number: %w", err)
		}
		if _, isDomain := AsDomainError(err); isDomain {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	if err != nil {
		return nil, err
	}

	order.Items = []models.OrderItem{}
	s.Logger.Info("order created",
		zap.Uint("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Uint("room_id", order.RoomID),
		zap.String("date", utils.DateKey(date)),
		zap.String("slot", string(order.TimeSlot)),
	)
	return &order, nil
}

type AddItemInput struct {
	OrderID    uint
	ProductID  uint
	Quantity   decimal.Decimal
	EmployeeID uint
}

// AddItem appends a line with the product's current name, unit and price and
// recomputes the order total in the same transaction.
func (s *OrderService) AddItem(ctx context.Context, in AddItemInput) (*models.OrderItem, error) {
	if err := validateQuantity(in.Quantity); err != nil {
		return nil, err
	}
	product, err := s.Catalog.GetProduct(ctx, in.ProductID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: product %d", ErrProductInvalid, in.ProductID)
		}
		return nil, err
	}
	if !product.Available {
		return nil, fmt.Errorf("%w: %s is not available", ErrProductInvalid, product.Name)
	}
	if err := s.requireActiveEmployee(ctx, in.EmployeeID); err != nil {
		return nil, err
	}

	now := s.now()
	item := models.OrderItem{
		ProductID: product.ID,
		Name:      product.Name,
		Unit:      product.Unit,
		UnitPrice: product.Price,
		Quantity:  in.Quantity,
		Subtotal:  lineSubtotal(in.Quantity, product.Price),
		AddedByID: in.EmployeeID,
		CreatedAt: now,
	}

	var total decimal.Decimal
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, in.OrderID)
		if err != nil {
			return err
		}
		if !AcceptsItems(order.Status) {
			return fmt.Errorf("%w (status %s)", ErrOrderNotModifiable, order.Status)
		}

		item.OrderID = order.ID
		if err := tx.Create(&item).Error; err != nil {
			return fmt.Errorf("failed to add item: %w", err)
		}
		total, err = sumItems(tx, order.ID)
		if err != nil {
			return err
		}
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, order.Status).
			Updates(map[string]interface{}{"total": total, "updated_at": now})
		if res.Error != nil {
			return fmt.Errorf("failed to update order total: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: order changed concurrently", ErrOrderNotModifiable)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("order item added",
		zap.Uint("order_id", in.OrderID),
		zap.Uint("product_id", item.ProductID),
		zap.String("quantity", item.Quantity.String()),
		zap.String("subtotal", item.Subtotal.StringFixed(2)),
		zap.String("total", total.StringFixed(2)),
	)
	return &item, nil
}

// ChangeStatus moves an order along the transition table. Moving to Paid is
// rejected here; PaymentService.ProcessPayment does that.
func (s *OrderService) ChangeStatus(ctx context.Context, orderID uint, to models.OrderStatus, actorID uint) (*models.Order, error) {
	now := s.now()
	var from models.OrderStatus
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		from = order.Status
		if err := actorTransitionAllowed(from, to); err != nil {
			return err
		}
		return applyTransition(tx, order, to, actorID, now, nil)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("order status changed",
		zap.Uint("order_id", orderID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Uint("actor_id", actorID),
	)
	return s.GetOrder(ctx, orderID)
}

// CancelOrder cancels a Created or Confirmed order and frees its room slot.
func (s *OrderService) CancelOrder(ctx context.Context, orderID uint, actorID uint) (*models.Order, error) {
	return s.ChangeStatus(ctx, orderID, models.OrderStatusCancelled, actorID)
}

// RecalculateTotal recomputes the total from the current lines. Calling it twice
// yields the same value.
func (s *OrderService) RecalculateTotal(ctx context.Context, orderID uint) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		total, err = sumItems(tx, order.ID)
		if err != nil {
			return err
		}
		if total.Equal(order.Total) {
			return nil
		}
		s.Logger.Warn("order total drift corrected",
			zap.Uint("order_id", order.ID),
			zap.String("stored", order.Total.StringFixed(2)),
			zap.String("computed", total.StringFixed(2)),
		)
		return tx.Model(&models.Order{}).Where("id = ?", order.ID).
			Updates(map[string]interface{}{"total": total, "updated_at": s.now()}).Error
	})
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	err := s.DB.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Payment").
		First(&order, id).Error
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: id %d", ErrOrderNotFound, id)
		}
		return nil, fmt.Errorf("failed to load order %d: %w", id, err)
	}
	if order.Items == nil {
		order.Items = []models.OrderItem{}
	}
	return &order, nil
}

func (s *OrderService) GetOrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	var order models.Order
	err := s.DB.WithContext(ctx).Where("order_number = ?", strings.TrimSpace(number)).First(&order).Error
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: number %s", ErrOrderNotFound, number)
		}
		return nil, fmt.Errorf("failed to load order %s: %w", number, err)
	}
	return s.GetOrder(ctx, order.ID)
}

// OrderFilter narrows ListOrders. Zero values mean "any".
type OrderFilter struct {
	Date       *time.Time
	Slot       models.TimeSlot
	Status     models.OrderStatus
	RoomID     uint
	EmployeeID uint
	OpenOnly   bool
}

func (s *OrderService) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	q := s.DB.WithContext(ctx).Model(&models.Order{})
	if f.Date != nil {
		q = q.Where("booking_date = ?", s.Ledger.NormalizeDate(*f.Date))
	}
	if f.Slot != "" {
		q = q.Where("time_slot = ?", f.Slot)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.RoomID != 0 {
		q = q.Where("room_id = ?", f.RoomID)
	}
	if f.EmployeeID != 0 {
		q = q.Where("employee_id = ?", f.EmployeeID)
	}
	if f.OpenOnly {
		q = q.Where("status NOT IN ?", []models.OrderStatus{models.OrderStatusCompleted, models.OrderStatusCancelled})
	}

	var list []models.Order
	if err := q.Order("booking_date DESC, id DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return list, nil
}

// ListOpenOrders returns all orders that still hold their room slot.
func (s *OrderService) ListOpenOrders(ctx context.Context) ([]models.Order, error) {
	return s.ListOrders(ctx, OrderFilter{OpenOnly: true})
}

func (s *OrderService) OrderHistory(ctx context.Context, orderID uint) ([]models.OrderEvent, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&models.Order{}).Where("id = ?", orderID).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("failed to load order %d: %w", orderID, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: id %d", ErrOrderNotFound, orderID)
	}
	var events []models.OrderEvent
	if err := s.DB.WithContext(ctx).Where("order_id = ?", orderID).Order("id").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to load order %d history: %w", orderID, err)
	}
	return events, nil
}

func (s *OrderService) requireActiveEmployee(ctx context.Context, id uint) error {
	emp, err := s.Catalog.GetEmployee(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: employee %d", ErrEmployeeInvalid, id)
		}
		return err
	}
	if !emp.Active {
		return fmt.Errorf("%w: %s is deactivated", ErrEmployeeInvalid, emp.FullName)
	}
	return nil
}

// lockOrder reads the order row for update. SQLite ignores the locking clause
// and serialises writers instead.
func lockOrder(tx *gorm.DB, id uint) (*models.Order, error) {
	var order models.Order
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, id).Error; err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: id %d", ErrOrderNotFound, id)
		}
		return nil, fmt.Errorf("failed to load order %d: %w", id, err)
	}
	return &order, nil
}

// applyTransition writes the new status guarded by the status it was read with,
// releases the slot on terminal states and appends the history row.
func applyTransition(tx *gorm.DB, order *models.Order, to models.OrderStatus, actorID uint, now time.Time, extra map[string]interface{}) error {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": now,
	}
	switch to {
	case models.OrderStatusCompleted:
		updates["completed_at"] = now
		updates["slot_key"] = nil
	case models.OrderStatusCancelled:
		updates["slot_key"] = nil
	case models.OrderStatusPaid:
		updates["paid_at"] = now
	}
	for k, v := range extra {
		updates[k] = v
	}

	res := tx.Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, order.Status).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update order %d: %w", order.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: order %d changed concurrently", ErrInvalidTransition, order.ID)
	}
	return recordEvent(tx, order.ID, order.Status, to, actorID, now, nil)
}

func recordEvent(tx *gorm.DB, orderID uint, from, to models.OrderStatus, actorID uint, at time.Time, payload map[string]any) error {
	ev := models.OrderEvent{
		OrderID:    orderID,
		FromStatus: from,
		ToStatus:   to,
		ActorID:    actorID,
		CreatedAt:  at,
	}
	if len(payload) > 0 {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode order event: %w", err)
		}
		ev.Payload = datatypes.JSON(raw)
	}
	if err := tx.Create(&ev).Error; err != nil {
		return fmt.Errorf("failed to record order event: %w", err)
	}
	return nil
}

func sumItems(tx *gorm.DB, orderID uint) (decimal.Decimal, error) {
	var subtotals []decimal.Decimal
	if err := tx.Model(&models.OrderItem{}).Where("order_id = ?", orderID).Pluck("subtotal", &subtotals).Error; err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum order %d items: %w", orderID, err)
	}
	total := decimal.Zero
	for _, st := range subtotals {
		total = total.Add(st)
	}
	return total, nil
}

// quantityPlaces matches the scale of order_items.quantity. A finer quantity
// would be rounded by the database after its subtotal was computed.
const quantityPlaces = 3

func validateQuantity(qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return fmt.Errorf("%w: quantity must be a positive number", ErrValidation)
	}
	if !qty.Equal(qty.Round(quantityPlaces)) {
		return fmt.Errorf("%w: quantity allows at most %d decimal places", ErrValidation, quantityPlaces)
	}
	return nil
}

func lineSubtotal(qty, price decimal.Decimal) decimal.Decimal {
	return qty.Mul(price).Round(2)
}
