package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Order is a room booking for one (date, slot) plus everything ordered during the visit.
//
// SlotKey holds "<room>|<date>|<slot>" while the order is not terminal and NULL
// once it is cancelled or completed. The unique index on it is what stops two
// live orders from holding the same room slot.
type Order struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	OrderNumber string `gorm:"column:order_number;size:32;not null;uniqueIndex:uq_orders_order_number" json:"orderNumber"`

	RoomID     uint `gorm:"index:idx_orders_room_date_slot,priority:1;not null" json:"roomId"`
	EmployeeID uint `gorm:"index;not null" json:"employeeId"`

	ClientName  string `gorm:"size:255;not null" json:"clientName"`
	ClientPhone string `gorm:"size:50;not null" json:"clientPhone"`
	GuestCount  int    `gorm:"not null" json:"guestCount"`

	BookingDate time.Time   `gorm:"type:date;not null;index:idx_orders_room_date_slot,priority:2" json:"bookingDate"`
	TimeSlot    TimeSlot    `gorm:"size:16;not null;index:idx_orders_room_date_slot,priority:3" json:"timeSlot"`
	Status      OrderStatus `gorm:"size:32;not null;index" json:"status"`
	SlotKey     *string     `gorm:"column:slot_key;size:64;uniqueIndex:uq_orders_slot_key" json:"-"`

	Total decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	Notes string          `gorm:"type:text" json:"notes,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	PaidAt      *time.Time `json:"paidAt,omitempty"`

	Items   []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
	Payment *Payment    `gorm:"foreignKey:OrderID" json:"payment,omitempty"`
}

// OrderItem is an immutable line. Name, unit and price are copied from the
// product when the line is added and are never re-read from the catalog.
type OrderItem struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OrderID   uint            `gorm:"index;not null" json:"orderId"`
	ProductID uint            `gorm:"index;not null" json:"productId"`
	Name      string          `gorm:"size:150;not null" json:"name"`
	Unit      string          `gorm:"size:20;not null" json:"unit"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unitPrice"`
	Quantity  decimal.Decimal `gorm:"type:decimal(12,3);not null" json:"quantity"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	AddedByID uint            `gorm:"column:added_by_id;index" json:"addedById"`
	CreatedAt time.Time       `json:"createdAt"`
}

type Payment struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	OrderID      uint            `gorm:"not null;uniqueIndex:uq_payments_order_id" json:"orderId"`
	Amount       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Method       PaymentMethod   `gorm:"size:16;not null" json:"method"`
	ReceivedByID uint            `gorm:"column:received_by_id;index;not null" json:"receivedById"`
	Status       PaymentStatus   `gorm:"size:16;not null" json:"status"`
	PaidAt       time.Time       `json:"paidAt"`
	Notes        string          `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// OrderEvent is one row of an order's status history.
type OrderEvent struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	OrderID    uint           `gorm:"index;not null" json:"orderId"`
	FromStatus OrderStatus    `gorm:"column:from_status;size:32" json:"from,omitempty"`
	ToStatus   OrderStatus    `gorm:"column:to_status;size:32;not null" json:"to"`
	ActorID    uint           `gorm:"index" json:"actorId,omitempty"`
	Payload    datatypes.JSON `json:"payload,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}
