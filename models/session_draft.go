package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SessionStep is the conversational step a draft is waiting on.
type SessionStep string

const (
	StepDate        SessionStep = "date"
	StepSlot        SessionStep = "slot"
	StepRoom        SessionStep = "room"
	StepClientName  SessionStep = "client_name"
	StepClientPhone SessionStep = "client_phone"
	StepGuestCount  SessionStep = "guest_count"
	StepCategory    SessionStep = "category"
	StepProduct     SessionStep = "product"
	StepQuantity    SessionStep = "quantity"
)

// DraftLine is a staged cart line not yet written to any order.
type DraftLine struct {
	ProductID uint            `json:"productId"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	Unit      string          `json:"unit"`
	Price     decimal.Decimal `json:"price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// SessionDraft is the per-actor staging area for a booking. It is never persisted
// to the database; it lives in a draft store until commit or cancel.
type SessionDraft struct {
	ID         string      `json:"id"`
	ActorID    string      `json:"actorId"`
	EmployeeID uint        `json:"employeeId"`
	Step       SessionStep `json:"step"`

	Date        *time.Time `json:"date,omitempty"`
	Slot        TimeSlot   `json:"slot,omitempty"`
	RoomID      uint       `json:"roomId,omitempty"`
	ClientName  string     `json:"clientName,omitempty"`
	ClientPhone string     `json:"clientPhone,omitempty"`
	GuestCount  int        `json:"guestCount,omitempty"`
	Notes       string     `json:"notes,omitempty"`

	CategoryID uint `json:"categoryId,omitempty"`
	ProductID  uint `json:"productId,omitempty"`

	Lines []DraftLine `json:"lines"`

	StartedAt time.Time `json:"startedAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CartTotal sums the staged line subtotals.
func (d *SessionDraft) CartTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range d.Lines {
		total = total.Add(l.Subtotal)
	}
	return total
}
