package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Category struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Name      string `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Active    bool   `gorm:"not null" json:"active"`
	SortOrder int    `gorm:"not null;default:0" json:"sortOrder"`

	CreatedAt time.Time      `json:"createdAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Product is a food or drink item that can be added to an order.
// Unit is free text ("pcs", "kg", "l"); quantities may be fractional.
type Product struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	CategoryID uint            `gorm:"index;not null" json:"categoryId"`
	Name       string          `gorm:"size:150;not null" json:"name"`
	Unit       string          `gorm:"size:20;not null;default:pcs" json:"unit"`
	Price      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Available  bool            `gorm:"not null" json:"available"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

type Employee struct {
	ID         uint         `gorm:"primaryKey" json:"id"`
	FullName   string       `gorm:"size:255;not null" json:"fullName"`
	Role       EmployeeRole `gorm:"size:32;not null;default:waiter" json:"role"`
	Phone      string       `gorm:"size:50" json:"phone,omitempty"`
	ExternalID *string      `gorm:"column:external_id;uniqueIndex;size:64" json:"externalId,omitempty"`
	Active     bool         `gorm:"not null" json:"active"`

	// PinHash is the bcrypt hash of the employee's login PIN. Pin is only
	// accepted on create and never stored.
	PinHash string `gorm:"column:pin_hash;size:100" json:"-"`
	Pin     string `gorm:"-" json:"pin,omitempty"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
