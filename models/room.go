package models

import (
	"time"

	"gorm.io/gorm"
)

type Room struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Name       string     `gorm:"size:100;not null" json:"name"`
	RoomNumber *string    `gorm:"column:room_number;uniqueIndex;type:varchar(50)" json:"roomNumber,omitempty"`
	Capacity   int        `gorm:"not null;default:1" json:"capacity"`
	Status     RoomStatus `gorm:"size:32;not null;default:active;index" json:"status"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (r Room) IsActive() bool {
	return r.Status == RoomStatusActive
}
