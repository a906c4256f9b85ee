package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"venue-backend/models"
	"venue-backend/utils"
)

// LedgerService answers availability questions over committed, non-terminal orders
// and allocates order numbers.
type LedgerService struct {
	DB       *gorm.DB
	Location *time.Location
	Clock    func() time.Time
}

func NewLedgerService(db *gorm.DB, loc *time.Location) *LedgerService {
	if loc == nil {
		loc = time.UTC
	}
	return &LedgerService{DB: db, Location: loc, Clock: time.Now}
}

func (s *LedgerService) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock()
}

// NormalizeDate maps any instant to its venue calendar date.
func (s *LedgerService) NormalizeDate(t time.Time) time.Time {
	return utils.NormalizeDate(t, s.Location)
}

// CheckAvailability reports whether room is active and free for (date, slot).
func (s *LedgerService) CheckAvailability(ctx context.Context, roomID uint, date time.Time, slot models.TimeSlot) (bool, error) {
	if !slot.Valid() {
		return false, fmt.Errorf("%w: unknown time slot %q", ErrValidation, slot)
	}
	ok, _, err := s.availableTx(s.DB.WithContext(ctx), roomID, s.NormalizeDate(date), slot)
	return ok, err
}

// availableTx evaluates the availability predicate on tx. CreateOrder calls it
// inside the same transaction as the insert.
func (s *LedgerService) availableTx(tx *gorm.DB, roomID uint, date time.Time, slot models.TimeSlot) (bool, *models.Room, error) {
	var room models.Room
	if err := tx.First(&room, roomID).Error; err != nil {
		if isNotFound(err) {
			return false, nil, fmt.Errorf("%w: room %d", ErrNotFound, roomID)
		}
		return false, nil, fmt.Errorf("failed to load room %d: %w", roomID, err)
	}
	if !room.IsActive() {
		return false, &room, nil
	}

	var conflicts int64
	if err := tx.Model(&models.Order{}).
		Where("slot_key = ?", slotKey(roomID, utils.DateKey(date), slot)).
		Count(&conflicts).Error; err != nil {
		return false, &room, fmt.Errorf("failed to check room %d availability: %w", roomID, err)
	}
	return conflicts == 0, &room, nil
}

// ListAvailableRooms returns active rooms with no live order for (date, slot).
func (s *LedgerService) ListAvailableRooms(ctx context.Context, date time.Time, slot models.TimeSlot) ([]models.Room, error) {
	if !slot.Valid() {
		return nil, fmt.Errorf("%w: unknown time slot %q", ErrValidation, slot)
	}
	db := s.DB.WithContext(ctx)
	dateKey := utils.DateKey(s.NormalizeDate(date))

	var rooms []models.Room
	if err := db.Where("status = ?", models.RoomStatusActive).Order("id").Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	if len(rooms) == 0 {
		return rooms, nil
	}

	keys := make([]string, 0, len(rooms))
	for _, r := range rooms {
		keys = append(keys, slotKey(r.ID, dateKey, slot))
	}
	var taken []uint
	if err := db.Model(&models.Order{}).Where("slot_key IN ?", keys).Pluck("room_id", &taken).Error; err != nil {
		return nil, fmt.Errorf("failed to load booked rooms: %w", err)
	}
	busy := make(map[uint]struct{}, len(taken))
	for _, id := range taken {
		busy[id] = struct{}{}
	}

	free := make([]models.Room, 0, len(rooms))
	for _, r := range rooms {
		if _, ok := busy[r.ID]; !ok {
			free = append(free, r)
		}
	}
	return free, nil
}

// GenerateOrderNumber renders ORD-YYYYMMDD-NNN for the current venue day, where
// NNN is one more than the orders already created today. It is a guess: the
// unique index on order_number is what guarantees uniqueness.
func (s *LedgerService) GenerateOrderNumber(ctx context.Context) (string, error) {
	return s.orderNumberTx(s.DB.WithContext(ctx), s.now(), 0)
}

// orderNumberTx counts today's orders on tx. skip moves the guess forward on
// a retry after a collision.
func (s *LedgerService) orderNumberTx(tx *gorm.DB, now time.Time, skip int) (string, error) {
	local := now.In(s.Location)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.Location)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var count int64
	if err := tx.Model(&models.Order{}).
		Where("created_at >= ? AND created_at < ?", dayStart.UTC(), dayEnd.UTC()).
		Count(&count).Error; err != nil {
		return "", fmt.Errorf("failed to count today's orders: %w", err)
	}
	return fmt.Sprintf("ORD-%s-%03d", local.Format("20060102"), count+1+int64(skip)), nil
}
