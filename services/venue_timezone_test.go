package services

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venue-backend/models"
	"venue-backend/utils"
)

// venueZones covers calendars behind and ahead of UTC. In October New York is
// UTC-4 and Tokyo is UTC+9.
var venueZones = []string{"America/New_York", "Pacific/Honolulu", "Asia/Tokyo", "Pacific/Auckland"}

func loadZone(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestCreateOrderKeepsRequestedDateInVenueZone(t *testing.T) {
	for _, name := range venueZones {
		t.Run(name, func(t *testing.T) {
			loc := loadZone(t, name)
			env := newTestEnvIn(t, loc)
			ctx := context.Background()

			date, err := utils.ParseDate("2026-10-20", loc)
			require.NoError(t, err)

			in := env.orderInput(env.Room.ID)
			in.Date = date
			order, err := env.Orders.CreateOrder(ctx, in)
			require.NoError(t, err)
			assert.Equal(t, "2026-10-20", utils.DateKey(order.BookingDate))

			stored, err := env.Orders.GetOrder(ctx, order.ID)
			require.NoError(t, err)
			assert.Equal(t, "2026-10-20", utils.DateKey(stored.BookingDate))

			ok, err := env.Ledger.CheckAvailability(ctx, env.Room.ID, date, models.TimeSlotDay)
			require.NoError(t, err)
			assert.False(t, ok, "booked day")
			ok, err = env.Ledger.CheckAvailability(ctx, env.Room.ID, date.AddDate(0, 0, -1), models.TimeSlotDay)
			require.NoError(t, err)
			assert.True(t, ok, "day before stays free")

			free, err := env.Ledger.ListAvailableRooms(ctx, date, models.TimeSlotDay)
			require.NoError(t, err)
			assert.Empty(t, free)

			found, err := env.Orders.ListOrders(ctx, OrderFilter{Date: &date})
			require.NoError(t, err)
			require.Len(t, found, 1)
			assert.Equal(t, order.ID, found[0].ID)
		})
	}
}

func TestCreateOrderMapsInstantToVenueDay(t *testing.T) {
	ny := loadZone(t, "America/New_York")
	env := newTestEnvIn(t, ny)

	// 02:00 UTC on the 21st is still the evening of the 20th in New York
	in := env.orderInput(env.Room.ID)
	in.Date = time.Date(2026, 10, 21, 2, 0, 0, 0, time.UTC)
	order, err := env.Orders.CreateOrder(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-20", utils.DateKey(order.BookingDate))
}

func TestSessionCommitKeepsDateInVenueZone(t *testing.T) {
	for _, name := range venueZones {
		t.Run(name, func(t *testing.T) {
			env := newTestEnvIn(t, loadZone(t, name))
			ctx := context.Background()
			env.stageCart(t)

			_, err := env.Sessions.StepAddLine(ctx, actor, env.Product.ID, "2")
			require.NoError(t, err)
			res, err := env.Sessions.Commit(ctx, actor)
			require.NoError(t, err)
			assert.Equal(t, "2026-10-20", utils.DateKey(res.Order.BookingDate))
			assert.Equal(t, "20.00", res.Order.Total.StringFixed(2))
		})
	}
}
