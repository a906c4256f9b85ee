package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venue-backend/models"
)

func TestBookingScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order, err := env.Orders.CreateOrder(ctx, env.orderInput(env.Room.ID))
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCreated, order.Status)
	assert.True(t, order.Total.IsZero())
	assert.Equal(t, "ORD-20261018-001", order.OrderNumber)

	env.addItem(t, order.ID, env.Product.ID, "2")
	order, err = env.Orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "20.00", order.Total.StringFixed(2))

	_, err = env.Orders.ChangeStatus(ctx, order.ID, models.OrderStatusReadyToPay, env.Employee.ID)
	require.NoError(t, err)

	payment := env.pay(t, order.ID)
	assert.Equal(t, "20.00", payment.Amount.StringFixed(2))

	order, err = env.Orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, order.Status)
	require.NotNil(t, order.PaidAt)

	_, err = env.Orders.CreateOrder(ctx, env.orderInput(env.Room.ID))
	assert.ErrorIs(t, err, ErrRoomUnavailable)
}

func TestCreateOrderReleasesSlotOnTerminalStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.createOrder(t)
	_, err := env.Orders.CreateOrder(ctx, env.orderInput(env.Room.ID))
	require.ErrorIs(t, err, ErrRoomUnavailable)

	ok, err := env.Ledger.CheckAvailability(ctx, env.Room.ID, bookingDate.Add(15*time.Hour), models.TimeSlotDay)
	require.NoError(t, err)
	assert.False(t, ok, "time of day must not matter")

	ok, err = env.Ledger.CheckAvailability(ctx, env.Room.ID, bookingDate, models.TimeSlotEvening)
	require.NoError(t, err)
	assert.True(t, ok, "other slot is free")

	_, err = env.Orders.CancelOrder(ctx, first.ID, env.Employee.ID)
	require.NoError(t, err)

	second := env.createOrder(t)
	assert.NotEqual(t, first.ID, second.ID)

	// a completed order frees the slot too
	other := env.addRoom(t, "Sauna 2", 4, models.RoomStatusActive)
	env.orderIn(t, other.ID, models.OrderStatusCompleted)
	ok, err = env.Ledger.CheckAvailability(ctx, other.ID, bookingDate, models.TimeSlotDay)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreateOrderConcurrentSameSlot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const racers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		others    []error
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.Orders.CreateOrder(ctx, env.orderInput(env.Room.ID))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrRoomUnavailable):
				conflicts++
			default:
				others = append(others, err)
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, others)
	assert.Equal(t, 1, successes)
	assert.Equal(t, racers-1, conflicts)

	var live int64
	require.NoError(t, env.DB.Model(&models.Order{}).Where("slot_key IS NOT NULL").Count(&live).Error)
	assert.EqualValues(t, 1, live)
}

func TestCreateOrderValidatesRoomAndEmployee(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	in := env.orderInput(9999)
	_, err := env.Orders.CreateOrder(ctx, in)
	assert.ErrorIs(t, err, ErrRoomInvalid)

	broken := env.addRoom(t, "Gazebo", 10, models.RoomStatusMaintenance)
	_, err = env.Orders.CreateOrder(ctx, env.orderInput(broken.ID))
	assert.ErrorIs(t, err, ErrRoomInvalid)

	ok, err := env.Ledger.CheckAvailability(ctx, broken.ID, bookingDate, models.TimeSlotDay)
	require.NoError(t, err)
	assert.False(t, ok)

	gone := env.addEmployee(t, "Eve", "eve", false)
	in = env.orderInput(env.Room.ID)
	in.EmployeeID = gone.ID
	_, err = env.Orders.CreateOrder(ctx, in)
	assert.ErrorIs(t, err, ErrEmployeeInvalid)

	in.EmployeeID = 424242
	_, err = env.Orders.CreateOrder(ctx, in)
	assert.ErrorIs(t, err, ErrEmployeeInvalid)

	in = env.orderInput(env.Room.ID)
	in.GuestCount = 0
	_, err = env.Orders.CreateOrder(ctx, in)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateOrderRetriesOrderNumberCollision(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// A row created the day before that already holds today's first number,
	// as if a concurrent writer had won the count-based guess.
	stale := models.Order{
		OrderNumber: "ORD-20261018-001",
		RoomID:      env.Room.ID,
		EmployeeID:  env.Employee.ID,
		ClientName:  "Old",
		ClientPhone: "+2",
		GuestCount:  1,
		BookingDate: bookingDate.AddDate(0, 0, -7),
		TimeSlot:    models.TimeSlotEvening,
		Status:      models.OrderStatusCancelled,
		Total:       decimal.Zero,
		CreatedAt:   testNow.AddDate(0, 0, -1),
		UpdatedAt:   testNow.AddDate(0, 0, -1),
	}
	require.NoError(t, env.DB.Create(&stale).Error)

	order, err := env.Orders.CreateOrder(ctx, env.orderInput(env.Room.ID))
	require.NoError(t, err)
	assert.Equal(t, "ORD-20261018-002", order.OrderNumber)

	next, err := env.Ledger.GenerateOrderNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ORD-20261018-002", next, "the guess counts today's rows only")
}

func TestOrderNumbersAreDateScoped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		r := env.addRoom(t, fmt.Sprintf("Room %d", i), 4, models.RoomStatusActive)
		o, err := env.Orders.CreateOrder(ctx, env.orderInput(r.ID))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("ORD-20261018-%03d", i), o.OrderNumber)
	}

	tomorrow := testNow.AddDate(0, 0, 1)
	env.Orders.Clock = func() time.Time { return tomorrow }
	env.Ledger.Clock = func() time.Time { return tomorrow }
	o, err := env.Orders.CreateOrder(ctx, env.orderInput(env.Room.ID))
	require.NoError(t, err)
	assert.Equal(t, "ORD-20261019-001", o.OrderNumber)
}

func TestAddItemKeepsTotalInSync(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t)

	meat := env.addProduct(t, env.Category.ID, "Shashlik", "1800.00")
	tea := env.addProduct(t, env.Category.ID, "Tea", "3.33")

	env.addItem(t, order.ID, env.Product.ID, "2")
	env.addItem(t, order.ID, meat.ID, "0.5")
	item := env.addItem(t, order.ID, tea.ID, "3")
	assert.Equal(t, "9.99", item.Subtotal.StringFixed(2))
	env.addItem(t, order.ID, env.Product.ID, "1")

	got, err := env.Orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 4)

	sum := decimal.Zero
	for _, it := range got.Items {
		sum = sum.Add(it.Subtotal)
	}
	assert.True(t, sum.Equal(got.Total), "total %s != sum %s", got.Total, sum)
	assert.Equal(t, "939.99", got.Total.StringFixed(2))
}

func TestAddItemConcurrentTotals(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.Orders.AddItem(ctx, AddItemInput{
				OrderID:    order.ID,
				ProductID:  env.Product.ID,
				Quantity:   decimal.NewFromInt(1),
				EmployeeID: env.Employee.ID,
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := env.Orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 10)
	assert.Equal(t, "100.00", got.Total.StringFixed(2))
}

func TestAddItemSnapshotsProduct(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t)

	first := env.addItem(t, order.ID, env.Product.ID, "1")

	_, err := env.Catalog.UpdateProductPrice(ctx, env.Product.ID, decimal.RequireFromString("15.00"))
	require.NoError(t, err)
	second := env.addItem(t, order.ID, env.Product.ID, "1")

	got, err := env.Orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, first.ID, got.Items[0].ID)
	assert.Equal(t, "10.00", got.Items[0].UnitPrice.StringFixed(2))
	assert.Equal(t, second.ID, got.Items[1].ID)
	assert.Equal(t, "15.00", got.Items[1].UnitPrice.StringFixed(2))
	assert.Equal(t, "25.00", got.Total.StringFixed(2))
}

func TestAddItemRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	add := func(orderID, productID uint, qty string) error {
		_, err := env.Orders.AddItem(ctx, AddItemInput{
			OrderID:    orderID,
			ProductID:  productID,
			Quantity:   decimal.RequireFromString(qty),
			EmployeeID: env.Employee.ID,
		})
		return err
	}

	open := env.createOrder(t)
	assert.ErrorIs(t, add(open.ID, env.Product.ID, "0"), ErrValidation)
	assert.ErrorIs(t, add(open.ID, env.Product.ID, "-1"), ErrValidation)
	assert.ErrorIs(t, add(open.ID, 777, "1"), ErrProductInvalid)
	assert.ErrorIs(t, add(123456, env.Product.ID, "1"), ErrOrderNotFound)

	_, err := env.Catalog.SetProductAvailability(ctx, env.Product.ID, false)
	require.NoError(t, err)
	assert.ErrorIs(t, add(open.ID, env.Product.ID, "1"), ErrProductInvalid)
	_, err = env.Catalog.SetProductAvailability(ctx, env.Product.ID, true)
	require.NoError(t, err)

	for _, st := range []models.OrderStatus{models.OrderStatusPaid, models.OrderStatusCompleted, models.OrderStatusCancelled} {
		t.Run(string(st), func(t *testing.T) {
			room := env.addRoom(t, "Room "+string(st), 4, models.RoomStatusActive)
			o := env.orderIn(t, room.ID, st)
			assert.ErrorIs(t, add(o.ID, env.Product.ID, "1"), ErrOrderNotModifiable)
		})
	}

	for _, st := range []models.OrderStatus{models.OrderStatusConfirmed, models.OrderStatusActive, models.OrderStatusReadyToPay} {
		t.Run(string(st), func(t *testing.T) {
			room := env.addRoom(t, "Room "+string(st), 4, models.RoomStatusActive)
			o := env.orderIn(t, room.ID, st)
			assert.NoError(t, add(o.ID, env.Product.ID, "1"))
		})
	}
}

func TestAddItemQuantityScale(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t)
	pricey := env.addProduct(t, env.Category.ID, "Platter", "99.99")

	_, err := env.Orders.AddItem(ctx, AddItemInput{
		OrderID:    order.ID,
		ProductID:  pricey.ID,
		Quantity:   decimal.RequireFromString("1.0005"),
		EmployeeID: env.Employee.ID,
	})
	assert.ErrorIs(t, err, ErrValidation)

	item := env.addItem(t, order.ID, pricey.ID, "1.5000")
	assert.Equal(t, "149.99", item.Subtotal.StringFixed(2))
	item = env.addItem(t, order.ID, env.Product.ID, "0.125")
	assert.Equal(t, "1.25", item.Subtotal.StringFixed(2))

	got, err := env.Orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	for _, it := range got.Items {
		assert.True(t, it.Quantity.Equal(it.Quantity.Round(quantityPlaces)), "quantity %s", it.Quantity)
		assert.Equal(t, it.Quantity.Mul(it.UnitPrice).Round(2).StringFixed(2), it.Subtotal.StringFixed(2))
	}
	assert.Equal(t, "151.24", got.Total.StringFixed(2))
}

func TestChangeStatusRejectsEdgesOutsideTable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	completed := env.orderIn(t, env.Room.ID, models.OrderStatusCompleted)
	require.NotNil(t, completed.CompletedAt)
	for _, to := range []models.OrderStatus{
		models.OrderStatusCreated, models.OrderStatusConfirmed, models.OrderStatusActive,
		models.OrderStatusReadyToPay, models.OrderStatusPaid, models.OrderStatusCompleted,
	} {
		_, err := env.Orders.ChangeStatus(ctx, completed.ID, to, env.Employee.ID)
		assert.ErrorIs(t, err, ErrInvalidTransition, "completed -> %s", to)
	}
	_, err := env.Orders.CancelOrder(ctx, completed.ID, env.Employee.ID)
	assert.ErrorIs(t, err, ErrNotCancellable)
	assert.ErrorIs(t, err, ErrInvalidTransition, "completed -> cancelled")

	room := env.addRoom(t, "Sauna 2", 4, models.RoomStatusActive)
	active := env.orderIn(t, room.ID, models.OrderStatusActive)
	_, err = env.Orders.ChangeStatus(ctx, active.ID, models.OrderStatusConfirmed, env.Employee.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	room = env.addRoom(t, "Sauna 3", 4, models.RoomStatusActive)
	ready := env.orderIn(t, room.ID, models.OrderStatusReadyToPay)
	_, err = env.Orders.ChangeStatus(ctx, ready.ID, models.OrderStatusPaid, env.Employee.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition, "paid is set by recording a payment")
	_, err = env.Orders.ChangeStatus(ctx, ready.ID, models.OrderStatusCompleted, env.Employee.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = env.Orders.ChangeStatus(ctx, 98765, models.OrderStatusActive, env.Employee.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCancelOrderBoundary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		status models.OrderStatus
		ok     bool
	}{
		{models.OrderStatusCreated, true},
		{models.OrderStatusConfirmed, true},
		{models.OrderStatusActive, false},
		{models.OrderStatusReadyToPay, false},
		{models.OrderStatusPaid, false},
		{models.OrderStatusCompleted, false},
		{models.OrderStatusCancelled, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			room := env.addRoom(t, "Room "+string(tc.status), 4, models.RoomStatusActive)
			o := env.orderIn(t, room.ID, tc.status)

			got, err := env.Orders.CancelOrder(ctx, o.ID, env.Employee.ID)
			if !tc.ok {
				require.ErrorIs(t, err, ErrNotCancellable)
				assert.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, "cannot cancel at current stage", ErrNotCancellable.Message)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.OrderStatusCancelled, got.Status)

			ok, err := env.Ledger.CheckAvailability(ctx, room.ID, bookingDate, models.TimeSlotDay)
			require.NoError(t, err)
			assert.True(t, ok, "cancel releases the slot")
		})
	}
}

func TestRecalculateTotalIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t)
	env.addItem(t, order.ID, env.Product.ID, "3")

	require.NoError(t, env.DB.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("total", decimal.RequireFromString("999.00")).Error)

	first, err := env.Orders.RecalculateTotal(ctx, order.ID)
	require.NoError(t, err)
	second, err := env.Orders.RecalculateTotal(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "30.00", first.StringFixed(2))
	assert.True(t, first.Equal(second))

	got, err := env.Orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "30.00", got.Total.StringFixed(2))
}

func TestOrderQueriesAndHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	paid := env.orderIn(t, env.Room.ID, models.OrderStatusPaid)
	room := env.addRoom(t, "Sauna 2", 4, models.RoomStatusActive)
	cancelled := env.orderIn(t, room.ID, models.OrderStatusCancelled)

	byNumber, err := env.Orders.GetOrderByNumber(ctx, paid.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, paid.ID, byNumber.ID)
	require.NotNil(t, byNumber.Payment)

	_, err = env.Orders.GetOrderByNumber(ctx, "ORD-19990101-001")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	open, err := env.Orders.ListOpenOrders(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, paid.ID, open[0].ID)

	d := bookingDate.Add(20 * time.Hour)
	all, err := env.Orders.ListOrders(ctx, OrderFilter{Date: &d, Slot: models.TimeSlotDay})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyCancelled, err := env.Orders.ListOrders(ctx, OrderFilter{Status: models.OrderStatusCancelled})
	require.NoError(t, err)
	require.Len(t, onlyCancelled, 1)
	assert.Equal(t, cancelled.ID, onlyCancelled[0].ID)

	history, err := env.Orders.OrderHistory(ctx, paid.ID)
	require.NoError(t, err)
	var steps []models.OrderStatus
	for _, ev := range history {
		steps = append(steps, ev.ToStatus)
	}
	assert.Equal(t, []models.OrderStatus{
		models.OrderStatusCreated,
		models.OrderStatusReadyToPay,
		models.OrderStatusPaid,
	}, steps)
	assert.Equal(t, models.OrderStatus(""), history[0].FromStatus)
	assert.Contains(t, string(history[0].Payload), paid.OrderNumber)

	_, err = env.Orders.OrderHistory(ctx, 5555)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
