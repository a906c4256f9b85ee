package services

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"venue-backend/config"
	"venue-backend/models"
)

var (
	testNow     = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	bookingDate = time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
)

type testEnv struct {
	DB       *gorm.DB
	Catalog  *CatalogService
	Ledger   *LedgerService
	Orders   *OrderService
	Payments *PaymentService
	Sessions *SessionService
	Store    *MemoryDraftStore

	Room     *models.Room
	Employee *models.Employee
	Category *models.Category
	Product  *models.Product
}

// newTestDB opens a private in-memory SQLite database with the production
// schema. One connection means transactions run one after another.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:  logger.Discard,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, config.Migrate(db))
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvIn(t, time.UTC)
}

// newTestEnvIn is newTestEnv for a venue whose calendar runs in loc.
func newTestEnvIn(t *testing.T, loc *time.Location) *testEnv {
	t.Helper()
	db := newTestDB(t)
	log := zap.NewNop()
	clock := func() time.Time { return testNow }

	catalog := NewCatalogService(db, log)
	ledger := NewLedgerService(db, loc)
	ledger.Clock = clock
	orders := NewOrderService(db, ledger, catalog, log)
	orders.Clock = clock
	payments := NewPaymentService(db, catalog, log)
	payments.Clock = clock
	store := NewMemoryDraftStore()
	sessions := NewSessionService(store, ledger, orders, catalog, log)
	sessions.Clock = clock

	env := &testEnv{
		DB:       db,
		Catalog:  catalog,
		Ledger:   ledger,
		Orders:   orders,
		Payments: payments,
		Sessions: sessions,
		Store:    store,
	}
	env.Room = env.addRoom(t, "Sauna 1", 6, models.RoomStatusActive)
	env.Employee = env.addEmployee(t, "Bob", "bob", true)
	env.Category = env.addCategory(t, "Kitchen")
	env.Product = env.addProduct(t, env.Category.ID, "Product X", "10.00")
	return env
}

func (e *testEnv) addRoom(t *testing.T, name string, capacity int, status models.RoomStatus) *models.Room {
	t.Helper()
	r := &models.Room{Name: name, Capacity: capacity, Status: status}
	require.NoError(t, e.Catalog.CreateRoom(context.Background(), r))
	return r
}

func (e *testEnv) addEmployee(t *testing.T, name, externalID string, active bool) *models.Employee {
	t.Helper()
	emp := &models.Employee{FullName: name, ExternalID: &externalID, Active: active}
	require.NoError(t, e.Catalog.CreateEmployee(context.Background(), emp))
	return emp
}

func (e *testEnv) addCategory(t *testing.T, name string) *models.Category {
	t.Helper()
	c := &models.Category{Name: name, Active: true}
	require.NoError(t, e.Catalog.CreateCategory(context.Background(), c))
	return c
}

func (e *testEnv) addProduct(t *testing.T, categoryID uint, name, price string) *models.Product {
	t.Helper()
	p := &models.Product{CategoryID: categoryID, Name: name, Unit: "pcs", Price: decimal.RequireFromString(price), Available: true}
	require.NoError(t, e.Catalog.CreateProduct(context.Background(), p))
	return p
}

func (e *testEnv) orderInput(roomID uint) CreateOrderInput {
	return CreateOrderInput{
		RoomID:      roomID,
		EmployeeID:  e.Employee.ID,
		ClientName:  "Alice",
		ClientPhone: "+1",
		GuestCount:  4,
		Date:        bookingDate,
		Slot:        models.TimeSlotDay,
	}
}

func (e *testEnv) createOrder(t *testing.T) *models.Order {
	t.Helper()
	o, err := e.Orders.CreateOrder(context.Background(), e.orderInput(e.Room.ID))
	require.NoError(t, err)
	return o
}

func (e *testEnv) addItem(t *testing.T, orderID, productID uint, qty string) *models.OrderItem {
	t.Helper()
	item, err := e.Orders.AddItem(context.Background(), AddItemInput{
		OrderID:    orderID,
		ProductID:  productID,
		Quantity:   decimal.RequireFromString(qty),
		EmployeeID: e.Employee.ID,
	})
	require.NoError(t, err)
	return item
}

func (e *testEnv) pay(t *testing.T, orderID uint) *models.Payment {
	t.Helper()
	p, err := e.Payments.ProcessPayment(context.Background(), PaymentInput{
		OrderID:    orderID,
		Method:     models.PaymentMethodCash,
		EmployeeID: e.Employee.ID,
	})
	require.NoError(t, err)
	return p
}

// orderIn creates an order and drives it to status along legal edges.
func (e *testEnv) orderIn(t *testing.T, roomID uint, status models.OrderStatus) *models.Order {
	t.Helper()
	ctx := context.Background()
	o, err := e.Orders.CreateOrder(ctx, e.orderInput(roomID))
	require.NoError(t, err)

	var path []models.OrderStatus
	switch status {
	case models.OrderStatusCreated:
	case models.OrderStatusConfirmed:
		path = []models.OrderStatus{models.OrderStatusConfirmed}
	case models.OrderStatusActive:
		path = []models.OrderStatus{models.OrderStatusConfirmed, models.OrderStatusActive}
	case models.OrderStatusReadyToPay:
		path = []models.OrderStatus{models.OrderStatusActive, models.OrderStatusReadyToPay}
	case models.OrderStatusPaid, models.OrderStatusCompleted:
		path = []models.OrderStatus{models.OrderStatusReadyToPay}
	case models.OrderStatusCancelled:
		path = []models.OrderStatus{models.OrderStatusCancelled}
	}
	for _, to := range path {
		_, err := e.Orders.ChangeStatus(ctx, o.ID, to, e.Employee.ID)
		require.NoError(t, err)
	}
	if status == models.OrderStatusPaid || status == models.OrderStatusCompleted {
		e.pay(t, o.ID)
	}
	if status == models.OrderStatusCompleted {
		_, err := e.Orders.ChangeStatus(ctx, o.ID, models.OrderStatusCompleted, e.Employee.ID)
		require.NoError(t, err)
	}

	o, err = e.Orders.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, status, o.Status)
	return o
}
