package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"venue-backend/models"
	"venue-backend/utils"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// lineSteps are the steps of the repeating category/product/quantity loop.
var lineSteps = map[models.SessionStep]bool{
	models.StepCategory: true,
	models.StepProduct:  true,
	models.StepQuantity: true,
}

// SessionService stages a booking for one actor across several steps and
// commits it as an order. Drafts live in Store; the database is only touched
// for lookups until Commit.
type SessionService struct {
	Store   DraftStore
	Ledger  *LedgerService
	Orders  *OrderService
	Catalog *CatalogService
	Logger  *zap.Logger
	Clock   func() time.Time

	locks actorLocks
}

func NewSessionService(store DraftStore, ledger *LedgerService, orders *OrderService, catalog *CatalogService, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{Store: store, Ledger: ledger, Orders: orders, Catalog: catalog, Logger: logger, Clock: time.Now}
}

func (s *SessionService) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock().UTC()
}

// lock serialises calls for one actor so a double-submitted step cannot
// interleave its load and save with another.
func (s *SessionService) lock(actorID string) func() {
	return s.locks.lock(actorID)
}

// actorLocks hands out one mutex per actor. An entry lives only while some
// call holds or waits on it, so idle actors cost nothing.
type actorLocks struct {
	mu sync.Mutex
	m  map[string]*actorLock
}

type actorLock struct {
	sync.Mutex
	refs int
}

func (l *actorLocks) lock(actorID string) func() {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[string]*actorLock)
	}
	al, ok := l.m[actorID]
	if !ok {
		al = &actorLock{}
		l.m[actorID] = al
	}
	al.refs++
	l.mu.Unlock()

	al.Lock()
	return func() {
		al.Unlock()
		l.mu.Lock()
		al.refs--
		if al.refs == 0 {
			delete(l.m, actorID)
		}
		l.mu.Unlock()
	}
}

func (l *actorLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

// update loads the actor's draft, applies fn and saves the draft when fn asks
// for it. fn may return both save=true and an error to persist a loop-back.
func (s *SessionService) update(ctx context.Context, actorID string, fn func(d *models.SessionDraft) (bool, error)) (*models.SessionDraft, error) {
	unlock := s.lock(actorID)
	defer unlock()

	d, err := s.Store.Load(ctx, actorID)
	if err != nil {
		return nil, err
	}
	save, fnErr := fn(d)
	if save {
		d.UpdatedAt = s.now()
		if err := s.Store.Save(ctx, d); err != nil {
			return nil, err
		}
	}
	if fnErr != nil {
		return d, fnErr
	}
	return d, nil
}

func requireStep(d *models.SessionDraft, allowed ...models.SessionStep) error {
	for _, st := range allowed {
		if d.Step == st {
			return nil
		}
	}
	return fmt.Errorf("%w: waiting for %s", ErrStepOutOfOrder, d.Step)
}

// Start opens a fresh draft for actorID, replacing any draft in progress.
func (s *SessionService) Start(ctx context.Context, actorID string, employeeID uint) (*models.SessionDraft, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil, fmt.Errorf("%w: actor id is required", ErrValidation)
	}
	if err := s.Orders.requireActiveEmployee(ctx, employeeID); err != nil {
		return nil, err
	}

	unlock := s.lock(actorID)
	defer unlock()

	now := s.now()
	d := &models.SessionDraft{
		ID:         uuid.NewString(),
		ActorID:    actorID,
		EmployeeID: employeeID,
		Step:       models.StepDate,
		Lines:      []models.DraftLine{},
		StartedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Store.Save(ctx, d); err != nil {
		return nil, err
	}
	s.Logger.Debug("session started", zap.String("actor", actorID), zap.String("session_id", d.ID))
	return d, nil
}

func (s *SessionService) Get(ctx context.Context, actorID string) (*models.SessionDraft, error) {
	return s.Store.Load(ctx, actorID)
}

// StepDate accepts the booking date. Past dates are re-prompted.
func (s *SessionService) StepDate(ctx context.Context, actorID, raw string) (*models.SessionDraft, error) {
	return s.update(ctx, actorID, func(d *models.SessionDraft) (bool, error) {
		if err := requireStep(d, models.StepDate, models.StepSlot); err != nil {
			return false, err
		}
		date, err := utils.ParseDate(raw, s.Ledger.Location)
		if err != nil {
			return false, fmt.Errorf("%w: %s", ErrValidation, err.Error())
		}
		if date.Before(utils.Today(s.now(), s.Ledger.Location)) {
			return false, fmt.Errorf("%w: date %s is in the past", ErrValidation, utils.DateKey(date))
		}
		d.Date = &date
		d.Slot = ""
		d.RoomID = 0
		d.Step = models.StepSlot
		return true, nil
	})
}

// StepSlot accepts the time slot and returns the rooms still free for it. When
// none are free the draft goes back to date selection and ErrNoRoomsAvailable
// is returned.
func (s *SessionService) StepSlot(ctx context.Context, actorID, raw string) ([]models.Room, error) {
	var rooms []models.Room
	_, err := s.update(ctx, actorID, func(d *models.SessionDraft) (bool, error) {
		if err := requireStep(d, models.StepSlot, models.StepRoom); err != nil {
			return false, err
		}
		slot, err := models.ParseTimeSlot(raw)
		if err != nil {
			return false, fmt.Errorf("%w: %s", ErrValidation, err.Error())
		}
		rooms, err = s.Ledger.ListAvailableRooms(ctx, *d.Date, slot)
		if err != nil {
			return false, err
		}
		if len(rooms) == 0 {
			d.Date = nil
			d.Slot = ""
			d.RoomID = 0
			d.Step = models.StepDate
			return true, ErrNoRoomsAvailable
		}
		d.Slot = slot
		d.RoomID = 0
		d.Step = models.StepRoom
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

// StepRoom accepts one of the rooms offered by StepSlot.
func (s *SessionService) StepRoom(ctx context.Context, actorID string, roomID uint) (*models.SessionDraft, error) {
	return s.update(ctx, actorID, func(d *models.SessionDraft) (bool, error) {
		if err := requireStep(d, models.StepRoom); err != nil {
			return false, err
		}
		room, err := s.Catalog.GetRoom(ctx, roomID)
		if errors.Is(err, ErrNotFound) {
			return false, fmt.Errorf("%w: room %d", ErrRoomInvalid, roomID)
		}
		if err != nil {
			return false, err
		}
		if !room.IsActive() {
			return false, fmt.Errorf("%w: room %d is %s", ErrRoomInvalid, room.ID, room.Status)
		}
		ok, err := s.Ledger.CheckAvailability(ctx, roomID, *d.Date, d.Slot)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, ErrRoomUnavailable
		}
		d.RoomID = roomID
		d.Step = models.StepClientName
		return true, nil
	})
}

// StepClient takes the client's name and phone. Both may arrive together, or
// the name first and the phone in a second call.
func (s *SessionService) StepClient(ctx context.Context, actorID, name, phone string) (*models.SessionDraft, error) {
	return s.update(ctx, actorID, func(d *models.SessionDraft) (bool, error) {
		if err := requireStep(d, models.StepClientName, models.StepClientPhone); err != nil {
			return false, err
		}
		name = strings.TrimSpace(name)
		phone = strings.TrimSpace(phone)

		if d.Step == models.StepClientName {
			if name == "" {
				return false, fmt.Errorf("%w: client name is required", ErrValidation)
			}
			d.ClientName = name
			if phone == "" {
				d.Step = models.StepClientPhone
				return true, nil
			}
		} else if name != "" {
			d.ClientName = name
		}

		normalized, err := normalizePhone(phone)
		if err != nil {
			// keep the name if it was just accepted
			if d.Step == models.StepClientName {
				d.Step = models.StepClientPhone
				return true, err
			}
			return false, err
		}
		d.ClientPhone = normalized
		d.Step = models.StepGuestCount
		return true, nil
	})
}

func normalizePhone(raw string) (string, error) {
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(raw))
	if cleaned == "" {
		return "", fmt.Errorf("%w: client phone is required", ErrValidation)
	}
	if !phonePattern.MatchString(cleaned) {
		return "", fmt.Errorf("%w: %q is not a phone number", ErrValidation, raw)
	}
	return cleaned, nil
}

// StepGuestCount accepts a positive integer no larger than the room capacity.
func (s *SessionService) StepGuestCount(ctx context.Context, actorID, raw string) (*models.SessionDraft, error) {
	return s.update(ctx, actorID, func(d *models.SessionDraft) (bool, error) {
		if err := requireStep(d, models.StepGuestCount); err != nil {
			return false, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n <= 0 {
			return false, fmt.Errorf("%w: guest count must be a positive integer", ErrValidation)
		}
		room, err := s.Catalog.GetRoom(ctx, d.RoomID)
		if err != nil {
			return false, err
		}
		if n > room.Capacity {
			return false, fmt.Errorf("%w: %s seats at most %d guests", ErrValidation, room.Name, room.Capacity)
		}
		d.GuestCount = n
		d.Step = models.StepCategory
		return true, nil
	})
}

// SelectCategory picks a category and returns its available products.
func (s *SessionService) SelectCategory(ctx context.Context, actorID string, categoryID uint) ([]models.Product, error) {
	var products []models.Product
	_, err := s.update(ctx, actorID, func(d *models.SessionDraft) (bool, error) {
		if !lineSteps[d.Step] {
			return false, fmt.Errorf("%w: waiting for %s", ErrStepOutOfOrder, d.Step)
		}
		cat, err := s.Catalog.GetCategory(ctx, categoryID)
		if errors.Is(err, ErrNotFound) {
			return false, fmt.Errorf("%w: category %d", ErrCategoryInvalid, categoryID)
		}
		if err != nil {
			return false, err
		}
		if !cat.Active {
			return false, fmt.Errorf("%w: %s", ErrCategoryInvalid, cat.Name)
		}
		products, err = s.Catalog.ListProducts(ctx, cat.ID, true)
		if err != nil {
			return false, err
		}
		d.CategoryID = cat.ID
		d.ProductID = 0
		d.Step = models.StepProduct
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}

// SelectProduct picks a product from the selected category.
func (s *SessionService) SelectProduct(ctx context.Context, actorID string, productID uint) (*models.Product, error) {
	var product *models.Product
	_, err := s.update(ctx, actorID, func(d *models.SessionDraft) (bool, error) {
		if err := requireStep(d, models.StepProduct, models.StepQuantity); err != nil {
			return false, err
		}
		p, err := s.availableProduct(ctx, productID)
		if err != nil {
			return false, err
		}
		if p.CategoryID != d.CategoryID {
			return false, fmt.Errorf("%w: %s is not in the selected category", ErrProductInvalid, p.Name)
		}
		product = p
		d.ProductID = p.ID
		d.Step = models.StepQuantity
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

// StepAddLine stages productID with a quantity. A zero productID uses the
// product picked by SelectProduct. The draft returns to category selection.
func (s *SessionService) StepAddLine(ctx context.Context, actorID string, productID uint, rawQty string) (*models.SessionDraft, error) {
	return s.update(ctx, actorID, func(d *models.SessionDraft) (bool, error) {
		if !lineSteps[d.Step] {
			return false, fmt.Errorf("%w: waiting for %s", ErrStepOutOfOrder, d.Step)
		}
		if productID == 0 {
			productID = d.ProductID
		}
		if productID == 0 {
			return false, fmt.Errorf("%w: pick a product first", ErrStepOutOfOrder)
		}
		qty, err := parseQuantity(rawQty)
		if err != nil {
			return false, err
		}
		p, err := s.availableProduct(ctx, productID)
		if err != nil {
			return false, err
		}
		d.Lines = append(d.Lines, models.DraftLine{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  qty,
			Unit:      p.Unit,
			Price:     p.Price,
			Subtotal:  lineSubtotal(qty, p.Price),
		})
		d.CategoryID = 0
		d.ProductID = 0
		d.Step = models.StepCategory
		return true, nil
	})
}

// parseQuantity accepts "1.5" and "1,5".
func parseQuantity(raw string) (decimal.Decimal, error) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	qty, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: quantity must be a positive number", ErrValidation)
	}
	if err := validateQuantity(qty); err != nil {
		return decimal.Zero, err
	}
	return qty, nil
}

func (s *SessionService) availableProduct(ctx context.Context, productID uint) (*models.Product, error) {
	p, err := s.Catalog.GetProduct(ctx, productID)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: product %d", ErrProductInvalid, productID)
	}
	if err != nil {
		return nil, err
	}
	if !p.Available {
		return nil, fmt.Errorf("%w: %s is not available", ErrProductInvalid, p.Name)
	}
	return p, nil
}

// RemoveLastLine drops the newest staged line, if any.
func (s *SessionService) RemoveLastLine(ctx context.Context, actorID string) (*models.SessionDraft, error) {
	return s.update(ctx, actorID, func(d *models.SessionDraft) (bool, error) {
		if !lineSteps[d.Step] {
			return false, fmt.Errorf("%w: waiting for %s", ErrStepOutOfOrder, d.Step)
		}
		if len(d.Lines) == 0 {
			return false, ErrEmptyCart
		}
		d.Lines = d.Lines[:len(d.Lines)-1]
		return true, nil
	})
}

// LineFailure names a staged line that could not be added at commit.
type LineFailure struct {
	Index     int    `json:"index"`
	ProductID uint   `json:"productId"`
	Name      string `json:"name"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Err       error  `json:"-"`
}

// CommitResult is the order created by Commit and the lines it rejected.
type CommitResult struct {
	Order  *models.Order `json:"order"`
	Failed []LineFailure `json:"failed"`
}

// Partial reports whether some staged lines did not make it into the order.
func (r *CommitResult) Partial() bool {
	return r != nil && len(r.Failed) > 0
}

// Commit writes the draft as an order and adds every staged line in order.
// An empty cart sends the actor back to category selection and keeps the
// draft. Any other outcome clears the draft. A line that fails after the order
// exists is reported in CommitResult.Failed; the order stays open with the
// lines that succeeded.
func (s *SessionService) Commit(ctx context.Context, actorID string) (*CommitResult, error) {
	unlock := s.lock(actorID)
	defer unlock()

	d, err := s.Store.Load(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !lineSteps[d.Step] {
		return nil, fmt.Errorf("%w: waiting for %s", ErrStepOutOfOrder, d.Step)
	}
	if len(d.Lines) == 0 {
		d.Step = models.StepCategory
		d.CategoryID = 0
		d.ProductID = 0
		d.UpdatedAt = s.now()
		if err := s.Store.Save(ctx, d); err != nil {
			return nil, err
		}
		return nil, ErrEmptyCart
	}

	defer func() {
		if err := s.Store.Delete(ctx, actorID); err != nil {
			s.Logger.Error("failed to clear session draft", zap.String("actor", actorID), zap.Error(err))
		}
	}()

	order, err := s.Orders.CreateOrder(ctx, CreateOrderInput{
		RoomID:      d.RoomID,
		EmployeeID:  d.EmployeeID,
		ClientName:  d.ClientName,
		ClientPhone: d.ClientPhone,
		GuestCount:  d.GuestCount,
		Date:        *d.Date,
		Slot:        d.Slot,
		Notes:       d.Notes,
	})
	if err != nil {
		return nil, err
	}

	result := &CommitResult{Failed: []LineFailure{}}
	for i, line := range d.Lines {
		_, err := s.Orders.AddItem(ctx, AddItemInput{
			OrderID:    order.ID,
			ProductID:  line.ProductID,
			Quantity:   line.Quantity,
			EmployeeID: d.EmployeeID,
		})
		if err == nil {
			continue
		}
		f := LineFailure{Index: i, ProductID: line.ProductID, Name: line.Name, Err: err, Message: err.Error(), Code: "internal"}
		if de, ok := AsDomainError(err); ok {
			f.Code = de.Code
		} else if errors.Is(err, ErrValidation) {
			f.Code = "validation"
			f.Message = ValidationMessage(err)
		}
		result.Failed = append(result.Failed, f)
	}

	result.Order, err = s.Orders.GetOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if result.Partial() {
		s.Logger.Warn("order committed with rejected lines",
			zap.String("actor", actorID),
			zap.String("order_number", order.OrderNumber),
			zap.Int("rejected", len(result.Failed)),
			zap.Int("staged", len(d.Lines)),
		)
	} else {
		s.Logger.Info("session committed",
			zap.String("actor", actorID),
			zap.String("order_number", order.OrderNumber),
			zap.Int("lines", len(d.Lines)),
		)
	}
	return result, nil
}

// Cancel discards the draft. Committed orders are not affected.
func (s *SessionService) Cancel(ctx context.Context, actorID string) error {
	unlock := s.lock(actorID)
	defer unlock()
	return s.Store.Delete(ctx, actorID)
}
