package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"venue-backend/models"
)

const minPinLength = 4

// Catalog is the read-only lookup the booking engine needs from the catalog.
type Catalog interface {
	GetRoom(ctx context.Context, id uint) (*models.Room, error)
	GetProduct(ctx context.Context, id uint) (*models.Product, error)
	GetEmployee(ctx context.Context, id uint) (*models.Employee, error)
}

// CatalogService owns rooms, categories, products and employees.
// The write methods are plain admin pass-through.
type CatalogService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

func NewCatalogService(db *gorm.DB, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{DB: db, Logger: logger}
}

func (s *CatalogService) GetRoom(ctx context.Context, id uint) (*models.Room, error) {
	var room models.Room
	if err := s.DB.WithContext(ctx).First(&room, id).Error; err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: room %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to load room %d: %w", id, err)
	}
	return &room, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	var p models.Product
	if err := s.DB.WithContext(ctx).First(&p, id).Error; err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: product %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to load product %d: %w", id, err)
	}
	return &p, nil
}

func (s *CatalogService) GetEmployee(ctx context.Context, id uint) (*models.Employee, error) {
	var e models.Employee
	if err := s.DB.WithContext(ctx).First(&e, id).Error; err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: employee %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to load employee %d: %w", id, err)
	}
	return &e, nil
}

// GetEmployeeByExternalID resolves the chat-side identity of an employee.
func (s *CatalogService) GetEmployeeByExternalID(ctx context.Context, externalID string) (*models.Employee, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, fmt.Errorf("%w: external id is required", ErrValidation)
	}
	var e models.Employee
	if err := s.DB.WithContext(ctx).Where("external_id = ?", externalID).First(&e).Error; err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: employee %q", ErrNotFound, externalID)
		}
		return nil, fmt.Errorf("failed to load employee %q: %w", externalID, err)
	}
	return &e, nil
}

func (s *CatalogService) GetCategory(ctx context.Context, id uint) (*models.Category, error) {
	var c models.Category
	if err := s.DB.WithContext(ctx).First(&c, id).Error; err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: category %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to load category %d: %w", id, err)
	}
	return &c, nil
}

func (s *CatalogService) ListRooms(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	if err := s.DB.WithContext(ctx).Order("id").Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}

func (s *CatalogService) ListCategories(ctx context.Context, activeOnly bool) ([]models.Category, error) {
	q := s.DB.WithContext(ctx).Order("sort_order, id")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var list []models.Category
	if err := q.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return list, nil
}

func (s *CatalogService) ListProducts(ctx context.Context, categoryID uint, availableOnly bool) ([]models.Product, error) {
	q := s.DB.WithContext(ctx).Order("name, id")
	if categoryID != 0 {
		q = q.Where("category_id = ?", categoryID)
	}
	if availableOnly {
		q = q.Where("available = ?", true)
	}
	var list []models.Product
	if err := q.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return list, nil
}

func (s *CatalogService) ListEmployees(ctx context.Context) ([]models.Employee, error) {
	var list []models.Employee
	if err := s.DB.WithContext(ctx).Order("id").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	return list, nil
}

func (s *CatalogService) CreateRoom(ctx context.Context, room *models.Room) error {
	room.Name = strings.TrimSpace(room.Name)
	if room.Name == "" {
		return fmt.Errorf("%w: room name is required", ErrValidation)
	}
	if room.Capacity <= 0 {
		return fmt.Errorf("%w: room capacity must be positive", ErrValidation)
	}
	if room.Status == "" {
		room.Status = models.RoomStatusActive
	}
	if !room.Status.Valid() {
		return fmt.Errorf("%w: unknown room status %q", ErrValidation, room.Status)
	}
	if room.RoomNumber != nil {
		n := strings.TrimSpace(*room.RoomNumber)
		if n == "" {
			room.RoomNumber = nil
		} else {
			room.RoomNumber = &n
		}
	}
	if err := s.DB.WithContext(ctx).Create(room).Error; err != nil {
		if _, dup := uniqueViolation(err); dup {
			return fmt.Errorf("%w: room number already used", ErrConflict)
		}
		return fmt.Errorf("failed to create room: %w", err)
	}
	s.Logger.Info("room created", zap.Uint("room_id", room.ID), zap.String("name", room.Name))
	return nil
}

// SetRoomStatus changes a room's lifecycle status. Existing orders are untouched;
// a non-active room simply stops being offered.
func (s *CatalogService) SetRoomStatus(ctx context.Context, id uint, status models.RoomStatus) (*models.Room, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown room status %q", ErrValidation, status)
	}
	res := s.DB.WithContext(ctx).Model(&models.Room{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update room %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: room %d", ErrNotFound, id)
	}
	s.Logger.Info("room status changed", zap.Uint("room_id", id), zap.String("status", string(status)))
	return s.GetRoom(ctx, id)
}

func (s *CatalogService) CreateCategory(ctx context.Context, c *models.Category) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("%w: category name is required", ErrValidation)
	}
	if err := s.DB.WithContext(ctx).Create(c).Error; err != nil {
		if _, dup := uniqueViolation(err); dup {
			return fmt.Errorf("%w: category %q", ErrConflict, c.Name)
		}
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, p *models.Product) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Unit = strings.TrimSpace(p.Unit)
	if p.Name == "" {
		return fmt.Errorf("%w: product name is required", ErrValidation)
	}
	if p.Unit == "" {
		p.Unit = "pcs"
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("%w: price cannot be negative", ErrValidation)
	}
	if _, err := s.GetCategory(ctx, p.CategoryID); err != nil {
		return err
	}
	if err := s.DB.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// ProductPatch carries optional product changes. A price change never touches
// lines already on orders.
type ProductPatch struct {
	Price     *decimal.Decimal `json:"price"`
	Available *bool            `json:"available"`
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id uint, patch ProductPatch) (*models.Product, error) {
	updates := map[string]interface{}{}
	if patch.Price != nil {
		if patch.Price.IsNegative() {
			return nil, fmt.Errorf("%w: price cannot be negative", ErrValidation)
		}
		updates["price"] = *patch.Price
	}
	if patch.Available != nil {
		updates["available"] = *patch.Available
	}
	if len(updates) == 0 {
		return s.GetProduct(ctx, id)
	}
	res := s.DB.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update product %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: product %d", ErrNotFound, id)
	}
	return s.GetProduct(ctx, id)
}

func (s *CatalogService) SetProductAvailability(ctx context.Context, id uint, available bool) (*models.Product, error) {
	return s.UpdateProduct(ctx, id, ProductPatch{Available: &available})
}

func (s *CatalogService) UpdateProductPrice(ctx context.Context, id uint, price decimal.Decimal) (*models.Product, error) {
	return s.UpdateProduct(ctx, id, ProductPatch{Price: &price})
}

func (s *CatalogService) CreateEmployee(ctx context.Context, e *models.Employee) error {
	e.FullName = strings.TrimSpace(e.FullName)
	if e.FullName == "" {
		return fmt.Errorf("%w: employee name is required", ErrValidation)
	}
	if e.Role == "" {
		e.Role = models.EmployeeRoleWaiter
	}
	if e.ExternalID != nil {
		id := strings.TrimSpace(*e.ExternalID)
		if id == "" {
			e.ExternalID = nil
		} else {
			e.ExternalID = &id
		}
	}
	if !e.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrValidation, e.Role)
	}
	if e.Pin != "" {
		if len(e.Pin) < minPinLength {
			return fmt.Errorf("%w: pin must have at least %d characters", ErrValidation, minPinLength)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(e.Pin), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash pin: %w", err)
		}
		e.PinHash = string(hash)
		e.Pin = ""
	}
	if err := s.DB.WithContext(ctx).Create(e).Error; err != nil {
		if _, dup := uniqueViolation(err); dup {
			return fmt.Errorf("%w: employee external id already used", ErrConflict)
		}
		return fmt.Errorf("failed to create employee: %w", err)
	}
	return nil
}

// Authenticate resolves an employee by chat id and checks the PIN. Unknown ids,
// wrong PINs and deactivated employees all fail the same way.
func (s *CatalogService) Authenticate(ctx context.Context, externalID, pin string) (*models.Employee, error) {
	e, err := s.GetEmployeeByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !e.Active || e.PinHash == "" {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(e.PinHash), []byte(pin)) != nil {
		return nil, ErrInvalidCredentials
	}
	return e, nil
}

func (s *CatalogService) SetEmployeeActive(ctx context.Context, id uint, active bool) (*models.Employee, error) {
	res := s.DB.WithContext(ctx).Model(&models.Employee{}).Where("id = ?", id).Update("active", active)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update employee %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: employee %d", ErrNotFound, id)
	}
	return s.GetEmployee(ctx, id)
}
