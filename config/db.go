package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"venue-backend/models"
	"venue-backend/utils"
)

// Models lists every table in parent -> child order.
func Models() []interface{} {
	return []interface{}{
		&models.Room{},
		&models.Category{},
		&models.Product{},
		&models.Employee{},
		&models.Order{},
		&models.OrderItem{},
		&models.Payment{},
		&models.OrderEvent{},
	}
}

// Migrate creates or updates the schema, including the unique indexes the
// booking engine relies on (order number, live room slot, one payment per order).
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// applyDSNDefaults forces the options the services depend on: UTC timestamps
// and "rows matched" semantics so guarded updates report a hit even when no
// column value changes.
func applyDSNDefaults(q url.Values) {
	if q.Get("charset") == "" {
		q.Set("charset", "utf8mb4")
	}
	if q.Get("parseTime") == "" {
		q.Set("parseTime", "True")
	}
	q.Set("loc", "UTC")
	q.Set("clientFoundRows", "true")
}

func mysqlDSNFromURL(raw string) (string, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}

	user := u.User.Username()
	pass, _ := u.User.Password()
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "3306"
	}

	dbName := strings.TrimPrefix(u.Path, "/")
	if dbName == "" {
		return "", "", fmt.Errorf("mysql url missing database name")
	}

	q := u.Query()
	applyDSNDefaults(q)

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?%s", user, pass, host, port, dbName, q.Encode())
	return dsn, dbName, nil
}

func resolveMySQLDSN() (string, string, error) {
	raw := strings.TrimSpace(os.Getenv("MYSQL_URL"))
	if raw == "" {
		raw = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}

	if raw != "" {
		if strings.HasPrefix(raw, "mysql://") {
			return mysqlDSNFromURL(raw)
		}
		return raw, utils.EnvOrDefault("DB_NAME", ""), nil
	}

	user := utils.EnvOrDefault("DB_USER", "root")
	pass := utils.EnvOrDefault("DB_PASS", "")
	host := utils.EnvOrDefault("DB_HOST", "127.0.0.1")
	port := utils.EnvOrDefault("DB_PORT", "3306")
	dbName := utils.EnvOrDefault("DB_NAME", "venue_db")

	q := url.Values{}
	applyDSNDefaults(q)
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?%s", user, pass, host, port, dbName, q.Encode())
	return dsn, dbName, nil
}

// ConnectDatabase opens MySQL, migrates the schema and seeds the demo catalog
// when cfg.Seed is set.
func ConnectDatabase(cfg Config, logger *zap.Logger) (*gorm.DB, error) {
	dsn, dbName, err := resolveMySQLDSN()
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:  GormLogger(logger, cfg),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql %s: %w", dbName, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info("database ready", zap.String("database", dbName))

	if cfg.Seed {
		if err := SeedDatabase(db, logger); err != nil {
			return nil, fmt.Errorf("seed: %w", err)
		}
	}
	return db, nil
}

// SeedDatabase inserts a small demo catalog into empty tables. Tables that
// already hold rows are left alone.
func SeedDatabase(db *gorm.DB, logger *zap.Logger) error {
	var n int64
	if err := db.Model(&models.Employee{}).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		pin := utils.EnvOrDefault("SEED_ADMIN_PIN", "1234")
		hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash admin pin: %w", err)
		}
		ext := "admin"
		admin := models.Employee{
			FullName:   "Admin",
			Role:       models.EmployeeRoleAdmin,
			ExternalID: &ext,
			Active:     true,
			PinHash:    string(hash),
		}
		if err := db.Create(&admin).Error; err != nil {
			return err
		}
		logger.Info("default admin seeded", zap.Uint("employee_id", admin.ID))
	}

	if err := db.Model(&models.Room{}).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		rooms := []models.Room{
			{Name: "Sauna 1", RoomNumber: strPtr("1"), Capacity: 6, Status: models.RoomStatusActive},
			{Name: "Sauna 2", RoomNumber: strPtr("2"), Capacity: 8, Status: models.RoomStatusActive},
			{Name: "Banquet hall", RoomNumber: strPtr("3"), Capacity: 20, Status: models.RoomStatusActive},
			{Name: "Gazebo", RoomNumber: strPtr("4"), Capacity: 10, Status: models.RoomStatusMaintenance},
		}
		if err := db.Create(&rooms).Error; err != nil {
			return err
		}
		logger.Info("rooms seeded", zap.Int("count", len(rooms)))
	}

	if err := db.Model(&models.Category{}).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	menu := []struct {
		category string
		products []models.Product
	}{
		{"Kitchen", []models.Product{
			{Name: "Shashlik", Unit: "kg", Price: decimal.RequireFromString("1800.00"), Available: true},
			{Name: "Grilled vegetables", Unit: "pcs", Price: decimal.RequireFromString("450.00"), Available: true},
		}},
		{"Drinks", []models.Product{
			{Name: "Tea pot", Unit: "pcs", Price: decimal.RequireFromString("300.00"), Available: true},
			{Name: "Lemonade", Unit: "l", Price: decimal.RequireFromString("500.00"), Available: true},
		}},
		{"Extras", []models.Product{
			{Name: "Birch broom", Unit: "pcs", Price: decimal.RequireFromString("350.00"), Available: true},
			{Name: "Towel set", Unit: "pcs", Price: decimal.RequireFromString("200.00"), Available: true},
		}},
	}
	return db.Transaction(func(tx *gorm.DB) error {
		for i, m := range menu {
			cat := models.Category{Name: m.category, Active: true, SortOrder: i}
			if err := tx.Create(&cat).Error; err != nil {
				return err
			}
			for j := range m.products {
				m.products[j].CategoryID = cat.ID
			}
			if err := tx.Create(&m.products).Error; err != nil {
				return err
			}
		}
		logger.Info("catalog seeded", zap.Int("categories", len(menu)))
		return nil
	})
}

func strPtr(s string) *string { return &s }
