// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/storefront/internal/database"
	"github.com/example/storefront/internal/models"
)

// NewDB opens a private in-memory SQLite database with all migrations
// applied and foreign keys enforced, as on Postgres. The pool is pinned to one connection so every query sees the
// same memory database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?_pragma=foreign_keys(1)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// CreateCustomer inserts a verified customer.
func CreateCustomer(t *testing.T, db *gorm.DB, phone, email string) models.Customer {
	t.Helper()
	c := models.Customer{PhoneNumber: phone, Email: email, IsVerified: true}
	require.NoError(t, db.Create(&c).Error)
	return c
}

// CreateCategory inserts an active category.
func CreateCategory(t *testing.T, db *gorm.DB, name string) models.Category {
	t.Helper()
	c := models.Category{Name: name, IsActive: true}
	require.NoError(t, db.Create(&c).Error)
	return c
}

// CreateProduct inserts an active product in a fresh category.
func CreateProduct(t *testing.T, db *gorm.DB, name string, price, discount string, stock int) models.Product {
	t.Helper()
	cat := CreateCategory(t, db, name+" category")
	p := models.Product{
		Name:          name,
		Description:   name + " description",
		Price:         decimal.RequireFromString(price),
		DiscountPrice: decimal.RequireFromString(discount),
		CategoryID:    cat.ID,
		Stock:         stock,
		IsActive:      true,
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

// CreateAddress inserts an address for the customer.
func CreateAddress(t *testing.T, db *gorm.DB, customer models.Customer, isDefault bool) models.Address {
	t.Helper()
	a := models.Address{
		CustomerID:    customer.ID,
		FullName:      "Test Customer",
		PhoneNumber:   customer.PhoneNumber,
		StreetAddress: "12 MG Road",
		City:          "Bengaluru",
		State:         "KA",
		Pincode:       "560001",
		IsDefault:     isDefault,
	}
	require.NoError(t, db.Create(&a).Error)
	return a
}

// ReloadProduct reads the product back from the database.
func ReloadProduct(t *testing.T, db *gorm.DB, p models.Product) models.Product {
	t.Helper()
	var out models.Product
	require.NoError(t, db.First(&out, "id = ?", p.ID).Error)
	return out
}
