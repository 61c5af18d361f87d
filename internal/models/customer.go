package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Customer is a shopper identified by phone number.
type Customer struct {
	BaseModel
	PhoneNumber string    `gorm:"uniqueIndex;not null" json:"phoneNumber"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	IsAdmin     bool      `gorm:"not null;default:false" json:"isAdmin"`
	IsVerified  bool      `gorm:"not null;default:false" json:"isVerified"`
	Addresses   []Address `gorm:"foreignKey:CustomerID" json:"addresses,omitempty"`
	Orders      []Order   `gorm:"foreignKey:CustomerID" json:"orders,omitempty"`
}

// Address is a delivery address owned by exactly one customer. Deleting an
// address only hides it, since past orders still reference it.
type Address struct {
	BaseModel
	CustomerID    uuid.UUID      `gorm:"type:uuid;index;not null" json:"customer"`
	FullName      string         `gorm:"not null" json:"fullName"`
	PhoneNumber   string         `gorm:"not null" json:"phoneNumber"`
	StreetAddress string         `gorm:"not null" json:"streetAddress"`
	City          string         `gorm:"not null" json:"city"`
	State         string         `gorm:"not null" json:"state"`
	Pincode       string         `gorm:"not null" json:"pincode"`
	Landmark      string         `json:"landmark"`
	IsDefault     bool           `gorm:"not null;default:false" json:"isDefault"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// OneTimeCode is a short-lived login code. The unique phone index keeps at
// most one live code per number.
type OneTimeCode struct {
	BaseModel
	PhoneNumber string    `gorm:"uniqueIndex;not null" json:"phoneNumber"`
	CodeHash    string    `gorm:"not null" json:"-"`
	ExpiresAt   time.Time `gorm:"index;not null" json:"expiresAt"`
	Attempts    int       `gorm:"not null;default:0" json:"-"`
}

// Expired reports whether the code is past its expiry at now.
func (c *OneTimeCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
