package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type Category struct {
	BaseModel
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
	IsActive    bool   `gorm:"not null;default:true" json:"isActive"`
}

type Product struct {
	BaseModel
	Name           string          `gorm:"not null" json:"name"`
	Description    string          `gorm:"not null" json:"description"`
	Price          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	DiscountPrice  decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"discountPrice"`
	CategoryID     uuid.UUID       `gorm:"type:uuid;index;not null" json:"categoryId"`
	Category       *Category       `json:"category,omitempty"`
	Images         pq.StringArray  `gorm:"type:text[]" json:"images"`
	Stock          int             `gorm:"not null;default:0;check:chk_products_stock,stock >= 0" json:"stock"`
	IsActive       bool            `gorm:"not null;default:true" json:"isActive"`
	Specifications Specifications  `gorm:"type:jsonb" json:"specifications"`
}

// EffectivePrice is the price actually charged: the discount price when it
// is set and positive, the list price otherwise.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.DiscountPrice.IsPositive() {
		return p.DiscountPrice
	}
	return p.Price
}

// Specifications is a free-form string map stored as JSON.
type Specifications map[string]string

// Value implements driver.Valuer.
func (s Specifications) Value() (driver.Value, error) {
	if s == nil {
		return "{}", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (s *Specifications) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s = Specifications{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("specifications: unsupported type %T", src)
	}
	out := Specifications{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return err
		}
	}
	*s = out
	return nil
}
