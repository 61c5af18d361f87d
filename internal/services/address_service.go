package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/models"
)

type AddressService struct {
	db *gorm.DB
}

func NewAddressService(db *gorm.DB) *AddressService {
	return &AddressService{db: db}
}

// AddressInput is a full address. Every field except Landmark is required.
type AddressInput struct {
	FullName      string `json:"fullName"`
	PhoneNumber   string `json:"phoneNumber"`
	StreetAddress string `json:"streetAddress"`
	City          string `json:"city"`
	State         string `json:"state"`
	Pincode       string `json:"pincode"`
	Landmark      string `json:"landmark"`
	IsDefault     bool   `json:"isDefault"`
}

func (in AddressInput) validate() error {
	for _, v := range []string{in.FullName, in.PhoneNumber, in.StreetAddress, in.City, in.State, in.Pincode} {
		if strings.TrimSpace(v) == "" {
			return Validation("Missing required address fields")
		}
	}
	return nil
}

// AddressPatch changes only the fields that are set.
type AddressPatch struct {
	FullName      *string `json:"fullName"`
	PhoneNumber   *string `json:"phoneNumber"`
	StreetAddress *string `json:"streetAddress"`
	City          *string `json:"city"`
	State         *string `json:"state"`
	Pincode       *string `json:"pincode"`
	Landmark      *string `json:"landmark"`
	IsDefault     *bool   `json:"isDefault"`
}

func (p AddressPatch) updates() (map[string]interface{}, error) {
	out := map[string]interface{}{}
	required := map[string]*string{
		"full_name":      p.FullName,
		"phone_number":   p.PhoneNumber,
		"street_address": p.StreetAddress,
		"city":           p.City,
		"state":          p.State,
		"pincode":        p.Pincode,
	}
	for col, v := range required {
		if v == nil {
			continue
		}
		if strings.TrimSpace(*v) == "" {
			return nil, Validation("Missing required address fields")
		}
		out[col] = strings.TrimSpace(*v)
	}
	if p.Landmark != nil {
		out["landmark"] = strings.TrimSpace(*p.Landmark)
	}
	if p.IsDefault != nil {
		out["is_default"] = *p.IsDefault
	}
	return out, nil
}

// List returns the caller's addresses, default first.
func (s *AddressService) List(ctx context.Context, p Principal) ([]models.Address, error) {
	addresses := []models.Address{}
	err := s.db.WithContext(ctx).
		Where("customer_id = ?", p.CustomerID).
		Order("is_default desc, created_at asc").
		Find(&addresses).Error
	if err != nil {
		return nil, Upstream("Failed to get addresses", err)
	}
	return addresses, nil
}

// Create stores a new address. When it is marked default, every other
// address of the caller is un-defaulted in the same transaction.
func (s *AddressService) Create(ctx context.Context, p Principal, in AddressInput) (*models.Address, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	address := models.Address{
		CustomerID:    p.CustomerID,
		FullName:      strings.TrimSpace(in.FullName),
		PhoneNumber:   strings.TrimSpace(in.PhoneNumber),
		StreetAddress: strings.TrimSpace(in.StreetAddress),
		City:          strings.TrimSpace(in.City),
		State:         strings.TrimSpace(in.State),
		Pincode:       strings.TrimSpace(in.Pincode),
		Landmark:      strings.TrimSpace(in.Landmark),
		IsDefault:     in.IsDefault,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.IsDefault {
			if err := clearDefault(tx, p.CustomerID); err != nil {
				return err
			}
		}
		return tx.Create(&address).Error
	})
	if err != nil {
		return nil, Upstream("Failed to add address", err)
	}
	return &address, nil
}

// Update patches one of the caller's addresses.
func (s *AddressService) Update(ctx context.Context, p Principal, id string, patch AddressPatch) (*models.Address, error) {
	addressID, err := uuid.Parse(id)
	if err != nil {
		return nil, NotFound("Address not found")
	}
	updates, err := patch.updates()
	if err != nil {
		return nil, err
	}

	var address models.Address
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&address, "id = ? AND customer_id = ?", addressID, p.CustomerID).Error; err != nil {
			return err
		}
		if patch.IsDefault != nil && *patch.IsDefault {
			if err := clearDefault(tx, p.CustomerID); err != nil {
				return err
			}
		}
		if len(updates) > 0 {
			if err := tx.Model(&address).Updates(updates).Error; err != nil {
				return err
			}
		}
		return tx.First(&address, "id = ?", addressID).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("Address not found")
		}
		return nil, Upstream("Failed to update address", err)
	}
	return &address, nil
}

// Delete removes one of the caller's addresses from their book. Orders that
// were delivered to it keep showing it.
func (s *AddressService) Delete(ctx context.Context, p Principal, id string) error {
	addressID, err := uuid.Parse(id)
	if err != nil {
		return NotFound("Address not found")
	}

	res := s.db.WithContext(ctx).
		Model(&models.Address{}).
		Where("id = ? AND customer_id = ?", addressID, p.CustomerID).
		Delete(&models.Address{})
	if res.Error != nil {
		return Upstream("Failed to delete address", res.Error)
	}
	if res.RowsAffected == 0 {
		return NotFound("Address not found")
	}
	return nil
}

func clearDefault(tx *gorm.DB, customerID uuid.UUID) error {
	return tx.Model(&models.Address{}).
		Where("customer_id = ? AND is_default = ?", customerID, true).
		Update("is_default", false).Error
}
