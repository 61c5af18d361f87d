package services

import "github.com/google/uuid"

// Principal is the authenticated caller. It is produced only by
// AuthService.Authenticate and passed explicitly to operations that need an
// identity.
type Principal struct {
	CustomerID  uuid.UUID
	PhoneNumber string
	Email       string
	IsAdmin     bool
}

// RequireAdmin fails with Forbidden unless p is an admin.
func (p Principal) RequireAdmin() error {
	if !p.IsAdmin {
		return Forbidden("Access denied. Admin required.")
	}
	return nil
}
