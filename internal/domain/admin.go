package domain

import (
	"fmt"
	"strings"
	"time"
)

// AdminUser is an operator allowed to manage documents
type AdminUser struct {
	ID         string
	Email      string
	CreatedAt  time.Time
	LastSignIn *time.Time
}

// NewAdminUser creates a new AdminUser instance
func NewAdminUser(id, email string, createdAt time.Time) *AdminUser {
	return &AdminUser{
		ID:        id,
		Email:     email,
		CreatedAt: createdAt,
	}
}

// ValidateAdminUser validates an AdminUser instance
func ValidateAdminUser(a *AdminUser) error {
	if a == nil {
		return fmt.Errorf("admin user cannot be nil")
	}

	if a.ID == "" {
		return fmt.Errorf("admin user ID is required")
	}

	if a.Email == "" {
		return fmt.Errorf("admin user Email is required")
	}

	at := strings.Index(a.Email, "@")
	if at <= 0 || at == len(a.Email)-1 {
		return NewDomainError(ErrCodeValidation, "admin user Email is invalid")
	}

	return nil
}
