package domain

import (
	"encoding/hex"
	"strings"
	"time"
)

// APIKeyTokenPrefix marks docadmin bearer tokens; 64 hex chars follow it.
const APIKeyTokenPrefix = "dca_"

const apiKeyTokenHexLen = 64

// APIKey authenticates an admin user against the HTTP API. Only the sha256 of
// the token is stored.
type APIKey struct {
	ID        string
	AdminID   string
	Name      string
	KeyHash   string
	CreatedAt time.Time
	RevokedAt *time.Time
}

func (a *APIKey) IsRevoked() bool {
	return a.RevokedAt != nil
}

// OwnedBy reports whether the key belongs to adminID.
func (a *APIKey) OwnedBy(adminID string) bool {
	return adminID != "" && a.AdminID == adminID
}

// IsWellFormedAPIToken checks the token shape without touching storage, so
// garbage bearer values never reach the database.
func IsWellFormedAPIToken(token string) bool {
	hexPart, ok := strings.CutPrefix(token, APIKeyTokenPrefix)
	if !ok || len(hexPart) != apiKeyTokenHexLen {
		return false
	}
	_, err := hex.DecodeString(hexPart)
	return err == nil
}

func ValidateAPIKey(a *APIKey) error {
	if a == nil {
		return NewDomainError(ErrCodeValidation, "api key cannot be nil")
	}
	switch {
	case a.ID == "":
		return NewDomainError(ErrCodeValidation, "api key ID is required")
	case a.AdminID == "":
		return NewDomainError(ErrCodeValidation, "api key admin is required")
	case strings.TrimSpace(a.Name) == "":
		return NewDomainError(ErrCodeValidation, "api key name is required")
	case a.KeyHash == "":
		return NewDomainError(ErrCodeValidation, "api key hash is required")
	}
	return nil
}
