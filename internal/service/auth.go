package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/cloo-solutions/docadmin/internal/domain"
)

type AdminUserRepository interface {
	Create(ctx context.Context, admin *domain.AdminUser) error
	GetByID(ctx context.Context, id string) (*domain.AdminUser, error)
	GetByEmail(ctx context.Context, email string) (*domain.AdminUser, error)
	List(ctx context.Context) ([]*domain.AdminUser, error)
	TouchLastSignIn(ctx context.Context, id string, at time.Time) error
}

type APIKeyRepository interface {
	Create(ctx context.Context, key *domain.APIKey) error
	GetByID(ctx context.Context, id string) (*domain.APIKey, error)
	GetByHash(ctx context.Context, hash string) (*domain.APIKey, error)
	GetByAdminID(ctx context.Context, adminID string) ([]*domain.APIKey, error)
	Revoke(ctx context.Context, id string) error
}

type AuthService struct {
	adminRepo AdminUserRepository
	keyRepo   APIKeyRepository
	uuidGen   UUIDGenerator
}

func NewAuthService(adminRepo AdminUserRepository, keyRepo APIKeyRepository, uuidGen UUIDGenerator) *AuthService {
	return &AuthService{
		adminRepo: adminRepo,
		keyRepo:   keyRepo,
		uuidGen:   uuidGen,
	}
}

func (s *AuthService) CreateAdmin(ctx context.Context, email string) (*domain.AdminUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "admin email is required")
	}

	admin := domain.NewAdminUser(s.uuidGen.NewString(), email, time.Now().UTC())
	if err := domain.ValidateAdminUser(admin); err != nil {
		return nil, err
	}

	if err := s.adminRepo.Create(ctx, admin); err != nil {
		return nil, err
	}

	return admin, nil
}

// EnsureAdmin returns the admin with the given email, creating it when absent.
func (s *AuthService) EnsureAdmin(ctx context.Context, email string) (*domain.AdminUser, bool, error) {
	admin, err := s.adminRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err == nil {
		return admin, false, nil
	}
	if !errors.Is(err, domain.ErrAdminUserNotFound) {
		return nil, false, err
	}

	admin, err = s.CreateAdmin(ctx, email)
	if err != nil {
		return nil, false, err
	}
	return admin, true, nil
}

func (s *AuthService) ListAdmins(ctx context.Context) ([]*domain.AdminUser, error) {
	return s.adminRepo.List(ctx)
}

func (s *AuthService) CreateAPIKey(ctx context.Context, adminID, name string) (string, error) {
	if adminID == "" {
		return "", domain.NewDomainError(domain.ErrCodeValidation, "admin ID is required")
	}
	if name == "" {
		return "", domain.NewDomainError(domain.ErrCodeValidation, "API key name is required")
	}

	if _, err := s.adminRepo.GetByID(ctx, adminID); err != nil {
		return "", err
	}

	token, err := generateAPIToken()
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to generate API key", err)
	}

	if err := s.storeKey(ctx, adminID, name, token); err != nil {
		return "", err
	}

	return token, nil
}

func (s *AuthService) CreateAPIKeyWithToken(ctx context.Context, adminID, name, token string) error {
	if adminID == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "admin ID is required")
	}
	if name == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "API key name is required")
	}
	if !domain.IsWellFormedAPIToken(token) {
		return domain.NewDomainError(domain.ErrCodeValidation, "invalid API key format (expected dca_<64 hex chars>)")
	}

	if _, err := s.adminRepo.GetByID(ctx, adminID); err != nil {
		return err
	}

	return s.storeKey(ctx, adminID, name, token)
}

func (s *AuthService) storeKey(ctx context.Context, adminID, name, token string) error {
	key := &domain.APIKey{
		ID:        s.uuidGen.NewString(),
		AdminID:   adminID,
		Name:      name,
		KeyHash:   hashToken(token),
		CreatedAt: time.Now().UTC(),
	}

	if err := domain.ValidateAPIKey(key); err != nil {
		return err
	}

	return s.keyRepo.Create(ctx, key)
}

// ValidateAPIKey resolves a bearer token to the id of a current admin.
func (s *AuthService) ValidateAPIKey(ctx context.Context, token string) (string, error) {
	if !domain.IsWellFormedAPIToken(token) {
		return "", domain.ErrInvalidAPIKey
	}

	key, err := s.keyRepo.GetByHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrAPIKeyNotFound) {
			return "", domain.ErrInvalidAPIKey
		}
		return "", err
	}

	if key.IsRevoked() {
		return "", domain.ErrAPIKeyRevoked
	}

	if _, err := s.adminRepo.GetByID(ctx, key.AdminID); err != nil {
		if errors.Is(err, domain.ErrAdminUserNotFound) {
			return "", domain.ErrNotAdmin
		}
		return "", err
	}

	if err := s.adminRepo.TouchLastSignIn(ctx, key.AdminID, time.Now().UTC()); err != nil {
		log.Printf("auth: failed to record sign-in for admin %s: %v", key.AdminID, err)
	}

	return key.AdminID, nil
}

func (s *AuthService) RevokeAPIKey(ctx context.Context, keyID string) error {
	if keyID == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "API key ID is required")
	}

	return s.keyRepo.Revoke(ctx, keyID)
}

// RevokeOwnAPIKey revokes keyID only if it belongs to adminID. Keys of other
// admins are reported as not found.
func (s *AuthService) RevokeOwnAPIKey(ctx context.Context, adminID, keyID string) error {
	if keyID == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "API key ID is required")
	}

	key, err := s.keyRepo.GetByID(ctx, keyID)
	if err != nil {
		return err
	}
	if !key.OwnedBy(adminID) {
		return domain.ErrAPIKeyNotFound
	}

	return s.keyRepo.Revoke(ctx, key.ID)
}

func (s *AuthService) ListAPIKeys(ctx context.Context, adminID string) ([]*domain.APIKey, error) {
	if adminID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "admin ID is required")
	}

	return s.keyRepo.GetByAdminID(ctx, adminID)
}

func generateAPIToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return domain.APIKeyTokenPrefix + hex.EncodeToString(bytes), nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
