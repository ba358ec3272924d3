package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/1195214305/xhs-backend/internal/domain/login/deps"
	"github.com/1195214305/xhs-backend/internal/domain/login/entities"
	loginerrors "github.com/1195214305/xhs-backend/internal/domain/login/errors"
)

// saveLockKey serialises Save across processes sharing the database
const saveLockKey int64 = 0x7868735f63726564

// Repository implements deps.CredentialStore using PostgreSQL
type Repository struct {
	db *gorm.DB
	mu sync.Mutex
}

// NewRepository creates a new PostgreSQL credential repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Save invalidates the valid credential and inserts the new one in a single
// transaction. A partial unique index on is_valid backs the invariant.
func (r *Repository) Save(ctx context.Context, cookies map[string]string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	model := &CredentialModel{
		UserID:  entities.DeriveUserID(cookies),
		Cookies: cookies,
		IsValid: true,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", saveLockKey).Error; err != nil {
			return fmt.Errorf("failed to acquire save lock: %w", err)
		}

		if err := tx.Model(&CredentialModel{}).
			Where("is_valid = ?", true).
			Update("is_valid", false).Error; err != nil {
			return fmt.Errorf("failed to invalidate credentials: %w", err)
		}

		if err := tx.Create(model).Error; err != nil {
			return fmt.Errorf("failed to insert credential: %w", err)
		}

		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", loginerrors.ErrStorage, err)
	}

	return model.UserID, nil
}

// InvalidateAll flips every valid credential to invalid
func (r *Repository) InvalidateAll(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := r.db.WithContext(ctx).
		Model(&CredentialModel{}).
		Where("is_valid = ?", true).
		Update("is_valid", false)
	if result.Error != nil {
		return 0, fmt.Errorf("%w: failed to invalidate credentials: %w", loginerrors.ErrStorage, result.Error)
	}

	return result.RowsAffected, nil
}

// Current retrieves the valid credential
func (r *Repository) Current(ctx context.Context) (*entities.CredentialRecord, error) {
	var model CredentialModel
	if err := r.db.WithContext(ctx).
		Where("is_valid = ?", true).
		Order("id DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, loginerrors.ErrNoValidCredential
		}
		return nil, fmt.Errorf("%w: failed to get current credential: %w", loginerrors.ErrStorage, err)
	}

	return model.ToEntity(), nil
}

var _ deps.CredentialStore = (*Repository)(nil)
