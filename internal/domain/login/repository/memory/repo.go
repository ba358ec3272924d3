package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/1195214305/xhs-backend/internal/domain/login/deps"
	"github.com/1195214305/xhs-backend/internal/domain/login/entities"
	loginerrors "github.com/1195214305/xhs-backend/internal/domain/login/errors"
)

// Repository implements deps.CredentialStore in process memory
type Repository struct {
	mu      sync.Mutex
	records []entities.CredentialRecord
	now     func() time.Time
}

// NewRepository creates a new in-memory credential repository
func NewRepository() *Repository {
	return &Repository{now: time.Now}
}

// Save invalidates every valid record and appends a new valid one
func (r *Repository) Save(_ context.Context, cookies map[string]string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	r.invalidateLocked(now)

	userID := entities.DeriveUserID(cookies)
	stored := make(map[string]string, len(cookies))
	for k, v := range cookies {
		stored[k] = v
	}

	r.records = append(r.records, entities.CredentialRecord{
		ID:        strconv.Itoa(len(r.records) + 1),
		UserID:    userID,
		Cookies:   stored,
		CreatedAt: now,
		UpdatedAt: now,
		IsValid:   true,
	})

	return userID, nil
}

// InvalidateAll flips every valid record to invalid
func (r *Repository) InvalidateAll(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.invalidateLocked(r.now().UTC()), nil
}

// Current returns the valid record
func (r *Repository) Current(_ context.Context) (*entities.CredentialRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].IsValid {
			rec := r.records[i]
			return &rec, nil
		}
	}
	return nil, loginerrors.ErrNoValidCredential
}

// Records returns a copy of every stored record, oldest first
func (r *Repository) Records() []entities.CredentialRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entities.CredentialRecord, len(r.records))
	copy(out, r.records)
	return out
}

func (r *Repository) invalidateLocked(now time.Time) int64 {
	var n int64
	for i := range r.records {
		if r.records[i].IsValid {
			r.records[i].IsValid = false
			r.records[i].UpdatedAt = now
			n++
		}
	}
	return n
}

var _ deps.CredentialStore = (*Repository)(nil)
