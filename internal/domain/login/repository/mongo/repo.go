package mongo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/1195214305/xhs-backend/internal/domain/login/deps"
	"github.com/1195214305/xhs-backend/internal/domain/login/entities"
	loginerrors "github.com/1195214305/xhs-backend/internal/domain/login/errors"
	"github.com/1195214305/xhs-backend/internal/utils"
)

// Collection is the subset of *mongo.Collection the repository uses
type Collection interface {
	UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
}

// SessionStarter starts client sessions for transactional saves.
// *mongo.Client implements it.
type SessionStarter interface {
	StartSession(opts ...*options.SessionOptions) (mongo.Session, error)
}

type credentialDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    string             `bson:"user_id"`
	Cookies   map[string]string  `bson:"cookies"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
	IsValid   bool               `bson:"is_valid"`
}

func (d *credentialDocument) toEntity() *entities.CredentialRecord {
	return &entities.CredentialRecord{
		ID:        d.ID.Hex(),
		UserID:    d.UserID,
		Cookies:   d.Cookies,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
		IsValid:   d.IsValid,
	}
}

var validFilter = bson.M{"is_valid": true}

// Repository implements deps.CredentialStore on a MongoDB collection.
//
// Without transactions Save runs invalidate, verify, insert in that order and
// stops at the first failure, so a failed step never leaves two valid records.
// With a session starter Save wraps the same steps in a multi-document
// transaction, which needs a replica set.
type Repository struct {
	coll     Collection
	sessions SessionStarter
	logger   zerolog.Logger
	now      func() time.Time

	mu sync.Mutex
}

// NewRepository creates a MongoDB credential repository. Pass a nil
// sessions to disable transactions.
func NewRepository(coll Collection, sessions SessionStarter, logger zerolog.Logger) *Repository {
	return &Repository{
		coll:     coll,
		sessions: sessions,
		logger:   logger.With().Str("component", "mongo_credentials").Logger(),
		now:      time.Now,
	}
}

// Save invalidates every valid credential, then inserts the new one
func (r *Repository) Save(ctx context.Context, cookies map[string]string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc := &credentialDocument{
		UserID:  entities.DeriveUserID(cookies),
		Cookies: cookies,
		IsValid: true,
	}

	if r.sessions == nil {
		if err := r.replace(ctx, doc); err != nil {
			return "", fmt.Errorf("%w: %w", loginerrors.ErrStorage, err)
		}
		return doc.UserID, nil
	}

	sess, err := r.sessions.StartSession()
	if err != nil {
		return "", fmt.Errorf("%w: failed to start session: %w", loginerrors.ErrStorage, err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, r.replace(sc, doc)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", loginerrors.ErrStorage, err)
	}

	return doc.UserID, nil
}

func (r *Repository) replace(ctx context.Context, doc *credentialDocument) error {
	now := r.now().UTC()

	res, err := r.coll.UpdateMany(ctx, validFilter, bson.M{
		"$set": bson.M{"is_valid": false, "updated_at": now},
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate credentials: %w", err)
	}

	remaining, err := r.coll.CountDocuments(ctx, validFilter)
	if err != nil {
		return fmt.Errorf("failed to verify invalidation: %w", err)
	}
	if remaining > 0 {
		return fmt.Errorf("%d valid credentials remain after invalidation", remaining)
	}

	doc.CreatedAt = now
	doc.UpdatedAt = now
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert credential: %w", err)
	}

	r.logger.Info().
		Int64("invalidated", res.ModifiedCount).
		Str("user_id", utils.MaskSecret(doc.UserID)).
		Msg("credential saved")

	return nil
}

// InvalidateAll flips every valid credential to invalid
func (r *Repository) InvalidateAll(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.coll.UpdateMany(ctx, validFilter, bson.M{
		"$set": bson.M{"is_valid": false, "updated_at": r.now().UTC()},
	})
	if err != nil {
		return 0, fmt.Errorf("%w: failed to invalidate credentials: %w", loginerrors.ErrStorage, err)
	}

	return res.ModifiedCount, nil
}

// Current retrieves the valid credential
func (r *Repository) Current(ctx context.Context) (*entities.CredentialRecord, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var doc credentialDocument
	if err := r.coll.FindOne(ctx, validFilter, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, loginerrors.ErrNoValidCredential
		}
		return nil, fmt.Errorf("%w: failed to get current credential: %w", loginerrors.ErrStorage, err)
	}

	return doc.toEntity(), nil
}

var _ deps.CredentialStore = (*Repository)(nil)
