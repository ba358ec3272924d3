package mongo

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	loginerrors "github.com/1195214305/xhs-backend/internal/domain/login/errors"
)

// fakeCollection keeps documents in memory and records the call order.
// Every filter is treated as {is_valid: true}.
type fakeCollection struct {
	mu    sync.Mutex
	docs  []credentialDocument
	calls []string

	updateErr error
	countErr  error
	insertErr error
	// stuck counts valid documents UpdateMany cannot flip
	stuck int64
}

func (f *fakeCollection) UpdateMany(_ context.Context, _ interface{}, _ interface{}, _ ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "update")
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	var n int64
	for i := range f.docs {
		if f.docs[i].IsValid {
			f.docs[i].IsValid = false
			n++
		}
	}
	return &mongo.UpdateResult{MatchedCount: n, ModifiedCount: n}, nil
}

func (f *fakeCollection) InsertOne(_ context.Context, document interface{}, _ ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "insert")
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	doc := *document.(*credentialDocument)
	doc.ID = primitive.NewObjectID()
	f.docs = append(f.docs, doc)
	return &mongo.InsertOneResult{InsertedID: doc.ID}, nil
}

func (f *fakeCollection) CountDocuments(_ context.Context, _ interface{}, _ ...*options.CountOptions) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "count")
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.validLocked() + f.stuck, nil
}

func (f *fakeCollection) FindOne(_ context.Context, _ interface{}, _ ...*options.FindOneOptions) *mongo.SingleResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "find")
	for i := len(f.docs) - 1; i >= 0; i-- {
		if f.docs[i].IsValid {
			return mongo.NewSingleResultFromDocument(f.docs[i], nil, nil)
		}
	}
	return mongo.NewSingleResultFromDocument(bson.D{}, mongo.ErrNoDocuments, nil)
}

func (f *fakeCollection) validLocked() int64 {
	var n int64
	for _, d := range f.docs {
		if d.IsValid {
			n++
		}
	}
	return n
}

func (f *fakeCollection) callLog() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.calls, ",")
}

func TestRepository_SaveOrder(t *testing.T) {
	coll := &fakeCollection{}
	repo := NewRepository(coll, nil, zerolog.Nop())

	userID, err := repo.Save(context.Background(), map[string]string{
		"a1": "A", "webId": "B", "gid": "C", "web_session": "D",
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if userID != "ABCD" {
		t.Errorf("userID = %q, want ABCD", userID)
	}
	if got := coll.callLog(); got != "update,count,insert" {
		t.Errorf("calls = %q, want update,count,insert", got)
	}
}

func TestRepository_SaveKeepsSingleValid(t *testing.T) {
	coll := &fakeCollection{}
	repo := NewRepository(coll, nil, zerolog.Nop())
	ctx := context.Background()

	for _, s := range []string{"s1", "s2"} {
		if _, err := repo.Save(ctx, map[string]string{"web_session": s}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	if n := coll.validLocked(); n != 1 {
		t.Fatalf("valid documents = %d, want 1", n)
	}

	current, err := repo.Current(ctx)
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if current.Cookies["web_session"] != "s2" {
		t.Errorf("current web_session = %q, want s2", current.Cookies["web_session"])
	}
	if current.UserID != "s2" {
		t.Errorf("current user id = %q, want s2", current.UserID)
	}
}

func TestRepository_SaveFailures(t *testing.T) {
	driverErr := errors.New("connection reset")

	tests := []struct {
		name  string
		coll  *fakeCollection
		calls string
	}{
		{
			name:  "invalidate fails, nothing inserted",
			coll:  &fakeCollection{updateErr: driverErr},
			calls: "update",
		},
		{
			name:  "verify fails, nothing inserted",
			coll:  &fakeCollection{countErr: driverErr},
			calls: "update,count",
		},
		{
			name:  "valid record survives invalidation",
			coll:  &fakeCollection{stuck: 1},
			calls: "update,count",
		},
		{
			name:  "insert fails",
			coll:  &fakeCollection{insertErr: driverErr},
			calls: "update,count,insert",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewRepository(tt.coll, nil, zerolog.Nop())

			_, err := repo.Save(context.Background(), map[string]string{"a1": "A"})
			if !errors.Is(err, loginerrors.ErrStorage) {
				t.Fatalf("Save() error = %v, want ErrStorage", err)
			}
			if got := tt.coll.callLog(); got != tt.calls {
				t.Errorf("calls = %q, want %q", got, tt.calls)
			}
			if n := tt.coll.validLocked(); n != 0 {
				t.Errorf("valid documents = %d, want 0", n)
			}
		})
	}
}

func TestRepository_InvalidateAll(t *testing.T) {
	coll := &fakeCollection{}
	repo := NewRepository(coll, nil, zerolog.Nop())
	ctx := context.Background()

	if _, err := repo.Save(ctx, map[string]string{"a1": "A"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	n, err := repo.InvalidateAll(ctx)
	if err != nil || n != 1 {
		t.Fatalf("first InvalidateAll() = %d, %v; want 1, nil", n, err)
	}
	n, err = repo.InvalidateAll(ctx)
	if err != nil || n != 0 {
		t.Fatalf("second InvalidateAll() = %d, %v; want 0, nil", n, err)
	}

	if _, err := repo.Current(ctx); !errors.Is(err, loginerrors.ErrNoValidCredential) {
		t.Errorf("Current() error = %v, want ErrNoValidCredential", err)
	}
}

func TestRepository_InvalidateAllError(t *testing.T) {
	coll := &fakeCollection{updateErr: errors.New("boom")}
	repo := NewRepository(coll, nil, zerolog.Nop())

	if _, err := repo.InvalidateAll(context.Background()); !errors.Is(err, loginerrors.ErrStorage) {
		t.Errorf("InvalidateAll() error = %v, want ErrStorage", err)
	}
}
