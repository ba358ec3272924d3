package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	loginerrors "github.com/1195214305/xhs-backend/internal/domain/login/errors"
)

func TestRepository_SaveDerivesUserID(t *testing.T) {
	repo := NewRepository()

	userID, err := repo.Save(context.Background(), map[string]string{
		"web_session": "D",
		"gid":         "C",
		"a1":          "A",
		"webId":       "B",
		"xsecappid":   "ignored",
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if userID != "ABCD" {
		t.Errorf("userID = %q, want %q", userID, "ABCD")
	}
}

func TestRepository_SaveMissingIdentityCookies(t *testing.T) {
	repo := NewRepository()

	userID, err := repo.Save(context.Background(), map[string]string{"gid": "C"})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if userID != "C" {
		t.Errorf("userID = %q, want %q", userID, "C")
	}
}

func TestRepository_SingleValidRecord(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()

	for _, session := range []string{"s1", "s2", "s3"} {
		if _, err := repo.Save(ctx, map[string]string{"web_session": session}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	records := repo.Records()
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(records))
	}

	valid := 0
	for _, r := range records {
		if r.IsValid {
			valid++
		}
	}
	if valid != 1 {
		t.Errorf("valid records = %d, want 1", valid)
	}

	current, err := repo.Current(ctx)
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if current.Cookies["web_session"] != "s3" {
		t.Errorf("current web_session = %q, want s3", current.Cookies["web_session"])
	}
}

func TestRepository_InvalidateAll(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()

	if _, err := repo.Save(ctx, map[string]string{"a1": "x"}); err != nil {
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

func TestRepository_ConcurrentSaves(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.Save(ctx, map[string]string{"web_session": "s"})
		}()
	}
	wg.Wait()

	valid := 0
	for _, r := range repo.Records() {
		if r.IsValid {
			valid++
		}
	}
	if valid != 1 {
		t.Errorf("valid records = %d, want 1", valid)
	}
}
