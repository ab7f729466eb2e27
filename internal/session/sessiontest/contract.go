// Package sessiontest holds the behaviour every session.Repository backend
// must share. Backend tests call Run against a fresh, empty repository.
package sessiontest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/face-sculptor/internal/params"
	"github.com/kozaktomas/face-sculptor/internal/session"
)

// Sample returns a valid nose session.
func Sample(id, owner string, createdAt time.Time) *session.Session {
	return &session.Session{
		ID:         id,
		OwnerRef:   owner,
		Name:       "sample " + id,
		CreatedAt:  createdAt.UTC().Truncate(time.Microsecond),
		Category:   "nose",
		Values:     params.Values{"nose-size": 1.2, "nose-slope": -4, "nose-bridge": 0.95},
		Selections: map[string]string{"nose": "nose"},
	}
}

// Run exercises repo. It must be empty.
func Run(t *testing.T, repo session.Repository) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("insert and get", func(t *testing.T) {
		s := Sample("01HQ0000000000000000000001", "owner-a", base)
		s.ReferenceImage = []byte{0x89, 'P', 'N', 'G'}
		s.ReferenceImageType = "image/png"
		s.ParentID = "01HQ0000000000000000000000"
		if err := repo.Insert(ctx, s); err != nil {
			t.Fatalf("Insert() error: %v", err)
		}

		got, err := repo.Get(ctx, s.ID)
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		if got.OwnerRef != s.OwnerRef || got.Category != s.Category || got.Name != s.Name || got.ParentID != s.ParentID {
			t.Errorf("Get() = %+v, want %+v", got, s)
		}
		if !got.CreatedAt.Equal(s.CreatedAt) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, s.CreatedAt)
		}
		for id, v := range s.Values {
			if got.Values[id] != v {
				t.Errorf("value %s = %v, want exactly %v", id, got.Values[id], v)
			}
		}
		if got.Selections["nose"] != "nose" {
			t.Errorf("Selections = %v", got.Selections)
		}
		if string(got.ReferenceImage) != string(s.ReferenceImage) || got.ReferenceImageType != "image/png" {
			t.Errorf("reference image not round-tripped: %v %q", got.ReferenceImage, got.ReferenceImageType)
		}
	})

	t.Run("duplicate id is rejected", func(t *testing.T) {
		s := Sample("01HQ0000000000000000000002", "owner-a", base)
		if err := repo.Insert(ctx, s); err != nil {
			t.Fatalf("Insert() error: %v", err)
		}
		other := Sample(s.ID, "owner-b", base.Add(time.Hour))
		other.Values["nose-size"] = 1.4
		if err := repo.Insert(ctx, other); !errors.Is(err, session.ErrDuplicateID) {
			t.Fatalf("Insert(duplicate) error = %v, want ErrDuplicateID", err)
		}
		got, _ := repo.Get(ctx, s.ID)
		if got.OwnerRef != "owner-a" || got.Values["nose-size"] != 1.2 {
			t.Error("duplicate insert overwrote the stored session")
		}
	})

	t.Run("get unknown", func(t *testing.T) {
		if _, err := repo.Get(ctx, "missing"); !errors.Is(err, session.ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("list by owner newest first", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			s := Sample(fmt.Sprintf("01HQ00000000000000000001%02d", i), "owner-list", base.Add(time.Duration(i)*time.Minute))
			if err := repo.Insert(ctx, s); err != nil {
				t.Fatalf("Insert() error: %v", err)
			}
		}
		if err := repo.Insert(ctx, Sample("01HQ0000000000000000000199", "someone-else", base)); err != nil {
			t.Fatalf("Insert() error: %v", err)
		}

		list, err := repo.ListByOwner(ctx, "owner-list")
		if err != nil {
			t.Fatalf("ListByOwner() error: %v", err)
		}
		if len(list) != 3 {
			t.Fatalf("ListByOwner() returned %d sessions, want 3", len(list))
		}
		for i := 1; i < len(list); i++ {
			if list[i].CreatedAt.After(list[i-1].CreatedAt) {
				t.Errorf("list not newest first: %v before %v", list[i-1].CreatedAt, list[i].CreatedAt)
			}
		}
		if list[0].ID != "01HQ0000000000000000000102" {
			t.Errorf("newest = %s, want 01HQ0000000000000000000102", list[0].ID)
		}

		empty, err := repo.ListByOwner(ctx, "nobody")
		if err != nil || len(empty) != 0 {
			t.Errorf("ListByOwner(nobody) = %v, %v; want empty", empty, err)
		}
	})

	t.Run("delete checks owner", func(t *testing.T) {
		s := Sample("01HQ0000000000000000000300", "owner-del", base)
		if err := repo.Insert(ctx, s); err != nil {
			t.Fatalf("Insert() error: %v", err)
		}
		if err := repo.Delete(ctx, s.ID, "intruder"); !errors.Is(err, session.ErrNotOwner) {
			t.Errorf("Delete(other owner) error = %v, want ErrNotOwner", err)
		}
		if _, err := repo.Get(ctx, s.ID); err != nil {
			t.Errorf("session vanished after rejected delete: %v", err)
		}
		if err := repo.Delete(ctx, s.ID, "owner-del"); err != nil {
			t.Errorf("Delete() error: %v", err)
		}
		if _, err := repo.Get(ctx, s.ID); !errors.Is(err, session.ErrNotFound) {
			t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
		}
		if err := repo.Delete(ctx, s.ID, "owner-del"); !errors.Is(err, session.ErrNotFound) {
			t.Errorf("Delete(again) error = %v, want ErrNotFound", err)
		}
		list, _ := repo.ListByOwner(ctx, "owner-del")
		if len(list) != 0 {
			t.Errorf("deleted session still listed: %v", list)
		}
	})

	t.Run("concurrent inserts", func(t *testing.T) {
		var wg sync.WaitGroup
		errs := make(chan error, 10)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- repo.Insert(ctx, Sample(fmt.Sprintf("01HQ00000000000000000004%02d", i), "owner-conc", base))
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Errorf("concurrent Insert() error: %v", err)
			}
		}
		list, _ := repo.ListByOwner(ctx, "owner-conc")
		if len(list) != 10 {
			t.Errorf("ListByOwner() = %d sessions, want 10", len(list))
		}
	})
}
