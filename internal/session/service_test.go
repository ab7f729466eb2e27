package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/face-sculptor/internal/config"
	"github.com/kozaktomas/face-sculptor/internal/logging"
	"github.com/kozaktomas/face-sculptor/internal/params"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	catalog, err := params.NewCatalog(config.Load().Presets)
	if err != nil {
		t.Fatalf("NewCatalog() error: %v", err)
	}
	return NewService(NewMemoryRepository(), catalog, logging.Discard())
}

func validSession(owner string) Session {
	return Session{
		OwnerRef: owner,
		Category: "round",
		Values:   params.Values{"implant-size": 425, "implant-projection": 2.1},
	}
}

func TestService_Save(t *testing.T) {
	svc := newTestService(t)
	fixed := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	id, err := svc.Save(context.Background(), validSession("owner-1"))
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if len(id) != 26 {
		t.Errorf("id %q is not a ULID", id)
	}

	got, err := svc.Load(context.Background(), id)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !got.CreatedAt.Equal(fixed) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, fixed)
	}
	if got.Values["implant-size"] != 425 {
		t.Errorf("implant-size = %v, want 425", got.Values["implant-size"])
	}
}

func TestService_SaveValidation(t *testing.T) {
	svc := newTestService(t)

	tests := []struct {
		name   string
		mutate func(s *Session)
	}{
		{"missing owner", func(s *Session) { s.OwnerRef = "" }},
		{"missing category", func(s *Session) { s.Category = "" }},
		{"unknown category", func(s *Session) { s.Category = "ears" }},
		{"incomplete", func(s *Session) { delete(s.Values, "implant-projection") }},
		{"foreign parameter", func(s *Session) { s.Values["gummy-implant-height"] = 1 }},
		{"out of range", func(s *Session) { s.Values["implant-size"] = 900 }},
		{"off step", func(s *Session) { s.Values["implant-size"] = 430 }},
		{"image without type", func(s *Session) { s.ReferenceImage = []byte{1} }},
		{"unknown parent", func(s *Session) { s.ParentID = "01HQ0000000000000000000000" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSession("owner-1")
			tt.mutate(&s)
			if _, err := svc.Save(context.Background(), s); !errors.Is(err, ErrValidation) {
				t.Errorf("Save() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestService_SavedSessionsAreImmutable(t *testing.T) {
	svc := newTestService(t)
	s := validSession("owner-1")
	id, err := svc.Save(context.Background(), s)
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	s.Values["implant-size"] = 800
	loaded, _ := svc.Load(context.Background(), id)
	loaded.Values["implant-projection"] = 3

	again, _ := svc.Load(context.Background(), id)
	if again.Values["implant-size"] != 425 || again.Values["implant-projection"] != 2.1 {
		t.Errorf("stored session changed: %v", again.Values)
	}
}

func TestService_ContinueEditingCreatesChild(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	parentID, err := svc.Save(ctx, validSession("owner-1"))
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	parent, _ := svc.Load(ctx, parentID)

	registry, _ := params.NewRegistry(svc.Catalog(), "nose")
	if err := registry.LoadSnapshot(parent.Snapshot()); err != nil {
		t.Fatalf("LoadSnapshot() error: %v", err)
	}
	registry.SetValue("implant-size", 500)

	snap := registry.Snapshot()
	childID, err := svc.Save(ctx, Session{
		OwnerRef: "owner-1", Category: snap.Category, Values: snap.Values, ParentID: parentID,
	})
	if err != nil {
		t.Fatalf("Save(child) error: %v", err)
	}
	if childID == parentID {
		t.Fatal("continuing an edit must create a new session")
	}

	child, _ := svc.Load(ctx, childID)
	if child.ParentID != parentID {
		t.Errorf("ParentID = %q, want %q", child.ParentID, parentID)
	}
	parentAgain, _ := svc.Load(ctx, parentID)
	if parentAgain.Values["implant-size"] != 425 {
		t.Error("parent session changed after saving a child")
	}
}

func TestService_ConcurrentSavesSameOwner(t *testing.T) {
	svc := newTestService(t)
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[string]bool{}
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := svc.Save(context.Background(), validSession("owner-1"))
			if err != nil {
				t.Errorf("Save() error: %v", err)
				return
			}
			mu.Lock()
			ids[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(ids) != 20 {
		t.Errorf("got %d distinct ids, want 20", len(ids))
	}
	list, _ := svc.List(context.Background(), "owner-1")
	if len(list) != 20 {
		t.Errorf("List() = %d sessions, want 20", len(list))
	}
}

func TestService_Delete(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	id, _ := svc.Save(ctx, validSession("owner-1"))

	if err := svc.Delete(ctx, id, "owner-2"); !errors.Is(err, ErrNotOwner) {
		t.Errorf("Delete(other owner) error = %v, want ErrNotOwner", err)
	}
	if err := svc.Delete(ctx, id, ""); !errors.Is(err, ErrValidation) {
		t.Errorf("Delete(no owner) error = %v, want ErrValidation", err)
	}
	if err := svc.Delete(ctx, id, "owner-1"); err != nil {
		t.Errorf("Delete() error: %v", err)
	}
	if err := svc.Delete(ctx, id, "owner-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(again) error = %v, want ErrNotFound", err)
	}
}

func TestService_ListRequiresOwner(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.List(context.Background(), ""); !errors.Is(err, ErrValidation) {
		t.Errorf("List(\"\") error = %v, want ErrValidation", err)
	}
}
