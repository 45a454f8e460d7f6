package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/area-core/internal/auth"
	"github.com/nerrad567/area-core/internal/infrastructure/database/dbtest"
)

func TestSQLiteRepository_CreateAndList(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewSQLiteRepository(db.DB)
	ctx := context.Background()

	entries := []*AuditLog{
		{Action: ActionCreate, EntityType: "area", EntityID: 1, UserID: 7, CreatedAt: 1000},
		{Action: ActionUpdate, EntityType: "area", EntityID: 1, UserID: 7, CreatedAt: 2000, Details: map[string]any{"name": "Lobby"}},
		{Action: ActionDelete, EntityType: "project", EntityID: 3, CreatedAt: 3000},
	}
	for _, e := range entries {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if e.ID == "" {
			t.Fatal("Create() did not assign an ID")
		}
	}

	all, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if all.Total != 3 || len(all.Logs) != 3 {
		t.Fatalf("List() total = %d, len = %d, want 3", all.Total, len(all.Logs))
	}
	if all.Logs[0].Action != ActionDelete {
		t.Errorf("first entry = %q, want newest (delete)", all.Logs[0].Action)
	}
	if all.Logs[0].UserID != 0 {
		t.Errorf("system entry UserID = %d, want 0", all.Logs[0].UserID)
	}
	if all.Limit != defaultLimit {
		t.Errorf("Limit = %d, want %d", all.Limit, defaultLimit)
	}

	areaLogs, err := repo.List(ctx, Filter{EntityType: "area", EntityID: 1})
	if err != nil {
		t.Fatalf("List(area) error = %v", err)
	}
	if areaLogs.Total != 2 {
		t.Fatalf("area total = %d, want 2", areaLogs.Total)
	}
	if got := areaLogs.Logs[0].Details["name"]; got != "Lobby" {
		t.Errorf("details name = %v, want Lobby", got)
	}

	page, err := repo.List(ctx, Filter{Limit: 1000, Offset: 2})
	if err != nil {
		t.Fatalf("List(page) error = %v", err)
	}
	if page.Limit != maxLimit || len(page.Logs) != 1 {
		t.Errorf("page limit = %d len = %d, want %d and 1", page.Limit, len(page.Logs), maxLimit)
	}

	n, err := repo.DeleteAll(ctx)
	if err != nil || n != 3 {
		t.Errorf("DeleteAll() = %d, %v; want 3, nil", n, err)
	}
}

type memRepo struct {
	mu   sync.Mutex
	logs []*AuditLog
	fail bool
}

func (m *memRepo) Create(_ context.Context, log *AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("disk full")
	}
	m.logs = append(m.logs, log)
	return nil
}

func (m *memRepo) List(context.Context, Filter) (*ListResult, error) { return &ListResult{}, nil }
func (m *memRepo) DeleteAll(context.Context) (int64, error)          { return 0, nil }

func (m *memRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.logs)
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecorder_AttributesPrincipalAndDrains(t *testing.T) {
	repo := &memRepo{}
	rec := NewRecorder(repo, quiet())

	ctx := auth.WithPrincipal(context.Background(), auth.Principal{UserID: 42, Username: "alice"})
	rec.Record(ctx, ActionCreate, "area", 5, nil)
	rec.Record(context.Background(), ActionDelete, "area", 5, nil)

	runCtx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Run(runCtx) // cancelled: drains and returns

	if repo.count() != 2 {
		t.Fatalf("written = %d, want 2", repo.count())
	}
	if repo.logs[0].UserID != 42 || repo.logs[1].UserID != 0 {
		t.Errorf("user ids = %d, %d; want 42, 0", repo.logs[0].UserID, repo.logs[1].UserID)
	}
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	repo := &memRepo{}
	rec := NewRecorder(repo, quiet())

	for i := range queueSize + 10 {
		rec.Record(context.Background(), ActionUpdate, "area", int64(i+1), nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Run(ctx)

	if repo.count() != queueSize {
		t.Errorf("written = %d, want %d", repo.count(), queueSize)
	}
}

func TestRecorder_WriteErrorsAreLogged(t *testing.T) {
	repo := &memRepo{fail: true}
	rec := NewRecorder(repo, quiet())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(done)
	}()

	rec.Record(context.Background(), ActionCreate, "area", 1, nil)
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNop(t *testing.T) {
	var s Sink = Nop{}
	s.Record(context.Background(), ActionCreate, "area", 1, nil)
}
