package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type countingSource struct {
	mu    sync.Mutex
	sets  map[int64]PermissionSet
	calls int
	err   error
}

func (s *countingSource) PermissionSet(_ context.Context, userID int64) (PermissionSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	set := PermissionSet{}
	for r, m := range s.sets[userID] {
		set[r] = m
	}
	return set, nil
}

type recordingObserver struct {
	mu        sync.Mutex
	decisions []Decision
}

func (o *recordingObserver) ObserveDecision(_ context.Context, d Decision) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.decisions = append(o.decisions, d)
}

func TestGuard_Authorize(t *testing.T) {
	src := &countingSource{sets: map[int64]PermissionSet{
		1: {ResourceArea: ActionFind.Bit | ActionSave.Bit},
	}}
	g := NewGuard(src, GuardConfig{}, quietLogger())

	tests := []struct {
		name     string
		ctx      context.Context
		resource ResourceType
		action   Action
		want     error
	}{
		{"no principal", context.Background(), ResourceArea, ActionFind, ErrUnauthorized},
		{"granted", WithPrincipal(context.Background(), Principal{UserID: 1}), ResourceArea, ActionFind, nil},
		{"other bit", WithPrincipal(context.Background(), Principal{UserID: 1}), ResourceArea, ActionRemove, ErrUnauthorized},
		{"other resource", WithPrincipal(context.Background(), Principal{UserID: 1}), ResourceProject, ActionFind, ErrUnauthorized},
		{"no roles", WithPrincipal(context.Background(), Principal{UserID: 2}), ResourceArea, ActionFind, ErrUnauthorized},
		{"admin bypass", WithPrincipal(context.Background(), Principal{UserID: 3, Admin: true}), ResourceRole, ActionRemoveMembers, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := g.Authorize(tt.ctx, tt.resource, tt.action); !errors.Is(err, tt.want) {
				t.Errorf("Authorize() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGuard_SourceError(t *testing.T) {
	boom := errors.New("db down")
	g := NewGuard(&countingSource{err: boom}, GuardConfig{}, quietLogger())
	ctx := WithPrincipal(context.Background(), Principal{UserID: 1})

	err := g.Authorize(ctx, ResourceArea, ActionFind)
	if !errors.Is(err, boom) || errors.Is(err, ErrUnauthorized) {
		t.Errorf("Authorize() = %v, want wrapped source error", err)
	}
}

func TestGuard_CachesAndInvalidates(t *testing.T) {
	src := &countingSource{sets: map[int64]PermissionSet{1: {ResourceArea: ActionFind.Bit}}}
	g := NewGuard(src, GuardConfig{CacheSize: 8, CacheTTL: time.Minute}, quietLogger())
	ctx := WithPrincipal(context.Background(), Principal{UserID: 1})

	for range 3 {
		if err := g.Authorize(ctx, ResourceArea, ActionFind); err != nil {
			t.Fatalf("Authorize() = %v", err)
		}
	}
	if src.calls != 1 {
		t.Errorf("source calls = %d, want 1", src.calls)
	}

	src.sets[1] = PermissionSet{ResourceArea: ActionFind.Bit | ActionRemove.Bit}
	if err := g.Authorize(ctx, ResourceArea, ActionRemove); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("stale snapshot should still refuse, got %v", err)
	}

	g.Invalidate(1)
	if err := g.Authorize(ctx, ResourceArea, ActionRemove); err != nil {
		t.Errorf("after Invalidate Authorize() = %v", err)
	}

	src.sets[1] = PermissionSet{}
	g.InvalidateAll()
	if err := g.Authorize(ctx, ResourceArea, ActionFind); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("after InvalidateAll Authorize() = %v, want ErrUnauthorized", err)
	}
}

// racingSource runs during once, after reading the set and before returning
// it, as a grant committed mid-load would.
type racingSource struct {
	*countingSource
	during func()
}

func (s *racingSource) PermissionSet(ctx context.Context, userID int64) (PermissionSet, error) {
	set, err := s.countingSource.PermissionSet(ctx, userID)
	if fn := s.during; fn != nil {
		s.during = nil
		fn()
	}
	return set, err
}

func TestGuard_InvalidationDuringLoadIsNotLost(t *testing.T) {
	for name, invalidate := range map[string]func(*Guard){
		"all":  func(g *Guard) { g.InvalidateAll() },
		"user": func(g *Guard) { g.Invalidate(1) },
	} {
		t.Run(name, func(t *testing.T) {
			counting := &countingSource{sets: map[int64]PermissionSet{1: {}}}
			src := &racingSource{countingSource: counting}
			g := NewGuard(src, GuardConfig{CacheSize: 8, CacheTTL: time.Hour}, quietLogger())
			ctx := WithPrincipal(context.Background(), Principal{UserID: 1})

			src.during = func() {
				counting.mu.Lock()
				counting.sets[1] = PermissionSet{ResourceArea: ActionUpdate.Bit}
				counting.mu.Unlock()
				invalidate(g)
			}
			if err := g.Authorize(ctx, ResourceArea, ActionUpdate); !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("first Authorize() = %v, want the pre-grant refusal", err)
			}
			if err := g.Authorize(ctx, ResourceArea, ActionUpdate); err != nil {
				t.Errorf("Authorize() after grant = %v, stale snapshot was cached", err)
			}
			if counting.calls != 2 {
				t.Errorf("source calls = %d, want 2", counting.calls)
			}
			if err := g.Authorize(ctx, ResourceArea, ActionUpdate); err != nil || counting.calls != 2 {
				t.Errorf("fresh snapshot not cached: err = %v, calls = %d", err, counting.calls)
			}
		})
	}
}

func TestGuard_ReportsDecisions(t *testing.T) {
	src := &countingSource{sets: map[int64]PermissionSet{1: {ResourceArea: ActionFind.Bit}}}
	g := NewGuard(src, GuardConfig{}, quietLogger())
	obs := &recordingObserver{}
	g.AddObserver(obs)

	ctx := WithPrincipal(context.Background(), Principal{UserID: 1})
	_ = g.Authorize(ctx, ResourceArea, ActionFind)   //nolint:errcheck // outcome read from observer
	_ = g.Authorize(ctx, ResourceArea, ActionUpdate) //nolint:errcheck // outcome read from observer

	if len(obs.decisions) != 2 {
		t.Fatalf("decisions = %d, want 2", len(obs.decisions))
	}
	if !obs.decisions[0].Allowed || obs.decisions[0].Action != "find" {
		t.Errorf("first decision = %+v", obs.decisions[0])
	}
	if obs.decisions[1].Allowed || obs.decisions[1].At.IsZero() {
		t.Errorf("second decision = %+v", obs.decisions[1])
	}
}

func TestGuard_Permissions(t *testing.T) {
	src := &countingSource{sets: map[int64]PermissionSet{1: {ResourceDevice: 8}}}
	g := NewGuard(src, GuardConfig{}, quietLogger())

	if _, err := g.Permissions(context.Background()); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Permissions() without principal = %v", err)
	}

	set, err := g.Permissions(WithPrincipal(context.Background(), Principal{UserID: 1}))
	if err != nil || set[ResourceDevice] != 8 {
		t.Errorf("Permissions() = %v, %v", set, err)
	}

	set, err = g.Permissions(WithPrincipal(context.Background(), Principal{UserID: 9, Admin: true}))
	if err != nil || set[ResourceArea] != 63 || set[ResourceRole] != 127 {
		t.Errorf("admin Permissions() = %v, %v", set, err)
	}
}

func TestPrincipalFrom(t *testing.T) {
	if _, ok := PrincipalFrom(context.Background()); ok {
		t.Error("empty context should carry no principal")
	}
	if _, ok := PrincipalFrom(WithPrincipal(context.Background(), Principal{})); ok {
		t.Error("zero principal should not count")
	}
	p, ok := PrincipalFrom(WithPrincipal(context.Background(), Principal{UserID: 5, Username: "x"}))
	if !ok || p.UserID != 5 {
		t.Errorf("PrincipalFrom() = %+v, %v", p, ok)
	}
}

func TestGuard_WithRoleRepository(t *testing.T) {
	db := testDB(t)
	roles := NewRoleRepository(db)
	ctx := context.Background()

	user := seedTestUser(t, db, "carol", false)
	g := NewGuard(roles, GuardConfig{CacheSize: 4, CacheTTL: time.Minute}, quietLogger())
	pctx := WithPrincipal(ctx, user.Principal())

	if err := g.Authorize(pctx, ResourceArea, ActionSave); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("user without roles: Authorize() = %v", err)
	}

	role := seedTestRole(t, db, "area-savers", map[ResourceType]Mask{ResourceArea: ActionSave.Bit})
	if err := roles.Assign(ctx, user.ID, role.ID); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	g.Invalidate(user.ID)

	if err := g.Authorize(pctx, ResourceArea, ActionSave); err != nil {
		t.Errorf("after grant Authorize() = %v", err)
	}
}
