package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// PermissionSource resolves a user's effective permission set.
type PermissionSource interface {
	PermissionSet(ctx context.Context, userID int64) (PermissionSet, error)
}

// Decision is the outcome of one authorisation check.
type Decision struct {
	UserID   int64
	Admin    bool
	Resource ResourceType
	Action   string
	Allowed  bool
	At       time.Time
}

// DecisionObserver receives every decision the Guard makes. Implementations
// must not block.
type DecisionObserver interface {
	ObserveDecision(ctx context.Context, d Decision)
}

// GuardConfig sizes the per-user permission snapshot cache. A zero size
// disables caching.
type GuardConfig struct {
	CacheSize int
	CacheTTL  time.Duration
}

// Guard answers "may the caller perform action on resource".
//
// Snapshots are cached per user; any change to grants or memberships must go
// through Invalidate or InvalidateAll. A snapshot loaded while an
// invalidation ran is returned but not cached.
type Guard struct {
	source    PermissionSource
	cache     *expirable.LRU[int64, PermissionSet]
	observers []DecisionObserver
	logger    *slog.Logger

	mu         sync.Mutex
	generation uint64
}

// NewGuard creates a Guard reading permissions from source.
func NewGuard(source PermissionSource, cfg GuardConfig, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Guard{source: source, logger: logger}
	if cfg.CacheSize > 0 {
		g.cache = expirable.NewLRU[int64, PermissionSet](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return g
}

// AddObserver registers o for every later decision.
func (g *Guard) AddObserver(o DecisionObserver) {
	g.observers = append(g.observers, o)
}

// Authorize returns nil when the principal in ctx may perform action on
// resource and ErrUnauthorized otherwise. A context without a principal is
// always refused.
func (g *Guard) Authorize(ctx context.Context, resource ResourceType, action Action) error {
	p, ok := PrincipalFrom(ctx)
	if !ok {
		g.report(ctx, Decision{Resource: resource, Action: action.Name})
		return ErrUnauthorized
	}
	if p.Admin {
		g.report(ctx, Decision{UserID: p.UserID, Admin: true, Resource: resource, Action: action.Name, Allowed: true})
		return nil
	}

	set, err := g.snapshot(ctx, p.UserID)
	if err != nil {
		return fmt.Errorf("resolving permissions for user %d: %w", p.UserID, err)
	}

	allowed := set.Allows(resource, action)
	g.report(ctx, Decision{UserID: p.UserID, Resource: resource, Action: action.Name, Allowed: allowed})
	if !allowed {
		g.logger.Debug("authorisation denied",
			"user_id", p.UserID,
			"resource", resource,
			"action", action.Name,
		)
		return ErrUnauthorized
	}
	return nil
}

// Permissions returns the effective permission set of the principal in ctx.
// Admins get every bit of every resource.
func (g *Guard) Permissions(ctx context.Context) (PermissionSet, error) {
	p, ok := PrincipalFrom(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}
	if p.Admin {
		set := PermissionSet{}
		for _, r := range ResourceTypes() {
			set[r] = FullMask(r)
		}
		return set, nil
	}
	return g.snapshot(ctx, p.UserID)
}

// Invalidate drops the cached snapshot of one user.
func (g *Guard) Invalidate(userID int64) {
	if g.cache == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.generation++
	g.cache.Remove(userID)
}

// InvalidateAll drops every cached snapshot.
func (g *Guard) InvalidateAll() {
	if g.cache == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.generation++
	g.cache.Purge()
}

func (g *Guard) snapshot(ctx context.Context, userID int64) (PermissionSet, error) {
	if g.cache == nil {
		return g.source.PermissionSet(ctx, userID)
	}
	if set, ok := g.cache.Get(userID); ok {
		return set, nil
	}

	g.mu.Lock()
	gen := g.generation
	g.mu.Unlock()

	set, err := g.source.PermissionSet(ctx, userID)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	if g.generation == gen {
		g.cache.Add(userID, set)
	}
	g.mu.Unlock()
	return set, nil
}

func (g *Guard) report(ctx context.Context, d Decision) {
	if len(g.observers) == 0 {
		return
	}
	d.At = time.Now()
	for _, o := range g.observers {
		o.ObserveDecision(ctx, d)
	}
}
