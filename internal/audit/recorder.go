package audit

import (
	"context"
	"log/slog"

	"github.com/nerrad567/area-core/internal/auth"
)

// queueSize bounds the pending-entry channel.
const queueSize = 256

// Sink accepts audit entries from the services.
type Sink interface {
	Record(ctx context.Context, action, entityType string, entityID int64, details map[string]any)
}

// Nop discards every entry.
type Nop struct{}

// Record does nothing.
func (Nop) Record(context.Context, string, string, int64, map[string]any) {}

// Recorder queues entries and writes them from a single goroutine started
// with Run.
type Recorder struct {
	repo   Repository
	queue  chan *AuditLog
	logger *slog.Logger
}

// NewRecorder creates a Recorder writing to repo.
func NewRecorder(repo Repository, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{repo: repo, queue: make(chan *AuditLog, queueSize), logger: logger}
}

// Record enqueues an entry attributed to the principal in ctx. It never
// blocks; when the queue is full the entry is dropped.
func (r *Recorder) Record(ctx context.Context, action, entityType string, entityID int64, details map[string]any) {
	entry := &AuditLog{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Source:     "api",
		Details:    details,
	}
	if p, ok := auth.PrincipalFrom(ctx); ok {
		entry.UserID = p.UserID
	}

	select {
	case r.queue <- entry:
	default:
		r.logger.Warn("audit queue full, dropping entry",
			"action", action,
			"entity_type", entityType,
			"entity_id", entityID,
		)
	}
}

// Run writes queued entries until ctx is cancelled, then drains what is
// left and returns.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case entry := <-r.queue:
			r.write(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-r.queue:
					r.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(entry *AuditLog) {
	if err := r.repo.Create(context.Background(), entry); err != nil {
		r.logger.Error("audit log write failed",
			"action", entry.Action,
			"entity_type", entry.EntityType,
			"error", err,
		)
	}
}
