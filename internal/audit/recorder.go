package audit

import (
	"context"
	"sync"

	"github.com/nerrad567/itemkeeper/internal/infrastructure/logging"
)

// chanSize is the buffer for pending entries. Entries beyond it are dropped
// so a slow disk never holds up a request.
const chanSize = 256

// Recorder writes audit entries asynchronously through a single goroutine.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	repo   Repository
	logger *logging.Logger
	ch     chan *AuditLog
	done   chan struct{}
	once   sync.Once

	// OnDrop, when set, is called for every entry discarded by Record.
	OnDrop func()
}

// NewRecorder creates a Recorder. Call Run to start writing.
func NewRecorder(repo Repository, logger *logging.Logger) *Recorder {
	return &Recorder{
		repo:   repo,
		logger: logger,
		ch:     make(chan *AuditLog, chanSize),
		done:   make(chan struct{}),
	}
}

// Record enqueues an entry. Never blocks.
func (r *Recorder) Record(entry *AuditLog) {
	if r == nil {
		return
	}
	select {
	case r.ch <- entry:
	default:
		r.logger.Warn("audit log channel full, dropping entry",
			"action", entry.Action,
			"entity_type", entry.EntityType,
		)
		if r.OnDrop != nil {
			r.OnDrop()
		}
	}
}

// Run writes queued entries until ctx is cancelled, then flushes what is
// left and returns. Wait blocks until that flush has finished.
func (r *Recorder) Run(ctx context.Context) {
	defer r.once.Do(func() { close(r.done) })

	for {
		select {
		case entry := <-r.ch:
			r.write(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-r.ch:
					r.write(entry)
				default:
					return
				}
			}
		}
	}
}

// Wait blocks until Run has returned.
func (r *Recorder) Wait() {
	if r == nil {
		return
	}
	<-r.done
}

func (r *Recorder) write(entry *AuditLog) {
	// The request that produced the entry may already be gone.
	if err := r.repo.Create(context.Background(), entry); err != nil {
		r.logger.Error("audit log write failed",
			"action", entry.Action,
			"entity_type", entry.EntityType,
			"error", err,
		)
	}
}
