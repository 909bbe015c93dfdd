package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/policygw/internal/observability"
)

const defaultBufferSize = 1024

// Recorder writes call records through a buffered channel so the
// request path never blocks on analytics. When the buffer is full the
// record is dropped and counted.
type Recorder struct {
	repo   Repository
	logger observability.Logger
	now    func() time.Time

	buffer chan CallRecord

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRecorderLogger sets the logger.
func WithRecorderLogger(logger observability.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// WithRecorderClock sets the time source.
func WithRecorderClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.now = now
	}
}

// WithBufferSize sets the channel buffer size.
func WithBufferSize(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 0 {
			r.buffer = make(chan CallRecord, n)
		}
	}
}

// NewRecorder creates a recorder and starts its writer goroutine.
func NewRecorder(repo Repository, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		repo:   repo,
		logger: observability.NopLogger(),
		now:    time.Now,
		buffer: make(chan CallRecord, defaultBufferSize),
		done:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(r)
	}

	go r.writeLoop()

	return r
}

// Record queues a call record. Never blocks and never returns an
// error; on a full buffer or a closed recorder the record is dropped
// and counted.
func (r *Recorder) Record(record CallRecord) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = r.now()
	}

	// The mutex orders this send against Close: once closed is set the
	// buffer may be closed at any moment, so the send must not happen.
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		recordDropped()
		r.logger.Warn("recorder closed, record dropped",
			observability.String("path", record.Path),
		)
		return
	}

	select {
	case r.buffer <- record:
	default:
		recordDropped()
		r.logger.Warn("analytics buffer full, record dropped",
			observability.String("path", record.Path),
		)
	}
}

func (r *Recorder) writeLoop() {
	for record := range r.buffer {
		if err := r.repo.Save(context.Background(), record); err != nil {
			// Best effort: log and move on.
			r.logger.Warn("failed to save analytics record", observability.Error(err))
			continue
		}
		recordSaved(record.StatusCode, record.CacheHit)
	}
	close(r.done)
}

// StartCleanup periodically deletes records older than retention until
// ctx is cancelled.
func (r *Recorder) StartCleanup(ctx context.Context, interval, retention time.Duration) {
	if interval <= 0 || retention <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := r.now().Add(-retention)
				removed, err := r.repo.DeleteOlderThan(ctx, cutoff)
				if err != nil {
					r.logger.Warn("analytics cleanup failed", observability.Error(err))
					continue
				}
				if removed > 0 {
					r.logger.Debug("analytics cleanup removed records",
						observability.Int("removed", removed),
					)
				}
			}
		}
	}()
}

// Close stops accepting records and waits for buffered records to be
// written. Idempotent.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	close(r.buffer)
	<-r.done
	return nil
}
