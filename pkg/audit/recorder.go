package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"proxi-hq/guardian/pkg/policy/engine"
	"proxi-hq/guardian/pkg/telemetry/logging"
)

// Config contains configuration for the audit recorder.
type Config struct {
	// Enabled enables audit recording.
	Enabled bool

	// BufferSize is the size of the async write channel buffer.
	// Default: 1000
	BufferSize int

	// WriteTimeout is the timeout for writing a record to storage.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:      true,
		BufferSize:   1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder writes audit records asynchronously to a storage backend.
// Records are enqueued on a buffered channel and drained by a background
// worker so callers never block on storage writes. When the channel is
// full the record is dropped and the drop is logged.
type Recorder struct {
	storage    Storage
	config     *Config
	redactor   *logging.Redactor
	recordChan chan *Record
	wg         sync.WaitGroup
	done       chan struct{}
	closeOnce  sync.Once
	logger     *slog.Logger
}

// NewRecorder creates a new audit recorder with the provided storage
// backend and configuration.
func NewRecorder(storage Storage, config *Config) *Recorder {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultConfig().WriteTimeout
	}

	r := &Recorder{
		storage:    storage,
		config:     config,
		redactor:   logging.NewRedactor(),
		recordChan: make(chan *Record, config.BufferSize),
		done:       make(chan struct{}),
		logger:     slog.Default().With("component", "audit.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("audit recorder initialized",
		"buffer_size", config.BufferSize,
		"write_timeout", config.WriteTimeout,
	)

	return r
}

// RecordDecision records a tool validation decision together with the
// engine status and redacted tool arguments. Returns immediately.
func (r *Recorder) RecordDecision(decision *engine.Decision, status engine.Status, args map[string]any) {
	if !r.config.Enabled {
		return
	}

	record := &Record{
		ID:             uuid.New().String(),
		Timestamp:      time.Now(),
		Kind:           KindDecision,
		Tool:           decision.Tool,
		Mode:           decision.Mode,
		BaseMode:       status.BaseMode,
		Allowed:        decision.Allowed,
		GrantActive:    decision.GrantActive,
		GrantRemaining: decision.GrantRemaining,
		Args:           r.redactor.RedactMap(args),
	}
	if decision.Violation != nil {
		record.Reason = string(decision.Violation.Reason)
		record.Message = decision.Violation.Message
	}

	r.enqueue(record)
}

// RecordModeChange records an operational mode transition.
func (r *Recorder) RecordModeChange(from, to string, cause engine.ModeChangeCause) {
	if !r.config.Enabled {
		return
	}

	r.enqueue(&Record{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Kind:      KindModeChange,
		FromMode:  from,
		ToMode:    to,
		Cause:     string(cause),
	})
}

// RecordGrantEvent records a temporary grant lifecycle event.
func (r *Recorder) RecordGrantEvent(event engine.GrantEventType, remaining time.Duration) {
	if !r.config.Enabled {
		return
	}

	r.enqueue(&Record{
		ID:             uuid.New().String(),
		Timestamp:      time.Now(),
		Kind:           KindGrantEvent,
		GrantEvent:     string(event),
		GrantRemaining: remaining,
	})
}

// enqueue places a record on the async channel without blocking.
// Records are dropped when the channel is full or the recorder is
// shutting down.
func (r *Recorder) enqueue(record *Record) {
	select {
	case <-r.done:
		r.logger.Warn("recorder shutting down, dropping record",
			"record_id", record.ID,
			"kind", record.Kind,
		)
		return
	default:
	}

	select {
	case r.recordChan <- record:
	default:
		r.logger.Error("audit record channel full, dropping record",
			"record_id", record.ID,
			"kind", record.Kind,
			"channel_capacity", r.config.BufferSize,
		)
	}
}

// Close gracefully shuts down the recorder by draining the async channel
// and waiting for all pending writes to complete.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		r.logger.Info("shutting down audit recorder")
		close(r.done)
		r.wg.Wait()
		r.logger.Info("audit recorder shut down complete")
	})
	return nil
}

// worker is the background goroutine that drains the record channel and
// writes records to storage.
func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.recordChan:
			r.writeRecord(record)

		case <-r.done:
			// Drain remaining records before exit
			for {
				select {
				case record := <-r.recordChan:
					r.writeRecord(record)
				default:
					return
				}
			}
		}
	}
}

// writeRecord writes a single record to storage.
func (r *Recorder) writeRecord(record *Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	if err := r.storage.Store(ctx, record); err != nil {
		r.logger.Error("failed to store audit record",
			"record_id", record.ID,
			"kind", record.Kind,
			"error", err,
		)
		return
	}

	r.logger.Debug("audit record stored",
		"record_id", record.ID,
		"kind", record.Kind,
	)
}
