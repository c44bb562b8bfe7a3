// Package recorder queues bundle lifecycle changes and trail samples coming
// out of the registry and writes them to storage from a background worker.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/OCAP2/tiptrails/internal/config"
	"github.com/OCAP2/tiptrails/internal/influx"
	"github.com/OCAP2/tiptrails/internal/queue"
	"github.com/OCAP2/tiptrails/internal/storage"
	"github.com/OCAP2/tiptrails/pkg/core"
)

// ErrRunning is returned by Begin while a session is being recorded.
var ErrRunning = errors.New("recorder already running")

// Dependencies holds all dependencies for the recorder
type Dependencies struct {
	Backend storage.Backend
	// Influx mirrors samples when set.
	Influx *influx.Manager
	Logger *slog.Logger
}

// Recorder implements registry.Sink. Sink calls only push onto bounded
// queues; storage writes happen on the flush goroutine.
type Recorder struct {
	cfg    config.RecorderConfig
	deps   Dependencies
	logger *slog.Logger

	bundles *queue.Queue[core.BundleRecord]
	samples *queue.Queue[core.TrailSample]

	mu        sync.Mutex
	ticks     map[core.EndpointKey]int
	sessionID string
	running   bool
	stopChan  chan struct{}
	wg        sync.WaitGroup

	// serialises flushes between the worker and End
	flushMu sync.Mutex
}

// New creates a recorder. A SampleEvery below one records every sample.
func New(cfg config.RecorderConfig, deps Dependencies) *Recorder {
	if cfg.SampleEvery < 1 {
		cfg.SampleEvery = 1
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		cfg:     cfg,
		deps:    deps,
		logger:  logger,
		bundles: queue.NewBounded[core.BundleRecord](cfg.QueueSize),
		samples: queue.NewBounded[core.TrailSample](cfg.QueueSize),
		ticks:   make(map[core.EndpointKey]int),
	}
}

// BundleAdded queues a created bundle.
func (r *Recorder) BundleAdded(rec core.BundleRecord) {
	if !r.accepting() {
		return
	}
	r.bundles.Push(rec)
}

// BundleRemoved queues a removed or detached bundle.
func (r *Recorder) BundleRemoved(rec core.BundleRecord) {
	r.mu.Lock()
	delete(r.ticks, rec.Key)
	running := r.running
	r.mu.Unlock()
	if running {
		r.bundles.Push(rec)
	}
}

// Sample queues one sample out of every SampleEvery per endpoint.
func (r *Recorder) Sample(s core.TrailSample) {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	n := r.ticks[s.Key]
	r.ticks[s.Key] = n + 1
	r.mu.Unlock()

	if n%r.cfg.SampleEvery == 0 {
		r.samples.Push(s)
	}
}

func (r *Recorder) accepting() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Begin starts a storage session and the flush worker.
func (r *Recorder) Begin(s *core.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return ErrRunning
	}
	if err := r.deps.Backend.StartSession(s); err != nil {
		return fmt.Errorf("failed to start storage session: %w", err)
	}

	r.bundles.Clear()
	r.samples.Clear()
	r.ticks = make(map[core.EndpointKey]int)
	r.sessionID = s.ID
	r.running = true
	r.stopChan = make(chan struct{})

	r.wg.Add(1)
	go r.flushLoop(r.stopChan)

	r.logger.Info("Recording started", "session", s.ID, "name", s.Name)
	return nil
}

// End stops the worker, writes what is still queued and closes the storage
// session.
func (r *Recorder) End(end time.Time) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return core.ErrNoSession
	}
	r.running = false
	close(r.stopChan)
	sessionID := r.sessionID
	r.mu.Unlock()

	r.wg.Wait()

	flushErr := r.Flush(context.Background())
	if err := r.deps.Backend.EndSession(end); err != nil {
		return errors.Join(flushErr, fmt.Errorf("failed to end storage session: %w", err))
	}

	attrs := []any{"session", sessionID, "dropped", r.Dropped()}
	if exp, ok := r.deps.Backend.(storage.Exporter); ok && exp.ExportedFilePath() != "" {
		attrs = append(attrs, "file", exp.ExportedFilePath())
	}
	r.logger.Info("Recording finished", attrs...)
	return flushErr
}

// Running reports whether a session is being recorded.
func (r *Recorder) Running() bool {
	return r.accepting()
}

// SessionID is the id of the current or last recorded session.
func (r *Recorder) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionID
}

// Flush drains both queues into storage and the influx mirror.
func (r *Recorder) Flush(ctx context.Context) error {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	var errs []error
	if bundles := r.bundles.GetAndEmpty(); len(bundles) > 0 {
		if err := r.deps.Backend.RecordBundles(bundles); err != nil {
			errs = append(errs, fmt.Errorf("failed to write %d bundle events: %w", len(bundles), err))
		}
	}
	if samples := r.samples.GetAndEmpty(); len(samples) > 0 {
		if err := r.deps.Backend.RecordSamples(samples); err != nil {
			errs = append(errs, fmt.Errorf("failed to write %d samples: %w", len(samples), err))
		}
		if r.deps.Influx != nil {
			if err := r.deps.Influx.WriteSamples(ctx, r.SessionID(), samples); err != nil {
				errs = append(errs, fmt.Errorf("failed to mirror samples: %w", err))
			}
		}
	}
	return errors.Join(errs...)
}

func (r *Recorder) flushLoop(stop <-chan struct{}) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := r.Flush(context.Background()); err != nil {
				r.logger.Error("Recorder flush failed", "error", err)
			}
		}
	}
}

// QueueLengths returns the number of queued bundle events and samples.
func (r *Recorder) QueueLengths() (bundles, samples int) {
	return r.bundles.Len(), r.samples.Len()
}

// Dropped is the number of records lost to full queues.
func (r *Recorder) Dropped() uint64 {
	return r.bundles.Dropped() + r.samples.Dropped()
}

// LastWriteDuration returns the duration of the last storage write.
// Returns 0 if the backend doesn't time its writes.
func (r *Recorder) LastWriteDuration() time.Duration {
	if t, ok := r.deps.Backend.(storage.WriteTimer); ok {
		return t.LastWriteDuration()
	}
	return 0
}
