// Package monitor periodically writes the behaviour and recorder status to a
// file and stores performance snapshots.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/OCAP2/tiptrails/internal/behavior"
	"github.com/OCAP2/tiptrails/internal/model"
	"github.com/OCAP2/tiptrails/internal/storage"
)

// StatusProvider reports the behaviour state.
type StatusProvider interface {
	Status() behavior.Status
}

// QueueStats reports recorder health.
type QueueStats interface {
	QueueLengths() (bundles, samples int)
	Dropped() uint64
	LastWriteDuration() time.Duration
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Behavior StatusProvider
	// Recorder and Performance are optional.
	Recorder    QueueStats
	Performance storage.PerformanceRecorder
	Logger      *slog.Logger
	StatusPath  string
	Interval    time.Duration
}

// Report is what the status file holds.
type Report struct {
	Time     time.Time                 `json:"time"`
	Behavior behavior.Status           `json:"behavior"`
	Recorder model.RecorderPerformance `json:"recorder"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	logger    *slog.Logger
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{deps: deps, logger: logger}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetProgramStatus returns the current status and the matching
// performance row.
func (s *Service) GetProgramStatus(now time.Time) Report {
	st := s.deps.Behavior.Status()
	perf := model.RecorderPerformance{
		Time:           now,
		SessionID:      st.SessionID,
		Endpoints:      st.Endpoints,
		OwnedResources: st.Owned,
	}
	if s.deps.Recorder != nil {
		bundles, samples := s.deps.Recorder.QueueLengths()
		perf.QueueLengths = model.QueueLengths{Bundles: bundles, Samples: samples}
		perf.Dropped = s.deps.Recorder.Dropped()
		perf.LastWriteDurationMs = float32(s.deps.Recorder.LastWriteDuration().Microseconds()) / 1000
	}
	return Report{Time: now, Behavior: st, Recorder: perf}
}

// Collect writes one status file and, while a session runs, one
// performance row.
func (s *Service) Collect(now time.Time) error {
	report := s.GetProgramStatus(now)

	if s.deps.StatusPath != "" {
		if err := writeStatus(s.deps.StatusPath, report); err != nil {
			return err
		}
	}
	if s.deps.Performance != nil && report.Behavior.Recording {
		if err := s.deps.Performance.RecordPerformance(report.Recorder); err != nil {
			return fmt.Errorf("error writing performance row: %w", err)
		}
	}
	return nil
}

// writeStatus replaces the file through a rename.
func writeStatus(path string, report Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding status: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating status directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("error writing status file: %w", err)
	}
	return os.Rename(tmp, path)
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop(s.stopChan, s.done)
	return nil
}

func (s *Service) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	s.logger.Debug("Starting status monitor", "interval", s.deps.Interval, "file", s.deps.StatusPath)

	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			if err := s.Collect(now); err != nil {
				s.logger.Error("Status update failed", "error", err)
			}
		}
	}
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
