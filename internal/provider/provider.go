// Package provider delivers tracking frames to the registry. Producers run on
// their own goroutines and publish into a Latest holder that the tick loop
// reads without blocking.
package provider

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/OCAP2/tiptrails/pkg/core"
)

// Source supplies the most recent frame.
type Source interface {
	CurrentFrame() (core.Frame, bool)
}

// Latest holds the newest published frame.
type Latest struct {
	frame     atomic.Pointer[core.Frame]
	published atomic.Uint64
}

// Publish replaces the current frame.
func (l *Latest) Publish(f core.Frame) {
	l.frame.Store(&f)
	l.published.Add(1)
}

// CurrentFrame implements Source.
func (l *Latest) CurrentFrame() (core.Frame, bool) {
	f := l.frame.Load()
	if f == nil {
		return core.Frame{}, false
	}
	return *f, true
}

// Published is the number of frames published so far.
func (l *Latest) Published() uint64 {
	return l.published.Load()
}

// Reset drops the current frame.
func (l *Latest) Reset() {
	l.frame.Store(nil)
}

var _ Source = (*Latest)(nil)

// Replay publishes recorded frames into dst at their recorded pace scaled by
// speed (1 is real time, 0 or less publishes as fast as possible). Frames
// without timestamps are spaced by fallback. It returns when every frame has
// been published or ctx is done.
func Replay(ctx context.Context, frames []core.Frame, dst *Latest, speed float64, fallback time.Duration) error {
	ordered := make([]core.Frame, len(frames))
	copy(ordered, frames)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	for i, f := range ordered {
		if i > 0 && speed > 0 {
			gap := fallback
			if !f.Timestamp.IsZero() && !ordered[i-1].Timestamp.IsZero() {
				gap = f.Timestamp.Sub(ordered[i-1].Timestamp)
			}
			wait := time.Duration(float64(gap) / speed)
			if wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				case <-timer.C:
				}
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		dst.Publish(f)
	}
	return nil
}
