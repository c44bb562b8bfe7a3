// Package session tracks the recording session the behaviour is currently
// running under.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/OCAP2/tiptrails/pkg/core"
)

// Context holds the current session. Its zero value is ready to use.
type Context struct {
	mu      sync.RWMutex
	current *core.Session
	count   int
}

// NewContext creates an empty Context.
func NewContext() *Context {
	return &Context{}
}

// Begin starts a new session and makes it current.
func (c *Context) Begin(name, mode, version string, style core.Style, now time.Time) *core.Session {
	s := &core.Session{
		ID:               uuid.NewString(),
		Name:             name,
		Mode:             mode,
		StartTime:        now,
		ExtensionVersion: version,
		Style:            style,
	}
	c.mu.Lock()
	c.current = s
	c.count++
	c.mu.Unlock()
	return s
}

// End stamps the end time on the current session and clears it.
// It returns the ended session, or nil when none was running.
func (c *Context) End(now time.Time) *core.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.current
	if s == nil {
		return nil
	}
	s.EndTime = now
	c.current = nil
	return s
}

// Current returns a copy of the running session.
func (c *Context) Current() (core.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return core.Session{}, false
	}
	return *c.current, true
}

// Count is the number of sessions begun.
func (c *Context) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.count
}

// Attrs are the log attributes identifying the running session.
func (c *Context) Attrs() []slog.Attr {
	s, ok := c.Current()
	if !ok {
		return nil
	}
	return []slog.Attr{slog.String("session", s.ID)}
}
