// Package websocket streams tracking frames from the local tracking service
// over its WebSocket JSON protocol.
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/OCAP2/tiptrails/internal/parser"
	"github.com/OCAP2/tiptrails/internal/provider"
	"github.com/OCAP2/tiptrails/pkg/core"
	"github.com/OCAP2/tiptrails/pkg/streaming"
)

// Config holds tracking service connection settings.
type Config struct {
	URL string
	// Background keeps frames flowing while the host is not focused.
	Background bool
}

// Client publishes every frame received into a provider.Latest.
type Client struct {
	cfg    Config
	conn   *connection
	latest *provider.Latest
	parser *parser.Parser
	logger *slog.Logger

	mu             sync.RWMutex
	serviceVersion string

	dropped atomic.Uint64
}

// New creates a client publishing into dst.
func New(cfg Config, dst *provider.Latest, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.URL == "" {
		cfg.URL = streaming.DefaultURL
	}
	c := &Client{
		cfg:    cfg,
		latest: dst,
		parser: parser.NewParser(logger),
		logger: logger,
	}
	c.conn = newConnection(logger, c.handle)
	return c
}

// Connect dials the service and asks it to stream frames.
func (c *Client) Connect() error {
	if err := c.conn.dial(c.cfg.URL); err != nil {
		return err
	}
	if err := c.conn.control(streaming.Focused(true)); err != nil {
		return err
	}
	if c.cfg.Background {
		return c.conn.control(streaming.Background(true))
	}
	return nil
}

// Close disconnects from the service.
func (c *Client) Close() error {
	return c.conn.close()
}

// CurrentFrame implements provider.Source.
func (c *Client) CurrentFrame() (core.Frame, bool) {
	return c.latest.CurrentFrame()
}

// ServiceVersion is the version reported in the service handshake.
func (c *Client) ServiceVersion() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serviceVersion
}

// Dropped is the number of messages that could not be used.
func (c *Client) Dropped() uint64 {
	return c.dropped.Load()
}

func (c *Client) handle(msg []byte) {
	switch streaming.Classify(msg) {
	case streaming.KindFrame:
		f, err := c.parser.ParseFrameJSON(msg)
		if err != nil {
			c.dropped.Add(1)
			c.logger.Debug("Unusable frame", "error", err)
			return
		}
		c.latest.Publish(f)
	case streaming.KindVersion:
		var v streaming.VersionMessage
		if err := json.Unmarshal(msg, &v); err != nil {
			c.dropped.Add(1)
			return
		}
		c.mu.Lock()
		c.serviceVersion = v.ServiceVersion
		c.mu.Unlock()
		if v.Version != 0 && v.Version != streaming.ProtocolVersion {
			c.logger.Warn("Tracking service protocol mismatch", "got", v.Version, "want", streaming.ProtocolVersion)
		}
		c.logger.Info("Connected to tracking service", "serviceVersion", v.ServiceVersion, "protocol", v.Version)
	case streaming.KindEvent:
		var ev streaming.EventMessage
		if err := json.Unmarshal(msg, &ev); err == nil {
			c.logger.Debug("Tracking service event", "type", ev.Event.Type)
		}
	default:
		c.dropped.Add(1)
		c.logger.Debug("Unknown message received", "raw", string(msg))
	}
}
