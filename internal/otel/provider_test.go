package otel

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

func TestNew_Disabled(t *testing.T) {
	p, err := New(context.Background(), Config{Enabled: false})
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.Nil(t, p.LoggerProvider())
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
	assert.NotNil(t, p.Meter("test"))
}

func TestNew_EnabledWithoutExporter(t *testing.T) {
	_, err := New(context.Background(), Config{Enabled: true, ServiceName: "tiptrails"})
	assert.ErrorIs(t, err, ErrNoExporter)
}

func TestNew_WriterExportsBridgedLogs(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(context.Background(), Config{
		Enabled:      true,
		ServiceName:  "tiptrails",
		BatchTimeout: time.Second,
		LogWriter:    &buf,
	})
	require.NoError(t, err)
	require.NotNil(t, p.LoggerProvider())

	logger := slog.New(otelslog.NewHandler("test", otelslog.WithLoggerProvider(p.LoggerProvider())))
	logger.Info("bundle created", "key", "tip#31")

	require.NoError(t, p.Flush(context.Background()))
	require.NoError(t, p.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), "bundle created")
	assert.Contains(t, buf.String(), "tiptrails")
}
