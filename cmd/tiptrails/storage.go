package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/OCAP2/tiptrails/internal/config"
	"github.com/OCAP2/tiptrails/internal/influx"
	"github.com/OCAP2/tiptrails/internal/recorder"
	"github.com/OCAP2/tiptrails/internal/storage"
)

var (
	// storageBackend receives recorded sessions
	storageBackend storage.Backend

	// performanceRecorder is set when the backend keeps health rows
	performanceRecorder storage.PerformanceRecorder

	// influxManager mirrors samples and takes :METRIC: points (optional)
	influxManager *influx.Manager
)

// initStorage builds the backend, the optional InfluxDB mirror and the
// recorder. The returned func closes everything in reverse order.
func initStorage(ctx context.Context) (*recorder.Recorder, func(), error) {
	recCfg := config.GetRecorderConfig()
	if !recCfg.Enabled {
		Logger.Info("Session recording disabled")
		return nil, func() {}, nil
	}

	storageCfg := config.GetStorageConfig()
	backend, err := storage.NewBackend(storageCfg, Logger)
	if err != nil {
		Logger.Error("Failed to create storage backend", "error", err)
		return nil, nil, err
	}
	if err := backend.Init(); err != nil {
		Logger.Error("Failed to initialize storage backend", "error", err)
		return nil, nil, fmt.Errorf("failed to initialize %s storage: %w", storageCfg.Type, err)
	}
	storageBackend = backend
	if pr, ok := backend.(storage.PerformanceRecorder); ok {
		performanceRecorder = pr
	}
	Logger.Info("Storage backend initialized", "type", storageCfg.Type)

	influxCfg := config.GetInfluxConfig()
	if influxCfg.Enabled {
		backupPath := filepath.Join(viper.GetString("logsDir"),
			fmt.Sprintf("influx_backup_%s.log.gz", SessionStartTime.Format("20060102_150405")))
		m := influx.NewManager(influxCfg, ZLogger.With().Str("component", "influx").Logger(), backupPath)
		if err := m.Connect(ctx); err != nil && !errors.Is(err, influx.ErrDisabled) {
			Logger.Warn("InfluxDB unavailable, samples are not mirrored", "error", err)
		} else {
			influxManager = m
		}
	}

	rec := recorder.New(recCfg, recorder.Dependencies{
		Backend: backend,
		Influx:  influxManager,
		Logger:  Logger,
	})

	closeAll := func() {
		if influxManager != nil {
			if err := influxManager.Close(); err != nil {
				Logger.Warn("Failed to close InfluxDB", "error", err)
			}
		}
		if exp, ok := storageBackend.(storage.Exporter); ok && exp.ExportedFilePath() != "" {
			Logger.Info("Recording written", "path", exp.ExportedFilePath())
		}
		if err := storageBackend.Close(); err != nil {
			Logger.Error("Failed to close storage backend", "error", err)
		}
	}
	return rec, closeAll, nil
}
