// Command tiptrails drives fingertip trails and records sessions. Endpoints
// come from a node hierarchy built by a rig file and host commands, or from
// a tracking feed: a recorded frame file or the live tracking service.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/OCAP2/tiptrails/internal/behavior"
	"github.com/OCAP2/tiptrails/internal/config"
	"github.com/OCAP2/tiptrails/internal/dispatcher"
	"github.com/OCAP2/tiptrails/internal/handlers"
	"github.com/OCAP2/tiptrails/internal/logging"
	"github.com/OCAP2/tiptrails/internal/monitor"
	intOtel "github.com/OCAP2/tiptrails/internal/otel"
	"github.com/OCAP2/tiptrails/internal/parser"
	"github.com/OCAP2/tiptrails/internal/provider"
	"github.com/OCAP2/tiptrails/internal/provider/websocket"
	"github.com/OCAP2/tiptrails/internal/registry"
	"github.com/OCAP2/tiptrails/internal/scene/memscene"
	"github.com/OCAP2/tiptrails/internal/session"
	"github.com/OCAP2/tiptrails/pkg/core"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	AppName string = "tiptrails"
)

// host modes
const (
	modeReplay = "replay"
	modeLive   = "live"
)

// global variables
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// ZLogger feeds the zerolog-based components (dispatcher, influx)
	ZLogger zerolog.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	LogFile     *os.File
	LogFilePath string
	gelfWriter  io.WriteCloser

	SessionStartTime time.Time = time.Now()

	// Services
	sessions        = session.NewContext()
	scn             *memscene.Scene
	frames          = &provider.Latest{}
	trails          *behavior.Behavior
	monitorService  *monitor.Service
	eventDispatcher *dispatcher.Dispatcher
	frameParser     *parser.Parser
)

func main() {
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(logging.Options{Level: "info"})
	Logger = SlogManager.Logger()

	configDir := os.Getenv("TIPTRAILS_CONFIG_DIR")
	if configDir == "" {
		configDir = "."
	}
	if err := config.Load(configDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	}

	args := os.Args[1:]
	if len(args) > 0 {
		switch strings.ToLower(args[0]) {
		case "export":
			if err := exportSessions(args[1:]); err != nil {
				Logger.Error("Export failed", "error", err)
				os.Exit(1)
			}
			return
		case "sessions":
			if err := listSessions(); err != nil {
				Logger.Error("Listing sessions failed", "error", err)
				os.Exit(1)
			}
			return
		case "version":
			fmt.Printf("%s %s (%s)\n", AppName, CurrentVersion, BuildDate)
			return
		case "run":
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q, expected run, export, sessions or version\n", args[0])
			os.Exit(2)
		}
	}

	if err := setupLogging(); err != nil {
		Logger.Warn("Logging to stdout only", "error", err)
	}
	defer shutdownLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, stop); err != nil {
		Logger.Error("tiptrails stopped with error", "error", err)
		shutdownLogging()
		os.Exit(1)
	}
}

// setupLogging opens the session log file and rebuilds the logger with the
// file, OTel and Graylog sinks.
func setupLogging() error {
	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs dir: %w", err)
	}

	LogFilePath = logging.LogFilePath(logsDir, AppName, SessionStartTime)
	if _, err := os.Stat(LogFilePath); err == nil {
		_ = os.Rename(LogFilePath, LogFilePath+".old")
	}
	var err error
	LogFile, err = os.OpenFile(LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("failed to create/open log file %s: %w", LogFilePath, err)
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelProvider, err = intOtel.New(context.Background(), intOtel.Config{
			Enabled:        otelCfg.Enabled,
			ServiceName:    otelCfg.ServiceName,
			ServiceVersion: CurrentVersion,
			BatchTimeout:   otelCfg.BatchTimeout,
			LogWriter:      LogFile,
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
			OTelProvider = nil
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}

	if gl := config.GetGraylogConfig(); gl.Enabled {
		gelfWriter, err = logging.NewGELFWriter(gl.Address, AppName)
		if err != nil {
			Logger.Error("Failed to connect to Graylog", "error", err)
			gelfWriter = nil
		}
	}

	opts := logging.Options{
		File:     LogFile,
		Level:    viper.GetString("logLevel"),
		Provider: otelLogProvider,
		Context:  sessions.Attrs,
	}
	if gelfWriter != nil {
		opts.GELF = gelfWriter
	}
	SlogManager.Setup(opts)
	Logger = SlogManager.Logger()
	slog.SetDefault(Logger)

	ZLogger = zerolog.New(LogFile).With().Timestamp().Str("app", AppName).Logger().
		Level(zerologLevel(viper.GetString("logLevel")))

	Logger.Info("Logging to file", "path", LogFilePath, "version", CurrentVersion, "build", BuildDate)
	return nil
}

func zerologLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

func shutdownLogging() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := SlogManager.Flush(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "flushing logs: %v\n", err)
	}
	if OTelProvider != nil {
		_ = OTelProvider.Shutdown(ctx)
		OTelProvider = nil
	}
	if gelfWriter != nil {
		_ = gelfWriter.Close()
		gelfWriter = nil
	}
	if LogFile != nil {
		_ = LogFile.Close()
		LogFile = nil
	}
}

// run wires every service and drives the tick loop until ctx is done or a
// replay has played out.
func run(ctx context.Context, stop context.CancelFunc) error {
	host := config.GetHostConfig()
	frameParser = parser.NewParser(Logger)

	rec, closeStorage, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage()

	scn = memscene.New()
	root := scn.MustAddNode(core.NodeHandle{}, "Scene", core.Position3D{})
	owner := scn.MustAddNode(root, "TipTrails", core.Position3D{})
	if host.RigFile != "" {
		if err := loadRigFile(host.RigFile, root); err != nil {
			return err
		}
	}

	cfg, err := behaviorConfig(host, scn, root, owner)
	if err != nil {
		return err
	}

	deps := behavior.Dependencies{
		Hierarchy: scn,
		Renderer:  scn,
		Source:    frames,
		Sessions:  sessions,
		Logger:    Logger,
	}
	if rec != nil {
		deps.Recorder = rec
	}
	trails, err = behavior.New(cfg, deps)
	if err != nil {
		return fmt.Errorf("failed to create behaviour: %w", err)
	}

	eventDispatcher, err = dispatcher.New(logging.NewCommandLogger(ZLogger))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	defer eventDispatcher.Close()
	handlers.NewService(handlers.Dependencies{
		Behavior: trails,
		Parser:   frameParser,
		Frames:   frames,
		Nodes:    scn,
		Root:     root,
		Influx:   influxManager,
		Logger:   Logger,
	}).RegisterHandlers(eventDispatcher)

	if host.StatusEnabled {
		mdeps := monitor.Dependencies{
			Behavior:   trails,
			Logger:     Logger,
			StatusPath: host.StatusFile,
		}
		if rec != nil {
			mdeps.Recorder = rec
		}
		mdeps.Performance = performanceRecorder
		monitorService = monitor.NewService(mdeps)
		if err := monitorService.Start(); err != nil {
			Logger.Warn("Status monitor not started", "error", err)
		}
		defer monitorService.Stop()
	}

	if err := startSource(ctx, stop, host, cfg.Registry.Mode); err != nil {
		return err
	}

	if _, err := eventDispatcher.Dispatch(dispatcher.Event{Command: handlers.CmdEnable, Timestamp: time.Now()}); err != nil {
		return fmt.Errorf("failed to enable trails: %w", err)
	}
	go readCommands(ctx, os.Stdin)

	tickLoop(ctx, host.TickRate)

	if err := trails.Destroy(time.Now()); err != nil {
		Logger.Error("Failed to close session", "error", err)
	}
	parsed, skipped := frameParser.Stats()
	Logger.Info("tiptrails stopped", "frames", parsed, "skippedFrames", skipped, "sessions", sessions.Count())
	return nil
}

// loadRigFile builds the rig document at path below root.
func loadRigFile(path string, root core.NodeHandle) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to read rig file: %w", err)
	}
	nodes, err := frameParser.ParseRigJSON(data)
	if err != nil {
		return fmt.Errorf("failed to parse rig file %s: %w", path, err)
	}
	added, err := handlers.LoadRig(scn, root, nodes)
	if err != nil {
		return fmt.Errorf("failed to build rig: %w", err)
	}
	Logger.Info("Rig loaded", "file", path, "nodes", added)
	return nil
}

// startSource feeds frames into the latest-frame holder. Only the provider
// mode reads the tracking feed; the other modes follow the node commands.
func startSource(ctx context.Context, stop context.CancelFunc, host config.HostConfig, mode registry.Mode) error {
	if mode != registry.ModeProvider {
		Logger.Info("Tracking feed not used", "mode", string(mode))
		return nil
	}
	switch host.Mode {
	case modeLive:
		pc := config.GetProviderConfig()
		client := websocket.New(websocket.Config{URL: pc.URL, Background: pc.Background}, frames, Logger)
		if err := client.Connect(); err != nil {
			return fmt.Errorf("failed to connect to tracking service: %w", err)
		}
		go func() {
			<-ctx.Done()
			_ = client.Close()
			Logger.Info("Tracking service disconnected", "dropped", client.Dropped())
		}()
		return nil

	case modeReplay:
		if host.ReplayFile == "" {
			Logger.Info("No replay file configured, waiting for :FRAME: commands")
			return nil
		}
		f, err := os.Open(filepath.Clean(host.ReplayFile))
		if err != nil {
			return fmt.Errorf("failed to open replay file: %w", err)
		}
		recorded, err := frameParser.ParseFrames(f)
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("failed to read replay file: %w", err)
		}
		Logger.Info("Replaying frames", "file", host.ReplayFile, "frames", len(recorded), "speed", host.ReplaySpeed)

		fallback := time.Second / time.Duration(max(host.TickRate, 1))
		tail := config.GetStyle().Lifetime + config.GetProviderConfig().Grace
		go func() {
			if err := provider.Replay(ctx, recorded, frames, host.ReplaySpeed, fallback); err != nil {
				return
			}
			Logger.Info("Replay finished")
			// let the last trails fade before stopping
			select {
			case <-ctx.Done():
			case <-time.After(tail):
			}
			stop()
		}()
		return nil

	default:
		return fmt.Errorf("unknown host mode: %s", host.Mode)
	}
}

func tickLoop(ctx context.Context, rate int) {
	if rate <= 0 {
		rate = 60
	}
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := eventDispatcher.Dispatch(dispatcher.Event{Command: handlers.CmdTick, Timestamp: now}); err != nil {
				Logger.Error("Tick failed", "error", err)
			}
		}
	}
}

// readCommands dispatches host command lines, one per line, and prints
// their results.
func readCommands(ctx context.Context, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		result, err := eventDispatcher.DispatchLine(line, time.Now())
		if err != nil {
			fmt.Fprintf(os.Stdout, "error: %v\n", err)
			continue
		}
		if result != nil {
			fmt.Fprintf(os.Stdout, "%v\n", result)
		}
	}
}
