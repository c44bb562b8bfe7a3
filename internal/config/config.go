package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/OCAP2/tiptrails/pkg/core"
)

// FileName is the config file looked up in the config directory.
const FileName = "tiptrails.cfg.json"

// EnvPrefix prefixes environment overrides, e.g. TIPTRAILS_TRAIL_LIFETIME.
const EnvPrefix = "TIPTRAILS"

// TrailConfig holds trail appearance settings
type TrailConfig struct {
	Lifetime              time.Duration
	StartWidth            float64
	EndWidth              float64
	MinVertexDistance     float64
	GlobalWidthScale      float64
	WidthInPixels         bool
	PixelWidth            float64
	CompensateParentScale bool
	SortingOrder          int
	Material              string
}

// MarkerConfig holds tip marker settings
type MarkerConfig struct {
	Enabled  bool
	Size     float64
	Material string
}

// ScanConfig holds endpoint discovery settings
type ScanConfig struct {
	// Mode is hierarchy, manual or provider; empty picks provider when the
	// provider is enabled and hierarchy otherwise.
	Mode string
	// ManualNodes are node paths below the scene root used in manual mode.
	ManualNodes      []string
	AutoScan         bool
	RescanInterval   time.Duration
	MinEndpoints     int
	MatchMode        string
	TipWords         []string
	LimbWords        []string
	ContainerWords   []string
	Pattern          string
	MaxAncestorHops  int
	RequireContainer bool
	LogFound         bool
}

// LifecycleConfig holds resource ownership settings
type LifecycleConfig struct {
	Persist         bool
	SpawnInEditMode bool
}

// ProviderConfig holds tracking service settings
type ProviderConfig struct {
	Enabled      bool
	URL          string
	Background   bool
	UnitScale    float64
	LeftHand     bool
	RightHand    bool
	Grace        time.Duration
	WidthBySpeed bool
	SpeedMin     float64
	SpeedMax     float64
	WidthScale   float64
	StartWidth   float64
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite storage backend settings
type SQLiteConfig struct {
	Path         string
	DumpInterval time.Duration
}

// PostgresConfig holds PostgreSQL storage backend settings
type PostgresConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	SSLMode  string
}

// StorageConfig holds storage backend settings
type StorageConfig struct {
	Type     string
	Memory   MemoryConfig
	SQLite   SQLiteConfig
	Postgres PostgresConfig
}

// RecorderConfig holds session recording settings
type RecorderConfig struct {
	Enabled       bool
	QueueSize     int
	FlushInterval time.Duration
	// SampleEvery records one sample out of every n ticks per endpoint.
	SampleEvery int
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// InfluxConfig holds InfluxDB telemetry settings
type InfluxConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Protocol string
	Token    string
	Org      string
	Bucket   string
}

// GraylogConfig holds GELF log shipping settings
type GraylogConfig struct {
	Enabled bool
	Address string
}

// CameraConfig holds the viewpoint used for pixel-constant widths
type CameraConfig struct {
	Position    core.Position3D
	FieldOfView float64
	PixelHeight int
}

// HostConfig holds settings of the tiptrails binary
type HostConfig struct {
	Mode          string
	ReplayFile    string
	RigFile       string
	ReplaySpeed   float64
	TickRate      int
	SessionName   string
	StatusFile    string
	StatusEnabled bool
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./tiptrails-logs")

	viper.SetDefault("trail.lifetime", 0.45)
	viper.SetDefault("trail.startWidth", 0.006)
	viper.SetDefault("trail.endWidth", 0.0)
	viper.SetDefault("trail.minVertexDistance", 0.0025)
	viper.SetDefault("trail.globalWidthScale", 1.0)
	viper.SetDefault("trail.widthInPixels", false)
	viper.SetDefault("trail.pixelWidth", 3.0)
	viper.SetDefault("trail.compensateParentScale", true)
	viper.SetDefault("trail.sortingOrder", 10)
	viper.SetDefault("trail.material", "")

	viper.SetDefault("marker.enabled", true)
	viper.SetDefault("marker.size", 0.010)
	viper.SetDefault("marker.material", "")

	viper.SetDefault("scan.mode", "")
	viper.SetDefault("scan.manualNodes", []string{})
	viper.SetDefault("scan.autoScan", true)
	viper.SetDefault("scan.rescanInterval", "500ms")
	viper.SetDefault("scan.minEndpoints", 8)
	viper.SetDefault("scan.matchMode", "words")
	viper.SetDefault("scan.tipWords", []string{"tip", "_end", " end", "distal", "finger_tip", "fingertip"})
	viper.SetDefault("scan.limbWords", []string{"thumb", "index", "middle", "ring", "pinky", "finger"})
	viper.SetDefault("scan.containerWords", []string{"hand"})
	viper.SetDefault("scan.pattern", `(thumb|index|middle|ring|pinky).*(tip|_end|(^|[^a-z])end([^a-z]|$)|distal)`)
	viper.SetDefault("scan.maxAncestorHops", 5)
	viper.SetDefault("scan.requireContainer", true)
	viper.SetDefault("scan.logFound", false)

	viper.SetDefault("camera.position", []float64{0, 1.6, -0.5})
	viper.SetDefault("camera.fieldOfView", 60.0)
	viper.SetDefault("camera.pixelHeight", 1080)

	viper.SetDefault("lifecycle.persist", false)
	viper.SetDefault("lifecycle.spawnInEditMode", false)

	viper.SetDefault("provider.enabled", false)
	viper.SetDefault("provider.url", "ws://127.0.0.1:6437/v7.json")
	viper.SetDefault("provider.background", true)
	viper.SetDefault("provider.unitScale", 0.001)
	viper.SetDefault("provider.leftHand", true)
	viper.SetDefault("provider.rightHand", true)
	viper.SetDefault("provider.grace", "50ms")
	viper.SetDefault("provider.widthBySpeed", true)
	viper.SetDefault("provider.speedMin", 0.0)
	viper.SetDefault("provider.speedMax", 2.0)
	viper.SetDefault("provider.widthScale", 1.4)
	viper.SetDefault("provider.startWidth", 0.02)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "./recordings/tiptrails.db")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.postgres.host", "localhost")
	viper.SetDefault("storage.postgres.port", "5432")
	viper.SetDefault("storage.postgres.username", "postgres")
	viper.SetDefault("storage.postgres.password", "postgres")
	viper.SetDefault("storage.postgres.database", "tiptrails")
	viper.SetDefault("storage.postgres.sslMode", "disable")

	viper.SetDefault("recorder.enabled", true)
	viper.SetDefault("recorder.queueSize", 10000)
	viper.SetDefault("recorder.flushInterval", "1s")
	viper.SetDefault("recorder.sampleEvery", 1)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "tiptrails")
	viper.SetDefault("influx.bucket", "motion")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "tiptrails")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("host.mode", "replay")
	viper.SetDefault("host.replayFile", "")
	viper.SetDefault("host.replaySpeed", 1.0)
	viper.SetDefault("host.rigFile", "")
	viper.SetDefault("host.tickRate", 60)
	viper.SetDefault("host.sessionName", "session")
	viper.SetDefault("host.statusEnabled", true)
	viper.SetDefault("host.statusFile", "./tiptrails-logs/status.json")
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetTrailConfig returns the trail settings.
func GetTrailConfig() TrailConfig {
	return TrailConfig{
		Lifetime:              seconds(viper.GetFloat64("trail.lifetime")),
		StartWidth:            viper.GetFloat64("trail.startWidth"),
		EndWidth:              viper.GetFloat64("trail.endWidth"),
		MinVertexDistance:     viper.GetFloat64("trail.minVertexDistance"),
		GlobalWidthScale:      viper.GetFloat64("trail.globalWidthScale"),
		WidthInPixels:         viper.GetBool("trail.widthInPixels"),
		PixelWidth:            viper.GetFloat64("trail.pixelWidth"),
		CompensateParentScale: viper.GetBool("trail.compensateParentScale"),
		SortingOrder:          viper.GetInt("trail.sortingOrder"),
		Material:              viper.GetString("trail.material"),
	}
}

// GetMarkerConfig returns the marker settings.
func GetMarkerConfig() MarkerConfig {
	return MarkerConfig{
		Enabled:  viper.GetBool("marker.enabled"),
		Size:     viper.GetFloat64("marker.size"),
		Material: viper.GetString("marker.material"),
	}
}

// GetScanConfig returns the discovery settings.
func GetScanConfig() ScanConfig {
	return ScanConfig{
		Mode:             strings.ToLower(strings.TrimSpace(viper.GetString("scan.mode"))),
		ManualNodes:      viper.GetStringSlice("scan.manualNodes"),
		AutoScan:         viper.GetBool("scan.autoScan"),
		RescanInterval:   viper.GetDuration("scan.rescanInterval"),
		MinEndpoints:     viper.GetInt("scan.minEndpoints"),
		MatchMode:        viper.GetString("scan.matchMode"),
		TipWords:         viper.GetStringSlice("scan.tipWords"),
		LimbWords:        viper.GetStringSlice("scan.limbWords"),
		ContainerWords:   viper.GetStringSlice("scan.containerWords"),
		Pattern:          viper.GetString("scan.pattern"),
		MaxAncestorHops:  viper.GetInt("scan.maxAncestorHops"),
		RequireContainer: viper.GetBool("scan.requireContainer"),
		LogFound:         viper.GetBool("scan.logFound"),
	}
}

// GetCameraConfig returns the viewpoint settings. A position that is not
// three numbers falls back to the origin.
func GetCameraConfig() CameraConfig {
	c := CameraConfig{
		FieldOfView: viper.GetFloat64("camera.fieldOfView"),
		PixelHeight: viper.GetInt("camera.pixelHeight"),
	}
	if xyz, err := cast.ToFloat64SliceE(viper.Get("camera.position")); err == nil && len(xyz) == 3 {
		c.Position = core.Position3D{X: xyz[0], Y: xyz[1], Z: xyz[2]}
	}
	return c
}

// GetLifecycleConfig returns the resource ownership settings.
func GetLifecycleConfig() LifecycleConfig {
	return LifecycleConfig{
		Persist:         viper.GetBool("lifecycle.persist"),
		SpawnInEditMode: viper.GetBool("lifecycle.spawnInEditMode"),
	}
}

// GetProviderConfig returns the tracking service settings.
func GetProviderConfig() ProviderConfig {
	return ProviderConfig{
		Enabled:      viper.GetBool("provider.enabled"),
		URL:          viper.GetString("provider.url"),
		Background:   viper.GetBool("provider.background"),
		UnitScale:    viper.GetFloat64("provider.unitScale"),
		LeftHand:     viper.GetBool("provider.leftHand"),
		RightHand:    viper.GetBool("provider.rightHand"),
		Grace:        viper.GetDuration("provider.grace"),
		WidthBySpeed: viper.GetBool("provider.widthBySpeed"),
		SpeedMin:     viper.GetFloat64("provider.speedMin"),
		SpeedMax:     viper.GetFloat64("provider.speedMax"),
		WidthScale:   viper.GetFloat64("provider.widthScale"),
		StartWidth:   viper.GetFloat64("provider.startWidth"),
	}
}

// GetStorageConfig returns the storage backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("storage.postgres.host"),
			Port:     viper.GetString("storage.postgres.port"),
			Username: viper.GetString("storage.postgres.username"),
			Password: viper.GetString("storage.postgres.password"),
			Database: viper.GetString("storage.postgres.database"),
			SSLMode:  viper.GetString("storage.postgres.sslMode"),
		},
	}
}

// GetRecorderConfig returns the session recording settings.
func GetRecorderConfig() RecorderConfig {
	return RecorderConfig{
		Enabled:       viper.GetBool("recorder.enabled"),
		QueueSize:     viper.GetInt("recorder.queueSize"),
		FlushInterval: viper.GetDuration("recorder.flushInterval"),
		SampleEvery:   viper.GetInt("recorder.sampleEvery"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetInfluxConfig returns the InfluxDB settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetGraylogConfig returns the GELF settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetHostConfig returns the binary settings.
func GetHostConfig() HostConfig {
	return HostConfig{
		Mode:          viper.GetString("host.mode"),
		ReplayFile:    viper.GetString("host.replayFile"),
		RigFile:       viper.GetString("host.rigFile"),
		ReplaySpeed:   viper.GetFloat64("host.replaySpeed"),
		TickRate:      viper.GetInt("host.tickRate"),
		SessionName:   viper.GetString("host.sessionName"),
		StatusFile:    viper.GetString("host.statusFile"),
		StatusEnabled: viper.GetBool("host.statusEnabled"),
	}
}

// GetStyle builds the trail style from the trail and marker settings.
func GetStyle() core.Style {
	t := GetTrailConfig()
	m := GetMarkerConfig()

	s := core.DefaultStyle()
	s.Lifetime = t.Lifetime
	s.StartWidth = t.StartWidth
	s.EndWidth = t.EndWidth
	s.MinVertexDistance = t.MinVertexDistance
	s.WidthScale = t.GlobalWidthScale
	s.SortingOrder = t.SortingOrder
	s.Material = t.Material
	s.MarkerEnabled = m.Enabled
	s.MarkerSize = m.Size
	s.MarkerMaterial = m.Material
	return s
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
