package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/tiptrails/pkg/core"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"trail": { "lifetime": 0.6, "material": "Custom/Glow" },
		"scan": { "matchMode": "regex", "minEndpoints": 4 }
	}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, 600*time.Millisecond, GetTrailConfig().Lifetime)
	assert.Equal(t, "Custom/Glow", GetTrailConfig().Material)
	assert.Equal(t, "regex", GetScanConfig().MatchMode)
	assert.Equal(t, 4, GetScanConfig().MinEndpoints)
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./tiptrails-logs", viper.GetString("logsDir"))

	tc := GetTrailConfig()
	assert.Equal(t, 450*time.Millisecond, tc.Lifetime)
	assert.Equal(t, 0.006, tc.StartWidth)
	assert.Equal(t, 0.0, tc.EndWidth)
	assert.Equal(t, 0.0025, tc.MinVertexDistance)
	assert.Equal(t, 1.0, tc.GlobalWidthScale)
	assert.False(t, tc.WidthInPixels)
	assert.Equal(t, 3.0, tc.PixelWidth)
	assert.True(t, tc.CompensateParentScale)
	assert.Equal(t, 10, tc.SortingOrder)
	assert.Empty(t, tc.Material)

	mc := GetMarkerConfig()
	assert.True(t, mc.Enabled)
	assert.Equal(t, 0.010, mc.Size)

	sc := GetScanConfig()
	assert.Empty(t, sc.Mode)
	assert.Empty(t, sc.ManualNodes)
	assert.True(t, sc.AutoScan)
	assert.Equal(t, 500*time.Millisecond, sc.RescanInterval)
	assert.Equal(t, 8, sc.MinEndpoints)
	assert.Equal(t, "words", sc.MatchMode)
	assert.Contains(t, sc.TipWords, "distal")
	assert.Contains(t, sc.LimbWords, "pinky")
	assert.Equal(t, []string{"hand"}, sc.ContainerWords)
	assert.Equal(t, 5, sc.MaxAncestorHops)
	assert.True(t, sc.RequireContainer)
	assert.False(t, sc.LogFound)

	lc := GetLifecycleConfig()
	assert.False(t, lc.Persist)
	assert.False(t, lc.SpawnInEditMode)

	pc := GetProviderConfig()
	assert.False(t, pc.Enabled)
	assert.Equal(t, "ws://127.0.0.1:6437/v7.json", pc.URL)
	assert.Equal(t, 0.001, pc.UnitScale)
	assert.True(t, pc.LeftHand)
	assert.True(t, pc.RightHand)
	assert.Equal(t, 50*time.Millisecond, pc.Grace)
	assert.True(t, pc.WidthBySpeed)
	assert.Equal(t, 2.0, pc.SpeedMax)
	assert.Equal(t, 1.4, pc.WidthScale)
	assert.Equal(t, 0.02, pc.StartWidth)

	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
	assert.Equal(t, 60, GetHostConfig().TickRate)
	assert.Empty(t, GetHostConfig().RigFile)

	cc := GetCameraConfig()
	assert.Equal(t, core.Position3D{Y: 1.6, Z: -0.5}, cc.Position)
	assert.Equal(t, 60.0, cc.FieldOfView)
	assert.Equal(t, 1080, cc.PixelHeight)
}

func TestGetCameraConfig_BadPosition(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"camera": {"position": [1, 2]}}`)))

	assert.Equal(t, core.Position3D{}, GetCameraConfig().Position)
}

func TestGetScanConfig_Mode(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"scan": {"mode": " Provider ", "manualNodes": ["LeftHand/index_end"]}}`)))

	sc := GetScanConfig()
	assert.Equal(t, "provider", sc.Mode)
	assert.Equal(t, []string{"LeftHand/index_end"}, sc.ManualNodes)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("TIPTRAILS_TRAIL_STARTWIDTH", "0.05")
	t.Setenv("TIPTRAILS_PROVIDER_ENABLED", "true")

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, 0.05, GetTrailConfig().StartWidth)
	assert.True(t, GetProviderConfig().Enabled)
}

func TestGetString(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	assert.Equal(t, "testValue", GetString("testKey"))
}

func TestGetInt(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testInt", 42)
	assert.Equal(t, 42, GetInt("testInt"))
}

func TestGetBool(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testBool", true)
	assert.Equal(t, true, GetBool("testBool"))
}

func TestGetStorageConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetStorageConfig()
	assert.Equal(t, "memory", cfg.Type)
	assert.Equal(t, "./recordings", cfg.Memory.OutputDir)
	assert.Equal(t, true, cfg.Memory.CompressOutput)
	assert.Equal(t, 3*time.Minute, cfg.SQLite.DumpInterval)
	assert.Equal(t, "tiptrails", cfg.Postgres.Database)
}

func TestGetStorageConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"storage": {
			"type": "sqlite",
			"memory": { "outputDir": "/tmp/out", "compressOutput": false },
			"sqlite": { "dumpInterval": "10m", "path": "/tmp/t.db" }
		}
	}`)
	require.NoError(t, Load(dir))

	sc := GetStorageConfig()
	assert.Equal(t, "sqlite", sc.Type)
	assert.Equal(t, "/tmp/out", sc.Memory.OutputDir)
	assert.Equal(t, false, sc.Memory.CompressOutput)
	assert.Equal(t, 10*time.Minute, sc.SQLite.DumpInterval)
	assert.Equal(t, "/tmp/t.db", sc.SQLite.Path)
}

func TestGetOTelConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetOTelConfig()
	assert.Equal(t, false, cfg.Enabled)
	assert.Equal(t, "tiptrails", cfg.ServiceName)
	assert.Equal(t, 5*time.Second, cfg.BatchTimeout)
	assert.Equal(t, "", cfg.Endpoint)
	assert.Equal(t, true, cfg.Insecure)
}

func TestGetRecorderConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"recorder":{"sampleEvery":3}}`)))

	rc := GetRecorderConfig()
	assert.True(t, rc.Enabled)
	assert.Equal(t, 10000, rc.QueueSize)
	assert.Equal(t, time.Second, rc.FlushInterval)
	assert.Equal(t, 3, rc.SampleEvery)
}

func TestGetStyle(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"trail": { "startWidth": 0.01, "globalWidthScale": 2 },
		"marker": { "enabled": false }
	}`)))

	s := GetStyle()
	assert.Equal(t, 0.01, s.StartWidth)
	assert.Equal(t, 2.0, s.WidthScale)
	assert.InDelta(t, 0.02, s.ScaledStartWidth(), 1e-12)
	assert.False(t, s.MarkerEnabled)
	assert.Equal(t, 3050, s.RenderQueue)
}
