// Package influx mirrors trail samples and recorder performance to InfluxDB,
// falling back to a gzipped line-protocol file when the server is unreachable.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"

	"github.com/OCAP2/tiptrails/internal/config"
	"github.com/OCAP2/tiptrails/internal/util"
	"github.com/OCAP2/tiptrails/pkg/core"
)

// PerformanceBucket receives recorder and registry health points.
const PerformanceBucket = "tiptrails_performance"

// Measurement names.
const (
	MeasurementSample = "trail_sample"
	MeasurementBundle = "trail_bundle"
)

// ErrDisabled is returned by Connect when influx is switched off.
var ErrDisabled = errors.New("influx is disabled")

// Manager handles InfluxDB connections and writes.
type Manager struct {
	cfg config.InfluxConfig

	Client       influxdb2.Client
	Writers      map[string]influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	BucketNames  []string
	Logger       zerolog.Logger
	BackupPath   string

	mu         sync.Mutex
	backupFile *os.File
}

// NewManager creates a new InfluxDB manager.
func NewManager(cfg config.InfluxConfig, log zerolog.Logger, backupPath string) *Manager {
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "motion"
	}
	return &Manager{
		cfg:         cfg,
		Writers:     make(map[string]influxdb2_api.WriteAPI),
		BucketNames: []string{bucket, PerformanceBucket},
		Logger:      log,
		BackupPath:  backupPath,
	}
}

// SampleBucket is the bucket trail samples go to.
func (m *Manager) SampleBucket() string {
	return m.BucketNames[0]
}

// Connect establishes a connection to InfluxDB, or opens the backup file
// when the server does not answer.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf("%s://%s:%s", m.cfg.Protocol, m.cfg.Host, m.cfg.Port),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	running, err := m.Client.Ping(ctx)
	if err != nil || !running {
		m.IsValid = false
		m.Logger.Info().Str("backupPath", m.BackupPath).
			Msg("Failed to initialize InfluxDB client, writing to backup file")
		return m.openBackup()
	}

	m.IsValid = true
	if err := m.setupOrganizationAndBuckets(ctx); err != nil {
		return err
	}
	m.CreateWriters()
	m.Logger.Info().Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BackupWriter != nil {
		return nil
	}
	if m.BackupPath == "" {
		return fmt.Errorf("influxDB unreachable and no backup path configured")
	}
	file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.BackupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBuckets(ctx context.Context) error {
	orgName := m.cfg.Org

	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		influxOrg, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	// samples are short lived; keep them for a week
	for _, bucket := range m.BucketNames {
		if _, err := m.Client.BucketsAPI().FindBucketByName(ctx, bucket); err == nil {
			continue
		}
		m.Logger.Info().Str("bucket", bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 7,
		})
		if err != nil {
			m.Logger.Error().Err(err).Str("bucket", bucket).Msg("Error creating bucket")
			return err
		}
	}
	return nil
}

// CreateWriters creates write APIs for all configured buckets.
func (m *Manager) CreateWriters() {
	for _, bucket := range m.BucketNames {
		m.Writers[bucket] = m.Client.WriteAPI(m.cfg.Org, bucket)

		go func(bucketName string, errorsCh <-chan error) {
			for writeErr := range errorsCh {
				m.Logger.Error().Err(writeErr).Str("bucket", bucketName).
					Msg("Error sending data to InfluxDB")
			}
		}(bucket, m.Writers[bucket].Errors())
	}
	m.Logger.Debug().Strs("buckets", m.BucketNames).Msg("InfluxDB writers initialized")
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(ctx context.Context, bucket string, point *influxdb2_write.Point) error {
	if m.IsValid {
		w, ok := m.Writers[bucket]
		if !ok {
			return fmt.Errorf("influxDB bucket '%s' not registered", bucket)
		}
		w.WritePoint(point)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}
	lineProtocol := strings.TrimSuffix(influxdb2_write.PointToLineProtocol(point, time.Nanosecond), "\n")
	if _, err := m.BackupWriter.Write([]byte(lineProtocol + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// WriteSamples writes one point per sample into the sample bucket.
func (m *Manager) WriteSamples(ctx context.Context, sessionID string, samples []core.TrailSample) error {
	var errs []error
	for _, s := range samples {
		if err := m.WritePoint(ctx, m.SampleBucket(), SamplePoint(sessionID, s)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close flushes pending writes and closes the client and backup file.
func (m *Manager) Close() error {
	for _, w := range m.Writers {
		w.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	if m.BackupWriter != nil {
		errs = append(errs, m.BackupWriter.Close())
		m.BackupWriter = nil
	}
	if m.backupFile != nil {
		errs = append(errs, m.backupFile.Close())
		m.backupFile = nil
	}
	return errors.Join(errs...)
}

// SamplePoint converts a trail sample into a point.
func SamplePoint(sessionID string, s core.TrailSample) *influxdb2_write.Point {
	return influxdb2.NewPoint(
		MeasurementSample,
		map[string]string{
			"session":  sessionID,
			"endpoint": s.Key.String(),
			"kind":     s.Key.Kind.String(),
		},
		map[string]any{
			"x":        s.Position.X,
			"y":        s.Position.Y,
			"z":        s.Position.Z,
			"speed":    s.Speed,
			"width":    s.Width,
			"emitting": s.Emitting,
		},
		s.Time,
	)
}

// BundlePoint converts a lifecycle change into a point.
func BundlePoint(sessionID string, r core.BundleRecord) *influxdb2_write.Point {
	return influxdb2.NewPoint(
		MeasurementBundle,
		map[string]string{
			"session":  sessionID,
			"endpoint": r.Key.String(),
			"event":    string(r.Event),
		},
		map[string]any{"name": r.Name, "marker": r.HasMarker},
		r.Time,
	)
}

// ProcessMetricData parses a host metric command and returns a bucket name
// and point.
//
//	0 = bucket name
//	1 = measurement name
//	"tag::name::value" adds a tag
//	"field::type::name::value" adds a string, int or float field
func ProcessMetricData(data []string) (bucket string, point *influxdb2_write.Point, err error) {
	if len(data) < 2 {
		return "", nil, fmt.Errorf("metric needs a bucket and a measurement, got %d args", len(data))
	}
	args := make([]string, len(data))
	for i, v := range data {
		args[i] = util.CleanArg(v)
	}

	bucket = args[0]
	point = influxdb2_write.NewPointWithMeasurement(args[1])

	for _, tag := range args[2:] {
		if !strings.HasPrefix(tag, "tag::") {
			continue
		}
		parts := strings.Split(tag, "::")
		if len(parts) >= 3 {
			point.AddTag(parts[1], parts[2])
		}
	}

	for _, field := range args[2:] {
		if !strings.HasPrefix(field, "field::") {
			continue
		}
		parts := strings.Split(field, "::")
		if len(parts) < 4 {
			continue
		}
		fieldType, fieldName, fieldValue := parts[1], parts[2], parts[3]

		switch fieldType {
		case "string":
			point.AddField(fieldName, fieldValue)
		case "int":
			intVal, err := strconv.Atoi(fieldValue)
			if err != nil {
				return "", nil, fmt.Errorf("error converting field value '%s' to int: %w", fieldValue, err)
			}
			point.AddField(fieldName, intVal)
		case "float":
			floatVal, err := strconv.ParseFloat(fieldValue, 64)
			if err != nil {
				return "", nil, fmt.Errorf("error converting field value '%s' to float: %w", fieldValue, err)
			}
			point.AddField(fieldName, floatVal)
		}
	}
	point.SetTime(time.Now())

	return bucket, point, nil
}
