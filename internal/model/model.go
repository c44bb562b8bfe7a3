// Package model holds the GORM schema used by the SQL storage backends.
package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DatabaseModels is every table of the schema, in migration order.
var DatabaseModels = []any{
	&Info{},
	&Session{},
	&BundleEvent{},
	&TrailSample{},
	&TrailPath{},
	&RecorderPerformance{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// Info describes the installation that wrote the database.
type Info struct {
	gorm.Model
	Name          string `json:"name" gorm:"size:127"`
	SchemaVersion int    `json:"schemaVersion"`
}

func (*Info) TableName() string {
	return "tiptrails_infos"
}

// RecorderPerformance is a periodic snapshot of recorder health.
type RecorderPerformance struct {
	Time                time.Time    `json:"time" gorm:"type:timestamptz;index:idx_perf_time"`
	SessionID           string       `json:"sessionId" gorm:"size:36;index:idx_perf_session"`
	Endpoints           int          `json:"endpoints"`
	OwnedResources      int          `json:"ownedResources"`
	QueueLengths        QueueLengths `json:"queueLengths" gorm:"embedded;embeddedPrefix:queue_"`
	Dropped             uint64       `json:"dropped"`
	LastWriteDurationMs float32      `json:"lastWriteDurationMs"`
}

func (*RecorderPerformance) TableName() string {
	return "recorder_performances"
}

// QueueLengths are the recorder queue depths.
type QueueLengths struct {
	Bundles int `json:"bundles"`
	Samples int `json:"samples"`
}

////////////////////////
// RECORDING MODELS
////////////////////////

// Session is one activation of the trail behaviour.
type Session struct {
	ID               string         `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt        time.Time      `json:"createdAt"`
	Name             string         `json:"name" gorm:"size:200"`
	Mode             string         `json:"mode" gorm:"size:32"`
	StartTime        time.Time      `json:"startTime" gorm:"type:timestamptz;index:idx_session_start"`
	EndTime          *time.Time     `json:"endTime" gorm:"type:timestamptz"`
	ExtensionVersion string         `json:"extensionVersion" gorm:"size:64"`
	Style            datatypes.JSON `json:"style"`

	BundleEvents []BundleEvent `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	TrailSamples []TrailSample `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	TrailPaths   []TrailPath   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (*Session) TableName() string {
	return "sessions"
}

// Endpoint identifies a tracked endpoint in a row. Label is the
// human-readable key, e.g. "node#12.1" or "tip#31".
type Endpoint struct {
	Kind        uint8  `json:"kind"`
	NodeID      uint32 `json:"nodeId"`
	NodeVersion uint32 `json:"nodeVersion"`
	SyntheticID int    `json:"syntheticId"`
	Label       string `json:"label" gorm:"size:32;index"`
}

// BundleEvent records a bundle being created, removed or detached.
type BundleEvent struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement"`
	SessionID string    `json:"sessionId" gorm:"size:36;index:idx_bundle_session"`
	Time      time.Time `json:"time" gorm:"type:timestamptz"`
	Endpoint  Endpoint  `json:"endpoint" gorm:"embedded;embeddedPrefix:endpoint_"`
	Name      string    `json:"name" gorm:"size:127"`
	Event     string    `json:"event" gorm:"size:16"`
	HasMarker bool      `json:"hasMarker"`
}

func (*BundleEvent) TableName() string {
	return "bundle_events"
}

// TrailSample is one recorded endpoint position.
type TrailSample struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement"`
	SessionID string    `json:"sessionId" gorm:"size:36;index:idx_sample_session"`
	Time      time.Time `json:"time" gorm:"type:timestamptz;index:idx_sample_time"`
	Endpoint  Endpoint  `json:"endpoint" gorm:"embedded;embeddedPrefix:endpoint_"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Z         float64   `json:"z"`
	Speed     float64   `json:"speed"`
	Width     float64   `json:"width"`
	Emitting  bool      `json:"emitting"`
}

func (*TrailSample) TableName() string {
	return "trail_samples"
}

// TrailPath is the full path one endpoint travelled in a session, stored as
// a WKB LineString Z.
type TrailPath struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement"`
	SessionID string    `json:"sessionId" gorm:"size:36;index:idx_path_session"`
	Endpoint  Endpoint  `json:"endpoint" gorm:"embedded;embeddedPrefix:endpoint_"`
	StartTime time.Time `json:"startTime" gorm:"type:timestamptz"`
	EndTime   time.Time `json:"endTime" gorm:"type:timestamptz"`
	Points    int       `json:"points"`
	Length    float64   `json:"length"`
	Path      []byte    `json:"-"`
}

func (*TrailPath) TableName() string {
	return "trail_paths"
}
