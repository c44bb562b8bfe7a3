// pkg/core/session.go
package core

import (
	"errors"
	"time"
)

// Session is one recorded activation of the trail behaviour.
type Session struct {
	ID               string
	Name             string
	Mode             string
	StartTime        time.Time
	EndTime          time.Time
	ExtensionVersion string
	Style            Style
}

// BundleEvent is the kind of lifecycle change recorded for a bundle.
type BundleEvent string

const (
	BundleCreated  BundleEvent = "created"
	BundleRemoved  BundleEvent = "removed"
	BundleDetached BundleEvent = "detached"
)

// BundleRecord is a lifecycle change of one resource bundle.
type BundleRecord struct {
	Key       EndpointKey
	Name      string
	Event     BundleEvent
	Time      time.Time
	HasMarker bool
}

// TrailSample is one recorded endpoint position.
type TrailSample struct {
	Key      EndpointKey
	Time     time.Time
	Position Position3D
	Speed    float64
	Width    float64
	Emitting bool
}

// Recording is everything stored for one session.
type Recording struct {
	Session Session
	Bundles []BundleRecord
	Samples []TrailSample
}

// ErrNoSession is returned by storage when recording without a started session.
var ErrNoSession = errors.New("no session started")
