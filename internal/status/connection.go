package status

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/w3cp/cp-firmware/internal/model"
)

// ConnectionTypeFeeder caches the detected uplink type. Detection runs at
// construction and on every Refresh; a failed detection keeps the previous
// value.
type ConnectionTypeFeeder struct {
	mu      sync.RWMutex
	current model.ConnectionType
	detect  func() (model.ConnectionType, error)
	logger  *logrus.Logger
}

func NewConnectionTypeFeeder(detect func() (model.ConnectionType, error), logger *logrus.Logger) *ConnectionTypeFeeder {
	f := &ConnectionTypeFeeder{detect: detect, logger: logger}
	f.Refresh("initialization")
	return f
}

// Refresh re-runs detection. reason is only used for logging.
func (f *ConnectionTypeFeeder) Refresh(reason string) {
	detected, err := f.detect()

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.logger.WithError(err).WithField("reason", reason).Warn("connection type: detection failed")
		if f.current == "" {
			f.current = model.ConnectionTypeUnknown
		}
		return
	}
	if detected == "" {
		detected = model.ConnectionTypeUnknown
	}
	f.current = detected
	f.logger.WithFields(logrus.Fields{"reason": reason, "type": detected}).Info("connection type: detected")
}

func (f *ConnectionTypeFeeder) Fetch(context.Context) (model.ConnectionType, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current, nil
}

// OnlineSinceFeeder tracks when the current backend connection was opened.
// It starts at construction time.
type OnlineSinceFeeder struct {
	mu    sync.RWMutex
	since time.Time
	now   func() time.Time
}

func NewOnlineSinceFeeder() *OnlineSinceFeeder {
	return &OnlineSinceFeeder{since: time.Now(), now: time.Now}
}

// Reset moves online-since to now.
func (f *OnlineSinceFeeder) Reset() {
	f.mu.Lock()
	f.since = f.now()
	f.mu.Unlock()
}

func (f *OnlineSinceFeeder) Fetch(context.Context) (*time.Time, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	since := f.since
	return &since, nil
}
