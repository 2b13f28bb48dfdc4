package cache

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/w3cp/cp-firmware/internal/domain"
	"github.com/w3cp/cp-firmware/internal/model"
)

// Manager keeps the last observed ChargePointStatus and answers the
// question: "has anything significant changed since the last time I asked?".
//
// Behaviour:
//   - First call to Changed() always returns true.
//   - The stored snapshot is replaced on every call, significant or not, so
//     slow drifts are measured tick to tick rather than from the last send.
type Manager struct {
	mu     sync.Mutex
	prev   *model.ChargePointStatus
	logger *logrus.Logger
}

// NewManager returns a ready-to-use cache manager.
func NewManager(logger *logrus.Logger) *Manager {
	return &Manager{logger: logger}
}

// Changed swaps cur in as the last observed snapshot and reports whether it
// differs significantly from the one it replaced.
func (m *Manager) Changed(cur *model.ChargePointStatus) bool {
	m.mu.Lock()
	prev := m.prev
	m.prev = cur
	m.mu.Unlock()

	changed := domain.Changed(prev, cur)
	if changed && m.logger != nil {
		m.logger.Debug("cache: significant status change")
	}
	return changed
}

// Last returns the last observed snapshot, or nil.
func (m *Manager) Last() *model.ChargePointStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prev
}
