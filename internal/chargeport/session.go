package chargeport

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"github.com/sirupsen/logrus"

	"github.com/w3cp/cp-firmware/internal/metrics"
	"github.com/w3cp/cp-firmware/internal/model"
)

// PowerThresholdW is the absolute power above which energy is considered to
// be flowing.
const PowerThresholdW = 50.0

// Session lifecycle events.
const (
	EventEnergyFlow = "energy_flow"
	EventEnergyStop = "energy_stop"
	EventUnplug     = "unplug"
)

// SessionEvent is implemented by VehiclePlugged, VehicleUnplugged and
// PowerSample.
type SessionEvent interface {
	isSessionEvent()
}

type VehiclePlugged struct {
	At time.Time
}

type VehicleUnplugged struct {
	At time.Time
}

// PowerSample is a complete metering reading forwarded by Metering.
type PowerSample struct {
	At        time.Time
	ImportW   float64
	ExportW   float64
	ImportKWh float64
	ExportKWh float64
}

func (VehiclePlugged) isSessionEvent()   {}
func (VehicleUnplugged) isSessionEvent() {}
func (PowerSample) isSessionEvent()      {}

// SessionSink receives session events from the connector and metering
// machines.
type SessionSink interface {
	Apply(ev SessionEvent)
}

// Session tracks the current (or last) plug-to-unplug interval.
type Session struct {
	mu     sync.Mutex
	logger *logrus.Logger

	id    string
	state *fsm.FSM

	createdAt           *time.Time
	energyFlowStartedAt *time.Time
	lastUpdateAt        *time.Time
	endedAt             *time.Time

	importAtStartKWh *float64
	exportAtStartKWh *float64
	importKWh        *float64
	exportKWh        *float64

	endReason model.EndReason
}

// NewSession returns a session machine with no session.
func NewSession(logger *logrus.Logger) *Session {
	return &Session{logger: logger}
}

func newLifecycle() *fsm.FSM {
	pending := string(model.SessionStatePending)
	active := string(model.SessionStateActive)
	paused := string(model.SessionStatePaused)
	completed := string(model.SessionStateCompleted)

	return fsm.NewFSM(pending, fsm.Events{
		{Name: EventEnergyFlow, Src: []string{pending, paused}, Dst: active},
		{Name: EventEnergyStop, Src: []string{active}, Dst: paused},
		{Name: EventUnplug, Src: []string{pending, active, paused}, Dst: completed},
	}, fsm.Callbacks{})
}

// Apply dispatches ev to the matching handler.
func (s *Session) Apply(ev SessionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e := ev.(type) {
	case VehiclePlugged:
		s.onPlugged(e)
	case VehicleUnplugged:
		s.onUnplugged(e)
	case PowerSample:
		s.onPowerSample(e)
	}
}

// Fetch returns a snapshot of the current or last session, or nil if none
// was ever started.
func (s *Session) Fetch(context.Context) (*model.ChargeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.id == "" {
		return nil, nil
	}
	out := &model.ChargeSession{
		SessionID:           s.id,
		CreatedAt:           s.createdAt,
		EnergyFlowStartedAt: s.energyFlowStartedAt,
		LastUpdateAt:        s.lastUpdateAt,
		EndedAt:             s.endedAt,
		SessionState:        model.SessionState(s.state.Current()),
		EndReason:           s.endReason,
	}
	if s.importKWh != nil && s.importAtStartKWh != nil {
		v := *s.importKWh - *s.importAtStartKWh
		out.EnergyToVehicleKWh = &v
	}
	if s.exportKWh != nil && s.exportAtStartKWh != nil {
		v := *s.exportKWh - *s.exportAtStartKWh
		out.EnergyFromVehicleKWh = &v
	}
	return out, nil
}

func (s *Session) active() bool {
	return s.id != "" && s.endedAt == nil
}

func (s *Session) reset() {
	s.id = ""
	s.state = nil
	s.createdAt, s.energyFlowStartedAt, s.lastUpdateAt, s.endedAt = nil, nil, nil, nil
	s.importAtStartKWh, s.exportAtStartKWh, s.importKWh, s.exportKWh = nil, nil, nil, nil
	s.endReason = ""
}

func (s *Session) onPlugged(e VehiclePlugged) {
	if s.active() {
		s.logger.WithField("session_id", s.id).Warn("session: vehicle plugged while session active, resetting previous session")
	}
	s.reset()

	at := e.At
	s.id = uuid.NewString()
	s.state = newLifecycle()
	s.createdAt = &at
	s.lastUpdateAt = &at

	metrics.SessionsStarted.Inc()
	s.logger.WithField("session_id", s.id).Info("session: started")
}

func (s *Session) onUnplugged(e VehicleUnplugged) {
	if !s.active() {
		return
	}
	at := e.At
	s.fire(EventUnplug)
	s.endedAt = &at
	s.endReason = model.EndReasonVehicleUnplugged
	s.lastUpdateAt = &at

	metrics.SessionsCompleted.Inc()
	s.logger.WithField("session_id", s.id).Info("session: ended")
}

func (s *Session) onPowerSample(e PowerSample) {
	if !s.active() {
		return
	}
	imp, exp := e.ImportKWh, e.ExportKWh
	s.importKWh = &imp
	s.exportKWh = &exp

	at := e.At
	if math.Abs(e.ImportW) > PowerThresholdW || math.Abs(e.ExportW) > PowerThresholdW {
		if s.energyFlowStartedAt == nil {
			startImp, startExp := imp, exp
			s.energyFlowStartedAt = &at
			s.importAtStartKWh = &startImp
			s.exportAtStartKWh = &startExp
		}
		if !s.state.Is(string(model.SessionStateActive)) {
			s.fire(EventEnergyFlow)
		}
	} else if s.state.Is(string(model.SessionStateActive)) {
		s.fire(EventEnergyStop)
	}
	s.lastUpdateAt = &at
}

// fire runs a lifecycle event. Callers only fire events valid for the
// current state, so an error here is a programming mistake and is logged.
func (s *Session) fire(event string) {
	if err := s.state.Event(context.Background(), event); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"session_id": s.id,
			"event":      event,
			"state":      s.state.Current(),
		}).Error("session: rejected transition")
	}
}
