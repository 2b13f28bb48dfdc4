package chargeport

import (
	"context"
	"sync"
	"time"

	"github.com/w3cp/cp-firmware/internal/model"
)

// MeteringEvent is implemented by InstantaneousPower and EnergyMeterUpdate.
type MeteringEvent interface {
	isMeteringEvent()
}

// InstantaneousPower overwrites all instantaneous fields, including with nil.
type InstantaneousPower struct {
	Voltage            *float64
	CurrentPerPhase    []float64
	ActivePowerImportW *float64
	ActivePowerExportW *float64
}

// EnergyMeterUpdate overwrites each register that is non-nil.
type EnergyMeterUpdate struct {
	EnergyImportKWh *float64
	EnergyExportKWh *float64
}

func (InstantaneousPower) isMeteringEvent() {}
func (EnergyMeterUpdate) isMeteringEvent()  {}

// Metering holds the energy meter state of one port.
type Metering struct {
	mu      sync.Mutex
	session SessionSink
	now     func() time.Time
	state   model.EnergyStatus
}

func NewMetering(session SessionSink) *Metering {
	return &Metering{session: session, now: time.Now}
}

// Apply updates the meter. Once import/export power and energy are all
// known, a power sample is forwarded to the session after the lock is
// released. Producers must serialise Apply calls for samples to reach the
// session in order.
func (m *Metering) Apply(ev MeteringEvent) {
	m.mu.Lock()
	switch e := ev.(type) {
	case InstantaneousPower:
		m.state.Voltage = copyFloat(e.Voltage)
		m.state.CurrentPerPhase = append([]float64(nil), e.CurrentPerPhase...)
		m.state.ActivePowerImportW = copyFloat(e.ActivePowerImportW)
		m.state.ActivePowerExportW = copyFloat(e.ActivePowerExportW)
	case EnergyMeterUpdate:
		if e.EnergyImportKWh != nil {
			m.state.EnergyImportKWh = copyFloat(e.EnergyImportKWh)
		}
		if e.EnergyExportKWh != nil {
			m.state.EnergyExportKWh = copyFloat(e.EnergyExportKWh)
		}
	}

	st := m.state
	complete := st.ActivePowerImportW != nil && st.ActivePowerExportW != nil &&
		st.EnergyImportKWh != nil && st.EnergyExportKWh != nil
	var sample PowerSample
	if complete {
		sample = PowerSample{
			At:        m.now(),
			ImportW:   *st.ActivePowerImportW,
			ExportW:   *st.ActivePowerExportW,
			ImportKWh: *st.EnergyImportKWh,
			ExportKWh: *st.EnergyExportKWh,
		}
	}
	m.mu.Unlock()

	if complete {
		m.session.Apply(sample)
	}
}

// Fetch returns a snapshot of the meter.
func (m *Metering) Fetch(context.Context) (*model.EnergyStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.state
	out.CurrentPerPhase = append([]float64(nil), m.state.CurrentPerPhase...)
	if len(out.CurrentPerPhase) == 0 {
		out.CurrentPerPhase = nil
	}
	return &out, nil
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
