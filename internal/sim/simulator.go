package sim

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/w3cp/cp-firmware/internal/chargeport"
	"github.com/w3cp/cp-firmware/internal/metrics"
	"github.com/w3cp/cp-firmware/internal/model"
)

const (
	lineVoltage    = 230.0
	minCurrentA    = 6.0
	smoothing      = 0.3
	noiseAmplitude = 0.05
	taperStartSoc  = 80.0
	taperFloor     = 0.3
)

// ConnectorSink receives connector events.
type ConnectorSink interface {
	Apply(ev chargeport.ConnectorEvent)
}

// MeteringSink receives metering events.
type MeteringSink interface {
	Apply(ev chargeport.MeteringEvent)
}

// EvInfoSink holds the connected vehicle's info.
type EvInfoSink interface {
	Set(info *model.EvInfo)
	Reset()
	Apply(ev chargeport.EvInfoEvent)
}

// State is a read-out of the simulator for operators.
type State struct {
	Plugged            bool    `json:"plugged"`
	Charging           bool    `json:"charging"`
	Faulted            bool    `json:"faulted"`
	RelayClosed        bool    `json:"relayState"`
	Locked             bool    `json:"lockState"`
	CpVoltage          float64 `json:"cpVoltage"`
	PwmDutyCycle       float64 `json:"pwmDutyCycle"`
	TotalEnergyWh      float64 `json:"totalEnergyWh"`
	PowerW             float64 `json:"powerW"`
	EvMaxCurrentA      float64 `json:"evMaxCurrentA"`
	EvSocPercent       float64 `json:"evSocPercent"`
	EvTargetSocPercent float64 `json:"evTargetSocPercent"`
	EvPhases           int     `json:"evPhases"`
	EvCapacityWh       float64 `json:"evCapacityWh"`
	EvEnergyWh         float64 `json:"evEnergyWh"`
}

// EvConfig changes vehicle parameters. Nil fields are left untouched.
type EvConfig struct {
	MaxCurrentA      *float64 `json:"maxCurrentA,omitempty"`
	SocPercent       *float64 `json:"socPercent,omitempty"`
	TargetSocPercent *float64 `json:"targetSocPercent,omitempty"`
	Phases           *int     `json:"phases,omitempty"`
	CapacityWh       *float64 `json:"capacityWh,omitempty"`
	EnergyWh         *float64 `json:"energyWh,omitempty"`
}

// Simulator drives a charge port with a simple physical model of an EVSE
// and a vehicle battery.
//
// State changes happen under mu; the resulting events are applied to the
// sinks afterwards under emitMu so that their order matches the order of
// the state changes.
type Simulator struct {
	connector ConnectorSink
	metering  MeteringSink
	evInfo    EvInfoSink
	logger    *logrus.Logger

	emitMu sync.Mutex
	mu     sync.Mutex
	rng    *rand.Rand
	st     State
}

// New returns a simulator with an unplugged 50 kWh vehicle at 50 % SoC and
// pushes the idle connector state to the sinks.
func New(connector ConnectorSink, metering MeteringSink, evInfo EvInfoSink, seed int64, logger *logrus.Logger) *Simulator {
	s := &Simulator{
		connector: connector,
		metering:  metering,
		evInfo:    evInfo,
		logger:    logger,
		rng:       rand.New(rand.NewSource(seed)),
		st: State{
			CpVoltage:          12.0,
			EvMaxCurrentA:      32.0,
			EvSocPercent:       50.0,
			EvTargetSocPercent: 100.0,
			EvPhases:           1,
			EvCapacityWh:       50000.0,
			EvEnergyWh:         25000.0,
		},
	}
	s.do(s.stateEvents)
	return s
}

// do runs mutate under the state lock, then applies the events it returned.
func (s *Simulator) do(mutate func() []func()) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	out := mutate()
	s.mu.Unlock()

	for _, emit := range out {
		emit()
	}
}

// State returns a copy of the current simulator state.
func (s *Simulator) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

// Run ticks the simulator every interval until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick advances the physics by one second.
func (s *Simulator) Tick() {
	s.do(func() []func() {
		st := &s.st
		target := s.chargingPower()
		if st.RelayClosed {
			st.PowerW += smoothing * (target - st.PowerW)
		} else {
			st.PowerW = 0
		}

		power, voltage := st.PowerW, 0.0
		if st.RelayClosed {
			voltage = lineVoltage
		}

		var out []func()
		if power > 0 {
			wh := power / 3600.0
			st.TotalEnergyWh += wh
			st.EvEnergyWh += wh
			if st.EvCapacityWh > 0 {
				soc := st.EvEnergyWh / st.EvCapacityWh * 100.0
				st.EvSocPercent = min(100.0, st.EvTargetSocPercent, soc)
			}
			out = append(out, s.socEvents()...)

			if st.EvSocPercent >= st.EvTargetSocPercent || st.EvSocPercent >= 100.0 {
				s.logger.WithFields(logrus.Fields{
					"soc":    st.EvSocPercent,
					"target": st.EvTargetSocPercent,
				}).Info("sim: charging complete")
				out = append(out, s.stopCharging()...)
			}
		}

		perPhase := 0.0
		if power > 0 {
			perPhase = power / (lineVoltage * float64(st.EvPhases))
		}
		currents := make([]float64, st.EvPhases)
		for i := range currents {
			currents[i] = perPhase
		}
		importKWh := st.TotalEnergyWh / 1000.0
		inst := chargeport.InstantaneousPower{
			Voltage:            &voltage,
			CurrentPerPhase:    currents,
			ActivePowerImportW: &power,
			ActivePowerExportW: ptr(0.0),
		}
		meter := chargeport.EnergyMeterUpdate{EnergyImportKWh: &importKWh, EnergyExportKWh: ptr(0.0)}
		out = append(out,
			func() { s.metering.Apply(inst) },
			func() { s.metering.Apply(meter) },
		)

		metrics.SimulatedPowerW.Set(power)
		metrics.SimulatedEnergyWh.Set(st.TotalEnergyWh)
		return out
	})
}

// chargingPower is the power the vehicle would draw right now, before
// smoothing.
func (s *Simulator) chargingPower() float64 {
	st := &s.st
	if !st.RelayClosed || !st.Charging {
		return 0
	}
	if st.EvSocPercent >= st.EvTargetSocPercent || st.EvSocPercent >= 100.0 {
		return 0
	}

	current := min(pwmToMaxCurrent(st.PwmDutyCycle), st.EvMaxCurrentA)
	if current < minCurrentA {
		return 0
	}
	maxPower := lineVoltage * current * float64(st.EvPhases)

	factor := 1.0
	if st.EvSocPercent >= taperStartSoc {
		factor = 1.0 - (1.0-taperFloor)*(st.EvSocPercent-taperStartSoc)/(100.0-taperStartSoc)
	}
	noise := 1.0 + (s.rng.Float64()*2*noiseAmplitude - noiseAmplitude)

	return max(0, min(maxPower*factor*noise, maxPower))
}

// pwmToMaxCurrent converts a PWM duty cycle to the advertised current limit.
func pwmToMaxCurrent(duty float64) float64 {
	return max(0, (duty-10.0)*0.6)
}

// stateEvents normalises the connector-facing state and returns the relay,
// lock and control-pilot events describing it.
func (s *Simulator) stateEvents() []func() {
	st := &s.st
	if st.Faulted {
		st.RelayClosed = false
	}
	if !st.Plugged || st.Faulted || !st.Charging {
		st.Locked = false
	}
	if !st.RelayClosed && st.CpVoltage > 4.5 && st.CpVoltage < 7.5 {
		st.CpVoltage = s.idleVoltage()
	}

	relay, lock := st.RelayClosed, st.Locked
	cp := chargeport.ControlPilotSample{VoltageV: st.CpVoltage, PwmDutyCycle: st.PwmDutyCycle}
	return []func(){
		func() { s.connector.Apply(chargeport.RelayChanged{Closed: relay}) },
		func() { s.connector.Apply(chargeport.LockChanged{Locked: lock}) },
		func() { s.connector.Apply(cp) },
	}
}

func (s *Simulator) socEvents() []func() {
	soc, energy := s.st.EvSocPercent, s.st.EvEnergyWh
	return []func(){
		func() { s.evInfo.Apply(chargeport.SocUpdate{Soc: &soc}) },
		func() { s.evInfo.Apply(chargeport.EnergyUpdate{EnergyWh: &energy}) },
	}
}

func (s *Simulator) idleVoltage() float64 {
	if s.st.Plugged {
		return 9.0
	}
	return 12.0
}

// Plug connects the vehicle (state B).
func (s *Simulator) Plug() {
	s.do(func() []func() {
		s.st.Plugged = true
		s.st.Faulted = false
		s.st.Locked = false
		s.st.CpVoltage = 9.0
		s.st.PwmDutyCycle = 0
		return s.stateEvents()
	})
}

// Unplug disconnects the vehicle and forgets its EV info.
func (s *Simulator) Unplug() {
	s.do(func() []func() {
		s.st.Plugged = false
		s.st.Charging = false
		s.st.Faulted = false
		s.st.RelayClosed = false
		s.st.Locked = false
		s.st.CpVoltage = 12.0
		s.st.PwmDutyCycle = 0
		return append(s.stateEvents(), s.evInfo.Reset)
	})
}

// StartCharging plugs in (if needed) and starts charging at full PWM. If ev
// is non-nil it is installed as the vehicle's info and its energy block
// seeds the battery model. It returns false, changing nothing, when already
// charging.
func (s *Simulator) StartCharging(ev *model.EvInfo) bool {
	ok := true
	s.do(func() []func() {
		if s.st.Charging {
			ok = false
			return nil
		}
		var out []func()
		if ev != nil {
			info := ev.Clone()
			out = append(out, func() { s.evInfo.Set(info) })
			if e := info.Energy; e != nil {
				if e.CapacityWh != nil {
					s.setCapacity(*e.CapacityWh)
				}
				if e.EnergyWh != nil {
					s.setEnergy(*e.EnergyWh)
					out = append(out, s.socEvents()...)
				}
				if e.SocTarget != nil {
					s.setTargetSoc(float64(*e.SocTarget))
				}
			}
		}

		s.st.Plugged = true
		s.st.Charging = true
		s.st.Faulted = false
		s.st.RelayClosed = true
		s.st.Locked = true
		s.st.CpVoltage = 6.0
		s.st.PwmDutyCycle = 100.0
		return append(out, s.stateEvents()...)
	})
	if ok {
		s.logger.Info("sim: charging started")
	} else {
		s.logger.Warn("sim: start charging rejected, already charging")
	}
	return ok
}

// StopCharging opens the relay and returns the pilot to its idle level.
func (s *Simulator) StopCharging() {
	s.do(s.stopCharging)
}

func (s *Simulator) stopCharging() []func() {
	s.st.Charging = false
	s.st.RelayClosed = false
	s.st.Locked = false
	s.st.CpVoltage = s.idleVoltage()
	s.st.PwmDutyCycle = 0
	return s.stateEvents()
}

// TriggerFault drives the pilot to -12 V (state F).
func (s *Simulator) TriggerFault() {
	s.do(func() []func() {
		s.st.Faulted = true
		s.st.Charging = false
		s.st.RelayClosed = false
		s.st.CpVoltage = -12.0
		s.st.PwmDutyCycle = 0
		return s.stateEvents()
	})
}

func (s *Simulator) ClearFault() {
	s.do(func() []func() {
		s.st.Faulted = false
		s.st.Charging = false
		s.st.CpVoltage = s.idleVoltage()
		s.st.PwmDutyCycle = 0
		return s.stateEvents()
	})
}

// SetControlPilot forces a raw pilot reading. Voltage is clamped to ±15 V
// and duty to 0–100 %; plug and charging flags follow the voltage band.
func (s *Simulator) SetControlPilot(voltage, duty float64) {
	s.do(func() []func() {
		st := &s.st
		st.CpVoltage = clamp(voltage, -15, 15)
		st.PwmDutyCycle = clamp(duty, 0, 100)
		switch {
		case st.CpVoltage > 10.0:
			st.Plugged, st.Charging, st.Locked = false, false, false
		case st.CpVoltage > 7.5:
			st.Plugged, st.Charging, st.Locked = true, false, false
		case st.CpVoltage > 4.5:
			if st.PwmDutyCycle < 10.0 {
				st.Charging, st.Locked = false, false
			} else {
				st.Plugged, st.Charging = true, true
			}
		}
		return s.stateEvents()
	})
}

// Lock locks the connector. It returns false when no vehicle is plugged.
func (s *Simulator) Lock() bool {
	ok := true
	s.do(func() []func() {
		if !s.st.Plugged {
			ok = false
			return nil
		}
		s.st.Locked = true
		return s.stateEvents()
	})
	return ok
}

func (s *Simulator) Unlock() {
	s.do(func() []func() {
		s.st.Locked = false
		return s.stateEvents()
	})
}

// CloseRelay closes the contactor. It returns false unless a vehicle is
// plugged, charging and no fault is active.
func (s *Simulator) CloseRelay() bool {
	ok := true
	s.do(func() []func() {
		if !s.st.Plugged || s.st.Faulted || !s.st.Charging {
			ok = false
			return nil
		}
		s.st.RelayClosed = true
		return s.stateEvents()
	})
	return ok
}

func (s *Simulator) OpenRelay() {
	s.do(func() []func() {
		s.st.RelayClosed = false
		return s.stateEvents()
	})
}

// SetPwmDutyCycle changes the advertised current without touching the
// pilot voltage.
func (s *Simulator) SetPwmDutyCycle(duty float64) {
	s.do(func() []func() {
		s.st.PwmDutyCycle = clamp(duty, 0, 100)
		return s.stateEvents()
	})
}

// ConfigureEV applies the non-nil fields of cfg. Capacity is applied before
// energy so the resulting SoC uses the new capacity.
func (s *Simulator) ConfigureEV(cfg EvConfig) {
	s.do(func() []func() {
		var out []func()
		if cfg.CapacityWh != nil {
			s.setCapacity(*cfg.CapacityWh)
		}
		if cfg.EnergyWh != nil {
			s.setEnergy(*cfg.EnergyWh)
			out = s.socEvents()
		}
		if cfg.SocPercent != nil {
			s.st.EvSocPercent = clamp(*cfg.SocPercent, 0, 100)
			s.st.EvEnergyWh = s.st.EvSocPercent / 100.0 * s.st.EvCapacityWh
			out = s.socEvents()
		}
		if cfg.TargetSocPercent != nil {
			s.setTargetSoc(*cfg.TargetSocPercent)
		}
		if cfg.MaxCurrentA != nil {
			s.st.EvMaxCurrentA = clamp(*cfg.MaxCurrentA, 0, 80)
		}
		if cfg.Phases != nil {
			s.st.EvPhases = min(3, max(1, *cfg.Phases))
		}
		return out
	})
}

// ResetEnergy zeroes the simulated energy register.
func (s *Simulator) ResetEnergy() {
	s.do(func() []func() {
		s.st.TotalEnergyWh = 0
		return []func(){func() {
			s.metering.Apply(chargeport.EnergyMeterUpdate{EnergyImportKWh: ptr(0.0), EnergyExportKWh: ptr(0.0)})
		}}
	})
}

func (s *Simulator) setCapacity(wh float64) {
	s.st.EvCapacityWh = max(1.0, wh)
	s.st.EvSocPercent = min(100.0, s.st.EvEnergyWh/s.st.EvCapacityWh*100.0)
}

func (s *Simulator) setEnergy(wh float64) {
	s.st.EvEnergyWh = max(0, wh)
	if s.st.EvCapacityWh > 0 {
		s.st.EvSocPercent = min(100.0, s.st.EvEnergyWh/s.st.EvCapacityWh*100.0)
	}
}

func (s *Simulator) setTargetSoc(pct float64) {
	s.st.EvTargetSocPercent = clamp(pct, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}

func ptr[T any](v T) *T { return &v }
