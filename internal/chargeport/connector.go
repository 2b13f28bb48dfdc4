package chargeport

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/w3cp/cp-firmware/internal/model"
)

// ConnectorEvent is implemented by the six connector event kinds.
type ConnectorEvent interface {
	isConnectorEvent()
}

// ControlPilotSample is a raw CP voltage and PWM duty cycle reading.
type ControlPilotSample struct {
	VoltageV     float64
	PwmDutyCycle float64
}

type LockChanged struct {
	Locked bool
}

type RelayChanged struct {
	Closed bool
}

type ModeDetected struct {
	Mode    model.ChargingMode
	Edition model.Iec61851Edition
}

type EnergyConfig struct {
	Direction   model.EnergyDirection
	CurrentType model.CurrentType
}

type PhysicalConfig struct {
	InterfaceType     model.InterfaceType
	ConnectorStandard string
}

func (ControlPilotSample) isConnectorEvent() {}
func (LockChanged) isConnectorEvent()        {}
func (RelayChanged) isConnectorEvent()       {}
func (ModeDetected) isConnectorEvent()       {}
func (EnergyConfig) isConnectorEvent()       {}
func (PhysicalConfig) isConnectorEvent()     {}

// InferIec61851State maps a CP voltage to its IEC 61851 state. Bounds are
// exclusive and evaluated top-down.
func InferIec61851State(v float64) model.Iec61851State {
	switch {
	case v > 10.0:
		return model.Iec61851StateA
	case v > 7.5:
		return model.Iec61851StateB
	case v > 4.5:
		return model.Iec61851StateC
	case v > 1.5:
		return model.Iec61851StateD
	case v > -1.0:
		return model.Iec61851StateE
	default:
		return model.Iec61851StateF
	}
}

// InferStatus derives the connector status from the IEC state and relay.
func InferStatus(state model.Iec61851State, relayClosed bool) model.ConnectorStatus {
	switch state {
	case model.Iec61851StateA:
		return model.ConnectorStatusAvailable
	case model.Iec61851StateB:
		return model.ConnectorStatusPlugged
	case model.Iec61851StateC, model.Iec61851StateD:
		if relayClosed {
			return model.ConnectorStatusCharging
		}
		return model.ConnectorStatusPlugged
	case model.Iec61851StateE, model.Iec61851StateF:
		return model.ConnectorStatusFaulted
	default:
		return model.ConnectorStatusUnknown
	}
}

// Connector holds the live connector state of one port and reports plug and
// unplug transitions to the session.
type Connector struct {
	mu      sync.Mutex
	logger  *logrus.Logger
	session SessionSink
	now     func() time.Time

	status            model.ConnectorStatus
	locked            bool
	iecState          model.Iec61851State
	pwmDutyCycle      float64
	relayClosed       bool
	edition           model.Iec61851Edition
	chargingMode      model.ChargingMode
	energyDirection   model.EnergyDirection
	interfaceType     model.InterfaceType
	currentType       model.CurrentType
	connectorStandard string

	lastRawCpVoltage    *float64
	lastRawPwmDutyCycle *float64
}

// NewConnector returns a connector in state A (available).
func NewConnector(session SessionSink, logger *logrus.Logger) *Connector {
	return &Connector{
		logger:            logger,
		session:           session,
		now:               time.Now,
		status:            model.ConnectorStatusAvailable,
		iecState:          model.Iec61851StateA,
		chargingMode:      model.ChargingMode3,
		interfaceType:     model.InterfaceTypePlug,
		currentType:       model.CurrentTypeAC,
		connectorStandard: "type2",
	}
}

// Apply mutates the connector state and re-infers its status. A resulting
// plug or unplug is forwarded to the session after the lock is released, so
// concurrent producers must serialise their Apply calls or the session may
// observe plug and unplug out of order. The simulator does this under its
// emit lock.
func (c *Connector) Apply(ev ConnectorEvent) {
	c.mu.Lock()
	prev := c.status
	switch e := ev.(type) {
	case ControlPilotSample:
		v, d := e.VoltageV, e.PwmDutyCycle
		c.lastRawCpVoltage = &v
		c.lastRawPwmDutyCycle = &d
		c.pwmDutyCycle = e.PwmDutyCycle
		c.iecState = InferIec61851State(e.VoltageV)
	case LockChanged:
		c.locked = e.Locked
	case RelayChanged:
		c.relayClosed = e.Closed
	case ModeDetected:
		c.chargingMode = e.Mode
		c.edition = e.Edition
	case EnergyConfig:
		c.energyDirection = e.Direction
		c.currentType = e.CurrentType
	case PhysicalConfig:
		c.interfaceType = e.InterfaceType
		c.connectorStandard = e.ConnectorStandard
	}
	c.status = InferStatus(c.iecState, c.relayClosed)
	cur := c.status
	at := c.now()
	c.mu.Unlock()

	if prev != cur {
		c.logger.WithFields(logrus.Fields{"from": prev, "to": cur}).Debug("connector: status changed")
	}

	wasPlugged := prev != model.ConnectorStatusAvailable
	isPlugged := cur != model.ConnectorStatusAvailable
	switch {
	case !wasPlugged && isPlugged:
		c.session.Apply(VehiclePlugged{At: at})
	case wasPlugged && !isPlugged:
		c.session.Apply(VehicleUnplugged{At: at})
	}
}

// Fetch returns a snapshot of the connector.
func (c *Connector) Fetch(context.Context) (*model.Connector, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	locked, relay, pwm := c.locked, c.relayClosed, c.pwmDutyCycle
	return &model.Connector{
		Status:            c.status,
		Locked:            &locked,
		Iec61851State:     c.iecState,
		PwmDutyCycle:      &pwm,
		RelayClosed:       &relay,
		Iec61851Edition:   c.edition,
		ChargingMode:      c.chargingMode,
		EnergyDirection:   c.energyDirection,
		InterfaceType:     c.interfaceType,
		CurrentType:       c.currentType,
		ConnectorStandard: c.connectorStandard,
	}, nil
}

// LastRawSample returns the last raw CP voltage and duty cycle, if any.
func (c *Connector) LastRawSample() (voltage, duty float64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastRawCpVoltage == nil {
		return 0, 0, false
	}
	return *c.lastRawCpVoltage, *c.lastRawPwmDutyCycle, true
}
