package chargeport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/w3cp/cp-firmware/internal/model"
)

type recordingSink struct {
	mu     sync.Mutex
	events []SessionEvent
}

func (r *recordingSink) Apply(ev SessionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSink) snapshot() []SessionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SessionEvent(nil), r.events...)
}

func TestInferIec61851State(t *testing.T) {
	cases := []struct {
		voltage float64
		want    model.Iec61851State
	}{
		{12, model.Iec61851StateA},
		{10.01, model.Iec61851StateA},
		{10.0, model.Iec61851StateB},
		{9, model.Iec61851StateB},
		{7.5, model.Iec61851StateC},
		{6, model.Iec61851StateC},
		{4.5, model.Iec61851StateD},
		{3, model.Iec61851StateD},
		{1.5, model.Iec61851StateE},
		{0, model.Iec61851StateE},
		{-1.0, model.Iec61851StateF},
		{-12, model.Iec61851StateF},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, InferIec61851State(tc.voltage), "voltage %v", tc.voltage)
	}
}

func TestInferStatus(t *testing.T) {
	assert.Equal(t, model.ConnectorStatusAvailable, InferStatus(model.Iec61851StateA, true))
	assert.Equal(t, model.ConnectorStatusPlugged, InferStatus(model.Iec61851StateB, true))
	assert.Equal(t, model.ConnectorStatusCharging, InferStatus(model.Iec61851StateC, true))
	assert.Equal(t, model.ConnectorStatusPlugged, InferStatus(model.Iec61851StateC, false))
	assert.Equal(t, model.ConnectorStatusCharging, InferStatus(model.Iec61851StateD, true))
	assert.Equal(t, model.ConnectorStatusPlugged, InferStatus(model.Iec61851StateD, false))
	assert.Equal(t, model.ConnectorStatusFaulted, InferStatus(model.Iec61851StateE, false))
	assert.Equal(t, model.ConnectorStatusFaulted, InferStatus(model.Iec61851StateF, true))
	assert.Equal(t, model.ConnectorStatusUnknown, InferStatus("", false))
}

func TestConnectorDefaults(t *testing.T) {
	logger, _ := test.NewNullLogger()
	c := NewConnector(&recordingSink{}, logger)

	got, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.ConnectorStatusAvailable, got.Status)
	assert.Equal(t, model.Iec61851StateA, got.Iec61851State)
	assert.Equal(t, model.ChargingMode3, got.ChargingMode)
	assert.Equal(t, model.InterfaceTypePlug, got.InterfaceType)
	assert.Equal(t, model.CurrentTypeAC, got.CurrentType)
	assert.Equal(t, "type2", got.ConnectorStandard)
	assert.False(t, *got.Locked)
	assert.False(t, *got.RelayClosed)
	assert.Zero(t, *got.PwmDutyCycle)

	_, _, ok := c.LastRawSample()
	assert.False(t, ok)
}

func TestConnectorChargingNeedsRelay(t *testing.T) {
	logger, _ := test.NewNullLogger()
	c := NewConnector(&recordingSink{}, logger)

	c.Apply(ControlPilotSample{VoltageV: 6, PwmDutyCycle: 53})
	got, _ := c.Fetch(context.Background())
	assert.Equal(t, model.ConnectorStatusPlugged, got.Status)
	assert.Equal(t, 53.0, *got.PwmDutyCycle)

	c.Apply(RelayChanged{Closed: true})
	got, _ = c.Fetch(context.Background())
	assert.Equal(t, model.ConnectorStatusCharging, got.Status)

	c.Apply(RelayChanged{Closed: false})
	got, _ = c.Fetch(context.Background())
	assert.Equal(t, model.ConnectorStatusPlugged, got.Status)

	v, d, ok := c.LastRawSample()
	require.True(t, ok)
	assert.Equal(t, 6.0, v)
	assert.Equal(t, 53.0, d)
}

func TestConnectorPlugUnplugNotifications(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sink := &recordingSink{}
	c := NewConnector(sink, logger)
	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return at }

	c.Apply(ControlPilotSample{VoltageV: 9})
	c.Apply(ControlPilotSample{VoltageV: 6})
	c.Apply(RelayChanged{Closed: true})
	c.Apply(ControlPilotSample{VoltageV: -12})
	c.Apply(ControlPilotSample{VoltageV: 12})
	c.Apply(ControlPilotSample{VoltageV: 12})

	events := sink.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, VehiclePlugged{At: at}, events[0])
	assert.Equal(t, VehicleUnplugged{At: at}, events[1])
}

func TestConnectorConfigEvents(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sink := &recordingSink{}
	c := NewConnector(sink, logger)

	c.Apply(ModeDetected{Mode: model.ChargingMode2, Edition: model.Iec61851Edition2017})
	c.Apply(EnergyConfig{Direction: model.EnergyDirectionBidirectional, CurrentType: model.CurrentTypeDC})
	c.Apply(PhysicalConfig{InterfaceType: model.InterfaceTypeWireless, ConnectorStandard: "ccs2"})
	c.Apply(LockChanged{Locked: true})

	got, _ := c.Fetch(context.Background())
	assert.Equal(t, model.ChargingMode2, got.ChargingMode)
	assert.Equal(t, model.Iec61851Edition2017, got.Iec61851Edition)
	assert.Equal(t, model.EnergyDirectionBidirectional, got.EnergyDirection)
	assert.Equal(t, model.CurrentTypeDC, got.CurrentType)
	assert.Equal(t, model.InterfaceTypeWireless, got.InterfaceType)
	assert.Equal(t, "ccs2", got.ConnectorStandard)
	assert.True(t, *got.Locked)
	assert.Equal(t, model.ConnectorStatusAvailable, got.Status)
	assert.Empty(t, sink.snapshot())
}
