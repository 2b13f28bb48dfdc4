package chargeport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }

func TestMeteringPowerSampleNeedsAllFields(t *testing.T) {
	sink := &recordingSink{}
	m := NewMetering(sink)

	m.Apply(InstantaneousPower{Voltage: f64(230), CurrentPerPhase: []float64{16}, ActivePowerImportW: f64(3680), ActivePowerExportW: f64(0)})
	assert.Empty(t, sink.snapshot())

	m.Apply(EnergyMeterUpdate{EnergyImportKWh: f64(1.5)})
	assert.Empty(t, sink.snapshot())

	m.Apply(EnergyMeterUpdate{EnergyExportKWh: f64(0)})
	events := sink.snapshot()
	require.Len(t, events, 1)
	sample := events[0].(PowerSample)
	assert.Equal(t, 3680.0, sample.ImportW)
	assert.Equal(t, 1.5, sample.ImportKWh)
	assert.Equal(t, 0.0, sample.ExportKWh)
}

func TestMeteringEnergyUpdateLeavesAbsentRegisters(t *testing.T) {
	m := NewMetering(&recordingSink{})

	m.Apply(EnergyMeterUpdate{EnergyImportKWh: f64(2), EnergyExportKWh: f64(1)})
	m.Apply(EnergyMeterUpdate{EnergyImportKWh: f64(3)})

	got, err := m.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3.0, *got.EnergyImportKWh)
	assert.Equal(t, 1.0, *got.EnergyExportKWh)
}

func TestMeteringInstantaneousOverwrites(t *testing.T) {
	m := NewMetering(&recordingSink{})

	m.Apply(InstantaneousPower{Voltage: f64(230), CurrentPerPhase: []float64{10, 10, 10}, ActivePowerImportW: f64(6900)})
	m.Apply(InstantaneousPower{Voltage: f64(0)})

	got, _ := m.Fetch(context.Background())
	assert.Equal(t, 0.0, *got.Voltage)
	assert.Nil(t, got.CurrentPerPhase)
	assert.Nil(t, got.ActivePowerImportW)
}

func TestMeteringSnapshotIsIsolated(t *testing.T) {
	m := NewMetering(&recordingSink{})
	currents := []float64{16}
	v := 230.0
	m.Apply(InstantaneousPower{Voltage: &v, CurrentPerPhase: currents})

	currents[0] = 99
	v = 1
	got, _ := m.Fetch(context.Background())
	assert.Equal(t, []float64{16}, got.CurrentPerPhase)
	assert.Equal(t, 230.0, *got.Voltage)
}
