package control

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/w3cp/cp-firmware/internal/chargeport"
	"github.com/w3cp/cp-firmware/internal/model"
	"github.com/w3cp/cp-firmware/internal/sim"
)

type stubAssembler struct {
	err error
}

func (s stubAssembler) AssembleStatus(context.Context) (*model.ChargePointStatus, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &model.ChargePointStatus{ConnectionType: model.ConnectionTypeWifi}, nil
}

type fixture struct {
	handler http.Handler
	port    *chargeport.Port
	sim     *sim.Simulator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, _ := test.NewNullLogger()
	port := chargeport.NewPort(1, logger)
	simulator := sim.New(port.Connector, port.Metering, port.EvInfo, 7, logger)
	srv := NewServer(Options{
		Assembler: stubAssembler{},
		Simulator: simulator,
		Connector: port.Connector,
		Metering:  port.Metering,
	}, logger)
	return &fixture{handler: srv.Handler(), port: port, sim: simulator}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = f.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestStatusEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"connectionType":"wifi"`)

	logger, _ := test.NewNullLogger()
	failing := NewServer(Options{Assembler: stubAssembler{err: errors.New("boom")}}, logger)
	rec = httptest.NewRecorder()
	failing.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSimulatorRoutesAbsentWithoutSimulator(t *testing.T) {
	logger, _ := test.NewNullLogger()
	srv := NewServer(Options{}, logger)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sim/connector/actions/plug", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlugAndConnectorStatus(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/sim/connector/actions/plug", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, f.sim.State().Plugged)

	rec = f.do(http.MethodGet, "/api/sim/connector/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var conn model.Connector
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conn))
	assert.Equal(t, model.ConnectorStatusPlugged, conn.Status)
	assert.Equal(t, model.Iec61851StateB, conn.Iec61851State)
}

func TestStartChargingWithEvInfo(t *testing.T) {
	f := newFixture(t)

	body := `{"evInfo":{"identity":{"brand":"Kia"},"energy":{"capacityWh":60000,"energyWh":30000,"socTarget":80}}}`
	rec := f.do(http.MethodPost, "/api/sim/connector/actions/start-charging", body)
	require.Equal(t, http.StatusNoContent, rec.Code)

	st := f.sim.State()
	assert.True(t, st.Charging)
	assert.Equal(t, 60000.0, st.EvCapacityWh)
	assert.InDelta(t, 50.0, st.EvSocPercent, 0.001)
	assert.Equal(t, 80.0, st.EvTargetSocPercent)

	info, ok := f.port.EvInfo.Get()
	require.True(t, ok)
	assert.Equal(t, "Kia", info.Identity.Brand)

	// A second start is rejected.
	rec = f.do(http.MethodPost, "/api/sim/connector/actions/start-charging", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartChargingRejectsBadBody(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/api/sim/connector/actions/start-charging", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, f.sim.State().Charging)
}

func TestUnplugResetsEvInfo(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusNoContent,
		f.do(http.MethodPost, "/api/sim/connector/actions/start-charging", `{"evInfo":{"identity":{"brand":"Kia"}}}`).Code)

	rec := f.do(http.MethodPost, "/api/sim/connector/actions/unplug", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, ok := f.port.EvInfo.Get()
	assert.False(t, ok)
}

func TestLowLevelRoutes(t *testing.T) {
	f := newFixture(t)
	post := func(path, body string) int {
		return f.do(http.MethodPost, "/api/sim/connector/low-level"+path, body).Code
	}

	// Nothing plugged: lock and relay close are refused.
	assert.Equal(t, http.StatusBadRequest, post("/lock", ""))
	assert.Equal(t, http.StatusBadRequest, post("/relay/close", ""))

	require.Equal(t, http.StatusNoContent, post("/cp", `{"cpVoltage":9,"pwmDutyCycle":50}`))
	st := f.sim.State()
	assert.True(t, st.Plugged)
	assert.Equal(t, 9.0, st.CpVoltage)
	assert.Equal(t, 50.0, st.PwmDutyCycle)

	// Plugged but not charging.
	assert.Equal(t, http.StatusBadRequest, post("/relay/close", ""))

	require.Equal(t, http.StatusNoContent, post("/cp", `{"cpVoltage":6,"pwmDutyCycle":50}`))
	assert.True(t, f.sim.State().Charging)

	assert.Equal(t, http.StatusNoContent, post("/relay/close", ""))
	assert.True(t, f.sim.State().RelayClosed)
	assert.Equal(t, http.StatusNoContent, post("/lock", ""))
	assert.True(t, f.sim.State().Locked)
	assert.Equal(t, http.StatusNoContent, post("/unlock", ""))
	assert.False(t, f.sim.State().Locked)

	assert.Equal(t, http.StatusNoContent, post("/pwm", `{"dutyCycle":25}`))
	assert.Equal(t, 25.0, f.sim.State().PwmDutyCycle)

	assert.Equal(t, http.StatusNoContent, post("/relay/open", ""))
	assert.False(t, f.sim.State().RelayClosed)

	assert.Equal(t, http.StatusBadRequest, post("/pwm", ""))
}

func TestFaultRoutes(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodPost, "/api/sim/connector/actions/fault", "").Code)
	assert.True(t, f.sim.State().Faulted)
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodPost, "/api/sim/connector/actions/clear-fault", "").Code)
	assert.False(t, f.sim.State().Faulted)
}

func TestConfigureEVAndState(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/api/sim/config/ev", `{"maxCurrentA":16,"socPercent":20,"phases":3}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(http.MethodGet, "/api/sim/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st sim.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, 16.0, st.EvMaxCurrentA)
	assert.Equal(t, 20.0, st.EvSocPercent)
	assert.Equal(t, 3, st.EvPhases)
}

func TestMeteringResetAndStatus(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusNoContent, f.do(http.MethodPost, "/api/sim/metering/reset", "").Code)

	rec := f.do(http.MethodGet, "/api/sim/metering/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var es model.EnergyStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &es))
	require.NotNil(t, es.EnergyImportKWh)
	assert.Zero(t, *es.EnergyImportKWh)
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/sim/connector/actions/plug", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	logger, _ := test.NewNullLogger()
	srv := NewServer(Options{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
