package control

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/w3cp/cp-firmware/internal/model"
	"github.com/w3cp/cp-firmware/internal/sim"
	"github.com/w3cp/cp-firmware/internal/status"
)

// Simulator is the operator-facing surface of the physics simulator.
type Simulator interface {
	State() sim.State
	Plug()
	Unplug()
	StartCharging(ev *model.EvInfo) bool
	StopCharging()
	TriggerFault()
	ClearFault()
	SetControlPilot(voltage, duty float64)
	Lock() bool
	Unlock()
	CloseRelay() bool
	OpenRelay()
	SetPwmDutyCycle(duty float64)
	ConfigureEV(cfg sim.EvConfig)
	ResetEnergy()
}

// Assembler produces a fresh status snapshot.
type Assembler interface {
	AssembleStatus(ctx context.Context) (*model.ChargePointStatus, error)
}

// Options selects what the control API exposes. Simulator routes are only
// registered when Simulator is set.
type Options struct {
	Addr            string
	Assembler       Assembler
	Simulator       Simulator
	Connector       status.Feeder[*model.Connector]
	Metering        status.Feeder[*model.EnergyStatus]
	ShutdownTimeout time.Duration
}

// Server is the local HTTP API for operators and bench tests.
type Server struct {
	server *http.Server
	opts   Options
	logger *logrus.Logger
}

func NewServer(opts Options, logger *logrus.Logger) *Server {
	s := &Server{opts: opts, logger: logger}
	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.server.Handler }

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	if s.opts.Assembler != nil {
		r.HandleFunc("/api/status", s.getStatus).Methods(http.MethodGet)
	}

	if s.opts.Simulator == nil {
		return r
	}
	api := r.PathPrefix("/api/sim").Subrouter()
	api.HandleFunc("/state", s.getSimState).Methods(http.MethodGet)
	if s.opts.Connector != nil {
		api.HandleFunc("/connector/status", feed(s, s.opts.Connector)).Methods(http.MethodGet)
	}
	if s.opts.Metering != nil {
		api.HandleFunc("/metering/status", feed(s, s.opts.Metering)).Methods(http.MethodGet)
	}

	actions := api.PathPrefix("/connector/actions").Subrouter()
	actions.HandleFunc("/plug", s.action(s.opts.Simulator.Plug)).Methods(http.MethodPost)
	actions.HandleFunc("/unplug", s.action(s.opts.Simulator.Unplug)).Methods(http.MethodPost)
	actions.HandleFunc("/start-charging", s.startCharging).Methods(http.MethodPost)
	actions.HandleFunc("/stop-charging", s.action(s.opts.Simulator.StopCharging)).Methods(http.MethodPost)
	actions.HandleFunc("/fault", s.action(s.opts.Simulator.TriggerFault)).Methods(http.MethodPost)
	actions.HandleFunc("/clear-fault", s.action(s.opts.Simulator.ClearFault)).Methods(http.MethodPost)

	low := api.PathPrefix("/connector/low-level").Subrouter()
	low.HandleFunc("/cp", s.setControlPilot).Methods(http.MethodPost)
	low.HandleFunc("/lock", s.check(s.opts.Simulator.Lock)).Methods(http.MethodPost)
	low.HandleFunc("/unlock", s.action(s.opts.Simulator.Unlock)).Methods(http.MethodPost)
	low.HandleFunc("/relay/close", s.check(s.opts.Simulator.CloseRelay)).Methods(http.MethodPost)
	low.HandleFunc("/relay/open", s.action(s.opts.Simulator.OpenRelay)).Methods(http.MethodPost)
	low.HandleFunc("/pwm", s.setPwm).Methods(http.MethodPost)

	api.HandleFunc("/config/ev", s.configureEV).Methods(http.MethodPost)
	api.HandleFunc("/metering/reset", s.action(s.opts.Simulator.ResetEnergy)).Methods(http.MethodPost)
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", s.server.Addr).Info("Control API listening")
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.opts.Assembler.AssembleStatus(r.Context())
	if err != nil {
		s.logger.WithError(err).Warn("control: status assembly failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, st)
}

func (s *Server) getSimState(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.opts.Simulator.State())
}

func feed[T any](s *Server, f status.Feeder[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := f.Fetch(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.writeJSON(w, v)
	}
}

func (s *Server) action(fn func()) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		fn()
		w.WriteHeader(http.StatusNoContent)
	}
}

// check runs fn and answers 400 when the simulator refused the change.
func (s *Server) check(fn func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if !fn() {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type startChargingRequest struct {
	EvInfo *model.EvInfo `json:"evInfo"`
}

func (s *Server) startCharging(w http.ResponseWriter, r *http.Request) {
	var req startChargingRequest
	if !s.decode(w, r, &req, true) {
		return
	}
	if !s.opts.Simulator.StartCharging(req.EvInfo) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type controlPilotRequest struct {
	CpVoltage    float64 `json:"cpVoltage"`
	PwmDutyCycle float64 `json:"pwmDutyCycle"`
}

func (s *Server) setControlPilot(w http.ResponseWriter, r *http.Request) {
	var req controlPilotRequest
	if !s.decode(w, r, &req, false) {
		return
	}
	s.opts.Simulator.SetControlPilot(req.CpVoltage, req.PwmDutyCycle)
	w.WriteHeader(http.StatusNoContent)
}

type pwmRequest struct {
	DutyCycle float64 `json:"dutyCycle"`
}

func (s *Server) setPwm(w http.ResponseWriter, r *http.Request) {
	var req pwmRequest
	if !s.decode(w, r, &req, false) {
		return
	}
	s.opts.Simulator.SetPwmDutyCycle(req.DutyCycle)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) configureEV(w http.ResponseWriter, r *http.Request) {
	var req sim.EvConfig
	if !s.decode(w, r, &req, false) {
		return
	}
	s.opts.Simulator.ConfigureEV(req)
	w.WriteHeader(http.StatusNoContent)
}

// decode reads a JSON body into v. An empty body is accepted when optional
// is set.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
	return false
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Debug("control: failed to write response")
	}
}
