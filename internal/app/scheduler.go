package app

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/w3cp/cp-firmware/internal/cache"
	"github.com/w3cp/cp-firmware/internal/metrics"
	"github.com/w3cp/cp-firmware/internal/model"
	"github.com/w3cp/cp-firmware/internal/transmission"
)

// Assembler produces a fresh status snapshot.
type Assembler interface {
	AssembleStatus(ctx context.Context) (*model.ChargePointStatus, error)
}

// StatusScheduler decides on every tick whether the current status should
// be sent upstream: either it changed significantly since the previous
// observation, or nothing was sent for longer than maxSilence.
type StatusScheduler struct {
	conn       transmission.Connection
	assembler  Assembler
	cache      *cache.Manager
	maxSilence time.Duration
	timeout    time.Duration
	now        func() time.Time
	logger     *logrus.Logger

	mu       sync.Mutex
	lastSent time.Time
}

func NewStatusScheduler(conn transmission.Connection, assembler Assembler, maxSilence, sendTimeout time.Duration, logger *logrus.Logger) *StatusScheduler {
	return &StatusScheduler{
		conn:       conn,
		assembler:  assembler,
		cache:      cache.NewManager(logger),
		maxSilence: maxSilence,
		timeout:    sendTimeout,
		now:        time.Now,
		logger:     logger,
	}
}

// Run evaluates the status every interval until ctx is cancelled.
func (s *StatusScheduler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one evaluation and reports whether a status was sent.
func (s *StatusScheduler) Tick(ctx context.Context) bool {
	if !s.conn.IsVerified() {
		metrics.StatusEvaluations.WithLabelValues(metrics.OutcomeNotVerified).Inc()
		return false
	}

	current, err := s.assembler.AssembleStatus(ctx)
	if err != nil {
		s.fail(err, "scheduler: failed to assemble status")
		return false
	}

	changed := s.cache.Changed(current)
	timedOut := s.silenceExceeded()
	if !changed && !timedOut {
		metrics.StatusEvaluations.WithLabelValues(metrics.OutcomeUnchanged).Inc()
		return false
	}

	payload, err := transmission.EncodeStatus(current)
	if err != nil {
		s.fail(err, "scheduler: failed to encode status")
		return false
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()
	if err := s.conn.Send(sendCtx, payload); err != nil {
		s.fail(err, "scheduler: failed to send status")
		return false
	}
	metrics.SendLatency.Observe(time.Since(start).Seconds())

	s.mu.Lock()
	s.lastSent = s.now()
	s.mu.Unlock()

	reason := metrics.ReasonChanged
	if !changed {
		reason = metrics.ReasonTimeout
	}
	metrics.StatusEvaluations.WithLabelValues(metrics.OutcomeSent).Inc()
	metrics.StatusTransmissions.WithLabelValues(reason).Inc()
	s.logger.WithFields(logrus.Fields{
		"significant_change": changed,
		"timeout_exceeded":   timedOut,
	}).Debug("scheduler: status sent")
	return true
}

// silenceExceeded is true when nothing was ever sent or the last send is
// older than maxSilence.
func (s *StatusScheduler) silenceExceeded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSent.IsZero() || s.now().Sub(s.lastSent) > s.maxSilence
}

func (s *StatusScheduler) fail(err error, msg string) {
	metrics.StatusEvaluations.WithLabelValues(metrics.OutcomeFailed).Inc()
	if IsShutdownError(err) {
		return
	}
	s.logger.WithError(err).Error(msg)
}

// shutdownSignatures are error texts produced by transports torn down
// underneath an in-flight send.
var shutdownSignatures = []string{
	"use of closed network connection",
	"context canceled",
}

// IsShutdownError reports whether err is a side effect of the process
// shutting down rather than a real failure.
func IsShutdownError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, net.ErrClosed) || errors.Is(err, websocket.ErrCloseSent) ||
		errors.Is(err, pahomqtt.ErrNotConnected) {
		return true
	}
	msg := err.Error()
	for _, sig := range shutdownSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
