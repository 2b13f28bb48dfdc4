package transmission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/w3cp/cp-firmware/internal/bus"
	"github.com/w3cp/cp-firmware/internal/model"
)

// ErrNotVerified is returned by Send before the backend has verified the
// charge point.
var ErrNotVerified = errors.New("connection not verified")

// Connection is the upstream link the status scheduler sends through.
type Connection interface {
	IsVerified() bool
	Send(ctx context.Context, payload string) error
}

// Offline is the connection used when no transport is configured. It is
// never verified, so nothing is ever sent.
type Offline struct{}

func (Offline) IsVerified() bool                   { return false }
func (Offline) Send(context.Context, string) error { return ErrNotVerified }

// EncodeStatus wraps status in a chargepointStatus envelope. Signature and
// hash are left empty.
func EncodeStatus(status *model.ChargePointStatus) (string, error) {
	b, err := json.Marshal(model.Message[*model.ChargePointStatus]{
		Type:    model.MessageTypeChargePointStatus,
		Payload: status,
	})
	if err != nil {
		return "", fmt.Errorf("encode status: %w", err)
	}
	return string(b), nil
}

// verification tracks whether the backend accepted this charge point and
// announces changes on the bus.
type verification struct {
	verified atomic.Bool
	bus      *bus.Bus
	logger   *logrus.Logger
	now      func() time.Time
}

func newVerification(b *bus.Bus, logger *logrus.Logger) *verification {
	return &verification{bus: b, logger: logger, now: time.Now}
}

func (v *verification) IsVerified() bool { return v.verified.Load() }

// handle processes an inbound message. Anything other than a
// connectionStatus envelope is ignored.
func (v *verification) handle(raw []byte) {
	var msg model.Message[json.RawMessage]
	if err := json.Unmarshal(raw, &msg); err != nil {
		v.logger.WithError(err).Warn("transport: discarding malformed message")
		return
	}
	if msg.Type != model.MessageTypeConnectionStatus {
		v.logger.WithField("type", msg.Type).Debug("transport: ignoring message")
		return
	}
	var st model.ConnectionStatus
	if err := json.Unmarshal(msg.Payload, &st); err != nil {
		v.logger.WithError(err).Warn("transport: malformed connection status")
		return
	}

	switch st.Status {
	case model.ConnectionStateVerified:
		if !v.verified.Swap(true) {
			v.logger.Info("transport: connection verified")
			v.publish(bus.ConnectionOpened, "")
		}
	case model.ConnectionStateDisconnected, model.ConnectionStateError:
		v.drop(fmt.Sprintf("%s: %s", st.Status, st.Reason))
	default:
		v.logger.WithField("status", st.Status).Warn("transport: unknown connection status")
	}
}

// drop clears verification. reason is logged and forwarded on the bus.
func (v *verification) drop(reason string) {
	if v.verified.Swap(false) {
		v.logger.WithField("reason", reason).Warn("transport: connection no longer verified")
		v.publish(bus.ConnectionClosed, reason)
	}
}

func (v *verification) publish(kind bus.Kind, reason string) {
	if v.bus != nil {
		v.bus.Publish(bus.Event{Kind: kind, At: v.now(), Reason: reason})
	}
}
