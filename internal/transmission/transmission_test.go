package transmission

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/w3cp/cp-firmware/internal/bus"
	"github.com/w3cp/cp-firmware/internal/model"
)

const (
	verifiedMsg     = `{"type":"connectionStatus","payload":{"status":"verified"}}`
	disconnectedMsg = `{"type":"connectionStatus","payload":{"status":"disconnected","reason":"identity revoked"}}`
)

func TestEncodeStatus(t *testing.T) {
	at := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	out, err := EncodeStatus(&model.ChargePointStatus{
		Timestamp:      at,
		ConnectionType: model.ConnectionTypeEthernet,
		ChargePorts:    []*model.ChargePort{{ChargePortID: 1}},
	})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "chargepointStatus", decoded["type"])
	assert.Contains(t, decoded, "payloadSignature")
	assert.Nil(t, decoded["payloadSignature"])
	assert.Nil(t, decoded["payloadSha256Hash"])

	payload := decoded["payload"].(map[string]any)
	assert.Equal(t, "ethernet", payload["connectionType"])
	assert.Equal(t, "2025-05-01T12:00:00Z", payload["timestamp"])
}

func TestVerificationLifecycle(t *testing.T) {
	logger, _ := test.NewNullLogger()
	b := bus.New()
	sub := b.Subscribe()
	v := newVerification(b, logger)

	v.handle([]byte(`not json`))
	v.handle([]byte(`{"type":"messageError","payload":{}}`))
	assert.False(t, v.IsVerified())

	v.handle([]byte(verifiedMsg))
	assert.True(t, v.IsVerified())
	ev := <-sub
	assert.Equal(t, bus.ConnectionOpened, ev.Kind)

	// Repeated verification does not re-announce.
	v.handle([]byte(verifiedMsg))
	assert.Len(t, sub, 0)

	v.handle([]byte(disconnectedMsg))
	assert.False(t, v.IsVerified())
	ev = <-sub
	assert.Equal(t, bus.ConnectionClosed, ev.Kind)
	assert.Contains(t, ev.Reason, "identity revoked")
}

type fakeBroker struct {
	mu        sync.Mutex
	published map[string][][]byte
	handlers  map[string]func([]byte)
	err       error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{published: map[string][][]byte{}, handlers: map[string]func([]byte){}}
}

func (f *fakeBroker) Publish(topic string, payload []byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published[topic] = append(f.published[topic], payload)
	return nil
}

func (f *fakeBroker) Subscribe(topic string, handler func([]byte)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	return nil
}

func (f *fakeBroker) StatusTopic() string       { return "w3cp/cp/status" }
func (f *fakeBroker) ConnectionTopic() string   { return "w3cp/cp/connection" }
func (f *fakeBroker) AvailabilityTopic() string { return "w3cp/cp/availability" }

func TestMQTTConnection(t *testing.T) {
	logger, _ := test.NewNullLogger()
	broker := newFakeBroker()
	c := NewMQTTConnection(broker, bus.New(), logger)

	require.NoError(t, c.Start())
	assert.Equal(t, [][]byte{[]byte("online")}, broker.published["w3cp/cp/availability"])

	assert.ErrorIs(t, c.Send(context.Background(), "{}"), ErrNotVerified)

	broker.handlers["w3cp/cp/connection"]([]byte(verifiedMsg))
	require.True(t, c.IsVerified())
	require.NoError(t, c.Send(context.Background(), `{"type":"chargepointStatus"}`))
	assert.Len(t, broker.published["w3cp/cp/status"], 1)

	broker.err = errors.New("publish timed out")
	assert.Error(t, c.Send(context.Background(), "{}"))

	c.Lost(errors.New("EOF"))
	assert.False(t, c.IsVerified())
}

func TestMQTTConnectionSendHonoursContext(t *testing.T) {
	logger, _ := test.NewNullLogger()
	broker := newFakeBroker()
	c := NewMQTTConnection(broker, nil, logger)
	c.handle([]byte(verifiedMsg))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Send(ctx, "{}"), context.Canceled)
	assert.Empty(t, broker.published["w3cp/cp/status"])
}

type wsBackend struct {
	srv      *httptest.Server
	received chan string
	headers  chan http.Header
}

func newWSBackend(t *testing.T) *wsBackend {
	t.Helper()
	b := &wsBackend{received: make(chan string, 4), headers: make(chan http.Header, 1)}
	upgrader := websocket.Upgrader{Subprotocols: []string{Subprotocol}}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.headers <- r.Header.Clone()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if err := conn.WriteMessage(websocket.TextMessage, []byte(verifiedMsg)); err != nil {
			return
		}
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			b.received <- string(data)
		}
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func TestWSConnectionVerifiesAndSends(t *testing.T) {
	logger, _ := test.NewNullLogger()
	backend := newWSBackend(t)
	events := bus.New()
	sub := events.Subscribe()

	url := "ws" + strings.TrimPrefix(backend.srv.URL, "http")
	c := NewWSConnection(url, "CP-7", nil, time.Second, 50*time.Millisecond, events, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case ev := <-sub:
		assert.Equal(t, bus.ConnectionOpened, ev.Kind)
	case <-time.After(5 * time.Second):
		t.Fatal("connection was never verified")
	}
	assert.Equal(t, "CP-7", (<-backend.headers).Get("X-Charge-Point-Id"))

	require.NoError(t, c.Send(context.Background(), `{"type":"chargepointStatus"}`))
	select {
	case got := <-backend.received:
		assert.Equal(t, `{"type":"chargepointStatus"}`, got)
	case <-time.After(5 * time.Second):
		t.Fatal("backend did not receive status")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
	assert.False(t, c.IsVerified())
}

func TestWSConnectionSendBeforeVerification(t *testing.T) {
	logger, _ := test.NewNullLogger()
	c := NewWSConnection("ws://127.0.0.1:1", "CP", nil, time.Second, time.Second, nil, logger)
	assert.ErrorIs(t, c.Send(context.Background(), "{}"), ErrNotVerified)
}

func TestOfflineNeverSends(t *testing.T) {
	var conn Connection = Offline{}
	assert.False(t, conn.IsVerified())
	assert.ErrorIs(t, conn.Send(context.Background(), "{}"), ErrNotVerified)
}
