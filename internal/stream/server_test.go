package stream

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejoacosta74/profiler/internal/common"
	"github.com/alejoacosta74/profiler/internal/events"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestStream(t *testing.T) (*Server, *events.EventBus, *websocket.Conn, context.CancelFunc) {
	t.Helper()

	bus := events.NewEventBus()
	s := NewServer(ServerConfig{Bus: bus, Logger: quietLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	go s.broadcastLoop(ctx)

	httpServer := httptest.NewServer(s.Handler())
	t.Cleanup(httpServer.Close)

	wsURL := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.Close()
		cancel()
		bus.Shutdown()
	})

	return s, bus, conn, cancel
}

func TestStreamBroadcastsDiagnosticEvents(t *testing.T) {
	s, bus, conn, _ := newTestStream(t)

	require.Eventually(t, func() bool {
		return s.SubscriberCount() == 1
	}, time.Second, 5*time.Millisecond)

	bus.Publish(common.TypeSlowOperation, common.SlowOperationEvent{
		Operation: "db-query",
		Duration:  1500 * time.Millisecond,
		Threshold: time.Second,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame Frame
	require.NoError(t, json.Unmarshal(payload, &frame))
	assert.Equal(t, string(common.TypeSlowOperation), frame.Topic)
	assert.False(t, frame.Timestamp.IsZero())
}

func TestStreamTracksSubscribers(t *testing.T) {
	s, _, conn, _ := newTestStream(t)

	require.Eventually(t, func() bool {
		return s.SubscriberCount() == 1
	}, time.Second, 5*time.Millisecond)

	conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	conn.Close()

	require.Eventually(t, func() bool {
		return s.SubscriberCount() == 0
	}, time.Second, 5*time.Millisecond)
}
