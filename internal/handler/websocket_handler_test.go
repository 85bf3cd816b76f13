package handler

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"

	"escpos-service/internal/model"
	"escpos-service/internal/repository"
	"escpos-service/internal/service"
)

func setupWebSocketServer(t *testing.T) (*WebSocketHandler, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zaptest.NewLogger(t)
	svc := service.NewJobService(repository.NewMemoryJobRepository(logger), testConfig(), nil, logger)
	bus := NewEventBus(logger)
	h := NewWebSocketHandler(svc, bus, []string{"*"}, logger)

	router := gin.New()
	h.RegisterRoutes(router.Group("/ws"))
	server := httptest.NewServer(router)
	t.Cleanup(func() {
		h.Stop()
		server.Close()
	})

	return h, "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/jobs"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]interface{}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestWebSocket_InitialStateAndBroadcast(t *testing.T) {
	h, url := setupWebSocketServer(t)
	conn := dial(t, url)

	msg := readMessage(t, conn)
	if msg["type"] != "initial_state" {
		t.Fatalf("first message = %v, want initial_state", msg["type"])
	}
	data := msg["data"].(map[string]interface{})
	if data["code_page"] != "utf8" {
		t.Errorf("code_page = %v", data["code_page"])
	}

	h.BroadcastJobEvent(model.NewJobEvent(model.EventJobsCleared, nil, model.JSONObject{"deleted": 3}))

	msg = readMessage(t, conn)
	if msg["type"] != "job_event" {
		t.Fatalf("message = %v, want job_event", msg["type"])
	}
	event := msg["data"].(map[string]interface{})
	if event["event_type"] != string(model.EventJobsCleared) {
		t.Errorf("event_type = %v", event["event_type"])
	}

	if stats := h.GetConnectionStats(); stats.TotalConnections != 1 {
		t.Errorf("connections = %d, want 1", stats.TotalConnections)
	}
}

func TestWebSocket_Subscriptions(t *testing.T) {
	h, url := setupWebSocketServer(t)
	conn := dial(t, url+"?event="+string(model.EventJobCaptured))
	readMessage(t, conn)

	h.BroadcastJobEvent(model.NewJobEvent(model.EventJobsCleared, nil, nil))
	h.BroadcastJobEvent(model.NewJobEvent(model.EventJobCaptured, nil, nil))

	msg := readMessage(t, conn)
	event := msg["data"].(map[string]interface{})
	if event["event_type"] != string(model.EventJobCaptured) {
		t.Errorf("event_type = %v, want only subscribed events", event["event_type"])
	}

	if err := conn.WriteJSON(map[string]interface{}{"type": "ping"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readMessage(t, conn); msg["type"] != "pong" {
		t.Errorf("reply = %v, want pong", msg["type"])
	}

	conn.WriteJSON(map[string]interface{}{"type": "subscribe"})
	if msg := readMessage(t, conn); msg["type"] != "error" {
		t.Errorf("reply = %v, want error", msg["type"])
	}
}

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus(zaptest.NewLogger(t))
	events, cancel := bus.Subscribe()
	go bus.Start()
	defer bus.Stop()

	bus.Publish(model.NewJobEvent(model.EventJobDeleted, nil, nil))

	select {
	case event := <-events:
		if event.EventType != model.EventJobDeleted {
			t.Errorf("event = %s", event.EventType)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}

	cancel()
	if _, ok := <-events; ok {
		t.Error("expected closed channel after cancel")
	}
}

func TestEventBus_StopClosesSubscribers(t *testing.T) {
	bus := NewEventBus(nil)
	events, cancel := bus.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		bus.Start()
		close(done)
	}()
	bus.Stop()
	<-done

	if _, ok := <-events; ok {
		t.Error("expected closed channel after Stop")
	}
}
