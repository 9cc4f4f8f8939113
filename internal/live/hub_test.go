package live

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"fireguard/internal/logger"
)

func TestMain(m *testing.M) {
	logger.Init("error")
	m.Run()
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	return e
}

func TestHubGreetsAndBroadcasts(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if e := readEvent(t, conn); e.Name != EventHello {
		t.Fatalf("expected hello first, got %q", e.Name)
	}

	hub.Publish(Event{Name: EventAlertNew, Payload: map[string]interface{}{"alertId": 1}})
	e := readEvent(t, conn)
	if e.Name != EventAlertNew {
		t.Fatalf("expected alert event, got %q", e.Name)
	}
	payload, ok := e.Payload.(map[string]interface{})
	if !ok || payload["alertId"] != float64(1) {
		t.Errorf("payload not preserved: %+v", e.Payload)
	}
}

func TestHubSurvivesSubscriberChurn(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	first, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	readEvent(t, first)
	first.Close()

	second, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer second.Close()
	readEvent(t, second)

	// give the hub a moment to unregister the dropped subscriber
	time.Sleep(50 * time.Millisecond)

	hub.Publish(Event{Name: EventReadingNew, Payload: map[string]interface{}{"deviceId": 2}})
	if e := readEvent(t, second); e.Name != EventReadingNew {
		t.Fatalf("expected reading event, got %q", e.Name)
	}
}

func TestPublishWithNoSubscribers(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	// nobody listening is fine
	hub.Publish(Event{Name: EventReadingNew, Payload: nil})
}
