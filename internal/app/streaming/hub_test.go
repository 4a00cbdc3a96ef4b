package streaming

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/complif/rules-engine/internal/app/domain"
	"github.com/gorilla/websocket"
)

func TestHubBroadcastsEvaluationToRoom(t *testing.T) {
	hub := NewHub(nil)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeHTTP("org-1", w, r)
	}))
	defer server.Close()

	url := "ws" + server.URL[len("http"):]
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && hub.RoomSize("org-1") == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.RoomSize("org-1") != 1 {
		t.Fatalf("expected one subscriber in org-1's room, got %d", hub.RoomSize("org-1"))
	}

	hub.PublishEvaluation("org-1", domain.EvaluationResult{ID: "eval-1", Decision: domain.DecisionAllow})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt Event
	if err := conn.ReadJSON(&evt); err != nil {
		t.Fatalf("read: %v", err)
	}
	if evt.Type != EventEvaluation || evt.Org != "org-1" {
		t.Fatalf("unexpected event envelope: %+v", evt)
	}
}

func TestHubDoesNotBroadcastAcrossOrgs(t *testing.T) {
	hub := NewHub(nil)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeHTTP("org-1", w, r)
	}))
	defer server.Close()

	url := "ws" + server.URL[len("http"):]
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && hub.RoomSize("org-1") == 0 {
		time.Sleep(10 * time.Millisecond)
	}

	hub.PublishAlert("org-2", domain.Alert{ID: "alert-1"})

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var evt Event
	if err := conn.ReadJSON(&evt); err == nil {
		t.Fatalf("expected no event for an unrelated org, got %+v", evt)
	}
}
