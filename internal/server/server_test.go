package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"backend-runtrainer/internal/achievement"
	"backend-runtrainer/internal/config"
	"backend-runtrainer/internal/monitoring"
	"backend-runtrainer/internal/training"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func init() {
	monitoring.SetLogger(nil)
}

func testConfig() config.Config {
	return config.Config{JWTSecret: "secret", ServerPort: ":0", ArchiveQueueSize: 4}
}

func TestHealthRoute(t *testing.T) {
	s := NewServer(testConfig(), nil, nil)
	defer s.Close(context.Background())

	req := httptest.NewRequest("GET", "/health", nil)
	resp, err := s.App.Test(req)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200 status")
	}

	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body["database"] != false || body["active_sessions"] != float64(0) {
		t.Fatalf("unexpected health body %v", body)
	}
}

func TestRoutesWithoutDatabase(t *testing.T) {
	s := NewServer(testConfig(), nil, nil)
	defer s.Close(context.Background())

	if s.Archiver != nil {
		t.Fatalf("archiver needs a database")
	}

	resp, _ := s.App.Test(httptest.NewRequest(http.MethodGet, "/stats/runner-1", nil))
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without database, got %d", resp.StatusCode)
	}

	req := httptest.NewRequest(http.MethodPost, "/tracking/calibrate", strings.NewReader(`{"accuracy":4}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ = s.App.Test(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("calibrate must work without database, got %d", resp.StatusCode)
	}

	resp, _ = s.App.Test(httptest.NewRequest(http.MethodPost, "/tracking/sessions", nil))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("tracking requires a token, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(`{"email":"a@b.c","name":"A","password":"secret"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ = s.App.Test(req)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("register without database: expected 503, got %d", resp.StatusCode)
	}

	resp, _ = s.App.Test(httptest.NewRequest(http.MethodGet, "/stream/ws/session-1", nil))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("spectating requires a token, got %d", resp.StatusCode)
	}
}

func TestAnnounceUnlocksPublishesOnSession(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	s := NewServer(testConfig(), nil, rdb)
	defer s.Close(context.Background())

	client := s.Stream.Register("session-1")
	defer s.Stream.Unregister(client)

	s.announceUnlocks(training.Record{ID: "t-1", UserID: "runner-1", SessionID: "session-1"}, []achievement.ID{achievement.Total10km})

	select {
	case msg := <-client.Send:
		var event AchievementEvent
		if err := json.Unmarshal(msg, &event); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if event.Type != "achievements_unlocked" || len(event.Achievements) != 1 || event.Achievements[0].ID != achievement.Total10km {
			t.Fatalf("unexpected event %+v", event)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("expected achievement event")
	}
}
