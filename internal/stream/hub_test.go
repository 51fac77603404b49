package stream

import (
	"testing"
	"time"

	"backend-runtrainer/internal/monitoring"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func init() {
	monitoring.SetLogger(nil)
}

func receive(t *testing.T, c *Client, timeout time.Duration) string {
	t.Helper()
	select {
	case msg := <-c.Send:
		return string(msg)
	case <-time.After(timeout):
		t.Fatalf("timeout waiting for message on %s", c.SessionID)
	}
	return ""
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(nil)
	client := hub.Register("session-1")
	defer hub.Unregister(client)

	hub.Broadcast("session-1", []byte("hello"))

	if msg := receive(t, client, 100*time.Millisecond); msg != "hello" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestHubBroadcastOtherSessionIgnored(t *testing.T) {
	hub := NewHub(nil)
	client := hub.Register("session-1")
	defer hub.Unregister(client)

	hub.Broadcast("session-2", []byte("hello"))

	select {
	case <-client.Send:
		t.Fatalf("unexpected delivery across sessions")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestHubPublishEncodesJSON(t *testing.T) {
	hub := NewHub(nil)
	client := hub.Register("s")
	defer hub.Unregister(client)

	if err := hub.Publish("s", map[string]float64{"distance_km": 1.5}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if msg := receive(t, client, 100*time.Millisecond); msg != `{"distance_km":1.5}` {
		t.Fatalf("unexpected payload %q", msg)
	}

	if err := hub.Publish("s", func() {}); err == nil {
		t.Fatalf("expected encode error")
	}
}

func TestHubSlowClientDoesNotBlock(t *testing.T) {
	hub := NewHub(nil)
	client := hub.Register("slow")
	defer hub.Unregister(client)

	done := make(chan struct{})
	go func() {
		for i := 0; i < clientBuffer*2; i++ {
			hub.Broadcast("slow", []byte("x"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("broadcast blocked on a full client buffer")
	}
	if len(client.Send) != clientBuffer {
		t.Fatalf("expected buffer full, got %d", len(client.Send))
	}
}

func TestHubHelpers(t *testing.T) {
	ch := redisChannel("abc")
	if ch != "tracking:abc:broadcast" {
		t.Fatalf("unexpected channel %q", ch)
	}
	if sessionIDFromChannel(ch) != "abc" {
		t.Fatalf("unexpected session id")
	}
	if sessionIDFromChannel("bad") != "" {
		t.Fatalf("expected empty session id")
	}
}

func TestUnregisterCloses(t *testing.T) {
	hub := NewHub(nil)
	client := hub.Register("session-2")
	if hub.Subscribers("session-2") != 1 {
		t.Fatalf("expected one subscriber")
	}
	hub.Unregister(client)
	hub.Unregister(client)

	if _, ok := <-client.Send; ok {
		t.Fatalf("expected channel closed")
	}
	if hub.Subscribers("session-2") != 0 {
		t.Fatalf("expected no subscribers")
	}
}

func TestHubRedisFanOutAcrossInstances(t *testing.T) {
	s := miniredis.RunT(t)
	rdbA := redis.NewClient(&redis.Options{Addr: s.Addr()})
	rdbB := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rdbA.Close()
	defer rdbB.Close()

	hubA := NewHub(rdbA)
	defer hubA.Close()
	hubB := NewHub(rdbB)
	defer hubB.Close()

	local := hubA.Register("run-1")
	defer hubA.Unregister(local)
	remote := hubB.Register("run-1")
	defer hubB.Unregister(remote)

	hubA.Broadcast("run-1", []byte("ping"))

	if msg := receive(t, local, 200*time.Millisecond); msg != "ping" {
		t.Fatalf("unexpected local message %q", msg)
	}
	if msg := receive(t, remote, time.Second); msg != "ping" {
		t.Fatalf("unexpected remote message %q", msg)
	}

	// the origin hub must not deliver its own update a second time
	select {
	case msg := <-local.Send:
		t.Fatalf("duplicate local delivery %q", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubRedisIgnoresForeignPayloads(t *testing.T) {
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rdb.Close()

	hub := NewHub(rdb)
	defer hub.Close()
	client := hub.Register("run-2")
	defer hub.Unregister(client)

	s.Publish(redisChannel("run-2"), "not-json")

	select {
	case msg := <-client.Send:
		t.Fatalf("unexpected delivery %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubRedisUnavailable(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	server.Close()
	defer client.Close()

	hub := NewHub(client)
	defer hub.Close()
	node := hub.Register("session-bad")
	defer hub.Unregister(node)

	hub.Broadcast("session-bad", []byte("ping"))
	if msg := receive(t, node, 100*time.Millisecond); msg != "ping" {
		t.Fatalf("local delivery must survive a redis outage")
	}
}

func TestHubCloseIdempotent(t *testing.T) {
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rdb.Close()

	hub := NewHub(rdb)
	if err := hub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := hub.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	hub.Broadcast("after-close", []byte("x"))
}

func TestHubSessionOwnerLocal(t *testing.T) {
	hub := NewHub(nil)

	if _, ok := hub.SessionOwner("session-1"); ok {
		t.Fatalf("unclaimed session must have no owner")
	}

	hub.ClaimSession("session-1", "runner-1")
	if owner, ok := hub.SessionOwner("session-1"); !ok || owner != "runner-1" {
		t.Fatalf("expected runner-1, got %q %v", owner, ok)
	}

	hub.ReleaseSession("session-1")
	if _, ok := hub.SessionOwner("session-1"); ok {
		t.Fatalf("released session must have no owner without redis")
	}
}

func TestHubSessionOwnerSharedAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	rdbA := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rdbB := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdbA.Close()
	defer rdbB.Close()

	a := NewHub(rdbA)
	b := NewHub(rdbB)
	defer a.Close()
	defer b.Close()

	a.ClaimSession("session-1", "runner-1")

	if owner, ok := b.SessionOwner("session-1"); !ok || owner != "runner-1" {
		t.Fatalf("expected owner visible on other instance, got %q %v", owner, ok)
	}
	if ttl := mr.TTL(ownerKey("session-1")); ttl != ownerTTL {
		t.Fatalf("expected owner record ttl %v, got %v", ownerTTL, ttl)
	}

	a.ReleaseSession("session-1")
	if owner, ok := a.SessionOwner("session-1"); !ok || owner != "runner-1" {
		t.Fatalf("shared owner record must outlive the local one, got %q %v", owner, ok)
	}
}
