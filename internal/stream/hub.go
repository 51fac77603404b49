package stream

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"backend-runtrainer/internal/monitoring"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	clientBuffer   = 64
	outboxSize     = 256
	subscribeWait  = 2 * time.Second
	publishTimeout = 2 * time.Second
	channelPattern = "tracking:*:broadcast"
	ownerTTL       = 12 * time.Hour
)

// Hub fans live updates out to WebSocket spectators. With a redis client the
// updates are also published so hubs in other instances deliver them to
// their own spectators.
type Hub struct {
	redis      *redis.Client
	pubsub     *redis.PubSub
	instanceID string

	clients map[string]map[*Client]struct{}
	owners  map[string]string
	mu      sync.RWMutex

	outbox    chan envelope
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type Client struct {
	SessionID string
	Send      chan []byte
}

type envelope struct {
	Origin    string `json:"origin"`
	SessionID string `json:"session_id"`
	Payload   []byte `json:"payload"`
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		redis:      redisClient,
		instanceID: uuid.NewString(),
		clients:    map[string]map[*Client]struct{}{},
		owners:     map[string]string{},
		outbox:     make(chan envelope, outboxSize),
		done:       make(chan struct{}),
	}

	if redisClient == nil {
		return h
	}

	h.wg.Add(1)
	go h.publishLoop()

	ctx, cancel := context.WithTimeout(context.Background(), subscribeWait)
	defer cancel()
	pubsub := redisClient.PSubscribe(ctx, channelPattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		monitoring.Logf("redis subscribe error: %v", err)
		_ = pubsub.Close()
		return h
	}
	h.pubsub = pubsub
	h.wg.Add(1)
	go h.subscribeLoop(pubsub.Channel())
	return h
}

func (h *Hub) Register(sessionID string) *Client {
	client := &Client{
		SessionID: sessionID,
		Send:      make(chan []byte, clientBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = map[*Client]struct{}{}
	}
	h.clients[sessionID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessionClients, ok := h.clients[client.SessionID]
	if !ok {
		return
	}
	if _, ok := sessionClients[client]; !ok {
		return
	}
	delete(sessionClients, client)
	if len(sessionClients) == 0 {
		delete(h.clients, client.SessionID)
	}
	close(client.Send)
}

// Subscribers returns the number of local clients watching sessionID.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

// Broadcast delivers payload to local clients of sessionID and queues it for
// redis. It never blocks: slow clients and a full outbox drop the message.
func (h *Hub) Broadcast(sessionID string, payload []byte) {
	h.deliver(sessionID, payload)

	if h.redis == nil {
		return
	}
	select {
	case <-h.done:
	case h.outbox <- envelope{Origin: h.instanceID, SessionID: sessionID, Payload: payload}:
	default:
		monitoring.Logf("stream outbox full, dropping update for session %s", sessionID)
	}
}

// Publish encodes v as JSON and broadcasts it.
func (h *Hub) Publish(sessionID string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(sessionID, payload)
	return nil
}

// Close stops the redis goroutines. Local delivery keeps working.
func (h *Hub) Close() error {
	var err error
	h.closeOnce.Do(func() {
		close(h.done)
		if h.pubsub != nil {
			err = h.pubsub.Close()
		}
		h.wg.Wait()
	})
	return err
}

func (h *Hub) deliver(sessionID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[sessionID] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) publishLoop() {
	defer h.wg.Done()

	for {
		select {
		case <-h.done:
			return
		case env := <-h.outbox:
			data, err := json.Marshal(env)
			if err != nil {
				monitoring.Logf("stream envelope encode error: %v", err)
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			err = h.redis.Publish(ctx, redisChannel(env.SessionID), data).Err()
			cancel()
			if err != nil {
				monitoring.Logf("redis publish error: %v", err)
			}
		}
	}
}

func (h *Hub) subscribeLoop(messages <-chan *redis.Message) {
	defer h.wg.Done()

	for msg := range messages {
		var env envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			monitoring.Logf("redis message decode error on %s: %v", msg.Channel, err)
			continue
		}
		if env.Origin == h.instanceID {
			continue
		}
		sessionID := env.SessionID
		if sessionID == "" {
			sessionID = sessionIDFromChannel(msg.Channel)
		}
		h.deliver(sessionID, env.Payload)
	}
}

// ClaimSession records userID as the runner of sessionID. With redis the
// record is shared so every instance can check spectators against it.
func (h *Hub) ClaimSession(sessionID, userID string) {
	h.mu.Lock()
	h.owners[sessionID] = userID
	h.mu.Unlock()

	if h.redis == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := h.redis.Set(ctx, ownerKey(sessionID), userID, ownerTTL).Err(); err != nil {
		monitoring.Logf("redis claim session %s: %v", sessionID, err)
	}
}

// ReleaseSession drops the local owner record. The shared record expires on
// its own so late spectators can still follow the session's last events.
func (h *Hub) ReleaseSession(sessionID string) {
	h.mu.Lock()
	delete(h.owners, sessionID)
	h.mu.Unlock()
}

// SessionOwner returns the runner of sessionID as claimed on any instance.
func (h *Hub) SessionOwner(sessionID string) (string, bool) {
	h.mu.RLock()
	owner, ok := h.owners[sessionID]
	h.mu.RUnlock()
	if ok || h.redis == nil {
		return owner, ok
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	owner, err := h.redis.Get(ctx, ownerKey(sessionID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			monitoring.Logf("redis session owner %s: %v", sessionID, err)
		}
		return "", false
	}
	return owner, true
}

func ownerKey(sessionID string) string {
	return "tracking:" + sessionID + ":owner"
}

func redisChannel(sessionID string) string {
	return "tracking:" + sessionID + ":broadcast"
}

func sessionIDFromChannel(ch string) string {
	// tracking:{session}:broadcast
	const prefix = "tracking:"
	const suffix = ":broadcast"
	if len(ch) <= len(prefix)+len(suffix) {
		return ""
	}
	return ch[len(prefix) : len(ch)-len(suffix)]
}
