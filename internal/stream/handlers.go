package stream

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const writeWait = 5 * time.Second

// Authorizer reports whether userID may watch sessionID.
type Authorizer func(userID, sessionID string) error

// RegisterRoutes mounts the spectator socket. Spectators only receive; any
// inbound frame is read and discarded until the peer goes away.
func RegisterRoutes(r fiber.Router, hub *Hub, authMiddleware fiber.Handler, authorize Authorizer) {
	r.Get("/ws/:sessionID", authMiddleware, func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		userID, _ := c.Locals("user_id").(string)
		if userID == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}
		if err := authorize(userID, c.Params("sessionID")); err != nil {
			return fiber.NewError(fiber.StatusForbidden, "session not watchable")
		}
		return c.Next()
	}, websocket.New(func(c *websocket.Conn) {
		client := hub.Register(c.Params("sessionID"))
		defer hub.Unregister(client)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for msg := range client.Send {
				_ = c.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			}
		}()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
		hub.Unregister(client)
		<-done
	}))
}
