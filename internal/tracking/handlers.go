package tracking

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// Device socket message types.
const (
	MessageFix       = "fix"
	MessageCalibrate = "calibrate"
	MessageStop      = "stop"
	MessageError     = "error"
)

// DeviceMessage is an inbound device socket frame. An empty Type is a fix.
type DeviceMessage struct {
	Type string `json:"type"`
	FixPayload
}

// DeviceReply is an outbound device socket frame. Exactly one of the payload
// fields is set, matching Type.
type DeviceReply struct {
	Type        string             `json:"type"`
	Result      *IngestResult      `json:"result,omitempty"`
	Calibration *CalibrateResponse `json:"calibration,omitempty"`
	Summary     *FinalSummary      `json:"summary,omitempty"`
	Error       string             `json:"error,omitempty"`
}

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/sessions", authMiddleware, func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		var req StartRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}
		info, err := svc.StartSession(userID, req.ActivityType)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"session_id": info.ID,
			"status":     "started",
			"type":       info.ActivityType,
			"started_at": info.StartedAt,
		})
	})

	r.Get("/sessions/current", authMiddleware, func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		info, err := svc.Current(userID)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(info)
	})

	r.Post("/sessions/:id/fixes", authMiddleware, func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		var req FixPayload
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		res, err := svc.Ingest(userID, c.Params("id"), req)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(res)
	})

	r.Get("/sessions/:id/stats", authMiddleware, func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		stats, err := svc.Stats(userID, c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(stats)
	})

	r.Post("/sessions/:id/stop", authMiddleware, func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		summary, err := svc.Stop(userID, c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(summary)
	})

	r.Post("/calibrate", func(c *fiber.Ctx) error {
		var req CalibrateRequest
		if err := c.BodyParser(&req); err != nil || req.Accuracy == nil {
			return fiber.NewError(fiber.StatusBadRequest, "accuracy required")
		}
		return c.JSON(Calibrate(*req.Accuracy))
	})

	r.Get("/sessions/:id/ws", authMiddleware, func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if _, err := currentUser(c); err != nil {
			return err
		}
		return c.Next()
	}, websocket.New(func(c *websocket.Conn) {
		userID, _ := c.Locals("user_id").(string)
		serveDevice(c, svc, userID, c.Params("id"))
	}))
}

// serveDevice reads device frames until the peer leaves or the session
// stops. Each frame gets exactly one reply.
func serveDevice(c *websocket.Conn, svc *Service, userID, sessionID string) {
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}

		var msg DeviceMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			if writeReply(c, DeviceReply{Type: MessageError, Error: ErrInvalidFix.Error()}) != nil {
				return
			}
			continue
		}

		var reply DeviceReply
		done := false
		switch msg.Type {
		case "", MessageFix:
			res, err := svc.Ingest(userID, sessionID, msg.FixPayload)
			if err != nil {
				reply = DeviceReply{Type: MessageError, Error: err.Error()}
				done = !errors.Is(err, ErrInvalidFix)
				break
			}
			reply = DeviceReply{Type: MessageFix, Result: &res}
		case MessageCalibrate:
			if msg.Accuracy == nil {
				reply = DeviceReply{Type: MessageError, Error: "accuracy required"}
				break
			}
			cal := Calibrate(*msg.Accuracy)
			reply = DeviceReply{Type: MessageCalibrate, Calibration: &cal}
		case MessageStop:
			summary, err := svc.Stop(userID, sessionID)
			if err != nil {
				reply = DeviceReply{Type: MessageError, Error: err.Error()}
			} else {
				reply = DeviceReply{Type: MessageStop, Summary: &summary}
			}
			done = true
		default:
			reply = DeviceReply{Type: MessageError, Error: "unknown message type " + msg.Type}
		}

		if err := writeReply(c, reply); err != nil || done {
			return
		}
	}
}

func writeReply(c *websocket.Conn, reply DeviceReply) error {
	data, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, data)
}

func currentUser(c *fiber.Ctx) (string, error) {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return "", fiber.NewError(fiber.StatusUnauthorized, "missing user")
	}
	return userID, nil
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidFix):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNoActiveSession):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotOwner):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, ErrAlreadyActive):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
