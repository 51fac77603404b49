package training

import (
	"errors"
	"fmt"

	"backend-runtrainer/internal/export"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
)

// RegisterRoutes mounts the training history under r. All routes need the
// runner id set by authMiddleware.
func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		records, err := svc.List(c.Context(), userID, c.QueryInt("limit", defaultListLimit))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(records)
	})

	r.Get("/:id", authMiddleware, func(c *fiber.Ctx) error {
		rec, err := ownedRecord(c, svc)
		if err != nil {
			return err
		}
		return c.JSON(rec)
	})

	r.Get("/:id/export", authMiddleware, func(c *fiber.Ctx) error {
		format, err := export.ParseFormat(c.Query("format"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		rec, err := ownedRecord(c, svc)
		if err != nil {
			return err
		}

		data, err := export.Encode(format, export.Activity{
			ID:           rec.ID,
			Type:         rec.Type,
			StartedAt:    rec.StartedAt,
			DistanceKm:   rec.DistanceKm,
			DurationS:    float64(rec.DurationS),
			PaceMinPerKm: rec.PaceMinPerKm,
			Track:        rec.Track,
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}

		c.Set(fiber.HeaderContentType, format.ContentType())
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="training-%s%s"`, rec.ID, format.Extension()))
		return c.Send(data)
	})
}

// RegisterStatsRoutes mounts the public lifetime statistics under r.
func RegisterStatsRoutes(r fiber.Router, svc *Service) {
	r.Get("/:userID", func(c *fiber.Ctx) error {
		stats, err := svc.UserStats(c.Context(), c.Params("userID"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(stats)
	})
}

func ownedRecord(c *fiber.Ctx, svc *Service) (Record, error) {
	userID, err := currentUser(c)
	if err != nil {
		return Record{}, err
	}
	rec, err := svc.Get(c.Context(), c.Params("id"))
	if err != nil {
		return Record{}, httpError(err)
	}
	if rec.UserID != userID {
		return Record{}, fiber.NewError(fiber.StatusForbidden, "training belongs to another runner")
	}
	return rec, nil
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
	case errors.Is(err, ErrUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, pgx.ErrNoRows):
		return fiber.NewError(fiber.StatusNotFound, "training not found")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
