package server

import (
	"context"
	"errors"

	"backend-runtrainer/internal/achievement"
	"backend-runtrainer/internal/auth"
	"backend-runtrainer/internal/config"
	"backend-runtrainer/internal/db"
	"backend-runtrainer/internal/monitoring"
	"backend-runtrainer/internal/stream"
	"backend-runtrainer/internal/tracking"
	"backend-runtrainer/internal/training"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App      *fiber.App
	Cfg      config.Config
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Stream   *stream.Hub
	Registry *tracking.Registry
	Archiver *training.Archiver
}

// AchievementEvent is published on a session channel when the training that
// session produced unlocks achievements.
type AchievementEvent struct {
	Type         string                    `json:"type"`
	TrainingID   string                    `json:"training_id"`
	Achievements []achievement.Achievement `json:"achievements"`
}

func NewServer(cfg config.Config, pool *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:      app,
		Cfg:      cfg,
		DB:       pool,
		Redis:    redisClient,
		Stream:   stream.NewHub(redisClient),
		Registry: tracking.NewRegistry(cfg.GPS()),
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":          "ok",
			"active_sessions": s.Registry.Len(),
			"database":        s.DB != nil,
		})
	})

	// a nil pool must stay a nil interface so services report ErrUnavailable
	var q db.Querier
	if s.DB != nil {
		q = s.DB
	}

	trainings := training.NewService(q)
	var archiver tracking.Archiver
	if q != nil {
		s.Archiver = training.NewArchiver(trainings, s.Cfg.ArchiveQueueSize, s.announceUnlocks)
		archiver = s.Archiver
	}

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)
	tracker := tracking.NewService(s.Registry, s.Stream, archiver, s.Cfg.SingleSessionPerUser)

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, q))
	tracking.RegisterRoutes(s.App.Group("/tracking"), tracker, jwtMiddleware)
	training.RegisterRoutes(s.App.Group("/trainings"), trainings, jwtMiddleware)
	training.RegisterStatsRoutes(s.App.Group("/stats"), trainings)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream, jwtMiddleware, tracker.CanWatch)
}

func (s *Server) announceUnlocks(rec training.Record, unlocked []achievement.ID) {
	event := AchievementEvent{Type: "achievements_unlocked", TrainingID: rec.ID}
	for _, id := range unlocked {
		if a, ok := achievement.Lookup(id); ok {
			event.Achievements = append(event.Achievements, a)
		}
	}
	monitoring.Logf("runner %s unlocked %d achievement(s)", rec.UserID, len(event.Achievements))
	if rec.SessionID == "" {
		return
	}
	if err := s.Stream.Publish(rec.SessionID, event); err != nil {
		monitoring.Logf("publish achievements for %s: %v", rec.SessionID, err)
	}
}

// Close drains the archiver and stops the stream hub. The HTTP app is shut
// down separately.
func (s *Server) Close(ctx context.Context) error {
	var errs []error
	if s.Archiver != nil {
		if err := s.Archiver.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.Stream.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
