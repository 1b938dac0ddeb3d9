package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/prabalshrestha/grade-lens/internal/config"
	"github.com/prabalshrestha/grade-lens/internal/grading"
	"github.com/prabalshrestha/grade-lens/internal/pipeline"
)

// HealthResponse is the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
}

// HealthCheck returns a handler that reports application health.
func HealthCheck(cfg config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		})
	}
}

// GradingHandler exposes the batch pipeline over HTTP.
type GradingHandler struct {
	runner      *pipeline.BatchRunner
	defaultMode string
	logger      zerolog.Logger
}

func NewGradingHandler(runner *pipeline.BatchRunner, defaultMode string, logger zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		runner:      runner,
		defaultMode: defaultMode,
		logger:      logger.With().Str("component", "grading_handler").Logger(),
	}
}

// Register attaches grading endpoints to the router group.
func (h *GradingHandler) Register(router fiber.Router) {
	router.Get("/assignments", h.listAssignments)
	router.Post("/assignments/:id/grade", h.grade)
	router.Get("/assignments/:id/results", h.results)
}

func (h *GradingHandler) listAssignments(c *fiber.Ctx) error {
	ids, err := h.runner.ListAssignments()
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list assignments")
		return fiber.NewError(fiber.StatusInternalServerError, "failed to list assignments")
	}

	return c.JSON(fiber.Map{"assignments": ids})
}

// grade starts a run in the background and returns immediately; batch
// grading takes minutes, not request timescales.
func (h *GradingHandler) grade(c *fiber.Ctx) error {
	assignmentID := c.Params("id")
	mode := string(grading.ParseMode(h.defaultMode, h.logger))

	go func() {
		ctx := context.Background()
		result, err := h.runner.Run(ctx, assignmentID, mode)
		if err != nil {
			h.logger.Error().
				Err(err).
				Str("assignment_id", assignmentID).
				Msg("grading run failed")
			return
		}
		h.logger.Info().
			Str("run_id", result.RunID).
			Str("assignment_id", assignmentID).
			Int("students", len(result.Grades)).
			Msg("grading run finished")
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status":        "started",
		"assignment_id": assignmentID,
		"mode":          mode,
	})
}

func (h *GradingHandler) results(c *fiber.Ctx) error {
	assignmentID := c.Params("id")
	mode := c.Query("mode", h.defaultMode)

	summary, err := h.runner.LatestSummary(assignmentID, mode)
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "no results for assignment")
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	return c.Send(summary)
}
