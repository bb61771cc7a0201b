package export

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"hpl3-export/core/logger"
	"hpl3-export/core/reconcile"
)

// Handler handles HTTP requests for the export feature.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, logger: service.logger}
}

// RegisterRoutes registers the export routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/export")
	group.Post("/run", h.HandleRun)
	group.Post("/reconcile", h.HandleReconcile)
	group.Get("/status", h.HandleStatus)
}

type runRequest struct {
	Objects       []SceneObject `json:"objects"`
	SyncDeletions bool          `json:"sync_deletions"`
	DryRun        bool          `json:"dry_run"`
}

type reconcileRequest struct {
	Live      []string `json:"live"`
	DryRun    bool     `json:"dry_run"`
	Confirmed bool     `json:"confirmed"`
}

// HandleRun executes an export pass for the posted scene objects.
func (h *Handler) HandleRun(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)

	var req runRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	res, err := h.service.RunExportPass(c.Context(), req.Objects, PassOptions{
		SyncDeletions: req.SyncDeletions,
		DryRun:        req.DryRun,
	})
	if err != nil {
		l.Error("Export pass failed", zap.Error(err))
		var toolErr *ExternalToolError
		if errors.As(err, &toolErr) {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error":  toolErr.Error(),
				"tool":   toolErr.Tool,
				"output": toolErr.Output,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(res)
}

// HandleReconcile plans and optionally applies orphan removal for the
// posted live scene names.
func (h *Handler) HandleReconcile(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)

	var req reconcileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	report, err := h.service.Reconcile(c.Context(), req.Live, reconcile.Options{
		DryRun:    req.DryRun,
		Confirmed: req.Confirmed,
	})
	if err != nil {
		l.Error("Reconcile failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(report)
}

// HandleStatus reports the tracked state of the configured map.
func (h *Handler) HandleStatus(c *fiber.Ctx) error {
	status, err := h.service.Status()
	if err != nil {
		logger.WithRayID(h.logger, c).Error("Status failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(status)
}
