package publish

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"hpl3-export/core/logger"
)

// Handler handles HTTP requests for the publish feature.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the publish routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/publish")
	group.Post("/run", h.HandleRun)
}

// HandleRun mirrors the committed export output into the bucket.
func (h *Handler) HandleRun(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var opts Options
	if err := c.BodyParser(&opts); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	res, err := h.service.Publish(c.Context(), opts)
	if err != nil {
		l.Error("Publish failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(res)
}
