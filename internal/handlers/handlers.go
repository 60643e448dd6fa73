// Package handlers exposes the badge service REST API over fiber.
package handlers

import (
	"errors"
	"time"

	"badge-studio/internal/cache"
	"badge-studio/internal/config"
	"badge-studio/internal/generator"
	"badge-studio/internal/models"
	"badge-studio/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

const Version = "1.0.0"

// Handler serves one template store and audience directory.
type Handler struct {
	store    storage.TemplateStore
	dir      storage.Directory
	renderer *generator.Renderer
	images   *cache.ImageCache
	gen      config.Generation
	started  time.Time
}

// New wires the handlers. images may be nil.
func New(store storage.TemplateStore, dir storage.Directory, renderer *generator.Renderer, images *cache.ImageCache, gen config.Generation) *Handler {
	return &Handler{
		store:    store,
		dir:      dir,
		renderer: renderer,
		images:   images,
		gen:      gen,
		started:  time.Now(),
	}
}

// NewApp builds the fiber application with the service middleware and
// every route mounted.
func NewApp(h *Handler, cfg *config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		ServerHeader: "Badge-Service",
		AppName:      "Badge Studio v" + Version,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: 2 * cfg.ReadTimeout,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    cfg.BodyLimitMB * 1024 * 1024,
		ErrorHandler: ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Tenant-ID",
	}))

	h.Register(app, cfg.JWTSecret)
	return app
}

// Register mounts the routes on r.
func (h *Handler) Register(r fiber.Router, secret string) {
	r.Get("/health", h.HealthCheck)

	events := r.Group("/events", Auth(secret))

	templates := events.Group("/:event_id/badge-templates")
	templates.Get("/", h.ListTemplates)
	templates.Post("/", h.CreateTemplate)
	templates.Post("/import", h.ImportTemplate)
	templates.Get("/:id", h.GetTemplate)
	templates.Put("/:id", h.UpdateTemplate)
	templates.Delete("/:id", h.DeleteTemplate)
	templates.Post("/:id/export", h.ExportTemplate)

	events.Get("/:event_id", h.GetEvent)
	events.Get("/:event_id/enrollments", h.ListEnrollments)
	events.Post("/:event_id/badges/generate", h.GenerateBadges)
	events.Post("/:event_id/badges/preview", h.PreviewBadge)

	images := r.Group("/cache", Auth(secret))
	images.Get("/stats", h.CacheStats)
	images.Post("/clear", h.ClearCache)

	r.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Not found",
			"path":  c.Path(),
		})
	})
}

// requestError is a client mistake reported with its cause.
type requestError struct {
	status  int
	message string
	cause   error
}

func (e *requestError) Error() string {
	return e.message + ": " + e.cause.Error()
}

func (e *requestError) Unwrap() error {
	return e.cause
}

func badRequest(message string, cause error) error {
	return &requestError{status: fiber.StatusBadRequest, message: message, cause: cause}
}

// ErrorHandler turns handler errors into the JSON error envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	var rerr *requestError
	var verr *models.ValidationError
	switch {
	case errors.As(err, &rerr):
		return c.Status(rerr.status).JSON(fiber.Map{
			"error":   rerr.message,
			"details": rerr.cause.Error(),
		})
	case errors.As(err, &fe):
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	case errors.As(err, &verr):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":      "Invalid template",
			"details":    verr.Error(),
			"violations": verr.Violations,
		})
	case errors.Is(err, storage.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	case errors.Is(err, storage.ErrVersionConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   "Template was modified",
			"details": "reload the template and apply your changes again",
		})
	case errors.Is(err, generator.ErrMissingSide):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":   "Template has no back side",
			"details": err.Error(),
		})
	}

	log.Errorf("%s %s: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":   "Internal server error",
		"details": err.Error(),
	})
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(models.HealthResponse{
		Status:  "healthy",
		Version: Version,
		Uptime:  time.Since(h.started).String(),
	})
}

// CacheStats returns cache statistics
func (h *Handler) CacheStats(c *fiber.Ctx) error {
	if h.images == nil {
		return c.JSON(fiber.Map{"enabled": false})
	}
	return c.JSON(h.images.Stats())
}

// ClearCache drops every cached asset
func (h *Handler) ClearCache(c *fiber.Ctx) error {
	if h.images != nil {
		if err := h.images.Clear(); err != nil {
			return err
		}
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Cache cleared",
	})
}

func eventID(c *fiber.Ctx) (int, error) {
	id, err := c.ParamsInt("event_id")
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid event id")
	}
	return id, nil
}

func templateID(c *fiber.Ctx) (int, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid template id")
	}
	return id, nil
}
