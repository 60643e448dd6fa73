package handlers

import (
	"encoding/json"
	"fmt"

	"badge-studio/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ============ TEMPLATE CRUD ============

// ListTemplates returns every template of an event.
func (h *Handler) ListTemplates(c *fiber.Ctx) error {
	eid, err := eventID(c)
	if err != nil {
		return err
	}
	list, err := h.store.List(c.UserContext(), tenantID(c), eid)
	if err != nil {
		return err
	}
	return c.JSON(models.TemplateList{Total: len(list), Templates: list})
}

func (h *Handler) GetTemplate(c *fiber.Ctx) error {
	eid, err := eventID(c)
	if err != nil {
		return err
	}
	id, err := templateID(c)
	if err != nil {
		return err
	}
	tpl, err := h.store.Get(c.UserContext(), tenantID(c), eid, id)
	if err != nil {
		return err
	}
	return c.JSON(tpl)
}

func parsePayload(c *fiber.Ctx) (models.TemplatePayload, error) {
	var p models.TemplatePayload
	if err := c.BodyParser(&p); err != nil {
		return p, badRequest("Invalid request body", err)
	}
	p.Normalize()
	return p, nil
}

// CreateTemplate stores a new template. Layout violations answer 422.
func (h *Handler) CreateTemplate(c *fiber.Ctx) error {
	eid, err := eventID(c)
	if err != nil {
		return err
	}
	p, err := parsePayload(c)
	if err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	p.Version = 0

	tpl, err := h.store.Create(c.UserContext(), tenantID(c), eid, p)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(tpl)
}

// UpdateTemplate replaces a template. The body must carry the version it
// was loaded at; a stale version answers 409.
func (h *Handler) UpdateTemplate(c *fiber.Ctx) error {
	eid, err := eventID(c)
	if err != nil {
		return err
	}
	id, err := templateID(c)
	if err != nil {
		return err
	}
	p, err := parsePayload(c)
	if err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}

	tpl, err := h.store.Update(c.UserContext(), tenantID(c), eid, id, p)
	if err != nil {
		return err
	}
	return c.JSON(tpl)
}

func (h *Handler) DeleteTemplate(c *fiber.Ctx) error {
	eid, err := eventID(c)
	if err != nil {
		return err
	}
	id, err := templateID(c)
	if err != nil {
		return err
	}
	if err := h.store.Delete(c.UserContext(), tenantID(c), eid, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ============ IMPORT / EXPORT ============

// ExportTemplate returns the template content as a JSON document that
// ImportTemplate accepts back.
func (h *Handler) ExportTemplate(c *fiber.Ctx) error {
	eid, err := eventID(c)
	if err != nil {
		return err
	}
	id, err := templateID(c)
	if err != nil {
		return err
	}
	tpl, err := h.store.Get(c.UserContext(), tenantID(c), eid, id)
	if err != nil {
		return err
	}

	doc := tpl.Payload()
	doc.Version = 0
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%s", models.ExportFileName(tpl.Name)))
	return c.Send(data)
}

// ImportTemplate creates a template from an exported document, optionally
// under a new name.
func (h *Handler) ImportTemplate(c *fiber.Ctx) error {
	eid, err := eventID(c)
	if err != nil {
		return err
	}
	var req models.ImportRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("Invalid request body", err)
	}
	if req.EventID != 0 && req.EventID != eid {
		return fiber.NewError(fiber.StatusBadRequest, "event_id does not match the path")
	}

	p, err := decodeTemplateData(req.TemplateData)
	if err != nil {
		return badRequest("Invalid template file", err)
	}
	if req.NameOverride != "" {
		p.Name = req.NameOverride
	}
	p.Version = 0
	p.Normalize()
	if err := p.Validate(); err != nil {
		return err
	}

	tpl, err := h.store.Create(c.UserContext(), tenantID(c), eid, p)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(tpl)
}

// decodeTemplateData accepts the exported document either as a JSON
// object or as a string holding it.
func decodeTemplateData(data any) (models.TemplatePayload, error) {
	var p models.TemplatePayload
	var raw []byte
	switch v := data.(type) {
	case nil:
		return p, fmt.Errorf("template_data is required")
	case string:
		raw = []byte(v)
	case map[string]interface{}:
		b, err := json.Marshal(v)
		if err != nil {
			return p, err
		}
		raw = b
	default:
		return p, fmt.Errorf("template_data must be an object")
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, err
	}
	return p, nil
}
