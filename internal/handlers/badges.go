package handlers

import (
	"context"
	"fmt"

	"badge-studio/internal/generator"
	"badge-studio/internal/models"
	"badge-studio/internal/tokens"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// ============ AUDIENCE ============

func (h *Handler) GetEvent(c *fiber.Ctx) error {
	eid, err := eventID(c)
	if err != nil {
		return err
	}
	ev, err := h.dir.Event(c.UserContext(), tenantID(c), eid)
	if err != nil {
		return err
	}
	return c.JSON(ev)
}

// ListEnrollments returns every enrollment of an event, unpaginated.
func (h *Handler) ListEnrollments(c *fiber.Ctx) error {
	eid, err := eventID(c)
	if err != nil {
		return err
	}
	list, err := h.dir.Enrollments(c.UserContext(), tenantID(c), eid)
	if err != nil {
		return err
	}
	return c.JSON(models.EnrollmentList{Total: len(list), Enrollments: list})
}

// audience is an event and the people that can be printed for it.
type audience struct {
	event       *models.Event
	enrollments map[int]models.Enrollment
	speakers    []models.Participant
}

func (h *Handler) loadAudience(ctx context.Context, tenant, eid int) (*audience, error) {
	ev, err := h.dir.Event(ctx, tenant, eid)
	if err != nil {
		return nil, err
	}
	list, err := h.dir.Enrollments(ctx, tenant, eid)
	if err != nil {
		return nil, err
	}
	speakers, err := h.dir.Speakers(ctx, tenant, eid)
	if err != nil {
		return nil, err
	}
	a := &audience{event: ev, enrollments: make(map[int]models.Enrollment, len(list)), speakers: speakers}
	for _, e := range list {
		a.enrollments[e.ID] = e
	}
	return a, nil
}

func (a *audience) badge(p models.Participant, e *models.Enrollment) generator.Badge {
	return generator.Badge{
		Values:   tokens.ValuesFor(*a.event, p, e),
		PhotoURL: p.PhotoURL,
		Label:    p.Name,
	}
}

// resolve maps an id from a request to a badge: enrollment ids first,
// then the participant ids of the event's speakers.
func (a *audience) resolve(id int) (generator.Badge, int, bool) {
	if e, ok := a.enrollments[id]; ok {
		return a.badge(e.Participant, &e), e.Participant.ID, true
	}
	for _, s := range a.speakers {
		if s.ID == id {
			return a.badge(s, nil), s.ID, true
		}
	}
	return generator.Badge{}, 0, false
}

// ============ GENERATION ============

// GenerateBadges renders the requested people with one template as a
// sheet PDF or a zip of per-person PDFs.
func (h *Handler) GenerateBadges(c *fiber.Ctx) error {
	if !h.gen.Enabled {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{
			"error": "Badge generation is not available",
		})
	}
	eid, err := eventID(c)
	if err != nil {
		return err
	}

	var req models.GenerationRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("Invalid request body", err)
	}
	if req.Format == "" {
		req.Format = models.FormatPDF
	}
	if req.Format != models.FormatPDF && req.Format != models.FormatZIP {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Unsupported format %q", req.Format))
	}
	if len(req.ParticipantIDs) == 0 && !req.IncludeSpeakers {
		return fiber.NewError(fiber.StatusBadRequest, "No participants provided")
	}

	ctx := c.UserContext()
	tenant := tenantID(c)
	tpl, err := h.store.Get(ctx, tenant, eid, req.TemplateID)
	if err != nil {
		return err
	}
	a, err := h.loadAudience(ctx, tenant, eid)
	if err != nil {
		return err
	}
	if !a.event.DeliveryMode.OffersBadges() {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "Event does not offer printed badges")
	}

	badges := make([]generator.Badge, 0, len(req.ParticipantIDs))
	printed := make(map[int]bool)
	for _, id := range req.ParticipantIDs {
		b, pid, ok := a.resolve(id)
		if !ok {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Unknown participant %d", id))
		}
		badges = append(badges, b)
		printed[pid] = true
	}
	if req.IncludeSpeakers {
		for _, s := range a.speakers {
			if !printed[s.ID] {
				badges = append(badges, a.badge(s, nil))
				printed[s.ID] = true
			}
		}
	}
	if len(badges) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "No participants provided")
	}
	if len(badges) > h.gen.MaxBatch {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Maximum %d badges per batch", h.gen.MaxBatch))
	}

	var data []byte
	if req.Format == models.FormatZIP {
		data, err = h.renderer.Zip(tpl, badges, req.DoubleSided)
	} else {
		data, err = h.renderer.Sheet(tpl, badges, req.DoubleSided)
	}
	if err != nil {
		return err
	}
	log.Infof("generated %d badges with template %d (%s)", len(badges), tpl.ID, req.Format)

	contentType := "application/pdf"
	if req.Format == models.FormatZIP {
		contentType = "application/zip"
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%s", models.BadgesFileName(tpl.Name, req.Format)))
	return c.Send(data)
}

// PreviewBadge renders one side of a template, filled with a person's data
// or with the token labels when no participant is given.
func (h *Handler) PreviewBadge(c *fiber.Ctx) error {
	eid, err := eventID(c)
	if err != nil {
		return err
	}
	var req models.PreviewRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("Invalid request body", err)
	}
	if req.Side == "" {
		req.Side = models.SideFront
	}
	if req.Side != models.SideFront && req.Side != models.SideBack {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Unknown side %q", req.Side))
	}
	if req.Format == "" {
		req.Format = models.FormatPDF
	}

	ctx := c.UserContext()
	tenant := tenantID(c)
	tpl, err := h.store.Get(ctx, tenant, eid, req.TemplateID)
	if err != nil {
		return err
	}

	b := generator.SampleBadge()
	if req.ParticipantID != nil {
		a, err := h.loadAudience(ctx, tenant, eid)
		if err != nil {
			return err
		}
		var ok bool
		if b, _, ok = a.resolve(*req.ParticipantID); !ok {
			return fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("Unknown participant %d", *req.ParticipantID))
		}
	}

	switch req.Format {
	case models.FormatPDF:
		data, err := h.renderer.PreviewPDF(tpl, b, req.Side)
		if err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, "application/pdf")
		return c.Send(data)
	case models.FormatPNG:
		data, err := h.renderer.PreviewPNG(tpl, b, req.Side)
		if err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, "image/png")
		return c.Send(data)
	default:
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Unsupported format %q", req.Format))
	}
}
