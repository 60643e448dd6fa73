// Package editor is the interactive layout surface for one badge
// template: it owns the in-memory document while an operator adds, moves,
// restyles and deletes elements, and persists it through a Repository.
//
// Mutations are synchronous and cannot fail. Only Save talks to the
// network, and a failed Save leaves every local edit in place.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"badge-studio/internal/models"
	"badge-studio/internal/tokens"

	"github.com/google/uuid"
)

var ErrSaveInProgress = errors.New("a save is already in progress")

// Default card size for new templates, in mm.
const (
	DefaultWidth  = 105.0
	DefaultHeight = 74.0
)

// DuplicateOffset is how far a duplicated element is shifted on each axis.
const DuplicateOffset = 5.0

// Repository persists templates. *client.Client satisfies it.
type Repository interface {
	Create(ctx context.Context, eventID int, p models.TemplatePayload) (*models.BadgeTemplate, error)
	Update(ctx context.Context, eventID, id int, p models.TemplatePayload) (*models.BadgeTemplate, error)
}

type Option func(*Editor)

// WithLogger sets the logger used for save failures.
func WithLogger(l *slog.Logger) Option {
	return func(e *Editor) { e.logger = l }
}

// WithOnSaved registers the callback run after a successful save, used by
// the gallery to refresh its list.
func WithOnSaved(fn func(*models.BadgeTemplate)) Option {
	return func(e *Editor) { e.onSaved = fn }
}

// WithIDGenerator replaces the element id source.
func WithIDGenerator(fn func() string) Option {
	return func(e *Editor) { e.newID = fn }
}

// Editor holds the state of one editing session.
type Editor struct {
	mu      sync.Mutex
	repo    Repository
	logger  *slog.Logger
	onSaved func(*models.BadgeTemplate)
	newID   func() string

	eventID    int
	templateID int
	version    int

	name            string
	description     string
	participantType models.ParticipantType
	doubleSided     bool
	badgesPerPage   int
	orientation     models.Orientation
	front           models.BadgeConfig
	back            models.BadgeConfig

	currentSide models.Side
	selectedID  string
	showGrid    bool
	saving      bool
	closed      bool
}

// New starts a session on a blank template for the event.
func New(repo Repository, eventID int, opts ...Option) *Editor {
	e := &Editor{
		repo:            repo,
		eventID:         eventID,
		participantType: models.ParticipantAll,
		badgesPerPage:   1,
		orientation:     models.OrientationPortrait,
		front:           models.NewConfig(DefaultWidth, DefaultHeight),
		back:            models.NewConfig(DefaultWidth, DefaultHeight),
	}
	e.init(opts)
	return e
}

// Open starts a session on an existing template. The template is copied;
// later edits never touch t.
func Open(repo Repository, t *models.BadgeTemplate, opts ...Option) *Editor {
	e := &Editor{
		repo:            repo,
		eventID:         t.EventID,
		templateID:      t.ID,
		version:         t.Version,
		name:            t.Name,
		description:     t.Description,
		participantType: t.ParticipantType,
		doubleSided:     t.IsDoubleSided,
		badgesPerPage:   t.BadgesPerPage,
		orientation:     t.PageOrientation,
		front:           t.FrontConfig.Clone(),
	}
	if t.BackConfig != nil {
		e.back = t.BackConfig.Clone()
	} else {
		e.back = models.NewConfig(t.FrontConfig.Width, t.FrontConfig.Height)
		e.back.Unit = t.FrontConfig.Unit
	}
	if e.front.Elements == nil {
		e.front.Elements = []models.BadgeElement{}
	}
	if e.back.Elements == nil {
		e.back.Elements = []models.BadgeElement{}
	}
	e.init(opts)
	return e
}

func (e *Editor) init(opts []Option) {
	e.currentSide = models.SideFront
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.newID == nil {
		e.newID = func() string { return "el_" + uuid.NewString() }
	}
}

// active returns the side being edited. Callers hold mu.
func (e *Editor) active() *models.BadgeConfig {
	if e.currentSide == models.SideBack && e.doubleSided {
		return &e.back
	}
	return &e.front
}

// ============ METADATA ============

func (e *Editor) TemplateID() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.templateID
}

func (e *Editor) Name() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.name
}

func (e *Editor) SetName(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.name = name
}

func (e *Editor) SetDescription(description string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.description = description
}

func (e *Editor) SetParticipantType(pt models.ParticipantType) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.participantType = pt
}

func (e *Editor) SetBadgesPerPage(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.badgesPerPage = n
}

func (e *Editor) SetOrientation(o models.Orientation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.orientation = o
}

func (e *Editor) DoubleSided() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doubleSided
}

// SetDoubleSided toggles the back side. Turning it off returns the view to
// the front; the back layout is kept in memory but not saved.
func (e *Editor) SetDoubleSided(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.doubleSided = on
	if !on && e.currentSide == models.SideBack {
		e.currentSide = models.SideFront
		e.selectedID = ""
	}
}

// ============ VIEW STATE ============

func (e *Editor) CurrentSide() models.Side {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentSide
}

// SwitchSide changes the side being edited. The back is only reachable on
// a double sided template; the call reports whether the side changed.
func (e *Editor) SwitchSide(side models.Side) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if side == models.SideBack && !e.doubleSided {
		return false
	}
	if side != models.SideFront && side != models.SideBack {
		return false
	}
	if side != e.currentSide {
		e.currentSide = side
		e.selectedID = ""
	}
	return true
}

func (e *Editor) ShowGrid() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.showGrid
}

func (e *Editor) ToggleGrid() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.showGrid = !e.showGrid
	return e.showGrid
}

func (e *Editor) Saving() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saving
}

// Closed reports whether a save has completed and the session is over.
func (e *Editor) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Config returns a copy of one side.
func (e *Editor) Config(side models.Side) models.BadgeConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	if side == models.SideBack {
		return e.back.Clone()
	}
	return e.front.Clone()
}

// Active returns a copy of the side being edited.
func (e *Editor) Active() models.BadgeConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active().Clone()
}

// Select marks an element of the active side as selected.
func (e *Editor) Select(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.active().Find(id); !ok {
		return false
	}
	e.selectedID = id
	return true
}

func (e *Editor) ClearSelection() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selectedID = ""
}

// Selected returns a copy of the selected element.
func (e *Editor) Selected() (models.BadgeElement, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.selectedID == "" {
		return models.BadgeElement{}, false
	}
	el, ok := e.active().Find(e.selectedID)
	if !ok {
		return models.BadgeElement{}, false
	}
	return el.Clone(), true
}

func (e *Editor) SelectedID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selectedID
}

// ============ SAVE ============

// Payload assembles the document Save would send.
func (e *Editor) Payload() models.TemplatePayload {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.payloadLocked()
}

func (e *Editor) payloadLocked() models.TemplatePayload {
	p := models.TemplatePayload{
		Name:            e.name,
		Description:     e.description,
		ParticipantType: e.participantType,
		IsDoubleSided:   e.doubleSided,
		BadgesPerPage:   e.badgesPerPage,
		PageOrientation: e.orientation,
		FrontConfig:     e.front.Clone(),
		Version:         e.version,
	}
	if e.doubleSided {
		back := e.back.Clone()
		p.BackConfig = &back
	}
	p.Normalize()
	return p
}

// Save validates the layout and creates or replaces the template. On any
// failure the editor state is left exactly as it was so the operator can
// retry. Only one save may be in flight.
func (e *Editor) Save(ctx context.Context) (*models.BadgeTemplate, error) {
	e.mu.Lock()
	if e.saving {
		e.mu.Unlock()
		return nil, ErrSaveInProgress
	}
	payload := e.payloadLocked()
	if err := payload.Validate(); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.saving = true
	id, eventID := e.templateID, e.eventID
	e.mu.Unlock()

	var saved *models.BadgeTemplate
	var err error
	if id == 0 {
		saved, err = e.repo.Create(ctx, eventID, payload)
	} else {
		saved, err = e.repo.Update(ctx, eventID, id, payload)
	}

	e.mu.Lock()
	e.saving = false
	if err != nil {
		e.mu.Unlock()
		e.logger.Warn("template save failed", "event_id", eventID, "template_id", id, "err", err)
		return nil, fmt.Errorf("save template: %w", err)
	}
	e.templateID = saved.ID
	e.version = saved.Version
	e.closed = true
	onSaved := e.onSaved
	e.mu.Unlock()

	if onSaved != nil {
		onSaved(saved)
	}
	return saved, nil
}

// defaultContent is the initial content of a new element.
func defaultContent(t models.ElementType) string {
	switch t {
	case models.ElementField:
		return tokens.First().Token
	case models.ElementText:
		return "Novo texto"
	default:
		return ""
	}
}
