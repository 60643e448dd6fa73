// Package gallery lists the badge templates of an event and routes the
// operator to the editor or the generation screen.
package gallery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"badge-studio/internal/client"
	"badge-studio/internal/editor"
	"badge-studio/internal/models"
	"badge-studio/internal/orchestrator"
)

var (
	// ErrUnavailable means the event's delivery mode has no printed
	// badges. The gallery does not exist for such events.
	ErrUnavailable = errors.New("badges are not offered for this event")
	ErrCancelled   = errors.New("cancelled by operator")
	ErrUnknown     = errors.New("template not in gallery")
	ErrBusy        = errors.New("another operation is in progress")
)

// Backend is everything the gallery needs from the badge service.
// *client.Client satisfies it.
type Backend interface {
	editor.Repository
	orchestrator.Renderer
	orchestrator.Audience
	Event(ctx context.Context, eventID int) (*models.Event, error)
	List(ctx context.Context, eventID int) (*models.TemplateList, error)
	Get(ctx context.Context, eventID, id int) (*models.BadgeTemplate, error)
	Delete(ctx context.Context, eventID, id int) error
	Duplicate(ctx context.Context, src *models.BadgeTemplate) (*models.BadgeTemplate, error)
	Export(ctx context.Context, eventID, id int) ([]byte, error)
	Import(ctx context.Context, eventID int, doc any, nameOverride string) (*models.BadgeTemplate, error)
}

// Prompter asks the operator to confirm destructive or naming actions.
type Prompter interface {
	Confirm(message string) bool
	// PromptName offers a name for an imported template. ok=false
	// cancels the import.
	PromptName(suggested string) (name string, ok bool)
}

type Option func(*Gallery)

func WithLogger(l *slog.Logger) Option {
	return func(g *Gallery) { g.logger = l }
}

func WithDownloader(d orchestrator.Downloader) Option {
	return func(g *Gallery) { g.downloader = d }
}

type Gallery struct {
	backend    Backend
	prompter   Prompter
	downloader orchestrator.Downloader
	logger     *slog.Logger
	event      models.Event

	mu        sync.Mutex
	templates []models.BadgeTemplate
	total     int
	loading   bool
	deleting  bool
	importing bool
	exporting bool
}

// Open builds the gallery for an event. Events whose delivery mode has
// no badges get ErrUnavailable and no gallery at all.
func Open(ctx context.Context, backend Backend, prompter Prompter, eventID int, opts ...Option) (*Gallery, error) {
	ev, err := backend.Event(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load event %d: %w", eventID, err)
	}
	if !ev.DeliveryMode.OffersBadges() {
		return nil, fmt.Errorf("%w: delivery mode %q", ErrUnavailable, ev.DeliveryMode)
	}

	g := &Gallery{backend: backend, prompter: prompter, event: *ev}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	if err := g.Refresh(ctx); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Gallery) Event() models.Event {
	return g.event
}

// Refresh reloads the template list.
func (g *Gallery) Refresh(ctx context.Context) error {
	g.mu.Lock()
	if g.loading {
		g.mu.Unlock()
		return nil
	}
	g.loading = true
	g.mu.Unlock()

	list, err := g.backend.List(ctx, g.event.ID)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.loading = false
	if err != nil {
		return fmt.Errorf("list templates: %w", err)
	}
	g.templates = list.Templates
	g.total = list.Total
	return nil
}

// Templates returns a copy of the current list.
func (g *Gallery) Templates() []models.BadgeTemplate {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]models.BadgeTemplate, len(g.templates))
	copy(out, g.templates)
	return out
}

func (g *Gallery) Total() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.total
}

func (g *Gallery) find(id int) (models.BadgeTemplate, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, t := range g.templates {
		if t.ID == id {
			return t, true
		}
	}
	return models.BadgeTemplate{}, false
}

// ============ ROUTING ============

func (g *Gallery) editorOptions() []editor.Option {
	return []editor.Option{
		editor.WithLogger(g.logger),
		editor.WithOnSaved(func(*models.BadgeTemplate) {
			if err := g.Refresh(context.Background()); err != nil {
				g.logger.Warn("gallery refresh after save failed", "event_id", g.event.ID, "err", err)
			}
		}),
	}
}

// Create opens the editor on a blank template.
func (g *Gallery) Create() *editor.Editor {
	return editor.New(g.backend, g.event.ID, g.editorOptions()...)
}

// Edit fetches the latest copy of a template and opens the editor on it.
func (g *Gallery) Edit(ctx context.Context, id int) (*editor.Editor, error) {
	t, err := g.backend.Get(ctx, g.event.ID, id)
	if err != nil {
		return nil, fmt.Errorf("load template %d: %w", id, err)
	}
	return editor.Open(g.backend, t, g.editorOptions()...), nil
}

// Generate opens the generation screen for a template.
func (g *Gallery) Generate(id int) (*orchestrator.Orchestrator, error) {
	t, ok := g.find(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknown, id)
	}
	opts := []orchestrator.Option{orchestrator.WithLogger(g.logger)}
	if g.downloader != nil {
		opts = append(opts, orchestrator.WithDownloader(g.downloader))
	}
	return orchestrator.New(&t, g.backend, g.backend, opts...), nil
}

// ============ ACTIONS ============

// Delete removes a template after the operator confirms.
func (g *Gallery) Delete(ctx context.Context, id int) error {
	t, ok := g.find(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknown, id)
	}
	if !g.prompter.Confirm(fmt.Sprintf("Excluir o modelo %q?", t.Name)) {
		return ErrCancelled
	}
	if err := g.begin(&g.deleting); err != nil {
		return err
	}
	defer g.end(&g.deleting)

	if err := g.backend.Delete(ctx, g.event.ID, id); err != nil {
		return fmt.Errorf("delete template %d: %w", id, err)
	}
	return g.Refresh(ctx)
}

// Duplicate copies a template under a "(Cópia)" name.
func (g *Gallery) Duplicate(ctx context.Context, id int) (*models.BadgeTemplate, error) {
	t, ok := g.find(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknown, id)
	}
	dup, err := g.backend.Duplicate(ctx, &t)
	if err != nil {
		return nil, fmt.Errorf("duplicate template %d: %w", id, err)
	}
	if err := g.Refresh(ctx); err != nil {
		return dup, err
	}
	return dup, nil
}

// Export downloads a template as badge_template_<name>.json.
func (g *Gallery) Export(ctx context.Context, id int) (*orchestrator.Artifact, error) {
	t, ok := g.find(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknown, id)
	}
	if err := g.begin(&g.exporting); err != nil {
		return nil, err
	}
	defer g.end(&g.exporting)

	data, err := g.backend.Export(ctx, g.event.ID, id)
	if err != nil {
		return nil, fmt.Errorf("export template %d: %w", id, err)
	}
	art := &orchestrator.Artifact{Filename: models.ExportFileName(t.Name), Data: data}
	if g.downloader != nil {
		if err := g.downloader.Download(art.Filename, art.Data); err != nil {
			return nil, fmt.Errorf("download %s: %w", art.Filename, err)
		}
	}
	return art, nil
}

// Import reads a template document, lets the operator confirm or change
// its name, and creates it. Malformed documents fail with the generic
// client.ErrImportFailed.
func (g *Gallery) Import(ctx context.Context, r io.Reader) (*models.BadgeTemplate, error) {
	var doc any
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", client.ErrImportFailed, err)
	}
	suggested := ""
	if m, ok := doc.(map[string]any); ok {
		suggested, _ = m["name"].(string)
	}
	name, ok := g.prompter.PromptName(suggested)
	if !ok {
		return nil, ErrCancelled
	}
	if name == suggested {
		name = ""
	}

	if err := g.begin(&g.importing); err != nil {
		return nil, err
	}
	defer g.end(&g.importing)

	t, err := g.backend.Import(ctx, g.event.ID, doc, name)
	if err != nil {
		return nil, err
	}
	if err := g.Refresh(ctx); err != nil {
		return t, err
	}
	return t, nil
}

func (g *Gallery) begin(flag *bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if *flag {
		return ErrBusy
	}
	*flag = true
	return nil
}

func (g *Gallery) end(flag *bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	*flag = false
}

// Message is the text shown to the operator for a gallery failure.
func Message(err error) string {
	switch {
	case err == nil, errors.Is(err, ErrCancelled):
		return ""
	case errors.Is(err, ErrUnavailable):
		return "Crachás não estão disponíveis para eventos online."
	case errors.Is(err, client.ErrImportFailed):
		return "Erro ao importar modelo. Verifique o arquivo."
	case errors.Is(err, client.ErrConflict):
		return "O modelo foi alterado por outra pessoa. Recarregue e tente novamente."
	case errors.Is(err, ErrBusy):
		return "Aguarde a operação em andamento terminar."
	default:
		return "Não foi possível concluir a operação. Tente novamente."
	}
}
