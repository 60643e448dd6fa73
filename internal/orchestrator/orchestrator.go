// Package orchestrator turns an operator's audience selection into a
// printable badge batch for one template.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"badge-studio/internal/client"
	"badge-studio/internal/models"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrNoSelection          = errors.New("no participant selected")
	ErrGenerationInProgress = errors.New("a generation is already in progress")
	ErrComingSoon           = errors.New("badge generation is not available yet")
	ErrGenerationFailed     = errors.New("badge generation failed")
	ErrUnsupportedFormat    = errors.New("unsupported format")
)

// Audience supplies the enrollments of an event.
type Audience interface {
	Enrollments(ctx context.Context, eventID int) ([]models.Enrollment, error)
}

// Renderer produces badge artifacts. *client.Client satisfies it.
type Renderer interface {
	Generate(ctx context.Context, eventID int, req models.GenerationRequest) ([]byte, error)
	Preview(ctx context.Context, eventID int, req models.PreviewRequest) ([]byte, error)
}

// Downloader hands a finished artifact to the operator.
type Downloader interface {
	Download(name string, data []byte) error
}

// DirDownloader writes artifacts into a directory.
type DirDownloader struct {
	Dir string
}

func (d DirDownloader) Download(name string, data []byte) error {
	if err := os.MkdirAll(d.Dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(d.Dir, name), data, 0644)
}

// Artifact is a generated document and its download name.
type Artifact struct {
	Filename string
	Data     []byte
}

type Option func(*Orchestrator)

func WithDownloader(d Downloader) Option {
	return func(o *Orchestrator) { o.downloader = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// Orchestrator holds the selection state of one generation screen.
type Orchestrator struct {
	template   models.BadgeTemplate
	audience   Audience
	renderer   Renderer
	downloader Downloader
	logger     *slog.Logger

	mu              sync.Mutex
	enrollments     []models.Enrollment
	selected        map[int]bool
	filter          string
	includeSpeakers bool
	format          models.Format
	loading         bool
	generating      bool
}

func New(t *models.BadgeTemplate, audience Audience, renderer Renderer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		template: *t,
		audience: audience,
		renderer: renderer,
		selected: make(map[int]bool),
		format:   models.FormatPDF,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

func (o *Orchestrator) Template() models.BadgeTemplate {
	return o.template
}

// Load fetches every enrollment of the template's event. Filtering happens
// locally on this set.
func (o *Orchestrator) Load(ctx context.Context) error {
	o.mu.Lock()
	if o.loading {
		o.mu.Unlock()
		return nil
	}
	o.loading = true
	o.mu.Unlock()

	list, err := o.audience.Enrollments(ctx, o.template.EventID)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.loading = false
	if err != nil {
		return fmt.Errorf("load audience: %w", err)
	}
	o.enrollments = list
	known := make(map[int]bool, len(list))
	for _, e := range list {
		known[e.ID] = true
	}
	for id := range o.selected {
		if !known[id] {
			delete(o.selected, id)
		}
	}
	return nil
}

// ============ FILTERING ============

func (o *Orchestrator) SetFilter(term string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.filter = term
}

func (o *Orchestrator) Filter() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.filter
}

// Visible returns the enrollments matching the current filter.
func (o *Orchestrator) Visible() []models.Enrollment {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.visibleLocked()
}

func (o *Orchestrator) visibleLocked() []models.Enrollment {
	term := fold(strings.TrimSpace(o.filter))
	if term == "" {
		out := make([]models.Enrollment, len(o.enrollments))
		copy(out, o.enrollments)
		return out
	}
	var out []models.Enrollment
	for _, e := range o.enrollments {
		if matches(e, term) {
			out = append(out, e)
		}
	}
	return out
}

func matches(e models.Enrollment, term string) bool {
	for _, field := range []string{e.Participant.Name, e.Participant.Email, e.Code} {
		if field != "" && strings.Contains(fold(field), term) {
			return true
		}
	}
	return false
}

var folder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold lowercases and strips accents so "jose" finds "José".
func fold(s string) string {
	out, _, err := transform.String(folder, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// ============ SELECTION ============

// Toggle flips the selection of one enrollment.
func (o *Orchestrator) Toggle(id int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.selected[id] {
		delete(o.selected, id)
		return false
	}
	o.selected[id] = true
	return true
}

func (o *Orchestrator) IsSelected(id int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.selected[id]
}

// SelectAll replaces the selection with every visible enrollment.
func (o *Orchestrator) SelectAll() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.selected = make(map[int]bool)
	for _, e := range o.visibleLocked() {
		o.selected[e.ID] = true
	}
}

// SelectConfirmed replaces the selection with the visible confirmed
// enrollments.
func (o *Orchestrator) SelectConfirmed() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.selected = make(map[int]bool)
	for _, e := range o.visibleLocked() {
		if e.Status == models.EnrollmentConfirmed {
			o.selected[e.ID] = true
		}
	}
}

// Clear deselects the visible enrollments.
func (o *Orchestrator) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, e := range o.visibleLocked() {
		delete(o.selected, e.ID)
	}
}

// Selected returns the selected ids in audience order.
func (o *Orchestrator) Selected() []int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.selectedLocked()
}

func (o *Orchestrator) selectedLocked() []int {
	ids := make([]int, 0, len(o.selected))
	for _, e := range o.enrollments {
		if o.selected[e.ID] {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

func (o *Orchestrator) SetIncludeSpeakers(on bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.includeSpeakers = on
}

func (o *Orchestrator) SetFormat(f models.Format) error {
	if f != models.FormatPDF && f != models.FormatZIP {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.format = f
	return nil
}

func (o *Orchestrator) Generating() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.generating
}

// ============ GENERATION ============

// Request builds the generation request for the current selection.
func (o *Orchestrator) Request() (models.GenerationRequest, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.requestLocked()
}

func (o *Orchestrator) requestLocked() (models.GenerationRequest, error) {
	ids := o.selectedLocked()
	if len(ids) == 0 {
		return models.GenerationRequest{}, ErrNoSelection
	}
	return models.GenerationRequest{
		TemplateID:      o.template.ID,
		ParticipantIDs:  ids,
		IncludeSpeakers: o.includeSpeakers,
		Format:          o.format,
		DoubleSided:     o.template.IsDoubleSided,
	}, nil
}

// Generate sends the batch request and downloads the result. An empty
// selection is rejected before any network call.
func (o *Orchestrator) Generate(ctx context.Context) (*Artifact, error) {
	o.mu.Lock()
	if o.generating {
		o.mu.Unlock()
		return nil, ErrGenerationInProgress
	}
	req, err := o.requestLocked()
	if err != nil {
		o.mu.Unlock()
		return nil, err
	}
	o.generating = true
	o.mu.Unlock()

	data, err := o.renderer.Generate(ctx, o.template.EventID, req)

	o.mu.Lock()
	o.generating = false
	o.mu.Unlock()

	if err != nil {
		o.logger.Warn("badge generation failed", "template_id", o.template.ID, "count", len(req.ParticipantIDs), "err", err)
		if errors.Is(err, client.ErrNotImplemented) {
			return nil, fmt.Errorf("%w: %w", ErrComingSoon, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	artifact := &Artifact{
		Filename: models.BadgesFileName(o.template.Name, req.Format),
		Data:     data,
	}
	if o.downloader != nil {
		if err := o.downloader.Download(artifact.Filename, artifact.Data); err != nil {
			return nil, fmt.Errorf("download %s: %w", artifact.Filename, err)
		}
	}
	return artifact, nil
}

// Preview renders one card, either with sample values or for a single
// participant.
func (o *Orchestrator) Preview(ctx context.Context, participantID *int, side models.Side, format models.Format) ([]byte, error) {
	return o.renderer.Preview(ctx, o.template.EventID, models.PreviewRequest{
		TemplateID:    o.template.ID,
		ParticipantID: participantID,
		Side:          side,
		Format:        format,
	})
}

// Message is the text shown to the operator for a Generate failure.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoSelection):
		return "Selecione pelo menos um participante."
	case errors.Is(err, ErrGenerationInProgress):
		return "Aguarde a geração em andamento terminar."
	case errors.Is(err, ErrComingSoon):
		return "A geração de crachás estará disponível em breve."
	default:
		return "Erro ao gerar crachás. Tente novamente."
	}
}
