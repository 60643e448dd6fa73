package gallery

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"badge-studio/internal/client"
	"badge-studio/internal/config"
	"badge-studio/internal/generator"
	"badge-studio/internal/handlers"
	"badge-studio/internal/models"
	"badge-studio/internal/orchestrator"
	"badge-studio/internal/storage"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

const (
	tenant        = 4
	hybridEvent   = 1
	onlineEvent   = 2
	unknownEvent  = 3
	inPersonEvent = 5
)

type fakePrompter struct {
	confirm  bool
	name     string
	nameOK   bool
	prompts  []string
	suggests []string
}

func (p *fakePrompter) Confirm(message string) bool {
	p.prompts = append(p.prompts, message)
	return p.confirm
}

func (p *fakePrompter) PromptName(suggested string) (string, bool) {
	p.suggests = append(p.suggests, suggested)
	return p.name, p.nameOK
}

func newBackend(t *testing.T) *client.Client {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() failed: %v", err)
	}
	dir := storage.NewMemoryDirectory(storage.Seed{
		Events: []models.Event{
			{ID: hybridEvent, TenantID: tenant, Name: "Congresso", DeliveryMode: models.DeliveryHybrid},
			{ID: onlineEvent, TenantID: tenant, Name: "Webinar", DeliveryMode: models.DeliveryOnline},
			{ID: unknownEvent, TenantID: tenant, Name: "Misterioso", DeliveryMode: "satellite"},
			{ID: inPersonEvent, TenantID: tenant, Name: "Oficina", DeliveryMode: models.DeliveryInPerson},
		},
		Participants: []models.Participant{{ID: 10, Name: "Ana"}, {ID: 11, Name: "Bruno"}},
		Enrollments: []storage.SeedEnrollment{
			{ID: 100, EventID: hybridEvent, ParticipantID: 10, Status: models.EnrollmentConfirmed},
			{ID: 101, EventID: hybridEvent, ParticipantID: 11, Status: models.EnrollmentPending},
		},
	})
	cfg := &config.Config{
		ReadTimeout: 30 * time.Second,
		BodyLimitMB: 5,
		Generation:  config.Generation{Enabled: true, MaxBatch: 50, Concurrency: 2, DPI: 72},
	}
	h := handlers.New(store, dir, generator.New(nil, generator.WithDPI(72)), nil, cfg.Generation)
	srv := httptest.NewServer(adaptor.FiberApp(handlers.NewApp(h, cfg)))
	t.Cleanup(srv.Close)
	return client.New(srv.URL, client.Credentials{TenantID: tenant})
}

func seedTemplate(t *testing.T, g *Gallery, name string) *models.BadgeTemplate {
	t.Helper()
	ed := g.Create()
	ed.SetName(name)
	ed.AddElement(models.ElementField)
	saved, err := ed.Save(context.Background())
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	return saved
}

func TestOpen_DeliveryModeGate(t *testing.T) {
	backend := newBackend(t)
	ctx := context.Background()

	for _, id := range []int{onlineEvent, unknownEvent} {
		_, err := Open(ctx, backend, &fakePrompter{}, id)
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("event %d: expected ErrUnavailable, got %v", id, err)
		}
		if Message(err) == "" {
			t.Errorf("event %d: expected an operator message", id)
		}
	}
	for _, id := range []int{hybridEvent, inPersonEvent} {
		if _, err := Open(ctx, backend, &fakePrompter{}, id); err != nil {
			t.Errorf("event %d: Open() failed: %v", id, err)
		}
	}
}

func TestEditorSaveRefreshesList(t *testing.T) {
	g, err := Open(context.Background(), newBackend(t), &fakePrompter{}, hybridEvent)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if g.Total() != 0 {
		t.Fatalf("Expected empty gallery, got %d", g.Total())
	}

	seedTemplate(t, g, "Crachá")
	if g.Total() != 1 || g.Templates()[0].Name != "Crachá" {
		t.Errorf("Expected the saved template in the list, got %+v", g.Templates())
	}
}

func TestEdit_LoadsLatestAndSaves(t *testing.T) {
	ctx := context.Background()
	g, _ := Open(ctx, newBackend(t), &fakePrompter{}, hybridEvent)
	saved := seedTemplate(t, g, "A")

	ed, err := g.Edit(ctx, saved.ID)
	if err != nil {
		t.Fatalf("Edit() failed: %v", err)
	}
	ed.SetName("B")
	if _, err := ed.Save(ctx); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if g.Templates()[0].Name != "B" || g.Templates()[0].Version != 2 {
		t.Errorf("Expected renamed template at version 2, got %+v", g.Templates()[0])
	}
}

func TestDelete_RequiresConfirmation(t *testing.T) {
	ctx := context.Background()
	prompter := &fakePrompter{}
	g, _ := Open(ctx, newBackend(t), prompter, hybridEvent)
	saved := seedTemplate(t, g, "A")

	if err := g.Delete(ctx, saved.ID); !errors.Is(err, ErrCancelled) {
		t.Fatalf("Expected ErrCancelled, got %v", err)
	}
	if g.Total() != 1 {
		t.Error("Template deleted without confirmation")
	}

	prompter.confirm = true
	if err := g.Delete(ctx, saved.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if g.Total() != 0 {
		t.Errorf("Expected empty gallery after delete, got %d", g.Total())
	}
	if len(prompter.prompts) != 2 || !strings.Contains(prompter.prompts[0], "A") {
		t.Errorf("Unexpected prompts %v", prompter.prompts)
	}

	if err := g.Delete(ctx, 999); !errors.Is(err, ErrUnknown) {
		t.Errorf("Expected ErrUnknown, got %v", err)
	}
}

func TestDuplicate(t *testing.T) {
	ctx := context.Background()
	g, _ := Open(ctx, newBackend(t), &fakePrompter{}, hybridEvent)
	saved := seedTemplate(t, g, "Crachá")

	dup, err := g.Duplicate(ctx, saved.ID)
	if err != nil {
		t.Fatalf("Duplicate() failed: %v", err)
	}
	if dup.Name != "Crachá (Cópia)" || g.Total() != 2 {
		t.Errorf("Unexpected duplicate %q, total %d", dup.Name, g.Total())
	}
}

func TestExportThenImportRenamed(t *testing.T) {
	ctx := context.Background()
	downloads := t.TempDir()
	prompter := &fakePrompter{name: "A copy", nameOK: true}
	g, _ := Open(ctx, newBackend(t), prompter, hybridEvent, WithDownloader(orchestrator.DirDownloader{Dir: downloads}))
	saved := seedTemplate(t, g, "Crachá Médico")

	art, err := g.Export(ctx, saved.ID)
	if err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	if art.Filename != "badge_template_Crach__M_dico.json" {
		t.Errorf("Unexpected export filename %q", art.Filename)
	}
	f, err := os.Open(filepath.Join(downloads, art.Filename))
	if err != nil {
		t.Fatalf("export not downloaded: %v", err)
	}
	defer f.Close()

	imported, err := g.Import(ctx, f)
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if imported.Name != "A copy" {
		t.Errorf("Expected override name, got %q", imported.Name)
	}
	if len(prompter.suggests) != 1 || prompter.suggests[0] != "Crachá Médico" {
		t.Errorf("Expected the document name suggested, got %v", prompter.suggests)
	}
	if g.Total() != 2 {
		t.Errorf("Expected 2 templates after import, got %d", g.Total())
	}
}

func TestImport_KeepsNameAndCancel(t *testing.T) {
	ctx := context.Background()
	prompter := &fakePrompter{name: "Original", nameOK: true}
	g, _ := Open(ctx, newBackend(t), prompter, hybridEvent)
	saved := seedTemplate(t, g, "Original")
	art, _ := g.Export(ctx, saved.ID)

	imported, err := g.Import(ctx, strings.NewReader(string(art.Data)))
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if imported.Name != "Original" {
		t.Errorf("Expected name kept, got %q", imported.Name)
	}

	prompter.nameOK = false
	if _, err := g.Import(ctx, strings.NewReader(string(art.Data))); !errors.Is(err, ErrCancelled) {
		t.Errorf("Expected ErrCancelled, got %v", err)
	}
	if g.Total() != 2 {
		t.Errorf("Cancelled import created a template: total %d", g.Total())
	}
}

func TestImport_Malformed(t *testing.T) {
	ctx := context.Background()
	prompter := &fakePrompter{nameOK: true}
	g, _ := Open(ctx, newBackend(t), prompter, hybridEvent)

	_, err := g.Import(ctx, strings.NewReader("{broken"))
	if !errors.Is(err, client.ErrImportFailed) {
		t.Fatalf("Expected ErrImportFailed, got %v", err)
	}
	if Message(err) != "Erro ao importar modelo. Verifique o arquivo." {
		t.Errorf("Unexpected message %q", Message(err))
	}
	if len(prompter.suggests) != 0 {
		t.Error("Operator prompted for a malformed document")
	}
}

func TestGenerate_RoutesToOrchestrator(t *testing.T) {
	ctx := context.Background()
	downloads := t.TempDir()
	g, _ := Open(ctx, newBackend(t), &fakePrompter{}, hybridEvent, WithDownloader(orchestrator.DirDownloader{Dir: downloads}))
	saved := seedTemplate(t, g, "Crachá")

	o, err := g.Generate(saved.ID)
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	if err := o.Load(ctx); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	o.SelectConfirmed()
	art, err := o.Generate(ctx)
	if err != nil {
		t.Fatalf("orchestrator Generate() failed: %v", err)
	}
	if art.Filename != "badges_Crach_.pdf" {
		t.Errorf("Unexpected filename %q", art.Filename)
	}
	if _, err := os.Stat(filepath.Join(downloads, art.Filename)); err != nil {
		t.Errorf("batch not downloaded: %v", err)
	}

	if _, err := g.Generate(999); !errors.Is(err, ErrUnknown) {
		t.Errorf("Expected ErrUnknown, got %v", err)
	}
}
