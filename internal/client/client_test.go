package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"badge-studio/internal/config"
	"badge-studio/internal/generator"
	"badge-studio/internal/handlers"
	"badge-studio/internal/models"
	"badge-studio/internal/storage"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

const (
	testTenant = 3
	testEvent  = 1
)

func newServer(t *testing.T, generation bool) *httptest.Server {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() failed: %v", err)
	}
	dir := storage.NewMemoryDirectory(storage.Seed{
		Events:       []models.Event{{ID: testEvent, TenantID: testTenant, Name: "Congresso", DeliveryMode: models.DeliveryInPerson}},
		Participants: []models.Participant{{ID: 10, Name: "Ana"}},
		Enrollments:  []storage.SeedEnrollment{{ID: 100, EventID: testEvent, ParticipantID: 10, Status: models.EnrollmentConfirmed}},
	})
	cfg := &config.Config{
		ReadTimeout: 30 * time.Second,
		BodyLimitMB: 5,
		Generation:  config.Generation{Enabled: generation, MaxBatch: 50, Concurrency: 2, DPI: 72},
	}
	h := handlers.New(store, dir, generator.New(nil, generator.WithDPI(72)), nil, cfg.Generation)
	srv := httptest.NewServer(adaptor.FiberApp(handlers.NewApp(h, cfg)))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, generation bool) *Client {
	t.Helper()
	srv := newServer(t, generation)
	return New(srv.URL, Credentials{TenantID: testTenant})
}

func cardPayload(name string) models.TemplatePayload {
	p := models.TemplatePayload{Name: name, FrontConfig: models.NewConfig(105, 74)}
	p.FrontConfig.Elements = []models.BadgeElement{
		{ID: "el_name", Type: models.ElementField, X: 10, Y: 10, Width: 80, Height: 20, Content: "{nome}"},
	}
	p.Normalize()
	return p
}

func TestCreateThenReload(t *testing.T) {
	ctx := context.Background()
	c := newClient(t, true)

	created, err := c.Create(ctx, testEvent, cardPayload("Crachá"))
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	got, err := c.Get(ctx, testEvent, created.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.FrontConfig.Width != 105 || got.FrontConfig.Height != 74 || got.FrontConfig.Unit != models.UnitMM {
		t.Errorf("Unexpected front config %+v", got.FrontConfig)
	}
	if len(got.FrontConfig.Elements) != 1 {
		t.Fatalf("Expected 1 element, got %d", len(got.FrontConfig.Elements))
	}
	el := got.FrontConfig.Elements[0]
	if el.ID != "el_name" || el.X != 10 || el.Y != 10 || el.Width != 80 || el.Height != 20 || el.Content != "{nome}" {
		t.Errorf("Element not unchanged after reload: %+v", el)
	}

	list, err := c.List(ctx, testEvent)
	if err != nil || list.Total != 1 {
		t.Errorf("List() = %+v, %v", list, err)
	}
}

func TestExportImportNameOverride(t *testing.T) {
	ctx := context.Background()
	c := newClient(t, true)
	p := cardPayload("Original")
	back := models.NewConfig(105, 74)
	back.BackgroundColor = "#003366"
	back.Elements = []models.BadgeElement{
		{ID: "el_qr", Type: models.ElementQRCode, X: 35, Y: 20, Width: 30, Height: 30, Content: "{qrcode}"},
	}
	p.IsDoubleSided = true
	p.BackConfig = &back
	created, err := c.Create(ctx, testEvent, p)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	doc, err := c.Export(ctx, testEvent, created.ID)
	if err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	imported, err := c.Import(ctx, testEvent, json.RawMessage(doc), "A copy")
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if imported.Name != "A copy" || imported.ID == created.ID {
		t.Errorf("Unexpected imported template %+v", imported)
	}
	if !reflect.DeepEqual(imported.FrontConfig, created.FrontConfig) {
		t.Errorf("Front differs after import:\n got %+v\nwant %+v", imported.FrontConfig, created.FrontConfig)
	}
	if imported.BackConfig == nil || !reflect.DeepEqual(*imported.BackConfig, *created.BackConfig) {
		t.Errorf("Back differs after import:\n got %+v\nwant %+v", imported.BackConfig, created.BackConfig)
	}
}

func TestImport_FailureIsGeneric(t *testing.T) {
	c := newClient(t, true)
	_, err := c.Import(context.Background(), testEvent, []int{1}, "")
	if !errors.Is(err, ErrImportFailed) {
		t.Errorf("Expected ErrImportFailed, got %v", err)
	}
}

func TestDuplicate_AppendsSuffix(t *testing.T) {
	ctx := context.Background()
	c := newClient(t, true)
	src, _ := c.Create(ctx, testEvent, cardPayload("Crachá"))

	dup, err := c.Duplicate(ctx, src)
	if err != nil {
		t.Fatalf("Duplicate() failed: %v", err)
	}
	if dup.Name != "Crachá (Cópia)" || dup.ID == src.ID {
		t.Errorf("Unexpected duplicate %+v", dup)
	}
	if len(dup.FrontConfig.Elements) != len(src.FrontConfig.Elements) {
		t.Error("Duplicate lost elements")
	}
}

func TestUpdate_Conflict(t *testing.T) {
	ctx := context.Background()
	c := newClient(t, true)
	created, _ := c.Create(ctx, testEvent, cardPayload("A"))

	if _, err := c.Update(ctx, testEvent, created.ID, created.Payload()); err != nil {
		t.Fatalf("first Update() failed: %v", err)
	}
	_, err := c.Update(ctx, testEvent, created.ID, created.Payload())
	if !errors.Is(err, ErrConflict) {
		t.Errorf("Expected ErrConflict, got %v", err)
	}
}

func TestCreate_ValidationError(t *testing.T) {
	c := newClient(t, true)
	p := cardPayload("A")
	p.FrontConfig.Elements[0].Y = 70

	_, err := c.Create(context.Background(), testEvent, p)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Expected ErrValidation, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || len(apiErr.Violations) == 0 {
		t.Errorf("Expected violations in %v", err)
	}
}

func TestNotFound(t *testing.T) {
	c := newClient(t, true)
	if _, err := c.Get(context.Background(), testEvent, 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := c.Delete(context.Background(), testEvent, 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on delete, got %v", err)
	}
}

func TestGenerate_NotImplemented(t *testing.T) {
	ctx := context.Background()
	c := newClient(t, false)
	created, _ := c.Create(ctx, testEvent, cardPayload("A"))

	_, err := c.Generate(ctx, testEvent, models.GenerationRequest{
		TemplateID: created.ID, ParticipantIDs: []int{100}, Format: models.FormatPDF,
	})
	if !errors.Is(err, ErrNotImplemented) {
		t.Errorf("Expected ErrNotImplemented, got %v", err)
	}
}

func TestGenerateAndAudience(t *testing.T) {
	ctx := context.Background()
	c := newClient(t, true)
	created, _ := c.Create(ctx, testEvent, cardPayload("A"))

	ev, err := c.Event(ctx, testEvent)
	if err != nil || ev.DeliveryMode != models.DeliveryInPerson {
		t.Fatalf("Event() = %+v, %v", ev, err)
	}
	enrollments, err := c.Enrollments(ctx, testEvent)
	if err != nil || len(enrollments) != 1 {
		t.Fatalf("Enrollments() = %+v, %v", enrollments, err)
	}

	data, err := c.Generate(ctx, testEvent, models.GenerationRequest{
		TemplateID: created.ID, ParticipantIDs: []int{enrollments[0].ID}, Format: models.FormatPDF,
	})
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	if len(data) < 4 || string(data[:4]) != "%PDF" {
		t.Error("Expected a PDF document")
	}

	preview, err := c.Preview(ctx, testEvent, models.PreviewRequest{TemplateID: created.ID, Side: models.SideFront})
	if err != nil || len(preview) == 0 {
		t.Errorf("Preview() = %d bytes, %v", len(preview), err)
	}
}

func TestCredentialsSentOnEveryRequest(t *testing.T) {
	var auth, tenant string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth, tenant = r.Header.Get("Authorization"), r.Header.Get("X-Tenant-ID")
		w.Write([]byte(`{"total":0,"templates":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, Credentials{Token: "tok", TenantID: 9})
	if _, err := c.List(context.Background(), 1); err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if auth != "Bearer tok" || tenant != "9" {
		t.Errorf("Unexpected headers: Authorization=%q X-Tenant-ID=%q", auth, tenant)
	}
}

func TestErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Failed to generate PDF","details":"boom"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, Credentials{}).Generate(context.Background(), 1, models.GenerationRequest{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %v", err)
	}
	if apiErr.Status != 500 || apiErr.Message != "Failed to generate PDF" || apiErr.Details != "boom" {
		t.Errorf("Unexpected APIError %+v", apiErr)
	}
	if errors.Is(err, ErrNotImplemented) {
		t.Error("500 must not match ErrNotImplemented")
	}
}
