// Package client talks to the badge service REST API on behalf of one
// authenticated operator.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"badge-studio/internal/models"
)

// CopySuffix is appended to the name of a duplicated template.
const CopySuffix = " (Cópia)"

// Credentials authenticate every request the client sends.
type Credentials struct {
	Token    string
	TenantID int
}

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithCopySuffix changes the suffix used by Duplicate.
func WithCopySuffix(s string) Option {
	return func(c *Client) { c.copySuffix = s }
}

// Client is safe for concurrent use. It never retries.
type Client struct {
	baseURL    string
	creds      Credentials
	http       *http.Client
	logger     *slog.Logger
	copySuffix string
}

func New(baseURL string, creds Credentials, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		creds:      creds,
		copySuffix: CopySuffix,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

func templatesPath(eventID int) string {
	return "/events/" + strconv.Itoa(eventID) + "/badge-templates"
}

func templatePath(eventID, id int) string {
	return templatesPath(eventID) + "/" + strconv.Itoa(id)
}

// ============ TEMPLATES ============

func (c *Client) List(ctx context.Context, eventID int) (*models.TemplateList, error) {
	var out models.TemplateList
	if err := c.doJSON(ctx, http.MethodGet, templatesPath(eventID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Get(ctx context.Context, eventID, id int) (*models.BadgeTemplate, error) {
	var out models.BadgeTemplate
	if err := c.doJSON(ctx, http.MethodGet, templatePath(eventID, id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Create(ctx context.Context, eventID int, p models.TemplatePayload) (*models.BadgeTemplate, error) {
	p.Version = 0
	var out models.BadgeTemplate
	if err := c.doJSON(ctx, http.MethodPost, templatesPath(eventID), p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update replaces the whole template. p.Version must be the version the
// caller loaded; a stale version fails with ErrConflict.
func (c *Client) Update(ctx context.Context, eventID, id int, p models.TemplatePayload) (*models.BadgeTemplate, error) {
	var out models.BadgeTemplate
	if err := c.doJSON(ctx, http.MethodPut, templatePath(eventID, id), p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Delete(ctx context.Context, eventID, id int) error {
	_, err := c.do(ctx, http.MethodDelete, templatePath(eventID, id), nil)
	return err
}

// Duplicate creates a copy of src under the same event. Every content
// field is copied; identity and timestamps are left to the server.
func (c *Client) Duplicate(ctx context.Context, src *models.BadgeTemplate) (*models.BadgeTemplate, error) {
	p := src.Payload()
	p.Name = src.Name + c.copySuffix
	return c.Create(ctx, src.EventID, p)
}

// Export returns the template as a portable JSON document.
func (c *Client) Export(ctx context.Context, eventID, id int) ([]byte, error) {
	return c.do(ctx, http.MethodPost, templatePath(eventID, id)+"/export", nil)
}

// Import creates a template from a previously exported document. The
// document is passed through as is; any failure is reported as
// ErrImportFailed.
func (c *Client) Import(ctx context.Context, eventID int, doc any, nameOverride string) (*models.BadgeTemplate, error) {
	req := models.ImportRequest{
		EventID:      eventID,
		TemplateData: doc,
		NameOverride: nameOverride,
	}
	var out models.BadgeTemplate
	if err := c.doJSON(ctx, http.MethodPost, templatesPath(eventID)+"/import", req, &out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImportFailed, err)
	}
	return &out, nil
}

// ============ GENERATION ============

// Generate asks for a printable batch and returns the artifact bytes.
func (c *Client) Generate(ctx context.Context, eventID int, req models.GenerationRequest) ([]byte, error) {
	return c.do(ctx, http.MethodPost, "/events/"+strconv.Itoa(eventID)+"/badges/generate", req)
}

// Preview renders a single card.
func (c *Client) Preview(ctx context.Context, eventID int, req models.PreviewRequest) ([]byte, error) {
	return c.do(ctx, http.MethodPost, "/events/"+strconv.Itoa(eventID)+"/badges/preview", req)
}

// ============ AUDIENCE ============

func (c *Client) Event(ctx context.Context, eventID int) (*models.Event, error) {
	var out models.Event
	if err := c.doJSON(ctx, http.MethodGet, "/events/"+strconv.Itoa(eventID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Enrollments returns every enrollment of the event in one call.
func (c *Client) Enrollments(ctx context.Context, eventID int) ([]models.Enrollment, error) {
	var out models.EnrollmentList
	if err := c.doJSON(ctx, http.MethodGet, "/events/"+strconv.Itoa(eventID)+"/enrollments", nil, &out); err != nil {
		return nil, err
	}
	return out.Enrollments, nil
}

// ============ TRANSPORT ============

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	data, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.creds.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.creds.Token)
	}
	if c.creds.TenantID != 0 {
		req.Header.Set("X-Tenant-ID", strconv.Itoa(c.creds.TenantID))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", method, path, err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var envelope struct {
			Error      string             `json:"error"`
			Details    string             `json:"details"`
			Violations []models.Violation `json:"violations"`
		}
		if json.Unmarshal(data, &envelope) == nil && envelope.Error != "" {
			apiErr.Message = envelope.Error
			apiErr.Details = envelope.Details
			apiErr.Violations = envelope.Violations
		}
		c.logger.Debug("badge service error", "method", method, "path", path, "status", resp.StatusCode)
		return nil, apiErr
	}
	return data, nil
}
