// Package storage persists badge templates and reads the audience
// directory the badge service renders from.
package storage

import (
	"context"
	"errors"

	"badge-studio/internal/models"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
)

// TemplateStore persists templates scoped by tenant and event. Update is
// a full replacement guarded by the caller's version.
type TemplateStore interface {
	List(ctx context.Context, tenantID, eventID int) ([]models.BadgeTemplate, error)
	Get(ctx context.Context, tenantID, eventID, id int) (*models.BadgeTemplate, error)
	Create(ctx context.Context, tenantID, eventID int, p models.TemplatePayload) (*models.BadgeTemplate, error)
	Update(ctx context.Context, tenantID, eventID, id int, p models.TemplatePayload) (*models.BadgeTemplate, error)
	Delete(ctx context.Context, tenantID, eventID, id int) error
	Close() error
}

// Directory is the read side of the participant and enrollment
// directories.
type Directory interface {
	Event(ctx context.Context, tenantID, eventID int) (*models.Event, error)
	Enrollments(ctx context.Context, tenantID, eventID int) ([]models.Enrollment, error)
	Speakers(ctx context.Context, tenantID, eventID int) ([]models.Participant, error)
}
