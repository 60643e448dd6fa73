package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"badge-studio/internal/models"
)

// Seed is the on-disk form of a MemoryDirectory.
type Seed struct {
	Events       []models.Event       `json:"events"`
	Participants []models.Participant `json:"participants"`
	Enrollments  []SeedEnrollment     `json:"enrollments"`
	Speakers     []SeedSpeaker        `json:"speakers"`
}

type SeedEnrollment struct {
	ID            int                     `json:"id"`
	EventID       int                     `json:"event_id"`
	ParticipantID int                     `json:"participant_id"`
	Status        models.EnrollmentStatus `json:"status"`
	Code          string                  `json:"code,omitempty"`
}

type SeedSpeaker struct {
	EventID       int `json:"event_id"`
	ParticipantID int `json:"participant_id"`
}

// MemoryDirectory serves the audience from an in-memory snapshot of the
// external participant directory.
type MemoryDirectory struct {
	mu           sync.RWMutex
	events       map[int]models.Event
	participants map[int]models.Participant
	enrollments  map[int][]SeedEnrollment
	speakers     map[int][]int
}

func NewMemoryDirectory(seed Seed) *MemoryDirectory {
	d := &MemoryDirectory{
		events:       make(map[int]models.Event),
		participants: make(map[int]models.Participant),
		enrollments:  make(map[int][]SeedEnrollment),
		speakers:     make(map[int][]int),
	}
	for _, e := range seed.Events {
		d.events[e.ID] = e
	}
	for _, p := range seed.Participants {
		d.participants[p.ID] = p
	}
	for _, e := range seed.Enrollments {
		d.enrollments[e.EventID] = append(d.enrollments[e.EventID], e)
	}
	for _, s := range seed.Speakers {
		d.speakers[s.EventID] = append(d.speakers[s.EventID], s.ParticipantID)
	}
	return d
}

// LoadDirectory reads a JSON seed file. An empty path yields an empty
// directory.
func LoadDirectory(path string) (*MemoryDirectory, error) {
	if path == "" {
		return NewMemoryDirectory(Seed{}), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory file %s: %w", path, err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to decode directory file %s: %w", path, err)
	}
	return NewMemoryDirectory(seed), nil
}

func (d *MemoryDirectory) Event(ctx context.Context, tenantID, eventID int) (*models.Event, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ev, ok := d.events[eventID]
	if !ok || ev.TenantID != tenantID {
		return nil, ErrNotFound
	}
	return &ev, nil
}

func (d *MemoryDirectory) Enrollments(ctx context.Context, tenantID, eventID int) ([]models.Enrollment, error) {
	if _, err := d.Event(ctx, tenantID, eventID); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := []models.Enrollment{}
	for _, e := range d.enrollments[eventID] {
		out = append(out, models.Enrollment{
			ID:          e.ID,
			EventID:     e.EventID,
			Status:      e.Status,
			Code:        e.Code,
			Participant: d.participants[e.ParticipantID],
		})
	}
	return out, nil
}

func (d *MemoryDirectory) Speakers(ctx context.Context, tenantID, eventID int) ([]models.Participant, error) {
	if _, err := d.Event(ctx, tenantID, eventID); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := []models.Participant{}
	for _, id := range d.speakers[eventID] {
		if p, ok := d.participants[id]; ok {
			p.IsSpeaker = true
			out = append(out, p)
		}
	}
	return out, nil
}
