package models

import "time"

// ============ AUDIENCE STRUCTURES ============

type DeliveryMode string

const (
	DeliveryInPerson DeliveryMode = "in_person"
	DeliveryHybrid   DeliveryMode = "hybrid"
	DeliveryOnline   DeliveryMode = "online"
)

// OffersBadges reports whether printed badges exist for the mode. Fully
// remote events never get badges; unknown modes are treated the same.
func (m DeliveryMode) OffersBadges() bool {
	return m == DeliveryInPerson || m == DeliveryHybrid
}

type Event struct {
	ID           int          `json:"id"`
	TenantID     int          `json:"tenant_id"`
	Name         string       `json:"name"`
	Date         time.Time    `json:"date"`
	Venue        string       `json:"venue"`
	DeliveryMode DeliveryMode `json:"delivery_mode"`
}

type Participant struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Title      string `json:"title,omitempty"`
	Profession string `json:"profession,omitempty"`
	Discipline string `json:"discipline,omitempty"`
	Email      string `json:"email,omitempty"`
	PhotoURL   string `json:"photo_url,omitempty"`
	IsSpeaker  bool   `json:"is_speaker,omitempty"`
}

type EnrollmentStatus string

const (
	EnrollmentConfirmed EnrollmentStatus = "confirmed"
	EnrollmentPending   EnrollmentStatus = "pending"
	EnrollmentCancelled EnrollmentStatus = "cancelled"
)

type Enrollment struct {
	ID          int              `json:"id"`
	EventID     int              `json:"event_id"`
	Status      EnrollmentStatus `json:"status"`
	Code        string           `json:"code,omitempty"`
	Participant Participant      `json:"participant"`
}

// ============ REQUEST/RESPONSE STRUCTURES ============

type Format string

const (
	FormatPDF Format = "pdf"
	FormatZIP Format = "zip"
	FormatPNG Format = "png"
)

// GenerationRequest asks the badge service for a printable batch.
// ParticipantIDs holds enrollment ids; the service also accepts bare
// participant ids for speakers that have no enrollment.
type GenerationRequest struct {
	TemplateID      int    `json:"template_id"`
	ParticipantIDs  []int  `json:"participant_ids"`
	IncludeSpeakers bool   `json:"include_speakers"`
	Format          Format `json:"format"`
	DoubleSided     bool   `json:"double_sided"`
}

type PreviewRequest struct {
	TemplateID    int    `json:"template_id"`
	ParticipantID *int   `json:"participant_id,omitempty"`
	Side          Side   `json:"side"`
	Format        Format `json:"format,omitempty"`
}

type ImportRequest struct {
	EventID      int    `json:"event_id"`
	TemplateData any    `json:"template_data"`
	NameOverride string `json:"name_override,omitempty"`
}

type TemplateList struct {
	Total     int             `json:"total"`
	Templates []BadgeTemplate `json:"templates"`
}

type EnrollmentList struct {
	Total       int          `json:"total"`
	Enrollments []Enrollment `json:"enrollments"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}
