package models

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidTemplate = errors.New("invalid template")

// boundsEpsilon absorbs float error from drag conversions.
const boundsEpsilon = 1e-6

// Violation is one problem found in a template.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every violation found in a template.
type ValidationError struct {
	Violations []Violation `json:"violations"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return "invalid template: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidTemplate
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Violations = append(e.Violations, Violation{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Validate checks the template content. Geometry outside the card is
// rejected, never clamped.
func (p *TemplatePayload) Validate() error {
	verr := &ValidationError{}

	if strings.TrimSpace(p.Name) == "" {
		verr.add("name", "is required")
	}
	switch p.ParticipantType {
	case ParticipantAll, ParticipantRegular, ParticipantSpeaker, ParticipantStaff:
	default:
		verr.add("participant_type", "unknown value %q", p.ParticipantType)
	}
	switch p.PageOrientation {
	case OrientationPortrait, OrientationLandscape:
	default:
		verr.add("page_orientation", "unknown value %q", p.PageOrientation)
	}
	if p.BadgesPerPage < 1 {
		verr.add("badges_per_page", "must be at least 1")
	}

	verr.merge(p.FrontConfig.ValidateLayout("front_config"))
	if p.IsDoubleSided {
		if p.BackConfig == nil {
			verr.add("back_config", "is required on a double sided template")
		} else {
			verr.merge(p.BackConfig.ValidateLayout("back_config"))
		}
	}

	if len(verr.Violations) > 0 {
		return verr
	}
	return nil
}

func (e *ValidationError) merge(err error) {
	var other *ValidationError
	if errors.As(err, &other) {
		e.Violations = append(e.Violations, other.Violations...)
	}
}

// ValidColor reports whether s is #rgb, #rrggbb or "transparent".
func ValidColor(s string) bool {
	if s == "transparent" {
		return true
	}
	if !strings.HasPrefix(s, "#") || (len(s) != 4 && len(s) != 7) {
		return false
	}
	for _, r := range s[1:] {
		if !(r >= '0' && r <= '9') && !(r >= 'a' && r <= 'f') && !(r >= 'A' && r <= 'F') {
			return false
		}
	}
	return true
}

// ValidateLayout checks a single side. Violations are reported under
// prefix, e.g. "front_config.elements[0]".
func (c *BadgeConfig) ValidateLayout(prefix string) error {
	verr := &ValidationError{}
	switch c.Unit {
	case UnitMM, UnitPX, UnitPercent:
	default:
		verr.add(prefix+".unit", "unknown unit %q", c.Unit)
	}
	if c.Width <= 0 || c.Height <= 0 {
		verr.add(prefix, "width and height must be positive")
	}
	if strings.TrimSpace(c.BackgroundColor) == "" {
		verr.add(prefix+".background_color", "is required")
	} else if !ValidColor(c.BackgroundColor) {
		verr.add(prefix+".background_color", "unsupported color %q", c.BackgroundColor)
	}

	seen := make(map[string]bool, len(c.Elements))
	for i, e := range c.Elements {
		field := fmt.Sprintf("%s.elements[%d]", prefix, i)
		if e.ID == "" {
			verr.add(field+".id", "is required")
		} else if seen[e.ID] {
			verr.add(field+".id", "duplicate id %q", e.ID)
		}
		seen[e.ID] = true

		switch e.Type {
		case ElementText, ElementImage, ElementQRCode, ElementField:
		default:
			verr.add(field+".type", "unknown type %q", e.Type)
		}
		if e.ZIndex < 0 {
			verr.add(field+".z_index", "must not be negative")
		}
		if e.Width <= 0 || e.Height <= 0 {
			verr.add(field, "width and height must be positive")
		}
		if e.Type.IsTextual() && e.Style != nil && e.Style.Color != "" && !ValidColor(e.Style.Color) {
			verr.add(field+".style.color", "unsupported color %q", e.Style.Color)
		}
		if e.X < -boundsEpsilon || e.Y < -boundsEpsilon ||
			e.X+e.Width > c.Width+boundsEpsilon || e.Y+e.Height > c.Height+boundsEpsilon {
			verr.add(field, "outside the printable area (%.2f,%.2f %.2fx%.2f on %.2fx%.2f)",
				e.X, e.Y, e.Width, e.Height, c.Width, c.Height)
		}
	}
	if len(verr.Violations) > 0 {
		return verr
	}
	return nil
}
