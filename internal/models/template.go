// Package models defines the badge template document and the audience
// records the console and the badge service exchange.
package models

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ============ ENUMERATIONS ============

type Unit string

const (
	UnitMM      Unit = "mm"
	UnitPX      Unit = "px"
	UnitPercent Unit = "percent"
)

// PixelsPerMM is the fixed screen scale the editor renders mm layouts at.
const PixelsPerMM = 4.0

type ElementType string

const (
	ElementText   ElementType = "text"
	ElementImage  ElementType = "image"
	ElementQRCode ElementType = "qrcode"
	ElementField  ElementType = "field"
)

// IsTextual reports whether the element carries text content and style.
func (t ElementType) IsTextual() bool {
	return t == ElementText || t == ElementField
}

type ParticipantType string

const (
	ParticipantAll     ParticipantType = "all"
	ParticipantRegular ParticipantType = "participant"
	ParticipantSpeaker ParticipantType = "speaker"
	ParticipantStaff   ParticipantType = "staff"
)

type Orientation string

const (
	OrientationPortrait  Orientation = "portrait"
	OrientationLandscape Orientation = "landscape"
)

type Side string

const (
	SideFront Side = "front"
	SideBack  Side = "back"
)

var ErrDuplicateElementID = errors.New("element id already exists")

// ============ TEMPLATE STRUCTURES ============

// BadgeTemplate is the persisted unit: a named two-sided card layout.
type BadgeTemplate struct {
	ID              int             `json:"id"`
	TenantID        int             `json:"tenant_id"`
	EventID         int             `json:"event_id"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	ParticipantType ParticipantType `json:"participant_type"`
	IsDoubleSided   bool            `json:"is_double_sided"`
	BadgesPerPage   int             `json:"badges_per_page"`
	PageOrientation Orientation     `json:"page_orientation"`
	FrontConfig     BadgeConfig     `json:"front_config"`
	BackConfig      *BadgeConfig    `json:"back_config,omitempty"`
	Version         int             `json:"version"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// EffectiveBack returns the back side, or nil when the template is single
// sided regardless of any stale back data.
func (t *BadgeTemplate) EffectiveBack() *BadgeConfig {
	if !t.IsDoubleSided {
		return nil
	}
	return t.BackConfig
}

// Side returns the config for the given side, nil if it does not exist.
func (t *BadgeTemplate) Side(side Side) *BadgeConfig {
	if side == SideBack {
		return t.EffectiveBack()
	}
	return &t.FrontConfig
}

// Payload returns the template content without identity or timestamps.
func (t *BadgeTemplate) Payload() TemplatePayload {
	p := TemplatePayload{
		Name:            t.Name,
		Description:     t.Description,
		ParticipantType: t.ParticipantType,
		IsDoubleSided:   t.IsDoubleSided,
		BadgesPerPage:   t.BadgesPerPage,
		PageOrientation: t.PageOrientation,
		FrontConfig:     t.FrontConfig.Clone(),
		Version:         t.Version,
	}
	if back := t.EffectiveBack(); back != nil {
		c := back.Clone()
		p.BackConfig = &c
	}
	return p
}

// TemplatePayload is the body of create, update and import requests, and
// the content of an exported template document.
type TemplatePayload struct {
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	ParticipantType ParticipantType `json:"participant_type"`
	IsDoubleSided   bool            `json:"is_double_sided"`
	BadgesPerPage   int             `json:"badges_per_page"`
	PageOrientation Orientation     `json:"page_orientation"`
	FrontConfig     BadgeConfig     `json:"front_config"`
	BackConfig      *BadgeConfig    `json:"back_config,omitempty"`
	Version         int             `json:"version,omitempty"`
}

// Normalize fills defaults and drops the back side of a single sided
// payload.
func (p *TemplatePayload) Normalize() {
	if p.ParticipantType == "" {
		p.ParticipantType = ParticipantAll
	}
	if p.BadgesPerPage == 0 {
		p.BadgesPerPage = 1
	}
	if p.PageOrientation == "" {
		p.PageOrientation = OrientationPortrait
	}
	if !p.IsDoubleSided {
		p.BackConfig = nil
	}
	p.FrontConfig.normalize()
	if p.BackConfig != nil {
		p.BackConfig.normalize()
	}
}

// Apply copies the payload content onto t, leaving identity untouched.
func (p TemplatePayload) Apply(t *BadgeTemplate) {
	t.Name = p.Name
	t.Description = p.Description
	t.ParticipantType = p.ParticipantType
	t.IsDoubleSided = p.IsDoubleSided
	t.BadgesPerPage = p.BadgesPerPage
	t.PageOrientation = p.PageOrientation
	t.FrontConfig = p.FrontConfig.Clone()
	t.BackConfig = nil
	if p.IsDoubleSided && p.BackConfig != nil {
		c := p.BackConfig.Clone()
		t.BackConfig = &c
	}
}

// BadgeConfig is the layout of one physical side of a card.
type BadgeConfig struct {
	Width           float64        `json:"width"`
	Height          float64        `json:"height"`
	Unit            Unit           `json:"unit"`
	BackgroundColor string         `json:"background_color"`
	BackgroundImage string         `json:"background_image,omitempty"`
	Elements        []BadgeElement `json:"elements"`
}

// NewConfig returns an empty white side of the given mm size.
func NewConfig(width, height float64) BadgeConfig {
	return BadgeConfig{
		Width:           width,
		Height:          height,
		Unit:            UnitMM,
		BackgroundColor: "#ffffff",
		Elements:        []BadgeElement{},
	}
}

func (c *BadgeConfig) normalize() {
	if c.Unit == "" {
		c.Unit = UnitMM
	}
	if c.Elements == nil {
		c.Elements = []BadgeElement{}
	}
}

// Clone returns a deep copy.
func (c BadgeConfig) Clone() BadgeConfig {
	out := c
	if c.Elements != nil {
		out.Elements = make([]BadgeElement, len(c.Elements))
		for i, e := range c.Elements {
			out.Elements[i] = e.Clone()
		}
	}
	return out
}

func (c *BadgeConfig) index(id string) int {
	for i := range c.Elements {
		if c.Elements[i].ID == id {
			return i
		}
	}
	return -1
}

// Find returns the element with the given id.
func (c *BadgeConfig) Find(id string) (*BadgeElement, bool) {
	i := c.index(id)
	if i < 0 {
		return nil, false
	}
	return &c.Elements[i], true
}

// Insert appends e, rejecting an id that is already in use.
func (c *BadgeConfig) Insert(e BadgeElement) error {
	if e.ID == "" {
		return fmt.Errorf("element id is required")
	}
	if c.index(e.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateElementID, e.ID)
	}
	c.Elements = append(c.Elements, e)
	return nil
}

// Remove deletes the element with the given id and reports whether it
// existed.
func (c *BadgeConfig) Remove(id string) bool {
	i := c.index(id)
	if i < 0 {
		return false
	}
	c.Elements = append(c.Elements[:i], c.Elements[i+1:]...)
	return true
}

// Sorted returns the elements in paint order. Equal z_index values keep
// insertion order.
func (c *BadgeConfig) Sorted() []BadgeElement {
	out := make([]BadgeElement, len(c.Elements))
	copy(out, c.Elements)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ZIndex < out[j].ZIndex
	})
	return out
}

// PhysicalSize returns the card size in mm. Percent layouts have no
// intrinsic size and report ok=false.
func (c *BadgeConfig) PhysicalSize() (w, h float64, ok bool) {
	switch c.Unit {
	case UnitMM, "":
		return c.Width, c.Height, true
	case UnitPX:
		return c.Width / PixelsPerMM, c.Height / PixelsPerMM, true
	default:
		return 0, 0, false
	}
}

// Scale returns the factors converting config units to mm on a card that
// is physically cardW × cardH mm.
func (c *BadgeConfig) Scale(cardW, cardH float64) (sx, sy float64) {
	if c.Width <= 0 || c.Height <= 0 {
		return 1, 1
	}
	return cardW / c.Width, cardH / c.Height
}

// BadgeElement is one positioned object on a side.
type BadgeElement struct {
	ID      string      `json:"id"`
	Type    ElementType `json:"type"`
	X       float64     `json:"x"`
	Y       float64     `json:"y"`
	Width   float64     `json:"width"`
	Height  float64     `json:"height"`
	Content string      `json:"content"`
	Style   *Style      `json:"style,omitempty"`
	ZIndex  int         `json:"z_index"`
}

// Clone returns a deep copy.
func (e BadgeElement) Clone() BadgeElement {
	out := e
	if e.Style != nil {
		s := e.Style.Clone()
		out.Style = &s
	}
	return out
}
