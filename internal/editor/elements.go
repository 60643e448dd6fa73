package editor

import (
	"errors"

	"badge-studio/internal/models"
)

// defaultSize is the initial box of a new element, in config units.
func defaultSize(t models.ElementType) (w, h float64) {
	switch t {
	case models.ElementQRCode:
		return 30, 30
	case models.ElementImage:
		return 40, 40
	default:
		return 80, 20
	}
}

// AddElement creates an element of the given type on the active side with
// type defaults, gives it the next z_index and selects it.
func (e *Editor) AddElement(t models.ElementType) models.BadgeElement {
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg := e.active()
	w, h := defaultSize(t)
	style := models.DefaultStyle()
	el := models.BadgeElement{
		Type:    t,
		X:       10,
		Y:       10,
		Width:   w,
		Height:  h,
		Content: defaultContent(t),
		Style:   &style,
		ZIndex:  len(cfg.Elements),
	}
	for {
		el.ID = e.newID()
		if err := cfg.Insert(el); !errors.Is(err, models.ErrDuplicateElementID) {
			break
		}
	}
	e.selectedID = el.ID
	return el.Clone()
}

// InsertElement adds a fully specified element to the active side. A
// reused id is rejected with models.ErrDuplicateElementID.
func (e *Editor) InsertElement(el models.BadgeElement) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active().Insert(el.Clone())
}

// DeleteElement removes an element from the active side and clears the
// selection if it pointed there. Unknown ids are ignored.
func (e *Editor) DeleteElement(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active().Remove(id) && e.selectedID == id {
		e.selectedID = ""
	}
}

// ElementPatch is a partial element update. Nil fields are left as they
// are; Style is merged into the existing style.
type ElementPatch struct {
	X       *float64
	Y       *float64
	Width   *float64
	Height  *float64
	Content *string
	ZIndex  *int
	Style   *models.StylePatch
}

// UpdateElement merges patch into the element. Unknown ids are ignored.
func (e *Editor) UpdateElement(id string, patch ElementPatch) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	el, ok := e.active().Find(id)
	if !ok {
		return false
	}
	if patch.X != nil {
		el.X = *patch.X
	}
	if patch.Y != nil {
		el.Y = *patch.Y
	}
	if patch.Width != nil {
		el.Width = *patch.Width
	}
	if patch.Height != nil {
		el.Height = *patch.Height
	}
	if patch.Content != nil {
		el.Content = *patch.Content
	}
	if patch.ZIndex != nil {
		el.ZIndex = *patch.ZIndex
	}
	if patch.Style != nil {
		if el.Style == nil {
			el.Style = &models.Style{}
		}
		el.Style.Merge(*patch.Style)
	}
	return true
}

// DuplicateElement copies an element under a new id, shifted by
// DuplicateOffset on both axes. Unknown ids are ignored.
func (e *Editor) DuplicateElement(id string) (models.BadgeElement, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg := e.active()
	src, ok := cfg.Find(id)
	if !ok {
		return models.BadgeElement{}, false
	}
	dup := src.Clone()
	dup.X += DuplicateOffset
	dup.Y += DuplicateOffset
	for {
		dup.ID = e.newID()
		if err := cfg.Insert(dup); !errors.Is(err, models.ErrDuplicateElementID) {
			break
		}
	}
	return dup.Clone(), true
}

// ============ CANVAS GEOMETRY ============

// Point is a screen position in pixels.
type Point struct {
	X, Y float64
}

// Rect is the rendered box of the canvas on screen, in pixels.
type Rect struct {
	Left, Top, Width, Height float64
}

// MoveByDrag converts a drop position on the rendered canvas back to
// config units and moves the element's top-left corner there. The
// conversion uses the canvas's current rendered size, so it is exact at
// any zoom.
func (e *Editor) MoveByDrag(id string, drop Point, canvas Rect) bool {
	if canvas.Width <= 0 || canvas.Height <= 0 {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg := e.active()
	el, ok := cfg.Find(id)
	if !ok {
		return false
	}
	el.X, el.Y = DropToConfig(drop, canvas, cfg.Width, cfg.Height)
	return true
}

// DropToConfig maps a screen point to config coordinates for a side of
// size w × h rendered into canvas.
func DropToConfig(drop Point, canvas Rect, w, h float64) (x, y float64) {
	x = (drop.X - canvas.Left) / canvas.Width * w
	y = (drop.Y - canvas.Top) / canvas.Height * h
	return x, y
}

// pixelsPerUnit is the screen scale for a unit at 100% zoom.
func pixelsPerUnit(u models.Unit) float64 {
	if u == models.UnitPX {
		return 1
	}
	return models.PixelsPerMM
}

// CanvasSize returns the on-screen size of the active side at 100% zoom.
func (e *Editor) CanvasSize() (w, h float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg := e.active()
	scale := pixelsPerUnit(cfg.Unit)
	return cfg.Width * scale, cfg.Height * scale
}

// ElementBox returns where an element is drawn on a canvas rendered into
// the given box.
func (e *Editor) ElementBox(id string, canvas Rect) (Rect, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg := e.active()
	el, ok := cfg.Find(id)
	if !ok || cfg.Width <= 0 || cfg.Height <= 0 {
		return Rect{}, false
	}
	sx, sy := canvas.Width/cfg.Width, canvas.Height/cfg.Height
	return Rect{
		Left:   canvas.Left + el.X*sx,
		Top:    canvas.Top + el.Y*sy,
		Width:  el.Width * sx,
		Height: el.Height * sy,
	}, true
}

// SetBackground changes the background of the active side.
func (e *Editor) SetBackground(color, image string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg := e.active()
	cfg.BackgroundColor = color
	cfg.BackgroundImage = image
}

// Resize changes the card size of the active side.
func (e *Editor) Resize(w, h float64, unit models.Unit) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg := e.active()
	cfg.Width, cfg.Height, cfg.Unit = w, h, unit
}
