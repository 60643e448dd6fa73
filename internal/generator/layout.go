package generator

import (
	"math"

	"badge-studio/internal/models"
)

const (
	a4Short = 210.0
	a4Long  = 297.0

	// SheetMargin is the unprinted border of an A4 sheet in mm.
	SheetMargin = 5.0
)

// Slot is where one card lands on a sheet, in mm.
type Slot struct {
	X, Y, W, H float64
}

// PageSize returns the A4 sheet size for an orientation.
func PageSize(o models.Orientation) (w, h float64) {
	if o == models.OrientationLandscape {
		return a4Long, a4Short
	}
	return a4Short, a4Long
}

// Grid lays perPage cards of cardW × cardH on a pageW × pageH sheet. It
// picks the column count that prints cards the largest, never scaling
// them up, and centres each card in its cell.
func Grid(pageW, pageH, cardW, cardH float64, perPage int) []Slot {
	if perPage < 1 {
		perPage = 1
	}
	usableW := pageW - 2*SheetMargin
	usableH := pageH - 2*SheetMargin

	bestCols, bestScale := 1, -1.0
	for cols := 1; cols <= perPage; cols++ {
		rows := (perPage + cols - 1) / cols
		scale := math.Min(1, math.Min(usableW/float64(cols)/cardW, usableH/float64(rows)/cardH))
		if scale > bestScale+1e-9 {
			bestCols, bestScale = cols, scale
		}
	}

	cols := bestCols
	rows := (perPage + cols - 1) / cols
	cellW := usableW / float64(cols)
	cellH := usableH / float64(rows)
	w, h := cardW*bestScale, cardH*bestScale

	slots := make([]Slot, perPage)
	for i := range slots {
		col, row := i%cols, i/cols
		slots[i] = Slot{
			X: SheetMargin + float64(col)*cellW + (cellW-w)/2,
			Y: SheetMargin + float64(row)*cellH + (cellH-h)/2,
			W: w,
			H: h,
		}
	}
	return slots
}

// Mirror returns the slot a card's back occupies when the sheet is turned
// over sideways for duplex printing.
func (s Slot) Mirror(pageW float64) Slot {
	s.X = pageW - s.X - s.W
	return s
}
