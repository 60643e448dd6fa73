// Package generator renders badge templates into print-ready PDFs and
// PNG previews.
package generator

import (
	"bytes"
	"crypto/md5"
	"errors"
	"fmt"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"badge-studio/internal/cache"
	"badge-studio/internal/models"
	"badge-studio/internal/tokens"

	"github.com/gofiber/fiber/v2/log"
	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"
)

var ErrMissingSide = errors.New("template has no such side")

const (
	// DefaultCardWidth and DefaultCardHeight give percent layouts a
	// physical size.
	DefaultCardWidth  = 105.0
	DefaultCardHeight = 74.0

	mmToPt = 72.0 / 25.4
)

// Badge is one person's data for a render.
type Badge struct {
	Values   tokens.Values
	PhotoURL string
	// Label names the person's file inside a zip batch.
	Label string
}

// SampleBadge fills every token with its label.
func SampleBadge() Badge {
	return Badge{Values: tokens.Sample(), Label: "preview"}
}

type Option func(*Renderer)

func WithDPI(dpi int) Option {
	return func(r *Renderer) {
		if dpi > 0 {
			r.dpi = dpi
		}
	}
}

func WithFontDir(dir string) Option {
	return func(r *Renderer) { r.fontDir = dir }
}

// WithCardSize sets the physical size in mm used for percent layouts.
func WithCardSize(w, h float64) Option {
	return func(r *Renderer) {
		if w > 0 && h > 0 {
			r.cardW, r.cardH = w, h
		}
	}
}

func WithConcurrency(n int) Option {
	return func(r *Renderer) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// Renderer turns templates into documents. It is safe for concurrent use;
// every render builds its own document.
type Renderer struct {
	images      *cache.ImageCache
	dpi         int
	fontDir     string
	cardW       float64
	cardH       float64
	concurrency int
}

// New creates a renderer. images may be nil, in which case image elements
// and background images are skipped.
func New(images *cache.ImageCache, opts ...Option) *Renderer {
	r := &Renderer{
		images:      images,
		dpi:         300,
		cardW:       DefaultCardWidth,
		cardH:       DefaultCardHeight,
		concurrency: 50,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CardSize returns the printed size of a side in mm.
func (r *Renderer) CardSize(c *models.BadgeConfig) (w, h float64) {
	if w, h, ok := c.PhysicalSize(); ok {
		return w, h
	}
	return r.cardW, r.cardH
}

// ============ DOCUMENT ============

// document is one gofpdf output plus the per-document registries.
type document struct {
	r          *Renderer
	pdf        *gofpdf.Fpdf
	tr         func(string) string
	unicode    bool
	bold       bool
	preloaded  map[string][]byte
	registered map[string]bool
}

func (r *Renderer) newDocument(init *gofpdf.InitType, preloaded map[string][]byte) *document {
	if r.fontDir != "" {
		init.FontDirStr = r.fontDir
	}
	pdf := gofpdf.NewCustom(init)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)

	d := &document{
		r:          r,
		pdf:        pdf,
		preloaded:  preloaded,
		registered: make(map[string]bool),
	}

	if fileExists(filepath.Join(r.fontDir, "arial.ttf")) {
		pdf.AddUTF8Font("Arial", "", "arial.ttf")
		d.unicode = true
		if fileExists(filepath.Join(r.fontDir, "arialbd.ttf")) {
			pdf.AddUTF8Font("Arial", "B", "arialbd.ttf")
			d.bold = true
		}
		d.tr = func(s string) string { return s }
	} else {
		// core fonts are cp1252
		d.tr = pdf.UnicodeTranslatorFromDescriptor("")
		d.bold = true
	}
	return d
}

func (d *document) output() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to output PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// drawCard paints one side at (ox, oy) as a w × h mm card.
func (d *document) drawCard(c *models.BadgeConfig, b Badge, ox, oy, w, h float64) {
	sx, sy := c.Scale(w, h)

	if c.BackgroundColor != "" && c.BackgroundColor != "transparent" {
		r, g, bl := hexToRGB(c.BackgroundColor)
		d.pdf.SetFillColor(r, g, bl)
		d.pdf.Rect(ox, oy, w, h, "F")
	}
	if c.BackgroundImage != "" {
		if err := d.drawImage(c.BackgroundImage, ox, oy, w, h); err != nil {
			log.Warnf("background image %s: %v", c.BackgroundImage, err)
		}
	}

	for _, el := range c.Sorted() {
		x, y := ox+el.X*sx, oy+el.Y*sy
		ew, eh := el.Width*sx, el.Height*sy

		var err error
		switch el.Type {
		case models.ElementText, models.ElementField:
			d.drawText(el, b, x, y, ew, eh, fontMM(el.Style, c.Unit, sy))
		case models.ElementQRCode:
			err = d.drawQRCode(el, b, x, y, ew, eh)
		case models.ElementImage:
			if url := imageURL(el, b); url != "" {
				err = d.drawImage(url, x, y, ew, eh)
			}
		}
		// one broken element must not spoil the badge
		if err != nil {
			log.Warnf("element %s (%s): %v", el.ID, el.Type, err)
		}
	}
}

func (d *document) drawText(el models.BadgeElement, b Badge, x, y, w, h, sizeMM float64) {
	text := strings.TrimSpace(tokens.Resolve(el.Content, b.Values))
	if text == "" {
		return
	}

	style := models.DefaultStyle()
	if el.Style != nil {
		style = *el.Style
	}
	if style.Color == "transparent" {
		return
	}

	fontStyle := ""
	if style.FontWeight == "bold" && d.bold {
		fontStyle = "B"
	}
	fontSize := sizeMM * mmToPt
	if fontSize < 4 {
		fontSize = 4
	}
	if fontSize > 72 {
		fontSize = 72
	}
	d.pdf.SetFont(d.family(style.FontFamily), fontStyle, fontSize)

	r, g, bl := hexToRGB(style.Color)
	d.pdf.SetTextColor(r, g, bl)

	alignStr := "CM"
	switch style.TextAlign {
	case "left":
		alignStr = "LM"
	case "right":
		alignStr = "RM"
	}

	text = d.tr(text)
	d.pdf.SetXY(x, y)
	if strings.Contains(text, "\n") || d.pdf.GetStringWidth(text) > w*0.95 {
		lineHeight := sizeMM * 1.2
		if lineHeight > h {
			lineHeight = h
		}
		d.pdf.MultiCell(w, lineHeight, text, "", alignStr[:1], false)
		return
	}
	d.pdf.CellFormat(w, h, text, "", 0, alignStr, false, 0, "")
}

// family maps a CSS font family onto the fonts the document carries.
func (d *document) family(name string) string {
	if d.unicode {
		return "Arial"
	}
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "times"), strings.Contains(lower, "serif") && !strings.Contains(lower, "sans"):
		return "Times"
	case strings.Contains(lower, "courier"), strings.Contains(lower, "mono"):
		return "Courier"
	default:
		return "Arial"
	}
}

func (d *document) drawQRCode(el models.BadgeElement, b Badge, x, y, w, h float64) error {
	content := qrContent(el, b)
	if content == "" {
		return fmt.Errorf("QR code content is empty")
	}

	side := w
	if h > side {
		side = h
	}
	size := int(side * float64(d.r.dpi) / 25.4)
	if size < 100 {
		size = 100
	}
	if size > 1024 {
		size = 1024
	}

	hash := md5.Sum([]byte(content))
	name := fmt.Sprintf("qr_%x_%d", hash[:8], size)
	if !d.registered[name] {
		png, err := qrcode.Encode(content, qrcode.Medium, size)
		if err != nil {
			return fmt.Errorf("failed to generate QR code: %w", err)
		}
		info := d.pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(png))
		if info == nil {
			return fmt.Errorf("failed to register QR code image")
		}
		d.registered[name] = true
	}
	d.pdf.ImageOptions(name, x, y, w, h, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	return nil
}

func (d *document) drawImage(url string, x, y, w, h float64) error {
	if d.r.images == nil {
		return nil
	}
	key := cache.Key(url, w, h, d.r.dpi)
	name := "img_" + key
	if !d.registered[name] {
		data, ok := d.preloaded[key]
		if !ok {
			var err error
			data, err = d.r.images.PNG(url, w, h, d.r.dpi)
			if err != nil {
				return err
			}
		}
		info := d.pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(data))
		if info == nil {
			return fmt.Errorf("failed to register image data")
		}
		d.registered[name] = true
	}
	d.pdf.ImageOptions(name, x, y, w, h, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	return nil
}

// ============ HELPER FUNCTIONS ============

// qrContent resolves what a qrcode element encodes. Content that is empty
// or still carries an unknown placeholder falls back to the person's
// {qrcode} value.
func qrContent(el models.BadgeElement, b Badge) string {
	content := strings.TrimSpace(tokens.Resolve(el.Content, b.Values))
	if content == "" || strings.Contains(content, "{") {
		content = b.Values[tokens.QRCode]
	}
	return content
}

// imageURL picks the source of an image element: a literal URL in
// content, then style "src", then the person's photo.
func imageURL(el models.BadgeElement, b Badge) string {
	if isURL(el.Content) {
		return el.Content
	}
	if src := el.Style.ExtraString("src"); isURL(src) {
		return src
	}
	return b.PhotoURL
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "data:")
}

// fontMM converts a style font size, given in editor screen pixels, into
// mm on the printed card.
func fontMM(s *models.Style, unit models.Unit, sy float64) float64 {
	size := models.DefaultStyle().FontSize
	if s != nil && s.FontSize > 0 {
		size = s.FontSize
	}
	ppu := models.PixelsPerMM
	if unit == models.UnitPX {
		ppu = 1
	}
	return size * sy / ppu
}

func hexToRGB(hex string) (int, int, int) {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return 0, 0, 0
	}
	r, _ := strconv.ParseInt(hex[0:2], 16, 64)
	g, _ := strconv.ParseInt(hex[2:4], 16, 64)
	b, _ := strconv.ParseInt(hex[4:6], 16, 64)
	return int(r), int(g), int(b)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
