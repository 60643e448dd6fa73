package generator

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"badge-studio/internal/models"
	"badge-studio/internal/tokens"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/gofiber/fiber/v2/log"
	"github.com/skip2/go-qrcode"
)

// PreviewDPI is the raster resolution of PNG previews.
const PreviewDPI = 150

// PreviewPDF renders a single side as a card-sized PDF.
func (r *Renderer) PreviewPDF(tpl *models.BadgeTemplate, b Badge, side models.Side) ([]byte, error) {
	c := tpl.Side(side)
	if c == nil {
		return nil, ErrMissingSide
	}
	return r.sides([]*models.BadgeConfig{c}, b, nil)
}

// PreviewPNG rasterises a single side at PreviewDPI.
func (r *Renderer) PreviewPNG(tpl *models.BadgeTemplate, b Badge, side models.Side) ([]byte, error) {
	c := tpl.Side(side)
	if c == nil {
		return nil, ErrMissingSide
	}

	cardW, cardH := r.CardSize(c)
	ppm := float64(PreviewDPI) / 25.4
	dc := gg.NewContext(int(cardW*ppm+0.5), int(cardH*ppm+0.5))

	bg := c.BackgroundColor
	if bg == "" || bg == "transparent" {
		bg = "#ffffff"
	}
	dc.SetHexColor(bg)
	dc.Clear()
	if c.BackgroundImage != "" {
		if err := r.rasterImage(dc, c.BackgroundImage, 0, 0, float64(dc.Width()), float64(dc.Height())); err != nil {
			log.Warnf("background image %s: %v", c.BackgroundImage, err)
		}
	}

	sx, sy := c.Scale(cardW, cardH)
	for _, el := range c.Sorted() {
		x, y := el.X*sx*ppm, el.Y*sy*ppm
		w, h := el.Width*sx*ppm, el.Height*sy*ppm

		var err error
		switch el.Type {
		case models.ElementText, models.ElementField:
			r.rasterText(dc, el, b, x, y, w, h, fontMM(el.Style, c.Unit, sy)*ppm)
		case models.ElementQRCode:
			err = rasterQRCode(dc, el, b, x, y, w, h)
		case models.ElementImage:
			if url := imageURL(el, b); url != "" {
				err = r.rasterImage(dc, url, x, y, w, h)
			}
		}
		if err != nil {
			log.Warnf("element %s (%s): %v", el.ID, el.Type, err)
		}
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) rasterText(dc *gg.Context, el models.BadgeElement, b Badge, x, y, w, h, sizePx float64) {
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

	font := filepath.Join(r.fontDir, "arial.ttf")
	if style.FontWeight == "bold" && fileExists(filepath.Join(r.fontDir, "arialbd.ttf")) {
		font = filepath.Join(r.fontDir, "arialbd.ttf")
	}
	if fileExists(font) {
		// without a face on disk gg keeps its built-in bitmap font
		if err := dc.LoadFontFace(font, sizePx); err != nil {
			log.Warnf("font %s: %v", font, err)
		}
	}

	dc.SetHexColor(style.Color)
	ax, align := 0.5, gg.AlignCenter
	switch style.TextAlign {
	case "left":
		ax, align = 0, gg.AlignLeft
	case "right":
		ax, align = 1, gg.AlignRight
	}
	dc.DrawStringWrapped(text, x+ax*w, y+h/2, ax, 0.5, w, 1.2, align)
}

func rasterQRCode(dc *gg.Context, el models.BadgeElement, b Badge, x, y, w, h float64) error {
	content := qrContent(el, b)
	if content == "" {
		return fmt.Errorf("QR code content is empty")
	}
	q, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("failed to generate QR code: %w", err)
	}
	size := int(w)
	if int(h) < size {
		size = int(h)
	}
	if size < 1 {
		return nil
	}
	dc.DrawImage(q.Image(size), int(x), int(y))
	return nil
}

func (r *Renderer) rasterImage(dc *gg.Context, url string, x, y, w, h float64) error {
	if r.images == nil {
		return nil
	}
	img, err := r.images.Image(url)
	if err != nil {
		return err
	}
	if int(w) < 1 || int(h) < 1 {
		return nil
	}
	dc.DrawImage(imaging.Resize(img, int(w), int(h), imaging.Lanczos), int(x), int(y))
	return nil
}
