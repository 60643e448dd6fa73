package generator

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"regexp"
	"testing"

	"badge-studio/internal/cache"
	"badge-studio/internal/models"
	"badge-studio/internal/tokens"
)

var pageObject = regexp.MustCompile(`/Type\s*/Page\b`)

func sampleTemplate() *models.BadgeTemplate {
	front := models.NewConfig(105, 74)
	front.BackgroundColor = "#ff0000"
	front.Elements = []models.BadgeElement{
		{ID: "el_name", Type: models.ElementField, X: 10, Y: 10, Width: 80, Height: 20, Content: tokens.Name},
		{ID: "el_qr", Type: models.ElementQRCode, X: 70, Y: 40, Width: 30, Height: 30, Content: tokens.QRCode, ZIndex: 1},
	}
	back := models.NewConfig(105, 74)
	back.Elements = []models.BadgeElement{
		{ID: "el_event", Type: models.ElementText, X: 5, Y: 5, Width: 90, Height: 15, Content: "Bem-vindo ao {evento}"},
	}
	return &models.BadgeTemplate{
		ID:              1,
		Name:            "Crachá",
		BadgesPerPage:   2,
		PageOrientation: models.OrientationPortrait,
		IsDoubleSided:   true,
		FrontConfig:     front,
		BackConfig:      &back,
	}
}

func badge(name string) Badge {
	return Badge{
		Values: tokens.Values{tokens.Name: name, tokens.EventName: "Congresso", tokens.QRCode: "E-" + name},
		Label:  name,
	}
}

func assertPDF(t *testing.T, data []byte) {
	t.Helper()
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("Expected PDF output, got %q", data[:min(len(data), 16)])
	}
}

func TestGrid_FitsPage(t *testing.T) {
	for _, perPage := range []int{1, 2, 4, 6, 8, 10} {
		pageW, pageH := PageSize(models.OrientationPortrait)
		slots := Grid(pageW, pageH, 105, 74, perPage)
		if len(slots) != perPage {
			t.Fatalf("perPage %d: got %d slots", perPage, len(slots))
		}
		for i, s := range slots {
			if s.X < SheetMargin-1e-9 || s.Y < SheetMargin-1e-9 ||
				s.X+s.W > pageW-SheetMargin+1e-9 || s.Y+s.H > pageH-SheetMargin+1e-9 {
				t.Errorf("perPage %d: slot %d outside printable area: %+v", perPage, i, s)
			}
			if s.W > 105+1e-9 {
				t.Errorf("perPage %d: card scaled up to %.2f", perPage, s.W)
			}
			if math.Abs(s.W/s.H-105.0/74.0) > 1e-9 {
				t.Errorf("perPage %d: aspect ratio not kept", perPage)
			}
			for j := i + 1; j < len(slots); j++ {
				o := slots[j]
				if s.X < o.X+o.W-1e-9 && o.X < s.X+s.W-1e-9 && s.Y < o.Y+o.H-1e-9 && o.Y < s.Y+s.H-1e-9 {
					t.Errorf("perPage %d: slots %d and %d overlap", perPage, i, j)
				}
			}
		}
	}
}

func TestGrid_SingleCardCentred(t *testing.T) {
	s := Grid(210, 297, 105, 74, 1)[0]
	if s.W != 105 || s.H != 74 {
		t.Errorf("Expected natural size, got %.2fx%.2f", s.W, s.H)
	}
	if math.Abs(s.X-52.5) > 1e-9 {
		t.Errorf("Expected centred X 52.5, got %.2f", s.X)
	}
}

func TestSlot_Mirror(t *testing.T) {
	s := Slot{X: 10, Y: 20, W: 50, H: 30}
	m := s.Mirror(210)
	if m.X != 150 || m.Y != 20 {
		t.Errorf("Mirror() = %+v", m)
	}
}

func TestSheet_PagesPerChunk(t *testing.T) {
	r := New(nil)
	tpl := sampleTemplate()
	badges := []Badge{badge("Ana"), badge("Bruno"), badge("Conceição")}

	data, err := r.Sheet(tpl, badges, true)
	if err != nil {
		t.Fatalf("Sheet() failed: %v", err)
	}
	assertPDF(t, data)
	if got := len(pageObject.FindAll(data, -1)); got != 4 {
		t.Errorf("Expected 4 pages (2 sheets, front and back), got %d", got)
	}

	single, err := r.Sheet(tpl, badges, false)
	if err != nil {
		t.Fatalf("Sheet() failed: %v", err)
	}
	if got := len(pageObject.FindAll(single, -1)); got != 2 {
		t.Errorf("Expected 2 pages single sided, got %d", got)
	}
}

func TestSheet_DoubleSidedNeedsBack(t *testing.T) {
	tpl := sampleTemplate()
	tpl.IsDoubleSided = false

	_, err := New(nil).Sheet(tpl, []Badge{badge("Ana")}, true)
	if !errors.Is(err, ErrMissingSide) {
		t.Errorf("Expected ErrMissingSide, got %v", err)
	}
}

func TestSheet_Empty(t *testing.T) {
	if _, err := New(nil).Sheet(sampleTemplate(), nil, false); err == nil {
		t.Error("Expected error for empty batch")
	}
}

func TestZip_OneDocumentPerPerson(t *testing.T) {
	r := New(nil, WithConcurrency(2))
	badges := []Badge{badge("Ana"), badge("Bruno Lima"), badge("Carla")}

	data, err := r.Zip(sampleTemplate(), badges, true)
	if err != nil {
		t.Fatalf("Zip() failed: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("invalid zip: %v", err)
	}
	want := []string{"001_Ana.pdf", "002_Bruno_Lima.pdf", "003_Carla.pdf"}
	if len(zr.File) != len(want) {
		t.Fatalf("Expected %d entries, got %d", len(want), len(zr.File))
	}
	for i, f := range zr.File {
		if f.Name != want[i] {
			t.Errorf("entry %d = %q, want %q", i, f.Name, want[i])
		}
	}
}

func TestDocument_WithImages(t *testing.T) {
	images, err := cache.New(t.TempDir())
	if err != nil {
		t.Fatalf("cache.New() failed: %v", err)
	}
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	png.Encode(&buf, img)
	photo := "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())

	tpl := sampleTemplate()
	tpl.FrontConfig.Elements = append(tpl.FrontConfig.Elements, models.BadgeElement{
		ID: "el_photo", Type: models.ElementImage, X: 5, Y: 35, Width: 30, Height: 30, ZIndex: 2,
	})
	b := badge("Ana")
	b.PhotoURL = photo

	data, err := New(images, WithDPI(72)).Document(tpl, b, true)
	if err != nil {
		t.Fatalf("Document() failed: %v", err)
	}
	assertPDF(t, data)
	if got := len(pageObject.FindAll(data, -1)); got != 2 {
		t.Errorf("Expected front and back pages, got %d", got)
	}
}

func TestPreviewPDF_MissingBack(t *testing.T) {
	tpl := sampleTemplate()
	tpl.IsDoubleSided = false

	if _, err := New(nil).PreviewPDF(tpl, SampleBadge(), models.SideBack); !errors.Is(err, ErrMissingSide) {
		t.Errorf("Expected ErrMissingSide, got %v", err)
	}
	data, err := New(nil).PreviewPDF(tpl, SampleBadge(), models.SideFront)
	if err != nil {
		t.Fatalf("PreviewPDF() failed: %v", err)
	}
	assertPDF(t, data)
}

func TestPreviewPNG(t *testing.T) {
	data, err := New(nil).PreviewPNG(sampleTemplate(), SampleBadge(), models.SideFront)
	if err != nil {
		t.Fatalf("PreviewPNG() failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("invalid PNG: %v", err)
	}
	// 105 x 74 mm at 150 dpi
	if b := img.Bounds(); b.Dx() != 620 || b.Dy() != 437 {
		t.Errorf("Expected 620x437, got %dx%d", b.Dx(), b.Dy())
	}
	r, g, b, _ := img.At(1, 1).RGBA()
	if c := (color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8)}); c.R != 255 || c.G != 0 || c.B != 0 {
		t.Errorf("Expected red background, got %+v", c)
	}
}

func TestPercentLayoutUsesCardSize(t *testing.T) {
	c := models.NewConfig(100, 100)
	c.Unit = models.UnitPercent

	w, h := New(nil).CardSize(&c)
	if w != DefaultCardWidth || h != DefaultCardHeight {
		t.Errorf("Expected default card size, got %.1fx%.1f", w, h)
	}
	w, h = New(nil, WithCardSize(86, 54)).CardSize(&c)
	if w != 86 || h != 54 {
		t.Errorf("Expected configured card size, got %.1fx%.1f", w, h)
	}
}

func TestFontMM_SameOnScreenForEveryUnit(t *testing.T) {
	s := models.DefaultStyle()
	mm := fontMM(&s, models.UnitMM, 1)
	px := fontMM(&s, models.UnitPX, 0.25)
	if mm != 3.5 || px != 3.5 {
		t.Errorf("Expected 3.5mm for 14px in both units, got mm=%v px=%v", mm, px)
	}
	if got := fontMM(nil, models.UnitMM, 1); got != 3.5 {
		t.Errorf("Expected default size for nil style, got %v", got)
	}
}

func TestQRContent(t *testing.T) {
	b := badge("Ana")
	cases := map[string]string{
		tokens.QRCode:      "E-Ana",
		"":                 "E-Ana",
		"{desconhecido}":   "E-Ana",
		"https://x/{nome}": "https://x/Ana",
	}
	for content, want := range cases {
		el := models.BadgeElement{Type: models.ElementQRCode, Content: content}
		if got := qrContent(el, b); got != want {
			t.Errorf("qrContent(%q) = %q, want %q", content, got, want)
		}
	}
}

func TestImageURL_Priority(t *testing.T) {
	b := Badge{PhotoURL: "https://cdn/photo.jpg"}
	style := models.DefaultStyle()
	style.Extra = map[string]any{"src": "https://cdn/logo.png"}

	if got := imageURL(models.BadgeElement{Content: "https://cdn/literal.png", Style: &style}, b); got != "https://cdn/literal.png" {
		t.Errorf("literal content should win, got %q", got)
	}
	if got := imageURL(models.BadgeElement{Content: "Logo", Style: &style}, b); got != "https://cdn/logo.png" {
		t.Errorf("style src should win over photo, got %q", got)
	}
	if got := imageURL(models.BadgeElement{Content: "Foto"}, b); got != "https://cdn/photo.jpg" {
		t.Errorf("photo fallback expected, got %q", got)
	}
}

func TestHexToRGB(t *testing.T) {
	if r, g, b := hexToRGB("#1a2B3c"); r != 0x1a || g != 0x2b || b != 0x3c {
		t.Errorf("hexToRGB long form = %d,%d,%d", r, g, b)
	}
	if r, g, b := hexToRGB("#fff"); r != 255 || g != 255 || b != 255 {
		t.Errorf("hexToRGB short form = %d,%d,%d", r, g, b)
	}
	if r, g, b := hexToRGB("nope"); r != 0 || g != 0 || b != 0 {
		t.Errorf("hexToRGB invalid = %d,%d,%d", r, g, b)
	}
}
