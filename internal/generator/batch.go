package generator

import (
	"archive/zip"
	"bytes"
	"fmt"
	"sync"

	"badge-studio/internal/cache"
	"badge-studio/internal/models"

	"github.com/jung-kurt/gofpdf"
)

// Sheet renders badges onto A4 sheets, BadgesPerPage to a page, in the
// template's orientation. With doubleSided every front page is followed
// by its back page, cards mirrored for duplex printing.
func (r *Renderer) Sheet(tpl *models.BadgeTemplate, badges []Badge, doubleSided bool) ([]byte, error) {
	if len(badges) == 0 {
		return nil, fmt.Errorf("no badges to render")
	}
	back := tpl.EffectiveBack()
	if doubleSided && back == nil {
		return nil, ErrMissingSide
	}

	orientation := "P"
	if tpl.PageOrientation == models.OrientationLandscape {
		orientation = "L"
	}
	pageW, pageH := PageSize(tpl.PageOrientation)
	cardW, cardH := r.CardSize(&tpl.FrontConfig)
	perPage := tpl.BadgesPerPage
	if perPage < 1 {
		perPage = 1
	}
	slots := Grid(pageW, pageH, cardW, cardH, perPage)

	doc := r.newDocument(&gofpdf.InitType{
		OrientationStr: orientation,
		UnitStr:        "mm",
		SizeStr:        "A4",
	}, r.preload(tpl, badges, doubleSided, slots[0].W/cardW))

	for start := 0; start < len(badges); start += perPage {
		end := start + perPage
		if end > len(badges) {
			end = len(badges)
		}
		page := badges[start:end]

		doc.pdf.AddPage()
		for i, b := range page {
			s := slots[i]
			doc.drawCard(&tpl.FrontConfig, b, s.X, s.Y, s.W, s.H)
		}
		if doubleSided {
			doc.pdf.AddPage()
			for i, b := range page {
				s := slots[i].Mirror(pageW)
				doc.drawCard(back, b, s.X, s.Y, s.W, s.H)
			}
		}
	}
	return doc.output()
}

// Document renders one person as a card-sized PDF: the front, then the
// back when doubleSided.
func (r *Renderer) Document(tpl *models.BadgeTemplate, b Badge, doubleSided bool) ([]byte, error) {
	return r.document(tpl, b, doubleSided, nil)
}

func (r *Renderer) document(tpl *models.BadgeTemplate, b Badge, doubleSided bool, preloaded map[string][]byte) ([]byte, error) {
	sides := []*models.BadgeConfig{&tpl.FrontConfig}
	if doubleSided {
		back := tpl.EffectiveBack()
		if back == nil {
			return nil, ErrMissingSide
		}
		sides = append(sides, back)
	}
	return r.sides(sides, b, preloaded)
}

func (r *Renderer) sides(sides []*models.BadgeConfig, b Badge, preloaded map[string][]byte) ([]byte, error) {
	w, h := r.CardSize(sides[0])
	doc := r.newDocument(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: w, Ht: h},
	}, preloaded)
	for _, c := range sides {
		cw, ch := r.CardSize(c)
		doc.pdf.AddPageFormat("P", gofpdf.SizeType{Wd: cw, Ht: ch})
		doc.drawCard(c, b, 0, 0, cw, ch)
	}
	return doc.output()
}

// Zip renders one PDF per person on a bounded worker pool and packs them
// into a zip archive in input order.
func (r *Renderer) Zip(tpl *models.BadgeTemplate, badges []Badge, doubleSided bool) ([]byte, error) {
	if len(badges) == 0 {
		return nil, fmt.Errorf("no badges to render")
	}
	preloaded := r.preload(tpl, badges, doubleSided, 1)

	type result struct {
		data []byte
		err  error
	}
	results := make([]result, len(badges))
	var wg sync.WaitGroup
	sem := make(chan struct{}, r.concurrency)

	for i, b := range badges {
		wg.Add(1)
		go func(idx int, b Badge) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			data, err := r.document(tpl, b, doubleSided, preloaded)
			results[idx] = result{data: data, err: err}
		}(i, b)
	}
	wg.Wait()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i, res := range results {
		if res.err != nil {
			return nil, fmt.Errorf("badge %d: %w", i+1, res.err)
		}
		f, err := zw.Create(entryName(i, badges[i]))
		if err != nil {
			return nil, err
		}
		if _, err := f.Write(res.data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func entryName(i int, b Badge) string {
	label := b.Label
	if label == "" {
		label = "badge"
	}
	return fmt.Sprintf("%03d_%s.pdf", i+1, models.SanitizeFileName(label))
}

// preload fetches every image the batch needs before rendering starts.
// scale is the factor cards are shrunk by on the page.
func (r *Renderer) preload(tpl *models.BadgeTemplate, badges []Badge, doubleSided bool, scale float64) map[string][]byte {
	if r.images == nil {
		return nil
	}
	sides := []*models.BadgeConfig{&tpl.FrontConfig}
	if back := tpl.EffectiveBack(); doubleSided && back != nil {
		sides = append(sides, back)
	}

	var reqs []cache.Request
	for _, c := range sides {
		w, h := r.CardSize(c)
		w, h = w*scale, h*scale
		sx, sy := c.Scale(w, h)
		if c.BackgroundImage != "" {
			reqs = append(reqs, cache.Request{URL: c.BackgroundImage, Width: w, Height: h, DPI: r.dpi})
		}
		for _, el := range c.Elements {
			if el.Type != models.ElementImage {
				continue
			}
			for _, b := range badges {
				if url := imageURL(el, b); url != "" {
					reqs = append(reqs, cache.Request{URL: url, Width: el.Width * sx, Height: el.Height * sy, DPI: r.dpi})
				}
			}
		}
	}
	if len(reqs) == 0 {
		return nil
	}
	return r.images.Preload(reqs, r.concurrency)
}
