package source

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/gen2brain/go-fitz"
)

// PDFPage is one page of a PDF document rendered at a fixed DPI.
type PDFPage struct {
	path  string
	index int
	dpi   int
}

// OpenPDF returns a handle per page of the document at path.
func OpenPDF(path string, dpi int) ([]Image, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	if dpi <= 0 {
		dpi = 150
	}
	n := doc.NumPage()
	if n == 0 {
		return nil, fmt.Errorf("pdf %s has no pages", path)
	}
	pages := make([]Image, n)
	for i := 0; i < n; i++ {
		pages[i] = &PDFPage{path: path, index: i, dpi: dpi}
	}
	return pages, nil
}

func (p *PDFPage) Key() string { return fmt.Sprintf("pdf:%s#%d@%d", p.path, p.index, p.dpi) }

// Path is the document the page belongs to.
func (p *PDFPage) Path() string { return p.path }

// Index is the zero-based page number.
func (p *PDFPage) Index() int { return p.index }

func (p *PDFPage) Size() (int, int, error) {
	doc, err := fitz.New(p.path)
	if err != nil {
		return 0, 0, err
	}
	defer doc.Close()

	rect, err := doc.Bound(p.index)
	if err != nil {
		return 0, 0, err
	}
	// Bound is in points (1/72 inch)
	scale := float64(p.dpi) / 72.0
	return int(float64(rect.Dx()) * scale), int(float64(rect.Dy()) * scale), nil
}

func (p *PDFPage) Decode(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Отдельный документ на каждый рендер, чтобы не блокировать параллельные декоды
	doc, err := fitz.New(p.path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()
	return doc.ImageDPI(p.index, float64(p.dpi))
}

func (p *PDFPage) Bytes(ctx context.Context) ([]byte, error) {
	img, err := p.Decode(ctx)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
