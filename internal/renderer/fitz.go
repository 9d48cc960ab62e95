package renderer

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"

	"github.com/gen2brain/go-fitz"
	xdraw "golang.org/x/image/draw"

	"github.com/ivlev/svg2video/internal/document"
	"github.com/ivlev/svg2video/internal/system"
)

// Fitz растеризует документ через MuPDF (go-fitz). MuPDF открывает SVG как
// одностраничный документ; результат масштабируется и накладывается на фон.
type Fitz struct {
	// TempDir - каталог для временных SVG (по умолчанию os.TempDir()).
	TempDir string
}

func (r *Fitz) Rasterize(ctx context.Context, doc *document.Document, width, height int, background string) (*image.RGBA, error) {
	if err := checkSize(width, height); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.CreateTemp(r.TempDir, "svg2video_*.svg")
	if err != nil {
		return nil, err
	}
	path := f.Name()
	defer os.Remove(path)

	if err := doc.Encode(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("encode svg: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	page, err := renderPage(path, width, height)
	if err != nil {
		return nil, err
	}

	img, err := newCanvas(width, height, background)
	if err != nil {
		return nil, err
	}
	x, y, w, h := fit(document.ViewBox{W: float64(page.Bounds().Dx()), H: float64(page.Bounds().Dy())}, width, height)
	dst := image.Rect(int(math.Round(x)), int(math.Round(y)), int(math.Round(x+w)), int(math.Round(y+h)))
	xdraw.CatmullRom.Scale(img, dst, page, page.Bounds(), xdraw.Over, nil)

	if err := ctx.Err(); err != nil {
		system.PutImage(img)
		return nil, err
	}
	return img, nil
}

// renderPage подбирает DPI так, чтобы страница была не меньше кадра.
func renderPage(path string, width, height int) (*image.RGBA, error) {
	d, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("mupdf open: %w", err)
	}
	defer d.Close()

	bound, err := d.Bound(0)
	if err != nil {
		return nil, fmt.Errorf("mupdf bound: %w", err)
	}
	if bound.Dx() <= 0 || bound.Dy() <= 0 {
		return nil, fmt.Errorf("mupdf: empty page %v", bound)
	}

	dpi := 72 * math.Max(float64(width)/float64(bound.Dx()), float64(height)/float64(bound.Dy()))
	img, err := d.ImageDPI(0, dpi)
	if err != nil {
		return nil, fmt.Errorf("mupdf render: %w", err)
	}
	return img, nil
}
