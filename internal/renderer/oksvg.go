package renderer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/ivlev/svg2video/internal/document"
	"github.com/ivlev/svg2video/internal/system"
)

// OKSVG растеризует документ чистым Go через oksvg/rasterx.
type OKSVG struct{}

func (r *OKSVG) Rasterize(ctx context.Context, doc *document.Document, width, height int, background string) (*image.RGBA, error) {
	if err := checkSize(width, height); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	x, y, w, h := fit(doc.ViewBox, width, height)
	work := doc.Clone()
	if vb := doc.ViewBox; vb.W > 0 && vb.H > 0 {
		scaleStrokes(work, math.Sqrt(w/vb.W*h/vb.H))
	}

	data, err := work.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encode svg: %w", err)
	}
	// неподдерживаемые элементы (text, image) пропускаются, фигуры рисуются
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("oksvg parse: %w", err)
	}

	img, err := newCanvas(width, height, background)
	if err != nil {
		return nil, err
	}

	icon.SetTarget(x, y, w, h)

	scanner := rasterx.NewScannerGV(width, height, img, img.Bounds())
	dasher := rasterx.NewDasher(width, height, scanner)
	icon.Draw(dasher, 1.0)

	if err := ctx.Err(); err != nil {
		system.PutImage(img)
		return nil, err
	}
	return img, nil
}
