package preview

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/ivlev/svg2video/internal/archive"
	"github.com/ivlev/svg2video/internal/document"
	"github.com/ivlev/svg2video/internal/renderer"
	"github.com/ivlev/svg2video/internal/sampler"
	"github.com/ivlev/svg2video/internal/system"
)

// RasterView растеризует кадры предпросмотра на собственном клоне документа
// в размере исходного документа и хранит последний снимок. Если задан Path,
// снимок сохраняется туда в PNG.
type RasterView struct {
	Path        string
	MinInterval time.Duration

	doc        *document.Document
	rasterizer renderer.Rasterizer
	background string
	width      int
	height     int

	mu     sync.Mutex
	clone  *document.Document
	last   *image.RGBA
	drawn  time.Time
	frames int
}

func NewRasterView(doc *document.Document, r renderer.Rasterizer, background string) *RasterView {
	w, h := int(doc.Width+0.5), int(doc.Height+0.5)
	if w <= 0 {
		w = int(document.DefaultSize)
	}
	if h <= 0 {
		h = int(document.DefaultSize)
	}
	return &RasterView{
		doc:        doc,
		rasterizer: r,
		background: background,
		width:      w,
		height:     h,
		clone:      doc.Clone(),
	}
}

func (v *RasterView) Apply(f sampler.Frame) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := time.Now()
	if f.Progress < 1 && v.MinInterval > 0 && !v.drawn.IsZero() && now.Sub(v.drawn) < v.MinInterval {
		return nil
	}
	renderer.Apply(v.clone, f)
	img, err := v.rasterizer.Rasterize(context.Background(), v.clone, v.width, v.height, v.background)
	if err != nil {
		return err
	}
	v.drawn = now
	v.frames++
	if v.last != nil {
		system.PutImage(v.last)
	}
	v.last = img
	if v.Path != "" {
		return archive.WriteSample(v.Path, img)
	}
	return nil
}

// Reset возвращает клон к исходному документу и сбрасывает снимок.
func (v *RasterView) Reset() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.clone = v.doc.Clone()
	if v.last != nil {
		system.PutImage(v.last)
		v.last = nil
	}
	v.drawn = time.Time{}
	return nil
}

// Snapshot возвращает копию последнего кадра или nil.
func (v *RasterView) Snapshot() *image.RGBA {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.last == nil {
		return nil
	}
	cp := image.NewRGBA(v.last.Rect)
	copy(cp.Pix, v.last.Pix)
	return cp
}

// Frames - число растеризованных кадров с момента создания.
func (v *RasterView) Frames() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frames
}
