package export

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/ivlev/svg2video/internal/system"
)

var ErrNoFrames = errors.New("export produces no frames")

// TotalFrames - число кадров экспорта: ceil(duration*fps).
func TotalFrames(duration float64, fps int) (int, error) {
	if !(duration > 0) || math.IsInf(duration, 0) || fps <= 0 {
		return 0, fmt.Errorf("%w: duration %v, fps %d", ErrNoFrames, duration, fps)
	}
	n := int(math.Ceil(duration * float64(fps)))
	if n < 1 {
		return 0, fmt.Errorf("%w: duration %v, fps %d", ErrNoFrames, duration, fps)
	}
	return n, nil
}

// Progress кадра i из n: первый кадр 0, последний 1.
func Progress(i, n int) float64 {
	if n <= 1 {
		return 0
	}
	return float64(i) / float64(n-1)
}

// FrameBuffer хранит захваченные кадры строго по порядку индексов.
// Release возвращает буферы в system.ImagePool; после этого буфер пуст.
type FrameBuffer struct {
	frames []*image.RGBA
}

func NewFrameBuffer(capacity int) *FrameBuffer {
	return &FrameBuffer{frames: make([]*image.RGBA, 0, capacity)}
}

// Append добавляет кадр с индексом i; индекс обязан быть следующим по счету.
func (b *FrameBuffer) Append(i int, img *image.RGBA) error {
	if i != len(b.frames) {
		return fmt.Errorf("frame %d out of order, expected %d", i, len(b.frames))
	}
	if img == nil {
		return fmt.Errorf("frame %d is nil", i)
	}
	b.frames = append(b.frames, img)
	return nil
}

func (b *FrameBuffer) Len() int { return len(b.frames) }

func (b *FrameBuffer) Frames() []*image.RGBA { return b.frames }

func (b *FrameBuffer) Release() {
	for i, img := range b.frames {
		system.PutImage(img)
		b.frames[i] = nil
	}
	b.frames = b.frames[:0]
}

// EstimateMemory - объем памяти под n кадров w x h в RGBA.
func EstimateMemory(w, h, n int) uint64 {
	return uint64(w) * uint64(h) * 4 * uint64(n)
}
