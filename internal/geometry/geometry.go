// Package geometry вычисляет полную длину контура элемента, которая служит
// длиной штриха (dash) в анимации прорисовки.
package geometry

import (
	"errors"
	"log/slog"
	"math"

	"github.com/ivlev/svg2video/internal/document"
)

// FallbackLength используется, когда длину вычислить не удалось.
const FallbackLength = 100.0

// ErrUnsupported возвращается нативным вычислителем для элементов,
// которые он не умеет измерять.
var ErrUnsupported = errors.New("native length not supported for element")

// NativeLength - точное вычисление длины силами движка разбора SVG.
type NativeLength interface {
	Length(el *document.Element) (float64, error)
}

// Resolver возвращает длину контура элемента. Результат всегда конечен и > 0.
type Resolver struct {
	Native NativeLength
	Logger *slog.Logger
}

// NewResolver создает резолвер с измерителем путей на базе oksvg.
func NewResolver() *Resolver {
	return &Resolver{Native: OKSVGLength{}}
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Length никогда не возвращает ошибку: любая проблема с геометрией
// превращается в FallbackLength.
func (r *Resolver) Length(el *document.Element) float64 {
	if r.Native != nil {
		l, err := r.Native.Length(el)
		if err == nil && valid(l) {
			return l
		}
		if err != nil && !errors.Is(err, ErrUnsupported) {
			r.logger().Debug("native length failed", "id", el.ID, "err", err)
		}
	}

	l, err := Estimate(el)
	if err != nil || !valid(l) {
		r.logger().Debug("length fallback", "id", el.ID, "kind", el.Kind.String(), "err", err)
		return FallbackLength
	}
	return l
}

func valid(l float64) bool {
	return !math.IsNaN(l) && !math.IsInf(l, 0) && l > 0
}

// Estimate вычисляет длину по атрибутам элемента без движка разбора.
func Estimate(el *document.Element) (float64, error) {
	switch el.Kind {
	case document.KindRect:
		w, err := el.Number("width", 0, false)
		if err != nil {
			return 0, err
		}
		h, err := el.Number("height", 0, false)
		if err != nil {
			return 0, err
		}
		return 2 * (w + h), nil

	case document.KindCircle:
		rad, err := el.Number("r", 0, false)
		if err != nil {
			return 0, err
		}
		return 2 * math.Pi * rad, nil

	case document.KindLine:
		var c [4]float64
		for i, name := range []string{"x1", "y1", "x2", "y2"} {
			v, err := el.Number(name, 0, true)
			if err != nil {
				return 0, err
			}
			c[i] = v
		}
		return math.Hypot(c[2]-c[0], c[3]-c[1]), nil

	case document.KindEllipse, document.KindPolygon, document.KindPolyline, document.KindOther, document.KindPath:
		b, err := BBox(el)
		if err != nil {
			return 0, err
		}
		return 2 * (b.W + b.H), nil
	}
	return 0, ErrUnsupported
}
