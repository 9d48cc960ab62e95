package geometry

import (
	"fmt"
	"math"

	"github.com/ivlev/svg2video/internal/document"
)

// Box - ограничивающий прямоугольник в пользовательских единицах.
type Box struct {
	X, Y, W, H float64
}

// BBox возвращает ограничивающий прямоугольник элемента.
func BBox(el *document.Element) (Box, error) {
	switch el.Kind {
	case document.KindEllipse:
		cx, err := el.Number("cx", 0, true)
		if err != nil {
			return Box{}, err
		}
		cy, err := el.Number("cy", 0, true)
		if err != nil {
			return Box{}, err
		}
		rx, err := el.Number("rx", 0, false)
		if err != nil {
			return Box{}, err
		}
		ry, err := el.Number("ry", 0, false)
		if err != nil {
			return Box{}, err
		}
		return Box{X: cx - rx, Y: cy - ry, W: 2 * rx, H: 2 * ry}, nil

	case document.KindPolygon, document.KindPolyline:
		raw, ok := el.Attr("points")
		if !ok {
			return Box{}, fmt.Errorf("%s: missing attribute %q", el.ID, "points")
		}
		nums, err := document.ParseNumbers(raw)
		if err != nil {
			return Box{}, fmt.Errorf("%s: %w", el.ID, err)
		}
		if len(nums) < 2 {
			return Box{}, fmt.Errorf("%s: not enough points", el.ID)
		}
		var pts [][2]float64
		for i := 0; i+1 < len(nums); i += 2 {
			pts = append(pts, [2]float64{nums[i], nums[i+1]})
		}
		return boxOf(pts), nil

	case document.KindPath:
		pts, err := pathPoints(el)
		if err != nil {
			return Box{}, err
		}
		return boxOf(pts), nil

	case document.KindRect, document.KindOther:
		x, err := el.Number("x", 0, true)
		if err != nil {
			return Box{}, err
		}
		y, err := el.Number("y", 0, true)
		if err != nil {
			return Box{}, err
		}
		w, err := el.Number("width", 0, false)
		if err != nil {
			return Box{}, err
		}
		h, err := el.Number("height", 0, false)
		if err != nil {
			return Box{}, err
		}
		return Box{X: x, Y: y, W: w, H: h}, nil

	case document.KindCircle:
		cx, err := el.Number("cx", 0, true)
		if err != nil {
			return Box{}, err
		}
		cy, err := el.Number("cy", 0, true)
		if err != nil {
			return Box{}, err
		}
		r, err := el.Number("r", 0, false)
		if err != nil {
			return Box{}, err
		}
		return Box{X: cx - r, Y: cy - r, W: 2 * r, H: 2 * r}, nil
	}
	return Box{}, ErrUnsupported
}

func boxOf(pts [][2]float64) Box {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		minX = math.Min(minX, p[0])
		minY = math.Min(minY, p[1])
		maxX = math.Max(maxX, p[0])
		maxY = math.Max(maxY, p[1])
	}
	return Box{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}
