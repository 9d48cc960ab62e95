package geometry

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"math"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/math/fixed"

	"github.com/ivlev/svg2video/internal/document"
)

// Количество отрезков, на которые разбивается одна кривая Безье.
const curveSteps = 32

// OKSVGLength измеряет элементы path, компилируя атрибут d парсером oksvg
// и проходя полученный rasterx.Path.
type OKSVGLength struct{}

func (OKSVGLength) Length(el *document.Element) (float64, error) {
	if el.Kind != document.KindPath {
		return 0, ErrUnsupported
	}
	m, err := measurePath(el)
	if err != nil {
		return 0, err
	}
	return m.total, nil
}

func pathPoints(el *document.Element) ([][2]float64, error) {
	m, err := measurePath(el)
	if err != nil {
		return nil, err
	}
	if len(m.points) == 0 {
		return nil, fmt.Errorf("%s: empty path", el.ID)
	}
	return m.points, nil
}

func measurePath(el *document.Element) (*measurer, error) {
	d, ok := el.Attr("d")
	if !ok || strings.TrimSpace(d) == "" {
		return nil, fmt.Errorf("%s: missing attribute %q", el.ID, "d")
	}
	path, err := compilePath(d)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", el.ID, err)
	}
	m := &measurer{}
	path.AddTo(m)
	return m, nil
}

// compilePath разбирает данные пути в отдельном минимальном документе, чтобы
// трансформации и стили исходного файла не влияли на результат.
func compilePath(d string) (rasterx.Path, error) {
	var buf bytes.Buffer
	buf.WriteString(`<svg xmlns="http://www.w3.org/2000/svg"><path d="`)
	if err := xml.EscapeText(&buf, []byte(d)); err != nil {
		return nil, err
	}
	buf.WriteString(`"/></svg>`)

	icon, err := oksvg.ReadIconStream(&buf, oksvg.StrictErrorMode)
	if err != nil {
		return nil, err
	}
	if len(icon.SVGPaths) == 0 {
		return nil, fmt.Errorf("path produced no segments")
	}
	return icon.SVGPaths[0].Path, nil
}

// measurer реализует rasterx.Adder и накапливает длину ломаной,
// аппроксимирующей путь.
type measurer struct {
	start, cur [2]float64
	total      float64
	points     [][2]float64
}

var _ rasterx.Adder = (*measurer)(nil)

func toFloat(p fixed.Point26_6) [2]float64 {
	return [2]float64{float64(p.X) / 64, float64(p.Y) / 64}
}

func (m *measurer) Start(a fixed.Point26_6) {
	m.start = toFloat(a)
	m.cur = m.start
	m.points = append(m.points, m.cur)
}

func (m *measurer) lineTo(p [2]float64) {
	m.total += math.Hypot(p[0]-m.cur[0], p[1]-m.cur[1])
	m.cur = p
	m.points = append(m.points, p)
}

func (m *measurer) Line(b fixed.Point26_6) {
	m.lineTo(toFloat(b))
}

func (m *measurer) QuadBezier(b, c fixed.Point26_6) {
	p0, p1, p2 := m.cur, toFloat(b), toFloat(c)
	for i := 1; i <= curveSteps; i++ {
		t := float64(i) / curveSteps
		u := 1 - t
		m.lineTo([2]float64{
			u*u*p0[0] + 2*u*t*p1[0] + t*t*p2[0],
			u*u*p0[1] + 2*u*t*p1[1] + t*t*p2[1],
		})
	}
}

func (m *measurer) CubeBezier(b, c, d fixed.Point26_6) {
	p0, p1, p2, p3 := m.cur, toFloat(b), toFloat(c), toFloat(d)
	for i := 1; i <= curveSteps; i++ {
		t := float64(i) / curveSteps
		u := 1 - t
		m.lineTo([2]float64{
			u*u*u*p0[0] + 3*u*u*t*p1[0] + 3*u*t*t*p2[0] + t*t*t*p3[0],
			u*u*u*p0[1] + 3*u*u*t*p1[1] + 3*u*t*t*p2[1] + t*t*t*p3[1],
		})
	}
}

func (m *measurer) Stop(closeLoop bool) {
	if closeLoop && m.cur != m.start {
		m.lineTo(m.start)
	}
}
