package renderer

import (
	"fmt"
	"math"
	"strings"

	"github.com/srwiley/rasterx"

	"github.com/ivlev/svg2video/internal/document"
)

// scaleStrokes переводит stroke-width, stroke-dasharray и stroke-dashoffset
// элементов doc в пиксели кадра. oksvg масштабирует только точки контура,
// а толщину и штрихи отдает rasterx.Dasher без преобразования.
// base - масштаб viewBox -> кадр; transform элемента и его предков
// учитывается отдельно для каждого элемента.
func scaleStrokes(doc *document.Document, base float64) {
	for _, el := range doc.Elements {
		n := el.Node()
		s := base * transformScale(n)
		if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
			continue
		}

		w := 1.0
		if v, ok := document.Inherited(n, "stroke-width"); ok {
			if f, err := document.ParseLength(v); err == nil && f >= 0 {
				w = f
			}
		}
		setProp(n, "stroke-width", format(w*s))

		if v, ok := document.Inherited(n, "stroke-dasharray"); ok && strings.TrimSpace(v) != "none" {
			if nums, err := document.ParseNumbers(v); err == nil && len(nums) > 0 {
				parts := make([]string, len(nums))
				for i, d := range nums {
					parts[i] = format(d * s)
				}
				setProp(n, "stroke-dasharray", strings.Join(parts, " "))
			}
		}
		if v, ok := document.Inherited(n, "stroke-dashoffset"); ok {
			if f, err := document.ParseLength(v); err == nil {
				setProp(n, "stroke-dashoffset", format(f*s))
			}
		}
	}
}

// setProp записывает свойство атрибутом, убирая одноименное объявление из style.
func setProp(n *document.Node, name, value string) {
	if raw, ok := n.Attr("style"); ok {
		var keep []string
		for _, d := range document.Declarations(raw) {
			if d[0] != name {
				keep = append(keep, d[0]+":"+d[1])
			}
		}
		if len(keep) == 0 {
			n.RemoveAttr("style")
		} else {
			n.SetAttr("style", strings.Join(keep, ";"))
		}
	}
	n.SetAttr(name, value)
}

// transformScale - средний линейный масштаб (корень из модуля определителя)
// произведения transform от корня до n. Неразборчивый transform дает 1.
func transformScale(n *document.Node) float64 {
	var chain []string
	for cur := n; cur != nil; cur = cur.Parent {
		if v, ok := cur.Attr("transform"); ok {
			chain = append(chain, v)
		}
	}
	m := rasterx.Identity
	for i := len(chain) - 1; i >= 0; i-- {
		t, err := parseTransform(chain[i])
		if err != nil {
			return 1
		}
		m = m.Mult(t)
	}
	return math.Sqrt(math.Abs(m.A*m.D - m.B*m.C))
}

// parseTransform разбирает список преобразований SVG в матрицу.
func parseTransform(v string) (rasterx.Matrix2D, error) {
	m := rasterx.Identity
	for _, t := range strings.Split(v, ")") {
		t = strings.TrimLeft(t, ", \t\r\n")
		if strings.TrimSpace(t) == "" {
			continue
		}
		name, args, ok := strings.Cut(t, "(")
		if !ok {
			return m, fmt.Errorf("invalid transform %q", v)
		}
		a, err := document.ParseNumbers(args)
		if err != nil {
			return m, fmt.Errorf("invalid transform %q: %w", v, err)
		}
		name = strings.ToLower(strings.TrimSpace(name))
		switch {
		case name == "matrix" && len(a) == 6:
			m = m.Mult(rasterx.Matrix2D{A: a[0], B: a[1], C: a[2], D: a[3], E: a[4], F: a[5]})
		case name == "translate" && len(a) == 1:
			m = m.Translate(a[0], 0)
		case name == "translate" && len(a) == 2:
			m = m.Translate(a[0], a[1])
		case name == "scale" && len(a) == 1:
			m = m.Scale(a[0], a[0])
		case name == "scale" && len(a) == 2:
			m = m.Scale(a[0], a[1])
		case name == "rotate" && len(a) == 1:
			m = m.Rotate(a[0] * math.Pi / 180)
		case name == "rotate" && len(a) == 3:
			m = m.Translate(a[1], a[2]).Rotate(a[0]*math.Pi/180).Translate(-a[1], -a[2])
		case name == "skewx" && len(a) == 1:
			m = m.SkewX(a[0] * math.Pi / 180)
		case name == "skewy" && len(a) == 1:
			m = m.SkewY(a[0] * math.Pi / 180)
		default:
			return m, fmt.Errorf("invalid transform %q", v)
		}
	}
	return m, nil
}
