package document

import (
	"strings"
)

// Declarations разбирает атрибут style в пары свойство/значение
// с сохранением порядка.
func Declarations(style string) [][2]string {
	var out [][2]string
	for _, decl := range strings.Split(style, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "!important"))
		if k == "" {
			continue
		}
		out = append(out, [2]string{k, strings.TrimSpace(v)})
	}
	return out
}

// Property возвращает свойство оформления, заданное прямо на n. Объявление
// в style важнее одноименного атрибута.
func Property(n *Node, name string) (string, bool) {
	if style, ok := n.Attr("style"); ok {
		for _, d := range Declarations(style) {
			if d[0] == name && d[1] != "" && d[1] != "inherit" {
				return d[1], true
			}
		}
	}
	if v, ok := n.Attr(name); ok {
		v = strings.TrimSpace(v)
		if v != "" && v != "inherit" {
			return v, true
		}
	}
	return "", false
}

// Inherited поднимается по предкам n до первого заданного свойства.
func Inherited(n *Node, name string) (string, bool) {
	for cur := n; cur != nil; cur = cur.Parent {
		if v, ok := Property(cur, name); ok {
			return v, true
		}
	}
	return "", false
}

func hasOwnStroke(n *Node) bool {
	v, ok := Property(n, "stroke")
	return ok && v != "none"
}

func authoredStyle(n *Node) Style {
	var s Style
	if v, ok := Inherited(n, "stroke"); ok {
		s.Stroke = v
	}
	if v, ok := Inherited(n, "stroke-width"); ok {
		if w, err := ParseLength(v); err == nil && w >= 0 {
			s.StrokeWidth = w
		}
	}
	if v, ok := Inherited(n, "fill"); ok {
		s.Fill = v
	}
	return s
}
