// Package renderer переносит состояние кадра на копию документа и
// растеризует ее в RGBA-буфер заданного размера.
package renderer

import (
	"strconv"
	"strings"

	"github.com/ivlev/svg2video/internal/document"
	"github.com/ivlev/svg2video/internal/sampler"
)

// Свойства, которые кадр задает атрибутами; одноименные объявления во
// встроенном style перекрыли бы их.
var drawProps = map[string]bool{
	"stroke":            true,
	"stroke-width":      true,
	"fill":              true,
	"stroke-dasharray":  true,
	"stroke-dashoffset": true,
}

// Apply записывает состояние кадра в элементы doc. Вызывать только на копии,
// полученной через Document.Clone.
func Apply(doc *document.Document, f sampler.Frame) {
	for _, st := range f.States {
		el, ok := doc.Element(st.ID)
		if !ok {
			continue
		}
		n := el.Node()
		stripInline(n, st)

		l := format(st.DashLength)
		n.SetAttr("stroke-dasharray", l+" "+l)
		n.SetAttr("stroke-dashoffset", format(st.DashOffset))
		if st.Stroke != "" {
			n.SetAttr("stroke", st.Stroke)
		}
		if st.StrokeWidth > 0 {
			n.SetAttr("stroke-width", format(st.StrokeWidth))
		}
		if st.Fill != "" {
			n.SetAttr("fill", st.Fill)
		}
	}
}

// stripInline убирает из атрибута style объявления, которые кадр сейчас
// перезапишет. Незаданные в кадре свойства остаются как есть.
func stripInline(n *document.Node, st sampler.DrawState) {
	raw, ok := n.Attr("style")
	if !ok {
		return
	}
	var keep []string
	for _, d := range document.Declarations(raw) {
		if drawProps[d[0]] && overrides(d[0], st) {
			continue
		}
		keep = append(keep, d[0]+":"+d[1])
	}
	if len(keep) == 0 {
		n.RemoveAttr("style")
		return
	}
	n.SetAttr("style", strings.Join(keep, ";"))
}

func overrides(prop string, st sampler.DrawState) bool {
	switch prop {
	case "stroke":
		return st.Stroke != ""
	case "stroke-width":
		return st.StrokeWidth > 0
	case "fill":
		return st.Fill != ""
	}
	return true
}

// Resize задает корню документа размер итогового кадра.
func Resize(doc *document.Document, width, height int) {
	root := doc.Root()
	root.SetAttr("width", strconv.Itoa(width))
	root.SetAttr("height", strconv.Itoa(height))
}

func format(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
