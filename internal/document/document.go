// Package document разбирает загруженный SVG в неизменяемое дерево элементов
// и выдает изменяемые копии для анимации и растеризации.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var (
	ErrInvalidDocument    = errors.New("invalid svg document")
	ErrNoDrawableElements = errors.New("no animatable elements found in the svg")
)

// DefaultSize - размер документа без width/height и без viewBox.
const DefaultSize = 100.0

type Kind int

const (
	KindPath Kind = iota
	KindLine
	KindRect
	KindCircle
	KindEllipse
	KindPolygon
	KindPolyline
	KindOther
)

var kindNames = [...]string{"path", "line", "rect", "circle", "ellipse", "polygon", "polyline", "other"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

var shapeKinds = map[string]Kind{
	"path":     KindPath,
	"line":     KindLine,
	"rect":     KindRect,
	"circle":   KindCircle,
	"ellipse":  KindEllipse,
	"polygon":  KindPolygon,
	"polyline": KindPolyline,
}

// Поддеревья, которые не рисуются напрямую.
var hiddenContainers = map[string]bool{
	"defs": true, "clipPath": true, "mask": true, "symbol": true, "marker": true,
	"pattern": true, "linearGradient": true, "radialGradient": true, "filter": true,
	"style": true, "script": true, "title": true, "desc": true, "metadata": true,
}

// Группы не анимируются сами, даже если у них задан stroke.
var groupElements = map[string]bool{"svg": true, "g": true, "a": true, "switch": true}

type ViewBox struct {
	X, Y, W, H float64
}

func (v ViewBox) String() string {
	return fmt.Sprintf("%s %s %s %s", formatFloat(v.X), formatFloat(v.Y), formatFloat(v.W), formatFloat(v.H))
}

// Style - исходная окраска элемента. Пустые Stroke/Fill и нулевой
// StrokeWidth означают, что значение не задано ни на элементе, ни выше.
type Style struct {
	Stroke      string  `json:"stroke" yaml:"stroke"`
	StrokeWidth float64 `json:"strokeWidth" yaml:"stroke_width"`
	Fill        string  `json:"fill" yaml:"fill"`
}

// Element - одна рисуемая фигура документа.
type Element struct {
	ID    string
	Kind  Kind
	Tag   string
	Index int
	Style Style

	node *Node
}

// Attr возвращает сырой атрибут элемента разметки.
func (e *Element) Attr(name string) (string, bool) { return e.node.Attr(name) }

// Node - узел разметки, в который рендер записывает состояние кадра.
func (e *Element) Node() *Node { return e.node }

// Number разбирает числовой атрибут геометрии. Отсутствующий атрибут дает
// def, если hasDefault; нечисловое значение - ошибка.
func (e *Element) Number(name string, def float64, hasDefault bool) (float64, error) {
	v, ok := e.node.Attr(name)
	if !ok || strings.TrimSpace(v) == "" {
		if hasDefault {
			return def, nil
		}
		return 0, fmt.Errorf("%s: missing attribute %q", e.ID, name)
	}
	f, err := ParseLength(v)
	if err != nil {
		return 0, fmt.Errorf("%s: attribute %q: %w", e.ID, name, err)
	}
	return f, nil
}

// Document - разобранный документ. Результат Parse только для чтения,
// изменять можно лишь копии из Clone.
type Document struct {
	Width, Height float64
	ViewBox       ViewBox
	Elements      []*Element

	root *Node
	byID map[string]*Element
}

// Parse читает SVG и собирает рисуемые элементы. Идентификаторы элементов
// уникальны: пропущенные и повторные получают новый id, который записывается
// в разметку.
func Parse(r io.Reader) (*Document, error) {
	root, err := parseTree(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if localName(root.Name) != "svg" {
		return nil, fmt.Errorf("%w: root element is <%s>, want <svg>", ErrInvalidDocument, root.Name)
	}

	d := &Document{root: root}
	d.resolveSize()

	ids := make(map[string]bool)
	root.Walk(func(n *Node) bool {
		if n.IsElement() {
			if id, ok := n.Attr("id"); ok && id != "" {
				ids[id] = true
			}
		}
		return true
	})

	used := make(map[string]bool)
	root.Walk(func(n *Node) bool {
		if !n.IsElement() {
			return false
		}
		name := localName(n.Name)
		if hiddenContainers[name] {
			return false
		}
		kind, ok := shapeKinds[name]
		if !ok {
			if groupElements[name] || !hasOwnStroke(n) {
				return true
			}
			kind = KindOther
		}

		el := &Element{Kind: kind, Tag: name, Index: len(d.Elements), node: n}
		el.ID, _ = n.Attr("id")
		switch {
		case el.ID == "":
			el.ID = uniqueID(fmt.Sprintf("path-%d", el.Index), ids)
			n.SetAttr("id", el.ID)
		case used[el.ID]:
			el.ID = uniqueID(el.ID, ids)
			n.SetAttr("id", el.ID)
		}
		used[el.ID] = true
		el.Style = authoredStyle(n)
		d.Elements = append(d.Elements, el)
		return true
	})

	if len(d.Elements) == 0 {
		return nil, ErrNoDrawableElements
	}
	d.index()
	return d, nil
}

// ParseBytes - Parse из среза байт.
func ParseBytes(b []byte) (*Document, error) {
	return Parse(bytes.NewReader(b))
}

// Clone возвращает глубокую копию с теми же идентификаторами элементов.
func (d *Document) Clone() *Document {
	root := d.root.clone(nil)
	mapping := make(map[*Node]*Node)
	pairNodes(d.root, root, mapping)

	c := &Document{Width: d.Width, Height: d.Height, ViewBox: d.ViewBox, root: root}
	c.Elements = make([]*Element, len(d.Elements))
	for i, el := range d.Elements {
		cp := *el
		cp.node = mapping[el.node]
		c.Elements[i] = &cp
	}
	c.index()
	return c
}

// Element ищет элемент по идентификатору.
func (d *Document) Element(id string) (*Element, bool) {
	el, ok := d.byID[id]
	return el, ok
}

// Root возвращает корневой <svg>.
func (d *Document) Root() *Node { return d.root }

// Encode сериализует дерево как самостоятельный SVG-файл.
func (d *Document) Encode(w io.Writer) error {
	return encodeTree(w, d.root)
}

// Bytes - Encode в память.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *Document) index() {
	d.byID = make(map[string]*Element, len(d.Elements))
	for _, el := range d.Elements {
		d.byID[el.ID] = el
	}
}

func (d *Document) resolveSize() {
	vb, hasViewBox := parseViewBox(d.root)

	d.Width = rootLength(d.root, "width")
	d.Height = rootLength(d.root, "height")
	if d.Width <= 0 {
		d.Width = DefaultSize
		if hasViewBox {
			d.Width = vb.W
		}
	}
	if d.Height <= 0 {
		d.Height = DefaultSize
		if hasViewBox {
			d.Height = vb.H
		}
	}

	if !hasViewBox {
		vb = ViewBox{W: d.Width, H: d.Height}
		d.root.SetAttr("viewBox", vb.String())
	}
	d.ViewBox = vb
}

func rootLength(root *Node, name string) float64 {
	v, ok := root.Attr(name)
	if !ok {
		return 0
	}
	f, err := ParseLength(v)
	if err != nil {
		return 0
	}
	return f
}

func parseViewBox(root *Node) (ViewBox, bool) {
	v, ok := root.Attr("viewBox")
	if !ok {
		return ViewBox{}, false
	}
	nums, err := ParseNumbers(v)
	if err != nil || len(nums) != 4 || nums[2] <= 0 || nums[3] <= 0 {
		return ViewBox{}, false
	}
	return ViewBox{X: nums[0], Y: nums[1], W: nums[2], H: nums[3]}, true
}

func pairNodes(a, b *Node, m map[*Node]*Node) {
	m[a] = b
	for i := range a.Children {
		pairNodes(a.Children[i], b.Children[i], m)
	}
}

func uniqueID(base string, taken map[string]bool) string {
	id := base
	for i := 2; taken[id]; i++ {
		id = fmt.Sprintf("%s-%d", base, i)
	}
	taken[id] = true
	return id
}

func localName(name string) string {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// ParseLength разбирает длину в пользовательских единицах. "px" допустим,
// другие единицы и проценты - ошибка.
func ParseLength(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "px")
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid length %q", s)
	}
	return f, nil
}

// ParseNumbers разбирает список чисел через запятые и пробелы (viewBox, points).
func ParseNumbers(s string) ([]float64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	nums := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", f)
		}
		nums = append(nums, v)
	}
	return nums, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
