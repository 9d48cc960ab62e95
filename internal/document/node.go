package document

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

type nodeType int

const (
	elementNode nodeType = iota
	textNode
	commentNode
)

// Node - узел дерева разметки. Имена хранятся с префиксом ("xlink:href"),
// чтобы сериализованная копия совпадала с исходником.
type Node struct {
	typ      nodeType
	Name     string
	Attrs    []xml.Attr
	Children []*Node
	Parent   *Node
	Data     string
}

// IsElement - узел является элементом, а не текстом или комментарием.
func (n *Node) IsElement() bool { return n.typ == elementNode }

// Attr возвращает сырое значение атрибута.
func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if attrName(a.Name) == name {
			return a.Value, true
		}
	}
	return "", false
}

// SetAttr заменяет или добавляет атрибут.
func (n *Node) SetAttr(name, value string) {
	for i, a := range n.Attrs {
		if attrName(a.Name) == name {
			n.Attrs[i].Value = value
			return
		}
	}
	n.Attrs = append(n.Attrs, xml.Attr{Name: splitName(name), Value: value})
}

// RemoveAttr удаляет атрибут, если он есть.
func (n *Node) RemoveAttr(name string) {
	out := n.Attrs[:0]
	for _, a := range n.Attrs {
		if attrName(a.Name) != name {
			out = append(out, a)
		}
	}
	n.Attrs = out
}

// Walk обходит n и потомков в глубину в порядке документа.
// false из fn пропускает детей узла.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

func (n *Node) clone(parent *Node) *Node {
	c := &Node{typ: n.typ, Name: n.Name, Parent: parent, Data: n.Data}
	if len(n.Attrs) > 0 {
		c.Attrs = make([]xml.Attr, len(n.Attrs))
		copy(c.Attrs, n.Attrs)
	}
	if len(n.Children) > 0 {
		c.Children = make([]*Node, len(n.Children))
		for i, ch := range n.Children {
			c.Children[i] = ch.clone(c)
		}
	}
	return c
}

func attrName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

func splitName(s string) xml.Name {
	if i := strings.IndexByte(s, ':'); i > 0 {
		return xml.Name{Space: s[:i], Local: s[i+1:]}
	}
	return xml.Name{Local: s}
}

// parseTree строит дерево с сырыми именами. Вложенность элементов
// проверяется здесь: RawToken ее не проверяет.
func parseTree(r io.Reader) (*Node, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel
	dec.Strict = true

	doc := &Node{typ: elementNode}
	cur := doc
	for {
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{typ: elementNode, Name: attrName(t.Name), Parent: cur}
			n.Attrs = append(n.Attrs, t.Attr...)
			cur.Children = append(cur.Children, n)
			cur = n
		case xml.EndElement:
			if cur == doc || cur.Name != attrName(t.Name) {
				return nil, fmt.Errorf("unexpected end element </%s>", attrName(t.Name))
			}
			cur = cur.Parent
		case xml.CharData:
			if cur == doc {
				continue
			}
			cur.Children = append(cur.Children, &Node{typ: textNode, Data: string(t), Parent: cur})
		case xml.Comment:
			if cur == doc {
				continue
			}
			cur.Children = append(cur.Children, &Node{typ: commentNode, Data: string(t), Parent: cur})
		case xml.ProcInst, xml.Directive:
			// пролог и DOCTYPE пишутся заново при Encode
		}
	}
	if cur != doc {
		return nil, fmt.Errorf("unclosed element <%s>", cur.Name)
	}

	var root *Node
	for _, c := range doc.Children {
		if c.IsElement() {
			if root != nil {
				return nil, fmt.Errorf("multiple root elements")
			}
			root = c
		}
	}
	if root == nil {
		return nil, fmt.Errorf("no root element")
	}
	root.Parent = nil
	return root, nil
}

// encodeTree пишет n как самостоятельный XML.
func encodeTree(w io.Writer, n *Node) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="no"?>` + "\n")
	writeNode(bw, n)
	return bw.Flush()
}

func writeNode(w *bufio.Writer, n *Node) {
	switch n.typ {
	case textNode:
		xml.EscapeText(w, []byte(n.Data))
	case commentNode:
		w.WriteString("<!--")
		w.WriteString(n.Data)
		w.WriteString("-->")
	case elementNode:
		w.WriteByte('<')
		w.WriteString(n.Name)
		for _, a := range n.Attrs {
			w.WriteByte(' ')
			w.WriteString(attrName(a.Name))
			w.WriteString(`="`)
			xml.EscapeText(w, []byte(a.Value))
			w.WriteByte('"')
		}
		if len(n.Children) == 0 {
			w.WriteString("/>")
			return
		}
		w.WriteByte('>')
		for _, c := range n.Children {
			writeNode(w, c)
		}
		w.WriteString("</")
		w.WriteString(n.Name)
		w.WriteByte('>')
	}
}
