// Package style решает, какие цвет и толщину штриха получает каждый элемент:
// авторские значения из документа или общий пользовательский override.
package style

import (
	"fmt"
	"math"
	"sync"

	"github.com/ivlev/svg2video/internal/config"
	"github.com/ivlev/svg2video/internal/document"
)

// DefaultStroke используется для override, если у первого элемента нет
// распознаваемого цвета штриха.
const DefaultStroke = "#000000"

// Override - глобальные настройки штриха, общие для всех элементов.
type Override struct {
	Stroke      string  `json:"stroke"`
	StrokeWidth float64 `json:"strokeWidth"`
}

// Resolver хранит неизменяемый снимок авторских стилей и текущий override.
// Безопасен для одновременного чтения из планировщика и экспорта.
type Resolver struct {
	original map[string]document.Style

	mu          sync.RWMutex
	override    Override
	useOriginal bool
}

// NewResolver снимает стили со всех элементов документа. Override по
// умолчанию берется у первого элемента.
func NewResolver(doc *document.Document) *Resolver {
	r := &Resolver{
		original:    make(map[string]document.Style, len(doc.Elements)),
		useOriginal: true,
		override:    Override{Stroke: DefaultStroke, StrokeWidth: 1},
	}
	for _, el := range doc.Elements {
		r.original[el.ID] = el.Style
	}
	if len(doc.Elements) > 0 {
		first := doc.Elements[0].Style
		if hex, ok := ToHex(first.Stroke); ok {
			r.override.Stroke = hex
		}
		if first.StrokeWidth > 0 {
			r.override.StrokeWidth = first.StrokeWidth
		}
	}
	return r
}

// Resolve возвращает стиль элемента. Заливка всегда авторская; пустые поля
// означают, что элемент сохраняет то, что у него уже есть.
func (r *Resolver) Resolve(id string) document.Style {
	orig := r.original[id]

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.useOriginal {
		return orig
	}
	return document.Style{
		Stroke:      r.override.Stroke,
		StrokeWidth: r.override.StrokeWidth,
		Fill:        orig.Fill,
	}
}

// Original возвращает снимок авторского стиля.
func (r *Resolver) Original(id string) (document.Style, bool) {
	s, ok := r.original[id]
	return s, ok
}

func (r *Resolver) Override() Override {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.override
}

func (r *Resolver) UseOriginal() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.useOriginal
}

func (r *Resolver) SetUseOriginal(v bool) {
	r.mu.Lock()
	r.useOriginal = v
	r.mu.Unlock()
}

// SetOverride заменяет override и переключает документ на него: правка
// пользователя должна сразу стать видимой.
func (r *Resolver) SetOverride(o Override) error {
	hex, ok := ToHex(o.Stroke)
	if !ok {
		return fmt.Errorf("%w: stroke %q", ErrInvalidColor, o.Stroke)
	}
	if !(o.StrokeWidth > 0) || math.IsInf(o.StrokeWidth, 0) {
		return fmt.Errorf("stroke width must be positive, got %v", o.StrokeWidth)
	}

	r.mu.Lock()
	r.override = Override{Stroke: hex, StrokeWidth: o.StrokeWidth}
	r.useOriginal = false
	r.mu.Unlock()
	return nil
}

// SetStroke меняет только цвет override.
func (r *Resolver) SetStroke(c string) error {
	o := r.Override()
	o.Stroke = c
	return r.SetOverride(o)
}

// SetStrokeWidth меняет только толщину override.
func (r *Resolver) SetStrokeWidth(w float64) error {
	o := r.Override()
	o.StrokeWidth = w
	return r.SetOverride(o)
}

// Configure применяет настройки из конфига или флагов командной строки.
// Заданный Stroke или StrokeWidth - правка override, и она включает
// override независимо от UseOriginal. Без правки действует UseOriginal.
func (r *Resolver) Configure(c config.Style) error {
	if c.Stroke == "" && !(c.StrokeWidth > 0) {
		r.SetUseOriginal(c.UseOriginal)
		return nil
	}
	o := r.Override()
	if c.Stroke != "" {
		o.Stroke = c.Stroke
	}
	if c.StrokeWidth > 0 {
		o.StrokeWidth = c.StrokeWidth
	}
	return r.SetOverride(o)
}
