// Package sampler вычисляет состояние прорисовки всех элементов для
// произвольного прогресса анимации. Результат зависит только от входных данных,
// поэтому один и тот же кадр можно получить и в превью, и при экспорте.
package sampler

import (
	"math"

	"github.com/ivlev/svg2video/internal/config"
	"github.com/ivlev/svg2video/internal/document"
	"github.com/ivlev/svg2video/internal/easing"
)

// LengthSource - источник длины контура (geometry.Resolver).
type LengthSource interface {
	Length(el *document.Element) float64
}

// StyleSource - источник стиля штриха (style.Resolver).
type StyleSource interface {
	Resolve(id string) document.Style
}

// Params - часть настроек анимации, влияющая на кадр.
type Params struct {
	Easing string
	Mode   string
}

// ParamsFrom выбирает из настроек анимации то, что нужно сэмплеру.
func ParamsFrom(a config.Animation) Params {
	return Params{Easing: a.Easing, Mode: a.Mode}
}

// DrawState - состояние одного элемента в кадре.
type DrawState struct {
	ID          string  `json:"id"`
	DashLength  float64 `json:"dashLength"`
	DashOffset  float64 `json:"dashOffset"`
	Stroke      string  `json:"stroke,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
	Fill        string  `json:"fill,omitempty"`
}

// Frame - состояние всех элементов в порядке документа.
type Frame struct {
	Progress float64     `json:"progress"`
	States   []DrawState `json:"states"`
}

// Sampler держит длины элементов, вычисленные один раз при создании.
type Sampler struct {
	ids     []string
	lengths []float64
	styles  StyleSource
}

func New(doc *document.Document, lengths LengthSource, styles StyleSource) *Sampler {
	s := &Sampler{
		ids:     make([]string, len(doc.Elements)),
		lengths: make([]float64, len(doc.Elements)),
		styles:  styles,
	}
	for i, el := range doc.Elements {
		s.ids[i] = el.ID
		s.lengths[i] = lengths.Length(el)
	}
	return s
}

// Len - количество анимируемых элементов.
func (s *Sampler) Len() int { return len(s.ids) }

// Sample возвращает кадр для прогресса p. Значения вне [0,1] ограничиваются.
func (s *Sampler) Sample(p float64, params Params) Frame {
	p = easing.Clamp(p)
	ease := easing.Lookup(params.Easing)
	n := len(s.ids)

	f := Frame{Progress: p, States: make([]DrawState, n)}
	for i, id := range s.ids {
		local := p
		if params.Mode == config.ModeStagger {
			local = LocalProgress(p, i, n)
		}
		f.States[i] = s.state(i, id, ease(local))
	}
	return f
}

// Reset - исходный кадр: все штрихи полностью скрыты.
func (s *Sampler) Reset() Frame {
	f := Frame{States: make([]DrawState, len(s.ids))}
	for i, id := range s.ids {
		f.States[i] = s.state(i, id, 0)
	}
	return f
}

func (s *Sampler) state(i int, id string, eased float64) DrawState {
	l := s.lengths[i]
	st := DrawState{
		ID:         id,
		DashLength: l,
		DashOffset: l * (1 - eased),
	}
	if s.styles != nil {
		style := s.styles.Resolve(id)
		st.Stroke = style.Stroke
		st.StrokeWidth = style.StrokeWidth
		st.Fill = style.Fill
	}
	return st
}

// LocalProgress переводит общий прогресс в прогресс i-го из n элементов:
// до своего интервала [i/n, (i+1)/n) элемент стоит на 0, после - на 1.
func LocalProgress(p float64, i, n int) float64 {
	if n <= 0 {
		return 0
	}
	return easing.Clamp(p*float64(n) - float64(i))
}

// Complete сообщает, что все штрихи нарисованы полностью.
func (f Frame) Complete() bool {
	for _, st := range f.States {
		if math.Abs(st.DashOffset) > 1e-9 {
			return false
		}
	}
	return true
}
