// Package easing содержит фиксированный набор кривых прогресса анимации.
package easing

import (
	"math"
	"sort"

	"github.com/fogleman/ease"
)

const (
	Linear    = "linear"
	EaseIn    = "easeIn"
	EaseOut   = "easeOut"
	EaseInOut = "easeInOut"
)

// Func отображает прогресс [0,1] в [0,1], f(0)=0, f(1)=1.
type Func func(p float64) float64

var funcs = map[string]Func{
	Linear:    ease.Linear,
	EaseIn:    ease.InQuad,
	EaseOut:   ease.OutQuad,
	EaseInOut: ease.InOutQuad,
}

// Lookup возвращает кривую по имени; неизвестные имена дают linear.
func Lookup(name string) Func {
	if f, ok := funcs[name]; ok {
		return f
	}
	return ease.Linear
}

// Known сообщает, есть ли кривая с таким именем.
func Known(name string) bool {
	_, ok := funcs[name]
	return ok
}

// Names - список доступных кривых в алфавитном порядке.
func Names() []string {
	names := make([]string, 0, len(funcs))
	for n := range funcs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Apply ограничивает p отрезком [0,1] и применяет кривую name.
func Apply(name string, p float64) float64 {
	return Lookup(name)(Clamp(p))
}

// Clamp приводит значение к [0,1]; NaN считается нулем.
func Clamp(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
