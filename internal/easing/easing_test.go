package easing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundaries(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			assert.InDelta(t, 0, Apply(name, 0), 1e-12)
			assert.InDelta(t, 1, Apply(name, 1), 1e-12)
		})
	}
}

func TestValues(t *testing.T) {
	tests := []struct {
		name string
		p    float64
		want float64
	}{
		{Linear, 0.25, 0.25},
		{EaseIn, 0.5, 0.25},
		{EaseOut, 0.5, 0.75},
		{EaseInOut, 0.25, 0.125},
		{EaseInOut, 0.5, 0.5},
		{EaseInOut, 0.75, 0.875},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, Apply(tt.name, tt.p), 1e-12, "%s(%v)", tt.name, tt.p)
	}
}

func TestMonotonic(t *testing.T) {
	for _, name := range Names() {
		prev := -1.0
		for i := 0; i <= 100; i++ {
			v := Apply(name, float64(i)/100)
			assert.GreaterOrEqual(t, v, prev, "%s at %d", name, i)
			prev = v
		}
	}
}

func TestClampAndUnknown(t *testing.T) {
	assert.Equal(t, 0.0, Apply(EaseIn, -3))
	assert.Equal(t, 1.0, Apply(EaseOut, 7))
	assert.Equal(t, 0.0, Apply(Linear, math.NaN()))
	assert.Equal(t, 0.3, Apply("bounce", 0.3))
	assert.False(t, Known("bounce"))
	assert.True(t, Known(EaseInOut))
}
