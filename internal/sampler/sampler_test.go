package sampler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/svg2video/internal/config"
	"github.com/ivlev/svg2video/internal/document"
	"github.com/ivlev/svg2video/internal/geometry"
	"github.com/ivlev/svg2video/internal/style"
)

const sample = `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="100">
  <rect id="r" width="40" height="20" stroke="#ff0000" stroke-width="2"/>
  <line id="l" x1="0" y1="0" x2="30" y2="40"/>
  <path id="p" d="M0 0 L10 0"/>
  <circle id="c" r="abc"/>
</svg>`

func newSampler(t *testing.T) (*Sampler, *style.Resolver) {
	t.Helper()
	doc, err := document.ParseBytes([]byte(sample))
	require.NoError(t, err)
	styles := style.NewResolver(doc)
	return New(doc, geometry.NewResolver(), styles), styles
}

func TestSampleDocumentMode(t *testing.T) {
	s, _ := newSampler(t)

	f := s.Sample(0.5, Params{Easing: "linear", Mode: config.ModeDocument})
	require.Len(t, f.States, 4)

	rect := f.States[0]
	assert.Equal(t, "r", rect.ID)
	assert.InDelta(t, 120, rect.DashLength, 1e-9)
	assert.InDelta(t, 60, rect.DashOffset, 1e-9)
	assert.Equal(t, "#ff0000", rect.Stroke)
	assert.Equal(t, 2.0, rect.StrokeWidth)

	assert.InDelta(t, 50, f.States[1].DashLength, 1e-9)
	assert.InDelta(t, 25, f.States[1].DashOffset, 1e-9)

	circle := f.States[3]
	assert.Equal(t, geometry.FallbackLength, circle.DashLength)
}

func TestSampleBoundaries(t *testing.T) {
	s, _ := newSampler(t)
	for _, name := range []string{"linear", "easeIn", "easeOut", "easeInOut", "unknown"} {
		for _, mode := range []string{config.ModeDocument, config.ModeStagger} {
			params := Params{Easing: name, Mode: mode}
			start := s.Sample(0, params)
			end := s.Sample(1, params)
			for i := range start.States {
				assert.InDelta(t, start.States[i].DashLength, start.States[i].DashOffset, 1e-9, "%s/%s start", name, mode)
				assert.InDelta(t, 0, end.States[i].DashOffset, 1e-9, "%s/%s end", name, mode)
			}
			assert.True(t, end.Complete())
		}
	}
}

func TestSampleClamps(t *testing.T) {
	s, _ := newSampler(t)
	params := Params{Easing: "easeIn"}
	assert.Equal(t, s.Sample(0, params), s.Sample(-2, params))
	assert.Equal(t, s.Sample(1, params), s.Sample(3.5, params))
	assert.Equal(t, s.Sample(0, params), s.Sample(math.NaN(), params))
}

func TestSampleDeterministic(t *testing.T) {
	s, _ := newSampler(t)
	params := Params{Easing: "easeInOut", Mode: config.ModeStagger}
	for _, p := range []float64{0, 0.13, 0.5, 0.77, 1} {
		assert.Equal(t, s.Sample(p, params), s.Sample(p, params))
	}
}

func TestStaggerOrdering(t *testing.T) {
	s, _ := newSampler(t)
	params := Params{Easing: "linear", Mode: config.ModeStagger}

	// 4 элемента: на 0.375 первый дорисован, второй наполовину, остальные не начаты
	f := s.Sample(0.375, params)
	assert.InDelta(t, 0, f.States[0].DashOffset, 1e-9)
	assert.InDelta(t, f.States[1].DashLength/2, f.States[1].DashOffset, 1e-9)
	assert.InDelta(t, f.States[2].DashLength, f.States[2].DashOffset, 1e-9)
	assert.InDelta(t, f.States[3].DashLength, f.States[3].DashOffset, 1e-9)
}

func TestLocalProgress(t *testing.T) {
	tests := []struct {
		p    float64
		i, n int
		want float64
	}{
		{0, 0, 4, 0},
		{0.25, 0, 4, 1},
		{0.25, 1, 4, 0},
		{0.5, 1, 4, 1},
		{0.6, 2, 4, 0.4},
		{1, 3, 4, 1},
		{0.5, 0, 0, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, LocalProgress(tt.p, tt.i, tt.n), 1e-9, "p=%v i=%d n=%d", tt.p, tt.i, tt.n)
	}
}

func TestSampleFollowsOverride(t *testing.T) {
	s, styles := newSampler(t)
	require.NoError(t, styles.SetStroke("#00ff00"))

	f := s.Sample(0.2, Params{})
	for _, st := range f.States {
		assert.Equal(t, "#00ff00", st.Stroke)
	}
}

func TestReset(t *testing.T) {
	s, _ := newSampler(t)
	f := s.Reset()
	assert.Equal(t, s.Sample(0, Params{}), f)
	assert.False(t, f.Complete())
	assert.Equal(t, 4, s.Len())
}
