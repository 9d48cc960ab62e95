package playback

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/svg2video/internal/config"
	"github.com/ivlev/svg2video/internal/sampler"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Unix(1700000000, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// frames отдает один элемент длиной 100 с линейной прорисовкой.
type frames struct{}

func (frames) Sample(p float64, _ sampler.Params) sampler.Frame {
	return sampler.Frame{Progress: p, States: []sampler.DrawState{{ID: "a", DashLength: 100, DashOffset: 100 * (1 - p)}}}
}

func (f frames) Reset() sampler.Frame { return f.Sample(0, sampler.Params{}) }

type recordingView struct {
	mu      sync.Mutex
	applied []sampler.Frame
	resets  int
}

func (v *recordingView) Apply(f sampler.Frame) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.applied = append(v.applied, f)
	return nil
}

func (v *recordingView) Reset() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.resets++
	return nil
}

func (v *recordingView) last() sampler.Frame {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.applied[len(v.applied)-1]
}

func setup() (*Scheduler, *ManualDriver, *fakeClock, *recordingView) {
	d := &ManualDriver{}
	c := newFakeClock()
	v := &recordingView{}
	return New(frames{}, v, WithDriver(d), WithClock(c)), d, c, v
}

func anim(duration float64, repeat int) config.Animation {
	return config.Animation{Duration: duration, Easing: "linear", Repeat: repeat, Mode: config.ModeDocument}
}

func TestPlayToCompletion(t *testing.T) {
	s, d, c, v := setup()
	require.NoError(t, s.Play(anim(2, 1)))
	assert.Equal(t, Playing, s.Status().State)
	assert.Equal(t, 100.0, v.last().States[0].DashOffset, "reset frame is applied on play")

	c.Advance(time.Second)
	require.True(t, d.Tick())
	assert.InDelta(t, 0.5, s.Status().Progress, 1e-9)
	assert.InDelta(t, 50, v.last().States[0].DashOffset, 1e-9)

	c.Advance(1500 * time.Millisecond)
	require.True(t, d.Tick())

	st := s.Status()
	assert.Equal(t, Idle, st.State)
	assert.Equal(t, 1.0, st.Progress)
	assert.Equal(t, 0.0, v.last().States[0].DashOffset, "final frame fully drawn")
	assert.False(t, d.Active())

	select {
	case <-s.Done():
	default:
		t.Fatal("done channel must be closed after completion")
	}
}

func TestDelay(t *testing.T) {
	s, d, c, v := setup()
	a := anim(1, 1)
	a.Delay = 0.5
	require.NoError(t, s.Play(a))
	applied := len(v.applied)

	c.Advance(400 * time.Millisecond)
	d.Tick()
	assert.Equal(t, 0.0, s.Status().Progress)
	assert.Len(t, v.applied, applied, "nothing drawn during the delay")

	c.Advance(600 * time.Millisecond)
	d.Tick()
	assert.InDelta(t, 0.5, s.Status().Progress, 1e-9)
}

func TestRepeatForever(t *testing.T) {
	s, d, c, v := setup()
	require.NoError(t, s.Play(anim(1, 0)))

	for i := 0; i < 5; i++ {
		c.Advance(time.Second)
		require.True(t, d.Tick())
		assert.Equal(t, 100.0, v.last().States[0].DashOffset, "reset frame between iterations")
		assert.Equal(t, Playing, s.Status().State)

		// следующая итерация начинается на следующем тике
		d.Tick()
		assert.Equal(t, i+1, s.Status().Iteration)
		assert.Equal(t, 0.0, s.Status().Progress)
	}
}

func TestRepeatCount(t *testing.T) {
	s, d, c, _ := setup()
	require.NoError(t, s.Play(anim(1, 3)))

	ticks := 0
	for s.Status().State == Playing && ticks < 20 {
		c.Advance(time.Second)
		d.Tick()
		ticks++
	}
	st := s.Status()
	assert.Equal(t, Idle, st.State)
	assert.Equal(t, 2, st.Iteration, "three plays: iterations 0, 1, 2")
}

func TestPauseResume(t *testing.T) {
	s, d, c, _ := setup()
	require.NoError(t, s.Play(anim(4, 1)))

	c.Advance(time.Second)
	d.Tick()
	s.Pause()
	assert.Equal(t, Paused, s.Status().State)
	assert.False(t, d.Active())

	// время на паузе не учитывается
	c.Advance(time.Hour)
	assert.False(t, d.Tick())

	require.NoError(t, s.Play(config.Animation{}))
	c.Advance(time.Second)
	d.Tick()
	assert.InDelta(t, 0.5, s.Status().Progress, 1e-9)
}

func TestStopAndReset(t *testing.T) {
	s, d, c, v := setup()
	require.NoError(t, s.Play(anim(1, 0)))
	c.Advance(300 * time.Millisecond)
	d.Tick()

	done := s.Done()
	s.Stop()
	assert.Equal(t, Stopped, s.Status().State)
	assert.Equal(t, 1, v.resets)
	assert.False(t, d.Tick(), "pending ticks are cancelled")
	<-done

	s.Reset()
	st := s.Status()
	assert.Equal(t, Idle, st.State)
	assert.Equal(t, 0.0, st.Progress)
	assert.Equal(t, 0, st.Iteration)
}

func TestPlayWhilePlayingRestarts(t *testing.T) {
	s, d, c, v := setup()
	require.NoError(t, s.Play(anim(1, 0)))
	first := s.Done()
	c.Advance(700 * time.Millisecond)
	d.Tick()

	require.NoError(t, s.Play(anim(2, 1)))
	<-first
	assert.Equal(t, 1, v.resets)
	assert.Equal(t, 0.0, s.Status().Progress)

	c.Advance(time.Second)
	d.Tick()
	assert.InDelta(t, 0.5, s.Status().Progress, 1e-9)
}

// keepAllDriver хранит все callbacks, чтобы проверить отбрасывание устаревших тиков.
type keepAllDriver struct{ ticks []func() }

func (d *keepAllDriver) Start(tick func()) func() {
	d.ticks = append(d.ticks, tick)
	return func() {}
}

func TestStaleTicksIgnored(t *testing.T) {
	d := &keepAllDriver{}
	c := newFakeClock()
	v := &recordingView{}
	s := New(frames{}, v, WithDriver(d), WithClock(c))

	require.NoError(t, s.Play(anim(1, 1)))
	require.NoError(t, s.Play(anim(10, 1)))
	require.Len(t, d.ticks, 2)

	c.Advance(time.Second)
	d.ticks[0]()
	assert.Equal(t, 0.0, s.Status().Progress, "tick of a superseded run is dropped")

	d.ticks[1]()
	assert.InDelta(t, 0.1, s.Status().Progress, 1e-9)

	s.Pause()
	before := len(v.applied)
	d.ticks[1]()
	assert.Len(t, v.applied, before, "tick after pause is dropped")
}

func TestPlayValidates(t *testing.T) {
	s, _, _, _ := setup()
	assert.Error(t, s.Play(config.Animation{Duration: 0}))
	assert.Equal(t, Idle, s.Status().State)
}

func TestTickerDriver(t *testing.T) {
	var mu sync.Mutex
	n := 0
	stop := TickerDriver{Interval: time.Millisecond}.Start(func() {
		mu.Lock()
		n++
		mu.Unlock()
	})
	time.Sleep(30 * time.Millisecond)
	stop()
	stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Greater(t, n, 0)
}

func TestStateText(t *testing.T) {
	b, err := Paused.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "paused", string(b))
	assert.Equal(t, "State(9)", State(9).String())
}
