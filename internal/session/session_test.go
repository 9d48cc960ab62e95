package session

import (
	"context"
	"errors"
	"image"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/svg2video/internal/config"
	"github.com/ivlev/svg2video/internal/document"
	"github.com/ivlev/svg2video/internal/export"
	"github.com/ivlev/svg2video/internal/playback"
	"github.com/ivlev/svg2video/internal/system"
	"github.com/ivlev/svg2video/internal/video"
)

const sample = `<svg xmlns="http://www.w3.org/2000/svg" width="40" height="20" viewBox="0 0 40 20">
  <rect id="r" width="40" height="20" stroke="#ff0000" stroke-width="2" fill="none"/>
  <path id="p" d="M0 10 L40 10" stroke="blue"/>
</svg>`

type fakeEncoder struct {
	block   chan struct{}
	started chan struct{}
	once    sync.Once
	err     error
	calls   int
}

func (e *fakeEncoder) Encode(ctx context.Context, frames []*image.RGBA, opts video.Options, out string) error {
	e.calls++
	if e.started != nil {
		e.once.Do(func() { close(e.started) })
	}
	if e.block != nil {
		<-e.block
	}
	if e.err != nil {
		return e.err
	}
	return os.WriteFile(out, []byte("x"), 0644)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Animation.Duration = 0.5
	cfg.Export.Width = 16
	cfg.Export.Height = 8
	cfg.Export.FPS = 4
	return cfg
}

func newSession(t *testing.T, enc video.Encoder) (*Session, *playback.ManualDriver) {
	t.Helper()
	drv := &playback.ManualDriver{}
	s := New(testConfig(), enc, WithDriver(drv), WithMemoryCheck(func(uint64) error { return nil }))
	_, err := s.Load(strings.NewReader(sample))
	require.NoError(t, err)
	return s, drv
}

func TestNotLoaded(t *testing.T) {
	s := New(testConfig(), &fakeEncoder{})
	assert.False(t, s.Loaded())
	assert.ErrorIs(t, s.Play(), ErrNotLoaded)
	_, err := s.Export(context.Background(), t.TempDir(), nil)
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = s.Frame(context.Background(), 0.5)
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.ErrorIs(t, s.SetStyle(config.Style{Stroke: "red"}), ErrNotLoaded)
	assert.Equal(t, playback.Idle, s.Playback().State)
}

func TestFailedLoadKeepsPrevious(t *testing.T) {
	s, _ := newSession(t, &fakeEncoder{})
	before, err := s.Document()
	require.NoError(t, err)

	_, err = s.Load(strings.NewReader("<html/>"))
	assert.ErrorIs(t, err, document.ErrInvalidDocument)
	_, err = s.Load(strings.NewReader(`<svg><g/></svg>`))
	assert.ErrorIs(t, err, document.ErrNoDrawableElements)

	after, err := s.Document()
	require.NoError(t, err)
	assert.Same(t, before, after)
}

func TestLoadReplacesAndStopsPlayback(t *testing.T) {
	s, drv := newSession(t, &fakeEncoder{})
	require.NoError(t, s.Play())
	assert.True(t, drv.Active())

	_, err := s.Load(strings.NewReader(sample))
	require.NoError(t, err)
	assert.False(t, drv.Active())
	assert.Equal(t, playback.Idle, s.Playback().State)
}

func TestExportStopsPlayback(t *testing.T) {
	enc := &fakeEncoder{}
	s, drv := newSession(t, enc)
	require.NoError(t, s.Play())
	drv.Tick()

	var stages []export.Stage
	art, err := s.Export(context.Background(), t.TempDir(), func(st export.Status) { stages = append(stages, st.Stage) })
	require.NoError(t, err)

	assert.Equal(t, export.KindVideo, art.Kind)
	assert.Equal(t, 2, art.Frames)
	assert.Equal(t, playback.Stopped, s.Playback().State)
	assert.False(t, drv.Active())
	assert.False(t, s.Exporting())
	assert.Equal(t, export.StageComplete, s.ExportStatus().Stage)
	assert.Equal(t, export.StageComplete, stages[len(stages)-1])
}

func TestConcurrentExportRejected(t *testing.T) {
	enc := &fakeEncoder{block: make(chan struct{})}
	s, _ := newSession(t, enc)

	done := make(chan error, 1)
	go func() {
		_, err := s.Export(context.Background(), t.TempDir(), nil)
		done <- err
	}()

	require.Eventually(t, s.Exporting, time.Second, time.Millisecond)
	_, err := s.Export(context.Background(), t.TempDir(), nil)
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, s.Play(), ErrBusy)

	close(enc.block)
	require.NoError(t, <-done)
	assert.False(t, s.Exporting())
}

func TestPlayRacingExportNeverStartsPreview(t *testing.T) {
	for i := 0; i < 20; i++ {
		enc := &fakeEncoder{block: make(chan struct{}), started: make(chan struct{})}
		s, drv := newSession(t, enc)
		dir := t.TempDir()

		stop := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					s.Play()
				}
			}
		}()

		done := make(chan error, 1)
		go func() {
			_, err := s.Export(context.Background(), dir, nil)
			done <- err
		}()

		<-enc.started
		close(stop)
		wg.Wait()
		assert.NotEqual(t, playback.Playing, s.Playback().State, "iteration %d", i)
		assert.False(t, drv.Active(), "iteration %d", i)

		close(enc.block)
		require.NoError(t, <-done)
	}
}

func TestExportFailureClearsFlag(t *testing.T) {
	s, _ := newSession(t, &fakeEncoder{})
	exp := s.ExportConfig()
	exp.Renderer = "nope"
	s.exp = exp

	_, err := s.Export(context.Background(), t.TempDir(), nil)
	assert.Error(t, err)
	assert.False(t, s.Exporting())
}

func TestFrame(t *testing.T) {
	s, _ := newSession(t, &fakeEncoder{})
	img, err := s.Frame(context.Background(), 1)
	require.NoError(t, err)
	defer system.PutImage(img)
	assert.Equal(t, image.Rect(0, 0, 16, 8), img.Bounds())

	f, err := s.Sample(0.5)
	require.NoError(t, err)
	require.Len(t, f.States, 2)
	assert.InDelta(t, 60, f.States[0].DashOffset, 1e-9)
}

func TestSetStyle(t *testing.T) {
	s, _ := newSession(t, &fakeEncoder{})
	require.NoError(t, s.SetStyle(config.Style{Stroke: "rgb(0, 255, 0)", StrokeWidth: 4}))

	f, err := s.Sample(1)
	require.NoError(t, err)
	for _, st := range f.States {
		assert.Equal(t, "#00ff00", st.Stroke)
		assert.Equal(t, 4.0, st.StrokeWidth)
	}

	require.NoError(t, s.SetStyle(config.Style{UseOriginal: true}))
	f, _ = s.Sample(1)
	assert.Equal(t, "#ff0000", f.States[0].Stroke)
}

func TestSettingsValidation(t *testing.T) {
	s, _ := newSession(t, &fakeEncoder{})
	assert.ErrorIs(t, s.SetAnimation(config.Animation{Duration: 0}), config.ErrInvalid)
	require.NoError(t, s.SetAnimation(config.Animation{Duration: 3, Easing: "easeIn", Mode: config.ModeStagger}))
	assert.Equal(t, 3.0, s.Animation().Duration)

	exp := s.ExportConfig()
	exp.Format = "avi"
	assert.ErrorIs(t, s.SetExport(exp), video.ErrUnknownFormat)
	exp.Format = "gif"
	require.NoError(t, s.SetExport(exp))
}

func TestReset(t *testing.T) {
	s, drv := newSession(t, &fakeEncoder{})
	require.NoError(t, s.Play())
	s.Reset(testConfig())
	assert.False(t, s.Loaded())
	assert.False(t, drv.Active())
	_, err := s.Source()
	assert.True(t, errors.Is(err, ErrNotLoaded))
}
