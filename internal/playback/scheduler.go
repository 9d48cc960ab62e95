// Package playback проигрывает анимацию прорисовки в реальном времени:
// на каждом тике вычисляет прогресс по часам и отдает кадр в View.
package playback

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ivlev/svg2video/internal/config"
	"github.com/ivlev/svg2video/internal/easing"
	"github.com/ivlev/svg2video/internal/sampler"
)

type State int

const (
	Idle State = iota
	Playing
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status - снимок состояния планировщика.
type Status struct {
	State     State   `json:"state"`
	Progress  float64 `json:"progress"`
	Iteration int     `json:"iteration"`
}

// View отображает кадры. Методы вызываются под блокировкой планировщика и не
// должны обращаться к нему обратно.
type View interface {
	Apply(f sampler.Frame) error
	// Reset возвращает отображение в исходное (до анимации) состояние.
	Reset() error
}

// FrameSource - сэмплер кадров.
type FrameSource interface {
	Sample(p float64, params sampler.Params) sampler.Frame
	Reset() sampler.Frame
}

type Option func(*Scheduler)

func WithDriver(d Driver) Option { return func(s *Scheduler) { s.driver = d } }

func WithClock(c Clock) Option { return func(s *Scheduler) { s.clock = c } }

func WithLogger(l *slog.Logger) Option { return func(s *Scheduler) { s.logger = l } }

// Scheduler - конечный автомат Idle -> Playing <-> Paused -> Stopped.
// Одновременно активен только один прогон; тики устаревших прогонов
// отбрасываются по номеру поколения.
type Scheduler struct {
	frames FrameSource
	view   View
	driver Driver
	clock  Clock
	logger *slog.Logger

	mu        sync.Mutex
	anim      config.Animation
	state     State
	gen       uint64
	stopTicks func()
	start     time.Time
	elapsed   time.Duration // замороженное время на паузе
	progress  float64
	iteration int
	restart   bool
	done      chan struct{}
}

func New(frames FrameSource, view View, opts ...Option) *Scheduler {
	s := &Scheduler{
		frames: frames,
		view:   view,
		driver: TickerDriver{},
		clock:  systemClock{},
		logger: slog.Default(),
		done:   closedChan(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func closedChan() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}

// Play запускает новый прогон или продолжает прогон после паузы. В последнем
// случае anim игнорируется: параметры прогона не меняются на ходу.
func (s *Scheduler) Play(anim config.Animation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Paused {
		s.start = s.clock.Now().Add(-s.elapsed)
		s.state = Playing
		s.startTicks()
		return nil
	}

	if err := anim.Validate(); err != nil {
		return err
	}
	if s.state == Playing {
		s.haltLocked()
		s.finish()
		s.resetView()
	}

	s.anim = anim
	s.iteration = 0
	s.progress = 0
	s.restart = false
	s.elapsed = 0
	s.start = s.clock.Now().Add(seconds(anim.Delay))
	s.done = make(chan struct{})
	s.state = Playing
	s.apply(s.frames.Reset())
	s.startTicks()
	return nil
}

// Pause замораживает прошедшее время. Вне состояния Playing ничего не делает.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Playing {
		return
	}
	s.haltLocked()
	s.elapsed = s.clock.Now().Sub(s.start)
	s.state = Paused
}

// Stop отменяет тики и возвращает отображение в исходное состояние.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Playing && s.state != Paused {
		return
	}
	s.haltLocked()
	s.state = Stopped
	s.finish()
	s.resetView()
}

// Reset делает то же, что Stop, и обнуляет счетчики прогона.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.haltLocked()
	s.state = Idle
	s.progress = 0
	s.iteration = 0
	s.elapsed = 0
	s.restart = false
	s.finish()
	s.resetView()
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{State: s.state, Progress: s.progress, Iteration: s.iteration}
}

// Done закрывается, когда текущий прогон завершился или был остановлен.
func (s *Scheduler) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Scheduler) startTicks() {
	s.gen++
	gen := s.gen
	s.stopTicks = s.driver.Start(func() { s.tick(gen) })
}

// haltLocked отписывается от драйвера; уже запланированные тики станут
// устаревшими после смены поколения.
func (s *Scheduler) haltLocked() {
	if s.stopTicks != nil {
		s.stopTicks()
		s.stopTicks = nil
	}
	s.gen++
}

func (s *Scheduler) finish() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

func (s *Scheduler) tick(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.state != Playing {
		return
	}

	now := s.clock.Now()
	if s.restart {
		// следующая итерация стартует без задержки
		s.restart = false
		s.iteration++
		s.start = now
	}

	elapsed := now.Sub(s.start)
	if elapsed < 0 {
		return
	}
	p := easing.Clamp(elapsed.Seconds() / s.anim.Duration)
	s.progress = p

	if p < 1 {
		s.apply(s.frames.Sample(p, sampler.ParamsFrom(s.anim)))
		return
	}

	if s.anim.Repeat == 0 || s.iteration < s.anim.Repeat-1 {
		s.apply(s.frames.Reset())
		s.restart = true
		return
	}

	s.apply(s.frames.Sample(1, sampler.ParamsFrom(s.anim)))
	s.haltLocked()
	s.state = Idle
	s.finish()
	s.logger.Debug("playback complete", "iterations", s.iteration+1)
}

func (s *Scheduler) apply(f sampler.Frame) {
	if err := s.view.Apply(f); err != nil {
		s.logger.Warn("view apply failed", "progress", f.Progress, "err", err)
	}
}

func (s *Scheduler) resetView() {
	if err := s.view.Reset(); err != nil {
		s.logger.Warn("view reset failed", "err", err)
	}
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
