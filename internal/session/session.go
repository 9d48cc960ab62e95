// Package session связывает загруженный документ, стиль, сэмплер,
// предпросмотр и экспорт одного пользователя.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ivlev/svg2video/internal/config"
	"github.com/ivlev/svg2video/internal/document"
	"github.com/ivlev/svg2video/internal/export"
	"github.com/ivlev/svg2video/internal/geometry"
	"github.com/ivlev/svg2video/internal/playback"
	"github.com/ivlev/svg2video/internal/renderer"
	"github.com/ivlev/svg2video/internal/sampler"
	"github.com/ivlev/svg2video/internal/style"
	"github.com/ivlev/svg2video/internal/video"
)

var (
	ErrNotLoaded = errors.New("no document loaded")
	ErrBusy      = errors.New("export already in progress")
)

// MaxDocumentSize ограничивает размер загружаемого SVG.
const MaxDocumentSize = 32 << 20

// ViewFactory создает отображение предпросмотра для нового документа.
type ViewFactory func(doc *document.Document) playback.View

type Option func(*Session)

func WithView(f ViewFactory) Option { return func(s *Session) { s.newView = f } }

func WithDriver(d playback.Driver) Option {
	return func(s *Session) { s.schedOpts = append(s.schedOpts, playback.WithDriver(d)) }
}

func WithClock(c playback.Clock) Option {
	return func(s *Session) { s.schedOpts = append(s.schedOpts, playback.WithClock(c)) }
}

func WithLogger(l *slog.Logger) Option { return func(s *Session) { s.logger = l } }

// WithRasterizers подменяет выбор растеризатора по имени.
func WithRasterizers(f func(name string) (renderer.Rasterizer, error)) Option {
	return func(s *Session) { s.newRasterizer = f }
}

// WithMemoryCheck подменяет проверку памяти перед экспортом.
func WithMemoryCheck(f func(uint64) error) Option { return func(s *Session) { s.checkMemory = f } }

type loaded struct {
	doc       *document.Document
	source    []byte
	styles    *style.Resolver
	sampler   *sampler.Sampler
	scheduler *playback.Scheduler
}

// Session - состояние одного пользователя. Предпросмотр и экспорт взаимно
// исключают друг друга: Export останавливает воспроизведение.
type Session struct {
	encoder       video.Encoder
	lengths       *geometry.Resolver
	newView       ViewFactory
	newRasterizer func(name string) (renderer.Rasterizer, error)
	checkMemory   func(uint64) error
	schedOpts     []playback.Option
	logger        *slog.Logger

	mu        sync.RWMutex
	playMu    sync.Mutex // проверка exporting и запуск/остановка предпросмотра
	cur       *loaded
	anim      config.Animation
	exp       config.Export
	exporting atomic.Bool
	expStatus atomic.Value // export.Status
}

func New(cfg *config.Config, enc video.Encoder, opts ...Option) *Session {
	s := &Session{
		encoder:       enc,
		newView:       func(*document.Document) playback.View { return nopView{} },
		newRasterizer: renderer.New,
		logger:        slog.Default(),
		anim:          cfg.Animation,
		exp:           cfg.Export,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lengths = &geometry.Resolver{Native: geometry.OKSVGLength{}, Logger: s.logger}
	s.schedOpts = append(s.schedOpts, playback.WithLogger(s.logger))
	s.expStatus.Store(export.Status{})
	return s
}

// Load разбирает документ и заменяет текущее состояние целиком. При ошибке
// предыдущий документ остается загруженным.
func (s *Session) Load(r io.Reader) (*document.Document, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxDocumentSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxDocumentSize {
		return nil, fmt.Errorf("%w: document larger than %d bytes", document.ErrInvalidDocument, MaxDocumentSize)
	}
	doc, err := document.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	styles := style.NewResolver(doc)
	smp := sampler.New(doc, s.lengths, styles)
	next := &loaded{
		doc:     doc,
		source:  data,
		styles:  styles,
		sampler: smp,
	}
	next.scheduler = playback.New(smp, s.newView(doc), s.schedOpts...)

	s.mu.Lock()
	prev := s.cur
	s.cur = next
	s.mu.Unlock()

	if prev != nil {
		prev.scheduler.Stop()
	}
	s.logger.Info("document loaded", "elements", len(doc.Elements), "width", doc.Width, "height", doc.Height)
	return doc, nil
}

// Reset выгружает документ и возвращает настройки к cfg.
func (s *Session) Reset(cfg *config.Config) {
	s.mu.Lock()
	prev := s.cur
	s.cur = nil
	s.anim = cfg.Animation
	s.exp = cfg.Export
	s.mu.Unlock()

	if prev != nil {
		prev.scheduler.Stop()
	}
	s.expStatus.Store(export.Status{})
}

func (s *Session) current() (*loaded, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cur == nil {
		return nil, ErrNotLoaded
	}
	return s.cur, nil
}

func (s *Session) Loaded() bool {
	_, err := s.current()
	return err == nil
}

// Document возвращает исходный (неизменяемый) документ.
func (s *Session) Document() (*document.Document, error) {
	cur, err := s.current()
	if err != nil {
		return nil, err
	}
	return cur.doc, nil
}

// Source возвращает исходный текст загруженного SVG.
func (s *Session) Source() ([]byte, error) {
	cur, err := s.current()
	if err != nil {
		return nil, err
	}
	return cur.source, nil
}

func (s *Session) Styles() (*style.Resolver, error) {
	cur, err := s.current()
	if err != nil {
		return nil, err
	}
	return cur.styles, nil
}

func (s *Session) Animation() config.Animation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.anim
}

func (s *Session) SetAnimation(a config.Animation) error {
	if err := a.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.anim = a
	s.mu.Unlock()
	return nil
}

func (s *Session) ExportConfig() config.Export {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exp
}

func (s *Session) SetExport(e config.Export) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if _, err := video.LookupFormat(e.Format); err != nil {
		return err
	}
	if _, err := s.newRasterizer(e.Renderer); err != nil {
		return err
	}
	if _, _, err := renderer.Background(e.Background); err != nil {
		return fmt.Errorf("%w: background: %v", config.ErrInvalid, err)
	}
	s.mu.Lock()
	s.exp = e
	s.mu.Unlock()
	return nil
}

// SetStyle применяет настройки стиля к загруженному документу.
func (s *Session) SetStyle(c config.Style) error {
	styles, err := s.Styles()
	if err != nil {
		return err
	}
	return styles.Configure(c)
}

func (s *Session) Play() error {
	cur, err := s.current()
	if err != nil {
		return err
	}
	s.playMu.Lock()
	defer s.playMu.Unlock()
	if s.exporting.Load() {
		return ErrBusy
	}
	return cur.scheduler.Play(s.Animation())
}

func (s *Session) Pause() {
	if cur, err := s.current(); err == nil {
		cur.scheduler.Pause()
	}
}

func (s *Session) Stop() {
	if cur, err := s.current(); err == nil {
		cur.scheduler.Stop()
	}
}

// Done закрывается, когда текущий прогон предпросмотра завершен.
func (s *Session) Done() (<-chan struct{}, error) {
	cur, err := s.current()
	if err != nil {
		return nil, err
	}
	return cur.scheduler.Done(), nil
}

func (s *Session) Playback() playback.Status {
	cur, err := s.current()
	if err != nil {
		return playback.Status{}
	}
	return cur.scheduler.Status()
}

// Sample возвращает состояние отрисовки для прогресса p.
func (s *Session) Sample(p float64) (sampler.Frame, error) {
	cur, err := s.current()
	if err != nil {
		return sampler.Frame{}, err
	}
	return cur.sampler.Sample(p, sampler.ParamsFrom(s.Animation())), nil
}

// Frame растеризует один кадр с прогрессом p в размере экспорта.
// Буфер принадлежит вызывающему (system.PutImage).
func (s *Session) Frame(ctx context.Context, p float64) (*image.RGBA, error) {
	cur, err := s.current()
	if err != nil {
		return nil, err
	}
	exp := s.ExportConfig()
	if err := exp.Validate(); err != nil {
		return nil, err
	}
	r, err := s.newRasterizer(exp.Renderer)
	if err != nil {
		return nil, err
	}
	clone := cur.doc.Clone()
	renderer.Resize(clone, exp.Width, exp.Height)
	renderer.Apply(clone, cur.sampler.Sample(p, sampler.ParamsFrom(s.Animation())))
	return r.Rasterize(ctx, clone, exp.Width, exp.Height, exp.Background)
}

// Export останавливает предпросмотр и экспортирует текущий документ в dir.
// Второй одновременный экспорт отклоняется с ErrBusy.
func (s *Session) Export(ctx context.Context, dir string, onProgress func(export.Status)) (*export.Artifact, error) {
	cur, err := s.current()
	if err != nil {
		return nil, err
	}
	s.playMu.Lock()
	if !s.exporting.CompareAndSwap(false, true) {
		s.playMu.Unlock()
		return nil, ErrBusy
	}
	cur.scheduler.Stop()
	s.playMu.Unlock()
	defer s.exporting.Store(false)

	req := export.Request{Animation: s.Animation(), Export: s.ExportConfig(), OutputDir: dir}
	r, err := s.newRasterizer(req.Export.Renderer)
	if err != nil {
		return nil, err
	}
	p := export.NewPipeline(r, s.encoder)
	p.Logger = s.logger
	p.CheckMemory = s.checkMemory
	p.OnProgress = func(st export.Status) {
		s.expStatus.Store(st)
		if onProgress != nil {
			onProgress(st)
		}
	}
	return p.Run(ctx, cur.doc, cur.sampler, req)
}

func (s *Session) Exporting() bool { return s.exporting.Load() }

// ExportStatus - последний этап последнего экспорта.
func (s *Session) ExportStatus() export.Status {
	return s.expStatus.Load().(export.Status)
}

type nopView struct{}

func (nopView) Apply(sampler.Frame) error { return nil }
func (nopView) Reset() error              { return nil }
