// Package export рендерит анимацию покадрово вне окна предпросмотра и
// собирает результат: видео, архив кадров или одиночный кадр.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ivlev/svg2video/internal/archive"
	"github.com/ivlev/svg2video/internal/config"
	"github.com/ivlev/svg2video/internal/document"
	"github.com/ivlev/svg2video/internal/renderer"
	"github.com/ivlev/svg2video/internal/sampler"
	"github.com/ivlev/svg2video/internal/system"
	"github.com/ivlev/svg2video/internal/video"
)

var ErrFrameCapture = errors.New("frame capture failed")

// ArtifactBaseName - имя результата без расширения.
const ArtifactBaseName = "svg-animation"

type Stage string

const (
	StagePreparing  Stage = "preparing"
	StageCapturing  Stage = "capturing"
	StageEncoding   Stage = "encoding"
	StageFinalizing Stage = "finalizing"
	StageComplete   Stage = "complete"
	StageError      Stage = "error"
)

type Status struct {
	Stage   Stage  `json:"stage"`
	Frame   int    `json:"frame"`
	Total   int    `json:"total"`
	Message string `json:"message,omitempty"`
}

type Kind string

const (
	KindVideo  Kind = "video"
	KindFrames Kind = "frames"
	KindSample Kind = "sample"
)

// Artifact - итог экспорта. Warnings перечисляет все шаги деградации.
type Artifact struct {
	Kind     Kind     `json:"kind"`
	Path     string   `json:"path"`
	Name     string   `json:"name"`
	MIME     string   `json:"mime"`
	Format   string   `json:"format"`
	Frames   int      `json:"frames"`
	Duration float64  `json:"duration"`
	Warnings []string `json:"warnings,omitempty"`
}

type Request struct {
	Animation config.Animation
	Export    config.Export
	// OutputDir - каталог результата; пустой - текущий.
	OutputDir string
}

// FrameSampler - источник состояний отрисовки.
type FrameSampler interface {
	Sample(p float64, params sampler.Params) sampler.Frame
}

// Pipeline захватывает кадры последовательно, затем кодирует их целиком.
type Pipeline struct {
	Rasterizer renderer.Rasterizer
	Encoder    video.Encoder
	Logger     *slog.Logger
	// OnProgress вызывается синхронно на каждом этапе и кадре.
	OnProgress func(Status)
	// CheckMemory по умолчанию system.CheckMemory.
	CheckMemory func(required uint64) error
}

func NewPipeline(r renderer.Rasterizer, enc video.Encoder) *Pipeline {
	return &Pipeline{Rasterizer: r, Encoder: enc}
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func (p *Pipeline) report(st Status) {
	if p.OnProgress != nil {
		p.OnProgress(st)
	}
}

func (p *Pipeline) fail(total int, err error) error {
	p.report(Status{Stage: StageError, Total: total, Message: err.Error()})
	return err
}

// Run экспортирует doc. Документ не изменяется: кадры рисуются на клоне
// с размером экспорта, поэтому предпросмотр не затрагивается.
func (p *Pipeline) Run(ctx context.Context, doc *document.Document, s FrameSampler, req Request) (*Artifact, error) {
	log := p.logger()
	p.report(Status{Stage: StagePreparing})

	if err := req.Animation.Validate(); err != nil {
		return nil, p.fail(0, err)
	}
	if err := req.Export.Validate(); err != nil {
		return nil, p.fail(0, err)
	}
	format, err := video.LookupFormat(req.Export.Format)
	if err != nil {
		return nil, p.fail(0, err)
	}
	if _, _, err := renderer.Background(req.Export.Background); err != nil {
		return nil, p.fail(0, fmt.Errorf("background: %w", err))
	}
	total, err := TotalFrames(req.Animation.Duration, req.Export.FPS)
	if err != nil {
		return nil, p.fail(0, err)
	}

	w, h := req.Export.Width, req.Export.Height
	check := p.CheckMemory
	if check == nil {
		check = system.CheckMemory
	}
	if err := check(EstimateMemory(w, h, total)); err != nil {
		return nil, p.fail(total, err)
	}

	dir := req.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, p.fail(total, err)
	}

	log.Info("export started", "frames", total, "size", fmt.Sprintf("%dx%d", w, h), "fps", req.Export.FPS, "format", format.Name)

	buf := NewFrameBuffer(total)
	defer buf.Release()

	captureStart := time.Now()
	if err := p.capture(ctx, doc, s, req, total, buf); err != nil {
		return nil, p.fail(total, err)
	}
	captureTime := time.Since(captureStart)

	art := &Artifact{
		Format:   format.Name,
		Frames:   buf.Len(),
		Duration: req.Animation.Duration,
	}
	if req.Export.Transparent() && !format.Alpha {
		art.Warnings = append(art.Warnings, fmt.Sprintf("%s does not keep transparency", format.Name))
	}

	encodeStart := time.Now()
	encErr := p.encode(ctx, buf, format, req, dir, art, total)
	if encErr == nil {
		log.Info("export finished", "path", art.Path, "capture", captureTime, "encode", time.Since(encodeStart))
		p.report(Status{Stage: StageComplete, Frame: total, Total: total})
		return art, nil
	}
	if ctx.Err() != nil {
		return nil, p.fail(total, ctx.Err())
	}
	if format.Name != video.FormatFrames {
		log.Warn("encoding failed, falling back to frame archive", "err", encErr)
		art.Warnings = append(art.Warnings, fmt.Sprintf("encoding failed: %v", encErr))
	}

	p.report(Status{Stage: StageFinalizing, Frame: total, Total: total, Message: "packing frames"})
	if err := p.degrade(buf, req, dir, art); err != nil {
		return nil, p.fail(total, err)
	}
	log.Info("export finished", "path", art.Path, "kind", art.Kind, "capture", captureTime)
	p.report(Status{Stage: StageComplete, Frame: total, Total: total, Message: string(art.Kind)})
	return art, nil
}

func (p *Pipeline) capture(ctx context.Context, doc *document.Document, s FrameSampler, req Request, total int, buf *FrameBuffer) error {
	params := sampler.ParamsFrom(req.Animation)
	w, h := req.Export.Width, req.Export.Height

	// Apply переписывает все атрибуты отрисовки, так что одного клона на
	// весь прогон достаточно.
	clone := doc.Clone()
	renderer.Resize(clone, w, h)

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.report(Status{Stage: StageCapturing, Frame: i, Total: total})

		renderer.Apply(clone, s.Sample(Progress(i, total), params))
		img, err := p.Rasterizer.Rasterize(ctx, clone, w, h, req.Export.Background)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("%w: frame %d: %v", ErrFrameCapture, i, err)
		}
		if err := buf.Append(i, img); err != nil {
			system.PutImage(img)
			return fmt.Errorf("%w: %v", ErrFrameCapture, err)
		}
	}
	return nil
}

func (p *Pipeline) encode(ctx context.Context, buf *FrameBuffer, f video.Format, req Request, dir string, art *Artifact, total int) error {
	if len(f.Codecs) == 0 {
		return fmt.Errorf("%w: format %s", video.ErrUnavailable, f.Name)
	}
	if p.Encoder == nil {
		return fmt.Errorf("%w: no encoder configured", video.ErrUnavailable)
	}
	p.report(Status{Stage: StageEncoding, Frame: total, Total: total})

	name := ArtifactBaseName + "." + f.Ext
	out := filepath.Join(dir, name)
	opts := video.Options{
		FPS:         req.Export.FPS,
		Format:      f.Name,
		Quality:     req.Export.Quality,
		Transparent: req.Export.Transparent(),
	}
	if err := p.Encoder.Encode(ctx, buf.Frames(), opts, out); err != nil {
		return err
	}
	art.Kind = KindVideo
	art.Path = out
	art.Name = name
	art.MIME = f.MIME
	return nil
}

// degrade собирает архив кадров, а если и это не вышло - первый кадр в PNG.
func (p *Pipeline) degrade(buf *FrameBuffer, req Request, dir string, art *Artifact) error {
	log := p.logger()
	meta := archive.Metadata{
		FPS:      req.Export.FPS,
		Format:   req.Export.Format,
		Quality:  req.Export.Quality,
		Duration: req.Animation.Duration,
	}
	if meta.Format == "" {
		meta.Format = art.Format
	}

	path := filepath.Join(dir, archive.FramesName)
	err := archive.WriteFramesFile(path, buf.Frames(), meta)
	if err == nil {
		art.Kind = KindFrames
		art.Path = path
		art.Name = archive.FramesName
		art.MIME = "application/zip"
		return nil
	}
	log.Warn("frame archive failed, saving sample frame", "err", err)
	art.Warnings = append(art.Warnings, fmt.Sprintf("frame archive failed: %v", err))

	if buf.Len() == 0 {
		return errors.New("no frames captured")
	}
	path = filepath.Join(dir, archive.SampleName)
	if err := archive.WriteSample(path, buf.Frames()[0]); err != nil {
		return fmt.Errorf("sample frame: %w", err)
	}
	art.Kind = KindSample
	art.Path = path
	art.Name = archive.SampleName
	art.MIME = "image/png"
	return nil
}
