// Package video собирает упорядоченные RGBA-кадры в видеофайл через ffmpeg.
package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"

	"golang.org/x/sync/errgroup"
)

// ErrUnavailable - кодировщик недоступен (нет ffmpeg, нет кодека) или
// формат не кодируется вовсе. Экспорт в этом случае собирает архив кадров.
var ErrUnavailable = errors.New("encoder unavailable")

// DefaultQuality используется, когда качество не задано (0).
const DefaultQuality = 5

// Options - параметры кодирования.
type Options struct {
	FPS         int
	Format      string
	Quality     int // 1..10
	Transparent bool
}

// Encoder собирает кадры в файл out. Кадры передаются в порядке показа и
// имеют одинаковый размер.
type Encoder interface {
	Encode(ctx context.Context, frames []*image.RGBA, opts Options, out string) error
}

// FFmpegEncoder передает кадры в ffmpeg как rawvideo через stdin, без
// промежуточных файлов на диске.
type FFmpegEncoder struct {
	Probe  *Probe
	Logger *slog.Logger
}

func NewFFmpegEncoder(ffmpegPath string) *FFmpegEncoder {
	return &FFmpegEncoder{Probe: NewProbe(ffmpegPath)}
}

func (e *FFmpegEncoder) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *FFmpegEncoder) Encode(ctx context.Context, frames []*image.RGBA, opts Options, out string) error {
	f, err := LookupFormat(opts.Format)
	if err != nil {
		return err
	}
	if len(f.Codecs) == 0 {
		return fmt.Errorf("%w: format %s is not encoded", ErrUnavailable, f.Name)
	}
	if len(frames) == 0 {
		return errors.New("no frames to encode")
	}
	if opts.FPS <= 0 {
		return fmt.Errorf("invalid fps %d", opts.FPS)
	}
	if opts.Transparent && !f.Alpha {
		e.logger().Warn("format has no alpha channel, transparency is flattened", "format", f.Name)
	}

	// Аппаратный кодек может числиться в списке, но не работать без GPU,
	// поэтому при ошибке пробуем следующий.
	var lastErr error
	tried := 0
	for _, codec := range f.Codecs {
		ok, err := e.Probe.Has(ctx, codec)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		tried++
		err = e.run(ctx, frames, f, codec, opts, out)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.logger().Warn("encoder failed", "codec", codec, "err", err)
		os.Remove(out)
		lastErr = err
	}
	if tried == 0 {
		_, err := e.Probe.Pick(ctx, f)
		return err
	}
	return lastErr
}

func (e *FFmpegEncoder) run(ctx context.Context, frames []*image.RGBA, f Format, codec string, opts Options, out string) error {
	b := frames[0].Bounds()
	args := BuildArgs(f, codec, b.Dx(), b.Dy(), opts, out)

	g, gctx := errgroup.WithContext(ctx)
	cmd := exec.CommandContext(gctx, e.Probe.FFmpeg, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: ffmpeg start error: %v", ErrUnavailable, err)
	}

	g.Go(func() error {
		defer stdin.Close()
		for i, img := range frames {
			if err := writeRawRGBA(stdin, img, b); err != nil {
				return fmt.Errorf("write frame %d: %w", i, err)
			}
		}
		return nil
	})
	g.Go(func() error {
		if err := cmd.Wait(); err != nil {
			return fmt.Errorf("ffmpeg wait error: %w, output: %s", err, tail(stderr.String(), 2048))
		}
		return nil
	})
	return g.Wait()
}

// BuildArgs - аргументы ffmpeg для кодирования сырого RGBA со stdin.
func BuildArgs(f Format, codec string, w, h int, opts Options, out string) []string {
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", w, h),
		"-framerate", strconv.Itoa(opts.FPS),
		"-i", "-",
	}
	if vf := Filter(f, opts); vf != "" {
		args = append(args, "-vf", vf)
	}
	args = append(args, "-c:v", codec)
	args = append(args, qualityArgs(codec, opts)...)
	args = append(args, "-r", strconv.Itoa(opts.FPS), out)
	return args
}

func qualityArgs(codec string, opts Options) []string {
	q := opts.Quality
	if q <= 0 {
		q = DefaultQuality
	}
	switch codec {
	case "libvpx-vp9":
		args := []string{"-crf", strconv.Itoa(30 - q*2), "-b:v", "0", "-auto-alt-ref", "0"}
		if opts.Transparent {
			return append(args, "-pix_fmt", "yuva420p", "-metadata:s:v:0", "alpha_mode=1")
		}
		return append(args, "-pix_fmt", "yuv420p")
	case "h264_videotoolbox":
		// VideoToolbox не понимает CRF, качество задается битрейтом
		return []string{"-b:v", fmt.Sprintf("%dk", 1000*q), "-pix_fmt", "yuv420p"}
	case "h264_nvenc":
		return []string{"-cq", strconv.Itoa(23 - q), "-pix_fmt", "yuv420p"}
	case "libx264":
		return []string{"-crf", strconv.Itoa(23 - q), "-preset", "medium", "-pix_fmt", "yuv420p"}
	}
	return nil
}

func writeRawRGBA(w io.Writer, img *image.RGBA, bounds image.Rectangle) error {
	if img.Bounds().Size() != bounds.Size() {
		return fmt.Errorf("frame size %v differs from %v", img.Bounds().Size(), bounds.Size())
	}
	rgba := img
	if rgba.Stride != bounds.Dx()*4 || rgba.Rect.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rectangle{Max: bounds.Size()})
		draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	}
	_, err := w.Write(rgba.Pix)
	return err
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
