package video

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// Probe выясняет, какие кодеки есть в установленном ffmpeg. Результат
// `ffmpeg -encoders` кэшируется на время жизни процесса.
type Probe struct {
	FFmpeg string

	once     sync.Once
	encoders string
	err      error
}

func NewProbe(ffmpegPath string) *Probe {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Probe{FFmpeg: ffmpegPath}
}

func (p *Probe) load(ctx context.Context) {
	path, err := exec.LookPath(p.FFmpeg)
	if err != nil {
		p.err = fmt.Errorf("%w: %v", ErrUnavailable, err)
		return
	}
	out, err := exec.CommandContext(ctx, path, "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		p.err = fmt.Errorf("%w: ffmpeg -encoders: %v", ErrUnavailable, err)
		return
	}
	p.encoders = string(out)
}

// Has сообщает, поддерживает ли ffmpeg кодек name.
func (p *Probe) Has(ctx context.Context, name string) (bool, error) {
	p.once.Do(func() { p.load(ctx) })
	if p.err != nil {
		return false, p.err
	}
	for _, line := range strings.Split(p.encoders, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == name {
			return true, nil
		}
	}
	return false, nil
}

// Pick выбирает первый доступный кодек формата: аппаратные энкодеры
// H.264 предпочитаются программному libx264.
func (p *Probe) Pick(ctx context.Context, f Format) (string, error) {
	if len(f.Codecs) == 0 {
		return "", fmt.Errorf("%w: format %s has no encoder", ErrUnavailable, f.Name)
	}
	for _, c := range f.Codecs {
		ok, err := p.Has(ctx, c)
		if err != nil {
			return "", err
		}
		if ok {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: none of %s in ffmpeg", ErrUnavailable, strings.Join(f.Codecs, ", "))
}
