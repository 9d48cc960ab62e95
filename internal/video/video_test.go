package video

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupFormat(t *testing.T) {
	f, err := LookupFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatWebM, f.Name)

	f, err = LookupFormat("GIF")
	require.NoError(t, err)
	assert.Equal(t, "image/gif", f.MIME)

	_, err = LookupFormat("avi")
	assert.True(t, errors.Is(err, ErrUnknownFormat))

	for _, name := range FormatNames() {
		_, err := LookupFormat(name)
		assert.NoError(t, err, name)
	}
}

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name   string
		format string
		codec  string
		opts   Options
		want   []string
		absent []string
	}{
		{
			name:   "webm transparent",
			format: FormatWebM,
			codec:  "libvpx-vp9",
			opts:   Options{FPS: 24, Quality: 5, Transparent: true},
			want:   []string{"-crf 20", "-b:v 0", "-auto-alt-ref 0", "-pix_fmt yuva420p", "-metadata:s:v:0 alpha_mode=1"},
		},
		{
			name:   "webm opaque",
			format: FormatWebM,
			codec:  "libvpx-vp9",
			opts:   Options{FPS: 24, Quality: 10},
			want:   []string{"-crf 10", "-pix_fmt yuv420p"},
			absent: []string{"alpha_mode"},
		},
		{
			name:   "mp4 x264",
			format: FormatMP4,
			codec:  "libx264",
			opts:   Options{FPS: 30, Quality: 3},
			want:   []string{"-crf 20", "-pix_fmt yuv420p", "-vf pad=ceil(iw/2)*2:ceil(ih/2)*2", "-r 30"},
		},
		{
			name:   "mp4 default quality",
			format: FormatMP4,
			codec:  "h264_nvenc",
			opts:   Options{FPS: 30},
			want:   []string{"-cq 18"},
		},
		{
			name:   "gif",
			format: FormatGIF,
			codec:  "gif",
			opts:   Options{FPS: 12, Transparent: true},
			want:   []string{"-vf split[s0][s1];[s0]palettegen=reserve_transparent=1[p];[s1][p]paletteuse"},
			absent: []string{"-crf"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := LookupFormat(tt.format)
			require.NoError(t, err)
			args := BuildArgs(f, tt.codec, 64, 48, tt.opts, "out."+f.Ext)
			joined := strings.Join(args, " ")

			assert.Contains(t, joined, "-f rawvideo -pixel_format rgba -video_size 64x48")
			assert.Contains(t, joined, "-c:v "+tt.codec)
			assert.Equal(t, "out."+f.Ext, args[len(args)-1])
			for _, w := range tt.want {
				assert.Contains(t, joined, w)
			}
			for _, a := range tt.absent {
				assert.NotContains(t, joined, a)
			}
		})
	}
}

func TestWriteRawRGBA(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(1, 0, color.RGBA{1, 2, 3, 4})

	var buf bytes.Buffer
	require.NoError(t, writeRawRGBA(&buf, img, img.Bounds()))
	assert.Equal(t, []byte{0, 0, 0, 0, 1, 2, 3, 4}, buf.Bytes())

	sub := image.NewRGBA(image.Rect(0, 0, 4, 4)).SubImage(image.Rect(1, 1, 3, 2)).(*image.RGBA)
	buf.Reset()
	require.NoError(t, writeRawRGBA(&buf, sub, image.Rect(0, 0, 2, 1)))
	assert.Len(t, buf.Bytes(), 8)

	assert.Error(t, writeRawRGBA(&buf, img, image.Rect(0, 0, 3, 3)))
}

func TestEncodeUnavailable(t *testing.T) {
	enc := NewFFmpegEncoder("definitely-not-ffmpeg-binary")
	frames := []*image.RGBA{image.NewRGBA(image.Rect(0, 0, 2, 2))}

	err := enc.Encode(context.Background(), frames, Options{FPS: 10, Format: FormatWebM}, filepath.Join(t.TempDir(), "a.webm"))
	assert.True(t, errors.Is(err, ErrUnavailable), "got %v", err)

	err = enc.Encode(context.Background(), frames, Options{FPS: 10, Format: FormatFrames}, "x.zip")
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestEncodeValidation(t *testing.T) {
	enc := NewFFmpegEncoder("")
	assert.Error(t, enc.Encode(context.Background(), nil, Options{FPS: 10}, "a.webm"))
	frames := []*image.RGBA{image.NewRGBA(image.Rect(0, 0, 2, 2))}
	assert.Error(t, enc.Encode(context.Background(), frames, Options{FPS: 0}, "a.webm"))
	assert.Error(t, enc.Encode(context.Background(), frames, Options{FPS: 1, Format: "avi"}, "a.avi"))
}

func TestEncodeWithFFmpeg(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	enc := NewFFmpegEncoder("ffmpeg")
	ok, err := enc.Probe.Has(context.Background(), "gif")
	if err != nil || !ok {
		t.Skip("ffmpeg without gif encoder")
	}

	var frames []*image.RGBA
	for i := 0; i < 4; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 16, 16))
		img.SetRGBA(i, i, color.RGBA{255, 0, 0, 255})
		frames = append(frames, img)
	}
	out := filepath.Join(t.TempDir(), "a.gif")
	require.NoError(t, enc.Encode(context.Background(), frames, Options{FPS: 4, Format: FormatGIF}, out))
	assert.FileExists(t, out)
}
