package archive

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrames(n int) []*image.RGBA {
	frames := make([]*image.RGBA, n)
	for i := range frames {
		img := image.NewRGBA(image.Rect(0, 0, 4, 3))
		img.SetRGBA(i%4, 0, color.RGBA{255, 0, 0, 255})
		frames[i] = img
	}
	return frames
}

func TestFrameName(t *testing.T) {
	assert.Equal(t, "frame_000000.png", FrameName(0))
	assert.Equal(t, "frame_000123.png", FrameName(123))
}

func TestWriteFrames(t *testing.T) {
	var buf bytes.Buffer
	frames := testFrames(5)
	require.NoError(t, WriteFrames(&buf, frames, Metadata{FPS: 10, Format: "webm", Quality: 5, Duration: 0.5, FrameCount: 99}))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 6)
	assert.Equal(t, MetadataName, zr.File[0].Name)

	for i, f := range zr.File[1:] {
		assert.Equal(t, FrameName(i), f.Name)
		rc, err := f.Open()
		require.NoError(t, err)
		img, err := png.Decode(rc)
		rc.Close()
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())
		r, _, _, _ := img.At(i%4, 0).RGBA()
		assert.Equal(t, uint32(0xffff), r)
	}
}

func TestWriteFramesFileMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", FramesName)
	require.NoError(t, WriteFramesFile(path, testFrames(25), Metadata{FPS: 10, Format: "gif", Quality: 3, Duration: 2.5}))

	meta, err := ReadMetadata(path)
	require.NoError(t, err)
	assert.Equal(t, Metadata{FPS: 10, Format: "gif", Quality: 3, Duration: 2.5, FrameCount: 25}, meta)
}

func TestWriteSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), SampleName)
	require.NoError(t, WriteSample(path, testFrames(1)[0]))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Width)
	assert.Equal(t, 3, cfg.Height)
}

func TestWriteFramesFileFailureRemovesFile(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	err := WriteFramesFile(filepath.Join(blocker, FramesName), testFrames(1), Metadata{})
	assert.Error(t, err)
}
