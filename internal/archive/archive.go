// Package archive упаковывает кадры экспорта, когда видео собрать не удалось:
// zip с PNG-кадрами и metadata.json или, в крайнем случае, один PNG.
package archive

import (
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"
)

const (
	FramesName   = "svg-animation-frames.zip"
	SampleName   = "svg-animation-sample.png"
	MetadataName = "metadata.json"
)

// Metadata описывает кадры архива, чтобы их можно было собрать вручную.
type Metadata struct {
	FPS        int     `json:"fps"`
	Format     string  `json:"format"`
	Quality    int     `json:"quality"`
	Duration   float64 `json:"duration"`
	FrameCount int     `json:"frameCount"`
}

// FrameName - имя кадра i в архиве (frame_000000.png, ...).
func FrameName(i int) string {
	return fmt.Sprintf("frame_%06d.png", i)
}

var encoder = png.Encoder{CompressionLevel: png.BestSpeed}

// WriteFrames пишет zip-архив в w. FrameCount в метаданных всегда равен
// числу переданных кадров.
func WriteFrames(w io.Writer, frames []*image.RGBA, meta Metadata) error {
	meta.FrameCount = len(frames)
	zw := zip.NewWriter(w)

	mw, err := zw.Create(MetadataName)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(mw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return fmt.Errorf("metadata: %w", err)
	}

	for i, img := range frames {
		// PNG уже сжат, повторно не сжимаем
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: FrameName(i), Method: zip.Store})
		if err != nil {
			return err
		}
		if err := encoder.Encode(fw, img); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return zw.Close()
}

// WriteFramesFile создает архив в path.
func WriteFramesFile(path string, frames []*image.RGBA, meta Metadata) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(path)
		}
	}()
	return WriteFrames(f, frames, meta)
}

// WriteSample сохраняет один кадр как PNG.
func WriteSample(path string, img image.Image) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(path)
		}
	}()
	return encoder.Encode(f, img)
}

// EncodePNG пишет кадр как PNG (используется для одиночных кадров по HTTP).
func EncodePNG(w io.Writer, img image.Image) error {
	return encoder.Encode(w, img)
}

// ReadMetadata читает metadata.json из архива.
func ReadMetadata(path string) (Metadata, error) {
	var meta Metadata
	zr, err := zip.OpenReader(path)
	if err != nil {
		return meta, err
	}
	defer zr.Close()
	for _, f := range zr.File {
		if f.Name != MetadataName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return meta, err
		}
		defer rc.Close()
		err = json.NewDecoder(rc).Decode(&meta)
		return meta, err
	}
	return meta, fmt.Errorf("%s not found in %s", MetadataName, path)
}
