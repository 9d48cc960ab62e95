package renderer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/ivlev/svg2video/internal/document"
	"github.com/ivlev/svg2video/internal/style"
	"github.com/ivlev/svg2video/internal/system"
)

const (
	NameOKSVG = "oksvg"
	NameMuPDF = "mupdf"
)

var ErrUnknownRenderer = errors.New("unknown renderer")

// Rasterizer превращает документ в растровый кадр width x height.
// background - "transparent" или цвет, которым заливается весь кадр
// до отрисовки. Возвращаемый буфер взят из system.ImagePool; владелец
// возвращает его через system.PutImage.
type Rasterizer interface {
	Rasterize(ctx context.Context, doc *document.Document, width, height int, background string) (*image.RGBA, error)
}

// New возвращает растеризатор по имени из настроек экспорта.
func New(name string) (Rasterizer, error) {
	switch strings.ToLower(name) {
	case "", NameOKSVG:
		return &OKSVG{}, nil
	case NameMuPDF, "fitz":
		return &Fitz{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownRenderer, name)
}

// Background разбирает цвет фона; ok=false означает прозрачный кадр.
func Background(bg string) (c color.NRGBA, ok bool, err error) {
	v := strings.ToLower(strings.TrimSpace(bg))
	if v == "" || v == "transparent" || v == "none" {
		return color.NRGBA{}, false, nil
	}
	c, err = style.ParseColor(v)
	if err != nil {
		return color.NRGBA{}, false, err
	}
	return c, c.A > 0, nil
}

// newCanvas берет буфер из пула и подготавливает фон: прозрачный кадр
// очищается, непрозрачный заливается цветом.
func newCanvas(width, height int, background string) (*image.RGBA, error) {
	bg, solid, err := Background(background)
	if err != nil {
		return nil, err
	}
	img := system.GetImage(image.Rect(0, 0, width, height))
	var src image.Image = image.Transparent
	if solid {
		src = image.NewUniform(bg)
	}
	draw.Draw(img, img.Bounds(), src, image.Point{}, draw.Src)
	return img, nil
}

// fit вписывает viewBox в кадр с сохранением пропорций и центрированием.
func fit(vb document.ViewBox, width, height int) (x, y, w, h float64) {
	W, H := float64(width), float64(height)
	if vb.W <= 0 || vb.H <= 0 {
		return 0, 0, W, H
	}
	scale := W / vb.W
	if s := H / vb.H; s < scale {
		scale = s
	}
	w, h = vb.W*scale, vb.H*scale
	return (W - w) / 2, (H - h) / 2, w, h
}

func checkSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid raster size %dx%d", width, height)
	}
	return nil
}
