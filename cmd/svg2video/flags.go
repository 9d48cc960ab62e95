package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/ivlev/svg2video/internal/config"
	"github.com/ivlev/svg2video/internal/system"
)

const presetDir = "presets"

// options - общие флаги всех команд. Флаги, заданные явно, перекрывают
// значения из файла настроек.
type options struct {
	fs *flag.FlagSet

	configPath  string
	input       string
	output      string
	verbose     bool
	duration    float64
	delay       float64
	easing      string
	repeat      int
	mode        string
	width       int
	height      int
	fps         int
	format      string
	background  string
	quality     int
	renderer    string
	preset      string
	stroke      string
	strokeWidth float64
	ffmpeg      string
}

func newOptions(name string) *options {
	o := &options{fs: flag.NewFlagSet(name, flag.ExitOnError)}
	fs := o.fs
	fs.StringVar(&o.configPath, "config", "", "YAML с настройками (latest - самый свежий пресет в presets/)")
	fs.StringVar(&o.input, "input", "", "Путь к SVG (по умолчанию: самый свежий файл в input/svg/)")
	fs.StringVar(&o.output, "output", "", "Путь к результату (если пусто, генерируется автоматически в output/)")
	fs.BoolVar(&o.verbose, "v", false, "Подробный лог")
	fs.Float64Var(&o.duration, "duration", 0, "Длительность анимации (сек)")
	fs.Float64Var(&o.delay, "delay", 0, "Задержка перед стартом предпросмотра (сек)")
	fs.StringVar(&o.easing, "easing", "", "Сглаживание: linear, easeIn, easeOut, easeInOut")
	fs.IntVar(&o.repeat, "repeat", 0, "Повторы предпросмотра (0 - бесконечно)")
	fs.StringVar(&o.mode, "mode", "", "Режим: document (все штрихи вместе), stagger (по очереди)")
	fs.IntVar(&o.width, "width", 0, "Ширина кадра")
	fs.IntVar(&o.height, "height", 0, "Высота кадра")
	fs.IntVar(&o.fps, "fps", 0, "FPS")
	fs.StringVar(&o.format, "format", "", "Формат: webm, mp4, gif, frames")
	fs.StringVar(&o.background, "background", "", "Фон: transparent или цвет (#fff, white, rgb(...))")
	fs.IntVar(&o.quality, "quality", 0, "Качество 1-10 (0 - авто)")
	fs.StringVar(&o.renderer, "renderer", "", "Растеризатор: oksvg, mupdf")
	fs.StringVar(&o.preset, "preset", "", "Пресет формата: 16:9, 9:16 (Shorts/TikTok), 4:5 (Instagram), 1:1")
	fs.StringVar(&o.stroke, "stroke", "", "Цвет штриха для всех элементов (включает режим override)")
	fs.Float64Var(&o.strokeWidth, "stroke-width", 0, "Толщина штриха для всех элементов (включает режим override)")
	fs.StringVar(&o.ffmpeg, "ffmpeg", "", "Путь к ffmpeg")
	return o
}

func (o *options) parse(args []string) {
	o.fs.Parse(args)
}

// load собирает итоговый конфиг: значения по умолчанию, файл, флаги.
func (o *options) load() (*config.Config, error) {
	cfg := config.Default()
	path := o.configPath
	if path == "latest" {
		latest, err := system.FindLatestPreset(presetDir)
		if err != nil {
			return nil, err
		}
		path = latest
		fmt.Printf("[*] Выбран пресет: %s\n", path)
	}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	set := map[string]bool{}
	o.fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["input"] {
		cfg.InputPath = o.input
	}
	if set["duration"] {
		cfg.Animation.Duration = o.duration
	}
	if set["delay"] {
		cfg.Animation.Delay = o.delay
	}
	if set["easing"] {
		cfg.Animation.Easing = o.easing
	}
	if set["repeat"] {
		cfg.Animation.Repeat = o.repeat
	}
	if set["mode"] {
		cfg.Animation.Mode = o.mode
	}
	switch o.preset {
	case "16:9":
		cfg.Export.Width, cfg.Export.Height = 1280, 720
	case "9:16":
		cfg.Export.Width, cfg.Export.Height = 720, 1280
	case "4:5":
		cfg.Export.Width, cfg.Export.Height = 1080, 1350
	case "1:1":
		cfg.Export.Width, cfg.Export.Height = 1080, 1080
	case "":
	default:
		return nil, fmt.Errorf("неизвестный пресет %q", o.preset)
	}
	if set["width"] {
		cfg.Export.Width = o.width
	}
	if set["height"] {
		cfg.Export.Height = o.height
	}
	if set["fps"] {
		cfg.Export.FPS = o.fps
	}
	if set["format"] {
		cfg.Export.Format = o.format
	}
	if set["background"] {
		cfg.Export.Background = o.background
	}
	if set["quality"] {
		cfg.Export.Quality = o.quality
	}
	if set["renderer"] {
		cfg.Export.Renderer = o.renderer
	}
	if set["stroke"] {
		cfg.Style.Stroke = o.stroke
		cfg.Style.UseOriginal = false
	}
	if set["stroke-width"] {
		cfg.Style.StrokeWidth = o.strokeWidth
		cfg.Style.UseOriginal = false
	}
	if set["ffmpeg"] {
		cfg.FFmpegPath = o.ffmpeg
	}
	if err := cfg.ExpandPaths(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// inputPath возвращает путь к SVG или самый свежий файл в input/svg.
func inputPath(cfg *config.Config) string {
	if cfg.InputPath != "" {
		return cfg.InputPath
	}
	latest, err := system.FindLatestSVG("input/svg")
	if err != nil {
		log.Fatalf("[-] Ошибка: %v. Положите SVG в input/svg/", err)
	}
	fmt.Printf("[*] Выбран файл: %s\n", latest)
	return latest
}

func setupLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	l := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(l)
	return l
}
