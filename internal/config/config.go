package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mitchellh/go-homedir"
)

// ErrInvalid - общая причина всех ошибок проверки настроек.
var ErrInvalid = errors.New("invalid config")

const (
	ModeDocument = "document" // все штрихи рисуются одновременно
	ModeStagger  = "stagger"  // штрихи рисуются по очереди

	BackgroundTransparent = "transparent"
)

// Animation - параметры времени, общие для предпросмотра и экспорта.
type Animation struct {
	Duration float64 `yaml:"duration"` // сек, > 0
	Delay    float64 `yaml:"delay"`    // сек, >= 0, только предпросмотр
	Easing   string  `yaml:"easing"`
	Repeat   int     `yaml:"repeat"` // 0 - бесконечно
	Mode     string  `yaml:"mode"`
}

// Export - размер кадра и параметры контейнера при экспорте.
type Export struct {
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	FPS        int    `yaml:"fps"`
	Format     string `yaml:"format"`
	Background string `yaml:"background"` // "transparent" или цвет
	Quality    int    `yaml:"quality"`    // 1..10
	Renderer   string `yaml:"renderer"`   // oksvg, mupdf
}

// Style - пользовательский override штриха. Пустой Stroke и нулевой
// StrokeWidth оставляют значения первого элемента документа.
type Style struct {
	UseOriginal bool    `yaml:"use_original"`
	Stroke      string  `yaml:"stroke"`
	StrokeWidth float64 `yaml:"stroke_width"`
}

type Server struct {
	Addr         string `yaml:"addr"`
	ReadTimeout  int    `yaml:"read_timeout"`
	WriteTimeout int    `yaml:"write_timeout"`
	HistoryDB    string `yaml:"history_db"`
	WorkDir      string `yaml:"work_dir"`
}

type MQTT struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
}

type Config struct {
	InputPath  string    `yaml:"input"`
	OutputDir  string    `yaml:"output_dir"`
	FFmpegPath string    `yaml:"ffmpeg"`
	Animation  Animation `yaml:"animation"`
	Export     Export    `yaml:"export"`
	Style      Style     `yaml:"style"`
	Server     Server    `yaml:"server"`
	MQTT       MQTT      `yaml:"mqtt"`
}

// Default - начальные значения формы редактора.
func Default() *Config {
	return &Config{
		OutputDir:  "output",
		FFmpegPath: "ffmpeg",
		Animation: Animation{
			Duration: 2,
			Delay:    0,
			Easing:   "linear",
			Repeat:   0,
			Mode:     ModeDocument,
		},
		Export: Export{
			Width:      800,
			Height:     600,
			FPS:        24,
			Format:     "webm",
			Background: BackgroundTransparent,
			Quality:    5,
			Renderer:   "oksvg",
		},
		Style: Style{
			UseOriginal: true,
		},
		Server: Server{
			Addr:         getEnv("SVG2VIDEO_ADDR", ":3000"),
			ReadTimeout:  getEnvAsInt("SVG2VIDEO_READ_TIMEOUT", 30),
			WriteTimeout: getEnvAsInt("SVG2VIDEO_WRITE_TIMEOUT", 300),
			HistoryDB:    getEnv("SVG2VIDEO_DB", "data/db/history.db"),
			WorkDir:      getEnv("SVG2VIDEO_WORKDIR", "output/server"),
		},
		MQTT: MQTT{
			ClientID: "svg2video",
			Topic:    "svg2video/preview",
		},
	}
}

// Validate проверяет диапазоны, которые принимают сэмплер и планировщик.
func (a Animation) Validate() error {
	if !(a.Duration > 0) {
		return fmt.Errorf("%w: duration must be > 0, got %v", ErrInvalid, a.Duration)
	}
	if a.Delay < 0 {
		return fmt.Errorf("%w: delay must be >= 0, got %v", ErrInvalid, a.Delay)
	}
	if a.Repeat < 0 {
		return fmt.Errorf("%w: repeat must be >= 0, got %d", ErrInvalid, a.Repeat)
	}
	switch a.Mode {
	case ModeDocument, ModeStagger, "":
	default:
		return fmt.Errorf("%w: unknown animation mode %q", ErrInvalid, a.Mode)
	}
	return nil
}

// Validate проверяет размер кадра и FPS. Формат и фон проверяют пакеты,
// которые их интерпретируют.
func (e Export) Validate() error {
	if e.Width <= 0 || e.Height <= 0 {
		return fmt.Errorf("%w: export size must be positive, got %dx%d", ErrInvalid, e.Width, e.Height)
	}
	if e.FPS <= 0 {
		return fmt.Errorf("%w: fps must be positive, got %d", ErrInvalid, e.FPS)
	}
	if e.Quality < 0 || e.Quality > 10 {
		return fmt.Errorf("%w: quality must be within 1..10, got %d", ErrInvalid, e.Quality)
	}
	return nil
}

// Transparent сообщает, что кадры экспортируются без заливки фона.
func (e Export) Transparent() bool {
	bg := strings.TrimSpace(strings.ToLower(e.Background))
	return bg == "" || bg == BackgroundTransparent || bg == "none"
}

// ExpandPaths раскрывает "~" во всех путях.
func (c *Config) ExpandPaths() error {
	for _, p := range []*string{&c.InputPath, &c.OutputDir, &c.FFmpegPath, &c.Server.HistoryDB, &c.Server.WorkDir} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("expand %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}
