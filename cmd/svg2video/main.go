package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/muesli/termenv"

	"github.com/ivlev/svg2video/internal/archive"
	"github.com/ivlev/svg2video/internal/config"
	"github.com/ivlev/svg2video/internal/document"
	"github.com/ivlev/svg2video/internal/export"
	"github.com/ivlev/svg2video/internal/history"
	"github.com/ivlev/svg2video/internal/playback"
	"github.com/ivlev/svg2video/internal/preview"
	"github.com/ivlev/svg2video/internal/renderer"
	"github.com/ivlev/svg2video/internal/server"
	"github.com/ivlev/svg2video/internal/session"
	"github.com/ivlev/svg2video/internal/system"
	"github.com/ivlev/svg2video/internal/video"
)

const usage = `svg2video - анимация прорисовки штрихов SVG

Команды:
  export   рендер анимации в видео (webm, mp4, gif) или архив кадров
  preview  предпросмотр в терминале / MQTT / PNG-снимок (-watch - перезагрузка при изменении)
  frame    один кадр с заданным прогрессом в PNG
  serve    HTTP API
  preset   сохранить текущие настройки в presets/

Флаги команды: svg2video <команда> -h
`

func main() {
	// Увеличиваем лимиты системы (для macOS/Linux)
	system.InitResourceLimits()

	cmd, args := "export", os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case "export":
		err = runExport(ctx, args)
	case "preview":
		err = runPreview(ctx, args)
	case "frame":
		err = runFrame(ctx, args)
	case "serve":
		err = runServe(ctx, args)
	case "preset":
		err = runPreset(args)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Print(usage)
		log.Fatalf("[-] Неизвестная команда: %s", cmd)
	}
	if err != nil {
		log.Fatalf("[-] Ошибка: %v", err)
	}
}

// openSession загружает SVG в новую сессию с настройками cfg.
func openSession(cfg *config.Config, path string, opts ...session.Option) (*session.Session, *document.Document, error) {
	enc := video.NewFFmpegEncoder(cfg.FFmpegPath)
	sess := session.New(cfg, enc, opts...)

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	doc, err := sess.Load(f)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := sess.SetStyle(cfg.Style); err != nil {
		return nil, nil, err
	}
	if err := sess.SetExport(cfg.Export); err != nil {
		return nil, nil, err
	}
	return sess, doc, nil
}

func runExport(ctx context.Context, args []string) error {
	o := newOptions("export")
	o.parse(args)
	setupLogger(o.verbose)
	cfg, err := o.load()
	if err != nil {
		return err
	}
	input := inputPath(cfg)
	os.MkdirAll(cfg.OutputDir, 0755)

	sess, doc, err := openSession(cfg, input)
	if err != nil {
		return err
	}
	total, err := export.TotalFrames(cfg.Animation.Duration, cfg.Export.FPS)
	if err != nil {
		return err
	}

	fmt.Println("--- [SVG2VIDEO: EXPORT] ---")
	fmt.Printf("[*] Источник: %s | Элементов: %d\n", input, len(doc.Elements))
	fmt.Printf("[*] Разрешение: %dx%d @ %d FPS | Кадров: %d | Формат: %s\n",
		cfg.Export.Width, cfg.Export.Height, cfg.Export.FPS, total, cfg.Export.Format)
	fmt.Printf("[*] Память под кадры: %s\n", system.FormatBytes(export.EstimateMemory(cfg.Export.Width, cfg.Export.Height, total)))
	fmt.Println("-----------------------------")

	tmp, err := os.MkdirTemp(cfg.OutputDir, ".svg2video_")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	out := termenv.NewOutput(os.Stdout)
	start := time.Now()
	lastPct := -1
	art, err := sess.Export(ctx, tmp, func(st export.Status) {
		switch st.Stage {
		case export.StageCapturing:
			pct := (st.Frame + 1) * 100 / st.Total
			if pct/10 != lastPct/10 {
				lastPct = pct
				fmt.Printf("[>] Кадры: %d/%d (%d%%)\n", st.Frame+1, st.Total, pct)
			}
		case export.StageEncoding:
			fmt.Println("[*] Кодирование...")
		case export.StageFinalizing:
			fmt.Println(out.String("[!] Видео собрать не удалось, сохраняем кадры").Foreground(out.Color("3")))
		}
	})
	if err != nil {
		return err
	}
	for _, w := range art.Warnings {
		fmt.Println(out.String("[!] " + w).Foreground(out.Color("3")))
	}

	final := o.output
	if final == "" {
		ext := strings.TrimPrefix(filepath.Ext(art.Name), ".")
		final = system.OutputName(cfg.OutputDir, input, ext)
	}
	if err := os.MkdirAll(filepath.Dir(final), 0755); err != nil {
		return err
	}
	if err := os.Rename(art.Path, final); err != nil {
		return err
	}

	fmt.Printf("[*] Время: %.2fs\n", time.Since(start).Seconds())
	fmt.Println(out.String(fmt.Sprintf("[+++] Успех! Результат (%s): %s", art.Kind, final)).Foreground(out.Color("2")).Bold())
	return nil
}

func runPreview(ctx context.Context, args []string) error {
	o := newOptions("preview")
	snapshot := o.fs.String("snapshot", "", "Сохранять текущий кадр предпросмотра в PNG")
	useMQTT := o.fs.Bool("mqtt", false, "Публиковать состояние кадров в MQTT (настройки из секции mqtt)")
	watch := o.fs.Bool("watch", false, "Перезапускать предпросмотр при изменении файла")
	o.parse(args)
	logger := setupLogger(o.verbose)
	cfg, err := o.load()
	if err != nil {
		return err
	}
	input := inputPath(cfg)

	var mqttView *preview.MQTTView
	if *useMQTT {
		client, err := preview.Connect(cfg.MQTT)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		mqttView = preview.NewMQTTView(client, cfg.MQTT.Topic)
		fmt.Printf("[*] MQTT: %s -> %s\n", cfg.MQTT.URL, cfg.MQTT.Topic)
	}

	factory := func(doc *document.Document) playback.View {
		views := []playback.View{preview.NewLogView(os.Stdout)}
		if mqttView != nil {
			views = append(views, mqttView)
		}
		if *snapshot != "" {
			r, err := renderer.New(cfg.Export.Renderer)
			if err != nil {
				r = &renderer.OKSVG{}
			}
			rv := preview.NewRasterView(doc, r, cfg.Export.Background)
			rv.Path = *snapshot
			rv.MinInterval = 200 * time.Millisecond
			views = append(views, rv)
		}
		return preview.Multi(views...)
	}

	sess, _, err := openSession(cfg, input, session.WithView(factory), session.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := sess.Play(); err != nil {
		return err
	}
	fmt.Printf("[*] Предпросмотр: %s (%.2fs, %s, repeat=%d)\n", input, cfg.Animation.Duration, cfg.Animation.Easing, cfg.Animation.Repeat)

	if *watch {
		go func() {
			err := system.WatchFile(ctx, input, func() {
				f, err := os.Open(input)
				if err != nil {
					log.Printf("[!] Не удалось открыть %s: %v", input, err)
					return
				}
				defer f.Close()
				if _, err := sess.Load(f); err != nil {
					log.Printf("[!] Файл не загружен, остается предыдущая версия: %v", err)
					return
				}
				if err := sess.SetStyle(cfg.Style); err != nil {
					log.Printf("[!] Стиль: %v", err)
				}
				fmt.Println("[*] Файл изменен, перезапуск")
				if err := sess.Play(); err != nil {
					log.Printf("[!] %v", err)
				}
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("[!] Наблюдение за файлом остановлено: %v", err)
			}
		}()
		<-ctx.Done()
		sess.Stop()
		return nil
	}

	done, err := sess.Done()
	if err != nil {
		return err
	}
	select {
	case <-done:
		fmt.Println("[+++] Анимация завершена")
	case <-ctx.Done():
		sess.Stop()
	}
	return nil
}

func runFrame(ctx context.Context, args []string) error {
	o := newOptions("frame")
	progress := o.fs.Float64("progress", 1, "Прогресс кадра 0..1")
	o.parse(args)
	setupLogger(o.verbose)
	cfg, err := o.load()
	if err != nil {
		return err
	}
	if *progress < 0 || *progress > 1 {
		return fmt.Errorf("progress должен быть в диапазоне 0..1, получено %v", *progress)
	}
	input := inputPath(cfg)

	sess, _, err := openSession(cfg, input)
	if err != nil {
		return err
	}
	img, err := sess.Frame(ctx, *progress)
	if err != nil {
		return err
	}
	defer system.PutImage(img)

	out := o.output
	if out == "" {
		out = system.OutputName(cfg.OutputDir, input, "png")
	}
	if err := archive.WriteSample(out, img); err != nil {
		return err
	}
	fmt.Printf("[+++] Кадр %.2f сохранен: %s\n", *progress, out)
	return nil
}

func runServe(ctx context.Context, args []string) error {
	o := newOptions("serve")
	addr := o.fs.String("addr", "", "Адрес HTTP (по умолчанию SVG2VIDEO_ADDR или :3000)")
	o.parse(args)
	logger := setupLogger(o.verbose)
	cfg, err := o.load()
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	store, err := history.Open(ctx, cfg.Server.HistoryDB)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	enc := video.NewFFmpegEncoder(cfg.FFmpegPath)
	enc.Logger = logger
	registry := server.NewRegistry(func() *session.Session {
		return session.New(cfg, enc, session.WithLogger(logger))
	})
	srv := server.New(cfg, registry, store, logger)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	fmt.Printf("[*] HTTP API: %s | журнал: %s\n", cfg.Server.Addr, cfg.Server.HistoryDB)
	return srv.Listen(cfg.Server.Addr)
}

func runPreset(args []string) error {
	o := newOptions("preset")
	o.parse(args)
	cfg, err := o.load()
	if err != nil {
		return err
	}
	if err := cfg.Animation.Validate(); err != nil {
		return err
	}
	if err := cfg.Export.Validate(); err != nil {
		return err
	}
	path := o.output
	if path == "" {
		path = config.GeneratePresetPath(presetDir)
	}
	if err := config.Save(cfg, path); err != nil {
		return err
	}
	fmt.Printf("[+++] Пресет сохранен: %s\n", path)
	return nil
}
