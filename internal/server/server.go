// Package server - HTTP API: загрузка SVG, настройка стиля и анимации,
// кадр по прогрессу, экспорт и журнал экспортов.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"

	"github.com/ivlev/svg2video/internal/archive"
	"github.com/ivlev/svg2video/internal/config"
	"github.com/ivlev/svg2video/internal/document"
	"github.com/ivlev/svg2video/internal/history"
	"github.com/ivlev/svg2video/internal/renderer"
	"github.com/ivlev/svg2video/internal/session"
	"github.com/ivlev/svg2video/internal/style"
	"github.com/ivlev/svg2video/internal/system"
	"github.com/ivlev/svg2video/internal/video"
)

type Server struct {
	cfg      *config.Config
	registry *Registry
	history  *history.Store
	logger   *slog.Logger
	app      *fiber.App
}

// New собирает приложение. store может быть nil - тогда журнал не ведется.
func New(cfg *config.Config, registry *Registry, store *history.Store, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{cfg: cfg, registry: registry, history: store, logger: log}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    session.MaxDocumentSize,
		AppName:      "svg2video",
	})

	// ============================================================
	// Общие middleware
	// ============================================================

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))

	// ============================================================
	// Проверки состояния
	// ============================================================

	app.Get("/health/live", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "alive"})
	})
	app.Get("/health/ready", s.ready)

	// ============================================================
	// Сессии
	// ============================================================

	app.Post("/sessions", s.createSession)
	app.Delete("/sessions/:id", s.deleteSession)
	app.Post("/sessions/:id/document", s.uploadDocument)
	app.Get("/sessions/:id/document", s.getDocument)
	app.Get("/sessions/:id/animation", s.getAnimation)
	app.Put("/sessions/:id/animation", s.putAnimation)
	app.Get("/sessions/:id/export-settings", s.getExportSettings)
	app.Put("/sessions/:id/export-settings", s.putExportSettings)
	app.Get("/sessions/:id/style", s.getStyle)
	app.Put("/sessions/:id/style", s.putStyle)
	app.Get("/sessions/:id/state", s.getState)
	app.Get("/sessions/:id/frame", s.getFrame)
	app.Post("/sessions/:id/export", s.runExport)
	app.Get("/sessions/:id/export", s.exportStatus)

	// ============================================================
	// Журнал экспорта
	// ============================================================

	app.Get("/exports", s.listExports)
	app.Get("/exports/:id", s.getExport)
	app.Get("/exports/:id/download", s.downloadExport)

	s.app = app
	return s
}

func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen(addr string) error {
	s.logger.Info("starting server", "addr", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) ready(c fiber.Ctx) error {
	if s.history != nil {
		if _, err := s.history.List(c.Context(), "", 1); err != nil {
			return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{"status": "not ready", "error": err.Error()})
		}
	}
	return c.JSON(fiber.Map{"status": "ready", "sessions": s.registry.Len()})
}

// status сопоставляет ошибки пакетов с кодами HTTP.
func status(err error) int {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, history.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrBusy), errors.Is(err, session.ErrNotLoaded):
		return http.StatusConflict
	case errors.Is(err, document.ErrInvalidDocument), errors.Is(err, document.ErrNoDrawableElements):
		return http.StatusUnprocessableEntity
	case errors.Is(err, config.ErrInvalid), errors.Is(err, style.ErrInvalidColor),
		errors.Is(err, video.ErrUnknownFormat), errors.Is(err, renderer.ErrUnknownRenderer):
		return http.StatusBadRequest
	case errors.Is(err, system.ErrInsufficientMemory):
		return http.StatusInsufficientStorage
	}
	return http.StatusInternalServerError
}

func fail(c fiber.Ctx, err error) error {
	return c.Status(status(err)).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) session(c fiber.Ctx) (*session.Session, error) {
	return s.registry.Get(c.Params("id"))
}

func (s *Server) createSession(c fiber.Ctx) error {
	id, _ := s.registry.Create()
	return c.Status(http.StatusCreated).JSON(fiber.Map{"id": id})
}

func (s *Server) deleteSession(c fiber.Ctx) error {
	if err := s.registry.Delete(c.Params("id")); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(http.StatusNoContent)
}

type elementPayload struct {
	ID     string         `json:"id"`
	Kind   string         `json:"kind"`
	Style  document.Style `json:"style"`
	Length float64        `json:"length"`
}

// uploadDocument принимает SVG как multipart-поле file или как тело запроса.
func (s *Server) uploadDocument(c fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return fail(c, err)
	}

	var data []byte
	if file, ferr := c.FormFile("file"); ferr == nil {
		f, err := file.Open()
		if err != nil {
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to open file"})
		}
		defer f.Close()
		buf := new(bytes.Buffer)
		if _, err := buf.ReadFrom(f); err != nil {
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to read file"})
		}
		data = buf.Bytes()
	} else {
		data = c.Body()
	}
	if len(data) == 0 {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "svg required as multipart file or request body"})
	}

	doc, err := sess.Load(bytes.NewReader(data))
	if err != nil {
		return fail(c, err)
	}
	// параллельный Reset мог выгрузить документ между Load и Sample
	frame, err := sess.Sample(0)
	if err != nil {
		return fail(c, err)
	}
	elements := make([]elementPayload, len(doc.Elements))
	for i, el := range doc.Elements {
		elements[i] = elementPayload{ID: el.ID, Kind: el.Kind.String(), Style: el.Style}
		if i < len(frame.States) {
			elements[i].Length = frame.States[i].DashLength
		}
	}
	return c.JSON(fiber.Map{
		"width":    doc.Width,
		"height":   doc.Height,
		"viewBox":  doc.ViewBox.String(),
		"elements": elements,
	})
}

func (s *Server) getDocument(c fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return fail(c, err)
	}
	src, err := sess.Source()
	if err != nil {
		return fail(c, err)
	}
	c.Set("Content-Type", "image/svg+xml")
	return c.Send(src)
}

func (s *Server) getAnimation(c fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(animationPayload(sess.Animation()))
}

func (s *Server) putAnimation(c fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return fail(c, err)
	}
	p := animationPayload(sess.Animation())
	if err := json.Unmarshal(c.Body(), &p); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid json"})
	}
	if err := sess.SetAnimation(p.config()); err != nil {
		return fail(c, err)
	}
	return c.JSON(p)
}

func (s *Server) getExportSettings(c fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(exportPayload(sess.ExportConfig()))
}

func (s *Server) putExportSettings(c fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return fail(c, err)
	}
	p := exportPayload(sess.ExportConfig())
	if err := json.Unmarshal(c.Body(), &p); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid json"})
	}
	if err := sess.SetExport(p.config()); err != nil {
		return fail(c, err)
	}
	return c.JSON(p)
}

type stylePayload struct {
	UseOriginal bool    `json:"useOriginal"`
	Stroke      string  `json:"stroke"`
	StrokeWidth float64 `json:"strokeWidth"`
}

func (s *Server) getStyle(c fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return fail(c, err)
	}
	styles, err := sess.Styles()
	if err != nil {
		return fail(c, err)
	}
	o := styles.Override()
	return c.JSON(stylePayload{UseOriginal: styles.UseOriginal(), Stroke: o.Stroke, StrokeWidth: o.StrokeWidth})
}

func (s *Server) putStyle(c fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return fail(c, err)
	}
	var p stylePayload
	if err := json.Unmarshal(c.Body(), &p); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid json"})
	}
	// значения, совпадающие с текущим override, не считаются правкой:
	// GET -> PUT с одним лишь useOriginal переключает режим
	if styles, err := sess.Styles(); err == nil {
		cur := styles.Override()
		if hex, ok := style.ToHex(p.Stroke); ok && hex == cur.Stroke {
			p.Stroke = ""
		}
		if p.StrokeWidth == cur.StrokeWidth {
			p.StrokeWidth = 0
		}
	}
	if err := sess.SetStyle(config.Style{UseOriginal: p.UseOriginal, Stroke: p.Stroke, StrokeWidth: p.StrokeWidth}); err != nil {
		return fail(c, err)
	}
	return s.getStyle(c)
}

func progressQuery(c fiber.Ctx) (float64, error) {
	p := fiber.Query[float64](c, "progress", 0)
	if p < 0 || p > 1 {
		return 0, errors.New("progress must be within [0, 1]")
	}
	return p, nil
}

func (s *Server) getState(c fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return fail(c, err)
	}
	p, err := progressQuery(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	f, err := sess.Sample(p)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(f)
}

// getFrame отдает кадр с заданным прогрессом в PNG в размере экспорта.
func (s *Server) getFrame(c fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return fail(c, err)
	}
	p, err := progressQuery(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	img, err := sess.Frame(c.Context(), p)
	if err != nil {
		return fail(c, err)
	}
	defer system.PutImage(img)

	var buf bytes.Buffer
	if err := archive.EncodePNG(&buf, img); err != nil {
		return fail(c, err)
	}
	c.Set("Content-Type", "image/png")
	return c.Send(buf.Bytes())
}

func (s *Server) runExport(c fiber.Ctx) error {
	id := c.Params("id")
	sess, err := s.session(c)
	if err != nil {
		return fail(c, err)
	}

	dir := filepath.Join(s.cfg.Server.WorkDir, id, uuid.NewString())
	art, err := sess.Export(c.Context(), dir, nil)
	if err != nil {
		return fail(c, err)
	}

	resp := fiber.Map{"artifact": art}
	if s.history != nil {
		exp := sess.ExportConfig()
		rec, err := s.history.Add(c.Context(), history.FromArtifact(id, "", exp.Width, exp.Height, exp.FPS, art))
		if err != nil {
			s.logger.Warn("history record failed", "err", err)
		} else {
			resp["id"] = rec.ID
			resp["download"] = "/exports/" + rec.ID + "/download"
		}
	}
	return c.JSON(resp)
}

func (s *Server) exportStatus(c fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"exporting": sess.Exporting(), "status": sess.ExportStatus(), "playback": sess.Playback()})
}

func (s *Server) listExports(c fiber.Ctx) error {
	if s.history == nil {
		return c.JSON([]history.Record{})
	}
	limit := fiber.Query[int](c, "limit", 50)
	recs, err := s.history.List(c.Context(), c.Query("session"), limit)
	if err != nil {
		return fail(c, err)
	}
	if recs == nil {
		recs = []history.Record{}
	}
	return c.JSON(recs)
}

func (s *Server) record(c fiber.Ctx) (history.Record, error) {
	if s.history == nil {
		return history.Record{}, history.ErrNotFound
	}
	return s.history.Get(c.Context(), c.Params("id"))
}

func (s *Server) getExport(c fiber.Ctx) error {
	rec, err := s.record(c)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(rec)
}

func (s *Server) downloadExport(c fiber.Ctx) error {
	rec, err := s.record(c)
	if err != nil {
		return fail(c, err)
	}
	c.Set("Content-Type", rec.MIME)
	return c.Download(rec.Path, rec.Name)
}
