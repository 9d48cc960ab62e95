package server

import "github.com/ivlev/svg2video/internal/config"

// animationRequest - тело GET/PUT /sessions/:id/animation.
type animationRequest struct {
	Duration float64 `json:"duration"`
	Delay    float64 `json:"delay"`
	Easing   string  `json:"easing"`
	Repeat   int     `json:"repeat"`
	Mode     string  `json:"mode"`
}

func animationPayload(a config.Animation) animationRequest {
	return animationRequest{Duration: a.Duration, Delay: a.Delay, Easing: a.Easing, Repeat: a.Repeat, Mode: a.Mode}
}

func (p animationRequest) config() config.Animation {
	return config.Animation{Duration: p.Duration, Delay: p.Delay, Easing: p.Easing, Repeat: p.Repeat, Mode: p.Mode}
}

// exportRequest - тело GET/PUT /sessions/:id/export-settings.
type exportRequest struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	FPS        int    `json:"fps"`
	Format     string `json:"format"`
	Background string `json:"background"`
	Quality    int    `json:"quality"`
	Renderer   string `json:"renderer"`
}

func exportPayload(e config.Export) exportRequest {
	return exportRequest{
		Width: e.Width, Height: e.Height, FPS: e.FPS, Format: e.Format,
		Background: e.Background, Quality: e.Quality, Renderer: e.Renderer,
	}
}

func (p exportRequest) config() config.Export {
	return config.Export{
		Width: p.Width, Height: p.Height, FPS: p.FPS, Format: p.Format,
		Background: p.Background, Quality: p.Quality, Renderer: p.Renderer,
	}
}
