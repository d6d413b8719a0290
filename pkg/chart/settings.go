package chart

import (
	"github.com/hdsoft/unisearch/pkg/config"
	"github.com/hdsoft/unisearch/pkg/payload"
)

// Settings are the configured rendering defaults shared by the CLI and the
// web server.
type Settings struct {
	Width      int
	Height     int
	Theme      Theme
	MaxRecords int
}

func NewSettings(cfg config.ChartConfig) Settings {
	return Settings{
		Width:      cfg.Width,
		Height:     cfg.Height,
		Theme:      Theme(cfg.Theme),
		MaxRecords: cfg.MaxRecords,
	}
}

// BuildOptions are the builder options every configured build uses.
func (s Settings) BuildOptions() []Option {
	opts := []Option{WithObserver(LogObserver)}
	if s.MaxRecords > 0 {
		opts = append(opts, WithRecordLimit(s.MaxRecords))
	}
	return opts
}

// Config is BuildConfig with the configured theme and size.
func (s Settings) Config(viz Visualization, cfg payload.ReportConfig, data Data) Config {
	c := BuildConfig(viz, cfg, data, s.Theme)
	if s.Width > 0 {
		c.Width = s.Width
	}
	if s.Height > 0 {
		c.Height = s.Height
	}
	return c
}
