package chart

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

type Format string

const (
	PNG Format = "png"
	SVG Format = "svg"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case PNG, "":
		return PNG, nil
	case SVG:
		return SVG, nil
	}
	return "", fmt.Errorf("unknown image format %q (want png or svg)", s)
}

// ContentType is the MIME type of images in format f.
func (f Format) ContentType() string {
	if f == SVG {
		return "image/svg+xml"
	}
	return "image/png"
}

var ErrNothingToDraw = errors.New("chart has no data to draw")

type renderable interface {
	Render(rp gochart.RendererProvider, w io.Writer) error
}

// Render draws cfg to w. Renderer failures, including panics inside the
// charting library, are returned as errors.
func Render(w io.Writer, cfg Config, format Format) (err error) {
	if cfg.Data.Empty() {
		return ErrNothingToDraw
	}
	provider := gochart.PNG
	if format == SVG {
		provider = gochart.SVG
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rendering %s chart: %v", cfg.Type, r)
		}
	}()

	var c renderable
	switch cfg.Type {
	case Pie:
		c = pieChart(cfg)
	case Line:
		c = lineChart(cfg)
	default:
		if cfg.Options.Stacked && len(cfg.Data.Datasets) > 1 {
			c = stackedBarChart(cfg)
		} else {
			c = barChart(cfg)
		}
	}
	if err := c.Render(provider, w); err != nil {
		return fmt.Errorf("rendering %s chart: %w", cfg.Type, err)
	}
	return nil
}

func size(cfg Config) (int, int) {
	w, h := cfg.Width, cfg.Height
	if w <= 0 {
		w = DefaultWidth
	}
	if h <= 0 {
		h = DefaultHeight
	}
	return w, h
}

func textStyle(cfg Config) gochart.Style {
	text, _ := cfg.Theme.Palette()
	return gochart.Style{FontColor: text.Drawing(), StrokeColor: text.Drawing()}
}

func background(cfg Config) gochart.Style {
	return gochart.Style{
		FillColor: cfg.Theme.Background().Drawing(),
		Padding:   gochart.Box{Top: 24, Left: 16, Right: 16, Bottom: 16},
	}
}

func valueFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return FormatNumber(f)
	}
	return fmt.Sprint(v)
}

func datasetColor(ds Dataset, i int) drawing.Color {
	return parseColor(ds.BackgroundColor, Color(i))
}

// pointColor is the colour of point i of ds; fallback applies when neither a
// per-point nor a dataset colour can be parsed.
func pointColor(ds Dataset, i int, fallback RGBA) drawing.Color {
	return parseColor(ds.PointColor(i), fallback)
}

func parseColor(s string, fallback RGBA) drawing.Color {
	if c, err := parseRGBA(s); err == nil {
		return c.Opaque().Drawing()
	}
	if strings.HasPrefix(s, "#") && (len(s) == 4 || len(s) == 7) {
		return drawing.ColorFromHex(strings.TrimPrefix(s, "#"))
	}
	return fallback.Opaque().Drawing()
}

func parseRGBA(s string) (RGBA, error) {
	var c RGBA
	var r, g, b int
	if _, err := fmt.Sscanf(s, "rgba(%d, %d, %d, %g)", &r, &g, &b, &c.A); err != nil {
		return RGBA{}, err
	}
	c.R, c.G, c.B = uint8(r), uint8(g), uint8(b)
	return c, nil
}

func barChart(cfg Config) *gochart.BarChart {
	w, h := size(cfg)
	ds := cfg.Data.Datasets[0]
	bars := make([]gochart.Value, 0, len(cfg.Data.Labels))
	for i, label := range cfg.Data.Labels {
		var v float64
		if i < len(ds.Data) {
			v = ds.Data[i]
		}
		col := pointColor(ds, i, Color(0))
		bars = append(bars, gochart.Value{
			Label: label,
			Value: v,
			Style: gochart.Style{FillColor: col, StrokeColor: col},
		})
	}
	return &gochart.BarChart{
		Title:      cfg.Options.Title,
		Width:      w,
		Height:     h,
		Background: background(cfg),
		XAxis:      textStyle(cfg),
		YAxis: gochart.YAxis{
			Name:           axisName(cfg.Options.Y),
			Style:          textStyle(cfg),
			ValueFormatter: valueFormatter,
		},
		Bars: bars,
	}
}

func stackedBarChart(cfg Config) *gochart.StackedBarChart {
	w, h := size(cfg)
	bars := make([]gochart.StackedBar, 0, len(cfg.Data.Labels))
	for i, label := range cfg.Data.Labels {
		bar := gochart.StackedBar{Name: label}
		for si, ds := range cfg.Data.Datasets {
			if i >= len(ds.Data) {
				continue
			}
			col := datasetColor(ds, si)
			bar.Values = append(bar.Values, gochart.Value{
				Label: ds.Label,
				Value: ds.Data[i],
				Style: gochart.Style{FillColor: col, StrokeColor: col},
			})
		}
		bars = append(bars, bar)
	}
	return &gochart.StackedBarChart{
		Title:      cfg.Options.Title,
		Width:      w,
		Height:     h,
		Background: background(cfg),
		XAxis:      textStyle(cfg),
		YAxis:      textStyle(cfg),
		Bars:       bars,
	}
}

func lineChart(cfg Config) *gochart.Chart {
	w, h := size(cfg)
	n := len(cfg.Data.Labels)

	ticks := make([]gochart.Tick, n)
	for i, label := range cfg.Data.Labels {
		ticks[i] = gochart.Tick{Value: float64(i), Label: label}
	}

	series := make([]gochart.Series, 0, len(cfg.Data.Datasets))
	for si, ds := range cfg.Data.Datasets {
		xs := make([]float64, 0, n)
		ys := make([]float64, 0, n)
		for i := 0; i < n && i < len(ds.Data); i++ {
			xs = append(xs, float64(i))
			ys = append(ys, ds.Data[i])
		}
		// A single point has no range to plot; extend it to a flat segment.
		if len(xs) == 1 {
			xs = append(xs, xs[0]+1)
			ys = append(ys, ys[0])
		}
		col := datasetColor(ds, si)
		series = append(series, gochart.ContinuousSeries{
			Name:    ds.Label,
			XValues: xs,
			YValues: ys,
			Style: gochart.Style{
				StrokeColor: col,
				StrokeWidth: 2,
				DotColor:    col,
				DotWidth:    3,
			},
		})
	}

	_, grid := cfg.Theme.Palette()
	ch := &gochart.Chart{
		Title:      cfg.Options.Title,
		Width:      w,
		Height:     h,
		Background: background(cfg),
		XAxis: gochart.XAxis{
			Name:           axisName(cfg.Options.X),
			Style:          textStyle(cfg),
			Ticks:          ticks,
			GridMajorStyle: gochart.Style{StrokeColor: grid.Drawing(), StrokeWidth: 1},
		},
		YAxis: gochart.YAxis{
			Name:           axisName(cfg.Options.Y),
			Style:          textStyle(cfg),
			ValueFormatter: valueFormatter,
			GridMajorStyle: gochart.Style{StrokeColor: grid.Drawing(), StrokeWidth: 1},
		},
		Series: series,
	}
	if cfg.Options.Legend.Display {
		ch.Elements = []gochart.Renderable{gochart.Legend(ch)}
	}
	return ch
}

func pieChart(cfg Config) *gochart.PieChart {
	w, h := size(cfg)
	ds := cfg.Data.Datasets[0]
	values := make([]gochart.Value, 0, len(cfg.Data.Labels))
	for i := range cfg.Data.Labels {
		if i >= len(ds.Data) || ds.Data[i] <= 0 {
			continue
		}
		col := Color(i).Opaque().Drawing()
		if len(ds.BackgroundColors) > 0 {
			col = pointColor(ds, i, Color(i))
		}
		values = append(values, gochart.Value{
			Label: cfg.Tooltip(0, i),
			Value: ds.Data[i],
			Style: gochart.Style{FillColor: col, StrokeColor: cfg.Theme.Background().Drawing()},
		})
	}
	return &gochart.PieChart{
		Title:      cfg.Options.Title,
		Width:      w,
		Height:     h,
		Background: background(cfg),
		Values:     values,
	}
}

func axisName(a *Axis) string {
	if a == nil {
		return ""
	}
	return a.Title
}

// Canvas owns the most recently rendered chart image. Each Draw releases the
// previous image before rendering; Release frees it for good.
type Canvas struct {
	mu       sync.Mutex
	format   Format
	img      *bytes.Buffer
	released int
}

func NewCanvas(format Format) *Canvas {
	return &Canvas{format: format}
}

// Draw renders cfg, replacing the current image. On failure the canvas is
// left empty and the error returned.
func (c *Canvas) Draw(cfg Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.releaseLocked()
	var buf bytes.Buffer
	if err := Render(&buf, cfg, c.format); err != nil {
		return err
	}
	c.img = &buf
	return nil
}

// Bytes returns a copy of the current image, or nil.
func (c *Canvas) Bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.img == nil {
		return nil
	}
	return bytes.Clone(c.img.Bytes())
}

func (c *Canvas) Format() Format { return c.format }

func (c *Canvas) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseLocked()
}

// Releases counts images released so far.
func (c *Canvas) Releases() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}

func (c *Canvas) releaseLocked() {
	if c.img == nil {
		return
	}
	c.img.Reset()
	c.img = nil
	c.released++
}
