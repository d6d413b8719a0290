package chart

import (
	"fmt"

	"github.com/hdsoft/unisearch/pkg/payload"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Palette returns the text and grid colours for the theme.
func (t Theme) Palette() (text, grid RGBA) {
	if t == ThemeDark {
		return RGBA{224, 224, 224, 1}, RGBA{255, 255, 255, 0.1}
	}
	return RGBA{102, 102, 102, 1}, RGBA{0, 0, 0, 0.1}
}

func (t Theme) Background() RGBA {
	if t == ThemeDark {
		return RGBA{33, 37, 41, 1}
	}
	return RGBA{255, 255, 255, 1}
}

type Axis struct {
	Title     string `json:"title"`
	Stacked   bool   `json:"stacked"`
	TextColor string `json:"textColor"`
	GridColor string `json:"gridColor"`
}

type Legend struct {
	Display   bool   `json:"display"`
	Position  string `json:"position"`
	TextColor string `json:"textColor"`
}

type Options struct {
	Title   string `json:"title,omitempty"`
	Legend  Legend `json:"legend"`
	X       *Axis  `json:"x,omitempty"`
	Y       *Axis  `json:"y,omitempty"`
	Stacked bool   `json:"stacked"`
}

// Config is everything a renderer needs to draw one chart.
type Config struct {
	Type    Visualization `json:"type"`
	Data    Data          `json:"data"`
	Options Options       `json:"options"`
	Theme   Theme         `json:"theme"`
	Width   int           `json:"width"`
	Height  int           `json:"height"`
	// Tooltips holds the hover text of every point, indexed by dataset.
	Tooltips [][]string `json:"tooltips,omitempty"`
}

const (
	DefaultWidth  = 960
	DefaultHeight = 540
)

// BuildConfig derives the rendering options for data. Line charts with
// cumulated set get running totals; the input data is not modified.
func BuildConfig(viz Visualization, cfg payload.ReportConfig, data Data, theme Theme) Config {
	if viz == "" {
		viz = Bar
	}
	text, grid := theme.Palette()
	stacked := viz == Bar && cfg.Stacked

	c := Config{
		Type:   viz,
		Data:   data,
		Theme:  theme,
		Width:  DefaultWidth,
		Height: DefaultHeight,
		Options: Options{
			Stacked: stacked,
			Legend: Legend{
				Display:   viz == Pie || len(data.Datasets) > 1,
				Position:  "top",
				TextColor: text.String(),
			},
		},
	}
	if viz == Pie {
		c.Options.Legend.Position = "right"
	} else {
		c.Options.X = &Axis{
			Title:     axisTitle(cfg.DimensionField, "Category"),
			Stacked:   stacked,
			TextColor: text.String(),
			GridColor: grid.String(),
		}
		c.Options.Y = &Axis{
			Title:     axisTitle(cfg.MeasureField, "Value"),
			Stacked:   stacked,
			TextColor: text.String(),
			GridColor: grid.String(),
		}
	}
	if viz == Line && cfg.Cumulated {
		c.Data = Cumulate(data)
	}
	c.Tooltips = make([][]string, len(c.Data.Datasets))
	for ds, set := range c.Data.Datasets {
		c.Tooltips[ds] = make([]string, len(set.Data))
		for i := range set.Data {
			c.Tooltips[ds][i] = c.Tooltip(ds, i)
		}
	}
	return c
}

func axisTitle(field, fallback string) string {
	if field == "" {
		return fallback
	}
	return payload.Label(field)
}

// Cumulate replaces each dataset's values with their running sums.
func Cumulate(data Data) Data {
	out := Data{Labels: append([]string(nil), data.Labels...)}
	for _, ds := range data.Datasets {
		sums := make([]float64, len(ds.Data))
		var total float64
		for i, v := range ds.Data {
			total += v
			sums[i] = total
		}
		ds.Data = sums
		out.Datasets = append(out.Datasets, ds)
	}
	return out
}

// Tooltip formats the value at index i of dataset ds.
func (c Config) Tooltip(ds, i int) string {
	if ds < 0 || ds >= len(c.Data.Datasets) {
		return ""
	}
	set := c.Data.Datasets[ds]
	if i < 0 || i >= len(set.Data) {
		return ""
	}
	label := set.Label
	if c.Type == Pie && i < len(c.Data.Labels) {
		label = c.Data.Labels[i]
	}
	if label == "" {
		return FormatNumber(set.Data[i])
	}
	return fmt.Sprintf("%s: %s", label, FormatNumber(set.Data[i]))
}
