package chart

import (
	"fmt"

	"github.com/wcharczuk/go-chart/v2/drawing"
)

// RGBA is a palette colour with a CSS style alpha in [0,1].
type RGBA struct {
	R, G, B uint8
	A       float64
}

func (c RGBA) String() string {
	return fmt.Sprintf("rgba(%d, %d, %d, %g)", c.R, c.G, c.B, c.A)
}

// Opaque returns the same colour with alpha 1.
func (c RGBA) Opaque() RGBA {
	c.A = 1
	return c
}

// Drawing converts to the renderer's colour type.
func (c RGBA) Drawing() drawing.Color {
	return drawing.Color{R: c.R, G: c.G, B: c.B, A: uint8(c.A*255 + 0.5)}
}

var palette = [...]RGBA{
	{54, 162, 235, 0.6},
	{255, 99, 132, 0.6},
	{75, 192, 192, 0.6},
	{255, 206, 86, 0.6},
	{153, 102, 255, 0.6},
	{255, 159, 64, 0.6},
	{199, 199, 199, 0.6},
	{83, 102, 255, 0.6},
	{40, 167, 69, 0.6},
	{220, 53, 69, 0.6},
}

// PaletteSize is the number of distinct colours before they repeat.
const PaletteSize = len(palette)

// Color returns the palette colour at position i, wrapping around.
func Color(i int) RGBA {
	if i < 0 {
		i = -i
	}
	return palette[i%len(palette)]
}
