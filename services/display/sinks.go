package display

import (
	"image/color"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

// Canvas is a buffered panel such as the SSD1306.
type Canvas interface {
	drivers.Displayer
	ClearBuffer()
}

const lineHeight = 8

var white = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// PixelSink rasterises frames with tinyfont.
type PixelSink struct {
	c Canvas
}

func NewPixelSink(c Canvas) *PixelSink { return &PixelSink{c: c} }

func (p *PixelSink) Show(f Frame) error {
	p.c.ClearBuffer()
	_, h := p.c.Size()
	for i, s := range f {
		y := int16((i+1)*lineHeight - 1) // baseline
		if y >= h {
			break
		}
		if s != "" {
			tinyfont.WriteLine(p.c, &proggy.TinySZ8pt7b, 0, y, s, white)
		}
	}
	return p.c.Display()
}

// LogSink prints frames to the console.
type LogSink struct{}

func (LogSink) Show(f Frame) error {
	println("[display]", f[0], "|", f[1], "|", f[2], "|", f[3])
	return nil
}
