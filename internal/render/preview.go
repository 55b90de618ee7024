// Package render provides static bubble previews using fogleman/gg.
package render

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"
	"math"
	"sync"

	"github.com/fogleman/gg"

	"github.com/bubblemap/server/internal/bubble"
	"github.com/bubblemap/server/pkg/colormap"
)

// Config contains renderer configuration.
type Config struct {
	// Size is the edge length of the square preview in pixels.
	Size            int
	DefaultColormap string
	// ChartWidth is the interactive chart width that bubble sizes refer to.
	ChartWidth int
}

// PreviewRenderer draws bubbles as a PNG scatter.
type PreviewRenderer struct {
	config      Config
	contextPool sync.Pool
	bufferPool  sync.Pool
}

const (
	padding   = 0.05
	fillAlpha = 0.6
)

// NewPreviewRenderer creates a new preview renderer.
func NewPreviewRenderer(cfg Config) (*PreviewRenderer, error) {
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("preview size must be positive, got %d", cfg.Size)
	}
	if _, ok := colormap.ByName(cfg.DefaultColormap); !ok {
		return nil, fmt.Errorf("unknown colormap %q", cfg.DefaultColormap)
	}
	if cfg.ChartWidth <= 0 {
		cfg.ChartWidth = cfg.Size
	}

	return &PreviewRenderer{
		config: cfg,
		contextPool: sync.Pool{
			New: func() interface{} {
				return gg.NewContext(cfg.Size, cfg.Size)
			},
		},
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 64*1024))
			},
		},
	}, nil
}

// Size returns the preview edge length.
func (r *PreviewRenderer) Size() int {
	return r.config.Size
}

// Render draws the bubbles, coloured by count, and returns PNG bytes.
// An unknown colormapName falls back to the default colormap.
func (r *PreviewRenderer) Render(bubbles []bubble.Bubble, colormapName string) ([]byte, error) {
	dc := r.contextPool.Get().(*gg.Context)
	defer r.contextPool.Put(dc)

	dc.SetColor(color.White)
	dc.Clear()

	if len(bubbles) == 0 {
		return r.encodeContext(dc)
	}

	cmap, ok := colormap.ByName(colormapName)
	if !ok {
		cmap, _ = colormap.ByName(r.config.DefaultColormap)
	}

	b := boundsOf(bubbles)
	size := float64(r.config.Size)
	inner := size * (1 - 2*padding)
	scale := size / float64(r.config.ChartWidth)

	countRange := float64(b.maxCount - b.minCount)
	if countRange == 0 {
		countRange = 1
	}

	for _, bb := range bubbles {
		px, py := b.project(bb.X, bb.Y, inner, size*padding)
		radius := math.Max(bb.Size*scale/2, 1)

		c := color.NRGBAModel.Convert(cmap.At(float64(bb.Count-b.minCount) / countRange)).(color.NRGBA)
		c.A = uint8(255 * fillAlpha)
		dc.SetColor(c)
		dc.DrawCircle(px, py, radius)
		dc.FillPreserve()

		dc.SetColor(color.Black)
		dc.SetLineWidth(1)
		dc.Stroke()
	}

	return r.encodeContext(dc)
}

type bounds struct {
	minX, maxX, minY, maxY float64
	minCount, maxCount     int
}

func boundsOf(bubbles []bubble.Bubble) bounds {
	b := bounds{
		minX: math.Inf(1), maxX: math.Inf(-1),
		minY: math.Inf(1), maxY: math.Inf(-1),
		minCount: bubbles[0].Count, maxCount: bubbles[0].Count,
	}
	for _, bb := range bubbles {
		b.minX = math.Min(b.minX, bb.X)
		b.maxX = math.Max(b.maxX, bb.X)
		b.minY = math.Min(b.minY, bb.Y)
		b.maxY = math.Max(b.maxY, bb.Y)
		b.minCount = min(b.minCount, bb.Count)
		b.maxCount = max(b.maxCount, bb.Count)
	}
	return b
}

// project maps data coordinates into the padded pixel square, y pointing up.
func (b bounds) project(x, y, inner, offset float64) (float64, float64) {
	span := math.Max(b.maxX-b.minX, b.maxY-b.minY)
	if span == 0 {
		return offset + inner/2, offset + inner/2
	}
	px := offset + (x-b.minX)/span*inner
	py := offset + inner - (y-b.minY)/span*inner
	return px, py
}

func (r *PreviewRenderer) encodeContext(dc *gg.Context) ([]byte, error) {
	buf := r.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		r.bufferPool.Put(buf)
	}()

	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(buf, dc.Image()); err != nil {
		return nil, err
	}

	// Copy buffer contents (buffer will be reused)
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}
