// Package heatmap renders a function's basic blocks as a horizontal
// strip of rectangles shaded by relative execution frequency: the
// same per-block detail the text dump format gives as numbers, turned
// into a picture, so one glance shows which blocks the profile says
// are hot.
//
// Block width is proportional to block.Count (a wider rectangle ran
// more often on the critical path) and color interpolates through a
// scale.Log of the block counts, reusing the scale package for axis
// scaling rather than hand-rolling a color ramp.
//
// When Options.Font is set, each block is labeled with its ID and
// count, and a tick-labeled gradient legend is drawn below the strip
// so the color ramp can be read back to approximate counts.
package heatmap

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"github.com/spprof/spprof/ir"
	"github.com/spprof/spprof/scale"
)

// Options controls rendering. The zero Options renders a reasonable
// default strip with no block labels.
type Options struct {
	// Height is the strip height in pixels; 0 uses 48.
	Height int
	// MinBlockWidth is the narrowest a block is ever drawn,
	// regardless of its relative count; 0 uses 4.
	MinBlockWidth int
	// TotalWidth is the overall image width in pixels; 0 uses 800.
	TotalWidth int
	// LegendHeight is the height in pixels of the color-scale legend
	// drawn below the strip; 0 uses 20. Only drawn when Font is set
	// and the function has more than one distinct block count.
	LegendHeight int

	// Font, if set, labels each block with its ID and count and draws
	// a tick-labeled legend for the color scale, using freetype. A
	// nil Font renders unlabeled rectangles and no legend.
	Font *truetype.Font
}

func (o Options) withDefaults() Options {
	if o.Height == 0 {
		o.Height = 48
	}
	if o.MinBlockWidth == 0 {
		o.MinBlockWidth = 4
	}
	if o.TotalWidth == 0 {
		o.TotalWidth = 800
	}
	if o.LegendHeight == 0 {
		o.LegendHeight = 20
	}
	return o
}

// cold and hot bound the color ramp: low-frequency blocks render
// close to cold, the hottest block in the function renders as hot.
var (
	cold = color.NRGBA{R: 0x20, G: 0x40, B: 0xa0, A: 0xff}
	hot  = color.NRGBA{R: 0xd0, G: 0x10, B: 0x10, A: 0xff}
)

// Render draws fn's basic blocks (Entry and Exit included) as a
// left-to-right strip and returns the image. A function with no
// blocks renders as a single unshaded rectangle.
func Render(fn *ir.Function, opts Options) (image.Image, error) {
	opts = opts.withDefaults()

	blocks := allBlocks(fn)
	haveLegend := opts.Font != nil && len(blocks) > 0
	totalHeight := opts.Height
	if haveLegend {
		totalHeight += opts.LegendHeight
	}
	img := image.NewNRGBA(image.Rect(0, 0, opts.TotalWidth, totalHeight))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	if len(blocks) == 0 {
		return img, nil
	}

	counts := make([]float64, len(blocks))
	var total float64
	minCount, maxCount := float64(-1), float64(-1)
	for i, b := range blocks {
		c := float64(b.Count)
		if c < 1 {
			c = 1 // scale.Log requires strictly positive input
		}
		counts[i] = c
		total += c
		if minCount < 0 || c < minCount {
			minCount = c
		}
		if c > maxCount {
			maxCount = c
		}
	}
	// scale.Log divides by log(max)-log(min); every block ran equally
	// often (or there is only one) makes that zero, so fall back to a
	// flat mid-ramp color instead of scaling.
	uniform := minCount == maxCount
	var sc *scale.Log
	if !uniform {
		sc = scale.NewLog(counts, 10)
	}

	var fc *freetype.Context
	if opts.Font != nil {
		fc = freetype.NewContext()
		fc.SetFont(opts.Font)
		fc.SetFontSize(10)
		fc.SetDst(img)
		fc.SetClip(img.Bounds())
		fc.SetSrc(image.Black)
	}

	x := 0
	for i, b := range blocks {
		share := counts[i] / total
		w := int(share * float64(opts.TotalWidth))
		if w < opts.MinBlockWidth {
			w = opts.MinBlockWidth
		}
		if x+w > opts.TotalWidth {
			w = opts.TotalWidth - x
		}
		if w <= 0 {
			break
		}

		t := 0.5
		if !uniform {
			t = clamp01(sc.Of(counts[i]))
		}
		col := lerp(cold, hot, t)
		draw.Draw(img, image.Rect(x, 0, x+w, opts.Height), &image.Uniform{C: col}, image.Point{}, draw.Src)

		if fc != nil && w >= opts.MinBlockWidth*2 {
			label := fmt.Sprintf("%d:%d", b.ID, b.Count)
			fc.DrawString(label, freetype.Pt(x+2, opts.Height/2+4))
		}

		x += w
	}

	if haveLegend && !uniform {
		drawLegend(img, fc, opts, counts)
	}

	return img, nil
}

// drawLegend paints a cold-to-hot gradient bar below the strip and
// labels it with the scale's major tick values, so a reader can map a
// block's color back to an approximate count. It builds its own
// scale.Log rather than reusing sc so that Nice's domain expansion
// (rounding the legend's endpoints out to "nice" values) never shifts
// the block coloring computed from the unrounded domain.
func drawLegend(img *image.NRGBA, fc *freetype.Context, opts Options, counts []float64) {
	top := opts.Height
	legendSc := scale.NewLog(counts, 10)
	legendSc.Nice(5)
	major, _ := legendSc.Ticks(5)

	for px := 0; px < opts.TotalWidth; px++ {
		t := float64(px) / float64(opts.TotalWidth-1)
		col := lerp(cold, hot, t)
		draw.Draw(img, image.Rect(px, top, px+1, top+opts.LegendHeight/2), &image.Uniform{C: col}, image.Point{}, draw.Src)
	}

	for _, v := range major {
		t := clamp01(legendSc.Of(v))
		px := int(t * float64(opts.TotalWidth-1))
		tickTop := top + opts.LegendHeight/2
		draw.Draw(img, image.Rect(px, tickTop, px+1, tickTop+3), image.Black, image.Point{}, draw.Src)
		if fc != nil {
			label := fmt.Sprintf("%.0f", v)
			fc.DrawString(label, freetype.Pt(px+2, top+opts.LegendHeight-2))
		}
	}
}

// WritePNG encodes img to w as a PNG, for whatever viewer the caller
// has handy.
func WritePNG(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	return enc.Encode(w, img)
}

func allBlocks(fn *ir.Function) []*ir.BasicBlock {
	blocks := make([]*ir.BasicBlock, 0, len(fn.Blocks)+2)
	if fn.Entry != nil {
		blocks = append(blocks, fn.Entry)
	}
	blocks = append(blocks, fn.Blocks...)
	if fn.Exit != nil {
		blocks = append(blocks, fn.Exit)
	}
	return blocks
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func lerp(a, b color.NRGBA, t float64) color.NRGBA {
	return color.NRGBA{
		R: lerpByte(a.R, b.R, t),
		G: lerpByte(a.G, b.G, t),
		B: lerpByte(a.B, b.B, t),
		A: 0xff,
	}
}

func lerpByte(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t)
}
