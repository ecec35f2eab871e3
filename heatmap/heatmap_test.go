package heatmap_test

import (
	"bytes"
	"image"
	"testing"

	"github.com/golang/freetype"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/spprof/spprof/heatmap"
	"github.com/spprof/spprof/ir"
	"github.com/spprof/spprof/ir/irtest"
)

func TestRenderDimensions(t *testing.T) {
	bld := irtest.New("foo", "foo")
	a := bld.Block(irtest.Stmt{File: "a.c", Line: 1})
	b := bld.Block(irtest.Stmt{File: "a.c", Line: 2})
	a.Count, b.Count = 80, 20
	bld.Edge(bld.Func().Entry, a, ir.ProbBase)
	bld.Edge(a, b, ir.ProbBase)
	bld.Edge(b, bld.Func().Exit, ir.ProbBase)

	img, err := heatmap.Render(bld.Func(), heatmap.Options{TotalWidth: 400, Height: 32})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	got := img.Bounds()
	want := image.Rect(0, 0, 400, 32)
	if got != want {
		t.Errorf("Bounds() = %v, want %v", got, want)
	}

	var buf bytes.Buffer
	if err := heatmap.WritePNG(&buf, img); err != nil {
		t.Fatalf("WritePNG: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("WritePNG wrote no bytes")
	}
}

func TestRenderEmptyFunction(t *testing.T) {
	fn := &ir.Function{Entry: &ir.BasicBlock{}, Exit: &ir.BasicBlock{}}
	img, err := heatmap.Render(fn, heatmap.Options{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if img.Bounds().Dx() != 800 || img.Bounds().Dy() != 48 {
		t.Errorf("Bounds() = %v, want default 800x48", img.Bounds())
	}
}

func TestRenderUniformCounts(t *testing.T) {
	bld := irtest.New("foo", "foo")
	a := bld.Block(irtest.Stmt{File: "a.c", Line: 1})
	b := bld.Block(irtest.Stmt{File: "a.c", Line: 2})
	a.Count, b.Count = 10, 10
	bld.Edge(bld.Func().Entry, a, ir.ProbBase)
	bld.Edge(a, b, ir.ProbBase)
	bld.Edge(b, bld.Func().Exit, ir.ProbBase)

	if _, err := heatmap.Render(bld.Func(), heatmap.Options{}); err != nil {
		t.Fatalf("Render with uniform counts: %v", err)
	}
}

// A Font draws per-block labels and a tick-labeled legend, growing the
// image by LegendHeight and changing pixels relative to an unlabeled
// render of the same function.
func TestRenderWithFontDrawsLegend(t *testing.T) {
	font, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		t.Fatalf("ParseFont: %v", err)
	}

	bld := irtest.New("foo", "foo")
	a := bld.Block(irtest.Stmt{File: "a.c", Line: 1})
	b := bld.Block(irtest.Stmt{File: "a.c", Line: 2})
	a.Count, b.Count = 1000, 10
	bld.Edge(bld.Func().Entry, a, ir.ProbBase)
	bld.Edge(a, b, ir.ProbBase)
	bld.Edge(b, bld.Func().Exit, ir.ProbBase)

	plain, err := heatmap.Render(bld.Func(), heatmap.Options{TotalWidth: 400, Height: 32})
	if err != nil {
		t.Fatalf("Render (plain): %v", err)
	}

	labeled, err := heatmap.Render(bld.Func(), heatmap.Options{TotalWidth: 400, Height: 32, Font: font})
	if err != nil {
		t.Fatalf("Render (with Font): %v", err)
	}

	wantBounds := image.Rect(0, 0, 400, 32+20) // default LegendHeight is 20
	if got := labeled.Bounds(); got != wantBounds {
		t.Errorf("Bounds() = %v, want %v", got, wantBounds)
	}

	var buf bytes.Buffer
	if err := heatmap.WritePNG(&buf, labeled); err != nil {
		t.Fatalf("WritePNG: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("WritePNG wrote no bytes")
	}

	strip := labeled.(interface {
		SubImage(image.Rectangle) image.Image
	}).SubImage(plain.Bounds())
	if imagesEqual(plain, strip) {
		t.Error("labeled render's block strip is pixel-identical to the plain render")
	}
}

func imagesEqual(a, b image.Image) bool {
	if a.Bounds() != b.Bounds() {
		return false
	}
	bounds := a.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if a.At(x, y) != b.At(x, y) {
				return false
			}
		}
	}
	return true
}
