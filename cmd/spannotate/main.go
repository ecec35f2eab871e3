// Command spannotate runs the sample-profile pass against a function
// CFG described in spannotate's textual IR format (irtext.go), the
// same role cmd/dump plays for perffile: a small, standalone driver
// for exercising a library package from the command line.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/spprof/spprof/heatmap"
	"github.com/spprof/spprof/pprofexport"
	"github.com/spprof/spprof/session"
)

func main() {
	var (
		flagIR      = flag.String("ir", "", "read function CFGs from `file` (spannotate's textual IR format)")
		flagSample  = flag.String("sample", "", "sample data `file` (default: $SPPROF_DATA or sp.data)")
		flagDump    = flag.Bool("dump", false, "print the smoothed CFG dump for each function")
		flagPprof   = flag.String("pprof", "", "write a pprof profile of all functions to `file`")
		flagHeatmap = flag.String("heatmap", "", "write a PNG heatmap for each function to `dir`, one file per function")
		flagFont    = flag.String("font", "", "TrueType `file` to label heatmap blocks with (default: embedded Go Regular)")
		flagNoLabel = flag.Bool("heatmap-unlabeled", false, "omit block labels and the legend from heatmaps")
	)
	flag.Parse()
	if *flagIR == "" || flag.NArg() > 0 {
		flag.Usage()
		os.Exit(1)
	}

	f, err := os.Open(*flagIR)
	if err != nil {
		log.Fatal(err)
	}
	fns, err := parseIR(f)
	f.Close()
	if err != nil {
		log.Fatalf("parsing %s: %v", *flagIR, err)
	}

	cfg := session.Config{Enable: true, DataName: *flagSample}
	if *flagDump {
		cfg.Dump = true
		cfg.DumpWriter = os.Stdout
	}
	sess, err := session.Init(cfg)
	if err != nil {
		log.Fatal(err)
	}

	for _, fn := range fns {
		if err := sess.AnnotateFunction(fn); err != nil {
			log.Fatalf("annotating %s: %v", fn.Name, err)
		}
	}
	log.Printf("%d functions adopted, %d discarded", sess.Adopted, sess.Discarded)

	if *flagPprof != "" {
		prof := pprofexport.Export(fns)
		out, err := os.Create(*flagPprof)
		if err != nil {
			log.Fatal(err)
		}
		if err := prof.Write(out); err != nil {
			log.Fatal(err)
		}
		out.Close()
	}

	if *flagHeatmap != "" {
		if err := os.MkdirAll(*flagHeatmap, 0o755); err != nil {
			log.Fatal(err)
		}
		var font *truetype.Font
		if !*flagNoLabel {
			font, err = loadFont(*flagFont)
			if err != nil {
				log.Fatalf("loading heatmap font: %v", err)
			}
		}
		for _, fn := range fns {
			img, err := heatmap.Render(fn, heatmap.Options{Font: font})
			if err != nil {
				log.Fatalf("rendering heatmap for %s: %v", fn.Name, err)
			}
			path := fmt.Sprintf("%s/%s.png", *flagHeatmap, fn.Name)
			out, err := os.Create(path)
			if err != nil {
				log.Fatal(err)
			}
			if err := heatmap.WritePNG(out, img); err != nil {
				log.Fatal(err)
			}
			out.Close()
		}
	}
}

// loadFont parses path as a TrueType font, or the embedded Go Regular
// font when path is empty.
func loadFont(path string) (*truetype.Font, error) {
	if path == "" {
		return freetype.ParseFont(goregular.TTF)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return freetype.ParseFont(data)
}
