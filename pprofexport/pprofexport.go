// Package pprofexport converts an annotated, smoothed function CFG
// into a pprof profile: one profile.Sample per basic block, valued by
// the block's execution count, located at the inline stack of its
// statements. Function and Location IDs are assigned sequentially
// from 1 (pprof reserves 0), the same convention BuildProfile uses in
// the wzprof family of profilers this is grounded on.
package pprofexport

import (
	"github.com/google/pprof/profile"

	"github.com/spprof/spprof/inlinestack"
	"github.com/spprof/spprof/ir"
)

// SampleType names the single value every sample carries: the basic
// block's smoothed or estimated execution count.
var SampleType = &profile.ValueType{Type: "samples", Unit: "count"}

// Export builds a profile containing one sample per basic block of
// every function in fns. Samples are located by the first statement
// in the block that carries source information; a block with no such
// statement gets a single synthetic location named after the
// function.
func Export(fns []*ir.Function) *profile.Profile {
	e := &exporter{funcsByName: make(map[string]*profile.Function)}
	prof := &profile.Profile{
		SampleType: []*profile.ValueType{SampleType},
		PeriodType: SampleType,
		Period:     1,
	}
	for _, fn := range fns {
		e.exportFunction(prof, fn)
	}
	return prof
}

type exporter struct {
	funcsByName map[string]*profile.Function
}

func (e *exporter) exportFunction(prof *profile.Profile, fn *ir.Function) {
	blocks := allBlocks(fn)
	for _, bb := range blocks {
		loc := e.locationFor(prof, fn, bb)
		prof.Location = append(prof.Location, loc)
		prof.Sample = append(prof.Sample, &profile.Sample{
			Value:    []int64{bb.Count},
			Location: []*profile.Location{loc},
			Label:    map[string][]string{"block": {fn.Name}},
		})
	}
}

// locationFor builds a fresh profile.Location for bb: one profile.Line
// for its first located statement's own line, followed by one per
// frame of that statement's inline stack, innermost first (the order
// profile.Line's own doc gives). An innermost frame identical to the
// statement's own location is not repeated. Each basic block gets its
// own Location, since
// two blocks sharing a source line are still distinct points in the
// CFG.
func (e *exporter) locationFor(prof *profile.Profile, fn *ir.Function, bb *ir.BasicBlock) *profile.Location {
	file, line, stack := firstLocated(bb)

	var lines []profile.Line
	if file == "" {
		lines = []profile.Line{{Function: e.functionFor(prof, fn.AsmName, fn.Name, "")}}
	} else {
		lines = append(lines, profile.Line{
			Function: e.functionFor(prof, fn.AsmName, fn.Name, file),
			Line:     int64(line),
		})
		for i := len(stack) - 1; i >= 0; i-- {
			if i == len(stack)-1 && stack[i] == (ir.Location{File: file, Line: line}) {
				continue // already emitted as the statement's own line
			}
			lines = append(lines, profile.Line{
				Function: e.functionFor(prof, fn.AsmName, fn.Name, stack[i].File),
				Line:     int64(stack[i].Line),
			})
		}
	}

	return &profile.Location{
		ID:   uint64(len(prof.Location)) + 1, // 0 reserved by pprof
		Line: lines,
	}
}

func (e *exporter) functionFor(prof *profile.Profile, systemName, name, filename string) *profile.Function {
	key := systemName + "|" + filename
	if f, ok := e.funcsByName[key]; ok {
		return f
	}
	f := &profile.Function{
		ID:         uint64(len(e.funcsByName)) + 1, // 0 reserved by pprof
		Name:       name,
		SystemName: systemName,
		Filename:   filename,
	}
	e.funcsByName[key] = f
	prof.Function = append(prof.Function, f)
	return f
}

// firstLocated returns the (file, line, inline stack) of the first
// statement in bb with a known location, or ("", 0, nil) if none.
func firstLocated(bb *ir.BasicBlock) (string, int32, []ir.Location) {
	for i := range bb.Statements {
		st := &bb.Statements[i]
		if st.Loc.Line == -1 {
			continue
		}
		return st.Loc.File, st.Loc.Line, inlinestack.Extract(st)
	}
	return "", 0, nil
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
