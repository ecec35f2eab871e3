package pprofexport_test

import (
	"testing"

	"github.com/google/pprof/profile"

	"github.com/spprof/spprof/ir"
	"github.com/spprof/spprof/ir/irtest"
	"github.com/spprof/spprof/pprofexport"
)

func TestExportOneSamplePerBlock(t *testing.T) {
	bld := irtest.New("foo", "foo")
	a := bld.Block(irtest.Stmt{File: "a.c", Line: 10})
	b := bld.Block(irtest.Stmt{File: "a.c", Line: 20})
	a.Count, b.Count = 25, 75
	fn := bld.Func()
	bld.Edge(fn.Entry, a, ir.ProbBase)
	bld.Edge(a, b, ir.ProbBase)
	bld.Edge(b, fn.Exit, ir.ProbBase)

	prof := pprofexport.Export([]*ir.Function{fn})

	// Entry, a, b, Exit.
	if len(prof.Sample) != 4 {
		t.Fatalf("got %d samples, want 4", len(prof.Sample))
	}
	if len(prof.Location) != 4 {
		t.Fatalf("got %d locations, want 4", len(prof.Location))
	}

	var total int64
	for _, s := range prof.Sample {
		if len(s.Value) != 1 {
			t.Fatalf("sample Value = %v, want one value", s.Value)
		}
		total += s.Value[0]
	}
	if total != 100 {
		t.Errorf("total sample value = %d, want 100 (25+75)", total)
	}

	if len(prof.SampleType) != 1 || prof.SampleType[0].Type != "samples" {
		t.Errorf("SampleType = %+v", prof.SampleType)
	}
}

func TestExportInlineStackOrdering(t *testing.T) {
	bld := irtest.New("foo", "foo")
	bb := bld.Block()
	bld.Inline(bb, "b.c", 7, ir.Location{File: "a.c", Line: 42}, ir.Location{File: "b.c", Line: 7})
	fn := bld.Func()
	bld.Edge(fn.Entry, bb, ir.ProbBase)
	bld.Edge(bb, fn.Exit, ir.ProbBase)

	prof := pprofexport.Export([]*ir.Function{fn})

	var lines []profile.Line
	for _, s := range prof.Sample {
		if len(s.Location) == 1 && len(s.Location[0].Line) == 2 {
			lines = s.Location[0].Line
		}
	}
	if lines == nil {
		t.Fatal("no sample located at the inlined statement")
	}
	if lines[0].Line != 7 || lines[0].Function.Filename != "b.c" {
		t.Errorf("innermost line = %+v, want b.c:7", lines[0])
	}
	if lines[1].Line != 42 || lines[1].Function.Filename != "a.c" {
		t.Errorf("outermost line = %+v, want a.c:42", lines[1])
	}
}
