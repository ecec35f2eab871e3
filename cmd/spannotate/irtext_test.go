package main

import (
	"os"
	"strings"
	"testing"

	"github.com/spprof/spprof/ir"
)

func TestParseIRDiamond(t *testing.T) {
	f, err := os.Open("testdata/diamond.ir")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	fns, err := parseIR(f)
	if err != nil {
		t.Fatalf("parseIR: %v", err)
	}
	if len(fns) != 1 {
		t.Fatalf("got %d functions, want 1", len(fns))
	}
	fn := fns[0]
	if fn.Name != "foo" || fn.AsmName != "foo" {
		t.Errorf("fn = %+v", fn)
	}
	if len(fn.Blocks) != 3 {
		t.Fatalf("got %d blocks, want 3", len(fn.Blocks))
	}
	if len(fn.Entry.Out) != 1 || fn.Entry.Out[0].Probability != ir.ProbBase {
		t.Errorf("Entry.Out = %+v", fn.Entry.Out)
	}
	if len(fn.Exit.In) != 2 {
		t.Errorf("Exit.In = %+v, want 2 edges", fn.Exit.In)
	}
}

func TestParseIRInlineFrames(t *testing.T) {
	src := `
func foo foo
block 1
stmt b.c 7 a.c:42 b.c:7
edge entry 1 10000
edge 1 exit 10000
endfunc
`
	fns, err := parseIR(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parseIR: %v", err)
	}
	st := fns[0].Blocks[0].Statements[0]
	if st.Block == nil {
		t.Fatal("statement has no inline block chain")
	}
}

func TestParseIRRejectsUnknownBlock(t *testing.T) {
	src := `
func foo foo
block 1
edge entry 5 10000
endfunc
`
	if _, err := parseIR(strings.NewReader(src)); err == nil {
		t.Fatal("parseIR: got nil error for reference to undeclared block")
	}
}
