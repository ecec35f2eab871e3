package inlinestack_test

import (
	"reflect"
	"testing"

	"github.com/spprof/spprof/inlinestack"
	"github.com/spprof/spprof/ir"
)

func TestExtractNilBlock(t *testing.T) {
	stmt := &ir.Statement{Loc: ir.Location{File: "a.c", Line: 5}}
	if got := inlinestack.Extract(stmt); got != nil {
		t.Errorf("Extract(no block) = %v, want nil", got)
	}
}

func TestExtractOutermostFirst(t *testing.T) {
	// callee.c:20 was inlined into caller.c:10, which was itself
	// inlined into main.c:3. The statement's own block is the
	// innermost one and contributes nothing; its enclosing chain
	// should come back outermost-first.
	outer := &ir.LexicalBlock{Loc: ir.Location{File: "main.c", Line: 3}}
	mid := &ir.LexicalBlock{Loc: ir.Location{File: "caller.c", Line: 10}, Enclosing: outer}
	inner := &ir.LexicalBlock{Loc: ir.Location{File: "callee.c", Line: 20}, Enclosing: mid}
	stmt := &ir.Statement{Loc: ir.Location{File: "callee.c", Line: 21}, Block: inner}

	want := []ir.Location{
		{File: "main.c", Line: 3},
		{File: "caller.c", Line: 10},
	}
	if got := inlinestack.Extract(stmt); !reflect.DeepEqual(got, want) {
		t.Errorf("Extract() = %v, want %v", got, want)
	}
}

func TestExtractSkipsZeroAndUnsetLocations(t *testing.T) {
	// A block with Line <= 0 is a lexical-scope marker, not an inline
	// frame, and must not appear in the stack even though it sits
	// between two real frames.
	outer := &ir.LexicalBlock{Loc: ir.Location{File: "main.c", Line: 3}}
	marker := &ir.LexicalBlock{Loc: ir.Location{File: "main.c", Line: 0}, Enclosing: outer}
	unknown := &ir.LexicalBlock{Loc: ir.Location{Line: -1}, Enclosing: marker}
	inner := &ir.LexicalBlock{Loc: ir.Location{File: "callee.c", Line: 20}, Enclosing: unknown}
	stmt := &ir.Statement{Block: inner}

	want := []ir.Location{{File: "main.c", Line: 3}}
	if got := inlinestack.Extract(stmt); !reflect.DeepEqual(got, want) {
		t.Errorf("Extract() = %v, want %v", got, want)
	}
}

func TestExtractCollapsesAdjacentDuplicates(t *testing.T) {
	// Two enclosing blocks reporting the same call site back to back
	// (e.g. a pass that re-wrapped a block without moving it)
	// collapse into a single frame rather than repeating it.
	outer := &ir.LexicalBlock{Loc: ir.Location{File: "main.c", Line: 3}}
	dup := &ir.LexicalBlock{Loc: ir.Location{File: "main.c", Line: 3}, Enclosing: outer}
	inner := &ir.LexicalBlock{Loc: ir.Location{File: "callee.c", Line: 20}, Enclosing: dup}
	stmt := &ir.Statement{Block: inner}

	want := []ir.Location{{File: "main.c", Line: 3}}
	if got := inlinestack.Extract(stmt); !reflect.DeepEqual(got, want) {
		t.Errorf("Extract() = %v, want %v", got, want)
	}

	// Non-adjacent repeats of the same location are not collapsed,
	// only consecutive ones.
	again := &ir.LexicalBlock{Loc: ir.Location{File: "main.c", Line: 3}, Enclosing: dup}
	between := &ir.LexicalBlock{Loc: ir.Location{File: "helper.c", Line: 7}, Enclosing: again}
	inner2 := &ir.LexicalBlock{Loc: ir.Location{File: "callee.c", Line: 20}, Enclosing: between}
	stmt2 := &ir.Statement{Block: inner2}
	want2 := []ir.Location{
		{File: "main.c", Line: 3},
		{File: "helper.c", Line: 7},
	}
	if got := inlinestack.Extract(stmt2); !reflect.DeepEqual(got, want2) {
		t.Errorf("Extract() = %v, want %v", got, want2)
	}
}

func TestTotalCountKeyNilBlock(t *testing.T) {
	stmt := &ir.Statement{Loc: ir.Location{File: "a.c", Line: 5}}
	stack, line := inlinestack.TotalCountKey(stmt)
	if stack != nil || line != 0 {
		t.Errorf("TotalCountKey(no block) = (%v, %d), want (nil, 0)", stack, line)
	}
}

func TestTotalCountKeyPrependsOwnLocation(t *testing.T) {
	outer := &ir.LexicalBlock{Loc: ir.Location{File: "main.c", Line: 3}}
	inner := &ir.LexicalBlock{Loc: ir.Location{File: "callee.c", Line: 20}, Enclosing: outer}
	stmt := &ir.Statement{Loc: ir.Location{File: "callee.c", Line: 21}, Block: inner}

	wantStack := []ir.Location{
		{File: "main.c", Line: 3},
		{File: "callee.c", Line: 21},
	}
	stack, line := inlinestack.TotalCountKey(stmt)
	if !reflect.DeepEqual(stack, wantStack) {
		t.Errorf("TotalCountKey() stack = %v, want %v", stack, wantStack)
	}
	if line != 0 {
		t.Errorf("TotalCountKey() line = %d, want 0", line)
	}
}
