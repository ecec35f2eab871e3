// Package inlinestack reconstructs the ordered inline stack for an IR
// statement: the chain of (file, line) call sites that describe how
// the statement came to exist after inlining.
package inlinestack

import "github.com/spprof/spprof/ir"

// Extract returns stmt's inline stack, outermost frame first, so that
// it compares directly (by structural equality) against the
// outermost-first stacks spindex stores. It collects frames
// innermost-first as it walks, then reverses them.
//
// The walk starts at the statement's innermost block's enclosing
// block — the statement's own block contributes nothing, since its
// Loc is the lookup target, not a stack frame — and proceeds upward,
// skipping any block whose location is unset or identical to the one
// just emitted. A zero location is always skipped; this implementation
// deliberately does not reproduce an operator-precedence bug a prior
// implementation of this algorithm was reported to have (see
// DESIGN.md).
func Extract(stmt *ir.Statement) []ir.Location {
	if stmt.Block == nil {
		return nil
	}

	var frames []ir.Location // innermost-first as walked
	var prev ir.Location
	havePrev := false

	for blk := stmt.Block.Enclosing; blk != nil; blk = blk.Enclosing {
		loc := blk.Loc
		if loc.Line <= 0 {
			continue
		}
		if havePrev && loc == prev {
			continue
		}
		frames = append(frames, loc)
		prev = loc
		havePrev = true
	}

	reverse(frames)
	return frames
}

// TotalCountKey returns the (stack, file, line) that looks up the
// callsite-total entry for the inlined invocation stmt's statement
// belongs to: the statement's own location is prepended to Extract's
// innermost-first walk as the innermost frame (so it is the last
// element of the returned outermost-first stack), with the lookup
// line forced to 0 to match the callsite-total entry spindex.Build
// inserted.
func TotalCountKey(stmt *ir.Statement) (stack []ir.Location, line uint32) {
	if stmt.Block == nil {
		return nil, 0
	}
	inner := ir.Location{File: stmt.Loc.File, Line: stmt.Loc.Line}
	rest := Extract(stmt)
	stack = append(rest, inner)
	return stack, 0
}

func reverse(s []ir.Location) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
