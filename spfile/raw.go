// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spfile

// FreqRecord is one sampled source line: the line number, the
// sampled frequency at that line, and the number of sampled
// instructions that contributed to it.
type FreqRecord struct {
	Line     uint32
	Freq     int64
	NumInstr uint32
}

// StackFrame is one inline-stack frame, outermost-to-innermost order
// (reversed from the innermost-first order the entries are written
// in, so that a caller can compare it directly against the ordered
// stack inlinestack.Extract produces).
type StackFrame struct {
	File string
	Line uint32
}

// RawFunc is everything read for one top-level function header.
type RawFunc struct {
	Filename     string
	FuncName     string
	TotalSamples int64
	FreqRecords  []FreqRecord
	Inlines      []RawInline
}

// RawInline is everything read for one inline-callsite header nested
// under a RawFunc. Filename is the source file of the inlined body
// (per-line records under it carry only a line number); FuncName, per
// the on-disk shape, is the enclosing top-level function's name, not
// the inlined callee's — see DESIGN.md for why callers must key
// inline-store lookups on the enclosing compiland's assembler name.
type RawInline struct {
	Filename     string
	FuncName     string
	Stack        []StackFrame // outermost -> innermost
	TotalSamples int64
	FreqRecords  []FreqRecord
}

// Raw is the un-indexed result of reading one sample file. Building a
// spindex.Index from it is a separate step, matching the separation
// between perffile.File (raw records) and perfsession.Session (an
// indexed view over them).
type Raw struct {
	Funcs []RawFunc
}

// NumSamples is the number of per-line frequency records read across
// every function and inline callsite. (session's "no data" disable
// check counts the entries spindex.Build inserts instead.)
func (r *Raw) NumSamples() int {
	n := 0
	for _, f := range r.Funcs {
		n += len(f.FreqRecords)
		for _, in := range f.Inlines {
			n += len(in.FreqRecords)
		}
	}
	return n
}
