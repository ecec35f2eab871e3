// Package spindex implements the two-level sample index: a flat
// store keyed by (file, line, func) and an inline store keyed by
// (inline_stack, file, line, func), built once from a spfile.Raw and
// consulted read-only for the rest of the compilation unit.
package spindex

import (
	"strings"

	"github.com/spprof/spprof/ir"
	"github.com/spprof/spprof/spfile"
)

// FlatEntry is one flat-store record: a sampled line with no
// inlining history.
type FlatEntry struct {
	File, Func string
	Line       uint32
	Freq       int64
	NumInstr   uint32
}

// InlineEntry is one inline-store record. Two kinds share this type:
// line entries (Line > 0, a per-line frequency inside an inlined
// body) and callsite-total entries (Line == 0, Freq == the total
// samples attributed to the whole inlined invocation).
//
// Every entry produced from one inline-callsite header shares the
// same backing Stack slice; IsFirst marks the one entry that "owns"
// it for bookkeeping purposes. This mirrors a release-once invariant
// from a design with manual memory management; Go has no manual free,
// so IsFirst is kept only for diagnostics/tests, not because anything
// needs freeing.
type InlineEntry struct {
	Stack    []ir.Location // outermost -> innermost
	File     string
	Func     string
	Line     uint32
	Freq     int64
	NumInstr uint32
	IsFirst  bool
}

// Index is the read-only, process-wide sample index. The zero Index
// is ready to use.
type Index struct {
	flat   map[flatKey]*FlatEntry
	inline map[string]*InlineEntry

	// MaxCount is the maximum Freq across every entry inserted
	// into either store.
	MaxCount int64

	// Dropped counts duplicate-key insertions rejected during
	// Build (first insertion wins).
	Dropped int
}

type flatKey struct {
	file, fn string
	line     uint32
}

// New returns an empty Index.
func New() *Index {
	return &Index{
		flat:   make(map[flatKey]*FlatEntry),
		inline: make(map[string]*InlineEntry),
	}
}

// Build inserts every record in raw into the index. diag receives one
// message per duplicate key encountered; duplicates are dropped, not
// overwritten. Build returns the number of entries inserted into
// either store, callsite-total entries included; duplicates and flat
// records with line 0 are not counted.
func (idx *Index) Build(raw *spfile.Raw, diag spfile.Diag) int {
	inserted := 0
	for _, f := range raw.Funcs {
		for _, rec := range f.FreqRecords {
			if rec.Line == 0 {
				continue // invariant: line > 0 enforced at insert
			}
			e := &FlatEntry{File: f.Filename, Func: f.FuncName, Line: rec.Line, Freq: rec.Freq, NumInstr: rec.NumInstr}
			if idx.insertFlat(e) {
				inserted++
			} else {
				idx.Dropped++
				diag.Printf("Duplicate entry: %s:%d func_name:%s", e.File, e.Line, e.Func)
			}
		}

		for _, in := range f.Inlines {
			stack := make([]ir.Location, len(in.Stack))
			for i, fr := range in.Stack {
				stack[i] = ir.Location{File: fr.File, Line: int32(fr.Line)}
			}
			first := true
			for _, rec := range in.FreqRecords {
				e := &InlineEntry{Stack: stack, File: in.Filename, Func: in.FuncName, Line: rec.Line, Freq: rec.Freq, NumInstr: rec.NumInstr}
				if idx.insertInline(e) {
					inserted++
					if first {
						e.IsFirst = true
						first = false
					}
				} else {
					idx.Dropped++
					diag.Printf("Duplicate entry: %s:%d func_name:%s", e.File, e.Line, e.Func)
				}
			}
			// Callsite-total entry, line == 0.
			total := &InlineEntry{Stack: stack, File: in.Filename, Func: in.FuncName, Line: 0, Freq: in.TotalSamples}
			if idx.insertInline(total) {
				inserted++
				if first {
					total.IsFirst = true
				}
			} else {
				idx.Dropped++
				diag.Printf("Duplicate entry: %s:%d func_name:%s", total.File, total.Line, total.Func)
			}
		}
	}
	return inserted
}

func (idx *Index) insertFlat(e *FlatEntry) bool {
	k := flatKey{file: e.File, fn: e.Func, line: e.Line}
	if _, ok := idx.flat[k]; ok {
		return false
	}
	idx.flat[k] = e
	if e.Freq > idx.MaxCount {
		idx.MaxCount = e.Freq
	}
	return true
}

func (idx *Index) insertInline(e *InlineEntry) bool {
	k := inlineKeyString(e.Stack, e.File, e.Line, e.Func)
	if _, ok := idx.inline[k]; ok {
		return false
	}
	idx.inline[k] = e
	if e.Freq > idx.MaxCount {
		idx.MaxCount = e.Freq
	}
	return true
}

// FindFlat looks up a sample with no inlining history.
func (idx *Index) FindFlat(file string, line uint32, fn string) *FlatEntry {
	if line == 0 {
		return nil
	}
	return idx.flat[flatKey{file: file, fn: fn, line: line}]
}

// FindInline looks up a sample attributed through the given inline
// stack (outermost -> innermost). Passing line == 0 finds the
// callsite-total entry for an inlined invocation.
func (idx *Index) FindInline(stack []ir.Location, file string, line uint32, fn string) *InlineEntry {
	return idx.inline[inlineKeyString(stack, file, line, fn)]
}

// inlineKeyString renders a structural inline-store key as a string
// usable as a Go map key. Filenames and function names are read from
// a NUL-terminated string table, so they can never contain a NUL
// byte; using NUL as a field separator here is safe and
// collision-free.
func inlineKeyString(stack []ir.Location, file string, line uint32, fn string) string {
	var b strings.Builder
	for _, f := range stack {
		b.WriteString(f.File)
		b.WriteByte(0)
		writeUint32(&b, uint32(f.Line))
		b.WriteByte(0)
	}
	b.WriteByte('|')
	b.WriteString(file)
	b.WriteByte(0)
	writeUint32(&b, line)
	b.WriteByte(0)
	b.WriteString(fn)
	return b.String()
}

func writeUint32(b *strings.Builder, v uint32) {
	var buf [4]byte
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v >> 16)
	buf[3] = byte(v >> 24)
	b.Write(buf[:])
}
