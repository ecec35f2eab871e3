// Package annotate implements the block annotator: for each basic
// block, it walks IR statements, reconstructs their inline stacks,
// looks them up in the sample index, and derives a per-block count as
// the ratio of accumulated sampled frequency to accumulated sampled
// instruction count.
package annotate

import (
	"github.com/aclements/go-moremath/vec"

	"github.com/spprof/spprof/inlinestack"
	"github.com/spprof/spprof/ir"
	"github.com/spprof/spprof/spfile"
	"github.com/spprof/spprof/spindex"
)

// Annotator attributes execution counts from idx to basic blocks.
type Annotator struct {
	Index *spindex.Index
}

// New returns an Annotator backed by idx.
func New(idx *spindex.Index) *Annotator {
	return &Annotator{Index: idx}
}

// Stats summarizes one Annotate call, beyond the bb.Count it sets:
// the summed frequency and instruction count of the credited entries
// and the largest single frequency among them. Callers treat a block
// with SumInstr > 0 as annotated.
type Stats struct {
	SumFreq  int64
	SumInstr int64
	MaxFreq  int64
}

// Annotate sets bb.Count from fn's sample data. It is idempotent: it
// never mutates an index entry, and running it twice on the same
// block produces the same count (dedup is keyed on the index entries
// credited, not on any per-block running state).
func (a *Annotator) Annotate(fn *ir.Function, bb *ir.BasicBlock) Stats {
	// Sized to match the bounded dedup sets of the original hash-table
	// design (capacity 500); Go's map grows past this without issue, so
	// unlike a fixed-size hash table, a block with more than 500
	// distinct samples simply isn't truncated (see DESIGN.md).
	seenFlat := make(map[*spindex.FlatEntry]struct{}, 500)
	seenInline := make(map[*spindex.InlineEntry]struct{}, 500)

	// Credited entries accumulate here and are reduced with vec.Sum
	// below, rather than summed as each statement is walked, so the
	// per-block totals are a single vector reduction over exactly the
	// (deduplicated) entries credited to this block.
	var freqs, instrs []float64
	var stats Stats
	credit := func(e *spindex.FlatEntry, eInline *spindex.InlineEntry) {
		var freq int64
		var numInstr uint32
		if e != nil {
			freq, numInstr = e.Freq, e.NumInstr
		} else {
			freq, numInstr = eInline.Freq, eInline.NumInstr
		}
		freqs = append(freqs, float64(freq))
		instrs = append(instrs, float64(numInstr))
		if freq > stats.MaxFreq {
			stats.MaxFreq = freq
		}
	}

	for i := range bb.Statements {
		st := &bb.Statements[i]
		if st.Loc.Line == -1 {
			continue
		}

		stack := inlinestack.Extract(st)
		if len(stack) >= spfile.MaxStackDepth {
			panic("annotate: inline stack depth exceeds spfile.MaxStackDepth")
		}

		if len(stack) > 0 {
			e := a.Index.FindInline(stack, st.Loc.File, uint32(st.Loc.Line), fn.AsmName)
			if e == nil {
				continue
			}
			if _, ok := seenInline[e]; ok {
				continue
			}
			seenInline[e] = struct{}{}
			credit(nil, e)
			continue
		}

		e := a.Index.FindFlat(st.Loc.File, uint32(st.Loc.Line), fn.AsmName)
		if e == nil {
			continue
		}
		if _, ok := seenFlat[e]; ok {
			continue
		}
		seenFlat[e] = struct{}{}
		credit(e, nil)
	}

	stats.SumFreq = int64(vec.Sum(freqs))
	stats.SumInstr = int64(vec.Sum(instrs))

	if stats.SumInstr > 0 {
		bb.Count = stats.SumFreq / stats.SumInstr
	} else {
		bb.Count = 0
	}
	return stats
}
