// Package cfg implements the CFG smoother: it seeds edge counts from
// block counts and static edge probabilities, bridges the entry and
// exit blocks, invokes a flow-consistency pass over the graph, and
// converts the result to relative frequencies. It also decides
// whether a function's freshly-annotated profile is adopted or
// discarded in favor of the pre-existing static estimate.
package cfg

import (
	"github.com/aclements/go-moremath/vec"

	"github.com/spprof/spprof/ir"
)

// FreqBase is the fixed-point denominator CountsToFreqs scales
// relative frequencies into, matching ir.ProbBase's convention for
// edge probabilities.
const FreqBase = ir.ProbBase

// ProbabilityEstimator assigns static edge probabilities to a
// function's CFG. Spec.md places the real estimator
// (estimate_probability) out of scope as a pre-existing collaborator;
// Estimator is the seam a compiler driver plugs that collaborator
// into. Uniform is used when nothing more specific is wired in.
type ProbabilityEstimator interface {
	Estimate(fn *ir.Function)
}

// Uniform assigns equal probability to every outgoing edge of each
// block, the simplest static estimate and the fallback used when
// static probabilities have not been estimated yet.
type Uniform struct{}

func (Uniform) Estimate(fn *ir.Function) {
	estimateUniform(fn.Entry)
	for _, b := range fn.Blocks {
		estimateUniform(b)
	}
}

func estimateUniform(b *ir.BasicBlock) {
	if len(b.Out) == 0 {
		return
	}
	share := int32(ir.ProbBase / len(b.Out))
	remainder := int32(ir.ProbBase) - share*int32(len(b.Out))
	for i, e := range b.Out {
		e.Probability = share
		if i == 0 {
			e.Probability += remainder
		}
	}
}

// FlowSmoother adjusts edge counts to restore flow consistency
// (sum(in) == count == sum(out) at every non-terminal block) with
// minimal total reweighting. A full minimum-cost-flow solver is a
// pre-existing collaborator out of scope here; MCF below is a compact
// stand-in sized for compiler CFGs, not a full network-simplex solver.
type FlowSmoother interface {
	Smooth(fn *ir.Function) error
}

// Smoother runs the full CFG-smoothing pipeline.
type Smoother struct {
	Estimator ProbabilityEstimator
	Flow      FlowSmoother
}

// New returns a Smoother using the default estimator and flow solver.
func New() *Smoother {
	return &Smoother{Estimator: Uniform{}, Flow: MCF{}}
}

// Smooth seeds edge counts, bridges entry/exit, adds fake exit edges
// for no-return paths, runs the flow solver, removes the fake edges,
// and converts counts to relative frequencies. It does not decide
// adoption; call Adopt with the number of annotated blocks to do
// that.
func (s *Smoother) Smooth(fn *ir.Function) error {
	Compact(fn)
	seedEdges(fn)
	bridgeEntryExit(fn)
	fakes := addFakeExitEdges(fn)
	if err := s.Flow.Smooth(fn); err != nil {
		return err
	}
	removeFakeEdges(fn, fakes)
	CountsToFreqs(fn)
	return nil
}

// Compact renumbers fn's blocks to remove ID gaps. The real compiler
// CFG does this as part of a general-purpose CFG utility out of scope
// here; this is just a reassignment over the slice annotate already
// populated in order.
func Compact(fn *ir.Function) {
	for i, b := range fn.Blocks {
		b.ID = i + 1 // 0 reserved for Entry
	}
	if fn.Entry != nil {
		fn.Entry.ID = 0
	}
	if fn.Exit != nil {
		fn.Exit.ID = len(fn.Blocks) + 1
	}
}

// seedEdges runs the seeding step twice: for every non-entry block,
// split its count across outgoing edges by static probability, then
// re-sum the block's count from those edges. Two passes let
// straight-line count propagation settle without a third pass (see
// DESIGN.md's note on running this step twice rather than once).
func seedEdges(fn *ir.Function) {
	for pass := 0; pass < 2; pass++ {
		for _, b := range fn.Blocks {
			seedOne(b)
		}
	}
}

func seedOne(b *ir.BasicBlock) {
	if len(b.Out) == 0 {
		return
	}
	counts := make([]float64, len(b.Out))
	for i, e := range b.Out {
		e.Count = b.Count * int64(e.Probability) / ir.ProbBase
		counts[i] = float64(e.Count)
	}
	b.Count = int64(vec.Sum(counts))
}

// bridgeEntryExit bridges the entry and exit blocks: each entry
// successor's edge count becomes its destination's count, summed
// into Entry.Count; Exit.Count is the sum of its predecessor edges.
func bridgeEntryExit(fn *ir.Function) {
	if fn.Entry == nil || fn.Exit == nil {
		return
	}
	var entrySum int64
	for _, e := range fn.Entry.Out {
		e.Count = e.Dst.Count
		entrySum += e.Count
	}
	fn.Entry.Count = entrySum

	var exitSum int64
	for _, e := range fn.Exit.In {
		exitSum += e.Count
	}
	fn.Exit.Count = exitSum
}

// addFakeExitEdges gives every block with no successors (a no-return
// path) a zero-probability edge to Exit, so the flow solver always
// sees a connected sink. It returns the edges added, for
// removeFakeEdges to strip afterward.
func addFakeExitEdges(fn *ir.Function) []*ir.Edge {
	if fn.Exit == nil {
		return nil
	}
	var fakes []*ir.Edge
	for _, b := range fn.Blocks {
		if len(b.Out) == 0 {
			e := ir.AddEdge(b, fn.Exit, 0)
			e.Fake = true
			fakes = append(fakes, e)
		}
	}
	return fakes
}

func removeFakeEdges(fn *ir.Function, fakes []*ir.Edge) {
	for _, e := range fakes {
		e.Src.Out = removeEdge(e.Src.Out, e)
		e.Dst.In = removeEdge(e.Dst.In, e)
	}
}

func removeEdge(edges []*ir.Edge, victim *ir.Edge) []*ir.Edge {
	out := edges[:0]
	for _, e := range edges {
		if e != victim {
			out = append(out, e)
		}
	}
	return out
}

// CountsToFreqs converts absolute edge counts into relative
// frequencies out of FreqBase, scaled against the entry count. Spec.md
// places the real implementation (counts_to_freqs) out of scope as a
// pre-existing collaborator.
func CountsToFreqs(fn *ir.Function) {
	if fn.Entry == nil || fn.Entry.Count == 0 {
		return
	}
	scale := func(count int64) int64 {
		return count * FreqBase / fn.Entry.Count
	}
	for _, e := range fn.Entry.Out {
		e.Freq = scale(e.Count)
	}
	for _, b := range fn.Blocks {
		for _, e := range b.Out {
			e.Freq = scale(e.Count)
		}
	}
}

// Adopt applies the adoption criterion: the smoothed
// profile is kept only if the function has more than one annotated
// block, or exactly one annotated block in a small function
// (n_basic_blocks < 5). Otherwise every block count is zeroed,
// preserving the pre-existing static estimate, and fn.Status is left
// unchanged.
func Adopt(fn *ir.Function, annotatedBlocks int) bool {
	small := fn.NumBasicBlocks() < 5
	if annotatedBlocks > 1 || (annotatedBlocks == 1 && small) {
		fn.Status = ir.ProfileRead
		return true
	}
	for _, b := range fn.Blocks {
		b.Count = 0
	}
	if fn.Entry != nil {
		fn.Entry.Count = 0
	}
	if fn.Exit != nil {
		fn.Exit.Count = 0
	}
	for _, b := range fn.Blocks {
		for _, e := range b.Out {
			e.Count, e.Freq = 0, 0
		}
	}
	return false
}
