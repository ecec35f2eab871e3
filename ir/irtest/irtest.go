// Package irtest builds small, synthetic ir.Function values for use
// as test fixtures in annotate, cfg and session. A real compiler IR
// and its traversal are out of scope for this repo; this is the
// minimal stand-in the rest of the test suite shares.
package irtest

import "github.com/spprof/spprof/ir"

// Builder assembles a function one block at a time.
type Builder struct {
	fn *ir.Function
}

// New starts building a function with the given name and assembler
// name, with an Entry and Exit block already in place.
func New(name, asmName string) *Builder {
	return &Builder{fn: &ir.Function{
		Name:    name,
		AsmName: asmName,
		Entry:   &ir.BasicBlock{ID: 0},
		Exit:    &ir.BasicBlock{},
	}}
}

// Stmt is a (file, line) statement location; Line == -1 means
// unknown.
type Stmt struct {
	File string
	Line int
}

// Block appends a new basic block with the given statements and
// returns it so the caller can wire edges to/from it.
func (b *Builder) Block(stmts ...Stmt) *ir.BasicBlock {
	bb := &ir.BasicBlock{ID: len(b.fn.Blocks) + 1}
	for _, s := range stmts {
		bb.Statements = append(bb.Statements, ir.Statement{
			Loc: ir.Location{File: s.File, Line: int32(s.Line)},
		})
	}
	b.fn.Blocks = append(b.fn.Blocks, bb)
	return bb
}

// Inline appends a statement with an inline stack to bb. frames is
// outermost-first, the statement's own location is (file, line).
func (b *Builder) Inline(bb *ir.BasicBlock, file string, line int, frames ...ir.Location) {
	// Chain innermost frame closest to the statement, outermost
	// frame nearest the root, so inlinestack.Extract's
	// innermost-to-outermost walk (which it then reverses) yields
	// frames back in the outermost-first order given here.
	var block *ir.LexicalBlock
	for i := 0; i < len(frames); i++ {
		block = &ir.LexicalBlock{Loc: frames[i], Enclosing: block}
	}
	// One extra wrapper so Extract's "start at stmt.Block.Enclosing"
	// rule walks through every supplied frame.
	inner := &ir.LexicalBlock{Loc: ir.Location{}, Enclosing: block}
	bb.Statements = append(bb.Statements, ir.Statement{
		Loc:   ir.Location{File: file, Line: int32(line)},
		Block: inner,
	})
}

// Edge wires src -> dst with the given probability (out of
// ir.ProbBase).
func (b *Builder) Edge(src, dst *ir.BasicBlock, probability int32) *ir.Edge {
	return ir.AddEdge(src, dst, probability)
}

// Func returns the built function. NumBasicBlocks() reflects whatever
// blocks were added via Block.
func (b *Builder) Func() *ir.Function { return b.fn }
