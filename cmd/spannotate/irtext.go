// The sample-profile pass normally runs inside a compiler that
// already has an IR in memory; building that IR is out of scope here.
// This file is spannotate's stand-in front end: a small text format
// for describing a function's basic blocks, statements and edges, so
// the pass can be driven and inspected from the command line without
// a real compiler attached.
package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spprof/spprof/ir"
)

// parseIR reads one or more function descriptions in the form:
//
//	func <name> <asmname>
//	block <id>
//	stmt <file> <line> [<file>:<line> ...]
//	edge <src> <dst> <probability>
//	endfunc
//
// block IDs are local to the function and start at 1; id 0 refers to
// the function's entry block and "exit" refers to its exit block in
// edge statements. Extra fields after stmt's (file, line) pair, if
// any, are an inline stack given outermost-first.
func parseIR(r io.Reader) ([]*ir.Function, error) {
	sc := bufio.NewScanner(r)
	var fns []*ir.Function
	var cur *funcBuilder
	lineNo := 0

	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)

		switch fields[0] {
		case "func":
			if cur != nil {
				return nil, fmt.Errorf("line %d: nested func", lineNo)
			}
			if len(fields) != 3 {
				return nil, fmt.Errorf("line %d: want 'func <name> <asmname>'", lineNo)
			}
			cur = newFuncBuilder(fields[1], fields[2])

		case "endfunc":
			if cur == nil {
				return nil, fmt.Errorf("line %d: endfunc without func", lineNo)
			}
			fns = append(fns, cur.fn)
			cur = nil

		case "block":
			if cur == nil {
				return nil, fmt.Errorf("line %d: block without func", lineNo)
			}
			if len(fields) != 2 {
				return nil, fmt.Errorf("line %d: want 'block <id>'", lineNo)
			}
			id, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("line %d: bad block id: %w", lineNo, err)
			}
			cur.block(id)

		case "stmt":
			if cur == nil || cur.curBlock == nil {
				return nil, fmt.Errorf("line %d: stmt outside a block", lineNo)
			}
			if len(fields) < 3 {
				return nil, fmt.Errorf("line %d: want 'stmt <file> <line> [frame...]'", lineNo)
			}
			ln, err := strconv.Atoi(fields[2])
			if err != nil {
				return nil, fmt.Errorf("line %d: bad line number: %w", lineNo, err)
			}
			frames, err := parseFrames(fields[3:])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			cur.stmt(fields[1], ln, frames)

		case "edge":
			if cur == nil {
				return nil, fmt.Errorf("line %d: edge without func", lineNo)
			}
			if len(fields) != 4 {
				return nil, fmt.Errorf("line %d: want 'edge <src> <dst> <probability>'", lineNo)
			}
			prob, err := strconv.Atoi(fields[3])
			if err != nil {
				return nil, fmt.Errorf("line %d: bad probability: %w", lineNo, err)
			}
			if err := cur.edge(fields[1], fields[2], int32(prob)); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}

		default:
			return nil, fmt.Errorf("line %d: unknown directive %q", lineNo, fields[0])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if cur != nil {
		return nil, fmt.Errorf("unterminated func %q", cur.fn.Name)
	}
	return fns, nil
}

func parseFrames(fields []string) ([]ir.Location, error) {
	frames := make([]ir.Location, len(fields))
	for i, f := range fields {
		parts := strings.SplitN(f, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("bad inline frame %q, want file:line", f)
		}
		ln, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("bad inline frame %q: %w", f, err)
		}
		frames[i] = ir.Location{File: parts[0], Line: int32(ln)}
	}
	return frames, nil
}

type funcBuilder struct {
	fn       *ir.Function
	blocks   map[int]*ir.BasicBlock
	curBlock *ir.BasicBlock
}

func newFuncBuilder(name, asmName string) *funcBuilder {
	fn := &ir.Function{
		Name:    name,
		AsmName: asmName,
		Entry:   &ir.BasicBlock{ID: 0},
		Exit:    &ir.BasicBlock{},
	}
	return &funcBuilder{fn: fn, blocks: map[int]*ir.BasicBlock{0: fn.Entry}}
}

func (b *funcBuilder) block(id int) {
	bb := &ir.BasicBlock{ID: id}
	b.blocks[id] = bb
	b.fn.Blocks = append(b.fn.Blocks, bb)
	b.curBlock = bb
}

func (b *funcBuilder) stmt(file string, line int, frames []ir.Location) {
	st := ir.Statement{Loc: ir.Location{File: file, Line: int32(line)}}
	if len(frames) > 0 {
		var blk *ir.LexicalBlock
		for i := 0; i < len(frames); i++ {
			blk = &ir.LexicalBlock{Loc: frames[i], Enclosing: blk}
		}
		st.Block = &ir.LexicalBlock{Enclosing: blk}
	}
	b.curBlock.Statements = append(b.curBlock.Statements, st)
}

func (b *funcBuilder) edge(srcTok, dstTok string, prob int32) error {
	src, err := b.resolve(srcTok)
	if err != nil {
		return err
	}
	dst, err := b.resolve(dstTok)
	if err != nil {
		return err
	}
	ir.AddEdge(src, dst, prob)
	return nil
}

func (b *funcBuilder) resolve(tok string) (*ir.BasicBlock, error) {
	if tok == "entry" {
		return b.fn.Entry, nil
	}
	if tok == "exit" {
		return b.fn.Exit, nil
	}
	id, err := strconv.Atoi(tok)
	if err != nil {
		return nil, fmt.Errorf("bad block reference %q", tok)
	}
	bb, ok := b.blocks[id]
	if !ok {
		return nil, fmt.Errorf("reference to undeclared block %d", id)
	}
	return bb, nil
}
