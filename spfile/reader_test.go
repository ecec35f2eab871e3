// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spfile_test

import (
	"bytes"
	"testing"

	"github.com/spprof/spprof/spfile"
	"github.com/spprof/spprof/spfile/spfiletest"
)

func TestLoadFlat(t *testing.T) {
	var b spfiletest.Builder
	b.AddFunc("a.c", "foo", []spfiletest.FreqRecord{{Line: 10, Freq: 100, NumInstr: 4}})

	raw, err := spfile.Load(bytes.NewReader(b.Bytes()), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(raw.Funcs) != 1 {
		t.Fatalf("got %d funcs, want 1", len(raw.Funcs))
	}
	f := raw.Funcs[0]
	if f.Filename != "a.c" || f.FuncName != "foo" {
		t.Errorf("got filename=%q func=%q, want a.c/foo", f.Filename, f.FuncName)
	}
	if len(f.FreqRecords) != 1 || f.FreqRecords[0] != (spfile.FreqRecord{Line: 10, Freq: 100, NumInstr: 4}) {
		t.Errorf("got freq records %+v", f.FreqRecords)
	}
	if raw.NumSamples() != 1 {
		t.Errorf("NumSamples() = %d, want 1", raw.NumSamples())
	}
}

func TestLoadInline(t *testing.T) {
	var b spfiletest.Builder
	fi := b.AddFunc("a.c", "foo", nil)
	b.AddInline(fi, "b.c",
		[]spfiletest.StackFrame{{File: "b.c", Line: 7}, {File: "a.c", Line: 42}}, // innermost-first on disk
		[]spfiletest.FreqRecord{{Line: 7, Freq: 500, NumInstr: 5}})

	raw, err := spfile.Load(bytes.NewReader(b.Bytes()), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	f := raw.Funcs[0]
	if len(f.Inlines) != 1 {
		t.Fatalf("got %d inlines, want 1", len(f.Inlines))
	}
	in := f.Inlines[0]
	want := []spfile.StackFrame{{File: "a.c", Line: 42}, {File: "b.c", Line: 7}} // stored outermost-first
	if len(in.Stack) != len(want) || in.Stack[0] != want[0] || in.Stack[1] != want[1] {
		t.Errorf("got stack %+v, want %+v", in.Stack, want)
	}
	if in.FuncName != "foo" {
		t.Errorf("inline FuncName = %q, want foo (enclosing compiland)", in.FuncName)
	}
	if len(in.FreqRecords) != 1 || in.FreqRecords[0].Freq != 500 {
		t.Errorf("got freq records %+v", in.FreqRecords)
	}
}

func TestLoadMultipleFunctions(t *testing.T) {
	var b spfiletest.Builder
	b.AddFunc("a.c", "foo", []spfiletest.FreqRecord{{Line: 1, Freq: 10, NumInstr: 1}})
	b.AddFunc("b.c", "bar", []spfiletest.FreqRecord{{Line: 2, Freq: 20, NumInstr: 2}, {Line: 3, Freq: 30, NumInstr: 3}})

	raw, err := spfile.Load(bytes.NewReader(b.Bytes()), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(raw.Funcs) != 2 {
		t.Fatalf("got %d funcs, want 2", len(raw.Funcs))
	}
	if raw.Funcs[1].FuncName != "bar" || len(raw.Funcs[1].FreqRecords) != 2 {
		t.Errorf("got second func %+v", raw.Funcs[1])
	}
}

func TestLoadShortFileReturnsError(t *testing.T) {
	var messages []string
	diag := spfile.Diag(func(format string, args ...interface{}) {
		messages = append(messages, format)
	})
	_, err := spfile.Load(bytes.NewReader([]byte{1, 2, 3}), diag)
	if err == nil {
		t.Fatal("Load on truncated input: got nil error")
	}
}
