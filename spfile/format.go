// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package spfile reads the on-disk binary sample-profile format: a
// file header locating a string table, a function-header table and a
// profile-data region, per-line frequency records, and inline-callsite
// headers carrying their own inline-stack entries.
package spfile

// MaxStackDepth bounds an inline stack's depth. Reading an entry whose
// declared depth falls outside (0, MaxStackDepth] is a structural
// impossibility the format does not allow.
const MaxStackDepth = 200

// fileHeader is the fixed-size region at offset 0 of a sample file.
// All fields are little-endian.
type fileHeader struct {
	StrTableOffset uint64
	StrTableSize   uint64

	FuncHdrOffset  uint64
	FuncHdrEntSize uint64
	NumFuncHdrs    uint64

	ProfileOffset uint64
	ProfileSize   uint64
}

// funcHeaderEncodedSize is the on-disk size of the fields this reader
// understands. A writer may declare a larger FuncHdrEntSize (forward
// compatibility, same accommodation perf.data makes for attr size);
// any trailing bytes in each entry are simply skipped.
const funcHeaderEncodedSize = 4 + 4 + 8 + 8 + 8 + 8 + 4 + 4 + 8 + 4

// funcHeader is the uniform-size entry used for both top-level
// function headers and inline-callsite headers (field ordering:
// filename_offset, func_name_index, func_profile_offset,
// func_freq_offset, func_inline_hdr_offset, inline_stack_offset,
// func_num_freq_entries, func_num_inline_entries, total_samples,
// inline_depth).
type funcHeader struct {
	FilenameOff  uint32
	FuncNameOff  uint32
	ProfileOff   uint64
	FreqOff      uint64
	InlineHdrOff uint64
	StackOff     uint64
	NumFreq      uint32
	NumInline    uint32
	TotalSamples int64
	Depth        uint32
}

// freqRecordSize is the on-disk size of one per-line frequency record
// (line_num u32, freq i64, num_instr u32).
const freqRecordSize = 4 + 8 + 4

// stackEntrySize is the on-disk size of one inline-stack entry
// (filename_offset u32, line_num u32).
const stackEntrySize = 4 + 4
