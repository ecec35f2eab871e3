// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Diag receives user-visible diagnostic strings ("Error reading ...",
// "Duplicate entry: ..."). A nil Diag discards them.
type Diag func(format string, args ...interface{})

// Printf calls d with the given message, or does nothing if d is nil.
func (d Diag) Printf(format string, args ...interface{}) {
	if d != nil {
		d(format, args...)
	}
}

// Load reads a sample file from r. It returns the records
// successfully read even when an error is encountered partway
// through a function: a read failure abandons the current function
// and the caller continues with whatever was loaded so far.
func Load(r io.ReaderAt, diag Diag) (*Raw, error) {
	var hdr fileHeader
	hs := io.NewSectionReader(r, 0, int64(binary.Size(&hdr)))
	if err := binary.Read(hs, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("reading file header: %w", err)
	}

	strTable := make([]byte, hdr.StrTableSize)
	if len(strTable) > 0 {
		if _, err := r.ReadAt(strTable, int64(hdr.StrTableOffset)); err != nil {
			return nil, fmt.Errorf("reading string table: %w", err)
		}
	}

	raw := &Raw{Funcs: make([]RawFunc, 0, hdr.NumFuncHdrs)}

	str := func(off uint32) string {
		if int(off) >= len(strTable) {
			return ""
		}
		end := bytes.IndexByte(strTable[off:], 0)
		if end < 0 {
			return string(strTable[off:])
		}
		return string(strTable[off : off+uint32(end)])
	}

	readFuncHeader := func(off int64) (funcHeader, error) {
		buf := make([]byte, hdr.FuncHdrEntSize)
		if _, err := r.ReadAt(buf, off); err != nil {
			return funcHeader{}, err
		}
		if len(buf) < funcHeaderEncodedSize {
			return funcHeader{}, fmt.Errorf("short function header entry (%d bytes)", len(buf))
		}
		bd := &bufDecoder{buf}
		var fh funcHeader
		fh.FilenameOff = bd.u32()
		fh.FuncNameOff = bd.u32()
		fh.ProfileOff = bd.u64()
		fh.FreqOff = bd.u64()
		fh.InlineHdrOff = bd.u64()
		fh.StackOff = bd.u64()
		fh.NumFreq = bd.u32()
		fh.NumInline = bd.u32()
		fh.TotalSamples = bd.i64()
		fh.Depth = bd.u32()
		return fh, nil
	}

	readFreqRecords := func(off int64, n uint32) ([]FreqRecord, error) {
		buf := make([]byte, int(n)*freqRecordSize)
		if _, err := r.ReadAt(buf, off); err != nil {
			return nil, err
		}
		recs := make([]FreqRecord, n)
		bd := &bufDecoder{buf}
		for i := range recs {
			recs[i].Line = bd.u32()
			recs[i].Freq = bd.i64()
			recs[i].NumInstr = bd.u32()
		}
		return recs, nil
	}

	readStack := func(off int64, depth uint32) ([]StackFrame, error) {
		if depth == 0 || depth > MaxStackDepth {
			return nil, fmt.Errorf("inline stack depth %d out of bounds (0, %d]", depth, MaxStackDepth)
		}
		buf := make([]byte, int(depth)*stackEntrySize)
		if _, err := r.ReadAt(buf, off); err != nil {
			return nil, err
		}
		// On-disk order is innermost-first; store outermost-first.
		frames := make([]StackFrame, depth)
		bd := &bufDecoder{buf}
		for i := uint32(0); i < depth; i++ {
			fileOff := bd.u32()
			line := bd.u32()
			frames[depth-1-i] = StackFrame{File: str(fileOff), Line: line}
		}
		return frames, nil
	}

	for i := uint64(0); i < hdr.NumFuncHdrs; i++ {
		fh, err := readFuncHeader(int64(hdr.FuncHdrOffset) + int64(i)*int64(hdr.FuncHdrEntSize))
		if err != nil {
			diag.Printf("Error reading function header %d: %v", i, err)
			break
		}

		rf := RawFunc{
			Filename:     str(fh.FilenameOff),
			FuncName:     str(fh.FuncNameOff),
			TotalSamples: fh.TotalSamples,
		}

		if fh.NumFreq > 0 {
			recs, err := readFreqRecords(int64(hdr.ProfileOffset)+int64(fh.ProfileOff)+int64(fh.FreqOff), fh.NumFreq)
			if err != nil {
				diag.Printf("Error reading frequency records for %s: %v", rf.FuncName, err)
			} else {
				rf.FreqRecords = recs
			}
		}

		if fh.NumInline > 0 {
			inlines, err := readInlineFunction(&fh, hdr, i, r, str, readFreqRecords, readStack, diag)
			rf.Inlines = inlines
			if err != nil {
				diag.Printf("read_inline_function(): %v", err)
			}
		}

		raw.Funcs = append(raw.Funcs, rf)
	}

	return raw, nil
}

// readInlineFunction reads the inline-callsite headers nested under
// function header i. It stops at the first inline header it cannot
// read, returning whatever it managed to parse; a callsite whose
// inline stack or frequency records cannot be read is reported
// through diag and skipped.
func readInlineFunction(
	fh *funcHeader, hdr fileHeader, funcIdx uint64, r io.ReaderAt,
	str func(uint32) string,
	readFreqRecords func(int64, uint32) ([]FreqRecord, error),
	readStack func(int64, uint32) ([]StackFrame, error),
	diag Diag,
) ([]RawInline, error) {
	inlines := make([]RawInline, 0, fh.NumInline)
	inlineTableOff := int64(hdr.FuncHdrOffset) + int64(hdr.NumFuncHdrs)*int64(hdr.FuncHdrEntSize) + int64(fh.InlineHdrOff)

	for k := uint32(0); k < fh.NumInline; k++ {
		buf := make([]byte, hdr.FuncHdrEntSize)
		if _, err := r.ReadAt(buf, inlineTableOff+int64(k)*int64(hdr.FuncHdrEntSize)); err != nil {
			return inlines, fmt.Errorf("reading inline header %d: %w", k, err)
		}
		if len(buf) < funcHeaderEncodedSize {
			return inlines, fmt.Errorf("short inline header entry (%d bytes)", len(buf))
		}
		bd := &bufDecoder{buf}
		var ih funcHeader
		ih.FilenameOff = bd.u32()
		ih.FuncNameOff = bd.u32()
		ih.ProfileOff = bd.u64()
		ih.FreqOff = bd.u64()
		ih.InlineHdrOff = bd.u64()
		ih.StackOff = bd.u64()
		ih.NumFreq = bd.u32()
		ih.NumInline = bd.u32()
		ih.TotalSamples = bd.i64()
		ih.Depth = bd.u32()

		if ih.NumFreq == 0 {
			continue
		}

		stack, err := readStack(int64(hdr.ProfileOffset)+int64(ih.StackOff), ih.Depth)
		if err != nil {
			diag.Printf("Error reading inline stack for callsite %d of function %d: %v", k, funcIdx, err)
			continue
		}

		recs, err := readFreqRecords(int64(hdr.ProfileOffset)+int64(ih.ProfileOff)+int64(ih.FreqOff), ih.NumFreq)
		if err != nil {
			diag.Printf("Error reading frequency records for inline callsite %d: %v", k, err)
			continue
		}

		inlines = append(inlines, RawInline{
			Filename:     str(ih.FilenameOff),
			FuncName:     str(fh.FuncNameOff), // enclosing compiland's name, see RawInline docs
			Stack:        stack,
			TotalSamples: ih.TotalSamples,
			FreqRecords:  recs,
		})
	}

	return inlines, nil
}
