// Package spfiletest builds in-memory sample files in spfile's wire
// format, for use as test fixtures across this module's packages. It
// plays the role of the external sample collector, which is out of
// scope for the annotator itself — tests need a writer, production
// code never does.
package spfiletest

import (
	"bytes"
	"encoding/binary"
)

// FreqRecord mirrors spfile.FreqRecord; duplicated here so this
// package has no dependency on spfile's internals.
type FreqRecord struct {
	Line     uint32
	Freq     int64
	NumInstr uint32
}

// StackFrame is one inline-stack frame, given innermost-first (the
// on-disk order); Builder writes the frames in the order given, and
// spfile.Load reverses them when reading.
type StackFrame struct {
	File string
	Line uint32
}

type funcEnt struct {
	filename, funcName string
	freq               []FreqRecord
	inlines            []inlineEnt
}

type inlineEnt struct {
	filename string
	stack    []StackFrame // innermost-first
	freq     []FreqRecord
}

// Builder accumulates functions and encodes them into the binary
// sample-file format spfile.Load reads.
type Builder struct {
	funcs []funcEnt
}

// AddFunc registers a top-level function with its per-line frequency
// records and returns its index, for use with AddInline.
func (b *Builder) AddFunc(filename, funcName string, freq []FreqRecord) int {
	b.funcs = append(b.funcs, funcEnt{filename: filename, funcName: funcName, freq: freq})
	return len(b.funcs) - 1
}

// AddInline adds an inline callsite under the function at funcIdx.
// stack is innermost-first, matching the on-disk format. The
// callsite's total sample count is written as the sum of freq's Freq
// values; spindex.Build turns it into the callsite-total entry
// (line == 0).
func (b *Builder) AddInline(funcIdx int, filename string, stack []StackFrame, freq []FreqRecord) {
	f := &b.funcs[funcIdx]
	f.inlines = append(f.inlines, inlineEnt{filename: filename, stack: stack, freq: freq})
}

type strTable struct {
	buf    bytes.Buffer
	offset map[string]uint32
}

func newStrTable() *strTable { return &strTable{offset: make(map[string]uint32)} }

func (s *strTable) intern(str string) uint32 {
	if off, ok := s.offset[str]; ok {
		return off
	}
	off := uint32(s.buf.Len())
	s.buf.WriteString(str)
	s.buf.WriteByte(0)
	s.offset[str] = off
	return off
}

const funcHdrEntSize = 4 + 4 + 8 + 8 + 8 + 8 + 4 + 4 + 8 + 4

// Bytes encodes the accumulated functions into the wire format.
func (b *Builder) Bytes() []byte {
	strs := newStrTable()

	// Pass 1: intern all strings and lay out the profile-data
	// region (stacks and frequency records), recording offsets
	// relative to the start of that region.
	var profile bytes.Buffer
	type layout struct {
		freqOff      uint64
		stackOffs    []uint64
		inlineFreqOf []uint64
	}
	layouts := make([]layout, len(b.funcs))

	for i, f := range b.funcs {
		strs.intern(f.filename)
		strs.intern(f.funcName)

		l := layout{freqOff: uint64(profile.Len())}
		writeFreqRecords(&profile, f.freq)

		l.stackOffs = make([]uint64, len(f.inlines))
		l.inlineFreqOf = make([]uint64, len(f.inlines))
		for j, in := range f.inlines {
			strs.intern(in.filename)
			l.stackOffs[j] = uint64(profile.Len())
			for _, fr := range in.stack {
				var tmp [8]byte
				binary.LittleEndian.PutUint32(tmp[0:4], strs.intern(fr.File))
				binary.LittleEndian.PutUint32(tmp[4:8], fr.Line)
				profile.Write(tmp[:])
			}
			l.inlineFreqOf[j] = uint64(profile.Len())
			writeFreqRecords(&profile, in.freq)
		}
		layouts[i] = l
	}

	// Pass 2: lay out the function-header table followed by the
	// inline-header table.
	numFuncs := uint64(len(b.funcs))
	var funcHdrs, inlineHdrs bytes.Buffer
	inlineHdrOffForFunc := make([]uint64, len(b.funcs))
	var runningInlineOff uint64
	for i, f := range b.funcs {
		inlineHdrOffForFunc[i] = runningInlineOff
		runningInlineOff += uint64(len(f.inlines)) * funcHdrEntSize
	}

	for i, f := range b.funcs {
		l := layouts[i]
		var total int64
		for _, r := range f.freq {
			total += r.Freq
		}
		writeFuncHeader(&funcHdrs, funcHeader{
			FilenameOff:  strs.intern(f.filename),
			FuncNameOff:  strs.intern(f.funcName),
			ProfileOff:   0,
			FreqOff:      l.freqOff,
			InlineHdrOff: inlineHdrOffForFunc[i],
			StackOff:     0,
			NumFreq:      uint32(len(f.freq)),
			NumInline:    uint32(len(f.inlines)),
			TotalSamples: total,
			Depth:        0,
		})

		for j, in := range f.inlines {
			var itotal int64
			for _, r := range in.freq {
				itotal += r.Freq
			}
			writeFuncHeader(&inlineHdrs, funcHeader{
				FilenameOff:  strs.intern(in.filename),
				FuncNameOff:  strs.intern(f.funcName),
				ProfileOff:   0,
				FreqOff:      l.inlineFreqOf[j],
				InlineHdrOff: 0,
				StackOff:     l.stackOffs[j],
				NumFreq:      uint32(len(in.freq)),
				NumInline:    0,
				TotalSamples: itotal,
				Depth:        uint32(len(in.stack)),
			})
		}
	}

	strTableBytes := strs.buf.Bytes()

	var out bytes.Buffer
	const headerSize = 8 * 7
	strTableOff := uint64(headerSize)
	funcHdrOff := strTableOff + uint64(len(strTableBytes))
	profileOff := funcHdrOff + numFuncs*funcHdrEntSize + uint64(inlineHdrs.Len())

	writeHeader(&out, fileHeader{
		StrTableOffset: strTableOff,
		StrTableSize:   uint64(len(strTableBytes)),
		FuncHdrOffset:  funcHdrOff,
		FuncHdrEntSize: funcHdrEntSize,
		NumFuncHdrs:    numFuncs,
		ProfileOffset:  profileOff,
		ProfileSize:    uint64(profile.Len()),
	})
	out.Write(strTableBytes)
	out.Write(funcHdrs.Bytes())
	out.Write(inlineHdrs.Bytes())
	out.Write(profile.Bytes())

	return out.Bytes()
}

func writeFreqRecords(w *bytes.Buffer, recs []FreqRecord) {
	for _, r := range recs {
		var tmp [16]byte
		binary.LittleEndian.PutUint32(tmp[0:4], r.Line)
		binary.LittleEndian.PutUint64(tmp[4:12], uint64(r.Freq))
		binary.LittleEndian.PutUint32(tmp[12:16], r.NumInstr)
		w.Write(tmp[:])
	}
}

type fileHeader struct {
	StrTableOffset uint64
	StrTableSize   uint64
	FuncHdrOffset  uint64
	FuncHdrEntSize uint64
	NumFuncHdrs    uint64
	ProfileOffset  uint64
	ProfileSize    uint64
}

func writeHeader(w *bytes.Buffer, h fileHeader) {
	fields := []uint64{h.StrTableOffset, h.StrTableSize, h.FuncHdrOffset, h.FuncHdrEntSize, h.NumFuncHdrs, h.ProfileOffset, h.ProfileSize}
	for _, f := range fields {
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], f)
		w.Write(tmp[:])
	}
}

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

func writeFuncHeader(w *bytes.Buffer, h funcHeader) {
	var tmp [funcHdrEntSize]byte
	binary.LittleEndian.PutUint32(tmp[0:4], h.FilenameOff)
	binary.LittleEndian.PutUint32(tmp[4:8], h.FuncNameOff)
	binary.LittleEndian.PutUint64(tmp[8:16], h.ProfileOff)
	binary.LittleEndian.PutUint64(tmp[16:24], h.FreqOff)
	binary.LittleEndian.PutUint64(tmp[24:32], h.InlineHdrOff)
	binary.LittleEndian.PutUint64(tmp[32:40], h.StackOff)
	binary.LittleEndian.PutUint32(tmp[40:44], h.NumFreq)
	binary.LittleEndian.PutUint32(tmp[44:48], h.NumInline)
	binary.LittleEndian.PutUint64(tmp[48:56], uint64(h.TotalSamples))
	binary.LittleEndian.PutUint32(tmp[56:60], h.Depth)
	w.Write(tmp[:])
}
