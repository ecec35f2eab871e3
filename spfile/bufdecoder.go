// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spfile

import "encoding/binary"

// bufDecoder sequentially decodes little-endian fields out of a byte
// slice, advancing buf as it goes. Adapted from perffile's bufDecoder:
// same incremental-consumption style, trimmed to the primitives this
// format needs.
type bufDecoder struct {
	buf []byte
}

func (b *bufDecoder) u32() uint32 {
	x := binary.LittleEndian.Uint32(b.buf)
	b.buf = b.buf[4:]
	return x
}

func (b *bufDecoder) i64() int64 {
	x := int64(binary.LittleEndian.Uint64(b.buf))
	b.buf = b.buf[8:]
	return x
}

func (b *bufDecoder) u64() uint64 {
	x := binary.LittleEndian.Uint64(b.buf)
	b.buf = b.buf[8:]
	return x
}
