/*
Copyright 2026 The Lodestone Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package wire

import "lodestone.io/lodestone/go/ld/lderrors"

// Packed sorted integers. Values in [-119,120] occupy one byte holding
// value+127. Outside that range the first byte encodes the number of
// additional bytes (0xF7+n for positive, 0x08-n for negative) and the
// remaining bytes hold value-121 (positive) or value+119 (negative) as
// a big-endian integer with leading sign bytes stripped. The encoding
// preserves numeric order under byte-wise comparison.

// AppendPackedInt appends the packed encoding of a 32-bit value to buf.
func AppendPackedInt(buf []byte, val int32) []byte {
	return AppendPackedLong(buf, int64(val))
}

// AppendPackedLong appends the packed encoding of a 64-bit value to buf.
func AppendPackedLong(buf []byte, val int64) []byte {
	switch {
	case val < -119:
		v := uint64(val + 119)
		n := 8
		for n > 1 && v|(^uint64(0)>>(64-8*(n-1))) == ^uint64(0) {
			n--
		}
		buf = append(buf, byte(0x08-n))
		for i := n - 1; i >= 0; i-- {
			buf = append(buf, byte(v>>(8*i)))
		}
	case val > 120:
		v := uint64(val - 121)
		n := 8
		for n > 1 && v>>(8*(n-1)) == 0 {
			n--
		}
		buf = append(buf, byte(0xF7+n))
		for i := n - 1; i >= 0; i-- {
			buf = append(buf, byte(v>>(8*i)))
		}
	default:
		buf = append(buf, byte(val+127))
	}
	return buf
}

// readPackedLong decodes a packed integer from buf at *off, advancing
// *off past it.
func readPackedLong(buf []byte, off *int) (int64, error) {
	if *off >= len(buf) {
		return 0, lderrors.New(lderrors.BadProtocolMessage, "invalid packed integer in buffer")
	}
	first := buf[*off]
	*off++

	var n int
	var value int64
	switch {
	case first < 0x08:
		n = int(0x08 - first)
		value = -1
	case first > 0xF7:
		n = int(first - 0xF7)
	default:
		return int64(first) - 127, nil
	}

	if *off+n > len(buf) {
		return 0, lderrors.New(lderrors.BadProtocolMessage, "attempt to read past end of buffer")
	}
	for i := 0; i < n; i++ {
		value = value<<8 | int64(buf[*off])
		*off++
	}
	if first < 0x08 {
		return value - 119, nil
	}
	return value + 121, nil
}
