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

// Package wire implements the binary protocol spoken with the proxy:
// primitive big-endian and packed-integer encodings, the tagged
// field-value codec, and the map-structured request/response envelope.
package wire

import (
	"encoding/binary"
	"math"
	"time"

	"lodestone.io/lodestone/go/ld/lderrors"
	"lodestone.io/lodestone/go/types"
)

// Writer accumulates protocol bytes. The zero value is ready to use.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) Bytes() []byte { return w.buf }
func (w *Writer) Len() int      { return len(w.buf) }
func (w *Writer) Reset()        { w.buf = w.buf[:0] }

func (w *Writer) WriteUint8(b byte) { w.buf = append(w.buf, b) }

func (w *Writer) WriteBool(b bool) {
	if b {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

func (w *Writer) WriteInt16(v int16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(v))
}

func (w *Writer) WriteInt(v int) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(int32(v)))
}

// WriteIntAt patches a previously reserved 4-byte slot.
func (w *Writer) WriteIntAt(offset, v int) {
	binary.BigEndian.PutUint32(w.buf[offset:], uint32(int32(v)))
}

func (w *Writer) WriteDouble(v float64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, math.Float64bits(v))
}

func (w *Writer) WritePackedInt(v int) {
	w.buf = AppendPackedInt(w.buf, int32(v))
}

func (w *Writer) WritePackedLong(v int64) {
	w.buf = AppendPackedLong(w.buf, v)
}

// WriteString writes a packed length followed by the UTF-8 bytes.
func (w *Writer) WriteString(s string) {
	w.WritePackedInt(len(s))
	w.buf = append(w.buf, s...)
}

// WriteBinary writes a packed length followed by the raw bytes.
func (w *Writer) WriteBinary(b []byte) {
	w.WritePackedInt(len(b))
	w.buf = append(w.buf, b...)
}

func (w *Writer) WriteTimestamp(t time.Time) {
	w.WriteString(t.UTC().Format(time.RFC3339Nano))
}

// WriteFieldValue writes a type tag followed by the value payload.
// Uninitialized (nil) values never cross the wire.
func (w *Writer) WriteFieldValue(v *types.Value) error {
	if v == nil {
		return lderrors.New(lderrors.IllegalState, "cannot serialize an uninitialized value")
	}
	w.WriteUint8(byte(v.Type()))
	switch v.Type() {
	case types.Integer:
		w.WritePackedInt(int(v.Int()))
	case types.Long:
		w.WritePackedLong(v.Long())
	case types.Double:
		w.WriteDouble(v.Float())
	case types.Boolean:
		w.WriteBool(v.Bool())
	case types.String:
		w.WriteString(v.Str())
	case types.Binary:
		w.WriteBinary(v.Bytes())
	case types.Timestamp:
		w.WriteTimestamp(v.Time())
	case types.Number:
		w.WriteString(v.Decimal().String())
	case types.Null, types.JSONNull, types.Empty:
		// Tag only.
	case types.Array:
		return w.writeArray(v.Values())
	case types.Map:
		return w.writeMap(v.Map())
	}
	return nil
}

// WriteMapValue writes a map with its type tag.
func (w *Writer) WriteMapValue(mv *types.MapValue) error {
	w.WriteUint8(byte(types.Map))
	return w.writeMap(mv)
}

// Composite values carry their byte size so that readers can skip them
// without decoding. The size slot is reserved up front and patched once
// the elements are written; it does not include its own 4 bytes.

func (w *Writer) writeArray(elems []*types.Value) error {
	off := w.Len()
	w.WriteInt(0)
	w.WriteInt(len(elems))
	for _, e := range elems {
		if err := w.WriteFieldValue(e); err != nil {
			return err
		}
	}
	w.WriteIntAt(off, w.Len()-off-4)
	return nil
}

func (w *Writer) writeMap(mv *types.MapValue) error {
	off := w.Len()
	w.WriteInt(0)
	w.WriteInt(mv.Len())
	for _, k := range mv.Keys() {
		w.WriteString(k)
		v, _ := mv.Get(k)
		if err := w.WriteFieldValue(v); err != nil {
			return err
		}
	}
	w.WriteIntAt(off, w.Len()-off-4)
	return nil
}
