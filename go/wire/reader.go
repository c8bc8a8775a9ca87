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

import (
	"encoding/binary"
	"math"
	"time"

	"lodestone.io/lodestone/go/ld/lderrors"
	"lodestone.io/lodestone/go/types"
)

// Reader decodes protocol bytes from a buffer.
type Reader struct {
	buf []byte
	off int
}

func NewReader(buf []byte) *Reader { return &Reader{buf: buf} }

// Offset returns the current read position.
func (r *Reader) Offset() int { return r.off }

func (r *Reader) eof(msg string) error {
	return lderrors.New(lderrors.BadProtocolMessage, msg)
}

func (r *Reader) need(n int, what string) error {
	if r.off+n > len(r.buf) {
		return r.eof("attempt to read past end of buffer: " + what)
	}
	return nil
}

func (r *Reader) ReadByte() (byte, error) {
	if err := r.need(1, "byte"); err != nil {
		return 0, err
	}
	b := r.buf[r.off]
	r.off++
	return b, nil
}

func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadByte()
	return b != 0, err
}

func (r *Reader) ReadInt16() (int16, error) {
	if err := r.need(2, "int16"); err != nil {
		return 0, err
	}
	v := int16(binary.BigEndian.Uint16(r.buf[r.off:]))
	r.off += 2
	return v, nil
}

func (r *Reader) ReadInt() (int, error) {
	if err := r.need(4, "int32"); err != nil {
		return 0, err
	}
	v := int32(binary.BigEndian.Uint32(r.buf[r.off:]))
	r.off += 4
	return int(v), nil
}

// ReadIntMin reads a 4-byte integer and validates a lower bound.
func (r *Reader) ReadIntMin(min int) (int, error) {
	v, err := r.ReadInt()
	if err != nil {
		return 0, err
	}
	if v < min {
		return 0, lderrors.Errorf(lderrors.BadProtocolMessage, "invalid integer value %d, expected at least %d", v, min)
	}
	return v, nil
}

func (r *Reader) ReadDouble() (float64, error) {
	if err := r.need(8, "double"); err != nil {
		return 0, err
	}
	v := math.Float64frombits(binary.BigEndian.Uint64(r.buf[r.off:]))
	r.off += 8
	return v, nil
}

func (r *Reader) ReadPackedInt() (int, error) {
	v, err := readPackedLong(r.buf, &r.off)
	if err != nil {
		return 0, err
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, r.eof("packed int out of 32-bit range")
	}
	return int(v), nil
}

func (r *Reader) ReadPackedLong() (int64, error) {
	return readPackedLong(r.buf, &r.off)
}

// ReadString reads a packed length followed by UTF-8 bytes. A length of
// -1 decodes as the empty string.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadPackedInt()
	if err != nil {
		return "", err
	}
	if n < -1 {
		return "", r.eof("invalid string length")
	}
	if n <= 0 {
		return "", nil
	}
	if err := r.need(n, "string"); err != nil {
		return "", err
	}
	s := string(r.buf[r.off : r.off+n])
	r.off += n
	return s, nil
}

func (r *Reader) ReadBinary() ([]byte, error) {
	n, err := r.ReadPackedInt()
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	if err := r.need(n, "binary"); err != nil {
		return nil, err
	}
	b := append([]byte(nil), r.buf[r.off:r.off+n]...)
	r.off += n
	return b, nil
}

func (r *Reader) ReadTimestamp() (time.Time, error) {
	s, err := r.ReadString()
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		// The service may omit the zone designator; such values are UTC.
		if t, zerr := time.Parse(time.RFC3339Nano, s+"Z"); zerr == nil {
			return t, nil
		}
		return time.Time{}, lderrors.Errorf(lderrors.BadProtocolMessage, "invalid timestamp value %q: %v", s, err)
	}
	return t, nil
}

// ReadFieldValue reads a type tag and the value payload behind it.
func (r *Reader) ReadFieldValue() (*types.Value, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch types.Type(tag) {
	case types.Integer:
		v, err := r.ReadPackedInt()
		if err != nil {
			return nil, err
		}
		return types.NewInteger(int32(v)), nil
	case types.Long:
		v, err := r.ReadPackedLong()
		if err != nil {
			return nil, err
		}
		return types.NewLong(v), nil
	case types.Double:
		v, err := r.ReadDouble()
		if err != nil {
			return nil, err
		}
		return types.NewDouble(v), nil
	case types.Boolean:
		v, err := r.ReadBool()
		if err != nil {
			return nil, err
		}
		return types.NewBoolean(v), nil
	case types.String:
		v, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		return types.NewString(v), nil
	case types.Binary:
		v, err := r.ReadBinary()
		if err != nil {
			return nil, err
		}
		return types.NewBinary(v), nil
	case types.Timestamp:
		v, err := r.ReadTimestamp()
		if err != nil {
			return nil, err
		}
		return types.NewTimestamp(v), nil
	case types.Number:
		s, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		return types.NewNumberFromString(s)
	case types.Null:
		return types.NullValue(), nil
	case types.JSONNull:
		return types.JSONNullValue(), nil
	case types.Empty:
		return types.EmptyValue(), nil
	case types.Array:
		elems, err := r.ReadArray()
		if err != nil {
			return nil, err
		}
		return types.NewArray(elems), nil
	case types.Map:
		mv, err := r.ReadMap()
		if err != nil {
			return nil, err
		}
		return types.NewMap(mv), nil
	}
	return nil, lderrors.Errorf(lderrors.IllegalArgument, "invalid field type byte %d", tag)
}

// ReadArray reads an array body (size, count, elements); the type tag
// has already been consumed.
func (r *Reader) ReadArray() ([]*types.Value, error) {
	if _, err := r.ReadInt(); err != nil { // byte size, unused
		return nil, err
	}
	n, err := r.ReadIntMin(0)
	if err != nil {
		return nil, err
	}
	elems := make([]*types.Value, 0, n)
	for i := 0; i < n; i++ {
		v, err := r.ReadFieldValue()
		if err != nil {
			return nil, err
		}
		elems = append(elems, v)
	}
	return elems, nil
}

// ReadMap reads a map body (size, count, key/value pairs); the type tag
// has already been consumed.
func (r *Reader) ReadMap() (*types.MapValue, error) {
	if _, err := r.ReadInt(); err != nil { // byte size, unused
		return nil, err
	}
	n, err := r.ReadIntMin(0)
	if err != nil {
		return nil, err
	}
	mv := types.NewMapValue()
	for i := 0; i < n; i++ {
		k, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		v, err := r.ReadFieldValue()
		if err != nil {
			return nil, err
		}
		mv.Put(k, v)
	}
	return mv, nil
}

// ReadStringArray reads a packed count followed by that many strings.
// A count of -1 decodes as nil.
func (r *Reader) ReadStringArray() ([]string, error) {
	n, err := r.ReadPackedInt()
	if err != nil {
		return nil, err
	}
	if n < -1 {
		return nil, r.eof("invalid string array length")
	}
	if n <= 0 {
		return nil, nil
	}
	arr := make([]string, 0, n)
	for i := 0; i < n; i++ {
		s, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		arr = append(arr, s)
	}
	return arr, nil
}

// ReadIntArray reads a packed count followed by that many packed ints.
func (r *Reader) ReadIntArray() ([]int, error) {
	n, err := r.ReadPackedInt()
	if err != nil {
		return nil, err
	}
	if n < -1 {
		return nil, r.eof("invalid int array length")
	}
	if n <= 0 {
		return nil, nil
	}
	arr := make([]int, 0, n)
	for i := 0; i < n; i++ {
		v, err := r.ReadPackedInt()
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}
	return arr, nil
}
