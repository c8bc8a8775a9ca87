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
	"time"

	"lodestone.io/lodestone/go/ld/lderrors"
	"lodestone.io/lodestone/go/types"
)

// Serializer writes the map-structured request envelope. Maps and
// arrays start with their total byte size so a reader can skip them
// without decoding; the size and element count are reserved when a
// container starts and patched when it ends.
type Serializer struct {
	w       *Writer
	offsets []int
	sizes   []int
}

// StartRequest begins the outermost envelope map.
func StartRequest(w *Writer) *Serializer {
	s := &Serializer{w: w}
	s.startContainer("", types.Map)
	return s
}

// EndRequest closes the outermost envelope map.
func (s *Serializer) EndRequest() { s.endContainer("") }

func (s *Serializer) incrSize() {
	if n := len(s.sizes); n > 0 {
		s.sizes[n-1]++
	}
}

func (s *Serializer) startContainer(field string, t types.Type) {
	if field != "" {
		s.w.WriteString(field)
	}
	s.w.WriteUint8(byte(t))
	s.offsets = append(s.offsets, s.w.Len())
	s.w.WriteInt(0) // byte size
	s.w.WriteInt(0) // element count
	s.sizes = append(s.sizes, 0)
}

func (s *Serializer) endContainer(field string) {
	off := s.offsets[len(s.offsets)-1]
	s.offsets = s.offsets[:len(s.offsets)-1]
	count := s.sizes[len(s.sizes)-1]
	s.sizes = s.sizes[:len(s.sizes)-1]

	s.w.WriteIntAt(off, s.w.Len()-off-4)
	s.w.WriteIntAt(off+4, count)
	if field != "" {
		s.incrSize()
	}
}

func (s *Serializer) StartMap(field string)   { s.startContainer(field, types.Map) }
func (s *Serializer) EndMap(field string)     { s.endContainer(field) }
func (s *Serializer) StartArray(field string) { s.startContainer(field, types.Array) }
func (s *Serializer) EndArray(field string)   { s.endContainer(field) }

// StartArrayElement/EndArrayElement bracket one element written
// directly through the Serializer's writer.
func (s *Serializer) StartArrayElement() {}
func (s *Serializer) EndArrayElement()   { s.incrSize() }

func (s *Serializer) WriteIntField(field string, v int) {
	s.w.WriteString(field)
	s.w.WriteUint8(byte(types.Integer))
	s.w.WritePackedInt(v)
	s.incrSize()
}

// WriteNonzeroIntField writes the field only when v is positive.
func (s *Serializer) WriteNonzeroIntField(field string, v int) {
	if v > 0 {
		s.WriteIntField(field, v)
	}
}

func (s *Serializer) WriteBoolField(field string, v bool) {
	s.w.WriteString(field)
	s.w.WriteUint8(byte(types.Boolean))
	s.w.WriteBool(v)
	s.incrSize()
}

// WriteTrueBoolField writes the field only when v is true.
func (s *Serializer) WriteTrueBoolField(field string, v bool) {
	if v {
		s.WriteBoolField(field, v)
	}
}

func (s *Serializer) WriteStringField(field, v string) {
	s.w.WriteString(field)
	s.w.WriteUint8(byte(types.String))
	s.w.WriteString(v)
	s.incrSize()
}

// WriteNonemptyStringField writes the field only when v is non-empty.
func (s *Serializer) WriteNonemptyStringField(field, v string) {
	if v != "" {
		s.WriteStringField(field, v)
	}
}

func (s *Serializer) WriteBinaryField(field string, v []byte) {
	s.w.WriteString(field)
	s.w.WriteUint8(byte(types.Binary))
	s.w.WriteBinary(v)
	s.incrSize()
}

func (s *Serializer) WriteField(field string, v *types.Value) error {
	s.w.WriteString(field)
	if err := s.w.WriteFieldValue(v); err != nil {
		return err
	}
	s.incrSize()
	return nil
}

// WriteValue writes a bare value as an array element.
func (s *Serializer) WriteValue(v *types.Value) error {
	if err := s.w.WriteFieldValue(v); err != nil {
		return err
	}
	s.incrSize()
	return nil
}

// WriteHeader writes the standard request header map.
func (s *Serializer) WriteHeader(opCode int, tableName string, timeout time.Duration) {
	s.StartMap(FieldHeader)
	s.WriteIntField(FieldVersion, ProtocolVersion)
	s.WriteNonemptyStringField(FieldTableName, tableName)
	s.WriteIntField(FieldOpCode, opCode)
	s.WriteIntField(FieldTimeout, int(timeout.Milliseconds()))
	s.EndMap(FieldHeader)
}

func (s *Serializer) StartPayload() { s.StartMap(FieldPayload) }
func (s *Serializer) EndPayload()   { s.EndMap(FieldPayload) }

// maxWalkerElements guards against nonsense element counts.
const maxWalkerElements = 100000000

// MapWalker iterates the fields of a serialized map without realizing
// it. The caller inspects Name after each Next and reads or skips the
// field's value.
type MapWalker struct {
	r     *Reader
	count int
	index int
	name  string
}

// NewMapWalker expects a map at the reader's position.
func NewMapWalker(r *Reader) (*MapWalker, error) {
	if err := expectType(r, types.Map); err != nil {
		return nil, err
	}
	if _, err := r.ReadInt(); err != nil { // byte size, unused
		return nil, err
	}
	count, err := r.ReadInt()
	if err != nil {
		return nil, err
	}
	if count < 0 || count > maxWalkerElements {
		return nil, lderrors.New(lderrors.BadProtocolMessage, "invalid element count in message")
	}
	return &MapWalker{r: r, count: count}, nil
}

func expectType(r *Reader, t types.Type) error {
	b, err := r.ReadByte()
	if err != nil {
		return err
	}
	if types.Type(b) != t {
		return lderrors.Errorf(lderrors.BadProtocolMessage, "expected type %d, found %d", t, b)
	}
	return nil
}

func (mw *MapWalker) Reader() *Reader { return mw.r }

func (mw *MapWalker) HasNext() bool { return mw.index < mw.count }

func (mw *MapWalker) Next() error {
	if !mw.HasNext() {
		return lderrors.New(lderrors.BadProtocolMessage, "cannot call next with no elements remaining")
	}
	name, err := mw.r.ReadString()
	if err != nil {
		return err
	}
	mw.name = name
	mw.index++
	return nil
}

// Name is the field name read by the last Next.
func (mw *MapWalker) Name() string { return mw.name }

func (mw *MapWalker) ReadInt() (int, error) {
	if err := expectType(mw.r, types.Integer); err != nil {
		return 0, err
	}
	return mw.r.ReadPackedInt()
}

func (mw *MapWalker) ReadLong() (int64, error) {
	if err := expectType(mw.r, types.Long); err != nil {
		return 0, err
	}
	return mw.r.ReadPackedLong()
}

func (mw *MapWalker) ReadBool() (bool, error) {
	if err := expectType(mw.r, types.Boolean); err != nil {
		return false, err
	}
	return mw.r.ReadBool()
}

func (mw *MapWalker) ReadString() (string, error) {
	if err := expectType(mw.r, types.String); err != nil {
		return "", err
	}
	return mw.r.ReadString()
}

func (mw *MapWalker) ReadBinary() ([]byte, error) {
	if err := expectType(mw.r, types.Binary); err != nil {
		return nil, err
	}
	return mw.r.ReadBinary()
}

func (mw *MapWalker) ReadMap() (*types.MapValue, error) {
	if err := expectType(mw.r, types.Map); err != nil {
		return nil, err
	}
	return mw.r.ReadMap()
}

func (mw *MapWalker) ReadFieldValue() (*types.Value, error) {
	return mw.r.ReadFieldValue()
}

// ReadIntArray reads an array of Integer values.
func (mw *MapWalker) ReadIntArray() ([]int, error) {
	if err := expectType(mw.r, types.Array); err != nil {
		return nil, err
	}
	if _, err := mw.r.ReadInt(); err != nil { // byte size
		return nil, err
	}
	n, err := mw.r.ReadIntMin(0)
	if err != nil {
		return nil, err
	}
	arr := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if err := expectType(mw.r, types.Integer); err != nil {
			return nil, err
		}
		v, err := mw.r.ReadPackedInt()
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}
	return arr, nil
}

// SkipField consumes the current field's value.
func (mw *MapWalker) SkipField() error {
	_, err := mw.r.ReadFieldValue()
	return err
}

// ReadConsumed reads a consumed-capacity sub-map.
func (mw *MapWalker) ReadConsumed() (types.Capacity, error) {
	var c types.Capacity
	sub, err := NewMapWalker(mw.r)
	if err != nil {
		return c, err
	}
	for sub.HasNext() {
		if err := sub.Next(); err != nil {
			return c, err
		}
		switch sub.Name() {
		case FieldReadKB:
			c.ReadKB, err = sub.ReadInt()
		case FieldWriteKB:
			c.WriteKB, err = sub.ReadInt()
		case FieldReadUnits:
			c.ReadUnits, err = sub.ReadInt()
		case FieldWriteUnits:
			c.WriteUnits, err = sub.ReadInt()
		default:
			err = sub.SkipField()
		}
		if err != nil {
			return c, err
		}
	}
	return c, nil
}

// HandleErrorCode reads the error-code field. A nonzero code consumes
// the rest of the walker looking for the exception message and returns
// the typed error.
func (mw *MapWalker) HandleErrorCode() error {
	code, err := mw.ReadInt()
	if err != nil {
		return err
	}
	if code == 0 {
		return nil
	}
	for mw.HasNext() {
		if err := mw.Next(); err != nil {
			return err
		}
		if mw.Name() == FieldException {
			msg, err := mw.ReadString()
			if err != nil {
				return err
			}
			return lderrors.FromInt(code, msg)
		}
		if err := mw.SkipField(); err != nil {
			return err
		}
	}
	return lderrors.New(lderrors.UnknownError, "unknown error")
}
