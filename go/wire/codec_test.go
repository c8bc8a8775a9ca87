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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lodestone.io/lodestone/go/ld/lderrors"
	"lodestone.io/lodestone/go/types"
)

func TestFieldValueRoundTrip(t *testing.T) {
	num, err := types.NewNumberFromString("-987654321.123456789")
	require.NoError(t, err)

	inner := types.NewMapValue()
	inner.Put("id", types.NewLong(88))
	inner.Put("tags", types.NewArray([]*types.Value{
		types.NewString("x"),
		types.JSONNullValue(),
	}))

	row := types.NewMapValue()
	row.Put("i", types.NewInteger(-130))
	row.Put("l", types.NewLong(1<<40))
	row.Put("d", types.NewDouble(2.75))
	row.Put("b", types.NewBoolean(true))
	row.Put("s", types.NewString("héllo"))
	row.Put("bin", types.NewBinary([]byte{0, 1, 2, 255}))
	row.Put("ts", types.NewTimestamp(time.Date(2026, 7, 4, 10, 30, 0, 500000000, time.UTC)))
	row.Put("num", num)
	row.Put("null", types.NullValue())
	row.Put("empty", types.EmptyValue())
	row.Put("nested", types.NewMap(inner))

	w := NewWriter()
	require.NoError(t, w.WriteMapValue(row))

	r := NewReader(w.Bytes())
	got, err := r.ReadFieldValue()
	require.NoError(t, err)
	require.Equal(t, types.Map, got.Type())
	require.True(t, types.Equal(types.NewMap(row), got),
		"decoded %s", got)
	require.Equal(t, len(w.Bytes()), r.Offset(), "decode must consume every byte")
}

func TestReadTimestampZoneless(t *testing.T) {
	// The service emits timestamps without a zone designator; they are
	// UTC.
	w := NewWriter()
	w.WriteUint8(byte(types.Timestamp))
	w.WriteString("2024-03-05T12:30:45.123")

	r := NewReader(w.Bytes())
	got, err := r.ReadFieldValue()
	require.NoError(t, err)
	require.Equal(t, types.Timestamp, got.Type())
	require.Equal(t, time.Date(2024, 3, 5, 12, 30, 45, 123000000, time.UTC), got.Time())

	// A zoned value still parses as before.
	w = NewWriter()
	w.WriteUint8(byte(types.Timestamp))
	w.WriteString("2024-03-05T12:30:45+02:00")
	r = NewReader(w.Bytes())
	got, err = r.ReadFieldValue()
	require.NoError(t, err)
	require.True(t, got.Time().Equal(time.Date(2024, 3, 5, 10, 30, 45, 0, time.UTC)))

	// Garbage is still rejected.
	w = NewWriter()
	w.WriteUint8(byte(types.Timestamp))
	w.WriteString("yesterday")
	r = NewReader(w.Bytes())
	_, err = r.ReadFieldValue()
	require.Error(t, err)
	require.Equal(t, lderrors.BadProtocolMessage, lderrors.CodeOf(err))
}

func TestCompositeSizePatched(t *testing.T) {
	arr := types.NewArray([]*types.Value{
		types.NewInteger(1),
		types.NewString("ab"),
	})
	w := NewWriter()
	require.NoError(t, w.WriteFieldValue(arr))

	buf := w.Bytes()
	require.Equal(t, byte(types.Array), buf[0])
	size := int32(binary.BigEndian.Uint32(buf[1:5]))
	count := int32(binary.BigEndian.Uint32(buf[5:9]))
	require.Equal(t, int32(2), count)
	// Size covers everything after the size slot itself.
	require.Equal(t, int32(len(buf)-5), size)
}

func TestUninitializedValueRejected(t *testing.T) {
	w := NewWriter()
	err := w.WriteFieldValue(nil)
	require.Error(t, err)
	require.Equal(t, lderrors.IllegalState, lderrors.CodeOf(err))
}

func TestReaderBounds(t *testing.T) {
	r := NewReader([]byte{byte(types.String), 0xF7 + 1, 50})
	_, err := r.ReadFieldValue()
	require.Error(t, err, "declared string length runs past the buffer")
	require.Equal(t, lderrors.BadProtocolMessage, lderrors.CodeOf(err))

	r = NewReader([]byte{0x42})
	_, err = r.ReadFieldValue()
	require.Error(t, err, "unknown type tag")
}

func TestStringAndIntArrays(t *testing.T) {
	w := NewWriter()
	w.WritePackedInt(3)
	for _, s := range []string{"a", "", "long-ish value"} {
		w.WriteString(s)
	}
	r := NewReader(w.Bytes())
	got, err := r.ReadStringArray()
	require.NoError(t, err)
	require.Equal(t, []string{"a", "", "long-ish value"}, got)

	w = NewWriter()
	w.WritePackedInt(-1)
	r = NewReader(w.Bytes())
	got, err = r.ReadStringArray()
	require.NoError(t, err)
	require.Nil(t, got)

	w = NewWriter()
	w.WritePackedInt(2)
	w.WritePackedInt(-5)
	w.WritePackedInt(100000)
	r = NewReader(w.Bytes())
	ints, err := r.ReadIntArray()
	require.NoError(t, err)
	require.Equal(t, []int{-5, 100000}, ints)
}

func TestEnvelopeWalk(t *testing.T) {
	w := NewWriter()
	s := StartRequest(w)
	s.WriteHeader(7, "users", 5*time.Second)
	s.StartPayload()
	s.WriteIntField(FieldQueryVersion, QueryVersion)
	s.WriteTrueBoolField(FieldIsPrepared, false) // must not be written
	s.WriteNonemptyStringField(FieldNamespace, "")
	s.WriteStringField(FieldStatement, "select * from users")
	s.StartArray(FieldBindVariables)
	s.StartArrayElement()
	sub := s // one bind variable as a nested map
	sub.StartMap("")
	sub.WriteStringField(FieldName, "$v")
	require.NoError(t, sub.WriteField(FieldValue, types.NewInteger(5)))
	sub.EndMap("")
	s.EndArrayElement()
	s.EndArray(FieldBindVariables)
	s.EndPayload()
	s.EndRequest()

	r := NewReader(w.Bytes())
	mw, err := NewMapWalker(r)
	require.NoError(t, err)

	var sawHeader, sawPayload bool
	for mw.HasNext() {
		require.NoError(t, mw.Next())
		switch mw.Name() {
		case FieldHeader:
			sawHeader = true
			hw, err := NewMapWalker(r)
			require.NoError(t, err)
			fields := map[string]int{}
			for hw.HasNext() {
				require.NoError(t, hw.Next())
				switch hw.Name() {
				case FieldVersion, FieldOpCode, FieldTimeout:
					v, err := hw.ReadInt()
					require.NoError(t, err)
					fields[hw.Name()] = v
				case FieldTableName:
					name, err := hw.ReadString()
					require.NoError(t, err)
					require.Equal(t, "users", name)
				default:
					require.NoError(t, hw.SkipField())
				}
			}
			require.Equal(t, ProtocolVersion, fields[FieldVersion])
			require.Equal(t, 7, fields[FieldOpCode])
			require.Equal(t, 5000, fields[FieldTimeout])
		case FieldPayload:
			sawPayload = true
			pw, err := NewMapWalker(r)
			require.NoError(t, err)
			var count int
			for pw.HasNext() {
				require.NoError(t, pw.Next())
				require.NotEqual(t, FieldIsPrepared, pw.Name())
				require.NotEqual(t, FieldNamespace, pw.Name())
				count++
				require.NoError(t, pw.SkipField())
			}
			require.Equal(t, 3, count)
		default:
			require.NoError(t, mw.SkipField())
		}
	}
	require.True(t, sawHeader)
	require.True(t, sawPayload)
}

func TestHandleErrorCode(t *testing.T) {
	w := NewWriter()
	s := StartRequest(w)
	s.WriteIntField(FieldErrorCode, int(lderrors.TableNotFound))
	s.WriteStringField(FieldException, "no such table")
	s.EndRequest()

	mw, err := NewMapWalker(NewReader(w.Bytes()))
	require.NoError(t, err)
	require.NoError(t, mw.Next())
	require.Equal(t, FieldErrorCode, mw.Name())
	err = mw.HandleErrorCode()
	require.Error(t, err)
	require.Equal(t, lderrors.TableNotFound, lderrors.CodeOf(err))
	require.Contains(t, err.Error(), "no such table")

	// A zero code is not an error.
	w = NewWriter()
	s = StartRequest(w)
	s.WriteIntField(FieldErrorCode, 0)
	s.EndRequest()
	mw, err = NewMapWalker(NewReader(w.Bytes()))
	require.NoError(t, err)
	require.NoError(t, mw.Next())
	require.NoError(t, mw.HandleErrorCode())
}
