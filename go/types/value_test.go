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

package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNumericConversions(t *testing.T) {
	i := NewInteger(42)
	l, err := i.AsInt64()
	require.NoError(t, err)
	require.Equal(t, int64(42), l)

	f, err := NewLong(7).AsFloat64()
	require.NoError(t, err)
	require.Equal(t, 7.0, f)

	d, err := NewDouble(1.5).AsDecimal()
	require.NoError(t, err)
	require.Equal(t, "1.5", d.String())

	_, err = NewString("nope").AsInt64()
	require.Error(t, err)
	_, err = NullValue().AsDecimal()
	require.Error(t, err)
}

func TestCloneIsDeep(t *testing.T) {
	inner := NewMapValue()
	inner.Put("n", NewInteger(1))
	v := NewArray([]*Value{NewMap(inner), NewBinary([]byte{9})})

	c := v.Clone()
	require.True(t, Equal(v, c))

	inner.Put("n", NewInteger(2))
	require.False(t, Equal(v, c), "clone must not share nested values")
}

func TestMapValueKeysSorted(t *testing.T) {
	mv := NewMapValue()
	mv.Put("zeta", NewInteger(1))
	mv.Put("alpha", NewInteger(2))
	mv.Put("mid", NewInteger(3))
	require.Equal(t, []string{"alpha", "mid", "zeta"}, mv.Keys())

	mv.Put("alpha", NewInteger(9))
	require.Equal(t, 3, mv.Len(), "replacing a field must not duplicate its key")

	mv.Delete("mid")
	require.Equal(t, []string{"alpha", "zeta"}, mv.Keys())
	_, ok := mv.Get("mid")
	require.False(t, ok)
}

func TestConvertEmptyToNull(t *testing.T) {
	mv := NewMapValue()
	mv.Put("a", EmptyValue())
	mv.Put("b", NewInteger(1))
	mv.ConvertEmptyToNull()
	a, _ := mv.Get("a")
	require.True(t, a.IsNull())
	b, _ := mv.Get("b")
	require.Equal(t, int32(1), b.Int())
}

func TestJSONRendering(t *testing.T) {
	mv := NewMapValue()
	mv.Put("id", NewLong(12))
	mv.Put("name", NewString("ada"))
	mv.Put("gone", NullValue())
	mv.Put("when", NewTimestamp(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))
	num, err := NewNumberFromString("12.50")
	require.NoError(t, err)
	mv.Put("price", num)

	require.Equal(t,
		`{"gone":null,"id":12,"name":"ada","price":12.50,"when":"2026-01-02T03:04:05Z"}`,
		mv.String())
}
