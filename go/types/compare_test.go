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

func mustNumber(t *testing.T, s string) *Value {
	t.Helper()
	v, err := NewNumberFromString(s)
	require.NoError(t, err)
	return v
}

func TestCompareAtomicsSameCategory(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		a, b *Value
		want int
	}{
		{"int lt", NewInteger(1), NewInteger(2), -1},
		{"int eq", NewInteger(7), NewInteger(7), 0},
		{"long gt", NewLong(10), NewLong(-3), 1},
		{"int vs long", NewInteger(5), NewLong(6), -1},
		{"int vs double", NewInteger(5), NewDouble(4.5), 1},
		{"double eq int", NewDouble(3), NewInteger(3), 0},
		{"number vs int", mustNumber(t, "2.5"), NewInteger(2), 1},
		{"number vs double", mustNumber(t, "0.1"), NewDouble(0.2), -1},
		{"number precision", mustNumber(t, "123456789012345678901234567890"), NewLong(1 << 62), 1},
		{"string", NewString("abc"), NewString("abd"), -1},
		{"bool", NewBoolean(false), NewBoolean(true), -1},
		{"binary", NewBinary([]byte{1, 2}), NewBinary([]byte{1, 3}), -1},
		{"timestamp", NewTimestamp(ts), NewTimestamp(ts.Add(time.Second)), -1},
		{"null eq", NullValue(), NullValue(), 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, CompareAtomics(tc.a, tc.b))
			require.Equal(t, -tc.want, CompareAtomics(tc.b, tc.a))
		})
	}
}

func TestCompareAtomicsCategoryOrder(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	// Each category sorts strictly before the next.
	ladder := []*Value{
		NewInteger(1000000),
		NewTimestamp(ts),
		NewString("zzz"),
		NewBoolean(false),
		NewBinary([]byte{0xFF}),
		EmptyValue(),
		JSONNullValue(),
		NullValue(),
	}
	for i := 0; i < len(ladder)-1; i++ {
		require.Negative(t, CompareAtomics(ladder[i], ladder[i+1]),
			"step %d should sort before step %d", i, i+1)
	}
}

func TestCompareNonAtomicPanics(t *testing.T) {
	require.Panics(t, func() {
		CompareAtomics(NewArray(nil), NewInteger(1))
	})
	require.Panics(t, func() {
		CompareAtomics(NewInteger(1), NewMap(NewMapValue()))
	})
}

func TestCompareWithSpec(t *testing.T) {
	one, two, null := NewInteger(1), NewInteger(2), NullValue()

	// Ascending, nulls last (defaults).
	require.Equal(t, -1, CompareWithSpec(one, two, SortSpec{}))
	require.Equal(t, 1, CompareWithSpec(null, one, SortSpec{}))

	// Descending reverses ordinary values only.
	desc := SortSpec{Descending: true}
	require.Equal(t, 1, CompareWithSpec(one, two, desc))
	require.Equal(t, 1, CompareWithSpec(null, one, desc),
		"special placement follows NullsFirst, not Descending")

	// NullsFirst pulls specials ahead in both directions.
	nf := SortSpec{NullsFirst: true}
	require.Equal(t, -1, CompareWithSpec(null, one, nf))
	require.Equal(t, -1, CompareWithSpec(null, one, SortSpec{Descending: true, NullsFirst: true}))

	// Specials keep their natural order among themselves.
	require.Equal(t, -1, CompareWithSpec(EmptyValue(), null, SortSpec{}))
	require.Equal(t, 1, CompareWithSpec(EmptyValue(), null, desc))
}

func TestCompareRows(t *testing.T) {
	row := func(fields map[string]*Value) *MapValue {
		mv := NewMapValue()
		for k, v := range fields {
			mv.Put(k, v)
		}
		return mv
	}
	a := row(map[string]*Value{"a": NewInteger(1), "b": NewString("x")})
	b := row(map[string]*Value{"a": NewInteger(1), "b": NewString("y")})
	missing := row(map[string]*Value{"a": NewInteger(1)})

	fields := []string{"a", "b"}
	specs := []SortSpec{{}, {}}
	require.Equal(t, -1, CompareRows(a, b, fields, specs))
	require.Equal(t, 0, CompareRows(a, a, fields, specs))
	require.Equal(t, -1, CompareRows(missing, a, fields, specs),
		"row missing a sort key sorts first")
	require.Equal(t, 1, CompareRows(a, missing, fields, specs))

	specs[1] = SortSpec{Descending: true}
	require.Equal(t, 1, CompareRows(a, b, fields, specs))
}

func TestCompareFullOrder(t *testing.T) {
	m := NewMapValue()
	m.Put("k", NewInteger(1))
	mapVal := NewMap(m)
	arrVal := NewArray([]*Value{NewInteger(1)})

	// Atomics < maps < arrays.
	require.Equal(t, -1, Compare(NullValue(), mapVal))
	require.Equal(t, -1, Compare(mapVal, arrVal))
	require.Equal(t, 1, Compare(arrVal, NewString("z")))

	m2 := NewMapValue()
	m2.Put("k", NewInteger(2))
	require.Equal(t, -1, Compare(mapVal, NewMap(m2)))

	m3 := NewMapValue()
	m3.Put("j", NewInteger(1))
	require.Equal(t, 1, Compare(mapVal, NewMap(m3)), "keys compare before values")

	require.Equal(t, -1, Compare(arrVal, NewArray([]*Value{NewInteger(1), NewInteger(0)})),
		"shorter array sorts first on a common prefix")
	require.True(t, Equal(arrVal, arrVal.Clone()))
}
