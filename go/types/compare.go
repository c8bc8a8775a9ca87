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
	"bytes"
	"fmt"
	"math"
	"strings"
)

// SortSpec describes how one sort key is ordered.
type SortSpec struct {
	// Descending reverses the natural order of ordinary values.
	Descending bool
	// NullsFirst places Null, JSONNull and Empty before ordinary
	// values instead of after them. The placement is independent of
	// Descending.
	NullsFirst bool
}

// Atomic values order by category first: all numerics, then timestamps,
// strings, booleans, binaries, Empty, JSONNull and finally Null.
// Numerics compare by numeric value across representations.
func atomicRank(t Type) int {
	switch t {
	case Integer, Long, Double, Number:
		return 0
	case Timestamp:
		return 1
	case String:
		return 2
	case Boolean:
		return 3
	case Binary:
		return 4
	case Empty:
		return 5
	case JSONNull:
		return 6
	case Null:
		return 7
	}
	panic(fmt.Sprintf("cannot compare non-atomic %s value", t))
}

// CompareAtomics compares two atomic values under the total order.
// It panics if either value is a Map or an Array; callers validate
// sort keys before sorting.
func CompareAtomics(a, b *Value) int {
	ra, rb := atomicRank(a.typ), atomicRank(b.typ)
	if ra != rb {
		return cmpInt(ra, rb)
	}
	switch ra {
	case 0:
		return compareNumerics(a, b)
	case 1:
		if a.ts.Equal(b.ts) {
			return 0
		}
		if a.ts.Before(b.ts) {
			return -1
		}
		return 1
	case 2:
		return strings.Compare(a.s, b.s)
	case 3:
		if a.b == b.b {
			return 0
		}
		if !a.b {
			return -1
		}
		return 1
	case 4:
		return bytes.Compare(a.raw, b.raw)
	default:
		// Same special value.
		return 0
	}
}

func compareNumerics(a, b *Value) int {
	if a.typ == Number || b.typ == Number {
		da, err := a.AsDecimal()
		if err != nil {
			panic(err)
		}
		db, err := b.AsDecimal()
		if err != nil {
			panic(err)
		}
		return da.Cmp(db)
	}
	if a.typ == Double || b.typ == Double {
		fa, _ := a.AsFloat64()
		fb, _ := b.AsFloat64()
		return compareFloats(fa, fb)
	}
	return cmpInt64(a.n, b.n)
}

// compareFloats is a total order over float64: NaN sorts above every
// other value and equal to itself.
func compareFloats(a, b float64) int {
	switch {
	case math.IsNaN(a) && math.IsNaN(b):
		return 0
	case math.IsNaN(a):
		return 1
	case math.IsNaN(b):
		return -1
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// CompareWithSpec compares two atomic values under a sort spec.
// Descending reverses the order of ordinary values; the special values
// (Null, JSONNull, Empty) are placed as a block before or after all
// ordinary values depending on NullsFirst, and keep their natural order
// among themselves (reversed when descending).
func CompareWithSpec(a, b *Value, spec SortSpec) int {
	sa, sb := a.IsSpecial(), b.IsSpecial()
	switch {
	case sa && sb:
		c := CompareAtomics(a, b)
		if spec.Descending {
			return -c
		}
		return c
	case sa:
		if spec.NullsFirst {
			return -1
		}
		return 1
	case sb:
		if spec.NullsFirst {
			return 1
		}
		return -1
	}
	c := CompareAtomics(a, b)
	if spec.Descending {
		return -c
	}
	return c
}

// CompareRows compares two rows on the given sort keys. A row missing a
// sort key sorts before one that has it.
func CompareRows(a, b *MapValue, fields []string, specs []SortSpec) int {
	for i, field := range fields {
		va, oka := a.Get(field)
		vb, okb := b.Get(field)
		if !oka {
			if !okb {
				continue
			}
			return -1
		}
		if !okb {
			return 1
		}
		spec := SortSpec{}
		if i < len(specs) {
			spec = specs[i]
		}
		if c := CompareWithSpec(va, vb, spec); c != 0 {
			return c
		}
	}
	return 0
}

// Compare implements the total order over all values: atomics before
// maps before arrays, atomics among themselves per CompareAtomics, maps
// by sorted key sequence then values, arrays element-wise.
func Compare(a, b *Value) int {
	ra, rb := fullRank(a.typ), fullRank(b.typ)
	if ra != rb {
		return cmpInt(ra, rb)
	}
	switch a.typ {
	case Map:
		return compareMaps(a.m, b.m)
	case Array:
		return compareArrays(a.arr, b.arr)
	}
	return CompareAtomics(a, b)
}

func fullRank(t Type) int {
	switch t {
	case Map:
		return 1
	case Array:
		return 2
	}
	return 0
}

func compareMaps(a, b *MapValue) int {
	ka, kb := a.Keys(), b.Keys()
	n := len(ka)
	if len(kb) < n {
		n = len(kb)
	}
	for i := 0; i < n; i++ {
		if c := strings.Compare(ka[i], kb[i]); c != 0 {
			return c
		}
		va, _ := a.Get(ka[i])
		vb, _ := b.Get(kb[i])
		if c := Compare(va, vb); c != 0 {
			return c
		}
	}
	return cmpInt(len(ka), len(kb))
}

func compareArrays(a, b []*Value) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return cmpInt(len(a), len(b))
}

// Equal reports whether two values are identical under the total order.
func Equal(a, b *Value) bool { return Compare(a, b) == 0 }

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
