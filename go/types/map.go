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

import "sort"

// MapValue is a string-keyed collection of values with its keys kept in
// sorted order. Rows, group tuples and the response envelope are all
// MapValues. Keeping the keys sorted makes map comparison, serialization
// and JSON rendering deterministic.
type MapValue struct {
	m    map[string]*Value
	keys []string
}

func NewMapValue() *MapValue {
	return &MapValue{m: make(map[string]*Value)}
}

func (mv *MapValue) Len() int { return len(mv.keys) }

// Keys returns the field names in sorted order. The slice is shared;
// callers must not modify it.
func (mv *MapValue) Keys() []string { return mv.keys }

func (mv *MapValue) Get(name string) (*Value, bool) {
	v, ok := mv.m[name]
	return v, ok
}

// Put adds or replaces a field.
func (mv *MapValue) Put(name string, v *Value) {
	if _, ok := mv.m[name]; !ok {
		i := sort.SearchStrings(mv.keys, name)
		mv.keys = append(mv.keys, "")
		copy(mv.keys[i+1:], mv.keys[i:])
		mv.keys[i] = name
	}
	mv.m[name] = v
}

func (mv *MapValue) Delete(name string) {
	if _, ok := mv.m[name]; !ok {
		return
	}
	delete(mv.m, name)
	i := sort.SearchStrings(mv.keys, name)
	mv.keys = append(mv.keys[:i], mv.keys[i+1:]...)
}

func (mv *MapValue) Clone() *MapValue {
	c := &MapValue{
		m:    make(map[string]*Value, len(mv.m)),
		keys: append([]string(nil), mv.keys...),
	}
	for k, v := range mv.m {
		c.m[k] = v.Clone()
	}
	return c
}

// ConvertEmptyToNull rewrites Empty fields as Null in place. Rows leave
// the engine without Empty in them; Empty only exists while index and
// path expressions are being evaluated.
func (mv *MapValue) ConvertEmptyToNull() {
	for k, v := range mv.m {
		if v.IsEmpty() {
			mv.m[k] = NullValue()
		}
	}
}
