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

// Package types implements the tagged value model shared by rows, bind
// variables and query results: thirteen value kinds, an ordered map value,
// and the total order the query engine sorts and groups by.
package types

import (
	"time"

	"github.com/cockroachdb/apd/v3"

	"lodestone.io/lodestone/go/ld/lderrors"
)

// Type identifies the kind of a Value. The numeric values are the
// type tags used on the wire and must not change.
type Type int8

const (
	Array     Type = 0
	Binary    Type = 1
	Boolean   Type = 2
	Double    Type = 3
	Integer   Type = 4
	Long      Type = 5
	Map       Type = 6
	String    Type = 7
	Timestamp Type = 8
	Number    Type = 9
	JSONNull  Type = 10
	Null      Type = 11
	Empty     Type = 12
)

var typeNames = [...]string{
	"ARRAY", "BINARY", "BOOLEAN", "DOUBLE", "INTEGER", "LONG", "MAP",
	"STRING", "TIMESTAMP", "NUMBER", "JSON_NULL", "NULL", "EMPTY",
}

func (t Type) String() string {
	if t >= 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "UNKNOWN"
}

// NumberContext is the decimal context for all Number arithmetic.
// Precision follows the server's decimal columns.
var NumberContext = apd.BaseContext.WithPrecision(38)

// Value is a single tagged value. Values are immutable once built;
// composite constructors take ownership of their arguments. A nil
// *Value is not a valid value: engine registers use nil to mean
// "uninitialized", so Null values must be represented explicitly.
type Value struct {
	typ Type
	n   int64 // Integer and Long
	f   float64
	b   bool
	s   string
	raw []byte
	dec *apd.Decimal
	ts  time.Time
	arr []*Value
	m   *MapValue
}

func NewInteger(v int32) *Value     { return &Value{typ: Integer, n: int64(v)} }
func NewLong(v int64) *Value        { return &Value{typ: Long, n: v} }
func NewDouble(v float64) *Value    { return &Value{typ: Double, f: v} }
func NewBoolean(v bool) *Value      { return &Value{typ: Boolean, b: v} }
func NewString(v string) *Value     { return &Value{typ: String, s: v} }
func NewBinary(v []byte) *Value     { return &Value{typ: Binary, raw: v} }
func NewTimestamp(v time.Time) *Value {
	return &Value{typ: Timestamp, ts: v.UTC()}
}
func NewNumber(v *apd.Decimal) *Value { return &Value{typ: Number, dec: v} }
func NewArray(elems []*Value) *Value  { return &Value{typ: Array, arr: elems} }
func NewMap(m *MapValue) *Value       { return &Value{typ: Map, m: m} }

func NullValue() *Value     { return &Value{typ: Null} }
func JSONNullValue() *Value { return &Value{typ: JSONNull} }
func EmptyValue() *Value    { return &Value{typ: Empty} }

// NewNumberFromString parses a decimal literal into a Number value.
func NewNumberFromString(s string) (*Value, error) {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return nil, lderrors.Errorf(lderrors.IllegalArgument, "invalid decimal value %q: %v", s, err)
	}
	return NewNumber(d), nil
}

func (v *Value) Type() Type { return v.typ }

func (v *Value) IsNull() bool     { return v.typ == Null }
func (v *Value) IsJSONNull() bool { return v.typ == JSONNull }
func (v *Value) IsEmpty() bool    { return v.typ == Empty }

// IsSpecial reports whether v is one of the three non-data values that
// sort specs place as a block (Null, JSONNull, Empty).
func (v *Value) IsSpecial() bool {
	return v.typ == Null || v.typ == JSONNull || v.typ == Empty
}

func (v *Value) IsNumeric() bool {
	switch v.typ {
	case Integer, Long, Double, Number:
		return true
	}
	return false
}

func (v *Value) IsAtomic() bool { return v.typ != Map && v.typ != Array }

// Accessors assume the corresponding type; they return the zero value
// otherwise. Callers that cannot prove the type use the As* converters.

func (v *Value) Int() int32            { return int32(v.n) }
func (v *Value) Long() int64           { return v.n }
func (v *Value) Float() float64        { return v.f }
func (v *Value) Bool() bool            { return v.b }
func (v *Value) Str() string           { return v.s }
func (v *Value) Bytes() []byte         { return v.raw }
func (v *Value) Time() time.Time       { return v.ts }
func (v *Value) Decimal() *apd.Decimal { return v.dec }
func (v *Value) Values() []*Value      { return v.arr }
func (v *Value) Map() *MapValue        { return v.m }

// Len returns the element count of an Array or Map value and 0 for
// anything else.
func (v *Value) Len() int {
	switch v.typ {
	case Array:
		return len(v.arr)
	case Map:
		return v.m.Len()
	}
	return 0
}

// AsInt64 converts an Integer or Long to int64.
func (v *Value) AsInt64() (int64, error) {
	switch v.typ {
	case Integer, Long:
		return v.n, nil
	}
	return 0, lderrors.Errorf(lderrors.IllegalArgument, "cannot convert %s value to long", v.typ)
}

// AsFloat64 converts any numeric value except Number to float64.
func (v *Value) AsFloat64() (float64, error) {
	switch v.typ {
	case Integer, Long:
		return float64(v.n), nil
	case Double:
		return v.f, nil
	}
	return 0, lderrors.Errorf(lderrors.IllegalArgument, "cannot convert %s value to double", v.typ)
}

// AsDecimal converts any numeric value to an arbitrary-precision
// decimal. The result is always a fresh decimal the caller may mutate.
func (v *Value) AsDecimal() (*apd.Decimal, error) {
	switch v.typ {
	case Integer, Long:
		return apd.New(v.n, 0), nil
	case Double:
		d, err := new(apd.Decimal).SetFloat64(v.f)
		if err != nil {
			return nil, lderrors.Errorf(lderrors.IllegalArgument, "cannot convert double %v to number: %v", v.f, err)
		}
		return d, nil
	case Number:
		return new(apd.Decimal).Set(v.dec), nil
	}
	return nil, lderrors.Errorf(lderrors.IllegalArgument, "cannot convert %s value to number", v.typ)
}

// Clone returns a deep copy of v.
func (v *Value) Clone() *Value {
	if v == nil {
		return nil
	}
	c := *v
	switch v.typ {
	case Binary:
		c.raw = append([]byte(nil), v.raw...)
	case Number:
		c.dec = new(apd.Decimal).Set(v.dec)
	case Array:
		c.arr = make([]*Value, len(v.arr))
		for i, e := range v.arr {
			c.arr[i] = e.Clone()
		}
	case Map:
		c.m = v.m.Clone()
	}
	return &c
}
