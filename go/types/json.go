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
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// MarshalJSON renders the value as JSON. Timestamps render as RFC 3339
// strings, binaries as base64 strings, Numbers as bare decimal
// literals, and Null, JSONNull and Empty all render as null.
func (v *Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v *Value) writeJSON(buf *bytes.Buffer) error {
	switch v.typ {
	case Integer, Long:
		buf.WriteString(strconv.FormatInt(v.n, 10))
	case Double:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			// Not representable in JSON; render as a string.
			buf.WriteString(strconv.Quote(strconv.FormatFloat(v.f, 'g', -1, 64)))
			break
		}
		buf.WriteString(strconv.FormatFloat(v.f, 'g', -1, 64))
	case Number:
		buf.WriteString(v.dec.String())
	case Boolean:
		buf.WriteString(strconv.FormatBool(v.b))
	case String:
		b, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(b)
	case Timestamp:
		buf.WriteString(strconv.Quote(v.ts.Format(time.RFC3339Nano)))
	case Binary:
		buf.WriteString(strconv.Quote(base64.StdEncoding.EncodeToString(v.raw)))
	case Null, JSONNull, Empty:
		buf.WriteString("null")
	case Array:
		buf.WriteByte('[')
		for i, e := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := e.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Map:
		return v.m.writeJSON(buf)
	}
	return nil
}

// String renders the value as JSON for diagnostics.
func (v *Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return "<invalid>"
	}
	return string(b)
}

// MarshalJSON renders the map as a JSON object with keys in sorted
// order.
func (mv *MapValue) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := mv.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (mv *MapValue) writeJSON(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	for i, k := range mv.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		if err := mv.m[k].writeJSON(buf); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func (mv *MapValue) String() string {
	b, err := mv.MarshalJSON()
	if err != nil {
		return "<invalid>"
	}
	return string(b)
}

// FromJSON parses a JSON document into a value. Whole numbers that fit
// become Long, other numeric literals become Number so no precision is
// lost, and null becomes JSONNull.
func FromJSON(data []byte) (*Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return fromJSONValue(doc)
}

func fromJSONValue(doc any) (*Value, error) {
	switch d := doc.(type) {
	case nil:
		return JSONNullValue(), nil
	case bool:
		return NewBoolean(d), nil
	case string:
		return NewString(d), nil
	case json.Number:
		if n, err := d.Int64(); err == nil {
			return NewLong(n), nil
		}
		return NewNumberFromString(d.String())
	case []any:
		elems := make([]*Value, 0, len(d))
		for _, e := range d {
			v, err := fromJSONValue(e)
			if err != nil {
				return nil, err
			}
			elems = append(elems, v)
		}
		return NewArray(elems), nil
	case map[string]any:
		mv := NewMapValue()
		for k, e := range d {
			v, err := fromJSONValue(e)
			if err != nil {
				return nil, err
			}
			mv.Put(k, v)
		}
		return NewMap(mv), nil
	}
	return nil, fmt.Errorf("unsupported JSON value %T", doc)
}
