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

package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"lodestone.io/lodestone/go/ld/lderrors"
	"lodestone.io/lodestone/go/types"
	"lodestone.io/lodestone/go/wire"
)

func writeBase(w *wire.Writer, resultReg int) {
	w.WriteInt(resultReg)
	w.WriteInt(0) // state position
	w.WriteInt(0)
	w.WriteInt(0)
	w.WriteInt(0)
	w.WriteInt(0)
}

func writeVarRef(w *wire.Writer, reg int, name string) {
	w.WriteUint8(byte(KindVarRef))
	writeBase(w, reg)
	w.WriteString(name)
}

func writeNilIter(w *wire.Writer) {
	w.WriteUint8(0xFF)
}

func TestParsePlan(t *testing.T) {
	w := wire.NewWriter()

	// SELECT id FROM ... OFFSET 5, compiled to an SFW over a Receive
	w.WriteUint8(byte(KindSFW))
	writeBase(w, 0)
	w.WritePackedInt(1) // column names
	w.WriteString("id")
	w.WriteInt(-1) // no grouping
	w.WriteString("$f")
	w.WriteBool(false) // not select-star

	w.WritePackedInt(1) // column iterators
	w.WriteUint8(byte(KindFieldStep))
	writeBase(w, 3)
	writeVarRef(w, 1, "$f")
	w.WriteString("id")

	w.WriteUint8(byte(KindReceive)) // from iterator
	writeBase(w, 1)
	w.WriteInt16(int16(AllPartitions))
	w.WritePackedInt(0) // no sort fields
	w.WritePackedInt(0) // no sort specs
	w.WritePackedInt(1) // primary-key fields
	w.WriteString("pk")

	w.WriteUint8(byte(KindConst)) // offset
	writeBase(w, 2)
	require.NoError(t, w.WriteFieldValue(types.NewInteger(5)))
	writeNilIter(w) // no limit

	w.WriteInt(5) // iterator count
	w.WriteInt(4) // register count
	w.WriteInt(1) // external variables
	w.WriteString("$v")
	w.WriteInt(0)

	plan, err := ParsePlan(w.Bytes())
	require.NoError(t, err)
	require.Equal(t, 5, plan.NumIterators)
	require.Equal(t, 4, plan.NumRegisters)
	require.Equal(t, map[string]int{"$v": 0}, plan.VariableToIDs)

	sfw, ok := plan.Root.(*sfwIter)
	require.True(t, ok)
	require.Equal(t, 0, sfw.ResultReg())
	require.Equal(t, []string{"id"}, sfw.columnNames)
	require.Equal(t, -1, sfw.numGBColumns)
	require.Equal(t, "$f", sfw.fromVarName)
	require.Nil(t, sfw.limitIter)
	require.Equal(t, KindConst, sfw.offsetIter.Kind())

	fs, ok := sfw.columnIters[0].(*fieldStepIter)
	require.True(t, ok)
	require.Equal(t, "id", fs.field)
	require.Equal(t, KindVarRef, fs.input.Kind())
	require.Equal(t, 1, fs.input.ResultReg())

	recv, ok := sfw.fromIter.(*receiveIter)
	require.True(t, ok)
	require.Equal(t, AllPartitions, recv.distributionKind)
	require.Empty(t, recv.sortFields)
	require.Equal(t, []string{"pk"}, recv.primKeyFields)
}

func TestParsePlanEmpty(t *testing.T) {
	plan, err := ParsePlan(nil)
	require.NoError(t, err)
	require.Nil(t, plan)

	// a plan holding only the absent-iterator marker runs entirely at
	// the service
	plan, err = ParsePlan([]byte{0xFF})
	require.NoError(t, err)
	require.NotNil(t, plan)
	require.Nil(t, plan.Root)
}

func TestParsePlanUnknownKind(t *testing.T) {
	w := wire.NewWriter()
	w.WriteUint8(99)
	writeBase(w, 0)
	_, err := ParsePlan(w.Bytes())
	require.Error(t, err)
	require.Equal(t, lderrors.IllegalArgument, lderrors.CodeOf(err))
}

func TestDeserializeSortIter(t *testing.T) {
	w := wire.NewWriter()
	w.WriteUint8(byte(KindSorting2))
	writeBase(w, 0)
	writeVarRef(w, 1, "$f")
	w.WritePackedInt(1)
	w.WriteString("age")
	w.WritePackedInt(1)
	w.WriteBool(true) // descending
	w.WriteBool(true) // nulls first
	w.WriteBool(false)

	r := wire.NewReader(w.Bytes())
	it, err := deserializeIter(r)
	require.NoError(t, err)

	s, ok := it.(*sortIter)
	require.True(t, ok)
	require.Equal(t, []string{"age"}, s.sortFields)
	require.Equal(t, []types.SortSpec{{Descending: true, NullsFirst: true}}, s.sortSpecs)
	require.False(t, s.countMemory)
}

func TestDeserializeGroupIter(t *testing.T) {
	w := wire.NewWriter()
	w.WriteUint8(byte(KindGroup))
	writeBase(w, 0)
	writeVarRef(w, 1, "$f")
	w.WriteInt(1) // grouping columns
	w.WritePackedInt(2)
	w.WriteString("k")
	w.WriteString("total")
	w.WriteInt16(fnSum)
	w.WriteBool(false) // distinct
	w.WriteBool(true)  // remove produced result
	w.WriteBool(true)  // count memory

	r := wire.NewReader(w.Bytes())
	it, err := deserializeIter(r)
	require.NoError(t, err)

	g, ok := it.(*groupIter)
	require.True(t, ok)
	require.Equal(t, 1, g.numGBColumns)
	require.Equal(t, []string{"k", "total"}, g.columnNames)
	require.Equal(t, []int{fnSum}, g.aggrFuncs)
	require.False(t, g.isDistinct)
	require.True(t, g.removeProducedResult)
	require.True(t, g.countMemory)
}

func TestDeserializeExtVarIter(t *testing.T) {
	w := wire.NewWriter()
	w.WriteUint8(byte(KindExtVar))
	writeBase(w, 2)
	w.WriteString("$limit")
	w.WriteInt(3)

	r := wire.NewReader(w.Bytes())
	it, err := deserializeIter(r)
	require.NoError(t, err)

	ev, ok := it.(*extVarIter)
	require.True(t, ok)
	require.Equal(t, "$limit", ev.name)
	require.Equal(t, 3, ev.id)
}

func TestDeserializeArithOpRejectsBadFuncCode(t *testing.T) {
	w := wire.NewWriter()
	w.WriteUint8(byte(KindArithOp))
	writeBase(w, 0)
	w.WriteInt16(7)

	r := wire.NewReader(w.Bytes())
	_, err := deserializeIter(r)
	require.Error(t, err)
	require.Equal(t, lderrors.IllegalArgument, lderrors.CodeOf(err))
}

func TestDeserializeReceiveRejectsBadDistribution(t *testing.T) {
	w := wire.NewWriter()
	w.WriteUint8(byte(KindReceive))
	writeBase(w, 0)
	w.WriteInt16(9)

	r := wire.NewReader(w.Bytes())
	_, err := deserializeIter(r)
	require.Error(t, err)
	require.Equal(t, lderrors.BadProtocolMessage, lderrors.CodeOf(err))
}
