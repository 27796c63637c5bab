/*
 *	Copyright 2023 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

package ops

import (
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/irgraph/ir"
	"github.com/gomlx/irgraph/types/dims"
	"github.com/gomlx/irgraph/types/element"
	"github.com/gomlx/irgraph/types/tensor"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	for _, name := range []string{
		"Parameter", "Constant", "Result", "Add", "Relu", "Reshape", "Slice", "Reverse", "LSTMCell",
	} {
		require.True(t, Registered(name), "missing registration for %s", name)
		op, err := Create(name)
		require.NoError(t, err)
		require.Equal(t, name, op.TypeName())
	}
	_, err := Create("NoSuchOp")
	require.Error(t, err)
}

func TestParameterAttributes(t *testing.T) {
	p := &Parameter{Dtype: element.Float32, Shape: dims.MakeShapeOf(dims.Dim(1), dims.DynamicDim(), dims.DimRange(2, 5))}
	rec := ir.NewAttrRecorder()
	require.True(t, p.VisitAttributes(rec))
	dtypeAttr, _ := rec.Value("element_type")
	require.Equal(t, "FP32", dtypeAttr.Str)
	shapeAttr, _ := rec.Value("shape")
	require.Equal(t, "1,-1,2..5", shapeAttr.Str)

	restored := &Parameter{}
	res := ir.NewAttrRestorer(map[string]ir.AttrValue{
		"element_type": {Kind: ir.AttrString, Str: "FP32"},
		"shape":        {Kind: ir.AttrString, Str: "1,-1,2..5"},
	})
	require.True(t, restored.VisitAttributes(res))
	require.Equal(t, element.Float32, restored.Dtype)
	require.True(t, restored.Shape.Equal(p.Shape))
}

func TestConstantAndEvaluate(t *testing.T) {
	payload := tensor.FromInt64s(element.Int32, []int64{2}, []int64{7, 8})
	n := NewConstant(payload)
	require.True(t, n.Output(0).Shape().Equal(dims.MakeShape(2)))
	require.Equal(t, element.Int32, n.Output(0).ElementType())

	value, ok := ir.ConstantValueOf(n.Output(0))
	require.True(t, ok)
	require.True(t, value.Equal(payload))
}

func TestAddBroadcast(t *testing.T) {
	a := NewParameter(element.Float32, dims.MakeShape(4, 1, 3))
	b := NewParameter(element.Float32, dims.MakeShape(5, 3))
	sum := NewAdd(a.Output(0), b.Output(0))
	require.True(t, sum.Output(0).Shape().Equal(dims.MakeShape(4, 5, 3)))

	// Dynamic element type defers to the static one.
	d := NewParameter(element.Dynamic, dims.MakeShape(4, 5, 3))
	sum2 := NewAdd(sum.Output(0), d.Output(0))
	require.Equal(t, element.Float32, sum2.Output(0).ElementType())

	// A lower-rank operand is right-aligned.
	e := NewParameter(element.Float32, dims.MakeShape(4, 2, 3))
	g := NewParameter(element.Float32, dims.MakeShape(2, 3))
	sum3 := NewAdd(e.Output(0), g.Output(0))
	require.True(t, sum3.Output(0).Shape().Equal(dims.MakeShape(4, 2, 3)))

	err := exceptions.TryCatch[error](func() {
		c := NewParameter(element.Float32, dims.MakeShape(2, 4))
		NewAdd(a.Output(0), c.Output(0))
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "do not broadcast")
}

func TestAddConstantFold(t *testing.T) {
	lhs := ConstInt64s(1, 2, 3)
	rhs := ConstInt64s(10, 20, 30)
	sum := NewAdd(lhs.Output(0), rhs.Output(0))
	value, ok := ir.ConstantValueOf(sum.Output(0))
	require.True(t, ok)
	require.Equal(t, []int64{11, 22, 33}, value.FlatInt64s())
}

func TestReluAndResult(t *testing.T) {
	x := NewParameter(element.Float16, dims.MakeShape(8))
	relu := NewRelu(x.Output(0))
	require.Equal(t, element.Float16, relu.Output(0).ElementType())
	require.True(t, relu.Output(0).Shape().Equal(dims.MakeShape(8)))

	result := NewResult(relu.Output(0))
	require.True(t, result.Output(0).Shape().Equal(dims.MakeShape(8)))
}

func TestReshape(t *testing.T) {
	data := NewParameter(element.Float32, dims.MakeShape(2, 3, 4))

	n := NewReshape(data.Output(0), ConstInt64s(6, 4).Output(0))
	require.True(t, n.Output(0).Shape().Equal(dims.MakeShape(6, 4)))

	// -1 entry inferred from the static data size.
	n = NewReshape(data.Output(0), ConstInt64s(2, -1).Output(0))
	require.True(t, n.Output(0).Shape().Equal(dims.MakeShape(2, 12)))

	// Unknown pattern values with a known pattern length: dynamic dims, known
	// rank.
	pattern := NewParameter(element.Int64, dims.MakeShape(3))
	n = NewReshape(data.Output(0), pattern.Output(0))
	require.True(t, n.Output(0).Shape().RankIsStatic())
	require.Equal(t, 3, n.Output(0).Shape().Rank())
	require.True(t, n.Output(0).Shape().IsDynamic())

	// Two -1 entries are rejected.
	err := exceptions.TryCatch[error](func() {
		NewReshape(data.Output(0), ConstInt64s(-1, -1).Output(0))
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "at most one -1")
}

func TestLSTMCell(t *testing.T) {
	const (
		batch      = 2
		inputSize  = 3
		hiddenSize = 4
	)
	x := NewParameter(element.Float32, dims.MakeShape(batch, inputSize))
	h := NewParameter(element.Float32, dims.MakeShape(batch, hiddenSize))
	c := NewParameter(element.Float32, dims.MakeShape(batch, hiddenSize))
	w := NewParameter(element.Float32, dims.MakeShape(4*hiddenSize, inputSize))
	r := NewParameter(element.Float32, dims.MakeShape(4*hiddenSize, hiddenSize))
	b := NewParameter(element.Float32, dims.MakeShape(4*hiddenSize))
	p := NewParameter(element.Float32, dims.MakeShape(3*hiddenSize))

	cell := NewLSTMCell(hiddenSize,
		x.Output(0), h.Output(0), c.Output(0), w.Output(0), r.Output(0), b.Output(0), p.Output(0))
	require.Equal(t, 2, cell.NumOutputs())
	require.True(t, cell.Output(0).Shape().Equal(dims.MakeShape(batch, hiddenSize)))
	require.True(t, cell.Output(1).Shape().Equal(dims.MakeShape(batch, hiddenSize)))
	require.Equal(t, 7, cell.NumInputs())

	// Without peephole weights.
	cell6 := NewLSTMCell(hiddenSize,
		x.Output(0), h.Output(0), c.Output(0), w.Output(0), r.Output(0), b.Output(0))
	require.Equal(t, 6, cell6.NumInputs())

	err := exceptions.TryCatch[error](func() {
		NewLSTMCell(hiddenSize, x.Output(0), h.Output(0))
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "6 or 7 inputs")
}

func TestShapeAttrRoundTrip(t *testing.T) {
	for _, shape := range []dims.PartialShape{
		dims.MakeShape(),
		dims.MakeShape(1, 3, 224, 224),
		dims.MakeShapeOf(dims.DynamicDim(), dims.Dim(3)),
		dims.MakeShapeOf(dims.DimRange(2, 5), dims.DimRange(7, -1)),
		dims.DynamicRankShape(),
	} {
		parsed, err := parseShapeAttr(formatShapeAttr(shape))
		require.NoError(t, err)
		require.True(t, parsed.Equal(shape), "round trip of %s gave %s", shape, parsed)
	}
}
