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

package ir

import (
	"fmt"
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/irgraph/types/dims"
	"github.com/gomlx/irgraph/types/element"
	"github.com/gomlx/irgraph/types/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Minimal operation kinds for testing the core machinery without depending on
// the ops package.

type testParam struct {
	dtype element.ElementType
	shape dims.PartialShape
}

func (p *testParam) TypeName() string { return "Parameter" }
func (p *testParam) Opset() string    { return "opset1" }
func (p *testParam) ValidateAndInferTypes(n *Node) {
	Validatef(n, n.NumInputs() == 0, "Parameter takes no inputs, got %d", n.NumInputs())
	n.SetOutputType(0, p.dtype, p.shape)
}
func (p *testParam) Clone() Op                        { c := *p; return &c }
func (p *testParam) VisitAttributes(*AttrVisitor) bool { return false }

type testConst struct {
	value *tensor.Tensor
}

func (c *testConst) TypeName() string { return "Constant" }
func (c *testConst) Opset() string    { return "opset1" }
func (c *testConst) ValidateAndInferTypes(n *Node) {
	n.SetOutputType(0, c.value.ElementType(), c.value.Shape())
}
func (c *testConst) Clone() Op                        { cc := *c; return &cc }
func (c *testConst) VisitAttributes(*AttrVisitor) bool { return false }
func (c *testConst) Value() *tensor.Tensor            { return c.value }

// testAdd is element-wise with evaluation support for the constant folding
// tests.
type testAdd struct{}

func (a *testAdd) TypeName() string { return "Add" }
func (a *testAdd) Opset() string    { return "opset1" }
func (a *testAdd) ValidateAndInferTypes(n *Node) {
	Validatef(n, n.NumInputs() == 2, "Add takes 2 inputs, got %d", n.NumInputs())
	dtype, ok := element.Merge(n.Input(0).ElementType(), n.Input(1).ElementType())
	Validatef(n, ok, "element types %s and %s are incompatible",
		n.Input(0).ElementType(), n.Input(1).ElementType())
	shape, ok := dims.BroadcastMerge(n.Input(0).Shape(), n.Input(1).Shape())
	Validatef(n, ok, "shapes %s and %s do not broadcast", n.Input(0).Shape(), n.Input(1).Shape())
	n.SetOutputType(0, dtype, shape)
}
func (a *testAdd) Clone() Op                        { return &testAdd{} }
func (a *testAdd) VisitAttributes(*AttrVisitor) bool { return false }
func (a *testAdd) Evaluate(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	lhs, rhs := inputs[0].FlatInt64s(), inputs[1].FlatInt64s()
	if len(lhs) != len(rhs) {
		return nil, fmt.Errorf("evaluate: size mismatch %d vs %d", len(lhs), len(rhs))
	}
	sum := make([]int64, len(lhs))
	for i := range sum {
		sum[i] = lhs[i] + rhs[i]
	}
	return []*tensor.Tensor{tensor.FromInt64s(inputs[0].ElementType(), inputs[0].Dimensions(), sum)}, nil
}

type testResult struct{}

func (r *testResult) TypeName() string { return "Result" }
func (r *testResult) Opset() string    { return "opset1" }
func (r *testResult) ValidateAndInferTypes(n *Node) {
	Validatef(n, n.NumInputs() == 1, "Result takes 1 input, got %d", n.NumInputs())
	n.SetOutputType(0, n.Input(0).ElementType(), n.Input(0).Shape())
}
func (r *testResult) Clone() Op                        { return &testResult{} }
func (r *testResult) VisitAttributes(*AttrVisitor) bool { return false }

func newParam(dtype element.ElementType, shape dims.PartialShape) *Node {
	n := NewNode(&testParam{dtype: dtype, shape: shape})
	n.ValidateAndInferTypes()
	return n
}

func newAdd(lhs, rhs Output) *Node {
	n := NewNode(&testAdd{}, lhs, rhs)
	n.ValidateAndInferTypes()
	return n
}

func newResult(in Output) *Node {
	n := NewNode(&testResult{}, in)
	n.ValidateAndInferTypes()
	return n
}

func TestNodeNames(t *testing.T) {
	n := newParam(element.Float32, dims.MakeShape(2))
	require.Equal(t, fmt.Sprintf("Parameter_%d", n.Id()), n.UniqueName())
	require.True(t, n.NameIsAutoGenerated())
	require.Equal(t, n.UniqueName(), n.FriendlyName())

	n.SetFriendlyName("x")
	require.Equal(t, "x", n.FriendlyName())
	require.False(t, n.NameIsAutoGenerated())
	require.Panics(t, func() { n.SetFriendlyName("y") })
	n.SetFriendlyName("x") // same name is fine

	m := newParam(element.Float32, dims.MakeShape(2))
	require.Greater(t, m.Id(), n.Id())
}

func TestNodeConnections(t *testing.T) {
	a := newParam(element.Float32, dims.MakeShape(2, 3))
	b := newParam(element.Float32, dims.MakeShape(2, 3))
	sum := newAdd(a.Output(0), b.Output(0))

	require.Equal(t, 2, sum.NumInputs())
	require.Equal(t, a.Output(0), sum.Input(0))
	require.Equal(t, 1, a.NumConsumers())
	require.Equal(t, []Input{{Node: sum, Index: 0}}, a.Output(0).Consumers())

	require.Equal(t, element.Float32, sum.Output(0).ElementType())
	require.True(t, sum.Output(0).Shape().Equal(dims.MakeShape(2, 3)))

	// Re-pointing an input updates consumer bookkeeping on both sides.
	c := newParam(element.Float32, dims.MakeShape(2, 3))
	sum.SetInput(0, c.Output(0))
	require.Equal(t, 0, a.NumConsumers())
	require.Equal(t, []Input{{Node: sum, Index: 0}}, c.Output(0).Consumers())
}

func TestDescriptorIdentityAcrossRevalidation(t *testing.T) {
	a := newParam(element.Float32, dims.MakeShape(4))
	desc := a.OutputDescriptor(0)
	desc.AddName("input0")

	a.ValidateAndInferTypes()
	require.Same(t, desc, a.OutputDescriptor(0))
	require.True(t, a.OutputDescriptor(0).HasName("input0"))
}

func TestValidationError(t *testing.T) {
	a := newParam(element.Float32, dims.MakeShape(2))
	b := newParam(element.Int32, dims.MakeShape(2))
	err := exceptions.TryCatch[error](func() {
		newAdd(a.Output(0), b.Output(0))
	})
	require.Error(t, err)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Error(), "incompatible")

	// The failed node did not disturb its inputs.
	require.Equal(t, element.Float32, a.Output(0).ElementType())
}

func TestCloneWithNewInputs(t *testing.T) {
	a := newParam(element.Float32, dims.MakeShape(2))
	b := newParam(element.Float32, dims.MakeShape(2))
	sum := newAdd(a.Output(0), b.Output(0))
	sum.SetFriendlyName("sum")
	sum.RTInfo()["origin"] = "test"

	c := newParam(element.Float32, dims.MakeShape(1, 2))
	clone := sum.CloneWithNewInputs(c.Output(0), b.Output(0))
	require.NotSame(t, sum, clone)
	require.True(t, clone.NameIsAutoGenerated())
	require.Empty(t, clone.RTInfo())
	require.True(t, clone.Output(0).Shape().Equal(dims.MakeShape(1, 2)))

	require.Panics(t, func() { sum.CloneWithNewInputs(c.Output(0)) })
}

func TestAttrVisitorRoundTrip(t *testing.T) {
	axes := []int64{0, 2}
	mode := "index"
	flag := true

	rec := NewAttrRecorder()
	rec.Ints("axes", &axes)
	rec.String("mode", &mode)
	rec.Bool("flag", &flag)
	require.Equal(t, []string{"axes", "mode", "flag"}, rec.Names())

	var axes2 []int64
	var mode2 string
	var flag2 bool
	res := NewAttrRestorer(map[string]AttrValue{
		"axes": {Kind: AttrInts, Ints: []int64{0, 2}},
		"mode": {Kind: AttrString, Str: "index"},
		"flag": {Kind: AttrBool, Bool: true},
	})
	res.Ints("axes", &axes2)
	res.String("mode", &mode2)
	res.Bool("flag", &flag2)
	require.Equal(t, axes, axes2)
	require.Equal(t, mode, mode2)
	require.Equal(t, flag, flag2)

	require.Panics(t, func() { rec.Any("bad", struct{}{}) })
}

func buildDiamond() (*Function, *Node, *Node, *Node, *Node) {
	a := newParam(element.Float32, dims.MakeShape(2))
	b := newParam(element.Float32, dims.MakeShape(2))
	sum := newAdd(a.Output(0), b.Output(0))
	sum2 := newAdd(sum.Output(0), sum.Output(0))
	res := newResult(sum2.Output(0))
	f := NewFunction("diamond", []*Node{res}, []*Node{a, b})
	return f, a, b, sum, sum2
}

func TestOrderedOps(t *testing.T) {
	f, a, b, sum, sum2 := buildDiamond()
	ordered := f.OrderedOps()
	require.Len(t, ordered, 5)

	pos := make(map[*Node]int)
	for i, n := range ordered {
		pos[n] = i
	}
	require.Less(t, pos[a], pos[sum])
	require.Less(t, pos[b], pos[sum])
	require.Less(t, pos[sum], pos[sum2])
	// Ties are broken by input position: a feeds port 0, b port 1.
	require.Less(t, pos[a], pos[b])

	require.NoError(t, f.Validate())
}

// Two structurally identical graphs built in different node allocation orders
// must traverse in the same structural order.
func TestOrderedOpsStructureDetermined(t *testing.T) {
	build := func(reversed bool) *Function {
		var a, b *Node
		if reversed {
			b = newParam(element.Float32, dims.MakeShape(2))
			a = newParam(element.Float32, dims.MakeShape(2))
		} else {
			a = newParam(element.Float32, dims.MakeShape(2))
			b = newParam(element.Float32, dims.MakeShape(2))
		}
		sum := newAdd(a.Output(0), b.Output(0))
		res := newResult(sum.Output(0))
		return NewFunction("f", []*Node{res}, []*Node{a, b})
	}
	typeNames := func(f *Function) []string {
		var out []string
		for i, n := range f.OrderedOps() {
			out = append(out, fmt.Sprintf("%d:%s", i, n.TypeName()))
		}
		return out
	}
	require.Equal(t, typeNames(build(false)), typeNames(build(true)))

	// The first two nodes are the parameters in input-port order, whatever
	// order they were allocated in.
	f := build(true)
	ordered := f.OrderedOps()
	require.Same(t, f.Parameters()[0], ordered[0])
	require.Same(t, f.Parameters()[1], ordered[1])
}

func TestControlDepsOrdering(t *testing.T) {
	a := newParam(element.Float32, dims.MakeShape(2))
	b := newParam(element.Float32, dims.MakeShape(2))
	sum := newAdd(a.Output(0), a.Output(0))
	sum.AddControlDep(b)
	sum.AddControlDep(b) // duplicate is ignored
	require.Len(t, sum.ControlDeps(), 1)

	res := newResult(sum.Output(0))
	f := NewFunction("f", []*Node{res}, []*Node{a, b})
	pos := make(map[*Node]int)
	for i, n := range f.OrderedOps() {
		pos[n] = i
	}
	require.Less(t, pos[b], pos[sum])

	sum.RemoveControlDep(b)
	require.Empty(t, sum.ControlDeps())
}

func TestValidateUndeclaredParameter(t *testing.T) {
	a := newParam(element.Float32, dims.MakeShape(2))
	b := newParam(element.Float32, dims.MakeShape(2))
	sum := newAdd(a.Output(0), b.Output(0))
	res := newResult(sum.Output(0))
	f := NewFunction("f", []*Node{res}, []*Node{a}) // b missing
	err := f.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "not declared")
}

func TestReplaceNode(t *testing.T) {
	f, a, b, sum, sum2 := buildDiamond()
	sum.SetFriendlyName("first_add")
	sum.RTInfo()["fused"] = true

	replacement := newAdd(b.Output(0), a.Output(0))
	f.ReplaceNode(sum, replacement)

	require.Equal(t, 0, sum.NumConsumers())
	require.Equal(t, replacement.Output(0), sum2.Input(0))
	require.Equal(t, replacement.Output(0), sum2.Input(1))
	// Name and runtime info carry over.
	require.Equal(t, "first_add", replacement.FriendlyName())
	require.Equal(t, true, replacement.RTInfo()["fused"])
	require.NoError(t, f.Validate())
}

func TestReplaceOutput(t *testing.T) {
	a := newParam(element.Float32, dims.MakeShape(2))
	b := newParam(element.Float32, dims.MakeShape(2))
	sum := newAdd(a.Output(0), a.Output(0))

	ReplaceOutput(a.Output(0), b.Output(0))
	require.Equal(t, b.Output(0), sum.Input(0))
	require.Equal(t, b.Output(0), sum.Input(1))
	require.Equal(t, 0, a.NumConsumers())
}

func TestReplaceNodeAsResult(t *testing.T) {
	a := newParam(element.Float32, dims.MakeShape(2))
	res := newResult(a.Output(0))
	f := NewFunction("f", []*Node{res}, []*Node{a})

	res2 := newResult(a.Output(0))
	f.ReplaceNode(res, res2)
	require.Same(t, res2, f.Results()[0])
}

func TestReplaceNodeAsParameter(t *testing.T) {
	a := newParam(element.Float32, dims.MakeShape(2))
	b := newParam(element.Float32, dims.MakeShape(2))
	sum := newAdd(a.Output(0), b.Output(0))
	res := newResult(sum.Output(0))
	f := NewFunction("f", []*Node{res}, []*Node{a, b})

	// Replacing a parameter updates both its consumers and its signature slot.
	a2 := newParam(element.Float32, dims.MakeShape(2))
	f.ReplaceNode(a, a2)
	require.Same(t, a2, f.Parameters()[0])
	require.Equal(t, a2.Output(0), sum.Input(0))
	require.Equal(t, 0, f.ParameterIndex(a2))
	require.Equal(t, -1, f.ParameterIndex(a))
	require.NoError(t, f.Validate())
}

func TestConstantValueOf(t *testing.T) {
	one := NewNode(&testConst{value: tensor.FromInt64s(element.Int32, []int64{2}, []int64{1, 2})})
	one.ValidateAndInferTypes()
	two := NewNode(&testConst{value: tensor.FromInt64s(element.Int32, []int64{2}, []int64{10, 20})})
	two.ValidateAndInferTypes()
	sum := newAdd(one.Output(0), two.Output(0))

	value, ok := ConstantValueOf(sum.Output(0))
	require.True(t, ok)
	require.Equal(t, []int64{11, 22}, value.FlatInt64s())

	// A parameter in the feeding sub-graph blocks resolution.
	p := newParam(element.Int32, dims.MakeShape(2))
	sum2 := newAdd(one.Output(0), p.Output(0))
	_, ok = ConstantValueOf(sum2.Output(0))
	require.False(t, ok)

	// Direct constant.
	value, ok = ConstantValueOf(one.Output(0))
	require.True(t, ok)
	require.Equal(t, []int64{1, 2}, value.FlatInt64s())
}

func TestFunctionBasics(t *testing.T) {
	f, a, _, _, _ := buildDiamond()
	require.Equal(t, "diamond", f.Name())
	f.SetName("renamed")
	require.Equal(t, "renamed", f.Name())
	require.NotEqual(t, f.DocID().String(), NewFunction("g", nil, nil).DocID().String())
	require.Equal(t, 0, f.ParameterIndex(a))
	require.Equal(t, -1, f.ResultIndex(a))
}
