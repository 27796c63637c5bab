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
	"strconv"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/irgraph/ir"
	"github.com/gomlx/irgraph/types/dims"
	"github.com/gomlx/irgraph/types/element"
	"github.com/gomlx/irgraph/types/tensor"
	"github.com/pkg/errors"
)

// formatShapeAttr renders a partial shape as the serialized shape attribute:
// comma-joined dimensions, -1 for an unbounded dynamic dimension,
// "min..max" for a bounded range, "..." for dynamic rank.
func formatShapeAttr(shape dims.PartialShape) string {
	if !shape.RankIsStatic() {
		return "..."
	}
	parts := make([]string, shape.Rank())
	for i := range parts {
		d := shape.Dim(i)
		switch {
		case d.IsStatic():
			parts[i] = strconv.FormatInt(d.Length(), 10)
		case d.MinLength() == 0 && !d.HasUpperBound():
			parts[i] = "-1"
		case !d.HasUpperBound():
			parts[i] = strconv.FormatInt(d.MinLength(), 10) + ".."
		default:
			parts[i] = strconv.FormatInt(d.MinLength(), 10) + ".." + strconv.FormatInt(d.MaxLength(), 10)
		}
	}
	return strings.Join(parts, ",")
}

func parseShapeAttr(text string) (dims.PartialShape, error) {
	if text == "..." {
		return dims.DynamicRankShape(), nil
	}
	if text == "" {
		return dims.MakeShape(), nil
	}
	parts := strings.Split(text, ",")
	dimensions := make([]dims.Dimension, len(parts))
	for i, part := range parts {
		part = strings.TrimSpace(part)
		switch {
		case part == "-1":
			dimensions[i] = dims.DynamicDim()
		case strings.Contains(part, ".."):
			bounds := strings.SplitN(part, "..", 2)
			minVal, err := strconv.ParseInt(bounds[0], 10, 64)
			if err != nil {
				return dims.PartialShape{}, err
			}
			maxVal := int64(-1)
			if bounds[1] != "" {
				maxVal, err = strconv.ParseInt(bounds[1], 10, 64)
				if err != nil {
					return dims.PartialShape{}, err
				}
			}
			dimensions[i] = dims.DimRange(minVal, maxVal)
		default:
			value, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return dims.PartialShape{}, err
			}
			dimensions[i] = dims.Dim(value)
		}
	}
	return dims.MakeShapeOf(dimensions...), nil
}

// Parameter is a graph input: its output type and shape are declared, not
// inferred.
type Parameter struct {
	Dtype element.ElementType
	Shape dims.PartialShape
}

// NewParameter builds a validated Parameter node.
func NewParameter(dtype element.ElementType, shape dims.PartialShape) *ir.Node {
	n := ir.NewNode(&Parameter{Dtype: dtype, Shape: shape})
	n.ValidateAndInferTypes()
	return n
}

func (p *Parameter) TypeName() string { return "Parameter" }
func (p *Parameter) Opset() string    { return "opset1" }

func (p *Parameter) ValidateAndInferTypes(n *ir.Node) {
	ir.Validatef(n, n.NumInputs() == 0, "Parameter takes no inputs, got %d", n.NumInputs())
	n.SetOutputType(0, p.Dtype, p.Shape)
}

func (p *Parameter) Clone() ir.Op {
	return &Parameter{Dtype: p.Dtype, Shape: p.Shape.Clone()}
}

func (p *Parameter) VisitAttributes(v *ir.AttrVisitor) bool {
	if v.Restoring() {
		var dtypeName, shapeText string
		v.String("element_type", &dtypeName)
		v.String("shape", &shapeText)
		if dtypeName != "" {
			dtype, ok := element.FromPrecisionName(dtypeName)
			if !ok {
				exceptions.Panicf("Parameter: unknown element_type %q", dtypeName)
			}
			p.Dtype = dtype
		}
		shape, err := parseShapeAttr(shapeText)
		if err != nil {
			exceptions.Panicf("Parameter: bad shape attribute %q: %v", shapeText, err)
		}
		p.Shape = shape
		return true
	}
	dtypeName := p.Dtype.PrecisionName()
	shapeText := formatShapeAttr(p.Shape)
	v.String("element_type", &dtypeName)
	v.String("shape", &shapeText)
	return true
}

// Constant carries a literal tensor payload.
type Constant struct {
	Payload *tensor.Tensor
}

// NewConstant builds a validated Constant node around the payload.
func NewConstant(payload *tensor.Tensor) *ir.Node {
	n := ir.NewNode(&Constant{Payload: payload})
	n.ValidateAndInferTypes()
	return n
}

// ConstInt64s is shorthand for a 1-D int64 Constant node, the usual form of
// Slice and Reverse index inputs.
func ConstInt64s(values ...int64) *ir.Node {
	return NewConstant(tensor.FromInt64s(element.Int64, []int64{int64(len(values))}, values))
}

func (c *Constant) TypeName() string { return "Constant" }
func (c *Constant) Opset() string    { return "opset1" }

func (c *Constant) ValidateAndInferTypes(n *ir.Node) {
	ir.Validatef(n, n.NumInputs() == 0, "Constant takes no inputs, got %d", n.NumInputs())
	ir.Validatef(n, c.Payload != nil, "Constant has no payload")
	n.SetOutputType(0, c.Payload.ElementType(), c.Payload.Shape())
}

func (c *Constant) Clone() ir.Op { return &Constant{Payload: c.Payload} }

func (c *Constant) VisitAttributes(v *ir.AttrVisitor) bool {
	v.Payload("value", &c.Payload)
	return true
}

// Value implements ir.ConstantOp.
func (c *Constant) Value() *tensor.Tensor { return c.Payload }

// Evaluate returns the payload unchanged.
func (c *Constant) Evaluate([]*tensor.Tensor) ([]*tensor.Tensor, error) {
	return []*tensor.Tensor{c.Payload}, nil
}

// Result marks a graph output; it passes its single input through.
type Result struct{}

// NewResult builds a validated Result node over the given producer output.
func NewResult(in ir.Output) *ir.Node {
	n := ir.NewNode(&Result{}, in)
	n.ValidateAndInferTypes()
	return n
}

func (r *Result) TypeName() string { return "Result" }
func (r *Result) Opset() string    { return "opset1" }

func (r *Result) ValidateAndInferTypes(n *ir.Node) {
	ir.Validatef(n, n.NumInputs() == 1, "Result takes 1 input, got %d", n.NumInputs())
	n.SetOutputType(0, n.Input(0).ElementType(), n.Input(0).Shape())
}

func (r *Result) Clone() ir.Op                         { return &Result{} }
func (r *Result) VisitAttributes(*ir.AttrVisitor) bool { return false }

// Add is element-wise addition with numpy-style broadcasting.
type Add struct{}

// NewAdd builds a validated Add node.
func NewAdd(lhs, rhs ir.Output) *ir.Node {
	n := ir.NewNode(&Add{}, lhs, rhs)
	n.ValidateAndInferTypes()
	return n
}

func (a *Add) TypeName() string { return "Add" }
func (a *Add) Opset() string    { return "opset1" }

func (a *Add) ValidateAndInferTypes(n *ir.Node) {
	ir.Validatef(n, n.NumInputs() == 2, "Add takes 2 inputs, got %d", n.NumInputs())
	dtype, ok := element.Merge(n.Input(0).ElementType(), n.Input(1).ElementType())
	ir.Validatef(n, ok, "Add input element types %s and %s are incompatible",
		n.Input(0).ElementType(), n.Input(1).ElementType())
	shape, ok := dims.BroadcastMerge(n.Input(0).Shape(), n.Input(1).Shape())
	ir.Validatef(n, ok, "Add input shapes %s and %s do not broadcast",
		n.Input(0).Shape(), n.Input(1).Shape())
	n.SetOutputType(0, dtype, shape)
}

func (a *Add) Clone() ir.Op                         { return &Add{} }
func (a *Add) VisitAttributes(*ir.AttrVisitor) bool { return false }

// Evaluate folds integer additions, enough for index arithmetic feeding
// shape-relevant inputs.
func (a *Add) Evaluate(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	lhs, rhs := inputs[0], inputs[1]
	if !lhs.ElementType().IsIntegralNumber() || lhs.ElementType() != rhs.ElementType() ||
		lhs.Size() != rhs.Size() {
		return nil, errors.Errorf("Add fold supports same-type, same-size integral tensors, got %s and %s", lhs, rhs)
	}
	lv, rv := lhs.FlatInt64s(), rhs.FlatInt64s()
	sum := make([]int64, len(lv))
	for i := range sum {
		sum[i] = lv[i] + rv[i]
	}
	return []*tensor.Tensor{tensor.FromInt64s(lhs.ElementType(), lhs.Dimensions(), sum)}, nil
}

// Relu is the element-wise rectifier; type and shape pass through.
type Relu struct{}

// NewRelu builds a validated Relu node.
func NewRelu(in ir.Output) *ir.Node {
	n := ir.NewNode(&Relu{}, in)
	n.ValidateAndInferTypes()
	return n
}

func (r *Relu) TypeName() string { return "Relu" }
func (r *Relu) Opset() string    { return "opset1" }

func (r *Relu) ValidateAndInferTypes(n *ir.Node) {
	ir.Validatef(n, n.NumInputs() == 1, "Relu takes 1 input, got %d", n.NumInputs())
	n.SetOutputType(0, n.Input(0).ElementType(), n.Input(0).Shape())
}

func (r *Relu) Clone() ir.Op                         { return &Relu{} }
func (r *Relu) VisitAttributes(*ir.AttrVisitor) bool { return false }

// Reshape reinterprets its data input with the dimensions given by a second,
// shape-defining input. A -1 entry is inferred from the remaining dimensions
// when the data size is static, otherwise it stays dynamic.
type Reshape struct{}

// NewReshape builds a validated Reshape node.
func NewReshape(data, pattern ir.Output) *ir.Node {
	n := ir.NewNode(&Reshape{}, data, pattern)
	n.ValidateAndInferTypes()
	return n
}

func (r *Reshape) TypeName() string { return "Reshape" }
func (r *Reshape) Opset() string    { return "opset1" }

func (r *Reshape) ValidateAndInferTypes(n *ir.Node) {
	ir.Validatef(n, n.NumInputs() == 2, "Reshape takes 2 inputs, got %d", n.NumInputs())
	ir.Validatef(n, n.Input(1).ElementType().IsIntegralNumber() || n.Input(1).ElementType().IsDynamic(),
		"Reshape pattern input type must be integer, got %s", n.Input(1).ElementType())

	dtype := n.Input(0).ElementType()
	pattern, ok := ir.ConstantValueOf(n.Input(1))
	if !ok {
		// Unknown pattern: rank is known only if the pattern's own length is.
		patternShape := n.Input(1).Shape()
		if patternShape.RankIsStatic() && patternShape.Rank() == 1 && patternShape.Dim(0).IsStatic() {
			n.SetOutputType(0, dtype, dims.DynamicShape(int(patternShape.Dim(0).Length())))
		} else {
			n.SetOutputType(0, dtype, dims.DynamicRankShape())
		}
		return
	}

	targets := pattern.FlatInt64s()
	dimensions := make([]dims.Dimension, len(targets))
	inferredAt := -1
	known := int64(1)
	for i, target := range targets {
		switch {
		case target >= 0:
			dimensions[i] = dims.Dim(target)
			known *= target
		case target == -1:
			ir.Validatef(n, inferredAt < 0, "Reshape pattern may hold at most one -1 entry, got %v", targets)
			inferredAt = i
			dimensions[i] = dims.DynamicDim()
		default:
			ir.Validatef(n, false, "Reshape pattern entries must be >= -1, got %d", target)
		}
	}
	if inferredAt >= 0 && n.Input(0).Shape().IsStatic() {
		total := n.Input(0).Shape().Size()
		ir.Validatef(n, known > 0 && total%known == 0,
			"Reshape cannot infer -1 entry: data size %d not divisible by %d", total, known)
		dimensions[inferredAt] = dims.Dim(total / known)
	}
	n.SetOutputType(0, dtype, dims.MakeShapeOf(dimensions...))
}

func (r *Reshape) Clone() ir.Op                         { return &Reshape{} }
func (r *Reshape) VisitAttributes(*ir.AttrVisitor) bool { return false }
