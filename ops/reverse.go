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
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/irgraph/ir"
	"github.com/gomlx/irgraph/types/element"
	"github.com/gomlx/irgraph/types/tensor"
	"github.com/pkg/errors"
)

// ReverseMode selects how the second input of Reverse picks axes.
type ReverseMode int

const (
	// ReverseIndex: axes is a 1-D integer vector of axis indices.
	ReverseIndex ReverseMode = iota
	// ReverseMask: axes is a 1-D boolean vector of length rank, true marks a
	// reversed axis.
	ReverseMask
)

// String implements fmt.Stringer with the serialized attribute spelling.
func (m ReverseMode) String() string {
	if m == ReverseMask {
		return "mask"
	}
	return "index"
}

// ReverseModeFromString parses the serialized attribute spelling.
func ReverseModeFromString(text string) (ReverseMode, bool) {
	switch strings.ToLower(text) {
	case "index":
		return ReverseIndex, true
	case "mask":
		return ReverseMask, true
	}
	return ReverseIndex, false
}

// Reverse flips its data input along the axes selected by the second input.
// Output type and shape equal the data input's.
type Reverse struct {
	Mode ReverseMode
}

// NewReverse builds a validated Reverse node.
func NewReverse(data, axes ir.Output, mode ReverseMode) *ir.Node {
	n := ir.NewNode(&Reverse{Mode: mode}, data, axes)
	n.ValidateAndInferTypes()
	return n
}

func (r *Reverse) TypeName() string { return "Reverse" }
func (r *Reverse) Opset() string    { return "opset1" }

func (r *Reverse) Clone() ir.Op { return &Reverse{Mode: r.Mode} }

func (r *Reverse) VisitAttributes(v *ir.AttrVisitor) bool {
	if v.Restoring() {
		var text string
		v.String("mode", &text)
		if text != "" {
			mode, ok := ReverseModeFromString(text)
			if !ok {
				exceptions.Panicf("Reverse: unknown mode %q", text)
			}
			r.Mode = mode
		}
		return true
	}
	text := r.Mode.String()
	v.String("mode", &text)
	return true
}

func (r *Reverse) ValidateAndInferTypes(n *ir.Node) {
	ir.Validatef(n, n.NumInputs() == 2, "Reverse takes 2 inputs, got %d", n.NumInputs())

	dataShape := n.Input(0).Shape()
	axesIn := n.Input(1)
	axesShape := axesIn.Shape()
	ir.Validatef(n, !axesShape.RankIsStatic() || axesShape.Rank() == 1,
		"Reverse `axes` input must be a 1D tensor. Got rank: %d", axesShape.Rank())

	switch r.Mode {
	case ReverseIndex:
		ir.Validatef(n, axesIn.ElementType().IsIntegralNumber() || axesIn.ElementType().IsDynamic(),
			"Reverse `axes` input type must be integer in index mode, got %s", axesIn.ElementType())
		if dataShape.RankIsStatic() && axesShape.RankIsStatic() {
			ir.Validatef(n, axesShape.Dim(0).MinLength() <= int64(dataShape.Rank()),
				"Reverse `axes` input dim size can't be bigger than `data` rank.")
		}
		if axes, ok := ir.ConstantValueOf(axesIn); ok && dataShape.RankIsStatic() {
			dataRank := dataShape.Rank()
			for _, axis := range axes.FlatInt64s() {
				normAxis := axis
				if normAxis < 0 {
					normAxis = int64(dataRank) + normAxis
				}
				ir.Validatef(n, normAxis >= 0 && normAxis < int64(dataRank),
					"Reverse `axes` values must be in range of the `data` input rank: [-%d, %d]. Got: %d",
					dataRank, dataRank-1, axis)
			}
		}
	case ReverseMask:
		ir.Validatef(n, axesIn.ElementType() == element.Boolean || axesIn.ElementType().IsDynamic(),
			"Reverse `axes` input type must be boolean in mask mode, got %s", axesIn.ElementType())
		if dataShape.RankIsStatic() && axesShape.RankIsStatic() && axesShape.Dim(0).IsStatic() {
			ir.Validatef(n, axesShape.Dim(0).Length() == int64(dataShape.Rank()),
				"Reverse `axes` mask length %d must equal `data` rank %d",
				axesShape.Dim(0).Length(), dataShape.Rank())
		}
	}

	n.SetOutputType(0, n.Input(0).ElementType(), dataShape)
}

// reversedAxes resolves the axes tensor into a per-axis flag vector.
func (r *Reverse) reversedAxes(axes *tensor.Tensor, rank int) ([]bool, error) {
	flags := make([]bool, rank)
	switch r.Mode {
	case ReverseIndex:
		for _, axis := range axes.FlatInt64s() {
			if axis < 0 {
				axis = int64(rank) + axis
			}
			if axis < 0 || axis >= int64(rank) {
				return nil, errors.Errorf("axis %d out of range for rank %d", axis, rank)
			}
			flags[axis] = true
		}
	case ReverseMask:
		mask := axes.FlatBools()
		if len(mask) != rank {
			return nil, errors.Errorf("mask length %d does not match rank %d", len(mask), rank)
		}
		copy(flags, mask)
	}
	return flags, nil
}

// Evaluate performs the reversal as a strided element-wise byte copy.
func (r *Reverse) Evaluate(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	data, axes := inputs[0], inputs[1]
	rank := data.Rank()
	flags, err := r.reversedAxes(axes, rank)
	if err != nil {
		return nil, err
	}

	dimensions := data.Dimensions()
	elemBytes := int64(data.ElementType().Size())
	if elemBytes == 0 {
		return nil, errors.Errorf("cannot reverse sub-byte element type %s", data.ElementType())
	}

	// Row-major strides in elements.
	strides := make([]int64, rank)
	stride := int64(1)
	for axis := rank - 1; axis >= 0; axis-- {
		strides[axis] = stride
		stride *= dimensions[axis]
	}

	src := data.Data()
	dst := make([]byte, len(src))
	index := make([]int64, rank)
	for out := int64(0); out < data.Size(); out++ {
		srcFlat := int64(0)
		for axis := 0; axis < rank; axis++ {
			coord := index[axis]
			if flags[axis] {
				coord = dimensions[axis] - 1 - coord
			}
			srcFlat += coord * strides[axis]
		}
		copy(dst[out*elemBytes:(out+1)*elemBytes], src[srcFlat*elemBytes:(srcFlat+1)*elemBytes])

		for axis := rank - 1; axis >= 0; axis-- {
			index[axis]++
			if index[axis] < dimensions[axis] {
				break
			}
			index[axis] = 0
		}
	}
	return []*tensor.Tensor{tensor.FromBytes(data.ElementType(), dimensions, dst)}, nil
}
