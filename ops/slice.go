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
	"math"

	"github.com/gomlx/irgraph/ir"
	"github.com/gomlx/irgraph/types/dims"
)

// Slice extracts a strided range of its data input along selected axes.
//
// Inputs: data, start, stop, step and optionally axes, the last four being
// 1-D integer vectors of equal length. Negative start/stop index from the end
// of the axis, negative step walks backwards. When axes is absent it defaults
// to 0..len(start)-1.
type Slice struct{}

// NewSlice builds a validated Slice node without an explicit axes input.
func NewSlice(data, start, stop, step ir.Output) *ir.Node {
	n := ir.NewNode(&Slice{}, data, start, stop, step)
	n.ValidateAndInferTypes()
	return n
}

// NewSliceWithAxes builds a validated Slice node with an explicit axes input.
func NewSliceWithAxes(data, start, stop, step, axes ir.Output) *ir.Node {
	n := ir.NewNode(&Slice{}, data, start, stop, step, axes)
	n.ValidateAndInferTypes()
	return n
}

func (s *Slice) TypeName() string { return "Slice" }
func (s *Slice) Opset() string    { return "opset8" }

func (s *Slice) Clone() ir.Op                         { return &Slice{} }
func (s *Slice) VisitAttributes(*ir.AttrVisitor) bool { return false }

// slicedDimSize is the closed-form length of one sliced axis given concrete
// start/stop/step and the axis length.
func slicedDimSize(start, stop, step, dimSize int64) int64 {
	if start < 0 {
		start = dimSize + start
	}
	if stop < 0 {
		stop = dimSize + stop
	}
	start = max(0, min(start, dimSize)) // inclusive
	stop = max(-1, min(stop, dimSize))  // exclusive

	var elementsInRange int64
	if step < 0 {
		elementsInRange = max(0, min(dimSize-1, start)-stop)
	} else {
		elementsInRange = max(0, min(dimSize, stop)-start)
	}
	absStep := step
	if absStep < 0 {
		absStep = -absStep
	}
	return (elementsInRange + absStep - 1) / absStep
}

// constIndexVector resolves an index input to concrete values if its feeding
// sub-graph is constant.
func constIndexVector(o ir.Output) ([]int64, bool) {
	value, ok := ir.ConstantValueOf(o)
	if !ok {
		return nil, false
	}
	return value.FlatInt64s(), true
}

func (s *Slice) ValidateAndInferTypes(n *ir.Node) {
	inputsSize := n.NumInputs()
	ir.Validatef(n, inputsSize == 4 || inputsSize == 5,
		"Slice has to have 4 or 5 inputs. Got: %d", inputsSize)

	dataShape := n.Input(0).Shape()
	ir.Validatef(n, !dataShape.RankIsStatic() || dataShape.Rank() > 0,
		"Slice `data` input can't be a scalar.")

	for i, name := range []string{"start", "stop", "step"} {
		in := n.Input(i + 1)
		ir.Validatef(n, in.ElementType().IsIntegralNumber() || in.ElementType().IsDynamic(),
			"Slice `%s` input type must be integer.", name)
		shape := in.Shape()
		ir.Validatef(n, !shape.RankIsStatic() || shape.Rank() == 1,
			"Slice `%s` input must be a 1D tensor. Got rank: %d", name, shape.Rank())
		if dataShape.RankIsStatic() && shape.RankIsStatic() {
			ir.Validatef(n, shape.Dim(0).MinLength() <= int64(dataShape.Rank()),
				"Slice `%s` input dim size can't be bigger than `data` rank.", name)
		}
	}

	startShape := n.Input(1).Shape()
	stopShape := n.Input(2).Shape()
	stepShape := n.Input(3).Shape()
	ir.Validatef(n,
		startShape.Compatible(stopShape) && startShape.Compatible(stepShape) && stopShape.Compatible(stepShape),
		"Slice `start`, `stop`, `step` inputs must have compatible shapes.")

	starts, startsKnown := constIndexVector(n.Input(1))
	stops, stopsKnown := constIndexVector(n.Input(2))
	steps, stepsKnown := constIndexVector(n.Input(3))

	var axes []int64
	axesKnown := false
	if inputsSize > 4 {
		axesIn := n.Input(4)
		axesShape := axesIn.Shape()
		ir.Validatef(n, !axesShape.RankIsStatic() || axesShape.Rank() == 1,
			"Slice `axes` input must be a 1D tensor. Got rank: %d", axesShape.Rank())
		if dataShape.RankIsStatic() && axesShape.RankIsStatic() {
			ir.Validatef(n, axesShape.Dim(0).MaxLength() <= int64(dataShape.Rank()),
				"Slice `axes` input dim size can't be bigger than `data` rank.")
		}
		ir.Validatef(n, axesShape.Compatible(startShape),
			"Slice `axes` input must have compatible shape with `start`, `stop`, `step` inputs.")
		ir.Validatef(n, axesIn.ElementType().IsIntegralNumber() || axesIn.ElementType().IsDynamic(),
			"Slice `axes` input type must be integer.")
		axes, axesKnown = constIndexVector(axesIn)
	} else if startShape.RankIsStatic() && startShape.Rank() == 1 && startShape.Dim(0).IsStatic() {
		// Default axes: 0..len(start)-1.
		length := startShape.Dim(0).Length()
		axes = make([]int64, length)
		for i := range axes {
			axes[i] = int64(i)
		}
		axesKnown = true
	}

	dtype := n.Input(0).ElementType()
	if !dataShape.RankIsStatic() {
		// Unknown data rank: even concrete indices can't tell which output
		// axes stay untouched.
		n.SetOutputType(0, dtype, dataShape)
		return
	}

	if startsKnown && stopsKnown && stepsKnown && axesKnown {
		n.SetOutputType(0, dtype, s.calculateOutputShape(n, starts, stops, steps, axes, dataShape))
		return
	}

	dataRank := dataShape.Rank()
	outputShape := dataShape.Clone()
	if axesKnown {
		// Known axes with unknown indices: sliced dims drop to lower bound 0,
		// the rest keep the data bounds.
		for _, axis := range axes {
			normAxis := normalizeSliceAxis(n, axis, dataRank)
			outputShape = outputShape.SetDim(normAxis, dims.DimRange(0, outputShape.Dim(normAxis).MaxLength()))
		}
	} else {
		for i := 0; i < dataRank; i++ {
			outputShape = outputShape.SetDim(i, dims.DimRange(0, outputShape.Dim(i).MaxLength()))
		}
	}
	n.SetOutputType(0, dtype, outputShape)
}

func normalizeSliceAxis(n *ir.Node, axis int64, dataRank int) int {
	normAxis := axis
	if normAxis < 0 {
		normAxis = int64(dataRank) + normAxis
	}
	ir.Validatef(n, normAxis >= 0 && normAxis < int64(dataRank),
		"Values in the `axes` input must be in range of the `data` input rank: [-%d, %d]. Got: %d",
		dataRank, dataRank-1, axis)
	return int(normAxis)
}

func (s *Slice) calculateOutputShape(n *ir.Node, starts, stops, steps, axes []int64,
	dataShape dims.PartialShape) dims.PartialShape {
	indSize := len(starts)
	ir.Validatef(n, len(stops) == indSize && len(steps) == indSize && len(axes) == indSize,
		"Slice `start`, `stop`, `step`, `axes` inputs need to have the same size.")

	axesSet := make(map[int64]bool, len(axes))
	for _, axis := range axes {
		axesSet[axis] = true
	}
	ir.Validatef(n, len(axesSet) == len(axes), "Slice values in `axes` input must be unique.")

	outputShape := dataShape.Clone()
	if !dataShape.RankIsStatic() {
		return outputShape
	}

	dataRank := dataShape.Rank()
	for i := range axes {
		normAxis := normalizeSliceAxis(n, axes[i], dataRank)
		start, stop, step := starts[i], stops[i], steps[i]
		ir.Validatef(n, step != 0, "Slice 'step' value can't be zero.")

		axisDim := dataShape.Dim(normAxis)
		minDimSize := slicedDimSize(start, stop, step, axisDim.MinLength())
		if axisDim.IsStatic() {
			outputShape = outputShape.SetDim(normAxis, dims.Dim(minDimSize))
			continue
		}

		// Without an upper bound, negative indices cannot be normalized.
		if !axisDim.HasUpperBound() {
			if (step < 0 && start < 0 && stop > 0) || (step > 0 && stop < 0 && start > 0) {
				outputShape = outputShape.SetDim(normAxis, dims.DynamicDim())
				continue
			} else if step < 0 && start > 0 && stop < 0 {
				maxOutDim := int64(-1)
				if start < math.MaxInt32 {
					maxOutDim = start + 1
				}
				outputShape = outputShape.SetDim(normAxis, dims.DimRange(0, maxOutDim))
				continue
			} else if step > 0 && stop > 0 && start < 0 {
				maxOutDim := int64(-1)
				if stop < math.MaxInt32 {
					maxOutDim = stop
				}
				outputShape = outputShape.SetDim(normAxis, dims.DimRange(0, maxOutDim))
				continue
			}
		}

		maxDimSize := slicedDimSize(start, stop, step, axisDim.MaxLength())
		outputShape = outputShape.SetDim(normAxis, dims.DimRange(minDimSize, maxDimSize))
	}
	return outputShape
}
