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
	"github.com/gomlx/irgraph/ir"
	"github.com/gomlx/irgraph/types/dims"
	"github.com/gomlx/irgraph/types/element"
)

// LSTMCell computes one step of a long short-term memory cell.
//
// Inputs: X [batch, input_size], initial hidden state H [batch, hidden_size],
// initial cell state C [batch, hidden_size], weights W [4*hidden_size,
// input_size], recurrence weights R [4*hidden_size, hidden_size], bias B
// [4*hidden_size] and, in its first operation-set version only, peephole
// weights P [3*hidden_size] as a seventh input. Outputs: next hidden and cell
// states, both [batch, hidden_size].
type LSTMCell struct {
	HiddenSize int64
}

// NewLSTMCell builds a validated LSTMCell node. The peephole input is
// optional; pass 6 or 7 inputs.
func NewLSTMCell(hiddenSize int64, inputs ...ir.Output) *ir.Node {
	n := ir.NewNode(&LSTMCell{HiddenSize: hiddenSize}, inputs...)
	n.ValidateAndInferTypes()
	return n
}

// PeepholeInputPort is the LSTMCell input port carrying peephole weights.
const PeepholeInputPort = 6

func (c *LSTMCell) TypeName() string { return "LSTMCell" }
func (c *LSTMCell) Opset() string    { return "opset1" }

func (c *LSTMCell) Clone() ir.Op { return &LSTMCell{HiddenSize: c.HiddenSize} }

func (c *LSTMCell) VisitAttributes(v *ir.AttrVisitor) bool {
	v.Int("hidden_size", &c.HiddenSize)
	return true
}

func (c *LSTMCell) ValidateAndInferTypes(n *ir.Node) {
	ir.Validatef(n, n.NumInputs() == 6 || n.NumInputs() == 7,
		"LSTMCell takes 6 or 7 inputs, got %d", n.NumInputs())
	ir.Validatef(n, c.HiddenSize > 0, "LSTMCell hidden_size must be positive, got %d", c.HiddenSize)

	dtype := element.Dynamic
	ok := true
	for i := 0; i < n.NumInputs(); i++ {
		dtype, ok = element.Merge(dtype, n.Input(i).ElementType())
		ir.Validatef(n, ok, "LSTMCell input %d element type %s incompatible with the others",
			i, n.Input(i).ElementType())
	}

	batch := dims.DynamicDim()
	xShape := n.Input(0).Shape()
	if xShape.RankIsStatic() {
		ir.Validatef(n, xShape.Rank() == 2, "LSTMCell input X must be rank 2, got %s", xShape)
		batch = xShape.Dim(0)
	}
	for _, statePort := range []int{1, 2} {
		stateShape := n.Input(statePort).Shape()
		if !stateShape.RankIsStatic() {
			continue
		}
		ir.Validatef(n, stateShape.Rank() == 2,
			"LSTMCell state input %d must be rank 2, got %s", statePort, stateShape)
		merged, ok := batch.Merge(stateShape.Dim(0))
		ir.Validatef(n, ok, "LSTMCell batch dimensions disagree: %s vs %s", batch, stateShape.Dim(0))
		batch = merged
	}

	stateShape := dims.MakeShapeOf(batch, dims.Dim(c.HiddenSize))
	n.SetOutputType(0, dtype, stateShape) // Ho
	n.SetOutputType(1, dtype, stateShape) // Co
}
