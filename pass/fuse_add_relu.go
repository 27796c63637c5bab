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

package pass

import (
	"github.com/gomlx/irgraph/ir"
	"github.com/gomlx/irgraph/ops"
	"github.com/gomlx/irgraph/pattern"
	"github.com/gomlx/irgraph/types/dims"
	"github.com/gomlx/irgraph/types/element"
)

// AddRelu is the fused form of Add followed by Relu, produced by
// NewFuseAddRelu. It never appears in freshly built graphs.
type AddRelu struct{}

func (a *AddRelu) TypeName() string { return "AddRelu" }
func (a *AddRelu) Opset() string    { return "opset1" }

func (a *AddRelu) ValidateAndInferTypes(n *ir.Node) {
	ir.Validatef(n, n.NumInputs() == 2, "AddRelu takes 2 inputs, got %d", n.NumInputs())
	dtype, ok := element.Merge(n.Input(0).ElementType(), n.Input(1).ElementType())
	ir.Validatef(n, ok, "AddRelu input element types %s and %s are incompatible",
		n.Input(0).ElementType(), n.Input(1).ElementType())
	shape, ok := dims.BroadcastMerge(n.Input(0).Shape(), n.Input(1).Shape())
	ir.Validatef(n, ok, "AddRelu input shapes %s and %s do not broadcast",
		n.Input(0).Shape(), n.Input(1).Shape())
	n.SetOutputType(0, dtype, shape)
}

func (a *AddRelu) Clone() ir.Op                         { return &AddRelu{} }
func (a *AddRelu) VisitAttributes(*ir.AttrVisitor) bool { return false }

// NewFuseAddRelu builds the pass fusing Add directly followed by Relu into a
// single AddRelu node. The Add output must have the Relu as its only
// consumer. The accept callback, when non-nil, can veto individual matches;
// a vetoed match leaves the graph untouched.
func NewFuseAddRelu(accept func(m *pattern.Matcher) bool) *MatcherPass {
	addPattern := pattern.WrapTypeWith[*ops.Add](
		[]pattern.Node{pattern.AnyInput(), pattern.AnyInput()},
		pattern.ConsumersCount(1))
	reluPattern := pattern.WrapTypeWith[*ops.Relu]([]pattern.Node{addPattern})

	return NewMatcherPass("FuseAddRelu", reluPattern, func(f *ir.Function, m *pattern.Matcher) bool {
		if accept != nil && !accept(m) {
			return false
		}
		addOut, _ := m.Value(addPattern)
		reluNode := m.MatchRoot().Node
		addNode := addOut.Node

		fused := ir.NewNode(&AddRelu{}, addNode.Input(0), addNode.Input(1))
		fused.ValidateAndInferTypes()
		ir.CopyRuntimeInfo(addNode, fused)
		f.ReplaceNode(reluNode, fused)
		return true
	})
}
