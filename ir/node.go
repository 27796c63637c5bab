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

// Package ir is the core of the intermediate-representation graph engine: the
// Node and Function (graph) data model, tensor descriptors on graph edges,
// attribute visitation and the shape/type propagation contract.
//
// The main elements of the package are:
//
//   - Node: a graph vertex holding one operation instance (an Op), its typed
//     inputs (references to producer outputs), its output descriptors, control
//     dependencies and runtime (provenance) annotations.
//
//   - Op: the interface every concrete operation kind implements -- type
//     inference, cloning, attribute visitation. The engine calls these without
//     knowledge of the operation semantics; concrete kinds live in the ops
//     package.
//
//   - Output: a non-owning (node, output index) reference. Edges of the graph
//     are Output values stored in consumer nodes, so producers may be shared
//     by any number of consumers -- the graph is a DAG with fan-in and
//     fan-out, not a tree.
//
//   - Function: the owning container of all nodes reachable from its declared
//     results, with parameter/result boundaries and deterministic topological
//     traversal.
//
// # Validation failures
//
// Type inference failures panic with a *ValidationError carrying the node
// identity and a human-readable description. Drivers (the pass manager, the
// codec) catch them at the boundary with exceptions.TryCatch and surface them
// as ordinary errors. A validation failure is node-local: it never corrupts
// the already-computed state of sibling nodes.
package ir

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/gomlx/irgraph/types/dims"
	"github.com/gomlx/irgraph/types/element"
	"github.com/gomlx/irgraph/types/tensor"
	"github.com/pkg/errors"
)

// Op is implemented by every concrete operation kind. The core calls these
// methods without knowledge of the operation's semantics.
type Op interface {
	// TypeName returns the operation kind name ("Constant", "Slice", ...).
	TypeName() string

	// Opset returns the operation-set version tag ("opset1", "opset8", ...).
	Opset() string

	// ValidateAndInferTypes checks the node's inputs and computes its output
	// element types and partial shapes via Node.SetOutputType. It must be
	// idempotent: graph mutations may re-run it any number of times. It
	// panics with a *ValidationError on invalid inputs.
	ValidateAndInferTypes(n *Node)

	// Clone returns a fresh copy of the operation with the same attributes
	// and no node bound.
	Clone() Op

	// VisitAttributes presents the operation's attributes to the visitor, in
	// a fixed order. It returns false if the kind has no visitable
	// attributes.
	VisitAttributes(v *AttrVisitor) bool
}

// Evaluator is optionally implemented by operation kinds that can compute
// their outputs from concrete input tensors. It enables constant folding.
type Evaluator interface {
	Evaluate(inputs []*tensor.Tensor) ([]*tensor.Tensor, error)
}

// ConstantOp is implemented by the operation kind that carries a literal
// payload. The engine treats it structurally (constant-source resolution,
// payload serialization) without depending on the concrete type.
type ConstantOp interface {
	Op
	Value() *tensor.Tensor
}

// nextNodeID is the process-wide node id allocator. It is atomic because
// disjoint subgraphs may be built from different goroutines before being
// assembled into one Function. Ids are monotonic and used only for
// disambiguation and ordering, never as persistent or secure identity.
var nextNodeID atomic.Int64

// Output is a non-owning reference to one output port of a producer node.
// The zero value is invalid.
type Output struct {
	Node  *Node
	Index int
}

// Descriptor returns the tensor descriptor of the referenced port.
func (o Output) Descriptor() *TensorDescriptor {
	return o.Node.OutputDescriptor(o.Index)
}

// ElementType of the referenced port.
func (o Output) ElementType() element.ElementType { return o.Descriptor().ElementType() }

// Shape of the referenced port.
func (o Output) Shape() dims.PartialShape { return o.Descriptor().Shape() }

// Consumers returns the input ports currently reading this output.
func (o Output) Consumers() []Input { return o.Node.consumersOf(o.Index) }

// String implements fmt.Stringer.
func (o Output) String() string {
	if o.Node == nil {
		return "Output(nil)"
	}
	return fmt.Sprintf("%s:%d", o.Node.UniqueName(), o.Index)
}

// Input identifies one input port of a consumer node.
type Input struct {
	Node  *Node
	Index int
}

// Source returns the producer output the input port reads from.
func (in Input) Source() Output { return in.Node.inputs[in.Index] }

// Node is a graph vertex holding one operation instance.
//
// A Node is owned by the Function containing it; its inputs are non-owning
// references to producer nodes, which may be shared across consumers.
type Node struct {
	op Op
	id int64

	inputs    []Output
	outputs   []*TensorDescriptor
	consumers [][]Input // parallel to outputs

	controlDeps  []*Node
	rtInfo       map[string]any
	friendlyName string
}

// NewNode builds a node for the given operation, connected to the given
// producer outputs. The caller (the operation constructor) is expected to run
// ValidateAndInferTypes next.
func NewNode(op Op, inputs ...Output) *Node {
	n := &Node{
		op:     op,
		id:     nextNodeID.Add(1),
		rtInfo: make(map[string]any),
	}
	for _, in := range inputs {
		n.appendInput(in)
	}
	return n
}

// Op returns the operation instance of the node.
func (n *Node) Op() Op { return n.op }

// TypeName returns the operation kind name.
func (n *Node) TypeName() string { return n.op.TypeName() }

// Id returns the process-wide unique id of the node.
func (n *Node) Id() int64 { return n.id }

// UniqueName returns the system-assigned name, "<TypeName>_<id>".
func (n *Node) UniqueName() string {
	return fmt.Sprintf("%s_%d", n.op.TypeName(), n.id)
}

// FriendlyName returns the user-assigned name, falling back to the unique
// name when none was set.
func (n *Node) FriendlyName() string {
	if n.friendlyName == "" {
		return n.UniqueName()
	}
	return n.friendlyName
}

// SetFriendlyName assigns the node's display name. It can be set once;
// re-setting to a different name panics.
func (n *Node) SetFriendlyName(name string) {
	if n.friendlyName != "" && n.friendlyName != name {
		Validatef(n, false, "friendly name already set to %q, cannot rename to %q", n.friendlyName, name)
	}
	n.friendlyName = name
}

// NameIsAutoGenerated returns whether the node still carries its
// system-assigned name. The codec's deterministic mode omits such names.
func (n *Node) NameIsAutoGenerated() bool {
	return n.friendlyName == "" || n.friendlyName == n.UniqueName()
}

// RTInfo returns the node's runtime (provenance) annotation map.
func (n *Node) RTInfo() map[string]any { return n.rtInfo }

// NumInputs returns the number of input ports.
func (n *Node) NumInputs() int { return len(n.inputs) }

// Inputs returns a copy of the input port references.
func (n *Node) Inputs() []Output {
	out := make([]Output, len(n.inputs))
	copy(out, n.inputs)
	return out
}

// Input returns the producer output read by input port i.
func (n *Node) Input(i int) Output {
	if i < 0 || i >= len(n.inputs) {
		Validatef(n, false, "input index %d out-of-range, node has %d inputs", i, len(n.inputs))
	}
	return n.inputs[i]
}

func (n *Node) appendInput(source Output) {
	idx := len(n.inputs)
	n.inputs = append(n.inputs, source)
	source.Node.addConsumer(source.Index, Input{Node: n, Index: idx})
}

// SetInput re-points input port i to a different producer output, updating
// consumer bookkeeping on both producers.
func (n *Node) SetInput(i int, source Output) {
	if i < 0 || i >= len(n.inputs) {
		Validatef(n, false, "input index %d out-of-range, node has %d inputs", i, len(n.inputs))
	}
	old := n.inputs[i]
	if old == source {
		return
	}
	old.Node.removeConsumer(old.Index, Input{Node: n, Index: i})
	n.inputs[i] = source
	source.Node.addConsumer(source.Index, Input{Node: n, Index: i})
}

// NumOutputs returns the number of output ports.
func (n *Node) NumOutputs() int { return len(n.outputs) }

// Output returns a reference to output port i.
func (n *Node) Output(i int) Output {
	if i < 0 || i >= len(n.outputs) {
		Validatef(n, false, "output index %d out-of-range, node has %d outputs", i, len(n.outputs))
	}
	return Output{Node: n, Index: i}
}

// Outputs returns references to all output ports.
func (n *Node) Outputs() []Output {
	out := make([]Output, len(n.outputs))
	for i := range out {
		out[i] = Output{Node: n, Index: i}
	}
	return out
}

// OutputDescriptor returns the descriptor owned by output port i.
func (n *Node) OutputDescriptor(i int) *TensorDescriptor {
	if i < 0 || i >= len(n.outputs) {
		Validatef(n, false, "output index %d out-of-range, node has %d outputs", i, len(n.outputs))
	}
	return n.outputs[i]
}

// SetOutputType declares (or re-declares) output port i with the inferred
// element type and shape. Ports are created on first use; descriptor identity
// is preserved across re-validation so consumer references stay valid.
func (n *Node) SetOutputType(i int, dtype element.ElementType, shape dims.PartialShape) {
	for len(n.outputs) <= i {
		n.outputs = append(n.outputs, newTensorDescriptor())
		n.consumers = append(n.consumers, nil)
	}
	n.outputs[i].dtype = dtype
	n.outputs[i].shape = shape.Clone()
}

func (n *Node) addConsumer(outputIdx int, in Input) {
	for len(n.outputs) <= outputIdx {
		// Consumers may connect before the producer ran inference.
		n.outputs = append(n.outputs, newTensorDescriptor())
		n.consumers = append(n.consumers, nil)
	}
	n.consumers[outputIdx] = append(n.consumers[outputIdx], in)
}

func (n *Node) removeConsumer(outputIdx int, in Input) {
	list := n.consumers[outputIdx]
	for i, c := range list {
		if c == in {
			n.consumers[outputIdx] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

func (n *Node) consumersOf(outputIdx int) []Input {
	if outputIdx < 0 || outputIdx >= len(n.consumers) {
		return nil
	}
	out := make([]Input, len(n.consumers[outputIdx]))
	copy(out, n.consumers[outputIdx])
	return out
}

// NumConsumers returns the total number of input ports reading any of the
// node's outputs.
func (n *Node) NumConsumers() int {
	total := 0
	for _, list := range n.consumers {
		total += len(list)
	}
	return total
}

// ControlDeps returns a copy of the node's control dependencies: nodes that
// must be ordered before this one without a data edge.
func (n *Node) ControlDeps() []*Node {
	out := make([]*Node, len(n.controlDeps))
	copy(out, n.controlDeps)
	return out
}

// AddControlDep registers a control dependency. Duplicates are ignored.
func (n *Node) AddControlDep(dep *Node) {
	for _, d := range n.controlDeps {
		if d == dep {
			return
		}
	}
	n.controlDeps = append(n.controlDeps, dep)
}

// RemoveControlDep drops a control dependency if present.
func (n *Node) RemoveControlDep(dep *Node) {
	for i, d := range n.controlDeps {
		if d == dep {
			n.controlDeps = append(n.controlDeps[:i:i], n.controlDeps[i+1:]...)
			return
		}
	}
}

// ValidateAndInferTypes re-runs the operation's type inference for this node.
// It panics with a *ValidationError on failure, leaving other nodes'
// descriptors untouched.
func (n *Node) ValidateAndInferTypes() {
	n.op.ValidateAndInferTypes(n)
}

// CloneWithNewInputs returns a new node of the same operation kind (with
// attributes copied) reading from the given producer outputs, with its types
// inferred. Runtime info and friendly name are not copied.
func (n *Node) CloneWithNewInputs(inputs ...Output) *Node {
	if len(inputs) != len(n.inputs) {
		Validatef(n, false, "CloneWithNewInputs got %d inputs, node has %d", len(inputs), len(n.inputs))
	}
	clone := NewNode(n.op.Clone(), inputs...)
	clone.ValidateAndInferTypes()
	return clone
}

// VisitAttributes presents the operation's attributes to the visitor.
func (n *Node) VisitAttributes(v *AttrVisitor) bool {
	return n.op.VisitAttributes(v)
}

// Evaluate runs the operation on concrete input tensors, if the kind supports
// it.
func (n *Node) Evaluate(inputs []*tensor.Tensor) ([]*tensor.Tensor, bool, error) {
	ev, ok := n.op.(Evaluator)
	if !ok {
		return nil, false, nil
	}
	outputs, err := ev.Evaluate(inputs)
	if err != nil {
		return nil, true, err
	}
	return outputs, true, nil
}

// String implements fmt.Stringer.
func (n *Node) String() string {
	if n == nil {
		return "Node(nil)"
	}
	parts := make([]string, 0, len(n.outputs))
	for _, d := range n.outputs {
		parts = append(parts, d.String())
	}
	return fmt.Sprintf("%s(%s) -> %s", n.FriendlyName(), n.op.TypeName(), strings.Join(parts, ", "))
}

// ValidationError is the failure raised by a node's type inference. It is
// delivered by panic and caught at driver boundaries with
// exceptions.TryCatch[error].
type ValidationError struct {
	// NodeName is the friendly name of the offending node, with the unique
	// name appended when they differ.
	NodeName string
	Message  string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for node %s: %s", e.NodeName, e.Message)
}

// Validatef panics with a *ValidationError when the condition does not hold.
// It is the NODE_VALIDATION_CHECK of this engine: every operation's
// ValidateAndInferTypes funnels its checks through it.
func Validatef(n *Node, condition bool, format string, args ...any) {
	if condition {
		return
	}
	name := "<nil>"
	if n != nil {
		name = n.FriendlyName()
		if unique := n.UniqueName(); unique != name {
			name = fmt.Sprintf("%s (%s)", name, unique)
		}
	}
	panic(errors.WithStack(&ValidationError{NodeName: name, Message: fmt.Sprintf(format, args...)}))
}
