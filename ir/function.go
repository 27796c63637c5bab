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
	"github.com/gomlx/exceptions"
	"github.com/google/uuid"
)

// Function is a graph: the owning container of every node reachable from its
// declared result and sink nodes, with an explicit parameter boundary.
//
// Parameters and results fix the calling convention; sinks are side-effecting
// nodes kept alive without a data path to any result. Reachability is the
// ownership rule: a node disconnected from all results and sinks is no longer
// part of the function.
type Function struct {
	name    string
	docID   uuid.UUID
	params  []*Node
	results []*Node
	sinks   []*Node
	rtInfo  map[string]any
}

// NewFunction builds a graph over the given result nodes and parameter
// boundary. Every parameter reachable from the results must be listed; this
// is checked by Validate, not here, so partially built graphs can exist.
func NewFunction(name string, results []*Node, params []*Node) *Function {
	return &Function{
		name:    name,
		docID:   uuid.New(),
		params:  params,
		results: results,
		rtInfo:  make(map[string]any),
	}
}

// Name of the function.
func (f *Function) Name() string { return f.name }

// SetName assigns the function name.
func (f *Function) SetName(name string) { f.name = name }

// DocID is a random identifier assigned at construction. It tags in-memory
// provenance only and never enters the serialized form.
func (f *Function) DocID() uuid.UUID { return f.docID }

// RTInfo returns the function-level runtime annotation map.
func (f *Function) RTInfo() map[string]any { return f.rtInfo }

// Parameters returns the parameter nodes in signature order.
func (f *Function) Parameters() []*Node {
	out := make([]*Node, len(f.params))
	copy(out, f.params)
	return out
}

// Results returns the result nodes in signature order.
func (f *Function) Results() []*Node {
	out := make([]*Node, len(f.results))
	copy(out, f.results)
	return out
}

// Sinks returns the registered sink nodes.
func (f *Function) Sinks() []*Node {
	out := make([]*Node, len(f.sinks))
	copy(out, f.sinks)
	return out
}

// AddSink registers a side-effecting node that must stay alive without a data
// path to any result.
func (f *Function) AddSink(n *Node) { f.sinks = append(f.sinks, n) }

// ParameterIndex returns the signature position of a parameter node, or -1.
func (f *Function) ParameterIndex(n *Node) int {
	for i, p := range f.params {
		if p == n {
			return i
		}
	}
	return -1
}

// ResultIndex returns the signature position of a result node, or -1.
func (f *Function) ResultIndex(n *Node) int {
	for i, r := range f.results {
		if r == n {
			return i
		}
	}
	return -1
}

// roots returns the traversal roots in a fixed order: results first, then
// sinks.
func (f *Function) roots() []*Node {
	out := make([]*Node, 0, len(f.results)+len(f.sinks))
	out = append(out, f.results...)
	out = append(out, f.sinks...)
	return out
}

// OrderedOps returns every node reachable from the results and sinks in a
// deterministic topological order: producers before consumers, ties broken by
// input position. The order is a function of graph structure alone, so two
// structurally identical graphs traverse identically regardless of when or
// where their nodes were allocated.
func (f *Function) OrderedOps() []*Node {
	var ordered []*Node
	visited := make(map[*Node]bool)

	// Iterative post-order DFS. Deep chains must not exhaust the goroutine
	// stack.
	type frame struct {
		node *Node
		next int // next dependency index to descend into
	}
	for _, root := range f.roots() {
		if visited[root] {
			continue
		}
		visited[root] = true
		stack := []frame{{node: root}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			deps := nodeDeps(top.node)
			if top.next < len(deps) {
				dep := deps[top.next]
				top.next++
				if !visited[dep] {
					visited[dep] = true
					stack = append(stack, frame{node: dep})
				}
				continue
			}
			ordered = append(ordered, top.node)
			stack = stack[:len(stack)-1]
		}
	}
	return ordered
}

// nodeDeps returns the nodes that must be ordered before n: data inputs in
// port order, then control dependencies.
func nodeDeps(n *Node) []*Node {
	deps := make([]*Node, 0, len(n.inputs)+len(n.controlDeps))
	for _, in := range n.inputs {
		deps = append(deps, in.Node)
	}
	deps = append(deps, n.controlDeps...)
	return deps
}

// Validate re-runs type inference over the whole graph in topological order
// and checks the parameter boundary: every parameter node reachable from the
// results and sinks must be declared in the signature. It returns the first
// failure as an error.
func (f *Function) Validate() error {
	return exceptions.TryCatch[error](func() {
		declared := make(map[*Node]bool, len(f.params))
		for _, p := range f.params {
			declared[p] = true
		}
		for _, n := range f.OrderedOps() {
			if n.TypeName() == "Parameter" && !declared[n] {
				Validatef(n, false, "parameter reachable from results but not declared in the function signature")
			}
			n.ValidateAndInferTypes()
		}
	})
}

// ReplaceNode redirects every consumer of old's outputs (and every signature
// slot holding old) to the matching outputs of replacement. Input ordering of
// each consumer is preserved. Runtime info of old is merged into replacement.
func (f *Function) ReplaceNode(old, replacement *Node) {
	if old == replacement {
		return
	}
	if old.NumOutputs() > replacement.NumOutputs() {
		Validatef(replacement, false, "replacement provides %d outputs, %d needed to substitute %s",
			replacement.NumOutputs(), old.NumOutputs(), old.FriendlyName())
	}
	for i := 0; i < old.NumOutputs(); i++ {
		for _, consumer := range old.consumersOf(i) {
			consumer.Node.SetInput(consumer.Index, Output{Node: replacement, Index: i})
		}
	}
	for i, p := range f.params {
		if p == old {
			f.params[i] = replacement
		}
	}
	for i, r := range f.results {
		if r == old {
			f.results[i] = replacement
		}
	}
	for i, s := range f.sinks {
		if s == old {
			f.sinks[i] = replacement
		}
	}
	CopyRuntimeInfo(old, replacement)
	if !old.NameIsAutoGenerated() && replacement.NameIsAutoGenerated() {
		replacement.SetFriendlyName(old.FriendlyName())
	}
}

// ReplaceOutput redirects every consumer of old to replacement, preserving
// each consumer's input ordering. Unlike ReplaceNode it touches a single
// output port and leaves signature slots alone.
func ReplaceOutput(old, replacement Output) {
	if old == replacement {
		return
	}
	for _, consumer := range old.Node.consumersOf(old.Index) {
		consumer.Node.SetInput(consumer.Index, replacement)
	}
}

// CopyRuntimeInfo merges the runtime annotations of src into dst, keeping
// dst's value on key conflicts.
func CopyRuntimeInfo(src, dst *Node) {
	for k, v := range src.rtInfo {
		if _, found := dst.rtInfo[k]; !found {
			dst.rtInfo[k] = v
		}
	}
}
