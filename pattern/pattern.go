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

// Package pattern implements structural sub-graph matching over the IR:
// declarative pattern graphs of typed nodes and wildcards, matched bottom-up
// against producer outputs.
//
// A pattern is built from WrapType (a node of a concrete operation kind) and
// AnyInput (a wildcard) combinators, optionally guarded by predicates. A
// Matcher walks a candidate output against the pattern and, on success, binds
// every pattern node to the concrete Output it matched, available through the
// value map:
//
//	add := pattern.WrapTypeWith[*ops.Add]([]pattern.Node{pattern.AnyInput(), pattern.AnyInput()})
//	relu := pattern.WrapTypeWith[*ops.Relu]([]pattern.Node{add})
//	m := pattern.NewMatcher(relu)
//	if m.Match(candidate) {
//		fused := m.Value(add) // the Add output inside the match
//	}
package pattern

import (
	"github.com/gomlx/irgraph/ir"
	"github.com/gomlx/irgraph/types/element"
)

// Predicate is an extra condition a pattern node places on the output it
// binds to.
type Predicate func(o ir.Output) bool

// ConsumersCount matches outputs read by exactly n input ports. Fusions use
// it to ensure an interior value has no other consumers.
func ConsumersCount(n int) Predicate {
	return func(o ir.Output) bool {
		return len(o.Consumers()) == n
	}
}

// HasStaticShape matches outputs whose shape is fully static.
func HasStaticShape() Predicate {
	return func(o ir.Output) bool {
		return o.Shape().IsStatic()
	}
}

// TypeMatches matches outputs whose element type is compatible with dtype.
func TypeMatches(dtype element.ElementType) Predicate {
	return func(o ir.Output) bool {
		return dtype.Compatible(o.ElementType())
	}
}

// Node is one vertex of a pattern graph.
type Node interface {
	// matches tests o against this pattern vertex and records bindings in m.
	matches(o ir.Output, m *Matcher) bool
}

type anyPattern struct {
	predicates []Predicate
}

// AnyInput returns a wildcard pattern vertex matching any output.
func AnyInput() Node { return &anyPattern{} }

// AnyInputWith returns a wildcard constrained by predicates.
func AnyInputWith(predicates ...Predicate) Node {
	return &anyPattern{predicates: predicates}
}

func (p *anyPattern) matches(o ir.Output, m *Matcher) bool {
	for _, predicate := range p.predicates {
		if !predicate(o) {
			return false
		}
	}
	return m.bind(p, o)
}

type opPattern struct {
	accepts    func(op ir.Op) bool
	inputs     []Node
	anyInputs  bool
	predicates []Predicate
}

// WrapType returns a pattern vertex matching nodes whose operation has the
// concrete type T, with no constraint on their inputs.
func WrapType[T ir.Op]() Node {
	return &opPattern{accepts: acceptsType[T], anyInputs: true}
}

// WrapTypeWith returns a pattern vertex matching nodes whose operation has
// the concrete type T, whose inputs match the given sub-patterns
// position-wise, and whose matched output satisfies every predicate.
func WrapTypeWith[T ir.Op](inputs []Node, predicates ...Predicate) Node {
	return &opPattern{accepts: acceptsType[T], inputs: inputs, predicates: predicates}
}

func acceptsType[T ir.Op](op ir.Op) bool {
	_, ok := op.(T)
	return ok
}

func (p *opPattern) matches(o ir.Output, m *Matcher) bool {
	if !p.accepts(o.Node.Op()) {
		return false
	}
	for _, predicate := range p.predicates {
		if !predicate(o) {
			return false
		}
	}
	if !p.anyInputs {
		if o.Node.NumInputs() != len(p.inputs) {
			return false
		}
		for i, sub := range p.inputs {
			if !sub.matches(o.Node.Input(i), m) {
				return false
			}
		}
	}
	return m.bind(p, o)
}

// Matcher tests concrete outputs against one pattern graph. A Matcher is
// reused across candidates; each Match resets the previous bindings.
type Matcher struct {
	root     Node
	values   map[Node]ir.Output
	matched  ir.Output
	hasMatch bool
}

// NewMatcher builds a matcher for the pattern rooted at root.
func NewMatcher(root Node) *Matcher {
	return &Matcher{root: root}
}

// Match tests the candidate output. On success the value map holds the
// binding of every pattern vertex.
func (m *Matcher) Match(o ir.Output) bool {
	m.values = make(map[Node]ir.Output)
	m.hasMatch = m.root.matches(o, m)
	if m.hasMatch {
		m.matched = o
	}
	return m.hasMatch
}

// bind records that the pattern vertex matched o. A vertex appearing more
// than once in the pattern must bind to the same output every time.
func (m *Matcher) bind(p Node, o ir.Output) bool {
	if bound, found := m.values[p]; found {
		return bound == o
	}
	m.values[p] = o
	return true
}

// MatchRoot returns the output the last successful Match was rooted at.
func (m *Matcher) MatchRoot() ir.Output {
	return m.matched
}

// Value returns the output bound to the pattern vertex by the last Match.
func (m *Matcher) Value(p Node) (ir.Output, bool) {
	o, found := m.values[p]
	return o, found
}

// ValueMap returns a copy of the full binding of the last Match.
func (m *Matcher) ValueMap() map[Node]ir.Output {
	out := make(map[Node]ir.Output, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}
