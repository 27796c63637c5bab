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

// Package pass implements graph-to-graph transformations: a sequential pass
// manager and pattern-driven rewrite passes built on the pattern package.
//
// Passes run one at a time over a single Function; the package performs no
// concurrent mutation of a graph.
package pass

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/irgraph/ir"
	"github.com/gomlx/irgraph/pattern"
	"k8s.io/klog/v2"
)

// Pass transforms a Function in place.
type Pass interface {
	Name() string

	// Run applies the pass, reporting whether the graph changed.
	Run(f *ir.Function) (changed bool, err error)
}

// Manager runs registered passes sequentially, in registration order.
type Manager struct {
	passes []Pass
}

// NewManager returns an empty pass manager.
func NewManager() *Manager { return &Manager{} }

// Register appends a pass to the pipeline.
func (m *Manager) Register(p Pass) { m.passes = append(m.passes, p) }

// RunPasses applies every registered pass in order and re-validates the
// function after each pass that changed it. It stops at the first failure.
func (m *Manager) RunPasses(f *ir.Function) error {
	for _, p := range m.passes {
		changed, err := p.Run(f)
		if err != nil {
			return err
		}
		klog.V(1).Infof("pass %q on function %q: changed=%v", p.Name(), f.Name(), changed)
		if changed {
			if err := f.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Callback is invoked for every pattern match found by a MatcherPass. It may
// rewrite the graph (build replacement nodes, call Function.ReplaceNode) and
// returns whether it did. Returning false declines the match and must leave
// the graph untouched.
type Callback func(f *ir.Function, m *pattern.Matcher) bool

// MatcherPass applies one pattern and rewrite callback across a whole
// Function.
type MatcherPass struct {
	name     string
	root     pattern.Node
	callback Callback
}

// NewMatcherPass builds a rewrite pass from a pattern root and a callback.
func NewMatcherPass(name string, root pattern.Node, callback Callback) *MatcherPass {
	return &MatcherPass{name: name, root: root, callback: callback}
}

// Name implements Pass.
func (p *MatcherPass) Name() string { return p.name }

// Run walks a snapshot of the function's nodes in topological order, matching
// each output against the pattern and invoking the callback on hits.
// Validation failures raised during a rewrite surface as errors.
func (p *MatcherPass) Run(f *ir.Function) (changed bool, err error) {
	err = exceptions.TryCatch[error](func() {
		m := pattern.NewMatcher(p.root)
		for _, n := range f.OrderedOps() {
			for _, o := range n.Outputs() {
				if !m.Match(o) {
					continue
				}
				if p.callback(f, m) {
					changed = true
					klog.V(2).Infof("pass %q rewrote %s", p.name, n.FriendlyName())
					break
				}
			}
		}
	})
	return changed, err
}
