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
	"github.com/gomlx/irgraph/types/tensor"
)

// ConstantValueOf resolves the concrete tensor value of an output, if the
// sub-graph feeding it is constant.
//
// A Constant node resolves directly to its payload. Any other node resolves
// when it implements Evaluate and every one of its inputs resolves
// recursively. It returns (nil, false) if any node on the way is not
// constant-evaluable.
func ConstantValueOf(o Output) (*tensor.Tensor, bool) {
	return constantValueOf(o, make(map[*Node][]*tensor.Tensor))
}

func constantValueOf(o Output, memo map[*Node][]*tensor.Tensor) (*tensor.Tensor, bool) {
	n := o.Node
	if cached, found := memo[n]; found {
		if cached == nil || o.Index >= len(cached) {
			return nil, false
		}
		return cached[o.Index], true
	}
	if c, ok := n.op.(ConstantOp); ok {
		values := []*tensor.Tensor{c.Value()}
		memo[n] = values
		return values[0], true
	}
	if _, ok := n.op.(Evaluator); !ok {
		memo[n] = nil
		return nil, false
	}
	inputs := make([]*tensor.Tensor, n.NumInputs())
	for i := range inputs {
		value, ok := constantValueOf(n.Input(i), memo)
		if !ok {
			memo[n] = nil
			return nil, false
		}
		inputs[i] = value
	}
	outputs, _, err := n.Evaluate(inputs)
	if err != nil || o.Index >= len(outputs) {
		memo[n] = nil
		return nil, false
	}
	memo[n] = outputs
	return outputs[o.Index], true
}
