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
	"fmt"
	"sort"

	"github.com/gomlx/irgraph/types/dims"
	"github.com/gomlx/irgraph/types/element"
)

// TensorDescriptor is the metadata of one value flowing along a graph edge:
// element type, partial shape and the set of string aliases ("tensor names")
// the value is known by.
//
// A descriptor is created when a node declares an output and is mutated only
// by the node's type inference. Its identity is stable across re-validation,
// so consumers can hold on to it.
type TensorDescriptor struct {
	dtype element.ElementType
	shape dims.PartialShape
	names map[string]struct{}
}

func newTensorDescriptor() *TensorDescriptor {
	return &TensorDescriptor{
		dtype: element.Undefined,
		shape: dims.DynamicRankShape(),
		names: make(map[string]struct{}),
	}
}

// ElementType of the value.
func (d *TensorDescriptor) ElementType() element.ElementType { return d.dtype }

// Shape of the value, possibly partial.
func (d *TensorDescriptor) Shape() dims.PartialShape { return d.shape }

// AddName registers a string alias for the value.
func (d *TensorDescriptor) AddName(name string) {
	d.names[name] = struct{}{}
}

// HasName returns whether the alias is registered.
func (d *TensorDescriptor) HasName(name string) bool {
	_, found := d.names[name]
	return found
}

// Names returns the sorted alias list.
func (d *TensorDescriptor) Names() []string {
	out := make([]string, 0, len(d.names))
	for name := range d.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// String implements fmt.Stringer.
func (d *TensorDescriptor) String() string {
	return fmt.Sprintf("(%s)%s", d.dtype, d.shape)
}
