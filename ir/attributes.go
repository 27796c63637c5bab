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
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/irgraph/types/tensor"
)

// AttrKind tags the value kinds an operation attribute can hold. The codec
// serializes attributes with a single switch over the kind, and new kinds are
// added here rather than through per-type dispatch.
type AttrKind int

const (
	AttrBool AttrKind = iota
	AttrInt
	AttrFloat
	AttrString
	AttrInts
	AttrFloats
	AttrStrings
	AttrPayload
	AttrGraph
)

// AttrValue is the tagged union of attribute values.
type AttrValue struct {
	Kind    AttrKind
	Bool    bool
	Int     int64
	Float   float64
	Str     string
	Ints    []int64
	Floats  []float64
	Strs    []string
	Payload *tensor.Tensor
	Graph   *Function
}

// AttrVisitor walks an operation's attributes in one of two directions:
// recording them (serialization) or restoring them into the operation
// (deserialization). Operations implement VisitAttributes once and get both
// directions.
type AttrVisitor struct {
	restoring bool
	values    map[string]AttrValue
	order     []string
}

// NewAttrRecorder returns a visitor that captures attribute values in
// visitation order.
func NewAttrRecorder() *AttrVisitor {
	return &AttrVisitor{values: make(map[string]AttrValue)}
}

// NewAttrRestorer returns a visitor that writes the given values back into
// the visited attributes. Attributes with no recorded value keep their
// current (default) value.
func NewAttrRestorer(values map[string]AttrValue) *AttrVisitor {
	return &AttrVisitor{restoring: true, values: values}
}

// Restoring returns whether the visitor writes values into the operation.
func (v *AttrVisitor) Restoring() bool { return v.restoring }

// Names returns the attribute names in visitation order (recording mode).
func (v *AttrVisitor) Names() []string { return slices.Clone(v.order) }

// Value returns the recorded value for name.
func (v *AttrVisitor) Value(name string) (AttrValue, bool) {
	value, found := v.values[name]
	return value, found
}

func (v *AttrVisitor) record(name string, value AttrValue) {
	if _, found := v.values[name]; !found {
		v.order = append(v.order, name)
	}
	v.values[name] = value
}

// Bool visits a boolean attribute.
func (v *AttrVisitor) Bool(name string, value *bool) {
	if v.restoring {
		if stored, found := v.values[name]; found {
			*value = stored.Bool
		}
		return
	}
	v.record(name, AttrValue{Kind: AttrBool, Bool: *value})
}

// Int visits an integer attribute.
func (v *AttrVisitor) Int(name string, value *int64) {
	if v.restoring {
		if stored, found := v.values[name]; found {
			*value = stored.Int
		}
		return
	}
	v.record(name, AttrValue{Kind: AttrInt, Int: *value})
}

// Float visits a floating-point attribute.
func (v *AttrVisitor) Float(name string, value *float64) {
	if v.restoring {
		if stored, found := v.values[name]; found {
			*value = stored.Float
		}
		return
	}
	v.record(name, AttrValue{Kind: AttrFloat, Float: *value})
}

// String visits a string attribute.
func (v *AttrVisitor) String(name string, value *string) {
	if v.restoring {
		if stored, found := v.values[name]; found {
			*value = stored.Str
		}
		return
	}
	v.record(name, AttrValue{Kind: AttrString, Str: *value})
}

// Ints visits an integer-list attribute.
func (v *AttrVisitor) Ints(name string, value *[]int64) {
	if v.restoring {
		if stored, found := v.values[name]; found {
			*value = slices.Clone(stored.Ints)
		}
		return
	}
	v.record(name, AttrValue{Kind: AttrInts, Ints: slices.Clone(*value)})
}

// Floats visits a float-list attribute.
func (v *AttrVisitor) Floats(name string, value *[]float64) {
	if v.restoring {
		if stored, found := v.values[name]; found {
			*value = slices.Clone(stored.Floats)
		}
		return
	}
	v.record(name, AttrValue{Kind: AttrFloats, Floats: slices.Clone(*value)})
}

// Strings visits a string-list attribute.
func (v *AttrVisitor) Strings(name string, value *[]string) {
	if v.restoring {
		if stored, found := v.values[name]; found {
			*value = slices.Clone(stored.Strs)
		}
		return
	}
	v.record(name, AttrValue{Kind: AttrStrings, Strs: slices.Clone(*value)})
}

// Payload visits a raw tensor payload attribute (Constant values). The codec
// stores these in the binary stream, not inline.
func (v *AttrVisitor) Payload(name string, value **tensor.Tensor) {
	if v.restoring {
		if stored, found := v.values[name]; found {
			*value = stored.Payload
		}
		return
	}
	v.record(name, AttrValue{Kind: AttrPayload, Payload: *value})
}

// Graph visits a nested sub-graph attribute.
func (v *AttrVisitor) Graph(name string, value **Function) {
	if v.restoring {
		if stored, found := v.values[name]; found {
			*value = stored.Graph
		}
		return
	}
	v.record(name, AttrValue{Kind: AttrGraph, Graph: *value})
}

// Any visits an attribute through a pointer of any supported type. An
// unsupported type raises immediately, naming the attribute.
func (v *AttrVisitor) Any(name string, value any) {
	switch ptr := value.(type) {
	case *bool:
		v.Bool(name, ptr)
	case *int64:
		v.Int(name, ptr)
	case *float64:
		v.Float(name, ptr)
	case *string:
		v.String(name, ptr)
	case *[]int64:
		v.Ints(name, ptr)
	case *[]float64:
		v.Floats(name, ptr)
	case *[]string:
		v.Strings(name, ptr)
	case **tensor.Tensor:
		v.Payload(name, ptr)
	case **Function:
		v.Graph(name, ptr)
	default:
		exceptions.Panicf("unsupported attribute type %T for attribute %q", value, name)
	}
}
