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

// Package element defines ElementType, the enumeration of unit element kinds a
// tensor value (or a graph edge carrying a tensor value) can hold.
//
// Two members are special: Undefined is the zero value and means "no type set
// yet", and Dynamic means "any type" -- it is a valid type that propagates
// through type inference instead of failing it. All query methods (Bitwidth,
// IsIntegral, ...) are total over the enumeration, including the two special
// members.
package element

import (
	"github.com/gomlx/exceptions"
)

// ElementType enumerates the unit element kinds.
//
// The zero value is Undefined.
type ElementType int

//go:generate go tool enumer -type=ElementType -trimprefix= -output=elementtype_enumer.go

const (
	Undefined ElementType = iota
	Dynamic
	Boolean
	BFloat16
	Float16
	Float32
	Float64
	Int4
	Int8
	Int16
	Int32
	Int64
	Uint1
	Uint4
	Uint8
	Uint16
	Uint32
	Uint64
)

// Bitwidth returns the number of bits of one element. Undefined and Dynamic
// return 0 -- they propagate through inference and never take part in
// bit-width arithmetic.
func (t ElementType) Bitwidth() int {
	switch t {
	case Boolean, Int8, Uint8:
		return 8
	case BFloat16, Float16, Int16, Uint16:
		return 16
	case Float32, Int32, Uint32:
		return 32
	case Float64, Int64, Uint64:
		return 64
	case Int4, Uint4:
		return 4
	case Uint1:
		return 1
	default:
		return 0
	}
}

// Size returns the storage size of one element in bytes. Sub-byte types round
// up to one byte. Undefined and Dynamic return 0.
func (t ElementType) Size() int {
	bits := t.Bitwidth()
	if bits == 0 {
		return 0
	}
	return (bits + 7) / 8
}

// IsDynamic returns whether the type is one of the propagating markers
// (Dynamic or Undefined).
func (t ElementType) IsDynamic() bool {
	return t == Dynamic || t == Undefined
}

// IsStatic returns whether the type is a concrete element kind.
func (t ElementType) IsStatic() bool {
	return !t.IsDynamic()
}

// IsFloat returns whether the type is a floating-point kind.
func (t ElementType) IsFloat() bool {
	switch t {
	case BFloat16, Float16, Float32, Float64:
		return true
	}
	return false
}

// IsIntegral returns whether the type is an integer kind. Boolean counts as
// integral, following the convention of the serialization format.
func (t ElementType) IsIntegral() bool {
	switch t {
	case Boolean, Int4, Int8, Int16, Int32, Int64, Uint1, Uint4, Uint8, Uint16, Uint32, Uint64:
		return true
	}
	return false
}

// IsIntegralNumber returns whether the type is an integer kind excluding
// Boolean. Index inputs (slice starts, axes lists) must satisfy this.
func (t ElementType) IsIntegralNumber() bool {
	return t.IsIntegral() && t != Boolean
}

// IsSigned returns whether the type is a signed numeric kind.
func (t ElementType) IsSigned() bool {
	switch t {
	case BFloat16, Float16, Float32, Float64, Int4, Int8, Int16, Int32, Int64:
		return true
	}
	return false
}

// Compatible returns whether two element types could refer to the same
// concrete type: they are equal, or at least one of them is dynamic.
func (t ElementType) Compatible(other ElementType) bool {
	return t == other || t.IsDynamic() || other.IsDynamic()
}

// Merge returns the most refined type consistent with both inputs. A dynamic
// side defers to the other; two distinct static types don't merge.
func Merge(a, b ElementType) (ElementType, bool) {
	if a.IsDynamic() {
		return b, true
	}
	if b.IsDynamic() || a == b {
		return a, true
	}
	return Undefined, false
}

// precisionNames are the external (serialized) names of each type. They are
// fixed by the container format and must not drift with the Go names.
var precisionNames = map[ElementType]string{
	Undefined: "UNSPECIFIED",
	Dynamic:   "UNSPECIFIED",
	Boolean:   "BOOL",
	BFloat16:  "BF16",
	Float16:   "FP16",
	Float32:   "FP32",
	Float64:   "FP64",
	Int4:      "I4",
	Int8:      "I8",
	Int16:     "I16",
	Int32:     "I32",
	Int64:     "I64",
	Uint1:     "BIN",
	Uint4:     "U4",
	Uint8:     "U8",
	Uint16:    "U16",
	Uint32:    "U32",
	Uint64:    "U64",
}

// PrecisionName returns the name used by the serialization format for this
// type ("FP32", "I64", "BIN", ...). It panics on values outside the
// enumeration.
func (t ElementType) PrecisionName() string {
	name, found := precisionNames[t]
	if !found {
		exceptions.Panicf("element.ElementType(%d) is not a valid element type", int(t))
	}
	return name
}

// FromPrecisionName returns the ElementType for a serialized precision name.
// "UNSPECIFIED" maps back to Dynamic.
func FromPrecisionName(name string) (ElementType, bool) {
	if name == "UNSPECIFIED" {
		return Dynamic, true
	}
	for t, n := range precisionNames {
		if n == name && t != Undefined {
			return t, true
		}
	}
	return Undefined, false
}
