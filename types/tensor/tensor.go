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

// Package tensor implements a small host-side tensor value: an element type,
// static dimensions and a flat little-endian byte buffer.
//
// It backs Constant node payloads and the optional Evaluate contract of
// operations (constant folding). It holds data only, no device or execution
// concerns.
package tensor

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/irgraph/types/dims"
	"github.com/gomlx/irgraph/types/element"
	"github.com/x448/float16"
)

// Tensor is an immutable host tensor value.
type Tensor struct {
	dtype      element.ElementType
	dimensions []int64
	data       []byte
}

func numElements(dimensions []int64) int64 {
	size := int64(1)
	for _, d := range dimensions {
		if d < 0 {
			exceptions.Panicf("tensor dimensions must be static and non-negative, got %v", dimensions)
		}
		size *= d
	}
	return size
}

// FromBytes wraps a raw little-endian buffer. The buffer is cloned; its length
// must match the shape and element size exactly.
func FromBytes(dtype element.ElementType, dimensions []int64, data []byte) *Tensor {
	size := numElements(dimensions)
	bits := int64(dtype.Bitwidth())
	if bits == 0 {
		exceptions.Panicf("tensor.FromBytes: element type %s has no storage size", dtype)
	}
	wantBytes := (size*bits + 7) / 8
	if int64(len(data)) != wantBytes {
		exceptions.Panicf("tensor.FromBytes(%s, %v): payload has %d bytes, shape requires %d",
			dtype, dimensions, len(data), wantBytes)
	}
	return &Tensor{dtype: dtype, dimensions: slices.Clone(dimensions), data: slices.Clone(data)}
}

// FromInt64s encodes integer values into a tensor of the given integral
// element type.
func FromInt64s(dtype element.ElementType, dimensions []int64, values []int64) *Tensor {
	if !dtype.IsIntegralNumber() {
		exceptions.Panicf("tensor.FromInt64s: %s is not an integral number type", dtype)
	}
	if int64(len(values)) != numElements(dimensions) {
		exceptions.Panicf("tensor.FromInt64s(%v): got %d values, shape requires %d",
			dimensions, len(values), numElements(dimensions))
	}
	buf := new(bytes.Buffer)
	for _, v := range values {
		switch dtype {
		case element.Int8:
			buf.WriteByte(byte(int8(v)))
		case element.Uint8:
			buf.WriteByte(byte(uint8(v)))
		case element.Int16:
			_ = binary.Write(buf, binary.LittleEndian, int16(v))
		case element.Uint16:
			_ = binary.Write(buf, binary.LittleEndian, uint16(v))
		case element.Int32:
			_ = binary.Write(buf, binary.LittleEndian, int32(v))
		case element.Uint32:
			_ = binary.Write(buf, binary.LittleEndian, uint32(v))
		case element.Int64, element.Uint64:
			_ = binary.Write(buf, binary.LittleEndian, v)
		default:
			exceptions.Panicf("tensor.FromInt64s: unsupported element type %s", dtype)
		}
	}
	return &Tensor{dtype: dtype, dimensions: slices.Clone(dimensions), data: buf.Bytes()}
}

// FromFloat32s encodes float values into a tensor of a floating element type
// (Float16 goes through IEEE 754 half-precision conversion).
func FromFloat32s(dtype element.ElementType, dimensions []int64, values []float32) *Tensor {
	if !dtype.IsFloat() {
		exceptions.Panicf("tensor.FromFloat32s: %s is not a float type", dtype)
	}
	if int64(len(values)) != numElements(dimensions) {
		exceptions.Panicf("tensor.FromFloat32s(%v): got %d values, shape requires %d",
			dimensions, len(values), numElements(dimensions))
	}
	buf := new(bytes.Buffer)
	for _, v := range values {
		switch dtype {
		case element.Float16:
			_ = binary.Write(buf, binary.LittleEndian, float16.Fromfloat32(v).Bits())
		case element.BFloat16:
			_ = binary.Write(buf, binary.LittleEndian, uint16(math.Float32bits(v)>>16))
		case element.Float32:
			_ = binary.Write(buf, binary.LittleEndian, v)
		case element.Float64:
			_ = binary.Write(buf, binary.LittleEndian, float64(v))
		}
	}
	return &Tensor{dtype: dtype, dimensions: slices.Clone(dimensions), data: buf.Bytes()}
}

// FromBools encodes boolean values into a Boolean tensor, one byte each.
func FromBools(dimensions []int64, values []bool) *Tensor {
	if int64(len(values)) != numElements(dimensions) {
		exceptions.Panicf("tensor.FromBools(%v): got %d values, shape requires %d",
			dimensions, len(values), numElements(dimensions))
	}
	data := make([]byte, len(values))
	for i, v := range values {
		if v {
			data[i] = 1
		}
	}
	return &Tensor{dtype: element.Boolean, dimensions: slices.Clone(dimensions), data: data}
}

// ElementType of the tensor.
func (t *Tensor) ElementType() element.ElementType { return t.dtype }

// Dimensions returns a copy of the static dimensions.
func (t *Tensor) Dimensions() []int64 { return slices.Clone(t.dimensions) }

// Shape returns the (static) partial shape of the tensor.
func (t *Tensor) Shape() dims.PartialShape { return dims.MakeShape(t.dimensions...) }

// Rank of the tensor.
func (t *Tensor) Rank() int { return len(t.dimensions) }

// Size returns the number of elements.
func (t *Tensor) Size() int64 { return numElements(t.dimensions) }

// Data returns the underlying little-endian byte buffer. Callers must not
// mutate it.
func (t *Tensor) Data() []byte { return t.data }

// Memory returns the payload size in bytes.
func (t *Tensor) Memory() int64 { return int64(len(t.data)) }

// Equal compares element type, dimensions and payload bytes.
func (t *Tensor) Equal(other *Tensor) bool {
	return t.dtype == other.dtype &&
		slices.Equal(t.dimensions, other.dimensions) &&
		bytes.Equal(t.data, other.data)
}

// FlatInt64s decodes the buffer as a flat []int64. Only defined for integral
// number types and Boolean (0/1).
func (t *Tensor) FlatInt64s() []int64 {
	size := t.Size()
	out := make([]int64, size)
	switch t.dtype {
	case element.Boolean, element.Uint8:
		for i := range out {
			out[i] = int64(t.data[i])
		}
	case element.Int8:
		for i := range out {
			out[i] = int64(int8(t.data[i]))
		}
	case element.Int16:
		for i := range out {
			out[i] = int64(int16(binary.LittleEndian.Uint16(t.data[i*2:])))
		}
	case element.Uint16:
		for i := range out {
			out[i] = int64(binary.LittleEndian.Uint16(t.data[i*2:]))
		}
	case element.Int32:
		for i := range out {
			out[i] = int64(int32(binary.LittleEndian.Uint32(t.data[i*4:])))
		}
	case element.Uint32:
		for i := range out {
			out[i] = int64(binary.LittleEndian.Uint32(t.data[i*4:]))
		}
	case element.Int64, element.Uint64:
		for i := range out {
			out[i] = int64(binary.LittleEndian.Uint64(t.data[i*8:]))
		}
	default:
		exceptions.Panicf("Tensor.FlatInt64s: cannot cast %s to int64", t.dtype)
	}
	return out
}

// FlatBools decodes a Boolean tensor as a flat []bool.
func (t *Tensor) FlatBools() []bool {
	if t.dtype != element.Boolean {
		exceptions.Panicf("Tensor.FlatBools: tensor is %s, not Boolean", t.dtype)
	}
	out := make([]bool, t.Size())
	for i := range out {
		out[i] = t.data[i] != 0
	}
	return out
}

// FlatFloat32s decodes a float tensor as a flat []float32.
func (t *Tensor) FlatFloat32s() []float32 {
	size := t.Size()
	out := make([]float32, size)
	switch t.dtype {
	case element.Float16:
		for i := range out {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(t.data[i*2:])).Float32()
		}
	case element.BFloat16:
		for i := range out {
			out[i] = math.Float32frombits(uint32(binary.LittleEndian.Uint16(t.data[i*2:])) << 16)
		}
	case element.Float32:
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(t.data[i*4:]))
		}
	case element.Float64:
		for i := range out {
			out[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(t.data[i*8:])))
		}
	default:
		exceptions.Panicf("Tensor.FlatFloat32s: cannot cast %s to float32", t.dtype)
	}
	return out
}

// String prints the element type and dimensions, not the payload.
func (t *Tensor) String() string {
	return fmt.Sprintf("(%s)%v", t.dtype, t.dimensions)
}
