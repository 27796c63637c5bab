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

package ops

import (
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/irgraph/ir"
	"github.com/gomlx/irgraph/types/dims"
	"github.com/gomlx/irgraph/types/element"
	"github.com/gomlx/irgraph/types/tensor"
	"github.com/stretchr/testify/require"
)

func TestReverseInference(t *testing.T) {
	data := NewParameter(element.Float32, dims.MakeShape(2, 3, 4))
	n := NewReverse(data.Output(0), ConstInt64s(0, 2).Output(0), ReverseIndex)
	require.True(t, n.Output(0).Shape().Equal(dims.MakeShape(2, 3, 4)))
	require.Equal(t, element.Float32, n.Output(0).ElementType())

	mask := NewConstant(tensor.FromBools([]int64{3}, []bool{true, false, true}))
	n = NewReverse(data.Output(0), mask.Output(0), ReverseMask)
	require.True(t, n.Output(0).Shape().Equal(dims.MakeShape(2, 3, 4)))
}

func TestReverseValidationErrors(t *testing.T) {
	data := NewParameter(element.Float32, dims.MakeShape(2, 3))

	// Axis out of range.
	err := exceptions.TryCatch[error](func() {
		NewReverse(data.Output(0), ConstInt64s(2).Output(0), ReverseIndex)
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "must be in range")

	// More axes than rank.
	err = exceptions.TryCatch[error](func() {
		NewReverse(data.Output(0), ConstInt64s(0, 1, 0).Output(0), ReverseIndex)
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "can't be bigger")

	// Mask of the wrong length.
	err = exceptions.TryCatch[error](func() {
		mask := NewConstant(tensor.FromBools([]int64{3}, []bool{true, false, true}))
		NewReverse(data.Output(0), mask.Output(0), ReverseMask)
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "must equal")

	// Non-1-D axes.
	err = exceptions.TryCatch[error](func() {
		axes := NewParameter(element.Int64, dims.MakeShape(1, 1))
		NewReverse(data.Output(0), axes.Output(0), ReverseIndex)
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "1D tensor")

	// Mask mode requires boolean axes.
	err = exceptions.TryCatch[error](func() {
		NewReverse(data.Output(0), ConstInt64s(0, 1).Output(0), ReverseMask)
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "must be boolean")
}

func evaluateReverse(t *testing.T, n *ir.Node) *tensor.Tensor {
	t.Helper()
	value, ok := ir.ConstantValueOf(n.Output(0))
	require.True(t, ok)
	return value
}

func TestReverseEvaluateRank2(t *testing.T) {
	data := NewConstant(tensor.FromInt64s(element.Int32, []int64{2, 3}, []int64{
		1, 2, 3,
		4, 5, 6,
	}))

	// Reverse rows.
	n := NewReverse(data.Output(0), ConstInt64s(0).Output(0), ReverseIndex)
	require.Equal(t, []int64{4, 5, 6, 1, 2, 3}, evaluateReverse(t, n).FlatInt64s())

	// Reverse columns.
	n = NewReverse(data.Output(0), ConstInt64s(1).Output(0), ReverseIndex)
	require.Equal(t, []int64{3, 2, 1, 6, 5, 4}, evaluateReverse(t, n).FlatInt64s())

	// Both axes.
	n = NewReverse(data.Output(0), ConstInt64s(0, 1).Output(0), ReverseIndex)
	require.Equal(t, []int64{6, 5, 4, 3, 2, 1}, evaluateReverse(t, n).FlatInt64s())

	// Empty axes list: identity.
	n = NewReverse(data.Output(0), ConstInt64s().Output(0), ReverseIndex)
	require.Equal(t, []int64{1, 2, 3, 4, 5, 6}, evaluateReverse(t, n).FlatInt64s())
}

func TestReverseEvaluateRank3Mask(t *testing.T) {
	values := make([]int64, 2*2*2)
	for i := range values {
		values[i] = int64(i)
	}
	data := NewConstant(tensor.FromInt64s(element.Int64, []int64{2, 2, 2}, values))
	mask := NewConstant(tensor.FromBools([]int64{3}, []bool{false, true, true}))
	n := NewReverse(data.Output(0), mask.Output(0), ReverseMask)
	require.Equal(t, []int64{3, 2, 1, 0, 7, 6, 5, 4}, evaluateReverse(t, n).FlatInt64s())
}

// Reversing twice along the same axes is the identity.
func TestReverseDoubleApplication(t *testing.T) {
	data := NewConstant(tensor.FromInt64s(element.Int32, []int64{3, 4}, []int64{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
	}))
	axes := ConstInt64s(0, 1)
	once := NewReverse(data.Output(0), axes.Output(0), ReverseIndex)
	twice := NewReverse(once.Output(0), axes.Output(0), ReverseIndex)
	value := evaluateReverse(t, twice)
	original, ok := ir.ConstantValueOf(data.Output(0))
	require.True(t, ok)
	require.True(t, value.Equal(original))
}
