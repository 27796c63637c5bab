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

package tensor

import (
	"testing"

	"github.com/gomlx/irgraph/types/dims"
	"github.com/gomlx/irgraph/types/element"
	"github.com/stretchr/testify/require"
)

func TestFromInt64s(t *testing.T) {
	tn := FromInt64s(element.Int32, []int64{2, 2}, []int64{1, -2, 3, -4})
	require.Equal(t, element.Int32, tn.ElementType())
	require.Equal(t, []int64{2, 2}, tn.Dimensions())
	require.Equal(t, int64(4), tn.Size())
	require.Equal(t, int64(16), tn.Memory())
	require.Equal(t, []int64{1, -2, 3, -4}, tn.FlatInt64s())
	require.True(t, tn.Shape().Equal(dims.MakeShape(2, 2)))

	require.Panics(t, func() { FromInt64s(element.Float32, []int64{1}, []int64{0}) })
	require.Panics(t, func() { FromInt64s(element.Int32, []int64{2}, []int64{0}) })
}

func TestFromFloat32s(t *testing.T) {
	tn := FromFloat32s(element.Float16, []int64{3}, []float32{1, 0.5, -2})
	require.Equal(t, int64(6), tn.Memory())
	require.Equal(t, []float32{1, 0.5, -2}, tn.FlatFloat32s())

	tn = FromFloat32s(element.Float64, []int64{2}, []float32{1.5, -1.5})
	require.Equal(t, []float32{1.5, -1.5}, tn.FlatFloat32s())

	tn = FromFloat32s(element.BFloat16, []int64{1}, []float32{2})
	require.Equal(t, []float32{2}, tn.FlatFloat32s())
}

func TestFromBytesAndEqual(t *testing.T) {
	a := FromBytes(element.Uint8, []int64{4}, []byte{1, 2, 3, 4})
	b := FromBytes(element.Uint8, []int64{4}, []byte{1, 2, 3, 4})
	c := FromBytes(element.Uint8, []int64{4}, []byte{1, 2, 3, 5})
	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))

	require.Panics(t, func() { FromBytes(element.Int32, []int64{2}, []byte{0}) })
	require.Panics(t, func() { FromBytes(element.Dynamic, []int64{2}, []byte{0, 0}) })
}

func TestFromBools(t *testing.T) {
	tn := FromBools([]int64{3}, []bool{true, false, true})
	require.Equal(t, element.Boolean, tn.ElementType())
	require.Equal(t, []bool{true, false, true}, tn.FlatBools())
	require.Equal(t, []int64{1, 0, 1}, tn.FlatInt64s())
}
