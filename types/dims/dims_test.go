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

package dims

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDimension(t *testing.T) {
	d := Dim(3)
	require.True(t, d.IsStatic())
	require.Equal(t, int64(3), d.Length())
	require.Equal(t, "3", d.String())

	dyn := Dim(-1)
	require.True(t, dyn.IsDynamic())
	require.False(t, dyn.HasUpperBound())
	require.Equal(t, "?", dyn.String())
	require.Panics(t, func() { dyn.Length() })

	r := DimRange(2, 5)
	require.True(t, r.IsDynamic())
	require.True(t, r.HasUpperBound())
	require.Equal(t, int64(2), r.MinLength())
	require.Equal(t, int64(5), r.MaxLength())
	require.Equal(t, "2..5", r.String())

	require.Panics(t, func() { DimRange(5, 2) })
	require.Panics(t, func() { Dim(-2) })
}

func TestDimensionMerge(t *testing.T) {
	merged, ok := DimRange(2, 5).Merge(DimRange(4, 9))
	require.True(t, ok)
	require.Equal(t, DimRange(4, 5), merged)

	merged, ok = DynamicDim().Merge(Dim(7))
	require.True(t, ok)
	require.Equal(t, Dim(7), merged)

	_, ok = Dim(3).Merge(Dim(4))
	require.False(t, ok)

	require.True(t, DimRange(0, 3).Compatible(DimRange(3, 10)))
	require.False(t, DimRange(0, 2).Compatible(DimRange(3, 10)))
}

func TestPartialShape(t *testing.T) {
	s := MakeShape(2, -1, 4)
	require.True(t, s.RankIsStatic())
	require.Equal(t, 3, s.Rank())
	require.False(t, s.IsStatic())
	require.Equal(t, "[2,?,4]", s.String())
	require.Equal(t, Dim(4), s.Dim(-1))

	static := MakeShape(2, 3)
	require.True(t, static.IsStatic())
	require.Equal(t, []int64{2, 3}, static.StaticDims())
	require.Equal(t, int64(6), static.Size())

	dr := DynamicRankShape()
	require.False(t, dr.RankIsStatic())
	require.Equal(t, "[...]", dr.String())
	require.Panics(t, func() { dr.Rank() })

	scalar := MakeShape()
	require.True(t, scalar.IsStatic())
	require.Equal(t, 0, scalar.Rank())
	require.Equal(t, "[]", scalar.String())
}

func TestPartialShapeMerge(t *testing.T) {
	a := MakeShapeOf(Dim(2), DimRange(1, 10), DynamicDim())
	b := MakeShapeOf(DynamicDim(), DimRange(5, 20), Dim(7))
	merged, ok := a.Merge(b)
	require.True(t, ok)
	require.Equal(t, MakeShapeOf(Dim(2), DimRange(5, 10), Dim(7)), merged)

	// Either dynamic-rank side defers to the other.
	merged, ok = DynamicRankShape().Merge(a)
	require.True(t, ok)
	require.True(t, merged.Equal(a))

	_, ok = MakeShape(2, 3).Merge(MakeShape(2, 3, 4))
	require.False(t, ok)

	_, ok = MakeShape(2, 3).Merge(MakeShape(2, 4))
	require.False(t, ok)
}

func TestBroadcastMerge(t *testing.T) {
	merged, ok := BroadcastMerge(MakeShape(4, 1), MakeShape(3))
	require.True(t, ok)
	require.Equal(t, MakeShape(4, 3), merged)

	merged, ok = BroadcastMerge(MakeShape(2, 3), MakeShape(2, 3))
	require.True(t, ok)
	require.Equal(t, MakeShape(2, 3), merged)

	merged, ok = BroadcastMerge(MakeShape(2, -1), MakeShape(2, 5))
	require.True(t, ok)
	require.Equal(t, MakeShape(2, 5), merged)

	_, ok = BroadcastMerge(MakeShape(2, 3), MakeShape(2, 4))
	require.False(t, ok)

	merged, ok = BroadcastMerge(DynamicRankShape(), MakeShape(2))
	require.True(t, ok)
	require.False(t, merged.RankIsStatic())
}

func TestBroadcastMergeDifferingRanks(t *testing.T) {
	// The lower-rank side is right-aligned and padded with size-1 axes.
	merged, ok := BroadcastMerge(MakeShape(4, 2, 3), MakeShape(2, 3))
	require.True(t, ok)
	require.Equal(t, MakeShape(4, 2, 3), merged)

	merged, ok = BroadcastMerge(MakeShape(2, 3), MakeShape(4, 2, 3))
	require.True(t, ok)
	require.Equal(t, MakeShape(4, 2, 3), merged)

	merged, ok = BroadcastMerge(MakeShape(5, 1, 3), MakeShape(7, 3))
	require.True(t, ok)
	require.Equal(t, MakeShape(5, 7, 3), merged)

	// Scalars broadcast against anything.
	merged, ok = BroadcastMerge(MakeShape(), MakeShape(2, 3))
	require.True(t, ok)
	require.Equal(t, MakeShape(2, 3), merged)

	_, ok = BroadcastMerge(MakeShape(4, 2, 3), MakeShape(5, 3))
	require.False(t, ok)
}
