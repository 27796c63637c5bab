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
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
)

// PartialShape is an ordered sequence of Dimension, or a marker for a shape
// whose rank itself is unknown.
//
// The zero value is the scalar shape (rank 0, static). Use DynamicRankShape
// for the fully unknown shape.
type PartialShape struct {
	rankDynamic bool
	dimensions  []Dimension
}

// MakeShape builds a PartialShape from extents, with -1 meaning a fully
// dynamic dimension.
func MakeShape(extents ...int64) PartialShape {
	ds := make([]Dimension, len(extents))
	for i, e := range extents {
		ds[i] = Dim(e)
	}
	return PartialShape{dimensions: ds}
}

// MakeShapeOf builds a PartialShape from explicit Dimension values. The slice
// is cloned.
func MakeShapeOf(dimensions ...Dimension) PartialShape {
	return PartialShape{dimensions: slices.Clone(dimensions)}
}

// DynamicRankShape returns the shape with unknown rank.
func DynamicRankShape() PartialShape {
	return PartialShape{rankDynamic: true}
}

// DynamicShape returns a shape of known rank where every dimension is fully
// dynamic.
func DynamicShape(rank int) PartialShape {
	ds := make([]Dimension, rank)
	for i := range ds {
		ds[i] = DynamicDim()
	}
	return PartialShape{dimensions: ds}
}

// RankIsStatic returns whether the rank of the shape is known.
func (s PartialShape) RankIsStatic() bool { return !s.rankDynamic }

// Rank returns the number of axes. It panics when the rank is dynamic.
func (s PartialShape) Rank() int {
	if s.rankDynamic {
		exceptions.Panicf("PartialShape.Rank() called on dynamic-rank shape")
	}
	return len(s.dimensions)
}

// IsStatic returns whether rank and every dimension are fully known.
func (s PartialShape) IsStatic() bool {
	if s.rankDynamic {
		return false
	}
	for _, d := range s.dimensions {
		if d.IsDynamic() {
			return false
		}
	}
	return true
}

// IsDynamic returns whether any part of the shape is unknown.
func (s PartialShape) IsDynamic() bool { return !s.IsStatic() }

// Dim returns the i-th dimension. Negative i counts from the end.
func (s PartialShape) Dim(i int) Dimension {
	adjusted := i
	if adjusted < 0 {
		adjusted += len(s.dimensions)
	}
	if s.rankDynamic || adjusted < 0 || adjusted >= len(s.dimensions) {
		exceptions.Panicf("PartialShape.Dim(%d) out-of-bounds for shape %s", i, s)
	}
	return s.dimensions[adjusted]
}

// SetDim returns a copy of the shape with the i-th dimension replaced.
func (s PartialShape) SetDim(i int, d Dimension) PartialShape {
	if s.rankDynamic || i < 0 || i >= len(s.dimensions) {
		exceptions.Panicf("PartialShape.SetDim(%d) out-of-bounds for shape %s", i, s)
	}
	ds := slices.Clone(s.dimensions)
	ds[i] = d
	return PartialShape{dimensions: ds}
}

// Dimensions returns a copy of the dimension list. Empty for dynamic rank.
func (s PartialShape) Dimensions() []Dimension {
	return slices.Clone(s.dimensions)
}

// Clone returns a deep copy.
func (s PartialShape) Clone() PartialShape {
	return PartialShape{rankDynamic: s.rankDynamic, dimensions: slices.Clone(s.dimensions)}
}

// Compatible returns whether a concrete shape exists refining both shapes:
// same rank (or either rank dynamic) and overlapping intervals on every axis.
func (s PartialShape) Compatible(other PartialShape) bool {
	if s.rankDynamic || other.rankDynamic {
		return true
	}
	if len(s.dimensions) != len(other.dimensions) {
		return false
	}
	for i, d := range s.dimensions {
		if !d.Compatible(other.dimensions[i]) {
			return false
		}
	}
	return true
}

// Merge intersects two compatible shapes axis by axis. A dynamic-rank side
// defers entirely to the other. ok is false when the shapes are incompatible.
func (s PartialShape) Merge(other PartialShape) (merged PartialShape, ok bool) {
	if s.rankDynamic {
		return other.Clone(), true
	}
	if other.rankDynamic {
		return s.Clone(), true
	}
	if len(s.dimensions) != len(other.dimensions) {
		return PartialShape{}, false
	}
	ds := make([]Dimension, len(s.dimensions))
	for i, d := range s.dimensions {
		ds[i], ok = d.Merge(other.dimensions[i])
		if !ok {
			return PartialShape{}, false
		}
	}
	return PartialShape{dimensions: ds}, true
}

// BroadcastMerge merges two shapes under numpy broadcast rules: shapes are
// right-aligned, size-1 axes stretch, dynamic axes stay dynamic. Used by
// element-wise binary ops.
func BroadcastMerge(a, b PartialShape) (merged PartialShape, ok bool) {
	if a.rankDynamic || b.rankDynamic {
		return DynamicRankShape(), true
	}
	rank := max(len(a.dimensions), len(b.dimensions))
	ds := make([]Dimension, rank)
	for i := 0; i < rank; i++ {
		da, db := Dim(1), Dim(1)
		if i >= rank-len(a.dimensions) {
			da = a.dimensions[len(a.dimensions)-rank+i]
		}
		if i >= rank-len(b.dimensions) {
			db = b.dimensions[len(b.dimensions)-rank+i]
		}
		switch {
		case da.IsStatic() && da.Length() == 1:
			ds[i] = db
		case db.IsStatic() && db.Length() == 1:
			ds[i] = da
		default:
			var mergedDim Dimension
			mergedDim, ok = da.Merge(db)
			if !ok {
				return PartialShape{}, false
			}
			ds[i] = mergedDim
		}
	}
	return PartialShape{dimensions: ds}, true
}

// Equal compares rank and every dimension interval exactly.
func (s PartialShape) Equal(other PartialShape) bool {
	if s.rankDynamic != other.rankDynamic {
		return false
	}
	return slices.Equal(s.dimensions, other.dimensions)
}

// StaticDims returns the extents of a fully static shape. It panics
// otherwise.
func (s PartialShape) StaticDims() []int64 {
	if !s.IsStatic() {
		exceptions.Panicf("PartialShape.StaticDims() called on dynamic shape %s", s)
	}
	out := make([]int64, len(s.dimensions))
	for i, d := range s.dimensions {
		out[i] = d.Length()
	}
	return out
}

// Size returns the number of elements of a fully static shape.
func (s PartialShape) Size() int64 {
	size := int64(1)
	for _, d := range s.StaticDims() {
		size *= d
	}
	return size
}

// String prints "[1,2..3,?]", "[...]" for dynamic rank and "[]" for scalars.
func (s PartialShape) String() string {
	if s.rankDynamic {
		return "[...]"
	}
	parts := make([]string, len(s.dimensions))
	for i, d := range s.dimensions {
		parts[i] = d.String()
	}
	return "[" + strings.Join(parts, ",") + "]"
}
