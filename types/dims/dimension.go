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

// Package dims defines Dimension and PartialShape, the shape algebra used by
// the graph's type inference.
//
// A Dimension is an interval [min, max] of possible extents for one axis: a
// static dimension has min == max, a fully dynamic one is [0, unbounded). A
// PartialShape is an ordered sequence of Dimension, or a marker for
// "rank itself unknown". Two shapes are compatible when a concrete shape
// exists that refines both; merging compatible shapes intersects them axis by
// axis.
package dims

import (
	"fmt"
	"math"

	"github.com/gomlx/exceptions"
)

// Unbounded marks a Dimension with no upper bound.
const Unbounded = int64(math.MaxInt64)

// Dimension is the extent of one axis: an interval of possible lengths.
//
// The zero value is the static dimension 0. Use Dim, DimRange or DynamicDim
// to construct.
type Dimension struct {
	min, max int64
}

// Dim returns a static Dimension of length n. Negative n panics, except for
// the conventional -1 which means fully dynamic.
func Dim(n int64) Dimension {
	if n == -1 {
		return DynamicDim()
	}
	if n < 0 {
		exceptions.Panicf("dims.Dim(%d): dimension cannot be negative", n)
	}
	return Dimension{min: n, max: n}
}

// DimRange returns a Dimension bounded to [min, max]. Pass Unbounded (or -1)
// as max for no upper bound.
func DimRange(min, max int64) Dimension {
	if max == -1 {
		max = Unbounded
	}
	if min < 0 || min > max {
		exceptions.Panicf("dims.DimRange(%d, %d): requires 0 <= min <= max", min, max)
	}
	return Dimension{min: min, max: max}
}

// DynamicDim returns the fully dynamic Dimension [0, unbounded).
func DynamicDim() Dimension {
	return Dimension{min: 0, max: Unbounded}
}

// IsStatic returns whether the dimension has exactly one possible length.
func (d Dimension) IsStatic() bool { return d.min == d.max }

// IsDynamic returns whether more than one length is possible.
func (d Dimension) IsDynamic() bool { return !d.IsStatic() }

// Length returns the static length. It panics if the dimension is dynamic.
func (d Dimension) Length() int64 {
	if d.IsDynamic() {
		exceptions.Panicf("Dimension.Length() called on dynamic dimension %s", d)
	}
	return d.min
}

// MinLength returns the interval's lower bound.
func (d Dimension) MinLength() int64 { return d.min }

// MaxLength returns the interval's upper bound, Unbounded when there is none.
func (d Dimension) MaxLength() int64 { return d.max }

// HasUpperBound returns whether the interval is bounded above.
func (d Dimension) HasUpperBound() bool { return d.max != Unbounded }

// Compatible returns whether the two intervals overlap, that is, whether some
// concrete length satisfies both.
func (d Dimension) Compatible(other Dimension) bool {
	return d.min <= other.max && other.min <= d.max
}

// Merge intersects two dimension intervals. ok is false when the intervals
// don't overlap.
func (d Dimension) Merge(other Dimension) (merged Dimension, ok bool) {
	if !d.Compatible(other) {
		return Dimension{}, false
	}
	return Dimension{min: max(d.min, other.min), max: min(d.max, other.max)}, true
}

// Equal compares the intervals exactly.
func (d Dimension) Equal(other Dimension) bool { return d == other }

// String prints "3" for static, "2..5" for bounded intervals and "?" for the
// fully dynamic dimension.
func (d Dimension) String() string {
	if d.IsStatic() {
		return fmt.Sprintf("%d", d.min)
	}
	if d.min == 0 && d.max == Unbounded {
		return "?"
	}
	if d.max == Unbounded {
		return fmt.Sprintf("%d..", d.min)
	}
	return fmt.Sprintf("%d..%d", d.min, d.max)
}
