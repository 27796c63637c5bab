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

// Package layout attaches symbolic axis names ("N", "C", "H", "W", ...) to
// the axes of a shape, independent of the shape itself.
//
// A Layout can be parsed from a compact string:
//
//   - "NCHW" names all four axes;
//   - "NC?" leaves the 3rd axis unnamed;
//   - "N...C" has dynamic rank: first axis N, last axis C, unknown middle;
//   - "[N,C,H,W]" or "[N,...,Custom]" is the advanced syntax allowing
//     multi-character names.
//
// Names are unique within a layout. Lookup by an absent name is an error.
package layout

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Layout is a named-axis labeling. The zero value is the empty (fully
// unknown) layout.
type Layout struct {
	// left holds axis names from the front, right from the back (only
	// non-empty for dynamic-rank layouts). Empty string means unnamed.
	left, right []string

	dynamic bool
	scalar  bool
}

// Scalar returns the layout of a rank-0 value.
func Scalar() Layout {
	return Layout{scalar: true}
}

// Parse builds a Layout from its string representation. See the package
// documentation for the accepted forms.
func Parse(s string) (Layout, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Layout{dynamic: true}, nil
	}
	if strings.EqualFold(s, "scalar") {
		return Scalar(), nil
	}

	var items []string
	if strings.HasPrefix(s, "[") {
		if !strings.HasSuffix(s, "]") {
			return Layout{}, errors.Errorf("layout %q: missing closing bracket", s)
		}
		for _, item := range strings.Split(s[1:len(s)-1], ",") {
			items = append(items, strings.TrimSpace(item))
		}
	} else {
		for i := 0; i < len(s); {
			if strings.HasPrefix(s[i:], "...") {
				items = append(items, "...")
				i += 3
				continue
			}
			c := s[i]
			if c == '?' {
				items = append(items, "?")
			} else if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
				items = append(items, strings.ToUpper(string(c)))
			} else {
				return Layout{}, errors.Errorf("layout %q: invalid character %q", s, c)
			}
			i++
		}
	}

	var l Layout
	target := &l.left
	for _, item := range items {
		switch item {
		case "...":
			if l.dynamic {
				return Layout{}, errors.Errorf("layout %q: only one dynamic span (\"...\") is allowed", s)
			}
			l.dynamic = true
			target = &l.right
		case "?", "":
			*target = append(*target, "")
		default:
			if l.HasName(item) {
				return Layout{}, errors.Errorf("layout %q: duplicate axis name %q", s, item)
			}
			*target = append(*target, item)
		}
	}
	return l, nil
}

// MustParse is Parse that panics on error. Meant for layout literals.
func MustParse(s string) Layout {
	l, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return l
}

// Empty reports whether the layout carries no information.
func (l Layout) Empty() bool {
	return !l.scalar && len(l.left) == 0 && len(l.right) == 0
}

// RankIsStatic returns whether the layout pins down the rank.
func (l Layout) RankIsStatic() bool { return !l.dynamic }

// Rank returns the rank of a static layout, or -1 for a dynamic one.
func (l Layout) Rank() int {
	if l.dynamic {
		return -1
	}
	return len(l.left)
}

// HasName returns whether some axis carries the given name.
func (l Layout) HasName(name string) bool {
	_, err := l.IndexByName(name)
	return err == nil
}

// IndexByName returns the axis index for a name. For dynamic-rank layouts a
// negative index counts from the end (-1 is the last axis). An absent name is
// an error.
func (l Layout) IndexByName(name string) (int, error) {
	for i, n := range l.left {
		if n != "" && n == name {
			return i, nil
		}
	}
	for i, n := range l.right {
		if n != "" && n == name {
			return i - len(l.right), nil
		}
	}
	return 0, errors.Errorf("layout %s has no axis named %q", l, name)
}

// Equal compares two layouts for identical naming.
func (l Layout) Equal(other Layout) bool {
	if l.scalar != other.scalar || l.dynamic != other.dynamic {
		return false
	}
	if len(l.left) != len(other.left) || len(l.right) != len(other.right) {
		return false
	}
	for i := range l.left {
		if l.left[i] != other.left[i] {
			return false
		}
	}
	for i := range l.right {
		if l.right[i] != other.right[i] {
			return false
		}
	}
	return true
}

// String returns the canonical advanced-syntax representation.
func (l Layout) String() string {
	if l.scalar {
		return "[SCALAR]"
	}
	var parts []string
	for _, n := range l.left {
		if n == "" {
			n = "?"
		}
		parts = append(parts, n)
	}
	if l.dynamic {
		parts = append(parts, "...")
	}
	for _, n := range l.right {
		if n == "" {
			n = "?"
		}
		parts = append(parts, n)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// expand returns the per-axis names of the layout stretched to the given
// rank, empty strings for unnamed axes.
func (l Layout) expand(rank int) ([]string, error) {
	if !l.dynamic {
		if len(l.left) != rank {
			return nil, errors.Errorf("layout %s has rank %d, expected %d", l, len(l.left), rank)
		}
		return append([]string(nil), l.left...), nil
	}
	if len(l.left)+len(l.right) > rank {
		return nil, errors.Errorf("layout %s does not fit into rank %d", l, rank)
	}
	names := make([]string, rank)
	copy(names, l.left)
	copy(names[rank-len(l.right):], l.right)
	return names, nil
}

// FindPermutation computes the permutation perm such that gathering the
// source axes as perm[0], perm[1], ... reorders them to match dst's axis
// naming. rank is required only when src has dynamic rank (pass -1
// otherwise). Unnamed axes on either side are matched positionally, in
// order, within their unnamed spans. A named axis on one side with no
// counterpart on the other that cannot be absorbed positionally is an error.
//
// A nil, nil return means no reordering information is available (one of the
// layouts is empty).
func FindPermutation(src Layout, rank int, dst Layout) ([]int64, error) {
	if src.Empty() || dst.Empty() {
		return nil, nil
	}
	if !src.RankIsStatic() && rank < 0 {
		return nil, errors.Errorf("source layout %s has dynamic rank, an explicit rank is required", src)
	}
	if src.RankIsStatic() {
		if rank < 0 {
			rank = src.Rank()
		} else if rank != src.Rank() {
			return nil, errors.Errorf("source layout %s has rank %d, got explicit rank %d", src, src.Rank(), rank)
		}
	}
	srcNames, err := src.expand(rank)
	if err != nil {
		return nil, err
	}
	dstNames, err := dst.expand(rank)
	if err != nil {
		return nil, errors.Wrapf(err, "destination layout %s is incompatible with rank %d", dst, rank)
	}

	perm := make([]int64, rank)
	used := make([]bool, rank)
	// Named destination axes bind to the same name on the source side.
	for j, name := range dstNames {
		if name == "" {
			continue
		}
		found := -1
		for i, srcName := range srcNames {
			if srcName == name {
				found = i
				break
			}
		}
		if found < 0 {
			return nil, errors.Errorf("cannot map layout %s to %s: axis %q is missing on the source side", src, dst, name)
		}
		perm[j] = int64(found)
		used[found] = true
	}
	// Unnamed destination axes absorb the remaining source axes in order.
	next := 0
	for j, name := range dstNames {
		if name != "" {
			continue
		}
		for next < rank && used[next] {
			next++
		}
		if next == rank {
			return nil, errors.Errorf("cannot map layout %s to %s: no source axis left for position %d", src, dst, j)
		}
		if srcNames[next] != "" && !dst.HasName(srcNames[next]) && countNamed(dstNames) == countNamed(srcNames) {
			return nil, errors.Errorf("cannot map layout %s to %s: source axis %q has no counterpart", src, dst, srcNames[next])
		}
		perm[j] = int64(next)
		used[next] = true
	}
	return perm, nil
}

func countNamed(names []string) int {
	count := 0
	for _, n := range names {
		if n != "" {
			count++
		}
	}
	return count
}

// ApplyPermutation reorders a static-rank layout's names by the given
// permutation: result axis i is named after src axis perm[i].
func ApplyPermutation(src Layout, perm []int64) (Layout, error) {
	if !src.RankIsStatic() {
		return Layout{}, errors.Errorf("cannot permute dynamic-rank layout %s", src)
	}
	names := make([]string, len(perm))
	for i, p := range perm {
		if p < 0 || int(p) >= len(src.left) {
			return Layout{}, errors.Errorf("permutation index %d out of range for layout %s", p, src)
		}
		names[i] = src.left[p]
	}
	return Layout{left: names}, nil
}

// Axis-name conventions shared with the original model formats.
const (
	batchName    = "N"
	channelsName = "C"
	depthName    = "D"
	heightName   = "H"
	widthName    = "W"
)

// HasBatch returns whether the layout names a batch ("N") axis.
func HasBatch(l Layout) bool { return l.HasName(batchName) }

// BatchIndex returns the batch axis index.
func BatchIndex(l Layout) (int, error) { return l.IndexByName(batchName) }

// HasChannels returns whether the layout names a channels ("C") axis.
func HasChannels(l Layout) bool { return l.HasName(channelsName) }

// ChannelsIndex returns the channels axis index.
func ChannelsIndex(l Layout) (int, error) { return l.IndexByName(channelsName) }

// HasDepth returns whether the layout names a depth ("D") axis.
func HasDepth(l Layout) bool { return l.HasName(depthName) }

// DepthIndex returns the depth axis index.
func DepthIndex(l Layout) (int, error) { return l.IndexByName(depthName) }

// HasHeight returns whether the layout names a height ("H") axis.
func HasHeight(l Layout) bool { return l.HasName(heightName) }

// HeightIndex returns the height axis index.
func HeightIndex(l Layout) (int, error) { return l.IndexByName(heightName) }

// HasWidth returns whether the layout names a width ("W") axis.
func HasWidth(l Layout) bool { return l.HasName(widthName) }

// WidthIndex returns the width axis index.
func WidthIndex(l Layout) (int, error) { return l.IndexByName(widthName) }

var _ = fmt.Stringer(Layout{})
