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

package layout

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	l := MustParse("NCHW")
	require.True(t, l.RankIsStatic())
	require.Equal(t, 4, l.Rank())
	require.Equal(t, "[N,C,H,W]", l.String())

	idx, err := l.IndexByName("H")
	require.NoError(t, err)
	require.Equal(t, 2, idx)

	_, err = l.IndexByName("X")
	require.Error(t, err)

	l = MustParse("nchw")
	require.Equal(t, "[N,C,H,W]", l.String())

	l = MustParse("NC?")
	require.Equal(t, 3, l.Rank())
	require.Equal(t, "[N,C,?]", l.String())
	require.False(t, l.HasName("?"))

	l = MustParse("[N,C,H,W]")
	require.Equal(t, "[N,C,H,W]", l.String())

	l = MustParse("[N,...,CustomName]")
	require.False(t, l.RankIsStatic())
	require.True(t, l.HasName("CustomName"))
	idx, err = l.IndexByName("CustomName")
	require.NoError(t, err)
	require.Equal(t, -1, idx)

	_, err = Parse("NCN")
	require.Error(t, err)
	_, err = Parse("N...C...")
	require.Error(t, err)
	_, err = Parse("[N,C")
	require.Error(t, err)
}

func TestDynamicRank(t *testing.T) {
	l := MustParse("N...C")
	require.False(t, l.RankIsStatic())
	require.Equal(t, -1, l.Rank())
	require.Equal(t, "[N,...,C]", l.String())

	idx, err := l.IndexByName("N")
	require.NoError(t, err)
	require.Equal(t, 0, idx)

	idx, err = l.IndexByName("C")
	require.NoError(t, err)
	require.Equal(t, -1, idx)

	l = MustParse("NC...")
	require.Equal(t, "[N,C,...]", l.String())
	require.True(t, HasBatch(l))
	require.True(t, HasChannels(l))
	require.False(t, HasWidth(l))
}

func TestHelpers(t *testing.T) {
	l := MustParse("NCDHW")
	idx, err := BatchIndex(l)
	require.NoError(t, err)
	require.Equal(t, 0, idx)
	idx, err = ChannelsIndex(l)
	require.NoError(t, err)
	require.Equal(t, 1, idx)
	idx, err = DepthIndex(l)
	require.NoError(t, err)
	require.Equal(t, 2, idx)
	idx, err = HeightIndex(l)
	require.NoError(t, err)
	require.Equal(t, 3, idx)
	idx, err = WidthIndex(l)
	require.NoError(t, err)
	require.Equal(t, 4, idx)

	_, err = BatchIndex(MustParse("CHW"))
	require.Error(t, err)
}

func TestFindPermutation(t *testing.T) {
	perm, err := FindPermutation(MustParse("NCHW"), -1, MustParse("NHWC"))
	require.NoError(t, err)
	require.Equal(t, []int64{0, 2, 3, 1}, perm)

	// Identity.
	perm, err = FindPermutation(MustParse("NCHW"), -1, MustParse("NCHW"))
	require.NoError(t, err)
	require.Equal(t, []int64{0, 1, 2, 3}, perm)

	// Unnamed axes pair up positionally within the unnamed span.
	perm, err = FindPermutation(MustParse("N??C"), -1, MustParse("NC??"))
	require.NoError(t, err)
	require.Equal(t, []int64{0, 3, 1, 2}, perm)

	// Dynamic-rank source needs an explicit rank.
	_, err = FindPermutation(MustParse("N...C"), -1, MustParse("NC??"))
	require.Error(t, err)

	perm, err = FindPermutation(MustParse("N...C"), 4, MustParse("NC??"))
	require.NoError(t, err)
	require.Equal(t, []int64{0, 3, 1, 2}, perm)

	// Destination names an axis missing from source.
	_, err = FindPermutation(MustParse("NCHW"), -1, MustParse("NCHD"))
	require.Error(t, err)

	// Empty side: no information, no permutation.
	perm, err = FindPermutation(Layout{}, -1, MustParse("NCHW"))
	require.NoError(t, err)
	require.Nil(t, perm)
}

func TestApplyPermutation(t *testing.T) {
	l, err := ApplyPermutation(MustParse("NCHW"), []int64{0, 2, 3, 1})
	require.NoError(t, err)
	require.Equal(t, "[N,H,W,C]", l.String())

	_, err = ApplyPermutation(MustParse("N...C"), []int64{0, 1})
	require.Error(t, err)

	_, err = ApplyPermutation(MustParse("NC"), []int64{0, 5})
	require.Error(t, err)
}
