package flat

import (
	"bytes"
	"errors"
	"math/rand"
	"sort"
	"testing"

	bloom "github.com/brown-csci1270/bloofi/pkg/bloom"
	hash "github.com/brown-csci1270/bloofi/pkg/hash"
	stats "github.com/brown-csci1270/bloofi/pkg/stats"
	utils "github.com/brown-csci1270/bloofi/pkg/utils"
	"github.com/stretchr/testify/require"
)

const testMaxKey = 2000

func TestFlat(t *testing.T) {
	t.Run("Empty", testEmpty)
	t.Run("Equivalence", testEquivalence)
	t.Run("BlockRemoval", testBlockRemoval)
	t.Run("UpdateAndReplace", testUpdateAndReplace)
	t.Run("Errors", testErrors)
	t.Run("Compaction", testCompaction)
	t.Run("Print", testPrint)
}

// =====================================================================
// HELPERS
// =====================================================================

func randomFilters(t *testing.T, h *hash.Hasher, first int, count int, seed int64) []*bloom.BloomFilter {
	r := rand.New(rand.NewSource(seed))
	filters := make([]*bloom.BloomFilter, count)
	for i := range filters {
		bf, err := bloom.NewWithSize(h, 1000, 100, bloom.Hamming)
		require.NoError(t, err)
		bf.SetID(first + i)
		for j := 0; j < 10; j++ {
			bf.Add(int64(r.Intn(testMaxKey + 1)))
		}
		filters[i] = bf
	}
	return filters
}

func bruteForce(live map[int]*bloom.BloomFilter, key int64) []int {
	ids := make([]int, 0)
	for id, bf := range live {
		if bf.Contains(key) {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

func checkEquivalent(t *testing.T, idx *Index, live map[int]*bloom.BloomFilter) {
	for key := int64(0); key <= testMaxKey; key++ {
		require.Equal(t, bruteForce(live, key), idx.Search(key, nil), "key %d", key)
	}
	require.Equal(t, len(live), idx.NodeCount())
	for id, slot := range idx.idMap {
		require.Equal(t, id, idx.slotIDs[slot])
		require.True(t, idx.busy.Test(uint(slot)))
	}
	require.Equal(t, uint(len(live)), idx.busy.Count())
	require.Equal(t, uint(slotsPerBlock*len(idx.blocks)), idx.busy.Len())
}

// =====================================================================
// TESTS
// =====================================================================

func testEmpty(t *testing.T) {
	idx := New()
	require.Equal(t, 0, idx.BloomFilterSize())
	require.Equal(t, 0, idx.Height())
	require.Equal(t, 0, idx.NodeCount())
	require.Equal(t, 0, idx.RootChildCount())
	require.False(t, idx.IsRootFull())
	require.Empty(t, idx.Search(1, nil))
	require.Empty(t, idx.IDs())
}

func testEquivalence(t *testing.T) {
	h := hash.NewHasher(1, nil)
	idx := New()
	filters := randomFilters(t, h, 0, 200, 2)
	live := make(map[int]*bloom.BloomFilter)
	s := &stats.SearchStats{}
	for _, bf := range filters {
		require.NoError(t, idx.Insert(bf, nil))
		live[bf.ID()] = bf
	}
	require.Equal(t, 4, idx.BlockCount())
	require.Equal(t, 1000, idx.BloomFilterSize())
	idx.Search(5, s)
	require.Equal(t, int64(4), s.BFChecks)
	checkEquivalent(t, idx, live)

	for i := 0; i < len(filters); i += 3 {
		require.NoError(t, idx.Delete(filters[i].ID(), nil))
		delete(live, filters[i].ID())
	}
	checkEquivalent(t, idx, live)

	for i := 0; i < len(filters); i += 3 {
		require.NoError(t, idx.Insert(filters[i], nil))
		live[filters[i].ID()] = filters[i]
	}
	checkEquivalent(t, idx, live)
	require.Equal(t, 4, idx.BlockCount())
	require.Len(t, idx.IDs(), 200)
}

func testBlockRemoval(t *testing.T) {
	h := hash.NewHasher(3, nil)
	idx := New()
	filters := randomFilters(t, h, 0, 3*slotsPerBlock, 4)
	live := make(map[int]*bloom.BloomFilter)
	for _, bf := range filters {
		require.NoError(t, idx.Insert(bf, nil))
		live[bf.ID()] = bf
	}
	require.Equal(t, 3, idx.BlockCount())
	// Empty the middle block.
	for _, bf := range filters[slotsPerBlock : 2*slotsPerBlock] {
		require.NoError(t, idx.Delete(bf.ID(), nil))
		delete(live, bf.ID())
	}
	require.Equal(t, 2, idx.BlockCount())
	last := filters[len(filters)-1]
	require.Equal(t, 2*slotsPerBlock-1, idx.idMap[last.ID()])
	checkEquivalent(t, idx, live)

	// Freed slots are reused before a block is added.
	require.NoError(t, idx.Delete(filters[5].ID(), nil))
	delete(live, filters[5].ID())
	extra := randomFilters(t, h, 1000, 1, 5)[0]
	require.NoError(t, idx.Insert(extra, nil))
	live[extra.ID()] = extra
	require.Equal(t, 5, idx.idMap[extra.ID()])
	require.Equal(t, 2, idx.BlockCount())
	checkEquivalent(t, idx, live)

	// Deleting everything leaves no blocks.
	for id := range live {
		require.NoError(t, idx.Delete(id, nil))
	}
	require.Equal(t, 0, idx.BlockCount())
	require.Empty(t, idx.Search(3, nil))
}

func testUpdateAndReplace(t *testing.T) {
	h := hash.NewHasher(6, nil)
	idx := New()
	filters := randomFilters(t, h, 0, 70, 7)
	live := make(map[int]*bloom.BloomFilter)
	for _, bf := range filters {
		require.NoError(t, idx.Insert(bf, nil))
		live[bf.ID()] = bf
	}
	const newKey = testMaxKey + 100

	filters[66].Add(newKey)
	require.NoError(t, idx.Update(filters[66], nil))
	require.Contains(t, idx.Search(newKey, nil), 66)
	require.Equal(t, bruteForce(live, newKey), idx.Search(newKey, nil))

	replacement := filters[66].NewZero()
	replacement.SetID(66)
	replacement.Add(newKey + 1)
	require.NoError(t, idx.Replace(replacement, nil))
	live[66] = replacement
	require.Equal(t, bruteForce(live, newKey), idx.Search(newKey, nil))
	require.Equal(t, bruteForce(live, newKey+1), idx.Search(newKey+1, nil))
	checkEquivalent(t, idx, live)
}

func testErrors(t *testing.T) {
	h := hash.NewHasher(8, nil)
	idx := New()
	filters := randomFilters(t, h, 0, 5, 9)
	for _, bf := range filters {
		require.NoError(t, idx.Insert(bf, nil))
	}
	require.True(t, errors.Is(idx.Insert(filters[0], nil), utils.ErrDuplicateID))
	require.True(t, errors.Is(idx.Delete(42, nil), utils.ErrUnknownID))
	ghost := filters[0].NewZero()
	ghost.SetID(42)
	require.True(t, errors.Is(idx.Update(ghost, nil), utils.ErrUnknownID))
	require.True(t, errors.Is(idx.Replace(ghost, nil), utils.ErrUnknownID))

	foreign := randomFilters(t, hash.NewHasher(8, nil), 1, 1, 9)[0]
	require.True(t, errors.Is(idx.Replace(foreign, nil), bloom.ErrHasherMismatch))
	foreign.SetID(77)
	require.True(t, errors.Is(idx.Insert(foreign, nil), bloom.ErrHasherMismatch))
	require.Equal(t, []int{0, 1, 2, 3, 4}, idx.IDs())
}

func testCompaction(t *testing.T) {
	h := hash.NewHasher(10, nil)
	idx := New()
	filters := randomFilters(t, h, 0, 4*slotsPerBlock, 11)
	live := make(map[int]*bloom.BloomFilter)
	for _, bf := range filters {
		require.NoError(t, idx.Insert(bf, nil))
		live[bf.ID()] = bf
	}
	// Leave every block at most half full without emptying any.
	for i, bf := range filters {
		if i%4 != 0 {
			require.NoError(t, idx.Delete(bf.ID(), nil))
			delete(live, bf.ID())
		}
	}
	require.Equal(t, 4, idx.BlockCount())
	checkEquivalent(t, idx, live)

	s := &stats.UpdateStats{}
	removed := idx.Compact(s)
	// Block 0 absorbs blocks 3 and 2, then is more than half full.
	require.Equal(t, 2, removed)
	require.Equal(t, 2, s.Merges)
	require.Equal(t, 2, idx.BlockCount())
	require.Equal(t, []int{48, 16}, idx.used)
	checkEquivalent(t, idx, live)

	// With compaction enabled, deletes keep blocks packed.
	idx = New()
	idx.EnableCompaction(true)
	live = make(map[int]*bloom.BloomFilter)
	for _, bf := range filters {
		require.NoError(t, idx.Insert(bf, nil))
		live[bf.ID()] = bf
	}
	for i, bf := range filters {
		if i%2 == 0 {
			require.NoError(t, idx.Delete(bf.ID(), nil))
			delete(live, bf.ID())
		}
	}
	require.Equal(t, 2, idx.BlockCount())
	checkEquivalent(t, idx, live)
}

func testPrint(t *testing.T) {
	h := hash.NewHasher(12, nil)
	idx := New()
	for _, bf := range randomFilters(t, h, 0, 3, 13) {
		require.NoError(t, idx.Insert(bf, nil))
	}
	w := &bytes.Buffer{}
	idx.Print(w)
	require.Contains(t, w.String(), "[0] Block size: 3")
	require.Contains(t, w.String(), " |--> (2, 2)")
}
