package query

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	bloofi "github.com/brown-csci1270/bloofi/pkg/bloofi"
	bloom "github.com/brown-csci1270/bloofi/pkg/bloom"
	flat "github.com/brown-csci1270/bloofi/pkg/flat"
	hash "github.com/brown-csci1270/bloofi/pkg/hash"
	naive "github.com/brown-csci1270/bloofi/pkg/naive"
	stats "github.com/brown-csci1270/bloofi/pkg/stats"
	utils "github.com/brown-csci1270/bloofi/pkg/utils"
	"github.com/stretchr/testify/require"
)

const (
	scenarioFilters = 1000
	scenarioKeys    = 333
	scenarioMaxKey  = 2000
)

func TestQuery(t *testing.T) {
	t.Run("EndToEnd", testEndToEnd)
	t.Run("SearchAll", testSearchAll)
	t.Run("Mismatch", testMismatch)
	t.Run("Cancelled", testCancelled)
}

// =====================================================================
// HELPERS
// =====================================================================

func scenarioFilterSet(t *testing.T, h *hash.Hasher, count int, keys int, seed int64) []*bloom.BloomFilter {
	r := rand.New(rand.NewSource(seed))
	filters := make([]*bloom.BloomFilter, count)
	for i := range filters {
		bf, err := bloom.NewWithProbability(h, 0.01, 1000, bloom.Hamming)
		require.NoError(t, err)
		bf.SetID(i)
		for j := 0; j < keys; j++ {
			bf.Add(int64(r.Intn(scenarioMaxKey + 1)))
		}
		filters[i] = bf
	}
	return filters
}

func buildAll(t *testing.T, filters []*bloom.BloomFilter, order int) (*bloofi.Index, *flat.Index, *naive.Index) {
	tree, err := bloofi.New(order, filters[0], true, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	fl := flat.New()
	nv := naive.New()
	for _, bf := range filters {
		require.NoError(t, tree.Insert(bf, nil))
		require.NoError(t, fl.Insert(bf, nil))
		require.NoError(t, nv.Insert(bf, nil))
	}
	return tree, fl, nv
}

// =====================================================================
// TESTS
// =====================================================================

func testEndToEnd(t *testing.T) {
	ctx := context.Background()
	h := hash.NewHasher(1270, nil)
	filters := scenarioFilterSet(t, h, scenarioFilters, scenarioKeys, 42)
	require.Equal(t, 7, filters[0].K())
	tree, fl, nv := buildAll(t, filters, 2)
	keys := KeyRange(scenarioMaxKey)
	indexes := []utils.Index{tree, fl}
	for _, idx := range indexes {
		require.NoError(t, Compare(ctx, idx, nv, keys))
	}
	require.NoError(t, tree.Validate())

	for i := 0; i < len(filters); i += 3 {
		require.NoError(t, tree.Delete(filters[i].ID(), nil))
		require.NoError(t, fl.Delete(filters[i].ID(), nil))
		require.NoError(t, nv.Delete(filters[i].ID(), nil))
	}
	for _, idx := range indexes {
		require.NoError(t, Compare(ctx, idx, nv, keys))
	}
	require.NoError(t, tree.Validate())

	for i := 0; i < len(filters); i += 3 {
		require.NoError(t, tree.Insert(filters[i], nil))
		require.NoError(t, fl.Insert(filters[i], nil))
		require.NoError(t, nv.Insert(filters[i], nil))
	}
	for _, idx := range indexes {
		require.NoError(t, Compare(ctx, idx, nv, keys))
	}
	require.NoError(t, tree.Validate())
	require.Equal(t, scenarioFilters, len(tree.IDs()))
}

func testSearchAll(t *testing.T) {
	h := hash.NewHasher(5, nil)
	filters := scenarioFilterSet(t, h, 100, 50, 6)
	tree, fl, nv := buildAll(t, filters, 3)
	keys := KeyRange(scenarioMaxKey)
	for _, idx := range []utils.Index{tree, fl, nv} {
		results, total, err := SearchAll(context.Background(), idx, keys, 4)
		require.NoError(t, err)
		require.Len(t, results, len(keys))
		var sequential stats.SearchStats
		for _, key := range keys {
			require.Equal(t, idx.Search(key, &sequential), results[key])
		}
		require.Equal(t, sequential, total)
	}
	results, _, err := SearchAll(context.Background(), nv, nil, 0)
	require.NoError(t, err)
	require.Empty(t, results)
}

func testMismatch(t *testing.T) {
	h := hash.NewHasher(8, nil)
	filters := scenarioFilterSet(t, h, 20, 50, 9)
	tree, _, nv := buildAll(t, filters, 2)
	require.NoError(t, nv.Delete(3, nil))
	err := Compare(context.Background(), tree, nv, KeyRange(scenarioMaxKey))
	var mismatch *Mismatch
	require.True(t, errors.As(err, &mismatch))
	require.Contains(t, mismatch.Left, 3)
	require.NotContains(t, mismatch.Right, 3)
	require.Contains(t, err.Error(), "indexes disagree")
	// The reported key is the first disagreement in key order.
	for _, key := range KeyRange(scenarioMaxKey) {
		if !equalIDs(tree.Search(key, nil), nv.Search(key, nil)) {
			require.Equal(t, key, mismatch.Key)
			break
		}
	}
	require.Empty(t, KeyRange(-5))
	require.Equal(t, []int64{0}, KeyRange(0))
}

func testCancelled(t *testing.T) {
	h := hash.NewHasher(10, nil)
	filters := scenarioFilterSet(t, h, 10, 20, 11)
	_, fl, nv := buildAll(t, filters, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := SearchAll(ctx, fl, KeyRange(100), 2)
	require.True(t, errors.Is(err, context.Canceled))
	err = Compare(ctx, fl, nv, KeyRange(100))
	require.True(t, errors.Is(err, context.Canceled))
}
