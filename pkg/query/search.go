package query

import (
	"context"
	"fmt"
	"runtime"

	stats "github.com/brown-csci1270/bloofi/pkg/stats"
	utils "github.com/brown-csci1270/bloofi/pkg/utils"

	errgroup "golang.org/x/sync/errgroup"
)

// Keys handled by one Compare task.
const compareChunkSize = 256

// Mismatch describes the first key on which two indexes disagree.
type Mismatch struct {
	Key   int64
	Left  []int
	Right []int
}

func (m *Mismatch) Error() string {
	return fmt.Sprintf("indexes disagree on key %d: %v vs %v", m.Key, m.Left, m.Right)
}

// chunk splits keys into at most n contiguous parts.
func chunk(keys []int64, n int) [][]int64 {
	if n < 1 {
		n = 1
	}
	size := (len(keys) + n - 1) / n
	if size == 0 {
		return nil
	}
	chunks := make([][]int64, 0, n)
	for start := 0; start < len(keys); start += size {
		end := start + size
		if end > len(keys) {
			end = len(keys)
		}
		chunks = append(chunks, keys[start:end])
	}
	return chunks
}

// SearchAll runs a search for every key on idx with up to workers
// concurrent readers. The index must not be modified meanwhile.
func SearchAll(ctx context.Context, idx utils.Index, keys []int64, workers int) (map[int64][]int, stats.SearchStats, error) {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	chunks := chunk(keys, workers)
	partial := make([]map[int64][]int, len(chunks))
	partialStats := make([]stats.SearchStats, len(chunks))
	group, ctx := errgroup.WithContext(ctx)
	for i, c := range chunks {
		i, c := i, c
		group.Go(func() error {
			results := make(map[int64][]int, len(c))
			for _, key := range c {
				if err := ctx.Err(); err != nil {
					return err
				}
				results[key] = idx.Search(key, &partialStats[i])
			}
			partial[i] = results
			return nil
		})
	}
	var total stats.SearchStats
	if err := group.Wait(); err != nil {
		return nil, total, err
	}
	results := make(map[int64][]int, len(keys))
	for i := range partial {
		for key, ids := range partial[i] {
			results[key] = ids
		}
		total.Add(partialStats[i])
	}
	return results, total, nil
}

// Compare searches both indexes for every key and returns a *Mismatch for
// the earliest key, in the order given, on which they disagree.
func Compare(ctx context.Context, left utils.Index, right utils.Index, keys []int64) error {
	group, ctx := errgroup.WithContext(ctx)
	chunks := make([][]int64, 0, len(keys)/compareChunkSize+1)
	for start := 0; start < len(keys); start += compareChunkSize {
		end := start + compareChunkSize
		if end > len(keys) {
			end = len(keys)
		}
		chunks = append(chunks, keys[start:end])
	}
	// Per-chunk first mismatch; the earliest chunk wins.
	mismatches := make([]*Mismatch, len(chunks))
	for i, c := range chunks {
		i, c := i, c
		group.Go(func() error {
			for _, key := range c {
				if err := ctx.Err(); err != nil {
					return err
				}
				l := left.Search(key, nil)
				r := right.Search(key, nil)
				if !equalIDs(l, r) {
					mismatches[i] = &Mismatch{Key: key, Left: l, Right: r}
					return nil
				}
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	for _, m := range mismatches {
		if m != nil {
			return m
		}
	}
	return nil
}

func equalIDs(a []int, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// KeyRange returns the keys 0 to max inclusive; empty for a negative max.
func KeyRange(max int64) []int64 {
	if max < 0 {
		return []int64{}
	}
	keys := make([]int64, 0, max+1)
	for key := int64(0); key <= max; key++ {
		keys = append(keys, key)
	}
	return keys
}
