package naive

import (
	"fmt"
	"io"
	"sort"

	bloom "github.com/brown-csci1270/bloofi/pkg/bloom"
	stats "github.com/brown-csci1270/bloofi/pkg/stats"
	utils "github.com/brown-csci1270/bloofi/pkg/utils"
)

// Index tests every filter on each search.
type Index struct {
	filters map[int]*bloom.BloomFilter
	sample  *bloom.BloomFilter // First filter inserted; fixes size and hasher.
}

// New returns an empty index.
func New() *Index {
	return &Index{filters: make(map[int]*bloom.BloomFilter)}
}

// Insert adds a filter under its id.
func (idx *Index) Insert(bf *bloom.BloomFilter, s *stats.UpdateStats) error {
	s = stats.Update(s)
	if _, ok := idx.filters[bf.ID()]; ok {
		return fmt.Errorf("naive: insert %d: %w", bf.ID(), utils.ErrDuplicateID)
	}
	if idx.sample != nil {
		if err := idx.sample.Compatible(bf); err != nil {
			return err
		}
	} else {
		idx.sample = bf
	}
	idx.filters[bf.ID()] = bf
	s.BFAccessed++
	return nil
}

// Delete removes the filter with the given id.
func (idx *Index) Delete(id int, s *stats.UpdateStats) error {
	s = stats.Update(s)
	if _, ok := idx.filters[id]; !ok {
		return fmt.Errorf("naive: delete %d: %w", id, utils.ErrUnknownID)
	}
	delete(idx.filters, id)
	s.BFAccessed++
	return nil
}

// Update ORs bf into the filter with the same id.
func (idx *Index) Update(bf *bloom.BloomFilter, s *stats.UpdateStats) error {
	s = stats.Update(s)
	old, ok := idx.filters[bf.ID()]
	if !ok {
		return fmt.Errorf("naive: update %d: %w", bf.ID(), utils.ErrUnknownID)
	}
	if old != bf {
		if err := old.Union(bf); err != nil {
			return err
		}
	}
	s.BFAccessed++
	return nil
}

// Replace swaps the filter with the same id for bf.
func (idx *Index) Replace(bf *bloom.BloomFilter, s *stats.UpdateStats) error {
	s = stats.Update(s)
	old, ok := idx.filters[bf.ID()]
	if !ok {
		return fmt.Errorf("naive: replace %d: %w", bf.ID(), utils.ErrUnknownID)
	}
	if err := old.Compatible(bf); err != nil {
		return err
	}
	idx.filters[bf.ID()] = bf
	s.BFAccessed++
	return nil
}

// Search returns the sorted ids of every filter that may contain key.
func (idx *Index) Search(key int64, s *stats.SearchStats) []int {
	s = stats.Search(s)
	ids := make([]int, 0)
	for id, bf := range idx.filters {
		s.BFChecks++
		if bf.Contains(key) {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// Height is always 0.
func (idx *Index) Height() int {
	return 0
}

// NodeCount returns the number of filters.
func (idx *Index) NodeCount() int {
	return len(idx.filters)
}

// Get the size of the indexed filters; 0 before the first insert.
func (idx *Index) BloomFilterSize() int {
	if idx.sample == nil {
		return 0
	}
	return idx.sample.Size()
}

// IsRootFull is always false.
func (idx *Index) IsRootFull() bool {
	return false
}

// RootChildCount is always 0.
func (idx *Index) RootChildCount() int {
	return 0
}

// IDs returns every indexed id in ascending order.
func (idx *Index) IDs() []int {
	ids := make([]int, 0, len(idx.filters))
	for id := range idx.filters {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Print lists every filter.
func (idx *Index) Print(w io.Writer) {
	for _, id := range idx.IDs() {
		io.WriteString(w, fmt.Sprintf("%v\n", idx.filters[id]))
	}
}
