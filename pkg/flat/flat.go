package flat

import (
	"fmt"
	"io"
	"math/bits"
	"sort"

	bitset "github.com/bits-and-blooms/bitset"
	bloom "github.com/brown-csci1270/bloofi/pkg/bloom"
	hash "github.com/brown-csci1270/bloofi/pkg/hash"
	stats "github.com/brown-csci1270/bloofi/pkg/stats"
	utils "github.com/brown-csci1270/bloofi/pkg/utils"
)

// Number of filters held by one block.
const slotsPerBlock = 64

// Index stores filters bit-transposed in blocks of 64: word j of a block
// holds bit j of each of its 64 filters, so one AND per hash function tests
// 64 filters at once.
type Index struct {
	blocks     [][]uint64     // blocks[b][j] bit s: bit j of the filter in slot 64*b+s.
	used       []int          // Occupied slots per block.
	busy       *bitset.BitSet // Occupied slots; length 64*len(blocks).
	slotIDs    []int          // Slot to filter id; -1 when free.
	idMap      map[int]int    // Filter id to slot.
	size       int            // Filter size m; 0 until the first insert.
	k          int
	hasher     *hash.Hasher
	compaction bool
}

// New returns an empty index. The first inserted filter fixes the size and
// hasher.
func New() *Index {
	return &Index{
		blocks:  make([][]uint64, 0),
		used:    make([]int, 0),
		busy:    bitset.New(0),
		slotIDs: make([]int, 0),
		idMap:   make(map[int]int),
	}
}

// EnableCompaction turns on block compaction after every delete.
func (idx *Index) EnableCompaction(enabled bool) {
	idx.compaction = enabled
}

// compatible checks bf against the filters already indexed.
func (idx *Index) compatible(bf *bloom.BloomFilter) error {
	if idx.hasher == nil {
		return nil
	}
	if bf.Hasher() != idx.hasher {
		return bloom.ErrHasherMismatch
	}
	if bf.Size() != idx.size {
		return fmt.Errorf("%w: %d and %d", bloom.ErrSizeMismatch, idx.size, bf.Size())
	}
	return nil
}

// Insert places bf in the first free slot, adding a block if none is free.
func (idx *Index) Insert(bf *bloom.BloomFilter, s *stats.UpdateStats) error {
	s = stats.Update(s)
	if _, ok := idx.idMap[bf.ID()]; ok {
		return fmt.Errorf("flat: insert %d: %w", bf.ID(), utils.ErrDuplicateID)
	}
	if err := idx.compatible(bf); err != nil {
		return err
	}
	if idx.hasher == nil {
		idx.hasher, idx.size, idx.k = bf.Hasher(), bf.Size(), bf.K()
	}
	slot, ok := idx.busy.NextClear(0)
	if !ok {
		idx.addBlock()
		slot = uint(slotsPerBlock * (len(idx.blocks) - 1))
	}
	idx.busy.Set(slot)
	idx.used[slot/slotsPerBlock]++
	idx.slotIDs[slot] = bf.ID()
	idx.idMap[bf.ID()] = int(slot)
	idx.orColumn(int(slot), bf)
	s.BFAccessed++
	s.NodesAccessed++
	return nil
}

// Delete frees the slot of the filter with the given id. A block left empty
// is dropped and the slots after it move down by 64.
func (idx *Index) Delete(id int, s *stats.UpdateStats) error {
	s = stats.Update(s)
	slot, ok := idx.idMap[id]
	if !ok {
		return fmt.Errorf("flat: delete %d: %w", id, utils.ErrUnknownID)
	}
	b := slot / slotsPerBlock
	idx.busy.Clear(uint(slot))
	idx.used[b]--
	idx.slotIDs[slot] = -1
	delete(idx.idMap, id)
	s.NodesAccessed++
	if idx.used[b] == 0 {
		idx.removeBlock(b)
	} else {
		idx.clearColumn(slot)
	}
	if idx.compaction {
		idx.Compact(s)
	}
	return nil
}

// Update ORs the bits of bf into the column of the filter with the same id.
func (idx *Index) Update(bf *bloom.BloomFilter, s *stats.UpdateStats) error {
	s = stats.Update(s)
	slot, ok := idx.idMap[bf.ID()]
	if !ok {
		return fmt.Errorf("flat: update %d: %w", bf.ID(), utils.ErrUnknownID)
	}
	if err := idx.compatible(bf); err != nil {
		return err
	}
	idx.orColumn(slot, bf)
	s.BFAccessed++
	s.NodesAccessed++
	return nil
}

// Replace rewrites the column of the filter with the same id.
func (idx *Index) Replace(bf *bloom.BloomFilter, s *stats.UpdateStats) error {
	s = stats.Update(s)
	slot, ok := idx.idMap[bf.ID()]
	if !ok {
		return fmt.Errorf("flat: replace %d: %w", bf.ID(), utils.ErrUnknownID)
	}
	if err := idx.compatible(bf); err != nil {
		return err
	}
	idx.clearColumn(slot)
	idx.orColumn(slot, bf)
	s.BFAccessed++
	s.NodesAccessed++
	return nil
}

// Search returns the sorted ids of every filter that may contain key.
func (idx *Index) Search(key int64, s *stats.SearchStats) []int {
	s = stats.Search(s)
	ids := make([]int, 0)
	if idx.hasher == nil {
		return ids
	}
	positions := make([]uint, idx.k)
	for i := range positions {
		positions[i] = idx.hasher.Hash(key, i)
	}
	for b, block := range idx.blocks {
		w := ^uint64(0)
		for _, p := range positions {
			w &= block[p]
			if w == 0 {
				break
			}
		}
		s.BFChecks++
		for w != 0 {
			t := w & -w
			ids = append(ids, idx.slotIDs[b*slotsPerBlock+bits.TrailingZeros64(w)])
			w ^= t
		}
	}
	sort.Ints(ids)
	return ids
}

// Height is always 0.
func (idx *Index) Height() int {
	return 0
}

// NodeCount returns the number of indexed filters.
func (idx *Index) NodeCount() int {
	return len(idx.idMap)
}

// Get the size of the indexed filters; 0 before the first insert.
func (idx *Index) BloomFilterSize() int {
	return idx.size
}

// IsRootFull is always false; there is no root.
func (idx *Index) IsRootFull() bool {
	return false
}

// RootChildCount is always 0.
func (idx *Index) RootChildCount() int {
	return 0
}

// Get the number of blocks.
func (idx *Index) BlockCount() int {
	return len(idx.blocks)
}

// IDs returns every indexed id in ascending order.
func (idx *Index) IDs() []int {
	ids := make([]int, 0, len(idx.idMap))
	for id := range idx.idMap {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Print lists every block and its occupied slots.
func (idx *Index) Print(w io.Writer) {
	for b := range idx.blocks {
		io.WriteString(w, fmt.Sprintf("[%v] Block size: %v\n", b, idx.used[b]))
		for s := b * slotsPerBlock; s < (b+1)*slotsPerBlock; s++ {
			if idx.slotIDs[s] >= 0 {
				io.WriteString(w, fmt.Sprintf(" |--> (%v, %v)\n", s, idx.slotIDs[s]))
			}
		}
	}
}
