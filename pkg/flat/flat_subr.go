package flat

import (
	bitset "github.com/bits-and-blooms/bitset"
	bloom "github.com/brown-csci1270/bloofi/pkg/bloom"
	stats "github.com/brown-csci1270/bloofi/pkg/stats"
)

// addBlock appends an empty block of 64 free slots.
func (idx *Index) addBlock() {
	idx.blocks = append(idx.blocks, make([]uint64, idx.size))
	idx.used = append(idx.used, 0)
	for i := 0; i < slotsPerBlock; i++ {
		idx.slotIDs = append(idx.slotIDs, -1)
	}
	idx.rebuildBusy()
}

// removeBlock drops block b and renumbers every later slot.
func (idx *Index) removeBlock(b int) {
	idx.blocks = append(idx.blocks[:b], idx.blocks[b+1:]...)
	idx.used = append(idx.used[:b], idx.used[b+1:]...)
	idx.slotIDs = append(idx.slotIDs[:b*slotsPerBlock], idx.slotIDs[(b+1)*slotsPerBlock:]...)
	for s := b * slotsPerBlock; s < len(idx.slotIDs); s++ {
		if id := idx.slotIDs[s]; id >= 0 {
			idx.idMap[id] = s
		}
	}
	idx.rebuildBusy()
}

// rebuildBusy recomputes the occupancy bitmap from slotIDs.
func (idx *Index) rebuildBusy() {
	busy := bitset.New(uint(len(idx.slotIDs)))
	for s, id := range idx.slotIDs {
		if id >= 0 {
			busy.Set(uint(s))
		}
	}
	idx.busy = busy
}

// orColumn sets the bits of bf in the column of slot.
func (idx *Index) orColumn(slot int, bf *bloom.BloomFilter) {
	block := idx.blocks[slot/slotsPerBlock]
	mask := uint64(1) << uint(slot%slotsPerBlock)
	bits := bf.Bits()
	for j, ok := bits.NextSet(0); ok; j, ok = bits.NextSet(j + 1) {
		block[j] |= mask
	}
}

// clearColumn zeroes the column of slot.
func (idx *Index) clearColumn(slot int) {
	block := idx.blocks[slot/slotsPerBlock]
	mask := ^(uint64(1) << uint(slot%slotsPerBlock))
	for j := range block {
		block[j] &= mask
	}
}

// Compact merges blocks that are at most half full: the lowest such block
// absorbs the highest one until at most one remains. Returns the number of
// blocks removed.
func (idx *Index) Compact(s *stats.UpdateStats) int {
	s = stats.Update(s)
	removed := 0
	for {
		lo, hi := -1, -1
		for b := range idx.blocks {
			if idx.used[b] <= slotsPerBlock/2 {
				if lo < 0 {
					lo = b
				}
				hi = b
			}
		}
		if lo < 0 || lo == hi {
			return removed
		}
		idx.absorb(lo, hi)
		idx.removeBlock(hi)
		s.Merges++
		s.NodesAccessed += 2
		removed++
	}
}

// absorb moves every filter of block src into free slots of block dst.
func (idx *Index) absorb(dst int, src int) {
	to := idx.blocks[dst]
	from := idx.blocks[src]
	free := uint(dst * slotsPerBlock)
	for c := 0; c < slotsPerBlock; c++ {
		srcSlot := src*slotsPerBlock + c
		id := idx.slotIDs[srcSlot]
		if id < 0 {
			continue
		}
		free, _ = idx.busy.NextClear(free)
		f := int(free) % slotsPerBlock
		for j := range from {
			to[j] |= ((from[j] >> uint(c)) & 1) << uint(f)
		}
		idx.busy.Set(free)
		idx.busy.Clear(uint(srcSlot))
		idx.slotIDs[free] = id
		idx.slotIDs[srcSlot] = -1
		idx.idMap[id] = int(free)
		idx.used[dst]++
		idx.used[src]--
	}
}
