package bloofi

import (
	"errors"
	"fmt"
	"math/rand"

	bloom "github.com/brown-csci1270/bloofi/pkg/bloom"
	list "github.com/brown-csci1270/bloofi/pkg/list"
	stats "github.com/brown-csci1270/bloofi/pkg/stats"
	utils "github.com/brown-csci1270/bloofi/pkg/utils"
)

// BulkLoad builds an index over filters. The filters are first chained by
// nearest neighbour, starting from an all-zero filter, then appended along
// the rightmost edge of the tree so that similar filters share subtrees.
// Chaining costs O(N^2) distance computations.
func BulkLoad(filters []*bloom.BloomFilter, order int, splitFull bool, rng *rand.Rand, s *stats.UpdateStats) (*Index, error) {
	s = stats.Update(s)
	if len(filters) == 0 {
		return nil, errors.New("bloofi: bulk load needs at least one filter")
	}
	idx, err := New(order, filters[0], splitFull, rng)
	if err != nil {
		return nil, err
	}
	seen := make(map[int]bool, len(filters))
	for _, bf := range filters {
		if err := filters[0].Compatible(bf); err != nil {
			return nil, err
		}
		if seen[bf.ID()] {
			return nil, fmt.Errorf("bloofi: bulk load %d: %w", bf.ID(), utils.ErrDuplicateID)
		}
		seen[bf.ID()] = true
	}
	sorted, err := sortByNearestNeighbour(filters, s)
	if err != nil {
		return nil, err
	}
	current := idx.root
	for _, bf := range sorted {
		current = idx.insertRight(current, bf, s)
	}
	return idx, nil
}

// sortByNearestNeighbour orders filters so that each is the closest
// remaining one to its predecessor.
func sortByNearestNeighbour(filters []*bloom.BloomFilter, s *stats.UpdateStats) ([]*bloom.BloomFilter, error) {
	remaining := append(make([]*bloom.BloomFilter, 0, len(filters)), filters...)
	sorted := make([]*bloom.BloomFilter, 0, len(filters))
	current := filters[0].NewZero()
	for len(remaining) > 0 {
		i, err := current.FindClosest(remaining)
		if err != nil {
			return nil, err
		}
		s.BFAccessed += int64(len(remaining))
		current = remaining[i]
		sorted = append(sorted, current)
		remaining = append(remaining[:i], remaining[i+1:]...)
	}
	return sorted, nil
}

// insertRight appends bf as the last child of current, the rightmost node
// just above the leaves, and returns the node to use for the next filter.
func (idx *Index) insertRight(current nodeID, bf *bloom.BloomFilter, s *stats.UpdateStats) nodeID {
	leaf := idx.newNode(bf, current, true)
	cur := idx.node(current)
	cur.children = append(cur.children, leaf)
	idx.idMap[bf.ID()] = leaf
	idx.updateValueToTheRoot(current, bf, s)
	if idx.needSplit(current) {
		return idx.splitRight(current, s)
	}
	return current
}

// splitRight splits the rightmost spine upwards from id and returns the new
// rightmost node at id's level.
func (idx *Index) splitRight(id nodeID, s *stats.UpdateStats) nodeID {
	idx.splitUp(id, s)
	cur := idx.root
	for {
		n := idx.node(cur)
		last := n.children[len(n.children)-1]
		if idx.node(last).leaf {
			return cur
		}
		cur = last
	}
}

// Validate rebuilds every aggregate and checks the links, the balance and
// the id map. Any difference is reported as ErrCorrupted.
func (idx *Index) Validate() error {
	root := idx.node(idx.root)
	if root == nil || root.leaf || root.parent != nilNode {
		return fmt.Errorf("bloofi: bad root: %w", utils.ErrCorrupted)
	}
	if err := idx.validateFreeList(); err != nil {
		return err
	}
	if len(root.children) == 0 {
		if len(idx.idMap) != 0 || root.value.Cardinality() != 0 {
			return fmt.Errorf("bloofi: empty root over live filters: %w", utils.ErrCorrupted)
		}
		return nil
	}
	if !idx.node(root.children[0]).leaf && len(root.children) < 2 {
		return fmt.Errorf("bloofi: root has a single internal child: %w", utils.ErrCorrupted)
	}
	leaves := 0
	leafDepth := -1
	var walk func(id nodeID, depth int) error
	walk = func(id nodeID, depth int) error {
		n := idx.node(id)
		if n.leaf {
			leaves++
			if leafDepth < 0 {
				leafDepth = depth
			} else if depth != leafDepth {
				return fmt.Errorf("bloofi: leaf %d at depth %d, want %d: %w", id, depth, leafDepth, utils.ErrCorrupted)
			}
			if got, ok := idx.idMap[n.value.ID()]; !ok || got != id {
				return fmt.Errorf("bloofi: leaf %d not in the id map: %w", id, utils.ErrCorrupted)
			}
			return nil
		}
		if id != idx.root {
			if len(n.children) < idx.order {
				return fmt.Errorf("bloofi: node %d underflows: %w", id, utils.ErrCorrupted)
			}
			if idx.splitFull && len(n.children) > 2*idx.order {
				return fmt.Errorf("bloofi: node %d overflows: %w", id, utils.ErrCorrupted)
			}
		}
		expected := n.value.NewZero()
		for _, c := range n.children {
			child := idx.node(c)
			if child == nil || child.parent != id {
				return fmt.Errorf("bloofi: bad parent link under %d: %w", id, utils.ErrCorrupted)
			}
			if err := expected.Union(child.value); err != nil {
				return fmt.Errorf("bloofi: %v: %w", err, utils.ErrCorrupted)
			}
			if err := walk(c, depth+1); err != nil {
				return err
			}
		}
		if !expected.Bits().Equal(n.value.Bits()) {
			return fmt.Errorf("bloofi: aggregate of node %d is stale: %w", id, utils.ErrCorrupted)
		}
		return nil
	}
	if err := walk(idx.root, 0); err != nil {
		return err
	}
	if leaves != len(idx.idMap) {
		return fmt.Errorf("bloofi: %d leaves for %d ids: %w", leaves, len(idx.idMap), utils.ErrCorrupted)
	}
	return nil
}

// validateFreeList checks that the free list holds exactly the nil arena
// slots, each once.
func (idx *Index) validateFreeList() error {
	live := idx.freeList.Find(func(link *list.Link[nodeID]) bool {
		id := link.GetKey()
		return id < 0 || int(id) >= len(idx.nodes) || idx.nodes[id] != nil
	})
	if live != nil {
		return fmt.Errorf("bloofi: free handle %d is in use: %w", live.GetKey(), utils.ErrCorrupted)
	}
	seen := make(map[nodeID]bool, idx.freeList.Len())
	duplicates := 0
	idx.freeList.Map(func(link *list.Link[nodeID]) {
		if seen[link.GetKey()] {
			duplicates++
		}
		seen[link.GetKey()] = true
	})
	if duplicates > 0 {
		return fmt.Errorf("bloofi: %d handles freed twice: %w", duplicates, utils.ErrCorrupted)
	}
	free := 0
	for _, n := range idx.nodes {
		if n == nil {
			free++
		}
	}
	if free != len(seen) {
		return fmt.Errorf("bloofi: %d free slots but %d free handles: %w", free, len(seen), utils.ErrCorrupted)
	}
	return nil
}
