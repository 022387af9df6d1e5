package bloofi

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"time"

	bloom "github.com/brown-csci1270/bloofi/pkg/bloom"
	list "github.com/brown-csci1270/bloofi/pkg/list"
	stats "github.com/brown-csci1270/bloofi/pkg/stats"
	utils "github.com/brown-csci1270/bloofi/pkg/utils"
)

// Distances closer than this to the minimum are treated as ties.
const tieEpsilon = 1e-5

// Index is a balanced tree of Bloom filters. Each internal node holds the OR
// of its children, so a search can skip every subtree whose aggregate
// rejects the key. Every non-root node has between order and 2*order
// children; saturated nodes may exceed the upper bound when splitFull is off.
type Index struct {
	order     int
	splitFull bool
	rand      *rand.Rand
	nodes     []*node            // Arena; freed slots are nil.
	freeList  *list.List[nodeID] // Freed handles.
	root      nodeID             // Never a leaf.
	idMap     map[int]nodeID     // Filter id to leaf.
}

// New returns an empty index. sample provides the size and hasher of every
// filter the index will accept. A nil rng is seeded from the clock.
func New(order int, sample *bloom.BloomFilter, splitFull bool, rng *rand.Rand) (*Index, error) {
	if order < 1 {
		return nil, fmt.Errorf("bloofi: invalid order %d", order)
	}
	if sample == nil {
		return nil, errors.New("bloofi: nil sample filter")
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	idx := &Index{
		order:     order,
		splitFull: splitFull,
		rand:      rng,
		nodes:     make([]*node, 0),
		freeList:  list.NewList[nodeID](),
		idMap:     make(map[int]nodeID),
	}
	idx.root = idx.newNode(sample.NewZero(), nilNode, false)
	return idx, nil
}

// Insert adds a filter under its id. The filter itself becomes the leaf value.
func (idx *Index) Insert(bf *bloom.BloomFilter, s *stats.UpdateStats) error {
	s = stats.Update(s)
	if _, ok := idx.idMap[bf.ID()]; ok {
		return fmt.Errorf("bloofi: insert %d: %w", bf.ID(), utils.ErrDuplicateID)
	}
	root := idx.node(idx.root)
	if err := root.value.Compatible(bf); err != nil {
		return err
	}
	if len(root.children) == 0 {
		leaf := idx.newNode(bf, idx.root, true)
		root = idx.node(idx.root)
		root.children = append(root.children, leaf)
		_ = root.value.Union(bf)
		idx.idMap[bf.ID()] = leaf
		s.BFAccessed++
		s.NodesAccessed++
		return nil
	}
	// Descend, growing each aggregate on the way.
	cur := idx.root
	for !idx.node(cur).leaf {
		n := idx.node(cur)
		_ = n.value.Union(bf)
		s.BFAccessed++
		s.NodesAccessed++
		next, err := idx.closestChild(cur, bf, s)
		if err != nil {
			return err
		}
		cur = next
	}
	parent := idx.node(cur).parent
	leaf := idx.newNode(bf, parent, true)
	idx.insertAfter(parent, cur, leaf)
	idx.idMap[bf.ID()] = leaf
	idx.splitUp(parent, s)
	return nil
}

// closestChild picks the child nearest to bf, breaking ties at random.
func (idx *Index) closestChild(id nodeID, bf *bloom.BloomFilter, s *stats.UpdateStats) (nodeID, error) {
	children := idx.node(id).children
	distances := make([]float64, len(children))
	min := 0.0
	for i, c := range children {
		d, err := idx.node(c).value.Distance(bf)
		if err != nil {
			return nilNode, err
		}
		s.BFAccessed++
		distances[i] = d
		if i == 0 || d < min {
			min = d
		}
	}
	candidates := make([]nodeID, 0, 1)
	for i, d := range distances {
		if d-min < tieEpsilon {
			candidates = append(candidates, children[i])
		}
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}
	return candidates[idx.rand.Intn(len(candidates))], nil
}

// Delete removes the filter with the given id.
func (idx *Index) Delete(id int, s *stats.UpdateStats) error {
	s = stats.Update(s)
	leaf, ok := idx.idMap[id]
	if !ok {
		return fmt.Errorf("bloofi: delete %d: %w", id, utils.ErrUnknownID)
	}
	if err := idx.deleteNode(leaf, s); err != nil {
		return err
	}
	delete(idx.idMap, id)
	return nil
}

// deleteNode detaches a node from its parent and restores the structure.
func (idx *Index) deleteNode(id nodeID, s *stats.UpdateStats) error {
	n := idx.node(id)
	parentID := n.parent
	if parentID == nilNode {
		return fmt.Errorf("bloofi: cannot delete the root: %w", utils.ErrCorrupted)
	}
	if !idx.removeChild(parentID, id) {
		return fmt.Errorf("bloofi: node %d missing from its parent: %w", id, utils.ErrCorrupted)
	}
	wasLeaf := n.leaf
	idx.freeNode(id)
	s.NodesAccessed++
	parent := idx.node(parentID)
	if parentID == idx.root {
		switch {
		case len(parent.children) == 0 && wasLeaf:
			// The last filter is gone.
			parent.value.Clear()
			return nil
		case len(parent.children) == 0:
			return fmt.Errorf("bloofi: root left without children: %w", utils.ErrCorrupted)
		case len(parent.children) == 1 && !idx.node(parent.children[0]).leaf:
			idx.collapseRoot()
			return nil
		}
		idx.recompute(parentID, s)
		return nil
	}
	if !idx.needMerge(parentID) {
		idx.recomputeToTheRoot(parentID, s)
		return nil
	}
	return idx.handleUnderflow(parentID, s)
}

// collapseRoot drops roots that have a single internal child. With order 1
// that child may itself have a single child.
func (idx *Index) collapseRoot() {
	for {
		root := idx.node(idx.root)
		if len(root.children) != 1 || idx.node(root.children[0]).leaf {
			return
		}
		child := root.children[0]
		idx.node(child).parent = nilNode
		idx.freeNode(idx.root)
		idx.root = child
	}
}

// handleUnderflow borrows from or merges into a sibling, preferring the
// right one.
func (idx *Index) handleUnderflow(id nodeID, s *stats.UpdateStats) error {
	parentID := idx.node(id).parent
	siblings := idx.node(parentID).children
	pos := idx.childIndex(parentID, id)
	var siblingID nodeID
	var siblingIsRight bool
	switch {
	case pos+1 < len(siblings):
		siblingID, siblingIsRight = siblings[pos+1], true
	case pos > 0:
		siblingID, siblingIsRight = siblings[pos-1], false
	default:
		if len(idx.node(id).children) == 0 {
			return idx.deleteNode(id, s)
		}
		idx.recomputeToTheRoot(id, s)
		return nil
	}
	if idx.canRedistribute(siblingID) {
		idx.redistribute(id, siblingID, siblingIsRight, s)
		return nil
	}
	idx.merge(id, siblingID, siblingIsRight, s)
	return idx.deleteNode(id, s)
}

// Update ORs bf into the filter with the same id and into its ancestors.
// Bits are only ever added.
func (idx *Index) Update(bf *bloom.BloomFilter, s *stats.UpdateStats) error {
	s = stats.Update(s)
	leafID, ok := idx.idMap[bf.ID()]
	if !ok {
		return fmt.Errorf("bloofi: update %d: %w", bf.ID(), utils.ErrUnknownID)
	}
	leaf := idx.node(leafID)
	if err := leaf.value.Compatible(bf); err != nil {
		return err
	}
	if leaf.value != bf {
		_ = leaf.value.Union(bf)
		s.BFAccessed++
	}
	idx.updateValueToTheRoot(leaf.parent, bf, s)
	return nil
}

// Replace swaps the filter with the same id for bf. Bits may be cleared.
func (idx *Index) Replace(bf *bloom.BloomFilter, s *stats.UpdateStats) error {
	s = stats.Update(s)
	leafID, ok := idx.idMap[bf.ID()]
	if !ok {
		return fmt.Errorf("bloofi: replace %d: %w", bf.ID(), utils.ErrUnknownID)
	}
	leaf := idx.node(leafID)
	if err := leaf.value.Compatible(bf); err != nil {
		return err
	}
	leaf.value = bf
	idx.recomputeToTheRoot(leaf.parent, s)
	return nil
}

// Search returns the sorted ids of every filter that may contain key.
func (idx *Index) Search(key int64, s *stats.SearchStats) []int {
	filters := idx.SearchFilters(key, s)
	ids := make([]int, len(filters))
	for i, bf := range filters {
		ids[i] = bf.ID()
	}
	sort.Ints(ids)
	return ids
}

// SearchFilters returns every filter that may contain key, pruning subtrees
// whose aggregate rejects it.
func (idx *Index) SearchFilters(key int64, s *stats.SearchStats) []*bloom.BloomFilter {
	s = stats.Search(s)
	result := make([]*bloom.BloomFilter, 0)
	if len(idx.node(idx.root).children) == 0 {
		return result
	}
	stack := []nodeID{idx.root}
	for len(stack) > 0 {
		n := idx.node(stack[len(stack)-1])
		stack = stack[:len(stack)-1]
		s.BFChecks++
		if !n.value.Contains(key) {
			continue
		}
		if n.leaf {
			result = append(result, n.value)
			continue
		}
		for i := len(n.children) - 1; i >= 0; i-- {
			stack = append(stack, n.children[i])
		}
	}
	return result
}

// SearchLeaves tests every leaf without consulting the aggregates.
func (idx *Index) SearchLeaves(key int64, s *stats.SearchStats) []int {
	s = stats.Search(s)
	ids := make([]int, 0)
	for id, leaf := range idx.idMap {
		s.BFChecks++
		if idx.node(leaf).value.Contains(key) {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// Height returns the number of levels above the leaves; 0 when empty.
func (idx *Index) Height() int {
	height := 0
	cur := idx.node(idx.root)
	for !cur.leaf && len(cur.children) > 0 {
		height++
		cur = idx.node(cur.children[0])
	}
	return height
}

// NodeCount returns the number of live nodes, root and leaves included.
func (idx *Index) NodeCount() int {
	return len(idx.nodes) - idx.freeList.Len()
}

// Get the size of the indexed filters.
func (idx *Index) BloomFilterSize() int {
	return idx.node(idx.root).value.Size()
}

// IsRootFull returns true if every bit of the root aggregate is set.
func (idx *Index) IsRootFull() bool {
	return idx.node(idx.root).value.IsFull()
}

// Get the number of root children.
func (idx *Index) RootChildCount() int {
	return len(idx.node(idx.root).children)
}

// Get the order.
func (idx *Index) Order() int {
	return idx.order
}

// Get the number of indexed filters.
func (idx *Index) Len() int {
	return len(idx.idMap)
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

// Filters returns every indexed filter ordered by id.
func (idx *Index) Filters() []*bloom.BloomFilter {
	ids := idx.IDs()
	filters := make([]*bloom.BloomFilter, len(ids))
	for i, id := range ids {
		filters[i] = idx.node(idx.idMap[id]).value
	}
	return filters
}

// Print will pretty-print the whole tree.
func (idx *Index) Print(w io.Writer) {
	idx.printNode(w, idx.root, "", "")
}
