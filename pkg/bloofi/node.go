package bloofi

import (
	"fmt"
	"io"

	bloom "github.com/brown-csci1270/bloofi/pkg/bloom"
	stats "github.com/brown-csci1270/bloofi/pkg/stats"
)

// nodeID addresses a node in the index arena.
type nodeID int

// nilNode marks a missing parent.
const nilNode nodeID = -1

// node is either a leaf holding an indexed filter, or an internal node whose
// value is the OR of its children's values.
type node struct {
	id       nodeID             // Position in the arena.
	value    *bloom.BloomFilter // Indexed filter, or aggregate.
	parent   nodeID             // nilNode for the root.
	children []nodeID           // Ordered; empty for leaves.
	leaf     bool
}

/////////////////////////////////////////////////////////////////////////////
/////////////////////////////// Arena Methods ///////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// newNode allocates a node, reusing a freed handle if one is available.
func (idx *Index) newNode(value *bloom.BloomFilter, parent nodeID, leaf bool) nodeID {
	n := &node{value: value, parent: parent, leaf: leaf}
	if id, ok := idx.freeList.PopHead(); ok {
		n.id = id
		idx.nodes[id] = n
		return id
	}
	n.id = nodeID(len(idx.nodes))
	idx.nodes = append(idx.nodes, n)
	return n.id
}

// freeNode releases a handle for reuse.
func (idx *Index) freeNode(id nodeID) {
	idx.nodes[id] = nil
	idx.freeList.PushTail(id)
}

// Get the node behind a handle.
func (idx *Index) node(id nodeID) *node {
	return idx.nodes[id]
}

// childIndex returns the position of child in parent's children, or -1.
func (idx *Index) childIndex(parent nodeID, child nodeID) int {
	for i, c := range idx.node(parent).children {
		if c == child {
			return i
		}
	}
	return -1
}

// insertAfter places child right after the sibling it follows. A missing
// sibling appends at the end.
func (idx *Index) insertAfter(parent nodeID, after nodeID, child nodeID) {
	p := idx.node(parent)
	pos := idx.childIndex(parent, after) + 1
	if pos == 0 {
		pos = len(p.children)
	}
	p.children = append(p.children, nilNode)
	copy(p.children[pos+1:], p.children[pos:])
	p.children[pos] = child
	idx.node(child).parent = parent
}

// removeChild detaches child from parent; returns false if it is not there.
func (idx *Index) removeChild(parent nodeID, child nodeID) bool {
	pos := idx.childIndex(parent, child)
	if pos < 0 {
		return false
	}
	p := idx.node(parent)
	p.children = append(p.children[:pos], p.children[pos+1:]...)
	return true
}

/////////////////////////////////////////////////////////////////////////////
///////////////////////////// Aggregate Methods /////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// recompute rebuilds an internal node's value from its children.
func (idx *Index) recompute(id nodeID, s *stats.UpdateStats) {
	n := idx.node(id)
	n.value.Clear()
	for _, c := range n.children {
		// Every node shares the hasher and size, so this cannot fail.
		_ = n.value.Union(idx.node(c).value)
		s.BFAccessed++
	}
	s.NodesAccessed++
}

// recomputeToTheRoot rebuilds every aggregate from id upwards.
func (idx *Index) recomputeToTheRoot(id nodeID, s *stats.UpdateStats) {
	for cur := id; cur != nilNode; cur = idx.node(cur).parent {
		idx.recompute(cur, s)
	}
}

// updateValueToTheRoot ORs bf into id and every ancestor.
func (idx *Index) updateValueToTheRoot(id nodeID, bf *bloom.BloomFilter, s *stats.UpdateStats) {
	for cur := id; cur != nilNode; cur = idx.node(cur).parent {
		_ = idx.node(cur).value.Union(bf)
		s.BFAccessed++
		s.NodesAccessed++
	}
}

/////////////////////////////////////////////////////////////////////////////
///////////////////////////// Structure Methods /////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// needSplit is true for an overflowing node, unless it is saturated and
// saturated nodes are kept whole.
func (idx *Index) needSplit(id nodeID) bool {
	n := idx.node(id)
	return len(n.children) > 2*idx.order && (idx.splitFull || !n.value.IsFull())
}

// needMerge is true for an underflowing non-root node.
func (idx *Index) needMerge(id nodeID) bool {
	return id != idx.root && len(idx.node(id).children) < idx.order
}

// canRedistribute is true if the sibling can give away a child.
func (idx *Index) canRedistribute(sibling nodeID) bool {
	return len(idx.node(sibling).children) > idx.order
}

// split moves every child past the first order+1 into a new node, which is
// returned. Both aggregates are rebuilt.
func (idx *Index) split(id nodeID, s *stats.UpdateStats) nodeID {
	n := idx.node(id)
	siblingID := idx.newNode(n.value.NewZero(), n.parent, false)
	// newNode may grow the arena, so reload n.
	n = idx.node(id)
	sibling := idx.node(siblingID)
	moved := n.children[idx.order+1:]
	sibling.children = append(make([]nodeID, 0, len(moved)), moved...)
	n.children = n.children[:idx.order+1:idx.order+1]
	for _, c := range sibling.children {
		idx.node(c).parent = siblingID
	}
	idx.recompute(id, s)
	idx.recompute(siblingID, s)
	s.Splits++
	return siblingID
}

// splitUp splits id and its ancestors while they overflow. Splitting the
// root grows the tree by one level.
func (idx *Index) splitUp(id nodeID, s *stats.UpdateStats) {
	for id != nilNode && idx.needSplit(id) {
		siblingID := idx.split(id, s)
		parent := idx.node(id).parent
		if parent == nilNode {
			idx.newRoot(id, siblingID, s)
			return
		}
		idx.insertAfter(parent, id, siblingID)
		id = parent
	}
}

// newRoot creates a root over the two halves of the old one.
func (idx *Index) newRoot(left nodeID, right nodeID, s *stats.UpdateStats) {
	rootID := idx.newNode(idx.node(left).value.NewZero(), nilNode, false)
	root := idx.node(rootID)
	root.children = []nodeID{left, right}
	idx.node(left).parent = rootID
	idx.node(right).parent = rootID
	idx.recompute(rootID, s)
	idx.root = rootID
}

// redistribute moves children from sibling so both hold about half.
func (idx *Index) redistribute(id nodeID, siblingID nodeID, siblingIsRight bool, s *stats.UpdateStats) {
	n := idx.node(id)
	sibling := idx.node(siblingID)
	total := len(n.children) + len(sibling.children)
	k := total/2 - len(n.children)
	var moved []nodeID
	if siblingIsRight {
		moved = append(moved, sibling.children[:k]...)
		sibling.children = append(sibling.children[:0:0], sibling.children[k:]...)
		n.children = append(n.children, moved...)
	} else {
		cut := len(sibling.children) - k
		moved = append(moved, sibling.children[cut:]...)
		sibling.children = sibling.children[:cut:cut]
		n.children = append(moved, n.children...)
	}
	for _, c := range moved {
		idx.node(c).parent = id
	}
	s.Redistributes++
	idx.recompute(siblingID, s)
	idx.recomputeToTheRoot(id, s)
}

// merge moves every child of id into sibling, keeping left-to-right order.
func (idx *Index) merge(id nodeID, siblingID nodeID, siblingIsRight bool, s *stats.UpdateStats) {
	n := idx.node(id)
	sibling := idx.node(siblingID)
	for _, c := range n.children {
		idx.node(c).parent = siblingID
		_ = sibling.value.Union(idx.node(c).value)
		s.BFAccessed++
	}
	if siblingIsRight {
		sibling.children = append(append(make([]nodeID, 0, len(n.children)+len(sibling.children)), n.children...), sibling.children...)
	} else {
		sibling.children = append(sibling.children, n.children...)
	}
	n.children = nil
	s.Merges++
	s.NodesAccessed += 2
}

/////////////////////////////////////////////////////////////////////////////
////////////////////////////// Print Methods ////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// printNode pretty prints a subtree.
func (idx *Index) printNode(w io.Writer, id nodeID, firstPrefix string, prefix string) {
	n := idx.node(id)
	if n.leaf {
		io.WriteString(w, fmt.Sprintf("%v[%v] Leaf %v\n", firstPrefix, id, n.value))
		return
	}
	var isRoot string
	if id == idx.root {
		isRoot = " (root)"
	}
	io.WriteString(w, fmt.Sprintf("%v[%v] Internal%v size: %v bits: %v\n",
		firstPrefix, id, isRoot, len(n.children), n.value.Cardinality()))
	nextFirstPrefix := prefix + " |--> "
	nextPrefix := prefix + " |    "
	for _, c := range n.children {
		io.WriteString(w, fmt.Sprintf("%v\n", nextPrefix))
		idx.printNode(w, c, nextFirstPrefix, nextPrefix)
	}
}
