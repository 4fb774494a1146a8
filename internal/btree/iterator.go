package btree

// Iterator walks a tree's entries in ascending key order. It is a path
// (root..leaf) plus, for each internal level, the child index that was
// followed, so Next can climb back up and descend into the next subtree
// once the current leaf is exhausted — there is no leaf sibling chain, so
// every step past a leaf boundary goes through the shared ancestor.
type Iterator struct {
	t       *BTree
	path    []*node
	idxs    []int // idxs[i]: child index taken from path[i] to reach path[i+1]
	leafIdx int
	done    bool
}

func (t *BTree) newIterator(path []*node, idxs []int, leafIdx int) *Iterator {
	return &Iterator{t: t, path: path, idxs: idxs, leafIdx: leafIdx}
}

// normalize rolls the iterator forward onto the next leaf if it was
// constructed pointing past the end of its current leaf (an empty tree,
// or a seek that landed exactly at a leaf's end).
func (it *Iterator) normalize() error {
	leaf := it.path[len(it.path)-1]
	if it.leafIdx < len(leaf.entries) {
		return nil
	}
	return it.climb()
}

// IsFinished reports whether iteration has run past the last entry.
func (it *Iterator) IsFinished() bool { return it.done }

// GetKey returns the key at the iterator's current position. Must not be
// called when IsFinished is true.
func (it *Iterator) GetKey() Key {
	leaf := it.path[len(it.path)-1]
	return leaf.entries[it.leafIdx].key
}

// GetValue decodes and returns the value at the iterator's current
// position. Must not be called when IsFinished is true.
func (it *Iterator) GetValue() (Value, error) {
	leaf := it.path[len(it.path)-1]
	return it.t.readValue(leaf.entries[it.leafIdx].ptr)
}

// Next advances to the next entry in ascending order.
func (it *Iterator) Next() error {
	if it.done {
		return nil
	}
	leaf := it.path[len(it.path)-1]
	it.leafIdx++
	if it.leafIdx < len(leaf.entries) {
		return nil
	}
	return it.climb()
}

// climb moves the iterator past the end of its current leaf: it walks up
// the path looking for an ancestor with an unvisited child to the right,
// then descends that child's leftmost spine to the next leaf.
func (it *Iterator) climb() error {
	for level := len(it.path) - 2; level >= 0; level-- {
		parent := it.path[level]
		nextChildIdx := it.idxs[level] + 1
		if nextChildIdx > len(parent.entries) {
			continue
		}
		it.idxs[level] = nextChildIdx
		it.path = it.path[:level+1]
		it.idxs = it.idxs[:level+1]

		cur, err := it.t.loadNode(parent.childAt(nextChildIdx))
		if err != nil {
			return err
		}
		it.path = append(it.path, cur)
		for !cur.isLeaf {
			it.idxs = append(it.idxs, 0)
			next, err := it.t.loadNode(cur.childAt(0))
			if err != nil {
				return err
			}
			cur = next
			it.path = append(it.path, cur)
		}
		it.leafIdx = 0
		if len(cur.entries) == 0 {
			// Only possible for an empty tree's sole leaf; nothing further.
			it.done = true
		}
		return nil
	}
	it.done = true
	return nil
}
