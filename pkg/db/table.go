package db

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"time"

	bloofi "github.com/brown-csci1270/bloofi/pkg/bloofi"
	bloom "github.com/brown-csci1270/bloofi/pkg/bloom"
	config "github.com/brown-csci1270/bloofi/pkg/config"
	flat "github.com/brown-csci1270/bloofi/pkg/flat"
	hash "github.com/brown-csci1270/bloofi/pkg/hash"
	naive "github.com/brown-csci1270/bloofi/pkg/naive"
	stats "github.com/brown-csci1270/bloofi/pkg/stats"
	utils "github.com/brown-csci1270/bloofi/pkg/utils"

	uuid "github.com/google/uuid"
)

// Table is an index together with the filters it was given. Every filter of
// a table shares the table's hasher.
type Table struct {
	name      string
	indexType IndexType
	config    Config
	hasher    *hash.Hasher
	index     utils.Index
	filters   map[int]*bloom.BloomFilter
	rand      *rand.Rand
	stats     stats.UpdateStats
	creator   uuid.UUID // Session that created the table; uuid.Nil if unknown.
}

// newTable builds an empty table.
func newTable(name string, indexType IndexType, cfg Config) (*Table, error) {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	t := &Table{
		name:      name,
		indexType: indexType,
		config:    cfg,
		hasher:    hash.NewHasher(seed, cfg.Code),
		filters:   make(map[int]*bloom.BloomFilter),
		rand:      rand.New(rand.NewSource(seed)),
	}
	switch indexType {
	case BloofiIndexType:
		sample, err := t.newFilter(0, nil)
		if err != nil {
			return nil, err
		}
		t.index, err = bloofi.New(cfg.Order, sample, cfg.SplitFull, t.rand)
		if err != nil {
			return nil, err
		}
	case FlatIndexType:
		t.index = flat.New()
	case NaiveIndexType:
		t.index = naive.New()
	default:
		return nil, errors.New("invalid index type")
	}
	return t, nil
}

// newFilter builds a filter holding keys.
func (t *Table) newFilter(id int, keys []int64) (*bloom.BloomFilter, error) {
	bf, err := bloom.NewWithProbability(t.hasher, t.config.FalsePositiveProbability, t.config.ExpectedElements, t.config.Metric)
	if err != nil {
		return nil, err
	}
	bf.SetID(id)
	bf.AddAll(keys)
	return bf, nil
}

// Get name.
func (t *Table) GetName() string {
	return t.name
}

// Get index type.
func (t *Table) GetType() IndexType {
	return t.indexType
}

// Get the session that created the table.
func (t *Table) GetCreator() uuid.UUID {
	return t.creator
}

// Set the session that created the table.
func (t *Table) SetCreator(session uuid.UUID) {
	t.creator = session
}

// Get the index.
func (t *Table) GetIndex() utils.Index {
	return t.index
}

// Get the accumulated update statistics.
func (t *Table) GetStats() stats.UpdateStats {
	return t.stats
}

// GetFilter returns the filter stored under id.
func (t *Table) GetFilter(id int) (*bloom.BloomFilter, bool) {
	bf, ok := t.filters[id]
	return bf, ok
}

// Insert indexes a new filter holding keys.
func (t *Table) Insert(id int, keys []int64) error {
	if _, ok := t.filters[id]; ok {
		return fmt.Errorf("%d: %w", id, utils.ErrDuplicateID)
	}
	bf, err := t.newFilter(id, keys)
	if err != nil {
		return err
	}
	if err := t.index.Insert(bf, &t.stats); err != nil {
		return err
	}
	t.filters[id] = bf
	return nil
}

// Update adds keys to an indexed filter.
func (t *Table) Update(id int, keys []int64) error {
	bf, ok := t.filters[id]
	if !ok {
		return fmt.Errorf("%d: %w", id, utils.ErrUnknownID)
	}
	bf.AddAll(keys)
	return t.index.Update(bf, &t.stats)
}

// Replace swaps an indexed filter for a new one holding only keys.
func (t *Table) Replace(id int, keys []int64) error {
	if _, ok := t.filters[id]; !ok {
		return fmt.Errorf("%d: %w", id, utils.ErrUnknownID)
	}
	bf, err := t.newFilter(id, keys)
	if err != nil {
		return err
	}
	if err := t.index.Replace(bf, &t.stats); err != nil {
		return err
	}
	t.filters[id] = bf
	return nil
}

// Delete removes a filter.
func (t *Table) Delete(id int) error {
	if err := t.index.Delete(id, &t.stats); err != nil {
		return err
	}
	delete(t.filters, id)
	return nil
}

// Search returns the ids of the filters that may contain key.
func (t *Table) Search(key int64, s *stats.SearchStats) []int {
	return t.index.Search(key, s)
}

// Load adds count random filters of keysPerFilter keys each, numbered after
// the largest id in use. An empty tree table is bulk loaded.
func (t *Table) Load(count int, keysPerFilter int, seed int64) error {
	if count < 1 || keysPerFilter < 0 {
		return errors.New("load needs a positive count and a non-negative number of keys")
	}
	r := t.rand
	if seed != 0 {
		r = rand.New(rand.NewSource(seed))
	}
	next := 0
	for id := range t.filters {
		if id >= next {
			next = id + 1
		}
	}
	filters := make([]*bloom.BloomFilter, count)
	for i := range filters {
		keys := make([]int64, keysPerFilter)
		for j := range keys {
			keys[j] = int64(r.Intn(config.DefaultCompareMaxKey + 1))
		}
		bf, err := t.newFilter(next+i, keys)
		if err != nil {
			return err
		}
		filters[i] = bf
	}
	if t.indexType == BloofiIndexType && len(t.filters) == 0 {
		idx, err := bloofi.BulkLoad(filters, t.config.Order, t.config.SplitFull, t.rand, &t.stats)
		if err != nil {
			return err
		}
		t.index = idx
		for _, bf := range filters {
			t.filters[bf.ID()] = bf
		}
		return nil
	}
	// The catalogue follows the index even if an insert fails midway.
	for _, bf := range filters {
		if err := t.index.Insert(bf, &t.stats); err != nil {
			return err
		}
		t.filters[bf.ID()] = bf
	}
	return nil
}

// PrintInfo writes a summary of the table.
func (t *Table) PrintInfo(w io.Writer) {
	idx := t.index
	io.WriteString(w, fmt.Sprintf("%s index %s\n", t.indexType, t.name))
	if t.creator != uuid.Nil {
		io.WriteString(w, fmt.Sprintf("created by session %s\n", t.creator))
	}
	io.WriteString(w, fmt.Sprintf("filters: %d, bits per filter: %d\n", len(t.filters), idx.BloomFilterSize()))
	io.WriteString(w, fmt.Sprintf("height: %d, nodes: %d, root children: %d, root full: %v\n",
		idx.Height(), idx.NodeCount(), idx.RootChildCount(), idx.IsRootFull()))
	if fl, ok := idx.(*flat.Index); ok {
		io.WriteString(w, fmt.Sprintf("blocks: %d\n", fl.BlockCount()))
	}
	io.WriteString(w, fmt.Sprintf("%v\n", t.stats))
}
