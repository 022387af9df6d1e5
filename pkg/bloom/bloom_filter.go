package bloom

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	bitset "github.com/bits-and-blooms/bitset"
	hash "github.com/brown-csci1270/bloofi/pkg/hash"
	xxhash "github.com/cespare/xxhash"
)

// Configuration mismatch errors.
var (
	ErrHasherMismatch = errors.New("bloom: filters use different hashers")
	ErrSizeMismatch   = errors.New("bloom: filters have different sizes")
)

// BloomFilter is a fixed-size bit array probed by k hash functions drawn
// from a Hasher shared by every filter of an index.
type BloomFilter struct {
	id             int            // Identifier, unique within an index.
	bits           *bitset.BitSet // The bit array.
	size           int            // Number of bits, m.
	k              int            // Number of hash functions.
	expected       int            // Expected number of elements, n.
	bitsPerElement float64        // c = m/n.
	count          int            // Number of elements added.
	metric         Metric         // Metric used by Distance.
	hasher         *hash.Hasher   // Shared hash family.
}

// New constructs an empty filter of ceil(c*n) bits probed by k hash functions.
func New(h *hash.Hasher, c float64, n int, k int, metric Metric) (*BloomFilter, error) {
	return build(h, int(math.Ceil(c*float64(n))), c, n, k, metric)
}

// build registers k and size with the hasher and allocates the bits.
func build(h *hash.Hasher, size int, c float64, n int, k int, metric Metric) (*BloomFilter, error) {
	if h == nil {
		return nil, errors.New("bloom: nil hasher")
	}
	if n < 1 {
		return nil, fmt.Errorf("bloom: invalid expected number of elements %d", n)
	}
	if err := h.SetFamily(k, size); err != nil {
		return nil, err
	}
	return &BloomFilter{
		bits:           bitset.New(uint(size)),
		size:           size,
		k:              k,
		expected:       n,
		bitsPerElement: c,
		metric:         metric,
		hasher:         h,
	}, nil
}

// NewWithProbability derives k and m from a target false positive
// probability p and an expected number of elements n.
func NewWithProbability(h *hash.Hasher, p float64, n int, metric Metric) (*BloomFilter, error) {
	if !(p > 0 && p < 1) {
		return nil, fmt.Errorf("bloom: false positive probability %v not in (0, 1)", p)
	}
	k := math.Ceil(-math.Log(p) / math.Ln2)
	return New(h, k/math.Ln2, n, int(k), metric)
}

// NewWithSize derives k from a total number of bits m and an expected
// number of elements n.
func NewWithSize(h *hash.Hasher, m int, n int, metric Metric) (*BloomFilter, error) {
	if n < 1 {
		return nil, fmt.Errorf("bloom: invalid expected number of elements %d", n)
	}
	c := float64(m) / float64(n)
	k := int(math.Round(c * math.Ln2))
	if k < 1 {
		k = 1
	}
	return build(h, m, c, n, k, metric)
}

// NewFromBits wraps existing filter data.
func NewFromBits(h *hash.Hasher, m int, n int, count int, bits *bitset.BitSet, metric Metric) (*BloomFilter, error) {
	if bits == nil || bits.Len() != uint(m) {
		return nil, fmt.Errorf("%w: bits do not have length %d", ErrSizeMismatch, m)
	}
	bf, err := NewWithSize(h, m, n, metric)
	if err != nil {
		return nil, err
	}
	bf.bits = bits
	bf.count = count
	return bf, nil
}

// NewZero returns an empty filter with the same parameters and hasher.
func (bf *BloomFilter) NewZero() *BloomFilter {
	return &BloomFilter{
		bits:           bitset.New(uint(bf.size)),
		size:           bf.size,
		k:              bf.k,
		expected:       bf.expected,
		bitsPerElement: bf.bitsPerElement,
		metric:         bf.metric,
		hasher:         bf.hasher,
	}
}

// Copy returns a deep copy of the filter, identifier included.
func (bf *BloomFilter) Copy() *BloomFilter {
	c := *bf
	c.bits = bf.bits.Clone()
	return &c
}

// Add registers key in the filter.
func (bf *BloomFilter) Add(key int64) {
	for i := 0; i < bf.k; i++ {
		bf.bits.Set(bf.hasher.Hash(key, i))
	}
	bf.count++
}

// AddAll registers every key in the filter.
func (bf *BloomFilter) AddAll(keys []int64) {
	for _, key := range keys {
		bf.Add(key)
	}
}

// Contains returns true if key could have been added to the filter.
func (bf *BloomFilter) Contains(key int64) bool {
	for i := 0; i < bf.k; i++ {
		if !bf.bits.Test(bf.hasher.Hash(key, i)) {
			return false
		}
	}
	return true
}

// ContainsAll returns true if every key could have been added.
func (bf *BloomFilter) ContainsAll(keys []int64) bool {
	for _, key := range keys {
		if !bf.Contains(key) {
			return false
		}
	}
	return true
}

// Clear resets every bit and the element count.
func (bf *BloomFilter) Clear() {
	bf.bits.ClearAll()
	bf.count = 0
}

// Compatible returns an error if the two filters cannot be combined.
func (bf *BloomFilter) Compatible(other *BloomFilter) error {
	if bf.hasher != other.hasher {
		return ErrHasherMismatch
	}
	if bf.size != other.size {
		return fmt.Errorf("%w: %d and %d", ErrSizeMismatch, bf.size, other.size)
	}
	return nil
}

// Union ORs other into this filter. The element count becomes the sum of
// both counts, which over-counts elements present in both.
func (bf *BloomFilter) Union(other *BloomFilter) error {
	if err := bf.Compatible(other); err != nil {
		return err
	}
	bf.bits.InPlaceUnion(other.bits)
	bf.count += other.count
	return nil
}

// FindClosest returns the index of the first filter in list closest to
// this one, or -1 if the list is empty.
func (bf *BloomFilter) FindClosest(list []*BloomFilter) (int, error) {
	minIndex := -1
	minDistance := 0.0
	for i, other := range list {
		d, err := bf.Distance(other)
		if err != nil {
			return -1, err
		}
		if minIndex < 0 || d < minDistance {
			minIndex, minDistance = i, d
		}
	}
	return minIndex, nil
}

// FalsePositiveProbability returns (1 - e^(-k*n/m))^k for n elements.
func (bf *BloomFilter) FalsePositiveProbability(n float64) float64 {
	k := float64(bf.k)
	return math.Pow(1-math.Exp(-k*n/float64(bf.size)), k)
}

// ExpectedFalsePositiveProbability evaluates at the expected element count.
func (bf *BloomFilter) ExpectedFalsePositiveProbability() float64 {
	return bf.FalsePositiveProbability(float64(bf.expected))
}

// CurrentFalsePositiveProbability evaluates at the added element count.
func (bf *BloomFilter) CurrentFalsePositiveProbability() float64 {
	return bf.FalsePositiveProbability(float64(bf.count))
}

// IsFull returns true if every bit is set.
func (bf *BloomFilter) IsFull() bool {
	return bf.bits.Count() == uint(bf.size)
}

// Cardinality returns the number of set bits.
func (bf *BloomFilter) Cardinality() int {
	return int(bf.bits.Count())
}

// Get the number of bits.
func (bf *BloomFilter) Size() int {
	return bf.size
}

// Get the number of hash functions.
func (bf *BloomFilter) K() int {
	return bf.k
}

// Get the number of added elements.
func (bf *BloomFilter) Count() int {
	return bf.count
}

// Get the expected number of elements.
func (bf *BloomFilter) ExpectedElements() int {
	return bf.expected
}

// BitsPerElement returns m divided by the number of added elements.
func (bf *BloomFilter) BitsPerElement() float64 {
	return float64(bf.size) / float64(bf.count)
}

// Get the expected number of bits per element.
func (bf *BloomFilter) ExpectedBitsPerElement() float64 {
	return bf.bitsPerElement
}

// Get the identifier.
func (bf *BloomFilter) ID() int {
	return bf.id
}

// Set the identifier.
func (bf *BloomFilter) SetID(id int) {
	bf.id = id
}

// Get the metric.
func (bf *BloomFilter) Metric() Metric {
	return bf.metric
}

// Get the hasher.
func (bf *BloomFilter) Hasher() *hash.Hasher {
	return bf.hasher
}

// Get the underlying bit array.
func (bf *BloomFilter) Bits() *bitset.BitSet {
	return bf.bits
}

// GetBit reads a single bit.
func (bf *BloomFilter) GetBit(i uint) bool {
	return bf.bits.Test(i)
}

// SetBit sets or clears a single bit.
func (bf *BloomFilter) SetBit(i uint, value bool) {
	bf.bits.SetTo(i, value)
}

// Equal compares size, expected count, k and bits.
func (bf *BloomFilter) Equal(other *BloomFilter) bool {
	if other == nil {
		return false
	}
	return bf.size == other.size &&
		bf.expected == other.expected &&
		bf.k == other.k &&
		bf.bits.Equal(other.bits)
}

// Hash returns a digest consistent with Equal.
func (bf *BloomFilter) Hash() uint64 {
	words := bf.bits.Bytes()
	buf := make([]byte, 8*(3+len(words)))
	binary.LittleEndian.PutUint64(buf[0:], uint64(bf.size))
	binary.LittleEndian.PutUint64(buf[8:], uint64(bf.expected))
	binary.LittleEndian.PutUint64(buf[16:], uint64(bf.k))
	for i, w := range words {
		binary.LittleEndian.PutUint64(buf[24+8*i:], w)
	}
	return xxhash.Sum64(buf)
}

// String returns the identifier, cardinality and size.
func (bf *BloomFilter) String() string {
	return fmt.Sprintf("ID:%d:%d:%d", bf.id, bf.bits.Count(), bf.size)
}
