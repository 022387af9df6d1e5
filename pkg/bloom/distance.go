package bloom

import (
	"fmt"
	"math"
	"strings"
)

// Metric selects the distance used to compare two filters.
type Metric int

const (
	Hamming Metric = 1
	Jaccard Metric = 2
	Cosine  Metric = 3
)

// ParseMetric reads a metric name or number.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(s) {
	case "1", "hamming":
		return Hamming, nil
	case "2", "jaccard":
		return Jaccard, nil
	case "3", "cosine":
		return Cosine, nil
	}
	return 0, fmt.Errorf("unknown metric %q", s)
}

func (m Metric) String() string {
	switch m {
	case Jaccard:
		return "jaccard"
	case Cosine:
		return "cosine"
	}
	return "hamming"
}

// Distance compares this filter to other using this filter's metric.
// Unknown metrics fall back to Hamming.
func (bf *BloomFilter) Distance(other *BloomFilter) (float64, error) {
	if err := bf.Compatible(other); err != nil {
		return 0, err
	}
	switch bf.metric {
	case Jaccard:
		return bf.jaccardDistance(other), nil
	case Cosine:
		return bf.cosineDistance(other), nil
	}
	return float64(bf.hammingDistance(other)), nil
}

// hammingDistance is the number of positions where the filters differ.
func (bf *BloomFilter) hammingDistance(other *BloomFilter) uint {
	return bf.bits.SymmetricDifferenceCardinality(other.bits)
}

// jaccardDistance is 1 - |A and B| / |A or B|, and 0 when both are empty.
func (bf *BloomFilter) jaccardDistance(other *BloomFilter) float64 {
	countOr := bf.bits.UnionCardinality(other.bits)
	if countOr == 0 {
		return 0
	}
	countAnd := bf.bits.IntersectionCardinality(other.bits)
	return 1 - float64(countAnd)/float64(countOr)
}

// cosineDistance is 1 - |A and B| / (sqrt|A| * sqrt|B|). Two empty filters
// are at distance 0; an empty and a non-empty filter are at distance 1.
func (bf *BloomFilter) cosineDistance(other *BloomFilter) float64 {
	count1 := bf.bits.Count()
	count2 := other.bits.Count()
	if count1 == 0 && count2 == 0 {
		return 0
	}
	if count1 == 0 || count2 == 0 {
		return 1
	}
	countAnd := bf.bits.IntersectionCardinality(other.bits)
	if countAnd == count1 && countAnd == count2 {
		return 0
	}
	d := 1 - float64(countAnd)/(math.Sqrt(float64(count1))*math.Sqrt(float64(count2)))
	return math.Min(math.Max(d, 0), 1)
}
