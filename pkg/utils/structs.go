package utils

import (
	"errors"
	"io"

	bloom "github.com/brown-csci1270/bloofi/pkg/bloom"
	stats "github.com/brown-csci1270/bloofi/pkg/stats"
)

// Errors shared by every index.
var (
	ErrUnknownID   = errors.New("no filter with this id in the index")
	ErrDuplicateID = errors.New("a filter with this id is already in the index")
	ErrCorrupted   = errors.New("index structure is corrupted")
)

// Index is a collection of Bloom filters searchable by element.
type Index interface {
	Insert(bf *bloom.BloomFilter, s *stats.UpdateStats) error
	Delete(id int, s *stats.UpdateStats) error
	Update(bf *bloom.BloomFilter, s *stats.UpdateStats) error
	Replace(bf *bloom.BloomFilter, s *stats.UpdateStats) error
	Search(key int64, s *stats.SearchStats) []int
	Height() int
	NodeCount() int
	BloomFilterSize() int
	IsRootFull() bool
	RootChildCount() int
	IDs() []int
	Print(w io.Writer)
}
