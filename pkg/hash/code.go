package hash

import (
	"encoding/binary"

	xxhash "github.com/cespare/xxhash"
	murmur3 "github.com/spaolacci/murmur3"
)

// CodeFunc maps an element to the integer hash code fed to the hash family.
type CodeFunc func(key int64) int32

// IntCode folds the key into 32 bits; non-negative int32 keys are their own code.
func IntCode(key int64) int32 {
	return int32(key ^ (key >> 32))
}

// XxCode returns the folded xxHash of the key.
func XxCode(key int64) int32 {
	return fold(getHash(xxhash.Sum64, key))
}

// MurmurCode returns the folded MurmurHash3 of the key.
func MurmurCode(key int64) int32 {
	return fold(getHash(murmur3.Sum64, key))
}

// BytesKey turns an arbitrary byte string into a key.
func BytesKey(b []byte) int64 {
	return int64(xxhash.Sum64(b))
}

// StringKey turns a string into a key.
func StringKey(s string) int64 {
	return BytesKey([]byte(s))
}

// CodeByName returns the code function with the given name.
func CodeByName(name string) (CodeFunc, bool) {
	switch name {
	case "", "int":
		return IntCode, true
	case "xxhash":
		return XxCode, true
	case "murmur":
		return MurmurCode, true
	}
	return nil, false
}

// getHash returns the hash of a key, given a hashing function.
func getHash(hasher func(b []byte) uint64, key int64) uint64 {
	buf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutVarint(buf, key)
	return hasher(buf[:n])
}

func fold(h uint64) int32 {
	return int32(h ^ (h >> 32))
}
