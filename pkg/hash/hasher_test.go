package hash

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHasher(t *testing.T) {
	t.Run("Deterministic", testHasherDeterministic)
	t.Run("Range", testHasherRange)
	t.Run("FixedFamily", testHasherFixedFamily)
	t.Run("SetFamily", testHasherSetFamily)
	t.Run("Codes", testCodes)
}

func newTestHasher(t *testing.T, seed int64, code CodeFunc, k int, m int) *Hasher {
	h := NewHasher(seed, code)
	require.NoError(t, h.SetNumberOfRandomKeys(k))
	require.NoError(t, h.SetMaxValue(m))
	return h
}

func testHasherDeterministic(t *testing.T) {
	a := newTestHasher(t, 42, nil, 5, 1000)
	b := newTestHasher(t, 42, nil, 5, 1000)
	for key := int64(-50); key < 50; key++ {
		for i := 0; i < 5; i++ {
			require.Equal(t, a.Hash(key, i), b.Hash(key, i))
			require.Equal(t, a.Hash(key, i), a.Hash(key, i))
		}
	}
	for _, k := range a.keys {
		require.Equal(t, int32(1), k&1, "keys must be odd")
	}
}

func testHasherRange(t *testing.T) {
	for _, code := range []CodeFunc{IntCode, XxCode, MurmurCode} {
		h := newTestHasher(t, 7, code, 3, 97)
		require.Equal(t, 3, h.NumberOfHashFunctions())
		require.Equal(t, 97, h.MaxValue())
		for key := int64(-1000); key < 1000; key += 7 {
			for i := 0; i < 3; i++ {
				require.Less(t, h.Hash(key, i), uint(97))
			}
		}
	}
}

func testHasherFixedFamily(t *testing.T) {
	h := newTestHasher(t, 1, nil, 4, 128)
	require.NoError(t, h.SetNumberOfRandomKeys(4))
	require.NoError(t, h.SetMaxValue(128))
	err := h.SetNumberOfRandomKeys(5)
	require.True(t, errors.Is(err, ErrHashCountChanged))
	err = h.SetMaxValue(256)
	require.True(t, errors.Is(err, ErrModulusChanged))
	require.Error(t, NewHasher(1, nil).SetNumberOfRandomKeys(0))
	require.Error(t, NewHasher(1, nil).SetMaxValue(0))
	require.Equal(t, 4, h.NumberOfHashFunctions())
	require.Equal(t, 128, h.MaxValue())
}

func testHasherSetFamily(t *testing.T) {
	// A rejected modulus leaves the keys undrawn.
	h := NewHasher(3, nil)
	require.NoError(t, h.SetMaxValue(64))
	require.True(t, errors.Is(h.SetFamily(4, 128), ErrModulusChanged))
	require.Equal(t, 0, h.NumberOfHashFunctions())
	require.NoError(t, h.SetFamily(6, 64))
	require.Equal(t, 6, h.NumberOfHashFunctions())

	// A rejected k leaves the modulus unset.
	h = NewHasher(3, nil)
	require.NoError(t, h.SetNumberOfRandomKeys(2))
	require.True(t, errors.Is(h.SetFamily(3, 100), ErrHashCountChanged))
	require.Equal(t, 0, h.MaxValue())
	require.Error(t, h.SetFamily(2, 0))
	require.Equal(t, 0, h.MaxValue())

	// Repeating the fixed family keeps the same keys.
	keys := append([]int32(nil), h.keys...)
	require.NoError(t, h.SetFamily(2, 100))
	require.NoError(t, h.SetFamily(2, 100))
	require.Equal(t, keys, h.keys)
}

func testCodes(t *testing.T) {
	require.Equal(t, int32(12), IntCode(12))
	require.Equal(t, int32(4), IntCode(1<<32|5))
	require.Equal(t, XxCode(99), XxCode(99))
	require.Equal(t, MurmurCode(99), MurmurCode(99))
	require.Equal(t, StringKey("bloofi"), BytesKey([]byte("bloofi")))
	require.NotEqual(t, StringKey("bloofi"), StringKey("bloofj"))
	for _, name := range []string{"", "int", "xxhash", "murmur"} {
		f, ok := CodeByName(name)
		require.True(t, ok)
		require.NotNil(t, f)
	}
	_, ok := CodeByName("sha")
	require.False(t, ok)
}
