package hash

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Errors returned when a Hasher's family is changed after it was fixed.
var (
	ErrHashCountChanged = errors.New("hasher: number of hash functions cannot change")
	ErrModulusChanged   = errors.New("hasher: dynamic resizing is not supported")
)

// Hasher implements simple tabulation hashing. A single Hasher is shared by
// every filter and every index node of one logical index.
type Hasher struct {
	rand    *rand.Rand // Only used to draw the keys.
	keys    []int32    // One odd multiplier per hash function.
	modulus int32      // Bit-array length of every filter using this hasher.
	code    CodeFunc   // Element hash code.
}

// NewHasher returns a hasher whose keys are drawn from the given seed.
// A zero seed draws from the clock. A nil code uses IntCode.
func NewHasher(seed int64, code CodeFunc) *Hasher {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if code == nil {
		code = IntCode
	}
	return &Hasher{rand: rand.New(rand.NewSource(seed)), code: code}
}

// Hash returns the position given by hash function i for key.
func (h *Hasher) Hash(key int64, i int) uint {
	v := (h.code(key) * h.keys[i]) & math.MaxInt32
	return uint(v % h.modulus)
}

// Get the number of hash functions.
func (h *Hasher) NumberOfHashFunctions() int {
	return len(h.keys)
}

// Get the modulus.
func (h *Hasher) MaxValue() int {
	return int(h.modulus)
}

// SetNumberOfRandomKeys draws k keys the first time it is called.
// Calling it again with the same k is a no-op; any other k fails.
func (h *Hasher) SetNumberOfRandomKeys(k int) error {
	if err := h.checkKeys(k); err != nil {
		return err
	}
	h.drawKeys(k)
	return nil
}

// SetMaxValue fixes the modulus the first time it is called.
// Calling it again with the same value is a no-op; any other value fails.
func (h *Hasher) SetMaxValue(m int) error {
	if err := h.checkModulus(m); err != nil {
		return err
	}
	h.modulus = int32(m)
	return nil
}

// SetFamily fixes both k and the modulus. Nothing changes unless both are
// accepted.
func (h *Hasher) SetFamily(k int, m int) error {
	if err := h.checkKeys(k); err != nil {
		return err
	}
	if err := h.checkModulus(m); err != nil {
		return err
	}
	h.drawKeys(k)
	h.modulus = int32(m)
	return nil
}

func (h *Hasher) checkKeys(k int) error {
	if k < 1 {
		return fmt.Errorf("hasher: invalid number of hash functions %d", k)
	}
	if len(h.keys) > 0 && k != len(h.keys) {
		return fmt.Errorf("%w: have %d, asked for %d", ErrHashCountChanged, len(h.keys), k)
	}
	return nil
}

func (h *Hasher) checkModulus(m int) error {
	if m < 1 || m > math.MaxInt32 {
		return fmt.Errorf("hasher: invalid bit-array size %d", m)
	}
	if h.modulus != 0 && int32(m) != h.modulus {
		return fmt.Errorf("%w: have %d, asked for %d", ErrModulusChanged, h.modulus, m)
	}
	return nil
}

// drawKeys draws k odd keys unless they are already drawn.
func (h *Hasher) drawKeys(k int) {
	if len(h.keys) > 0 {
		return
	}
	h.keys = make([]int32, k)
	for i := range h.keys {
		h.keys[i] = int32(h.rand.Uint32()>>2)*2 + 1
	}
}
