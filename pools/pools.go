package pools

import "sync"

const (
	// DefaultKeyCapacity is the capacity of freshly allocated key slices.
	DefaultKeyCapacity = 4096
	// MaxPooledKeyCapacity bounds the slices kept for reuse.
	MaxPooledKeyCapacity = 1 << 22
)

// KeyPools provides pooled key slices for the serve loop
type KeyPools struct {
	KeySlices sync.Pool
	maxCap    int
}

// NewKeyPools creates pools handing out slices of initialCap and keeping
// returned slices up to maxCap.
func NewKeyPools(initialCap, maxCap int) *KeyPools {
	return &KeyPools{
		KeySlices: sync.Pool{
			New: func() interface{} {
				slice := make([]uint32, 0, initialCap)
				return &slice
			},
		},
		maxCap: maxCap,
	}
}

// Pools is the global instance of key pools
var Pools = NewKeyPools(DefaultKeyCapacity, MaxPooledKeyCapacity)

// GetKeySlice gets a key slice from the pool and resets it
func (kp *KeyPools) GetKeySlice() []uint32 {
	slicePtr := kp.KeySlices.Get().(*[]uint32)
	*slicePtr = (*slicePtr)[:0] // Reset length while keeping capacity
	return *slicePtr
}

// ReturnKeySlice returns a key slice to the pool
func (kp *KeyPools) ReturnKeySlice(slice []uint32) {
	if slice == nil || cap(slice) > kp.maxCap { // Prevent memory bloat
		return
	}
	emptySlice := slice[:0]
	kp.KeySlices.Put(&emptySlice)
}
