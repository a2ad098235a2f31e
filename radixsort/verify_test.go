package radixsort

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReference(t *testing.T) {
	tests := []struct {
		name   string
		keys   []uint32
		params Params
		want   []uint32
	}{
		{"empty", nil, Params{}, []uint32{}},
		{"single", []uint32{42}, Params{}, []uint32{42}},
		{"toy", []uint32{5, 3, 8, 1, 9, 2}, Params{}, []uint32{1, 2, 3, 5, 8, 9}},
		{"extremes", []uint32{0xFFFFFFFF, 0, 0x80000000, 1, 0x7FFFFFFF}, Params{}, []uint32{0, 1, 0x7FFFFFFF, 0x80000000, 0xFFFFFFFF}},
		{"descending", []uint32{3, 1, 4, 1, 5, 9, 2, 6}, Params{Order: Descending}, []uint32{9, 6, 5, 4, 3, 2, 1, 1}},
		{"odd pass count", []uint32{0x30, 0x10, 0x20}, Params{KeyBits: 12, DigitBits: 4}, []uint32{0x10, 0x20, 0x30}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := append([]uint32(nil), tt.keys...)
			assert.Equal(t, tt.want, Reference(in, tt.params))
			assert.Equal(t, tt.keys, in, "input modified")
		})
	}
}

func TestReferenceMatchesSort(t *testing.T) {
	keys := randomKeys(10000, 99)
	assert.Equal(t, sortedCopy(keys, false), Reference(keys, Params{}))
	assert.Equal(t, sortedCopy(keys, true), Reference(keys, Params{Order: Descending}))
	assert.Equal(t, sortedCopy(keys, false), Reference(keys, Params{DigitBits: 4}))
}

func TestVerify(t *testing.T) {
	v := Verify([]uint32{1, 2, 3}, []uint32{1, 2, 3})
	assert.Equal(t, Verification{Passed: true, Matched: 3, Total: 3, FirstMismatch: -1}, v)

	v = Verify([]uint32{1, 5, 3, 7}, []uint32{1, 2, 3, 4})
	assert.False(t, v.Passed)
	assert.Equal(t, 2, v.Matched)
	assert.Equal(t, 1, v.FirstMismatch)

	v = Verify([]uint32{1}, []uint32{1, 2})
	assert.False(t, v.Passed)
	assert.Equal(t, 1, v.FirstMismatch)

	v = Verify([]uint32{1, 2, 3}, []uint32{1, 2})
	assert.False(t, v.Passed)
	assert.Equal(t, 2, v.FirstMismatch)
}

func TestParams(t *testing.T) {
	p := DefaultParams()
	require.NoError(t, p.Validate())
	assert.Equal(t, 256, p.Radix())
	assert.Equal(t, 4, p.Passes())
	assert.Equal(t, 64*256, p.BlockSize)

	p = Params{DigitBits: 4, GroupSize: 16}
	p.Normalize()
	assert.Equal(t, 8, p.Passes())
	assert.Equal(t, 16*16, p.BlockSize)

	order, err := ParseOrder("desc")
	require.NoError(t, err)
	assert.Equal(t, Descending, order)
	_, err = ParseOrder("sideways")
	assert.ErrorIs(t, err, ErrInvalidParams)

	tr, err := ParseTransition("copy")
	require.NoError(t, err)
	assert.Equal(t, CopyBack, tr)
	assert.Equal(t, "copy", tr.String())
	_, err = ParseTransition("teleport")
	assert.ErrorIs(t, err, ErrInvalidParams)
}
