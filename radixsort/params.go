// Package radixsort implements a multi-pass LSD radix sort of uint32 keys on
// a compute back end. Every pass runs three device stages: a per-block digit
// histogram, a hierarchical prefix scan turning counts into write offsets,
// and a stable scatter into the second key buffer.
package radixsort

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidParams = errors.New("radixsort: invalid parameters")
	ErrTooManyKeys   = errors.New("radixsort: too many keys")
)

// Order of the sorted output.
type Order uint8

const (
	Ascending Order = iota
	Descending
)

func (o Order) String() string {
	if o == Descending {
		return "descending"
	}
	return "ascending"
}

// ParseOrder accepts "ascending"/"asc" and "descending"/"desc".
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ascending", "asc":
		return Ascending, nil
	case "descending", "desc":
		return Descending, nil
	}
	return Ascending, fmt.Errorf("%w: unknown order %q", ErrInvalidParams, s)
}

// Transition selects how the output of one pass becomes the input of the next.
type Transition uint8

const (
	// Swap exchanges the roles of the two key buffers.
	Swap Transition = iota
	// CopyBack copies the sorted buffer over the input buffer.
	CopyBack
)

func (t Transition) String() string {
	if t == CopyBack {
		return "copy"
	}
	return "swap"
}

// ParseTransition accepts "swap" and "copy".
func ParseTransition(s string) (Transition, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "swap":
		return Swap, nil
	case "copy", "copyback", "copy-back":
		return CopyBack, nil
	}
	return Swap, fmt.Errorf("%w: unknown transition %q", ErrInvalidParams, s)
}

const (
	DefaultKeyBits   = 32
	DefaultDigitBits = 8
	DefaultGroupSize = 64
	maxDigitBits     = 8
)

// Params configures the sort. Zero fields take their defaults in Normalize.
type Params struct {
	KeyBits   int
	DigitBits int
	// GroupSize is the number of work items per work-group. It is also the
	// number of blocks scanned together by one group of the block scan.
	GroupSize int
	// BlockSize is the number of keys handled by one work-group in the
	// histogram and permute stages. Defaults to GroupSize*Radix.
	BlockSize  int
	Order      Order
	Transition Transition
	// CaptureHistograms keeps a copy of every pass histogram in the result.
	CaptureHistograms bool
}

// DefaultParams returns the 32-bit, 8-bit digit configuration.
func DefaultParams() Params {
	p := Params{}
	p.Normalize()
	return p
}

// Normalize fills zero fields with defaults.
func (p *Params) Normalize() {
	if p.KeyBits == 0 {
		p.KeyBits = DefaultKeyBits
	}
	if p.DigitBits == 0 {
		p.DigitBits = DefaultDigitBits
	}
	if p.GroupSize == 0 {
		p.GroupSize = DefaultGroupSize
	}
	if p.BlockSize == 0 && p.DigitBits > 0 && p.DigitBits <= maxDigitBits {
		p.BlockSize = p.GroupSize * p.Radix()
	}
}

// Radix is the number of digit values, 2^DigitBits.
func (p Params) Radix() int { return 1 << p.DigitBits }

// Passes is the number of digit passes, KeyBits/DigitBits.
func (p Params) Passes() int { return p.KeyBits / p.DigitBits }

func (p Params) digitMask() uint32 { return uint32(p.Radix() - 1) }

// Validate checks a normalized parameter set.
func (p Params) Validate() error {
	switch {
	case p.KeyBits < 1 || p.KeyBits > 32:
		return fmt.Errorf("%w: keyBits %d not in [1, 32]", ErrInvalidParams, p.KeyBits)
	case p.DigitBits < 1 || p.DigitBits > maxDigitBits:
		return fmt.Errorf("%w: digitBits %d not in [1, %d]", ErrInvalidParams, p.DigitBits, maxDigitBits)
	case p.KeyBits%p.DigitBits != 0:
		return fmt.Errorf("%w: keyBits %d not a multiple of digitBits %d", ErrInvalidParams, p.KeyBits, p.DigitBits)
	case p.GroupSize < 1 || p.GroupSize&(p.GroupSize-1) != 0:
		return fmt.Errorf("%w: groupSize %d not a power of two", ErrInvalidParams, p.GroupSize)
	case p.BlockSize < p.GroupSize:
		return fmt.Errorf("%w: blockSize %d smaller than groupSize %d", ErrInvalidParams, p.BlockSize, p.GroupSize)
	case p.Order > Descending:
		return fmt.Errorf("%w: order %d", ErrInvalidParams, p.Order)
	case p.Transition > CopyBack:
		return fmt.Errorf("%w: transition %d", ErrInvalidParams, p.Transition)
	}
	return nil
}

// digit extracts the digit of key for the given shift. Descending order
// inverts the digit, which reverses the order of every pass and keeps it stable.
func digit(key uint32, shift uint, mask uint32, descending bool) uint32 {
	d := (key >> shift) & mask
	if descending {
		d = mask - d
	}
	return d
}
