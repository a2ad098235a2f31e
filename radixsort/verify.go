package radixsort

// Reference sorts keys on the host with a sequential counting sort over the
// same digit passes as the device pipeline. keys is not modified.
func Reference(keys []uint32, params Params) []uint32 {
	params.Normalize()
	out := make([]uint32, len(keys))
	copy(out, keys)
	if len(out) <= 1 {
		return out
	}

	scratch := make([]uint32, len(out))
	src, dst := out, scratch
	for pass := 0; pass < params.Passes(); pass++ {
		referencePass(src, dst, uint(pass*params.DigitBits), params)
		src, dst = dst, src
	}
	if &src[0] != &out[0] {
		copy(out, src)
	}
	return out
}

// referencePass is one stable counting sort of src into dst by the digit at shift.
func referencePass(src, dst []uint32, shift uint, params Params) {
	mask := params.digitMask()
	desc := params.Order == Descending
	counts := make([]int, params.Radix())

	for _, v := range src {
		counts[digit(v, shift, mask, desc)]++
	}

	total := 0
	for i, c := range counts {
		counts[i] = total
		total += c
	}

	for _, v := range src {
		d := digit(v, shift, mask, desc)
		dst[counts[d]] = v
		counts[d]++
	}
}

// Verification compares a device result with the host reference.
type Verification struct {
	Passed  bool `json:"passed"`
	Matched int  `json:"matched"`
	Total   int  `json:"total"`
	// FirstMismatch is the index of the first differing element, or -1.
	FirstMismatch int `json:"first_mismatch"`
}

// Verify compares got against want element by element. A length difference
// counts the missing tail as mismatches.
func Verify(got, want []uint32) Verification {
	v := Verification{Total: len(want), FirstMismatch: -1}
	for i := range want {
		if i < len(got) && got[i] == want[i] {
			v.Matched++
			continue
		}
		if v.FirstMismatch < 0 {
			v.FirstMismatch = i
		}
	}
	if len(got) > len(want) && v.FirstMismatch < 0 {
		v.FirstMismatch = len(want)
	}
	v.Passed = v.FirstMismatch < 0
	return v
}
