package keys

// SortHost sorts data in place with a sequential 8-bit LSD radix sort.
// Four counting-sort passes share one scratch buffer.
func SortHost(data []uint32) {
	n := len(data)
	if n <= 1 {
		return
	}
	if n <= 64 {
		insertionSort(data)
		return
	}

	scratch := make([]uint32, n)
	hostPass(data, scratch, 0)
	hostPass(scratch, data, 8)
	hostPass(data, scratch, 16)
	hostPass(scratch, data, 24)
}

// hostPass counting-sorts src into dst by the byte at shift.
func hostPass(src, dst []uint32, shift uint) {
	var counts [256]int
	for _, v := range src {
		counts[(v>>shift)&0xFF]++
	}

	total := 0
	for i := range counts {
		c := counts[i]
		counts[i] = total
		total += c
	}

	for _, v := range src {
		b := (v >> shift) & 0xFF
		dst[counts[b]] = v
		counts[b]++
	}
}

func insertionSort(data []uint32) {
	for i := 1; i < len(data); i++ {
		key := data[i]
		j := i - 1
		for j >= 0 && data[j] > key {
			data[j+1] = data[j]
			j--
		}
		data[j+1] = key
	}
}
