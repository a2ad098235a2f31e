package radixsort

import (
	"sync/atomic"

	"github.com/ChristianF88/radixcl/compute"
)

const (
	kernelHistogram   = "computeHistogram"
	kernelBlockScan   = "blockScan"
	kernelPrefixSum   = "blockPrefixSum"
	kernelBlockAdd    = "blockAdd"
	kernelUnifiedScan = "unifiedBlockScan"
	kernelMerge       = "mergePrefixSums"
	kernelPermute     = "rankAndPermute"
)

// Library is the radix sort kernel program.
func Library() compute.Source {
	return compute.Source{
		Name: "radixsort",
		Host: map[string]compute.KernelFunc{
			kernelHistogram:   histogramKernel,
			kernelBlockScan:   blockScanKernel,
			kernelPrefixSum:   blockPrefixSumKernel,
			kernelBlockAdd:    blockAddKernel,
			kernelUnifiedScan: unifiedBlockScanKernel,
			kernelMerge:       mergePrefixSumsKernel,
			kernelPermute:     permuteKernel,
		},
	}
}

// histogramKernel counts the digits of one block.
//
//	0 keys, 1 hist, 2 n, 3 blockSize, 4 shift, 5 radix, 6 descending, 7 local[radix]
func histogramKernel(g *compute.WorkGroup) error {
	keys, hist := g.Buffer(0), g.Buffer(1)
	n, blockSize := int(g.Uint(2)), int(g.Uint(3))
	shift, radix := uint(g.Uint(4)), int(g.Uint(5))
	desc := g.Uint(6) != 0
	bins := g.Local(7)

	mask := uint32(radix - 1)
	block := g.GroupID(0)
	items := g.LocalSize(0)
	start := block * blockSize
	end := min(start+blockSize, n)

	g.ForEachItem(func(i int) {
		for b := i; b < radix; b += items {
			bins[b] = 0
		}
	})
	g.ForEachItem(func(i int) {
		for j := start + i; j < end; j += items {
			atomic.AddUint32(&bins[digit(keys[j], shift, mask, desc)], 1)
		}
	})
	g.ForEachItem(func(i int) {
		for b := i; b < radix; b += items {
			hist[block*radix+b] = bins[b]
		}
	})
	return nil
}

// scanLocal turns a[:n] into its inclusive prefix sum, alternating between a
// and b on every step. It returns the slice holding the result.
func scanLocal(g *compute.WorkGroup, a, b []uint32, n int) []uint32 {
	for off := 1; off < n; off <<= 1 {
		src, dst := a, b
		g.ForEachItem(func(i int) {
			if i >= off {
				dst[i] = src[i] + src[i-off]
			} else {
				dst[i] = src[i]
			}
		})
		a, b = b, a
	}
	return a
}

// blockScanKernel scans one digit column across a tile of blocks.
// Group (tile, digit) writes exclusive offsets within the tile and the tile total.
//
//	0 hist, 1 scanned, 2 sums, 3 numBlocks, 4 radix, 5 local[2*tile]
func blockScanKernel(g *compute.WorkGroup) error {
	hist, scanned, sums := g.Buffer(0), g.Buffer(1), g.Buffer(2)
	numBlocks, radix := int(g.Uint(3)), int(g.Uint(4))
	scratch := g.Local(5)

	tileSize := g.LocalSize(0)
	tile, d := g.GroupID(0), g.GroupID(1)
	a, b := scratch[:tileSize], scratch[tileSize:2*tileSize]

	g.ForEachItem(func(i int) {
		blk := g.GlobalID(0, i)
		if blk < numBlocks {
			a[i] = hist[blk*radix+d]
		} else {
			a[i] = 0
		}
	})
	incl := scanLocal(g, a, b, tileSize)
	g.ForEachItem(func(i int) {
		blk := g.GlobalID(0, i)
		if blk < numBlocks {
			scanned[blk*radix+d] = incl[i] - hist[blk*radix+d]
		}
		if i == tileSize-1 {
			sums[tile*radix+d] = incl[i]
		}
	})
	return nil
}

// blockPrefixSumKernel scans the tile totals of one digit in place and
// writes the digit's grand total to summary.
//
//	0 sums, 1 summary, 2 tiles, 3 radix
func blockPrefixSumKernel(g *compute.WorkGroup) error {
	sums, summary := g.Buffer(0), g.Buffer(1)
	tiles, radix := int(g.Uint(2)), int(g.Uint(3))

	g.ForEachItem(func(i int) {
		d := g.GlobalID(0, i)
		var running uint32
		for t := 0; t < tiles; t++ {
			v := sums[t*radix+d]
			sums[t*radix+d] = running
			running += v
		}
		summary[d] = running
	})
	return nil
}

// blockAddKernel adds the carry of the preceding tiles to one block.
//
//	0 sums, 1 scanned, 2 tileSize, 3 radix
func blockAddKernel(g *compute.WorkGroup) error {
	sums, scanned := g.Buffer(0), g.Buffer(1)
	tileSize, radix := int(g.Uint(2)), int(g.Uint(3))

	blk := g.GroupID(0)
	carry := sums[(blk/tileSize)*radix:]
	g.ForEachItem(func(i int) {
		d := g.GlobalID(1, i)
		scanned[blk*radix+d] += carry[d]
	})
	return nil
}

// unifiedBlockScanKernel is an exclusive scan of radix values in a single
// work-group.
//
//	0 in, 1 out, 2 local[2*radix]
func unifiedBlockScanKernel(g *compute.WorkGroup) error {
	in, out := g.Buffer(0), g.Buffer(1)
	scratch := g.Local(2)

	n := g.Items()
	a, b := scratch[:n], scratch[n:2*n]
	g.ForEachItem(func(i int) {
		a[i] = in[i]
	})
	incl := scanLocal(g, a, b, n)
	g.ForEachItem(func(i int) {
		out[i] = incl[i] - in[i]
	})
	return nil
}

// mergePrefixSumsKernel adds the digit base offsets to one block.
//
//	0 digitBase, 1 scanned, 2 radix
func mergePrefixSumsKernel(g *compute.WorkGroup) error {
	base, scanned := g.Buffer(0), g.Buffer(1)
	radix := int(g.Uint(2))

	blk := g.GroupID(0)
	g.ForEachItem(func(i int) {
		d := g.GlobalID(1, i)
		scanned[blk*radix+d] += base[d]
	})
	return nil
}

// permuteKernel ranks the keys of one block and scatters them. Work item i
// owns a contiguous chunk of the block, so walking items in order and each
// chunk front to back preserves input order among equal digits.
//
//	0 src, 1 scanned, 2 dst, 3 n, 4 blockSize, 5 shift, 6 radix, 7 descending, 8 local[items*radix]
func permuteKernel(g *compute.WorkGroup) error {
	src, scanned, dst := g.Buffer(0), g.Buffer(1), g.Buffer(2)
	n, blockSize := int(g.Uint(3)), int(g.Uint(4))
	shift, radix := uint(g.Uint(5)), int(g.Uint(6))
	desc := g.Uint(7) != 0
	ranks := g.Local(8)

	mask := uint32(radix - 1)
	block := g.GroupID(0)
	items := g.LocalSize(0)
	start := block * blockSize
	end := min(start+blockSize, n)
	chunk := (blockSize + items - 1) / items

	span := func(i int) (int, int) {
		lo := min(start+i*chunk, end)
		return lo, min(lo+chunk, end)
	}

	g.ForEachItem(func(i int) {
		row := ranks[i*radix : (i+1)*radix]
		clear(row)
		lo, hi := span(i)
		for j := lo; j < hi; j++ {
			row[digit(src[j], shift, mask, desc)]++
		}
	})
	g.ForEachItem(func(i int) {
		for d := i; d < radix; d += items {
			running := scanned[block*radix+d]
			for it := 0; it < items; it++ {
				c := ranks[it*radix+d]
				ranks[it*radix+d] = running
				running += c
			}
		}
	})
	g.ForEachItem(func(i int) {
		row := ranks[i*radix : (i+1)*radix]
		lo, hi := span(i)
		for j := lo; j < hi; j++ {
			key := src[j]
			d := digit(key, shift, mask, desc)
			dst[row[d]] = key
			row[d]++
		}
	})
	return nil
}
