package main

import (
	"fmt"
	"slices"
	"testing"

	"github.com/ChristianF88/radixcl/compute"
	"github.com/ChristianF88/radixcl/keys"
	"github.com/ChristianF88/radixcl/radixsort"
)

// BenchmarkEndToEndSort compares the device pipeline with the host sorts
func BenchmarkEndToEndSort(b *testing.B) {
	// 1K stays in one block, 64K fits one tile, 1M needs several tiles.
	sizes := []int{1000, 1 << 16, 1 << 20}

	for _, size := range sizes {
		input := keys.Random(size, 1)

		b.Run(fmt.Sprintf("Device_%d_Keys", size), func(b *testing.B) {
			ctx, err := compute.Open(compute.CPUName, 0)
			if err != nil {
				b.Fatal(err)
			}
			defer ctx.Release()
			sorter, err := radixsort.NewSorter(ctx, radixsort.DefaultParams())
			if err != nil {
				b.Fatal(err)
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := sorter.Sort(input); err != nil {
					b.Fatal(err)
				}
			}
		})

		b.Run(fmt.Sprintf("HostRadix_%d_Keys", size), func(b *testing.B) {
			data := make([]uint32, size)
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				copy(data, input)
				keys.SortHost(data)
			}
		})

		b.Run(fmt.Sprintf("SlicesSort_%d_Keys", size), func(b *testing.B) {
			data := make([]uint32, size)
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				copy(data, input)
				slices.Sort(data)
			}
		})
	}
}

// BenchmarkDigitWidth shows how the pass count trades against local memory
func BenchmarkDigitWidth(b *testing.B) {
	input := keys.Random(1<<18, 1)

	for _, bits := range []int{2, 4, 8} {
		b.Run(fmt.Sprintf("DigitBits_%d", bits), func(b *testing.B) {
			ctx, err := compute.Open(compute.CPUName, 0)
			if err != nil {
				b.Fatal(err)
			}
			defer ctx.Release()
			params := radixsort.Params{DigitBits: bits}
			params.Normalize()
			sorter, err := radixsort.NewSorter(ctx, params)
			if err != nil {
				b.Fatal(err)
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := sorter.Sort(input); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkTransition compares swapping buffers with copying back
func BenchmarkTransition(b *testing.B) {
	input := keys.Random(1<<18, 1)

	for _, tr := range []radixsort.Transition{radixsort.Swap, radixsort.CopyBack} {
		b.Run(tr.String(), func(b *testing.B) {
			ctx, err := compute.Open(compute.CPUName, 0)
			if err != nil {
				b.Fatal(err)
			}
			defer ctx.Release()
			params := radixsort.DefaultParams()
			params.Transition = tr
			sorter, err := radixsort.NewSorter(ctx, params)
			if err != nil {
				b.Fatal(err)
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := sorter.Sort(input); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
