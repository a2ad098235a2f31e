package tui

import (
	"fmt"
	"strings"

	"github.com/ChristianF88/radixcl/output"
)

// maxDistributionRows bounds the number of bars; wider radices are bucketed.
const maxDistributionRows = 32

// Bucket is a contiguous digit range and the number of keys in it.
type Bucket struct {
	First, Last int
	Count       uint64
}

// BucketTotals folds per-digit totals into at most rows buckets.
func BucketTotals(totals []uint64, rows int) []Bucket {
	if len(totals) == 0 || rows <= 0 {
		return nil
	}
	width := (len(totals) + rows - 1) / rows
	buckets := make([]Bucket, 0, rows)
	for first := 0; first < len(totals); first += width {
		last := min(first+width, len(totals)) - 1
		b := Bucket{First: first, Last: last}
		for d := first; d <= last; d++ {
			b.Count += totals[d]
		}
		buckets = append(buckets, b)
	}
	return buckets
}

// renderDistribution draws one shaded bar per bucket, scaled to barWidth.
func renderDistribution(counts []uint32, numBlocks, radix, barWidth int) string {
	if len(counts) != numBlocks*radix || len(counts) == 0 {
		return "[dim]No histogram captured[white]"
	}
	buckets := BucketTotals(output.DigitTotals(counts, numBlocks, radix), maxDistributionRows)

	var total, peak uint64
	for _, b := range buckets {
		total += b.Count
		peak = max(peak, b.Count)
	}

	var content strings.Builder
	for _, b := range buckets {
		label := fmt.Sprintf("%3d", b.First)
		if b.Last != b.First {
			label = fmt.Sprintf("%3d-%-3d", b.First, b.Last)
		}
		length := 0
		if peak > 0 {
			length = int(b.Count * uint64(barWidth) / peak)
		}
		share := 0.0
		if total > 0 {
			share = float64(b.Count) / float64(total)
		}
		color := intensityColor(float64(b.Count) / float64(max(peak, 1)))
		fmt.Fprintf(&content, "%-8s [%s]%s[white] %d (%.1f%%)\n",
			label, color, strings.Repeat("█", length), b.Count, share*100)
	}
	return content.String()
}

// intensityColor maps a 0..1 intensity onto a ten step grey scale.
func intensityColor(intensity float64) string {
	switch {
	case intensity >= 0.9:
		return "white"
	case intensity >= 0.8:
		return "#E0E0E0"
	case intensity >= 0.7:
		return "#C0C0C0"
	case intensity >= 0.6:
		return "#A0A0A0"
	case intensity >= 0.5:
		return "#808080"
	case intensity >= 0.4:
		return "#606060"
	case intensity >= 0.3:
		return "#505050"
	case intensity >= 0.2:
		return "#404040"
	case intensity > 0:
		return "#303030"
	default:
		return "black"
	}
}
