package output

import (
	"errors"
	"fmt"
	"os"

	"github.com/ChristianF88/radixcl/radixsort"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

var ErrNoHistograms = errors.New("no captured histograms to plot")

// PlotHistogram renders one block x digit heatmap per captured pass and a
// bar chart of the per-digit totals of the first pass into an HTML page.
func PlotHistogram(res *radixsort.Result, radix int, filename string) error {
	var captured []radixsort.PassStats
	for _, ps := range res.Passes {
		if len(ps.Counts) == res.NumBlocks*radix && len(ps.Counts) > 0 {
			captured = append(captured, ps)
		}
	}
	if len(captured) == 0 {
		return ErrNoHistograms
	}

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.PageTitle = "Radix Sort Histograms"

	for _, ps := range captured {
		page.AddCharts(passHeatmap(ps, res.NumBlocks, radix))
	}
	page.AddCharts(digitTotals(captured[0], res.NumBlocks, radix))

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("could not create plot file %s: %w", filename, err)
	}
	defer f.Close()

	if err := page.Render(f); err != nil {
		return fmt.Errorf("rendering histogram plot: %w", err)
	}
	return nil
}

// DigitTotals sums a block-major histogram over blocks.
func DigitTotals(counts []uint32, numBlocks, radix int) []uint64 {
	totals := make([]uint64, radix)
	for b := 0; b < numBlocks; b++ {
		for d := 0; d < radix; d++ {
			totals[d] += uint64(counts[b*radix+d])
		}
	}
	return totals
}

func passHeatmap(ps radixsort.PassStats, numBlocks, radix int) *charts.HeatMap {
	var data []opts.HeatMapData
	var maxCount uint32
	for b := 0; b < numBlocks; b++ {
		for d := 0; d < radix; d++ {
			count := ps.Counts[b*radix+d]
			if count > maxCount {
				maxCount = count
			}
			if count > 0 {
				data = append(data, opts.HeatMapData{
					Value: [3]interface{}{d, b, count},
					Name:  fmt.Sprintf("block %d digit %d", b, d),
				})
			}
		}
	}

	heatmap := charts.NewHeatMap()
	heatmap.SetGlobalOptions(
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(false),
		}),
		charts.WithInitializationOpts(opts.Initialization{
			Width:           "90vw",
			Height:          "60vh",
			Theme:           types.ThemeVintage,
			BackgroundColor: "transparent",
		}),
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("Pass %d (shift %d): keys per block and digit", ps.Pass, ps.Shift),
			Left:  "center",
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Trigger: "item",
			Formatter: opts.FuncOpts(`function (params) {
		return params.name + '<br />Count: ' + params.value[2];
	}`),
		}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show: opts.Bool(true),
			Min:  0,
			Max:  float32(maxCount),
			InRange: &opts.VisualMapInRange{
				Color: []string{"#ffff8f", "#ff0000", "#000000"},
			},
			Orient: "vertical",
			Right:  "2%",
			Top:    "middle",
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: "Digit",
			Type: "category",
			Data: makeRange(0, radix-1),
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: "Block",
			Type: "category",
			Data: makeRange(0, numBlocks-1),
		}),
	)
	heatmap.AddSeries(fmt.Sprintf("pass %d", ps.Pass), data)
	return heatmap
}

func digitTotals(ps radixsort.PassStats, numBlocks, radix int) *charts.Bar {
	totals := DigitTotals(ps.Counts, numBlocks, radix)
	items := make([]opts.BarData, radix)
	for d, t := range totals {
		items[d] = opts.BarData{Value: t}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Width:           "90vw",
			Height:          "40vh",
			Theme:           types.ThemeVintage,
			BackgroundColor: "transparent",
		}),
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("Digit totals, pass %d", ps.Pass),
			Left:  "center",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
	)
	bar.SetXAxis(makeRange(0, radix-1)).AddSeries("keys", items)
	return bar
}

// makeRange creates an integer slice [min..max]
func makeRange(min, max int) []int {
	r := make([]int, max-min+1)
	for i := range r {
		r[i] = min + i
	}
	return r
}
