package main

import (
	"flag"
	"fmt"
	"image/color"
	"math"
	"os"
	"slices"
	"sort"
	"strconv"

	"github.com/i5heu/GoCommandQueue/internal/testbench"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// producerStats summarizes the ns/command samples of one producer count:
// the average of the fastest 5%, the median and the average of the slowest 5%.
type producerStats struct {
	x         float64 // plot position
	producers int
	low       float64
	median    float64
	high      float64
}

// statsPoints implements XYer and YErrorer, so one series draws as a line
// with error bars.
type statsPoints []producerStats

func (s statsPoints) Len() int                { return len(s) }
func (s statsPoints) XY(i int) (x, y float64) { return s[i].x, s[i].median }
func (s statsPoints) YError(i int) (low, high float64) {
	return s[i].median - s[i].low, s[i].high - s[i].median
}

// categoryTicks labels the categorical X axis with producer counts.
type categoryTicks []int

func (ct categoryTicks) Ticks(min, max float64) []plot.Tick {
	var ticks []plot.Tick
	for i, producers := range ct {
		if pos := float64(i); pos >= min && pos <= max {
			ticks = append(ticks, plot.Tick{Value: pos, Label: strconv.Itoa(producers)})
		}
	}
	return ticks
}

// nsTicks spreads labelled ticks evenly over a log axis.
type nsTicks struct {
	n int
}

func (t nsTicks) Ticks(min, max float64) []plot.Tick {
	if min <= 0 {
		min = 1e-9
	}
	start, end := math.Log10(min), math.Log10(max)
	step := (end - start) / float64(t.n)
	ticks := make([]plot.Tick, 0, t.n+1)
	for i := 0; i <= t.n; i++ {
		y := math.Pow(10, start+float64(i)*step)
		ticks = append(ticks, plot.Tick{Value: y, Label: formatNs(y)})
	}
	return ticks
}

// samples groups ns/command values by CPU count, implementation and producer
// count.
type samples map[int]map[string]map[int][]float64

func collect(sessions []testbench.FullReport) samples {
	out := make(samples)
	for _, session := range sessions {
		cpus := session.CPUs()
		if out[cpus] == nil {
			out[cpus] = make(map[string]map[int][]float64)
		}
		for _, b := range session.Benchmarks {
			if b.Executed == 0 || b.NsPerCommand <= 0 {
				continue
			}
			impls := out[cpus]
			if impls[b.Implementation] == nil {
				impls[b.Implementation] = make(map[int][]float64)
			}
			impls[b.Implementation][b.NumProducers] = append(impls[b.Implementation][b.NumProducers], b.NsPerCommand)
		}
	}
	return out
}

func newPlot(cpus int) *plot.Plot {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("ns/command (5%%-avg-min / median / 5%%-avg-max) vs. producers, %d CPU(s)", cpus)
	p.X.Label.Text = "Producers (one consumer)"
	p.Y.Label.Text = "Time per command [log scale]"
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = nsTicks{n: 20}

	// Dark theme.
	p.BackgroundColor = color.RGBA{R: 30, G: 30, B: 30, A: 255}
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	p.Title.TextStyle.Color = white
	p.X.Label.TextStyle.Color = white
	p.Y.Label.TextStyle.Color = white
	p.X.Color = white
	p.Y.Color = white
	p.X.Tick.Label.Color = white
	p.Y.Tick.Label.Color = white
	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.TextStyle.Color = white

	p.Add(plotter.NewGrid())
	return p
}

// render draws one chart for a CPU count.
func render(cpus int, impls map[string]map[int][]float64) (*plot.Plot, error) {
	p := newPlot(cpus)

	var producerCounts []int
	for _, byProducers := range impls {
		for n := range byProducers {
			if !slices.Contains(producerCounts, n) {
				producerCounts = append(producerCounts, n)
			}
		}
	}
	sort.Ints(producerCounts)
	p.X.Tick.Marker = categoryTicks(producerCounts)

	names := make([]string, 0, len(impls))
	for name := range impls {
		names = append(names, name)
	}
	sort.Strings(names)

	colors := plotutil.SoftColors
	shapes := []draw.GlyphDrawer{
		draw.CircleGlyph{},
		draw.SquareGlyph{},
		draw.TriangleGlyph{},
		draw.CrossGlyph{},
		draw.PlusGlyph{},
	}

	// Offset each implementation slightly so error bars do not overlap.
	const spread = 0.4
	step := spread / float64(len(names))
	first := -spread/2 + step/2

	for i, name := range names {
		stats := buildStats(impls[name])
		for j := range stats {
			stats[j].x = float64(slices.Index(producerCounts, stats[j].producers)) + first + float64(i)*step
		}
		sp := statsPoints(stats)
		c := colors[i%len(colors)]

		line, err := plotter.NewLine(sp)
		if err != nil {
			return nil, fmt.Errorf("%s: line: %w", name, err)
		}
		line.Color = c

		points, err := plotter.NewScatter(sp)
		if err != nil {
			return nil, fmt.Errorf("%s: scatter: %w", name, err)
		}
		points.GlyphStyle.Radius = vg.Points(5)
		points.Color = c
		points.Shape = shapes[i%len(shapes)]

		bars, err := plotter.NewYErrorBars(sp)
		if err != nil {
			return nil, fmt.Errorf("%s: error bars: %w", name, err)
		}
		bars.Color = c

		p.Add(line, points, bars)
		p.Legend.Add(name, line, points)
	}
	return p, nil
}

func main() {
	jsonFile := flag.String("jsonfile", "test-results.json", "Path to JSON file containing test sessions")
	outputPrefix := flag.String("out", "benchmark_graph", "Output graph image filename prefix")
	flag.Parse()

	sessions, err := testbench.LoadReports(*jsonFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading results: %v\n", err)
		os.Exit(1)
	}

	for cpus, impls := range collect(sessions) {
		p, err := render(cpus, impls)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error plotting %d CPU(s): %v\n", cpus, err)
			continue
		}
		filename := fmt.Sprintf("%s_%d.png", *outputPrefix, cpus)
		if err := p.Save(12*vg.Inch, 9*vg.Inch, filename); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving plot for %d CPU(s): %v\n", cpus, err)
			continue
		}
		fmt.Printf("Graph for %d CPU(s) saved to %s\n", cpus, filename)
	}
}

// buildStats summarizes samples per producer count, ordered by producer count.
func buildStats(byProducers map[int][]float64) []producerStats {
	out := make([]producerStats, 0, len(byProducers))
	for n, vals := range byProducers {
		if len(vals) == 0 {
			continue
		}
		sort.Float64s(vals)
		out = append(out, producerStats{
			producers: n,
			low:       averageOfRange(vals, 0.0, 0.05),
			median:    median(vals),
			high:      averageOfRange(vals, 0.95, 1.0),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].producers < out[j].producers })
	return out
}

// averageOfRange returns the average of sortedVals in [startFrac, endFrac] of
// its length, falling back to the median when that range is empty.
func averageOfRange(sortedVals []float64, startFrac, endFrac float64) float64 {
	n := len(sortedVals)
	if n == 0 {
		return 0
	}
	lo := max(int(float64(n)*startFrac), 0)
	hi := min(int(float64(n)*endFrac), n)
	if lo >= hi {
		return median(sortedVals)
	}
	sum := 0.0
	for _, v := range sortedVals[lo:hi] {
		sum += v
	}
	return sum / float64(hi-lo)
}

func median(sorted []float64) float64 {
	n := len(sorted)
	mid := n / 2
	if n%2 == 1 {
		return sorted[mid]
	}
	return 0.5 * (sorted[mid-1] + sorted[mid])
}

// formatNs formats a nanoseconds value in ns, µs, ms, or s.
func formatNs(ns float64) string {
	switch {
	case ns < 1e3:
		return fmt.Sprintf("%.0fns", ns)
	case ns < 1e6:
		return fmt.Sprintf("%.1fµs", ns/1e3)
	case ns < 1e9:
		return fmt.Sprintf("%.1fms", ns/1e6)
	default:
		return fmt.Sprintf("%.2fs", ns/1e9)
	}
}
