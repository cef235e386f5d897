package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/i5heu/GoCommandQueue/internal/testbench"
	"github.com/i5heu/GoCommandQueue/pkg/config"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/schollz/progressbar/v3"
)

// outputMarkdownTable prints the last session of a results file as a
// Markdown table.
func outputMarkdownTable(w io.Writer, jsonFile string, impls []Implementation) error {
	sessions, err := testbench.LoadReports(jsonFile)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		return fmt.Errorf("no sessions found in %s", jsonFile)
	}
	lastSession := sessions[len(sessions)-1]

	implMeta := make(map[string]Implementation)
	for _, impl := range impls {
		implMeta[impl.name] = impl
	}

	// best run per implementation
	type tableRow struct {
		implementation string
		pkgName        string
		features       string
		nsPerCommand   float64
		throughput     float64
	}
	best := make(map[string]tableRow)
	for _, bench := range lastSession.Benchmarks {
		if r, ok := best[bench.Implementation]; ok && r.throughput >= bench.Throughput {
			continue
		}
		meta := implMeta[bench.Implementation]
		best[bench.Implementation] = tableRow{
			implementation: bench.Implementation,
			pkgName:        meta.pkgName,
			features:       strings.Join(meta.features, ", "),
			nsPerCommand:   bench.NsPerCommand,
			throughput:     bench.Throughput,
		}
	}
	rows := make([]tableRow, 0, len(best))
	for _, r := range best {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].throughput > rows[j].throughput
	})

	fmt.Fprintln(w, "## Last Session Benchmark Summary")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "| Implementation           | Package   | Features                                 | ns/command | Throughput (cmds/sec) |")
	fmt.Fprintln(w, "|--------------------------|-----------|------------------------------------------|------------|-----------------------|")
	for _, r := range rows {
		fmt.Fprintf(w, "| %-24s | %-9s | %-40s | %10.1f | %21.0f |\n",
			r.implementation, r.pkgName, r.features, r.nsPerCommand, r.throughput)
	}
	return nil
}

// parseLevel accepts the short level names logiface prints, e.g. "info".
func parseLevel(s string) (logiface.Level, error) {
	for l := logiface.LevelDisabled; l <= logiface.LevelTrace; l++ {
		if l.String() == s {
			return l, nil
		}
	}
	return logiface.LevelDisabled, fmt.Errorf("unknown log level %q", s)
}

func newLogger(w io.Writer, level logiface.Level) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
	).Logger()
}

// cpuSettings lists the GOMAXPROCS values to test.
func cpuSettings(cpuMax, trueCPUCount int) []int {
	if cpuMax > 0 {
		return []int{min(cpuMax, trueCPUCount)}
	}
	commonCPUs := []int{1, 2, 3, 4, 6, 8, 12, 16, 32, 48, 56, 64, 96, 128, 192, 256, 384, 512}
	var out []int
	for _, v := range commonCPUs {
		if v <= trueCPUCount {
			out = append(out, v)
		}
	}
	return out
}

func main() {
	testIterations := flag.Int("iter", 5, "Number of test iterations per concurrency setting")
	cpuMaxFlag := flag.Int("cpu", 0, "If non-zero, test only that GOMAXPROCS value; if 0, test common CPU/vCPU values up to runtime.NumCPU()")
	testDuration := flag.Duration("duration", 5*time.Second, "Duration of each test run")
	jsonExport := flag.Bool("json", false, "Append results as JSON to -jsonfile")
	highConcurrency := flag.Bool("high-concurrency", false, "Include high concurrency configurations")
	markdownTable := flag.Bool("markdown-table", false, "Output markdown table from -jsonfile and exit")
	jsonFile := flag.String("jsonfile", "test-results.json", "Path to the JSON results file")
	progressFlag := flag.Bool("progress", false, "Display a progress bar with ETA")
	variantsFile := flag.String("variants", "", "YAML file listing deferred queue configurations to test instead of the defaults")
	logLevel := flag.String("log-level", "warning", "Log level for queue events: disabled, err, warning, info, debug, ...")
	flag.Parse()

	level, err := parseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := newLogger(os.Stderr, level)

	variants := defaultVariants()
	if *variantsFile != "" {
		if variants, err = config.Load(*variantsFile); err != nil {
			logger.Err().Err(err).Str("file", *variantsFile).Log("loading variants failed")
			os.Exit(1)
		}
		for i := range variants {
			if variants[i].Name == "" {
				variants[i].Name = fmt.Sprintf("Deferred Variant %d", i+1)
			}
		}
	}
	impls := getImplementations(variants, logger)

	if *markdownTable {
		if err := outputMarkdownTable(os.Stdout, *jsonFile, impls); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		return
	}

	trueCPUCount := runtime.NumCPU()
	cpus := cpuSettings(*cpuMaxFlag, trueCPUCount)

	concurrencyConfigs := []testbench.Config{
		{NumProducers: 1},
		{NumProducers: 4},
		{NumProducers: 16},
	}
	if *highConcurrency {
		concurrencyConfigs = append(concurrencyConfigs,
			testbench.Config{NumProducers: 64},
			testbench.Config{NumProducers: 256},
		)
	}

	totalTests := len(cpus) * len(concurrencyConfigs) * (*testIterations) * len(impls)
	var bar *progressbar.ProgressBar
	if *progressFlag {
		bar = progressbar.NewOptions(totalTests,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("benchmarking"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionClearOnFinish(),
		)
	}

	var allSessions []testbench.FullReport
	failed := false

	for _, n := range cpus {
		runtime.GOMAXPROCS(n)
		sysInfo := testbench.GatherSystemInfo()
		sysInfo.NumCPU = n
		sysInfo.TrueCPU = trueCPUCount
		sysInfo.SimulatedCPUCount = n

		fmt.Printf("\n=============================\n")
		fmt.Printf("GOMAXPROCS = %d\n", n)
		fmt.Printf("=============================\n")

		var results []testbench.BenchmarkResult
		for _, cfg := range concurrencyConfigs {
			fmt.Printf("  [Concurrency: producers=%d, consumers=1]\n", cfg.NumProducers)
			for iteration := 1; iteration <= *testIterations; iteration++ {
				fmt.Printf("    iteration %d/%d\n", iteration, *testIterations)
				for _, impl := range impls {
					runtime.GC()
					q, err := impl.newQueue()
					if err != nil {
						logger.Err().Err(err).Str("implementation", impl.name).Log("creating queue failed")
						os.Exit(1)
					}
					time.Sleep(250 * time.Millisecond)

					res, err := testbench.RunTimedTest(q, cfg, *testDuration)
					if err != nil {
						failed = true
						logger.Err().Err(err).
							Str("implementation", impl.name).
							Int("producers", cfg.NumProducers).
							Log("verification failed")
					}

					fmt.Printf("    %s => pushed=%d, rejected=%d, dropped=%d, executed=%d, %.1f ns/cmd, took=%v\n",
						impl.name, res.Pushed, res.Rejected, res.Dropped, res.Executed, res.NsPerCommand(), res.Elapsed)
					if bar != nil {
						_ = bar.Add(1)
					}

					results = append(results, testbench.BenchmarkResult{
						Implementation: impl.name,
						NumProducers:   cfg.NumProducers,
						Pushed:         res.Pushed,
						Rejected:       res.Rejected,
						Dropped:        res.Dropped,
						Executed:       res.Executed,
						TestDuration:   testDuration.String(),
						ActualElapsed:  res.Elapsed.String(),
						NsPerCommand:   res.NsPerCommand(),
						Throughput:     res.Throughput(),
						Timestamp:      time.Now().Unix(),
						GoVersion:      runtime.Version(),
					})
				}
			}
		}

		allSessions = append(allSessions, testbench.FullReport{
			SessionTime: time.Now().Format(time.RFC3339),
			SystemInfo:  sysInfo,
			Benchmarks:  results,
		})
	}

	if bar != nil {
		_ = bar.Finish()
	}

	if *jsonExport {
		if err := testbench.AppendReports(*jsonFile, allSessions); err != nil {
			logger.Err().Err(err).Str("file", *jsonFile).Log("writing results failed")
			os.Exit(1)
		}
		fmt.Printf("\nWrote results to %s\n", *jsonFile)
	}
	if failed {
		os.Exit(1)
	}
}
