package testbench

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// BenchmarkResult holds results for one test run.
type BenchmarkResult struct {
	Implementation string  `json:"implementation"`
	NumProducers   int     `json:"num_producers"`
	Pushed         int64   `json:"pushed"`
	Rejected       int64   `json:"rejected"`
	Dropped        uint64  `json:"dropped"`
	Executed       uint64  `json:"executed"`
	TestDuration   string  `json:"test_duration"`  // e.g. "5s"
	ActualElapsed  string  `json:"actual_elapsed"` // measured time
	NsPerCommand   float64 `json:"ns_per_command"`
	Throughput     float64 `json:"throughput_cmds_sec"` // based on executed count
	Timestamp      int64   `json:"timestamp"`
	GoVersion      string  `json:"go_version"`
}

// SystemInfo holds system information.
type SystemInfo struct {
	NumCPU            int     `json:"num_cpu"`
	TrueCPU           int     `json:"true_cpu,omitempty"`
	SimulatedCPUCount int     `json:"simulated_cpu_count,omitempty"`
	CPUModel          string  `json:"cpu_model,omitempty"`
	CPUSpeedMHz       float64 `json:"cpu_speed_mhz,omitempty"`
	GOARCH            string  `json:"go_arch"`
	TotalMemory       uint64  `json:"total_memory_bytes,omitempty"`
}

// FullReport represents a complete test session.
type FullReport struct {
	SessionTime string            `json:"session_time"`
	SystemInfo  SystemInfo        `json:"system_info"`
	Benchmarks  []BenchmarkResult `json:"benchmarks"`
}

// CPUs is the GOMAXPROCS value the session ran with.
func (r FullReport) CPUs() int {
	if r.SystemInfo.SimulatedCPUCount != 0 {
		return r.SystemInfo.SimulatedCPUCount
	}
	return r.SystemInfo.NumCPU
}

// GatherSystemInfo collects basic CPU and memory details. Fields gopsutil
// cannot read on this platform stay empty.
func GatherSystemInfo() SystemInfo {
	info := SystemInfo{
		NumCPU: runtime.NumCPU(),
		GOARCH: runtime.GOARCH,
	}
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		info.CPUModel = infos[0].ModelName
		info.CPUSpeedMHz = infos[0].Mhz
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info.TotalMemory = vm.Total
	}
	return info
}

// LoadReports reads the sessions stored in a results file.
func LoadReports(filename string) ([]FullReport, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var sessions []FullReport
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", filename, err)
	}
	return sessions, nil
}

// AppendReports adds sessions to a results file, creating it if needed.
func AppendReports(filename string, sessions []FullReport) error {
	previous, err := LoadReports(filename)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	data, err := json.MarshalIndent(append(previous, sessions...), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}
