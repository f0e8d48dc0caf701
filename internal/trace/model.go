// Package trace models serverless function traces read from tables.
package trace

import (
	"fmt"
	"math"
)

// Bounds applied by Function.ExpectedConcurrency.
const (
	MinConcurrency = 1
	MaxConcurrency = 50
)

// ConcurrencyStats summarizes observed concurrency for one function.
type ConcurrencyStats struct {
	Average float64 `json:"average"`
	Count   float64 `json:"count"`
	Median  float64 `json:"median"`
	Minimum float64 `json:"minimum"`
	Maximum float64 `json:"maximum"`
}

// InvocationStats summarizes per-minute invocation counts.
// Count is the number of minutes sampled.
type InvocationStats struct {
	Average int `json:"average"`
	Count   int `json:"count"`
	Median  int `json:"median"`
	Minimum int `json:"minimum"`
	Maximum int `json:"maximum"`
}

// RuntimeStats holds execution time figures in milliseconds.
type RuntimeStats struct {
	Average       int `json:"average"`
	Count         int `json:"count"`
	Minimum       int `json:"minimum"`
	Maximum       int `json:"maximum"`
	Percentile0   int `json:"percentile_0"`
	Percentile1   int `json:"percentile_1"`
	Percentile25  int `json:"percentile_25"`
	Percentile50  int `json:"percentile_50"`
	Percentile75  int `json:"percentile_75"`
	Percentile99  int `json:"percentile_99"`
	Percentile100 int `json:"percentile_100"`
}

// MemoryStats holds allocated memory figures in megabytes.
type MemoryStats struct {
	Average       int `json:"average"`
	Count         int `json:"count"`
	Percentile1   int `json:"percentile_1"`
	Percentile5   int `json:"percentile_5"`
	Percentile25  int `json:"percentile_25"`
	Percentile50  int `json:"percentile_50"`
	Percentile75  int `json:"percentile_75"`
	Percentile95  int `json:"percentile_95"`
	Percentile99  int `json:"percentile_99"`
	Percentile100 int `json:"percentile_100"`
}

// Function is one traced function and its workload statistics.
type Function struct {
	Name         string `json:"name"`
	URL          string `json:"url,omitempty"`
	OwnerHash    string `json:"owner_hash,omitempty"`
	AppHash      string `json:"app_hash"`
	FunctionHash string `json:"function_hash"`
	Hash         string `json:"hash"`
	Deployed     bool   `json:"deployed"`

	ConcurrencyStats ConcurrencyStats `json:"concurrency"`
	InvocationStats  InvocationStats  `json:"invocations"`
	RuntimeStats     RuntimeStats     `json:"runtime"`
	MemoryStats      MemoryStats      `json:"memory"`
}

// SetHash stores h as a zero-padded 15 digit identifier.
func (f *Function) SetHash(h int) {
	f.Hash = fmt.Sprintf("%015d", h)
}

// ExpectedConcurrency estimates how many instances the function needs:
// median requests per second times the slowest runtime in seconds,
// rounded up and clamped to [MinConcurrency, MaxConcurrency].
//
// Requests per second use integer division of the per-minute median.
func (f *Function) ExpectedConcurrency() int {
	rps := f.InvocationStats.Median / 60
	finish := float64(f.RuntimeStats.Percentile100) / 1000

	c := int(math.Ceil(float64(rps) * finish))
	return max(MinConcurrency, min(MaxConcurrency, c))
}

// FunctionTraces is a complete trace: the functions plus their
// per-minute invocation matrix.
type FunctionTraces struct {
	Path                      string     `json:"path"`
	Functions                 []Function `json:"functions"`
	WarmupScales              []int      `json:"warmup_scales,omitempty"`
	InvocationsEachMinute     [][]int    `json:"invocations_each_minute"`
	TotalInvocationsPerMinute []int      `json:"total_invocations_per_minute"`
}

// Minutes reports the trace length.
func (ft *FunctionTraces) Minutes() int {
	return len(ft.TotalInvocationsPerMinute)
}
