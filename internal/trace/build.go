package trace

import (
	"fmt"
	"hash/fnv"
	"math"
	"slices"
	"strconv"

	"github.com/JonMunkholm/tracesynth/internal/core"
)

// ErrFormat reports a table that does not have the trace layout.
var ErrFormat = fmt.Errorf("%w: not a trace layout", core.ErrInvalidTable)

// Column names of the function invocation, duration and memory tables.
const (
	colOwner    = "HashOwner"
	colApp      = "HashApp"
	colFunction = "HashFunction"

	colSampleCount = "SampleCount"
	colAllocated   = "AverageAllocatedMb"
)

// hashSpace keeps identifiers within 15 decimal digits.
const hashSpace = 1_000_000_000_000_000

// Tables groups the inputs of Build. Durations and Memory are optional.
type Tables struct {
	Invocations *core.Table
	Durations   *core.Table
	Memory      *core.Table
}

// Load reads the trace tables from disk. Empty duration or memory paths
// are skipped.
func Load(invocations, durations, memory string) (Tables, error) {
	var ts Tables
	var err error
	if ts.Invocations, err = core.Load(invocations); err != nil {
		return Tables{}, err
	}
	if durations != "" {
		if ts.Durations, err = core.Load(durations); err != nil {
			return Tables{}, err
		}
	}
	if memory != "" {
		if ts.Memory, err = core.Load(memory); err != nil {
			return Tables{}, err
		}
	}
	return ts, nil
}

// Build turns invocation rows into functions, one per row, in row order.
//
// Minute columns are the invocation table columns whose names are
// positive integers. Duration rows join on HashFunction, memory rows on
// HashApp. Missing cells count as zero.
func Build(path string, ts Tables) (*FunctionTraces, error) {
	inv := ts.Invocations
	if inv == nil {
		return nil, fmt.Errorf("%w: no invocation table", ErrFormat)
	}
	if err := requireColumns(inv, colApp, colFunction); err != nil {
		return nil, fmt.Errorf("invocations: %w", err)
	}
	minutes := minuteColumns(inv)
	if len(minutes) == 0 {
		return nil, fmt.Errorf("%w: invocations: no minute columns", ErrFormat)
	}

	durations, err := indexRows(ts.Durations, colFunction)
	if err != nil {
		return nil, fmt.Errorf("durations: %w", err)
	}
	memory, err := indexRows(ts.Memory, colApp)
	if err != nil {
		return nil, fmt.Errorf("memory: %w", err)
	}

	ft := &FunctionTraces{
		Path:                      path,
		Functions:                 make([]Function, 0, inv.Len()),
		InvocationsEachMinute:     make([][]int, 0, inv.Len()),
		TotalInvocationsPerMinute: make([]int, len(minutes)),
	}
	for i, row := range inv.Rows() {
		fn := Function{
			OwnerHash:    text(row[colOwner]),
			AppHash:      text(row[colApp]),
			FunctionHash: text(row[colFunction]),
		}
		fn.SetHash(hashOf(fn.FunctionHash))
		fn.Name = fmt.Sprintf("trace-func-%d-%s", i, fn.Hash)

		counts := make([]int, len(minutes))
		for m, col := range minutes {
			n, err := number(row[col])
			if err != nil {
				return nil, fmt.Errorf("%w: invocations row %d column %s: %w", ErrFormat, i, col, err)
			}
			counts[m] = n
			ft.TotalInvocationsPerMinute[m] += n
		}
		fn.InvocationStats = invocationStats(counts)

		if d, ok := durations[fn.FunctionHash]; ok {
			if fn.RuntimeStats, err = runtimeStats(d); err != nil {
				return nil, fmt.Errorf("durations %s: %w", fn.FunctionHash, err)
			}
		}
		if m, ok := memory[fn.AppHash]; ok {
			if fn.MemoryStats, err = memoryStats(m); err != nil {
				return nil, fmt.Errorf("memory %s: %w", fn.AppHash, err)
			}
		}

		ft.Functions = append(ft.Functions, fn)
		ft.InvocationsEachMinute = append(ft.InvocationsEachMinute, counts)
		ft.WarmupScales = append(ft.WarmupScales, fn.ExpectedConcurrency())
	}
	return ft, nil
}

func requireColumns(t *core.Table, names ...string) error {
	for _, name := range names {
		if _, ok := t.Column(name); !ok {
			return fmt.Errorf("%w: missing column %s", ErrFormat, name)
		}
	}
	return nil
}

// minuteColumns returns integer-named columns ordered by minute.
func minuteColumns(t *core.Table) []string {
	type minute struct {
		name string
		n    int
	}
	var found []minute
	for _, name := range t.ColumnNames() {
		n, err := strconv.Atoi(name)
		if err != nil || n < 1 {
			continue
		}
		found = append(found, minute{name, n})
	}
	slices.SortStableFunc(found, func(a, b minute) int { return a.n - b.n })

	out := make([]string, len(found))
	for i, m := range found {
		out[i] = m.name
	}
	return out
}

// indexRows keys rows by the text of column key. The first row wins.
func indexRows(t *core.Table, key string) (map[string]core.Row, error) {
	if t == nil {
		return nil, nil
	}
	if err := requireColumns(t, key); err != nil {
		return nil, err
	}
	out := make(map[string]core.Row, t.Len())
	for _, row := range t.Rows() {
		k := text(row[key])
		if _, seen := out[k]; !seen {
			out[k] = row
		}
	}
	return out, nil
}

func runtimeStats(row core.Row) (RuntimeStats, error) {
	var rs RuntimeStats
	fields := []struct {
		col string
		dst *int
	}{
		{"Average", &rs.Average},
		{"Count", &rs.Count},
		{"Minimum", &rs.Minimum},
		{"Maximum", &rs.Maximum},
		{"percentile_Average_0", &rs.Percentile0},
		{"percentile_Average_1", &rs.Percentile1},
		{"percentile_Average_25", &rs.Percentile25},
		{"percentile_Average_50", &rs.Percentile50},
		{"percentile_Average_75", &rs.Percentile75},
		{"percentile_Average_99", &rs.Percentile99},
		{"percentile_Average_100", &rs.Percentile100},
	}
	for _, f := range fields {
		n, err := number(row[f.col])
		if err != nil {
			return RuntimeStats{}, fmt.Errorf("%w: column %s: %w", ErrFormat, f.col, err)
		}
		*f.dst = n
	}
	return rs, nil
}

func memoryStats(row core.Row) (MemoryStats, error) {
	var ms MemoryStats
	fields := []struct {
		col string
		dst *int
	}{
		{colAllocated, &ms.Average},
		{colSampleCount, &ms.Count},
		{colAllocated + "_pct1", &ms.Percentile1},
		{colAllocated + "_pct5", &ms.Percentile5},
		{colAllocated + "_pct25", &ms.Percentile25},
		{colAllocated + "_pct50", &ms.Percentile50},
		{colAllocated + "_pct75", &ms.Percentile75},
		{colAllocated + "_pct95", &ms.Percentile95},
		{colAllocated + "_pct99", &ms.Percentile99},
		{colAllocated + "_pct100", &ms.Percentile100},
	}
	for _, f := range fields {
		n, err := number(row[f.col])
		if err != nil {
			return MemoryStats{}, fmt.Errorf("%w: column %s: %w", ErrFormat, f.col, err)
		}
		*f.dst = n
	}
	return ms, nil
}

func invocationStats(counts []int) InvocationStats {
	if len(counts) == 0 {
		return InvocationStats{}
	}
	sorted := slices.Clone(counts)
	slices.Sort(sorted)

	sum := 0
	for _, c := range sorted {
		sum += c
	}
	mid := len(sorted) / 2
	median := sorted[mid]
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	}
	return InvocationStats{
		Average: sum / len(sorted),
		Count:   len(sorted),
		Median:  median,
		Minimum: sorted[0],
		Maximum: sorted[len(sorted)-1],
	}
}

// number converts a loaded cell to an int. Floats round to nearest.
func number(v any) (int, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return int(x), nil
	case float64:
		if math.IsNaN(x) {
			return 0, nil
		}
		if math.IsInf(x, 0) {
			return 0, fmt.Errorf("infinite value")
		}
		return int(math.Round(x)), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("non-numeric value %v", v)
	}
}

func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func hashOf(s string) int {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int(h.Sum64() % hashSpace)
}
