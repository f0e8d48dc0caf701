package core

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"
)

// ============================================================================
// Cell Conversion Benchmarks
// ============================================================================

// BenchmarkInferKind benchmarks kind inference over a mixed numeric column.
// Runs once per column on every load.
func BenchmarkInferKind(b *testing.B) {
	cells := make([]string, 1000)
	for i := range cells {
		switch i % 4 {
		case 0:
			cells[i] = fmt.Sprintf("%d", i)
		case 1:
			cells[i] = fmt.Sprintf("%d.5", i)
		case 2:
			cells[i] = ""
		default:
			cells[i] = "1e-3"
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		InferKind(cells)
	}
}

// BenchmarkParseCell benchmarks the per-cell parse for each kind.
func BenchmarkParseCell(b *testing.B) {
	cases := []struct {
		raw  string
		kind Kind
	}{
		{"12345", KindInt},
		{"-0.125", KindFloat},
		{"True", KindBool},
		{"service-a", KindString},
		{"NaN", KindFloat},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, c := range cases {
			ParseCell(c.raw, c.kind)
		}
	}
}

// BenchmarkFormatValue benchmarks rendering values back to text.
func BenchmarkFormatValue(b *testing.B) {
	values := []any{int64(42), 3.0, 1e-7, true, "span", nil}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, v := range values {
			FormatValue(v)
		}
	}
}

// ============================================================================
// Load / Write Benchmarks
// ============================================================================

// BenchmarkRead benchmarks parsing a 1000 row table.
func BenchmarkRead(b *testing.B) {
	data := generateTestCSV(1000)
	b.SetBytes(int64(len(data)))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Read(bytes.NewReader(data)); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkRead_Large benchmarks parsing a 10000 row table.
func BenchmarkRead_Large(b *testing.B) {
	data := generateTestCSV(10000)
	b.SetBytes(int64(len(data)))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Read(bytes.NewReader(data)); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkWrite benchmarks rendering a 1000 row table.
func BenchmarkWrite(b *testing.B) {
	t, err := Read(bytes.NewReader(generateTestCSV(1000)))
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := Write(io.Discard, t); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkWrapSource_InvalidUTF8 benchmarks the sanitizer on input that
// needs replacement throughout.
func BenchmarkWrapSource_InvalidUTF8(b *testing.B) {
	data := bytes.Repeat([]byte("span,\xff\xfe,ok\n"), 10000)
	b.SetBytes(int64(len(data)))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		io.Copy(io.Discard, WrapSource(bytes.NewReader(data)))
	}
}

// BenchmarkRecords_Allocs reports allocations for rendering records.
func BenchmarkRecords_Allocs(b *testing.B) {
	t, err := Read(bytes.NewReader(generateTestCSV(100)))
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		t.Records()
	}
}

// generateTestCSV builds a trace-like table with int, float, bool and
// string columns and some missing cells.
func generateTestCSV(rows int) []byte {
	var sb strings.Builder
	sb.WriteString("span_id,duration_ms,error,service\n")
	for i := 0; i < rows; i++ {
		dur := fmt.Sprintf("%d.%d", i%500, i%10)
		if i%17 == 0 {
			dur = ""
		}
		fmt.Fprintf(&sb, "%d,%s,%t,svc-%d\n", i, dur, i%5 == 0, i%8)
	}
	return []byte(sb.String())
}
