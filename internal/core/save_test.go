package core

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"
)

// recordingHandler collects log records and can fire a hook on each one.
type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
	onWarn  func(n int)
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	h.records = append(h.records, r.Clone())
	n := h.countLocked(slog.LevelWarn)
	hook := h.onWarn
	h.mu.Unlock()

	if hook != nil && r.Level == slog.LevelWarn {
		hook(n)
	}
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordingHandler) countLocked(level slog.Level) int {
	n := 0
	for _, r := range h.records {
		if r.Level == level {
			n++
		}
	}
	return n
}

func (h *recordingHandler) count(level slog.Level) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.countLocked(level)
}

func (h *recordingHandler) snapshot() []slog.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.records)
}

func (h *recordingHandler) messages(level slog.Level) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, r := range h.records {
		if r.Level == level {
			out = append(out, r.Message)
		}
	}
	return out
}

func noSleep(context.Context, time.Duration) error { return nil }

func newTestSaver(h slog.Handler, policy RetryPolicy) *Saver {
	s := NewSaver(slog.New(h), policy)
	s.sleep = noSleep
	return s
}

func TestSave_NumericExample(t *testing.T) {
	src := writeFile(t, "a.csv", "x,y\n1,2\n3,4\n")
	table, err := Load(src)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	h := &recordingHandler{}
	dst := filepath.Join(t.TempDir(), "b.csv")
	res, err := newTestSaver(h, DefaultRetryPolicy()).Save(context.Background(), table, dst)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if string(got) != "x,y\n1,2\n3,4\n" {
		t.Errorf("saved content = %q, want %q", got, "x,y\n1,2\n3,4\n")
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}
	if res.Rows != 2 {
		t.Errorf("Rows = %d, want 2", res.Rows)
	}
	if res.ID == "" {
		t.Error("expected a save ID")
	}
	if n := h.count(slog.LevelWarn); n != 0 {
		t.Errorf("warnings = %d, want 0", n)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	inputs := []string{
		"x,y\n1,2\n3,4\n",
		"id,score,ok,name\n1,1.5,True,alice\n2,,False,\"b,c\"\n",
		"a,a,b\n1,2,x\n",
		"only\n",
		"v\n1\nNA\n2\n",
		"f\n1.5\n1e400\n-1e400\n",
	}

	for _, in := range inputs {
		first, err := Read(strings.NewReader(in))
		if err != nil {
			t.Fatalf("Read(%q) error = %v", in, err)
		}

		dst := filepath.Join(t.TempDir(), "out.csv")
		if _, err := newTestSaver(&recordingHandler{}, DefaultRetryPolicy()).Save(context.Background(), first, dst); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		second, err := Load(dst)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if second.Len() != first.Len() {
			t.Errorf("round trip of %q: Len = %d, want %d", in, second.Len(), first.Len())
		}
		if strings.Join(second.ColumnNames(), ",") != strings.Join(first.ColumnNames(), ",") {
			t.Errorf("round trip of %q: columns = %v, want %v", in, second.ColumnNames(), first.ColumnNames())
		}
	}
}

func TestSave_OverwritesExisting(t *testing.T) {
	dst := writeFile(t, "out.csv", "old,content\nlonger,than,new\n")
	table, _ := Read(strings.NewReader("a\n1\n"))

	if _, err := newTestSaver(&recordingHandler{}, DefaultRetryPolicy()).Save(context.Background(), table, dst); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "a\n1\n" {
		t.Errorf("content = %q, want %q", got, "a\n1\n")
	}

	entries, _ := os.ReadDir(filepath.Dir(dst))
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1 (temp file left behind?)", len(entries))
	}
}

func TestSave_MissingDirectoryExhaustsRetries(t *testing.T) {
	table, _ := Read(strings.NewReader("x,y\n1,2\n"))
	dst := filepath.Join(t.TempDir(), "no", "such", "dir", "out.csv")

	h := &recordingHandler{}
	policy := RetryPolicy{MaxAttempts: 4, InitialBackoff: time.Millisecond, Multiplier: 2}
	res, err := newTestSaver(h, policy).Save(context.Background(), table, dst)

	if !errors.Is(err, ErrSaveExhausted) {
		t.Fatalf("Save() error = %v, want ErrSaveExhausted", err)
	}
	var se *SaveError
	if !errors.As(err, &se) {
		t.Fatalf("error %T is not *SaveError", err)
	}
	if se.Attempts != 4 || res.Attempts != 4 {
		t.Errorf("Attempts = %d/%d, want 4", se.Attempts, res.Attempts)
	}
	if se.Path != dst {
		t.Errorf("Path = %q, want %q", se.Path, dst)
	}

	warnings := h.messages(slog.LevelWarn)
	if len(warnings) != 4 {
		t.Fatalf("warnings = %d, want 4", len(warnings))
	}
	for _, msg := range warnings {
		if msg != "Failed to save "+dst {
			t.Errorf("warning = %q, want %q", msg, "Failed to save "+dst)
		}
	}

	// Warnings carry only the message; detail goes to debug records.
	var attempts []int64
	for _, r := range h.snapshot() {
		switch {
		case r.Level == slog.LevelWarn && r.NumAttrs() != 0:
			t.Errorf("warning %q has %d attrs, want 0", r.Message, r.NumAttrs())
		case r.Level == slog.LevelDebug && r.Message == "save attempt failed":
			r.Attrs(func(a slog.Attr) bool {
				if a.Key == "attempt" {
					attempts = append(attempts, a.Value.Int64())
				}
				return true
			})
		}
	}
	if want := []int64{1, 2, 3, 4}; !slices.Equal(attempts, want) {
		t.Errorf("debug attempts = %v, want %v", attempts, want)
	}
}

func TestSave_UnboundedKeepsRetrying(t *testing.T) {
	table, _ := Read(strings.NewReader("x\n1\n"))
	dst := filepath.Join(t.TempDir(), "missing", "out.csv")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const observe = 25
	h := &recordingHandler{}
	h.onWarn = func(n int) {
		if n >= observe {
			cancel()
		}
	}

	saver := NewSaver(slog.New(h), RetryPolicy{MaxAttempts: 0})
	done := make(chan error, 1)
	go func() {
		_, err := saver.Save(ctx, table, dst)
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Save() error = %v, want context.Canceled", err)
		}
		if errors.Is(err, ErrSaveExhausted) {
			t.Error("unbounded policy must not report exhaustion")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Save did not stop after cancellation")
	}

	if n := h.count(slog.LevelWarn); n < observe {
		t.Errorf("warnings = %d, want at least %d", n, observe)
	}
}

func TestSave_InvalidTableNotRetried(t *testing.T) {
	table, _ := NewTable(Column{Name: "a"})
	table.rows = append(table.rows, Row{"a": []int{1}})

	h := &recordingHandler{}
	_, err := newTestSaver(h, RetryPolicy{MaxAttempts: 0}).Save(context.Background(), table, filepath.Join(t.TempDir(), "x.csv"))
	if !errors.Is(err, ErrInvalidTable) {
		t.Fatalf("Save() error = %v, want ErrInvalidTable", err)
	}
	if n := h.count(slog.LevelWarn); n != 0 {
		t.Errorf("warnings = %d, want 0", n)
	}
}

func TestSave_BackoffBetweenAttempts(t *testing.T) {
	table, _ := Read(strings.NewReader("x\n1\n"))
	dst := filepath.Join(t.TempDir(), "missing", "out.csv")

	var waits []time.Duration
	saver := NewSaver(slog.New(&recordingHandler{}), RetryPolicy{
		MaxAttempts:    4,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     25 * time.Millisecond,
		Multiplier:     2,
	})
	saver.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	_, _ = saver.Save(context.Background(), table, dst)

	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 25 * time.Millisecond}
	if len(waits) != len(want) {
		t.Fatalf("waits = %v, want %v", waits, want)
	}
	for i := range want {
		if waits[i] != want[i] {
			t.Errorf("wait[%d] = %v, want %v", i, waits[i], want[i])
		}
	}
}

func TestSave_SucceedsAfterDirectoryAppears(t *testing.T) {
	table, _ := Read(strings.NewReader("x\n1\n"))
	dir := filepath.Join(t.TempDir(), "later")
	dst := filepath.Join(dir, "out.csv")

	h := &recordingHandler{}
	saver := NewSaver(slog.New(h), RetryPolicy{MaxAttempts: 5})
	saver.sleep = func(context.Context, time.Duration) error {
		return os.MkdirAll(dir, 0o755)
	}

	res, err := saver.Save(context.Background(), table, dst)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if res.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", res.Attempts)
	}
	if n := h.count(slog.LevelWarn); n != 1 {
		t.Errorf("warnings = %d, want 1", n)
	}
}

func TestSave_SingleColumnMissingValue(t *testing.T) {
	table, err := Read(strings.NewReader("v\n1\nNA\n2\n"))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	dst := filepath.Join(t.TempDir(), "out.csv")
	if _, err := newTestSaver(&recordingHandler{}, DefaultRetryPolicy()).Save(context.Background(), table, dst); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if want := "v\n1\n\"\"\n2\n"; string(data) != want {
		t.Errorf("saved = %q, want %q", data, want)
	}

	reloaded, err := Load(dst)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if reloaded.Len() != 3 {
		t.Fatalf("reloaded Len = %d, want 3", reloaded.Len())
	}
	if v, _ := reloaded.Value(1, "v"); v != nil {
		t.Errorf("reloaded row 1 = %v, want nil", v)
	}
}

func TestWrite(t *testing.T) {
	table, err := NewTable(Column{Name: "n", Kind: KindInt}, Column{Name: "f", Kind: KindFloat}, Column{Name: "s"})
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}
	_ = table.Append(Row{"n": 1, "f": 2.0, "s": "a b"})
	_ = table.Append(Row{"n": nil, "f": 0.5})

	var buf bytes.Buffer
	if err := Write(&buf, table); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	want := "n,f,s\n1,2.0,a b\n,0.5,\n"
	if buf.String() != want {
		t.Errorf("Write() = %q, want %q", buf.String(), want)
	}
}
