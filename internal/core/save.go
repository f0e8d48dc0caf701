package core

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Write renders t as delimited text: a header row of column names, then one
// record per row. No row-number column is emitted. A record made of one
// empty field is written as "" so readers do not skip it as a blank line.
func Write(w io.Writer, t *Table) error {
	if t == nil {
		return fmt.Errorf("%w: nil table", ErrInvalidTable)
	}
	records, err := t.Records()
	if err != nil {
		return err
	}
	return writeRecords(w, records)
}

func writeRecords(w io.Writer, records [][]string) error {
	cw := csv.NewWriter(w)
	for _, rec := range records {
		if len(rec) == 1 && rec[0] == "" {
			cw.Flush()
			if err := cw.Error(); err != nil {
				return fmt.Errorf("write records: %w", err)
			}
			if _, err := io.WriteString(w, "\"\"\n"); err != nil {
				return fmt.Errorf("write records: %w", err)
			}
			continue
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write records: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	return nil
}

// SaveResult describes a completed save.
type SaveResult struct {
	ID       string        `json:"save_id"`
	Path     string        `json:"path"`
	Attempts int           `json:"attempts"`
	Rows     int           `json:"rows"`
	Duration time.Duration `json:"duration_ns"`
}

// Saver writes tables to disk, retrying failed attempts per its policy.
type Saver struct {
	logger *slog.Logger
	policy RetryPolicy

	// sleep waits between attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSaver creates a Saver. A nil logger falls back to slog.Default().
func NewSaver(logger *slog.Logger, policy RetryPolicy) *Saver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Saver{
		logger: logger,
		policy: policy,
		sleep:  sleepContext,
	}
}

// Policy returns the saver's retry policy.
func (s *Saver) Policy() RetryPolicy { return s.policy }

// Save writes t to path, replacing any existing file.
//
// Each failed attempt logs a warning naming path and is retried after the
// policy backoff. Invalid tables fail at once. When attempts run out the
// returned *SaveError wraps ErrSaveExhausted and the last write error; when
// ctx ends first it wraps ctx.Err().
func (s *Saver) Save(ctx context.Context, t *Table, path string) (SaveResult, error) {
	start := time.Now()
	result := SaveResult{ID: uuid.New().String(), Path: path}
	if t != nil {
		result.Rows = t.Len()
	}

	for attempt := 1; ; attempt++ {
		result.Attempts = attempt

		err := writeFileAtomic(t, path)
		if err == nil {
			result.Duration = time.Since(start)
			s.logger.Debug("table saved",
				"save_id", result.ID,
				"path", path,
				"rows", result.Rows,
				"attempts", attempt,
			)
			return result, nil
		}

		if errors.Is(err, ErrInvalidTable) {
			return result, &SaveError{Path: path, Attempts: attempt, Err: err}
		}

		s.logger.Warn(fmt.Sprintf("Failed to save %s", path))
		s.logger.Debug("save attempt failed",
			"save_id", result.ID,
			"path", path,
			"attempt", attempt,
			"error", err,
		)

		if !s.policy.Unbounded() && attempt >= s.policy.MaxAttempts {
			return result, &SaveError{
				Path:     path,
				Attempts: attempt,
				Err:      fmt.Errorf("%w: %w", ErrSaveExhausted, err),
			}
		}

		if werr := s.sleep(ctx, s.policy.Backoff(attempt)); werr != nil {
			return result, &SaveError{Path: path, Attempts: attempt, Err: werr}
		}
	}
}

// Save writes t to path with the default retry policy.
func Save(ctx context.Context, logger *slog.Logger, t *Table, path string) (SaveResult, error) {
	return NewSaver(logger, DefaultRetryPolicy()).Save(ctx, t, path)
}

// writeFileAtomic writes t to a temp file beside path and renames it over
// path, so readers see either the old file or the complete new one.
func writeFileAtomic(t *Table, path string) (err error) {
	if t == nil {
		return fmt.Errorf("%w: nil table", ErrInvalidTable)
	}
	// Render first so an invalid table never touches the filesystem.
	records, err := t.Records()
	if err != nil {
		return err
	}

	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if err = writeRecords(tmp, records); err != nil {
		return fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err = tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpPath, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}
