package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Load reads the delimited file at path into a Table.
//
// The first line is the header. Every call re-reads the file; nothing is
// cached. Open and read failures wrap ErrFileRead, malformed content wraps
// ErrParse.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileRead, err)
	}
	defer f.Close()

	t, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return t, nil
}

// Read parses delimited text from r into a Table.
func Read(r io.Reader) (*Table, error) {
	src := WrapSource(r)
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptyData
	}
	if err != nil {
		return nil, classifyReadErr(err)
	}
	names := MangleHeader(header)

	var cells [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, classifyReadErr(err)
		}
		if len(rec) > len(names) {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("%w: line %d: expected %d fields, saw %d",
				ErrParse, line, len(names), len(rec))
		}
		cells = append(cells, rec)
	}

	columns := make([]Column, len(names))
	column := make([]string, len(cells))
	for j, name := range names {
		for i, rec := range cells {
			if j < len(rec) {
				column[i] = rec[j]
			} else {
				column[i] = ""
			}
		}
		columns[j] = Column{Name: name, Kind: InferKind(column)}
	}

	t, err := NewTable(columns...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	t.rows = make([]Row, len(cells))
	for i, rec := range cells {
		row := make(Row, len(columns))
		for j, c := range columns {
			if j < len(rec) {
				row[c.Name] = ParseCell(rec[j], c.Kind)
			} else {
				row[c.Name] = nil
			}
		}
		t.rows[i] = row
	}
	t.sourceBytes = src.BytesRead
	return t, nil
}

// MangleHeader makes header names unique by suffixing repeats: a, a.1, a.2.
// Blank names become "Unnamed: <index>".
func MangleHeader(header []string) []string {
	out := make([]string, len(header))
	used := make(map[string]struct{}, len(header))
	counts := make(map[string]int)
	for i, h := range header {
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		name := h
		if _, dup := used[name]; dup {
			for k := counts[h] + 1; ; k++ {
				candidate := h + "." + strconv.Itoa(k)
				if _, taken := used[candidate]; !taken {
					name = candidate
					counts[h] = k
					break
				}
			}
		}
		used[name] = struct{}{}
		out[i] = name
	}
	return out
}

// classifyReadErr maps csv reader failures onto ErrParse and source
// failures onto ErrFileRead.
func classifyReadErr(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return fmt.Errorf("%w: %w", ErrParse, err)
	}
	return fmt.Errorf("%w: %w", ErrFileRead, err)
}
