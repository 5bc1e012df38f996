// Package csvtable persists small tables as CSV files. Each Table serializes
// its load-mutate-save sequences so concurrent writers never lose updates.
package csvtable

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Row maps column name to cell value.
type Row map[string]string

// Table is a CSV file with a fixed column set.
type Table struct {
	path    string
	columns []string
	mu      sync.Mutex
}

// New returns a table bound to path. The file is created with a header row
// on first use.
func New(path string, columns []string) *Table {
	return &Table{path: path, columns: append([]string(nil), columns...)}
}

// Path returns the backing file path.
func (t *Table) Path() string {
	return t.path
}

// Load returns every row in file order.
func (t *Table) Load() ([]Row, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load()
}

// Update runs fn over the current rows and saves what it returns, holding
// the table lock for the whole sequence. Returning an error from fn leaves
// the file untouched.
func (t *Table) Update(fn func(rows []Row) ([]Row, error)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows, err := t.load()
	if err != nil {
		return err
	}
	next, err := fn(rows)
	if err != nil {
		return err
	}
	return t.save(next)
}

func (t *Table) load() ([]Row, error) {
	if err := t.ensure(); err != nil {
		return nil, err
	}
	_, rows, err := Read(t.path)
	return rows, err
}

func (t *Table) ensure() error {
	if _, err := os.Stat(t.path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("csvtable: stat %s: %w", t.path, err)
	}
	return t.save(nil)
}

// save writes to a sibling temp file and renames it over the target.
func (t *Table) save(rows []Row) error {
	if dir := filepath.Dir(t.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("csvtable: create dir: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(t.path), filepath.Base(t.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("csvtable: create temp: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	w := csv.NewWriter(tmp)
	if err := w.Write(t.columns); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("csvtable: write header: %w", err)
	}
	record := make([]string, len(t.columns))
	for _, row := range rows {
		for i, col := range t.columns {
			record[i] = row[col]
		}
		if err := w.Write(record); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("csvtable: write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("csvtable: flush: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("csvtable: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), t.path); err != nil {
		return fmt.Errorf("csvtable: replace %s: %w", t.path, err)
	}
	return nil
}

// Read parses a CSV file with a header row. Header names are trimmed and
// lower-cased; a UTF-8 BOM is ignored. A missing file yields os.ErrNotExist.
func Read(path string) ([]string, []Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("csvtable: read header of %s: %w", path, err)
	}
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var rows []Row
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("csvtable: read %s: %w", path, err)
		}
		row := make(Row, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}
