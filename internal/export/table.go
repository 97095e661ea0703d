// Package export writes the crawl tables as CSV files. Each file is keyed by
// its primary-key column: writing a table again replaces rows with the same
// key and keeps rows the store no longer holds. Interactions are the
// exception: a thread the store knows owns its edge set outright.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"forumgraph/internal/crawlerr"
)

// Table is one CSV file held in memory in row order.
type Table struct {
	Name    string
	Columns []string

	key   int
	index map[string]int
	rows  [][]string
}

// NewTable creates an empty table whose primary key is the named column.
func NewTable(name string, columns []string, key string) (*Table, error) {
	k := slices.Index(columns, key)
	if k < 0 {
		return nil, fmt.Errorf("table %s: key column %q not in columns", name, key)
	}
	return &Table{
		Name:    name,
		Columns: columns,
		key:     k,
		index:   map[string]int{},
	}, nil
}

// Path is the file the table is stored in under dir.
func (t *Table) Path(dir string) string {
	return filepath.Join(dir, t.Name+".csv")
}

// Upsert replaces the row carrying the same key or appends a new one. It
// reports whether the row was new.
func (t *Table) Upsert(row []string) (bool, error) {
	if len(row) != len(t.Columns) {
		return false, fmt.Errorf("table %s: row has %d fields, want %d", t.Name, len(row), len(t.Columns))
	}
	k := row[t.key]
	if k == "" {
		return false, fmt.Errorf("table %s: empty %s", t.Name, t.Columns[t.key])
	}
	if i, ok := t.index[k]; ok {
		t.rows[i] = row
		return false, nil
	}
	t.index[k] = len(t.rows)
	t.rows = append(t.rows, row)
	return true, nil
}

// DeleteWhere drops every row whose column value satisfies match and
// reports how many went.
func (t *Table) DeleteWhere(column string, match func(string) bool) (int, error) {
	c := slices.Index(t.Columns, column)
	if c < 0 {
		return 0, fmt.Errorf("table %s: no column %q", t.Name, column)
	}
	kept := t.rows[:0]
	clear(t.index)
	for _, row := range t.rows {
		if match(row[c]) {
			continue
		}
		t.index[row[t.key]] = len(kept)
		kept = append(kept, row)
	}
	n := len(t.rows) - len(kept)
	t.rows = kept
	return n, nil
}

func (t *Table) Len() int {
	return len(t.rows)
}

func (t *Table) Rows() [][]string {
	return t.rows
}

// Load merges the rows of an existing file into the table. A missing file is
// not an error; a file with a different header is.
func (t *Table) Load(dir string) error {
	f, err := os.Open(t.Path(dir))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return crawlerr.Persistence("open "+t.Name, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return crawlerr.Persistence("read "+t.Name, err)
	}
	if !slices.Equal(header, t.Columns) {
		return crawlerr.Persistence(fmt.Sprintf("%s: unexpected header %v", t.Path(dir), header), nil)
	}
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return crawlerr.Persistence("read "+t.Name, err)
		}
		if _, err := t.Upsert(row); err != nil {
			return crawlerr.Persistence("load "+t.Name, err)
		}
	}
}

// Save writes the table to dir through a temporary file so readers never see
// a half-written table.
func (t *Table) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return crawlerr.Persistence("create output dir", err)
	}
	tmp, err := os.CreateTemp(dir, "."+t.Name+"-*.csv")
	if err != nil {
		return crawlerr.Persistence("create "+t.Name, err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(t.Columns); err != nil {
		tmp.Close()
		return crawlerr.Persistence("write "+t.Name, err)
	}
	if err := w.WriteAll(t.rows); err != nil {
		tmp.Close()
		return crawlerr.Persistence("write "+t.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return crawlerr.Persistence("close "+t.Name, err)
	}
	if err := os.Rename(tmp.Name(), t.Path(dir)); err != nil {
		return crawlerr.Persistence("rename "+t.Name, err)
	}
	return nil
}
