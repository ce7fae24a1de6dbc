package export

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Table is one CSV output table. Rows are appended with the file opened and
// closed per write, so previously written rows survive a crash mid-run and a
// later append-mode run can resume identifier sequencing from the last
// committed row.
type Table struct {
	Path    string
	Columns []string

	next int64
}

// NewTable creates a table handle for the given path. Prepare must be called
// before the first append.
func NewTable(path string, columns []string) *Table {
	return &Table{Path: path, Columns: columns, next: 1}
}

// Prepare applies the output-file policy for a run:
//
//	append=false, missing  -> create, write header
//	append=false, exists   -> replace with a fresh file and header
//	append=true,  missing  -> create, write header
//	append=true,  exists   -> keep contents, resume the identifier counter
//	                          one past the last row's leading field
//
// If the file still does not exist afterwards the run cannot proceed and an
// error is returned.
func (t *Table) Prepare(appendMode bool) error {
	t.next = 1

	exists := true
	if _, err := os.Stat(t.Path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("export: stat %s: %w", t.Path, err)
		}
		exists = false
	}

	if appendMode && exists {
		if last, ok := t.lastIdentifier(); ok {
			t.next = last + 1
		}
	} else {
		if exists {
			if err := os.Remove(t.Path); err != nil {
				return fmt.Errorf("export: remove %s: %w", t.Path, err)
			}
		}
		if err := t.writeHeader(); err != nil {
			return err
		}
	}

	if _, err := os.Stat(t.Path); err != nil {
		return fmt.Errorf("export: table %s unavailable after preparation: %w", t.Path, err)
	}
	return nil
}

// NextID returns the identifier for the next row and advances the counter.
func (t *Table) NextID() int64 {
	id := t.next
	t.next++
	return id
}

// Append writes one rendered row to the table. The file handle is not held
// between calls.
func (t *Table) Append(row string) error {
	f, err := os.OpenFile(t.Path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("export: open %s: %w", t.Path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(row + "\n"); err != nil {
		return fmt.Errorf("export: append to %s: %w", t.Path, err)
	}
	return nil
}

func (t *Table) writeHeader() error {
	f, err := os.OpenFile(t.Path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", t.Path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(strings.Join(t.Columns, ",") + "\n"); err != nil {
		return fmt.Errorf("export: write header to %s: %w", t.Path, err)
	}
	return nil
}

// lastIdentifier reads the leading field of the table's last line. A table
// holding only its header yields no identifier, in which case the counter
// restarts at 1.
func (t *Table) lastIdentifier() (int64, bool) {
	data, err := os.ReadFile(t.Path)
	if err != nil {
		return 0, false
	}

	content := strings.TrimRight(string(data), "\r\n")
	if content == "" {
		return 0, false
	}
	last := content
	if i := strings.LastIndexByte(content, '\n'); i >= 0 {
		last = content[i+1:]
	}
	last = strings.TrimRight(last, "\r")

	first := last
	if i := strings.IndexByte(last, ','); i >= 0 {
		first = last[:i]
	}
	id, err := strconv.ParseInt(strings.TrimSpace(first), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
