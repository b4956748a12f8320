// Package dataset loads survey observation matrices from delimited files.
//
// A Table is a complete numeric matrix with named columns. The loader is
// strict: every cell must parse as a number, because the estimation
// procedure downstream assumes a complete matrix. Missing-value handling is
// deliberately absent.
package dataset

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gonum.org/v1/gonum/mat"
)

// LoadError reports a malformed cell or header with source position.
// Row is 1-based and counts the header as row 1.
type LoadError struct {
	File    string
	Row     int
	Column  string
	Message string
}

func (e *LoadError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s:%d: column %q: %s", e.File, e.Row, e.Column, e.Message)
	}
	return fmt.Sprintf("%s:%d: %s", e.File, e.Row, e.Message)
}

// Table is an observation matrix: one row per respondent, one named column
// per indicator.
type Table struct {
	names []string
	data  *mat.Dense

	// digest is the hex SHA-256 of the source bytes, recorded with fitted
	// runs so replay can detect a changed data file.
	digest string
}

// Load reads a CSV file with a header row into a Table.
func Load(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read data file: %w", err)
	}
	t, err := Read(strings.NewReader(string(raw)), path)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(raw)
	t.digest = hex.EncodeToString(sum[:])
	return t, nil
}

// Read parses CSV content with a header row. name is used in error positions.
func Read(r io.Reader, name string) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, &LoadError{File: name, Row: 1, Message: "missing header row"}
	}

	names := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		// Headers are NFC-normalized so that visually identical names
		// compare equal regardless of how the source file was encoded.
		h = norm.NFC.String(strings.TrimSpace(h))
		if h == "" {
			return nil, &LoadError{File: name, Row: 1, Message: fmt.Sprintf("empty name for column %d", i+1)}
		}
		if seen[h] {
			return nil, &LoadError{File: name, Row: 1, Column: h, Message: "duplicate column name"}
		}
		seen[h] = true
		names[i] = h
	}

	var values []float64
	rows := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &LoadError{File: name, Row: rows + 2, Message: err.Error()}
		}
		for i, cell := range record {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				return nil, &LoadError{File: name, Row: rows + 2, Column: names[i],
					Message: "empty cell (complete matrix required)"}
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, &LoadError{File: name, Row: rows + 2, Column: names[i],
					Message: fmt.Sprintf("not a number: %q", cell)}
			}
			values = append(values, v)
		}
		rows++
	}
	if rows == 0 {
		return nil, &LoadError{File: name, Row: 2, Message: "no observation rows"}
	}

	return &Table{
		names: names,
		data:  mat.NewDense(rows, len(names), values),
	}, nil
}

// New builds a Table directly from a matrix and column names. Used by tests
// and synthetic-data tooling.
func New(names []string, data *mat.Dense) (*Table, error) {
	_, c := data.Dims()
	if c != len(names) {
		return nil, fmt.Errorf("dataset: %d names for %d columns", len(names), c)
	}
	return &Table{names: names, data: data}, nil
}

// N returns the number of observations (rows).
func (t *Table) N() int {
	r, _ := t.data.Dims()
	return r
}

// Columns returns the column names in source order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Digest returns the hex SHA-256 of the source file, or "" for in-memory
// tables.
func (t *Table) Digest() string { return t.digest }

// Matrix returns the underlying observation matrix. Callers must treat it as
// read-only.
func (t *Table) Matrix() *mat.Dense { return t.data }

// Column returns a copy of the named column.
func (t *Table) Column(name string) ([]float64, error) {
	for j, n := range t.names {
		if n == name {
			out := make([]float64, t.N())
			mat.Col(out, j, t.data)
			return out, nil
		}
	}
	return nil, fmt.Errorf("dataset: no column %q (have %s)", name, strings.Join(t.names, ", "))
}

// Select returns a new Table holding the named columns in the given order.
// The selection shares no storage with the receiver.
func (t *Table) Select(names []string) (*Table, error) {
	n := t.N()
	out := mat.NewDense(n, len(names), nil)
	for j, name := range names {
		col, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		out.SetCol(j, col)
	}
	sel := make([]string, len(names))
	copy(sel, names)
	return &Table{names: sel, data: out, digest: t.digest}, nil
}
