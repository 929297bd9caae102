// Package compare loads two exported recordings and aligns them by position
// for side-by-side inspection.
package compare

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ErrMissingHeader is wrapped by a ParseError when the input is empty.
var ErrMissingHeader = errors.New("missing header row")

// ErrValueAfterEnd is wrapped by a ParseError when a column resumes after an
// empty cell.
var ErrValueAfterEnd = errors.New("value after end of column")

// ParseError reports where an export could not be read.
type ParseError struct {
	Line   int
	Column string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("line %d, column %q: %v", e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Column is one named value sequence.
type Column struct {
	Name   string
	Values []float64
}

// ColumnSet is one parsed export.
type ColumnSet struct {
	Columns []Column
}

// Len returns the number of rows: the length of the longest column.
func (s *ColumnSet) Len() int {
	n := 0
	for _, c := range s.Columns {
		if len(c.Values) > n {
			n = len(c.Values)
		}
	}
	return n
}

// Column returns the column called name.
func (s *ColumnSet) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Parse reads an export written with delim. The header row names the columns
// and is otherwise discarded. An empty cell ends its column. Any error aborts
// the whole parse.
func Parse(r io.Reader, delim rune) (*ColumnSet, error) {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ParseError{Line: 1, Err: ErrMissingHeader}
	}
	if err != nil {
		return nil, wrapCSVError(err)
	}

	set := &ColumnSet{Columns: make([]Column, len(header))}
	for i, name := range header {
		set.Columns[i].Name = name
	}
	ended := make([]bool, len(header))

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, wrapCSVError(err)
		}
		line, _ := cr.FieldPos(0)

		for i, field := range record {
			col := &set.Columns[i]
			if field == "" {
				ended[i] = true
				continue
			}
			if ended[i] {
				return nil, &ParseError{Line: line, Column: col.Name, Err: ErrValueAfterEnd}
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, &ParseError{Line: line, Column: col.Name, Err: err}
			}
			col.Values = append(col.Values, v)
		}
	}
	return set, nil
}

func wrapCSVError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &ParseError{Line: pe.Line, Err: pe.Err}
	}
	return &ParseError{Err: err}
}
