// Package tabular loads delimited files into typed, column-ordered datasets
// and applies the cleaning rules shared by training and test inputs.
package tabular

import (
	"fmt"
	"math"
	"strconv"
)

// Column is one named column. Numeric columns store NaN for missing cells;
// text columns keep the raw strings alongside a missing mask.
type Column struct {
	Name    string
	Numeric bool
	Values  []float64
	Text    []string
	Missing []bool
}

// Len returns the number of rows in the column.
func (c *Column) Len() int {
	if c.Numeric {
		return len(c.Values)
	}
	return len(c.Text)
}

// IsMissing reports whether row i is missing.
func (c *Column) IsMissing(i int) bool {
	if c.Numeric {
		return math.IsNaN(c.Values[i])
	}
	return c.Missing[i]
}

// String formats row i for display. Missing cells render empty.
func (c *Column) String(i int) string {
	if c.IsMissing(i) {
		return ""
	}
	if c.Numeric {
		return strconv.FormatFloat(c.Values[i], 'g', -1, 64)
	}
	return c.Text[i]
}

func (c *Column) take(rows []int) *Column {
	out := &Column{Name: c.Name, Numeric: c.Numeric}
	if c.Numeric {
		out.Values = make([]float64, len(rows))
		for j, i := range rows {
			out.Values[j] = c.Values[i]
		}
		return out
	}
	out.Text = make([]string, len(rows))
	out.Missing = make([]bool, len(rows))
	for j, i := range rows {
		out.Text[j] = c.Text[i]
		out.Missing[j] = c.Missing[i]
	}
	return out
}

// Dataset is an ordered set of equal-length columns.
type Dataset struct {
	Columns []*Column
}

// Rows returns the row count.
func (d *Dataset) Rows() int {
	if len(d.Columns) == 0 {
		return 0
	}
	return d.Columns[0].Len()
}

// Names returns column names in file order.
func (d *Dataset) Names() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of name, or -1.
func (d *Dataset) Index(name string) int {
	for i, c := range d.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Column returns the named column or nil.
func (d *Dataset) Column(name string) *Column {
	if i := d.Index(name); i >= 0 {
		return d.Columns[i]
	}
	return nil
}

// Drop removes the named column if present and reports whether it did.
func (d *Dataset) Drop(name string) bool {
	i := d.Index(name)
	if i < 0 {
		return false
	}
	d.Columns = append(d.Columns[:i], d.Columns[i+1:]...)
	return true
}

// NumericNames lists the numeric columns in order.
func (d *Dataset) NumericNames() []string {
	var out []string
	for _, c := range d.Columns {
		if c.Numeric {
			out = append(out, c.Name)
		}
	}
	return out
}

// TextNames lists the non-numeric columns in order.
func (d *Dataset) TextNames() []string {
	var out []string
	for _, c := range d.Columns {
		if !c.Numeric {
			out = append(out, c.Name)
		}
	}
	return out
}

// Select returns a dataset sharing the named columns, in the given order.
func (d *Dataset) Select(names []string) (*Dataset, error) {
	out := &Dataset{Columns: make([]*Column, 0, len(names))}
	for _, n := range names {
		c := d.Column(n)
		if c == nil {
			return nil, fmt.Errorf("column %q not found", n)
		}
		out.Columns = append(out.Columns, c)
	}
	return out, nil
}

// Take returns a copy holding only the given rows.
func (d *Dataset) Take(rows []int) *Dataset {
	out := &Dataset{Columns: make([]*Column, len(d.Columns))}
	for i, c := range d.Columns {
		out.Columns[i] = c.take(rows)
	}
	return out
}
