// Package frame is a small string table used for leaderboards, parameter
// listings and their CSV, HTML and console renderings.
package frame

import (
	"encoding/csv"
	"fmt"
	"html"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Table is a rectangular table of formatted cells with an optional row index.
type Table struct {
	Columns []string
	Index   []string // nil or one label per row
	Rows    [][]string
}

// New returns an empty table with the given header.
func New(columns ...string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// Append adds a row. The row must match the header width.
func (t *Table) Append(index string, cells ...string) {
	if len(cells) != len(t.Columns) {
		panic(fmt.Sprintf("frame: row has %d cells, table has %d columns", len(cells), len(t.Columns)))
	}
	if index != "" || t.Index != nil {
		for len(t.Index) < len(t.Rows) {
			t.Index = append(t.Index, strconv.Itoa(len(t.Index)))
		}
		t.Index = append(t.Index, index)
	}
	t.Rows = append(t.Rows, append([]string(nil), cells...))
}

// Len returns the row count.
func (t *Table) Len() int { return len(t.Rows) }

// ColumnIndex returns the position of name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns the cells of one column.
func (t *Table) Column(name string) []string {
	i := t.ColumnIndex(name)
	if i < 0 {
		return nil
	}
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out
}

// Cell returns the value at row r of column name.
func (t *Table) Cell(r int, name string) string {
	i := t.ColumnIndex(name)
	if i < 0 || r >= len(t.Rows) {
		return ""
	}
	return t.Rows[r][i]
}

// RenameColumn renames from to to. Cells are untouched. It reports whether
// the column existed.
func (t *Table) RenameColumn(from, to string) bool {
	i := t.ColumnIndex(from)
	if i < 0 {
		return false
	}
	t.Columns[i] = to
	return true
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := &Table{Columns: append([]string(nil), t.Columns...)}
	if t.Index != nil {
		out.Index = append([]string(nil), t.Index...)
	}
	out.Rows = make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		out.Rows[i] = append([]string(nil), r...)
	}
	return out
}

func (t *Table) indexLabel(r int) string {
	if r < len(t.Index) {
		return t.Index[r]
	}
	return strconv.Itoa(r)
}

// WriteCSV writes the header and rows. With withIndex the row labels are
// written as a leading unnamed column.
func (t *Table) WriteCSV(w io.Writer, withIndex bool) error {
	cw := csv.NewWriter(w)
	header := t.Columns
	if withIndex {
		header = append([]string{""}, t.Columns...)
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for r, row := range t.Rows {
		rec := row
		if withIndex {
			rec = append([]string{t.indexLabel(r)}, row...)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// HTML renders the table without its index as a <table> element carrying
// the dataframe class plus any extra classes.
func (t *Table) HTML(classes ...string) string {
	var b strings.Builder
	cls := strings.TrimSpace("dataframe " + strings.Join(classes, " "))
	fmt.Fprintf(&b, "<table border=\"1\" class=\"%s\">\n", html.EscapeString(cls))
	b.WriteString("  <thead>\n    <tr style=\"text-align: right;\">\n")
	for _, c := range t.Columns {
		fmt.Fprintf(&b, "      <th>%s</th>\n", html.EscapeString(c))
	}
	b.WriteString("    </tr>\n  </thead>\n  <tbody>\n")
	for _, row := range t.Rows {
		b.WriteString("    <tr>\n")
		for _, cell := range row {
			fmt.Fprintf(&b, "      <td>%s</td>\n", html.EscapeString(cell))
		}
		b.WriteString("    </tr>\n")
	}
	b.WriteString("  </tbody>\n</table>")
	return b.String()
}

// Render writes a console table in the light box style.
func (t *Table) Render(w io.Writer, title string) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	if title != "" {
		tw.SetTitle(title)
	}

	header := make(table.Row, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	tw.AppendHeader(header)
	for _, r := range t.Rows {
		row := make(table.Row, len(r))
		for i, c := range r {
			row[i] = c
		}
		tw.AppendRow(row)
	}
	tw.Render()
}

// Pairs builds a two-column Parameter/Value table.
func Pairs(keys []string, values []string) *Table {
	t := New("Parameter", "Value")
	for i, k := range keys {
		t.Append("", k, values[i])
	}
	return t
}

// FormatFloat renders a metric with four decimals.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
