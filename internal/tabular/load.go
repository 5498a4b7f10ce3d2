package tabular

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/banshee-data/learner/internal/monitoring"
)

// PredictionLabel is a scoring column dropped on load so that re-processing
// already-scored data does not leak predictions into the features.
const PredictionLabel = "prediction_label"

// separators are the candidates considered by SniffSeparator, in priority order.
var separators = []rune{',', '\t', ';', '|'}

// naValues are the cell spellings treated as missing.
var naValues = map[string]bool{
	"": true, "NA": true, "N/A": true, "n/a": true, "#N/A": true, "NaN": true, "nan": true,
	"-NaN": true, "-nan": true, "null": true, "NULL": true, "None": true, "<NA>": true,
}

const (
	sniffLines = 10
	peekSize   = 64 * 1024
)

// SniffSeparator picks the delimiter from a sample of leading lines. A
// candidate wins when it appears the same non-zero number of times on every
// sampled line (outside quotes); ties go to the higher count, then to the
// earlier candidate. Comma is the fallback.
func SniffSeparator(lines []string) rune {
	best, bestCount := ',', 0
	for _, sep := range separators {
		count := -1
		consistent := true
		for _, line := range lines {
			if strings.TrimSpace(line) == "" {
				continue
			}
			n := countUnquoted(line, sep)
			if count == -1 {
				count = n
			} else if n != count {
				consistent = false
				break
			}
		}
		if consistent && count > bestCount {
			best, bestCount = sep, count
		}
	}
	return best
}

func countUnquoted(line string, sep rune) int {
	n := 0
	quoted := false
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
		case r == sep && !quoted:
			n++
		}
	}
	return n
}

// ReadFile loads path with the standard cleaning applied.
func ReadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	ds, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ds, nil
}

// Read parses delimited text. The separator is sniffed, "." in column names
// becomes "_", a prediction_label column is dropped and every column whose
// non-missing cells all parse as numbers becomes numeric.
func Read(r io.Reader) (*Dataset, error) {
	br := bufio.NewReaderSize(r, peekSize)
	sample, err := peekLines(br, sniffLines)
	if err != nil {
		return nil, err
	}
	sep := SniffSeparator(sample)

	cr := csv.NewReader(br)
	cr.Comma = sep
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse delimited data: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no header row")
	}

	header := records[0]
	rows := records[1:]
	ds := &Dataset{Columns: make([]*Column, len(header))}
	for j, name := range header {
		raw := make([]string, len(rows))
		for i, rec := range rows {
			raw[i] = rec[j]
		}
		ds.Columns[j] = coerce(CleanName(name), raw)
	}

	if ds.Drop(PredictionLabel) {
		monitoring.Logf("dropped existing %s column", PredictionLabel)
	}
	if text := ds.TextNames(); len(text) > 0 {
		monitoring.Logf("non-numeric columns found: %v", text)
	}
	return ds, nil
}

// CleanName replaces "." so names cannot be mistaken for nested fields.
func CleanName(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), ".", "_")
}

// peekLines returns up to n complete lines from the buffered head of br
// without consuming them.
func peekLines(br *bufio.Reader, n int) ([]string, error) {
	buf, err := br.Peek(peekSize)
	if err != nil && err != io.EOF {
		return nil, err
	}
	lines := strings.Split(string(buf), "\n")
	if len(buf) == peekSize && len(lines) > 1 {
		lines = lines[:len(lines)-1]
	}
	if len(lines) > n {
		lines = lines[:n]
	}
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}
	return lines, nil
}

func isNA(s string) bool {
	return naValues[strings.TrimSpace(s)]
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v, err == nil
}

// coerce builds a numeric column when every non-missing cell parses.
func coerce(name string, raw []string) *Column {
	values := make([]float64, len(raw))
	numeric := true
	for i, s := range raw {
		if isNA(s) {
			values[i] = math.NaN()
			continue
		}
		v, ok := parseNumber(s)
		if !ok {
			numeric = false
			break
		}
		values[i] = v
	}
	if numeric {
		return &Column{Name: name, Numeric: true, Values: values}
	}
	missing := make([]bool, len(raw))
	for i, s := range raw {
		missing[i] = isNA(s)
	}
	return &Column{Name: name, Text: raw, Missing: missing}
}

// ForceNumeric converts c to numeric, turning unparseable cells into NaN.
func ForceNumeric(c *Column) *Column {
	if c.Numeric {
		return c
	}
	values := make([]float64, len(c.Text))
	for i, s := range c.Text {
		v, ok := parseNumber(s)
		if c.Missing[i] || !ok {
			v = math.NaN()
		}
		values[i] = v
	}
	return &Column{Name: c.Name, Numeric: true, Values: values}
}
