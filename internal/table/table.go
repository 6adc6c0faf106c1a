// Package table reads and writes the flat tab-separated tables used for reference
// data, descriptor files, vocabularies and histograms.
package table

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Separator is the field delimiter for every table.
const Separator = "\t"

// maxLineBytes bounds a single row; a 128-dim row is a few KB.
const maxLineBytes = 4 << 20

// RowFunc receives the 1-based line number and the fields of one row.
type RowFunc func(line int, fields []string) error

// Scan streams r row by row. Blank lines and lines starting with '#' are skipped;
// trailing whitespace (including a trailing separator) is ignored.
// The first error returned by fn stops the scan and is returned unchanged.
func Scan(r io.Reader, fn RowFunc) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), " \t\r")
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if err := fn(line, strings.Split(text, Separator)); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("line %d: %w", line+1, err)
	}
	return nil
}

// ParseFloats parses every field as a finite float64. NaN and infinities are
// rejected as non-numeric.
func ParseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("field %d: %q is not numeric", i+1, f)
		}
		out[i] = v
	}
	return out, nil
}

// ParseInt parses a single integer field.
func ParseInt(field string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(field))
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", field)
	}
	return v, nil
}

// WriteRow writes label (if non-empty) followed by values, tab-separated, ending in a newline.
func WriteRow(w *bufio.Writer, label string, values []float64) error {
	if label != "" {
		if _, err := w.WriteString(label); err != nil {
			return err
		}
	}
	for i, v := range values {
		if i > 0 || label != "" {
			if err := w.WriteByte('\t'); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(strconv.FormatFloat(v, 'g', -1, 64)); err != nil {
			return err
		}
	}
	return w.WriteByte('\n')
}
