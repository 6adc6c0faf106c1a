package histogram

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/mitate/internal/models"
	"github.com/hyperjump/mitate/internal/table"
)

// Writer emits one "imageID<TAB>bin1<TAB>...<TAB>binK" line per image.
type Writer struct {
	bw    *bufio.Writer
	count int
}

// NewWriter wraps w. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

// WriteHistogram writes one image line. Tabs and newlines in id are replaced
// with spaces so the row stays parseable.
func (w *Writer) WriteHistogram(id string, h Histogram) error {
	id = strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || r == '\r' {
			return ' '
		}
		return r
	}, id)
	if id == "" {
		return fmt.Errorf("histogram row needs an image id")
	}
	if err := table.WriteRow(w.bw, id, h); err != nil {
		return err
	}
	w.count++
	return nil
}

// Count returns the number of rows written.
func (w *Writer) Count() int {
	return w.count
}

// Flush writes buffered rows to the underlying writer.
func (w *Writer) Flush() error {
	return w.bw.Flush()
}

// Row is one parsed histogram line.
type Row struct {
	ID        string
	Histogram Histogram
}

// ReadHistograms parses rows written by Writer. All rows must have the same
// number of bins.
func ReadHistograms(r io.Reader, name string) ([]Row, error) {
	var rows []Row
	err := table.Scan(r, func(line int, fields []string) error {
		if len(fields) < 2 {
			return &models.LoadError{Path: name, Line: line, Err: fmt.Errorf("expected an id and at least one bin")}
		}
		bins, err := table.ParseFloats(fields[1:])
		if err != nil {
			return &models.LoadError{Path: name, Line: line, Err: err}
		}
		if len(rows) > 0 && len(bins) != len(rows[0].Histogram) {
			return &models.LoadError{Path: name, Line: line,
				Err: fmt.Errorf("%w: got %d bins, expected %d", models.ErrDimensionMismatch, len(bins), len(rows[0].Histogram))}
		}
		rows = append(rows, Row{ID: fields[0], Histogram: bins})
		return nil
	})
	if err != nil {
		var le *models.LoadError
		if errors.As(err, &le) {
			return nil, err
		}
		return nil, &models.LoadError{Path: name, Err: err}
	}
	return rows, nil
}
