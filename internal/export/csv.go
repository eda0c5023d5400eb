// Package export writes the compartment time series to flat files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/engine"
)

// Header is the column layout of the CSV series.
var Header = []string{"hour", "hS", "hE", "hI", "hR", "vS", "vI", "mosq_total"}

// CSVWriter appends every Nth tick of a run to a CSV stream.
type CSVWriter struct {
	w     *csv.Writer
	c     io.Closer
	every uint64
	rows  int
}

// NewCSVWriter writes the header to w and returns a writer that keeps ticks
// divisible by every. every of 0 is treated as 1.
func NewCSVWriter(w io.Writer, every uint64) (*CSVWriter, error) {
	if every == 0 {
		every = 1
	}
	cw := &CSVWriter{w: csv.NewWriter(w), every: every}
	if c, ok := w.(io.Closer); ok {
		cw.c = c
	}
	if err := cw.w.Write(Header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	return cw, nil
}

// CreateCSV creates (or truncates) the file at path, making parent
// directories as needed.
func CreateCSV(path string, every uint64) (*CSVWriter, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create csv dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create csv: %w", err)
	}
	cw, err := NewCSVWriter(f, every)
	if err != nil {
		f.Close()
		return nil, err
	}
	return cw, nil
}

// Record writes c if its tick is on the sampling grid.
func (cw *CSVWriter) Record(c engine.Counts) error {
	if c.Tick%cw.every != 0 {
		return nil
	}
	row := []string{
		strconv.FormatUint(c.Tick, 10),
		strconv.Itoa(c.HumanS),
		strconv.Itoa(c.HumanE),
		strconv.Itoa(c.HumanI),
		strconv.Itoa(c.HumanR),
		strconv.Itoa(c.MosquitoS),
		strconv.Itoa(c.MosquitoI),
		strconv.Itoa(c.Mosquitoes()),
	}
	if err := cw.w.Write(row); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	cw.rows++
	return nil
}

// Rows returns the number of data rows written.
func (cw *CSVWriter) Rows() int { return cw.rows }

// Flush pushes buffered rows to the underlying writer.
func (cw *CSVWriter) Flush() error {
	cw.w.Flush()
	return cw.w.Error()
}

// Close flushes and closes the underlying file, if any.
func (cw *CSVWriter) Close() error {
	err := cw.Flush()
	if cw.c != nil {
		if cerr := cw.c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
