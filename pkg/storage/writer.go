package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"pixscrape/pkg/config"
	apperrors "pixscrape/pkg/errors"
	"pixscrape/pkg/logger"
	"pixscrape/pkg/metrics"
	"pixscrape/pkg/models"
)

// Writer serializes records to CSV with a fixed column list
type Writer struct {
	fields  []string
	logger  logger.Logger
	metrics *metrics.Metrics
}

// NewWriter creates a Writer for the given columns. The list must be
// non-empty with distinct, non-blank names.
func NewWriter(fields []string, log logger.Logger, m *metrics.Metrics) (*Writer, error) {
	if err := config.ValidateFields(fields); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrorTypeDestination, err, "invalid field list")
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &Writer{
		fields:  append([]string(nil), fields...),
		logger:  log,
		metrics: m,
	}, nil
}

// Fields returns the column list
func (w *Writer) Fields() []string {
	return append([]string(nil), w.fields...)
}

// WriteRecords writes the header and one row per record to out and returns
// the number of data rows written.
func (w *Writer) WriteRecords(out io.Writer, records []models.Record) (int, error) {
	cw := csv.NewWriter(out)

	if err := cw.Write(w.fields); err != nil {
		return 0, apperrors.Wrap(apperrors.ErrorTypeDestination, err, "failed to write header")
	}

	row := make([]string, len(w.fields))
	for i, rec := range records {
		for j, field := range w.fields {
			row[j] = rec.Text(field)
		}
		if err := cw.Write(row); err != nil {
			return i, apperrors.Wrap(apperrors.ErrorTypeDestination, err, "failed to write row %d", i+1)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return len(records), apperrors.Wrap(apperrors.ErrorTypeDestination, err, "failed to flush output")
	}
	return len(records), nil
}

// WriteFile replaces path with the CSV rendering of records. Parent
// directories are created. The data goes to a temporary file that is
// renamed into place, so a failed write leaves any previous file intact.
func (w *Writer) WriteFile(path string, records []models.Record) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return apperrors.Wrap(apperrors.ErrorTypeDestination, err, "failed to create output directory")
		}
	}

	tempFile := path + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeDestination, err, "failed to create output file")
	}
	defer func() {
		if err != nil {
			os.Remove(tempFile)
		}
	}()

	rows, writeErr := w.WriteRecords(out, records)
	closeErr := out.Close()
	if writeErr != nil {
		return writeErr
	}
	if closeErr != nil {
		return apperrors.Wrap(apperrors.ErrorTypeDestination, closeErr, "failed to close output file")
	}

	if err := os.Rename(tempFile, path); err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeDestination, err, "failed to move output into place")
	}

	w.metrics.AddRows(rows)
	w.logger.InfoWithFields("Output written", map[string]interface{}{
		"path":    path,
		"rows":    rows,
		"columns": len(w.fields),
	})
	return nil
}

// Write writes records to destination with the given columns
func Write(records []models.Record, fields []string, destination string) error {
	w, err := NewWriter(fields, logger.NewNopLogger(), nil)
	if err != nil {
		return err
	}
	return w.WriteFile(destination, records)
}

// ReadFile parses an output file back into its header and field-keyed rows.
// Blank lines are skipped by the CSV reader.
func ReadFile(path string) ([]string, []map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("%s has no header row", path)
		}
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}

	var rows []map[string]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read row %d: %w", len(rows)+1, err)
		}

		row := make(map[string]string, len(header))
		for i, name := range header {
			row[name] = rec[i]
		}
		rows = append(rows, row)
	}

	return header, rows, nil
}
