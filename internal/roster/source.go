package roster

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// Source yields raw roster rows.
type Source interface {
	Rows(ctx context.Context) ([]Row, error)
}

// CSVSource reads a comma separated file with a header line.
type CSVSource struct {
	Path string
}

func (s CSVSource) Rows(ctx context.Context) ([]Row, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read roster %s: %w", s.Path, err)
	}
	return tableRows(records), nil
}

// XLSXSource reads one worksheet of an Excel workbook. An empty Sheet
// selects the first worksheet.
type XLSXSource struct {
	Path  string
	Sheet string
}

func (s XLSXSource) Rows(ctx context.Context) ([]Row, error) {
	f, err := excelize.OpenFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()

	sheet := s.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return tableRows(records), nil
}

// tableRows keys each record by the header in the first record and drops
// blank lines.
func tableRows(records [][]string) []Row {
	if len(records) == 0 {
		return nil
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}

	var rows []Row
	for _, rec := range records[1:] {
		row := make(Row, len(header))
		blank := true
		for i, h := range header {
			if h == "" || i >= len(rec) {
				continue
			}
			v := strings.TrimSpace(rec[i])
			if v != "" {
				blank = false
			}
			row[h] = v
		}
		if !blank {
			rows = append(rows, row)
		}
	}
	return rows
}

// RowsError collects the rows rejected by a Builder.
type RowsError struct {
	Errs []error
}

func (e *RowsError) Error() string {
	return errors.Join(e.Errs...).Error()
}

func (e *RowsError) Unwrap() []error {
	return e.Errs
}

// Load feeds every row of src through b. Bad rows are logged and skipped
// and reported together as a *RowsError; any other error means the source
// could not be read.
func Load(ctx context.Context, src Source, b *Builder, logger zerolog.Logger) error {
	rows, err := src.Rows(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for i, row := range rows {
		if _, err := b.AddRow(row); err != nil {
			logger.Warn().Err(err).Int("row", i+2).Msg("skipping roster row")
			errs = append(errs, fmt.Errorf("row %d: %w", i+2, err))
		}
	}
	logger.Info().
		Int("rows", len(rows)).
		Int("students", len(b.students)).
		Int("groups", b.Groups()).
		Msg("roster loaded")
	if len(errs) > 0 {
		return &RowsError{Errs: errs}
	}
	return nil
}
