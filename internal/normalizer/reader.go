package normalizer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"trades-api/internal/models"
)

const utf8BOM = "\ufeff"

// Reader yields rows from a CSV trade export. The first record is the header.
type Reader struct {
	csv    *csv.Reader
	header []string
	row    int
}

// NewReader reads and checks the header of r. A header missing any of the
// required columns fails the whole batch with ErrInput.
func NewReader(r io.Reader) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty CSV, header row expected", models.ErrInput)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable CSV header: %v", models.ErrInput, err)
	}

	names := make([]string, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		names[i] = strings.TrimSpace(name)
	}

	var missing []string
	for _, required := range RequiredColumns {
		if !contains(names, required) {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: CSV header is missing columns %s", models.ErrInput, strings.Join(missing, ", "))
	}

	return &Reader{csv: cr, header: names}, nil
}

// Header returns the normalized column names.
func (r *Reader) Header() []string {
	return r.header
}

// Next returns the next data row and its 1-based number. A malformed CSV
// line comes back as an ErrFormat error for that row only; reading can
// continue. io.EOF marks the end of input, any other error is fatal.
func (r *Reader) Next() (Row, int, error) {
	record, err := r.csv.Read()
	if err == io.EOF {
		return nil, 0, io.EOF
	}
	r.row++
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return nil, r.row, fmt.Errorf("%w: malformed CSV line %d: %v", models.ErrFormat, parseErr.Line, parseErr.Err)
		}
		return nil, r.row, err
	}

	row := make(Row, len(r.header))
	for i, name := range r.header {
		if i < len(record) {
			row[name] = record[i]
		}
	}
	return row, r.row, nil
}

// NormalizeStream reads every row of r and normalizes it. Row-level
// problems end up in the result; only a bad header or an I/O failure is
// returned as an error.
func (n Normalizer) NormalizeStream(r io.Reader) (BatchResult, error) {
	result := BatchResult{
		Trades: []models.Trade{},
		Errors: []models.RowError{},
	}

	reader, err := NewReader(r)
	if err != nil {
		return result, err
	}

	for {
		row, number, err := reader.Next()
		if err == io.EOF {
			return result, nil
		}
		if err != nil {
			if errors.Is(err, models.ErrFormat) {
				result.Errors = append(result.Errors, NewRowError(number, err))
				continue
			}
			return result, fmt.Errorf("failed to read CSV row %d: %w", number, err)
		}

		trade, err := n.NormalizeRow(row)
		if err != nil {
			result.Errors = append(result.Errors, NewRowError(number, err))
			continue
		}
		result.Trades = append(result.Trades, *trade)
	}
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
