package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// FormatError is a fatal input error: the source dataset could not be parsed
// as delimited text. It aborts the whole transform request.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("source data: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("source data: %s", e.Reason)
}

func (e *FormatError) Unwrap() error { return e.Err }

// ValidSourceName reports whether a source filename has a supported
// extension. Source datasets arrive as pipe-delimited .csv or .txt.
func ValidSourceName(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".csv") || strings.HasSuffix(lower, ".txt")
}

// ReadDelimited reads a delimited-text dataset whose first row is the
// header. Records shorter than the header are padded with empty values;
// longer records are a format error.
func ReadDelimited(r io.Reader, delimiter rune) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, &FormatError{Reason: "unparseable delimited text", Err: err}
	}
	if len(records) == 0 {
		return nil, &FormatError{Reason: "missing header row"}
	}

	header := records[0]
	cols := make([][]string, len(header))
	for _, rec := range records[1:] {
		if len(rec) > len(header) {
			return nil, &FormatError{
				Reason: fmt.Sprintf("record has %d fields, header has %d", len(rec), len(header)),
			}
		}
		for i := range header {
			v := ""
			if i < len(rec) {
				v = rec[i]
			}
			cols[i] = append(cols[i], v)
		}
	}

	t := New()
	for i, name := range header {
		t.SetColumn(name, cols[i])
	}
	return t, nil
}

// WriteCSV serializes the table as comma-delimited text with a header row of
// column names in assignment order. Columns shorter than the table's row
// count are padded with empty values.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.names); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	rows := t.RowCount()
	record := make([]string, len(t.names))
	for i := 0; i < rows; i++ {
		for j, name := range t.names {
			record[j] = t.Cell(name, i)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
