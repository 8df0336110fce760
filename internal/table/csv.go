package table

import (
	"encoding/csv"
	"fmt"
	"io"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
)

// DecodeCSV reads a CSV stream whose first line is the header row.
func DecodeCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErrors.ErrDecode, err)
	}
	return fromRecords(records)
}
