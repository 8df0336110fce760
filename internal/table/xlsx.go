package table

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
)

// DecodeXLSX reads the first worksheet of a workbook.
func DecodeXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErrors.ErrDecode, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", appErrors.ErrDecode)
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErrors.ErrDecode, err)
	}
	return fromRecords(records)
}
