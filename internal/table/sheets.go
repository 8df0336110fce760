package table

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/sheets/v4"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
)

const sheetsScheme = "sheets://"

// defaultSheetsRange covers the first sheet when a ref names no range.
const defaultSheetsRange = "A:ZZ"

// SheetsDecoder reads tables straight from Google Sheets.
// Refs look like sheets://<spreadsheetID>/<A1 range>.
type SheetsDecoder struct {
	Service *sheets.Service
}

func (d *SheetsDecoder) Decode(ctx context.Context, ref string) (*Table, error) {
	id, rng, err := parseSheetsRef(ref)
	if err != nil {
		return nil, err
	}

	resp, err := d.Service.Spreadsheets.Values.Get(id, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: sheets: %v", appErrors.ErrDecode, err)
	}

	records := make([][]string, len(resp.Values))
	for i, line := range resp.Values {
		rec := make([]string, len(line))
		for j, cell := range line {
			rec[j] = fmt.Sprint(cell)
		}
		records[i] = rec
	}
	return fromRecords(records)
}

func parseSheetsRef(ref string) (id, rng string, err error) {
	rest := strings.TrimPrefix(ref, sheetsScheme)
	id, rng, _ = strings.Cut(rest, "/")
	if id == "" {
		return "", "", fmt.Errorf("%w: invalid sheets ref %q", appErrors.ErrDecode, ref)
	}
	if rng == "" {
		rng = defaultSheetsRange
	}
	return id, rng, nil
}
