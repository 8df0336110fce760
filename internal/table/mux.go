package table

import (
	"context"
	"fmt"
	"strings"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
)

// Mux routes a ref to the decoder for its scheme. Refs without a known scheme go to Files.
type Mux struct {
	Files  Decoder
	Sheets Decoder
}

func (m *Mux) Decode(ctx context.Context, ref string) (*Table, error) {
	if strings.HasPrefix(ref, sheetsScheme) {
		if m.Sheets == nil {
			return nil, fmt.Errorf("%w: google sheets tables are not configured", appErrors.ErrDecode)
		}
		return m.Sheets.Decode(ctx, ref)
	}
	if m.Files == nil {
		return nil, fmt.Errorf("%w: file tables are not configured", appErrors.ErrDecode)
	}
	return m.Files.Decode(ctx, ref)
}
