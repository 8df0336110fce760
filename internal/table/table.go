// Package table turns uploaded recipient files into ordered rows of named cells.
package table

import (
	"context"
	"fmt"
	"strings"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
	"github.com/unclebandit/mailblast-backend/internal/model"
)

// Row maps a column header to its cell value. A nil value is an empty cell.
type Row map[string]any

// Lookup finds key in the row ignoring case, preferring an exact match.
func (r Row) Lookup(key string) (any, bool) {
	if v, ok := r[key]; ok {
		return v, true
	}
	for k, v := range r {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

// String returns the cell for key as a string; nil or missing cells are "".
func (r Row) String(key string) string {
	v, ok := r.Lookup(key)
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// Table is a decoded recipient table. Headers keep file order, Rows keep line order.
type Table struct {
	Headers []string
	Rows    []Row
}

// Decoder loads the table a campaign refers to.
type Decoder interface {
	Decode(ctx context.Context, ref string) (*Table, error)
}

// fromRecords builds a Table from a header line followed by data lines.
// Blank data lines are skipped and empty cells become nil.
func fromRecords(records [][]string) (*Table, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no header row", appErrors.ErrDecode)
	}

	headers := make([]string, len(records[0]))
	seen := make(map[string]bool, len(headers))
	for i, h := range records[0] {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			return nil, fmt.Errorf("%w: column %d has an empty header", appErrors.ErrDecode, i+1)
		}
		lower := strings.ToLower(h)
		if seen[lower] {
			return nil, fmt.Errorf("%w: duplicate column %q", appErrors.ErrDecode, h)
		}
		seen[lower] = true
		headers[i] = h
	}

	t := &Table{Headers: headers, Rows: make([]Row, 0, len(records)-1)}
	for _, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		row := make(Row, len(headers))
		for i, h := range headers {
			if i < len(rec) && strings.TrimSpace(rec[i]) != "" {
				row[h] = rec[i]
			} else {
				row[h] = nil
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ApplyMappings renames headers so that mapped columns carry their template tag name.
// A rename that lands on another column's name is a decode error.
func ApplyMappings(t *Table, mappings []model.TagMapping) (*Table, error) {
	if len(mappings) == 0 {
		return t, nil
	}

	rename := make(map[string]string, len(mappings))
	for _, m := range mappings {
		rename[strings.ToLower(m.TableHeader)] = m.TemplateTag
	}

	out := &Table{Headers: make([]string, len(t.Headers)), Rows: make([]Row, len(t.Rows))}
	owner := make(map[string]string, len(t.Headers))
	for i, h := range t.Headers {
		name := h
		if tag, ok := rename[strings.ToLower(h)]; ok {
			name = tag
		}
		key := strings.ToLower(name)
		if prev, dup := owner[key]; dup {
			return nil, fmt.Errorf("%w: columns %q and %q both map to %q", appErrors.ErrDecode, prev, h, name)
		}
		owner[key] = h
		out.Headers[i] = name
	}
	for i, row := range t.Rows {
		nr := make(Row, len(row))
		for j, h := range t.Headers {
			nr[out.Headers[j]] = row[h]
		}
		out.Rows[i] = nr
	}
	return out, nil
}
