package template

import (
	"fmt"
	"strings"

	"github.com/unclebandit/mailblast-backend/internal/table"
)

// Render substitutes every tag in tpl with the row value of the same name,
// matched without regard to case. Missing and nil values render as "".
// Values are inserted verbatim; nothing is HTML-escaped.
func Render(tpl string, row table.Row) string {
	return tagPattern.ReplaceAllStringFunc(tpl, func(match string) string {
		name := strings.TrimSpace(tagPattern.FindStringSubmatch(match)[1])
		if name == "" {
			return match
		}
		v, ok := row.Lookup(name)
		if !ok || v == nil {
			return ""
		}
		return fmt.Sprint(v)
	})
}
