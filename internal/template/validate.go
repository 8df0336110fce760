package template

import (
	"strings"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
)

// DefaultEmailColumn is the header that carries the recipient address.
const DefaultEmailColumn = "email"

// Validate checks tags against headers using the default email column.
func Validate(tags []string, headers []string) error {
	return ValidateWithEmailColumn(tags, headers, DefaultEmailColumn)
}

// ValidateWithEmailColumn requires the email column to exist and every other
// header to match exactly one tag, ignoring case, and the reverse.
func ValidateWithEmailColumn(tags []string, headers []string, emailColumn string) error {
	emailKey := strings.ToLower(strings.TrimSpace(emailColumn))
	if emailKey == "" {
		emailKey = DefaultEmailColumn
	}

	byLower := make(map[string]string, len(headers))
	for _, h := range headers {
		byLower[strings.ToLower(h)] = h
	}
	if _, ok := byLower[emailKey]; !ok {
		return appErrors.ErrMissingEmailColumn
	}

	tagSet := make(map[string]bool, len(tags))
	for _, t := range tags {
		tagSet[strings.ToLower(t)] = true
	}

	mismatch := &appErrors.SchemaMismatchError{}
	for _, t := range tags {
		if _, ok := byLower[strings.ToLower(t)]; !ok {
			mismatch.MissingInTable = append(mismatch.MissingInTable, t)
		}
	}
	for _, h := range headers {
		lower := strings.ToLower(h)
		if lower == emailKey || tagSet[lower] {
			continue
		}
		mismatch.MissingInTemplate = append(mismatch.MissingInTemplate, h)
	}

	if len(mismatch.MissingInTable) > 0 || len(mismatch.MissingInTemplate) > 0 {
		return mismatch
	}
	return nil
}
