// Package template handles the {{ tag }} placeholders in campaign HTML bodies.
package template

import (
	"regexp"
	"sort"
	"strings"
)

var tagPattern = regexp.MustCompile(`\{\{\s*(.*?)\s*\}\}`)

// ExtractTags returns the distinct placeholder names in tpl, sorted.
// Empty placeholders such as "{{ }}" are not tags.
func ExtractTags(tpl string) []string {
	seen := map[string]bool{}
	tags := []string{}
	for _, m := range tagPattern.FindAllStringSubmatch(tpl, -1) {
		name := strings.TrimSpace(m[1])
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		tags = append(tags, name)
	}
	sort.Strings(tags)
	return tags
}
