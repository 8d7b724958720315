package util

import "strings"

// ParseCommaSeparated splits raw on commas, trims whitespace from each
// piece, and drops empty results — used by the CLI's --tags flags.
func ParseCommaSeparated(raw string) []string {
	res := make([]string, 0, 8)

	split := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' })
	for _, s := range split {
		if l := strings.TrimSpace(s); len(l) > 0 {
			res = append(res, l)
		}
	}

	return res
}
