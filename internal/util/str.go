package util

import "strings"

// CleanText collapses runs of whitespace (non-breaking spaces included) into
// single spaces and trims the ends.
func CleanText(input string) string {
	var result string
	result = input

	result = strings.ReplaceAll(result, "\u00a0", " ")
	result = strings.ReplaceAll(result, "&nbsp;", " ")
	result = strings.ReplaceAll(result, "&#160;", " ")

	result = strings.Join(strings.Fields(result), " ")

	return result
}

// SplitList splits a comma separated list, dropping blank entries.
func SplitList(input string) []string {
	parts := strings.Split(input, ",")

	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		result = append(result, p)
	}

	return result
}
