package words

import "strings"

// Count returns the number of whitespace-delimited words in text.
// Empty or whitespace-only input counts as zero.
func Count(text string) int {
	return len(strings.Fields(text))
}
