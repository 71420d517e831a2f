package channels

import "strings"

// SplitMessage breaks content into chunks of at most limit runes, preferring
// to cut after a newline, then after a space. limit <= 0 disables splitting.
func SplitMessage(content string, limit int) []string {
	runes := []rune(content)
	if limit <= 0 || len(runes) <= limit {
		return []string{content}
	}

	var chunks []string
	for len(runes) > limit {
		cut := limit
		window := string(runes[:limit])
		if i := strings.LastIndex(window, "\n"); i > 0 {
			cut = len([]rune(window[:i])) + 1
		} else if i := strings.LastIndex(window, " "); i > 0 {
			cut = len([]rune(window[:i])) + 1
		}
		chunks = append(chunks, strings.TrimRight(string(runes[:cut]), " \n"))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
