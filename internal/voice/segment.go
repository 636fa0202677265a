package voice

import "strings"

// SplitSentences breaks reply text into speakable fragments. A fragment
// ends at a newline or at sentence punctuation followed by whitespace, so
// decimals like "3.5" stay intact. Fragments keep their terminal
// punctuation; whitespace-only fragments are dropped.
func SplitSentences(text string) []string {
	var (
		out []string
		cur strings.Builder
	)

	flush := func() {
		s := strings.TrimSpace(cur.String())
		cur.Reset()
		if s != "" {
			out = append(out, s)
		}
	}

	for _, r := range text {
		if r == '\n' {
			flush()
			continue
		}
		if (r == ' ' || r == '\t') && endsSentence(cur.String()) {
			flush()
			continue
		}
		cur.WriteRune(r)
	}
	flush()
	return out
}

func endsSentence(s string) bool {
	if s == "" {
		return false
	}
	switch s[len(s)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}
