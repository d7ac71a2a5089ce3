package briefing

import (
	"regexp"
	"strings"
)

// codeFenceRe matches a reply wrapped entirely in a Markdown code fence,
// with or without a language tag.
var codeFenceRe = regexp.MustCompile("(?si)^```(?:json)?\\s*(.*?)\\s*```$")

// stripCodeFences removes a surrounding Markdown code fence from a model
// reply. Models often wrap JSON output in ```json ... ``` despite
// instructions not to.
func stripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if m := codeFenceRe.FindStringSubmatch(trimmed); m != nil {
		return m[1]
	}
	return trimmed
}

// truncate shortens s to at most n characters, appending an ellipsis marker
// when content was dropped.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
