// Package jsonrepair pulls a JSON object out of noisy model text and heals
// truncation by closing unbalanced delimiters. It never invents values.
package jsonrepair

import (
	"regexp"
	"strings"
)

var (
	reasoningBlockRE = regexp.MustCompile(`(?is)<(?:thinking|think|reasoning)>.*?</(?:thinking|think|reasoning)>`)
	// An unterminated reasoning block swallows everything up to the first brace.
	openReasoningRE = regexp.MustCompile(`(?is)<(?:thinking|think|reasoning)>[^{]*`)
	fenceOpenRE     = regexp.MustCompile("(?m)^\\s*```[a-zA-Z0-9_-]*\\s*$")
	// Fences sharing a line with the payload count only at a line edge, so
	// backticks inside string values survive.
	fenceLeadRE  = regexp.MustCompile("(?m)^[ \t]*```(?:json|JSON)?")
	fenceTrailRE = regexp.MustCompile("(?m)```(?:json|JSON)?[ \t]*$")
)

// stripWrapping removes reasoning tags and code fence markers.
func stripWrapping(text string) string {
	s := reasoningBlockRE.ReplaceAllString(text, "")
	s = openReasoningRE.ReplaceAllString(s, "")
	s = fenceOpenRE.ReplaceAllString(s, "")
	s = fenceLeadRE.ReplaceAllString(s, "")
	s = fenceTrailRE.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Candidates holds the spans worth trying, in preference order.
type Candidates struct {
	// Span is first '{' through last '}'.
	Span string
	// Tail is first '{' through end of text, for output cut off mid-object.
	Tail string
}

// Extract locates the outermost object-looking span in text.
func Extract(text string) (Candidates, bool) {
	s := stripWrapping(text)
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return Candidates{}, false
	}
	var c Candidates
	c.Tail = strings.TrimSpace(s[start:])
	if end := strings.LastIndexByte(s, '}'); end > start {
		c.Span = s[start : end+1]
	}
	return c, true
}
