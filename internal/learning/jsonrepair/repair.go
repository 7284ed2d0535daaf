package jsonrepair

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/coursegen/internal/platform/apierr"
)

// Note describes what Repair changed.
type Note struct {
	ClosedDelimiters int
	ClosedString     bool
	DroppedComma     bool
}

func (n Note) Changed() bool {
	return n.ClosedDelimiters > 0 || n.ClosedString || n.DroppedComma
}

func (n Note) String() string {
	if !n.Changed() {
		return "no repair needed"
	}
	parts := make([]string, 0, 3)
	if n.ClosedString {
		parts = append(parts, "closed unterminated string")
	}
	if n.DroppedComma {
		parts = append(parts, "dropped trailing comma")
	}
	if n.ClosedDelimiters > 0 {
		parts = append(parts, fmt.Sprintf("closed %d unbalanced delimiters", n.ClosedDelimiters))
	}
	return strings.Join(parts, "; ")
}

// Repair scans s tracking string state and open brackets, closes an
// unterminated string, drops one dangling comma, and appends the missing
// closers innermost first.
func Repair(s string) (string, Note) {
	var (
		note     Note
		stack    []byte
		inString bool
		escaped  bool
	)
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if n := len(stack); n > 0 && stack[n-1] == ch {
				stack = stack[:n-1]
			}
		}
	}

	out := s
	if inString {
		if escaped {
			out = out[:len(out)-1]
		}
		out += `"`
		note.ClosedString = true
	}

	trimmed := strings.TrimRight(out, " \t\r\n")
	if strings.HasSuffix(trimmed, ",") {
		trimmed = strings.TrimRight(strings.TrimSuffix(trimmed, ","), " \t\r\n")
		note.DroppedComma = true
		out = trimmed
	}

	if len(stack) > 0 {
		var b strings.Builder
		b.Grow(len(out) + len(stack))
		b.WriteString(out)
		for i := len(stack) - 1; i >= 0; i-- {
			b.WriteByte(stack[i])
		}
		out = b.String()
		note.ClosedDelimiters = len(stack)
	}
	return out, note
}

// Payload is text believed to be valid JSON after extraction and repair.
type Payload struct {
	JSON        string
	WasRepaired bool
	Confidence  string
	RawLen      int
	RepairedLen int
}

// ParseFailure keeps sizes for diagnostics; the text itself is never exposed.
type ParseFailure struct {
	RawLen      int
	RepairedLen int
	Cause       error
}

func (e *ParseFailure) Error() string {
	return fmt.Sprintf("structured output unrecoverable (raw %d bytes, repaired %d bytes): %v", e.RawLen, e.RepairedLen, e.Cause)
}

func (e *ParseFailure) Unwrap() error { return e.Cause }

var errNoObject = errors.New("no JSON object found")

// Parse extracts and, when needed, repairs the JSON object in text. Repair is
// attempted when the stream was truncated or the candidate does not end in a
// closing brace, and always before a parse failure is reported.
func Parse(text string, truncated bool) (Payload, error) {
	raw := len(text)
	cands, ok := Extract(text)
	if !ok {
		return Payload{RawLen: raw}, apierr.New(apierr.KindParse, "extract", &ParseFailure{RawLen: raw, Cause: errNoObject})
	}

	if !truncated && cands.Span != "" && json.Valid([]byte(cands.Span)) {
		return Payload{JSON: cands.Span, Confidence: Note{}.String(), RawLen: raw, RepairedLen: len(cands.Span)}, nil
	}

	order := []string{cands.Tail, cands.Span}
	if !truncated && strings.HasSuffix(cands.Tail, "}") {
		order = []string{cands.Span, cands.Tail}
	}

	var (
		lastErr error
		lastLen int
		tried   = map[string]bool{}
	)
	for _, cand := range order {
		if cand == "" || tried[cand] {
			continue
		}
		tried[cand] = true
		fixed, note := Repair(cand)
		lastLen = len(fixed)
		var probe any
		if err := json.Unmarshal([]byte(fixed), &probe); err != nil {
			lastErr = err
			continue
		}
		if _, isObj := probe.(map[string]any); !isObj {
			lastErr = errNoObject
			continue
		}
		return Payload{
			JSON:        fixed,
			WasRepaired: note.Changed() || fixed != cands.Span,
			Confidence:  note.String(),
			RawLen:      raw,
			RepairedLen: len(fixed),
		}, nil
	}
	return Payload{RawLen: raw, RepairedLen: lastLen}, apierr.New(apierr.KindParse, "repair", &ParseFailure{RawLen: raw, RepairedLen: lastLen, Cause: lastErr})
}
