package jsonrepair

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/yungbote/coursegen/internal/platform/apierr"
)

func TestRepairValidInputUnchanged(t *testing.T) {
	for _, in := range []string{
		`{}`,
		`{"title":"T","lessons":[{"title":"L1","steps":[]}]}`,
		`{"s":"braces { [ inside \" strings ] }","n":[1,2,{"x":null}]}`,
	} {
		out, note := Repair(in)
		if out != in || note.Changed() {
			t.Fatalf("Repair(%s): changed to %s (%s)", in, out, note)
		}
		p, err := Parse(in, false)
		if err != nil {
			t.Fatalf("Parse(%s): %v", in, err)
		}
		if p.WasRepaired || p.JSON != in {
			t.Fatalf("Parse(%s): wasRepaired=%v json=%s", in, p.WasRepaired, p.JSON)
		}
	}
}

func TestRepairClosesInReverseOpeningOrder(t *testing.T) {
	cases := map[string]string{
		`{"a":[1,{"b":[`:           `]}]}`,
		`{"a":{"b":{"c":1`:          `}}}`,
		`[{"a":"x]}"`:               `}]`,
		`{"title":"T","lessons":[`: `]}`,
	}
	for in, closers := range cases {
		out, note := Repair(in)
		if out != in+closers {
			t.Fatalf("Repair(%s): want=%s got=%s", in, in+closers, out)
		}
		if note.ClosedDelimiters != len(closers) {
			t.Fatalf("Repair(%s): closed want=%d got=%d", in, len(closers), note.ClosedDelimiters)
		}
		if !json.Valid([]byte(out)) {
			t.Fatalf("Repair(%s): result not valid JSON: %s", in, out)
		}
	}
}

func TestRepairClosesStringAndDropsComma(t *testing.T) {
	out, note := Repair(`{"title":"Photosynth`)
	if out != `{"title":"Photosynth"}` || !note.ClosedString {
		t.Fatalf("string close: got=%s note=%s", out, note)
	}

	out, note = Repair(`{"topics":["a","b", `)
	if out != `{"topics":["a","b"]}` || !note.DroppedComma {
		t.Fatalf("comma drop: got=%s note=%s", out, note)
	}

	out, _ = Repair(`{"q":"ends with escape \`)
	if !json.Valid([]byte(out)) {
		t.Fatalf("dangling escape: result not valid: %s", out)
	}
}

func TestParseTruncatedMidArray(t *testing.T) {
	p, err := Parse(`{"title":"T","lessons":[{"title":"L1","steps":[`, true)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !p.WasRepaired {
		t.Fatalf("expected wasRepaired=true")
	}
	var obj struct {
		Title   string `json:"title"`
		Lessons []struct {
			Title string `json:"title"`
		} `json:"lessons"`
	}
	if err := json.Unmarshal([]byte(p.JSON), &obj); err != nil {
		t.Fatalf("repaired json: %v", err)
	}
	if obj.Title != "T" || len(obj.Lessons) != 1 || obj.Lessons[0].Title != "L1" {
		t.Fatalf("repaired content: %+v", obj)
	}
	if !strings.Contains(p.Confidence, "closed 4 unbalanced delimiters") {
		t.Fatalf("confidence: got=%q", p.Confidence)
	}
}

func TestParseStripsFencesProseAndReasoning(t *testing.T) {
	text := "<thinking>I should use {braces} carefully</thinking>\nHere is your course:\n```json\n{\"title\":\"Cells\",\"lessons\":[]}\n```\nLet me know!"
	p, err := Parse(text, false)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.JSON != `{"title":"Cells","lessons":[]}` {
		t.Fatalf("json: got=%s", p.JSON)
	}
	if p.WasRepaired {
		t.Fatalf("fence stripping alone is not a repair")
	}
}

func TestParseKeepsBackticksInsideStrings(t *testing.T) {
	payload := `{"title":"Markdown","lessons":[{"title":"Fences","steps":[{"type":"explanation","content":"Open a block with ` + "```json" + ` and close it with ` + "```" + `."}]}]}`
	for name, text := range map[string]string{
		"bare":         payload,
		"fenced":       "```json\n" + payload + "\n```",
		"inline fence": "```json" + payload + "```",
	} {
		p, err := Parse(text, false)
		if err != nil {
			t.Fatalf("%s: Parse: %v", name, err)
		}
		if p.JSON != payload {
			t.Fatalf("%s: json: want=%s got=%s", name, payload, p.JSON)
		}
		var doc struct {
			Lessons []struct {
				Steps []struct {
					Content string `json:"content"`
				} `json:"steps"`
			} `json:"lessons"`
		}
		if err := json.Unmarshal([]byte(p.JSON), &doc); err != nil {
			t.Fatalf("%s: unmarshal: %v", name, err)
		}
		if got := doc.Lessons[0].Steps[0].Content; !strings.Contains(got, "```json") {
			t.Fatalf("%s: content lost its fence text: %q", name, got)
		}
	}
}

func TestParseFallsBackToLastCompleteObject(t *testing.T) {
	p, err := Parse(`{"lessons":[{"t":"a"},{"t":`, true)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.JSON != `{"lessons":[{"t":"a"}]}` {
		t.Fatalf("json: got=%s", p.JSON)
	}
}

func TestParseFailureReportsSizesOnly(t *testing.T) {
	text := `The model says: {"title": }`
	_, err := Parse(text, false)
	if apierr.KindOf(err) != apierr.KindParse {
		t.Fatalf("kind: want=%q got=%q", apierr.KindParse, apierr.KindOf(err))
	}
	var pf *ParseFailure
	if !errors.As(err, &pf) {
		t.Fatalf("expected *ParseFailure, got=%T", err)
	}
	if pf.RawLen != len(text) || pf.RepairedLen == 0 {
		t.Fatalf("sizes: raw=%d repaired=%d", pf.RawLen, pf.RepairedLen)
	}

	if _, err := Parse("no json here at all", false); apierr.KindOf(err) != apierr.KindParse {
		t.Fatalf("no object: kind=%q", apierr.KindOf(err))
	}
}
