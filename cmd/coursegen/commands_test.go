package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/yungbote/coursegen/internal/platform/apierr"
)

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestReadCarryOverAcceptsBareAndResultShapes(t *testing.T) {
	bare := writeTemp(t, "co.json", `{"documentSummary":"s","lessonOutline":[{"index":0,"title":"A"},{"index":1,"title":"B"}]}`)
	co, title, err := readCarryOver(bare)
	if err != nil {
		t.Fatalf("bare: %v", err)
	}
	if len(co.LessonOutline) != 2 || title != "" {
		t.Fatalf("bare: outline=%d title=%q", len(co.LessonOutline), title)
	}

	result := writeTemp(t, "result.json", `{"mode":"progressive","artifact":{"title":"Cells","lessons":[]},
"carry_over":{"documentSummary":"s","lessonOutline":[{"index":0,"title":"A"},{"index":1,"title":"B"},{"index":2,"title":"C"}]}}`)
	co, title, err = readCarryOver(result)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if len(co.LessonOutline) != 3 || title != "Cells" || co.DocumentSummary != "s" {
		t.Fatalf("result: outline=%d title=%q summary=%q", len(co.LessonOutline), title, co.DocumentSummary)
	}
}

func TestReadCarryOverRejectsMissingOutline(t *testing.T) {
	path := writeTemp(t, "empty.json", `{"documentSummary":"s"}`)
	if _, _, err := readCarryOver(path); apierr.KindOf(err) != apierr.KindInvalidRequest {
		t.Fatalf("want invalid_request got=%v", err)
	}
}

func TestGeneratePromptFromFiles(t *testing.T) {
	cmd := GenerateCmd{
		System:   "inline system",
		UserFile: writeTemp(t, "user.txt", "Teach osmosis."),
	}
	p, err := cmd.prompt()
	if err != nil {
		t.Fatalf("prompt: %v", err)
	}
	if p.System != "inline system" || p.User != "Teach osmosis." {
		t.Fatalf("prompt: got=%+v", p)
	}
	cmd.SystemFile = filepath.Join(t.TempDir(), "missing.txt")
	if _, err := cmd.prompt(); apierr.KindOf(err) != apierr.KindInvalidRequest {
		t.Fatalf("missing file: want invalid_request got=%v", err)
	}
}
