package prompts

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Validator func(Input) error

type Template struct {
	Name       PromptName
	Version    int
	SchemaName string
	Schema     func() map[string]any
	System     func(Input) string
	User       func(Input) string
	Validate   Validator
}

var registry = map[PromptName]Template{}

// Register registers a compiled Template.
func Register(t Template) {
	registry[t.Name] = t
}

// Build renders a registered prompt. The output schema is appended to the
// system text so any chat model can follow it.
func Build(name PromptName, in Input) (Prompt, error) {
	t, ok := registry[name]
	if !ok {
		return Prompt{}, fmt.Errorf("unknown prompt: %s", string(name))
	}
	if t.Schema == nil {
		return Prompt{}, fmt.Errorf("prompt %s missing schema", string(name))
	}
	if t.System == nil || t.User == nil {
		return Prompt{}, fmt.Errorf("prompt %s missing system/user renderers", string(name))
	}
	if t.Validate != nil {
		if err := t.Validate(in); err != nil {
			return Prompt{}, fmt.Errorf("%s: %w", string(name), err)
		}
	}

	schema := t.Schema()
	sys := strings.TrimSpace(t.System(in))
	if b, err := json.Marshal(schema); err == nil {
		sys += "\n\nRespond with a single JSON object matching this schema (" + t.SchemaName + "):\n" + string(b)
	}
	return Prompt{
		Name:       string(t.Name),
		Version:    t.Version,
		SchemaName: strings.TrimSpace(t.SchemaName),
		Schema:     schema,
		System:     sys,
		User:       strings.TrimSpace(t.User(in)),
	}, nil
}

// Builder exposes the registry as a value so callers can inject their own.
type Builder struct{}

func (Builder) Build(name PromptName, in Input) (Prompt, error) {
	return Build(name, in)
}
