package fetch

import (
	"encoding/base64"
	"time"

	"github.com/yungbote/coursegen/internal/learning/media"
)

// Ref points at an auxiliary resource, usually a page image.
type Ref struct {
	URL string `json:"url"`
	// Label is the caller's declared content type. It is advisory only.
	Label string `json:"label,omitempty"`
}

// Encoded is a validated, sendable resource.
type Encoded struct {
	Type      media.Type
	MIME      string
	Data      []byte
	Converted bool
	FromCache bool
}

func (e Encoded) DataURL() string {
	return "data:" + e.MIME + ";base64," + base64.StdEncoding.EncodeToString(e.Data)
}

// Result is either a success (Err == nil) or a failure for the ref at
// SourceIndex in the input.
type Result struct {
	SourceIndex int
	Ref         Ref
	Value       Encoded
	Err         error
	Elapsed     time.Duration
}

func (r Result) OK() bool { return r.Err == nil }

// Failure is one entry of a batch failure manifest.
type Failure struct {
	SourceIndex int    `json:"source_index"`
	URL         string `json:"url"`
	Kind        string `json:"kind"`
}

// Batch holds one Result per input ref, in input order.
type Batch struct {
	Results   []Result
	Succeeded int
	Failed    int
}

func (b Batch) Successes() []Result {
	out := make([]Result, 0, b.Succeeded)
	for _, r := range b.Results {
		if r.OK() {
			out = append(out, r)
		}
	}
	return out
}

func (b Batch) Failures() []Failure {
	out := make([]Failure, 0, b.Failed)
	for _, r := range b.Results {
		if r.OK() {
			continue
		}
		out = append(out, Failure{SourceIndex: r.SourceIndex, URL: redactURL(r.Ref.URL), Kind: kindString(r.Err)})
	}
	return out
}
