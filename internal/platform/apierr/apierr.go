// Package apierr is the error taxonomy shared by the generation pipeline.
// Errors are classified once, where they enter the pipeline, and carried as
// *Error so the retry loop and the caller-facing layer only inspect Kind.
package apierr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"
)

type Kind string

const (
	KindRateLimited     Kind = "rate_limited"
	KindInvalidResource Kind = "invalid_resource"
	KindParse           Kind = "parse_error"
	KindTransport       Kind = "transport_error"
	KindConfig          Kind = "config_error"
	KindEmptyResult     Kind = "empty_result"
	KindTimeout         Kind = "timeout"
	KindSchema          Kind = "schema_error"
	KindInvalidRequest  Kind = "invalid_request"
	KindCanceled        Kind = "canceled"
	KindInternal        Kind = "internal"
)

type Error struct {
	Kind Kind
	// Op names the pipeline step that failed, e.g. "fetch" or "progressive.initial".
	Op     string
	Status int
	// Attempts is the number of attempts made before the error was returned.
	Attempts int
	// Exhausted is set when the retry budget ran out, as opposed to an
	// immediate, non-retryable failure.
	Exhausted bool
	// RetryAfter is the upstream's requested wait before the next attempt.
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	if e.Exhausted {
		fmt.Fprintf(&b, " after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Retryable() bool {
	if e == nil {
		return false
	}
	switch e.Kind {
	case KindRateLimited, KindTransport, KindTimeout:
		return true
	default:
		return false
	}
}

func (e *Error) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.Status
}

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Newf(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// HTTPStatusCoder is implemented by transport errors that carry a status.
type HTTPStatusCoder interface {
	HTTPStatusCode() int
}

// RetryAfterHinter is implemented by errors that carry an upstream
// Retry-After value.
type RetryAfterHinter interface {
	RetryAfterHint() time.Duration
}

// KindForStatus maps an upstream HTTP status to a Kind.
func KindForStatus(code int) Kind {
	switch {
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return KindTimeout
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindConfig
	case code >= 500 && code <= 599:
		// includes 529 "overloaded"
		return KindTransport
	case code >= 400 && code <= 499:
		return KindInvalidRequest
	default:
		return KindTransport
	}
}

// Classify returns err as an *Error, deriving a Kind when err is not one
// already. A nil err yields nil.
func Classify(op string, err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	out := &Error{Op: op, Err: err}
	switch {
	case errors.Is(err, context.Canceled):
		out.Kind = KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		out.Kind = KindTimeout
	default:
		var sc HTTPStatusCoder
		var netErr net.Error
		switch {
		case errors.As(err, &sc) && sc.HTTPStatusCode() != 0:
			out.Status = sc.HTTPStatusCode()
			out.Kind = KindForStatus(out.Status)
		case errors.As(err, &netErr) && netErr.Timeout():
			out.Kind = KindTimeout
		case errors.As(err, &netErr), IsConnectionDrop(err):
			out.Kind = KindTransport
		default:
			out.Kind = KindInternal
		}
	}
	var ra RetryAfterHinter
	if errors.As(err, &ra) {
		out.RetryAfter = ra.RetryAfterHint()
	}
	return out
}

// IsConnectionDrop reports errors produced when the peer goes away
// mid-exchange, such as a body or stream cut short.
func IsConnectionDrop(err error) bool {
	return errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNREFUSED)
}

func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return Classify("", err).Kind
}

func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return Classify("", err).Retryable()
}

// GaveUp reports whether err is the result of an exhausted retry budget.
func GaveUp(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Exhausted
}

var userMessages = map[Kind]string{
	KindRateLimited:     "The generation service is busy right now, please try again in a minute.",
	KindInvalidResource: "One or more of your uploaded files could not be read, please re-upload them as JPEG or PNG.",
	KindParse:           "The generated course came back incomplete, please try again.",
	KindTransport:       "We lost the connection to the generation service, please try again.",
	KindConfig:          "The generation service is not configured correctly, please contact support.",
	KindEmptyResult:     "No course content could be generated from this material, please try different material.",
	KindTimeout:         "Generation took too long, please try again with less material.",
	KindSchema:          "The generated course was missing required parts, please try again.",
	KindInvalidRequest:  "This request could not be processed, please check your material and try again.",
	KindCanceled:        "Generation was canceled.",
}

// UserMessage returns a short caller-facing sentence for err. Upstream bodies
// and internal detail never appear in it.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if msg, ok := userMessages[KindOf(err)]; ok {
		return msg
	}
	return "Something went wrong while generating your course, please try again."
}
