package fetch

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/yungbote/coursegen/internal/platform/apierr"
	"github.com/yungbote/coursegen/internal/platform/httpx"
)

// Payload is what an origin returned: raw bytes and its declared type.
type Payload struct {
	Data  []byte
	Label string
}

// Source retrieves raw bytes for refs of one URL scheme.
type Source interface {
	Open(ctx context.Context, ref Ref, maxBytes int64) (Payload, error)
}

var errTooLarge = errors.New("payload exceeds size limit")

// HTTPSource fetches http and https refs.
type HTTPSource struct {
	Client *http.Client
}

func (s HTTPSource) Open(ctx context.Context, ref Ref, maxBytes int64) (Payload, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return Payload{}, apierr.New(apierr.KindInvalidResource, "", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Payload{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Payload{}, httpx.NewStatusError(resp, string(body))
	}
	data, err := ReadLimited(resp.Body, maxBytes)
	if err != nil {
		var ae *apierr.Error
		if errors.As(err, &ae) || ctx.Err() != nil {
			return Payload{}, err
		}
		// a body cut short is a connection failure, never a bad resource
		return Payload{}, apierr.New(apierr.KindTransport, "fetch.read", err)
	}
	return Payload{Data: data, Label: resp.Header.Get("Content-Type")}, nil
}

// ReadLimited reads r fully, failing with invalid_resource past maxBytes.
func ReadLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, apierr.New(apierr.KindInvalidResource, "", errTooLarge)
	}
	return data, nil
}

// DataURLSource decodes inline data: refs.
type DataURLSource struct{}

func (DataURLSource) Open(ctx context.Context, ref Ref, maxBytes int64) (Payload, error) {
	raw := strings.TrimPrefix(ref.URL, "data:")
	meta, body, ok := strings.Cut(raw, ",")
	if !ok {
		return Payload{}, apierr.Newf(apierr.KindInvalidResource, "", "malformed data url")
	}
	label, isB64 := strings.CutSuffix(meta, ";base64")
	var data []byte
	if isB64 {
		d, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return Payload{}, apierr.New(apierr.KindInvalidResource, "", fmt.Errorf("decode data url: %w", err))
		}
		data = d
	} else {
		s, err := url.PathUnescape(body)
		if err != nil {
			return Payload{}, apierr.New(apierr.KindInvalidResource, "", err)
		}
		data = []byte(s)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return Payload{}, apierr.New(apierr.KindInvalidResource, "", errTooLarge)
	}
	return Payload{Data: data, Label: label}, nil
}

func schemeOf(raw string) string {
	if strings.HasPrefix(raw, "data:") {
		return "data"
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Scheme)
}

// redactURL drops query strings, which often carry signed credentials.
func redactURL(raw string) string {
	if strings.HasPrefix(raw, "data:") {
		meta, _, _ := strings.Cut(raw, ",")
		return meta + ",..."
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}

func kindString(err error) string {
	if err == nil {
		return ""
	}
	return string(apierr.KindOf(err))
}
