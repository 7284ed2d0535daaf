package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var ErrUnsupportedConversion = errors.New("media: no converter for type")

// Converter turns a NeedsConversion payload into a Sendable one.
type Converter interface {
	Convert(ctx context.Context, t Type, data []byte) ([]byte, Type, error)
}

// StdConverter re-encodes BMP and TIFF as PNG. HEIC has no pure-Go decoder
// here, so it reports ErrUnsupportedConversion.
type StdConverter struct{}

func (StdConverter) Convert(ctx context.Context, t Type, data []byte) ([]byte, Type, error) {
	if err := ctx.Err(); err != nil {
		return nil, Unknown, err
	}
	var (
		img image.Image
		err error
	)
	switch t {
	case BMP:
		img, err = bmp.Decode(bytes.NewReader(data))
	case TIFF:
		img, err = tiff.Decode(bytes.NewReader(data))
	default:
		return nil, Unknown, fmt.Errorf("%w: %s", ErrUnsupportedConversion, t)
	}
	if err != nil {
		return nil, Unknown, fmt.Errorf("decode %s: %w", t, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, Unknown, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), PNG, nil
}

// Validate checks that a Sendable payload decodes to a non-empty image.
func Validate(data []byte) (Type, error) {
	t := Detect(data)
	if !t.Sendable() {
		return t, fmt.Errorf("media: %s is not sendable", t)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return t, fmt.Errorf("media: decode %s header: %w", t, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return t, fmt.Errorf("media: %s has empty dimensions %dx%d", t, cfg.Width, cfg.Height)
	}
	return t, nil
}
