// Package media identifies image payloads by their leading bytes and
// converts formats the model endpoint does not accept.
package media

import (
	"bytes"
)

type Type string

const (
	Unknown Type = ""
	JPEG    Type = "jpeg"
	PNG     Type = "png"
	GIF     Type = "gif"
	WebP    Type = "webp"
	BMP     Type = "bmp"
	TIFF    Type = "tiff"
	HEIC    Type = "heic"
)

var mimeByType = map[Type]string{
	JPEG: "image/jpeg",
	PNG:  "image/png",
	GIF:  "image/gif",
	WebP: "image/webp",
	BMP:  "image/bmp",
	TIFF: "image/tiff",
	HEIC: "image/heic",
}

func (t Type) MIME() string { return mimeByType[t] }

func (t Type) String() string {
	if t == Unknown {
		return "unknown"
	}
	return string(t)
}

// NeedsConversion reports types that must be re-encoded before sending.
func (t Type) NeedsConversion() bool {
	switch t {
	case BMP, TIFF, HEIC:
		return true
	default:
		return false
	}
}

// Sendable reports types the model endpoint accepts as-is.
func (t Type) Sendable() bool {
	switch t {
	case JPEG, PNG, GIF, WebP:
		return true
	default:
		return false
	}
}

var (
	sigJPEG   = []byte{0xFF, 0xD8, 0xFF}
	sigPNG    = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	sigGIF87  = []byte("GIF87a")
	sigGIF89  = []byte("GIF89a")
	sigRIFF   = []byte("RIFF")
	sigWEBP   = []byte("WEBP")
	sigBMP    = []byte("BM")
	sigTIFFLE = []byte{'I', 'I', 0x2A, 0x00}
	sigTIFFBE = []byte{'M', 'M', 0x00, 0x2A}
	sigFTYP   = []byte("ftyp")
)

var heifBrands = [][]byte{
	[]byte("heic"), []byte("heix"), []byte("hevc"), []byte("hevx"),
	[]byte("heim"), []byte("heis"), []byte("mif1"), []byte("msf1"),
}

// Detect returns the media type of b from its signature alone. Declared
// content types are never consulted. Unmatched input is Unknown.
func Detect(b []byte) Type {
	switch {
	case bytes.HasPrefix(b, sigJPEG):
		return JPEG
	case bytes.HasPrefix(b, sigPNG):
		return PNG
	case bytes.HasPrefix(b, sigGIF87), bytes.HasPrefix(b, sigGIF89):
		return GIF
	case len(b) >= 12 && bytes.Equal(b[0:4], sigRIFF) && bytes.Equal(b[8:12], sigWEBP):
		return WebP
	case bytes.HasPrefix(b, sigTIFFLE), bytes.HasPrefix(b, sigTIFFBE):
		return TIFF
	case isHEIF(b):
		return HEIC
	case isBMP(b):
		return BMP
	}
	return Unknown
}

// ISO-BMFF: 4-byte box size, "ftyp", 4-byte major brand.
func isHEIF(b []byte) bool {
	if len(b) < 12 || !bytes.Equal(b[4:8], sigFTYP) {
		return false
	}
	brand := b[8:12]
	for _, hb := range heifBrands {
		if bytes.Equal(brand, hb) {
			return true
		}
	}
	return false
}

// "BM" alone is too weak; require the reserved header words to be zero.
func isBMP(b []byte) bool {
	if len(b) < 14 || !bytes.HasPrefix(b, sigBMP) {
		return false
	}
	return b[6] == 0 && b[7] == 0 && b[8] == 0 && b[9] == 0
}
