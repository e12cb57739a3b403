// Package transport compresses payloads for the external tool and decodes
// whatever a producer sent back, across the historical wire formats:
// raw JSON, base64-wrapped JSON, base64-wrapped zlib, and zlib binary.
package transport

import (
	"bytes"
	"encoding/json"
	"io"
	"unicode"

	"github.com/klauspost/compress/zlib"

	"github.com/Faultbox/rigbridge/pkg/basen"
)

// maxDecompressed bounds decompression output.
const maxDecompressed = 256 << 20

// Codec holds transport settings. The zero value uses default compression.
type Codec struct {
	Level int // zlib level; 0 means zlib.DefaultCompression
}

// Default is the codec with default settings.
var Default = Codec{}

func (c Codec) level() int {
	if c.Level == 0 {
		return zlib.DefaultCompression
	}
	return c.Level
}

// Encode JSON-serializes v and deflate-compresses it. It reports false if v
// cannot be serialized.
func (c Codec) Encode(v any) ([]byte, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	return c.Compress(data)
}

// Compress zlib-compresses data.
func (c Codec) Compress(data []byte) ([]byte, bool) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, c.level())
	if err != nil {
		return nil, false
	}
	if _, err := w.Write(data); err != nil {
		return nil, false
	}
	if err := w.Close(); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

// EncodeText is Encode followed by base64, for consumers that can only carry
// strings.
func (c Codec) EncodeText(v any) (string, bool) {
	data, ok := c.Encode(v)
	if !ok {
		return "", false
	}
	return basen.StdBase64.Encode(data), true
}

// Decode returns the JSON document carried by data. text marks payloads the
// caller received as a string. The flag is a hint only: every known producer
// format is tried before giving up, and failure is reported as false.
func (c Codec) Decode(data []byte, text bool) (json.RawMessage, bool) {
	if text {
		if doc, ok := asJSON(data); ok {
			return doc, true
		}
		raw, b64ok := decodeBase64(data)
		if b64ok {
			if inflated, ok := inflate(raw); ok {
				return asJSON(inflated)
			}
			// Base64-wrapped but never compressed.
			if doc, ok := asJSON(raw); ok {
				return doc, true
			}
		}
		// Binary sent with the text flag.
		if inflated, ok := inflate(data); ok {
			return asJSON(inflated)
		}
		return nil, false
	}

	if inflated, ok := inflate(data); ok {
		return asJSON(inflated)
	}
	// Uncompressed JSON sent with the binary flag.
	if doc, ok := asJSON(data); ok {
		return doc, true
	}
	// Legacy text producers sent with the binary flag.
	if raw, ok := decodeBase64(data); ok {
		if inflated, ok := inflate(raw); ok {
			return asJSON(inflated)
		}
		return asJSON(raw)
	}
	return nil, false
}

// DecodeInto decodes data and unmarshals the document into v.
func (c Codec) DecodeInto(data []byte, text bool, v any) bool {
	doc, ok := c.Decode(data, text)
	if !ok {
		return false
	}
	return json.Unmarshal(doc, v) == nil
}

func inflate(data []byte) ([]byte, bool) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, false
	}
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, maxDecompressed))
	if err != nil {
		return nil, false
	}
	return out, true
}

func decodeBase64(data []byte) ([]byte, bool) {
	stripped := bytes.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, data)
	if len(stripped) == 0 {
		return nil, false
	}
	out, err := basen.StdBase64.Decode(string(stripped))
	if err != nil {
		// Some producers omit padding or use the URL alphabet.
		out, err = basen.URLBase64.Decode(string(bytes.TrimRight(stripped, "=")))
		if err != nil {
			return nil, false
		}
	}
	return out, true
}

func asJSON(data []byte) (json.RawMessage, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || !json.Valid(data) {
		return nil, false
	}
	return json.RawMessage(data), true
}
