// Package basen provides the text alphabets used to carry binary payloads
// through string-only transports: N-bit group codecs (base32, Crockford,
// base64, URL-safe base64), hex, binary digit strings and Z85.
package basen

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrInvalidLength is returned when an input cannot be a complete encoding.
var ErrInvalidLength = errors.New("basen: invalid input length")

// InvalidSymbolError reports a symbol outside the configured alphabet.
type InvalidSymbolError struct {
	Symbol rune
	Offset int
}

func (e *InvalidSymbolError) Error() string {
	return fmt.Sprintf("basen: invalid symbol %q at offset %d", e.Symbol, e.Offset)
}

// invalidSymbol reports the whole character starting at byte offset i of s.
func invalidSymbol(s string, i int) error {
	r, _ := utf8.DecodeRuneInString(s[i:])
	return &InvalidSymbolError{Symbol: r, Offset: i}
}

// Codec is implemented by every alphabet in this package.
type Codec interface {
	Encode(src []byte) string
	Decode(s string) ([]byte, error)
}

// Encoding is an N-bit group codec over a 2^N symbol alphabet.
type Encoding struct {
	name     string
	alphabet string
	bits     uint
	pad      byte   // 0 disables padding
	ignore   string // stripped before decoding
	fold     bool   // case-insensitive decoding
	aliases  map[byte]byte
	decode   [256]int16
}

// NewEncoding returns an Encoding for alphabet, whose length must be 2^bits.
func NewEncoding(name, alphabet string, bits uint) *Encoding {
	if len(alphabet) != 1<<bits {
		panic(fmt.Sprintf("basen: alphabet %q has %d symbols, want %d", name, len(alphabet), 1<<bits))
	}
	e := &Encoding{name: name, alphabet: alphabet, bits: bits}
	e.rebuild()
	return e
}

// WithPadding returns a copy that pads output to full blocks with pad.
func (e Encoding) WithPadding(pad byte) *Encoding {
	e.pad = pad
	return &e
}

// WithIgnore returns a copy that strips the given characters before decoding.
func (e Encoding) WithIgnore(chars string) *Encoding {
	e.ignore = chars
	return &e
}

// WithCaseFolding returns a copy that accepts either letter case and the given
// symbol aliases on decode.
func (e Encoding) WithCaseFolding(aliases map[byte]byte) *Encoding {
	e.fold = true
	e.aliases = aliases
	e.rebuild()
	return &e
}

func (e *Encoding) rebuild() {
	for i := range e.decode {
		e.decode[i] = -1
	}
	for i := 0; i < len(e.alphabet); i++ {
		c := e.alphabet[i]
		e.decode[c] = int16(i)
		if e.fold {
			e.decode[toLower(c)] = int16(i)
			e.decode[toUpper(c)] = int16(i)
		}
	}
	for from, to := range e.aliases {
		v := e.decode[to]
		e.decode[from] = v
		e.decode[toLower(from)] = v
	}
}

// Name returns the codec name.
func (e *Encoding) Name() string {
	return e.name
}

// blockSymbols returns the number of symbols in one padded block.
func (e *Encoding) blockSymbols() int {
	// lcm(8, bits) / bits
	switch e.bits {
	case 5:
		return 8
	case 6:
		return 4
	default:
		return 8 / int(e.bits)
	}
}

// Encode encodes src.
func (e *Encoding) Encode(src []byte) string {
	var sb strings.Builder
	sb.Grow((len(src)*8+int(e.bits)-1)/int(e.bits) + e.blockSymbols())

	mask := uint32(1)<<e.bits - 1
	var acc uint32
	var n uint
	for _, b := range src {
		acc = acc<<8 | uint32(b)
		n += 8
		for n >= e.bits {
			n -= e.bits
			sb.WriteByte(e.alphabet[(acc>>n)&mask])
		}
		acc &= 1<<n - 1
	}
	if n > 0 {
		sb.WriteByte(e.alphabet[(acc<<(e.bits-n))&mask])
	}

	if e.pad != 0 {
		block := e.blockSymbols()
		for sb.Len()%block != 0 {
			sb.WriteByte(e.pad)
		}
	}
	return sb.String()
}

// Decode decodes s, skipping ignored characters and trailing padding.
func (e *Encoding) Decode(s string) ([]byte, error) {
	type sym struct {
		c   byte
		off int
	}
	syms := make([]sym, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if e.ignore != "" && strings.IndexByte(e.ignore, c) >= 0 {
			continue
		}
		syms = append(syms, sym{c, i})
	}
	if e.pad != 0 {
		for len(syms) > 0 && syms[len(syms)-1].c == e.pad {
			syms = syms[:len(syms)-1]
		}
	}

	out := make([]byte, 0, len(syms)*int(e.bits)/8)
	var acc uint32
	var n uint
	for _, sy := range syms {
		v := e.decode[sy.c]
		if v < 0 {
			return nil, invalidSymbol(s, sy.off)
		}
		acc = acc<<e.bits | uint32(v)
		n += e.bits
		if n >= 8 {
			n -= 8
			out = append(out, byte(acc>>n))
			acc &= 1<<n - 1
		}
	}
	// A trailing group of a full symbol or more cannot come from Encode.
	if n >= e.bits {
		return nil, ErrInvalidLength
	}
	return out, nil
}

func toLower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}

func toUpper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

// Standard alphabets.
var (
	StdBase32 = NewEncoding("base32", base32Alphabet, 5).WithPadding('=')
	Crockford = NewEncoding("crockford", crockfordAlphabet, 5).WithCaseFolding(crockfordAliases).WithIgnore("-")
	StdBase64 = NewEncoding("base64", base64Alphabet, 6).WithPadding('=')
	URLBase64 = NewEncoding("base64url", base64URLAlphabet, 6)
)

const (
	base32Alphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"
	crockfordAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
	base64Alphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"
	base64URLAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
)

var crockfordAliases = map[byte]byte{'O': '0', 'I': '1', 'L': '1'}

// Lookup returns a codec by name.
func Lookup(name string) (Codec, bool) {
	switch strings.ToLower(name) {
	case "base32":
		return StdBase32, true
	case "crockford":
		return Crockford, true
	case "base64":
		return StdBase64, true
	case "base64url", "url":
		return URLBase64, true
	case "hex", "base16":
		return Hex, true
	case "binary", "base2":
		return Binary, true
	case "z85":
		return Z85, true
	}
	return nil, false
}
