package basen

import "strings"

// Hex is the lowercase base16 codec. Decoding accepts either case.
var Hex = hexCodec{}

// Binary encodes every byte as eight '0'/'1' digits, most significant first.
var Binary = binaryCodec{}

// Z85 is the ZeroMQ base85 codec. Inputs that are not a multiple of four
// bytes are encoded with a shortened final group (n bytes -> n+1 symbols).
var Z85 = z85Codec{}

const hexDigits = "0123456789abcdef"

type hexCodec struct{}

func (hexCodec) Encode(src []byte) string {
	out := make([]byte, len(src)*2)
	for i, b := range src {
		out[i*2] = hexDigits[b>>4]
		out[i*2+1] = hexDigits[b&0x0f]
	}
	return string(out)
}

func (hexCodec) Decode(s string) ([]byte, error) {
	for i := 0; i < len(s); i++ {
		if hexValue(s[i]) < 0 {
			return nil, invalidSymbol(s, i)
		}
	}
	if len(s)%2 != 0 {
		return nil, ErrInvalidLength
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		out[i] = byte(hexValue(s[i*2])<<4 | hexValue(s[i*2+1]))
	}
	return out, nil
}

func hexValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}

type binaryCodec struct{}

func (binaryCodec) Encode(src []byte) string {
	var sb strings.Builder
	sb.Grow(len(src) * 8)
	for _, b := range src {
		for bit := 7; bit >= 0; bit-- {
			sb.WriteByte('0' + (b>>uint(bit))&1)
		}
	}
	return sb.String()
}

func (binaryCodec) Decode(s string) ([]byte, error) {
	for i := 0; i < len(s); i++ {
		if s[i] != '0' && s[i] != '1' {
			return nil, invalidSymbol(s, i)
		}
	}
	if len(s)%8 != 0 {
		return nil, ErrInvalidLength
	}
	out := make([]byte, len(s)/8)
	for i := range out {
		var b byte
		for _, c := range []byte(s[i*8 : i*8+8]) {
			b = b<<1 | (c - '0')
		}
		out[i] = b
	}
	return out, nil
}

const z85Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ.-:+=^!/*?&<>()[]{}@%$#"

var z85Decode = func() [256]int16 {
	var t [256]int16
	for i := range t {
		t[i] = -1
	}
	for i := 0; i < len(z85Alphabet); i++ {
		t[z85Alphabet[i]] = int16(i)
	}
	return t
}()

type z85Codec struct{}

func (z85Codec) Encode(src []byte) string {
	var sb strings.Builder
	sb.Grow((len(src)*5 + 3) / 4)
	var digits [5]byte
	for len(src) > 0 {
		n := min(len(src), 4)
		var block [4]byte
		copy(block[:], src[:n])
		v := uint32(block[0])<<24 | uint32(block[1])<<16 | uint32(block[2])<<8 | uint32(block[3])
		for i := 4; i >= 0; i-- {
			digits[i] = z85Alphabet[v%85]
			v /= 85
		}
		sb.Write(digits[:n+1])
		src = src[n:]
	}
	return sb.String()
}

func (z85Codec) Decode(s string) ([]byte, error) {
	for i := 0; i < len(s); i++ {
		if z85Decode[s[i]] < 0 {
			return nil, invalidSymbol(s, i)
		}
	}
	if len(s)%5 == 1 {
		return nil, ErrInvalidLength
	}
	out := make([]byte, 0, len(s)*4/5)
	for len(s) > 0 {
		n := min(len(s), 5)
		var v uint64
		for i := 0; i < 5; i++ {
			d := uint64(84) // pad short groups with the highest digit
			if i < n {
				d = uint64(z85Decode[s[i]])
			}
			v = v*85 + d
		}
		if v > 0xffffffff {
			return nil, ErrInvalidLength
		}
		block := [4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
		out = append(out, block[:n-1]...)
		s = s[n:]
	}
	return out, nil
}
