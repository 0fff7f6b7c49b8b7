package encoding

import (
	"strings"
	"unicode"
)

// crockfordAlphabet is Crockford's Base32 alphabet in the lowercase form used on the wire.
const crockfordAlphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// EncodedLenCrockfordB32 returns the length of the encoding of n bytes.
func EncodedLenCrockfordB32(n int) int {
	return (n*8 + 4) / 5
}

// EncodeCrockfordB32LC encodes a byte slice using Crockford's Base32 alphabet and returns
// the result in lowercase. Session tokens and trace ids use it, since the alphabet
// has no easily confused characters. The trailing partial group is zero padded.
//
//nolint:gosec
func EncodeCrockfordB32LC(input []byte) string {
	var (
		out   strings.Builder
		bits  uint
		accum uint
	)

	out.Grow(EncodedLenCrockfordB32(len(input)))

	for _, b := range input {
		accum = accum<<8 | uint(b)
		bits += 8

		for bits >= 5 {
			bits -= 5
			out.WriteByte(crockfordAlphabet[(accum>>bits)&0x1F])
		}

		accum &= 1<<bits - 1
	}

	if bits > 0 {
		out.WriteByte(crockfordAlphabet[(accum<<(5-bits))&0x1F])
	}

	return out.String()
}

// NormalizeCrockfordB32LC maps a token as a human may have typed or pasted it
// to its canonical form: whitespace and hyphens are dropped, letters are
// lowercased, 'o' becomes '0' and 'i' and 'l' become '1'.
func NormalizeCrockfordB32LC(input string) string {
	var out strings.Builder

	out.Grow(len(input))

	for _, char := range input {
		if unicode.IsSpace(char) || char == '-' {
			continue
		}

		switch char = unicode.ToLower(char); char {
		case 'o':
			out.WriteRune('0')
		case 'i', 'l':
			out.WriteRune('1')
		default:
			out.WriteRune(char)
		}
	}

	return out.String()
}

// IsCrockfordB32LC reports whether s is a canonical encoding of exactly n bytes.
// Callers normalize first.
func IsCrockfordB32LC(s string, n int) bool {
	if len(s) != EncodedLenCrockfordB32(n) {
		return false
	}

	for i := range len(s) {
		if strings.IndexByte(crockfordAlphabet, s[i]) < 0 {
			return false
		}
	}

	return true
}
