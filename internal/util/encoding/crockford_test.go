package encoding_test

import (
	"crypto/rand"
	"testing"

	"github.com/mkrupp/homecase-lending/internal/util/encoding"
)

func TestEncodeCrockfordB32LC(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{name: "empty", input: []byte{}, want: ""},
		{name: "one byte pads to two symbols", input: []byte{0xF5}, want: "ym"},
		{name: "two bytes", input: []byte{0xF5, 0x3A}, want: "ymx0"},
		{name: "five bytes fill eight symbols", input: []byte{0xF5, 0x3A, 0x58, 0x9B, 0xC4}, want: "ymx5h6y4"},
		{name: "zeros", input: []byte{0, 0, 0, 0}, want: "0000000"},
		{name: "ones", input: []byte{255, 255, 255, 255}, want: "zzzzzzr"},
		{
			name:  "ten bytes",
			input: []byte{0xF5, 0x3A, 0x58, 0x9B, 0xC4, 0xF5, 0x3A, 0x58, 0x9B, 0xC4},
			want:  "ymx5h6y4ymx5h6y4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := encoding.EncodeCrockfordB32LC(tt.input)
			if got != tt.want {
				t.Errorf("EncodeCrockfordB32LC() = %q, want %q", got, tt.want)
			}

			if len(got) != encoding.EncodedLenCrockfordB32(len(tt.input)) {
				t.Errorf("len = %d, EncodedLenCrockfordB32() = %d", len(got), encoding.EncodedLenCrockfordB32(len(tt.input)))
			}
		})
	}
}

func TestNormalizeCrockfordB32LC(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "canonical", input: "ymx5h6y4", want: "ymx5h6y4"},
		{name: "uppercase", input: "YMX5H6Y4", want: "ymx5h6y4"},
		{name: "pasted with whitespace", input: " ymx5\th6y4\n", want: "ymx5h6y4"},
		{name: "grouped with hyphens", input: "YMX5-H6Y4", want: "ymx5h6y4"},
		{name: "o to 0", input: "AbO1", want: "ab01"},
		{name: "i and l to 1", input: "iLl", want: "111"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := encoding.NormalizeCrockfordB32LC(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeCrockfordB32LC() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsCrockfordB32LC(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		n     int
		want  bool
	}{
		{name: "five bytes", input: "ymx5h6y4", n: 5, want: true},
		{name: "too short", input: "ymx5h6y", n: 5, want: false},
		{name: "too long", input: "ymx5h6y40", n: 5, want: false},
		{name: "excluded letter", input: "ymx5h6yu", n: 5, want: false},
		{name: "uppercase is not canonical", input: "YMX5H6Y4", n: 5, want: false},
		{name: "empty for zero bytes", input: "", n: 0, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := encoding.IsCrockfordB32LC(tt.input, tt.n); got != tt.want {
				t.Errorf("IsCrockfordB32LC(%q, %d) = %v, want %v", tt.input, tt.n, got, tt.want)
			}
		})
	}
}

func TestEncodedTokenIsCanonical(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		t.Fatal(err)
	}

	token := encoding.EncodeCrockfordB32LC(buf)

	if normalized := encoding.NormalizeCrockfordB32LC(token); normalized != token {
		t.Errorf("normalization changed token: got %q, want %q", normalized, token)
	}

	if !encoding.IsCrockfordB32LC(token, len(buf)) {
		t.Errorf("IsCrockfordB32LC(%q) = false", token)
	}
}
