package analyzer

import (
	"strings"
	"testing"
)

func TestCountTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"punctuation only", "--- !!!", 0},
		{"ten words", "check the oil level every time you fill the tank", 13},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CountTokens(tt.text); got != tt.want {
				t.Errorf("CountTokens(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestCountTokensLongWords(t *testing.T) {
	text := strings.Repeat("x", 400)
	if got := CountTokens(text); got != 100 {
		t.Errorf("expected char-based estimate of 100, got %d", got)
	}
}

func TestSplitWords(t *testing.T) {
	words := splitWords("ABS-light, on_dash 2019!")
	want := []string{"ABS", "light", "on_dash", "2019"}
	if len(words) != len(want) {
		t.Fatalf("got %v, want %v", words, want)
	}
	for i := range want {
		if words[i] != want[i] {
			t.Errorf("word %d: got %q, want %q", i, words[i], want[i])
		}
	}
}
