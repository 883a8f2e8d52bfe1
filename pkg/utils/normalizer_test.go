package utils_test

import (
	"sync"
	"testing"

	"github.com/modryx/warden/pkg/utils"
	"github.com/stretchr/testify/assert"
)

func TestContainsWord(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		word string
		want bool
	}{
		{
			name: "whole word present",
			text: "I saw her",
			word: "her",
			want: true,
		},
		{
			name: "substring inside longer word",
			text: "he was here",
			word: "her",
			want: false,
		},
		{
			name: "case insensitive",
			text: "FRIEND of the group",
			word: "friend",
			want: true,
		},
		{
			name: "word at start",
			text: "spam account",
			word: "spam",
			want: true,
		},
		{
			name: "word at end",
			text: "this is spam",
			word: "spam",
			want: true,
		},
		{
			name: "word surrounded by punctuation",
			text: "totally (spam) here",
			word: "spam",
			want: true,
		},
		{
			name: "word embedded with digits",
			text: "spam123",
			word: "spam",
			want: false,
		},
		{
			name: "accented text normalizes",
			text: "je suis très amical",
			word: "tres",
			want: true,
		},
		{
			name: "empty text",
			text: "",
			word: "spam",
			want: false,
		},
		{
			name: "empty word",
			text: "anything",
			word: "",
			want: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			n := utils.NewTextNormalizer()
			assert.Equal(t, tt.want, n.ContainsWord(tt.text, tt.word))
		})
	}
}

func TestNormalizeConcurrent(t *testing.T) {
	t.Parallel()

	n := utils.NewTextNormalizer()

	inputs := []struct{ in, want string }{
		{"Héllo   Wörld", "hello world"},
		{"CAFÉ au lait", "cafe au lait"},
		{"ｆｕｌｌｗｉｄｔｈ text", "fullwidth text"},
	}

	// A single normalizer shared across goroutines must produce the same
	// output as sequential use
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := 0; i < 200; i++ {
				c := inputs[i%len(inputs)]
				if got := n.Normalize(c.in); got != c.want {
					t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
					return
				}
			}
		}()
	}

	wg.Wait()
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "lowercases",
			input: "Hello World",
			want:  "hello world",
		},
		{
			name:  "strips accents",
			input: "café",
			want:  "cafe",
		},
		{
			name:  "compresses whitespace",
			input: "a   b\n\nc",
			want:  "a b c",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			n := utils.NewTextNormalizer()
			assert.Equal(t, tt.want, n.Normalize(tt.input))
		})
	}
}
