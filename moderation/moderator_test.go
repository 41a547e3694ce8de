package moderation

import (
	"chatwire/internal"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

const replacementChar = '*'

// The dictionary avoids short words that collide with substrings of
// ordinary text (e.g. "he" inside "The").
func TestModerator_Censor(t *testing.T) {
	req := require.New(t)
	log := internal.GetLoggerFromLevel(slog.LevelDebug)
	dictionary := []string{"weasel", "viper", "toadstool"}
	mod, err := NewModerator(dictionary, replacementChar, log)
	req.NoError(err)

	tests := []struct {
		name     string
		input    string
		expected string
		words    []string
	}{
		{
			name:     "Simple word with spacing preserved",
			input:    "A weasel in the barn",
			expected: "A ****** in the barn",
			words:    []string{"weasel"},
		},
		{
			name:     "Multiple occurrences",
			input:    "viper viper viper",
			expected: "***** ***** *****",
			words:    []string{"viper", "viper", "viper"},
		},
		{
			name: "Leet speak and internal punctuation",
			// w (index 4) . 3 . 4 . s . € . l (index 14) -> 11 characters
			input:    "Say w.3.4.s.€.l now",
			expected: "Say *********** now",
			words:    []string{"weasel"},
		},
		{
			name:     "Uppercase and heavy noise",
			input:    "A V-I-P-E-R bit me",
			expected: "A ********* bit me",
			words:    []string{"viper"},
		},
		{
			name:     "Accented surroundings stay intact",
			input:    "Blåbær og en viper",
			expected: "Blåbær og en *****",
			words:    []string{"viper"},
		},
		{
			name:     "Word adjacent to trailing punctuation",
			input:    "Beware the viper!",
			expected: "Beware the *****!",
			words:    []string{"viper"},
		},
		{
			name:     "Nothing to censor",
			input:    "All calm on the wire",
			expected: "All calm on the wire",
			words:    nil,
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
			words:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, words := mod.Censor(tt.input)
			req.Equal(tt.expected, content, "test=%s,", tt.name)
			req.Equal(tt.words, words, "expected=%s,words=%s", tt.expected, words)
		})
	}
}

func TestModerator_CornerCases(t *testing.T) {
	req := require.New(t)
	log := internal.GetLoggerFromLevel(slog.LevelDebug)

	// Noise-only dictionary entries normalize to nothing and must not
	// poison the automaton
	dictionary := []string{"!!!", "---", "", "weasel"}

	mod, err := NewModerator(dictionary, replacementChar, log)
	req.NoError(err)

	input := "The weasel is loose"
	expected := "The ****** is loose"
	content, words := mod.Censor(input)
	req.Equal(expected, content)
	req.Equal([]string{"weasel"}, words)

	// Plain punctuation passes through untouched
	input = "Hello !!!"
	expected = "Hello !!!"
	content, words = mod.Censor(input)
	req.Equal(expected, content)
	req.Nil(words)
}
