package moderation

import (
	"bytes"
	"chat-relay/contract"
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

var _ contract.Censor = (*Filter)(nil)

// chatDictionary holds words that never occur across the word joins of the
// fixtures below once spaces and punctuation are stripped.
var chatDictionary = []string{"scam", "troll", "crypto"}

func TestModerator_Censors_Inbound_Chat_Text(t *testing.T) {
	mod, err := NewModerator(chatDictionary, '*', logs.GetLoggerFromLevel(slog.LevelDebug))
	require.NoError(t, err)

	tests := []struct {
		name     string
		input    string
		expected string
		words    []string
	}{
		{"Word at the end of a message", "this link is a scam", "this link is a ****", []string{"scam"}},
		{"Every occurrence is reported", "troll troll", "***** *****", []string{"troll", "troll"}},
		{"Upper case", "STOP THE SCAM", "STOP THE ****", []string{"scam"}},
		{"Leet speak digit", "Buy CRYPT0 now", "Buy ****** now", []string{"crypto"}},
		// t(7) . r . 0 . l . l(15): the dots inside the match are masked too
		{"Punctuation inside a word", "what a t.r.0.l.l", "what a *********", []string{"troll"}},
		{"Spacing inside a word", "you tro ll", "you ******", []string{"troll"}},
		{"Trailing punctuation is kept", "no scam.", "no ****.", []string{"scam"}},
		{"Accented neighbours are untouched", "ça, c'est une arnaque: scam", "ça, c'est une arnaque: ****", []string{"scam"}},
		{"Clean message", "hello everyone", "hello everyone", nil},
		{"Empty message", "", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			content, words := mod.Censor(tt.input)
			req.Equal(tt.expected, content)
			req.Equal(tt.words, words)
			req.Equal(len([]rune(tt.input)), len([]rune(content)))
		})
	}
}

func TestModerator_Empty_Dictionary(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	for name, dictionary := range map[string][]string{
		"nil":   nil,
		"empty": {},
	} {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			mod, err := NewModerator(dictionary, '*', log)
			req.NoError(err)
			req.Nil(mod.matcher)

			content, words := mod.Censor("a scam by a troll")
			req.Equal("a scam by a troll", content)
			req.Nil(words)
		})
	}
}

func TestModerator_Ignores_Entries_That_Normalize_To_Nothing(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	// Given a dictionary polluted by blanks and pure punctuation
	mod, err := NewModerator([]string{"...", "  ", "", "#?~", "scam"}, '*', log)
	req.NoError(err)

	// Then the real entry still censors
	content, words := mod.Censor("what a scam...")
	req.Equal("what a ****...", content)
	req.Equal([]string{"scam"}, words)

	// And punctuation in a message is never taken for a word
	content, words = mod.Censor("Really?? ... #wow ~")
	req.Equal("Really?? ... #wow ~", content)
	req.Nil(words)

	// Given only noise, the moderator behaves like an empty dictionary
	mod, err = NewModerator([]string{"...", " \t"}, '*', log)
	req.NoError(err)
	req.Nil(mod.matcher)
	content, words = mod.Censor("Hello ...")
	req.Equal("Hello ...", content)
	req.Nil(words)
}

func TestFilter_Masks_Before_Persisting_And_Logs_Language(t *testing.T) {
	req := require.New(t)
	mod, err := NewModerator(chatDictionary, '#', logs.GetLoggerFromLevel(slog.LevelError))
	req.NoError(err)

	var buf bytes.Buffer
	filter := NewFilter(mod, slog.New(slog.NewJSONHandler(&buf, nil)))

	// When an inbound message carries forbidden words
	content, words := filter.Censor("scam after scam, tell everyone")

	// Then the text to persist is masked and the words are returned
	req.Equal("#### after ####, tell everyone", content)
	req.Equal([]string{"scam", "scam"}, words)
	req.Contains(buf.String(), `"msg":"Forbidden words masked"`)
	req.Contains(buf.String(), `"count":2`)
	req.Contains(buf.String(), `"lang":`)

	// When the message is clean, nothing is logged
	buf.Reset()
	content, words = filter.Censor("rien à signaler")
	req.Equal("rien à signaler", content)
	req.Nil(words)
	req.Empty(buf.String())
}

func TestFilter_Empty_Dictionary_Passes_Messages_Through(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	mod, err := NewModerator(nil, '*', log)
	req.NoError(err)

	content, words := NewFilter(mod, log).Censor("crypto troll scam")
	req.Equal("crypto troll scam", content)
	req.Nil(words)
}
