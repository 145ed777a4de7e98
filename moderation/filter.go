package moderation

import (
	"log/slog"

	"github.com/abadojack/whatlanggo"
)

// Filter censors chat messages and logs the detected language of every
// message that had to be censored.
type Filter struct {
	moderator *Moderator
	log       *slog.Logger
}

func NewFilter(moderator *Moderator, log *slog.Logger) *Filter {
	return &Filter{moderator: moderator, log: log}
}

func (f *Filter) Censor(text string) (string, []string) {
	sanitized, words := f.moderator.Censor(text)
	if len(words) == 0 {
		return sanitized, nil
	}

	info := whatlanggo.Detect(text)
	f.log.Info("Forbidden words masked",
		"count", len(words),
		"lang", info.Lang.Iso6391(),
		"confidence", info.Confidence,
	)
	return sanitized, words
}
