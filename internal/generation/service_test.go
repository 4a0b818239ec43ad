package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeClampsDefaultsAndDropsUnknownSenders(t *testing.T) {
	t.Parallel()

	req := Request{
		Persona: Joker,
		Messages: []Message{
			{SenderID: "a"}, {SenderID: "b"}, {SenderID: "c"},
		},
	}
	got := Sanitize(req, Reply{
		Text:   "  haha  ",
		Scores: map[string]int{"a": 42, "b": -9, "intruder": 3},
	})

	assert.Equal(t, "haha", got.Text)
	assert.Equal(t, map[string]int{"a": MaxScore, "b": MinScore, "c": 0}, got.Scores)
}

func TestSanitizeFillsEmptyText(t *testing.T) {
	t.Parallel()

	req := Request{Persona: Softie, Messages: []Message{{SenderID: "a"}}}
	got := Sanitize(req, Reply{})

	assert.Contains(t, fallbackLines[Softie], got.Text)
	assert.Equal(t, 0, got.Scores["a"])
}

func TestSanitizeVerdictDefaults(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Yes! Let's get out of here.", SanitizeVerdict(Verdict{Accepted: true}).Text)
	assert.Equal(t, "Sorry, I don't think so.", SanitizeVerdict(Verdict{}).Text)
	assert.Equal(t, "ok", SanitizeVerdict(Verdict{Text: " ok "}).Text)
}

func TestPersonasAreValid(t *testing.T) {
	t.Parallel()

	assert.Len(t, Personas(), 6)
	for _, p := range Personas() {
		assert.True(t, p.Valid(), p)
		assert.NotEmpty(t, p.Brief())
	}
	assert.False(t, Persona("PIRATE").Valid())
}
