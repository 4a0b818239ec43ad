package generation

import "math/rand/v2"

// Persona is the hidden personality tag of a recipient. It steers tone and
// scoring and is never sent to clients.
type Persona string

const (
	Confident    Persona = "CONFIDENT"
	Softie       Persona = "SOFTIE"
	Joker        Persona = "JOKER"
	Challenge    Persona = "CHALLENGE"
	Intellectual Persona = "INTELLECTUAL"
	Romantic     Persona = "ROMANTIC"
)

// Personas lists every persona in a stable order.
func Personas() []Persona {
	return []Persona{Confident, Softie, Joker, Challenge, Intellectual, Romantic}
}

func (p Persona) Valid() bool {
	_, ok := briefs[p]
	return ok
}

var briefs = map[Persona]string{
	Confident:    "self-assured and playful; likes direct banter, dislikes flattery and nervousness",
	Softie:       "warm and sincere; likes kindness and honest feelings, dislikes pushiness and crude jokes",
	Joker:        "bubbly and quick-witted; likes humor and silliness, dislikes stiff or serious talk",
	Challenge:    "feisty and testing; likes people who push back, dislikes pushovers and eagerness",
	Intellectual: "curious and analytical; likes ideas and good questions, dislikes small talk",
	Romantic:     "dreamy and appreciative; likes charm and real effort, dislikes vulgarity and indifference",
}

var fallbackLines = map[Persona][]string{
	Confident:    {"Hmm, interesting.", "Is that so?", "Tell me more."},
	Softie:       {"That's sweet.", "Aw, really?", "How nice of you to say."},
	Joker:        {"Haha, okay!", "You're funny.", "That's a new one!"},
	Challenge:    {"We'll see about that.", "Prove it.", "You think so?"},
	Intellectual: {"Interesting point.", "I hadn't considered that.", "Go on..."},
	Romantic:     {"How charming.", "You're sweet.", "That's lovely."},
}

// Brief returns the short character description used in prompts.
func (p Persona) Brief() string {
	if b, ok := briefs[p]; ok {
		return b
	}
	return "friendly and easygoing"
}

// FallbackLine returns a canned in-character line for when a generator has
// nothing usable to say.
func FallbackLine(p Persona) string {
	lines, ok := fallbackLines[p]
	if !ok {
		return "Sorry, what was that?"
	}
	return lines[rand.IntN(len(lines))]
}
