// Package guidance holds the localized disposal instructions shown next to a
// classification.
package guidance

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/MeKo-Tech/wastelens/internal/confidence"
)

// Guidance keys. They match confidence.Decision.DisposalKey, with
// KeyUncertain for deferred decisions.
const (
	KeyOrganic    = "organic"
	KeyRecyclable = "recyclable"
	KeyUncertain  = "uncertain"
)

// Entry is the guidance for one decision.
type Entry struct {
	Key      string   `json:"key"`
	Language string   `json:"language"`
	Title    string   `json:"title"`
	Includes []string `json:"includes,omitempty"`
	Disposal string   `json:"disposal,omitempty"`
	Prompt   string   `json:"prompt,omitempty"`
}

type entryKeys struct {
	title    string
	includes []string
	disposal string
	prompt   string
}

var layout = map[string]entryKeys{
	KeyOrganic: {
		title:    "organic.title",
		includes: []string{"organic.food", "organic.garden", "organic.paper"},
		disposal: "organic.disposal",
	},
	KeyRecyclable: {
		title:    "recyclable.title",
		includes: []string{"recyclable.plastic", "recyclable.glass", "recyclable.metal", "recyclable.cardboard"},
		disposal: "recyclable.disposal",
	},
	KeyUncertain: {
		title:  "uncertain.title",
		prompt: "uncertain.prompt",
	},
}

var texts = map[language.Tag]map[string]string{
	language.English: {
		"organic.title":        "Organic waste",
		"organic.food":         "Food scraps",
		"organic.garden":       "Garden waste",
		"organic.paper":        "Paper products (non-glossy)",
		"organic.disposal":     "Compost bin or organic waste collection",
		"recyclable.title":     "Recyclable waste",
		"recyclable.plastic":   "Plastic containers",
		"recyclable.glass":     "Glass bottles",
		"recyclable.metal":     "Metal cans",
		"recyclable.cardboard": "Cardboard",
		"recyclable.disposal":  "Recycling bin (clean and dry)",
		"uncertain.title":      "The model is unsure about this classification",
		"uncertain.prompt":     "What type of waste is this? Your feedback helps improve the model.",
	},
	language.German: {
		"organic.title":        "Bioabfall",
		"organic.food":         "Essensreste",
		"organic.garden":       "Gartenabfälle",
		"organic.paper":        "Papierprodukte (nicht glänzend)",
		"organic.disposal":     "Biotonne oder Bioabfallsammlung",
		"recyclable.title":     "Wertstoff",
		"recyclable.plastic":   "Kunststoffbehälter",
		"recyclable.glass":     "Glasflaschen",
		"recyclable.metal":     "Metalldosen",
		"recyclable.cardboard": "Karton",
		"recyclable.disposal":  "Wertstofftonne (sauber und trocken)",
		"uncertain.title":      "Das Modell ist sich bei dieser Einordnung unsicher",
		"uncertain.prompt":     "Um welche Art von Abfall handelt es sich? Ihre Rückmeldung hilft, das Modell zu verbessern.",
	},
}

// Supported lists the catalog languages; the first is the fallback.
var Supported = []language.Tag{language.English, language.German}

var (
	cat     = buildCatalog()
	matcher = language.NewMatcher(Supported)
)

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, msgs := range texts {
		for key, msg := range msgs {
			if err := b.SetString(tag, key, msg); err != nil {
				panic(err)
			}
		}
	}
	return b
}

// Negotiate picks the best supported language for an Accept-Language header
// or a plain tag such as "de". Unknown input falls back to English.
func Negotiate(accept string) language.Tag {
	if accept == "" {
		return Supported[0]
	}
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return Supported[0]
	}
	_, idx, _ := matcher.Match(tags...)
	return Supported[idx]
}

// Key returns the guidance key for d.
func Key(d confidence.Decision) string {
	if k := d.DisposalKey(); k != "" {
		return k
	}
	return KeyUncertain
}

// For returns the guidance for d in lang.
func For(d confidence.Decision, lang language.Tag) Entry {
	return Lookup(Key(d), lang)
}

// Lookup returns the guidance for key in lang. Unknown keys yield the
// uncertain entry.
func Lookup(key string, lang language.Tag) Entry {
	keys, ok := layout[key]
	if !ok {
		key, keys = KeyUncertain, layout[KeyUncertain]
	}
	tag := Negotiate(lang.String())
	p := message.NewPrinter(tag, message.Catalog(cat))

	e := Entry{Key: key, Language: tag.String(), Title: p.Sprintf(keys.title)}
	for _, k := range keys.includes {
		e.Includes = append(e.Includes, p.Sprintf(k))
	}
	if keys.disposal != "" {
		e.Disposal = p.Sprintf(keys.disposal)
	}
	if keys.prompt != "" {
		e.Prompt = p.Sprintf(keys.prompt)
	}
	return e
}

// LabelName returns a display name for a label in lang, e.g. "Organic".
func LabelName(l confidence.Label, lang language.Tag) string {
	key := KeyRecyclable
	if l == confidence.Organic {
		key = KeyOrganic
	}
	title := Lookup(key, lang).Title
	if tag := Negotiate(lang.String()); tag == language.German {
		return title
	}
	return cases.Title(language.English).String(string(l))
}
