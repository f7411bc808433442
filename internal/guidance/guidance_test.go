package guidance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"

	"github.com/MeKo-Tech/wastelens/internal/confidence"
)

func TestNegotiate(t *testing.T) {
	tests := []struct {
		accept string
		want   language.Tag
	}{
		{"", language.English},
		{"de", language.German},
		{"de-CH,de;q=0.9,en;q=0.8", language.German},
		{"fr-FR,en;q=0.5", language.English},
		{"ja", language.English},
		{"%%garbage%%", language.English},
	}
	for _, tt := range tests {
		t.Run(tt.accept, func(t *testing.T) {
			assert.Equal(t, tt.want, Negotiate(tt.accept))
		})
	}
}

func TestForDecision(t *testing.T) {
	organic := For(confidence.Confident(confidence.Organic), language.English)
	assert.Equal(t, KeyOrganic, organic.Key)
	assert.Equal(t, "Organic waste", organic.Title)
	assert.Equal(t, []string{"Food scraps", "Garden waste", "Paper products (non-glossy)"}, organic.Includes)
	assert.Equal(t, "Compost bin or organic waste collection", organic.Disposal)
	assert.Empty(t, organic.Prompt)

	recyclable := For(confidence.Confident(confidence.Recyclable), language.English)
	assert.Len(t, recyclable.Includes, 4)
	assert.Equal(t, "Recycling bin (clean and dry)", recyclable.Disposal)

	uncertain := For(confidence.Uncertain(), language.English)
	assert.Equal(t, KeyUncertain, uncertain.Key)
	assert.Empty(t, uncertain.Disposal)
	assert.Contains(t, uncertain.Prompt, "What type of waste")
}

func TestGermanCatalog(t *testing.T) {
	e := For(confidence.Confident(confidence.Recyclable), language.MustParse("de-AT"))
	assert.Equal(t, "de", e.Language)
	assert.Equal(t, "Wertstoff", e.Title)
	assert.Contains(t, e.Includes, "Glasflaschen")

	assert.Equal(t, "Bioabfall", LabelName(confidence.Organic, language.German))
	assert.Equal(t, "Recyclable", LabelName(confidence.Recyclable, language.English))
}

func TestEveryKeyIsTranslated(t *testing.T) {
	for tag, msgs := range texts {
		for _, keys := range layout {
			all := append([]string{keys.title}, keys.includes...)
			if keys.disposal != "" {
				all = append(all, keys.disposal)
			}
			if keys.prompt != "" {
				all = append(all, keys.prompt)
			}
			for _, k := range all {
				assert.NotEmpty(t, msgs[k], "%s missing %s", tag, k)
			}
		}
	}
}

func TestUnknownKeyFallsBack(t *testing.T) {
	assert.Equal(t, KeyUncertain, Lookup("hazardous", language.English).Key)
	assert.Equal(t, KeyUncertain, Key(confidence.Uncertain()))
	assert.Equal(t, KeyOrganic, Key(confidence.Confident(confidence.Organic)))
}
