package glossary

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultGlossary(t *testing.T) {
	g := Default()
	assert.Len(t, g.Entries(), 23)
	assert.Equal(t, []string{"LEAP", "Locate", "Evaluate", "Assess", "Prepare"}, g.TermsByCategory("Framework"))
	assert.Equal(t, []string{"Avoid", "Reduce", "Restore", "Regenerate", "Nature-based Solutions"}, g.TermsByCategory("Action"))
	assert.Empty(t, g.TermsByCategory("Unknown"))
}

func TestFindTerms(t *testing.T) {
	g := Default()
	text := "Our company is assessing physical risks including water stress in our operations. " +
		"We are implementing nature-based solutions. The LEAP framework helps us identify dependencies on ecosystem services."

	matches := g.FindTerms(text)
	var terms []string
	for _, m := range matches {
		terms = append(terms, m.Term)
	}
	assert.Equal(t, []string{"Assess", "Physical Risk", "Water Stress", "Nature-based Solutions", "LEAP", "Ecosystem Services"}, terms)
	for i := 1; i < len(matches); i++ {
		assert.LessOrEqual(t, matches[i-1].Position, matches[i].Position)
	}
}

func TestFindTermsByAlias(t *testing.T) {
	g := Default()
	matches := g.FindTerms("당사는 수자원 부족 리스크에 대응하고 생물다양성을 보호합니다.")
	require.Len(t, matches, 2)
	assert.Equal(t, "Water Stress", matches[0].Term)
	assert.Equal(t, "수자원 부족", matches[0].MatchedAlias)
	assert.Equal(t, "Biodiversity", matches[1].Term)
	assert.Equal(t, "Nature", matches[1].Category)
}

func TestDefinition(t *testing.T) {
	g := Default()

	def, ok := g.Definition("Biome")
	assert.True(t, ok)
	assert.Contains(t, def, "ecological region")

	def, ok = g.Definition("NbS")
	assert.True(t, ok)
	assert.Contains(t, def, "ecosystems")

	_, ok = g.Definition("water stress")
	assert.True(t, ok)

	_, ok = g.Definition("Carbon Credit")
	assert.False(t, ok)
}

func TestLoadRejectsEntryWithoutTerm(t *testing.T) {
	_, err := Load(strings.NewReader("- definition: orphan\n  category: Nature\n"))
	assert.Error(t, err)

	g, err := Load(strings.NewReader("- term: Dependency\n  definition: Reliance on ecosystem services\n  category: Nature\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Dependency"}, g.TermsByCategory("Nature"))
}
