// Package glossary identifies TNFD terminology in text.
package glossary

import (
	_ "embed"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed tnfd.yaml
var tnfdYAML []byte

// Entry is one glossary term.
type Entry struct {
	Term       string   `yaml:"term" json:"term"`
	Definition string   `yaml:"definition" json:"definition"`
	Category   string   `yaml:"category" json:"category"`
	Aliases    []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

// Match is a term found in text. Position is the byte offset of the first
// occurrence in the lower-cased text.
type Match struct {
	Term         string `json:"term"`
	MatchedAlias string `json:"matched_alias,omitempty"`
	Definition   string `json:"definition"`
	Category     string `json:"category"`
	Position     int    `json:"position"`
}

// Glossary is an ordered set of entries.
type Glossary struct {
	entries []Entry
}

// Load reads a YAML list of entries.
func Load(r io.Reader) (*Glossary, error) {
	var entries []Entry
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode glossary: %w", err)
	}
	for i, e := range entries {
		if strings.TrimSpace(e.Term) == "" {
			return nil, fmt.Errorf("glossary entry %d has no term", i)
		}
	}
	return &Glossary{entries: entries}, nil
}

// Default returns the built-in TNFD glossary.
func Default() *Glossary {
	g, err := Load(strings.NewReader(string(tnfdYAML)))
	if err != nil {
		panic(fmt.Sprintf("embedded glossary is invalid: %v", err))
	}
	return g
}

// Entries returns the entries in file order.
func (g *Glossary) Entries() []Entry {
	return g.entries
}

// FindTerms returns the terms occurring in text, ignoring case, ordered by
// position. A term is matched by its own name first, otherwise by its first
// matching alias.
func (g *Glossary) FindTerms(text string) []Match {
	lower := strings.ToLower(text)
	matches := []Match{}

	for _, e := range g.entries {
		if pos := strings.Index(lower, strings.ToLower(e.Term)); pos >= 0 {
			matches = append(matches, Match{Term: e.Term, Definition: e.Definition, Category: e.Category, Position: pos})
			continue
		}
		for _, alias := range e.Aliases {
			if pos := strings.Index(lower, strings.ToLower(alias)); pos >= 0 {
				matches = append(matches, Match{
					Term:         e.Term,
					MatchedAlias: alias,
					Definition:   e.Definition,
					Category:     e.Category,
					Position:     pos,
				})
				break
			}
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Position < matches[j].Position })
	return matches
}

// TermsByCategory lists the terms of one category (Framework, Nature, Risk,
// Impact or Action).
func (g *Glossary) TermsByCategory(category string) []string {
	terms := []string{}
	for _, e := range g.entries {
		if e.Category == category {
			terms = append(terms, e.Term)
		}
	}
	return terms
}

// Definition looks a term or alias up, exactly first and then ignoring case.
func (g *Glossary) Definition(termOrAlias string) (string, bool) {
	for _, exact := range []bool{true, false} {
		same := strings.EqualFold
		if exact {
			same = func(a, b string) bool { return a == b }
		}
		for _, e := range g.entries {
			if same(e.Term, termOrAlias) {
				return e.Definition, true
			}
		}
		for _, e := range g.entries {
			for _, alias := range e.Aliases {
				if same(alias, termOrAlias) {
					return e.Definition, true
				}
			}
		}
	}
	return "", false
}
