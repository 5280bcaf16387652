// Package answer composes an answer to a question from hybrid search
// results, citing the evidence it used.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/soundprediction/naturegraph/pkg/nlp"
	"github.com/soundprediction/naturegraph/pkg/types"
)

const (
	// NoInformationAnswer is returned without calling the model when the
	// search produced no context.
	NoInformationAnswer = "No relevant information was found. Please try a different question."

	// GenerationFailedAnswer is returned when the model call fails.
	GenerationFailedAnswer = "An error occurred while generating the answer."

	contextPreviewLength = 500
	sourcePreviewLength  = 100
	maxConnectedNodes    = 10
)

const systemPrompt = `You are a TNFD (Taskforce on Nature-related Financial Disclosures) analyst.
Answer the user's question accurately from the context provided.

## Rules
1. Context only: answer using only the evidence and graph information provided.
2. Citations: cite every piece of information you use as [document, page].
3. Terminology: use TNFD framework terminology where possible.
4. Structure: organise the answer by type, such as risks, actions and locations.
5. Uncertainty: if the information is insufficient, say plainly that it cannot be confirmed from the information provided.
6. Language: answer in the language of the question.`

// Retriever runs a hybrid search.
type Retriever interface {
	Search(ctx context.Context, query string, topK, depth int) (*types.SearchResults, error)
}

// Source is one piece of evidence the answer drew on.
type Source struct {
	Document       string  `json:"document"`
	Page           int     `json:"page"`
	RelevanceScore float64 `json:"relevance_score"`
	Preview        string  `json:"preview"`
}

// Answer is the result of Generate.
type Answer struct {
	Answer      string   `json:"answer"`
	Sources     []Source `json:"sources"`
	ContextUsed string   `json:"context_used"`
}

// Generator answers questions over the graph.
type Generator struct {
	retriever Retriever
	llm       nlp.Client
	logger    *slog.Logger
}

// NewGenerator creates a Generator. The client is typically configured with
// a small positive temperature.
func NewGenerator(retriever Retriever, llm nlp.Client, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{retriever: retriever, llm: llm, logger: logger}
}

// Generate searches for question and asks the model to answer from the
// results. A model failure produces GenerationFailedAnswer rather than an
// error; only a failed search is returned as one.
func (g *Generator) Generate(ctx context.Context, question string, topK int) (*Answer, error) {
	results, err := g.retriever.Search(ctx, question, topK, 0)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	contextText := BuildContext(results)
	if strings.TrimSpace(contextText) == "" {
		return &Answer{Answer: NoInformationAnswer, Sources: []Source{}, ContextUsed: ""}, nil
	}

	if ctx.Value(types.ContextKeyRequestSource) == nil {
		ctx = context.WithValue(ctx, types.ContextKeyRequestSource, "answer")
	}

	text := GenerationFailedAnswer
	resp, err := g.llm.Chat(ctx, []types.Message{
		nlp.NewSystemMessage(systemPrompt),
		nlp.NewUserMessage(Prompt(question, contextText)),
	})
	if err != nil {
		g.logger.Warn("Answer generation failed", "error", err)
	} else {
		text = resp.Content
	}

	return &Answer{
		Answer:      text,
		Sources:     Sources(results),
		ContextUsed: truncate(contextText, contextPreviewLength),
	}, nil
}

// BuildContext renders search results as the model's context: the evidence
// texts with their citations, the matched entities, and up to ten connected
// nodes. It returns "" for empty results.
func BuildContext(results *types.SearchResults) string {
	if results == nil {
		return ""
	}
	var parts []string

	if len(results.Evidence) > 0 {
		parts = append(parts, "## Related document content (Evidence)")
		for i, ev := range results.Evidence {
			source := ev.SourceDocument
			if source == "" {
				source = "Unknown"
			}
			parts = append(parts, fmt.Sprintf("\n### Evidence %d [%s, p.%d]\n%s", i+1, source, ev.PageNumber, ev.Text))
		}
	}

	if len(results.Entities) > 0 {
		parts = append(parts, "\n## Related entities")
		for _, ent := range results.Entities {
			labels := "Unknown"
			if len(ent.Labels) > 0 {
				labels = strings.Join(ent.Labels, ", ")
			}
			var props []string
			for _, key := range []string{"category", "action_type", "country", "description"} {
				if v := ent.Property(key); v != "" {
					props = append(props, key+": "+v)
				}
			}
			line := fmt.Sprintf("- **%s** [%s]", ent.Name(), labels)
			if len(props) > 0 {
				line += " (" + strings.Join(props, ", ") + ")"
			}
			parts = append(parts, line)
		}
	}

	if nodes := results.Subgraph.Nodes; len(nodes) > 0 {
		parts = append(parts, fmt.Sprintf("\n## Connected context (%d nodes)", len(nodes)))
		for _, n := range nodes[:min(len(nodes), maxConnectedNodes)] {
			nodeType := string(n.Type())
			if nodeType == "" {
				nodeType = "Unknown"
			}
			parts = append(parts, fmt.Sprintf("- %s: %s", nodeType, n.Name()))
		}
	}

	return strings.Join(parts, "\n")
}

// Prompt builds the user message for question over contextText.
func Prompt(question, contextText string) string {
	return fmt.Sprintf(`## Context
%s

---

## Question
%s

---

Answer the question from the context above.
Cite the source of every piece of information as [document, page].`, contextText, question)
}

// Sources lists the evidence of results as citations.
func Sources(results *types.SearchResults) []Source {
	sources := []Source{}
	if results == nil {
		return sources
	}
	for _, ev := range results.Evidence {
		doc := ev.SourceDocument
		if doc == "" {
			doc = "Unknown"
		}
		sources = append(sources, Source{
			Document:       doc,
			Page:           ev.PageNumber,
			RelevanceScore: ev.Score,
			Preview:        truncate(ev.Text, sourcePreviewLength),
		})
	}
	return sources
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
