package naturegraph

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/soundprediction/naturegraph/pkg/answer"
	"github.com/soundprediction/naturegraph/pkg/driver"
	"github.com/soundprediction/naturegraph/pkg/types"
)

var (
	queryTopK  int
	queryDepth int
	queryJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search <question>",
	Short: "Run a hybrid search over the graph",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), modelsOptional)
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.client.Search(cmd.Context(), strings.Join(args, " "), queryTopK, queryDepth)
		if err != nil {
			return err
		}
		if queryJSON {
			return writeJSON(cmd.OutOrStdout(), results)
		}
		printSearchResults(cmd.OutOrStdout(), results)
		return nil
	},
}

var answerCmd = &cobra.Command{
	Use:   "answer <question>",
	Short: "Answer a question with citations from the graph",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), modelsRequired)
		if err != nil {
			return err
		}
		defer a.Close()

		ans, err := a.client.Answer(cmd.Context(), strings.Join(args, " "), queryTopK)
		if err != nil {
			return err
		}
		if queryJSON {
			return writeJSON(cmd.OutOrStdout(), ans)
		}
		printAnswer(cmd.OutOrStdout(), ans)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show node and relationship counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), modelsNone)
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.client.Statistics(cmd.Context())
		if err != nil {
			return err
		}
		if queryJSON {
			return writeJSON(cmd.OutOrStdout(), stats)
		}
		printStats(cmd.OutOrStdout(), stats)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd, answerCmd, statsCmd)

	for _, c := range []*cobra.Command{searchCmd, answerCmd} {
		c.Flags().IntVar(&queryTopK, "top-k", 0, "evidence hits to retrieve (0 for retrieval.top_k)")
	}
	searchCmd.Flags().IntVar(&queryDepth, "depth", 0, "traversal depth (0 for retrieval.traversal_depth)")
	for _, c := range []*cobra.Command{searchCmd, answerCmd, statsCmd} {
		c.Flags().BoolVar(&queryJSON, "json", false, "print JSON")
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

func printSearchResults(w io.Writer, r *types.SearchResults) {
	if r.IsEmpty() {
		fmt.Fprintln(w, "No matching evidence or entities.")
		return
	}

	if len(r.Evidence) > 0 {
		fmt.Fprintln(w, "Evidence:")
		for i, hit := range r.Evidence {
			fmt.Fprintf(w, "  %d. [%s, p.%d] score=%.3f\n     %s\n", i+1, hit.SourceDocument, hit.PageNumber, hit.Score, preview(hit.Text, 160))
		}
	}
	if len(r.Entities) > 0 {
		fmt.Fprintln(w, "Entities:")
		for _, n := range r.Entities {
			fmt.Fprintf(w, "  - %s (%s)\n", n.Name(), n.Type())
		}
	}
	if len(r.Subgraph.Nodes) > 0 {
		fmt.Fprintf(w, "Connected: %d nodes, %d relationships\n", len(r.Subgraph.Nodes), len(r.Subgraph.Relationships))
	}
}

func printAnswer(w io.Writer, a *answer.Answer) {
	fmt.Fprintln(w, a.Answer)
	if len(a.Sources) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSources:")
	for _, s := range a.Sources {
		fmt.Fprintf(w, "  [%s, p.%d] %.3f  %s\n", s.Document, s.Page, s.RelevanceScore, preview(s.Preview, 80))
	}
}

func printStats(w io.Writer, s *driver.GraphStats) {
	fmt.Fprintf(w, "Nodes:         %d\n", s.TotalNodes)
	for _, k := range sortedKeys(s.NodesByType) {
		fmt.Fprintf(w, "  %-12s %d\n", k, s.NodesByType[k])
	}
	fmt.Fprintf(w, "Relationships: %d\n", s.TotalRelationships)
	for _, k := range sortedKeys(s.RelationshipsByType) {
		fmt.Fprintf(w, "  %-12s %d\n", k, s.RelationshipsByType[k])
	}
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
