package naturegraph

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soundprediction/naturegraph/pkg/glossary"
)

var (
	glossaryCategory string
	glossaryDefine   bool
	glossaryJSON     bool
)

var glossaryCmd = &cobra.Command{
	Use:   "glossary [text]",
	Short: "Find TNFD glossary terms in text",
	Long: `Find TNFD glossary terms in text, look a term up with --define, or list
the terms of one category with --category and no text.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		g := glossary.Default()
		out := cmd.OutOrStdout()
		text := strings.Join(args, " ")

		switch {
		case glossaryDefine:
			def, ok := g.Definition(text)
			if !ok {
				return fmt.Errorf("no glossary entry for %q", text)
			}
			fmt.Fprintln(out, def)
			return nil
		case text == "" && glossaryCategory != "":
			for _, term := range g.TermsByCategory(glossaryCategory) {
				fmt.Fprintln(out, term)
			}
			return nil
		case text == "":
			return cmd.Usage()
		}

		var matches []glossary.Match
		for _, m := range g.FindTerms(text) {
			if glossaryCategory == "" || m.Category == glossaryCategory {
				matches = append(matches, m)
			}
		}
		if glossaryJSON {
			return writeJSON(out, matches)
		}
		if len(matches) == 0 {
			fmt.Fprintln(out, "No glossary terms found.")
			return nil
		}
		for _, m := range matches {
			fmt.Fprintf(out, "%s [%s]\n  %s\n", m.Term, m.Category, m.Definition)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(glossaryCmd)
	glossaryCmd.Flags().StringVar(&glossaryCategory, "category", "", "only this category (Framework, Nature, Risk, Impact, Action)")
	glossaryCmd.Flags().BoolVar(&glossaryDefine, "define", false, "print the definition of the given term")
	glossaryCmd.Flags().BoolVar(&glossaryJSON, "json", false, "print JSON")
}
