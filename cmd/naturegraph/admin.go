package naturegraph

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var resetConfirmed bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every node and relationship",
	Long: `Delete every node and relationship in the configured graph store, together
with the evidence embeddings. This cannot be undone and requires --yes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetConfirmed {
			return errors.New("refusing to reset the graph without --yes")
		}
		a, err := newApp(cmd.Context(), modelsNone)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.client.Reset(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Graph cleared.")
		return nil
	},
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Create store constraints and the vector index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), modelsNone)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.client.EnsureIndices(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Indices ready (vector index %q, %d dimensions).\n",
			a.cfg.Embedding.IndexName, a.cfg.Embedding.Dimension)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd, indexCmd)
	resetCmd.Flags().BoolVar(&resetConfirmed, "yes", false, "confirm deletion")
}
