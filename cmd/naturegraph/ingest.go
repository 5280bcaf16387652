package naturegraph

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/soundprediction/naturegraph"
	"github.com/soundprediction/naturegraph/pkg/export"
	"github.com/soundprediction/naturegraph/pkg/extraction"
	"github.com/soundprediction/naturegraph/pkg/loader"
	"github.com/soundprediction/naturegraph/pkg/segment"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>",
	Short: "Extract entities from a document and load them into the graph",
	Long: `Ingest splits a document into chunks, extracts organisations, locations,
risks and actions from each chunk with the language model, writes them to the
graph and embeds the evidence text.

<path> is a text file (pages separated by form feeds), a directory of .txt
pages, or a YAML/JSON manifest of {text, page_num, source_doc} records.

Progress is checkpointed after every chunk. An interrupted run prints its run
ID; pass it to --resume to continue where it stopped.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var (
	ingestLimit       int
	ingestMethod      string
	ingestOutput      string
	ingestFormat      string
	ingestResume      string
	ingestExtractOnly bool
)

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().IntVar(&ingestLimit, "limit", 0, "process at most this many chunks (0 for all)")
	ingestCmd.Flags().StringVar(&ingestMethod, "method", "", "chunking method (size, paragraph); defaults to chunking.method")
	ingestCmd.Flags().StringVar(&ingestOutput, "output", "", "directory to export extraction results to")
	ingestCmd.Flags().StringVar(&ingestFormat, "format", "json", "export format (json, parquet)")
	ingestCmd.Flags().StringVar(&ingestResume, "resume", "", "run ID of an interrupted run to resume")
	ingestCmd.Flags().BoolVar(&ingestExtractOnly, "extract-only", false, "extract and export without writing to the graph")
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := args[0]

	var method segment.Method
	if ingestMethod != "" {
		m, err := segment.ParseMethod(ingestMethod)
		if err != nil {
			return err
		}
		method = m
	}
	format, err := export.ParseFormat(ingestFormat)
	if err != nil {
		return err
	}

	pages, err := loader.Load(path)
	if err != nil {
		return err
	}
	if len(pages) == 0 {
		return fmt.Errorf("no pages found in %s", path)
	}
	source := pages[0].SourceDocument
	if source == "" {
		source = filepath.Base(path)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, modelsRequired)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := prepareStore(ctx, a.client, ingestExtractOnly); err != nil {
		return err
	}

	progress := make(chan extraction.Progress)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		printProgress(cmd.ErrOrStderr(), progress)
	}()

	report, err := a.client.IngestPages(ctx, source, pages, &naturegraph.IngestOptions{
		RunID:       ingestResume,
		Limit:       ingestLimit,
		Method:      method,
		ExtractOnly: ingestExtractOnly,
		Progress:    progress,
	})
	close(progress)
	wg.Wait()
	if err != nil {
		return err
	}

	if ingestOutput != "" {
		files, err := export.Write(ingestOutput, source, format, report.Results)
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", f)
		}
	}

	printIngestReport(cmd.OutOrStdout(), report, ingestExtractOnly)
	return nil
}

type indexer interface {
	EnsureIndices(ctx context.Context) error
}

// prepareStore creates the graph and vector indices before anything is
// written, so a fresh database is searchable right after its first ingest.
func prepareStore(ctx context.Context, ix indexer, extractOnly bool) error {
	if extractOnly {
		return nil
	}
	if err := ix.EnsureIndices(ctx); err != nil {
		return fmt.Errorf("prepare store: %w", err)
	}
	return nil
}

func printProgress(w io.Writer, events <-chan extraction.Progress) {
	done := 0
	for ev := range events {
		done++
		status := fmt.Sprintf("%d nodes", ev.Nodes)
		if ev.Err != "" {
			status = "failed: " + ev.Err
		}
		fmt.Fprintf(w, "chunk %d extracted (%s)\n", done, status)
	}
}

func printIngestReport(w io.Writer, r *naturegraph.IngestReport, extractOnly bool) {
	fmt.Fprintf(w, "Run %s: %s\n", r.RunID, r.Source)
	fmt.Fprintf(w, "  chunks:              %d (%d resumed)\n", r.Chunks, r.Resumed)
	fmt.Fprintf(w, "  units with entities: %d\n", r.UnitsExtracted)
	fmt.Fprintf(w, "  extraction failures: %d\n", r.ExtractionFailures)
	if extractOnly {
		return
	}
	fmt.Fprintf(w, "  nodes:               %d/%d\n", r.NodesCreated, r.NodesAttempted)
	fmt.Fprintf(w, "  relationships:       %d/%d\n", r.RelationshipsCreated, r.RelationshipsAttempted)
	fmt.Fprintf(w, "  embeddings stored:   %d\n", r.EmbeddingsStored)
	if len(r.Dropped) > 0 {
		fmt.Fprintf(w, "  dropped records:     %d\n", len(r.Dropped))
		for _, d := range r.Dropped {
			fmt.Fprintf(w, "    - %s %q (%s): %s\n", d.Kind, d.Name, d.Type, d.Reason)
		}
	}
	if len(r.UnknownRelationTypes) > 0 {
		fmt.Fprintf(w, "  unknown relationship types: %v\n", r.UnknownRelationTypes)
	}
}
