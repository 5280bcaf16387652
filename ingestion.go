package naturegraph

import (
	"context"
	"fmt"
	"strings"

	"github.com/soundprediction/naturegraph/pkg/checkpoint"
	"github.com/soundprediction/naturegraph/pkg/extraction"
	"github.com/soundprediction/naturegraph/pkg/normalize"
	"github.com/soundprediction/naturegraph/pkg/segment"
	"github.com/soundprediction/naturegraph/pkg/types"
	"github.com/soundprediction/naturegraph/pkg/utils"
	"github.com/soundprediction/naturegraph/pkg/vector"
)

// UnitReport counts what one extraction unit wrote.
type UnitReport struct {
	EvidenceID             string           `json:"evidence_id"`
	NodesAttempted         int              `json:"nodes_attempted"`
	NodesCreated           int              `json:"nodes_created"`
	RelationshipsAttempted int              `json:"relationships_attempted"`
	RelationshipsCreated   int              `json:"relationships_created"`
	EmbeddingsStored       int              `json:"embeddings_stored"`
	Dropped                []normalize.Drop `json:"dropped,omitempty"`
	UnknownRelationTypes   []string         `json:"unknown_relation_types,omitempty"`
}

// IngestOptions holds options for IngestPages.
type IngestOptions struct {
	// RunID resumes the run with this id when a checkpoint for it exists.
	// Empty starts a new run.
	RunID string
	// Limit caps the number of chunks processed. Zero means no cap.
	Limit int
	// Method overrides the configured segmentation method.
	Method segment.Method
	// ExtractOnly stops after extraction; nothing is written to the graph.
	ExtractOnly bool
	// Progress receives one event per extracted chunk. IngestPages does not
	// close it.
	Progress chan<- extraction.Progress
}

// IngestReport summarises an IngestPages run.
type IngestReport struct {
	RunID                  string           `json:"run_id"`
	Source                 string           `json:"source"`
	Chunks                 int              `json:"chunks"`
	Resumed                int              `json:"resumed"`
	UnitsExtracted         int              `json:"units_extracted"`
	ExtractionFailures     int              `json:"extraction_failures"`
	NodesAttempted         int              `json:"nodes_attempted"`
	NodesCreated           int              `json:"nodes_created"`
	RelationshipsAttempted int              `json:"relationships_attempted"`
	RelationshipsCreated   int              `json:"relationships_created"`
	EmbeddingsStored       int              `json:"embeddings_stored"`
	Dropped                []normalize.Drop `json:"dropped,omitempty"`
	UnknownRelationTypes   []string         `json:"unknown_relation_types,omitempty"`

	// Results holds every extraction result in chunk order.
	Results []types.ExtractionResult `json:"-"`
}

func (r *IngestReport) add(u *UnitReport) {
	r.NodesAttempted += u.NodesAttempted
	r.NodesCreated += u.NodesCreated
	r.RelationshipsAttempted += u.RelationshipsAttempted
	r.RelationshipsCreated += u.RelationshipsCreated
	r.EmbeddingsStored += u.EmbeddingsStored
	r.Dropped = append(r.Dropped, u.Dropped...)
	r.UnknownRelationTypes = append(r.UnknownRelationTypes, u.UnknownRelationTypes...)
}

// IngestUnit normalizes one unit of candidates, upserts its entities and
// relationships, and embeds the evidence when a vector index is configured.
// Records that fail validation are dropped and reported, not returned as errors.
func (c *Client) IngestUnit(ctx context.Context, candidates types.Candidates, evidence *types.Evidence) (*UnitReport, error) {
	return c.ingestUnit(ctx, candidates, evidence, true)
}

func (c *Client) ingestUnit(ctx context.Context, candidates types.Candidates, evidence *types.Evidence, embed bool) (*UnitReport, error) {
	result, err := c.normalizer.Normalize(candidates, evidence)
	if err != nil {
		return nil, err
	}

	report := &UnitReport{
		EvidenceID:             result.EvidenceID(),
		NodesAttempted:         len(result.Entities),
		RelationshipsAttempted: len(result.Relationships),
		Dropped:                result.Report.Dropped,
		UnknownRelationTypes:   result.Report.UnknownRelationTypes,
	}
	report.NodesCreated = c.store.UpsertEntities(ctx, result.Entities)
	report.RelationshipsCreated = c.store.UpsertRelationships(ctx, result.Relationships)

	if embed && c.vectors != nil && strings.TrimSpace(evidence.Text) != "" {
		report.EmbeddingsStored = c.vectors.EmbedBatch(ctx, []vector.Item{{ID: evidence.ID, Text: evidence.Text}})
	}

	c.logger.Debug("Ingested unit",
		"evidence_id", report.EvidenceID,
		"nodes", fmt.Sprintf("%d/%d", report.NodesCreated, report.NodesAttempted),
		"relationships", fmt.Sprintf("%d/%d", report.RelationshipsCreated, report.RelationshipsAttempted),
		"dropped", len(report.Dropped))
	return report, nil
}

// IngestPages segments pages, extracts candidates from every chunk and writes
// them to the graph, then embeds the evidence. The run checkpoint is saved
// after every extracted unit and deleted once the run completes. When the
// context is cancelled the checkpoint is kept and the returned error names
// the run id to resume with.
func (c *Client) IngestPages(ctx context.Context, source string, pages []types.Page, opts *IngestOptions) (*IngestReport, error) {
	if c.extractor == nil {
		return nil, ErrNoExtractor
	}
	if opts == nil {
		opts = &IngestOptions{}
	}

	chunking := c.config.Chunking
	if opts.Method != "" {
		chunking.Method = opts.Method
	}
	chunks := segment.CreateChunksFromPages(pages, chunking)
	if opts.Limit > 0 && len(chunks) > opts.Limit {
		chunks = chunks[:opts.Limit]
	}

	cp, err := c.openRun(ctx, opts.RunID, source, string(chunking.Method), len(chunks))
	if err != nil {
		return nil, err
	}
	ctx = context.WithValue(ctx, types.ContextKeyRunID, cp.RunID)

	report := &IngestReport{RunID: cp.RunID, Source: source, Chunks: len(chunks)}
	log := c.logger.With("run_id", cp.RunID, "source", source)
	log.Info("Starting ingestion", "chunks", len(chunks), "method", chunking.Method, "resumed", len(cp.Results))

	results, err := c.extractAll(ctx, cp, chunks, opts.Progress, report)
	if err != nil {
		return report, err
	}
	report.Results = results
	for _, r := range results {
		if r.Error != "" {
			report.ExtractionFailures++
		} else if len(r.Nodes) > 0 {
			report.UnitsExtracted++
		}
	}

	if !opts.ExtractOnly {
		written, err := c.writeResults(ctx, results, report)
		if err != nil {
			return report, c.abortRun(ctx, cp, err)
		}
		c.embedEvidence(ctx, written, report)
	}

	if err := c.checkpoints.Delete(ctx, cp.RunID); err != nil {
		log.Warn("Failed to delete checkpoint", "error", err)
	}
	log.Info("Ingestion complete",
		"units_extracted", report.UnitsExtracted,
		"extraction_failures", report.ExtractionFailures,
		"nodes_created", report.NodesCreated,
		"relationships_created", report.RelationshipsCreated,
		"embeddings_stored", report.EmbeddingsStored,
		"dropped", len(report.Dropped))
	return report, nil
}

func (c *Client) openRun(ctx context.Context, runID, source, method string, total int) (*checkpoint.RunCheckpoint, error) {
	if runID != "" {
		cp, err := c.checkpoints.Load(ctx, runID)
		if err != nil {
			return nil, fmt.Errorf("failed to load checkpoint %s: %w", runID, err)
		}
		if cp != nil {
			c.logger.Info("Resuming run", "summary", cp.Summary())
			return cp, nil
		}
	} else {
		runID = checkpoint.NewRunID()
	}
	return checkpoint.New(runID, source, method, total), nil
}

// extractAll fills one result per chunk, reusing checkpointed results and
// extracting the rest in windows of the configured concurrency.
func (c *Client) extractAll(ctx context.Context, cp *checkpoint.RunCheckpoint, chunks []types.Chunk, progress chan<- extraction.Progress, report *IngestReport) ([]types.ExtractionResult, error) {
	results := make([]types.ExtractionResult, len(chunks))
	done := cp.Processed()
	var pending []int
	for i, chunk := range chunks {
		if r, ok := done[chunk.EvidenceID()]; ok {
			results[i] = r
			report.Resumed++
			continue
		}
		pending = append(pending, i)
	}

	window := c.config.Extraction.Concurrency
	if window <= 0 {
		window = extraction.DefaultConcurrency
	}
	for _, batch := range utils.Batch(pending, window) {
		if err := ctx.Err(); err != nil {
			return nil, c.abortRun(ctx, cp, err)
		}

		batchChunks := make([]types.Chunk, len(batch))
		for j, idx := range batch {
			batchChunks[j] = chunks[idx]
		}
		out := c.extractor.ExtractBatch(ctx, batchChunks, progress)

		cancelled := ctx.Err() != nil
		for j, r := range out {
			// Units cut short by cancellation are left for the resumed run.
			if cancelled && r.Error != "" {
				continue
			}
			results[batch[j]] = r
			cp.Add(r)
			if err := c.checkpoints.Save(ctx, cp); err != nil {
				c.logger.Warn("Failed to save checkpoint", "run_id", cp.RunID, "error", err)
			}
		}
		if cancelled {
			return nil, c.abortRun(ctx, cp, ctx.Err())
		}
	}
	return results, nil
}

// writeResults upserts every result and returns the evidence that was written.
func (c *Client) writeResults(ctx context.Context, results []types.ExtractionResult, report *IngestReport) ([]vector.Item, error) {
	written := make([]vector.Item, 0, len(results))
	for _, r := range results {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		evidence, err := r.Chunk.Evidence()
		if err != nil {
			c.logger.Warn("Skipping unit without evidence", "evidence_id", r.SourceEvidenceID, "error", err)
			continue
		}
		unit, err := c.ingestUnit(ctx, r.Candidates(), evidence, false)
		if err != nil {
			c.logger.Warn("Failed to ingest unit", "evidence_id", evidence.ID, "error", err)
			continue
		}
		report.add(unit)
		if strings.TrimSpace(evidence.Text) != "" {
			written = append(written, vector.Item{ID: evidence.ID, Text: evidence.Text})
		}
	}
	return written, nil
}

func (c *Client) embedEvidence(ctx context.Context, items []vector.Item, report *IngestReport) {
	if c.vectors == nil || len(items) == 0 {
		return
	}
	for _, batch := range utils.Batch(items, c.config.EmbedBatchSize) {
		if ctx.Err() != nil {
			return
		}
		report.EmbeddingsStored += c.vectors.EmbedBatch(ctx, batch)
	}
}

// abortRun records cause on the checkpoint and keeps it for a later resume.
func (c *Client) abortRun(ctx context.Context, cp *checkpoint.RunCheckpoint, cause error) error {
	cp.LastError = cause.Error()
	if err := c.checkpoints.Save(context.WithoutCancel(ctx), cp); err != nil {
		c.logger.Error("Failed to save checkpoint", "run_id", cp.RunID, "error", err)
	}
	return fmt.Errorf("ingestion interrupted, resume with run ID %s: %w", cp.RunID, cause)
}
