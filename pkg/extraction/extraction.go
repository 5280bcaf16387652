// Package extraction asks a language model for candidate entities and
// relationships in one chunk of text and parses the reply.
//
// The output is deliberately loose: candidate records are handed to
// pkg/normalize, which owns typing, identifiers and evidence grounding.
package extraction

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/soundprediction/naturegraph/pkg/nlp"
	"github.com/soundprediction/naturegraph/pkg/types"
	"github.com/soundprediction/naturegraph/pkg/utils"
)

const (
	DefaultMinTextLength = 50
	DefaultConcurrency   = 1
)

// Config configures an Extractor.
type Config struct {
	// MinTextLength is the trimmed length below which a chunk is skipped
	// without calling the model.
	MinTextLength int
	Repair        RepairMode
	Concurrency   int
	// DisableFewShot drops the worked examples from the prompt.
	DisableFewShot bool
}

// Progress reports one finished chunk of an ExtractBatch call.
type Progress struct {
	Index     int
	Completed int
	Total     int
	Nodes     int
	Err       string
}

// Extractor turns chunks into ExtractionResults.
type Extractor struct {
	llm    nlp.Client
	config Config
	logger *slog.Logger
}

// NewExtractor creates an Extractor. The client is expected to be configured
// with temperature 0 so repeated runs over the same text converge.
func NewExtractor(llm nlp.Client, cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinTextLength <= 0 {
		cfg.MinTextLength = DefaultMinTextLength
	}
	if cfg.Repair == "" {
		cfg.Repair = RepairTrailingCommas
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Extractor{llm: llm, config: cfg, logger: logger}
}

// Extract proposes candidates for one chunk. Failures never abort the caller:
// short text, provider errors and unparseable replies all yield a result with
// no candidates, and the last two set Error.
func (e *Extractor) Extract(ctx context.Context, chunk types.Chunk) types.ExtractionResult {
	result := types.ExtractionResult{
		Chunk:            chunk,
		Nodes:            []types.CandidateNode{},
		Relationships:    []types.CandidateRelationship{},
		SourceEvidenceID: chunk.EvidenceID(),
	}

	if utf8.RuneCountInString(strings.TrimSpace(chunk.Text)) < e.config.MinTextLength {
		e.logger.Debug("Skipping short chunk", "evidence_id", result.SourceEvidenceID)
		return result
	}

	if ctx.Value(types.ContextKeyRequestSource) == nil {
		ctx = context.WithValue(ctx, types.ContextKeyRequestSource, "extraction")
	}

	messages := []types.Message{
		nlp.NewSystemMessage(SystemPrompt()),
		nlp.NewUserMessage(UserPrompt(chunk.Text, !e.config.DisableFewShot)),
	}
	resp, err := e.llm.Chat(ctx, messages)
	if err != nil {
		e.logger.Warn("Extraction call failed", "evidence_id", result.SourceEvidenceID, "error", err)
		result.Error = err.Error()
		return result
	}

	candidates, err := ParseResponse(resp.Content, e.config.Repair)
	if err != nil {
		e.logger.Warn("Could not parse extraction response",
			"evidence_id", result.SourceEvidenceID,
			"error", err,
			"response", truncate(resp.Content, 500))
		result.Error = err.Error()
		return result
	}

	if candidates.Nodes != nil {
		result.Nodes = candidates.Nodes
	}
	if candidates.Relationships != nil {
		result.Relationships = candidates.Relationships
	}
	return result
}

// ExtractBatch runs Extract over chunks with the configured concurrency and
// returns results in chunk order. When progress is non-nil one event is sent
// per finished chunk; the caller must keep draining it until ExtractBatch
// returns. ExtractBatch does not close the channel.
func (e *Extractor) ExtractBatch(ctx context.Context, chunks []types.Chunk, progress chan<- Progress) []types.ExtractionResult {
	var (
		mu        sync.Mutex
		completed int
	)

	pool := utils.NewWorkerPool(e.config.Concurrency, func(ctx context.Context, i int, chunk types.Chunk) (types.ExtractionResult, error) {
		res := e.Extract(ctx, chunk)
		if progress != nil {
			mu.Lock()
			completed++
			ev := Progress{Index: i, Completed: completed, Total: len(chunks), Nodes: len(res.Nodes), Err: res.Error}
			select {
			case progress <- ev:
			case <-ctx.Done():
			}
			mu.Unlock()
		}
		return res, nil
	})

	results, errs := pool.ProcessItems(ctx, chunks)
	for i, err := range errs {
		if err == nil {
			continue
		}
		e.logger.Error("Extraction worker failed", "evidence_id", chunks[i].EvidenceID(), "error", err)
		results[i] = types.ExtractionResult{
			Chunk:            chunks[i],
			Nodes:            []types.CandidateNode{},
			Relationships:    []types.CandidateRelationship{},
			SourceEvidenceID: chunks[i].EvidenceID(),
			Error:            err.Error(),
		}
	}
	return results
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
