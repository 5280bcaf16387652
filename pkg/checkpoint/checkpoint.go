// Package checkpoint persists the extraction results of an ingestion run so
// that a terminated run can be resumed. A checkpoint is one JSON file per
// run, rewritten atomically after every processed unit and deleted once the
// run completes.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soundprediction/naturegraph/pkg/types"
)

// ErrInvalidRunID is returned when a run ID contains invalid characters
var ErrInvalidRunID = errors.New("invalid run ID: contains path traversal or invalid characters")

// RunCheckpoint is the state of a partially processed ingestion run.
type RunCheckpoint struct {
	RunID          string `json:"run_id"`
	SourceDocument string `json:"source_doc"`
	Method         string `json:"method,omitempty"`
	TotalChunks    int    `json:"total_chunks"`

	CreatedAt     time.Time `json:"created_at"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
	LastError     string    `json:"last_error,omitempty"`

	// Results holds one entry per processed unit, in processing order.
	Results []types.ExtractionResult `json:"results"`
}

// NewRunID returns a fresh identifier for an ingestion run.
func NewRunID() string {
	return uuid.NewString()
}

// New creates an empty checkpoint for a run over totalChunks chunks.
func New(runID, sourceDocument, method string, totalChunks int) *RunCheckpoint {
	now := time.Now()
	return &RunCheckpoint{
		RunID:          runID,
		SourceDocument: sourceDocument,
		Method:         method,
		TotalChunks:    totalChunks,
		CreatedAt:      now,
		LastUpdatedAt:  now,
		Results:        []types.ExtractionResult{},
	}
}

// Add appends the result of one processed unit.
func (c *RunCheckpoint) Add(result types.ExtractionResult) {
	c.Results = append(c.Results, result)
}

// Processed returns the results keyed by evidence id.
func (c *RunCheckpoint) Processed() map[string]types.ExtractionResult {
	done := make(map[string]types.ExtractionResult, len(c.Results))
	for _, r := range c.Results {
		done[r.SourceEvidenceID] = r
	}
	return done
}

// Summary returns a one-line description of the run's progress.
func (c *RunCheckpoint) Summary() string {
	s := fmt.Sprintf("run %s: %d/%d chunks of %s", c.RunID, len(c.Results), c.TotalChunks, c.SourceDocument)
	if c.LastError != "" {
		s += " (last error: " + c.LastError + ")"
	}
	return s
}

// Manager reads and writes run checkpoints in one directory.
type Manager struct {
	dir string
}

// NewManager creates a checkpoint manager.
// If dir is empty, uses os.TempDir()/naturegraph-checkpoints
func NewManager(dir string) (*Manager, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "naturegraph-checkpoints")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	return &Manager{dir: dir}, nil
}

// Dir returns the checkpoint directory path
func (m *Manager) Dir() string {
	return m.dir
}

// validateRunID rejects IDs containing path separators, path traversal
// sequences, or null bytes.
func validateRunID(runID string) error {
	if runID == "" || strings.Contains(runID, "..") || strings.ContainsAny(runID, "/\\\x00") {
		return ErrInvalidRunID
	}
	return nil
}

func isPathWithinDirectory(path, directory string) bool {
	cleanPath := filepath.Clean(path)
	cleanDir := filepath.Clean(directory)
	if !strings.HasSuffix(cleanDir, string(filepath.Separator)) {
		cleanDir += string(filepath.Separator)
	}
	return strings.HasPrefix(cleanPath, cleanDir)
}

// Path returns the file path for a run's checkpoint.
func (m *Manager) Path(runID string) (string, error) {
	if err := validateRunID(runID); err != nil {
		return "", err
	}

	fullPath := filepath.Join(m.dir, fmt.Sprintf("checkpoint_%s.json", runID))
	if !isPathWithinDirectory(fullPath, m.dir) {
		return "", ErrInvalidRunID
	}
	return fullPath, nil
}

// Save persists the checkpoint to disk
func (m *Manager) Save(ctx context.Context, checkpoint *RunCheckpoint) error {
	checkpoint.LastUpdatedAt = time.Now()

	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	path, err := m.Path(checkpoint.RunID)
	if err != nil {
		return err
	}

	// Write to a temporary file first, then rename for atomic write
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename checkpoint file: %w", err)
	}
	return nil
}

// Load retrieves a checkpoint from disk. It returns nil, nil when the run has
// no checkpoint.
func (m *Manager) Load(ctx context.Context, runID string) (*RunCheckpoint, error) {
	path, err := m.Path(runID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var checkpoint RunCheckpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &checkpoint, nil
}

// Delete removes a checkpoint from disk. Deleting a missing checkpoint is not
// an error.
func (m *Manager) Delete(ctx context.Context, runID string) error {
	path, err := m.Path(runID)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint file: %w", err)
	}
	return nil
}

// Exists checks if a checkpoint exists for a run
func (m *Manager) Exists(ctx context.Context, runID string) (bool, error) {
	path, err := m.Path(runID)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check checkpoint existence: %w", err)
	}
	return true, nil
}

// List returns all readable checkpoints in the directory. Unreadable files
// are skipped.
func (m *Manager) List(ctx context.Context) ([]*RunCheckpoint, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint directory: %w", err)
	}

	var checkpoints []*RunCheckpoint
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(m.dir, entry.Name()))
		if err != nil {
			continue
		}

		var checkpoint RunCheckpoint
		if err := json.Unmarshal(data, &checkpoint); err != nil {
			continue
		}
		checkpoints = append(checkpoints, &checkpoint)
	}
	return checkpoints, nil
}

// CleanOld removes checkpoints not updated within maxAge.
func (m *Manager) CleanOld(ctx context.Context, maxAge time.Duration) (int, error) {
	checkpoints, err := m.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, checkpoint := range checkpoints {
		if !checkpoint.LastUpdatedAt.Before(cutoff) {
			continue
		}
		if err := m.Delete(ctx, checkpoint.RunID); err != nil {
			continue
		}
		removed++
	}
	return removed, nil
}
