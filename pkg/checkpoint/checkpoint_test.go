package checkpoint

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/naturegraph/pkg/types"
)

func sampleResult(ordinal int) types.ExtractionResult {
	chunk := types.Chunk{Text: "Acme Corp operates in Vietnam.", PageNumber: 1, SourceDocument: "r.pdf", ChunkOrdinal: ordinal}
	return types.ExtractionResult{
		Chunk:            chunk,
		Nodes:            []types.CandidateNode{{"name": "Acme Corp", "type": "Organization"}},
		Relationships:    []types.CandidateRelationship{},
		SourceEvidenceID: chunk.EvidenceID(),
	}
}

func TestManager(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	manager, err := NewManager(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, manager.Dir())

	t.Run("default directory", func(t *testing.T) {
		m, err := NewManager("")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(os.TempDir(), "naturegraph-checkpoints"), m.Dir())
	})

	t.Run("save and load", func(t *testing.T) {
		cp := New(NewRunID(), "r.pdf", "size", 3)
		cp.Add(sampleResult(0))
		cp.Add(sampleResult(1))
		require.NoError(t, manager.Save(ctx, cp))

		loaded, err := manager.Load(ctx, cp.RunID)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, cp.RunID, loaded.RunID)
		assert.Equal(t, 3, loaded.TotalChunks)
		require.Len(t, loaded.Results, 2)
		assert.Equal(t, "Acme Corp", loaded.Results[0].Nodes[0].String("name"))
		assert.Contains(t, loaded.Processed(), "ev_r_p1_c1")
		assert.Equal(t, "run "+cp.RunID+": 2/3 chunks of r.pdf", loaded.Summary())

		_, err = os.Stat(filepath.Join(dir, "checkpoint_"+cp.RunID+".json.tmp"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("load missing checkpoint", func(t *testing.T) {
		loaded, err := manager.Load(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		cp := New("run-delete", "r.pdf", "size", 1)
		require.NoError(t, manager.Save(ctx, cp))

		exists, err := manager.Exists(ctx, "run-delete")
		require.NoError(t, err)
		assert.True(t, exists)

		require.NoError(t, manager.Delete(ctx, "run-delete"))
		require.NoError(t, manager.Delete(ctx, "run-delete"))

		exists, err = manager.Exists(ctx, "run-delete")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("rejects path traversal", func(t *testing.T) {
		for _, id := range []string{"", "../escape", "a/b", `a\b`, "nul\x00byte"} {
			_, err := manager.Path(id)
			assert.ErrorIs(t, err, ErrInvalidRunID, id)
		}
	})

	t.Run("list skips unreadable files", func(t *testing.T) {
		listDir := t.TempDir()
		m, err := NewManager(listDir)
		require.NoError(t, err)
		require.NoError(t, m.Save(ctx, New("a", "a.pdf", "size", 1)))
		require.NoError(t, m.Save(ctx, New("b", "b.pdf", "size", 1)))
		require.NoError(t, os.WriteFile(filepath.Join(listDir, "broken.json"), []byte("{"), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(listDir, "notes.txt"), []byte("x"), 0644))

		all, err := m.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("clean old", func(t *testing.T) {
		cleanDir := t.TempDir()
		m, err := NewManager(cleanDir)
		require.NoError(t, err)
		require.NoError(t, m.Save(ctx, New("fresh", "a.pdf", "size", 1)))

		stale := New("stale", "b.pdf", "size", 1)
		stale.LastUpdatedAt = time.Now().Add(-48 * time.Hour)
		data, err := json.Marshal(stale)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(cleanDir, "checkpoint_stale.json"), data, 0644))

		removed, err := m.CleanOld(ctx, 24*time.Hour)
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		left, err := m.List(ctx)
		require.NoError(t, err)
		require.Len(t, left, 1)
		assert.Equal(t, "fresh", left[0].RunID)
	})
}
