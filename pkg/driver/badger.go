package driver

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/soundprediction/naturegraph/pkg/types"
)

// Key layout:
//
//	n/<id>                          node record (JSON)
//	o/<source>\x00<type>\x00<target> relationship record (JSON)
//	i/<target>\x00<type>\x00<source> reverse adjacency (empty value)
//	v/<id>                          evidence embedding (little-endian float32)
var (
	nodePrefix      = []byte("n/")
	outPrefix       = []byte("o/")
	inPrefix        = []byte("i/")
	embeddingPrefix = []byte("v/")
)

const keySep = "\x00"

// BadgerConfig configures the embedded store. An empty Path keeps the graph
// in memory.
type BadgerConfig struct {
	Path     string
	InMemory bool
}

// BadgerDriver implements GraphStore on an embedded BadgerDB.
type BadgerDriver struct {
	db     *badger.DB
	logger *slog.Logger
}

type nodeRecord struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	Properties map[string]any `json:"properties"`
}

func (r *nodeRecord) graphNode() *types.GraphNode {
	return &types.GraphNode{ID: r.ID, Labels: []string{r.Label}, Properties: r.Properties}
}

// NewBadgerDriver opens (or creates) the embedded store.
func NewBadgerDriver(cfg BadgerConfig, logger *slog.Logger) (*BadgerDriver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	inMemory := cfg.InMemory || cfg.Path == ""
	path := cfg.Path
	if inMemory {
		path = ""
	}
	db, err := badger.Open(badger.DefaultOptions(path).WithInMemory(inMemory).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("%w: open badger at %q: %v", ErrConnectivity, path, err)
	}
	return &BadgerDriver{db: db, logger: logger.With("component", "badger")}, nil
}

func nodeKey(id string) []byte      { return append(append([]byte{}, nodePrefix...), id...) }
func embeddingKey(id string) []byte { return append(append([]byte{}, embeddingPrefix...), id...) }

func outKey(source string, relType types.RelationType, target string) []byte {
	return append(append([]byte{}, outPrefix...), source+keySep+string(relType)+keySep+target...)
}

func inKey(target string, relType types.RelationType, source string) []byte {
	return append(append([]byte{}, inPrefix...), target+keySep+string(relType)+keySep+source...)
}

func adjacencyPrefix(prefix []byte, id string) []byte {
	return append(append([]byte{}, prefix...), id+keySep...)
}

func getNode(txn *badger.Txn, id string) (*nodeRecord, error) {
	item, err := txn.Get(nodeKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var rec nodeRecord
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	return &rec, err
}

func getRelationship(txn *badger.Txn, key []byte) (*types.Relationship, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}
	var rel types.Relationship
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rel)
	})
	return &rel, err
}

// UpsertEntity merges a node by id, overlaying the entity's properties.
func (b *BadgerDriver) UpsertEntity(ctx context.Context, entity types.Entity) (string, error) {
	if entity == nil {
		return "", fmt.Errorf("cannot upsert nil entity")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := entity.EntityID()
	err := b.db.Update(func(txn *badger.Txn) error {
		rec, err := getNode(txn, id)
		if errors.Is(err, ErrNodeNotFound) {
			rec = &nodeRecord{ID: id, Label: string(entity.EntityType()), Properties: types.CreateDefaults(entity)}
		} else if err != nil {
			return err
		}
		for k, v := range entity.Properties() {
			rec.Properties[k] = v
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(nodeKey(id), data)
	})
	if err != nil {
		return "", fmt.Errorf("upsert %s %s: %w", entity.EntityType(), id, err)
	}
	return id, nil
}

// UpsertEntities upserts each entity, isolating per-item failures.
func (b *BadgerDriver) UpsertEntities(ctx context.Context, entities []types.Entity) int {
	return upsertEntitiesEach(ctx, b, b.logger, entities)
}

// UpsertRelationship merges a relationship between two existing nodes.
func (b *BadgerDriver) UpsertRelationship(ctx context.Context, rel types.Relationship) (bool, error) {
	if err := checkRelationship(rel); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		for _, id := range []string{rel.SourceID, rel.TargetID} {
			if _, err := txn.Get(nodeKey(id)); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					return fmt.Errorf("%w: %s-[%s]->%s", ErrMissingEndpoint, rel.SourceID, rel.Type, rel.TargetID)
				}
				return err
			}
		}

		key := outKey(rel.SourceID, rel.Type, rel.TargetID)
		stored, err := getRelationship(txn, key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			stored = &types.Relationship{SourceID: rel.SourceID, Type: rel.Type, TargetID: rel.TargetID}
		} else if err != nil {
			return err
		}
		for k, v := range rel.Properties {
			if stored.Properties == nil {
				stored.Properties = make(map[string]any)
			}
			stored.Properties[k] = v
		}

		data, err := json.Marshal(stored)
		if err != nil {
			return err
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set(inKey(rel.TargetID, rel.Type, rel.SourceID), nil)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpsertRelationships upserts each relationship, isolating per-item failures.
func (b *BadgerDriver) UpsertRelationships(ctx context.Context, rels []types.Relationship) int {
	return upsertRelationshipsEach(ctx, b, b.logger, rels)
}

// GetNode retrieves a node by id.
func (b *BadgerDriver) GetNode(ctx context.Context, id string) (*types.GraphNode, error) {
	var node *types.GraphNode
	err := b.db.View(func(txn *badger.Txn) error {
		rec, err := getNode(txn, id)
		if err != nil {
			return err
		}
		node = rec.graphNode()
		return nil
	})
	return node, err
}

// edgesOf lists the relationships touching id in the given direction.
func edgesOf(txn *badger.Txn, id string, direction Direction) ([]types.Relationship, error) {
	var rels []types.Relationship

	if direction == DirectionOut || direction == DirectionBoth {
		prefix := adjacencyPrefix(outPrefix, id)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: 50})
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rel types.Relationship
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &rel) }); err != nil {
				it.Close()
				return nil, err
			}
			rels = append(rels, rel)
		}
		it.Close()
	}

	if direction == DirectionIn || direction == DirectionBoth {
		prefix := adjacencyPrefix(inPrefix, id)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, k := range keys {
			parts := strings.SplitN(string(bytes.TrimPrefix(k, inPrefix)), keySep, 3)
			if len(parts) != 3 {
				continue
			}
			rel, err := getRelationship(txn, outKey(parts[2], types.RelationType(parts[1]), parts[0]))
			if err != nil {
				return nil, err
			}
			rels = append(rels, *rel)
		}
	}
	return rels, nil
}

// Neighbors walks breadth-first up to depth hops. Every edge crossed is
// reported, so an edge seen from both of its endpoints appears twice.
func (b *BadgerDriver) Neighbors(ctx context.Context, id string, depth int, direction Direction) (*types.Subgraph, error) {
	depth = clampDepth(depth)
	sub := &types.Subgraph{}

	err := b.db.View(func(txn *badger.Txn) error {
		if _, err := getNode(txn, id); err != nil {
			if errors.Is(err, ErrNodeNotFound) {
				return nil
			}
			return err
		}

		visited := map[string]bool{id: true}
		frontier := []string{id}
		for hop := 0; hop < depth && len(frontier) > 0; hop++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			var next []string
			for _, current := range frontier {
				rels, err := edgesOf(txn, current, direction)
				if err != nil {
					return err
				}
				for _, rel := range rels {
					sub.Relationships = append(sub.Relationships, rel)
					other := rel.TargetID
					if other == current {
						other = rel.SourceID
					}
					if visited[other] {
						continue
					}
					visited[other] = true
					rec, err := getNode(txn, other)
					if err != nil {
						if errors.Is(err, ErrNodeNotFound) {
							continue
						}
						return err
					}
					sub.Nodes = append(sub.Nodes, rec.graphNode())
					next = append(next, other)
				}
			}
			frontier = next
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// SearchByName scans nodes for a case-insensitive name match, in id order.
func (b *BadgerDriver) SearchByName(ctx context.Context, substring string, nodeType types.NodeType, limit int) ([]*types.GraphNode, error) {
	nodes := []*types.GraphNode{}
	needle := strings.ToLower(strings.TrimSpace(substring))
	if needle == "" {
		return nodes, nil
	}
	if limit <= 0 {
		limit = 10
	}

	err := b.db.View(func(txn *badger.Txn) error {
		return scanNodes(txn, func(rec *nodeRecord) bool {
			if nodeType != "" && rec.Label != string(nodeType) {
				return true
			}
			name, _ := AsString(rec.Properties["name"])
			if name != "" && strings.Contains(strings.ToLower(name), needle) {
				nodes = append(nodes, rec.graphNode())
			}
			return len(nodes) < limit
		})
	})
	return nodes, err
}

func scanNodes(txn *badger.Txn, fn func(rec *nodeRecord) bool) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = nodePrefix
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Seek(nodePrefix); it.ValidForPrefix(nodePrefix); it.Next() {
		var rec nodeRecord
		if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &rec) }); err != nil {
			return err
		}
		if !fn(&rec) {
			return nil
		}
	}
	return nil
}

// Statistics counts nodes by label and relationships by type.
func (b *BadgerDriver) Statistics(ctx context.Context) (*GraphStats, error) {
	stats := newGraphStats()
	err := b.db.View(func(txn *badger.Txn) error {
		if err := scanNodes(txn, func(rec *nodeRecord) bool {
			stats.TotalNodes++
			stats.NodesByType[rec.Label]++
			return true
		}); err != nil {
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = outPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(outPrefix); it.ValidForPrefix(outPrefix); it.Next() {
			parts := strings.SplitN(string(bytes.TrimPrefix(it.Item().Key(), outPrefix)), keySep, 3)
			stats.TotalRelationships++
			if len(parts) == 3 {
				stats.RelationshipsByType[parts[1]]++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// CreateIndices is a no-op: lookups are served by the key layout.
func (b *BadgerDriver) CreateIndices(ctx context.Context) error {
	return nil
}

// Clear drops every key.
func (b *BadgerDriver) Clear(ctx context.Context) error {
	return b.db.DropAll()
}

// SetEmbedding attaches a vector to an existing Evidence node.
func (b *BadgerDriver) SetEmbedding(ctx context.Context, id string, vector []float32) error {
	return b.db.Update(func(txn *badger.Txn) error {
		rec, err := getNode(txn, id)
		if err != nil {
			return err
		}
		if rec.Label != string(types.NodeEvidence) {
			return fmt.Errorf("%w: %s is a %s, not Evidence", ErrNodeNotFound, id, rec.Label)
		}
		return txn.Set(embeddingKey(id), encodeVector(vector))
	})
}

// Embeddings calls fn for every stored evidence embedding.
func (b *BadgerDriver) Embeddings(ctx context.Context, fn func(id string, vector []float32) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = embeddingPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(embeddingPrefix); it.ValidForPrefix(embeddingPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			id := string(bytes.TrimPrefix(it.Item().Key(), embeddingPrefix))
			var vec []float32
			if err := it.Item().Value(func(val []byte) error {
				vec = decodeVector(val)
				return nil
			}); err != nil {
				return err
			}
			if err := fn(id, vec); err != nil {
				return err
			}
		}
		return nil
	})
}

// Provider returns GraphProviderBadger.
func (b *BadgerDriver) Provider() GraphProvider {
	return GraphProviderBadger
}

// Close closes the database.
func (b *BadgerDriver) Close() error {
	return b.db.Close()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v
}

var _ GraphStore = (*BadgerDriver)(nil)
