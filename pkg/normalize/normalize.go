// Package normalize turns loosely-typed extraction candidates into typed graph
// entities and relationships with deterministic identifiers, grounding every
// entity in the evidence unit it came from.
package normalize

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/soundprediction/naturegraph/pkg/types"
)

// ErrNoEvidence is returned when Normalize is called without an evidence unit.
var ErrNoEvidence = errors.New("normalize: evidence is required")

// Drop reasons.
const (
	ReasonMissingName     = "missing name"
	ReasonMissingType     = "missing type"
	ReasonUnknownType     = "unknown type"
	ReasonNoProvenance    = "evidence candidate without source_doc"
	ReasonMissingField    = "missing source, relation or target"
	ReasonInvalidRelation = "relation is not a valid identifier"
)

// Drop records one candidate that could not be turned into graph data.
type Drop struct {
	Kind   string `json:"kind"` // "node" or "relationship"
	Name   string `json:"name"`
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// Report summarises what Normalize discarded or adjusted.
type Report struct {
	Dropped              []Drop   `json:"dropped,omitempty"`
	UnknownRelationTypes []string `json:"unknown_relation_types,omitempty"`
	EnumFallbacks        int      `json:"enum_fallbacks"`
}

// Merge adds other into r.
func (r *Report) Merge(other Report) {
	r.Dropped = append(r.Dropped, other.Dropped...)
	r.UnknownRelationTypes = append(r.UnknownRelationTypes, other.UnknownRelationTypes...)
	r.EnumFallbacks += other.EnumFallbacks
}

// Result is the typed output for one extraction unit. Entities ends with the
// evidence entity; Relationships ends with one MENTIONS edge per other entity.
type Result struct {
	Entities      []types.Entity
	Relationships []types.Relationship
	Report        Report
}

// EvidenceID returns the id of the unit's evidence entity.
func (r *Result) EvidenceID() string {
	if len(r.Entities) == 0 {
		return ""
	}
	return r.Entities[len(r.Entities)-1].EntityID()
}

// Normalizer converts candidate records. It holds no per-call state and is
// safe for concurrent use.
type Normalizer struct {
	logger *slog.Logger
}

// New creates a Normalizer. A nil logger selects slog.Default().
func New(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger}
}

// Normalize builds entities and relationships from the candidates of one
// extraction unit. Malformed records are dropped and reported; they never fail
// the call. Candidates naming the same entity twice are merged into one entity.
func (n *Normalizer) Normalize(candidates types.Candidates, evidence *types.Evidence) (*Result, error) {
	if evidence == nil {
		return nil, ErrNoEvidence
	}

	res := &Result{}
	index := make(map[string]int)
	// names maps slugged names and ids to entity ids for relationship endpoints.
	names := make(map[string]string)

	for _, c := range candidates.Nodes {
		entity, drop, fallbacks := n.buildEntity(c)
		res.Report.EnumFallbacks += fallbacks
		if drop != nil {
			n.logger.Warn("Dropped candidate node", "reason", drop.Reason, "name", drop.Name, "type", drop.Type)
			res.Report.Dropped = append(res.Report.Dropped, *drop)
			continue
		}
		if entity.EntityID() == evidence.ID {
			continue
		}
		if i, ok := index[entity.EntityID()]; ok {
			res.Entities[i] = mergeEntity(res.Entities[i], entity)
			continue
		}
		index[entity.EntityID()] = len(res.Entities)
		res.Entities = append(res.Entities, entity)
		names[entity.EntityID()] = entity.EntityID()
		if name := c.String("name"); name != "" {
			names[types.Slug(name)] = entity.EntityID()
		}
	}

	for _, c := range candidates.Relationships {
		rel, drop := n.buildRelationship(c, names)
		if drop != nil {
			n.logger.Warn("Dropped candidate relationship", "reason", drop.Reason, "name", drop.Name, "type", drop.Type)
			res.Report.Dropped = append(res.Report.Dropped, *drop)
			continue
		}
		if !rel.Type.IsKnown() {
			n.logger.Warn("Unknown relationship type", "type", rel.Type, "source", rel.SourceID, "target", rel.TargetID)
			res.Report.UnknownRelationTypes = append(res.Report.UnknownRelationTypes, string(rel.Type))
		}
		res.Relationships = append(res.Relationships, rel)
	}

	for _, e := range res.Entities {
		if e.EntityType() == types.NodeEvidence {
			continue
		}
		res.Relationships = append(res.Relationships, types.Relationship{
			SourceID: e.EntityID(),
			Type:     types.RelMentions,
			TargetID: evidence.ID,
		})
	}
	res.Entities = append(res.Entities, evidence)

	return res, nil
}

func (n *Normalizer) buildEntity(c types.CandidateNode) (types.Entity, *Drop, int) {
	name := strings.TrimSpace(c.String("name"))
	typ := strings.TrimSpace(c.String("type"))
	switch {
	case typ == "":
		return nil, &Drop{Kind: "node", Name: name, Reason: ReasonMissingType}, 0
	case name == "" && typ != string(types.NodeEvidence):
		return nil, &Drop{Kind: "node", Type: typ, Reason: ReasonMissingName}, 0
	}

	nodeType, ok := types.ParseNodeType(typ)
	if !ok {
		return nil, &Drop{Kind: "node", Name: name, Type: typ, Reason: ReasonUnknownType}, 0
	}

	var (
		entity    types.Entity
		err       error
		fallbacks int
	)
	switch nodeType {
	case types.NodeOrganization:
		entity, err = types.NewOrganization(name, c.String("industry_code", "industryCode"))
	case types.NodeLocation:
		entity, err = types.NewLocation(name,
			c.String("country"),
			c.String("biome_type", "biomeType"),
			parseCoordinates(c["coordinates"]))
	case types.NodeRisk:
		category, known := types.ParseRiskCategory(c.String("category"))
		if !known {
			fallbacks++
			category = ""
		}
		entity, err = types.NewRisk(name, category,
			c.String("description"),
			c.String("financial_impact", "financialImpact"))
	case types.NodeAction:
		actionType, known := types.ParseActionType(c.String("action_type", "actionType"))
		if !known {
			fallbacks++
			actionType = ""
		}
		entity, err = types.NewAction(name, actionType,
			c.String("description"),
			c.String("status"))
	case types.NodeEvidence:
		source := c.String("source_doc", "sourceDocument")
		if source == "" {
			return nil, &Drop{Kind: "node", Name: name, Type: typ, Reason: ReasonNoProvenance}, 0
		}
		text := c.String("text")
		if text == "" {
			text = name
		}
		entity, err = types.NewEvidence(text, source, intValue(c["page_num"]), intValue(c["chunk_index"]))
	}
	if err != nil {
		return nil, &Drop{Kind: "node", Name: name, Type: typ, Reason: err.Error()}, fallbacks
	}
	return entity, nil, fallbacks
}

func (n *Normalizer) buildRelationship(c types.CandidateRelationship, names map[string]string) (types.Relationship, *Drop) {
	source := strings.TrimSpace(c.String("source"))
	relation := strings.TrimSpace(c.String("relation", "relationship_type", "type"))
	target := strings.TrimSpace(c.String("target"))
	label := fmt.Sprintf("%s -> %s", source, target)
	if source == "" || relation == "" || target == "" {
		return types.Relationship{}, &Drop{Kind: "relationship", Name: label, Type: relation, Reason: ReasonMissingField}
	}

	relType := types.NormalizeRelationType(relation)
	if !relType.IsValidIdentifier() {
		return types.Relationship{}, &Drop{Kind: "relationship", Name: label, Type: relation, Reason: ReasonInvalidRelation}
	}

	var props map[string]any
	for k, v := range c {
		switch k {
		case "source", "relation", "relationship_type", "type", "target":
			continue
		}
		if v == nil {
			continue
		}
		if props == nil {
			props = make(map[string]any)
		}
		props[k] = v
	}

	return types.Relationship{
		SourceID:   resolve(names, source),
		Type:       relType,
		TargetID:   resolve(names, target),
		Properties: props,
	}, nil
}

// resolve maps an endpoint name to the id of an entity from the same unit.
// Unknown names fall back to their bare slug; the store's endpoint guard then
// decides whether such an edge can be written.
func resolve(names map[string]string, name string) string {
	if id, ok := names[name]; ok {
		return id
	}
	slug := types.Slug(name)
	if id, ok := names[slug]; ok {
		return id
	}
	return slug
}

// mergeEntity overlays the set attributes of next onto prev.
func mergeEntity(prev, next types.Entity) types.Entity {
	switch p := prev.(type) {
	case *types.Organization:
		q := next.(*types.Organization)
		out := *p
		out.IndustryCode = pick(q.IndustryCode, p.IndustryCode)
		return &out
	case *types.Location:
		q := next.(*types.Location)
		out := *p
		out.Country = pick(q.Country, p.Country)
		out.BiomeType = pick(q.BiomeType, p.BiomeType)
		if q.Coordinates != nil {
			out.Coordinates = q.Coordinates
		}
		return &out
	case *types.Risk:
		q := next.(*types.Risk)
		out := *p
		if !q.CategoryDefaulted {
			out.Category = q.Category
			out.CategoryDefaulted = false
		}
		out.Description = pick(q.Description, p.Description)
		out.FinancialImpact = pick(q.FinancialImpact, p.FinancialImpact)
		return &out
	case *types.Action:
		q := next.(*types.Action)
		out := *p
		if !q.TypeDefaulted {
			out.ActionType = q.ActionType
			out.TypeDefaulted = false
		}
		out.Description = pick(q.Description, p.Description)
		out.Status = pick(q.Status, p.Status)
		return &out
	}
	return next
}

func pick(next, prev string) string {
	if next != "" {
		return next
	}
	return prev
}

func parseCoordinates(v any) *types.Coordinates {
	switch c := v.(type) {
	case []any:
		if len(c) != 2 {
			return nil
		}
		lat, ok1 := floatValue(c[0])
		lon, ok2 := floatValue(c[1])
		if ok1 && ok2 {
			return &types.Coordinates{Latitude: lat, Longitude: lon}
		}
	case []float64:
		if len(c) == 2 {
			return &types.Coordinates{Latitude: c[0], Longitude: c[1]}
		}
	case map[string]any:
		lat, ok1 := floatValue(firstOf(c, "latitude", "lat"))
		lon, ok2 := floatValue(firstOf(c, "longitude", "lon", "lng"))
		if ok1 && ok2 {
			return &types.Coordinates{Latitude: lat, Longitude: lon}
		}
	}
	return nil
}

func firstOf(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

func floatValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func intValue(v any) int {
	f, _ := floatValue(v)
	return int(f)
}
