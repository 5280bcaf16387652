package types

import (
	"errors"
	"fmt"
	"strings"
)

// NodeType is the discriminator of an Entity variant. It doubles as the
// node label in the graph store.
type NodeType string

const (
	NodeOrganization NodeType = "Organization"
	NodeLocation     NodeType = "Location"
	NodeRisk         NodeType = "Risk"
	NodeAction       NodeType = "Action"
	NodeEvidence     NodeType = "Evidence"
)

// NodeTypes lists every entity variant in declaration order.
var NodeTypes = []NodeType{NodeOrganization, NodeLocation, NodeRisk, NodeAction, NodeEvidence}

// ParseNodeType returns the NodeType for s, or false when s names no variant.
// Matching is exact: the extraction step is prompted with these spellings.
func ParseNodeType(s string) (NodeType, bool) {
	for _, t := range NodeTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// RiskCategory classifies a Risk.
type RiskCategory string

const (
	RiskAcute      RiskCategory = "Acute"
	RiskChronic    RiskCategory = "Chronic"
	RiskTransition RiskCategory = "Transition"
)

// DefaultRiskCategory is used when a candidate category is missing or unknown.
const DefaultRiskCategory = RiskChronic

// ParseRiskCategory maps s onto a RiskCategory, falling back to
// DefaultRiskCategory. The boolean reports whether s was recognised.
func ParseRiskCategory(s string) (RiskCategory, bool) {
	switch RiskCategory(s) {
	case RiskAcute, RiskChronic, RiskTransition:
		return RiskCategory(s), true
	}
	return DefaultRiskCategory, false
}

// ActionType classifies an Action.
type ActionType string

const (
	ActionAvoid      ActionType = "Avoid"
	ActionReduce     ActionType = "Reduce"
	ActionRestore    ActionType = "Restore"
	ActionRegenerate ActionType = "Regenerate"
)

// DefaultActionType is used when a candidate action type is missing or unknown.
const DefaultActionType = ActionReduce

// ParseActionType maps s onto an ActionType, falling back to DefaultActionType.
func ParseActionType(s string) (ActionType, bool) {
	switch ActionType(s) {
	case ActionAvoid, ActionReduce, ActionRestore, ActionRegenerate:
		return ActionType(s), true
	}
	return DefaultActionType, false
}

var (
	// ErrEmptyName is returned when a named entity has no name.
	ErrEmptyName = errors.New("entity name is required")

	// ErrEmptySource is returned when evidence has no source document.
	ErrEmptySource = errors.New("evidence source document is required")
)

// Entity is a typed node of the knowledge graph. The set of implementations is
// closed: Organization, Location, Risk, Action and Evidence.
type Entity interface {
	// EntityID returns the deterministic identifier of the entity.
	EntityID() string

	// EntityType returns the variant discriminator.
	EntityType() NodeType

	// Properties returns the stored property map. Optional attributes that are
	// unset, and enum fallbacks, are omitted so that a merge never clears or
	// downgrades an existing value. See CreateDefaults.
	Properties() map[string]any

	entity()
}

// Slug lower-cases name and replaces spaces with underscores. It is the
// normalisation shared by every name-derived identifier.
func Slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

var idPrefixes = map[NodeType]string{
	NodeOrganization: "org_",
	NodeLocation:     "loc_",
	NodeRisk:         "risk_",
	NodeAction:       "action_",
}

// EntityIDFor returns the identifier a named entity of type t receives.
// Evidence identifiers are positional; see EvidenceID.
func EntityIDFor(t NodeType, name string) string {
	return idPrefixes[t] + Slug(name)
}

// EvidenceID derives the identifier of the evidence unit at the given position.
// A ".pdf" suffix is dropped from the document name and spaces become underscores.
func EvidenceID(sourceDocument string, pageNumber, chunkOrdinal int) string {
	doc := strings.ReplaceAll(strings.ReplaceAll(sourceDocument, ".pdf", ""), " ", "_")
	return fmt.Sprintf("ev_%s_p%d_c%d", doc, pageNumber, chunkOrdinal)
}

// Organization is a company or other organisation under analysis.
type Organization struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	IndustryCode string `json:"industry_code,omitempty"`
}

// NewOrganization builds an Organization with its derived id.
func NewOrganization(name, industryCode string) (*Organization, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyName
	}
	return &Organization{ID: EntityIDFor(NodeOrganization, name), Name: name, IndustryCode: industryCode}, nil
}

func (o *Organization) EntityID() string     { return o.ID }
func (o *Organization) EntityType() NodeType { return NodeOrganization }
func (o *Organization) entity()              {}

func (o *Organization) Properties() map[string]any {
	props := map[string]any{"id": o.ID, "name": o.Name}
	setString(props, "industry_code", o.IndustryCode)
	return props
}

// Coordinates is a latitude/longitude pair.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Location is a site or asset location.
type Location struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Country     string       `json:"country,omitempty"`
	BiomeType   string       `json:"biome_type,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// NewLocation builds a Location with its derived id.
func NewLocation(name, country, biomeType string, coords *Coordinates) (*Location, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyName
	}
	return &Location{
		ID:          EntityIDFor(NodeLocation, name),
		Name:        name,
		Country:     country,
		BiomeType:   biomeType,
		Coordinates: coords,
	}, nil
}

func (l *Location) EntityID() string     { return l.ID }
func (l *Location) EntityType() NodeType { return NodeLocation }
func (l *Location) entity()              {}

func (l *Location) Properties() map[string]any {
	props := map[string]any{"id": l.ID, "name": l.Name}
	setString(props, "country", l.Country)
	setString(props, "biome_type", l.BiomeType)
	if l.Coordinates != nil {
		// Graph stores accept homogeneous lists but not nested maps.
		props["coordinates"] = []float64{l.Coordinates.Latitude, l.Coordinates.Longitude}
	}
	return props
}

// Risk is a physical or transition risk.
type Risk struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Category        RiskCategory `json:"category"`
	Description     string       `json:"description,omitempty"`
	FinancialImpact string       `json:"financial_impact,omitempty"`

	// CategoryDefaulted is set when Category holds the fallback rather than a
	// supplied value.
	CategoryDefaulted bool `json:"-"`
}

// NewRisk builds a Risk with its derived id. An empty category becomes
// DefaultRiskCategory.
func NewRisk(name string, category RiskCategory, description, financialImpact string) (*Risk, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyName
	}
	defaulted := category == ""
	if defaulted {
		category = DefaultRiskCategory
	}
	return &Risk{
		ID:                EntityIDFor(NodeRisk, name),
		Name:              name,
		Category:          category,
		Description:       description,
		FinancialImpact:   financialImpact,
		CategoryDefaulted: defaulted,
	}, nil
}

func (r *Risk) EntityID() string     { return r.ID }
func (r *Risk) EntityType() NodeType { return NodeRisk }
func (r *Risk) entity()              {}

func (r *Risk) Properties() map[string]any {
	props := map[string]any{"id": r.ID, "name": r.Name}
	if !r.CategoryDefaulted {
		props["category"] = string(r.Category)
	}
	setString(props, "description", r.Description)
	setString(props, "financial_impact", r.FinancialImpact)
	return props
}

func (r *Risk) createDefaults() map[string]any {
	if r.CategoryDefaulted {
		return map[string]any{"category": string(r.Category)}
	}
	return map[string]any{}
}

// Action is a mitigation measure or strategy.
type Action struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	ActionType  ActionType `json:"action_type"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status,omitempty"`

	// TypeDefaulted is set when ActionType holds the fallback.
	TypeDefaulted bool `json:"-"`
}

// NewAction builds an Action with its derived id. An empty action type becomes
// DefaultActionType.
func NewAction(name string, actionType ActionType, description, status string) (*Action, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyName
	}
	defaulted := actionType == ""
	if defaulted {
		actionType = DefaultActionType
	}
	return &Action{
		ID:            EntityIDFor(NodeAction, name),
		Name:          name,
		ActionType:    actionType,
		Description:   description,
		Status:        status,
		TypeDefaulted: defaulted,
	}, nil
}

func (a *Action) EntityID() string     { return a.ID }
func (a *Action) EntityType() NodeType { return NodeAction }
func (a *Action) entity()              {}

func (a *Action) Properties() map[string]any {
	props := map[string]any{"id": a.ID, "name": a.Name}
	if !a.TypeDefaulted {
		props["action_type"] = string(a.ActionType)
	}
	setString(props, "description", a.Description)
	setString(props, "status", a.Status)
	return props
}

func (a *Action) createDefaults() map[string]any {
	if a.TypeDefaulted {
		return map[string]any{"action_type": string(a.ActionType)}
	}
	return map[string]any{}
}

// Evidence is a span of source text that grounds the other entities.
type Evidence struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	SourceDocument string    `json:"source_doc"`
	PageNumber     int       `json:"page_num"`
	ChunkOrdinal   int       `json:"chunk_index"`
	Embedding      []float32 `json:"-"`
}

// NewEvidence builds an Evidence unit with its positional id.
func NewEvidence(text, sourceDocument string, pageNumber, chunkOrdinal int) (*Evidence, error) {
	if strings.TrimSpace(sourceDocument) == "" {
		return nil, ErrEmptySource
	}
	return &Evidence{
		ID:             EvidenceID(sourceDocument, pageNumber, chunkOrdinal),
		Text:           text,
		SourceDocument: sourceDocument,
		PageNumber:     pageNumber,
		ChunkOrdinal:   chunkOrdinal,
	}, nil
}

func (e *Evidence) EntityID() string     { return e.ID }
func (e *Evidence) EntityType() NodeType { return NodeEvidence }
func (e *Evidence) entity()              {}

// Properties never carries the embedding; vectors are written by the vector index.
func (e *Evidence) Properties() map[string]any {
	return map[string]any{
		"id":          e.ID,
		"text":        e.Text,
		"source_doc":  e.SourceDocument,
		"page_num":    int64(e.PageNumber),
		"chunk_index": int64(e.ChunkOrdinal),
	}
}

// CreateDefaults returns the properties a store sets only when it creates the
// node for e: fallback enum values that must not overwrite a stored value.
func CreateDefaults(e Entity) map[string]any {
	if d, ok := e.(interface{ createDefaults() map[string]any }); ok {
		return d.createDefaults()
	}
	return map[string]any{}
}

func setString(props map[string]any, key, value string) {
	if value != "" {
		props[key] = value
	}
}
