package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/naturegraph/pkg/types"
)

func newEvidence(t *testing.T) *types.Evidence {
	t.Helper()
	ev, err := types.NewEvidence("Acme Corp operates the Vietnam Plant.", "r.pdf", 1, 0)
	require.NoError(t, err)
	return ev
}

func acmeCandidates() types.Candidates {
	return types.Candidates{
		Nodes: []types.CandidateNode{
			{"name": "Acme Corp", "type": "Organization"},
			{"name": "Vietnam Plant", "type": "Location", "country": "Vietnam"},
		},
		Relationships: []types.CandidateRelationship{
			{"source": "Acme Corp", "relation": "OPERATES_IN", "target": "Vietnam Plant"},
		},
	}
}

func TestNormalize(t *testing.T) {
	n := New(nil)
	ev := newEvidence(t)

	res, err := n.Normalize(acmeCandidates(), ev)
	require.NoError(t, err)

	require.Len(t, res.Entities, 3)
	assert.Equal(t, "org_acme_corp", res.Entities[0].EntityID())
	assert.Equal(t, "loc_vietnam_plant", res.Entities[1].EntityID())
	assert.Equal(t, ev.ID, res.Entities[2].EntityID())
	assert.Equal(t, ev.ID, res.EvidenceID())

	require.Len(t, res.Relationships, 3)
	assert.Equal(t, types.Relationship{SourceID: "org_acme_corp", Type: types.RelOperatesIn, TargetID: "loc_vietnam_plant"}, res.Relationships[0])
	assert.Equal(t, types.Relationship{SourceID: "org_acme_corp", Type: types.RelMentions, TargetID: "ev_r_p1_c0"}, res.Relationships[1])
	assert.Equal(t, types.Relationship{SourceID: "loc_vietnam_plant", Type: types.RelMentions, TargetID: "ev_r_p1_c0"}, res.Relationships[2])
	assert.Empty(t, res.Report.Dropped)
}

func TestNormalizeIsDeterministic(t *testing.T) {
	n := New(nil)
	a, err := n.Normalize(acmeCandidates(), newEvidence(t))
	require.NoError(t, err)
	b, err := n.Normalize(acmeCandidates(), newEvidence(t))
	require.NoError(t, err)

	require.Equal(t, len(a.Entities), len(b.Entities))
	for i := range a.Entities {
		assert.Equal(t, a.Entities[i].EntityID(), b.Entities[i].EntityID())
	}
	assert.Equal(t, a.Relationships, b.Relationships)
}

func TestNormalizeDropsMalformedRecords(t *testing.T) {
	candidates := types.Candidates{
		Nodes: []types.CandidateNode{
			{"type": "Organization"},
			{"name": "Nameless Type"},
			{"name": "Mars", "type": "Planet"},
			{"name": 42, "type": "Risk"},
			{"name": "Flood", "type": "Risk", "category": "Catastrophic"},
			{"name": "Reforestation", "type": "Action", "actionType": "Plant"},
		},
		Relationships: []types.CandidateRelationship{
			{"source": "Reforestation", "target": "Flood"},
			{"source": "Reforestation", "relation": "mitigates", "target": "Flood"},
			{"source": "Reforestation", "relation": "HAS RISK`)", "target": "Flood"},
		},
	}

	res, err := New(nil).Normalize(candidates, newEvidence(t))
	require.NoError(t, err)

	reasons := make([]string, 0, len(res.Report.Dropped))
	for _, d := range res.Report.Dropped {
		reasons = append(reasons, d.Reason)
	}
	assert.ElementsMatch(t, []string{
		ReasonMissingName, ReasonMissingType, ReasonUnknownType, ReasonMissingName,
		ReasonMissingField, ReasonInvalidRelation,
	}, reasons)

	require.Len(t, res.Entities, 3)
	risk := res.Entities[0].(*types.Risk)
	assert.Equal(t, types.RiskChronic, risk.Category)
	action := res.Entities[1].(*types.Action)
	assert.Equal(t, types.ActionReduce, action.ActionType)
	assert.Equal(t, 2, res.Report.EnumFallbacks)

	assert.Equal(t, types.RelMitigates, res.Relationships[0].Type)
	assert.Equal(t, "action_reforestation", res.Relationships[0].SourceID)
	assert.Equal(t, "risk_flood", res.Relationships[0].TargetID)
}

func TestNormalizeEvidenceCompleteness(t *testing.T) {
	candidates := types.Candidates{
		Nodes: []types.CandidateNode{
			{"name": "Samsung Electronics", "type": "Organization", "industry_code": "C26"},
			{"name": "Giheung Campus", "type": "Location", "biome_type": "River"},
			{"name": "Water Stress", "type": "Risk", "category": "Chronic"},
			{"name": "Water Recycling", "type": "Action", "action_type": "Reduce"},
		},
	}
	ev := newEvidence(t)

	res, err := New(nil).Normalize(candidates, ev)
	require.NoError(t, err)

	mentions := 0
	for _, r := range res.Relationships {
		if r.Type == types.RelMentions && r.TargetID == ev.ID {
			mentions++
		}
	}
	assert.Equal(t, len(candidates.Nodes), mentions)

	empty, err := New(nil).Normalize(types.Candidates{}, ev)
	require.NoError(t, err)
	assert.Len(t, empty.Entities, 1)
	assert.Empty(t, empty.Relationships)
}

func TestNormalizeMergesDuplicates(t *testing.T) {
	candidates := types.Candidates{
		Nodes: []types.CandidateNode{
			{"name": "Vietnam Plant", "type": "Location", "country": "Vietnam"},
			{"name": "vietnam plant", "type": "Location", "biome_type": "Tropical", "coordinates": []any{21.0, 105.8}},
		},
	}
	res, err := New(nil).Normalize(candidates, newEvidence(t))
	require.NoError(t, err)

	require.Len(t, res.Entities, 2)
	loc := res.Entities[0].(*types.Location)
	assert.Equal(t, "Vietnam", loc.Country)
	assert.Equal(t, "Tropical", loc.BiomeType)
	require.NotNil(t, loc.Coordinates)
	assert.Equal(t, 105.8, loc.Coordinates.Longitude)
	assert.Len(t, res.Relationships, 1)
}

func TestNormalizeKeepsSuppliedEnumOverFallback(t *testing.T) {
	candidates := types.Candidates{
		Nodes: []types.CandidateNode{
			{"name": "Flood", "type": "Risk", "category": "Acute"},
			{"name": "Flood", "type": "Risk", "description": "River flooding"},
			{"name": "Reforestation", "type": "Action"},
			{"name": "Reforestation", "type": "Action", "action_type": "Restore"},
		},
	}

	res, err := New(nil).Normalize(candidates, newEvidence(t))
	require.NoError(t, err)
	require.Len(t, res.Entities, 3)

	risk := res.Entities[0].(*types.Risk)
	assert.Equal(t, types.RiskAcute, risk.Category)
	assert.False(t, risk.CategoryDefaulted)
	assert.Equal(t, "River flooding", risk.Description)

	action := res.Entities[1].(*types.Action)
	assert.Equal(t, types.ActionRestore, action.ActionType)
	assert.False(t, action.TypeDefaulted)
}

func TestNormalizeUnresolvedEndpointsFallBackToSlug(t *testing.T) {
	candidates := types.Candidates{
		Nodes: []types.CandidateNode{{"name": "Acme Corp", "type": "Organization"}},
		Relationships: []types.CandidateRelationship{
			{"source": "Acme Corp", "relation": "APPLIED_AT", "target": "Hanoi Office", "since": 2020.0},
		},
	}
	res, err := New(nil).Normalize(candidates, newEvidence(t))
	require.NoError(t, err)

	rel := res.Relationships[0]
	assert.Equal(t, "org_acme_corp", rel.SourceID)
	assert.Equal(t, "hanoi_office", rel.TargetID)
	assert.Equal(t, map[string]any{"since": 2020.0}, rel.Properties)
	assert.Equal(t, []string{"APPLIED_AT"}, res.Report.UnknownRelationTypes)
}

func TestNormalizeRequiresEvidence(t *testing.T) {
	_, err := New(nil).Normalize(acmeCandidates(), nil)
	assert.ErrorIs(t, err, ErrNoEvidence)
}
