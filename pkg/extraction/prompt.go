package extraction

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are an expert in TNFD (Taskforce on Nature-related Financial Disclosures) reporting.
You analyse text from corporate sustainability reports and extract the entities (nodes)
and relationships (edges) that belong in a nature-risk knowledge graph.

## Rules
1. Only use the node types of the ontology:
   - Organization: a company or organisation
   - Location: a site or operating location
   - Risk: a physical or transition risk
   - Action: a mitigation measure or strategy

2. Only use the relationship types of the ontology:
   - OPERATES_IN: Organization -> Location
   - HAS_RISK: Organization -> Risk
   - IMPLEMENTS: Organization -> Action
   - MITIGATES: Action -> Risk
   - LOCATED_IN: Location -> Location (geographic containment)

3. Break overly generic terms (for example 'Nature', 'Environment', 'Climate Change')
   down into specific risks or assets.

4. Extract only what the document states explicitly. Do not infer or assume.

5. Every entity and relationship must be grounded in the source text.`

const fewShotExamples = "## Example 1\n" +
	"Input text:\n" +
	"\"Samsung Electronics operates manufacturing facilities in Vietnam. The company is implementing regenerative agriculture programs to reduce soil erosion in nearby farmlands.\"\n\n" +
	"Output:\n" +
	"```json\n" +
	`{
  "nodes": [
    {"name": "Samsung Electronics", "type": "Organization"},
    {"name": "Vietnam Manufacturing Facility", "type": "Location", "country": "Vietnam"},
    {"name": "Regenerative Agriculture Program", "type": "Action", "action_type": "Reduce"},
    {"name": "Soil Erosion", "type": "Risk", "category": "Chronic"}
  ],
  "relationships": [
    {"source": "Samsung Electronics", "relation": "OPERATES_IN", "target": "Vietnam Manufacturing Facility"},
    {"source": "Samsung Electronics", "relation": "IMPLEMENTS", "target": "Regenerative Agriculture Program"},
    {"source": "Regenerative Agriculture Program", "relation": "MITIGATES", "target": "Soil Erosion"}
  ]
}` + "\n```\n\n" +
	"## Example 2\n" +
	"Input text:\n" +
	"\"당사는 수자원 부족 리스크에 대응하기 위해 중수도 재이용 시스템을 도입하였습니다. 이 시스템은 기흥 사업장에 설치되어 운영 중입니다.\"\n\n" +
	"Output:\n" +
	"```json\n" +
	`{
  "nodes": [
    {"name": "Water Recycling System", "type": "Action", "action_type": "Reduce", "status": "In Operation"},
    {"name": "Water Stress", "type": "Risk", "category": "Chronic"},
    {"name": "Giheung Site", "type": "Location", "country": "South Korea"}
  ],
  "relationships": [
    {"source": "Water Recycling System", "relation": "MITIGATES", "target": "Water Stress"},
    {"source": "Water Recycling System", "relation": "APPLIED_AT", "target": "Giheung Site"}
  ]
}` + "\n```\n\n" +
	"## Example 3\n" +
	"Input text:\n" +
	"\"Climate-related physical risks include extreme weather events such as floods and typhoons that could disrupt our supply chain operations in Southeast Asia.\"\n\n" +
	"Output:\n" +
	"```json\n" +
	`{
  "nodes": [
    {"name": "Flood", "type": "Risk", "category": "Acute", "description": "Supply chain disruption risk"},
    {"name": "Typhoon", "type": "Risk", "category": "Acute", "description": "Supply chain disruption risk"},
    {"name": "Southeast Asia Operations", "type": "Location"}
  ],
  "relationships": [
    {"source": "Flood", "relation": "AFFECTS", "target": "Southeast Asia Operations"},
    {"source": "Typhoon", "relation": "AFFECTS", "target": "Southeast Asia Operations"}
  ]
}` + "\n```\n"

const outputFormat = "```json\n" + `{
  "nodes": [
    {"name": "...", "type": "Organization|Location|Risk|Action", ...additional attributes},
    ...
  ],
  "relationships": [
    {"source": "node name 1", "relation": "RELATION_TYPE", "target": "node name 2"},
    ...
  ]
}` + "\n```"

// SystemPrompt returns the instructions sent as the system message.
func SystemPrompt() string {
	return systemPrompt
}

// UserPrompt builds the task message for text. The few-shot examples are
// included unless fewShot is false.
func UserPrompt(text string, fewShot bool) string {
	var sb strings.Builder
	if fewShot {
		sb.WriteString(fewShotExamples)
		sb.WriteString("\n---\n\n")
	}
	fmt.Fprintf(&sb, "## Task\nExtract the entities (nodes) and relationships from the text below as JSON.\n\n")
	fmt.Fprintf(&sb, "### Input text:\n%s\n\n", text)
	fmt.Fprintf(&sb, "### Output format:\n%s\n\n", outputFormat)
	sb.WriteString("Output only the nodes and relationships as JSON. Do not add any explanation.")
	return sb.String()
}
