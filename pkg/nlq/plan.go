package nlq

// QueryIntent distinguishes direct question answering from subgraph browsing.
type QueryIntent string

const (
	IntentQA     QueryIntent = "qa"
	IntentBrowse QueryIntent = "browse"
)

// Safety holds per-plan execution limits.
type Safety struct {
	MaxRows int `json:"maxRows"`
}

// AnswerStyle controls how the answer generator phrases its reply.
type AnswerStyle struct {
	Tone            string `json:"tone"`
	IncludeEvidence bool   `json:"includeEvidence"`
}

// QueryPlan is the structured plan produced by the LLM and validated
// before execution.
type QueryPlan struct {
	Intent        QueryIntent    `json:"intent" jsonschema:"enum=qa,enum=browse"`
	QueryLanguage string         `json:"query_language" jsonschema:"enum=graphql"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
	Safety        Safety         `json:"safety"`
	AnswerStyle   AnswerStyle    `json:"answer_style"`
}

// NLQRequest is a natural language query from the client.
type NLQRequest struct {
	Question string      `json:"question" validate:"required"`
	Mode     QueryIntent `json:"mode"`
	Context  *struct {
		FocusNodeID string `json:"focusNodeId,omitempty"`
	} `json:"context,omitempty"`
}

// EvidenceItem links a piece of answer text to graph elements.
type EvidenceItem struct {
	Text    string   `json:"text"`
	NodeIDs []string `json:"nodeIds"`
	EdgeIDs []string `json:"edgeIds"`
}

// GraphNode is a node of the extracted answer subgraph.
type GraphNode struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

// GraphEdge is an edge of the extracted answer subgraph.
// ID is derived as source-TYPE-target.
type GraphEdge struct {
	ID         string         `json:"id"`
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

// GraphData is the subgraph extracted from a query result.
type GraphData struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// NLQResponse is the full single-shot pipeline output.
type NLQResponse struct {
	Plan        QueryPlan      `json:"plan"`
	Answer      string         `json:"answer"`
	Evidence    []EvidenceItem `json:"evidence"`
	Graph       *GraphData     `json:"graph,omitempty"`
	Warnings    []string       `json:"warnings,omitempty"`
	QueryResult map[string]any `json:"queryResult,omitempty"`
}

// Stage1Response carries everything stage 1 produces. The client hands
// plan and queryResult back for stage 2; the server keeps no state.
type Stage1Response struct {
	Plan        QueryPlan      `json:"plan"`
	QueryResult map[string]any `json:"queryResult"`
	Graph       *GraphData     `json:"graph,omitempty"`
	Evidence    []EvidenceItem `json:"evidence"`
	Warnings    []string       `json:"warnings,omitempty"`
}
