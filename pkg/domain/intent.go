package domain

// IntentCategory classifies what the human wants to do.
type IntentCategory string

const (
	IntentCreate   IntentCategory = "create"
	IntentQuery    IntentCategory = "query"
	IntentUpdate   IntentCategory = "update"
	IntentDelete   IntentCategory = "delete"
	IntentExecute  IntentCategory = "execute"
	IntentNavigate IntentCategory = "navigate"
	IntentUnknown  IntentCategory = "unknown"
)

// Valid reports whether the category is one of the closed set.
func (c IntentCategory) Valid() bool {
	switch c {
	case IntentCreate, IntentQuery, IntentUpdate, IntentDelete,
		IntentExecute, IntentNavigate, IntentUnknown:
		return true
	}
	return false
}

// ConfidenceAction is what the pipeline does with a scored intent.
type ConfidenceAction string

const (
	ConfidenceAutoExecute ConfidenceAction = "auto_execute"
	ConfidenceConfirm     ConfidenceAction = "confirm"
	ConfidenceClarify     ConfidenceAction = "clarify"
	ConfidenceReject      ConfidenceAction = "reject"
)

// EntityType is the kind of a recognized entity.
type EntityType string

const (
	EntityAction       EntityType = "action"
	EntityResourceType EntityType = "resource_type"
	EntityResourceName EntityType = "resource_name"
	EntityParameter    EntityType = "parameter"
)

// IntentSource records which parser strategy produced the intent.
type IntentSource string

const (
	IntentSourceRules IntentSource = "rules"
	IntentSourceModel IntentSource = "model"
)

// EntityMatch is one entity extracted from the utterance.
type EntityMatch struct {
	Type         EntityType `json:"type"`
	ResourceType string     `json:"resource_type,omitempty"`
	ResourceID   string     `json:"resource_id,omitempty"`
	Value        string     `json:"value"`
	Confidence   float64    `json:"confidence"`
}

// ParsedIntent is the structured result of parsing a free-text command.
type ParsedIntent struct {
	Category   IntentCategory `json:"category"`
	Entities   []EntityMatch  `json:"entities"`
	Confidence float64        `json:"confidence"`
	RawText    string         `json:"raw_text"`
	Source     IntentSource   `json:"source,omitempty"`
}

// Entity returns the first entity of the given type, or nil.
func (p *ParsedIntent) Entity(t EntityType) *EntityMatch {
	for i := range p.Entities {
		if p.Entities[i].Type == t {
			return &p.Entities[i]
		}
	}
	return nil
}

// EntitiesOf returns all entities of the given type.
func (p *ParsedIntent) EntitiesOf(t EntityType) []EntityMatch {
	var out []EntityMatch
	for _, e := range p.Entities {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// ClarificationType is the kind of question asked back to the human.
type ClarificationType string

const (
	ClarifyResourceSelection ClarificationType = "resource_selection"
	ClarifyParameterConfirm  ClarificationType = "parameter_confirm"
	ClarifyOperationConfirm  ClarificationType = "operation_confirm"
	ClarifyDisambiguation    ClarificationType = "disambiguation"
)

// ClarificationState tracks an in-progress disambiguation round. It is
// created when confidence evaluation demands it and destroyed when the
// round resolves or the max-rounds ceiling is hit.
type ClarificationState struct {
	Type      ClarificationType `json:"type"`
	Round     int               `json:"round"`
	MaxRounds int               `json:"max_rounds"`
	Question  string            `json:"question"`
	Options   []string          `json:"options,omitempty"`

	// Intent is the partial intent being refined.
	Intent *ParsedIntent `json:"intent"`
}

// Exhausted reports whether the clarification budget is spent.
func (c *ClarificationState) Exhausted() bool {
	return c.Round >= c.MaxRounds
}
