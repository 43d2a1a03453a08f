package types

// Category classifies what kind of request a query is.
type Category string

const (
	CategoryTechnicalQuestion  Category = "technical_question"
	CategoryOperationalTask    Category = "operational_task"
	CategoryStrategicPlanning  Category = "strategic_planning"
	CategoryAnalysisResearch   Category = "analysis_research"
	CategoryCreativeGeneration Category = "creative_generation"
)

// EntityKind identifies which recognizer produced an entity.
type EntityKind string

const (
	EntityDomainName EntityKind = "domain_name"
	EntityEmail      EntityKind = "email"
	EntityQuantity   EntityKind = "quantity"
)

// Entity is a typed span extracted from the raw query.
type Entity struct {
	Kind  EntityKind `json:"kind"`
	Value string     `json:"value"`
	// Unit is set for quantity entities ("users", "GB"), empty otherwise.
	Unit string `json:"unit,omitempty"`
}

// Intent is the immutable result of classifying one query.
type Intent struct {
	RawQuery   string              `json:"raw_query"`
	Domains    []string            `json:"domains"`
	Category   Category            `json:"category"`
	Complexity int                 `json:"complexity"`
	Entities   map[string][]Entity `json:"entities,omitempty"`
}

// DomainCount returns the number of distinct detected domains.
func (i Intent) DomainCount() int {
	return len(i.Domains)
}
