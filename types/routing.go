package types

// Strategy selects how a query is executed.
type Strategy string

const (
	// StrategySingle runs exactly one specialist with no handoffs expected.
	StrategySingle Strategy = "single"
	// StrategySwarm runs a chain of specialists linked by handoffs.
	StrategySwarm Strategy = "swarm"
)

// RoutingDecision is the output of strategy selection, consumed once by the
// orchestrator. It is a pure function of the intent and directory state.
type RoutingDecision struct {
	Strategy             Strategy       `json:"strategy"`
	InitialSpecialist    string         `json:"initial_specialist"`
	CandidateSpecialists []string       `json:"candidate_specialists"`
	Confidence           float64        `json:"confidence"`
	Reasoning            string         `json:"reasoning"`
	Context              map[string]any `json:"context,omitempty"`
}
