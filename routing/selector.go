package routing

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/swarmroute/swarmroute/config"
	"github.com/swarmroute/swarmroute/directory"
	"github.com/swarmroute/swarmroute/types"
)

// Selector maps an Intent to a RoutingDecision using the specialist
// directory. Selection never fails: domains without a mapped specialist
// fall back to the configured general-purpose specialist, and validation
// of the chosen identifiers is the orchestrator's job.
type Selector struct {
	cfg    config.RoutingConfig
	dir    directory.Directory
	logger *zap.Logger
}

// NewSelector creates a strategy selector.
func NewSelector(cfg config.RoutingConfig, dir directory.Directory, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{
		cfg:    cfg,
		dir:    dir,
		logger: logger.With(zap.String("component", "strategy_selector")),
	}
}

// Select applies the decision table:
//
//	c <= 3 and d <= 1          → single, high confidence
//	c in [4,6] or d == 2       → swarm, medium confidence
//	c >= 7 or d >= 3           → swarm, low confidence, decaying with d
//
// The high-complexity row is checked first so that overlapping conditions
// resolve to the lower confidence, keeping confidence monotonic in both
// complexity and domain count.
func (s *Selector) Select(intent types.Intent) types.RoutingDecision {
	c := intent.Complexity
	d := intent.DomainCount()

	var decision types.RoutingDecision

	switch {
	case c >= 7 || d >= 3:
		decision = s.swarmDecision(intent)
		decision.Confidence = s.cfg.ConfidenceComplex - s.cfg.ConfidenceDecay*float64(d)
		if decision.Confidence < s.cfg.ConfidenceFloor {
			decision.Confidence = s.cfg.ConfidenceFloor
		}
	case c >= 4 || d == 2:
		decision = s.swarmDecision(intent)
		decision.Confidence = s.cfg.ConfidenceMedium
	default:
		decision = s.singleDecision(intent)
		decision.Confidence = s.cfg.ConfidenceSingle
	}

	decision.Reasoning = fmt.Sprintf(
		"complexity %d, %d domain(s) detected; %s strategy via %s",
		c, d, decision.Strategy, decision.InitialSpecialist,
	)
	decision.Context = seedContext(intent)

	s.logger.Debug("routing decision",
		zap.String("strategy", string(decision.Strategy)),
		zap.String("initial", decision.InitialSpecialist),
		zap.Float64("confidence", decision.Confidence),
	)
	return decision
}

func (s *Selector) singleDecision(intent types.Intent) types.RoutingDecision {
	specialist := s.cfg.FallbackSpecialist
	if len(intent.Domains) > 0 {
		specialist = s.specialistForDomain(intent.Domains[0], intent.Domains)
	}
	return types.RoutingDecision{
		Strategy:             types.StrategySingle,
		InitialSpecialist:    specialist,
		CandidateSpecialists: []string{specialist},
	}
}

func (s *Selector) swarmDecision(intent types.Intent) types.RoutingDecision {
	var candidates []string
	seen := make(map[string]bool)
	for _, domain := range intent.Domains {
		id := s.specialistForDomain(domain, intent.Domains)
		if !seen[id] {
			seen[id] = true
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		candidates = []string{s.cfg.FallbackSpecialist}
	}
	return types.RoutingDecision{
		Strategy:             types.StrategySwarm,
		InitialSpecialist:    candidates[0],
		CandidateSpecialists: candidates,
	}
}

// specialistForDomain picks a deterministic best match for one domain: the
// specialist covering the most of the intent's domains, ties broken by ID
// order (List is sorted). No match falls back to the general specialist.
func (s *Selector) specialistForDomain(domain string, allDomains []string) string {
	best := ""
	bestCoverage := 0
	for _, desc := range s.dir.List() {
		if !desc.HasDomain(domain) {
			continue
		}
		coverage := 0
		for _, d := range allDomains {
			if desc.HasDomain(d) {
				coverage++
			}
		}
		if coverage > bestCoverage {
			best = desc.ID
			bestCoverage = coverage
		}
	}
	if best == "" {
		return s.cfg.FallbackSpecialist
	}
	return best
}

// seedContext builds the context carried into the first turn.
func seedContext(intent types.Intent) map[string]any {
	ctx := map[string]any{
		"query":      intent.RawQuery,
		"category":   string(intent.Category),
		"complexity": intent.Complexity,
	}
	if len(intent.Domains) > 0 {
		ctx["detected_domains"] = intent.Domains
	}
	return ctx
}
