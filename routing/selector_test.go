package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/swarmroute/swarmroute/config"
	"github.com/swarmroute/swarmroute/directory"
	"github.com/swarmroute/swarmroute/types"
)

func newTestDirectory() *directory.MemoryDirectory {
	dir := directory.NewMemoryDirectory(zap.NewNop())
	dir.Register(directory.Descriptor{ID: "dns_specialist", DomainKeywords: []string{"dns", "email"}, SupportsHandoff: true})
	dir.Register(directory.Descriptor{ID: "azure_specialist", DomainKeywords: []string{"azure"}, SupportsHandoff: true})
	dir.Register(directory.Descriptor{ID: "security_specialist", DomainKeywords: []string{"security"}, SupportsHandoff: true})
	dir.Register(directory.Descriptor{ID: "general_specialist", DomainKeywords: nil, SupportsHandoff: true})
	return dir
}

func newEmptyDirectory() *directory.MemoryDirectory {
	return directory.NewMemoryDirectory(zap.NewNop())
}

func newTestSelector() *Selector {
	return NewSelector(config.DefaultRoutingConfig(), newTestDirectory(), zap.NewNop())
}

func intentWith(complexity int, domains ...string) types.Intent {
	return types.Intent{
		RawQuery:   "test query",
		Domains:    domains,
		Category:   types.CategoryOperationalTask,
		Complexity: complexity,
	}
}

func TestSelect_SingleLowComplexity(t *testing.T) {
	decision := newTestSelector().Select(intentWith(3, "dns"))

	assert.Equal(t, types.StrategySingle, decision.Strategy)
	assert.Equal(t, "dns_specialist", decision.InitialSpecialist)
	assert.Equal(t, []string{"dns_specialist"}, decision.CandidateSpecialists)
	assert.Equal(t, 0.9, decision.Confidence)
}

func TestSelect_SingleNoDomainFallsBack(t *testing.T) {
	decision := newTestSelector().Select(intentWith(3))

	assert.Equal(t, types.StrategySingle, decision.Strategy)
	assert.Equal(t, "general_specialist", decision.InitialSpecialist)
}

func TestSelect_SwarmMediumComplexity(t *testing.T) {
	decision := newTestSelector().Select(intentWith(5, "dns"))

	assert.Equal(t, types.StrategySwarm, decision.Strategy)
	assert.Equal(t, 0.81, decision.Confidence)
}

func TestSelect_SwarmTwoDomains(t *testing.T) {
	decision := newTestSelector().Select(intentWith(3, "azure", "dns"))

	assert.Equal(t, types.StrategySwarm, decision.Strategy)
	require.Len(t, decision.CandidateSpecialists, 2)
	// Detection order preserved.
	assert.Equal(t, "azure_specialist", decision.InitialSpecialist)
	assert.Equal(t, []string{"azure_specialist", "dns_specialist"}, decision.CandidateSpecialists)
}

func TestSelect_SwarmHighComplexity(t *testing.T) {
	decision := newTestSelector().Select(intentWith(9, "dns", "azure", "security"))

	assert.Equal(t, types.StrategySwarm, decision.Strategy)
	assert.Len(t, decision.CandidateSpecialists, 3)
	assert.Less(t, decision.Confidence, 0.68)
	assert.GreaterOrEqual(t, decision.Confidence, 0.1)
}

func TestSelect_UnmappedDomainFallsBack(t *testing.T) {
	decision := newTestSelector().Select(intentWith(5, "finance", "dns"))

	assert.Equal(t, types.StrategySwarm, decision.Strategy)
	assert.Equal(t, []string{"general_specialist", "dns_specialist"}, decision.CandidateSpecialists)
}

func TestSelect_CandidatesDeduplicated(t *testing.T) {
	// dns_specialist covers both dns and email.
	decision := newTestSelector().Select(intentWith(5, "dns", "email"))

	assert.Equal(t, []string{"dns_specialist"}, decision.CandidateSpecialists)
}

func TestSelect_ReasoningStatesScoreAndStrategy(t *testing.T) {
	decision := newTestSelector().Select(intentWith(5, "dns", "azure"))

	assert.Contains(t, decision.Reasoning, "complexity 5")
	assert.Contains(t, decision.Reasoning, "2 domain(s)")
	assert.Contains(t, decision.Reasoning, "swarm")
}

func TestSelect_SeedContext(t *testing.T) {
	decision := newTestSelector().Select(intentWith(3, "dns"))

	assert.Equal(t, "test query", decision.Context["query"])
	assert.Equal(t, 3, decision.Context["complexity"])
	assert.Equal(t, []string{"dns"}, decision.Context["detected_domains"])
}

func TestSelect_ConfidenceMonotonicInComplexity(t *testing.T) {
	s := newTestSelector()
	prev := 1.0
	for c := 1; c <= 10; c++ {
		decision := s.Select(intentWith(c, "dns"))
		assert.LessOrEqual(t, decision.Confidence, prev,
			"confidence must not increase from complexity %d to %d", c-1, c)
		prev = decision.Confidence
	}
}

func TestSelect_ConfidenceMonotonicInDomainCount(t *testing.T) {
	s := newTestSelector()
	allDomains := []string{"dns", "azure", "security", "email", "finance", "web"}
	prev := 1.0
	for d := 0; d <= len(allDomains); d++ {
		decision := s.Select(intentWith(8, allDomains[:d]...))
		assert.LessOrEqual(t, decision.Confidence, prev,
			"confidence must not increase from %d to %d domains", d-1, d)
		prev = decision.Confidence
	}
}

func TestSelect_Idempotent(t *testing.T) {
	s := newTestSelector()
	intent := intentWith(6, "dns", "security")
	assert.Equal(t, s.Select(intent), s.Select(intent))
}
