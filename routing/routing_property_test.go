package routing

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/swarmroute/swarmroute/config"
	"github.com/swarmroute/swarmroute/types"
)

// Complexity monotonicity: appending any modifier phrase to a query never
// decreases the score versus the same query without it.
func TestProperty_ComplexityMonotonicUnderModifiers(t *testing.T) {
	c := newTestClassifier()

	baseWords := []string{
		"renew", "the", "certificate", "for", "our", "team",
		"check", "dns", "mailbox", "tenant", "report",
	}
	modifiers := []string{
		"and then verify",
		"for 500 users",
		"integrate with the crm",
		"migrate everything",
		"with custom branding",
		"urgent",
	}

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "words")
		parts := make([]string, n)
		for i := range parts {
			parts[i] = rapid.SampledFrom(baseWords).Draw(t, "word")
		}
		base := strings.Join(parts, " ")
		modifier := rapid.SampledFrom(modifiers).Draw(t, "modifier")

		before := c.Classify(base).Complexity
		after := c.Classify(base + " " + modifier).Complexity

		if after < before {
			t.Fatalf("complexity decreased from %d to %d after adding %q to %q",
				before, after, modifier, base)
		}
	})
}

// Complexity is always within [1,10].
func TestProperty_ComplexityBounded(t *testing.T) {
	c := newTestClassifier()
	rapid.Check(t, func(t *rapid.T) {
		query := rapid.StringN(0, 200, -1).Draw(t, "query")
		score := c.Classify(query).Complexity
		if score < 1 || score > 10 {
			t.Fatalf("complexity %d out of bounds for query %q", score, query)
		}
	})
}

// Classification is a pure function of the query.
func TestProperty_ClassifyDeterministic(t *testing.T) {
	c := newTestClassifier()
	rapid.Check(t, func(t *rapid.T) {
		query := rapid.StringN(0, 120, -1).Draw(t, "query")
		a := c.Classify(query)
		b := c.Classify(query)
		if a.Complexity != b.Complexity || a.Category != b.Category || len(a.Domains) != len(b.Domains) {
			t.Fatalf("classification not deterministic for %q", query)
		}
	})
}

// Confidence monotonicity over the full (complexity, domains) grid,
// holding domain count fixed and varying complexity.
func TestProperty_ConfidenceMonotonicNonIncreasing(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	s := newTestSelector()
	allDomains := []string{"dns", "azure", "security", "email"}

	properties.Property("higher complexity never raises confidence", prop.ForAll(
		func(c1, c2, d int) bool {
			if c1 > c2 {
				c1, c2 = c2, c1
			}
			domains := allDomains[:d]
			lo := s.Select(intentWith(c1, domains...))
			hi := s.Select(intentWith(c2, domains...))
			return hi.Confidence <= lo.Confidence
		},
		gen.IntRange(1, 10),
		gen.IntRange(1, 10),
		gen.IntRange(0, len(allDomains)),
	))

	properties.Property("more domains never raise confidence", prop.ForAll(
		func(c, d1, d2 int) bool {
			if d1 > d2 {
				d1, d2 = d2, d1
			}
			lo := s.Select(intentWith(c, allDomains[:d1]...))
			hi := s.Select(intentWith(c, allDomains[:d2]...))
			return hi.Confidence <= lo.Confidence
		},
		gen.IntRange(1, 10),
		gen.IntRange(0, len(allDomains)),
		gen.IntRange(0, len(allDomains)),
	))

	properties.Property("single strategy has exactly one candidate", prop.ForAll(
		func(c, d int) bool {
			decision := s.Select(intentWith(c, allDomains[:d]...))
			if decision.Strategy == types.StrategySingle {
				return len(decision.CandidateSpecialists) == 1
			}
			return len(decision.CandidateSpecialists) >= 1
		},
		gen.IntRange(1, 10),
		gen.IntRange(0, len(allDomains)),
	))

	properties.TestingRun(t)
}

// Selector with an empty directory still routes everything to the fallback.
func TestProperty_EmptyDirectoryAlwaysFallsBack(t *testing.T) {
	cfg := config.DefaultRoutingConfig()
	s := NewSelector(cfg, newEmptyDirectory(), zap.NewNop())

	rapid.Check(t, func(t *rapid.T) {
		c := rapid.IntRange(1, 10).Draw(t, "complexity")
		domains := rapid.SliceOfN(rapid.SampledFrom([]string{"dns", "azure", "security"}), 0, 3).Draw(t, "domains")
		decision := s.Select(intentWith(c, domains...))
		for _, cand := range decision.CandidateSpecialists {
			if cand != cfg.FallbackSpecialist {
				t.Fatalf("expected fallback %q, got %q", cfg.FallbackSpecialist, cand)
			}
		}
	})
}
