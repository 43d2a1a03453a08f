package routing

import (
	"regexp"
	"strings"

	"github.com/swarmroute/swarmroute/types"
)

// Recognizer extracts one category of entities from a query. Recognizers
// are independent: one failing never blocks the others, it only degrades
// the classification for its own category.
type Recognizer interface {
	Kind() types.EntityKind
	Recognize(query string) ([]types.Entity, error)
}

var (
	domainNamePattern = regexp.MustCompile(`\b[a-zA-Z0-9][a-zA-Z0-9-]*(?:\.[a-zA-Z0-9][a-zA-Z0-9-]*)+\b`)
	emailPattern      = regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`)
	quantityPattern   = regexp.MustCompile(`\b(\d+)\s*([a-zA-Z]+)\b`)
)

// domainNameRecognizer finds dotted host names (example.com, mail.corp.net).
type domainNameRecognizer struct{}

func (domainNameRecognizer) Kind() types.EntityKind { return types.EntityDomainName }

func (domainNameRecognizer) Recognize(query string) ([]types.Entity, error) {
	var out []types.Entity
	for _, m := range domainNamePattern.FindAllString(query, -1) {
		// Addresses are the email recognizer's job.
		if strings.Contains(m, "@") {
			continue
		}
		out = append(out, types.Entity{Kind: types.EntityDomainName, Value: strings.ToLower(m)})
	}
	return out, nil
}

// emailRecognizer finds email addresses.
type emailRecognizer struct{}

func (emailRecognizer) Kind() types.EntityKind { return types.EntityEmail }

func (emailRecognizer) Recognize(query string) ([]types.Entity, error) {
	var out []types.Entity
	for _, m := range emailPattern.FindAllString(query, -1) {
		out = append(out, types.Entity{Kind: types.EntityEmail, Value: strings.ToLower(m)})
	}
	return out, nil
}

// quantityRecognizer finds number+unit pairs ("200 users", "50 GB").
type quantityRecognizer struct{}

func (quantityRecognizer) Kind() types.EntityKind { return types.EntityQuantity }

func (quantityRecognizer) Recognize(query string) ([]types.Entity, error) {
	var out []types.Entity
	for _, m := range quantityPattern.FindAllStringSubmatch(query, -1) {
		out = append(out, types.Entity{
			Kind:  types.EntityQuantity,
			Value: m[1],
			Unit:  strings.ToLower(m[2]),
		})
	}
	return out, nil
}

// defaultRecognizers returns the three built-in recognizers.
func defaultRecognizers() []Recognizer {
	return []Recognizer{
		domainNameRecognizer{},
		emailRecognizer{},
		quantityRecognizer{},
	}
}
