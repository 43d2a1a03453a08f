// Package directory discovers and indexes the specialists available to the
// router. Descriptors are read-only after load; a directory may be refreshed
// on demand but is never mutated concurrently with a read.
package directory

import (
	"sort"
	"strings"

	"github.com/swarmroute/swarmroute/types"
)

// Variant distinguishes handoff-capable specialist definitions from basic
// ones. When both variants of an identifier exist, enhanced wins.
type Variant string

const (
	VariantBasic    Variant = "basic"
	VariantEnhanced Variant = "enhanced"
)

// Descriptor describes one discovered specialist.
type Descriptor struct {
	// ID is the canonical lowercase identifier (NormalizeID form).
	ID string `json:"id" yaml:"id"`
	// DomainKeywords are the domain tags this specialist declares.
	DomainKeywords []string `json:"domain_keywords" yaml:"domains"`
	// SupportsHandoff reports whether the specialist speaks the handoff
	// declaration protocol.
	SupportsHandoff bool `json:"supports_handoff" yaml:"supports_handoff"`
	// SourceRef is an opaque handle for materializing the specialist's
	// behavior (a file path for file-backed directories).
	SourceRef string `json:"source_ref,omitempty" yaml:"-"`
}

// HasDomain reports whether the descriptor declares the given domain.
func (d Descriptor) HasDomain(domain string) bool {
	for _, k := range d.DomainKeywords {
		if k == domain {
			return true
		}
	}
	return false
}

// Directory resolves specialist identifiers to descriptors.
type Directory interface {
	// Resolve returns the descriptor for a (possibly unnormalized)
	// identifier, or a SPECIALIST_NOT_FOUND error carrying the known
	// identifier list.
	Resolve(id string) (*Descriptor, error)
	// List returns all descriptors sorted by ID.
	List() []Descriptor
	// KnownIDs returns all identifiers sorted.
	KnownIDs() []string
	// Refresh re-runs discovery. In-memory directories treat it as a no-op.
	Refresh() error
}

// NormalizeID canonicalizes a specialist identifier: trimmed, lowercased,
// spaces and dashes joined with underscores ("DNS Specialist" → "dns_specialist").
func NormalizeID(id string) string {
	id = strings.TrimSpace(strings.ToLower(id))
	id = strings.ReplaceAll(id, "-", " ")
	return strings.Join(strings.Fields(id), "_")
}

func notFound(id string, known []string) error {
	return types.NewError(types.ErrSpecialistNotFound, "unknown specialist: "+id).
		WithSpecialist(id).
		WithKnownSpecialists(known)
}

func sortedIDs(m map[string]*Descriptor) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
