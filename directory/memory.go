package directory

import (
	"sync"

	"go.uber.org/zap"
)

// MemoryDirectory is an in-memory Directory for tests and programmatic
// registration. Registration happens before routing starts; reads after
// that point are lock-free safe via the RWMutex.
type MemoryDirectory struct {
	specialists map[string]*Descriptor
	logger      *zap.Logger
	mu          sync.RWMutex
}

// NewMemoryDirectory creates an empty in-memory directory.
func NewMemoryDirectory(logger *zap.Logger) *MemoryDirectory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryDirectory{
		specialists: make(map[string]*Descriptor),
		logger:      logger.With(zap.String("component", "specialist_directory")),
	}
}

// Register adds or replaces a specialist descriptor. The ID is normalized.
func (d *MemoryDirectory) Register(desc Descriptor) {
	desc.ID = NormalizeID(desc.ID)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.specialists[desc.ID] = &desc
	d.logger.Debug("registered specialist",
		zap.String("id", desc.ID),
		zap.Bool("supports_handoff", desc.SupportsHandoff),
	)
}

// Resolve returns the descriptor for id or a SPECIALIST_NOT_FOUND error.
func (d *MemoryDirectory) Resolve(id string) (*Descriptor, error) {
	norm := NormalizeID(id)
	d.mu.RLock()
	defer d.mu.RUnlock()
	desc, ok := d.specialists[norm]
	if !ok {
		return nil, notFound(norm, sortedIDs(d.specialists))
	}
	copied := *desc
	return &copied, nil
}

// List returns all descriptors sorted by ID.
func (d *MemoryDirectory) List() []Descriptor {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Descriptor, 0, len(d.specialists))
	for _, id := range sortedIDs(d.specialists) {
		out = append(out, *d.specialists[id])
	}
	return out
}

// KnownIDs returns all identifiers sorted.
func (d *MemoryDirectory) KnownIDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return sortedIDs(d.specialists)
}

// Refresh is a no-op for the in-memory directory.
func (d *MemoryDirectory) Refresh() error {
	return nil
}
