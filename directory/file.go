package directory

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// definitionFile is the on-disk shape of one specialist definition.
type definitionFile struct {
	Name            string   `yaml:"name"`
	Variant         Variant  `yaml:"variant"`
	Domains         []string `yaml:"domains"`
	SupportsHandoff bool     `yaml:"supports_handoff"`
}

// FileDirectory discovers specialists by scanning a directory of YAML
// definition files. When both an enhanced and a basic definition exist for
// the same identifier, the enhanced one wins. Malformed or unreadable
// definitions are skipped with a warning rather than failing the load.
type FileDirectory struct {
	path        string
	specialists map[string]*Descriptor
	variants    map[string]Variant
	logger      *zap.Logger
	mu          sync.RWMutex
}

// NewFileDirectory scans path and builds the directory index. The initial
// scan failing (unreadable directory) is a hard error; individual bad files
// are not.
func NewFileDirectory(path string, logger *zap.Logger) (*FileDirectory, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &FileDirectory{
		path:   path,
		logger: logger.With(zap.String("component", "specialist_directory")),
	}
	if err := d.Refresh(); err != nil {
		return nil, err
	}
	return d, nil
}

// Refresh re-scans the definition directory and atomically replaces the
// index. Files are parsed concurrently; indexing stays sequential in file
// name order so conflict resolution is deterministic.
func (d *FileDirectory) Refresh() error {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return fmt.Errorf("read specialist definitions: %w", err)
	}

	type loaded struct {
		path    string
		desc    *Descriptor
		variant Variant
	}

	var (
		loadMu  sync.Mutex
		results []loaded
	)
	var g errgroup.Group
	g.SetLimit(8)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		full := filepath.Join(d.path, entry.Name())

		g.Go(func() error {
			desc, variant, err := loadDefinition(full)
			if err != nil {
				d.logger.Warn("skipping malformed specialist definition",
					zap.String("file", full),
					zap.Error(err),
				)
				return nil
			}
			loadMu.Lock()
			results = append(results, loaded{path: full, desc: desc, variant: variant})
			loadMu.Unlock()
			return nil
		})
	}
	g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].path < results[j].path })

	specialists := make(map[string]*Descriptor)
	variants := make(map[string]Variant)

	for _, r := range results {
		existing, ok := variants[r.desc.ID]
		if ok && existing == VariantEnhanced && r.variant != VariantEnhanced {
			// Enhanced definition already indexed for this ID.
			continue
		}
		specialists[r.desc.ID] = r.desc
		variants[r.desc.ID] = r.variant
	}

	d.mu.Lock()
	d.specialists = specialists
	d.variants = variants
	d.mu.Unlock()

	d.logger.Info("specialist directory loaded",
		zap.Int("count", len(specialists)),
		zap.String("path", d.path),
	)
	return nil
}

func loadDefinition(path string) (*Descriptor, Variant, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}

	var def definitionFile
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, "", fmt.Errorf("parse yaml: %w", err)
	}
	if def.Name == "" {
		return nil, "", fmt.Errorf("definition missing name")
	}

	variant := def.Variant
	if variant == "" {
		variant = VariantBasic
	}

	return &Descriptor{
		ID:              NormalizeID(def.Name),
		DomainKeywords:  def.Domains,
		SupportsHandoff: def.SupportsHandoff,
		SourceRef:       path,
	}, variant, nil
}

// Resolve returns the descriptor for id or a SPECIALIST_NOT_FOUND error.
func (d *FileDirectory) Resolve(id string) (*Descriptor, error) {
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
func (d *FileDirectory) List() []Descriptor {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Descriptor, 0, len(d.specialists))
	for _, id := range sortedIDs(d.specialists) {
		out = append(out, *d.specialists[id])
	}
	return out
}

// KnownIDs returns all identifiers sorted.
func (d *FileDirectory) KnownIDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return sortedIDs(d.specialists)
}
