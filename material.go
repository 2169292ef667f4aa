package ebomlca

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// unassignedMaterials are labels meaning "no material on this line".
var unassignedMaterials = []string{"none", "no material"}

// NormalizeMaterial returns the comparison key of a material label.
func NormalizeMaterial(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// IsUnassigned reports whether a material label carries no material.
func IsUnassigned(name *string) bool {
	if name == nil {
		return true
	}
	key := NormalizeMaterial(*name)
	if key == "" {
		return true
	}
	for _, sentinel := range unassignedMaterials {
		if key == sentinel {
			return true
		}
	}
	return false
}

// Catalog resolves emission factors by exact normalized label. When several entries
// normalize to the same key, the first one in catalog order wins.
type Catalog struct {
	entries []MaterialEntry
	byKey   map[string]int
	labels  []string
}

// NewCatalog indexes the given entries.
func NewCatalog(entries []MaterialEntry) *Catalog {
	catalog := &Catalog{
		entries: entries,
		byKey:   make(map[string]int, len(entries)),
		labels:  make([]string, 0, len(entries)),
	}
	for i, entry := range entries {
		catalog.labels = append(catalog.labels, entry.Label)
		key := NormalizeMaterial(entry.Label)
		if _, found := catalog.byKey[key]; found {
			continue
		}
		catalog.byKey[key] = i
	}
	return catalog
}

// Find returns the entry matching name exactly once normalized.
func (c *Catalog) Find(name string) (MaterialEntry, bool) {
	i, found := c.byKey[NormalizeMaterial(name)]
	if !found {
		return MaterialEntry{}, false
	}
	return c.entries[i], true
}

// EmissionFactor returns the factor of name, 0 for unknown materials.
func (c *Catalog) EmissionFactor(name string) float64 {
	entry, found := c.Find(name)
	if !found {
		return 0
	}
	return entry.EmissionFactor
}

// Fuzzy returns catalog entries whose label approximately contains name, best
// match first. It is meant for suggestions and must not be used to resolve factors.
func (c *Catalog) Fuzzy(name string) []MaterialEntry {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	ranks := fuzzy.RankFindNormalizedFold(name, c.labels)
	sort.Stable(ranks)

	matches := make([]MaterialEntry, 0, len(ranks))
	for _, rank := range ranks {
		matches = append(matches, c.entries[rank.OriginalIndex])
	}
	return matches
}
