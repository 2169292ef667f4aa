// Package materials holds the reference emission factors used to seed a material catalog.
package materials

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	ebomlca "github.com/superdango/ebom-lca"
	"github.com/superdango/ebom-lca/internal/must"
)

//go:embed data/materials.csv
var materialsCSV []byte

var labels []string
var defaults []ebomlca.MaterialEntry

func init() {
	csvMaterials := csv.NewReader(bytes.NewReader(materialsCSV))
	csvMaterials.Read() // skip header line
	for {
		record, err := csvMaterials.Read()
		if err == io.EOF {
			break
		}
		must.NoError(err)

		labels = append(labels, record[0])
		defaults = append(defaults, ebomlca.MaterialEntry{
			Label:          record[0],
			EmissionFactor: must.CastFloat64(record[1]),
		})
	}
}

// Default returns a copy of the reference catalog.
func Default() []ebomlca.MaterialEntry {
	entries := make([]ebomlca.MaterialEntry, len(defaults))
	copy(entries, defaults)
	return entries
}

// Lookup fuzzy finds the closest reference material of a free-form label,
// e.g. "Alu 6061-T6" or "steel sheet". It is a suggestion helper: factors of
// BOM lines are always resolved by exact label.
func Lookup(name string) (ebomlca.MaterialEntry, bool) {
	best := -1
	bestDistance := 0
	for _, submatch := range submatches(strings.TrimSpace(name)) {
		ranks := fuzzy.RankFindNormalizedFold(submatch, labels)
		if len(ranks) == 0 {
			continue
		}
		sort.Sort(ranks)
		if best == -1 || ranks[0].Distance < bestDistance {
			best = ranks[0].OriginalIndex
			bestDistance = ranks[0].Distance
		}
	}

	if best == -1 {
		return ebomlca.MaterialEntry{}, false
	}

	slog.Debug("fuzzy found the closest material", "source", name, "match", defaults[best].Label)

	return defaults[best], true
}

// submatches splits string into words and returns every word on its own
// plus every prefix of the sentence. For example "alu sheet 2mm" returns
// {"alu", "alu sheet", "alu sheet 2mm", "sheet", "2mm"}.
func submatches(s string) []string {
	if s == "" {
		return nil
	}
	splited := strings.Fields(s)
	submatches := make([]string, 0, 2*len(splited))
	for i, substr := range splited {
		if i > 0 {
			submatches = append(submatches, submatches[i-1]+" "+substr)
			continue
		}
		submatches = append(submatches, substr)
	}
	submatches = append(submatches, splited[1:]...)
	return submatches
}
