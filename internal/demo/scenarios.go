// Package demo provides the sample bill of materials of each scenario.
package demo

import (
	"bytes"
	"embed"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	ebomlca "github.com/superdango/ebom-lca"
	"github.com/superdango/ebom-lca/internal/ingest"
)

//go:embed data/*.csv
var samples embed.FS

// Rows returns the sample lines of a scenario.
func Rows(scenario ebomlca.Scenario) ([]ebomlca.BomRow, error) {
	content, err := samples.ReadFile("data/" + string(scenario) + ".csv")
	if err != nil {
		return nil, fmt.Errorf("no sample for scenario %q: %w", scenario, err)
	}

	records, err := readRecords(content)
	if err != nil {
		return nil, fmt.Errorf("failed to read sample of scenario %q: %w", scenario, err)
	}

	return ingest.DecodeRecords(records)
}

// TableName returns the name given to a table created from a scenario.
func TableName(scenario ebomlca.Scenario, now time.Time) string {
	return fmt.Sprintf("Scenario-%s-%s", scenario, now.UTC().Format("20060102150405"))
}

// readRecords reads a csv whose first line holds the column names.
func readRecords(content []byte) ([]map[string]any, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	header, err := reader.Read()
	if err != nil {
		return nil, err
	}

	records := make([]map[string]any, 0)
	for {
		line, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		record := make(map[string]any, len(header))
		for i, column := range header {
			record[column] = line[i]
		}
		records = append(records, record)
	}
	return records, nil
}
