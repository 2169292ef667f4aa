package ebomlca

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Snapshot is the carbon state of one table at collection time.
type Snapshot struct {
	TableID   string
	Scenario  Scenario
	Threshold float64
	Report    Report
}

// SnapshotSource streams the snapshot of every table it knows. Implementations must
// stop sending as soon as ctx is done.
type SnapshotSource interface {
	Snapshots(ctx context.Context, snapshots chan *Snapshot, errs chan error)
}

// OpenMetricsHandler implements the http.Handler interface
type OpenMetricsHandler struct {
	defaultTimeout time.Duration
	source         SnapshotSource
	sourceName     string
}

// NewOpenMetricsHandler create a new OpenMetricsHandler
func NewOpenMetricsHandler(sourceName string, source SnapshotSource) *OpenMetricsHandler {
	return &OpenMetricsHandler{
		defaultTimeout: 10 * time.Second,
		source:         source,
		sourceName:     sourceName,
	}
}

// ServeHTTP implements the http.Handler interface. It collects the snapshot of every table
// and writes its material and target metrics in the http response.
func (handler *OpenMetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	snapshots := make(chan *Snapshot)
	metrics := make(chan *Metric)
	errs := make(chan error)
	errCount := 0

	baseLabels := map[string]string{
		"source": handler.sourceName,
	}

	errg, errgctx := errgroup.WithContext(r.Context())
	errgctx, cancel := context.WithTimeout(errgctx, handler.defaultTimeout)
	defer cancel()

	errg.Go(func() error {
		defer close(snapshots)
		defer close(errs)
		handler.source.Snapshots(errgctx, snapshots, errs)
		return nil
	})

	errg.Go(func() error {
		defer close(metrics)
		for snapshot := range snapshots {
			for _, metric := range SnapshotMetrics(snapshot) {
				select {
				case <-errgctx.Done():
					return nil
				case metrics <- metric.SetLabels(MergeLabels(metric.Labels, baseLabels)):
				}
			}
		}

		select {
		case <-errgctx.Done():
		case metrics <- &Metric{
			Name:   "collect_duration_ms",
			Labels: baseLabels,
			Value:  float64(time.Since(start).Milliseconds()),
		}:
		}
		return nil
	})

	errg.Go(func() error {
		for err := range errs {
			if err == nil {
				continue
			}

			errCount++

			opErr := new(OpErr)
			if errors.As(err, &opErr) {
				slog.Warn("snapshot collection failed", "err", opErr, "op", opErr.Operation)
				continue
			}
			slog.Warn("snapshot collection failed", "err", err.Error())
		}

		return nil
	})

	errg.Go(func() error {
		return writeMetrics(errgctx, w, metrics)
	})

	err := errg.Wait()
	if err != nil {
		slog.Error("failed to collect metrics", "err", err.Error())
		http.Error(w, err.Error(), 500)
		return
	}

	if err := writeMetric(w, &Metric{Name: "error_count", Labels: baseLabels, Value: float64(errCount)}); err != nil {
		slog.Warn("failed to write error count", "err", err)
	}

	slog.Info("metrics have been successfully collected", "duration_ms", time.Since(start).Milliseconds())
}

// SnapshotMetrics converts a snapshot into one mass and one carbon metric per material,
// plus the table totals and its target evaluation.
func SnapshotMetrics(snapshot *Snapshot) []*Metric {
	table := Metric{Labels: map[string]string{
		"table":    snapshot.TableID,
		"scenario": string(snapshot.Scenario),
	}}
	tableMetric := func(name string, value float64) *Metric {
		m := table.Clone()
		m.Name = name
		return m.SetValue(value)
	}

	metrics := make([]*Metric, 0, 2*len(snapshot.Report.Summaries)+4)
	for _, key := range snapshot.Report.Keys() {
		summary := snapshot.Report.Summaries[key]
		material := table.Clone()
		material.AddLabel("material", summary.Label)
		metrics = append(metrics,
			NewMassMetric(Mass(summary.MassKg)).SetLabels(material.Labels),
			NewCarbonMetric(Emissions(summary.CarbonKgCO2e)).SetLabels(material.Clone().Labels),
		)
	}

	evaluation := Evaluate(snapshot.Report.TotalCarbonKgCO2e, snapshot.Threshold)
	metrics = append(metrics,
		tableMetric("ebom_total_carbon_kgCO2e", snapshot.Report.TotalCarbonKgCO2e),
		tableMetric("ebom_total_mass_kg", snapshot.Report.TotalMassKg),
		tableMetric("ebom_target_kgCO2e", snapshot.Threshold),
		tableMetric("ebom_target_percent", evaluation.Percent).AddLabel("status", string(evaluation.Status)),
	)
	return metrics
}

// writeMetrics write all metrics sent over the channel and write them on the writer.
// Metrics labels are sorted lexicographically before being written.
func writeMetrics(ctx context.Context, w io.Writer, metrics chan *Metric) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case metric, ok := <-metrics:
			if !ok {
				return nil
			}

			if metric == nil {
				slog.Warn("discarding nil metric")
				continue
			}
			if err := writeMetric(w, metric); err != nil {
				return fmt.Errorf("failed to write metric on writer: %w", err)
			}
		}
	}
}

func writeMetric(w io.Writer, metric *Metric) error {
	metric = metric.SanitizeLabels()

	// sort labels in lexicographical order
	labels := make([]string, 0, len(metric.Labels))
	for labelName, labelValue := range metric.Labels {
		labels = append(labels, fmt.Sprintf(`%s="%s"`, labelName, escapeLabelValue(labelValue)))
	}
	slices.SortFunc(labels, strings.Compare)

	_, err := fmt.Fprintf(w, "%s{%s} %0.10f\n", metric.Name, strings.Join(labels, ","), metric.Value)
	if err != nil {
		return fmt.Errorf("writing metric %s failed: %w", metric.Name, err)
	}

	return nil
}

func escapeLabelValue(v string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(v)
}

// Metric olds the name and value of a measurement in addition to its labels.
type Metric struct {
	Name   string
	Labels map[string]string
	Value  float64
}

// Clone return a deep copy of a metric.
func (m Metric) Clone() Metric {
	copiedLabel := make(map[string]string, len(m.Labels))
	maps.Copy(copiedLabel, m.Labels)
	return Metric{
		Name:   m.Name,
		Value:  m.Value,
		Labels: copiedLabel,
	}
}

func (m *Metric) AddLabel(key, value string) *Metric {
	m.Labels = MergeLabels(
		m.Labels,
		map[string]string{
			key: value,
		},
	)
	return m
}

func (m *Metric) SetLabels(l map[string]string) *Metric {
	m.Labels = l
	return m
}

func (m *Metric) SetValue(v float64) *Metric {
	m.Value = v
	return m
}

func (m *Metric) SanitizeLabels() *Metric {
	newLabels := make(map[string]string)
	invalidChars := []string{".", "/", "-", ":", ";"}
	for label, value := range m.Labels {
		for _, char := range invalidChars {
			label = strings.ReplaceAll(label, char, "_")
		}
		newLabels[label] = value
	}
	m.Labels = newLabels
	return m
}

func NewMassMetric(value Mass) *Metric {
	return &Metric{
		Name:  "ebom_material_mass_kg",
		Value: float64(value),
	}
}

func NewCarbonMetric(value Emissions) *Metric {
	return &Metric{
		Name:  "ebom_material_carbon_kgCO2e",
		Value: float64(value),
	}
}
