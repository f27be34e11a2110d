package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// CounterSample is one flattened (name, attributes, value) reading pulled
// from the manual reader, shaped for JSON serving at /metrics.
type CounterSample struct {
	Name  string            `json:"name"`
	Attrs map[string]string `json:"attrs,omitempty"`
	Value int64             `json:"value"`
}

// Snapshot collects the current state of every registered counter. Errors
// from the manual reader (there's no exporter to fail against) are treated
// as "nothing collected yet" rather than surfaced, matching the debug
// endpoint's best-effort nature.
func (t *Telemetry) Snapshot(ctx context.Context) []CounterSample {
	var rm metricdata.ResourceMetrics
	if err := t.reader.Collect(ctx, &rm); err != nil {
		return nil
	}

	var out []CounterSample
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				attrs := make(map[string]string, dp.Attributes.Len())
				iter := dp.Attributes.Iter()
				for iter.Next() {
					kv := iter.Attribute()
					attrs[string(kv.Key)] = kv.Value.Emit()
				}
				out = append(out, CounterSample{
					Name:  m.Name,
					Attrs: attrs,
					Value: dp.Value,
				})
			}
		}
	}
	return out
}
