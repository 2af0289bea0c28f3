package server

import (
	"context"
	"net/http"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"leverageloop/services/leveraged/config"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}
	out := make(map[string]metricdata.Aggregation)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func cyclesByOutcome(t *testing.T, data metricdata.Aggregation) map[string]int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected int64 sum, got %T", data)
	}
	out := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		outcome, _ := dp.Attributes.Value(attribute.Key("outcome"))
		out[outcome.AsString()] += dp.Value
	}
	return out
}

func TestDepositRecordsCycleMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	f := newMeteredFixture(t, nil, provider.Meter("test"))

	if res := f.do(t, http.MethodPost, "/v1/deposit", depositRequest{Sender: depositor.String(), Amount: "1000"}, nil); res.Code != http.StatusOK {
		t.Fatalf("deposit failed: %d %s", res.Code, res.Body.String())
	}
	data := collect(t, reader)
	if got := cyclesByOutcome(t, data["leveraged.cycles"]); got["committed"] != 1 || got["reverted"] != 0 {
		t.Fatalf("unexpected cycle counts: %v", got)
	}
	hist, ok := data["leveraged.cycle_loops"].(metricdata.Histogram[int64])
	if !ok || len(hist.DataPoints) != 1 {
		t.Fatalf("expected one loops histogram point, got %#v", data["leveraged.cycle_loops"])
	}
	if hist.DataPoints[0].Count != 1 || hist.DataPoints[0].Sum != 1 {
		t.Fatalf("expected a single one-loop cycle, got count %d sum %d", hist.DataPoints[0].Count, hist.DataPoints[0].Sum)
	}
}

func TestRevertedDepositCountsAsReverted(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	f := newMeteredFixture(t, func(cfg *config.Config) { cfg.Faucet.Enabled = false }, provider.Meter("test"))

	if res := f.do(t, http.MethodPost, "/v1/deposit", depositRequest{Sender: depositor.String(), Amount: "1000"}, nil); res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", res.Code, res.Body.String())
	}
	data := collect(t, reader)
	if got := cyclesByOutcome(t, data["leveraged.cycles"]); got["reverted"] != 1 || got["committed"] != 0 {
		t.Fatalf("unexpected cycle counts: %v", got)
	}
	if _, ok := data["leveraged.cycle_loops"]; ok {
		t.Fatalf("reverted cycles must not record loops")
	}
}
