package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCommerceMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCommerceMetrics(reg)

	metrics.ObserveCheckout("success", 120*time.Millisecond)
	metrics.IncOrderCreated()
	metrics.IncCheckoutFailure("insufficient_inventory")
	metrics.IncPaymentEvent("success", "webhook")
	metrics.IncStatusChange("PAID")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "checkout_failures_total", "reason", "insufficient_inventory"); err != nil {
		t.Fatalf("fetch failures: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failures=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "payment_events_total", "source", "webhook"); err != nil {
		t.Fatalf("fetch payment events: %v", err)
	} else if got != 1 {
		t.Fatalf("expected payment events=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "order_status_changes_total", "to", "PAID"); err != nil {
		t.Fatalf("fetch status changes: %v", err)
	} else if got != 1 {
		t.Fatalf("expected status changes=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "checkout_duration_seconds", "outcome", "success"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestCommerceMetricsNilSafe(t *testing.T) {
	var metrics *CommerceMetrics
	metrics.IncOrderCreated()
	metrics.IncCheckoutFailure("x")
	metrics.IncPaymentEvent("y", "z")
	metrics.IncStatusChange("PAID")
	metrics.ObserveCheckout("success", time.Second)

	empty := NewCommerceMetrics(nil)
	empty.IncOrderCreated()
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
