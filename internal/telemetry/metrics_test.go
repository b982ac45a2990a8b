package telemetry

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/client_golang/prometheus"
)

// gatherDefault collects the named metric family from the default registry.
func gatherDefault(t *testing.T, name string) *dto.MetricFamily {
	t.Helper()
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("DefaultGatherer.Gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestHTTPRequestsTotal_Labels(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/orgs/:id", "200").Inc()

	mf := gatherDefault(t, "http_requests_total")
	if mf == nil {
		t.Fatal("http_requests_total not registered")
	}

	found := false
	for _, m := range mf.GetMetric() {
		labels := map[string]string{}
		for _, lp := range m.GetLabel() {
			labels[lp.GetName()] = lp.GetValue()
		}
		if labels["method"] == "GET" && labels["path"] == "/api/v1/orgs/:id" && labels["status"] == "200" {
			found = true
			if m.GetCounter().GetValue() < 1 {
				t.Error("counter not incremented")
			}
		}
	}
	if !found {
		t.Error("expected labelled sample not found")
	}
}

func TestDomainCounters_Registered(t *testing.T) {
	CallsForwardedTotal.WithLabelValues("sent").Inc()
	IntegrationDisconnectsTotal.WithLabelValues("gmail").Inc()
	ReminderNotificationsSentTotal.WithLabelValues("sms").Inc()
	AppointmentsCreatedTotal.Inc()
	SummaryRewritesTotal.WithLabelValues("ok").Inc()

	for _, name := range []string{
		"calls_forwarded_total",
		"integration_disconnects_total",
		"reminder_notifications_sent_total",
		"appointments_created_total",
		"call_summary_rewrites_total",
		"db_open_connections",
	} {
		if gatherDefault(t, name) == nil {
			t.Errorf("metric %s not registered", name)
		}
	}
}
