// prometheus.go - Prometheus text exporter for the server counters
package server

import (
	"fmt"
	"net/http"
	"strings"
)

// PrometheusExporter converts internal metrics to Prometheus format
type PrometheusExporter struct {
	metrics *Metrics
}

func NewPrometheusExporter(m *Metrics) *PrometheusExporter {
	return &PrometheusExporter{metrics: m}
}

// Handler returns an HTTP handler for the /metrics endpoint
func (p *PrometheusExporter) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(p.render(p.metrics.Snapshot())))
	}
}

func (p *PrometheusExporter) render(snap MetricsSnapshot) string {
	var out strings.Builder

	writeMetric(&out, "newsletter_requests_total", "counter", "Total number of HTTP requests", snap.RequestsTotal)
	writeMetric(&out, "newsletter_request_errors_4xx_total", "counter", "HTTP responses with a 4xx status", snap.RequestErrors4xx)
	writeMetric(&out, "newsletter_request_errors_5xx_total", "counter", "HTTP responses with a 5xx status", snap.RequestErrors5xx)

	out.WriteString("# HELP newsletter_subscriptions_total Subscription attempts by outcome\n")
	out.WriteString("# TYPE newsletter_subscriptions_total counter\n")
	fmt.Fprintf(&out, "newsletter_subscriptions_total{outcome=%q} %d\n", "created", snap.SubscriptionsCreated)
	fmt.Fprintf(&out, "newsletter_subscriptions_total{outcome=%q} %d\n", "rejected", snap.SubscriptionsRejected)
	fmt.Fprintf(&out, "newsletter_subscriptions_total{outcome=%q} %d\n\n", "failed", snap.SubscriptionsFailed)

	out.WriteString("# HELP newsletter_welcome_mails_total Welcome mails by result\n")
	out.WriteString("# TYPE newsletter_welcome_mails_total counter\n")
	fmt.Fprintf(&out, "newsletter_welcome_mails_total{result=%q} %d\n", "sent", snap.WelcomeSent)
	fmt.Fprintf(&out, "newsletter_welcome_mails_total{result=%q} %d\n\n", "failed", snap.WelcomeFailed)

	out.WriteString("# HELP newsletter_uptime_seconds Server uptime in seconds\n")
	out.WriteString("# TYPE newsletter_uptime_seconds gauge\n")
	fmt.Fprintf(&out, "newsletter_uptime_seconds %.0f\n", snap.UptimeSeconds)

	return out.String()
}

func writeMetric(out *strings.Builder, name, typ, help string, v int64) {
	fmt.Fprintf(out, "# HELP %s %s\n", name, help)
	fmt.Fprintf(out, "# TYPE %s %s\n", name, typ)
	fmt.Fprintf(out, "%s %d\n\n", name, v)
}
