package server

import (
	"sync"
	"time"
)

// Metrics holds the counters of one server instance.
type Metrics struct {
	mu sync.RWMutex

	// Subscription metrics
	subscriptionsCreated  int64
	subscriptionsRejected int64
	subscriptionsFailed   int64

	// Welcome mail metrics
	welcomeSent   int64
	welcomeFailed int64

	// System metrics
	requestsTotal    int64
	requestErrors5xx int64
	requestErrors4xx int64

	startedAt time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{startedAt: time.Now()}
}

// RecordRequest records an HTTP request
func (m *Metrics) RecordRequest(statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsTotal++

	if statusCode >= 500 {
		m.requestErrors5xx++
	} else if statusCode >= 400 {
		m.requestErrors4xx++
	}
}

// RecordSubscription records the outcome of one POST /subscriptions.
func (m *Metrics) RecordSubscription(outcome SubscriptionOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch outcome {
	case OutcomeCreated:
		m.subscriptionsCreated++
	case OutcomeRejected:
		m.subscriptionsRejected++
	case OutcomeFailed:
		m.subscriptionsFailed++
	}
}

func (m *Metrics) RecordWelcome(sent bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sent {
		m.welcomeSent++
	} else {
		m.welcomeFailed++
	}
}

// Snapshot returns a snapshot of current metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MetricsSnapshot{
		SubscriptionsCreated:  m.subscriptionsCreated,
		SubscriptionsRejected: m.subscriptionsRejected,
		SubscriptionsFailed:   m.subscriptionsFailed,
		WelcomeSent:           m.welcomeSent,
		WelcomeFailed:         m.welcomeFailed,
		RequestsTotal:         m.requestsTotal,
		RequestErrors5xx:      m.requestErrors5xx,
		RequestErrors4xx:      m.requestErrors4xx,
		UptimeSeconds:         time.Since(m.startedAt).Seconds(),
	}
}

// SubscriptionOutcome classifies a subscription attempt.
type SubscriptionOutcome int

const (
	OutcomeCreated SubscriptionOutcome = iota
	OutcomeRejected
	OutcomeFailed
)

// MetricsSnapshot represents a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	SubscriptionsCreated  int64 `json:"subscriptions_created_total"`
	SubscriptionsRejected int64 `json:"subscriptions_rejected_total"`
	SubscriptionsFailed   int64 `json:"subscriptions_failed_total"`

	WelcomeSent   int64 `json:"welcome_sent_total"`
	WelcomeFailed int64 `json:"welcome_failed_total"`

	RequestsTotal    int64 `json:"requests_total"`
	RequestErrors5xx int64 `json:"request_errors_5xx"`
	RequestErrors4xx int64 `json:"request_errors_4xx"`

	UptimeSeconds float64 `json:"uptime_seconds"`
}
