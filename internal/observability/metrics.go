// Package observability collects engine counters and exposes them in
// Prometheus text format.
package observability

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
)

// Metrics counts triggers, actions, and retries. It satisfies the
// engine's metrics port. The zero value is not usable; call NewMetrics.
type Metrics struct {
	mu       sync.Mutex
	triggers map[string]uint64 // kind|outcome
	actions  map[string]uint64 // kind
	retries  map[string]uint64 // op
}

// NewMetrics creates an empty metrics registry.
func NewMetrics() *Metrics {
	return &Metrics{
		triggers: make(map[string]uint64),
		actions:  make(map[string]uint64),
		retries:  make(map[string]uint64),
	}
}

// TriggerHandled counts one handled trigger by kind and outcome.
func (m *Metrics) TriggerHandled(kind, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggers[kind+"|"+outcome]++
}

// ActionExecuted counts one executed action by kind.
func (m *Metrics) ActionExecuted(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions[kind]++
}

// RetryAttempted counts one retried adapter operation.
func (m *Metrics) RetryAttempted(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries[op]++
}

// Render returns the counters in Prometheus text exposition format,
// with series sorted for stable output.
func (m *Metrics) Render() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sb strings.Builder

	sb.WriteString("# HELP branchflow_triggers_total Handled lifecycle triggers.\n")
	sb.WriteString("# TYPE branchflow_triggers_total counter\n")
	for _, key := range sortedKeys(m.triggers) {
		parts := strings.SplitN(key, "|", 2)
		fmt.Fprintf(&sb, "branchflow_triggers_total{kind=%q,outcome=%q} %d\n",
			parts[0], parts[1], m.triggers[key])
	}

	sb.WriteString("# HELP branchflow_actions_total Executed lifecycle actions.\n")
	sb.WriteString("# TYPE branchflow_actions_total counter\n")
	for _, key := range sortedKeys(m.actions) {
		fmt.Fprintf(&sb, "branchflow_actions_total{kind=%q} %d\n", key, m.actions[key])
	}

	sb.WriteString("# HELP branchflow_retries_total Retried adapter operations.\n")
	sb.WriteString("# TYPE branchflow_retries_total counter\n")
	for _, key := range sortedKeys(m.retries) {
		fmt.Fprintf(&sb, "branchflow_retries_total{op=%q} %d\n", key, m.retries[key])
	}

	return sb.String()
}

// Handler serves the rendered metrics over HTTP.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(m.Render()))
	})
}

func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
