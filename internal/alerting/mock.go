package alerting

import (
	"context"
	"strings"
	"sync"
)

// MockAlerter captures alerts for tests. It implements both Alerter and
// EventAlerter.
type MockAlerter struct {
	mu     sync.Mutex
	alerts []MockAlert
	err    error
}

// MockAlert represents a captured alert.
type MockAlert struct {
	Event    AlertEvent
	Severity Severity
	Message  string
	Fields   []any
}

// NewMockAlerter creates a new mock alerter.
func NewMockAlerter() *MockAlerter {
	return &MockAlerter{}
}

// Name returns the name of the alerter.
func (m *MockAlerter) Name() string {
	return "mock"
}

// FailWith makes every following alert return err after being captured.
func (m *MockAlerter) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Alert captures the alert. An "event" field, as added by MultiAlerter, is
// lifted into MockAlert.Event.
func (m *MockAlerter) Alert(_ context.Context, severity Severity, message string, fields ...any) error {
	var event AlertEvent
	if len(fields) >= 2 && fields[0] == "event" {
		if s, ok := fields[1].(string); ok {
			event = AlertEvent(s)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, MockAlert{
		Event:    event,
		Severity: severity,
		Message:  message,
		Fields:   fields,
	})
	return m.err
}

// AlertEvent captures an event alert with its default severity.
func (m *MockAlerter) AlertEvent(ctx context.Context, event AlertEvent, message string, fields ...any) error {
	return m.Alert(ctx, EventSeverity(event), message, append([]any{"event", string(event)}, fields...)...)
}

// Alerts returns all captured alerts.
func (m *MockAlerter) Alerts() []MockAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockAlert, len(m.alerts))
	copy(result, m.alerts)
	return result
}

// Count returns the number of captured alerts.
func (m *MockAlerter) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.alerts)
}

// CountEvent returns how many alerts carried event.
func (m *MockAlerter) CountEvent(event AlertEvent) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.alerts {
		if a.Event == event {
			n++
		}
	}
	return n
}

// HasAlertWithSeverity checks if an alert with the given severity was sent.
func (m *MockAlerter) HasAlertWithSeverity(severity Severity) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if a.Severity == severity {
			return true
		}
	}
	return false
}

// HasAlertContaining checks if an alert containing the message substring was sent.
func (m *MockAlerter) HasAlertContaining(substr string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if strings.Contains(a.Message, substr) {
			return true
		}
	}
	return false
}
