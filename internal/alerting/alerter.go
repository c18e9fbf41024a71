// Package alerting notifies operators about order outcomes and agent lifecycle.
package alerting

import (
	"context"
	"fmt"
)

// Severity represents the alert severity level.
type Severity int

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = iota
	// SeverityWarning is for warning messages.
	SeverityWarning
	// SeverityHigh is for high priority alerts.
	SeverityHigh
	// SeverityCritical is for critical alerts requiring immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Emoji returns an emoji for the severity level.
func (s Severity) Emoji() string {
	switch s {
	case SeverityInfo:
		return "ℹ️"
	case SeverityWarning:
		return "⚠️"
	case SeverityHigh:
		return "🔴"
	case SeverityCritical:
		return "🚨"
	default:
		return "❓"
	}
}

// Alerter defines the interface for sending alerts.
type Alerter interface {
	// Alert sends an alert with the given severity and message.
	Alert(ctx context.Context, severity Severity, message string, fields ...any) error
	// Name returns the name of the alerter.
	Name() string
}

// Field represents a key-value pair for structured alert data.
type Field struct {
	Key   string
	Value any
}

// FormatFields converts variadic fields to a formatted string.
func FormatFields(fields ...any) string {
	if len(fields) == 0 {
		return ""
	}

	result := ""
	for i := 0; i < len(fields)-1; i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		value := fields[i+1]
		if result != "" {
			result += "\n"
		}
		result += fmt.Sprintf("• %s: %v", key, value)
	}
	return result
}

// AlertEvent represents a pre-defined alert event type.
type AlertEvent string

const (
	// EventOrderFilled is sent when an order fills completely.
	EventOrderFilled AlertEvent = "order_filled"
	// EventOrderPartiallyFilled is sent when an IOC order fills in part.
	EventOrderPartiallyFilled AlertEvent = "order_partially_filled"
	// EventOrderCanceled is sent when an order is canceled.
	EventOrderCanceled AlertEvent = "order_canceled"
	// EventOrderExpired is sent when a GTT order expires.
	EventOrderExpired AlertEvent = "order_expired"
	// EventOrderFailed is sent when a quote or execution fails an order.
	EventOrderFailed AlertEvent = "order_failed"
	// EventSessionSummary is sent once all orders of a run are terminal.
	EventSessionSummary AlertEvent = "session_summary"
	// EventAgentStarted is sent when the agent starts.
	EventAgentStarted AlertEvent = "agent_started"
	// EventAgentStopped is sent when the agent stops.
	EventAgentStopped AlertEvent = "agent_stopped"
)

// EventSeverity returns the default severity for an event.
func EventSeverity(event AlertEvent) Severity {
	switch event {
	case EventOrderFailed:
		return SeverityHigh
	case EventOrderCanceled, EventOrderExpired:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// EventAlerter sends alerts for pre-defined events.
type EventAlerter interface {
	AlertEvent(ctx context.Context, event AlertEvent, message string, fields ...any) error
}
