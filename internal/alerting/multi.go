package alerting

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// MultiAlerter sends alerts to multiple channels.
type MultiAlerter struct {
	mu       sync.RWMutex
	alerters []Alerter
	enabled  func(AlertEvent) bool
	logger   *zap.Logger
}

// NewMultiAlerter creates a new multi-channel alerter.
func NewMultiAlerter(logger *zap.Logger, alerters ...Alerter) *MultiAlerter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MultiAlerter{
		alerters: alerters,
		logger:   logger,
	}
}

// Name returns the name of the alerter.
func (m *MultiAlerter) Name() string {
	return "multi"
}

// AddAlerter adds a new alerter to the multi-alerter.
func (m *MultiAlerter) AddAlerter(alerter Alerter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerters = append(m.alerters, alerter)
}

// SetEventFilter restricts AlertEvent to events for which enabled returns true.
func (m *MultiAlerter) SetEventFilter(enabled func(AlertEvent) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = enabled
}

// Alert sends an alert to all configured channels concurrently.
// Channel errors are joined.
func (m *MultiAlerter) Alert(ctx context.Context, severity Severity, message string, fields ...any) error {
	m.mu.RLock()
	alerters := make([]Alerter, len(m.alerters))
	copy(alerters, m.alerters)
	m.mu.RUnlock()

	if len(alerters) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(alerters))

	for _, alerter := range alerters {
		wg.Add(1)
		go func(a Alerter) {
			defer wg.Done()
			if err := a.Alert(ctx, severity, message, fields...); err != nil {
				m.logger.Error("alerter failed",
					zap.String("alerter", a.Name()),
					zap.String("severity", severity.String()),
					zap.Error(err),
				)
				errCh <- err
			}
		}(alerter)
	}

	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// AlertEvent sends an alert for a predefined event type, unless filtered out.
func (m *MultiAlerter) AlertEvent(ctx context.Context, event AlertEvent, message string, fields ...any) error {
	m.mu.RLock()
	enabled := m.enabled
	m.mu.RUnlock()

	if enabled != nil && !enabled(event) {
		return nil
	}
	fields = append([]any{"event", string(event)}, fields...)
	return m.Alert(ctx, EventSeverity(event), message, fields...)
}
