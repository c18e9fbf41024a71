package alerting

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ConsoleAlerter writes alerts to the log.
type ConsoleAlerter struct {
	logger *zap.Logger
}

// NewConsoleAlerter creates a new console alerter.
func NewConsoleAlerter(logger *zap.Logger) *ConsoleAlerter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleAlerter{logger: logger}
}

// Name returns the name of the alerter.
func (c *ConsoleAlerter) Name() string {
	return "console"
}

// Alert logs an alert. fields are key/value pairs.
func (c *ConsoleAlerter) Alert(ctx context.Context, severity Severity, message string, fields ...any) error {
	zf := make([]zap.Field, 0, len(fields)/2+1)
	zf = append(zf, zap.String("severity", severity.String()))
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			key = fmt.Sprint(fields[i])
		}
		zf = append(zf, zap.Any(key, fields[i+1]))
	}

	switch severity {
	case SeverityCritical:
		c.logger.Error("[ALERT] "+message, zf...)
	case SeverityHigh, SeverityWarning:
		c.logger.Warn("[ALERT] "+message, zf...)
	default:
		c.logger.Info("[ALERT] "+message, zf...)
	}

	return nil
}
