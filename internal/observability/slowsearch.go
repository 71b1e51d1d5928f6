package observability

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SlowSearchDetector logs and counts searches that exceed the configured
// thresholds. Fast searches return immediately with no overhead.
type SlowSearchDetector struct {
	warningThreshold  time.Duration
	criticalThreshold time.Duration
	logger            *zap.Logger
}

func NewSlowSearchDetector(warning, critical time.Duration, logger *zap.Logger) *SlowSearchDetector {
	return &SlowSearchDetector{
		warningThreshold:  warning,
		criticalThreshold: critical,
		logger:            logger,
	}
}

// Intercept records one completed search. Queries are logged as hashes,
// not raw text.
func (d *SlowSearchDetector) Intercept(ctx context.Context, query, path string, duration time.Duration, results int) {
	if duration <= d.warningThreshold {
		return
	}

	severity := d.classifySeverity(duration)
	SlowSearchCounter.WithLabelValues(severity, path).Inc()

	d.logger.Warn("slow search detected",
		zap.String("trace_id", TraceIDFromContext(ctx)),
		zap.String("query_hash", hashQueryForLog(query)),
		zap.String("path", path),
		zap.Float64("duration_ms", float64(duration.Milliseconds())),
		zap.Int("results", results),
		zap.String("severity", severity),
	)
}

func (d *SlowSearchDetector) classifySeverity(duration time.Duration) string {
	if duration > d.criticalThreshold {
		return "critical"
	}
	if duration > d.warningThreshold {
		return "warning"
	}
	return "normal"
}

func hashQueryForLog(q string) string {
	h := sha256.Sum256([]byte(q))
	return fmt.Sprintf("%x", h[:8])
}
