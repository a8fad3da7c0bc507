package core

import (
	"fmt"
	"time"
)

// ClockGuard enforces that command timestamps never regress. Time-gated
// behavior (betting and reveal deadlines) is evaluated against the timestamp
// each command carries, read once per call; the guard keeps that externally
// supplied clock monotonic so deadline checks cannot be rewound.
// Not thread-safe: only accessed from the single-threaded core.
type ClockGuard struct {
	lastMicros int64
	metrics    *ClockMetrics
}

func NewClockGuard() *ClockGuard {
	return &ClockGuard{
		metrics: NewClockMetrics(),
	}
}

// Validate checks the command timestamp against the high-water mark and
// advances it. Equal timestamps are allowed (commands within one tick).
func (cg *ClockGuard) Validate(ts time.Time, isDuplicate bool) error {
	micros := ts.UnixMicro()

	if micros < cg.lastMicros {
		if isDuplicate {
			// Already processed - expected to carry an old timestamp
			return nil
		}
		cg.metrics.RecordRegression()
		return fmt.Errorf("timestamp regression: last=%d, got=%d", cg.lastMicros, micros)
	}

	cg.lastMicros = micros
	return nil
}

// Now returns the high-water mark (the engine's notion of current time)
func (cg *ClockGuard) Now() int64 {
	return cg.lastMicros
}

// Restore sets the high-water mark (used during recovery)
func (cg *ClockGuard) Restore(micros int64) {
	cg.lastMicros = micros
}

// --- Metrics ---

// ClockMetrics tracks timestamp validation stats.
// Not thread-safe: only accessed from the single-threaded core.
type ClockMetrics struct {
	regressions int64
}

func NewClockMetrics() *ClockMetrics {
	return &ClockMetrics{}
}

func (m *ClockMetrics) RecordRegression() {
	m.regressions++
}

func (m *ClockMetrics) GetRegressions() int64 {
	return m.regressions
}
