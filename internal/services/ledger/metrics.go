package ledger

import (
	"time"

	"balanceledger/internal/models"
)

// NoopMetricsCollector is a no-op implementation of MetricsCollector
type NoopMetricsCollector struct{}

func (n *NoopMetricsCollector) RecordOperationDuration(string, time.Duration)  {}
func (n *NoopMetricsCollector) RecordOperationResult(string, string)           {}
func (n *NoopMetricsCollector) RecordRetry(string)                             {}
func (n *NoopMetricsCollector) RecordVolume(models.EntryKind, string, float64) {}
