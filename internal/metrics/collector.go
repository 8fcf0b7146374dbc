// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// 后端指标
	backendRequestsTotal   *prometheus.CounterVec
	backendRequestDuration *prometheus.HistogramVec
	promptTokens           *prometheus.HistogramVec

	// 修正循环指标
	correctionRoundsTotal   *prometheus.CounterVec
	correctionOutcomesTotal *prometheus.CounterVec

	// 补丁指标
	patchApplicationsTotal *prometheus.CounterVec

	// 步骤执行指标
	stepAttemptsTotal *prometheus.CounterVec
	stepDuration      *prometheus.HistogramVec

	// 检查点指标
	checkpointWritesTotal *prometheus.CounterVec
	checkpointDuration    *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 后端指标
	c.backendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Total number of backend agent requests",
		},
		[]string{"backend", "model", "status"},
	)

	c.backendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Backend agent request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"backend", "model"},
	)

	c.promptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prompt_tokens",
			Help:      "Token count of rendered prompts",
			Buckets:   prometheus.ExponentialBuckets(64, 2, 10),
		},
		[]string{"phase"}, // predict, repair, correction
	)

	// 修正循环指标
	c.correctionRoundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "correction_rounds_total",
			Help:      "Total number of correction rounds executed",
		},
		[]string{"phase"}, // repair, field
	)

	c.correctionOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "correction_outcomes_total",
			Help:      "Final outcomes of correction runs",
		},
		[]string{"outcome"}, // success, exhausted, anomaly
	)

	// 补丁指标
	c.patchApplicationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "patch_applications_total",
			Help:      "Total number of patch applications",
		},
		[]string{"strategy", "status"}, // status: applied, voided
	)

	// 步骤执行指标
	c.stepAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_attempts_total",
			Help:      "Total number of pipeline step attempts",
		},
		[]string{"pipeline", "status"}, // status: success, retried, failed
	)

	c.stepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Pipeline step duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"pipeline"},
	)

	// 检查点指标
	c.checkpointWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoint_writes_total",
			Help:      "Total number of checkpoint writes",
		},
		[]string{"store", "status"},
	)

	c.checkpointDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkpoint_write_duration_seconds",
			Help:      "Checkpoint write duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"store"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🤖 后端指标记录
// =============================================================================

// RecordBackendRequest 记录后端请求
func (c *Collector) RecordBackendRequest(backend, model, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.backendRequestsTotal.WithLabelValues(backend, model, status).Inc()
	c.backendRequestDuration.WithLabelValues(backend, model).Observe(duration.Seconds())
}

// RecordPromptTokens 记录提示词 Token 用量
func (c *Collector) RecordPromptTokens(phase string, tokens int) {
	if c == nil {
		return
	}
	c.promptTokens.WithLabelValues(phase).Observe(float64(tokens))
}

// =============================================================================
// 🔁 修正循环指标记录
// =============================================================================

// RecordCorrectionRound 记录一轮修正
func (c *Collector) RecordCorrectionRound(phase string) {
	if c == nil {
		return
	}
	c.correctionRoundsTotal.WithLabelValues(phase).Inc()
}

// RecordCorrectionOutcome 记录修正最终结果
func (c *Collector) RecordCorrectionOutcome(outcome string) {
	if c == nil {
		return
	}
	c.correctionOutcomesTotal.WithLabelValues(outcome).Inc()
}

// RecordPatch 记录补丁应用
func (c *Collector) RecordPatch(strategy, status string) {
	if c == nil {
		return
	}
	c.patchApplicationsTotal.WithLabelValues(strategy, status).Inc()
}

// =============================================================================
// 🪜 步骤执行指标记录
// =============================================================================

// RecordStep 记录步骤执行
func (c *Collector) RecordStep(pipeline, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.stepAttemptsTotal.WithLabelValues(pipeline, status).Inc()
	c.stepDuration.WithLabelValues(pipeline).Observe(duration.Seconds())
}

// =============================================================================
// 💾 检查点指标记录
// =============================================================================

// RecordCheckpointWrite 记录检查点写入
func (c *Collector) RecordCheckpointWrite(store, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.checkpointWritesTotal.WithLabelValues(store, status).Inc()
	c.checkpointDuration.WithLabelValues(store).Observe(duration.Seconds())
}
