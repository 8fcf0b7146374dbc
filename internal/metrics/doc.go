/*
包 metrics 提供基于 Prometheus 的全链路指标采集能力，覆盖
后端调用、修正循环、补丁应用、步骤执行与检查点五大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离，
支持多维度 label 分组，便于 Grafana 等工具进行可视化与告警。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram、Gauge 等
    Prometheus 向量指标，按业务域分组管理。

# 主要能力

  - 后端指标：请求总数、请求耗时、提示词 Token 用量，
    按 backend/model 分组，状态归类为 ok/timeout/canceled/error。
  - 修正指标：轮次计数（repair/field 两阶段）、最终结果计数
    （success/exhausted/anomaly）。
  - 补丁指标：应用总数，按 strategy/status 分组。
  - 步骤指标：尝试总数、执行耗时，按 pipeline 分组。
  - 检查点指标：写入总数与耗时，按 store/status 分组。
*/
package metrics
