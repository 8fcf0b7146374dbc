/*
Package handlers 提供 Sigflow HTTP API 的请求处理器实现。

# 概述

handlers 包实现了 Sigflow 服务端所有 HTTP 端点的请求处理逻辑：
健康与就绪探针、版本信息、检查点只读查询，以及统一的响应/错误处理。
所有 Handler 均遵循标准 net/http 接口。

# 核心类型

  - HealthHandler      — 存活/就绪探针与版本信息（/healthz, /readyz, /version）
  - CheckpointsHandler — 检查点列表与状态查询（/api/v1/checkpoints）
  - Response           — 统一 JSON 响应结构（success + data + error + timestamp + request_id）
  - ErrorInfo          — 结构化错误信息，含 code、message、retryable 标记
  - ResponseWriter     — 包装 http.ResponseWriter 以捕获状态码
  - HealthCheck        — 可插拔就绪检查接口（PingCheck 包装任意 ping 函数）

# 主要能力

  - 统一响应格式：WriteSuccess / WriteError / WriteJSON 辅助函数
  - ErrorCode → HTTP 状态码自动映射（解析类 422、后端类 5xx、限流 429）
  - 请求 ID 透传：从 context 读取中间件注入的请求 ID 并回写响应
  - 可扩展就绪检查：RegisterCheck 注册自定义 HealthCheck 实现
*/
package handlers
