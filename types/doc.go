/*
Package types 提供 Sigflow 全局共享的错误类型定义。

# 概述

types 包承载跨包传递的错误分类体系。所有对外可见的失败都以 *Error
表达：稳定的错误码、可读消息、是否可重试、schema 修正相关的字段级
明细与轮次，以及底层原因链。此包不依赖任何其他 sigflow 包，
避免循环导入。

# 核心类型

  - Error      — 结构化错误：Code、Message、Retryable、Fields、Rounds、Cause
  - ErrorCode  — 稳定错误码（NO_JSON_FOUND、JSON_SYNTAX、FIELD_VALIDATION、
    SCHEMA_CORRECTION_EXHAUSTED、UNSAFE_PATCH、BACKEND、BACKEND_TIMEOUT、
    RATE_LIMITED、CANCELED、CHECKPOINT、CONFIG、NOT_FOUND、INTERNAL_ERROR）
  - FieldError — 单个字段的校验失败：路径、消息、期望类型、相似字段假设
  - ErrorKind  — FieldError 分类：解析级（no_json_found、json_syntax）
    与字段级（missing、invalid）

# 主要能力

  - 链式构造：NewError(code, msg).WithCause(err).WithRetryable(true).
    WithFields(fields).WithRounds(n)
  - errors.Is / errors.As 兼容：Unwrap 暴露 Cause，按 Code 匹配
  - 分类辅助：IsRetryable、IsParseClass、IsTerminal、GetErrorCode
*/
package types
