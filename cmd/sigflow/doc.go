/*
Package main 提供 Sigflow 命令行入口。

# 概述

cmd/sigflow 是 Sigflow 的可执行入口，围绕签名驱动的流水线提供
运行、恢复、检查点管理、会话导出、数据库迁移和巡检服务等子命令。
程序支持 YAML 配置文件加载、结构化日志（zap）、Prometheus 指标
采集以及配置热重载。

# 子命令

  - run             — 运行内置抽取流水线（两步：extract → headline）
  - resume          — 从检查点恢复中断的流水线
  - checkpoints     — 列出 / 查看 / 删除检查点（list、show、rm）
  - export-session  — 导出后端会话的完整消息记录
  - migrate         — 检查点数据库迁移（up、down、status、goto、force、reset）
  - serve           — 启动只读巡检 HTTP 服务（探针、指标、检查点查询）
  - version         — 打印版本信息

# 主要能力

  - 中间件链：Recovery、RequestID、SecurityHeaders、RequestLogger、
    RateLimiter（基于 IP）、JWTAuth（HS256 Bearer）
  - 配置热重载：config.Watcher 轮询文件变更，热更新日志级别
  - 优雅关闭：信号监听 → 停止热更新 → 关闭 HTTP → 释放存储
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
