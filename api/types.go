package api

import (
	"encoding/json"
	"time"
)

// =============================================================================
// 检查点类型
// =============================================================================

// CheckpointSummary 表示检查点列表中的单个条目。
type CheckpointSummary struct {
	// 流水线名称
	Pipeline string `json:"pipeline"`
	// 会话 ID
	Session string `json:"session"`
	// 最后更新时间戳
	UpdatedAt time.Time `json:"updated_at"`
}

// CheckpointListResponse 表示检查点列表。
type CheckpointListResponse struct {
	// 检查点清单
	Checkpoints []CheckpointSummary `json:"checkpoints"`
}

// CheckpointDetail 表示单个检查点及其完整状态。
type CheckpointDetail struct {
	// 流水线名称
	Pipeline string `json:"pipeline"`
	// 会话 ID
	Session string `json:"session"`
	// 序列化的流水线状态快照
	State json.RawMessage `json:"state"`
}

// =============================================================================
// 版本类型
// =============================================================================

// VersionInfo 表示服务构建信息。
type VersionInfo struct {
	// 版本号（ldflags 注入）
	Version string `json:"version"`
	// 构建时间
	BuildTime string `json:"build_time"`
	// Git 提交哈希
	GitCommit string `json:"git_commit"`
}
