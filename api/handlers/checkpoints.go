package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/BaSui01/sigflow/api"
	"github.com/BaSui01/sigflow/checkpoint"
	"github.com/BaSui01/sigflow/types"
	"go.uber.org/zap"
)

// =============================================================================
// 💾 检查点 Handler
// =============================================================================

// CheckpointsHandler 检查点只读查询处理器。
// 删除检查点走 CLI，HTTP 层只做巡检。
type CheckpointsHandler struct {
	store  checkpoint.Store
	logger *zap.Logger
}

// NewCheckpointsHandler 创建检查点处理器
func NewCheckpointsHandler(store checkpoint.Store, logger *zap.Logger) *CheckpointsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckpointsHandler{
		store:  store,
		logger: logger,
	}
}

// HandleList 处理 GET /api/v1/checkpoints（?pipeline= 过滤）
func (h *CheckpointsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	pipeline := r.URL.Query().Get("pipeline")

	refs, err := h.store.List(r.Context(), pipeline)
	if err != nil {
		WriteError(w, r, types.NewError(types.ErrCheckpoint, "failed to list checkpoints").WithCause(err), h.logger)
		return
	}

	resp := api.CheckpointListResponse{
		Checkpoints: make([]api.CheckpointSummary, 0, len(refs)),
	}
	for _, ref := range refs {
		resp.Checkpoints = append(resp.Checkpoints, api.CheckpointSummary{
			Pipeline:  ref.Pipeline,
			Session:   ref.Session,
			UpdatedAt: ref.UpdatedAt,
		})
	}

	WriteSuccess(w, r, resp)
}

// HandleGet 处理 GET /api/v1/checkpoints/{pipeline}/{session}
func (h *CheckpointsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	pipeline := r.PathValue("pipeline")
	session := r.PathValue("session")
	if pipeline == "" || session == "" {
		WriteErrorMessage(w, r, types.ErrNotFound, "pipeline and session are required", h.logger)
		return
	}

	var state json.RawMessage
	err := h.store.Load(r.Context(), pipeline, session, &state)
	if errors.Is(err, checkpoint.ErrNotFound) {
		WriteErrorMessage(w, r, types.ErrNotFound, "checkpoint not found", h.logger)
		return
	}
	if err != nil {
		WriteError(w, r, types.NewError(types.ErrCheckpoint, "failed to load checkpoint").WithCause(err), h.logger)
		return
	}

	WriteSuccess(w, r, api.CheckpointDetail{
		Pipeline: pipeline,
		Session:  session,
		State:    state,
	})
}
