package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/sigflow/types"
)

// ClaudeCLIConfig configures the alternative CLI-based backend.
type ClaudeCLIConfig struct {
	Bin     string
	Timeout time.Duration
}

// ClaudeCLI runs prompts through the claude CLI in print mode. It serves
// model references flagged alt, giving pipelines a second runtime without
// an agent server. Session ids are client-generated UUIDs handed to the
// CLI, so continuity works the same way as with the HTTP backend.
type ClaudeCLI struct {
	bin     string
	timeout time.Duration
	logger  *zap.Logger
}

var _ Backend = (*ClaudeCLI)(nil)

// NewClaudeCLI creates the adapter. Bin defaults to "claude", timeout
// to 300s.
func NewClaudeCLI(cfg ClaudeCLIConfig, logger *zap.Logger) *ClaudeCLI {
	if cfg.Bin == "" {
		cfg.Bin = "claude"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 300 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClaudeCLI{
		bin:     cfg.Bin,
		timeout: cfg.Timeout,
		logger:  logger.With(zap.String("component", "claude_cli_backend")),
	}
}

func (c *ClaudeCLI) Name() string { return "claude-cli" }

type claudeResult struct {
	Type      string `json:"type"`
	Result    string `json:"result"`
	SessionID string `json:"session_id"`
	IsError   bool   `json:"is_error"`
}

// Run implements Backend. The prompt travels as a single argv element after
// the option terminator; nothing is ever shell-interpolated.
func (c *ClaudeCLI) Run(ctx context.Context, req Request) (*Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"-p", "--output-format", "json"}
	if req.Model.ModelID != "" {
		args = append(args, "--model", req.Model.ModelID)
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
		args = append(args, "--session-id", sessionID)
	} else {
		args = append(args, "--resume", sessionID)
	}
	args = append(args, "--", req.Prompt)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.bin, args...)
	cmd.Dir = req.Workdir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		if ce := classifyContextErr(ctx.Err(), timeout); ce != nil {
			return nil, ce
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, types.NewError(types.ErrBackend,
			fmt.Sprintf("claude cli failed: %s", msg)).
			WithRetryable(true).WithCause(err)
	}

	var result claudeResult
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &result); err != nil {
		return nil, types.NewError(types.ErrBackend, "claude cli produced unparseable output").
			WithCause(err)
	}
	if result.IsError {
		return nil, types.NewError(types.ErrBackend,
			fmt.Sprintf("claude cli reported an error: %s", result.Result)).
			WithRetryable(true)
	}
	if result.SessionID != "" {
		sessionID = result.SessionID
	}

	c.logger.Debug("cli run finished",
		zap.String("session_id", sessionID),
		zap.Duration("duration", time.Since(start)))

	return &Response{Text: result.Result, SessionID: sessionID}, nil
}
