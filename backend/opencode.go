package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/sigflow/types"
)

// OpencodeConfig configures the HTTP adapter for an opencode-compatible
// agent server.
type OpencodeConfig struct {
	BaseURL string
	Timeout time.Duration // per-request default when Request.Timeout is zero
}

// Opencode talks to a local opencode agent server over HTTP. Sessions are
// created lazily: a Request without a SessionID first creates one, then
// sends the prompt into it.
type Opencode struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	logger  *zap.Logger
}

var (
	_ Backend         = (*Opencode)(nil)
	_ SessionExporter = (*Opencode)(nil)
)

// NewOpencode creates the adapter. BaseURL defaults to the opencode
// server's standard local port.
func NewOpencode(cfg OpencodeConfig, logger *zap.Logger) *Opencode {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://127.0.0.1:4096"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 300 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Opencode{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		// 不给 http.Client 设置超时，统一由请求上下文控制
		client: &http.Client{},
		logger: logger.With(zap.String("component", "opencode_backend")),
	}
}

func (o *Opencode) Name() string { return "opencode" }

type opencodeSession struct {
	ID string `json:"id"`
}

type opencodePart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type opencodeMessageRequest struct {
	Agent string         `json:"agent,omitempty"`
	Model *ModelRef      `json:"model,omitempty"`
	Parts []opencodePart `json:"parts"`
}

type opencodeMessageResponse struct {
	Info struct {
		ID        string `json:"id"`
		SessionID string `json:"sessionID"`
		Role      string `json:"role"`
		Time      struct {
			Created int64 `json:"created"`
		} `json:"time"`
	} `json:"info"`
	Parts []opencodePart `json:"parts"`
}

type opencodeErrorResp struct {
	Data struct {
		Message string `json:"message"`
	} `json:"data"`
}

// Run implements Backend.
func (o *Opencode) Run(ctx context.Context, req Request) (*Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = o.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sessionID := req.SessionID
	if sessionID == "" {
		created, err := o.createSession(ctx, req.Workdir, timeout)
		if err != nil {
			return nil, err
		}
		sessionID = created
		o.logger.Debug("session created", zap.String("session_id", sessionID))
	}

	body := opencodeMessageRequest{
		Agent: req.Agent,
		Parts: []opencodePart{{Type: "text", Text: req.Prompt}},
	}
	if !req.Model.IsZero() {
		model := req.Model
		body.Model = &model
	}

	var reply opencodeMessageResponse
	endpoint := fmt.Sprintf("%s/session/%s/message", o.baseURL, sessionID)
	if err := o.post(ctx, endpoint, body, &reply, timeout); err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, part := range reply.Parts {
		if part.Type == "text" {
			text.WriteString(part.Text)
		}
	}

	if reply.Info.SessionID != "" {
		sessionID = reply.Info.SessionID
	}
	return &Response{Text: text.String(), SessionID: sessionID}, nil
}

// ExportSession implements SessionExporter by listing the session's
// messages in order.
func (o *Opencode) ExportSession(ctx context.Context, sessionID string) ([]Message, error) {
	endpoint := fmt.Sprintf("%s/session/%s/message", o.baseURL, sessionID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, types.NewError(types.ErrBackend, "build export request").WithCause(err)
	}

	resp, err := o.client.Do(httpReq)
	if err != nil {
		if ce := classifyContextErr(err, o.timeout); ce != nil {
			return nil, ce
		}
		return nil, types.NewError(types.ErrBackend, "session export failed").
			WithRetryable(true).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, o.statusError(resp)
	}

	var raw []opencodeMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, types.NewError(types.ErrBackend, "decode session transcript").WithCause(err)
	}

	out := make([]Message, 0, len(raw))
	for _, m := range raw {
		var text strings.Builder
		for _, part := range m.Parts {
			if part.Type == "text" {
				text.WriteString(part.Text)
			}
		}
		msg := Message{Role: m.Info.Role, Text: text.String()}
		if m.Info.Time.Created > 0 {
			msg.Time = time.UnixMilli(m.Info.Time.Created)
		}
		out = append(out, msg)
	}
	return out, nil
}

func (o *Opencode) createSession(ctx context.Context, workdir string, timeout time.Duration) (string, error) {
	body := map[string]string{}
	if workdir != "" {
		body["directory"] = workdir
	}
	var session opencodeSession
	if err := o.post(ctx, o.baseURL+"/session", body, &session, timeout); err != nil {
		return "", err
	}
	if session.ID == "" {
		return "", types.NewError(types.ErrBackend, "server returned a session without an id")
	}
	return session.ID, nil
}

func (o *Opencode) post(ctx context.Context, endpoint string, body, out any, timeout time.Duration) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return types.NewError(types.ErrBackend, "encode request").WithCause(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return types.NewError(types.ErrBackend, "build request").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		if ce := classifyContextErr(err, timeout); ce != nil {
			return ce
		}
		return types.NewError(types.ErrBackend, "agent server unreachable").
			WithRetryable(true).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return o.statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.NewError(types.ErrBackend, "decode response").
			WithRetryable(true).WithCause(err)
	}
	return nil
}

func (o *Opencode) statusError(resp *http.Response) *types.Error {
	msg := readErrMsg(resp.Body)
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return types.NewError(types.ErrRateLimited,
			fmt.Sprintf("agent server rate limited: %s", msg)).WithRetryable(true)
	case resp.StatusCode >= 500:
		return types.NewError(types.ErrBackend,
			fmt.Sprintf("agent server error (status=%d): %s", resp.StatusCode, msg)).
			WithRetryable(true)
	}
	return types.NewError(types.ErrBackend,
		fmt.Sprintf("agent server rejected request (status=%d): %s", resp.StatusCode, msg))
}

func readErrMsg(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return "no error detail"
	}
	var parsed opencodeErrorResp
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Data.Message != "" {
		return parsed.Data.Message
	}
	return strings.TrimSpace(string(raw))
}
