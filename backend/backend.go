// Package backend abstracts the LLM agent runtime that executes prompts.
// A Backend owns transport, authentication, and session bookkeeping for one
// agent server or CLI; callers hold a Conversation to keep a multi-turn
// exchange on the same session.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/sigflow/types"
)

// ModelRef identifies the model a request should run on. Provider-hosted
// models carry a provider and model id; Alt routes the request to the
// alternative CLI backend instead of the primary agent server.
type ModelRef struct {
	ProviderID string `json:"providerID,omitempty"`
	ModelID    string `json:"modelID"`
	Alt        bool   `json:"alt,omitempty"`
}

// ParseModelRef parses "provider/model", "alt:model", or a bare model id.
func ParseModelRef(s string) (ModelRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ModelRef{}, nil
	}
	if rest, ok := strings.CutPrefix(s, "alt:"); ok {
		if rest == "" {
			return ModelRef{}, fmt.Errorf("model reference %q has no model id", s)
		}
		return ModelRef{ModelID: rest, Alt: true}, nil
	}
	if provider, model, ok := strings.Cut(s, "/"); ok {
		if provider == "" || model == "" {
			return ModelRef{}, fmt.Errorf("model reference %q must be provider/model", s)
		}
		return ModelRef{ProviderID: provider, ModelID: model}, nil
	}
	return ModelRef{ModelID: s}, nil
}

// String renders the reference in the same syntax ParseModelRef accepts.
func (m ModelRef) String() string {
	switch {
	case m.Alt:
		return "alt:" + m.ModelID
	case m.ProviderID != "":
		return m.ProviderID + "/" + m.ModelID
	}
	return m.ModelID
}

// IsZero reports whether the reference is unset.
func (m ModelRef) IsZero() bool {
	return m.ProviderID == "" && m.ModelID == "" && !m.Alt
}

// Request is one prompt execution. An empty SessionID starts a fresh
// conversation; a non-empty one continues the conversation it names.
type Request struct {
	Prompt    string
	Agent     string
	Model     ModelRef
	SessionID string
	Timeout   time.Duration
	Workdir   string
}

// Response carries the agent's reply. SessionID is always populated with a
// stable id that continues the same conversation when passed back in a
// later Request.
type Response struct {
	Text      string
	SessionID string
}

// Backend executes prompts against one agent runtime.
type Backend interface {
	Name() string
	Run(ctx context.Context, req Request) (*Response, error)
}

// Message is one turn of a recorded session transcript.
type Message struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	Time time.Time `json:"time,omitempty"`
}

// SessionExporter is implemented by backends that can dump the transcript
// of an existing session.
type SessionExporter interface {
	ExportSession(ctx context.Context, sessionID string) ([]Message, error)
}

// classifyContextErr maps a context failure to the framework error taxonomy.
// Cancellation is terminal; a deadline is a retryable timeout.
func classifyContextErr(err error, timeout time.Duration) *types.Error {
	if errors.Is(err, context.Canceled) {
		return types.NewError(types.ErrCanceled, "backend call canceled").WithCause(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewError(types.ErrBackendTimeout,
			fmt.Sprintf("backend call exceeded %s", timeout)).
			WithRetryable(true).
			WithCause(err)
	}
	return nil
}
