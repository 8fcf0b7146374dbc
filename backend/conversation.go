package backend

import (
	"context"
	"sync"
	"time"
)

// sessionState is the session id shared between a Conversation and every
// model-override variant derived from it. Sharing keeps all variants on the
// same logical conversation.
type sessionState struct {
	mu sync.Mutex
	id string
}

// Conversation binds a Backend to one ongoing session. Ask sends the prompt
// on the current session and adopts the backend's reported session id, so
// consecutive calls see the same conversational context.
type Conversation struct {
	backend Backend
	agent   string
	model   ModelRef
	timeout time.Duration
	workdir string
	state   *sessionState
}

// ConversationOption configures a new Conversation.
type ConversationOption func(*Conversation)

// WithAgent sets the agent name sent with each request.
func WithAgent(agent string) ConversationOption {
	return func(c *Conversation) { c.agent = agent }
}

// WithModel sets the model every request runs on.
func WithModel(model ModelRef) ConversationOption {
	return func(c *Conversation) { c.model = model }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ConversationOption {
	return func(c *Conversation) { c.timeout = timeout }
}

// WithWorkdir sets the working directory the agent executes in.
func WithWorkdir(dir string) ConversationOption {
	return func(c *Conversation) { c.workdir = dir }
}

// WithSession resumes an existing session instead of starting fresh.
func WithSession(id string) ConversationOption {
	return func(c *Conversation) { c.state.id = id }
}

// NewConversation starts a conversation handle. Without WithSession the
// first Ask opens a fresh session.
func NewConversation(b Backend, opts ...ConversationOption) *Conversation {
	c := &Conversation{
		backend: b,
		state:   &sessionState{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ask sends prompt on the conversation's session and returns the reply
// text. The session id reported by the backend becomes the conversation's
// current session.
func (c *Conversation) Ask(ctx context.Context, prompt string) (string, error) {
	c.state.mu.Lock()
	sessionID := c.state.id
	c.state.mu.Unlock()

	resp, err := c.backend.Run(ctx, Request{
		Prompt:    prompt,
		Agent:     c.agent,
		Model:     c.model,
		SessionID: sessionID,
		Timeout:   c.timeout,
		Workdir:   c.workdir,
	})
	if err != nil {
		return "", err
	}

	c.state.mu.Lock()
	c.state.id = resp.SessionID
	c.state.mu.Unlock()

	return resp.Text, nil
}

// SessionID returns the current session id, empty before the first Ask of
// a fresh conversation.
func (c *Conversation) SessionID() string {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	return c.state.id
}

// SetSession replaces the current session id. An empty id makes the next
// Ask start a fresh conversation; variants sharing this conversation's
// session follow along.
func (c *Conversation) SetSession(id string) {
	c.state.mu.Lock()
	c.state.id = id
	c.state.mu.Unlock()
}

// Fresh derives a variant that starts its own session on the next Ask,
// keeping the backend, agent, model, and timeout of the receiver. The
// receiver's session is unaffected.
func (c *Conversation) Fresh() *Conversation {
	derived := *c
	derived.state = &sessionState{}
	return &derived
}

// Model returns the model requests run on.
func (c *Conversation) Model() ModelRef { return c.model }

// Agent returns the agent name sent with each request.
func (c *Conversation) Agent() string { return c.agent }

// Backend returns the underlying backend.
func (c *Conversation) Backend() Backend { return c.backend }

// OnModel derives a variant that runs on ref but shares this conversation's
// session, so a correction model picks up exactly where the primary model
// left off. A zero ref returns the receiver unchanged. Crossing to the
// alternate backend (or back) starts an isolated session lineage instead:
// session ids are not portable between backends, so the variant keeps its
// own continuity and never overwrites the parent's session.
func (c *Conversation) OnModel(ref ModelRef) *Conversation {
	if ref.IsZero() {
		return c
	}
	derived := *c
	derived.model = ref
	if ref.Alt != c.model.Alt {
		derived.state = &sessionState{}
	}
	return &derived
}

// OnAgent derives a variant addressed to a different agent on the same
// session. An empty or unchanged name returns the receiver.
func (c *Conversation) OnAgent(agent string) *Conversation {
	if agent == "" || agent == c.agent {
		return c
	}
	derived := *c
	derived.agent = agent
	return &derived
}
