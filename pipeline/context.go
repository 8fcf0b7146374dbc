package pipeline

import (
	"github.com/BaSui01/sigflow/backend"
)

// Context carries the conversation and model selection of one pipeline
// run. It is owned by a single Runner and used only from the one step the
// Runner has in flight; steps receive it by pointer and speak on its
// conversation. Cancellation and deadlines ride the standard
// context.Context passed alongside.
type Context struct {
	conv     *backend.Conversation
	override backend.ModelRef
	resolved *backend.Conversation
}

// NewContext wraps conv as a pipeline execution context.
func NewContext(conv *backend.Conversation) *Context {
	return &Context{conv: conv}
}

// Conversation returns the conversation the current step should speak on:
// the run's own conversation, or a derived variant while a model override
// is in force.
func (c *Context) Conversation() *backend.Conversation {
	if c.resolved != nil {
		return c.resolved
	}
	return c.conv
}

// Model returns the model the current step runs on.
func (c *Context) Model() backend.ModelRef {
	if !c.override.IsZero() {
		return c.override
	}
	return c.conv.Model()
}

// SessionID returns the session id of the effective conversation, empty
// before its first call.
func (c *Context) SessionID() string {
	return c.Conversation().SessionID()
}

// SetModel overrides the model for subsequent calls. The derived
// conversation is created once per override, so every call inside the
// override window shares one session lineage.
func (c *Context) SetModel(ref backend.ModelRef) {
	c.override = ref
	if ref.IsZero() {
		c.resolved = nil
		return
	}
	c.resolved = c.conv.OnModel(ref)
}

// ResetModel restores the run's default model.
func (c *Context) ResetModel() {
	c.override = backend.ModelRef{}
	c.resolved = nil
}
