package backend

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedBackend replays canned replies and records every request.
type scriptedBackend struct {
	replies  []string
	requests []Request
	err      error
}

func (s *scriptedBackend) Name() string { return "scripted" }

func (s *scriptedBackend) Run(_ context.Context, req Request) (*Response, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = fmt.Sprintf("ses_%d", len(s.requests))
	}
	reply := "done"
	if len(s.replies) > 0 {
		reply = s.replies[0]
		if len(s.replies) > 1 {
			s.replies = s.replies[1:]
		}
	}
	return &Response{Text: reply, SessionID: sessionID}, nil
}

func TestConversation_SessionContinuity(t *testing.T) {
	b := &scriptedBackend{replies: []string{"first", "second"}}
	conv := NewConversation(b, WithAgent("extract"))

	assert.Empty(t, conv.SessionID())

	reply, err := conv.Ask(context.Background(), "one")
	require.NoError(t, err)
	assert.Equal(t, "first", reply)
	assert.Equal(t, "ses_1", conv.SessionID())

	_, err = conv.Ask(context.Background(), "two")
	require.NoError(t, err)

	require.Len(t, b.requests, 2)
	assert.Empty(t, b.requests[0].SessionID, "first ask starts fresh")
	assert.Equal(t, "ses_1", b.requests[1].SessionID, "second ask continues the session")
	assert.Equal(t, "extract", b.requests[1].Agent)
}

func TestConversation_ResumesExistingSession(t *testing.T) {
	b := &scriptedBackend{}
	conv := NewConversation(b, WithSession("ses_resumed"))

	_, err := conv.Ask(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "ses_resumed", b.requests[0].SessionID)
}

func TestConversation_OnModelSharesSession(t *testing.T) {
	b := &scriptedBackend{}
	primary := NewConversation(b, WithModel(ModelRef{ProviderID: "anthropic", ModelID: "sonnet"}))

	_, err := primary.Ask(context.Background(), "start")
	require.NoError(t, err)
	sessionID := primary.SessionID()
	require.NotEmpty(t, sessionID)

	corrector := primary.OnModel(ModelRef{ProviderID: "anthropic", ModelID: "haiku"})
	_, err = corrector.Ask(context.Background(), "fix it")
	require.NoError(t, err)

	require.Len(t, b.requests, 2)
	assert.Equal(t, sessionID, b.requests[1].SessionID, "override model stays in the same session")
	assert.Equal(t, "anthropic/haiku", b.requests[1].Model.String())
	assert.Equal(t, "anthropic/sonnet", primary.Model().String(), "primary handle keeps its model")
	assert.Equal(t, primary.SessionID(), corrector.SessionID())
}

func TestConversation_OnModelZeroRefIsNoop(t *testing.T) {
	b := &scriptedBackend{}
	conv := NewConversation(b, WithModel(ModelRef{ModelID: "m"}))
	assert.Same(t, conv, conv.OnModel(ModelRef{}))
}

func TestConversation_SetSession(t *testing.T) {
	b := &scriptedBackend{}
	conv := NewConversation(b)

	conv.SetSession("ses_adopted")
	_, err := conv.Ask(context.Background(), "continue")
	require.NoError(t, err)
	assert.Equal(t, "ses_adopted", b.requests[0].SessionID)

	conv.SetSession("")
	_, err = conv.Ask(context.Background(), "again")
	require.NoError(t, err)
	assert.Empty(t, b.requests[1].SessionID, "cleared session starts fresh")
	assert.Equal(t, "ses_2", conv.SessionID())
}

func TestConversation_FreshStartsOwnSession(t *testing.T) {
	b := &scriptedBackend{}
	conv := NewConversation(b, WithAgent("writer"), WithModel(ModelRef{ModelID: "m"}))

	_, err := conv.Ask(context.Background(), "one")
	require.NoError(t, err)
	require.Equal(t, "ses_1", conv.SessionID())

	fresh := conv.Fresh()
	assert.Empty(t, fresh.SessionID())

	_, err = fresh.Ask(context.Background(), "two")
	require.NoError(t, err)

	require.Len(t, b.requests, 2)
	assert.Empty(t, b.requests[1].SessionID, "derived conversation starts fresh")
	assert.Equal(t, "writer", b.requests[1].Agent, "derived conversation keeps the agent")
	assert.Equal(t, "m", b.requests[1].Model.ModelID)
	assert.Equal(t, "ses_2", fresh.SessionID())
	assert.Equal(t, "ses_1", conv.SessionID(), "receiver session unaffected")
}

func TestConversation_ErrorLeavesSessionUntouched(t *testing.T) {
	b := &scriptedBackend{err: fmt.Errorf("down")}
	conv := NewConversation(b, WithSession("ses_keep"))

	_, err := conv.Ask(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, "ses_keep", conv.SessionID())
}

func TestConversation_OptionsFlow(t *testing.T) {
	b := &scriptedBackend{}
	conv := NewConversation(b,
		WithAgent("writer"),
		WithModel(ModelRef{ModelID: "m"}),
		WithTimeout(42*time.Second),
		WithWorkdir("/tmp/work"),
	)

	_, err := conv.Ask(context.Background(), "go")
	require.NoError(t, err)

	req := b.requests[0]
	assert.Equal(t, "writer", req.Agent)
	assert.Equal(t, "m", req.Model.ModelID)
	assert.Equal(t, 42*time.Second, req.Timeout)
	assert.Equal(t, "/tmp/work", req.Workdir)
}
