package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/sigflow/backend"
	"github.com/BaSui01/sigflow/checkpoint"
	"github.com/BaSui01/sigflow/types"
)

// stubBackend mints session ids and records every request. Safe for
// concurrent use so fork tests can share one instance.
type stubBackend struct {
	mu       sync.Mutex
	requests []backend.Request
}

func (s *stubBackend) Name() string { return "stub" }

func (s *stubBackend) Run(_ context.Context, req backend.Request) (*backend.Response, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	n := len(s.requests)
	s.mu.Unlock()

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = fmt.Sprintf("ses_%d", n)
	}
	return &backend.Response{Text: "ok", SessionID: sessionID}, nil
}

func (s *stubBackend) request(i int) backend.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[i]
}

func newTestRunner(t *testing.T, opts ...Option) (*Runner, *checkpoint.MemoryStore) {
	t.Helper()
	store := checkpoint.NewMemoryStore()
	conv := backend.NewConversation(&stubBackend{},
		backend.WithModel(backend.ModelRef{ProviderID: "anthropic", ModelID: "sonnet"}))
	base := []Option{
		WithStore(store),
		WithSession("run1"),
		WithRetryDelay(0),
		WithLogger(zap.NewNop()),
	}
	r := New("review", conv, append(base, opts...)...)
	return r, store
}

func loadState(t *testing.T, store checkpoint.Store, pipeline, session string) *State {
	t.Helper()
	st := &State{}
	require.NoError(t, store.Load(context.Background(), pipeline, session, st))
	return st
}

func TestRunner_StepRecordsResult(t *testing.T) {
	r, store := newTestRunner(t)

	res, err := r.Step(context.Background(), "extract", func(_ context.Context, _ *Context) (any, error) {
		return map[string]any{"name": "John"}, nil
	})
	require.NoError(t, err)

	assert.Equal(t, "extract", res.StepName)
	assert.Equal(t, 1, res.Attempt)
	assert.Equal(t, "anthropic/sonnet", res.Model)
	assert.Equal(t, map[string]any{"name": "John"}, res.Data)

	assert.Equal(t, 1, r.StepCount())
	assert.True(t, r.Completed("extract"))
	assert.False(t, r.Completed("publish"))

	st := loadState(t, store, "review", "run1")
	require.Len(t, st.Steps, 1)
	assert.Equal(t, "extract", st.Steps[0].Name)
	assert.Equal(t, 1, st.Steps[0].Attempt)
	assert.Equal(t, PhaseRunning, st.Phase)
}

func TestRunner_RetriesTransientFailures(t *testing.T) {
	r, _ := newTestRunner(t, WithMaxAttempts(3))

	calls := 0
	res, err := r.Step(context.Background(), "flaky", func(_ context.Context, _ *Context) (any, error) {
		calls++
		if calls < 3 {
			return nil, types.NewError(types.ErrBackend, "transport glitch").WithRetryable(true)
		}
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, res.Attempt, "result records the succeeding try")
}

func TestRunner_NoRetryAfterSchemaExhaustion(t *testing.T) {
	r, _ := newTestRunner(t)

	calls := 0
	_, err := r.Step(context.Background(), "predict", func(_ context.Context, _ *Context) (any, error) {
		calls++
		return nil, types.NewError(types.ErrSchemaExhausted, "correction budget spent").WithRounds(3)
	}, StepAttempts(3))

	require.Error(t, err)
	assert.Equal(t, 1, calls, "an exhausted correction is deterministic, retrying repeats it")
	assert.Equal(t, types.ErrSchemaExhausted, types.GetErrorCode(err))
}

func TestRunner_NoRetryOnCancellation(t *testing.T) {
	r, _ := newTestRunner(t)

	calls := 0
	_, err := r.Step(context.Background(), "ask", func(_ context.Context, _ *Context) (any, error) {
		calls++
		return nil, types.NewError(types.ErrCanceled, "backend call canceled")
	}, StepAttempts(3))

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, types.ErrCanceled, types.GetErrorCode(err))
}

func TestRunner_ParseErrorsRetryOnlyWithOptIn(t *testing.T) {
	t.Run("default does not retry", func(t *testing.T) {
		r, _ := newTestRunner(t)
		calls := 0
		_, err := r.Step(context.Background(), "parse", func(_ context.Context, _ *Context) (any, error) {
			calls++
			return nil, types.NewError(types.ErrNoJSONFound, "no JSON object in reply")
		}, StepAttempts(3))
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("opt-in retries", func(t *testing.T) {
		r, _ := newTestRunner(t)
		calls := 0
		res, err := r.Step(context.Background(), "parse", func(_ context.Context, _ *Context) (any, error) {
			calls++
			if calls == 1 {
				return nil, types.NewError(types.ErrJSONSyntax, "unexpected end of input")
			}
			return "parsed", nil
		}, StepAttempts(3), RetryOnParseError(true))
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
		assert.Equal(t, 2, res.Attempt)
	})
}

func TestRunner_CheckpointPersistedOnTerminalFailure(t *testing.T) {
	r, store := newTestRunner(t, WithMaxAttempts(2))

	_, err := r.Step(context.Background(), "good", func(_ context.Context, _ *Context) (any, error) {
		return 1, nil
	})
	require.NoError(t, err)

	_, err = r.Step(context.Background(), "broken", func(_ context.Context, _ *Context) (any, error) {
		return nil, types.NewError(types.ErrBackend, "agent went away").WithRetryable(true)
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrBackend, types.GetErrorCode(err))

	st := loadState(t, store, "review", "run1")
	assert.Equal(t, PhaseFailed, st.Phase)
	assert.Equal(t, "broken", st.FailedStep)
	assert.Contains(t, st.LastError, "agent went away")
	require.Len(t, st.Steps, 1, "only the completed step is in the history")
	assert.Equal(t, "good", st.Steps[0].Name)
}

func TestRunner_ModelOverrideRestored(t *testing.T) {
	override := backend.ModelRef{ProviderID: "anthropic", ModelID: "haiku"}

	t.Run("after success", func(t *testing.T) {
		r, _ := newTestRunner(t)
		_, err := r.Step(context.Background(), "cheap", func(_ context.Context, pctx *Context) (any, error) {
			assert.Equal(t, "anthropic/haiku", pctx.Model().String())
			return nil, nil
		}, StepModel(override))
		require.NoError(t, err)
		assert.Equal(t, "anthropic/sonnet", r.Context().Model().String())
	})

	t.Run("after failure", func(t *testing.T) {
		r, _ := newTestRunner(t)
		_, err := r.Step(context.Background(), "cheap", func(_ context.Context, _ *Context) (any, error) {
			return nil, types.NewError(types.ErrCanceled, "stop")
		}, StepModel(override))
		require.Error(t, err)
		assert.Equal(t, "anthropic/sonnet", r.Context().Model().String())
	})
}

func TestRunner_SessionContinuityAcrossSteps(t *testing.T) {
	sb := &stubBackend{}
	conv := backend.NewConversation(sb)
	store := checkpoint.NewMemoryStore()
	r := New("review", conv, WithStore(store), WithSession("run1"), WithRetryDelay(0))

	ask := func(ctx context.Context, pctx *Context) (any, error) {
		return pctx.Conversation().Ask(ctx, "hi")
	}

	res1, err := r.Step(context.Background(), "first", ask)
	require.NoError(t, err)
	res2, err := r.Step(context.Background(), "second", ask)
	require.NoError(t, err)

	assert.Empty(t, sb.request(0).SessionID, "first call starts the session")
	assert.Equal(t, "ses_1", sb.request(1).SessionID, "second call continues it")
	assert.Equal(t, "ses_1", res1.SessionID)
	assert.Equal(t, "ses_1", res2.SessionID)

	st := loadState(t, store, "review", "run1")
	assert.Equal(t, "ses_1", st.LastSession())
}

func TestRunner_CanceledContextSkipsWork(t *testing.T) {
	r, store := newTestRunner(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := r.Step(ctx, "never", func(_ context.Context, _ *Context) (any, error) {
		calls++
		return nil, nil
	})
	require.Error(t, err)
	assert.Equal(t, 0, calls)
	assert.Equal(t, types.ErrCanceled, types.GetErrorCode(err))

	st := loadState(t, store, "review", "run1")
	assert.Equal(t, PhaseFailed, st.Phase, "checkpoint written despite the dead context")
}

func TestRunner_Finish(t *testing.T) {
	r, store := newTestRunner(t)

	_, err := r.Step(context.Background(), "only", func(_ context.Context, _ *Context) (any, error) {
		return nil, nil
	})
	require.NoError(t, err)
	require.NoError(t, r.Finish(context.Background()))

	st := loadState(t, store, "review", "run1")
	assert.Equal(t, PhaseCompleted, st.Phase)
}

func TestRunner_MintsSessionWhenConversationHasNone(t *testing.T) {
	conv := backend.NewConversation(&stubBackend{})
	r := New("review", conv)
	assert.NotEmpty(t, r.Session())

	seeded := backend.NewConversation(&stubBackend{}, backend.WithSession("ses_9"))
	r2 := New("review", seeded)
	assert.Equal(t, "ses_9", r2.Session(), "conversation session becomes the run session")
}

func TestRunner_RunsWithoutStore(t *testing.T) {
	conv := backend.NewConversation(&stubBackend{})
	r := New("scratch", conv, WithRetryDelay(0))

	res, err := r.Step(context.Background(), "work", func(_ context.Context, _ *Context) (any, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, res.Data)
	require.NoError(t, r.Finish(context.Background()))
}
