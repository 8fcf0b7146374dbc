package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/sigflow/backend"
	"github.com/BaSui01/sigflow/checkpoint"
	"github.com/BaSui01/sigflow/types"
)

func TestResume_RestoresHistory(t *testing.T) {
	sb := &stubBackend{}
	store := checkpoint.NewMemoryStore()

	first := New("review", backend.NewConversation(sb),
		WithStore(store), WithSession("s1"), WithRetryDelay(0), WithLogger(zap.NewNop()))

	ask := func(ctx context.Context, pctx *Context) (any, error) {
		return pctx.Conversation().Ask(ctx, "hi")
	}
	_, err := first.Step(context.Background(), "fetch", ask)
	require.NoError(t, err)
	_, err = first.Step(context.Background(), "summarize", ask)
	require.NoError(t, err)

	// A later process picks the run back up with a cold conversation.
	conv := backend.NewConversation(sb)
	resumed, err := Resume(context.Background(), "review", "s1", conv, store, WithRetryDelay(0))
	require.NoError(t, err)

	assert.Equal(t, 2, resumed.StepCount())
	assert.True(t, resumed.Completed("fetch"))
	assert.True(t, resumed.Completed("summarize"))
	assert.False(t, resumed.Completed("publish"))
	assert.Equal(t, "s1", resumed.Session())
	assert.Equal(t, PhaseRunning, resumed.State().Phase)
	assert.Equal(t, "ses_1", conv.SessionID(), "conversation adopts the last recorded backend session")

	// The next ask continues the old backend session.
	_, err = resumed.Step(context.Background(), "publish", ask)
	require.NoError(t, err)
	assert.Equal(t, "ses_1", sb.request(2).SessionID)
}

func TestResume_MissingCheckpoint(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	conv := backend.NewConversation(&stubBackend{})

	_, err := Resume(context.Background(), "review", "absent", conv, store)
	require.ErrorIs(t, err, checkpoint.ErrNotFound)
}

func TestResume_AfterFailure(t *testing.T) {
	sb := &stubBackend{}
	store := checkpoint.NewMemoryStore()

	first := New("review", backend.NewConversation(sb),
		WithStore(store), WithSession("s1"), WithRetryDelay(0), WithLogger(zap.NewNop()))

	_, err := first.Step(context.Background(), "fetch", func(_ context.Context, _ *Context) (any, error) {
		return "data", nil
	})
	require.NoError(t, err)
	_, err = first.Step(context.Background(), "analyze", func(_ context.Context, _ *Context) (any, error) {
		return nil, types.NewError(types.ErrSchemaExhausted, "no convergence")
	})
	require.Error(t, err)

	st := loadState(t, store, "review", "s1")
	require.Equal(t, PhaseFailed, st.Phase)

	resumed, err := Resume(context.Background(), "review", "s1", backend.NewConversation(sb), store, WithRetryDelay(0))
	require.NoError(t, err)
	assert.Equal(t, PhaseRunning, resumed.State().Phase)
	assert.Empty(t, resumed.State().FailedStep)
	assert.Empty(t, resumed.State().LastError)
	assert.True(t, resumed.Completed("fetch"), "completed work survives the failure")
	assert.False(t, resumed.Completed("analyze"))

	_, err = resumed.Step(context.Background(), "analyze", func(_ context.Context, _ *Context) (any, error) {
		return "better", nil
	})
	require.NoError(t, err)
	require.NoError(t, resumed.Finish(context.Background()))

	st = loadState(t, store, "review", "s1")
	assert.Equal(t, PhaseCompleted, st.Phase)
	assert.Equal(t, 2, st.StepCount())
}

func TestResume_KeepsExplicitConversationSession(t *testing.T) {
	sb := &stubBackend{}
	store := checkpoint.NewMemoryStore()

	first := New("review", backend.NewConversation(sb),
		WithStore(store), WithSession("s1"), WithRetryDelay(0), WithLogger(zap.NewNop()))
	_, err := first.Step(context.Background(), "fetch", func(ctx context.Context, pctx *Context) (any, error) {
		return pctx.Conversation().Ask(ctx, "hi")
	})
	require.NoError(t, err)

	conv := backend.NewConversation(sb, backend.WithSession("ses_custom"))
	_, err = Resume(context.Background(), "review", "s1", conv, store)
	require.NoError(t, err)
	assert.Equal(t, "ses_custom", conv.SessionID(), "an explicit session wins over the recorded one")
}
