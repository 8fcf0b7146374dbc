package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/sigflow/types"
)

func TestNew_Kinds(t *testing.T) {
	logger := zap.NewNop()

	b, err := New(Config{Kind: KindOpencode}, logger, nil)
	require.NoError(t, err)
	assert.Equal(t, "router", b.Name(), "opencode primary gets an alt router")

	b, err = New(Config{}, logger, nil)
	require.NoError(t, err)
	assert.Equal(t, "router", b.Name(), "kind defaults to opencode")

	b, err = New(Config{Kind: KindClaudeCLI}, logger, nil)
	require.NoError(t, err)
	assert.Equal(t, "claude-cli", b.Name(), "claude primary serves alt refs natively")

	_, err = New(Config{Kind: "telnet"}, logger, nil)
	assert.Error(t, err)
}

func TestNew_WrapsInstrumentation(t *testing.T) {
	b, err := New(Config{Kind: KindOpencode, RPS: 5, Burst: 2}, zap.NewNop(), nil)
	require.NoError(t, err)

	_, ok := b.(*Instrumented)
	assert.True(t, ok, "outermost layer is the instrumentation wrapper")
	assert.Equal(t, "router", b.Name(), "name passes through all wrappers")
}

// exportingBackend is a scripted backend that also records transcripts.
type exportingBackend struct {
	scriptedBackend
	exported []string
}

func (e *exportingBackend) ExportSession(_ context.Context, sessionID string) ([]Message, error) {
	e.exported = append(e.exported, sessionID)
	return []Message{{Role: "user", Text: "hello"}}, nil
}

func TestWrappers_ForwardExportSession(t *testing.T) {
	inner := &exportingBackend{}
	wrapped := NewInstrumented(NewRateLimited(inner, 100, 1), zap.NewNop(), nil)

	msgs, err := wrapped.ExportSession(context.Background(), "ses_9")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"ses_9"}, inner.exported)

	// The same chain over a transcript-less backend fails cleanly.
	bare := NewInstrumented(NewRateLimited(&scriptedBackend{}, 100, 1), zap.NewNop(), nil)
	_, err = bare.ExportSession(context.Background(), "ses_9")
	require.Error(t, err)
	assert.Equal(t, types.ErrConfig, types.GetErrorCode(err))
}

func TestInstrumented_StatusOf(t *testing.T) {
	assert.Equal(t, "ok", statusOf(nil))
	assert.Equal(t, "timeout", statusOf(classifyContextErr(context.DeadlineExceeded, 0)))
	assert.Equal(t, "canceled", statusOf(classifyContextErr(context.Canceled, 0)))
	assert.Equal(t, "error", statusOf(assert.AnError))
}

func TestInstrumented_PassesThrough(t *testing.T) {
	inner := &scriptedBackend{replies: []string{"hi"}}
	wrapped := NewInstrumented(inner, zap.NewNop(), nil)

	resp, err := wrapped.Run(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Text)

	inner.err = assert.AnError
	_, err = wrapped.Run(context.Background(), Request{Prompt: "p"})
	assert.Error(t, err)
}
