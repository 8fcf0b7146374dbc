package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/sigflow/backend"
	"github.com/BaSui01/sigflow/checkpoint"
)

// Resume restores a run from its checkpoint and returns a Runner that
// continues it. The step history is restored verbatim, so Completed and
// StepCount report the work the previous run already did; the phase is set
// back to running. When conv carries no session of its own, it adopts the
// backend session of the last recorded step, so the model keeps the
// context it had before the interruption.
func Resume(ctx context.Context, name, session string, conv *backend.Conversation, store checkpoint.Store, opts ...Option) (*Runner, error) {
	st := &State{}
	if err := store.Load(ctx, name, session, st); err != nil {
		return nil, err
	}
	if st.Pipeline == "" {
		st.Pipeline = name
	}
	if st.SessionID == "" {
		st.SessionID = session
	}
	st.Phase = PhaseRunning
	st.FailedStep = ""
	st.LastError = ""

	if conv.SessionID() == "" {
		if last := st.LastSession(); last != "" {
			conv.SetSession(last)
		}
	}

	r := New(name, conv, append(opts, WithStore(store), WithState(st))...)
	r.logger.Info("pipeline resumed",
		zap.Int("completed_steps", st.StepCount()),
		zap.String("backend_session", conv.SessionID()))
	return r, nil
}
