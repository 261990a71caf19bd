package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// signalRecorder collects emitted signals for assertions.
type signalRecorder struct {
	mu      sync.Mutex
	signals []*Signal
}

func (r *signalRecorder) HandleSignal(_ context.Context, signal *Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, signal)
	return nil
}

func (r *signalRecorder) all() []*Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Signal, len(r.signals))
	copy(out, r.signals)
	return out
}

func (r *signalRecorder) byKind(kind SignalKind) []*Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Signal
	for _, s := range r.signals {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSignalEmitter(t *testing.T) {
	t.Run("emit with no handlers", func(t *testing.T) {
		emitter := NewSignalEmitter(testLogger())
		// Must not panic or block.
		emitter.Emit(context.Background(), newSignal(SignalQueued, nil))
	})

	t.Run("delivers to all handlers in order", func(t *testing.T) {
		emitter := NewSignalEmitter(testLogger())
		first := &signalRecorder{}
		second := &signalRecorder{}
		emitter.Register(first)
		emitter.Register(second)

		signal := newSignal(SignalCompleted, &Task{Type: TaskTypeCalendarSync})
		emitter.Emit(context.Background(), signal)

		require.Len(t, first.all(), 1)
		require.Len(t, second.all(), 1)
		assert.Equal(t, signal.ID, first.all()[0].ID)
	})

	t.Run("failing handler does not stop delivery", func(t *testing.T) {
		emitter := NewSignalEmitter(testLogger())
		emitter.Register(SignalHandlerFunc(func(context.Context, *Signal) error {
			return errors.New("handler down")
		}))
		recorder := &signalRecorder{}
		emitter.Register(recorder)

		emitter.Emit(context.Background(), newSignal(SignalFailed, nil))
		assert.Len(t, recorder.all(), 1)
	})
}
