package observer

import (
	"context"
	"errors"
	"testing"

	"github.com/agentkernel/structured-agents/types"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	events []Event
}

func (r *recordingObserver) Emit(_ context.Context, event Event) error {
	r.events = append(r.events, event)
	return nil
}

type erroringObserver struct{}

func (erroringObserver) Emit(context.Context, Event) error { return errors.New("boom") }

type panickingObserver struct{}

func (panickingObserver) Emit(context.Context, Event) error { panic("kaboom") }

func TestCompositeObserverFanOut(t *testing.T) {
	first := &recordingObserver{}
	second := &recordingObserver{}
	composite := NewCompositeObserver([]Observer{first, second}, nil, nil)

	event := NewKernelStartEvent(5, 2, 3)
	require.NoError(t, composite.Emit(context.Background(), event))

	require.Len(t, first.events, 1)
	require.Len(t, second.events, 1)
}

func TestCompositeObserverIsolatesErrorsAndPanics(t *testing.T) {
	var errs []int
	var panics []int

	tail := &recordingObserver{}
	composite := NewCompositeObserver(
		[]Observer{erroringObserver{}, panickingObserver{}, tail},
		func(i int, err error) { errs = append(errs, i) },
		func(i int, r any) { panics = append(panics, i) },
	)

	event := NewKernelEndEvent(4, types.TerminationNoToolCalls, 120)
	require.NoError(t, composite.Emit(context.Background(), event))

	require.Equal(t, []int{0}, errs)
	require.Equal(t, []int{1}, panics)
	require.Len(t, tail.events, 1, "a failing subscriber must not block delivery to later subscribers")
}

func TestNullObserverSwallowsEvents(t *testing.T) {
	require.NoError(t, NullObserver{}.Emit(context.Background(), NewKernelStartEvent(1, 0, 1)))
}

func TestBusRegisterAndUnsubscribe(t *testing.T) {
	bus := NewBus(nil, nil)
	rec := &recordingObserver{}
	sub := bus.Register(rec)

	require.NoError(t, bus.Emit(context.Background(), NewKernelStartEvent(1, 0, 1)))
	require.Len(t, rec.events, 1)

	sub.Unsubscribe()
	require.NoError(t, bus.Emit(context.Background(), NewKernelStartEvent(1, 0, 1)))
	require.Len(t, rec.events, 1, "unsubscribed observer must not receive further events")
}
