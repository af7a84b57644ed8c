package events_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/axiomproject/axiom/events"
)

func TestEmitDeliversOnlyToMatchingSubscribers(t *testing.T) {
	e := events.NewEmitter(nil)

	var sealed, committed []events.Event
	e.Subscribe(events.EventFactSealed, func(ev events.Event) { sealed = append(sealed, ev) })
	e.Subscribe(events.EventBlockCommitted, func(ev events.Event) { committed = append(committed, ev) })

	e.Emit(events.Event{Type: events.EventFactSealed, FactHash: "abc"})

	require.Len(t, sealed, 1)
	require.Equal(t, "abc", sealed[0].FactHash)
	require.Empty(t, committed)
}

func TestEmitDeliversToAllSubscribersOfSameType(t *testing.T) {
	e := events.NewEmitter(nil)

	var calls int
	e.Subscribe(events.EventPeerConnected, func(events.Event) { calls++ })
	e.Subscribe(events.EventPeerConnected, func(events.Event) { calls++ })

	e.Emit(events.Event{Type: events.EventPeerConnected})

	require.Equal(t, 2, calls)
}

func TestEmitRecoversFromPanickingHandler(t *testing.T) {
	e := events.NewEmitter(nil)

	var ranAfterPanic bool
	e.Subscribe(events.EventValidatorStaked, func(events.Event) { panic("boom") })
	e.Subscribe(events.EventValidatorStaked, func(events.Event) { ranAfterPanic = true })

	require.NotPanics(t, func() {
		e.Emit(events.Event{Type: events.EventValidatorStaked})
	})
	require.True(t, ranAfterPanic)
}

func TestEmitWithNoSubscribersIsNoop(t *testing.T) {
	e := events.NewEmitter(nil)
	require.NotPanics(t, func() {
		e.Emit(events.Event{Type: events.EventFactIngested})
	})
}
