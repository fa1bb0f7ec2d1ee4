package eventlog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/emsdispatch/core/model"
	"github.com/kilianp07/emsdispatch/infra/logger"
)

type memSink struct {
	mu     sync.Mutex
	events []Event
	closed bool
	delay  time.Duration
}

func (m *memSink) Write(_ context.Context, ev Event) error {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *memSink) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *memSink) seqs() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]uint64, len(m.events))
	for i, e := range m.events {
		out[i] = e.Seq
	}
	return out
}

var at = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestAppendAssignsSequence(t *testing.T) {
	l := New(logger.NopLogger{})
	defer func() { _ = l.Close(context.Background()) }()
	for i := 0; i < 3; i++ {
		ev, err := l.Append(Event{Kind: KindIncidentCreated, Time: at})
		require.NoError(t, err)
		assert.EqualValues(t, i+1, ev.Seq)
	}
	assert.Equal(t, 3, l.Len())
	since := l.Since(1)
	require.Len(t, since, 2)
	assert.EqualValues(t, 2, since[0].Seq)
	assert.Empty(t, l.Since(10))
}

func TestSnapshotIsACopy(t *testing.T) {
	l := New(logger.NopLogger{})
	defer func() { _ = l.Close(context.Background()) }()
	_, err := l.Append(Event{Kind: KindServed, IncidentID: "i1"})
	require.NoError(t, err)
	snap := l.Snapshot()
	snap[0].IncidentID = "changed"
	assert.Equal(t, "i1", l.Snapshot()[0].IncidentID)
}

func TestCloseFlushesSinksInOrder(t *testing.T) {
	sink := &memSink{delay: time.Millisecond}
	l := New(logger.NopLogger{}, sink)
	for i := 0; i < 20; i++ {
		_, err := l.Append(Event{Kind: KindVehicleStateChanged, Time: at})
		require.NoError(t, err)
	}
	require.NoError(t, l.Close(context.Background()))
	seqs := sink.seqs()
	require.Len(t, seqs, 20)
	for i, s := range seqs {
		assert.EqualValues(t, i+1, s)
	}
	assert.True(t, sink.closed)

	_, err := l.Append(Event{Kind: KindServed})
	assert.True(t, errors.Is(err, ErrClosed))
	assert.NoError(t, l.Close(context.Background()))
}

func TestConcurrentAppendsKeepPrefixConsistent(t *testing.T) {
	l := New(logger.NopLogger{})
	defer func() { _ = l.Close(context.Background()) }()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, _ = l.Append(Event{Kind: KindDispatched})
				snap := l.Snapshot()
				for j, e := range snap {
					if e.Seq != uint64(j+1) {
						t.Errorf("gap in prefix at %d: seq %d", j, e.Seq)
						return
					}
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 400, l.Len())
}

func TestSubscribeReceivesAppends(t *testing.T) {
	l := New(logger.NopLogger{})
	defer func() { _ = l.Close(context.Background()) }()
	ch := l.Subscribe()
	_, err := l.Append(Unserved(model.Incident{ID: "i9", Reason: "no vehicle available", TerminalAt: at}))
	require.NoError(t, err)
	select {
	case ev := <-ch:
		assert.Equal(t, KindUnserved, ev.Kind)
		assert.Equal(t, "no vehicle available", ev.Reason)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
	l.Unsubscribe(ch)
}

func TestEventBuilders(t *testing.T) {
	inc := model.Incident{
		ID:           "i1",
		Location:     model.Coordinate{Lat: 19.1, Lon: 72.9},
		CreatedAt:    at,
		VehicleID:    "EV_1",
		HospitalID:   "A",
		TerminalAt:   at.Add(time.Minute),
		ResponseTime: 1500 * time.Millisecond,
		ServiceTime:  time.Minute,
	}
	ev := Served(inc)
	assert.Equal(t, KindServed, ev.Kind)
	assert.EqualValues(t, 1500, ev.ResponseTimeMS)
	assert.EqualValues(t, 60000, ev.ServiceTimeMS)

	d := Dispatched(inc, "EV_1", model.Route{DistanceM: 1200, Degraded: true}, at)
	assert.True(t, d.Degraded)
	assert.Equal(t, 1200.0, d.DistanceM)

	v := VehicleStateChanged(model.VehicleSnapshot{ID: "EV_1", Status: model.AtIncident, UpdatedAt: at}, model.EnRouteToIncident)
	assert.Equal(t, "EN_ROUTE_TO_INCIDENT", v.From)
	assert.Equal(t, "AT_INCIDENT", v.To)
	assert.True(t, KindInterrupted.Valid())
	assert.False(t, Kind("bogus").Valid())
}
