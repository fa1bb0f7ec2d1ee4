package sim

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/emsdispatch/core/dispatch"
	"github.com/kilianp07/emsdispatch/core/eventlog"
	"github.com/kilianp07/emsdispatch/core/eventlog/store"
	"github.com/kilianp07/emsdispatch/core/fleet"
	"github.com/kilianp07/emsdispatch/core/generator"
	"github.com/kilianp07/emsdispatch/core/incident"
	"github.com/kilianp07/emsdispatch/core/model"
	"github.com/kilianp07/emsdispatch/core/routing"
	"github.com/kilianp07/emsdispatch/infra/logger"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func build(t *testing.T, clk clock.Clock, seed uint64, mean time.Duration, cfg Config, sinks ...eventlog.Sink) *Engine {
	t.Helper()
	log := logger.NopLogger{}
	sc := fleet.DefaultScenario()
	fl, err := fleet.New(sc.Vehicles[:4], sc.Hospitals, fleet.Config{SpeedKMH: 60},
		routing.Ranker{Client: routing.StraightClient{DetourFactor: 1.3}, TopK: 3}, log)
	require.NoError(t, err)
	tr := incident.NewTracker()
	events := eventlog.New(log, sinks...)
	coord, err := dispatch.New(dispatch.Config{}, fl, tr, events, clk, log)
	require.NoError(t, err)
	gen, err := generator.New(generator.Config{Area: sc.Area, Seed: seed, MeanInterval: mean}, clk, log)
	require.NoError(t, err)
	e, err := New(Deps{Fleet: fl, Tracker: tr, Events: events, Coordinator: coord, Generator: gen, Clock: clk, Log: log}, cfg)
	require.NoError(t, err)
	return e
}

func mockAt(t0 time.Time) *clock.Mock {
	m := clock.NewMock()
	m.Set(t0)
	return m
}

func replayToFile(t *testing.T, path string, seed uint64) Summary {
	t.Helper()
	js, err := store.NewJSONLStore(path)
	require.NoError(t, err)
	e := build(t, mockAt(epoch), seed, 90*time.Second, Config{TickInterval: 2 * time.Second}, js)
	sum, err := e.Replay(context.Background(), 30*time.Minute)
	require.NoError(t, err)
	return sum
}

func TestReplayIsByteIdentical(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jsonl")
	b := filepath.Join(dir, "b.jsonl")
	sa := replayToFile(t, a, 11)
	sb := replayToFile(t, b, 11)
	assert.Equal(t, sa, sb)

	ba, err := os.ReadFile(a)
	require.NoError(t, err)
	bb, err := os.ReadFile(b)
	require.NoError(t, err)
	require.NotEmpty(t, ba)
	assert.Equal(t, ba, bb)
}

func TestReplayEndsWithEveryIncidentTerminal(t *testing.T) {
	e := build(t, mockAt(epoch), 5, 90*time.Second, Config{TickInterval: 2 * time.Second})
	sum, err := e.Replay(context.Background(), 30*time.Minute)
	require.NoError(t, err)
	require.Greater(t, sum.Incidents, 0)
	assert.Zero(t, sum.Open)
	assert.Equal(t, sum.Incidents, sum.Served+sum.Unserved+sum.Interrupted)
	for _, inc := range e.Tracker.List() {
		assert.True(t, inc.Status.Terminal(), inc.ID)
		if inc.Status == model.IncidentServed {
			assert.GreaterOrEqual(t, inc.ResponseTime, time.Duration(0))
			assert.NotEmpty(t, inc.HospitalID)
		}
	}
	for _, v := range e.Fleet.Snapshot() {
		assert.Equal(t, model.AtBase, v.Status)
		assert.Empty(t, v.IncidentID)
	}
	assert.Equal(t, e.Events.Len(), sum.Events)
	_, err = e.Events.Append(eventlog.Event{Kind: eventlog.KindServed})
	assert.ErrorIs(t, err, eventlog.ErrClosed)
}

func TestReplayDrainLetsRunsComplete(t *testing.T) {
	e := build(t, mockAt(epoch), 5, 90*time.Second, Config{TickInterval: 2 * time.Second, DrainTimeout: time.Hour})
	sum, err := e.Replay(context.Background(), 20*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, sum.Interrupted)
	assert.Equal(t, sum.Incidents, sum.Served+sum.Unserved)
	assert.Equal(t, sum.Served, sum.ResponseTime.Count)
}

func TestReplayNeedsMockClock(t *testing.T) {
	e := build(t, clock.New(), 1, time.Minute, Config{})
	_, err := e.Replay(context.Background(), time.Minute)
	assert.ErrorIs(t, err, ErrReplayClock)
}

func TestRunInterruptsOpenIncidentsOnShutdown(t *testing.T) {
	m := mockAt(epoch)
	e := build(t, m, 3, 20*time.Second, Config{TickInterval: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		sum Summary
		err error
	}
	done := make(chan result, 1)
	go func() {
		s, err := e.Run(ctx)
		done <- result{s, err}
	}()
	require.Eventually(t, e.Generator.Running, 2*time.Second, 5*time.Millisecond)
	for i := 0; i < 600 && e.Tracker.Len() < 5; i++ {
		m.Add(time.Second)
	}
	require.Eventually(t, func() bool {
		return len(e.Tracker.List(model.IncidentPending)) == 0
	}, 2*time.Second, 5*time.Millisecond)
	cancel()

	var res result
	select {
	case res = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}
	require.NoError(t, res.err)
	assert.GreaterOrEqual(t, res.sum.Incidents, 5)
	assert.Zero(t, res.sum.Open)
	assert.Equal(t, res.sum.Incidents, res.sum.Served+res.sum.Unserved+res.sum.Interrupted)
	assert.False(t, e.Generator.Running())
	for _, v := range e.Fleet.Snapshot() {
		assert.Equal(t, model.AtBase, v.Status)
	}
}

func TestDescribe(t *testing.T) {
	d := describe([]time.Duration{4 * time.Second, time.Second, 2 * time.Second, 3 * time.Second})
	assert.Equal(t, 4, d.Count)
	assert.Equal(t, 2500*time.Millisecond, d.Mean)
	assert.Equal(t, 2*time.Second, d.P50)
	assert.Equal(t, 4*time.Second, d.P90)
	assert.Equal(t, Durations{}, describe(nil))
}
