package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/emsdispatch/core/eventlog"
)

var t0 = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

func sample() []eventlog.Event {
	return []eventlog.Event{
		{Seq: 1, Kind: eventlog.KindIncidentCreated, Time: t0, IncidentID: "i1"},
		{Seq: 2, Kind: eventlog.KindDispatched, Time: t0.Add(time.Second), IncidentID: "i1", VehicleID: "EV_1"},
		{Seq: 3, Kind: eventlog.KindVehicleStateChanged, Time: t0.Add(time.Second), VehicleID: "EV_1", IncidentID: "i1"},
		{Seq: 4, Kind: eventlog.KindIncidentCreated, Time: t0.Add(time.Minute), IncidentID: "i2"},
		{Seq: 5, Kind: eventlog.KindUnserved, Time: t0.Add(time.Minute), IncidentID: "i2", Reason: "no vehicle available"},
	}
}

func exercise(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	for _, ev := range sample() {
		require.NoError(t, s.Write(ctx, ev))
	}

	all, err := s.Query(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.EqualValues(t, 1, all[0].Seq)
	assert.EqualValues(t, 5, all[4].Seq)

	byKind, err := s.Query(ctx, Query{Kind: eventlog.KindIncidentCreated})
	require.NoError(t, err)
	assert.Len(t, byKind, 2)

	byVehicle, err := s.Query(ctx, Query{VehicleID: "EV_1"})
	require.NoError(t, err)
	assert.Len(t, byVehicle, 2)

	byIncident, err := s.Query(ctx, Query{IncidentID: "i2"})
	require.NoError(t, err)
	require.Len(t, byIncident, 2)
	assert.Equal(t, "no vehicle available", byIncident[1].Reason)

	window, err := s.Query(ctx, Query{Start: t0.Add(30 * time.Second)})
	require.NoError(t, err)
	assert.Len(t, window, 2)
}

func TestJSONLStore(t *testing.T) {
	s, err := NewJSONLStore(filepath.Join(t.TempDir(), "events.jsonl"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exercise(t, s)
}

func TestJSONLStoreSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{not json\n"), 0o644))
	s, err := NewJSONLStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Write(context.Background(), sample()[0]))
	out, err := s.Query(context.Background(), Query{})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestRotatingJSONLStore(t *testing.T) {
	s, err := NewRotatingJSONLStore(filepath.Join(t.TempDir(), "logs", "events.jsonl"), 1, 2, 1)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exercise(t, s)
}

func TestRotatingJSONLStoreRotates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.jsonl")
	s, err := NewRotatingJSONLStore(path, 1, 5, 1)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	ev := eventlog.Event{Kind: eventlog.KindUnserved, Time: t0, Reason: strings.Repeat("x", 4096)}
	n := 400
	for i := 0; i < n; i++ {
		ev.Seq = uint64(i + 1)
		require.NoError(t, s.Write(context.Background(), ev))
	}
	files, _ := filepath.Glob(filepath.Join(dir, "events*"))
	assert.Greater(t, len(files), 1)
	out, err := s.Query(context.Background(), Query{})
	require.NoError(t, err)
	assert.Len(t, out, n)
	assert.EqualValues(t, 1, out[0].Seq)
	assert.EqualValues(t, n, out[n-1].Seq)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exercise(t, s)
}
