package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/emsdispatch/config"
	"github.com/kilianp07/emsdispatch/core/eventlog/store"
	"github.com/kilianp07/emsdispatch/core/factory"
)

func replayConfig(t *testing.T, seed uint64) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Simulation.Seed = seed
	cfg.Simulation.ReplayDurationS = 600
	cfg.Simulation.DrainTimeoutS = 1800
	cfg.Fleet.Size = 4
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestReplayIsDeterministic(t *testing.T) {
	run := func() (string, int) {
		svc, err := New(replayConfig(t, 42), Replay)
		require.NoError(t, err)
		sum, err := svc.Run(context.Background())
		require.NoError(t, err)
		return sum.String(), sum.Incidents
	}
	a, n := run()
	b, _ := run()
	assert.Equal(t, a, b)
	assert.Positive(t, n)
}

func TestReplayWritesConfiguredSinks(t *testing.T) {
	dir := t.TempDir()
	cfg := replayConfig(t, 7)
	cfg.EventLog.Sinks = []factory.ModuleConfig{
		{Type: "jsonl", Conf: map[string]any{"path": filepath.Join(dir, "events.jsonl")}},
	}
	extra, err := store.NewJSONLStore(filepath.Join(dir, "extra.jsonl"))
	require.NoError(t, err)

	svc, err := New(cfg, Replay, extra)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), svc.Seed)
	assert.Len(t, svc.Fleet.Vehicles(), 4)

	sum, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.Open)

	for _, name := range []string{"events.jsonl", "extra.jsonl"} {
		b, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(b)), "\n")
		assert.Len(t, lines, sum.Events, name)
	}
}

func TestRealtimeStopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Simulation.TimeScale = 60
	cfg.Simulation.TickIntervalMS = 100
	svc, err := New(cfg, Realtime)
	require.NoError(t, err)
	assert.NotZero(t, svc.Seed)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	sum, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, sum.Open)
	assert.Equal(t, sum.Incidents, sum.Served+sum.Unserved+sum.Interrupted)
}

func TestNewRejectsUnknownSink(t *testing.T) {
	cfg := config.Default()
	cfg.EventLog.Sinks = []factory.ModuleConfig{{Type: "kafka"}}
	_, err := New(cfg, Replay)
	assert.ErrorContains(t, err, "kafka")

	cfg = config.Default()
	cfg.Routing = factory.ModuleConfig{Type: "valhalla"}
	_, err = New(cfg, Replay)
	assert.ErrorContains(t, err, "routing client")
}
