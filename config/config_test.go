package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

//nolint:gocyclo
func TestLoad(t *testing.T) {
	path := writeFile(t, "config.yaml", `simulation:
  seed: 7
  time_scale: 60
  tick_interval_ms: 500
  epoch: "2024-06-01T08:00:00Z"
generator:
  mean_interval_s: 30
fleet:
  size: 12
  speed_kmh: 50
dispatch:
  top_k: 5
  workers: 2
routing:
  type: osrm
  conf:
    url: "http://localhost:5000"
event_log:
  sinks:
    - type: jsonl
      conf:
        path: "/tmp/events.jsonl"
metrics:
  prometheus_addr: ":9090"
  sinks:
    - type: "nop"
api:
  addr: ":8080"
  token: "secret"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"seed", cfg.Simulation.Seed, uint64(7)},
		{"time_scale", cfg.Simulation.TimeScale, 60.0},
		{"tick", cfg.Simulation.Engine().TickInterval, 500 * time.Millisecond},
		{"replay_default", cfg.Simulation.ReplayDurationS, 3600},
		{"mean_interval", cfg.Generator.MeanIntervalS, 30.0},
		{"fleet_size", cfg.Fleet.Size, 12},
		{"speed", cfg.Fleet.SpeedKMH, 50.0},
		{"on_scene_default", cfg.Fleet.Build().OnScene, 10 * time.Second},
		{"top_k", cfg.Dispatch.TopK, 5},
		{"workers", cfg.Dispatch.Workers, 2},
		{"queue_default", cfg.Dispatch.QueueSize, 64},
		{"routing", cfg.Routing.Type, "osrm"},
		{"routing_url", cfg.Routing.Conf["url"], "http://localhost:5000"},
		{"event_sink", cfg.EventLog.Sinks[0].Type, "jsonl"},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "nop", true},
		{"prom", cfg.Metrics.PrometheusAddr, ":9090"},
		{"api", cfg.API.Enabled(), true},
		{"cors_default", cfg.API.CORSOrigins, []string{"*"}},
	}
	for _, c := range checks {
		if !equal(c.got, c.want) {
			t.Errorf("%s: got %v want %v", c.name, c.got, c.want)
		}
	}
	epoch, err := cfg.Simulation.EpochTime()
	if err != nil || !epoch.Equal(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("epoch: %v %v", epoch, err)
	}
}

func equal(a, b any) bool {
	as, aok := a.([]string)
	bs, bok := b.([]string)
	if aok && bok {
		return strings.Join(as, ",") == strings.Join(bs, ",")
	}
	return a == b
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{"fleet": {"size": 3}, "routing": {"type": "straight"}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Fleet.Size != 3 || cfg.Routing.Type != "straight" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeFile(t, "config.yaml", "dispatch:\n  top_k: 5\n")
	t.Setenv("K_DISPATCH__TOP_K", "8")
	t.Setenv("K_SIMULATION__SEED", "99")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Dispatch.TopK != 8 {
		t.Errorf("top_k = %d", cfg.Dispatch.TopK)
	}
	if cfg.Simulation.Seed != 99 {
		t.Errorf("seed = %d", cfg.Simulation.Seed)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Routing.Type != "straight" {
		t.Errorf("routing default = %q", cfg.Routing.Type)
	}
	if cfg.API.Enabled() {
		t.Error("api should be disabled by default")
	}
	if got := cfg.Simulation.ReplayEpoch(); got.Year() != 2024 {
		t.Errorf("replay epoch = %v", got)
	}
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]struct {
		name string
		data string
		msg  string
	}{
		"format":      {"config.toml", "", "unsupported config format"},
		"time_scale":  {"c.yaml", "simulation:\n  time_scale: 0.5\n", "time_scale"},
		"epoch":       {"c.yaml", "simulation:\n  epoch: yesterday\n", "simulation.epoch"},
		"fleet":       {"c.yaml", "fleet:\n  size: -1\n", "fleet.size"},
		"event_sink":  {"c.yaml", "event_log:\n  sinks:\n    - conf: {}\n", "event_log.sinks[0]"},
		"metric_sink": {"c.yaml", "metrics:\n  sinks:\n    - conf: {}\n", "metrics.sinks[0]"},
		"api":         {"c.yaml", "api:\n  addr: nope\n", "api.addr"},
		"area":        {"c.yaml", "generator:\n  area: {min_lat: 10, max_lat: 5, min_lon: 0, max_lon: 1}\n", "generator.area"},
		"sentry":      {"c.yaml", "sentry:\n  traces_sample_rate: 2\n", "sentry.traces_sample_rate"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, tc.name, tc.data))
			if err == nil || !strings.Contains(err.Error(), tc.msg) {
				t.Fatalf("expected %q error, got %v", tc.msg, err)
			}
		})
	}
}

func TestGeneratorBuildFallsBackToScenarioArea(t *testing.T) {
	cfg := Default()
	sc, err := cfg.Fleet.LoadScenario()
	if err != nil {
		t.Fatalf("scenario: %v", err)
	}
	g := cfg.Generator.Build(1, sc.Area)
	if g.Area != sc.Area || g.MeanInterval != 15*time.Second || g.Seed != 1 {
		t.Fatalf("unexpected generator config: %+v", g)
	}
	if len(sc.Vehicles) != 10 {
		t.Fatalf("vehicles = %d", len(sc.Vehicles))
	}
}
