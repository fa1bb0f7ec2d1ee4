package scenarios

import (
	"context"
	"testing"

	"github.com/kilianp07/emsdispatch/app"
	"github.com/kilianp07/emsdispatch/core/sim"
)

// RunScenario replays sc twice, checks both runs agree and the summary
// meets the expectations.
func RunScenario(t *testing.T, sc *Scenario) sim.Summary {
	t.Helper()
	first := replay(t, sc)
	if second := replay(t, sc); second.String() != first.String() {
		t.Errorf("scenario %s is not deterministic:\n%s\n%s", sc.Name, first, second)
	}
	check(t, sc, first)
	return first
}

func replay(t *testing.T, sc *Scenario) sim.Summary {
	t.Helper()
	cfg, err := sc.Config()
	if err != nil {
		t.Fatalf("scenario %s config: %v", sc.Name, err)
	}
	svc, err := app.New(cfg, app.Replay)
	if err != nil {
		t.Fatalf("scenario %s: %v", sc.Name, err)
	}
	sum, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("scenario %s run: %v", sc.Name, err)
	}
	return sum
}

func check(t *testing.T, sc *Scenario, sum sim.Summary) {
	t.Helper()
	exp := sc.Expected
	if sum.Open != 0 {
		t.Errorf("scenario %s left %d incidents open", sc.Name, sum.Open)
	}
	if got := sum.Served + sum.Unserved + sum.Interrupted; got != sum.Incidents {
		t.Errorf("scenario %s: %d terminal incidents out of %d", sc.Name, got, sum.Incidents)
	}
	if sum.Incidents < exp.MinIncidents {
		t.Errorf("scenario %s expected at least %d incidents, got %d", sc.Name, exp.MinIncidents, sum.Incidents)
	}
	if sum.Served < exp.MinServed {
		t.Errorf("scenario %s expected at least %d served, got %d", sc.Name, exp.MinServed, sum.Served)
	}
	if exp.MaxUnserved >= 0 && sum.Unserved > exp.MaxUnserved {
		t.Errorf("scenario %s expected at most %d unserved, got %d", sc.Name, exp.MaxUnserved, sum.Unserved)
	}
	if exp.MaxMeanResponseS > 0 && sum.ResponseTime.Mean.Seconds() > exp.MaxMeanResponseS {
		t.Errorf("scenario %s mean response %s above %.0fs", sc.Name, sum.ResponseTime.Mean, exp.MaxMeanResponseS)
	}
}
