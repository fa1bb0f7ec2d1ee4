package sim

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/emsdispatch/core/fleet"
	"github.com/kilianp07/emsdispatch/core/incident"
	"github.com/kilianp07/emsdispatch/core/model"
)

// Durations summarizes a set of durations.
type Durations struct {
	Count int           `json:"count"`
	Mean  time.Duration `json:"mean"`
	P50   time.Duration `json:"p50"`
	P90   time.Duration `json:"p90"`
}

func describe(ds []time.Duration) Durations {
	if len(ds) == 0 {
		return Durations{}
	}
	xs := make([]float64, len(ds))
	for i, d := range ds {
		xs[i] = d.Seconds()
	}
	sort.Float64s(xs)
	sec := func(f float64) time.Duration {
		return time.Duration(f * float64(time.Second)).Round(time.Millisecond)
	}
	return Durations{
		Count: len(xs),
		Mean:  sec(stat.Mean(xs, nil)),
		P50:   sec(stat.Quantile(0.5, stat.Empirical, xs, nil)),
		P90:   sec(stat.Quantile(0.9, stat.Empirical, xs, nil)),
	}
}

// Summary is the outcome of a run.
type Summary struct {
	Incidents    int       `json:"incidents"`
	Served       int       `json:"served"`
	Unserved     int       `json:"unserved"`
	Interrupted  int       `json:"interrupted"`
	Open         int       `json:"open"`
	ResponseTime Durations `json:"response_time"`
	ServiceTime  Durations `json:"service_time"`
	Dispatches   int       `json:"dispatches"`
	DistanceM    float64   `json:"distance_m"`
	DegradedLegs int       `json:"degraded_legs"`
	Events       int       `json:"events"`
}

// Summarize computes the summary of the incidents and vehicles so far.
func Summarize(tr *incident.Tracker, fl *fleet.Fleet, events int) Summary {
	counts := tr.Counts()
	s := Summary{
		Incidents:   tr.Len(),
		Served:      counts[model.IncidentServed],
		Unserved:    counts[model.IncidentUnserved],
		Interrupted: counts[model.IncidentInterrupted],
		Open:        counts[model.IncidentPending] + counts[model.IncidentAssigned],
		Events:      events,
	}
	var resp, svc []time.Duration
	for _, inc := range tr.List(model.IncidentServed) {
		resp = append(resp, inc.ResponseTime)
		svc = append(svc, inc.ServiceTime)
	}
	s.ResponseTime = describe(resp)
	s.ServiceTime = describe(svc)
	st := fl.Stats()
	s.Dispatches = st.Dispatches
	s.DistanceM = st.DistanceM
	s.DegradedLegs = st.DegradedLegs
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("incidents=%d served=%d unserved=%d interrupted=%d dispatches=%d distance=%.1fkm response(mean=%s p90=%s)",
		s.Incidents, s.Served, s.Unserved, s.Interrupted, s.Dispatches, s.DistanceM/1000, s.ResponseTime.Mean, s.ResponseTime.P90)
}
