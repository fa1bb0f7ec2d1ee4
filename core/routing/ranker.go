package routing

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/emsdispatch/core/geo"
	"github.com/kilianp07/emsdispatch/core/logger"
	"github.com/kilianp07/emsdispatch/core/model"
)

// DefaultTopK bounds the number of routing queries per decision.
const DefaultTopK = 3

// Candidate is one option to rank: a vehicle going to an incident or a
// vehicle going to a hospital.
type Candidate struct {
	ID   string
	From model.Coordinate
	To   model.Coordinate
}

// Choice is a ranked candidate with the route that will be followed.
type Choice struct {
	Candidate
	// StraightM is the haversine distance used by the pre-filter.
	StraightM float64
	Route     model.Route
	// Routed is false when Route is the straight-line fallback.
	Routed bool
	Err    error
}

// Ranker pre-filters candidates by haversine distance and confirms the best
// TopK with concurrent routing queries.
type Ranker struct {
	Client        Client
	TopK          int
	Timeout       time.Duration
	FallbackSpeed float64
	Log           logger.Logger
}

// Rank orders candidates for selection. Candidates whose query succeeded come
// first by routed distance, then the failed ones by haversine distance with a
// straight-line route. Ties are broken by lower ID. Only the TopK nearest by
// haversine are returned. The call returns once every query answered or the
// timeout elapsed.
func (r Ranker) Rank(ctx context.Context, cands []Candidate) []Choice {
	if len(cands) == 0 {
		return nil
	}
	choices := make([]Choice, len(cands))
	for i, c := range cands {
		choices[i] = Choice{Candidate: c, StraightM: geo.Haversine(c.From, c.To)}
	}
	sort.SliceStable(choices, func(i, j int) bool {
		if choices[i].StraightM != choices[j].StraightM {
			return choices[i].StraightM < choices[j].StraightM
		}
		return choices[i].ID < choices[j].ID
	})
	k := r.TopK
	if k <= 0 {
		k = DefaultTopK
	}
	if len(choices) > k {
		choices = choices[:k]
	}

	qctx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var wg sync.WaitGroup
	for i := range choices {
		if r.Client == nil {
			break
		}
		wg.Add(1)
		go func(c *Choice) {
			defer wg.Done()
			route, err := queryWithin(qctx, r.Client, c.From, c.To)
			if err != nil {
				c.Err = err
				return
			}
			c.Route = route
			c.Routed = true
		}(&choices[i])
	}
	wg.Wait()

	failed := 0
	for i := range choices {
		if !choices[i].Routed {
			failed++
			choices[i].Route = StraightLine(choices[i].From, choices[i].To, r.FallbackSpeed)
			if r.Log != nil && choices[i].Err != nil {
				r.Log.Warnf("routing %s fell back to straight line: %v", choices[i].ID, choices[i].Err)
			}
		}
	}
	if failed == len(choices) && r.Log != nil {
		r.Log.Warnf("all %d routing queries failed, using haversine order", failed)
	}

	sort.SliceStable(choices, func(i, j int) bool {
		a, b := choices[i], choices[j]
		if a.Routed != b.Routed {
			return a.Routed
		}
		if a.Routed {
			if a.Route.DistanceM != b.Route.DistanceM {
				return a.Route.DistanceM < b.Route.DistanceM
			}
			return a.ID < b.ID
		}
		if a.StraightM != b.StraightM {
			return a.StraightM < b.StraightM
		}
		return a.ID < b.ID
	})
	return choices
}
