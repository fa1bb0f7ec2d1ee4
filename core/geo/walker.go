package geo

import "github.com/kilianp07/emsdispatch/core/model"

// ArrivalEpsilonM is the distance under which a position counts as arrived.
const ArrivalEpsilonM = 5.0

// Walker tracks progress along a path.
type Walker struct {
	path   []model.Coordinate
	seg    int     // index of the segment start
	offset float64 // metres already covered on the current segment
	pos    model.Coordinate
}

// NewWalker starts at the first point of path. An empty path yields a walker
// that is already done.
func NewWalker(path []model.Coordinate) *Walker {
	p := make([]model.Coordinate, len(path))
	copy(p, path)
	w := &Walker{path: p}
	if len(p) > 0 {
		w.pos = p[0]
	}
	return w
}

// Position returns the current point.
func (w *Walker) Position() model.Coordinate { return w.pos }

// Done reports whether the end of the path was reached.
func (w *Walker) Done() bool {
	return len(w.path) < 2 || w.seg >= len(w.path)-1
}

func (w *Walker) remainingSegments() int { return len(w.path) - 2 - w.seg }

// Remaining returns the distance left to the end of the path in metres.
func (w *Walker) Remaining() float64 {
	if w.Done() {
		return 0
	}
	rest := Haversine(w.pos, w.path[w.seg+1])
	for i := w.seg + 2; i < len(w.path); i++ {
		rest += Haversine(w.path[i-1], w.path[i])
	}
	return rest
}

// Advance moves up to meters along the path and returns the distance actually
// covered. The final point is snapped to once within ArrivalEpsilonM.
func (w *Walker) Advance(meters float64) float64 {
	var moved float64
	for meters > 0 && !w.Done() {
		a, b := w.path[w.seg], w.path[w.seg+1]
		segLen := Haversine(a, b)
		left := segLen - w.offset
		if meters < left {
			w.offset += meters
			moved += meters
			w.pos = Interpolate(a, b, w.offset/segLen)
			meters = 0
			break
		}
		moved += left
		meters -= left
		w.seg++
		w.offset = 0
		w.pos = b
	}
	if !w.Done() && w.remainingSegments() == 0 {
		end := w.path[len(w.path)-1]
		if d := Haversine(w.pos, end); d <= ArrivalEpsilonM {
			moved += d
			w.pos = end
			w.seg = len(w.path) - 1
		}
	}
	return moved
}
