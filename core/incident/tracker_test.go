package incident

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/emsdispatch/core/model"
)

var t0 = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

func register(t *testing.T, tr *Tracker, id string) {
	t.Helper()
	_, err := tr.Register(model.Incident{ID: id, CreatedAt: t0})
	require.NoError(t, err)
}

func TestServedLifecycle(t *testing.T) {
	tr := NewTracker()
	register(t, tr, "i1")

	inc, err := tr.MarkAssigned("i1", "EV_1", t0.Add(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, model.IncidentAssigned, inc.Status)

	inc, err = tr.MarkServed("i1", "A", t0.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, model.IncidentServed, inc.Status)
	assert.Equal(t, 2*time.Second, inc.ResponseTime)
	assert.Equal(t, 10*time.Minute, inc.ServiceTime)
	assert.Equal(t, "A", inc.HospitalID)
}

func TestTransitionsAreForwardOnly(t *testing.T) {
	tr := NewTracker()
	register(t, tr, "i1")
	_, err := tr.MarkServed("i1", "A", t0)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	_, err = tr.MarkUnserved("i1", "no vehicle available", t0)
	require.NoError(t, err)
	_, err = tr.MarkAssigned("i1", "EV_1", t0)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	_, err = tr.MarkInterrupted("i1", t0)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	inc, ok := tr.Get("i1")
	require.True(t, ok)
	assert.Equal(t, model.IncidentUnserved, inc.Status)
	assert.Equal(t, "no vehicle available", inc.Reason)
}

func TestUnknownAndDuplicate(t *testing.T) {
	tr := NewTracker()
	_, err := tr.MarkAssigned("nope", "EV_1", t0)
	assert.True(t, errors.Is(err, ErrUnknownIncident))
	register(t, tr, "i1")
	_, err = tr.Register(model.Incident{ID: "i1"})
	assert.True(t, errors.Is(err, ErrDuplicateIncident))
}

func TestInterruptOpen(t *testing.T) {
	tr := NewTracker()
	register(t, tr, "pending")
	register(t, tr, "assigned")
	register(t, tr, "unserved")
	_, err := tr.MarkAssigned("assigned", "EV_1", t0)
	require.NoError(t, err)
	_, err = tr.MarkUnserved("unserved", "no vehicle available", t0)
	require.NoError(t, err)

	out := tr.InterruptOpen(t0.Add(time.Minute))
	require.Len(t, out, 2)
	assert.Equal(t, "pending", out[0].ID)
	assert.Equal(t, "assigned", out[1].ID)
	assert.Equal(t, ErrInterruptedRun.Error(), out[1].Reason)

	counts := tr.Counts()
	assert.Equal(t, 2, counts[model.IncidentInterrupted])
	assert.Equal(t, 1, counts[model.IncidentUnserved])
	assert.Len(t, tr.List(model.IncidentInterrupted), 2)
	assert.Equal(t, 3, tr.Len())
}
