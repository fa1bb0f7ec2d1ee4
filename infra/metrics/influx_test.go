package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/emsdispatch/core/metrics"
	"github.com/kilianp07/emsdispatch/core/model"
)

type lineServer struct {
	mu     sync.Mutex
	bodies []string
}

func (l *lineServer) handler(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	l.mu.Lock()
	l.bodies = append(l.bodies, strings.TrimSpace(string(data)))
	l.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (l *lineServer) lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.bodies...)
}

func newInfluxTestSink(t *testing.T) (*InfluxSink, *lineServer) {
	t.Helper()
	ls := &lineServer{}
	srv := httptest.NewServer(http.HandlerFunc(ls.handler))
	t.Cleanup(srv.Close)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Token: "token", Org: "org", Bucket: "bucket"})
	t.Cleanup(sink.Close)
	return sink, ls
}

func lineOf(p *write.Point) string {
	return strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
}

func TestInfluxSink_RecordDispatched(t *testing.T) {
	sink, ls := newInfluxTestSink(t)
	now := time.Now()
	require.NoError(t, sink.RecordIncident(coremetrics.IncidentEvent{
		IncidentID: "inc-1",
		VehicleID:  "EV_1",
		Outcome:    coremetrics.OutcomeDispatched,
		DistanceM:  1234.56789,
		Degraded:   true,
		Time:       now,
	}))
	p := write.NewPointWithMeasurement("incident_event").
		AddTag("outcome", "dispatched").
		AddTag("incident_id", "inc-1").
		AddTag("degraded", "true").
		AddTag("vehicle_id", "EV_1").
		AddField("distance_m", 1234.568).
		SetTime(now)
	assert.Equal(t, []string{lineOf(p)}, ls.lines())
}

func TestInfluxSink_RecordServed(t *testing.T) {
	sink, ls := newInfluxTestSink(t)
	now := time.Now()
	require.NoError(t, sink.RecordIncident(coremetrics.IncidentEvent{
		IncidentID:   "inc-2",
		VehicleID:    "EV_3",
		HospitalID:   "B",
		Outcome:      coremetrics.OutcomeServed,
		ResponseTime: 1500 * time.Millisecond,
		ServiceTime:  2 * time.Minute,
		Time:         now,
	}))
	p := write.NewPointWithMeasurement("incident_event").
		AddTag("outcome", "served").
		AddTag("incident_id", "inc-2").
		AddTag("degraded", "false").
		AddTag("vehicle_id", "EV_3").
		AddTag("hospital_id", "B").
		AddField("response_s", 1.5).
		AddField("service_s", 120.0).
		SetTime(now)
	assert.Equal(t, []string{lineOf(p)}, ls.lines())
}

func TestInfluxSink_RecordVehicleState(t *testing.T) {
	sink, ls := newInfluxTestSink(t)
	now := time.Now()
	require.NoError(t, sink.RecordVehicleState(coremetrics.VehicleStateEvent{
		VehicleID:  "EV_1",
		From:       model.AtBase,
		To:         model.EnRouteToIncident,
		Position:   model.Coordinate{Lat: 19.07, Lon: 72.87},
		IncidentID: "inc-1",
		Time:       now,
	}))
	p := write.NewPointWithMeasurement("vehicle_state").
		AddTag("vehicle_id", "EV_1").
		AddTag("status", "EN_ROUTE_TO_INCIDENT").
		AddField("from", "AT_BASE").
		AddField("lat", 19.07).
		AddField("lon", 72.87).
		AddField("incident_id", "inc-1").
		SetTime(now)
	assert.Equal(t, []string{lineOf(p)}, ls.lines())
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	var called bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "bucket"})
	_, isInflux := sink.(*InfluxSink)
	assert.False(t, isInflux, "expected NopSink on failing health check")
	assert.True(t, called, "health endpoint not called")
}

func TestRound3(t *testing.T) {
	assert.Equal(t, 1.235, round3(1.23456))
	assert.Equal(t, -0.5, round3(-0.5))
}
