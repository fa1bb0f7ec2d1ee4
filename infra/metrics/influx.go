package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/emsdispatch/core/metrics"
	"github.com/kilianp07/emsdispatch/infra/logger"
)

// InfluxConfig holds the InfluxDB connection settings.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes incident and vehicle events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordIncident writes one incident step.
func (s *InfluxSink) RecordIncident(ev coremetrics.IncidentEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("incident_event").
		AddTag("outcome", string(ev.Outcome)).
		AddTag("incident_id", ev.IncidentID).
		AddTag("degraded", strconv.FormatBool(ev.Degraded))
	if ev.VehicleID != "" {
		p = p.AddTag("vehicle_id", ev.VehicleID)
	}
	if ev.HospitalID != "" {
		p = p.AddTag("hospital_id", ev.HospitalID)
	}
	switch ev.Outcome {
	case coremetrics.OutcomeDispatched:
		p = p.AddField("distance_m", round3(ev.DistanceM))
	case coremetrics.OutcomeServed:
		p = p.AddField("response_s", round3(ev.ResponseTime.Seconds())).
			AddField("service_s", round3(ev.ServiceTime.Seconds()))
	default:
		p = p.AddField("reason", ev.Reason)
	}
	return s.writeAPI.WritePoint(ctx, p.SetTime(ev.Time))
}

// RecordVehicleState writes a vehicle transition with its position.
func (s *InfluxSink) RecordVehicleState(ev coremetrics.VehicleStateEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("vehicle_state").
		AddTag("vehicle_id", ev.VehicleID).
		AddTag("status", ev.To.String()).
		AddField("from", ev.From.String()).
		AddField("lat", ev.Position.Lat).
		AddField("lon", ev.Position.Lon)
	if ev.IncidentID != "" {
		p = p.AddField("incident_id", ev.IncidentID)
	}
	return s.writeAPI.WritePoint(ctx, p.SetTime(ev.Time))
}

// RecordFleetSize writes the availability of the fleet.
func (s *InfluxSink) RecordFleetSize(total, available int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("fleet_size").
		AddField("total", total).
		AddField("available", available).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
