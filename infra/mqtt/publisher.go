package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/emsdispatch/core/eventlog"
	"github.com/kilianp07/emsdispatch/core/model"
)

// Publisher sends one MQTT message. PahoClient implements it.
type Publisher interface {
	Publish(ctx context.Context, class, topic string, retained bool, payload []byte) error
	Disconnect()
}

// VehicleState is the retained payload of a vehicle state topic.
type VehicleState struct {
	VehicleID  string            `json:"vehicle_id"`
	Status     string            `json:"status"`
	Previous   string            `json:"previous"`
	Position   *model.Coordinate `json:"position,omitempty"`
	IncidentID string            `json:"incident_id,omitempty"`
	HospitalID string            `json:"hospital_id,omitempty"`
	Time       time.Time         `json:"time"`
}

// StatusFeed is an event log sink mirroring events on MQTT: every event on
// <prefix>/events/<kind> and the latest state of each vehicle, retained, on
// <prefix>/vehicle/<id>/state.
type StatusFeed struct {
	pub    Publisher
	prefix string
}

// NewStatusFeed wraps pub. The prefix has no trailing slash.
func NewStatusFeed(pub Publisher, prefix string) *StatusFeed {
	return &StatusFeed{pub: pub, prefix: strings.TrimSuffix(prefix, "/")}
}

// EventTopic returns the topic of events of the given kind.
func (f *StatusFeed) EventTopic(kind eventlog.Kind) string {
	return fmt.Sprintf("%s/events/%s", f.prefix, kind)
}

// StateTopic returns the retained state topic of a vehicle.
func (f *StatusFeed) StateTopic(vehicleID string) string {
	return fmt.Sprintf("%s/vehicle/%s/state", f.prefix, vehicleID)
}

// Write publishes ev, and the vehicle state when ev is a transition.
func (f *StatusFeed) Write(ctx context.Context, ev eventlog.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := f.pub.Publish(ctx, "event", f.EventTopic(ev.Kind), false, payload); err != nil {
		return err
	}
	if ev.Kind != eventlog.KindVehicleStateChanged {
		return nil
	}
	state, err := json.Marshal(VehicleState{
		VehicleID:  ev.VehicleID,
		Status:     ev.To,
		Previous:   ev.From,
		Position:   ev.Location,
		IncidentID: ev.IncidentID,
		HospitalID: ev.HospitalID,
		Time:       ev.Time,
	})
	if err != nil {
		return err
	}
	return f.pub.Publish(ctx, "state", f.StateTopic(ev.VehicleID), true, state)
}

// PublishSnapshot publishes the retained state of every vehicle, so that
// subscribers joining before the first transition see the fleet.
func (f *StatusFeed) PublishSnapshot(ctx context.Context, snaps []model.VehicleSnapshot) error {
	for _, s := range snaps {
		pos := s.Position
		state, err := json.Marshal(VehicleState{
			VehicleID:  s.ID,
			Status:     s.Status.String(),
			Position:   &pos,
			IncidentID: s.IncidentID,
			HospitalID: s.HospitalID,
			Time:       s.UpdatedAt,
		})
		if err != nil {
			return err
		}
		if err := f.pub.Publish(ctx, "state", f.StateTopic(s.ID), true, state); err != nil {
			return err
		}
	}
	return nil
}

// Close disconnects from the broker.
func (f *StatusFeed) Close() error {
	f.pub.Disconnect()
	return nil
}

var _ eventlog.Sink = (*StatusFeed)(nil)
