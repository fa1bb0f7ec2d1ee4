package fleet

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/emsdispatch/core/model"
)

// Scenario is the static data of a run: service area, vehicle bases and
// hospitals.
type Scenario struct {
	Name      string              `json:"name" yaml:"name"`
	Area      model.BoundingBox   `json:"area" yaml:"area"`
	Vehicles  []model.VehicleSpec `json:"vehicles" yaml:"vehicles" validate:"required,min=1,unique=ID,dive"`
	Hospitals []model.Hospital    `json:"hospitals" yaml:"hospitals" validate:"required,min=1,unique=ID,dive"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// MumbaiArea is the default service area.
var MumbaiArea = model.BoundingBox{MinLat: 18.95, MinLon: 72.80, MaxLat: 19.20, MaxLon: 73.05}

var mumbaiBases = []model.Coordinate{
	{Lat: 19.05, Lon: 72.82}, {Lat: 19.05, Lon: 72.90}, {Lat: 19.07, Lon: 72.85},
	{Lat: 19.08, Lon: 72.93}, {Lat: 19.09, Lon: 72.87}, {Lat: 19.10, Lon: 72.91},
	{Lat: 19.11, Lon: 72.88}, {Lat: 19.12, Lon: 72.92}, {Lat: 19.13, Lon: 72.86},
	{Lat: 19.14, Lon: 72.90},
}

// DefaultScenario returns the Mumbai fleet of ten vehicles and four hospitals.
func DefaultScenario() Scenario {
	s := Scenario{
		Name: "mumbai",
		Area: MumbaiArea,
		Hospitals: []model.Hospital{
			{ID: "A", Name: "Hospital A", Location: model.Coordinate{Lat: 19.08, Lon: 72.88}},
			{ID: "B", Name: "Hospital B", Location: model.Coordinate{Lat: 19.10, Lon: 72.90}},
			{ID: "C", Name: "Hospital C", Location: model.Coordinate{Lat: 19.12, Lon: 72.91}},
			{ID: "D", Name: "Hospital D", Location: model.Coordinate{Lat: 19.07, Lon: 72.86}},
		},
	}
	for i, b := range mumbaiBases {
		s.Vehicles = append(s.Vehicles, model.VehicleSpec{ID: VehicleID(i + 1), Base: b})
	}
	return s
}

// VehicleID formats the default identifier of the n-th vehicle.
func VehicleID(n int) string { return fmt.Sprintf("EV_%d", n) }

// LoadScenario reads a scenario from a YAML or JSON file.
func LoadScenario(path string) (Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, err
	}
	var s Scenario
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &s)
	case ".json":
		err = json.Unmarshal(b, &s)
	default:
		return Scenario{}, fmt.Errorf("unsupported scenario format: %s", ext)
	}
	if err != nil {
		return Scenario{}, fmt.Errorf("scenario %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return Scenario{}, fmt.Errorf("scenario %s: %w", path, err)
	}
	return s, nil
}

// Validate checks the scenario can build a fleet: at least one vehicle and
// one hospital, unique non-empty ids and WGS84 coordinates.
func (s Scenario) Validate() error {
	if len(s.Vehicles) == 0 {
		return fmt.Errorf("no vehicles")
	}
	if len(s.Hospitals) == 0 {
		return fmt.Errorf("no hospitals")
	}
	if err := validate.Struct(s); err != nil {
		return err
	}
	if !s.Area.IsZero() {
		if err := s.Area.Validate(); err != nil {
			return fmt.Errorf("area: %w", err)
		}
	}
	return nil
}

// Resize returns n vehicle specs. Extra vehicles reuse the bases in order and
// get default identifiers; n <= 0 keeps the scenario as is.
func (s Scenario) Resize(n int) []model.VehicleSpec {
	if n <= 0 || n == len(s.Vehicles) {
		return append([]model.VehicleSpec(nil), s.Vehicles...)
	}
	if n < len(s.Vehicles) {
		return append([]model.VehicleSpec(nil), s.Vehicles[:n]...)
	}
	out := append([]model.VehicleSpec(nil), s.Vehicles...)
	for i := len(s.Vehicles); i < n; i++ {
		out = append(out, model.VehicleSpec{ID: VehicleID(i + 1), Base: s.Vehicles[i%len(s.Vehicles)].Base})
	}
	return out
}
