package model

// Hospital is static reference data loaded at startup.
type Hospital struct {
	ID       string     `json:"id" yaml:"id" validate:"required"`
	Name     string     `json:"name,omitempty" yaml:"name,omitempty"`
	Location Coordinate `json:"location" yaml:"location"`
}
