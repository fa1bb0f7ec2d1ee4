// Package factory provides a small generic registry used to instantiate modules
// from configuration. Modules are defined by a type string and a map of raw
// settings. Factories decode the settings into typed structs and return the
// concrete implementation.
//
// Example usage:
//
//	reg := factory.NewRegistry[routing.Client]()
//	reg.Register("osrm", func(conf map[string]any) (routing.Client, error) {
//	    var c struct {
//	        URL     string        `json:"url"`
//	        Timeout time.Duration `json:"timeout"`
//	    }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return NewOSRM(c.URL, c.Timeout), nil
//	})
//	c, err := reg.Create(factory.ModuleConfig{Type: "osrm", Conf: map[string]any{"url": "http://localhost:5000"}})
package factory
