// Package factory provides a small generic registry used to instantiate modules
// from configuration. Modules are defined by a type string and a map of raw
// settings. Factories decode the settings into typed structs and return the
// concrete implementation.
//
// Example usage:
//
//	reg := factory.NewRegistry[solver.Scorer]()
//	reg.Register("category_affinity", func(conf map[string]any) (solver.Scorer, error) {
//	    var c struct{ Penalty float64 `json:"penalty"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return solver.CategoryAffinity{Penalty: c.Penalty}, nil
//	})
//	s, err := reg.Create(factory.ModuleConfig{Type: "category_affinity", Conf: map[string]any{"penalty": 0.5}})
package factory
