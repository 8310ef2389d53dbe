// Package factory provides a small generic registry used to instantiate modules
// from configuration. Modules are defined by a type string and a map of raw
// settings. Factories decode the settings into typed structs and return the
// concrete implementation.
//
// Example usage:
//
//	reg := factory.NewRegistry[optimizer.Proposer]()
//	reg.Register("local_search", func(conf map[string]any) (optimizer.Proposer, error) {
//	    var c struct{ FlipProbability float64 `json:"flip_probability"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return optimizer.NewLocalSearchProposer(0, c.FlipProbability), nil
//	})
//	p, err := reg.Create(factory.ModuleConfig{Type: "local_search", Conf: map[string]any{"flip_probability": 0.1}})
package factory
