// Package tools holds the built-in function tools: weather, calculator and
// random generation.
package tools

import (
	"github.com/inspirepan/chatcore/registry"
)

// Options configures the built-in tools.
type Options struct {
	Weather WeatherConfig
	Random  Source
}

// Definitions returns the built-in tool definitions in registration order.
func Definitions(opts Options) []registry.Definition {
	return []registry.Definition{
		NewWeather(opts.Weather).Definition(),
		CalculatorDefinition(),
		NewRandom(opts.Random).Definition(),
	}
}

// RegisterBuiltins registers every built-in tool with reg.
func RegisterBuiltins(reg *registry.Registry, opts Options) error {
	for _, def := range Definitions(opts) {
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	return nil
}
