package metrics

import (
	"fmt"

	"github.com/savelife/rescue/core/factory"
	coremetrics "github.com/savelife/rescue/core/metrics"
)

// Sinks registers the available metric sink implementations by type name.
var Sinks = factory.NewRegistry[coremetrics.Sink]()

func init() {
	mustRegister("nop", func(map[string]any) (coremetrics.Sink, error) {
		return coremetrics.NopSink{}, nil
	})
	mustRegister("prom", func(map[string]any) (coremetrics.Sink, error) {
		return NewPromSink()
	})
	mustRegister("influx", func(conf map[string]any) (coremetrics.Sink, error) {
		var c InfluxConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewInfluxSinkWithFallback(c), nil
	})
}

func mustRegister(name string, f factory.Factory[coremetrics.Sink]) {
	if err := Sinks.Register(name, f); err != nil {
		panic(err)
	}
}

// BuildSinks instantiates every configured sink and combines them into one.
// An empty list yields nil, which the engine treats as metrics disabled.
func BuildSinks(cfgs []factory.ModuleConfig) (coremetrics.Sink, error) {
	var sinks []coremetrics.Sink
	for _, c := range cfgs {
		s, err := Sinks.Create(c)
		if err != nil {
			return nil, fmt.Errorf("sink %s: %w", c.Type, err)
		}
		sinks = append(sinks, s)
	}
	switch len(sinks) {
	case 0:
		return nil, nil
	case 1:
		return sinks[0], nil
	default:
		return NewMultiSink(sinks...), nil
	}
}
