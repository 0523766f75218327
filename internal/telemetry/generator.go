// Package telemetry simulates transformer electrical readings with a bounded
// random walk per quantity.
package telemetry

import (
	"math/rand"
	"time"

	"github.com/user/gridpulse/internal/model"
)

// Params bounds the walk for each electrical quantity. SigmaPct is the step
// deviation as a percentage of each range; the frequency walk uses half of it
// to stay well inside the narrow grid band.
type Params struct {
	VoltageMin, VoltageMax         float64
	CurrentMin, CurrentMax         float64
	FrequencyMin, FrequencyMax     float64
	TemperatureMin, TemperatureMax float64
	SigmaPct                       float64
}

// DefaultSigmaPct is the walk step deviation used when none is configured.
const DefaultSigmaPct = 0.5

// Generator produces successive samples. It is not safe for concurrent use;
// each outstation owns one generator driven from its refresh loop.
type Generator struct {
	rng         *rand.Rand
	voltage     walk
	current     walk
	frequency   walk
	temperature walk
}

// New creates a generator seeded from rng. Initial values are drawn uniformly
// within each range, so two RTUs started together do not track each other.
// The random source is injected so tests can fix the seed.
func New(p Params, rng *rand.Rand) *Generator {
	sigmaPct := p.SigmaPct
	if sigmaPct <= 0 {
		sigmaPct = DefaultSigmaPct
	}

	return &Generator{
		rng:         rng,
		voltage:     newWalk(rng, p.VoltageMin, p.VoltageMax, sigmaPct),
		current:     newWalk(rng, p.CurrentMin, p.CurrentMax, sigmaPct),
		frequency:   newWalk(rng, p.FrequencyMin, p.FrequencyMax, sigmaPct/2),
		temperature: newWalk(rng, p.TemperatureMin, p.TemperatureMax, sigmaPct),
	}
}

// Next advances every walk one step and returns the resulting sample.
func (g *Generator) Next() model.Sample {
	return model.Sample{
		Timestamp:   time.Now(),
		Voltage:     g.voltage.step(g.rng),
		Current:     g.current.step(g.rng),
		Frequency:   g.frequency.step(g.rng),
		Temperature: g.temperature.step(g.rng),
	}
}

// walk is one bounded random walk. Out-of-range steps are reflected back
// inside the band instead of truncated, so the value never pins at a bound.
type walk struct {
	value float64
	min   float64
	max   float64
	sigma float64
}

func newWalk(rng *rand.Rand, min, max, sigmaPct float64) walk {
	return walk{
		value: min + rng.Float64()*(max-min),
		min:   min,
		max:   max,
		sigma: (max - min) * sigmaPct / 100,
	}
}

func (w *walk) step(rng *rand.Rand) float64 {
	v := w.value + rng.NormFloat64()*w.sigma

	// A single reflection suffices for any plausible sigma; the loop is
	// bounded in case of a misconfigured step larger than the range itself.
	for i := 0; i < 8 && (v < w.min || v > w.max); i++ {
		if v > w.max {
			v = 2*w.max - v
		}
		if v < w.min {
			v = 2*w.min - v
		}
	}
	if v > w.max {
		v = w.max
	}
	if v < w.min {
		v = w.min
	}

	w.value = v
	return v
}
