// Package model defines core data structures for gridpulse.
package model

import (
	"fmt"
	"math"
	"time"
)

// ConnectionStatus is the lifecycle state of a master session to one outstation.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "DISCONNECTED"
	StatusConnecting   ConnectionStatus = "CONNECTING"
	StatusConnected    ConnectionStatus = "CONNECTED"
	StatusError        ConnectionStatus = "ERROR"
)

// Outstation identifies one remote terminal unit. Created at configuration
// load and never mutated afterwards.
type Outstation struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Address int    `json:"address"`
}

// Addr returns the host:port dial target for the outstation.
func (o Outstation) Addr() string {
	return fmt.Sprintf("%s:%d", o.Host, o.Port)
}

// Sample holds one set of raw electrical readings from an outstation.
type Sample struct {
	Timestamp   time.Time `json:"timestamp"`
	Voltage     float64   `json:"voltage"`
	Current     float64   `json:"current"`
	Frequency   float64   `json:"frequency"`
	Temperature float64   `json:"temperature"`
}

// Derived holds power metrics computed from a raw sample.
type Derived struct {
	RealPowerKW       float64 `json:"real_power_kw"`
	ReactivePowerKVAR float64 `json:"reactive_power_kvar"`
	ApparentPowerKVA  float64 `json:"apparent_power_kva"`
	PowerFactor       float64 `json:"power_factor"`
	LoadPercentage    float64 `json:"load_percentage"`
}

// Measurement is a sample together with its derived metrics, as stored and
// as published to the persistence collaborator.
type Measurement struct {
	OutstationID int `json:"outstation_id"`
	Sample
	Derived
}

// ComputeDerived calculates power metrics from raw readings:
//
//	real_power_kw       = voltage * current * power_factor / 1000
//	reactive_power_kvar = real_power_kw * tan(acos(power_factor))
//	apparent_power_kva  = sqrt(real² + reactive²)
//	load_percentage     = apparent / rated_capacity * 100, capped at 100
//
// The cap applies only to the reported load figure, never to the power values.
func ComputeDerived(s Sample, powerFactor, ratedCapacityKVA float64) Derived {
	realPower := s.Voltage * s.Current * powerFactor / 1000
	reactive := realPower * math.Tan(math.Acos(powerFactor))
	apparent := math.Sqrt(realPower*realPower + reactive*reactive)

	load := 0.0
	if ratedCapacityKVA > 0 {
		load = apparent / ratedCapacityKVA * 100
		if load > 100 {
			load = 100
		}
	}

	return Derived{
		RealPowerKW:       realPower,
		ReactivePowerKVAR: reactive,
		ApparentPowerKVA:  apparent,
		PowerFactor:       powerFactor,
		LoadPercentage:    load,
	}
}

// FieldStats holds min/max/avg over one numeric field of a history window.
type FieldStats struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

// Stats aggregates per-field statistics over an outstation's current history.
type Stats struct {
	Samples     int        `json:"samples"`
	Voltage     FieldStats `json:"voltage"`
	Current     FieldStats `json:"current"`
	Frequency   FieldStats `json:"frequency"`
	Temperature FieldStats `json:"temperature"`
	RealPowerKW FieldStats `json:"real_power_kw"`
}

// OutstationStatus is the per-outstation view exposed by the query interface.
// Latest stays populated with the last good measurement even when the session
// has degraded, so callers can tell "stale" from "never seen".
type OutstationStatus struct {
	Outstation
	ConnectionStatus ConnectionStatus `json:"connection_status"`
	LastUpdate       *time.Time       `json:"last_update,omitempty"`
	FailureCount     int              `json:"failure_count"`
	Latest           *Measurement     `json:"latest_measurement,omitempty"`
}

// SystemStatus is the aggregate snapshot returned by the status endpoint.
type SystemStatus struct {
	MasterID    int                      `json:"master_id"`
	Timestamp   time.Time                `json:"timestamp"`
	Outstations map[int]OutstationStatus `json:"outstations"`
}
