// Package element is the data model of an assembled energy system dataset:
// buses, the component variants attached to them and the hourly profiles they
// reference.
package element

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Component types as the consuming solver layer knows them.
const (
	TypeBus          = "bus"
	TypeDispatchable = "dispatchable"
	TypeVolatile     = "volatile"
	TypeConversion   = "conversion"
	TypeStorage      = "storage"
	TypeLink         = "link"
	TypeLoad         = "load"
	TypeExcess       = "excess"
	TypeShortage     = "shortage"
	TypeReservoir    = "reservoir"
	TypeBackpressure = "backpressure"
	TypeExtraction   = "extraction"
)

// Carriers used by the builders.
const (
	Electricity = "electricity"
	Heat        = "heat"
	Biomass     = "biomass"
	Gas         = "gas"
	Hydro       = "hydro"
)

// Float is a numeric field that may be absent from a row.
type Float struct {
	Value float64
	Valid bool
}

// Some wraps a present value.
func Some(v float64) Float {
	return Float{Value: v, Valid: true}
}

// Unlimited is an infinite potential.
func Unlimited() Float {
	return Some(math.Inf(1))
}

// String renders the field for CSV output. Absent values render empty.
func (f Float) String() string {
	if !f.Valid {
		return ""
	}
	if math.IsInf(f.Value, 1) {
		return "Infinity"
	}
	if math.IsInf(f.Value, -1) {
		return "-Infinity"
	}
	return strconv.FormatFloat(f.Value, 'g', -1, 64)
}

// Positive reports whether the field is absent or strictly positive.
func (f Float) Positive() bool {
	return !f.Valid || f.Value > 0
}

// ParseFloat reads a rendered Float back.
func ParseFloat(s string) (Float, error) {
	switch s {
	case "":
		return Float{}, nil
	case "Infinity", "inf", "+inf":
		return Unlimited(), nil
	case "-Infinity", "-inf":
		return Some(math.Inf(-1)), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Float{}, err
	}
	return Some(v), nil
}

// Params is a JSON-encoded parameter object such as output_parameters.
type Params map[string]float64

// String encodes the parameters with sorted keys.
func (p Params) String() string {
	if len(p) == 0 {
		return ""
	}
	b, err := json.Marshal(map[string]float64(p))
	if err != nil {
		return ""
	}
	return string(b)
}

// Field is one column value of a row.
type Field struct {
	Key   string
	Value string
}

// Row is an ordered record. Empty values mark absent fields.
type Row []Field

// Get returns the value stored under key.
func (r Row) Get(key string) string {
	for _, f := range r {
		if f.Key == key {
			return f.Value
		}
	}
	return ""
}

type rowBuilder struct {
	row Row
}

func (b *rowBuilder) str(key, value string) *rowBuilder {
	b.row = append(b.row, Field{key, value})
	return b
}

func (b *rowBuilder) num(key string, value Float) *rowBuilder {
	b.row = append(b.row, Field{key, value.String()})
	return b
}

func (b *rowBuilder) params(key string, value Params) *rowBuilder {
	b.row = append(b.row, Field{key, value.String()})
	return b
}

// Port is a bus reference held by a component field. Carrier is the carrier the
// referenced bus must have; empty accepts any.
type Port struct {
	Field   string
	Bus     string
	Carrier string
}

// Identity is shared by every component.
type Identity struct {
	Name    string
	Carrier string
	Tech    string
}

// ID returns the component identity.
func (i Identity) ID() Identity {
	return i
}

// Component is the tagged union of everything attached to a bus.
type Component interface {
	ID() Identity
	// Type is the facade type the solver instantiates.
	Type() string
	// Resource is the element table the component is written to.
	Resource() string
	Ports() []Port
	// ProfileRef is the profile column the component references, if any.
	ProfileRef() string
	// Sizing returns capacity and capacity potential.
	Sizing() (capacity, potential Float)
	Row() Row
	Validate() error
}

// ValidationError reports a component that does not satisfy its schema.
type ValidationError struct {
	Name   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("component %q: %s", e.Name, e.Reason)
}

func requireFinite(name, field string, f Float) error {
	if f.Valid && (math.IsNaN(f.Value) || math.IsInf(f.Value, 0)) {
		return &ValidationError{name, field + " must be finite"}
	}
	return nil
}

func requireNonNegative(name, field string, f Float) error {
	if f.Valid && (math.IsNaN(f.Value) || f.Value < 0) {
		return &ValidationError{name, field + " must not be negative"}
	}
	return nil
}

func requireFraction(name, field string, f Float) error {
	if f.Valid && (math.IsNaN(f.Value) || f.Value < 0 || f.Value > 1) {
		return &ValidationError{name, field + " must be within [0, 1]"}
	}
	return nil
}

func validateCommon(c Component) error {
	id := c.ID()
	if id.Name == "" {
		return &ValidationError{"", "name is empty"}
	}
	for _, p := range c.Ports() {
		if p.Bus == "" {
			return &ValidationError{id.Name, p.Field + " is empty"}
		}
	}
	return nil
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
