package element

// Bus is a commodity balance node.
type Bus struct {
	Name     string
	Carrier  string
	Balanced bool
	Geometry string
}

// Row renders the bus record.
func (b Bus) Row() Row {
	balanced := "false"
	if b.Balanced {
		balanced = "true"
	}
	return Row{
		{"name", b.Name},
		{"type", TypeBus},
		{"carrier", b.Carrier},
		{"geometry", b.Geometry},
		{"balanced", balanced},
	}
}

// Dispatchable is a controllable source.
type Dispatchable struct {
	Identity
	Bus               string
	Capacity          Float
	CapacityPotential Float
	CapacityCost      Float
	MarginalCost      Float
	Efficiency        Float
	Lifetime          Float
	OutputParameters  Params
}

func (d Dispatchable) Type() string     { return TypeDispatchable }
func (d Dispatchable) Resource() string { return TypeDispatchable }
func (d Dispatchable) ProfileRef() string {
	return ""
}

func (d Dispatchable) Ports() []Port {
	return []Port{{Field: "bus", Bus: d.Bus}}
}

func (d Dispatchable) Sizing() (Float, Float) {
	return d.Capacity, d.CapacityPotential
}

func (d Dispatchable) Row() Row {
	b := &rowBuilder{}
	b.str("name", d.Name).str("type", d.Type()).str("carrier", d.Carrier).str("tech", d.Tech).
		str("bus", d.Bus).
		num("capacity", d.Capacity).
		num("capacity_potential", d.CapacityPotential).
		num("capacity_cost", d.CapacityCost).
		num("marginal_cost", d.MarginalCost).
		num("efficiency", d.Efficiency).
		num("lifetime", d.Lifetime).
		params("output_parameters", d.OutputParameters)
	return b.row
}

func (d Dispatchable) Validate() error {
	return firstError(
		validateCommon(d),
		requireNonNegative(d.Name, "capacity", d.Capacity),
		requireNonNegative(d.Name, "capacity_potential", d.CapacityPotential),
		requireFinite(d.Name, "capacity_cost", d.CapacityCost),
		requireFinite(d.Name, "marginal_cost", d.MarginalCost),
	)
}

// Commodity is a fuel supply, written to its own table.
type Commodity struct {
	Dispatchable
}

func (c Commodity) Resource() string { return "commodity" }

// Volatile is a weather-driven source following a profile.
type Volatile struct {
	Identity
	Bus               string
	Capacity          Float
	CapacityPotential Float
	CapacityCost      Float
	Lifetime          Float
	Profile           string
}

func (v Volatile) Type() string       { return TypeVolatile }
func (v Volatile) Resource() string   { return TypeVolatile }
func (v Volatile) ProfileRef() string { return v.Profile }

func (v Volatile) Ports() []Port {
	return []Port{{Field: "bus", Bus: v.Bus}}
}

func (v Volatile) Sizing() (Float, Float) {
	return v.Capacity, v.CapacityPotential
}

func (v Volatile) Row() Row {
	b := &rowBuilder{}
	b.str("name", v.Name).str("type", v.Type()).str("carrier", v.Carrier).str("tech", v.Tech).
		str("bus", v.Bus).
		num("capacity", v.Capacity).
		num("capacity_potential", v.CapacityPotential).
		num("capacity_cost", v.CapacityCost).
		num("lifetime", v.Lifetime).
		str("profile", v.Profile)
	return b.row
}

func (v Volatile) Validate() error {
	if v.Profile == "" {
		return &ValidationError{v.Name, "profile is empty"}
	}
	return firstError(
		validateCommon(v),
		requireNonNegative(v.Name, "capacity", v.Capacity),
		requireNonNegative(v.Name, "capacity_potential", v.CapacityPotential),
		requireFinite(v.Name, "capacity_cost", v.CapacityCost),
	)
}

// RunOfRiver is hydro generation without storage, driven by river inflow.
type RunOfRiver struct {
	Volatile
}

func (r RunOfRiver) Resource() string { return "ror" }

// Conversion moves energy from one bus to another at an efficiency.
type Conversion struct {
	Identity
	FromBus           string
	ToBus             string
	Capacity          Float
	CapacityPotential Float
	CapacityCost      Float
	MarginalCost      Float
	CarrierCost       Float
	Efficiency        Float
	Lifetime          Float
}

func (c Conversion) Type() string       { return TypeConversion }
func (c Conversion) Resource() string   { return TypeConversion }
func (c Conversion) ProfileRef() string { return "" }

func (c Conversion) Ports() []Port {
	return []Port{
		{Field: "from_bus", Bus: c.FromBus, Carrier: c.Carrier},
		{Field: "to_bus", Bus: c.ToBus},
	}
}

func (c Conversion) Sizing() (Float, Float) {
	return c.Capacity, c.CapacityPotential
}

func (c Conversion) Row() Row {
	b := &rowBuilder{}
	b.str("name", c.Name).str("type", c.Type()).str("carrier", c.Carrier).str("tech", c.Tech).
		str("from_bus", c.FromBus).
		str("to_bus", c.ToBus).
		num("capacity", c.Capacity).
		num("capacity_potential", c.CapacityPotential).
		num("capacity_cost", c.CapacityCost).
		num("marginal_cost", c.MarginalCost).
		num("carrier_cost", c.CarrierCost).
		num("efficiency", c.Efficiency).
		num("lifetime", c.Lifetime)
	return b.row
}

func (c Conversion) Validate() error {
	return firstError(
		validateCommon(c),
		requireNonNegative(c.Name, "capacity", c.Capacity),
		requireFinite(c.Name, "capacity_cost", c.CapacityCost),
		requireFinite(c.Name, "marginal_cost", c.MarginalCost),
		requireNonNegative(c.Name, "efficiency", c.Efficiency),
	)
}

// Storage charges from and discharges to one bus.
type Storage struct {
	Identity
	Bus                 string
	Capacity            Float
	StorageCapacity     Float
	CapacityPotential   Float
	CapacityCost        Float
	StorageCapacityCost Float
	MarginalCost        Float
	Efficiency          Float
	Loss                Float
	CapacityRatio       Float
	Lifetime            Float
}

func (s Storage) Type() string       { return TypeStorage }
func (s Storage) Resource() string   { return TypeStorage }
func (s Storage) ProfileRef() string { return "" }

func (s Storage) Ports() []Port {
	return []Port{{Field: "bus", Bus: s.Bus}}
}

func (s Storage) Sizing() (Float, Float) {
	return s.Capacity, s.CapacityPotential
}

func (s Storage) Row() Row {
	b := &rowBuilder{}
	b.str("name", s.Name).str("type", s.Type()).str("carrier", s.Carrier).str("tech", s.Tech).
		str("bus", s.Bus).
		num("capacity", s.Capacity).
		num("storage_capacity", s.StorageCapacity).
		num("capacity_potential", s.CapacityPotential).
		num("capacity_cost", s.CapacityCost).
		num("storage_capacity_cost", s.StorageCapacityCost).
		num("marginal_cost", s.MarginalCost).
		num("efficiency", s.Efficiency).
		num("loss", s.Loss).
		num("capacity_ratio", s.CapacityRatio).
		num("lifetime", s.Lifetime)
	return b.row
}

func (s Storage) Validate() error {
	return firstError(
		validateCommon(s),
		requireNonNegative(s.Name, "capacity", s.Capacity),
		requireNonNegative(s.Name, "storage_capacity", s.StorageCapacity),
		requireFinite(s.Name, "capacity_cost", s.CapacityCost),
		requireFraction(s.Name, "efficiency", s.Efficiency),
		requireFraction(s.Name, "loss", s.Loss),
	)
}

// PumpedStorage is pumped hydro, written to its own table.
type PumpedStorage struct {
	Storage
}

func (p PumpedStorage) Resource() string { return "phs" }

// Reservoir is hydro storage filled by natural inflow.
type Reservoir struct {
	Identity
	Bus             string
	Capacity        Float
	StorageCapacity Float
	CapacityCost    Float
	Efficiency      Float
	Loss            Float
	Lifetime        Float
	Profile         string
}

func (r Reservoir) Type() string       { return TypeReservoir }
func (r Reservoir) Resource() string   { return TypeReservoir }
func (r Reservoir) ProfileRef() string { return r.Profile }

func (r Reservoir) Ports() []Port {
	return []Port{{Field: "bus", Bus: r.Bus}}
}

func (r Reservoir) Sizing() (Float, Float) {
	return r.Capacity, Float{}
}

func (r Reservoir) Row() Row {
	b := &rowBuilder{}
	b.str("name", r.Name).str("type", r.Type()).str("carrier", r.Carrier).str("tech", r.Tech).
		str("bus", r.Bus).
		num("capacity", r.Capacity).
		num("storage_capacity", r.StorageCapacity).
		num("capacity_cost", r.CapacityCost).
		num("efficiency", r.Efficiency).
		num("loss", r.Loss).
		num("lifetime", r.Lifetime).
		str("profile", r.Profile)
	return b.row
}

func (r Reservoir) Validate() error {
	if r.Profile == "" {
		return &ValidationError{r.Name, "profile is empty"}
	}
	return firstError(
		validateCommon(r),
		requireNonNegative(r.Name, "capacity", r.Capacity),
		requireNonNegative(r.Name, "storage_capacity", r.StorageCapacity),
		requireFraction(r.Name, "efficiency", r.Efficiency),
	)
}

// Link is a lossy transshipment edge between two electricity buses.
type Link struct {
	Identity
	FromBus  string
	ToBus    string
	Capacity Float
	Loss     Float
	Length   Float
}

func (l Link) Type() string       { return TypeLink }
func (l Link) Resource() string   { return TypeLink }
func (l Link) ProfileRef() string { return "" }

func (l Link) Ports() []Port {
	return []Port{
		{Field: "from_bus", Bus: l.FromBus, Carrier: Electricity},
		{Field: "to_bus", Bus: l.ToBus, Carrier: Electricity},
	}
}

func (l Link) Sizing() (Float, Float) {
	return l.Capacity, Float{}
}

func (l Link) Row() Row {
	b := &rowBuilder{}
	b.str("name", l.Name).str("type", l.Type()).str("carrier", l.Carrier).str("tech", l.Tech).
		str("from_bus", l.FromBus).
		str("to_bus", l.ToBus).
		num("capacity", l.Capacity).
		num("loss", l.Loss).
		num("length", l.Length)
	return b.row
}

func (l Link) Validate() error {
	if l.FromBus == l.ToBus {
		return &ValidationError{l.Name, "link connects a bus to itself"}
	}
	return firstError(
		validateCommon(l),
		requireNonNegative(l.Name, "capacity", l.Capacity),
		requireFraction(l.Name, "loss", l.Loss),
	)
}

// Load is a fixed demand scaled from a unit-sum profile by Amount.
type Load struct {
	Identity
	Bus     string
	Amount  Float
	Profile string
}

func (l Load) Type() string       { return TypeLoad }
// Resource puts heat demand in its own table so its profiles reference the
// heat load sequences.
func (l Load) Resource() string {
	if l.Carrier == Heat {
		return "heat_" + TypeLoad
	}
	return TypeLoad
}

func (l Load) ProfileRef() string { return l.Profile }

func (l Load) Ports() []Port {
	return []Port{{Field: "bus", Bus: l.Bus, Carrier: l.Carrier}}
}

func (l Load) Sizing() (Float, Float) {
	return Float{}, Float{}
}

func (l Load) Row() Row {
	b := &rowBuilder{}
	b.str("name", l.Name).str("type", l.Type()).str("carrier", l.Carrier).str("tech", l.Tech).
		str("bus", l.Bus).
		num("amount", l.Amount).
		str("profile", l.Profile)
	return b.row
}

func (l Load) Validate() error {
	if l.Profile == "" {
		return &ValidationError{l.Name, "profile is empty"}
	}
	return firstError(
		validateCommon(l),
		requireNonNegative(l.Name, "amount", l.Amount),
	)
}

// Excess is an unbounded sink keeping a bus balance feasible.
type Excess struct {
	Identity
	Bus          string
	MarginalCost Float
}

func (e Excess) Type() string       { return TypeExcess }
func (e Excess) Resource() string   { return TypeExcess }
func (e Excess) ProfileRef() string { return "" }

func (e Excess) Ports() []Port {
	return []Port{{Field: "bus", Bus: e.Bus, Carrier: Electricity}}
}

func (e Excess) Sizing() (Float, Float) {
	return Float{}, Float{}
}

func (e Excess) Row() Row {
	return Row{
		{"name", e.Name},
		{"type", e.Type()},
		{"bus", e.Bus},
		{"marginal_cost", e.MarginalCost.String()},
	}
}

func (e Excess) Validate() error {
	return firstError(validateCommon(e), requireFinite(e.Name, "marginal_cost", e.MarginalCost))
}

// Shortage is an expensive source keeping a bus balance feasible.
type Shortage struct {
	Identity
	Bus          string
	Capacity     Float
	MarginalCost Float
}

func (s Shortage) Type() string       { return TypeShortage }
func (s Shortage) Resource() string   { return TypeShortage }
func (s Shortage) ProfileRef() string { return "" }

func (s Shortage) Ports() []Port {
	return []Port{{Field: "bus", Bus: s.Bus, Carrier: Electricity}}
}

func (s Shortage) Sizing() (Float, Float) {
	return s.Capacity, Float{}
}

func (s Shortage) Row() Row {
	return Row{
		{"name", s.Name},
		{"type", s.Type()},
		{"bus", s.Bus},
		{"capacity", s.Capacity.String()},
		{"marginal_cost", s.MarginalCost.String()},
	}
}

func (s Shortage) Validate() error {
	return firstError(validateCommon(s), requireFinite(s.Name, "marginal_cost", s.MarginalCost))
}

// Backpressure is a combined heat and power unit with a fixed power-to-heat ratio.
type Backpressure struct {
	Identity
	FuelBus            string
	ElectricityBus     string
	HeatBus            string
	CarrierCost        Float
	ThermalEfficiency  Float
	ElectricEfficiency Float
	CapacityPotential  Float
	CapacityCost       Float
	Lifetime           Float
	InputParameters    Params
}

func (c Backpressure) Type() string       { return TypeBackpressure }
func (c Backpressure) Resource() string   { return TypeBackpressure }
func (c Backpressure) ProfileRef() string { return "" }

func (c Backpressure) Ports() []Port {
	return []Port{
		{Field: "fuel_bus", Bus: c.FuelBus, Carrier: c.Carrier},
		{Field: "electricity_bus", Bus: c.ElectricityBus, Carrier: Electricity},
		{Field: "heat_bus", Bus: c.HeatBus, Carrier: Heat},
	}
}

func (c Backpressure) Sizing() (Float, Float) {
	return Float{}, c.CapacityPotential
}

func (c Backpressure) Row() Row {
	b := &rowBuilder{}
	b.str("name", c.Name).str("type", c.Type()).str("carrier", c.Carrier).str("tech", c.Tech).
		str("fuel_bus", c.FuelBus).
		str("electricity_bus", c.ElectricityBus).
		str("heat_bus", c.HeatBus).
		num("carrier_cost", c.CarrierCost).
		num("thermal_efficiency", c.ThermalEfficiency).
		num("electric_efficiency", c.ElectricEfficiency).
		num("capacity_potential", c.CapacityPotential).
		num("capacity_cost", c.CapacityCost).
		num("lifetime", c.Lifetime).
		params("input_parameters", c.InputParameters)
	return b.row
}

func (c Backpressure) Validate() error {
	return firstError(
		validateCommon(c),
		requireFraction(c.Name, "thermal_efficiency", c.ThermalEfficiency),
		requireFraction(c.Name, "electric_efficiency", c.ElectricEfficiency),
		requireFinite(c.Name, "capacity_cost", c.CapacityCost),
	)
}

// Extraction is a combined heat and power unit able to run in condensing mode.
type Extraction struct {
	Backpressure
	CondensingEfficiency Float
}

func (c Extraction) Type() string     { return TypeExtraction }
func (c Extraction) Resource() string { return TypeExtraction }

func (c Extraction) Row() Row {
	row := c.Backpressure.Row()
	row[1].Value = c.Type()
	return append(row, Field{"condensing_efficiency", c.CondensingEfficiency.String()})
}

func (c Extraction) Validate() error {
	return firstError(
		c.Backpressure.Validate(),
		requireFraction(c.Name, "condensing_efficiency", c.CondensingEfficiency),
	)
}
