package normalize

import (
	"errors"
	"testing"

	"gotest.tools/v3/assert"
)

func TestCountry(t *testing.T) {
	assert.Equal(t, Country("UK"), "GB")
	assert.Equal(t, Country(" uk "), "GB")
	assert.Equal(t, Country("de"), "DE")
	assert.DeepEqual(t, Countries([]string{"UK", "FR"}), []string{"GB", "FR"})
}

func TestAlias(t *testing.T) {
	assert.DeepEqual(t, Alias("GB"), []string{"GB", "UK"})
	assert.DeepEqual(t, Alias("DE"), []string{"DE"})
}

func TestTechnology(t *testing.T) {
	m, err := Technology("Natural gas", "Combined cycle")
	assert.NilError(t, err)
	assert.Equal(t, m, Mapped{Carrier: "gas", Tech: "ccgt"})

	m, err = Technology("Other fuels", "Steam turbine")
	assert.NilError(t, err)
	assert.Equal(t, m, Mapped{Carrier: "waste", Tech: "chp"})
}

func TestTechnologyUnmapped(t *testing.T) {
	_, err := Technology("Hydro", "Run-of-river")
	var unmapped *UnmappedTechnologyError
	assert.Assert(t, errors.As(err, &unmapped))
	assert.Equal(t, unmapped.Fuel, "Hydro")
}

func TestComponentType(t *testing.T) {
	typ, ok := ComponentType("lithium_battery")
	assert.Assert(t, ok)
	assert.Equal(t, typ, Storage)

	_, ok = ComponentType("fusion")
	assert.Assert(t, !ok)
}

func TestCoastal(t *testing.T) {
	assert.Assert(t, Coastal("GB"))
	assert.Assert(t, !Coastal("AT"))
	assert.Assert(t, !Coastal("PL"))
}

func TestProfileSuffix(t *testing.T) {
	for tech, want := range map[string]string{
		"pv":            "pv-profile",
		"wind_onshore":  "wind-on-profile",
		"wind_offshore": "wind-off-profile",
		"wind-on":       "wind-on-profile",
	} {
		got, ok := ProfileSuffix(tech)
		assert.Assert(t, ok, tech)
		assert.Equal(t, got, want)
	}
}

func TestFallbacks(t *testing.T) {
	fb := NewFallbacks(DefaultRules(), []string{"inflow-dk-zero"}, nil)

	_, ok := fb.Lookup(HydroInflow, "DK")
	assert.Assert(t, !ok)

	r, ok := fb.Lookup(HydroInflow, "LU")
	assert.Assert(t, ok)
	assert.Equal(t, r.Source, "BE")
	assert.Assert(t, !r.Constant())

	var applied []string
	fb.OnApply(func(r Rule) { applied = append(applied, r.Name) })
	fb.Applied(r)
	assert.DeepEqual(t, applied, []string{"inflow-lu-from-be"})

	assert.Equal(t, len(fb.Family(HydroCapacity)), 1)
}
