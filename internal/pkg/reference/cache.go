package reference

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ctessum/requestcache"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/ohowland/fuchur_core/internal/pkg/source"
)

// Default reference datapackage locations.
const (
	TechnologyCostURL      = "https://raw.githubusercontent.com/ZNES-datapackages/technology-cost/master/datapackage.json"
	TechnologyPotentialURL = "https://raw.githubusercontent.com/ZNES-datapackages/technology-potential/master/datapackage.json"
)

// Technology resources of the technology-cost package.
const (
	Electricity   = "electricity"
	DecentralHeat = "decentral_heat"
	CentralHeat   = "central_heat"
)

// Locations points at the reference datapackages. Each may be a URL or a
// local descriptor path.
type Locations struct {
	TechnologyCost      string `json:"technology_cost" toml:"technology_cost" yaml:"technology_cost"`
	TechnologyPotential string `json:"technology_potential" toml:"technology_potential" yaml:"technology_potential"`
}

// DefaultLocations returns the public reference packages.
func DefaultLocations() Locations {
	return Locations{TechnologyCost: TechnologyCostURL, TechnologyPotential: TechnologyPotentialURL}
}

// Cache is a per-run read-through cache of reference resources. Concurrent
// requests for the same resource are fetched once.
type Cache struct {
	locations Locations
	client    *http.Client
	cache     *requestcache.Cache
	logger    log.Logger
}

type request struct {
	location string
	resource string
}

// NewCache returns an empty cache over locations.
func NewCache(locations Locations, client *http.Client, logger log.Logger) *Cache {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	c := &Cache{locations: locations, client: client, logger: logger}
	c.cache = requestcache.NewCache(c.load, 1, requestcache.Deduplicate(), requestcache.Memory(32))
	return c
}

func (c *Cache) load(ctx context.Context, req interface{}) (interface{}, error) {
	r := req.(request)
	if r.resource == "" {
		level.Debug(c.logger).Log("msg", "fetching reference descriptor", "location", r.location)
		return source.OpenPackage(ctx, c.client, r.location)
	}
	pkg, err := c.descriptor(ctx, r.location)
	if err != nil {
		return nil, err
	}
	level.Debug(c.logger).Log("msg", "fetching reference resource", "location", r.location, "resource", r.resource)
	return pkg.Resource(ctx, r.resource)
}

func (c *Cache) descriptor(ctx context.Context, location string) (*source.Package, error) {
	res, err := c.cache.NewRequest(ctx, request{location: location}, location).Result()
	if err != nil {
		return nil, err
	}
	return res.(*source.Package), nil
}

// Table returns one resource of the package at location. The returned table
// is shared and must not be modified.
func (c *Cache) Table(ctx context.Context, location, resource string) (*source.Table, error) {
	res, err := c.cache.NewRequest(ctx, request{location, resource}, location+"#"+resource).Result()
	if err != nil {
		return nil, fmt.Errorf("reference %s of %s: %w", resource, location, err)
	}
	return res.(*source.Table), nil
}

// Technologies returns a technology table of the technology-cost package.
func (c *Cache) Technologies(ctx context.Context, resource string) (*Technologies, error) {
	t, err := c.Table(ctx, c.locations.TechnologyCost, resource)
	if err != nil {
		return nil, err
	}
	return NewTechnologies(t)
}

// Carriers returns the carrier table of the technology-cost package.
func (c *Cache) Carriers(ctx context.Context) (*Carriers, error) {
	t, err := c.Table(ctx, c.locations.TechnologyCost, "carrier")
	if err != nil {
		return nil, err
	}
	return NewCarriers(t)
}

// Potentials returns the renewable and carrier potentials of the
// technology-potential package.
func (c *Cache) Potentials(ctx context.Context) (*Potentials, error) {
	renewable, err := c.Table(ctx, c.locations.TechnologyPotential, "renewable")
	if err != nil {
		return nil, err
	}
	carrier, err := c.Table(ctx, c.locations.TechnologyPotential, "carrier")
	if err != nil {
		return nil, err
	}
	return NewPotentials(renewable, carrier)
}
