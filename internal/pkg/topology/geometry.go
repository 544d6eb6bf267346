package topology

import (
	"errors"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/ohowland/fuchur_core/internal/pkg/element"
	"github.com/ohowland/fuchur_core/internal/pkg/normalize"
	"github.com/ohowland/fuchur_core/internal/pkg/source"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/simplify"
)

// Tolerance is the Douglas-Peucker threshold, in degrees, applied to region
// polygons.
const Tolerance = 0.1

// NUTS attribute names.
const (
	nutsID    = "NUTS_ID"
	nutsLevel = "STAT_LEVL_"
)

// CountryShapes returns the simplified level-0 polygon of every wanted region,
// keyed by canonical code.
func CountryShapes(shapes []source.Shape, regions []string) map[string]orb.Geometry {
	want := make(map[string]bool, len(regions))
	for _, r := range regions {
		want[r] = true
	}
	dp := simplify.DouglasPeucker(Tolerance)
	out := make(map[string]orb.Geometry)
	for _, s := range shapes {
		if lvl, ok := s.Attributes[nutsLevel]; ok && lvl != "0" {
			continue
		}
		code := normalize.Country(s.Attributes[nutsID])
		if !want[code] {
			continue
		}
		out[code] = dp.Simplify(s.Geometry.Clone())
	}
	return out
}

// LoadGeometries reads the NUTS shapefile at path. A missing file is not an
// error; the buses are written without geometry.
func LoadGeometries(path string, regions []string, logger log.Logger) (map[string]orb.Geometry, error) {
	shapes, err := source.ReadShapes(path)
	var missing *source.MissingRawDataError
	if errors.As(err, &missing) {
		level.Warn(logger).Log("msg", "shapefile missing, buses have no geometry", "path", path)
		return map[string]orb.Geometry{}, nil
	}
	if err != nil {
		return nil, err
	}
	return CountryShapes(shapes, regions), nil
}

// AttachGeometries clears the geometry reference of every electricity bus
// without a polygon and returns the bus geometries keyed by bus name.
func AttachGeometries(buses []element.Bus, byRegion map[string]orb.Geometry, logger log.Logger) map[string]orb.Geometry {
	out := make(map[string]orb.Geometry)
	for i, b := range buses {
		if b.Geometry == "" {
			continue
		}
		region := regionOf(b.Name)
		g, ok := byRegion[region]
		if !ok {
			level.Warn(logger).Log("msg", "no geometry for region", "region", region, "bus", b.Name)
			buses[i].Geometry = ""
			continue
		}
		out[b.Geometry] = g
	}
	return out
}

// FeatureCollection renders bus geometries as GeoJSON features carrying the
// bus name, ordered like buses.
func FeatureCollection(buses []element.Bus, geometries map[string]orb.Geometry) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, b := range buses {
		g, ok := geometries[b.Geometry]
		if !ok {
			continue
		}
		f := geojson.NewFeature(g)
		f.Properties["name"] = b.Geometry
		fc.Append(f)
	}
	return fc
}

func regionOf(bus string) string {
	for i := 0; i < len(bus); i++ {
		if bus[i] == '-' {
			return bus[:i]
		}
	}
	return bus
}
