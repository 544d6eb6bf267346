package source

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
)

// Shape is one polygon record of a shapefile with its attribute row.
type Shape struct {
	Attributes map[string]string
	Geometry   orb.MultiPolygon
}

// ReadShapes reads every polygon record of a shapefile. Non-polygon records
// are skipped.
func ReadShapes(path string) ([]Shape, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, &MissingRawDataError{Name: filepath.Base(path), Path: path, Err: err}
	}
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open shapefile %s: %w", path, err)
	}
	defer r.Close()

	fields := r.Fields()
	var out []Shape
	for r.Next() {
		n, s := r.Shape()
		poly, ok := s.(*shp.Polygon)
		if !ok {
			continue
		}
		attrs := make(map[string]string, len(fields))
		for k, f := range fields {
			attrs[f.String()] = strings.TrimSpace(r.ReadAttribute(n, k))
		}
		out = append(out, Shape{Attributes: attrs, Geometry: multiPolygon(poly)})
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("read shapefile %s: %w", path, err)
	}
	return out, nil
}

// multiPolygon groups the rings of a shapefile polygon. Outer rings are
// clockwise and open a new polygon; counter-clockwise rings are holes of the
// polygon before them.
func multiPolygon(p *shp.Polygon) orb.MultiPolygon {
	var mp orb.MultiPolygon
	for i := range p.Parts {
		start := int(p.Parts[i])
		end := len(p.Points)
		if i+1 < len(p.Parts) {
			end = int(p.Parts[i+1])
		}
		ring := make(orb.Ring, 0, end-start)
		for _, pt := range p.Points[start:end] {
			ring = append(ring, orb.Point{pt.X, pt.Y})
		}
		if len(ring) < 4 {
			continue
		}
		if ring.Orientation() == orb.CW || len(mp) == 0 {
			mp = append(mp, orb.Polygon{ring})
			continue
		}
		mp[len(mp)-1] = append(mp[len(mp)-1], ring)
	}
	return mp
}
