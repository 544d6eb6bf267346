package objectstore

import (
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
)

func TestReadConfig(t *testing.T) {
	p := filepath.Join(t.TempDir(), "s3.json")
	assert.NilError(t, os.WriteFile(p, []byte(`{"Endpoint": "localhost:9000", "Bucket": "datasets", "Prefix": "/base/"}`), 0o644))
	cfg, err := ReadConfig(p)
	assert.NilError(t, err)
	assert.Equal(t, cfg.Bucket, "datasets")
	assert.Assert(t, !cfg.Secure)

	assert.NilError(t, os.WriteFile(p, []byte(`{"Endpoint": "localhost:9000"}`), 0o644))
	_, err = ReadConfig(p)
	assert.ErrorContains(t, err, "Bucket")
}

func TestKeys(t *testing.T) {
	assert.Equal(t, Key("", "datapackage.json"), "datapackage.json")
	assert.Equal(t, Key("base", "data/elements/bus.csv"), "base/data/elements/bus.csv")
	assert.Equal(t, Path("base", "base/data/elements/bus.csv"), "data/elements/bus.csv")
	assert.Equal(t, Path("", "data/elements/bus.csv"), "data/elements/bus.csv")
}

func TestContentType(t *testing.T) {
	assert.Equal(t, ContentType("data/elements/bus.csv"), "text/csv")
	assert.Equal(t, ContentType("data/geometries/bus.geojson"), "application/geo+json")
	assert.Equal(t, ContentType("datapackage.json"), "application/json")
	assert.Equal(t, ContentType("blob"), "application/octet-stream")
}
