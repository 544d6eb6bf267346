package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Package is a remote or local tabular datapackage descriptor.
type Package struct {
	Location  string            `json:"-"`
	Name      string            `json:"name"`
	Resources []PackageResource `json:"resources"`

	client *http.Client
}

// PackageResource is one resource entry of a descriptor. Data holds inline
// rows; otherwise Path points at a CSV file relative to the descriptor.
type PackageResource struct {
	Name string          `json:"name"`
	Path string          `json:"path"`
	Data json.RawMessage `json:"data,omitempty"`
}

// OpenPackage reads the descriptor at location, an http(s) URL or a file path.
func OpenPackage(ctx context.Context, client *http.Client, location string) (*Package, error) {
	if client == nil {
		client = http.DefaultClient
	}
	data, err := fetch(ctx, client, location)
	if err != nil {
		return nil, err
	}
	p := &Package{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("decode datapackage %s: %w", location, err)
	}
	p.Location = location
	p.client = client
	return p, nil
}

// Resource reads the named resource into a table.
func (p *Package) Resource(ctx context.Context, name string) (*Table, error) {
	for _, r := range p.Resources {
		if r.Name != name {
			continue
		}
		if len(r.Data) > 0 {
			return inlineTable(name, r.Data)
		}
		loc, err := p.resolve(r.Path)
		if err != nil {
			return nil, err
		}
		data, err := fetch(ctx, p.client, loc)
		if err != nil {
			return nil, err
		}
		return DecodeCSV(bytes.NewReader(data), name, CSVOptions{})
	}
	return nil, fmt.Errorf("datapackage %s has no resource %q", p.Location, name)
}

func (p *Package) resolve(path string) (string, error) {
	if isRemote(path) {
		return path, nil
	}
	if isRemote(p.Location) {
		base, err := url.Parse(p.Location)
		if err != nil {
			return "", err
		}
		ref, err := url.Parse(path)
		if err != nil {
			return "", err
		}
		return base.ResolveReference(ref).String(), nil
	}
	return filepath.Join(filepath.Dir(p.Location), filepath.FromSlash(path)), nil
}

func isRemote(loc string) bool {
	return strings.HasPrefix(loc, "http://") || strings.HasPrefix(loc, "https://")
}

func fetch(ctx context.Context, client *http.Client, loc string) ([]byte, error) {
	if !isRemote(loc) {
		data, err := os.ReadFile(loc)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &MissingRawDataError{Name: filepath.Base(loc), Path: loc, Err: err}
		}
		return data, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &MissingRawDataError{Name: loc, Path: loc, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &MissingRawDataError{Name: loc, Path: loc, Err: errors.New(resp.Status)}
	}
	return io.ReadAll(resp.Body)
}

// inlineTable accepts inline data as a list of objects or as a list of rows
// whose first row is the header.
func inlineTable(name string, raw json.RawMessage) (*Table, error) {
	var objects []map[string]interface{}
	if err := json.Unmarshal(raw, &objects); err == nil {
		keys := map[string]bool{}
		for _, o := range objects {
			for k := range o {
				keys[k] = true
			}
		}
		cols := make([]string, 0, len(keys))
		for k := range keys {
			cols = append(cols, k)
		}
		sort.Strings(cols)
		t := &Table{Name: name, Columns: cols}
		for _, o := range objects {
			row := make([]string, len(cols))
			for i, c := range cols {
				row[i] = scalar(o[c])
			}
			t.Rows = append(t.Rows, row)
		}
		return t, nil
	}
	var rows [][]interface{}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("resource %s: inline data is neither objects nor rows", name)
	}
	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = make([]string, len(r))
		for j, v := range r {
			records[i][j] = scalar(v)
		}
	}
	return NewTable(name, records), nil
}

func scalar(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}
