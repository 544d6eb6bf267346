package datapackage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// Package is the datapackage.json descriptor.
type Package struct {
	Name               string     `json:"name"`
	Profile            string     `json:"profile"`
	ID                 string     `json:"id,omitempty"`
	TemporalResolution int        `json:"temporal_resolution,omitempty"`
	Resources          []Resource `json:"resources"`
}

// Resource describes one table of the package.
type Resource struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Profile string `json:"profile"`
	Schema  Schema `json:"schema"`
}

// Schema describes the fields and keys of a resource.
type Schema struct {
	Fields      []Field      `json:"fields"`
	PrimaryKey  string       `json:"primaryKey,omitempty"`
	ForeignKeys []ForeignKey `json:"foreignKeys,omitempty"`
}

// Field is one schema column.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ForeignKey links a field to the primary key of another resource.
type ForeignKey struct {
	Fields    string    `json:"fields"`
	Reference Reference `json:"reference"`
}

// Reference is the target of a foreign key.
type Reference struct {
	Resource string `json:"resource"`
	Fields   string `json:"fields,omitempty"`
}

// Resource looks a resource up by name.
func (p *Package) Resource(name string) (Resource, bool) {
	for _, r := range p.Resources {
		if r.Name == name {
			return r, true
		}
	}
	return Resource{}, false
}

// InferFields types each column of t from its values.
func InferFields(t *Table) []Field {
	fields := make([]Field, len(t.Columns))
	for c, name := range t.Columns {
		fields[c] = Field{Name: name, Type: inferType(t, c)}
	}
	return fields
}

func inferType(t *Table, c int) string {
	if t.Columns[c] == "timeindex" {
		return "datetime"
	}
	number, boolean, seen := true, true, false
	for _, row := range t.Rows {
		if c >= len(row) || row[c] == "" {
			continue
		}
		seen = true
		v := row[c]
		if v != "true" && v != "false" {
			boolean = false
		}
		if v != "Infinity" && v != "-Infinity" {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				number = false
			}
		}
	}
	switch {
	case !seen:
		return "string"
	case boolean:
		return "boolean"
	case number:
		return "number"
	}
	return "string"
}

// WriteDescriptor stores p as indented JSON.
func WriteDescriptor(ctx context.Context, s Store, p *Package) error {
	data, err := json.MarshalIndent(p, "", "    ")
	if err != nil {
		return err
	}
	return s.Put(ctx, Descriptor, append(data, '\n'))
}

// ReadDescriptor loads the descriptor of the package held by s.
func ReadDescriptor(ctx context.Context, s Store) (*Package, error) {
	data, err := s.Get(ctx, Descriptor)
	if err != nil {
		return nil, err
	}
	p := &Package{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("decode %s: %w", Descriptor, err)
	}
	return p, nil
}
