package datapackage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Dataset directories relative to the package root.
const (
	ElementsDir   = "data/elements"
	SequencesDir  = "data/sequences"
	GeometriesDir = "data/geometries"
	Descriptor    = "datapackage.json"
)

// ErrNotFound is returned by Get for an absent path.
var ErrNotFound = errors.New("datapackage: path not found")

// Store reads and writes dataset files by slash-separated path.
type Store interface {
	Put(ctx context.Context, p string, data []byte) error
	Get(ctx context.Context, p string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	// Clean removes every dataset file the store holds.
	Clean(ctx context.Context) error
}

// Managed reports whether Clean removes p.
func Managed(p string) bool {
	return p == Descriptor || strings.HasPrefix(p, "data/") || strings.HasPrefix(p, "resources/")
}

// ElementPath is the path of an element table.
func ElementPath(resource string) string {
	return path.Join(ElementsDir, resource+".csv")
}

// SequencePath is the path of a sequence table.
func SequencePath(resource string) string {
	return path.Join(SequencesDir, resource+".csv")
}

// GeometryPath is the path of a geometry file.
func GeometryPath(name string) string {
	return path.Join(GeometriesDir, name)
}

// ResourceName strips directory and extension from a dataset path.
func ResourceName(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}

// DirStore keeps the dataset on the local filesystem below Root.
type DirStore struct {
	Root string
}

// NewDirStore returns a store rooted at dir.
func NewDirStore(dir string) *DirStore {
	return &DirStore{Root: dir}
}

func (s *DirStore) abs(p string) string {
	return filepath.Join(s.Root, filepath.FromSlash(p))
}

// Put writes data at p, creating directories as needed.
func (s *DirStore) Put(ctx context.Context, p string, data []byte) error {
	full := s.abs(p)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, data, 0o644)
}

// Get reads p.
func (s *DirStore) Get(ctx context.Context, p string) ([]byte, error) {
	data, err := os.ReadFile(s.abs(p))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	return data, err
}

// List returns every file path below prefix, sorted.
func (s *DirStore) List(ctx context.Context, prefix string) ([]string, error) {
	root := s.abs(prefix)
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.Root, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	sort.Strings(out)
	return out, err
}

// Clean removes the data and resources directories and the descriptor.
func (s *DirStore) Clean(ctx context.Context) error {
	for _, dir := range []string{"data", "resources"} {
		if err := os.RemoveAll(s.abs(dir)); err != nil {
			return err
		}
	}
	if err := os.Remove(s.abs(Descriptor)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Mirror writes to a primary store and replicates every write to replicas.
// Reads are served by the primary.
type Mirror struct {
	primary  Store
	replicas []Store
}

// NewMirror returns primary when there are no replicas.
func NewMirror(primary Store, replicas ...Store) Store {
	if len(replicas) == 0 {
		return primary
	}
	return &Mirror{primary: primary, replicas: replicas}
}

func (m *Mirror) Put(ctx context.Context, p string, data []byte) error {
	if err := m.primary.Put(ctx, p, data); err != nil {
		return err
	}
	for _, r := range m.replicas {
		if err := r.Put(ctx, p, data); err != nil {
			return fmt.Errorf("replicate %s: %w", p, err)
		}
	}
	return nil
}

func (m *Mirror) Get(ctx context.Context, p string) ([]byte, error) {
	return m.primary.Get(ctx, p)
}

func (m *Mirror) List(ctx context.Context, prefix string) ([]string, error) {
	return m.primary.List(ctx, prefix)
}

func (m *Mirror) Clean(ctx context.Context) error {
	if err := m.primary.Clean(ctx); err != nil {
		return err
	}
	for _, r := range m.replicas {
		if err := r.Clean(ctx); err != nil {
			return err
		}
	}
	return nil
}

// WriteTable encodes t as CSV at p.
func WriteTable(ctx context.Context, s Store, p string, t *Table) error {
	data, err := EncodeCSV(t)
	if err != nil {
		return err
	}
	return s.Put(ctx, p, data)
}

// ReadTable decodes the CSV table at p.
func ReadTable(ctx context.Context, s Store, p string) (*Table, error) {
	data, err := s.Get(ctx, p)
	if err != nil {
		return nil, err
	}
	return DecodeCSV(data)
}
