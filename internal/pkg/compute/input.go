package compute

import (
	"context"
	"strings"

	"github.com/ohowland/fuchur_core/internal/pkg/datapackage"
)

// Copy transfers the descriptor and every data file from src to dst.
func Copy(ctx context.Context, src, dst datapackage.Store) error {
	paths, err := src.List(ctx, "data")
	if err != nil {
		return err
	}
	for _, p := range append([]string{datapackage.Descriptor}, paths...) {
		data, err := src.Get(ctx, p)
		if err != nil {
			return err
		}
		if err := dst.Put(ctx, p, data); err != nil {
			return err
		}
	}
	return nil
}

// TemporalSkip copies src to dst keeping only every n-th hour of each
// sequence. The descriptor records n as the temporal resolution.
func TemporalSkip(ctx context.Context, src, dst datapackage.Store, n int) error {
	if err := Copy(ctx, src, dst); err != nil {
		return err
	}
	pkg, err := datapackage.ReadDescriptor(ctx, src)
	if err != nil {
		return err
	}
	for _, r := range pkg.Resources {
		if !strings.HasPrefix(r.Path, datapackage.SequencesDir+"/") {
			continue
		}
		t, err := datapackage.ReadTable(ctx, src, r.Path)
		if err != nil {
			return err
		}
		if err := datapackage.WriteTable(ctx, dst, r.Path, Skip(t, n)); err != nil {
			return err
		}
	}
	pkg.TemporalResolution = n
	return datapackage.WriteDescriptor(ctx, dst, pkg)
}

// Skip keeps rows 0, n, 2n and so on.
func Skip(t *datapackage.Table, n int) *datapackage.Table {
	out := &datapackage.Table{Columns: t.Columns}
	for i := 0; i < len(t.Rows); i += n {
		out.Rows = append(out.Rows, t.Rows[i])
	}
	return out
}
