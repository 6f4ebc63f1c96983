package ray_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/astrogo/fitsio"

	"misty/internal/fitsfile"
	"misty/internal/ray"
)

func TestWriteLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ray_1000.fits")
	want := []float64{0.0101, 0.0100, 0.0099}
	if err := ray.Write(path, want); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	r, err := ray.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if r.Basename() != "ray_1000.fits" {
		t.Fatalf("unexpected basename %q", r.Basename())
	}
	if r.Path() != path {
		t.Fatalf("unexpected path %q", r.Path())
	}
	if r.Len() != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), r.Len())
	}
	for i, z := range r.Redshifts() {
		if z != want[i] {
			t.Fatalf("sample %d: got %v want %v", i, z, want[i])
		}
	}
}

func writeTables(t *testing.T, path string, tables ...*fitsio.Table) {
	t.Helper()

	primary, err := fitsfile.NewPrimary(nil)
	if err != nil {
		t.Fatalf("NewPrimary: %v", err)
	}
	hdus := []fitsio.HDU{primary}
	for _, tbl := range tables {
		hdus = append(hdus, tbl)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := fitsfile.Encode(f, hdus); err != nil {
		t.Fatalf("Encode: %v", err)
	}
}

func TestLoadSkipsTablesWithoutRedshift(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ray.fits")
	other, err := fitsio.NewTable("FIELDS", []fitsio.Column{
		{Name: "density", Format: "E", Bscale: 1},
	}, fitsio.BINARY_TBL)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	for _, v := range []float32{1, 2} {
		if err := other.Write(&v); err != nil {
			t.Fatalf("write density: %v", err)
		}
	}
	rays, err := fitsio.NewTable("RAY", []fitsio.Column{
		{Name: "dl", Format: "D", Bscale: 1},
		{Name: ray.RedshiftColumn, Format: "E", Bscale: 1},
	}, fitsio.BINARY_TBL)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	for _, z := range []float32{0.5, 0.25} {
		dl := 1.0
		if err := rays.Write(&dl, &z); err != nil {
			t.Fatalf("write ray row: %v", err)
		}
	}
	writeTables(t, path, other, rays)

	r, err := ray.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got := r.Redshifts(); len(got) != 2 || got[0] != 0.5 || got[1] != 0.25 {
		t.Fatalf("unexpected redshifts %v", got)
	}
}

func TestWriteLoadHDF5(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ray_1000.h5")
	want := []float64{0.0101, 0.0100, 0.0099, 0.0098}
	if err := ray.Write(path, want); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	head, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !strings.HasPrefix(string(head), "\x89HDF") {
		t.Fatalf("expected an HDF5 signature, got %q", head[:8])
	}

	r, err := ray.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if r.Basename() != "ray_1000.h5" {
		t.Fatalf("unexpected basename %q", r.Basename())
	}
	if r.Len() != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), r.Len())
	}
	for i, z := range r.Redshifts() {
		if z != want[i] {
			t.Fatalf("sample %d: got %v want %v", i, z, want[i])
		}
	}
}

func TestWriteHDF5RequiresSamples(t *testing.T) {
	err := ray.Write(filepath.Join(t.TempDir(), "empty.h5"), nil)
	if !errors.Is(err, ray.ErrNoRedshift) {
		t.Fatalf("expected ErrNoRedshift, got %v", err)
	}
}

func TestLoadRejectsCorruptFITS(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ray.fits")
	if err := ray.Write(path, []float64{0.1, 0.2}); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	i := strings.Index(string(data), "NAXIS2  = ")
	if i < 0 {
		t.Fatal("NAXIS2 card not found")
	}
	copy(data[i+10:i+30], fmt.Sprintf("%20d", int64(1)<<61))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	if _, err := ray.Load(path); !errors.Is(err, fitsfile.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := ray.Load(filepath.Join(dir, "missing.fits")); err == nil {
		t.Fatal("expected error for missing file")
	}

	empty := filepath.Join(dir, "empty.fits")
	if err := ray.Write(empty, nil); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if _, err := ray.Load(empty); !errors.Is(err, ray.ErrNoRedshift) {
		t.Fatalf("expected ErrNoRedshift, got %v", err)
	}

	primaryOnly := filepath.Join(dir, "primary.fits")
	writeTables(t, primaryOnly)
	if _, err := ray.Load(primaryOnly); !errors.Is(err, ray.ErrNoRedshift) {
		t.Fatalf("expected ErrNoRedshift, got %v", err)
	}
}

func TestNewCopiesSamples(t *testing.T) {
	z := []float64{1, 2}
	r := ray.New("", z)
	z[0] = 9
	if r.Redshifts()[0] != 1 {
		t.Fatal("expected New to copy samples")
	}
	if r.Basename() != "" {
		t.Fatalf("expected empty basename, got %q", r.Basename())
	}
}
