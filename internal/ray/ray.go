package ray

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/astrogo/fitsio"
	"github.com/scigolib/hdf5"

	"misty/internal/fitsfile"
)

// RedshiftColumn names the column or dataset holding per-sample effective
// redshift.
const RedshiftColumn = "redshift_eff"

// RedshiftDataset is where HDF5 rays keep their redshift samples.
const RedshiftDataset = "/grid/" + RedshiftColumn

var hdf5Signature = []byte("\x89HDF\r\n\x1a\n")

// ErrNoRedshift reports a ray file without a usable redshift column.
var ErrNoRedshift = errors.New("ray has no redshift_eff samples")

// Ray is a loaded sightline.
type Ray struct {
	path      string
	redshifts []float64
}

// New builds a ray from explicit samples. path may be empty for rays that
// never existed on disk.
func New(path string, redshifts []float64) *Ray {
	return &Ray{path: path, redshifts: append([]float64(nil), redshifts...)}
}

// Load reads the redshift samples of the ray file at path. HDF5 files are
// searched for a redshift_eff dataset, preferring /grid/redshift_eff; any
// other file is read as FITS and the first binary table carrying a
// redshift_eff column is used.
func Load(path string) (*Ray, error) {
	isHDF5, err := sniffHDF5(path)
	if err != nil {
		return nil, fmt.Errorf("open ray: %w", err)
	}
	var z []float64
	if isHDF5 {
		z, err = loadHDF5(path)
	} else {
		z, err = loadFITS(path)
	}
	if err != nil {
		return nil, fmt.Errorf("ray %s: %w", path, err)
	}
	if len(z) == 0 {
		return nil, fmt.Errorf("ray %s: %w", path, ErrNoRedshift)
	}
	return &Ray{path: path, redshifts: z}, nil
}

func sniffHDF5(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	head := make([]byte, len(hdf5Signature))
	if _, err := io.ReadFull(f, head); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, nil
		}
		return false, err
	}
	return bytes.Equal(head, hdf5Signature), nil
}

func loadHDF5(path string) ([]float64, error) {
	f, err := hdf5.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open hdf5: %w", err)
	}
	defer f.Close()

	var found *hdf5.Dataset
	f.Walk(func(p string, obj hdf5.Object) {
		ds, ok := obj.(*hdf5.Dataset)
		if !ok || !strings.HasSuffix(p, "/"+RedshiftColumn) {
			return
		}
		if found == nil || strings.Contains(p, "grid") {
			found = ds
		}
	})
	if found == nil {
		return nil, ErrNoRedshift
	}
	z, err := found.Read()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", RedshiftDataset, err)
	}
	return z, nil
}

func loadFITS(path string) ([]float64, error) {
	hdus, err := fitsfile.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("decode fits: %w", err)
	}
	for _, hdu := range hdus {
		t, ok := hdu.(*fitsio.Table)
		if !ok || t.Index(RedshiftColumn) < 0 {
			continue
		}
		cols, err := fitsfile.ReadColumns(t)
		if err != nil {
			return nil, err
		}
		z, ok := cols[t.Index(RedshiftColumn)].([]float64)
		if !ok {
			return nil, fmt.Errorf("column %s is not numeric", RedshiftColumn)
		}
		return z, nil
	}
	return nil, ErrNoRedshift
}

// Path returns the file the ray was loaded from.
func (r *Ray) Path() string { return r.path }

// Basename returns the ray file name without directories.
func (r *Ray) Basename() string {
	if r.path == "" {
		return ""
	}
	return filepath.Base(r.path)
}

// Redshifts returns the per-sample effective redshift. The slice is shared;
// callers must not modify it.
func (r *Ray) Redshifts() []float64 { return r.redshifts }

// Len returns the number of samples.
func (r *Ray) Len() int { return len(r.redshifts) }

// Write stores a minimal ray file holding only the redshift samples. Paths
// ending in .h5 or .hdf5 get an HDF5 file with a /grid/redshift_eff dataset;
// anything else a FITS file with one RAY table.
func Write(path string, redshifts []float64) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".h5", ".hdf5":
		return writeHDF5(path, redshifts)
	}
	return writeFITS(path, redshifts)
}

func writeHDF5(path string, redshifts []float64) error {
	if len(redshifts) == 0 {
		return fmt.Errorf("write ray %s: %w", path, ErrNoRedshift)
	}
	fw, err := hdf5.CreateForWrite(path, hdf5.CreateTruncate)
	if err != nil {
		return fmt.Errorf("create ray: %w", err)
	}
	if _, err := fw.CreateGroup("/grid"); err != nil {
		fw.Close()
		return fmt.Errorf("create ray group: %w", err)
	}
	dw, err := fw.CreateDataset(RedshiftDataset, hdf5.Float64, []uint64{uint64(len(redshifts))})
	if err != nil {
		fw.Close()
		return fmt.Errorf("create ray dataset: %w", err)
	}
	if err := dw.Write(append([]float64(nil), redshifts...)); err != nil {
		dw.Close()
		fw.Close()
		return fmt.Errorf("write ray dataset: %w", err)
	}
	if err := dw.Close(); err != nil {
		fw.Close()
		return fmt.Errorf("close ray dataset: %w", err)
	}
	return fw.Close()
}

func writeFITS(path string, redshifts []float64) error {
	primary, err := fitsfile.NewPrimary(nil)
	if err != nil {
		return fmt.Errorf("ray header: %w", err)
	}
	tbl, err := fitsio.NewTable("RAY", []fitsio.Column{
		{Name: RedshiftColumn, Format: "D", Bscale: 1},
	}, fitsio.BINARY_TBL)
	if err != nil {
		return fmt.Errorf("ray table: %w", err)
	}
	for _, z := range redshifts {
		if err := tbl.Write(&z); err != nil {
			return fmt.Errorf("ray table: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create ray: %w", err)
	}
	if err := fitsfile.Encode(f, []fitsio.HDU{primary, tbl}); err != nil {
		f.Close()
		return fmt.Errorf("encode ray: %w", err)
	}
	return f.Close()
}
