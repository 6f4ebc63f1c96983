package spectrum_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"misty/internal/linedb"
	"misty/internal/ray"
	"misty/internal/spectrum"
	"misty/internal/testsupport"
)

var fixedNow = time.Date(2021, 3, 4, 5, 6, 7, 123456000, time.UTC)

func newGenerator(t *testing.T, synth spectrum.Synthesizer, opts ...spectrum.Option) *spectrum.Generator {
	t.Helper()
	db, err := linedb.Default()
	if err != nil {
		t.Fatalf("default database: %v", err)
	}
	if synth == nil {
		synth = &testsupport.FakeSynthesizer{}
	}
	opts = append([]spectrum.Option{spectrum.WithClock(func() time.Time { return fixedNow })}, opts...)
	g, err := spectrum.NewGenerator(db, synth, opts...)
	if err != nil {
		t.Fatalf("NewGenerator returned error: %v", err)
	}
	return g
}

func testRay() *ray.Ray {
	return ray.New("/sims/DD0046/ray_1000.fits", []float64{0.0, 0.001, 0.002})
}

func mustHeader(t *testing.T, g *spectrum.Generator, opts spectrum.HeaderOptions) *spectrum.Container {
	t.Helper()
	c, err := g.BuildHeader(testRay(), opts)
	if err != nil {
		t.Fatalf("BuildHeader returned error: %v", err)
	}
	return c
}

func TestNewGeneratorRequiresDependencies(t *testing.T) {
	db, err := linedb.Default()
	if err != nil {
		t.Fatalf("default database: %v", err)
	}
	if _, err := spectrum.NewGenerator(nil, &testsupport.FakeSynthesizer{}); err == nil {
		t.Fatal("expected error without line database")
	}
	if _, err := spectrum.NewGenerator(db, nil); err == nil {
		t.Fatal("expected error without synthesizer")
	}
}

func TestComputeWindow(t *testing.T) {
	w, err := spectrum.ComputeWindow(1215.67, []float64{0.1, 0.0, 0.05})
	if err != nil {
		t.Fatalf("ComputeWindow returned error: %v", err)
	}
	if math.Abs(w.Min-1214.67) > 1e-9 {
		t.Fatalf("unexpected min %v", w.Min)
	}
	if want := 1215.67*1.1 + 1; math.Abs(w.Max-want) > 1e-9 {
		t.Fatalf("unexpected max %v want %v", w.Max, want)
	}
	if _, err := spectrum.ComputeWindow(1215.67, nil); !errors.Is(err, spectrum.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty ray, got %v", err)
	}
}

func TestBuildHeaderCards(t *testing.T) {
	g := newGenerator(t, nil)
	start := spectrum.Position{1, 2.5, 3}
	c := mustHeader(t, g, spectrum.HeaderOptions{
		Start:  &start,
		Lines:  []string{"C IV", "Ly a"},
		Author: "J. Doe",
	})
	if !c.Valid() || c.Len() != 1 {
		t.Fatalf("expected a single valid section, got %d", c.Len())
	}

	h := c.Header()
	wantStrings := map[string]string{
		"AUTHOR":   "J. Doe",
		"DATE":     "2021-03-04T05:06:07.123456",
		"RAYSTART": "[1.0, 2.5, 3.0]",
		"RAYEND":   "None",
		"SIM_NAME": "ray_1000.fits",
		"LINE_1":   "C IV 1548",
		"LINE_2":   "C IV 1551",
		"LINE_3":   "H I 1216",
	}
	for key, want := range wantStrings {
		if got, ok := h.StringValue(key); !ok || got != want {
			t.Fatalf("%s: got %q (%v) want %q", key, got, ok, want)
		}
	}

	n, ok := h.Int("NLINES")
	if !ok {
		t.Fatal("missing NLINES")
	}
	count := 0
	for _, key := range h.Keys() {
		if strings.HasPrefix(key, "LINE_") {
			count++
		}
	}
	if int64(count) != n || n != 3 {
		t.Fatalf("NLINES = %d but %d LINE_ cards", n, count)
	}
}

func TestBuildHeaderErrors(t *testing.T) {
	g := newGenerator(t, nil)
	if _, err := g.BuildHeader(testRay(), spectrum.HeaderOptions{Lines: []string{"Xx IX"}}); !errors.Is(err, linedb.ErrUnknownLine) {
		t.Fatalf("expected ErrUnknownLine, got %v", err)
	}
	if _, err := g.BuildHeader(nil, spectrum.HeaderOptions{}); !errors.Is(err, spectrum.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for nil ray, got %v", err)
	}
	if _, err := g.BuildHeader(testRay(), spectrum.HeaderOptions{Author: "Zoë"}); !errors.Is(err, spectrum.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for non-ASCII author, got %v", err)
	}
}

func TestBuildHeaderDefaultsAuthor(t *testing.T) {
	g := newGenerator(t, nil)
	for _, author := range []string{"", "   "} {
		c := mustHeader(t, g, spectrum.HeaderOptions{Author: author})
		if v, _ := c.Header().StringValue("AUTHOR"); v != spectrum.DefaultAuthor {
			t.Fatalf("author %q: got AUTHOR %q want %q", author, v, spectrum.DefaultAuthor)
		}
	}
}

func TestBuildHeaderWithoutLines(t *testing.T) {
	g := newGenerator(t, nil)
	c := mustHeader(t, g, spectrum.HeaderOptions{})
	if n, ok := c.Header().Int("NLINES"); !ok || n != 0 {
		t.Fatalf("expected NLINES = 0, got %d (%v)", n, ok)
	}
}

func TestParseParameters(t *testing.T) {
	params, err := spectrum.ParseParameters(strings.NewReader("REDSHIFT = 0.5\n\n# comment\nRESOLUTION=100\nNAME = a=b\n"))
	if err != nil {
		t.Fatalf("ParseParameters returned error: %v", err)
	}
	want := []spectrum.Parameter{
		{Key: "REDSHIFT", Value: "0.5"},
		{Key: "RESOLUTION", Value: "100"},
		{Key: "NAME", Value: "a=b"},
	}
	if len(params) != len(want) {
		t.Fatalf("expected %d parameters, got %v", len(want), params)
	}
	for i := range want {
		if params[i] != want[i] {
			t.Fatalf("parameter %d: got %+v want %+v", i, params[i], want[i])
		}
	}

	cases := map[string]string{
		"missing separator": "REDSHIFT 0.5\n",
		"empty key":         " = 4\n",
		"oversized value":   "K = " + strings.Repeat("v", spectrum.ParamWidth+1) + "\n",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := spectrum.ParseParameters(strings.NewReader(input)); !errors.Is(err, spectrum.ErrParse) {
				t.Fatalf("expected ErrParse, got %v", err)
			}
		})
	}
}

func TestAppendParameterTable(t *testing.T) {
	g := newGenerator(t, nil, spectrum.WithSite("", "stampede"))
	c := mustHeader(t, g, spectrum.HeaderOptions{})
	path := testsupport.WriteFile(t, filepath.Join(t.TempDir(), "run.par"), "REDSHIFT = 0.5\nRESOLUTION=100\n")

	if err := g.AppendParameterTable(c, path); err != nil {
		t.Fatalf("AppendParameterTable returned error: %v", err)
	}
	section, ok := c.Table(spectrum.ParamsSection)
	if !ok {
		t.Fatal("expected PARAMS section")
	}
	if section.Rows() != 2 {
		t.Fatalf("expected 2 rows, got %d", section.Rows())
	}
	keysCol, _ := section.Table.Column("PARAMETERS")
	valuesCol, _ := section.Table.Column("VALUES")
	keys, _ := keysCol.Strings()
	values, _ := valuesCol.Strings()
	if strings.Join(keys, ",") != "REDSHIFT,RESOLUTION" || strings.Join(values, ",") != "0.5,100" {
		t.Fatalf("unexpected table contents %v %v", keys, values)
	}
	if keysCol.Format != "50A" {
		t.Fatalf("unexpected column format %q", keysCol.Format)
	}
	if v, _ := section.Header.StringValue("SIM_CODE"); v != spectrum.DefaultSimCode {
		t.Fatalf("unexpected SIM_CODE %q", v)
	}
	if v, _ := section.Header.StringValue("COMPUTER"); v != "stampede" {
		t.Fatalf("unexpected COMPUTER %q", v)
	}

	if err := g.AppendParameterTable(c, filepath.Join(t.TempDir(), "missing.par")); !errors.Is(err, spectrum.ErrIO) {
		t.Fatalf("expected ErrIO for missing file, got %v", err)
	}
	bad := testsupport.WriteFile(t, filepath.Join(t.TempDir(), "bad.par"), "no separator\n")
	before := c.Len()
	if err := g.AppendParameterTable(c, bad); !errors.Is(err, spectrum.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
	if c.Len() != before {
		t.Fatal("failed append must not add a section")
	}
}

func TestOperationsRejectUnbuiltContainers(t *testing.T) {
	g := newGenerator(t, nil)
	db := g.Lines()
	line, err := db.Lookup("H I 1216")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	path := filepath.Join(t.TempDir(), "out.fits")

	for name, c := range map[string]*spectrum.Container{"nil": nil, "zero": {}} {
		t.Run(name, func(t *testing.T) {
			if err := g.AppendParameters(c, strings.NewReader("A = 1\n")); !errors.Is(err, spectrum.ErrInvalidArgument) {
				t.Fatalf("AppendParameters: expected ErrInvalidArgument, got %v", err)
			}
			if err := g.AppendParameterTable(c, "unused.par"); !errors.Is(err, spectrum.ErrInvalidArgument) {
				t.Fatalf("AppendParameterTable: expected ErrInvalidArgument, got %v", err)
			}
			if _, err := g.GenerateLine(context.Background(), testRay(), line, true, c); !errors.Is(err, spectrum.ErrInvalidArgument) {
				t.Fatalf("GenerateLine: expected ErrInvalidArgument, got %v", err)
			}
			if err := spectrum.WriteContainer(c, path); !errors.Is(err, spectrum.ErrInvalidArgument) {
				t.Fatalf("WriteContainer: expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestGenerateLineWithoutWriteIgnoresContainer(t *testing.T) {
	synth := &testsupport.FakeSynthesizer{}
	g := newGenerator(t, synth)
	line, err := g.Lines().Lookup("Ly a")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	out, err := g.GenerateLine(context.Background(), testRay(), line, false, nil)
	if err != nil {
		t.Fatalf("GenerateLine returned error: %v", err)
	}
	if len(out.Lambda) == 0 || len(out.Lambda) != len(out.Flux) {
		t.Fatalf("unexpected synthesis %+v", out)
	}

	reqs := synth.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected one synthesis request, got %d", len(reqs))
	}
	if reqs[0].Step != spectrum.Step || len(reqs[0].Lines) != 1 || reqs[0].Lines[0].Name != "H I 1216" {
		t.Fatalf("unexpected request %+v", reqs[0])
	}
	if want := 1215.6701*1.002 + 1; math.Abs(reqs[0].Window.Max-want) > 1e-9 {
		t.Fatalf("unexpected window %+v", reqs[0].Window)
	}
}

func TestGenerateLineSection(t *testing.T) {
	synth := &testsupport.FakeSynthesizer{
		MaxSamples:  5,
		Observables: map[string][]float64{"tau_weighted_temperature": {1e4, 2e4, 3e4}, "tau_weighted_density": {1}},
	}
	g := newGenerator(t, synth)
	c := mustHeader(t, g, spectrum.HeaderOptions{Lines: []string{"C IV 1548"}})

	if _, err := g.GenerateLineByName(context.Background(), testRay(), "C IV 1548", true, c); err != nil {
		t.Fatalf("GenerateLineByName returned error: %v", err)
	}
	section, ok := c.Table("C IV 1548")
	if !ok {
		t.Fatal("expected line section")
	}
	wantCols := "wavelength,tau,flux,sim_tau_weighted_density,sim_tau_weighted_temperature"
	if got := strings.Join(section.ColumnNames(), ","); got != wantCols {
		t.Fatalf("unexpected columns %q", got)
	}
	wl, _ := section.Table.Column("wavelength")
	if wl.Unit != "Angstrom" {
		t.Fatalf("unexpected wavelength unit %q", wl.Unit)
	}
	temp, _ := section.Table.Column("sim_tau_weighted_temperature")
	values, _ := temp.Floats()
	if len(values) != 5 || values[2] != 3e4 || values[3] != 0 || values[4] != 0 {
		t.Fatalf("expected zero-padded observable, got %v", values)
	}

	h := section.Header
	if v, _ := h.StringValue("LINENAME"); v != "C IV 1548" {
		t.Fatalf("unexpected LINENAME %q", v)
	}
	// Header reals keep six significant digits.
	if v, _ := h.Float("RESTWAVE"); v != 1548.2 {
		t.Fatalf("unexpected RESTWAVE %v", v)
	}
	if v, _ := h.Float("F_VALUE"); v != 0.1899 {
		t.Fatalf("unexpected F_VALUE %v", v)
	}
	if v, _ := h.Float("GAMMA"); v != 2.65e8 {
		t.Fatalf("unexpected GAMMA %v", v)
	}
	if n, _ := h.Int("NCOMPONENTS"); n != spectrum.Components {
		t.Fatalf("unexpected NCOMPONENTS %d", n)
	}
	keys := spectrum.PlaceholderKeys()
	if len(keys) != 28 {
		t.Fatalf("expected 28 placeholder keys, got %d", len(keys))
	}
	for _, key := range keys {
		if v, ok := h.Float(key); !ok || v != spectrum.Sentinel {
			t.Fatalf("%s: got %v (%v) want %v", key, v, ok, spectrum.Sentinel)
		}
	}
	if fit := spectrum.FitKeys(); fit[0] != "fit_EW0" || fit[len(fit)-1] != "fit_delv904" {
		t.Fatalf("unexpected fit key order %v", fit)
	}
}

func TestGenerateLineRejectsInconsistentSpectra(t *testing.T) {
	synth := &testsupport.FakeSynthesizer{
		MaxSamples:  2,
		Observables: map[string][]float64{"tau_weighted_density": {1, 2, 3}},
	}
	g := newGenerator(t, synth)
	c := mustHeader(t, g, spectrum.HeaderOptions{})
	if _, err := g.GenerateLineByName(context.Background(), testRay(), "O VI 1032", true, c); !errors.Is(err, spectrum.ErrInvalidSpectrum) {
		t.Fatalf("expected ErrInvalidSpectrum, got %v", err)
	}
	if c.Len() != 1 {
		t.Fatal("failed line must not add a section")
	}
}

func TestGenerateLinePropagatesSynthesisErrors(t *testing.T) {
	boom := errors.New("boom")
	g := newGenerator(t, &testsupport.FakeSynthesizer{Err: boom})
	c := mustHeader(t, g, spectrum.HeaderOptions{})
	if _, err := g.GenerateLineByName(context.Background(), testRay(), "Mg II 2796", true, c); !errors.Is(err, boom) {
		t.Fatalf("expected synthesis error, got %v", err)
	}
	if _, err := g.GenerateLineByName(context.Background(), testRay(), "Zz I 1", true, c); !errors.Is(err, linedb.ErrUnknownLine) {
		t.Fatalf("expected ErrUnknownLine, got %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("expected container untouched, got %d sections", c.Len())
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	synth := &testsupport.FakeSynthesizer{Observables: map[string][]float64{"tau_weighted_metallicity": {0.02, 0.03}}}
	g := newGenerator(t, synth, spectrum.WithSite("", "stampede"))
	start := spectrum.Position{-0.00012345678901234567, 9.876543210987653e-05, -5.555555555555556e-06}
	end := spectrum.Position{0.5, 0.5, 1}
	c := mustHeader(t, g, spectrum.HeaderOptions{Start: &start, End: &end, Lines: []string{"Si IV"}, Author: "O'Neil"})
	params := "REDSHIFT = 0.5\nCosmologyOmegaMatterNow = 0.3\nOutputDir = " + strings.Repeat("d", spectrum.ParamWidth) + "\n"
	if err := g.AppendParameters(c, strings.NewReader(params)); err != nil {
		t.Fatalf("AppendParameters returned error: %v", err)
	}
	for _, name := range []string{"Si IV 1394", "Si IV 1403"} {
		if _, err := g.GenerateLineByName(context.Background(), testRay(), name, true, c); err != nil {
			t.Fatalf("GenerateLineByName(%s) returned error: %v", name, err)
		}
	}

	path := filepath.Join(t.TempDir(), "spectrum.fits")
	if err := spectrum.WriteContainer(c, path); err != nil {
		t.Fatalf("WriteContainer returned error: %v", err)
	}
	back, err := spectrum.ReadContainer(path)
	if err != nil {
		t.Fatalf("ReadContainer returned error: %v", err)
	}
	if back.Len() != c.Len() {
		t.Fatalf("expected %d sections, got %d", c.Len(), back.Len())
	}
	if v, _ := back.Header().StringValue("AUTHOR"); v != "O'Neil" {
		t.Fatalf("unexpected AUTHOR %q", v)
	}
	if v, _ := back.Header().StringValue("RAYSTART"); v != start.String() {
		t.Fatalf("unexpected RAYSTART %q want %q", v, start.String())
	}
	if v, _ := back.Header().StringValue("RAYEND"); v != "[0.5, 0.5, 1.0]" {
		t.Fatalf("unexpected RAYEND %q", v)
	}

	orig := c.Sections()
	for i, s := range back.Sections() {
		if s.Name != orig[i].Name {
			t.Fatalf("section %d: name %q want %q", i, s.Name, orig[i].Name)
		}

		want, got := orig[i].Header.Cards(), s.Header.Cards()
		if len(got) != len(want) {
			t.Fatalf("section %q: %d cards want %d (%v)", s.Name, len(got), len(want), s.Header.Keys())
		}
		for j := range want {
			if got[j].Name != want[j].Name || got[j].Value != want[j].Value {
				t.Fatalf("section %q card %d: got %s=%#v want %s=%#v",
					s.Name, j, got[j].Name, got[j].Value, want[j].Name, want[j].Value)
			}
		}

		if (s.Table == nil) != (orig[i].Table == nil) {
			t.Fatalf("section %q: table presence changed", s.Name)
		}
		if s.Table == nil {
			continue
		}
		if s.Table.NumRows() != orig[i].Table.NumRows() {
			t.Fatalf("section %q: %d rows want %d", s.Name, s.Table.NumRows(), orig[i].Table.NumRows())
		}
		if strings.Join(s.ColumnNames(), ",") != strings.Join(orig[i].ColumnNames(), ",") {
			t.Fatalf("section %q: columns %v want %v", s.Name, s.ColumnNames(), orig[i].ColumnNames())
		}
		for _, col := range orig[i].Table.Columns() {
			have, _ := s.Table.Column(col.Name)
			if have.Format != col.Format || have.Unit != col.Unit {
				t.Fatalf("%s/%s: format %q unit %q, want %q %q", s.Name, col.Name, have.Format, have.Unit, col.Format, col.Unit)
			}
			if wantF, ok := col.Floats(); ok {
				haveF, ok := have.Floats()
				if !ok || len(haveF) != len(wantF) {
					t.Fatalf("%s/%s: got %v want %v", s.Name, col.Name, haveF, wantF)
				}
				for j := range wantF {
					if haveF[j] != wantF[j] && !(math.IsNaN(haveF[j]) && math.IsNaN(wantF[j])) {
						t.Fatalf("%s/%s[%d]: got %v want %v", s.Name, col.Name, j, haveF[j], wantF[j])
					}
				}
				continue
			}
			wantS, _ := col.Strings()
			haveS, ok := have.Strings()
			if !ok || strings.Join(haveS, "|") != strings.Join(wantS, "|") {
				t.Fatalf("%s/%s: got %q want %q", s.Name, col.Name, haveS, wantS)
			}
		}
	}

	paramsSection, ok := back.Table(spectrum.ParamsSection)
	if !ok {
		t.Fatal("PARAMS section missing after round trip")
	}
	values, _ := paramsSection.Table.Column("VALUES")
	if v, _ := values.Strings(); len(v) != 3 || v[2] != strings.Repeat("d", spectrum.ParamWidth) {
		t.Fatalf("expected a full-width value to survive, got %q", v)
	}
}

func TestReadContainerRejectsOversizedTable(t *testing.T) {
	g := newGenerator(t, nil)
	c := mustHeader(t, g, spectrum.HeaderOptions{})
	if _, err := g.GenerateLineByName(context.Background(), testRay(), "H I 1216", true, c); err != nil {
		t.Fatalf("GenerateLineByName returned error: %v", err)
	}
	path := filepath.Join(t.TempDir(), "spectrum.fits")
	if err := spectrum.WriteContainer(c, path); err != nil {
		t.Fatalf("WriteContainer returned error: %v", err)
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

	if _, err := spectrum.ReadContainer(path); !errors.Is(err, spectrum.ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
}

func TestWriteContainerOverwrites(t *testing.T) {
	g := newGenerator(t, nil)
	path := filepath.Join(t.TempDir(), "spectrum.fits")

	big := mustHeader(t, g, spectrum.HeaderOptions{})
	for _, name := range []string{"H I 1216", "H I 1026", "C II 1335"} {
		if _, err := g.GenerateLineByName(context.Background(), testRay(), name, true, big); err != nil {
			t.Fatalf("GenerateLineByName returned error: %v", err)
		}
	}
	if err := spectrum.WriteContainer(big, path); err != nil {
		t.Fatalf("first write: %v", err)
	}

	small := mustHeader(t, g, spectrum.HeaderOptions{Author: "second"})
	if err := spectrum.WriteContainer(small, path); err != nil {
		t.Fatalf("second write: %v", err)
	}
	back, err := spectrum.ReadContainer(path)
	if err != nil {
		t.Fatalf("ReadContainer returned error: %v", err)
	}
	if back.Len() != 1 {
		t.Fatalf("expected only the second product, got %d sections", back.Len())
	}
	if v, _ := back.Header().StringValue("AUTHOR"); v != "second" {
		t.Fatalf("unexpected AUTHOR %q", v)
	}
}

func TestReadContainerErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := spectrum.ReadContainer(filepath.Join(dir, "missing.fits")); !errors.Is(err, spectrum.ErrIO) {
		t.Fatalf("expected ErrIO for missing file, got %v", err)
	}
	junk := testsupport.WriteFile(t, filepath.Join(dir, "junk.fits"), "not a fits file")
	if _, err := spectrum.ReadContainer(junk); !errors.Is(err, spectrum.ErrIO) {
		t.Fatalf("expected ErrIO for junk file, got %v", err)
	}
	if err := spectrum.WriteContainer(mustHeader(t, newGenerator(t, nil), spectrum.HeaderOptions{}), filepath.Join(dir, "no", "such", "dir.fits")); !errors.Is(err, spectrum.ErrIO) {
		t.Fatalf("expected ErrIO for unwritable path, got %v", err)
	}
}
