package pcd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
)

func sampleCloud(withNormals, withColour bool) *cloud.Cloud[float32] {
	c := cloud.New[float32]()
	c.Points = []geom.Point3[float32]{
		{X: 1, Y: 2, Z: 3},
		{X: -1.5, Y: 0.25, Z: 10},
	}
	if withNormals {
		c.Normals = []geom.Point3[float32]{
			{X: 0, Y: 0, Z: 1},
			{X: 1, Y: 0, Z: 0},
		}
	}
	if withColour {
		c.Colours = []cloud.RGB{
			{R: 255, G: 0, B: 0},
			{R: 10, G: 20, B: 30},
		}
	}
	return c
}

func approxEqual(a, b float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-4
}

func checkRoundTrip(t *testing.T, mode DataMode, withNormals, withColour bool) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cloud.pcd")
	want := sampleCloud(withNormals, withColour)

	if err := Write(path, want, WriteOptions{Mode: mode}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Len() != want.Len() {
		t.Fatalf("Len() = %d, want %d", got.Len(), want.Len())
	}
	for i := range want.Points {
		wp, gp := want.Points[i], got.Points[i]
		if !approxEqual(wp.X, gp.X) || !approxEqual(wp.Y, gp.Y) || !approxEqual(wp.Z, gp.Z) {
			t.Errorf("point %d = %+v, want %+v", i, gp, wp)
		}
	}
	if withNormals {
		if !got.HasNormals() {
			t.Fatal("expected normals to round-trip")
		}
		for i := range want.Normals {
			wn, gn := want.Normals[i], got.Normals[i]
			if !approxEqual(wn.X, gn.X) || !approxEqual(wn.Y, gn.Y) || !approxEqual(wn.Z, gn.Z) {
				t.Errorf("normal %d = %+v, want %+v", i, gn, wn)
			}
		}
	}
	if withColour {
		if !got.HasColours() {
			t.Fatal("expected colours to round-trip")
		}
		for i := range want.Colours {
			if got.Colours[i] != want.Colours[i] {
				t.Errorf("colour %d = %+v, want %+v", i, got.Colours[i], want.Colours[i])
			}
		}
	}
}

func TestBinaryRoundTripXYZOnly(t *testing.T) {
	checkRoundTrip(t, Binary, false, false)
}

func TestBinaryRoundTripWithNormalsAndColour(t *testing.T) {
	checkRoundTrip(t, Binary, true, true)
}

func TestASCIIRoundTripXYZOnly(t *testing.T) {
	checkRoundTrip(t, ASCII, false, false)
}

func TestASCIIRoundTripWithNormalsAndColour(t *testing.T) {
	checkRoundTrip(t, ASCII, true, true)
}

func TestReadRejectsMissingXYZFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.pcd")
	content := "VERSION 0.7\nFIELDS intensity\nSIZE 4\nTYPE F\nCOUNT 1\nWIDTH 1\nHEIGHT 1\nVIEWPOINT 0 0 0 1 0 0 0\nPOINTS 1\nDATA ascii\n0.5\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing test file: %v", err)
	}
	if _, err := Read(path); err == nil {
		t.Error("expected error for a header missing x/y/z fields")
	}
}
