package kitti

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
)

func sampleCloud() *cloud.Cloud[float32] {
	c := cloud.New[float32]()
	c.Points = []geom.Point3[float32]{
		{X: 1, Y: 2, Z: 3},
		{X: -1.5, Y: 0, Z: 10},
		{X: 0, Y: 0, Z: 0},
	}
	c.Intensity = []float32{0.1, 0.9, 0.5}
	return c
}

func TestWriteReadBinRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "000000.bin")
	want := sampleCloud()

	if err := WriteBin(path, want); err != nil {
		t.Fatalf("WriteBin: %v", err)
	}
	got, err := ReadBin(path)
	if err != nil {
		t.Fatalf("ReadBin: %v", err)
	}
	if got.Len() != want.Len() {
		t.Fatalf("Len() = %d, want %d", got.Len(), want.Len())
	}
	for i := range want.Points {
		if got.Points[i] != want.Points[i] {
			t.Errorf("point %d = %+v, want %+v", i, got.Points[i], want.Points[i])
		}
		if got.Intensity[i] != want.Intensity[i] {
			t.Errorf("intensity %d = %v, want %v", i, got.Intensity[i], want.Intensity[i])
		}
	}
}

func TestReadBinRejectsTruncatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.bin")
	if err := os.WriteFile(path, make([]byte, 17), 0o644); err != nil {
		t.Fatalf("writing test file: %v", err)
	}
	if _, err := ReadBin(path); err == nil {
		t.Error("expected error for a size not divisible by 16")
	}
}

func TestSequenceFrames(t *testing.T) {
	dir := t.TempDir()
	veloDir := filepath.Join(dir, "velodyne")
	if err := os.Mkdir(veloDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	names := []string{"000002.bin", "000000.bin", "000001.bin"}
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(veloDir, n), nil, 0o644); err != nil {
			t.Fatalf("writing %s: %v", n, err)
		}
	}
	if err := os.WriteFile(filepath.Join(veloDir, "notes.txt"), nil, 0o644); err != nil {
		t.Fatalf("writing notes.txt: %v", err)
	}

	frames, err := SequenceFrames(dir)
	if err != nil {
		t.Fatalf("SequenceFrames: %v", err)
	}
	want := []string{"000000.bin", "000001.bin", "000002.bin"}
	if len(frames) != len(want) {
		t.Fatalf("got %d frames, want %d", len(frames), len(want))
	}
	for i, w := range want {
		if filepath.Base(frames[i]) != w {
			t.Errorf("frame %d = %s, want %s", i, filepath.Base(frames[i]), w)
		}
	}
}

func TestReadPoses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "00.txt")
	content := "1 0 0 0 0 1 0 0 0 0 1 0\n1 0 0 1 0 1 0 2 0 0 1 3\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing poses file: %v", err)
	}

	poses, err := ReadPoses(path)
	if err != nil {
		t.Fatalf("ReadPoses: %v", err)
	}
	if len(poses) != 2 {
		t.Fatalf("got %d poses, want 2", len(poses))
	}
	m := poses[1].Matrix()
	if m[0][3] != 1 || m[1][3] != 2 || m[2][3] != 3 {
		t.Errorf("translation = (%v, %v, %v), want (1, 2, 3)", m[0][3], m[1][3], m[2][3])
	}
	if m[3] != [4]float64{0, 0, 0, 1} {
		t.Errorf("bottom row = %v, want [0 0 0 1]", m[3])
	}
}

func TestReadPosesRejectsMalformedLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "00.txt")
	if err := os.WriteFile(path, []byte("1 2 3\n"), 0o644); err != nil {
		t.Fatalf("writing poses file: %v", err)
	}
	if _, err := ReadPoses(path); err == nil {
		t.Error("expected error for a line without 12 fields")
	}
}

func TestReadCalib(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "calib.txt")
	content := "P0: 1 0 0 0 0 1 0 0 0 0 1 0\nTr: 0 -1 0 0 0 0 -1 0 1 0 0 0\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing calib file: %v", err)
	}

	calib, err := ReadCalib(path)
	if err != nil {
		t.Fatalf("ReadCalib: %v", err)
	}
	if len(calib.Matrices["P0"]) != 12 {
		t.Errorf("P0 has %d values, want 12", len(calib.Matrices["P0"]))
	}
	if len(calib.Matrices["Tr"]) != 12 {
		t.Errorf("Tr has %d values, want 12", len(calib.Matrices["Tr"]))
	}
}

func TestReadLabels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "000000.label")

	// point 0: semantic class 10, instance 0
	// point 1: semantic class 40, instance 7
	raw := []byte{
		10, 0, 0, 0,
		40, 0, 7, 0,
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("writing labels file: %v", err)
	}

	labels, err := ReadLabels(path)
	if err != nil {
		t.Fatalf("ReadLabels: %v", err)
	}
	if len(labels) != 2 {
		t.Fatalf("got %d labels, want 2", len(labels))
	}
	if labels[0].SemanticClass != 10 || labels[0].InstanceID != 0 {
		t.Errorf("label 0 = %+v, want {10 0}", labels[0])
	}
	if labels[1].SemanticClass != 40 || labels[1].InstanceID != 7 {
		t.Errorf("label 1 = %+v, want {40 7}", labels[1])
	}
}
