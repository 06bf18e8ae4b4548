// Package kitti reads and writes the KITTI LiDAR point-cloud `.bin` format
// and the surrounding dataset layout (spec.md 6): a packed little-endian
// array of (x, y, z, intensity) float32 tuples, a sequence directory of
// such files, per-sequence pose and calibration text files, and
// Semantic-KITTI's per-point `.label` files.
//
// Grounded on original_source/io/kitti.cpp (the .bin reader/writer body),
// io/dataset/kitti_pose_reader.hpp (pose file contract), and
// io/dataset/kitti_types.hpp / kitti_exceptions.hpp (sequence/calib layout
// and the out-of-range behaviour spec.md 7's OutOfRange kind documents).
package kitti

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
	"github.com/arjun-mehta/pointcloudkit/pkg/io/mmap"
)

const bytesPerPoint = 16 // x, y, z, intensity, each a float32

// ReadBin memory-maps path and decodes it as a packed (x, y, z, intensity)
// float32 array (spec.md 6). The file size must be a multiple of 16 bytes;
// this is the sole content check — extension detection (.bin) happens at
// the caller.
func ReadBin(path string) (*cloud.Cloud[float32], error) {
	f, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("kitti: reading %s: %w", path, err)
	}
	defer f.Close()

	data := f.Data()
	if len(data)%bytesPerPoint != 0 {
		return nil, fmt.Errorf("kitti: %s size %d is not a multiple of %d bytes", path, len(data), bytesPerPoint)
	}
	n := len(data) / bytesPerPoint

	c := cloud.New[float32]()
	c.Points = make([]geom.Point3[float32], n)
	c.Intensity = make([]float32, n)
	for i := 0; i < n; i++ {
		off := i * bytesPerPoint
		x := math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
		y := math.Float32frombits(binary.LittleEndian.Uint32(data[off+4:]))
		z := math.Float32frombits(binary.LittleEndian.Uint32(data[off+8:]))
		intensity := math.Float32frombits(binary.LittleEndian.Uint32(data[off+12:]))
		c.Points[i] = geom.Point3[float32]{X: x, Y: y, Z: z}
		c.Intensity[i] = intensity
	}
	return c, nil
}

// WriteBin emits c in the same packed (x, y, z, intensity) float32 layout
// ReadBin decodes (spec.md 6: "Writer emits the same layout").
func WriteBin(path string, c *cloud.Cloud[float32]) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("kitti: creating %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	buf := make([]byte, bytesPerPoint)
	for i, p := range c.Points {
		var intensity float32
		if i < len(c.Intensity) {
			intensity = c.Intensity[i]
		}
		binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(p.X))
		binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(p.Y))
		binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(p.Z))
		binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(intensity))
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("kitti: writing %s: %w", path, err)
		}
	}
	return w.Flush()
}

// SequenceFrames lists the zero-padded .bin frame paths under
// sequences/NN/velodyne/, in ascending frame order (spec.md 6's six-digit
// zero-padded naming).
func SequenceFrames(sequenceDir string) ([]string, error) {
	veloDir := filepath.Join(sequenceDir, "velodyne")
	entries, err := os.ReadDir(veloDir)
	if err != nil {
		return nil, fmt.Errorf("kitti: reading velodyne dir %s: %w", veloDir, err)
	}
	var frames []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".bin") {
			continue
		}
		frames = append(frames, filepath.Join(veloDir, e.Name()))
	}
	sort.Strings(frames)
	return frames, nil
}

// Pose is one 3x4 row-major pose (the first three rows of a 4x4
// transform), one per line of a KITTI poses/NN.txt file.
type Pose [12]float64

// ReadPoses parses a KITTI pose file: one line per frame, 12
// space-separated floats (spec.md 6).
func ReadPoses(path string) ([]Pose, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("kitti: opening poses file %s: %w", path, err)
	}
	defer f.Close()

	var poses []Pose
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 12 {
			return nil, fmt.Errorf("kitti: %s line %d: expected 12 fields, got %d", path, lineNum, len(fields))
		}
		var p Pose
		for i, s := range fields {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("kitti: %s line %d: parsing field %d: %w", path, lineNum, i, err)
			}
			p[i] = v
		}
		poses = append(poses, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("kitti: reading %s: %w", path, err)
	}
	return poses, nil
}

// Matrix expands the 3x4 pose into a 4x4 homogeneous transform whose bottom
// row is (0, 0, 0, 1).
func (p Pose) Matrix() [4][4]float64 {
	var m [4][4]float64
	m[0] = [4]float64{p[0], p[1], p[2], p[3]}
	m[1] = [4]float64{p[4], p[5], p[6], p[7]}
	m[2] = [4]float64{p[8], p[9], p[10], p[11]}
	m[3] = [4]float64{0, 0, 0, 1}
	return m
}

// Calibration holds the projection matrices (P0-P3) and the velodyne-to-
// camera extrinsic (Tr) a KITTI sequence's calib.txt carries, keyed by
// their line label.
type Calibration struct {
	Matrices map[string][]float64
}

// ReadCalib parses calib.txt: each line is "LABEL: f0 f1 f2 ...".
func ReadCalib(path string) (*Calibration, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("kitti: opening calib file %s: %w", path, err)
	}
	defer f.Close()

	c := &Calibration{Matrices: make(map[string][]float64)}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		label := strings.TrimSpace(parts[0])
		fields := strings.Fields(parts[1])
		values := make([]float64, 0, len(fields))
		for _, s := range fields {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("kitti: %s label %s: %w", path, label, err)
			}
			values = append(values, v)
		}
		c.Matrices[label] = values
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("kitti: reading %s: %w", path, err)
	}
	return c, nil
}

// Label is one Semantic-KITTI per-point label: the lower 16 bits are the
// semantic class, the upper 16 bits the instance id (spec.md 6).
type Label struct {
	SemanticClass uint16
	InstanceID    uint16
}

// ReadLabels decodes a Semantic-KITTI .label file: one uint32 per point.
func ReadLabels(path string) ([]Label, error) {
	f, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("kitti: reading labels %s: %w", path, err)
	}
	defer f.Close()

	data := f.Data()
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("kitti: %s size %d is not a multiple of 4 bytes", path, len(data))
	}
	n := len(data) / 4
	labels := make([]Label, n)
	for i := 0; i < n; i++ {
		raw := binary.LittleEndian.Uint32(data[i*4:])
		labels[i] = Label{
			SemanticClass: uint16(raw & 0xFFFF),
			InstanceID:    uint16(raw >> 16),
		}
	}
	return labels, nil
}
