package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
	"github.com/arjun-mehta/pointcloudkit/pkg/io/kitti"
	"github.com/arjun-mehta/pointcloudkit/pkg/io/pcd"
)

// loadCloud64 reads path as PCD or KITTI binary, dispatching on extension,
// and widens the result to float64 for the registration funnel.
func loadCloud64(path string) (*cloud.Cloud[float64], error) {
	c32, err := loadCloud32(path)
	if err != nil {
		return nil, err
	}
	return widen(c32), nil
}

func loadCloud32(path string) (*cloud.Cloud[float32], error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pcd":
		return pcd.Read(path)
	case ".bin":
		return kitti.ReadBin(path)
	default:
		return nil, fmt.Errorf("unrecognised point cloud extension %q (want .pcd or .bin)", ext)
	}
}

func saveCloud32(path string, c *cloud.Cloud[float32]) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pcd":
		return pcd.Write(path, c, pcd.WriteOptions{Mode: pcd.Binary})
	case ".bin":
		return kitti.WriteBin(path, c)
	default:
		return fmt.Errorf("unrecognised point cloud extension %q (want .pcd or .bin)", ext)
	}
}

func widen(c *cloud.Cloud[float32]) *cloud.Cloud[float64] {
	out := cloud.New[float64]()
	out.Points = make([]geom.Point3[float64], len(c.Points))
	for i, p := range c.Points {
		out.Points[i] = geom.Point3[float64]{X: float64(p.X), Y: float64(p.Y), Z: float64(p.Z)}
	}
	if c.HasNormals() {
		out.Normals = make([]geom.Point3[float64], len(c.Normals))
		for i, n := range c.Normals {
			out.Normals[i] = geom.Point3[float64]{X: float64(n.X), Y: float64(n.Y), Z: float64(n.Z)}
		}
	}
	if c.HasColours() {
		out.Colours = append([]cloud.RGB(nil), c.Colours...)
	}
	if c.HasIntensity() {
		out.Intensity = make([]float64, len(c.Intensity))
		for i, v := range c.Intensity {
			out.Intensity[i] = float64(v)
		}
	}
	return out
}

func narrow(c *cloud.Cloud[float64]) *cloud.Cloud[float32] {
	out := cloud.New[float32]()
	out.Points = make([]geom.Point3[float32], len(c.Points))
	for i, p := range c.Points {
		out.Points[i] = geom.Point3[float32]{X: float32(p.X), Y: float32(p.Y), Z: float32(p.Z)}
	}
	if c.HasNormals() {
		out.Normals = make([]geom.Point3[float32], len(c.Normals))
		for i, n := range c.Normals {
			out.Normals[i] = geom.Point3[float32]{X: float32(n.X), Y: float32(n.Y), Z: float32(n.Z)}
		}
	}
	if c.HasColours() {
		out.Colours = append([]cloud.RGB(nil), c.Colours...)
	}
	if c.HasIntensity() {
		out.Intensity = make([]float32, len(c.Intensity))
		for i, v := range c.Intensity {
			out.Intensity[i] = float32(v)
		}
	}
	return out
}
