package search

import (
	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
)

// cloudDataset adapts a point cloud's Points array into a Dataset of
// 3-element vectors, the common case for keypoint/normal/registration
// search over 3-space.
type cloudDataset[T geom.Scalar] struct {
	c *cloud.Cloud[T]
}

// FromCloud wraps c's points as a 3-dimensional Dataset.
func FromCloud[T geom.Scalar](c *cloud.Cloud[T]) Dataset {
	return cloudDataset[T]{c: c}
}

func (d cloudDataset[T]) Len() int { return d.c.Len() }

func (d cloudDataset[T]) At(i int) []float64 {
	x, y, z := geom.AsFloat64(d.c.Points[i])
	return []float64{x, y, z}
}

// QueryPoint converts a 3D point into the []float64 query form the Index
// interface expects.
func QueryPoint[T geom.Scalar](p geom.Point3[T]) []float64 {
	x, y, z := geom.AsFloat64(p)
	return []float64{x, y, z}
}

// signatureDataset adapts a slice of descriptor signatures into a Dataset
// over their histograms, for correspondence generation's descriptor-space
// search.
type signatureDataset struct {
	sigs []cloud.Signature
}

// FromSignatures wraps sigs as a Dataset over their histogram bins.
func FromSignatures(sigs []cloud.Signature) Dataset {
	return signatureDataset{sigs: sigs}
}

func (d signatureDataset) Len() int { return len(d.sigs) }
func (d signatureDataset) At(i int) []float64 { return d.sigs[i].Histogram }
