// Package pcd reads and writes the PCD point-cloud file format: an ASCII
// key/value header followed by an ascii or binary little-endian data
// section (spec.md 6). Only the subset this module needs is supported:
// xyz plus optional normal and optional rgb fields.
//
// Grounded on original_source/io/formats/pcd.hpp's pcd_file_data_t field
// set (points/normals/colors); the header grammar and the ascii/binary
// data-section split come from spec.md 6 directly, since pcd.hpp is a
// bare data-holder with no parsing body.
package pcd

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
)

// DataMode is the PCD "DATA" header value.
type DataMode string

const (
	ASCII  DataMode = "ascii"
	Binary DataMode = "binary"
)

type header struct {
	fields []string
	sizes  []int
	types  []string
	counts []int
	width  int
	height int
	points int
	data   DataMode
}

func (h *header) fieldIndex(name string) int {
	for i, f := range h.fields {
		if f == name {
			return i
		}
	}
	return -1
}

// Read parses a PCD file into a Cloud[float32]. Normals and colours are
// populated only when the header's FIELDS line names them.
func Read(path string) (*cloud.Cloud[float32], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pcd: opening %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	h, err := parseHeader(r)
	if err != nil {
		return nil, fmt.Errorf("pcd: %s: %w", path, err)
	}

	switch h.data {
	case ASCII:
		return readASCII(r, h)
	case Binary:
		return readBinary(r, h)
	default:
		return nil, fmt.Errorf("pcd: %s: unsupported DATA mode %q", path, h.data)
	}
}

func parseHeader(r *bufio.Reader) (*header, error) {
	h := &header{height: 1}
	for {
		line, err := r.ReadString('\n')
		if err != nil && line == "" {
			return nil, fmt.Errorf("reading header: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			if err != nil {
				break
			}
			continue
		}
		fields := strings.Fields(line)
		key := fields[0]
		rest := fields[1:]

		switch key {
		case "VERSION":
			// unused beyond acknowledging the line is present.
		case "FIELDS":
			h.fields = rest
		case "SIZE":
			h.sizes = make([]int, len(rest))
			for i, s := range rest {
				v, err := strconv.Atoi(s)
				if err != nil {
					return nil, fmt.Errorf("SIZE field %d: %w", i, err)
				}
				h.sizes[i] = v
			}
		case "TYPE":
			h.types = rest
		case "COUNT":
			h.counts = make([]int, len(rest))
			for i, s := range rest {
				v, err := strconv.Atoi(s)
				if err != nil {
					return nil, fmt.Errorf("COUNT field %d: %w", i, err)
				}
				h.counts[i] = v
			}
		case "WIDTH":
			v, err := strconv.Atoi(rest[0])
			if err != nil {
				return nil, fmt.Errorf("WIDTH: %w", err)
			}
			h.width = v
		case "HEIGHT":
			v, err := strconv.Atoi(rest[0])
			if err != nil {
				return nil, fmt.Errorf("HEIGHT: %w", err)
			}
			h.height = v
		case "VIEWPOINT":
			// unused: no viewpoint-relative processing is implemented.
		case "POINTS":
			v, err := strconv.Atoi(rest[0])
			if err != nil {
				return nil, fmt.Errorf("POINTS: %w", err)
			}
			h.points = v
		case "DATA":
			h.data = DataMode(strings.ToLower(rest[0]))
			return h, nil
		}
		if err != nil {
			return nil, fmt.Errorf("header ended before DATA line: %w", err)
		}
	}
	return nil, fmt.Errorf("header ended before DATA line")
}

func readASCII(r *bufio.Reader, h *header) (*cloud.Cloud[float32], error) {
	c := cloud.New[float32]()
	xi, yi, zi := h.fieldIndex("x"), h.fieldIndex("y"), h.fieldIndex("z")
	if xi < 0 || yi < 0 || zi < 0 {
		return nil, fmt.Errorf("missing x/y/z fields")
	}
	nxi, nyi, nzi := h.fieldIndex("normal_x"), h.fieldIndex("normal_y"), h.fieldIndex("normal_z")
	hasNormals := nxi >= 0 && nyi >= 0 && nzi >= 0
	rgbi := h.fieldIndex("rgb")
	hasColour := rgbi >= 0

	for i := 0; i < h.points; i++ {
		line, err := r.ReadString('\n')
		if err != nil && line == "" {
			return nil, fmt.Errorf("reading point %d: %w", i, err)
		}
		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) < len(h.fields) {
			return nil, fmt.Errorf("point %d: expected %d fields, got %d", i, len(h.fields), len(fields))
		}
		x, err := strconv.ParseFloat(fields[xi], 32)
		if err != nil {
			return nil, fmt.Errorf("point %d x: %w", i, err)
		}
		y, err := strconv.ParseFloat(fields[yi], 32)
		if err != nil {
			return nil, fmt.Errorf("point %d y: %w", i, err)
		}
		z, err := strconv.ParseFloat(fields[zi], 32)
		if err != nil {
			return nil, fmt.Errorf("point %d z: %w", i, err)
		}
		c.Points = append(c.Points, geom.Point3[float32]{X: float32(x), Y: float32(y), Z: float32(z)})

		if hasNormals {
			nx, err := strconv.ParseFloat(fields[nxi], 32)
			if err != nil {
				return nil, fmt.Errorf("point %d normal_x: %w", i, err)
			}
			ny, err := strconv.ParseFloat(fields[nyi], 32)
			if err != nil {
				return nil, fmt.Errorf("point %d normal_y: %w", i, err)
			}
			nz, err := strconv.ParseFloat(fields[nzi], 32)
			if err != nil {
				return nil, fmt.Errorf("point %d normal_z: %w", i, err)
			}
			c.Normals = append(c.Normals, geom.Point3[float32]{X: float32(nx), Y: float32(ny), Z: float32(nz)})
		}
		if hasColour {
			packed, err := strconv.ParseFloat(fields[rgbi], 32)
			if err != nil {
				return nil, fmt.Errorf("point %d rgb: %w", i, err)
			}
			c.Colours = append(c.Colours, unpackRGBFloat(float32(packed)))
		}
		if err != nil {
			break
		}
	}
	return c, nil
}

func readBinary(r *bufio.Reader, h *header) (*cloud.Cloud[float32], error) {
	c := cloud.New[float32]()
	xi, yi, zi := h.fieldIndex("x"), h.fieldIndex("y"), h.fieldIndex("z")
	if xi < 0 || yi < 0 || zi < 0 {
		return nil, fmt.Errorf("missing x/y/z fields")
	}
	nxi, nyi, nzi := h.fieldIndex("normal_x"), h.fieldIndex("normal_y"), h.fieldIndex("normal_z")
	hasNormals := nxi >= 0 && nyi >= 0 && nzi >= 0
	rgbi := h.fieldIndex("rgb")
	hasColour := rgbi >= 0

	offsets := make([]int, len(h.fields))
	pointSize := 0
	for i, size := range h.sizes {
		offsets[i] = pointSize
		count := 1
		if i < len(h.counts) {
			count = h.counts[i]
		}
		pointSize += size * count
	}

	buf := make([]byte, pointSize)
	for i := 0; i < h.points; i++ {
		if _, err := readFull(r, buf); err != nil {
			return nil, fmt.Errorf("reading point %d: %w", i, err)
		}
		x := math.Float32frombits(binary.LittleEndian.Uint32(buf[offsets[xi]:]))
		y := math.Float32frombits(binary.LittleEndian.Uint32(buf[offsets[yi]:]))
		z := math.Float32frombits(binary.LittleEndian.Uint32(buf[offsets[zi]:]))
		c.Points = append(c.Points, geom.Point3[float32]{X: x, Y: y, Z: z})

		if hasNormals {
			nx := math.Float32frombits(binary.LittleEndian.Uint32(buf[offsets[nxi]:]))
			ny := math.Float32frombits(binary.LittleEndian.Uint32(buf[offsets[nyi]:]))
			nz := math.Float32frombits(binary.LittleEndian.Uint32(buf[offsets[nzi]:]))
			c.Normals = append(c.Normals, geom.Point3[float32]{X: nx, Y: ny, Z: nz})
		}
		if hasColour {
			packed := math.Float32frombits(binary.LittleEndian.Uint32(buf[offsets[rgbi]:]))
			c.Colours = append(c.Colours, unpackRGBFloat(packed))
		}
	}
	return c, nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func unpackRGBFloat(packed float32) cloud.RGB {
	bits := math.Float32bits(packed)
	return cloud.RGB{
		R: uint8(bits >> 16),
		G: uint8(bits >> 8),
		B: uint8(bits),
	}
}

func packRGBFloat(c cloud.RGB) float32 {
	bits := uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
	return math.Float32frombits(bits)
}

// WriteOptions controls how Write encodes the data section; which optional
// fields are written follows the cloud's contents.
type WriteOptions struct {
	Mode DataMode // defaults to Binary if zero-valued
}

// Write emits c as a PCD file. Normals are written when c.HasNormals(),
// colours when c.HasColours().
func Write(path string, c *cloud.Cloud[float32], opts WriteOptions) error {
	if opts.Mode == "" {
		opts.Mode = Binary
	}

	var fields, sizes, types, counts []string
	fields = append(fields, "x", "y", "z")
	sizes = append(sizes, "4", "4", "4")
	types = append(types, "F", "F", "F")
	counts = append(counts, "1", "1", "1")

	hasNormals := c.HasNormals()
	if hasNormals {
		fields = append(fields, "normal_x", "normal_y", "normal_z")
		sizes = append(sizes, "4", "4", "4")
		types = append(types, "F", "F", "F")
		counts = append(counts, "1", "1", "1")
	}
	hasColour := c.HasColours()
	if hasColour {
		fields = append(fields, "rgb")
		sizes = append(sizes, "4")
		types = append(types, "F")
		counts = append(counts, "1")
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("pcd: creating %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	n := c.Len()
	fmt.Fprintf(w, "# .PCD v0.7\nVERSION 0.7\n")
	fmt.Fprintf(w, "FIELDS %s\n", strings.Join(fields, " "))
	fmt.Fprintf(w, "SIZE %s\n", strings.Join(sizes, " "))
	fmt.Fprintf(w, "TYPE %s\n", strings.Join(types, " "))
	fmt.Fprintf(w, "COUNT %s\n", strings.Join(counts, " "))
	fmt.Fprintf(w, "WIDTH %d\n", n)
	fmt.Fprintf(w, "HEIGHT 1\n")
	fmt.Fprintf(w, "VIEWPOINT 0 0 0 1 0 0 0\n")
	fmt.Fprintf(w, "POINTS %d\n", n)
	fmt.Fprintf(w, "DATA %s\n", opts.Mode)

	switch opts.Mode {
	case ASCII:
		for i, p := range c.Points {
			var line bytes.Buffer
			fmt.Fprintf(&line, "%g %g %g", p.X, p.Y, p.Z)
			if hasNormals {
				np := c.Normals[i]
				fmt.Fprintf(&line, " %g %g %g", np.X, np.Y, np.Z)
			}
			if hasColour {
				fmt.Fprintf(&line, " %g", packRGBFloat(c.Colours[i]))
			}
			line.WriteByte('\n')
			if _, err := w.Write(line.Bytes()); err != nil {
				return fmt.Errorf("pcd: writing point %d: %w", i, err)
			}
		}
	case Binary:
		buf := make([]byte, 4)
		for i, p := range c.Points {
			for _, v := range []float32{p.X, p.Y, p.Z} {
				binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
				if _, err := w.Write(buf); err != nil {
					return fmt.Errorf("pcd: writing point %d: %w", i, err)
				}
			}
			if hasNormals {
				np := c.Normals[i]
				for _, v := range []float32{np.X, np.Y, np.Z} {
					binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
					if _, err := w.Write(buf); err != nil {
						return fmt.Errorf("pcd: writing normal %d: %w", i, err)
					}
				}
			}
			if hasColour {
				binary.LittleEndian.PutUint32(buf, math.Float32bits(packRGBFloat(c.Colours[i])))
				if _, err := w.Write(buf); err != nil {
					return fmt.Errorf("pcd: writing colour %d: %w", i, err)
				}
			}
		}
	default:
		return fmt.Errorf("pcd: unsupported DATA mode %q", opts.Mode)
	}
	return w.Flush()
}
