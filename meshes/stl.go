package meshes

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

const (
	stlHeaderSize   = 80
	stlTriangleSize = 50
)

// DecodeSTL decodes binary or ASCII STL data into a shared vertex buffer and triangle indices.
func DecodeSTL(r io.Reader) ([]r3.Vector, [][3]int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	var triangles [][3]r3.Vector
	if isBinarySTL(data) {
		triangles, err = decodeBinarySTL(data)
	} else {
		triangles, err = decodeASCIISTL(data)
	}
	if err != nil {
		return nil, nil, err
	}
	if len(triangles) == 0 {
		return nil, nil, errors.New("STL data contains no triangles")
	}
	vertices, indices := weldVertices(triangles)
	return vertices, indices, nil
}

// isBinarySTL tells the two encodings apart. Some exporters start binary headers with "solid" so the triangle count
// is checked against the data length first.
func isBinarySTL(data []byte) bool {
	if len(data) >= stlHeaderSize+4 {
		count := binary.LittleEndian.Uint32(data[stlHeaderSize : stlHeaderSize+4])
		if uint64(len(data)) == stlHeaderSize+4+uint64(count)*stlTriangleSize {
			return true
		}
	}
	return !bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte("solid"))
}

func decodeBinarySTL(data []byte) ([][3]r3.Vector, error) {
	if len(data) < stlHeaderSize+4 {
		return nil, errors.Errorf("binary STL data is %d bytes, shorter than its header", len(data))
	}
	count := int(binary.LittleEndian.Uint32(data[stlHeaderSize : stlHeaderSize+4]))
	body := data[stlHeaderSize+4:]
	if len(body) < count*stlTriangleSize {
		return nil, errors.Errorf("binary STL declares %d triangles but holds %d bytes of triangle data", count, len(body))
	}
	readVec := func(b []byte) r3.Vector {
		return r3.Vector{
			X: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[0:4]))),
			Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[4:8]))),
			Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[8:12]))),
		}
	}
	triangles := make([][3]r3.Vector, 0, count)
	for i := 0; i < count; i++ {
		// 12 bytes of normal, three 12 byte vertices, 2 bytes of attributes
		rec := body[i*stlTriangleSize : (i+1)*stlTriangleSize]
		triangles = append(triangles, [3]r3.Vector{readVec(rec[12:24]), readVec(rec[24:36]), readVec(rec[36:48])})
	}
	return triangles, nil
}

func decodeASCIISTL(data []byte) ([][3]r3.Vector, error) {
	var (
		triangles [][3]r3.Vector
		pending   []r3.Vector
	)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "vertex":
			if len(fields) != 4 {
				return nil, errors.Errorf("line %d: vertex needs 3 coordinates", lineNum)
			}
			var v [3]float64
			for i := range v {
				f, err := strconv.ParseFloat(fields[i+1], 64)
				if err != nil {
					return nil, errors.Errorf("line %d: %q is not a number", lineNum, fields[i+1])
				}
				v[i] = f
			}
			pending = append(pending, r3.Vector{X: v[0], Y: v[1], Z: v[2]})
		case "endloop":
			if len(pending) != 3 {
				return nil, errors.Errorf("line %d: facet has %d vertices, expected 3", lineNum, len(pending))
			}
			triangles = append(triangles, [3]r3.Vector{pending[0], pending[1], pending[2]})
			pending = pending[:0]
		case "solid", "facet", "outer", "endfacet", "endsolid":
		default:
			return nil, errors.Errorf("line %d: unexpected token %q", lineNum, fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return triangles, nil
}

// weldVertices merges identical corners so that adjacent triangles share vertex indices.
func weldVertices(triangles [][3]r3.Vector) ([]r3.Vector, [][3]int) {
	lookup := make(map[r3.Vector]int, len(triangles))
	vertices := make([]r3.Vector, 0, len(triangles))
	indices := make([][3]int, 0, len(triangles))
	for _, tri := range triangles {
		var idx [3]int
		for i, v := range tri {
			n, ok := lookup[v]
			if !ok {
				n = len(vertices)
				lookup[v] = n
				vertices = append(vertices, v)
			}
			idx[i] = n
		}
		indices = append(indices, idx)
	}
	return vertices, indices
}
