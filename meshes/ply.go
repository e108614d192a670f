package meshes

import (
	"bytes"
	"io"

	"github.com/chenzhekl/goply"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// DecodePLY decodes ASCII PLY data. Polygonal faces are split into triangle fans.
func DecodePLY(r io.Reader) (vertices []r3.Vector, indices [][3]int, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	// goply panics on anything it cannot parse, including trailing blank lines
	defer func() {
		if rec := recover(); rec != nil {
			vertices, indices = nil, nil
			err = errors.Errorf("invalid PLY data: %v", rec)
		}
	}()
	data = append(bytes.TrimRight(data, " \t\r\n"), '\n')
	ply := goply.New(bytes.NewReader(data))

	for i, elem := range ply.Elements("vertex") {
		var coords [3]float64
		for j, name := range []string{"x", "y", "z"} {
			value, ok := plyNumber(elem[name])
			if !ok {
				return nil, nil, errors.Errorf("vertex %d has no numeric %s property", i, name)
			}
			coords[j] = value
		}
		vertices = append(vertices, r3.Vector{X: coords[0], Y: coords[1], Z: coords[2]})
	}

	for i, elem := range ply.Elements("face") {
		list, ok := elem["vertex_indices"].([]interface{})
		if !ok {
			list, ok = elem["vertex_index"].([]interface{})
		}
		if !ok || len(list) < 3 {
			return nil, nil, errors.Errorf("face %d has no vertex index list of at least 3 entries", i)
		}
		face := make([]int, 0, len(list))
		for _, raw := range list {
			value, ok := plyNumber(raw)
			if !ok {
				return nil, nil, errors.Errorf("face %d has a non-numeric vertex index", i)
			}
			face = append(face, int(value))
		}
		for k := 1; k+1 < len(face); k++ {
			indices = append(indices, [3]int{face[0], face[k], face[k+1]})
		}
	}
	if len(vertices) == 0 {
		return nil, nil, errors.New("PLY data contains no vertices")
	}
	return vertices, indices, nil
}

func plyNumber(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case int8:
		return float64(v), true
	case uint8:
		return float64(v), true
	case int16:
		return float64(v), true
	case uint16:
		return float64(v), true
	case int32:
		return float64(v), true
	case uint32:
		return float64(v), true
	default:
		return 0, false
	}
}
