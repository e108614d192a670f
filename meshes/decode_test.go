package meshes

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/urdfsim/utils"
)

func TestDecodeASCIISTL(t *testing.T) {
	//nolint:gosec
	f, err := os.Open(utils.ResolveFile("testfiles/meshes/cube.stl"))
	test.That(t, err, test.ShouldBeNil)
	defer f.Close()

	vertices, indices, err := DecodeSTL(f)
	test.That(t, err, test.ShouldBeNil)
	// the 36 corners of the 12 facets weld into the 8 corners of the cube
	test.That(t, vertices, test.ShouldHaveLength, 8)
	test.That(t, indices, test.ShouldHaveLength, 12)
	for _, v := range vertices {
		test.That(t, math.Abs(v.X), test.ShouldEqual, 0.5)
		test.That(t, math.Abs(v.Y), test.ShouldEqual, 0.5)
		test.That(t, math.Abs(v.Z), test.ShouldEqual, 0.5)
	}
}

func TestDecodeBinarySTL(t *testing.T) {
	//nolint:gosec
	data, err := os.ReadFile(utils.ResolveFile("testfiles/meshes/wedge_binary.stl"))
	test.That(t, err, test.ShouldBeNil)
	vertices, indices, err := DecodeSTL(bytes.NewReader(data))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, vertices, test.ShouldHaveLength, 4)
	test.That(t, indices, test.ShouldHaveLength, 4)
	test.That(t, vertices[1].X, test.ShouldAlmostEqual, 0.2, 1e-6)

	// a binary header that happens to start with "solid" is still read as binary
	copy(data, "solid but binary")
	vertices, _, err = DecodeSTL(bytes.NewReader(data))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, vertices, test.ShouldHaveLength, 4)

	// truncated triangle data
	var buf bytes.Buffer
	buf.Write(make([]byte, 80))
	test.That(t, binary.Write(&buf, binary.LittleEndian, uint32(3)), test.ShouldBeNil)
	buf.Write(make([]byte, 10))
	_, _, err = DecodeSTL(&buf)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "declares 3 triangles")
}

func TestDecodeSTLErrors(t *testing.T) {
	for _, tc := range []struct {
		name, data, contains string
	}{
		{"bad number", "solid s\nfacet normal 0 0 1\nouter loop\nvertex 0 0 zero\n", `"zero" is not a number`},
		{"short facet", "solid s\nfacet normal 0 0 1\nouter loop\nvertex 0 0 0\nvertex 1 0 0\nendloop\n", "facet has 2 vertices"},
		{"garbage", "solid s\nbanana\n", `unexpected token "banana"`},
		{"empty solid", "solid s\nendsolid s\n", "no triangles"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := DecodeSTL(strings.NewReader(tc.data))
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.contains)
		})
	}
}

func TestDecodePLY(t *testing.T) {
	//nolint:gosec
	f, err := os.Open(utils.ResolveFile("testfiles/meshes/tetrahedron.ply"))
	test.That(t, err, test.ShouldBeNil)
	defer f.Close()
	vertices, indices, err := DecodePLY(f)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, vertices, test.ShouldHaveLength, 4)
	test.That(t, indices, test.ShouldResemble, [][3]int{{0, 2, 1}, {0, 1, 3}, {0, 3, 2}, {1, 2, 3}})
	test.That(t, vertices[3].Z, test.ShouldAlmostEqual, 0.1, 1e-6)
}

func TestDecodePLYPolygons(t *testing.T) {
	const quad = `ply
format ascii 1.0
element vertex 4
property double x
property double y
property double z
element face 1
property list uchar int vertex_indices
end_header
0 0 0
1 0 0
1 1 0
0 1 0
4 0 1 2 3

`
	vertices, indices, err := DecodePLY(strings.NewReader(quad))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, vertices[2], test.ShouldResemble, r3.Vector{X: 1, Y: 1})
	test.That(t, indices, test.ShouldResemble, [][3]int{{0, 1, 2}, {0, 2, 3}})
}

func TestDecodePLYInvalid(t *testing.T) {
	for _, data := range []string{
		"",
		"not a ply file\n",
		"ply\nformat binary_little_endian 1.0\nend_header\n",
		"ply\nformat ascii 1.0\nelement vertex 2\nproperty float x\nproperty float y\nproperty float z\nend_header\n0 0 0\n",
	} {
		_, _, err := DecodePLY(strings.NewReader(data))
		test.That(t, err, test.ShouldNotBeNil)
	}
}
