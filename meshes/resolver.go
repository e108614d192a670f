// Package meshes resolves the geometry elements of URDF links into collision and render shapes. Primitive shapes
// pass through; mesh references are loaded from disk through decoders registered per file extension.
package meshes

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"go.viam.com/urdfsim/spatialmath"
	"go.viam.com/urdfsim/urdf"
)

// Decoder turns the bytes of a mesh file into a vertex buffer and triangle indices.
type Decoder func(r io.Reader) ([]r3.Vector, [][3]int, error)

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithDecoder registers a decoder for a file extension such as ".obj". It replaces any built in decoder for that
// extension.
func WithDecoder(ext string, decoder Decoder) ResolverOption {
	return func(r *Resolver) {
		r.decoders[normalizeExt(ext)] = decoder
	}
}

// Resolver loads geometry for links. Decoded meshes are cached per absolute file path, unscaled, so a mesh referenced
// by many links or robots is decoded once. A Resolver is safe for concurrent use.
type Resolver struct {
	decoders map[string]Decoder

	mu    sync.Mutex
	cache map[string]*spatialmath.Mesh
	loads singleflight.Group
}

// NewResolver returns a Resolver with the STL and PLY decoders registered.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		decoders: map[string]Decoder{
			".stl": DecodeSTL,
			".ply": DecodePLY,
		},
		cache: map[string]*spatialmath.Mesh{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CacheLen returns the number of decoded meshes held by the resolver.
func (r *Resolver) CacheLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}

// Resolve turns a URDF geometry into a spatialmath geometry posed at the origin of the element. Mesh failures are
// returned as a *ResolveError wrapping ErrFileNotFound or ErrUnsupportedFormat.
func (r *Resolver) Resolve(g urdf.Geometry, basePath string) (spatialmath.Geometry, error) {
	origin := spatialmath.NewZeroPose()
	switch geom := g.(type) {
	case urdf.Box:
		return wrapPrimitive(spatialmath.NewBox(origin, geom.Size, ""))
	case urdf.Sphere:
		return wrapPrimitive(spatialmath.NewSphere(origin, geom.Radius, ""))
	case urdf.Cylinder:
		return wrapPrimitive(spatialmath.NewCylinder(origin, geom.Radius, geom.Length, ""))
	case urdf.Capsule:
		return wrapPrimitive(spatialmath.NewCapsule(origin, geom.Radius, geom.Length, ""))
	case urdf.Mesh:
		path := ResolvePath(geom.Filename, basePath)
		mesh, err := r.load(path)
		if err != nil {
			return nil, &ResolveError{Path: path, Err: err}
		}
		if geom.Scale != (r3.Vector{X: 1, Y: 1, Z: 1}) {
			mesh = mesh.Scale(geom.Scale)
		}
		return mesh, nil
	default:
		return nil, &ResolveError{Err: errors.Wrapf(ErrUnsupportedFormat, "geometry of type %T", g)}
	}
}

func wrapPrimitive(g spatialmath.Geometry, err error) (spatialmath.Geometry, error) {
	if err != nil {
		return nil, &ResolveError{Err: errors.Wrap(ErrUnsupportedFormat, err.Error())}
	}
	return g, nil
}

func (r *Resolver) load(path string) (*spatialmath.Mesh, error) {
	if cached, ok := r.cached(path); ok {
		return cached, nil
	}
	// concurrent loads of one path share a single decode
	v, err, _ := r.loads.Do(path, func() (interface{}, error) {
		if cached, ok := r.cached(path); ok {
			return cached, nil
		}
		mesh, err := r.decode(path)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.cache[path] = mesh
		r.mu.Unlock()
		return mesh, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*spatialmath.Mesh), nil
}

func (r *Resolver) cached(path string) (*spatialmath.Mesh, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mesh, ok := r.cache[path]
	return mesh, ok
}

func (r *Resolver) decode(path string) (*spatialmath.Mesh, error) {
	ext := normalizeExt(filepath.Ext(path))
	decoder, ok := r.decoders[ext]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "no decoder for %q files", ext)
	}
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(ErrFileNotFound, err.Error())
	}
	//nolint:errcheck
	defer f.Close()

	vertices, indices, err := decoder(f)
	if err != nil {
		return nil, errors.Wrap(ErrUnsupportedFormat, err.Error())
	}
	mesh, err := spatialmath.NewMesh(spatialmath.NewZeroPose(), vertices, indices, path)
	if err != nil {
		return nil, errors.Wrap(ErrUnsupportedFormat, err.Error())
	}
	return mesh, nil
}

// ResolvePath maps a mesh reference to a file path. "package://<package>/" prefixes are replaced by basePath,
// "file://" prefixes are stripped and relative paths are joined to basePath.
func ResolvePath(filename, basePath string) string {
	meshPath := filename
	switch {
	case strings.HasPrefix(meshPath, "package://"):
		// Strip "package://<package_name>/" and use the remaining path
		meshPath = strings.TrimPrefix(meshPath, "package://")
		if idx := strings.Index(meshPath, "/"); idx != -1 {
			meshPath = meshPath[idx+1:]
		}
	case strings.HasPrefix(meshPath, "file://"):
		meshPath = strings.TrimPrefix(meshPath, "file://")
	}
	if basePath != "" && !filepath.IsAbs(meshPath) {
		meshPath = filepath.Join(basePath, meshPath)
	}
	if abs, err := filepath.Abs(meshPath); err == nil {
		return abs
	}
	return meshPath
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
