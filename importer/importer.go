// Package importer turns URDF documents into robots living in a physics world. It chains the decoder, the mesh
// resolver, the kinematic tree builder and the instantiation step, and keeps one mesh cache for every robot it
// imports.
package importer

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"go.viam.com/urdfsim/articulation"
	"go.viam.com/urdfsim/kinematics"
	"go.viam.com/urdfsim/logging"
	"go.viam.com/urdfsim/meshes"
	"go.viam.com/urdfsim/physics"
	"go.viam.com/urdfsim/urdf"
)

// Importer imports robots with one set of options. Prepare may be called from several goroutines at once; calls that
// take a world may not.
type Importer struct {
	opts     Options
	resolver *meshes.Resolver
	logger   logging.Logger
}

// New returns an importer. Resolver options register extra mesh decoders.
func New(opts Options, logger logging.Logger, resolverOpts ...meshes.ResolverOption) (*Importer, error) {
	if err := opts.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid import options")
	}
	return &Importer{
		opts:     opts,
		resolver: meshes.NewResolver(resolverOpts...),
		logger:   logger,
	}, nil
}

// Options returns the options of the importer.
func (imp *Importer) Options() Options {
	return imp.opts
}

// Resolver returns the mesh resolver shared by every import.
func (imp *Importer) Resolver() *meshes.Resolver {
	return imp.resolver
}

// Prepared is a robot that has been decoded, resolved and checked but not yet placed in a world.
type Prepared struct {
	Document *urdf.Document
	Tree     *kinematics.Tree
	Shapes   map[string]*meshes.LinkShapes
	// Warnings aggregates the geometry elements that failed to resolve, one *meshes.ResolveError each.
	Warnings error
}

// Result is an imported robot.
type Result struct {
	Instance *articulation.Instance
	Warnings error
}

// Prepare decodes a URDF document and resolves everything the world needs. Mesh references are resolved against
// basePath. It never touches a world.
func (imp *Importer) Prepare(data []byte, basePath string) (*Prepared, error) {
	doc, err := urdf.Parse(data)
	if err != nil {
		return nil, err
	}
	tree, err := kinematics.Build(doc)
	if err != nil {
		return nil, err
	}
	shapes, warnings := imp.resolver.ResolveLinks(doc, basePath, imp.opts.OnMeshResolutionFailure)
	if warnings != nil {
		imp.logger.Debugw("some geometry could not be resolved", "robot", doc.Name, "warnings", warnings)
	}
	return &Prepared{Document: doc, Tree: tree, Shapes: shapes, Warnings: warnings}, nil
}

// PrepareFile is Prepare for a file. An empty meshDir resolves meshes against the directory of the file.
func (imp *Importer) PrepareFile(path, meshDir string) (*Prepared, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	if meshDir == "" {
		meshDir = filepath.Dir(path)
	}
	prepared, err := imp.Prepare(data, meshDir)
	if err != nil {
		return nil, errors.Wrapf(err, "importing %s", path)
	}
	return prepared, nil
}

// Instantiate places a prepared robot in the world. A prepared robot may be instantiated any number of times.
func (imp *Importer) Instantiate(prepared *Prepared, world physics.World) (*Result, error) {
	inst, err := articulation.Instantiate(prepared.Tree, prepared.Shapes, world, imp.opts.articulation(), imp.logger)
	if err != nil {
		return nil, err
	}
	return &Result{Instance: inst, Warnings: prepared.Warnings}, nil
}

// Import decodes a URDF document and places the robot in the world.
func (imp *Importer) Import(data []byte, basePath string, world physics.World) (*Result, error) {
	prepared, err := imp.Prepare(data, basePath)
	if err != nil {
		return nil, err
	}
	return imp.Instantiate(prepared, world)
}

// ImportFile is Import for a file. An empty meshDir resolves meshes against the directory of the file.
func (imp *Importer) ImportFile(path, meshDir string, world physics.World) (*Result, error) {
	prepared, err := imp.PrepareFile(path, meshDir)
	if err != nil {
		return nil, err
	}
	return imp.Instantiate(prepared, world)
}
