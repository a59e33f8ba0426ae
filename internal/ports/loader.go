package ports

import (
	"context"

	"github.com/bft-labs/fahmunge/internal/domain"
	"github.com/bft-labs/fahmunge/internal/topology"
)

// Loader materialises the frames of one source unit. Any transient files it
// creates must be removed before Load returns, whether or not it succeeded.
type Loader interface {
	Load(ctx context.Context, unit domain.SourceUnit, top *topology.Topology) (domain.FrameBlock, error)
}

// LoaderFunc adapts an ordinary function to the Loader interface.
type LoaderFunc func(ctx context.Context, unit domain.SourceUnit, top *topology.Topology) (domain.FrameBlock, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, unit domain.SourceUnit, top *topology.Topology) (domain.FrameBlock, error) {
	return f(ctx, unit, top)
}

// Extractor pulls a single named member out of an archive into dir and
// returns the extracted file's path.
type Extractor interface {
	Extract(archivePath, member, dir string) (string, error)
}
