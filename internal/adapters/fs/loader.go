package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bft-labs/fahmunge/internal/adapters/xtc"
	"github.com/bft-labs/fahmunge/internal/domain"
	"github.com/bft-labs/fahmunge/internal/ports"
	"github.com/bft-labs/fahmunge/internal/topology"
)

const (
	// DefaultArchiveMember is the trajectory inside a result archive.
	DefaultArchiveMember = "positions.xtc"

	// DefaultFrameFile is the trajectory inside a frame directory.
	DefaultFrameFile = "frames.xtc"
)

// ArchiveLoader extracts the trajectory member of an archive into a fresh
// temporary directory, decodes it, and removes the directory again.
type ArchiveLoader struct {
	extractor ports.Extractor
	member    string
	tempRoot  string
	logger    ports.Logger
}

// NewArchiveLoader returns a loader extracting member with extractor. Temp
// directories are created under tempRoot, or the system default if empty.
func NewArchiveLoader(extractor ports.Extractor, member, tempRoot string, logger ports.Logger) *ArchiveLoader {
	if member == "" {
		member = DefaultArchiveMember
	}
	return &ArchiveLoader{extractor: extractor, member: member, tempRoot: tempRoot, logger: logger}
}

// Load implements ports.Loader.
func (l *ArchiveLoader) Load(_ context.Context, unit domain.SourceUnit, _ *topology.Topology) (domain.FrameBlock, error) {
	tmp, err := os.MkdirTemp(l.tempRoot, "fahmunge-")
	if err != nil {
		return domain.FrameBlock{}, fmt.Errorf("create extraction dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tmp); err != nil {
			l.logger.Warn("failed to remove extraction dir", ports.String("dir", tmp), ports.Err(err))
		}
	}()

	path, err := l.extractor.Extract(unit.Path, l.member, tmp)
	if err != nil {
		return domain.FrameBlock{}, err
	}
	return xtc.ReadAll(path)
}

// DirLoader decodes the trajectory file inside a frame directory.
type DirLoader struct {
	frameFile string
}

// NewDirLoader returns a loader reading frameFile from each unit directory.
func NewDirLoader(frameFile string) *DirLoader {
	if frameFile == "" {
		frameFile = DefaultFrameFile
	}
	return &DirLoader{frameFile: frameFile}
}

// Load implements ports.Loader.
func (l *DirLoader) Load(_ context.Context, unit domain.SourceUnit, _ *topology.Topology) (domain.FrameBlock, error) {
	return xtc.ReadAll(filepath.Join(unit.Path, l.frameFile))
}
