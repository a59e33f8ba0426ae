// Package fs discovers fragment units on the local filesystem and loads
// their frames.
package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/bmatcuk/doublestar"

	"github.com/bft-labs/fahmunge/internal/domain"
	"github.com/bft-labs/fahmunge/internal/natsort"
	"github.com/bft-labs/fahmunge/internal/ports"
)

// DefaultArchivePattern matches Core17/Core18 result archives.
const DefaultArchivePattern = "results-*.tar.bz2"

// DiscoverArchives returns one unit per regular file under dir matching
// pattern, in natural order. Unit IDs are the matches joined onto dir as
// given, so the same call always yields the same IDs.
func DiscoverArchives(dir, pattern string) ([]domain.SourceUnit, error) {
	if pattern == "" {
		pattern = DefaultArchivePattern
	}
	if err := checkDir(dir); err != nil {
		return nil, err
	}
	matches, err := doublestar.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("glob %q in %s: %w", pattern, dir, err)
	}

	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		rel, err := filepath.Rel(filepath.Clean(dir), m)
		if err != nil {
			return nil, err
		}
		ids = append(ids, filepath.Join(dir, rel))
	}
	natsort.Sort(ids)

	units := make([]domain.SourceUnit, len(ids))
	for i, id := range ids {
		units[i] = domain.SourceUnit{ID: id, Path: id}
	}
	return units, nil
}

// DiscoverFrameDirs returns one unit per sub-directory of dir whose name is
// a non-negative integer, ordered by that integer. Other entries are logged
// and ignored.
func DiscoverFrameDirs(dir string, logger ports.Logger) ([]domain.SourceUnit, error) {
	if err := checkDir(dir); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	type numbered struct {
		name string
		n    uint64
	}
	var dirs []numbered
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		n, ok := parseFrameDir(e.Name())
		if !ok {
			logger.Debug("ignoring non-numeric directory",
				ports.String("dir", dir),
				ports.String("name", e.Name()),
			)
			continue
		}
		dirs = append(dirs, numbered{name: e.Name(), n: n})
	}
	sort.SliceStable(dirs, func(i, j int) bool {
		if dirs[i].n != dirs[j].n {
			return dirs[i].n < dirs[j].n
		}
		return natsort.Less(dirs[i].name, dirs[j].name)
	})

	units := make([]domain.SourceUnit, len(dirs))
	for i, d := range dirs {
		id := filepath.Join(dir, d.name)
		units[i] = domain.SourceUnit{ID: id, Path: id}
	}
	return units, nil
}

func parseFrameDir(name string) (uint64, bool) {
	if name == "" {
		return 0, false
	}
	for _, r := range name {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseUint(name, 10, 64)
	return n, err == nil
}

func checkDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: source directory %s", domain.ErrNotFound, dir)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}
