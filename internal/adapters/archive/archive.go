// Package archive extracts single members from compressed tar archives.
//
// The codec is chosen from the archive's suffix: .tar.bz2/.tbz2 (bzip2),
// .tar.gz/.tgz (gzip), .tar.zst (zstd) and plain .tar.
package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/bft-labs/fahmunge/internal/domain"
)

// ErrMemberNotFound is returned when the archive has no member with the
// requested name.
var ErrMemberNotFound = errors.New("archive: member not found")

// Codec identifies the compression wrapped around a tar stream.
type Codec int

const (
	Plain Codec = iota
	Bzip2
	Gzip
	Zstd
)

// CodecFor returns the codec implied by the archive name.
func CodecFor(name string) (Codec, error) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".tar.bz2"), strings.HasSuffix(lower, ".tbz2"):
		return Bzip2, nil
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return Gzip, nil
	case strings.HasSuffix(lower, ".tar.zst"):
		return Zstd, nil
	case strings.HasSuffix(lower, ".tar"):
		return Plain, nil
	default:
		return Plain, fmt.Errorf("archive: unsupported archive type %q", name)
	}
}

// Extractor extracts tar members to disk.
type Extractor struct{}

// NewExtractor returns a tar Extractor.
func NewExtractor() *Extractor { return &Extractor{} }

// Extract writes the member named member from archivePath into dir and
// returns the path of the extracted file. A member matches when its cleaned
// name equals member, or when member has no directory part and the member's
// base name equals it.
func (e *Extractor) Extract(archivePath, member, dir string) (string, error) {
	codec, err := CodecFor(archivePath)
	if err != nil {
		return "", err
	}
	f, err := os.Open(archivePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", domain.ErrNotFound, archivePath)
		}
		return "", err
	}
	defer f.Close()

	r, closeFn, err := decompress(f, codec)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", archivePath, err)
	}
	defer closeFn()

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("%w: %s in %s", ErrMemberNotFound, member, archivePath)
		}
		if err != nil {
			return "", fmt.Errorf("read %s: %w", archivePath, err)
		}
		if hdr.Typeflag != tar.TypeReg || !matches(hdr.Name, member) {
			continue
		}
		dst := filepath.Join(dir, path.Base(hdr.Name))
		if err := writeFile(dst, tr, hdr.FileInfo().Mode().Perm()); err != nil {
			return "", fmt.Errorf("extract %s from %s: %w", member, archivePath, err)
		}
		return dst, nil
	}
}

func matches(name, member string) bool {
	name = path.Clean(strings.TrimPrefix(name, "./"))
	if name == path.Clean(member) {
		return true
	}
	return !strings.Contains(member, "/") && path.Base(name) == member
}

func writeFile(dst string, r io.Reader, perm os.FileMode) error {
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func decompress(r io.Reader, codec Codec) (io.Reader, func(), error) {
	switch codec {
	case Bzip2:
		zr, err := bzip2.NewReader(r, nil)
		if err != nil {
			return nil, nil, err
		}
		return zr, func() { zr.Close() }, nil
	case Gzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, func() { zr.Close() }, nil
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, zr.Close, nil
	default:
		return r, func() {}, nil
	}
}
