package archive

import (
	"archive/tar"
	"io"
	"os"
	"time"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Member is one file to place in an archive.
type Member struct {
	Name string
	Data []byte
}

// WriteFile creates a tar archive at path holding members, compressed with
// the codec implied by the name. It mirrors the layout of work-unit result
// archives and is used to build fixtures.
func WriteFile(path string, members ...Member) error {
	codec, err := CodecFor(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f, codec, members); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func write(w io.Writer, codec Codec, members []Member) error {
	var (
		cw  io.WriteCloser
		err error
	)
	switch codec {
	case Bzip2:
		cw, err = bzip2.NewWriter(w, nil)
	case Gzip:
		cw = gzip.NewWriter(w)
	case Zstd:
		cw, err = zstd.NewWriter(w)
	default:
		cw = nopCloser{w}
	}
	if err != nil {
		return err
	}

	tw := tar.NewWriter(cw)
	now := time.Now()
	for _, m := range members {
		hdr := &tar.Header{
			Name:     m.Name,
			Mode:     0o644,
			Size:     int64(len(m.Data)),
			ModTime:  now,
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if _, err := tw.Write(m.Data); err != nil {
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return cw.Close()
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
