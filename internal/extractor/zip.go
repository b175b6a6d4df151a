package extractor

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Compression methods beyond store/deflate that show up in repacked APKs.
const (
	MethodZstd uint16 = zstd.ZipMethodWinZip
	MethodXZ   uint16 = 95
)

type Entry struct {
	Name  string
	Size  uint64
	IsDir bool
}

type ZIPExtractor struct {
	progress io.Writer
}

type ZIPOption func(*ZIPExtractor)

// WithProgress mirrors every extracted byte into w.
func WithProgress(w io.Writer) ZIPOption {
	return func(ze *ZIPExtractor) {
		ze.progress = w
	}
}

func NewZIP(opts ...ZIPOption) *ZIPExtractor {
	ze := &ZIPExtractor{}
	for _, opt := range opts {
		opt(ze)
	}
	return ze
}

func (ze *ZIPExtractor) Extract(src, dst string) error {
	r, err := openZIP(src)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := os.MkdirAll(dst, 0755); err != nil {
		return err
	}

	for _, f := range r.File {
		name := entryPath(f.Name)
		if name == "" {
			continue
		}

		target := filepath.Join(dst, filepath.FromSlash(name))

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}

		if err := ze.writeFile(f, target); err != nil {
			return fmt.Errorf("zip: %s: %w", f.Name, err)
		}
	}

	return nil
}

func (ze *ZIPExtractor) writeFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	// Entry permissions are not applied; a read-only entry would make the
	// next extraction into the same directory fail.
	outFile, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	var w io.Writer = outFile
	if ze.progress != nil {
		w = io.MultiWriter(outFile, ze.progress)
	}

	if _, err := io.Copy(w, rc); err != nil {
		outFile.Close()
		return err
	}

	return outFile.Close()
}

func (ze *ZIPExtractor) List(src string) ([]Entry, error) {
	r, err := openZIP(src)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	entries := make([]Entry, 0, len(r.File))
	for _, f := range r.File {
		entries = append(entries, Entry{
			Name:  f.Name,
			Size:  f.UncompressedSize64,
			IsDir: f.FileInfo().IsDir(),
		})
	}
	return entries, nil
}

// Size is the total uncompressed size of all entries.
func (ze *ZIPExtractor) Size(src string) (int64, error) {
	entries, err := ze.List(src)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, e := range entries {
		total += int64(e.Size)
	}
	return total, nil
}

func openZIP(src string) (*zip.ReadCloser, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		if r != nil {
			r.Close()
		}
		return nil, fmt.Errorf("zip: %w", err)
	}

	r.RegisterDecompressor(zip.Deflate, func(in io.Reader) io.ReadCloser {
		return flate.NewReader(in)
	})
	r.RegisterDecompressor(MethodZstd, zstd.ZipDecompressor())
	r.RegisterDecompressor(MethodXZ, func(in io.Reader) io.ReadCloser {
		xr, err := xz.NewReader(in)
		if err != nil {
			return errReader{err: fmt.Errorf("xz: %w", err)}
		}
		return io.NopCloser(xr)
	})

	return r, nil
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }
func (e errReader) Close() error             { return nil }

// entryPath drops empty, "." and ".." components so every entry lands
// inside the output directory under its remaining path.
func entryPath(name string) string {
	var parts []string
	for _, part := range strings.Split(strings.ReplaceAll(name, "\\", "/"), "/") {
		if part == "" || part == "." || part == ".." {
			continue
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, "/")
}
