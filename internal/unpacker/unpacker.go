// Package unpacker extracts an Android application package into a directory
// tree and groups the native libraries found under lib/<arch>/ by ABI.
package unpacker

import (
	"archive/zip"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/teamcutter/apkx/internal/domain"
	"github.com/teamcutter/apkx/internal/extractor"
	"github.com/teamcutter/apkx/internal/logger"
)

const (
	DefaultOutputSuffix = "_unpacked"
	DefaultLibDir       = "lib"
	DefaultNativeSuffix = ".so"
)

type Unpacker struct {
	archivePath  string
	outputDir    string
	libDir       string
	nativeSuffix string
	nativeLibs   []string

	extractor domain.Extractor
	log       *logger.Logger
}

type Option func(*Unpacker)

func WithOutputDir(dir string) Option {
	return func(u *Unpacker) {
		if dir != "" {
			u.outputDir = dir
		}
	}
}

func WithExtractor(e domain.Extractor) Option {
	return func(u *Unpacker) {
		u.extractor = e
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(u *Unpacker) {
		u.log = l
	}
}

func WithLibDir(dir string) Option {
	return func(u *Unpacker) {
		if dir != "" {
			u.libDir = dir
		}
	}
}

func WithNativeSuffix(suffix string) Option {
	return func(u *Unpacker) {
		if suffix != "" {
			u.nativeSuffix = suffix
		}
	}
}

// New never touches the filesystem; the archive is only checked by Extract.
func New(archivePath string, opts ...Option) *Unpacker {
	u := &Unpacker{
		archivePath:  archivePath,
		outputDir:    DefaultOutputDir(archivePath),
		libDir:       DefaultLibDir,
		nativeSuffix: DefaultNativeSuffix,
		nativeLibs:   []string{},
		extractor:    extractor.NewZIP(),
		log:          logger.Default(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// DefaultOutputDir places "<name>_unpacked" next to the archive.
func DefaultOutputDir(archivePath string) string {
	return OutputDirWithSuffix(archivePath, DefaultOutputSuffix)
}

func OutputDirWithSuffix(archivePath, suffix string) string {
	base := filepath.Base(archivePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if strings.TrimLeft(stem, ".") == "" {
		stem = base
	}
	return filepath.Join(filepath.Dir(archivePath), stem+suffix)
}

func (u *Unpacker) ArchivePath() string { return u.archivePath }
func (u *Unpacker) OutputDir() string   { return u.outputDir }

// Extract unpacks every entry into the output directory and reports success.
// Failures are logged, never returned; use Run or Unpack for the error itself.
func (u *Unpacker) Extract() bool {
	return u.Run() == nil
}

// Run is Unpack with the start, outcome and failure lines written to the
// logger. The error is returned unchanged.
func (u *Unpacker) Run() error {
	u.log.Infof("=== unpacking APK ===")
	u.log.Infof("archive: %s", u.archivePath)
	u.log.Infof("output directory: %s", u.outputDir)

	err := u.Unpack()
	switch {
	case err == nil:
		u.log.Infof("unpack complete: %s", u.outputDir)
	case errors.Is(err, domain.ErrArchiveNotFound):
		u.log.Errorf("archive not found: %s", u.archivePath)
	case errors.Is(err, domain.ErrInvalidArchive):
		u.log.Errorf("invalid APK (zip) archive: %s", u.archivePath)
	default:
		u.log.Errorf("unpack failed: %v", err)
	}
	return err
}

func (u *Unpacker) Unpack() error {
	if _, err := os.Stat(u.archivePath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", domain.ErrArchiveNotFound, u.archivePath)
		}
		return err
	}

	if err := u.extractor.Extract(u.archivePath, u.outputDir); err != nil {
		if errors.Is(err, zip.ErrFormat) {
			return fmt.Errorf("%w: %s: %v", domain.ErrInvalidArchive, u.archivePath, err)
		}
		return err
	}

	u.log.Debugf("extracted %s into %s", u.archivePath, u.outputDir)
	return nil
}

// NativeLibraryPaths returns the recorded library slot. Extraction does not
// fill it; callers wanting the libraries on disk use ClassifyByArchitecture.
func (u *Unpacker) NativeLibraryPaths() []string {
	out := make([]string, len(u.nativeLibs))
	copy(out, u.nativeLibs)
	return out
}
