package manager

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/teamcutter/apkx/internal/cache"
	"github.com/teamcutter/apkx/internal/domain"
	"github.com/teamcutter/apkx/internal/fetcher"
	"github.com/teamcutter/apkx/internal/logger"
	"github.com/teamcutter/apkx/internal/unpacker"
)

// Layout controls where archives unpack to and where native libraries live.
type Layout struct {
	OutputSuffix string
	LibDir       string
	NativeSuffix string
}

type Manager struct {
	fetcher   domain.Fetcher
	cache     domain.Cache
	extractor domain.Extractor
	state     domain.State
	inspector domain.Inspector
	layout    Layout
	log       *logger.Logger
	now       func() time.Time
}

func New(
	fetcher domain.Fetcher,
	cache domain.Cache,
	extractor domain.Extractor,
	state domain.State,
	inspector domain.Inspector,
	layout Layout,
	log *logger.Logger,
) *Manager {

	return &Manager{
		fetcher:   fetcher,
		cache:     cache,
		extractor: extractor,
		state:     state,
		inspector: inspector,
		layout:    layout,
		log:       log,
		now:       time.Now,
	}
}

func (m *Manager) Unpack(ctx context.Context, req domain.Request) (*domain.UnpackRecord, error) {
	archivePath, err := m.resolve(ctx, req.Source)
	if err != nil {
		m.log.Errorf("%v", err)
		return nil, err
	}

	if abs, err := filepath.Abs(archivePath); err == nil {
		archivePath = abs
	}

	outputDir := req.OutputDir
	if outputDir == "" {
		outputDir = m.defaultOutputDir(req.Source.Location, archivePath)
	}

	u := unpacker.New(archivePath,
		unpacker.WithOutputDir(outputDir),
		unpacker.WithExtractor(m.extractor),
		unpacker.WithLogger(m.log),
		unpacker.WithLibDir(m.layout.LibDir),
		unpacker.WithNativeSuffix(m.layout.NativeSuffix),
	)

	if _, err := os.Stat(archivePath); err != nil {
		// Run reports the missing archive through the logger.
		if err := u.Run(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrArchiveNotFound, archivePath)
	}

	sum, err := fetcher.Checksum(archivePath)
	if err != nil {
		m.log.Errorf("checksum %s: %v", archivePath, err)
		return nil, err
	}
	if req.Source.SHA256 != "" && !strings.EqualFold(sum, req.Source.SHA256) {
		err := fmt.Errorf("checksum mismatch: expected %s, got %s", req.Source.SHA256, sum)
		m.log.Errorf("%s: %v", archivePath, err)
		return nil, err
	}

	rec := &domain.UnpackRecord{
		Archive:    archivePath,
		OutputDir:  u.OutputDir(),
		SHA256:     sum,
		UnpackedAt: m.now(),
	}

	if err := m.state.Begin(rec); err != nil {
		return nil, fmt.Errorf("failed to record unpack: %w", err)
	}

	if err := u.Run(); err != nil {
		m.fail(rec)
		return nil, err
	}

	if req.Classify {
		libs, err := u.ClassifyByArchitecture()
		switch {
		case errors.Is(err, fs.ErrNotExist):
			m.log.Debugf("no %s directory in %s", m.layout.LibDir, u.OutputDir())
			libs = map[string][]string{}
		case err != nil:
			m.log.Errorf("classify %s: %v", u.OutputDir(), err)
			m.fail(rec)
			return nil, err
		}
		rec.Libs = libs
	}

	if req.Inspect && m.inspector != nil {
		info, err := m.inspector.Inspect(archivePath)
		if err != nil {
			m.log.Warnf("manifest not readable: %v", err)
		} else {
			rec.Package = info.Package
			rec.VersionName = info.VersionName
		}
	}

	if err := m.state.Complete(rec); err != nil {
		return nil, fmt.Errorf("failed to record unpack: %w", err)
	}

	return rec, nil
}

// defaultOutputDir keeps local archives' output next to them. Downloads live
// in the cache, so their output goes to the working directory instead.
func (m *Manager) defaultOutputDir(location, archivePath string) string {
	if !domain.IsRemote(location) {
		return unpacker.OutputDirWithSuffix(archivePath, m.layout.OutputSuffix)
	}

	name, _ := cache.Key(location)
	dir := name + m.layout.OutputSuffix
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return dir
}

func (m *Manager) fail(rec *domain.UnpackRecord) {
	if err := m.state.Fail(rec); err != nil {
		m.log.Warnf("failed to record unpack: %v", err)
	}
}

func (m *Manager) resolve(ctx context.Context, src domain.Source) (string, error) {
	if !domain.IsRemote(src.Location) {
		return src.Location, nil
	}

	name, digest := cache.Key(src.Location)
	if m.cache.Has(name, digest) {
		m.log.Debugf("using cached %s", src.Location)
		return m.cache.GetPath(name, digest), nil
	}

	result := m.fetcher.Fetch(ctx, src)
	if result.Error != nil {
		return "", fmt.Errorf("fetch %s: %w", src.Location, result.Error)
	}

	return m.cache.Store(name, digest, result.Path)
}

func (m *Manager) History() ([]*domain.UnpackRecord, error) {
	return m.state.List()
}

func (m *Manager) Forget(archive string) error {
	if abs, err := filepath.Abs(archive); err == nil && !domain.IsRemote(archive) {
		archive = abs
	}
	return m.state.Remove(archive)
}

func (m *Manager) CacheSize() (int64, error) {
	return m.cache.Size()
}

func (m *Manager) ClearCache() error {
	return m.cache.Clear()
}

func (m *Manager) Close() error {
	return m.state.Close()
}
