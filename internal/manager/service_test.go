package manager

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
	"github.com/teamcutter/apkx/internal/cache"
	"github.com/teamcutter/apkx/internal/domain"
	"github.com/teamcutter/apkx/internal/extractor"
	"github.com/teamcutter/apkx/internal/fetcher"
	"github.com/teamcutter/apkx/internal/logger"
	"github.com/teamcutter/apkx/internal/state"
)

type stubInspector struct {
	info *domain.AppInfo
	err  error
}

func (s stubInspector) Inspect(string) (*domain.AppInfo, error) { return s.info, s.err }

func writeAPK(t *testing.T, path string, names ...string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(name))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func newTestManager(t *testing.T, inspector domain.Inspector) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()

	c, err := cache.New(filepath.Join(dir, "cache"))
	require.NoError(t, err)

	m := New(
		fetcher.New(filepath.Join(dir, "cache"), 5*time.Second).Quiet(),
		c,
		extractor.New(),
		state.New(filepath.Join(dir, "history.json")),
		inspector,
		Layout{OutputSuffix: "_unpacked", LibDir: "lib", NativeSuffix: ".so"},
		logger.Discard(),
	)
	m.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return m, dir
}

func TestUnpackLocal(t *testing.T) {
	m, dir := newTestManager(t, stubInspector{info: &domain.AppInfo{Package: "com.example", VersionName: "2.0"}})

	apk := filepath.Join(dir, "app.apk")
	writeAPK(t, apk, "AndroidManifest.xml", "lib/x86/libfoo.so", "lib/x86/readme.txt")

	rec, err := m.Unpack(context.Background(), domain.Request{
		Source:   domain.Source{Location: apk},
		Classify: true,
		Inspect:  true,
	})
	require.NoError(t, err)

	out := filepath.Join(dir, "app_unpacked")
	require.Equal(t, out, rec.OutputDir)
	require.Equal(t, domain.StatusDone, rec.Status)
	require.Equal(t, "com.example", rec.Package)
	require.Equal(t, "2.0", rec.VersionName)
	require.Equal(t, map[string][]string{
		"x86": {filepath.Join(out, "lib", "x86", "libfoo.so")},
	}, rec.Libs)
	require.Len(t, rec.SHA256, 64)

	history, err := m.History()
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, apk, history[0].Archive)

	require.NoError(t, m.Forget(apk))
	history, err = m.History()
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestUnpackWithoutLibDir(t *testing.T) {
	m, dir := newTestManager(t, stubInspector{err: errors.New("no manifest")})

	apk := filepath.Join(dir, "plain.zip")
	writeAPK(t, apk, "readme.txt")

	rec, err := m.Unpack(context.Background(), domain.Request{
		Source:    domain.Source{Location: apk},
		OutputDir: filepath.Join(dir, "custom"),
		Classify:  true,
		Inspect:   true,
	})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "custom"), rec.OutputDir)
	require.Empty(t, rec.Libs)
	require.Empty(t, rec.Package)
}

func TestUnpackMissingAndInvalid(t *testing.T) {
	m, dir := newTestManager(t, nil)

	_, err := m.Unpack(context.Background(), domain.Request{Source: domain.Source{Location: filepath.Join(dir, "gone.apk")}})
	require.ErrorIs(t, err, domain.ErrArchiveNotFound)

	bad := filepath.Join(dir, "bad.apk")
	require.NoError(t, os.WriteFile(bad, []byte("garbage"), 0644))
	_, err = m.Unpack(context.Background(), domain.Request{Source: domain.Source{Location: bad}})
	require.ErrorIs(t, err, domain.ErrInvalidArchive)
	require.NoDirExists(t, filepath.Join(dir, "bad_unpacked"))

	history, err := m.History()
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, domain.StatusFailed, history[0].Status)
}

func TestUnpackLocalChecksum(t *testing.T) {
	m, dir := newTestManager(t, nil)

	apk := filepath.Join(dir, "app.apk")
	writeAPK(t, apk, "a.txt")

	_, err := m.Unpack(context.Background(), domain.Request{Source: domain.Source{Location: apk, SHA256: "00"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "checksum mismatch")
	require.NoDirExists(t, filepath.Join(dir, "app_unpacked"))
}

func TestUnpackRemoteUsesCache(t *testing.T) {
	m, dir := newTestManager(t, nil)

	apk := filepath.Join(dir, "served.apk")
	writeAPK(t, apk, "lib/arm64-v8a/libremote.so")
	body, err := os.ReadFile(apk)
	require.NoError(t, err)

	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write(body)
	}))
	defer srv.Close()

	out := filepath.Join(dir, "remote_out")
	req := domain.Request{
		Source:    domain.Source{Location: srv.URL + "/remote.apk"},
		OutputDir: out,
		Classify:  true,
	}

	rec, err := m.Unpack(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, map[string][]string{
		"arm64-v8a": {filepath.Join(out, "lib", "arm64-v8a", "libremote.so")},
	}, rec.Libs)

	_, err = m.Unpack(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 1, hits)

	size, err := m.CacheSize()
	require.NoError(t, err)
	require.Equal(t, int64(len(body)), size)

	sum, err := fetcher.Checksum(apk)
	require.NoError(t, err)

	req.Source.SHA256 = "00"
	_, err = m.Unpack(context.Background(), req)
	require.Error(t, err)
	require.Contains(t, err.Error(), "checksum mismatch")

	req.Source.SHA256 = strings.ToUpper(sum)
	_, err = m.Unpack(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 1, hits)

	require.NoError(t, m.ClearCache())
}

func TestUnpackRemoteDefaultOutputDir(t *testing.T) {
	m, dir := newTestManager(t, nil)

	apk := filepath.Join(dir, "served.apk")
	writeAPK(t, apk, "classes.dex")
	body, err := os.ReadFile(apk)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	work := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(work))
	t.Cleanup(func() { os.Chdir(wd) })
	cwd, err := os.Getwd()
	require.NoError(t, err)

	rec, err := m.Unpack(context.Background(), domain.Request{
		Source: domain.Source{Location: srv.URL + "/downloads/game.apk?token=1"},
	})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(cwd, "game_unpacked"), rec.OutputDir)
	require.FileExists(t, filepath.Join(cwd, "game_unpacked", "classes.dex"))
	require.NotContains(t, rec.OutputDir, filepath.Join(dir, "cache"))
}

func TestUnpackLogs(t *testing.T) {
	color.NoColor = true
	m, dir := newTestManager(t, nil)
	var logs bytes.Buffer
	m.log = logger.New(&logs, logger.LevelInfo)

	apk := filepath.Join(dir, "app.apk")
	writeAPK(t, apk, "classes.dex")
	_, err := m.Unpack(context.Background(), domain.Request{Source: domain.Source{Location: apk}})
	require.NoError(t, err)

	out := logs.String()
	require.Contains(t, out, "INFO: === unpacking APK ===")
	require.Contains(t, out, "INFO: archive: "+apk)
	require.Contains(t, out, "INFO: output directory: "+filepath.Join(dir, "app_unpacked"))
	require.Contains(t, out, "INFO: unpack complete: "+filepath.Join(dir, "app_unpacked"))

	logs.Reset()
	gone := filepath.Join(dir, "gone.apk")
	_, err = m.Unpack(context.Background(), domain.Request{Source: domain.Source{Location: gone}})
	require.ErrorIs(t, err, domain.ErrArchiveNotFound)
	require.Contains(t, logs.String(), "ERROR: archive not found: "+gone)

	logs.Reset()
	bad := filepath.Join(dir, "bad.apk")
	require.NoError(t, os.WriteFile(bad, []byte("garbage"), 0644))
	_, err = m.Unpack(context.Background(), domain.Request{Source: domain.Source{Location: bad}})
	require.ErrorIs(t, err, domain.ErrInvalidArchive)
	require.Contains(t, logs.String(), "ERROR: invalid APK (zip) archive: "+bad)
}

type failingState struct {
	domain.State
}

func (failingState) Fail(*domain.UnpackRecord) error { return errors.New("disk full") }

func TestUnpackClassifyErrorLogsStateFailure(t *testing.T) {
	color.NoColor = true
	m, dir := newTestManager(t, nil)
	m.state = failingState{State: m.state}
	var logs bytes.Buffer
	m.log = logger.New(&logs, logger.LevelInfo)

	// A regular file named lib cannot be listed as a directory.
	apk := filepath.Join(dir, "odd.apk")
	writeAPK(t, apk, "lib")

	_, err := m.Unpack(context.Background(), domain.Request{
		Source:   domain.Source{Location: apk},
		Classify: true,
	})
	require.Error(t, err)
	require.NotErrorIs(t, err, os.ErrNotExist)
	require.Contains(t, logs.String(), "WARNING: failed to record unpack: disk full")
}
