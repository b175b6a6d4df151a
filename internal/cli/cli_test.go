package cli

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
	"github.com/teamcutter/apkx/internal/config"
	"github.com/teamcutter/apkx/internal/domain"
	"gopkg.in/yaml.v3"
)

func setup(t *testing.T) (dir, configPath string) {
	t.Helper()
	color.NoColor = true

	dir = t.TempDir()
	cfg := config.DefaultConfig()
	cfg.HomeDir = filepath.Join(dir, "home")
	cfg.CacheDir = filepath.Join(dir, "home", "cache")
	cfg.StateFile = filepath.Join(dir, "home", "state.db")
	cfg.ManifestFile = filepath.Join(dir, "home", "history.json")
	cfg.StateBackend = config.BackendJSON

	configPath = filepath.Join(dir, "config.toml")
	require.NoError(t, config.Save(cfg, configPath))
	return dir, configPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

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

func TestUnpackCommand(t *testing.T) {
	dir, cfg := setup(t)
	apk := filepath.Join(dir, "app.apk")
	writeAPK(t, apk, "AndroidManifest.xml", "lib/armeabi-v7a/libnative.so")

	out, err := run(t, "--config", cfg, "-q", "unpack", "--classify", "--no-inspect", "--format", "json", apk)
	require.NoError(t, err)

	var records []domain.UnpackRecord
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 1)

	unpacked := filepath.Join(dir, "app_unpacked")
	require.Equal(t, unpacked, records[0].OutputDir)
	require.Equal(t, map[string][]string{
		"armeabi-v7a": {filepath.Join(unpacked, "lib", "armeabi-v7a", "libnative.so")},
	}, records[0].Libs)

	out, err = run(t, "--config", cfg, "history")
	require.NoError(t, err)
	require.Contains(t, out, apk)
	require.Contains(t, out, "libs: 1 across 1 abi(s)")

	out, err = run(t, "--config", cfg, "forget", apk)
	require.NoError(t, err)
	require.Contains(t, out, "forgotten")
}

func TestUnpackCommandFailures(t *testing.T) {
	dir, cfg := setup(t)

	_, err := run(t, "--config", cfg, "-q", "unpack", filepath.Join(dir, "missing.apk"))
	require.Error(t, err)

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--config", cfg, "-q", "unpack", filepath.Join(dir, "missing.apk")})
	require.Error(t, cmd.Execute())
	require.Contains(t, stderr.String(), "✗ "+filepath.Join(dir, "missing.apk"))
	require.NotContains(t, stdout.String(), "✗")

	_, err = run(t, "--config", cfg, "unpack", "-o", dir, "a.apk", "b.apk")
	require.Error(t, err)

	_, err = run(t, "--config", cfg, "unpack", "--format", "xml", "a.apk")
	require.Error(t, err)
}

func TestLibsCommand(t *testing.T) {
	dir, cfg := setup(t)
	out := filepath.Join(dir, "tree")
	require.NoError(t, os.MkdirAll(filepath.Join(out, "lib", "x86"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(out, "lib", "mips"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(out, "lib", "x86", "libfoo.so"), []byte("x"), 0644))

	text, err := run(t, "--config", cfg, "libs", "--format", "yaml", out)
	require.NoError(t, err)

	var libs map[string][]string
	require.NoError(t, yaml.Unmarshal([]byte(text), &libs))
	require.Equal(t, []string{filepath.Join(out, "lib", "x86", "libfoo.so")}, libs["x86"])
	require.Contains(t, libs, "mips")
	require.Empty(t, libs["mips"])

	text, err = run(t, "--config", cfg, "libs", out)
	require.NoError(t, err)
	require.Contains(t, text, "● x86 (1)")
	require.Contains(t, text, "● mips (0)")
}

func TestLibsCommandUsesConfiguredLayout(t *testing.T) {
	dir, cfgPath := setup(t)
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	cfg.LibDir = "jni"
	cfg.NativeSuffix = ".dylib"
	require.NoError(t, config.Save(cfg, cfgPath))

	out := filepath.Join(dir, "tree")
	require.NoError(t, os.MkdirAll(filepath.Join(out, "jni", "x86"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(out, "jni", "x86", "libfoo.dylib"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(out, "jni", "x86", "libfoo.so"), []byte("x"), 0644))

	text, err := run(t, "--config", cfgPath, "libs", "--format", "json", out)
	require.NoError(t, err)

	var libs map[string][]string
	require.NoError(t, json.Unmarshal([]byte(text), &libs))
	require.Equal(t, map[string][]string{
		"x86": {filepath.Join(out, "jni", "x86", "libfoo.dylib")},
	}, libs)
}

func TestLibsCommandFromArchive(t *testing.T) {
	dir, cfg := setup(t)
	apk := filepath.Join(dir, "game.apk")
	writeAPK(t, apk, "lib/arm64-v8a/libgame.so", "lib/arm64-v8a/notes.txt")

	text, err := run(t, "--config", cfg, "-q", "libs", "--format", "json", apk)
	require.NoError(t, err)

	var libs map[string][]string
	require.NoError(t, json.Unmarshal([]byte(text), &libs))
	require.Equal(t, map[string][]string{
		"arm64-v8a": {filepath.Join(dir, "game_unpacked", "lib", "arm64-v8a", "libgame.so")},
	}, libs)
}

func TestLibsCommandWithoutLibDir(t *testing.T) {
	dir, cfg := setup(t)

	_, err := run(t, "--config", cfg, "libs", dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no lib directory")
}

func TestInfoCommand(t *testing.T) {
	dir, cfg := setup(t)
	apk := filepath.Join(dir, "app.apk")
	writeAPK(t, apk, "lib/x86/liba.so", "lib/x86_64/liba.so")

	text, err := run(t, "--config", cfg, "-q", "info", "--format", "json", apk)
	require.NoError(t, err)

	var info archiveInfo
	require.NoError(t, json.Unmarshal([]byte(text), &info))
	require.Equal(t, []string{"x86", "x86_64"}, info.ABIs)
	require.Equal(t, 2, info.Entries)
	require.Nil(t, info.App)
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	require.Contains(t, out, "apkx-dev-")
}

func TestFormatSize(t *testing.T) {
	require.Equal(t, "512 B", formatSize(512))
	require.Equal(t, "1.5 KB", formatSize(1536))
	require.Equal(t, "2.0 MB", formatSize(2<<20))
	require.Equal(t, "1.0 GB", formatSize(1<<30))
}
